// Package interact handles non-combat player actions: reviving a downed
// teammate, contextual actions on trees and rocks, equipping gear and
// consuming inventory items.
package interact

import (
	"log/slog"
	"math"
	"time"

	"github.com/udisondev/coopsim/internal/config"
	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

// Catalog provides the tuning used by interactions. *data.Registry implements it.
type Catalog interface {
	Consumable(name string) (*data.Consumable, bool)
	Object(kind model.ObjectKind) (*data.ObjectKind, bool)
	GearOf(item string) (*data.Gear, bool)
	ObjectAction(kind model.ObjectKind, action model.Action) (*data.ObjectAction, bool)
	DefaultAction(kind model.ObjectKind, hasResources bool) (*data.ObjectAction, bool)
}

// Request is one interaction: an action on a target entity or an item.
type Request struct {
	Action model.Action
	Target model.EntityID
	Item   string
}

// RequestOf extracts the interaction part of a command.
func RequestOf(c model.Command) Request {
	return Request{Action: c.Action, Target: c.Target, Item: c.Item}
}

// Handler resolves interaction commands. It keeps no per-instance state.
type Handler struct {
	catalog        Catalog
	reach          float64
	reviveFraction float64
}

// NewHandler creates a handler with the interaction range and revive
// fraction of the simulation config.
func NewHandler(catalog Catalog, cfg config.Simulation) *Handler {
	return &Handler{
		catalog:        catalog,
		reach:          cfg.InteractRange,
		reviveFraction: cfg.ReviveFraction,
	}
}

// Interact applies one interaction of actor. Equip and unequip act on the
// named item. Otherwise an item is consumed, and a target is revived or
// acted on depending on its kind.
func (h *Handler) Interact(sp *world.Space, actor *model.Entity, req Request, now time.Time) ([]model.CombatEvent, model.Refusal) {
	p := actor.Player
	if p == nil {
		return nil, model.RefusalTargetNotEligible
	}
	if p.Downed {
		return nil, model.RefusalDowned
	}

	switch req.Action {
	case model.ActionEquip:
		return nil, h.equip(sp, actor, req.Item)
	case model.ActionUnequip:
		if _, ok := p.Unequip(req.Item); !ok {
			return nil, model.RefusalTargetNotEligible
		}
		return nil, model.RefusalNone
	}

	if req.Item != "" {
		if req.Action != model.ActionAuto && req.Action != model.ActionUse {
			return nil, model.RefusalTargetNotEligible
		}
		return h.consume(sp, actor, req.Item, now)
	}
	if req.Action == model.ActionUse {
		return nil, model.RefusalInsufficientItems
	}

	t, ok := sp.Get(req.Target)
	if !ok {
		return nil, model.RefusalUnknownEntity
	}
	if t.ID == actor.ID {
		return nil, model.RefusalTargetNotEligible
	}
	if actor.Position.Distance(t.Position) > h.reach+t.HalfSize {
		return nil, model.RefusalOutOfRange
	}

	switch {
	case t.Kind == model.KindPlayer && (req.Action == model.ActionAuto || req.Action == model.ActionRevive):
		return h.revive(sp, actor, t, now)
	case t.Kind == model.KindInteractable && req.Action != model.ActionRevive:
		return nil, h.act(sp, actor, t, req.Action)
	default:
		return nil, model.RefusalTargetNotEligible
	}
}

// equip puts a held gear item into its slot.
func (h *Handler) equip(sp *world.Space, actor *model.Entity, item string) model.Refusal {
	g, ok := h.catalog.GearOf(item)
	if !ok {
		return model.RefusalTargetNotEligible
	}
	prev, ok := actor.Player.Equip(g.EquipSlot(), item)
	if !ok {
		return model.RefusalInsufficientItems
	}
	slog.Debug("item equipped", "instance", sp.Key(), "player", actor.ID, "item", item, "slot", g.EquipSlot(), "replaced", prev)
	return model.RefusalNone
}

// revive restores a downed teammate to a fraction of max health.
func (h *Handler) revive(sp *world.Space, actor, target *model.Entity, now time.Time) ([]model.CombatEvent, model.Refusal) {
	tp := target.Player
	if !tp.Downed {
		return nil, model.RefusalTargetNotEligible
	}
	tp.Downed = false
	tp.Health = tp.MaxHealth * h.reviveFraction

	slog.Debug("player revived", "instance", sp.Key(), "player", target.ID, "by", actor.ID)
	return []model.CombatEvent{{
		Instance:     sp.Key(),
		Attacker:     actor.ID,
		Target:       target.ID,
		AttackerKind: model.KindPlayer,
		TargetKind:   model.KindPlayer,
		Amount:       tp.Health,
		Kind:         model.EventRevive,
		Health:       tp.Health,
		At:           now,
	}}, model.RefusalNone
}

// consume uses one unit of a healing item.
func (h *Handler) consume(sp *world.Space, actor *model.Entity, item string, now time.Time) ([]model.CombatEvent, model.Refusal) {
	p := actor.Player
	c, ok := h.catalog.Consumable(item)
	if !ok || p.ItemCount(item) == 0 {
		return nil, model.RefusalInsufficientItems
	}
	if p.Health >= p.MaxHealth {
		return nil, model.RefusalFullHealth
	}

	p.TakeItem(item)
	healed := math.Min(c.Heal, p.MaxHealth-p.Health)
	p.Health += healed

	return []model.CombatEvent{{
		Instance:     sp.Key(),
		Attacker:     actor.ID,
		Target:       actor.ID,
		AttackerKind: model.KindPlayer,
		TargetKind:   model.KindPlayer,
		Amount:       healed,
		Kind:         model.EventHeal,
		Health:       p.Health,
		At:           now,
	}}, model.RefusalNone
}

// act performs a contextual action on an object. ActionAuto gathers while
// the object has loose resources and damages it afterwards. Requirements are
// checked before anything changes.
func (h *Handler) act(sp *world.Space, actor, obj *model.Entity, action model.Action) model.Refusal {
	o := obj.Object
	var (
		a  *data.ObjectAction
		ok bool
	)
	if action == model.ActionAuto {
		a, ok = h.catalog.DefaultAction(o.Kind, o.Resources > 0)
	} else {
		a, ok = h.catalog.ObjectAction(o.Kind, action)
	}
	if !ok {
		return model.RefusalTargetNotEligible
	}
	if o.Depleted {
		return model.RefusalDepleted
	}
	kind, ok := h.catalog.Object(o.Kind)
	if !ok {
		return model.RefusalTargetNotEligible
	}
	p := actor.Player
	if !a.Allowed(p) {
		return model.RefusalInsufficientItems
	}

	switch a.Effect {
	case data.EffectGather:
		if o.Resources <= 0 || kind.ResourceItem == "" {
			return model.RefusalDepleted
		}
		o.Resources--
		p.GiveItem(kind.ResourceItem, 1)
		return model.RefusalNone

	case data.EffectTake:
		o.Health = 0
		h.deplete(sp, actor, obj, kind)
		return model.RefusalNone
	}

	o.Health--
	if o.Health > 0 {
		if kind.ChipItem != "" {
			p.GiveItem(kind.ChipItem, 1)
		}
		return model.RefusalNone
	}
	o.Health = 0
	h.deplete(sp, actor, obj, kind)
	return model.RefusalNone
}

// deplete grants the final items and starts the respawn timer.
func (h *Handler) deplete(sp *world.Space, actor, obj *model.Entity, kind *data.ObjectKind) {
	o := obj.Object
	if kind.FinalItem != "" && kind.FinalCount > 0 {
		actor.Player.GiveItem(kind.FinalItem, kind.FinalCount)
	}
	o.Resources = 0
	o.Depleted = true
	o.RespawnIn = kind.Respawn.Seconds()
	slog.Debug("object depleted", "instance", sp.Key(), "object", obj.ID, "kind", o.Kind, "by", actor.ID)
}

// Tick counts down respawn timers of depleted objects and restores the ones
// whose timer ran out.
func (h *Handler) Tick(sp *world.Space, dt float64) {
	sp.Partition().ForEach(model.KindInteractable, func(e *model.Entity) {
		o := e.Object
		if !o.Depleted {
			return
		}
		o.RespawnIn -= dt
		if o.RespawnIn > 0 {
			return
		}
		o.RespawnIn = 0
		o.Depleted = false
		o.Health = o.MaxHealth
		if kind, ok := h.catalog.Object(o.Kind); ok {
			o.Resources = kind.Resources
		}
	})
}
