// Package interest computes what each client is subscribed to and the
// incremental insert/update/delete diff against what it was last sent.
package interest

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/udisondev/coopsim/internal/model"
)

// Row is the flat, comparable projection of an entity sent to clients.
// Two rows compare equal iff the client needs no update.
type Row struct {
	ID       model.EntityID `json:"id"`
	Kind     string         `json:"kind"`
	Instance string         `json:"instance"`
	Owner    string         `json:"owner,omitempty"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	VX       float64        `json:"vx"`
	VY       float64        `json:"vy"`

	Health    float64 `json:"health,omitempty"`
	MaxHealth float64 `json:"max_health,omitempty"`

	// Player.
	Username     string `json:"username,omitempty"`
	Downed       bool   `json:"downed,omitempty"`
	LastSequence uint32 `json:"last_sequence,omitempty"`
	Inventory    string `json:"inventory,omitempty"` // "item:count" pairs sorted by item
	Equipment    string `json:"equipment,omitempty"` // "slot:item" pairs in slot order

	// NPC.
	Template string         `json:"template,omitempty"`
	State    string         `json:"state,omitempty"`
	Target   model.EntityID `json:"target,omitempty"`
	FacingX  float64        `json:"facing_x,omitempty"`
	FacingY  float64        `json:"facing_y,omitempty"`

	// Projectile.
	Shooter model.EntityID `json:"shooter,omitempty"`

	// Interactable.
	Object    string `json:"object,omitempty"`
	Resources int    `json:"resources,omitempty"`
	Depleted  bool   `json:"depleted,omitempty"`
}

// RowOf projects an entity.
func RowOf(e *model.Entity) Row {
	r := Row{
		ID:       e.ID,
		Kind:     e.Kind.String(),
		Instance: e.Instance,
		Owner:    e.Owner,
		X:        e.Position.X,
		Y:        e.Position.Y,
		VX:       e.Velocity.X,
		VY:       e.Velocity.Y,
	}
	switch {
	case e.Player != nil:
		p := e.Player
		r.Health, r.MaxHealth = p.Health, p.MaxHealth
		r.Username = p.Username
		r.Downed = p.Downed
		r.LastSequence = p.LastSequence
		r.Inventory = inventoryString(p.Items)
		r.Equipment = equipmentString(p.Equipment)
	case e.NPC != nil:
		n := e.NPC
		r.Health, r.MaxHealth = n.Health, n.MaxHealth
		r.Template = n.Template
		r.State = n.State.String()
		r.Target = n.Threat.Target
		r.FacingX, r.FacingY = n.Facing.X, n.Facing.Y
	case e.Projectile != nil:
		r.Shooter = e.Projectile.Shooter
	case e.Object != nil:
		o := e.Object
		r.Health, r.MaxHealth = o.Health, o.MaxHealth
		r.Object = o.Kind.String()
		r.Resources = o.Resources
		r.Depleted = o.Depleted
	}
	return r
}

// ParseInventory is the inverse of the Inventory encoding.
func ParseInventory(s string) (map[string]int, error) {
	items := make(map[string]int)
	if s == "" {
		return items, nil
	}
	for _, pair := range strings.Split(s, ",") {
		name, count, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("inventory entry %q: missing count", pair)
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return nil, fmt.Errorf("inventory entry %q: %w", pair, err)
		}
		items[name] = n
	}
	return items, nil
}

func inventoryString(items map[string]int) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, name := range slices.Sorted(maps.Keys(items)) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(items[name]))
	}
	return b.String()
}

func equipmentString(eq map[model.EquipSlot]string) string {
	var b strings.Builder
	for _, slot := range model.EquipSlots {
		item := eq[slot]
		if item == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(slot.String())
		b.WriteByte(':')
		b.WriteString(item)
	}
	return b.String()
}
