package interact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/coopsim/internal/config"
	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/testutil"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	reg, err := data.Load("")
	require.NoError(t, err)
	return NewHandler(reg, config.DefaultSimulation())
}

func TestRevive(t *testing.T) {
	h := newHandler(t)
	sp := testutil.NewSpace(t, testutil.DefaultBounds)
	alice := testutil.SpawnPlayer(t, sp, "alice", model.V(100, 100))
	bob := testutil.SpawnPlayer(t, sp, "bob", model.V(130, 100))

	_, refusal := h.Interact(sp, alice, Request{Target: bob.ID}, now)
	assert.Equal(t, model.RefusalTargetNotEligible, refusal, "bob is not downed")

	bob.Player.Downed = true
	bob.Player.Health = 0

	events, refusal := h.Interact(sp, alice, Request{Target: bob.ID}, now)
	require.Equal(t, model.RefusalNone, refusal)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventRevive, events[0].Kind)
	assert.Equal(t, 50.0, events[0].Health)
	assert.False(t, bob.Player.Downed)
	assert.Equal(t, 50.0, bob.Player.Health)
}

func TestInteract_Refusals(t *testing.T) {
	h := newHandler(t)
	sp := testutil.NewSpace(t, testutil.DefaultBounds)
	alice := testutil.SpawnPlayer(t, sp, "alice", model.V(100, 100))
	far := testutil.SpawnPlayer(t, sp, "far", model.V(400, 400))
	far.Player.Downed = true
	npc := testutil.SpawnNPC(t, sp, "goblin", 30, model.V(120, 100))

	tests := []struct {
		name   string
		target model.EntityID
		item   string
		setup  func()
		want   model.Refusal
	}{
		{name: "unknown entity", target: 0x1fffffff, want: model.RefusalUnknownEntity},
		{name: "self", target: alice.ID, want: model.RefusalTargetNotEligible},
		{name: "out of range", target: far.ID, want: model.RefusalOutOfRange},
		{name: "npc", target: npc.ID, want: model.RefusalTargetNotEligible},
		{name: "item not held", item: "health_potion", want: model.RefusalInsufficientItems},
		{name: "unknown item", item: "elixir", setup: func() { alice.Player.GiveItem("elixir", 1) }, want: model.RefusalInsufficientItems},
		{name: "full health", item: "fruit", setup: func() { alice.Player.GiveItem("fruit", 1) }, want: model.RefusalFullHealth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			events, refusal := h.Interact(sp, alice, Request{Target: tt.target, Item: tt.item}, now)
			assert.Equal(t, tt.want, refusal)
			assert.Empty(t, events)
		})
	}

	alice.Player.Downed = true
	_, refusal := h.Interact(sp, alice, Request{Target: npc.ID}, now)
	assert.Equal(t, model.RefusalDowned, refusal)
}

func TestConsume(t *testing.T) {
	h := newHandler(t)
	sp := testutil.NewSpace(t, testutil.DefaultBounds)
	p := testutil.SpawnPlayer(t, sp, "alice", model.V(100, 100))
	p.Player.Health = 40
	p.Player.GiveItem("mega_potion", 2)

	events, refusal := h.Interact(sp, p, Request{Item: "mega_potion"}, now)
	require.Equal(t, model.RefusalNone, refusal)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventHeal, events[0].Kind)
	assert.Equal(t, 60.0, events[0].Amount, "healing is capped at max health")
	assert.Equal(t, 100.0, p.Player.Health)
	assert.Equal(t, 1, p.Player.ItemCount("mega_potion"))

	_, refusal = h.Interact(sp, p, Request{Item: "mega_potion"}, now)
	assert.Equal(t, model.RefusalFullHealth, refusal)
	assert.Equal(t, 1, p.Player.ItemCount("mega_potion"), "refused consume keeps the item")
}

func TestHarvestTree(t *testing.T) {
	h := newHandler(t)
	sp := testutil.NewSpace(t, testutil.DefaultBounds)
	p := testutil.SpawnPlayer(t, sp, "alice", model.V(100, 100))
	tree := testutil.SpawnObject(t, sp, model.ObjectTree, 3, 2, model.V(125, 100))
	testutil.Equip(t, p, model.SlotMainHand, "axe")

	for range 5 {
		_, refusal := h.Interact(sp, p, Request{Target: tree.ID}, now)
		require.Equal(t, model.RefusalNone, refusal)
	}

	assert.Equal(t, 2, p.Player.ItemCount("fruit"))
	assert.Equal(t, 4, p.Player.ItemCount("wood"), "two chips plus two on depletion")
	assert.True(t, tree.Object.Depleted)
	assert.Equal(t, 30.0, tree.Object.RespawnIn)

	_, refusal := h.Interact(sp, p, Request{Target: tree.ID}, now)
	assert.Equal(t, model.RefusalDepleted, refusal)

	h.Tick(sp, 29)
	assert.True(t, tree.Object.Depleted)
	h.Tick(sp, 1)
	assert.False(t, tree.Object.Depleted)
	assert.Equal(t, 3.0, tree.Object.Health)
	assert.Equal(t, 2, tree.Object.Resources)
}

func TestHarvestRock(t *testing.T) {
	h := newHandler(t)
	sp := testutil.NewSpace(t, testutil.DefaultBounds)
	p := testutil.SpawnPlayer(t, sp, "alice", model.V(100, 100))
	rock := testutil.SpawnObject(t, sp, model.ObjectRock, 2, 0, model.V(100, 130))
	testutil.Equip(t, p, model.SlotOffHand, "pickaxe")

	_, refusal := h.Interact(sp, p, Request{Target: rock.ID}, now)
	require.Equal(t, model.RefusalNone, refusal)
	assert.Equal(t, 1, p.Player.ItemCount("stone_fragment"))

	_, refusal = h.Interact(sp, p, Request{Target: rock.ID}, now)
	require.Equal(t, model.RefusalNone, refusal)
	assert.Equal(t, 1, p.Player.ItemCount("stone"))
	assert.True(t, rock.Object.Depleted)
}

func TestContextualActions_Requirements(t *testing.T) {
	h := newHandler(t)
	sp := testutil.NewSpace(t, testutil.DefaultBounds)
	p := testutil.SpawnPlayer(t, sp, "alice", model.V(100, 100))
	tree := testutil.SpawnObject(t, sp, model.ObjectTree, 3, 2, model.V(125, 100))
	rock := testutil.SpawnObject(t, sp, model.ObjectRock, 2, 0, model.V(100, 70))

	tests := []struct {
		name   string
		target model.EntityID
		action model.Action
		want   model.Refusal
	}{
		{name: "cut without axe", target: tree.ID, action: model.ActionCut, want: model.RefusalInsufficientItems},
		{name: "break without pickaxe", target: rock.ID, action: model.ActionBreak, want: model.RefusalInsufficientItems},
		{name: "shake a rock", target: rock.ID, action: model.ActionShake, want: model.RefusalTargetNotEligible},
		{name: "pick up a tree", target: tree.ID, action: model.ActionPickUp, want: model.RefusalTargetNotEligible},
		{name: "revive a tree", target: tree.ID, action: model.ActionRevive, want: model.RefusalTargetNotEligible},
		{name: "use without item", target: tree.ID, action: model.ActionUse, want: model.RefusalInsufficientItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, refusal := h.Interact(sp, p, Request{Action: tt.action, Target: tt.target}, now)
			assert.Equal(t, tt.want, refusal)
		})
	}
	assert.Equal(t, 3.0, tree.Object.Health, "refusals leave the object untouched")
	assert.Equal(t, 2, tree.Object.Resources)
	assert.Equal(t, 2.0, rock.Object.Health)
	assert.Empty(t, p.Player.Items)

	// Holding the axe in the bag is not enough: it has to be in hand.
	p.Player.GiveItem("axe", 1)
	_, refusal := h.Interact(sp, p, Request{Action: model.ActionCut, Target: tree.ID}, now)
	assert.Equal(t, model.RefusalInsufficientItems, refusal)

	_, refusal = h.Interact(sp, p, Request{Action: model.ActionEquip, Item: "axe"}, now)
	require.Equal(t, model.RefusalNone, refusal)
	_, refusal = h.Interact(sp, p, Request{Action: model.ActionCut, Target: tree.ID}, now)
	require.Equal(t, model.RefusalNone, refusal)
	assert.Equal(t, 2.0, tree.Object.Health)
	assert.Equal(t, 1, p.Player.ItemCount("wood"))
	assert.Equal(t, 2, tree.Object.Resources, "cutting does not shake fruit")
}

func TestContextualActions_ShakeAndPickUp(t *testing.T) {
	h := newHandler(t)
	sp := testutil.NewSpace(t, testutil.DefaultBounds)
	p := testutil.SpawnPlayer(t, sp, "alice", model.V(100, 100))
	tree := testutil.SpawnObject(t, sp, model.ObjectTree, 3, 1, model.V(125, 100))
	rock := testutil.SpawnObject(t, sp, model.ObjectRock, 2, 0, model.V(100, 70))

	_, refusal := h.Interact(sp, p, Request{Action: model.ActionShake, Target: tree.ID}, now)
	require.Equal(t, model.RefusalNone, refusal)
	assert.Equal(t, 1, p.Player.ItemCount("fruit"))

	_, refusal = h.Interact(sp, p, Request{Action: model.ActionShake, Target: tree.ID}, now)
	assert.Equal(t, model.RefusalDepleted, refusal, "no fruit left")
	assert.False(t, tree.Object.Depleted, "an empty tree can still be cut")

	_, refusal = h.Interact(sp, p, Request{Action: model.ActionPickUp, Target: rock.ID}, now)
	require.Equal(t, model.RefusalNone, refusal)
	assert.Equal(t, 1, p.Player.ItemCount("stone"))
	assert.True(t, rock.Object.Depleted)
	assert.Equal(t, 45.0, rock.Object.RespawnIn)

	_, refusal = h.Interact(sp, p, Request{Action: model.ActionPickUp, Target: rock.ID}, now)
	assert.Equal(t, model.RefusalDepleted, refusal)
}

func TestEquipAndUnequip(t *testing.T) {
	h := newHandler(t)
	sp := testutil.NewSpace(t, testutil.DefaultBounds)
	p := testutil.SpawnPlayer(t, sp, "alice", model.V(100, 100))
	ps := p.Player

	tests := []struct {
		name string
		req  Request
		want model.Refusal
	}{
		{name: "not held", req: Request{Action: model.ActionEquip, Item: "pickaxe"}, want: model.RefusalInsufficientItems},
		{name: "not gear", req: Request{Action: model.ActionEquip, Item: "fruit"}, want: model.RefusalTargetNotEligible},
		{name: "unequip empty", req: Request{Action: model.ActionUnequip, Item: "sword"}, want: model.RefusalTargetNotEligible},
	}
	ps.GiveItem("fruit", 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, refusal := h.Interact(sp, p, tt.req, now)
			assert.Equal(t, tt.want, refusal)
		})
	}

	for _, item := range []string{"sword", "pickaxe", "leather_armor", "lucky_charm"} {
		ps.GiveItem(item, 1)
		_, refusal := h.Interact(sp, p, Request{Action: model.ActionEquip, Item: item}, now)
		require.Equal(t, model.RefusalNone, refusal, item)
	}
	assert.Equal(t, map[model.EquipSlot]string{
		model.SlotMainHand:  "sword",
		model.SlotOffHand:   "pickaxe",
		model.SlotArmor:     "leather_armor",
		model.SlotAccessory: "lucky_charm",
	}, ps.Equipment)

	_, refusal := h.Interact(sp, p, Request{Action: model.ActionUnequip, Item: "pickaxe"}, now)
	require.Equal(t, model.RefusalNone, refusal)
	assert.Empty(t, ps.InSlot(model.SlotOffHand))
	assert.Equal(t, 1, ps.ItemCount("pickaxe"), "unequipped gear stays in the inventory")

	ps.Downed = true
	_, refusal = h.Interact(sp, p, Request{Action: model.ActionEquip, Item: "pickaxe"}, now)
	assert.Equal(t, model.RefusalDowned, refusal)
}
