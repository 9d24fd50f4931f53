package interest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

func insert(t *testing.T, s *world.Store, e *model.Entity) *model.Entity {
	t.Helper()
	require.NoError(t, s.Insert(e))
	return e
}

func player(s *world.Store, instance, owner string, pos model.Vec2) *model.Entity {
	return &model.Entity{
		ID:       s.IDs().Next(model.KindPlayer),
		Kind:     model.KindPlayer,
		Instance: instance,
		Position: pos,
		HalfSize: 8,
		Owner:    owner,
		Player:   &model.PlayerState{Username: owner, Health: 100, MaxHealth: 100},
	}
}

func npc(s *world.Store, instance string, pos model.Vec2) *model.Entity {
	return &model.Entity{
		ID:       s.IDs().Next(model.KindNPC),
		Kind:     model.KindNPC,
		Instance: instance,
		Position: pos,
		HalfSize: 8,
		NPC:      &model.NPCState{Template: "goblin", Health: 30, MaxHealth: 30},
	}
}

func kinds(d Diff) map[model.EntityID]ChangeKind {
	out := make(map[model.EntityID]ChangeKind, len(d.Changes))
	for _, c := range d.Changes {
		out[c.Row.ID] = c.Kind
	}
	return out
}

func TestSubscription_InsertUpdateDelete(t *testing.T) {
	s := world.NewStore()
	alice := insert(t, s, player(s, "a", "alice", model.V(10, 10)))
	goblin := insert(t, s, npc(s, "a", model.V(50, 50)))
	insert(t, s, npc(s, "b", model.V(50, 50)))

	sub := NewSubscription("alice", "a")

	d := sub.Compute(s)
	assert.Equal(t, map[model.EntityID]ChangeKind{alice.ID: ChangeInsert, goblin.ID: ChangeInsert}, kinds(d))

	assert.True(t, sub.Compute(s).Empty(), "nothing changed")

	s.Partition("a").Move(goblin, model.V(60, 50))
	d = sub.Compute(s)
	require.Len(t, d.Changes, 1)
	assert.Equal(t, ChangeUpdate, d.Changes[0].Kind)
	assert.Equal(t, 60.0, d.Changes[0].Row.X)

	s.Remove(goblin.ID)
	d = sub.Compute(s)
	require.Len(t, d.Changes, 1)
	assert.Equal(t, ChangeDelete, d.Changes[0].Kind)
	assert.Equal(t, goblin.ID, d.Changes[0].Row.ID)
}

func TestSubscription_OwnedRowsFollowOwner(t *testing.T) {
	s := world.NewStore()
	insert(t, s, player(s, "a", "alice", model.V(10, 10)))
	arrow := insert(t, s, &model.Entity{
		ID:         s.IDs().Next(model.KindProjectile),
		Kind:       model.KindProjectile,
		Instance:   "b",
		Owner:      "alice",
		Projectile: &model.ProjectileState{},
	})

	sub := NewSubscription("alice", "a")
	d := sub.Compute(s)
	assert.Contains(t, kinds(d), arrow.ID, "owned rows are visible from any instance")
}

func TestSubscription_SwitchIsAtomic(t *testing.T) {
	s := world.NewStore()
	alice := insert(t, s, player(s, "a", "alice", model.V(975, 500)))
	bob := insert(t, s, player(s, "a", "bob", model.V(100, 100)))
	goblin := insert(t, s, npc(s, "a", model.V(200, 200)))
	keeper := insert(t, s, npc(s, "b", model.V(300, 300)))

	sub := NewSubscription("alice", "a")
	sub.Compute(s)
	require.Equal(t, 3, sub.Len())

	_, err := s.Handoff(alice.ID, "b", model.V(50, 500))
	require.NoError(t, err)
	sub.Switch("b")

	d := sub.Compute(s)
	assert.Equal(t, "b", d.Instance)
	assert.Equal(t, map[model.EntityID]ChangeKind{
		bob.ID:    ChangeDelete,
		goblin.ID: ChangeDelete,
		alice.ID:  ChangeUpdate,
		keeper.ID: ChangeInsert,
	}, kinds(d))

	// Удаления идут первыми, затем вставки и обновления.
	assert.Equal(t, ChangeDelete, d.Changes[0].Kind)
	assert.Equal(t, ChangeDelete, d.Changes[1].Kind)
	assert.NotEqual(t, ChangeDelete, d.Changes[2].Kind)
	assert.Equal(t, 2, sub.Len(), "row set never empties across the switch")
}

func TestSubscription_SnapshotThenCompute(t *testing.T) {
	s := world.NewStore()
	insert(t, s, npc(s, "a", model.V(1, 1)))
	insert(t, s, player(s, "a", "alice", model.V(2, 2)))

	sub := NewSubscription("alice", "a")
	rows := sub.Snapshot(s)
	require.Len(t, rows, 2)
	assert.Less(t, rows[0].ID, rows[1].ID)
	assert.True(t, sub.Compute(s).Empty())

	sub.Reset()
	assert.Len(t, sub.Compute(s).Changes, 2)
}

func TestRowOf_Player(t *testing.T) {
	e := &model.Entity{
		ID:       0x10000001,
		Kind:     model.KindPlayer,
		Instance: "a",
		Owner:    "alice",
		Position: model.V(1, 2),
		Player: &model.PlayerState{
			Username:     "alice",
			Health:       80,
			MaxHealth:    100,
			LastSequence: 5,
			Items:        map[string]int{"fruit": 2, "arrow": 3, "bow": 1, "lucky_charm": 1},
			Equipment:    map[model.EquipSlot]string{model.SlotAccessory: "lucky_charm", model.SlotMainHand: "bow"},
		},
	}
	r := RowOf(e)
	assert.Equal(t, "player", r.Kind)
	assert.Equal(t, "arrow:3,bow:1,fruit:2,lucky_charm:1", r.Inventory)
	assert.Equal(t, "main_hand:bow,accessory:lucky_charm", r.Equipment)
	assert.Equal(t, uint32(5), r.LastSequence)

	items, err := ParseInventory(r.Inventory)
	require.NoError(t, err)
	assert.Equal(t, e.Player.Items, items)

	_, err = ParseInventory("arrow")
	assert.Error(t, err)
}

func TestChange_JSON(t *testing.T) {
	b, err := json.Marshal(Change{Kind: ChangeDelete, Row: Row{ID: 7, Kind: "npc"}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"op":"delete"`)

	var c Change
	require.NoError(t, json.Unmarshal(b, &c))
	assert.Equal(t, ChangeDelete, c.Kind)
	assert.Equal(t, model.EntityID(7), c.Row.ID)
}

func TestFilter(t *testing.T) {
	s := world.NewStore()
	insert(t, s, player(s, "a", "alice", model.V(1, 1)))
	insert(t, s, player(s, "b", "bob", model.V(1, 1)))

	f := NewFilter()
	f.Subscribe("alice", "a")
	f.Subscribe("bob", "b")
	require.Equal(t, 2, f.Len())

	diffs := f.ComputeAll(s)
	assert.Len(t, diffs["alice"].Changes, 1)
	assert.Len(t, diffs["bob"].Changes, 1)

	assert.True(t, f.Switch("bob", "a"))
	assert.False(t, f.Switch("carol", "a"))
	sub, ok := f.Get("bob")
	require.True(t, ok)
	assert.Equal(t, "a", sub.Instance())

	again := f.Subscribe("bob", "b")
	assert.Same(t, sub, again, "existing subscription is reused")
	assert.Equal(t, "b", again.Instance())

	f.Unsubscribe("alice")
	_, ok = f.Get("alice")
	assert.False(t, ok)
}
