package data

import (
	"time"

	"github.com/udisondev/coopsim/internal/model"
)

// StartingMap is the map new players spawn on.
const StartingMap = "tavern_outside"

// Defaults returns the built-in registry: the stock weapon, enemy, gear and
// object tuning plus a two-map world joined by transition zones.
func Defaults() *Registry {
	return &Registry{
		StartingMap: StartingMap,
		Weapons: []Weapon{
			{Name: "sword", Shape: "wide_arc", Damage: 25, Range: 80, ArcDegrees: 90, Lock: 400 * time.Millisecond},
			{Name: "axe", Shape: "frontal_cone", Damage: 40, Range: 60, ArcDegrees: 45, Lock: 600 * time.Millisecond},
			{
				Name: "bow", Shape: "ranged", Damage: 20, Range: 300, Lock: 300 * time.Millisecond,
				ProjectileSpeed: 400, ProjectileTTL: 5, ProjectileRadius: 5, Ammo: model.Ammo,
			},
		},
		Enemies: []Enemy{
			enemy("test_enemy", 50, 75, 15, 30, 100, 200),
			enemy("goblin", 30, 120, 10, 25, 80, 150),
			enemy("orc", 80, 60, 25, 40, 120, 250),
			enemy("troll", 150, 40, 40, 50, 100, 180),
		},
		Consumables: []Consumable{
			{Name: "fruit", Heal: 25},
			{Name: "health_potion", Heal: 50},
			{Name: "mega_potion", Heal: 100},
		},
		Objects: []ObjectKind{
			{
				Name: "tree", MaxHealth: 3, Resources: 2, ResourceItem: "fruit",
				ChipItem: "wood", FinalItem: "wood", FinalCount: 2, Respawn: 30 * time.Second, HalfSize: 10,
			},
			{
				Name: "rock", MaxHealth: 2, ChipItem: "stone_fragment",
				FinalItem: "stone", FinalCount: 1, Respawn: 45 * time.Second, HalfSize: 8,
			},
		},
		Gear: []Gear{
			{Name: "sword", Slot: "main_hand"},
			{Name: "axe", Slot: "main_hand"},
			{Name: "bow", Slot: "main_hand"},
			{Name: "pickaxe", Slot: "off_hand"},
			{Name: "leather_armor", Slot: "armor"},
			{Name: "lucky_charm", Slot: "accessory"},
		},
		Actions: []ObjectAction{
			{Object: "tree", Action: "shake", Effect: EffectGather},
			{Object: "tree", Action: "cut", Effect: EffectDamage, Requires: []Requirement{{Item: "axe", Equipped: true}}},
			{Object: "rock", Action: "pick_up", Effect: EffectTake},
			{Object: "rock", Action: "break", Effect: EffectDamage, Requires: []Requirement{{Item: "pickaxe", Equipped: true}}},
		},
		Maps: []MapSpec{
			{
				Key:       "tavern_outside",
				Bounds:    &RectSpec{X: 0, Y: 0, W: 1000, H: 1000},
				Spawn:     &model.Vec2{X: 500, Y: 500},
				Obstacles: []RectSpec{{X: 480, Y: 180, W: 40, H: 40}},
				Transitions: []TransitionSpec{
					{
						Name:        "tavern_door",
						Area:        RectSpec{X: 950, Y: 400, W: 50, H: 200},
						Destination: "tavern_inside",
						Spawn:       model.Vec2{X: 50, Y: 500},
					},
				},
				NPCs: []NPCSpawnSpec{
					{Enemy: "goblin", Position: model.Vec2{X: 200, Y: 200}},
					{Enemy: "orc", Position: model.Vec2{X: 800, Y: 850}},
				},
				Objects: []ObjectSpawnSpec{
					{Kind: "tree", Position: model.Vec2{X: 300, Y: 700}},
					{Kind: "rock", Position: model.Vec2{X: 700, Y: 300}},
				},
			},
			{
				Key:    "tavern_inside",
				Bounds: &RectSpec{X: 0, Y: 0, W: 600, H: 1000},
				Spawn:  &model.Vec2{X: 50, Y: 500},
				Transitions: []TransitionSpec{
					{
						Name:        "front_door",
						Area:        RectSpec{X: 0, Y: 450, W: 20, H: 100},
						Destination: "tavern_outside",
						Spawn:       model.Vec2{X: 920, Y: 500},
					},
				},
				NPCs: []NPCSpawnSpec{
					{Enemy: "test_enemy", Position: model.Vec2{X: 400, Y: 250}, Persistent: true},
				},
			},
		},
	}
}

func enemy(name string, hp, speed, damage, attackRange, detection, leash float64) Enemy {
	return Enemy{
		Name:           name,
		MaxHealth:      hp,
		Speed:          speed,
		Damage:         damage,
		AttackRange:    attackRange,
		Detection:      detection,
		Leash:          leash,
		LeashTime:      8 * time.Second,
		AlertPause:     500 * time.Millisecond,
		AttackCooldown: 2 * time.Second,
		PatrolRadius:   100,
		HalfSize:       8,
		Shape:          "frontal_cone",
	}
}
