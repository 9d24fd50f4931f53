package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/coopsim/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StartingMap, reg.StartingMap)

	sword, ok := reg.Weapon(model.WeaponWideArc)
	require.True(t, ok)
	assert.Equal(t, 25.0, sword.Damage)
	assert.Equal(t, 80.0, sword.Range)
	assert.InDelta(t, 0.785398, sword.HalfAngle(), 1e-5)

	bow, ok := reg.Weapon(model.WeaponRanged)
	require.True(t, ok)
	assert.Equal(t, 400.0, bow.ProjectileSpeed)
	assert.Equal(t, model.Ammo, bow.Ammo)

	troll, ok := reg.Enemy("troll")
	require.True(t, ok)
	assert.Equal(t, 150.0, troll.MaxHealth)
	assert.Equal(t, 180.0, troll.Leash)
	assert.Equal(t, model.WeaponFrontalCone, troll.WeaponShape())

	potion, ok := reg.Consumable("mega_potion")
	require.True(t, ok)
	assert.Equal(t, 100.0, potion.Heal)

	tree, ok := reg.Object(model.ObjectTree)
	require.True(t, ok)
	assert.Equal(t, 2, tree.Resources)
}

func TestRegistry_GearAndActions(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)

	pickaxe, ok := reg.GearOf("pickaxe")
	require.True(t, ok)
	assert.Equal(t, model.SlotOffHand, pickaxe.EquipSlot())
	_, ok = reg.GearOf("fruit")
	assert.False(t, ok, "consumables are not gear")

	bow, _ := reg.Weapon(model.WeaponRanged)
	assert.Equal(t, "bow", bow.Item, "weapon item defaults to its name")

	cut, ok := reg.ObjectAction(model.ObjectTree, model.ActionCut)
	require.True(t, ok)
	assert.Equal(t, EffectDamage, cut.Effect)

	p := &model.PlayerState{}
	assert.False(t, cut.Allowed(p))
	p.GiveItem("axe", 1)
	assert.False(t, cut.Allowed(p), "holding the axe is not enough")
	p.Equip(model.SlotMainHand, "axe")
	assert.True(t, cut.Allowed(p))

	_, ok = reg.ObjectAction(model.ObjectRock, model.ActionShake)
	assert.False(t, ok)

	tests := []struct {
		kind      model.ObjectKind
		resources bool
		want      model.Action
	}{
		{kind: model.ObjectTree, resources: true, want: model.ActionShake},
		{kind: model.ObjectTree, resources: false, want: model.ActionCut},
		{kind: model.ObjectRock, resources: false, want: model.ActionBreak},
	}
	for _, tt := range tests {
		a, ok := reg.DefaultAction(tt.kind, tt.resources)
		require.True(t, ok)
		assert.Equal(t, tt.want, a.ActionKind(), "%s resources=%v", tt.kind, tt.resources)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	reg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Len(t, reg.Maps, 2)
}

func TestRegistry_Templates(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)

	templates, err := reg.Templates()
	require.NoError(t, err)
	require.Len(t, templates, 2)

	outside := templates[0]
	assert.Equal(t, "tavern_outside", outside.Key)
	assert.Equal(t, model.R(0, 0, 1000, 1000), outside.Bounds)

	z := outside.ZoneAt(model.V(975, 500))
	require.NotNil(t, z)
	assert.Equal(t, "tavern_inside", z.Destination)
	assert.Equal(t, model.V(50, 500), z.Spawn)

	assert.Nil(t, outside.ZoneAt(model.V(900, 500)))
	assert.Len(t, outside.NPCs, 2)
	assert.Len(t, outside.Objects, 2)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	csv := "0,0,0,0\n0,1,2,2\n0,0,0,0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cellar.csv"), []byte(csv), 0o644))

	yml := `
starting_map: cellar
enemies:
  - name: Rat
    max_health: 5
    speed: 90
    damage: 2
    attack_range: 10
    detection: 60
    leash: 90
    leash_time: 3s
maps:
  - key: cellar
    tiles: cellar.csv
    solid_tiles: [2]
    npcs:
      - enemy: rat
        position: {x: 4, y: 20}
`
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)

	rat, ok := reg.Enemy("rat")
	require.True(t, ok, "enemy names are normalized to lowercase")
	assert.Equal(t, 3*time.Second, rat.LeashTime)
	assert.Equal(t, 8.0, rat.HalfSize)

	// Оружие не переопределено в файле и берётся из дефолтов.
	_, ok = reg.Weapon(model.WeaponFrontalCone)
	assert.True(t, ok)

	templates, err := reg.Templates()
	require.NoError(t, err)
	require.Len(t, templates, 1)
	cellar := templates[0]
	assert.Equal(t, model.R(0, 0, 32, 24), cellar.Bounds)
	assert.Equal(t, model.V(12, 12), cellar.Spawn)
	assert.Equal(t, []model.Rect{model.R(16, 8, 32, 16)}, cellar.Obstacles)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want error
	}{
		{
			name: "unknown starting map",
			yml:  "starting_map: nowhere\n",
			want: ErrUnknownStartingMap,
		},
		{
			name: "unknown destination",
			yml: `
starting_map: a
maps:
  - key: a
    bounds: {x: 0, y: 0, w: 100, h: 100}
    transitions:
      - name: gate
        area: {x: 90, y: 0, w: 10, h: 10}
        destination: b
`,
			want: ErrUnknownDestination,
		},
		{
			name: "unknown enemy",
			yml: `
starting_map: a
maps:
  - key: a
    bounds: {x: 0, y: 0, w: 100, h: 100}
    npcs:
      - enemy: dragon
        position: {x: 10, y: 10}
`,
			want: ErrUnknownEnemy,
		},
		{
			name: "no maps",
			yml:  "maps: []\n",
			want: ErrNoMaps,
		},
		{
			name: "action on unknown object",
			yml: `
objects:
  - {name: rock, max_health: 2}
actions:
  - {object: tree, action: shake, effect: gather}
`,
			want: ErrUnknownObject,
		},
		{
			name: "duplicate gear",
			yml: `
gear:
  - {name: axe, slot: main_hand}
  - {name: axe, slot: off_hand}
`,
			want: ErrDuplicateEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registry.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yml), 0o644))

			_, err := Load(path)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegistry_TemplatesRejectsBadSpawn(t *testing.T) {
	reg := Defaults()
	reg.Maps[0].Transitions[0].Spawn = model.V(5000, 500)
	require.NoError(t, reg.build(""))

	_, err := reg.Templates()
	require.ErrorIs(t, err, ErrSpawnOutsideTarget)
}

func TestLoad_SampleRegistry(t *testing.T) {
	reg, err := Load(filepath.Join("..", "..", "config", "registry.yaml"))
	require.NoError(t, err)
	require.Len(t, reg.Maps, 3)

	templates, err := reg.Templates()
	require.NoError(t, err)

	byKey := make(map[string]int, len(templates))
	for i, tmpl := range templates {
		byKey[tmpl.Key] = i
	}
	require.Contains(t, byKey, "tavern_cellar")

	cellar := templates[byKey["tavern_cellar"]]
	assert.Equal(t, model.R(0, 0, 160, 120), cellar.Bounds)
	assert.Equal(t, model.V(20, 60), cellar.Spawn)
	assert.NotEmpty(t, cellar.Obstacles)

	z := cellar.ZoneAt(model.V(140, 60))
	require.NotNil(t, z)
	assert.Equal(t, "tavern_inside", z.Destination)

	troll, ok := reg.Enemy("troll")
	require.True(t, ok)
	assert.Equal(t, model.WeaponWideArc, troll.WeaponShape())
}
