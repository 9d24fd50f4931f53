// Package data loads the static game registry: weapons, enemy templates,
// consumables, interactable object kinds and maps. The registry is loaded once
// at startup and is read-only afterwards.
package data

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/coopsim/internal/game/instance"
	"github.com/udisondev/coopsim/internal/game/zone"
	"github.com/udisondev/coopsim/internal/model"
)

// Sentinel errors for registry validation.
var (
	ErrNoMaps             = errors.New("registry has no maps")
	ErrUnknownStartingMap = errors.New("starting map is not defined")
	ErrUnknownDestination = errors.New("transition destination is not defined")
	ErrUnknownEnemy       = errors.New("unknown enemy template")
	ErrDuplicateEntry     = errors.New("duplicate registry entry")
	ErrMissingWeapon      = errors.New("weapon shape has no definition")
	ErrNoSpawnTile        = errors.New("tile map has no spawn tile")
	ErrSpawnOutsideTarget = errors.New("transition spawn outside destination bounds")
	ErrUnknownObject      = errors.New("object kind has no definition")
)

// Weapon is the tuning of one weapon shape.
type Weapon struct {
	Name       string        `yaml:"name"`
	Shape      string        `yaml:"shape"` // wide_arc | frontal_cone | ranged
	Damage     float64       `yaml:"damage"`
	Range      float64       `yaml:"range"`
	ArcDegrees float64       `yaml:"arc_degrees"` // full angular window
	Lock       time.Duration `yaml:"lock"`        // attacker movement lock

	// Ranged only.
	ProjectileSpeed  float64 `yaml:"projectile_speed"`
	ProjectileTTL    float64 `yaml:"projectile_ttl"` // seconds
	ProjectileRadius float64 `yaml:"projectile_radius"`
	Ammo             string  `yaml:"ammo"`

	// Item is the inventory item a player must hold to attack with the
	// weapon. Defaults to Name.
	Item string `yaml:"item"`

	shape model.WeaponShape
}

// WeaponShape returns the parsed shape.
func (w *Weapon) WeaponShape() model.WeaponShape { return w.shape }

// HalfAngle returns half of the angular window in radians.
func (w *Weapon) HalfAngle() float64 {
	return w.ArcDegrees * math.Pi / 360
}

// Enemy is an NPC template.
type Enemy struct {
	Name           string        `yaml:"name"`
	MaxHealth      float64       `yaml:"max_health"`
	Speed          float64       `yaml:"speed"`
	Damage         float64       `yaml:"damage"`
	AttackRange    float64       `yaml:"attack_range"`
	Detection      float64       `yaml:"detection"`
	Leash          float64       `yaml:"leash"`
	LeashTime      time.Duration `yaml:"leash_time"`
	AlertPause     time.Duration `yaml:"alert_pause"`
	AttackCooldown time.Duration `yaml:"attack_cooldown"`
	PatrolRadius   float64       `yaml:"patrol_radius"`
	HalfSize       float64       `yaml:"half_size"`
	Shape          string        `yaml:"shape"` // hit test reused from player weapons

	shape model.WeaponShape
}

// WeaponShape returns the parsed attack shape.
func (e *Enemy) WeaponShape() model.WeaponShape { return e.shape }

// Consumable is an inventory item that heals when used.
type Consumable struct {
	Name string  `yaml:"name"`
	Heal float64 `yaml:"heal"`
}

// ObjectKind is the tuning of one interactable object kind.
type ObjectKind struct {
	Name         string        `yaml:"name"`
	MaxHealth    float64       `yaml:"max_health"`
	Resources    int           `yaml:"resources"`     // gathered before the object is damaged
	ResourceItem string        `yaml:"resource_item"` // e.g. fruit
	ChipItem     string        `yaml:"chip_item"`     // per harvest hit
	FinalItem    string        `yaml:"final_item"`    // on depletion
	FinalCount   int           `yaml:"final_count"`
	Respawn      time.Duration `yaml:"respawn"`
	HalfSize     float64       `yaml:"half_size"`

	kind model.ObjectKind
}

// Kind returns the parsed object kind.
func (o *ObjectKind) Kind() model.ObjectKind { return o.kind }

// Gear is an item that can be equipped.
type Gear struct {
	Name string `yaml:"name"`
	Slot string `yaml:"slot"` // main_hand | off_hand | armor | accessory

	slot model.EquipSlot
}

// EquipSlot returns the parsed slot.
func (g *Gear) EquipSlot() model.EquipSlot { return g.slot }

// Effect is what an object action does to the object.
type Effect string

const (
	// EffectGather takes one loose resource; the object is not damaged.
	EffectGather Effect = "gather"
	// EffectDamage takes one point of health with a chip item; at zero the
	// final items are granted and the object is depleted.
	EffectDamage Effect = "damage"
	// EffectTake removes the whole object at once for its final items.
	EffectTake Effect = "take"
)

// Requirement is a precondition of an object action.
type Requirement struct {
	Item string `yaml:"item"`
	// Equipped requires the item in either hand; otherwise holding Count
	// units is enough.
	Equipped bool `yaml:"equipped"`
	Count    int  `yaml:"count"`
}

// Met reports whether p satisfies the requirement.
func (r Requirement) Met(p *model.PlayerState) bool {
	if r.Equipped {
		return p.Wields(r.Item)
	}
	return p.ItemCount(r.Item) >= max(r.Count, 1)
}

// ObjectAction is one contextual action on an object kind.
type ObjectAction struct {
	Object   string        `yaml:"object"`
	Action   string        `yaml:"action"` // shake | cut | pick_up | break
	Effect   Effect        `yaml:"effect"`
	Requires []Requirement `yaml:"requires"`

	kind   model.ObjectKind
	action model.Action
}

// ActionKind returns the parsed action.
func (a *ObjectAction) ActionKind() model.Action { return a.action }

// Allowed reports whether p meets every requirement of the action.
func (a *ObjectAction) Allowed(p *model.PlayerState) bool {
	for _, r := range a.Requires {
		if !r.Met(p) {
			return false
		}
	}
	return true
}

type actionKey struct {
	kind   model.ObjectKind
	action model.Action
}

// RectSpec is a rectangle in origin + size form.
type RectSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

// Rect converts the spec to a model.Rect.
func (r RectSpec) Rect() model.Rect { return model.R(r.X, r.Y, r.X+r.W, r.Y+r.H) }

// TransitionSpec is a transition zone declaration.
type TransitionSpec struct {
	Name        string     `yaml:"name"`
	Area        RectSpec   `yaml:"area"`
	Destination string     `yaml:"destination"`
	Spawn       model.Vec2 `yaml:"spawn"`
}

// NPCSpawnSpec places an enemy on a map.
type NPCSpawnSpec struct {
	Enemy      string     `yaml:"enemy"`
	Position   model.Vec2 `yaml:"position"`
	Persistent bool       `yaml:"persistent"`
}

// ObjectSpawnSpec places an interactable object on a map.
type ObjectSpawnSpec struct {
	Kind     string     `yaml:"kind"`
	Position model.Vec2 `yaml:"position"`
}

// MapSpec describes one map. Either Bounds or Tiles must be set; with Tiles
// the bounds, spawn point and solid obstacles come from the CSV tile map.
type MapSpec struct {
	Key         string            `yaml:"key"`
	Tiles       string            `yaml:"tiles"` // CSV path relative to the registry file
	SolidTiles  []int             `yaml:"solid_tiles"`
	Bounds      *RectSpec         `yaml:"bounds"`
	Spawn       *model.Vec2       `yaml:"spawn"`
	Obstacles   []RectSpec        `yaml:"obstacles"`
	Transitions []TransitionSpec  `yaml:"transitions"`
	NPCs        []NPCSpawnSpec    `yaml:"npcs"`
	Objects     []ObjectSpawnSpec `yaml:"objects"`

	tiles *TileMap
}

// Registry is the loaded static game data.
type Registry struct {
	StartingMap string       `yaml:"starting_map"`
	Weapons     []Weapon     `yaml:"weapons"`
	Enemies     []Enemy      `yaml:"enemies"`
	Consumables []Consumable `yaml:"consumables"`
	Objects     []ObjectKind   `yaml:"objects"`
	Gear        []Gear         `yaml:"gear"`
	Actions     []ObjectAction `yaml:"actions"`
	Maps        []MapSpec      `yaml:"maps"`

	weapons     map[model.WeaponShape]*Weapon
	enemies     map[string]*Enemy
	consumables map[string]*Consumable
	objects     map[model.ObjectKind]*ObjectKind
	gear        map[string]*Gear
	actions     map[actionKey]*ObjectAction
	maps        map[string]*MapSpec
	catalog     *Catalog
}

// Load reads the registry from path. An empty path or a missing file yields
// the built-in defaults.
func Load(path string) (*Registry, error) {
	reg := Defaults()
	if strings.TrimSpace(path) == "" {
		return reg, reg.build("")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("registry file not found, using built-in defaults", "path", path)
			return reg, reg.build("")
		}
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}

	// Списки в файле полностью заменяют дефолтные.
	if err := yaml.Unmarshal(b, reg); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	if err := reg.build(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return reg, nil
}

// build normalizes entries, resolves tile maps, indexes and validates.
func (r *Registry) build(baseDir string) error {
	r.weapons = make(map[model.WeaponShape]*Weapon, len(r.Weapons))
	r.enemies = make(map[string]*Enemy, len(r.Enemies))
	r.consumables = make(map[string]*Consumable, len(r.Consumables))
	r.objects = make(map[model.ObjectKind]*ObjectKind, len(r.Objects))
	r.gear = make(map[string]*Gear, len(r.Gear))
	r.actions = make(map[actionKey]*ObjectAction, len(r.Actions))
	r.maps = make(map[string]*MapSpec, len(r.Maps))

	for i := range r.Weapons {
		w := &r.Weapons[i]
		shape, err := model.ParseWeaponShape(w.Shape)
		if err != nil {
			return fmt.Errorf("weapon %q: %w", w.Name, err)
		}
		w.shape = shape
		if w.Ammo == "" && shape == model.WeaponRanged {
			w.Ammo = model.Ammo
		}
		if w.Item == "" {
			w.Item = w.Name
		}
		if _, dup := r.weapons[shape]; dup {
			return fmt.Errorf("weapon shape %s: %w", shape, ErrDuplicateEntry)
		}
		r.weapons[shape] = w
	}
	for _, shape := range []model.WeaponShape{model.WeaponWideArc, model.WeaponFrontalCone, model.WeaponRanged} {
		if _, ok := r.weapons[shape]; !ok {
			return fmt.Errorf("%s: %w", shape, ErrMissingWeapon)
		}
	}

	for i := range r.Enemies {
		e := &r.Enemies[i]
		e.Name = strings.ToLower(strings.TrimSpace(e.Name))
		if e.Shape == "" {
			e.Shape = model.WeaponFrontalCone.String()
		}
		shape, err := model.ParseWeaponShape(e.Shape)
		if err != nil || shape == model.WeaponRanged {
			return fmt.Errorf("enemy %q: unsupported shape %q", e.Name, e.Shape)
		}
		e.shape = shape
		if e.HalfSize <= 0 {
			e.HalfSize = 8
		}
		if e.MaxHealth <= 0 || e.Speed <= 0 {
			return fmt.Errorf("enemy %q: max_health and speed must be positive", e.Name)
		}
		if _, dup := r.enemies[e.Name]; dup {
			return fmt.Errorf("enemy %q: %w", e.Name, ErrDuplicateEntry)
		}
		r.enemies[e.Name] = e
	}

	for i := range r.Consumables {
		c := &r.Consumables[i]
		if _, dup := r.consumables[c.Name]; dup {
			return fmt.Errorf("consumable %q: %w", c.Name, ErrDuplicateEntry)
		}
		r.consumables[c.Name] = c
	}

	for i := range r.Objects {
		o := &r.Objects[i]
		kind, err := model.ParseObjectKind(o.Name)
		if err != nil {
			return err
		}
		o.kind = kind
		if o.HalfSize <= 0 {
			o.HalfSize = 8
		}
		if _, dup := r.objects[kind]; dup {
			return fmt.Errorf("object %q: %w", o.Name, ErrDuplicateEntry)
		}
		r.objects[kind] = o
	}

	for i := range r.Gear {
		g := &r.Gear[i]
		slot, err := model.ParseEquipSlot(g.Slot)
		if err != nil {
			return fmt.Errorf("gear %q: %w", g.Name, err)
		}
		g.slot = slot
		if _, dup := r.gear[g.Name]; dup {
			return fmt.Errorf("gear %q: %w", g.Name, ErrDuplicateEntry)
		}
		r.gear[g.Name] = g
	}

	for i := range r.Actions {
		a := &r.Actions[i]
		kind, err := model.ParseObjectKind(a.Object)
		if err != nil {
			return fmt.Errorf("action %q: %w", a.Action, err)
		}
		if _, ok := r.objects[kind]; !ok {
			return fmt.Errorf("action %q on %q: %w", a.Action, a.Object, ErrUnknownObject)
		}
		act, err := model.ParseAction(a.Action)
		if err != nil || act == model.ActionAuto {
			return fmt.Errorf("object %q: unsupported action %q", a.Object, a.Action)
		}
		switch a.Effect {
		case EffectGather, EffectDamage, EffectTake:
		default:
			return fmt.Errorf("action %s %s: unknown effect %q", a.Object, a.Action, a.Effect)
		}
		for _, req := range a.Requires {
			if req.Item == "" {
				return fmt.Errorf("action %s %s: requirement without item", a.Object, a.Action)
			}
		}
		a.kind, a.action = kind, act
		key := actionKey{kind: kind, action: act}
		if _, dup := r.actions[key]; dup {
			return fmt.Errorf("action %s %s: %w", a.Object, a.Action, ErrDuplicateEntry)
		}
		r.actions[key] = a
	}

	for i := range r.Maps {
		m := &r.Maps[i]
		m.Key = strings.ToLower(strings.TrimSpace(m.Key))
		if _, dup := r.maps[m.Key]; dup {
			return fmt.Errorf("map %q: %w", m.Key, ErrDuplicateEntry)
		}
		if m.Tiles != "" {
			path := m.Tiles
			if !filepath.IsAbs(path) && baseDir != "" {
				path = filepath.Join(baseDir, path)
			}
			tm, err := LoadTileMap(path, m.SolidTiles)
			if err != nil {
				return fmt.Errorf("map %q: %w", m.Key, err)
			}
			m.tiles = tm
		}
		r.maps[m.Key] = m
	}

	if err := r.validate(); err != nil {
		return err
	}

	cat, err := newCatalog(r)
	if err != nil {
		return err
	}
	r.catalog = cat

	slog.Info("registry loaded",
		"maps", len(r.Maps),
		"enemies", len(r.Enemies),
		"weapons", len(r.Weapons),
		"starting_map", r.StartingMap)
	return nil
}

func (r *Registry) validate() error {
	if len(r.Maps) == 0 {
		return ErrNoMaps
	}
	if _, ok := r.maps[r.StartingMap]; !ok {
		return fmt.Errorf("%q: %w", r.StartingMap, ErrUnknownStartingMap)
	}
	for _, m := range r.Maps {
		for _, tr := range m.Transitions {
			if _, ok := r.maps[tr.Destination]; !ok {
				return fmt.Errorf("map %q transition to %q: %w", m.Key, tr.Destination, ErrUnknownDestination)
			}
		}
		for _, n := range m.NPCs {
			if _, ok := r.enemies[n.Enemy]; !ok {
				return fmt.Errorf("map %q: %q: %w", m.Key, n.Enemy, ErrUnknownEnemy)
			}
		}
		for _, o := range m.Objects {
			kind, err := model.ParseObjectKind(o.Kind)
			if err != nil {
				return fmt.Errorf("map %q: %w", m.Key, err)
			}
			if _, ok := r.objects[kind]; !ok {
				return fmt.Errorf("map %q: %q: %w", m.Key, o.Kind, ErrUnknownObject)
			}
		}
		if m.tiles == nil && m.Bounds == nil {
			return fmt.Errorf("map %q: either tiles or bounds is required", m.Key)
		}
	}
	return nil
}

// Weapon returns the tuning of a weapon shape.
func (r *Registry) Weapon(shape model.WeaponShape) (*Weapon, bool) {
	w, ok := r.weapons[shape]
	return w, ok
}

// Enemy returns an enemy template by name.
func (r *Registry) Enemy(name string) (*Enemy, bool) {
	e, ok := r.enemies[name]
	return e, ok
}

// Consumable returns a consumable by item name.
func (r *Registry) Consumable(name string) (*Consumable, bool) {
	c, ok := r.consumables[name]
	return c, ok
}

// Object returns the tuning of an object kind.
func (r *Registry) Object(kind model.ObjectKind) (*ObjectKind, bool) {
	o, ok := r.objects[kind]
	return o, ok
}

// GearOf returns the equipment entry of an item.
func (r *Registry) GearOf(item string) (*Gear, bool) {
	g, ok := r.gear[item]
	return g, ok
}

// ObjectAction returns the contextual action of an object kind.
func (r *Registry) ObjectAction(kind model.ObjectKind, action model.Action) (*ObjectAction, bool) {
	a, ok := r.actions[actionKey{kind: kind, action: action}]
	return a, ok
}

// DefaultAction picks the action used when a client does not name one:
// gathering while the object has loose resources, damaging otherwise, and
// taking the whole object when it cannot be damaged.
func (r *Registry) DefaultAction(kind model.ObjectKind, hasResources bool) (*ObjectAction, bool) {
	var gather, damage, take *ObjectAction
	for i := range r.Actions {
		a := &r.Actions[i]
		if a.kind != kind {
			continue
		}
		switch {
		case a.Effect == EffectGather && gather == nil:
			gather = a
		case a.Effect == EffectDamage && damage == nil:
			damage = a
		case a.Effect == EffectTake && take == nil:
			take = a
		}
	}
	for _, a := range []*ObjectAction{gather, damage, take} {
		if a == nil || (a == gather && !hasResources) {
			continue
		}
		return a, true
	}
	return nil, false
}

// Catalog returns the stable numeric ids of all registry entries.
func (r *Registry) Catalog() *Catalog { return r.catalog }

// Templates builds instance templates for every map.
func (r *Registry) Templates() ([]*instance.Template, error) {
	out := make([]*instance.Template, 0, len(r.Maps))
	for i := range r.Maps {
		t, err := r.template(&r.Maps[i])
		if err != nil {
			return nil, fmt.Errorf("map %q: %w", r.Maps[i].Key, err)
		}
		out = append(out, t)
	}

	byKey := make(map[string]*instance.Template, len(out))
	for _, t := range out {
		byKey[t.Key] = t
	}
	for _, t := range out {
		for _, z := range t.Zones.Zones() {
			dest := byKey[z.Destination]
			if !dest.Bounds.Contains(z.Spawn) {
				return nil, fmt.Errorf("map %q zone %q: %w", t.Key, z.Name, ErrSpawnOutsideTarget)
			}
		}
	}
	return out, nil
}

func (r *Registry) template(m *MapSpec) (*instance.Template, error) {
	t := &instance.Template{Key: m.Key}

	if m.tiles != nil {
		t.Bounds = m.tiles.Bounds()
		t.Spawn = m.tiles.Spawn
		t.Obstacles = append(t.Obstacles, m.tiles.Solid...)
	}
	if m.Bounds != nil {
		t.Bounds = m.Bounds.Rect()
	}
	if m.Spawn != nil {
		t.Spawn = *m.Spawn
	} else if m.tiles == nil {
		t.Spawn = t.Bounds.Center()
	}
	for _, o := range m.Obstacles {
		t.Obstacles = append(t.Obstacles, o.Rect())
	}

	zones := zone.NewManager(t.Bounds)
	for _, tr := range m.Transitions {
		z := &zone.TransitionZone{
			Name:        tr.Name,
			Area:        tr.Area.Rect(),
			Destination: tr.Destination,
			Spawn:       tr.Spawn,
		}
		if err := zones.Add(z); err != nil {
			return nil, err
		}
	}
	t.Zones = zones

	for _, n := range m.NPCs {
		t.NPCs = append(t.NPCs, instance.NPCSpawn{
			Template:   n.Enemy,
			Position:   n.Position,
			Persistent: n.Persistent,
		})
	}
	for _, o := range m.Objects {
		kind, _ := model.ParseObjectKind(o.Kind)
		t.Objects = append(t.Objects, instance.ObjectSpawn{Kind: kind, Position: o.Position})
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
