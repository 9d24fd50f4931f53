package data

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"slices"
)

// CatalogEntry maps a registry key to its stable numeric id.
type CatalogEntry struct {
	ID   uint32 `json:"id"`
	Key  string `json:"key"`
	Type string `json:"type"` // map | enemy | item | object | weapon
}

// Catalog holds stable numeric ids for registry keys so clients can refer to
// resources compactly. Ids derive from an FNV-1a hash of "type:key"; hash
// collisions are resolved by probing the next free id in key order.
type Catalog struct {
	entries []CatalogEntry
	byKey   map[string]uint32
	byID    map[uint32]CatalogEntry
}

// ResourceID returns the base id of a resource key before collision probing.
func ResourceID(kind, key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(kind))
	h.Write([]byte{':'})
	h.Write([]byte(key))
	id := h.Sum32()
	if id == 0 {
		id = 1
	}
	return id
}

func newCatalog(r *Registry) (*Catalog, error) {
	var pending []CatalogEntry
	add := func(kind, key string) {
		pending = append(pending, CatalogEntry{Key: key, Type: kind})
	}
	for _, m := range r.Maps {
		add("map", m.Key)
	}
	for _, e := range r.Enemies {
		add("enemy", e.Name)
	}
	for _, w := range r.Weapons {
		add("weapon", w.Name)
	}
	for _, o := range r.Objects {
		add("object", o.Name)
	}
	for _, c := range r.Consumables {
		add("item", c.Name)
	}
	for _, g := range r.Gear {
		add("item", g.Name)
	}
	for _, o := range r.Objects {
		for _, it := range []string{o.ResourceItem, o.ChipItem, o.FinalItem} {
			if it != "" {
				add("item", it)
			}
		}
	}
	add("item", "arrow")

	slices.SortFunc(pending, func(a, b CatalogEntry) int {
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})

	c := &Catalog{
		byKey: make(map[string]uint32, len(pending)),
		byID:  make(map[uint32]CatalogEntry, len(pending)),
	}
	for _, e := range pending {
		full := e.Type + ":" + e.Key
		if _, ok := c.byKey[full]; ok {
			continue
		}
		id := ResourceID(e.Type, e.Key)
		for probes := 0; ; probes++ {
			if _, taken := c.byID[id]; !taken {
				break
			}
			if probes > 1000 {
				return nil, fmt.Errorf("catalog: too many id collisions for %s", full)
			}
			id++
			if id == 0 {
				id = 1
			}
		}
		e.ID = id
		c.byKey[full] = id
		c.byID[id] = e
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// ID returns the id of a typed key.
func (c *Catalog) ID(kind, key string) (uint32, bool) {
	id, ok := c.byKey[kind+":"+key]
	return id, ok
}

// Lookup returns the entry with the given id.
func (c *Catalog) Lookup(id uint32) (CatalogEntry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Entries returns all entries sorted by type and key.
func (c *Catalog) Entries() []CatalogEntry {
	return c.entries
}
