package model

import "time"

// Profile is the persistent part of a player: where it was and what it carried
// when its session ended.
type Profile struct {
	Username  string
	Instance  string
	Position  Vec2
	Health    float64
	MaxHealth float64
	Items     map[string]int
	// Equipment maps slot names to items.
	Equipment map[string]string
	UpdatedAt time.Time
}

// ProfileOf captures the profile of a player entity.
func ProfileOf(e *Entity, now time.Time) Profile {
	p := Profile{
		Username:  e.Owner,
		Instance:  e.Instance,
		Position:  e.Position,
		UpdatedAt: now,
	}
	if e.Player != nil {
		p.Username = e.Player.Username
		p.Health = e.Player.Health
		p.MaxHealth = e.Player.MaxHealth
		p.Items = make(map[string]int, len(e.Player.Items))
		for k, v := range e.Player.Items {
			p.Items[k] = v
		}
		p.Equipment = make(map[string]string, len(e.Player.Equipment))
		for slot, item := range e.Player.Equipment {
			p.Equipment[slot.String()] = item
		}
	}
	return p
}
