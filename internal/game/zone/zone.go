// Package zone implements transition zones: sub-regions of an instance whose
// entry, combined with an explicit transition action, relocates an entity to
// another instance.
package zone

import (
	"errors"

	"github.com/udisondev/coopsim/internal/model"
)

// Sentinel errors for zone registration.
var (
	ErrEmptyArea         = errors.New("zone area is empty")
	ErrNoDestination     = errors.New("zone has no destination")
	ErrOverlappingZones  = errors.New("zone overlaps an existing zone")
	ErrOutsideInstance   = errors.New("zone lies outside instance bounds")
	ErrDuplicateZoneName = errors.New("duplicate zone name")
)

// TransitionZone maps an area of one instance to a spawn point in another.
type TransitionZone struct {
	Name        string
	Area        model.Rect
	Destination string
	Spawn       model.Vec2
}

// Contains reports whether p is inside the zone area.
func (z *TransitionZone) Contains(p model.Vec2) bool {
	return z.Area.Contains(p)
}

// Validate checks the zone on its own.
func (z *TransitionZone) Validate() error {
	if z.Area.Empty() {
		return ErrEmptyArea
	}
	if z.Destination == "" {
		return ErrNoDestination
	}
	return nil
}
