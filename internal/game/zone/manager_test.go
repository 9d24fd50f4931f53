package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/coopsim/internal/model"
)

func eastGate() *TransitionZone {
	return &TransitionZone{
		Name:        "east_gate",
		Area:        model.R(950, 400, 1000, 600),
		Destination: "b",
		Spawn:       model.V(50, 500),
	}
}

func TestManager_ZoneAt(t *testing.T) {
	m := NewManager(model.R(0, 0, 1000, 1000))
	require.NoError(t, m.Add(eastGate()))

	tests := []struct {
		name   string
		p      model.Vec2
		wantIn bool
	}{
		{name: "inside", p: model.V(975, 500), wantIn: true},
		{name: "on edge", p: model.V(950, 400), wantIn: true},
		{name: "left of zone", p: model.V(949, 500), wantIn: false},
		{name: "above zone", p: model.V(975, 601), wantIn: false},
		{name: "far away", p: model.V(10, 10), wantIn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := m.ZoneAt(tt.p)
			if tt.wantIn {
				require.NotNil(t, z)
				assert.Equal(t, "b", z.Destination)
				assert.Equal(t, model.V(50, 500), z.Spawn)
			} else {
				assert.Nil(t, z)
			}
		})
	}
}

func TestManager_ZoneSpanningGridCells(t *testing.T) {
	m := NewManager(model.R(0, 0, 2000, 2000))
	wide := &TransitionZone{Name: "bridge", Area: model.R(100, 100, 900, 140), Destination: "b"}
	require.NoError(t, m.Add(wide))

	for _, x := range []float64{100, 255, 256, 511, 700, 900} {
		assert.NotNil(t, m.ZoneAt(model.V(x, 120)), "x=%v", x)
	}
}

func TestManager_AddRejects(t *testing.T) {
	tests := []struct {
		name string
		zone *TransitionZone
		want error
	}{
		{
			name: "overlap",
			zone: &TransitionZone{Name: "overlap", Area: model.R(900, 500, 980, 700), Destination: "c"},
			want: ErrOverlappingZones,
		},
		{
			name: "empty area",
			zone: &TransitionZone{Name: "flat", Area: model.R(10, 10, 10, 50), Destination: "c"},
			want: ErrEmptyArea,
		},
		{
			name: "no destination",
			zone: &TransitionZone{Name: "nowhere", Area: model.R(10, 10, 50, 50)},
			want: ErrNoDestination,
		},
		{
			name: "outside bounds",
			zone: &TransitionZone{Name: "outside", Area: model.R(990, 10, 1100, 50), Destination: "c"},
			want: ErrOutsideInstance,
		},
		{
			name: "duplicate name",
			zone: &TransitionZone{Name: "east_gate", Area: model.R(10, 10, 50, 50), Destination: "c"},
			want: ErrDuplicateZoneName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(model.R(0, 0, 1000, 1000))
			require.NoError(t, m.Add(eastGate()))

			err := m.Add(tt.zone)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, m.Len())
		})
	}
}

func TestManager_TouchingZonesAllowed(t *testing.T) {
	m := NewManager(model.R(0, 0, 1000, 1000))
	require.NoError(t, m.Add(eastGate()))
	require.NoError(t, m.Add(&TransitionZone{Name: "south", Area: model.R(950, 600, 1000, 700), Destination: "c"}))
	assert.Equal(t, 2, m.Len())
}
