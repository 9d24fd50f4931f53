package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/udisondev/coopsim/internal/model"
)

// TileSize is the edge of one tile in world units.
const TileSize = 8.0

// SpawnTile marks the spawn point in a tile map.
const SpawnTile = 1

// TileMap is a rectangular grid of tile ids read from CSV.
type TileMap struct {
	Width  int
	Height int
	Tiles  []int
	Spawn  model.Vec2
	// Solid holds merged horizontal runs of solid tiles as obstacles.
	Solid []model.Rect
}

// Bounds returns the world-space bounds of the map.
func (m *TileMap) Bounds() model.Rect {
	return model.R(0, 0, float64(m.Width)*TileSize, float64(m.Height)*TileSize)
}

// At returns the tile id at column x, row y.
func (m *TileMap) At(x, y int) int {
	return m.Tiles[y*m.Width+x]
}

// LoadTileMap reads a CSV tile map from path.
func LoadTileMap(path string, solid []int) (*TileMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tile map: %w", err)
	}
	defer f.Close()
	return ParseTileMap(f, solid)
}

// ParseTileMap parses CSV rows of integer tile ids. Blank lines are skipped,
// every row must have the width of the first one. The centre of the last
// SpawnTile becomes the spawn point.
func ParseTileMap(r io.Reader, solid []int) (*TileMap, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	isSolid := make(map[int]bool, len(solid))
	for _, id := range solid {
		isSolid[id] = true
	}

	m := &TileMap{}
	found := false
	for y := 0; ; {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tile row %d: %w", y, err)
		}
		row := make([]int, 0, len(rec))
		for _, cell := range rec {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			id, err := strconv.Atoi(cell)
			if err != nil {
				return nil, fmt.Errorf("tile row %d: %w", y, err)
			}
			row = append(row, id)
		}
		if len(row) == 0 {
			continue
		}
		if m.Width == 0 {
			m.Width = len(row)
		} else if len(row) != m.Width {
			return nil, fmt.Errorf("tile row %d has %d columns, want %d", y, len(row), m.Width)
		}

		runStart := -1
		for x, id := range row {
			if id == SpawnTile {
				m.Spawn = model.V(float64(x)*TileSize+TileSize/2, float64(y)*TileSize+TileSize/2)
				found = true
			}
			switch {
			case isSolid[id] && runStart < 0:
				runStart = x
			case !isSolid[id] && runStart >= 0:
				m.Solid = append(m.Solid, tileRun(runStart, x, y))
				runStart = -1
			}
		}
		if runStart >= 0 {
			m.Solid = append(m.Solid, tileRun(runStart, len(row), y))
		}

		m.Tiles = append(m.Tiles, row...)
		y++
		m.Height = y
	}

	if m.Width == 0 {
		return nil, fmt.Errorf("tile map is empty")
	}
	if !found {
		return nil, ErrNoSpawnTile
	}
	return m, nil
}

func tileRun(from, to, y int) model.Rect {
	return model.R(float64(from)*TileSize, float64(y)*TileSize, float64(to)*TileSize, float64(y+1)*TileSize)
}
