package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(it *LineIterator) []cell {
	var points []cell
	for it.Next() {
		points = append(points, cell{it.X(), it.Y()})
	}
	return points
}

func TestLineIteratorHorizontal(t *testing.T) {
	points := collect(NewLineIterator(0, 0, 5, 0))

	assert.Equal(t, 6, len(points), "should visit 6 points (0..5)")
	assert.Equal(t, int32(0), points[0].x)
	assert.Equal(t, int32(5), points[5].x)
	for _, p := range points {
		assert.Equal(t, int32(0), p.y)
	}
}

func TestLineIteratorVertical(t *testing.T) {
	points := collect(NewLineIterator(0, 0, 0, 3))

	assert.Equal(t, 4, len(points))
	assert.Equal(t, int32(0), points[0].y)
	assert.Equal(t, int32(3), points[3].y)
}

func TestLineIteratorDiagonal(t *testing.T) {
	points := collect(NewLineIterator(0, 0, 3, 3))

	assert.Equal(t, cell{0, 0}, points[0])
	assert.Equal(t, cell{3, 3}, points[len(points)-1])
}

func TestLineIteratorNegative(t *testing.T) {
	points := collect(NewLineIterator(5, 5, 2, 3))

	assert.Equal(t, cell{5, 5}, points[0])
	assert.Equal(t, cell{2, 3}, points[len(points)-1])
	assert.Equal(t, 4, len(points), "x-dominant line visits one cell per x step")
}

func TestLineIteratorSamePoint(t *testing.T) {
	assert.Equal(t, 1, len(collect(NewLineIterator(3, 3, 3, 3))))
}
