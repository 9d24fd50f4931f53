package geo

import (
	"container/heap"
	"math"

	"github.com/udisondev/coopsim/internal/model"
)

// Pathfinding configuration.
const (
	MaxPathfindIterations = 20000
	WeightLow             = 1.0
	WeightDiagonal        = math.Sqrt2
)

// CanMoveDirect reports whether a box of half-size half can travel in a
// straight line from a to b without leaving bounds or touching an obstacle.
func (g *Geometry) CanMoveDirect(a, b model.Vec2, half float64) bool {
	if !g.Inside(model.Box(a, half)) || !g.Inside(model.Box(b, half)) {
		return false
	}
	for _, o := range g.obstacles {
		grown := model.Rect{
			Min: model.V(o.Min.X-half, o.Min.Y-half),
			Max: model.V(o.Max.X+half, o.Max.Y+half),
		}
		// Касание ребра не считается пересечением, поэтому сжимаем на эпсилон.
		grown.Min = grown.Min.Add(model.V(1e-9, 1e-9))
		grown.Max = grown.Max.Sub(model.V(1e-9, 1e-9))
		if grown.SegmentIntersects(a, b) {
			return false
		}
	}
	return true
}

// FindPath finds waypoints for a box of half-size half from `from` to `to`
// using A* over the geometry grid. The returned path excludes `from` and ends
// at `to`. Returns nil if no path was found within MaxPathfindIterations.
func (g *Geometry) FindPath(from, to model.Vec2, half float64) []model.Vec2 {
	if g.CanMoveDirect(from, to, half) {
		return []model.Vec2{to}
	}

	start := g.cellOf(from)
	goal := g.cellOf(to)
	if !g.walkable(goal.x, goal.y, half) {
		return nil
	}

	result := g.astar(start, goal, half)
	if result == nil {
		return nil
	}

	path := make([]model.Vec2, 0, 32)
	for n := result; n.parent != nil; n = n.parent {
		path = append(path, g.cellCenter(n.x, n.y))
	}
	// A* строит путь от конца к началу.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if len(path) == 0 || g.CanMoveDirect(path[len(path)-1], to, half) {
		path = append(path, to)
	}

	return g.smoothPath(from, path, half)
}

// smoothPath removes intermediate waypoints reachable in a straight line
// from the previous kept point.
func (g *Geometry) smoothPath(from model.Vec2, path []model.Vec2, half float64) []model.Vec2 {
	if len(path) <= 1 {
		return path
	}
	smoothed := make([]model.Vec2, 0, len(path))
	prev := from
	for i := 0; i < len(path)-1; i++ {
		if g.CanMoveDirect(prev, path[i+1], half) {
			continue
		}
		smoothed = append(smoothed, path[i])
		prev = path[i]
	}
	return append(smoothed, path[len(path)-1])
}

func (g *Geometry) walkable(cx, cy int32, half float64) bool {
	if cx < 0 || cy < 0 || cx >= g.cols || cy >= g.rows {
		return false
	}
	box := model.Box(g.cellCenter(cx, cy), half)
	return g.Inside(box) && !g.Blocks(box)
}

// pathNode represents a node in the A* search graph.
type pathNode struct {
	x, y   int32
	parent *pathNode
	gCost  float64 // actual cost from start
	fCost  float64 // gCost + heuristic
	index  int     // heap index
}

func (g *Geometry) astar(start, goal cell, half float64) *pathNode {
	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, &pathNode{x: start.x, y: start.y, fCost: heuristic(start, goal)})

	closed := make(map[cell]struct{}, 256)

	for range MaxPathfindIterations {
		if open.Len() == 0 {
			return nil
		}
		current := heap.Pop(open).(*pathNode)
		if current.x == goal.x && current.y == goal.y {
			return current
		}

		key := cell{current.x, current.y}
		if _, done := closed[key]; done {
			continue
		}
		closed[key] = struct{}{}

		g.expandNeighbors(current, goal, half, open, closed)
	}
	return nil
}

// expandNeighbors pushes passable adjacent cells. Diagonal steps require both
// adjacent cardinal cells to be passable (no corner cutting).
func (g *Geometry) expandNeighbors(current *pathNode, goal cell, half float64, open *nodeHeap, closed map[cell]struct{}) {
	cardinals := [4]cell{{0, -1}, {1, 0}, {0, 1}, {-1, 0}} // N, E, S, W
	var passable [4]bool

	push := func(dx, dy int32, weight float64) {
		n := cell{current.x + dx, current.y + dy}
		if _, done := closed[n]; done {
			return
		}
		node := &pathNode{x: n.x, y: n.y, parent: current, gCost: current.gCost + weight}
		node.fCost = node.gCost + heuristic(n, goal)
		heap.Push(open, node)
	}

	for i, d := range cardinals {
		if !g.walkable(current.x+d.x, current.y+d.y, half) {
			continue
		}
		passable[i] = true
		push(d.x, d.y, WeightLow)
	}

	diagonals := [4]struct {
		dx, dy     int32
		adj1, adj2 int
	}{
		{1, -1, 0, 1},  // NE
		{1, 1, 1, 2},   // SE
		{-1, 1, 2, 3},  // SW
		{-1, -1, 3, 0}, // NW
	}
	for _, d := range diagonals {
		if !passable[d.adj1] || !passable[d.adj2] {
			continue
		}
		if !g.walkable(current.x+d.dx, current.y+d.dy, half) {
			continue
		}
		push(d.dx, d.dy, WeightDiagonal)
	}
}

// heuristic is the euclidean distance between cells.
func heuristic(a, b cell) float64 {
	dx := float64(a.x - b.x)
	dy := float64(a.y - b.y)
	return math.Sqrt(dx*dx + dy*dy)
}

// nodeHeap implements container/heap for the A* open list (min-heap by fCost).
type nodeHeap []*pathNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].fCost < h[j].fCost }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *nodeHeap) Push(x any)        { n := x.(*pathNode); n.index = len(*h); *h = append(*h, n) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil // GC
	node.index = -1
	*h = old[:n-1]
	return node
}
