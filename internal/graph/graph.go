package graph

import (
	"sort"
	"time"

	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
)

// Infer builds the dependency graph for a collection of entities.
//
// Entities are grouped by axis and ordered by planned start (a missing
// start sorts as day 0, ties keep collection order). Each group becomes a
// chain, and the first node of every axis depends on the last node of the
// axis before it when that axis is non-empty.
func Infer[E entity.Schedulable](entities []E, opts Options) *Graph[E] {
	axes := opts.Axes
	if len(axes) == 0 {
		axes = entity.DefaultAxes
	}
	today := opts.Today
	if today.IsZero() {
		today = time.Now()
	}

	planned := make([]*time.Time, 0, 2*len(entities))
	for _, e := range entities {
		planned = append(planned, e.PlannedStart(), e.PlannedEnd())
	}

	g := &Graph[E]{
		Axes:   axes,
		Phases: make([][]int, len(axes)),
		Epoch:  dates.Epoch(today, planned...),
	}

	// Partition by axis, keeping input indices.
	groups := make([][]int, len(axes))
	for i, e := range entities {
		p := entity.AxisIndex(axes, e.Category())
		if p < 0 {
			g.Unclassified++
			continue
		}
		groups[p] = append(groups[p], i)
	}

	startOffset := func(i int) int {
		off, _ := dates.Offset(g.Epoch, entities[i].PlannedStart())
		return off
	}
	for _, group := range groups {
		sort.SliceStable(group, func(a, b int) bool {
			return startOffset(group[a]) < startOffset(group[b])
		})
	}

	for p, group := range groups {
		prevFinish, hasPrev := 0, false
		for c, src := range group {
			e := entities[src]
			id, ok := e.Key()
			if !ok {
				id = src
			}

			n := Node[E]{
				ID:          id,
				Index:       src,
				Entity:      e,
				PhaseIndex:  p,
				ColumnIndex: c,
			}
			var finish int
			n.Duration, finish = duration(g.Epoch, e, prevFinish, hasPrev, opts.DurationModel)
			prevFinish, hasPrev = finish, true

			idx := len(g.Nodes)
			switch {
			case c > 0:
				n.Predecessors = []int{idx - 1}
			case p > 0 && len(g.Phases[p-1]) > 0:
				prev := g.Phases[p-1]
				n.Predecessors = []int{prev[len(prev)-1]}
			}

			g.Nodes = append(g.Nodes, n)
			g.Phases[p] = append(g.Phases[p], idx)
		}
	}

	for i := range g.Nodes {
		for _, pred := range g.Nodes[i].Predecessors {
			g.Nodes[pred].Successors = append(g.Nodes[pred].Successors, i)
		}
	}

	return g
}

// duration returns a node's initial duration (at least one day) and the
// day offset at which it is planned to finish.
func duration(epoch time.Time, e entity.Schedulable, prevFinish int, hasPrev bool, model DurationModel) (int, int) {
	start, hasStart := dates.Offset(epoch, e.PlannedStart())
	end, hasEnd := dates.Offset(epoch, e.PlannedEnd())

	switch {
	case hasStart && hasEnd:
		d := max(1, end-start)
		return d, start + d
	case hasEnd:
		if model == SingleDay {
			return 1, end
		}
		// The previous finish stands in for the missing start.
		if hasPrev {
			d := max(1, end-prevFinish)
			return d, prevFinish + d
		}
		d := max(1, end)
		return d, d
	case hasStart:
		return 1, start + 1
	case hasPrev:
		return 1, prevFinish + 1
	default:
		return 1, 1
	}
}

// Len returns the number of nodes in the graph.
func (g *Graph[E]) Len() int {
	return len(g.Nodes)
}

// Edges lists every predecessor edge, ordered by target then source.
func (g *Graph[E]) Edges() []Edge {
	var edges []Edge
	for i, n := range g.Nodes {
		for _, pred := range n.Predecessors {
			edges = append(edges, Edge{From: pred, To: i})
		}
	}
	return edges
}

// Roots returns nodes without predecessors.
func (g *Graph[E]) Roots() []int {
	var roots []int
	for i, n := range g.Nodes {
		if len(n.Predecessors) == 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// Leaves returns nodes without successors.
func (g *Graph[E]) Leaves() []int {
	var leaves []int
	for i, n := range g.Nodes {
		if len(n.Successors) == 0 {
			leaves = append(leaves, i)
		}
	}
	return leaves
}

// MaxColumns returns the size of the widest phase.
func (g *Graph[E]) MaxColumns() int {
	widest := 0
	for _, phase := range g.Phases {
		widest = max(widest, len(phase))
	}
	return widest
}

// DetectCycle returns the cycle path (arena indices) if one exists, or nil if
// the graph is acyclic. Uses DFS with coloring: white (unvisited), gray (in
// progress), black (done). Edges pointing outside the arena are ignored here;
// the solver reports them separately.
func (g *Graph[E]) DetectCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.Nodes))
	parent := make([]int, len(g.Nodes))

	var dfs func(node int) []int
	dfs = func(node int) []int {
		color[node] = gray
		for _, next := range g.Nodes[node].Successors {
			if next < 0 || next >= len(g.Nodes) {
				continue
			}
			if color[next] == gray {
				// Found a cycle: walk parents back to next.
				cycle := []int{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for i := range g.Nodes {
		if color[i] == white {
			if cycle := dfs(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
