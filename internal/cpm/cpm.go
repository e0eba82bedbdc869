package cpm

import (
	"slices"
	"sort"

	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/graph"
)

// Solve performs critical path method analysis on an inferred graph and
// fills ES/EF/LS/LF/Slack/IsCritical on every node.
// An empty graph solves to a zero result; only structural defects error.
func Solve[E entity.Schedulable](g *graph.Graph[E]) (*Result, error) {
	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}

	result := &Result{TopoOrder: order}

	// Forward pass: compute ES and EF
	for _, i := range order {
		n := &g.Nodes[i]
		es := 0
		for _, pred := range n.Predecessors {
			es = max(es, g.Nodes[pred].EF)
		}
		n.ES = es
		n.EF = es + n.Duration
	}

	// Project horizon, floored so an empty graph still spans a day
	projectEnd := 1
	for _, n := range g.Nodes {
		projectEnd = max(projectEnd, n.EF)
	}
	result.ProjectEnd = projectEnd

	// Backward pass in reverse topological order
	for k := len(order) - 1; k >= 0; k-- {
		n := &g.Nodes[order[k]]
		lf := projectEnd
		for j, succ := range n.Successors {
			if j == 0 || g.Nodes[succ].LS < lf {
				lf = g.Nodes[succ].LS
			}
		}
		n.LF = lf
		n.LS = lf - n.Duration
		n.Slack = n.LS - n.ES
		n.IsCritical = n.Slack == 0
	}

	if err := verify(g); err != nil {
		return nil, err
	}

	for _, i := range order {
		if g.Nodes[i].IsCritical {
			result.CriticalPath = append(result.CriticalPath, i)
		}
	}

	result.Waves = computeWaves(g, order)

	return result, nil
}

// topoSort runs Kahn's algorithm. The ready queue is kept sorted by arena
// index, which is (phase, column) order, so for inferred graphs the result
// is simply 0..n-1. Predecessor and successor lists must mirror each other;
// a mismatch, a dangling edge or a cycle is reported as a structural error.
func topoSort[E entity.Schedulable](g *graph.Graph[E]) ([]int, error) {
	n := len(g.Nodes)
	inDegree := make([]int, n)
	for i, node := range g.Nodes {
		for _, pred := range node.Predecessors {
			if pred < 0 || pred >= n {
				return nil, &StructuralError{Reason: "predecessor outside the node set", Nodes: []int{i, pred}}
			}
		}
		for _, succ := range node.Successors {
			if succ < 0 || succ >= n {
				return nil, &StructuralError{Reason: "successor outside the node set", Nodes: []int{i, succ}}
			}
			if !slices.Contains(g.Nodes[succ].Predecessors, i) {
				return nil, &StructuralError{Reason: "successor edge without matching predecessor", Nodes: []int{i, succ}}
			}
			inDegree[succ]++
		}
	}
	for i, node := range g.Nodes {
		if inDegree[i] != len(node.Predecessors) {
			return nil, &StructuralError{Reason: "predecessor edge without matching successor", Nodes: []int{i}}
		}
	}

	var queue []int
	for i := range g.Nodes {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, n)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var ready []int
		for _, succ := range g.Nodes[node].Successors {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		queue = append(queue, ready...)
		sort.Ints(queue)
	}

	if len(order) != n {
		return nil, &StructuralError{Reason: "dependency cycle detected", Nodes: g.DetectCycle()}
	}

	return order, nil
}

// verify checks the invariants every solved node must satisfy.
func verify[E entity.Schedulable](g *graph.Graph[E]) error {
	for i, n := range g.Nodes {
		if n.Duration < 1 {
			return &StructuralError{Reason: "non-positive duration", Nodes: []int{i}}
		}
		if n.EF-n.ES != n.Duration || n.LF-n.LS != n.Duration {
			return &StructuralError{Reason: "inconsistent forward/backward pass", Nodes: []int{i}}
		}
		if n.Slack < 0 {
			return &StructuralError{Reason: "negative slack", Nodes: []int{i}}
		}
	}
	return nil
}

// computeWaves groups nodes by their earliest start time.
func computeWaves[E entity.Schedulable](g *graph.Graph[E], order []int) []Wave {
	esGroups := make(map[int][]int)
	for _, i := range order {
		es := g.Nodes[i].ES
		esGroups[es] = append(esGroups[es], i)
	}

	esValues := make([]int, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Ints(esValues)

	waves := make([]Wave, len(esValues))
	for w, es := range esValues {
		nodes := esGroups[es]
		sort.Ints(nodes)

		hasCritical := false
		for _, i := range nodes {
			if g.Nodes[i].IsCritical {
				hasCritical = true
			}
		}

		// Critical nodes first within a wave
		sort.SliceStable(nodes, func(a, b int) bool {
			return g.Nodes[nodes[a]].IsCritical && !g.Nodes[nodes[b]].IsCritical
		})

		waves[w] = Wave{
			Index:      w,
			ES:         es,
			Nodes:      nodes,
			IsCritical: hasCritical,
		}
	}

	return waves
}
