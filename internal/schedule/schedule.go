// Package schedule runs the PERT pipeline end to end: dependency inference,
// critical path analysis and layout.
package schedule

import (
	"sort"
	"time"

	"github.com/joshharrison/pertloom/internal/cpm"
	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/graph"
	"github.com/joshharrison/pertloom/internal/layout"
)

// Options configures one pipeline run.
type Options struct {
	Axes          []entity.Axis
	Today         time.Time
	DurationModel graph.DurationModel
	Layout        layout.Constants
	Labels        map[entity.Axis]string
}

// Schedule is the output of a successful run.
type Schedule[E entity.Schedulable] struct {
	Graph  *graph.Graph[E]
	Result *cpm.Result
	Layout *layout.Layout
}

// Solve infers the dependency graph, solves it and lays it out. It has no
// side effects; the same entities and options always give the same
// schedule. A *cpm.StructuralError is returned unwrapped so callers can
// test it with errors.As and switch to Flat.
func Solve[E entity.Schedulable](entities []E, opts Options) (*Schedule[E], error) {
	g := graph.Infer(entities, graph.Options{
		Axes:          opts.Axes,
		Today:         opts.Today,
		DurationModel: opts.DurationModel,
	})

	res, err := cpm.Solve(g)
	if err != nil {
		return nil, err
	}

	return &Schedule[E]{
		Graph:  g,
		Result: res,
		Layout: layout.Compute(g, opts.Layout, opts.Labels),
	}, nil
}

// Critical returns the entities on the critical path in topological order.
func (s *Schedule[E]) Critical() []E {
	out := make([]E, 0, len(s.Result.CriticalPath))
	for _, i := range s.Result.CriticalPath {
		out = append(out, s.Graph.Nodes[i].Entity)
	}
	return out
}

// Item is one row of the unscheduled fallback list.
type Item[E entity.Schedulable] struct {
	ID     int        `json:"id"`
	Entity E          `json:"entity"`
	Due    *time.Time `json:"due,omitempty"`
}

// Flat lists entities by due date, undated ones last, ties in input order.
// It is what a dashboard shows when the schedule cannot be computed.
func Flat[E entity.Schedulable](entities []E) []Item[E] {
	items := make([]Item[E], len(entities))
	for i, e := range entities {
		id, ok := e.Key()
		if !ok {
			id = i
		}
		items[i] = Item[E]{ID: id, Entity: e, Due: e.PlannedEnd()}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Due, items[j].Due
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return items
}
