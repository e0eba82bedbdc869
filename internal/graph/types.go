package graph

import (
	"time"

	"github.com/joshharrison/pertloom/internal/entity"
)

// DurationModel selects how a node with only a due date gets its duration.
type DurationModel string

const (
	// GapFromPrevious measures from the previous node's finish in the same
	// phase, or from the epoch for the first node.
	GapFromPrevious DurationModel = "gap"
	// SingleDay gives every due-date-only node a duration of one day.
	SingleDay DurationModel = "single"
)

// Node is one entity placed in the inferred DAG. Timing fields are zero
// until the CPM solver fills them in.
type Node[E entity.Schedulable] struct {
	ID     int `json:"id"`    // entity id, or input index when the entity has none
	Index  int `json:"index"` // position in the input collection
	Entity E   `json:"entity"`

	Duration int `json:"duration"`
	ES       int `json:"es"` // earliest start
	EF       int `json:"ef"` // earliest finish
	LS       int `json:"ls"` // latest start
	LF       int `json:"lf"` // latest finish
	Slack    int `json:"slack"`

	IsCritical  bool `json:"is_critical"`
	PhaseIndex  int  `json:"phase"`
	ColumnIndex int  `json:"column"`

	Predecessors []int `json:"predecessors"` // arena indices
	Successors   []int `json:"successors"`   // arena indices
}

// Graph is a dense arena of nodes ordered by (phase, column). Edges are
// arena indices, so the slice order is also a valid topological order.
type Graph[E entity.Schedulable] struct {
	Nodes        []Node[E]
	Axes         []entity.Axis
	Phases       [][]int   // arena indices per axis, in column order
	Epoch        time.Time // day 0
	Unclassified int       // entities dropped because their axis is unknown
}

// Edge is a predecessor -> successor pair of arena indices.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Options configures inference.
type Options struct {
	Axes          []entity.Axis
	Today         time.Time // epoch when no entity is dated
	DurationModel DurationModel
}
