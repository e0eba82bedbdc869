package entity

import (
	"time"
)

// Axis is the workstream an action or jalon belongs to. The ordered axis
// list doubles as the phase (row) dimension of the PERT layout.
type Axis string

// DefaultAxes is the fixed axis order used when no project configuration
// overrides it.
var DefaultAxes = []Axis{
	"gouvernance",
	"organisation",
	"infrastructure",
	"applicatif",
	"formation",
	"communication",
}

// Status is the lifecycle state shared by actions and jalons.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusOverrun    Status = "overrun"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether a jalon in this status counts as fully done
// when no linked action carries progress.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusOverrun
}

// Schedulable is the capability set the inference engine and CPM solver
// need from an entity.
type Schedulable interface {
	// Key returns the entity identifier; ok is false when the store gave none.
	Key() (id int, ok bool)
	Category() Axis
	PlannedStart() *time.Time
	PlannedEnd() *time.Time
}

// Described is a Schedulable that also carries display fields.
type Described interface {
	Schedulable
	Label() string
	State() Status
}

// Action is a task row from the entity store.
type Action struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Axis        Axis       `json:"axis"`
	Start       *time.Time `json:"planned_start,omitempty"`
	Due         *time.Time `json:"planned_end,omitempty"`
	Progress    int        `json:"progress"`
	Status      Status     `json:"status"`
	MilestoneID *int       `json:"jalon_id,omitempty"`
}

func (a Action) Key() (int, bool)         { return a.ID, a.ID != 0 }
func (a Action) Category() Axis           { return a.Axis }
func (a Action) PlannedStart() *time.Time { return a.Start }
func (a Action) PlannedEnd() *time.Time   { return a.Due }
func (a Action) Label() string            { return a.Title }
func (a Action) State() Status            { return a.Status }

// Milestone is a jalon: a dated checkpoint that actions roll up to.
type Milestone struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Axis          Axis       `json:"axis"`
	Due           *time.Time `json:"due_date,omitempty"`
	StartOverride *time.Time `json:"gantt_start,omitempty"` // explicit Gantt bar start
	Progress      int        `json:"progress"`
	Status        Status     `json:"status"`
}

func (m Milestone) Key() (int, bool)         { return m.ID, m.ID != 0 }
func (m Milestone) Category() Axis           { return m.Axis }
func (m Milestone) PlannedStart() *time.Time { return m.StartOverride }
func (m Milestone) PlannedEnd() *time.Time   { return m.Due }
func (m Milestone) Label() string            { return m.Title }
func (m Milestone) State() Status            { return m.Status }

// AxisIndex returns the position of a in axes, or -1.
func AxisIndex(axes []Axis, a Axis) int {
	for i, x := range axes {
		if x == a {
			return i
		}
	}
	return -1
}

// Classify counts entities whose axis is in axes and those that are not.
// Unclassified entities are left out of the graph; callers surface the count.
func Classify[E Schedulable](entities []E, axes []Axis) (classified, unclassified int) {
	for _, e := range entities {
		if AxisIndex(axes, e.Category()) >= 0 {
			classified++
		} else {
			unclassified++
		}
	}
	return classified, unclassified
}

// LinkedActions returns the actions whose jalon foreign key is milestoneID,
// keeping their collection order.
func LinkedActions(actions []Action, milestoneID int) []Action {
	var out []Action
	for _, a := range actions {
		if a.MilestoneID != nil && *a.MilestoneID == milestoneID {
			out = append(out, a)
		}
	}
	return out
}
