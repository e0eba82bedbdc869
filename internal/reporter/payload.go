package reporter

import (
	"encoding/json"
	"time"

	"github.com/joshharrison/pertloom/internal/cpm"
	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/gantt"
	"github.com/joshharrison/pertloom/internal/layout"
	"github.com/joshharrison/pertloom/internal/schedule"
)

// NodeView is one solved node as the dashboard renders it. Predecessors and
// successors are entity ids.
type NodeView struct {
	ID           int           `json:"id"`
	Title        string        `json:"title"`
	Axis         entity.Axis   `json:"axis"`
	Status       entity.Status `json:"status"`
	Duration     int           `json:"duration"`
	ES           int           `json:"es"`
	EF           int           `json:"ef"`
	LS           int           `json:"ls"`
	LF           int           `json:"lf"`
	Slack        int           `json:"slack"`
	Critical     bool          `json:"is_critical"`
	Phase        int           `json:"phase"`
	Column       int           `json:"column"`
	EarlyStart   string        `json:"early_start"`
	EarlyFinish  string        `json:"early_finish"`
	Predecessors []int         `json:"predecessors"`
	Successors   []int         `json:"successors"`
}

// PERT is the full payload behind the PERT view. Nodes are in arena order,
// which is what Waves and Layout index into.
type PERT struct {
	Kind         string         `json:"kind"`
	Epoch        string         `json:"epoch"`
	ProjectEnd   int            `json:"project_end"`
	Unclassified int            `json:"unclassified"`
	CriticalPath []int          `json:"critical_path"`
	Nodes        []NodeView     `json:"nodes"`
	Waves        []cpm.Wave     `json:"waves"`
	Layout       *layout.Layout `json:"layout"`
}

// BuildPERT flattens a schedule into its payload.
func BuildPERT[E entity.Described](kind string, s *schedule.Schedule[E]) *PERT {
	g := s.Graph
	p := &PERT{
		Kind:         kind,
		Epoch:        dates.Format(g.Epoch),
		ProjectEnd:   s.Result.ProjectEnd,
		Unclassified: g.Unclassified,
		CriticalPath: []int{},
		Nodes:        make([]NodeView, len(g.Nodes)),
		Waves:        s.Result.Waves,
		Layout:       s.Layout,
	}

	ids := func(idx []int) []int {
		out := make([]int, len(idx))
		for k, i := range idx {
			out[k] = g.Nodes[i].ID
		}
		return out
	}

	for i, n := range g.Nodes {
		p.Nodes[i] = NodeView{
			ID:           n.ID,
			Title:        n.Entity.Label(),
			Axis:         n.Entity.Category(),
			Status:       n.Entity.State(),
			Duration:     n.Duration,
			ES:           n.ES,
			EF:           n.EF,
			LS:           n.LS,
			LF:           n.LF,
			Slack:        n.Slack,
			Critical:     n.IsCritical,
			Phase:        n.PhaseIndex,
			Column:       n.ColumnIndex,
			EarlyStart:   dates.Format(dates.AddDays(g.Epoch, n.ES)),
			EarlyFinish:  dates.Format(dates.AddDays(g.Epoch, n.EF)),
			Predecessors: ids(n.Predecessors),
			Successors:   ids(n.Successors),
		}
	}
	p.CriticalPath = append(p.CriticalPath, ids(s.Result.CriticalPath)...)
	return p
}

// GanttRow is one bar of the Gantt view.
type GanttRow struct {
	gantt.Period
	Kind        string        `json:"kind"` // "jalon" or "action"
	Title       string        `json:"title"`
	Axis        entity.Axis   `json:"axis"`
	Status      entity.Status `json:"status"`
	Days        int           `json:"days"`
	MilestoneID *int          `json:"jalon_id,omitempty"`
}

// Gantt is the payload behind the Gantt view.
type Gantt struct {
	Today string     `json:"today"`
	Rows  []GanttRow `json:"rows"`
}

// BuildGantt resolves every jalon and lists each one followed by its linked
// actions. Actions without a jalon come last.
func BuildGantt(milestones []entity.Milestone, actions []entity.Action, cfg gantt.Config) *Gantt {
	today := cfg.Today
	if today.IsZero() {
		today = time.Now()
	}
	cfg.Today = dates.Day(today)

	out := &Gantt{Today: dates.Format(cfg.Today), Rows: []GanttRow{}}
	placed := make(map[int]bool)

	for i, p := range gantt.ResolveAll(milestones, actions, cfg) {
		m := milestones[i]
		out.Rows = append(out.Rows, GanttRow{
			Period: p,
			Kind:   "jalon",
			Title:  m.Title,
			Axis:   m.Axis,
			Status: m.Status,
			Days:   p.Days(),
		})
		for k, a := range actions {
			if a.MilestoneID != nil && *a.MilestoneID == m.ID && !placed[k] {
				placed[k] = true
				out.Rows = append(out.Rows, actionRow(a, cfg.Today))
			}
		}
	}
	for k, a := range actions {
		if !placed[k] {
			out.Rows = append(out.Rows, actionRow(a, cfg.Today))
		}
	}
	return out
}

func actionRow(a entity.Action, today time.Time) GanttRow {
	p := gantt.ActionPeriod(a, today)
	return GanttRow{
		Period:      p,
		Kind:        "action",
		Title:       a.Title,
		Axis:        a.Axis,
		Status:      a.Status,
		Days:        p.Days(),
		MilestoneID: a.MilestoneID,
	}
}

// JSON returns v indented for terminal or file output.
func JSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// FlatRow is one entry of the unscheduled fallback list.
type FlatRow struct {
	ID     int           `json:"id"`
	Title  string        `json:"title"`
	Axis   entity.Axis   `json:"axis"`
	Status entity.Status `json:"status"`
	Due    string        `json:"due,omitempty"`
}

// Fallback is served in place of a PERT payload when scheduling fails.
type Fallback struct {
	Kind     string    `json:"kind"`
	Error    string    `json:"error"`
	Fallback []FlatRow `json:"fallback"`
}

// BuildFlat lists entities by due date for the fallback view.
func BuildFlat[E entity.Described](entities []E) []FlatRow {
	items := schedule.Flat(entities)
	rows := make([]FlatRow, len(items))
	for i, it := range items {
		rows[i] = FlatRow{
			ID:     it.ID,
			Title:  it.Entity.Label(),
			Axis:   it.Entity.Category(),
			Status: it.Entity.State(),
		}
		if it.Due != nil {
			rows[i].Due = dates.Format(*it.Due)
		}
	}
	return rows
}
