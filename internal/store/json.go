package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
)

// JSONFile reads an export of the form {"actions": [...], "jalons": [...]}.
// Fields are read leniently: unknown keys are ignored, unparseable dates
// become nil and a missing id leaves the entity keyless.
type JSONFile struct {
	Path   string
	Logger *log.Logger
}

func (f *JSONFile) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read entity export: %w", err)
	}
	snap, err := ParseSnapshot(data, f.Logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return snap, nil
}

// ParseSnapshot decodes an entity export. Records that are not JSON objects
// are skipped with a warning. Jalons come back sorted by due date.
func ParseSnapshot(data []byte, logger *log.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = log.Default()
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("expected an object with actions and jalons")
	}

	snap := &Snapshot{}
	root.Get("actions").ForEach(func(key, r gjson.Result) bool {
		if !r.IsObject() {
			logger.Warn("skipping action record", "index", key.Int(), "reason", "not an object")
			return true
		}
		snap.Actions = append(snap.Actions, parseAction(r, logger))
		return true
	})
	root.Get("jalons").ForEach(func(key, r gjson.Result) bool {
		if !r.IsObject() {
			logger.Warn("skipping jalon record", "index", key.Int(), "reason", "not an object")
			return true
		}
		snap.Milestones = append(snap.Milestones, parseMilestone(r, logger))
		return true
	})

	SortMilestones(snap.Milestones)
	return snap, nil
}

func parseAction(r gjson.Result, logger *log.Logger) entity.Action {
	a := entity.Action{
		ID:       int(r.Get("id").Int()),
		Title:    r.Get("title").String(),
		Axis:     entity.Axis(r.Get("axis").String()),
		Start:    date(r, "planned_start", logger),
		Due:      date(r, "planned_end", logger),
		Progress: int(r.Get("progress").Int()),
		Status:   entity.Status(r.Get("status").String()),
	}
	if j := r.Get("jalon_id"); j.Exists() && j.Type == gjson.Number {
		id := int(j.Int())
		a.MilestoneID = &id
	}
	return a
}

func parseMilestone(r gjson.Result, logger *log.Logger) entity.Milestone {
	return entity.Milestone{
		ID:            int(r.Get("id").Int()),
		Title:         r.Get("title").String(),
		Axis:          entity.Axis(r.Get("axis").String()),
		Due:           date(r, "due_date", logger),
		StartOverride: date(r, "gantt_start", logger),
		Progress:      int(r.Get("progress").Int()),
		Status:        entity.Status(r.Get("status").String()),
	}
}

func date(r gjson.Result, field string, logger *log.Logger) *time.Time {
	v := r.Get(field)
	if v.Type != gjson.String {
		return nil
	}
	t := dates.ParsePtr(v.String())
	if t == nil && v.String() != "" {
		logger.Warn("ignoring unparseable date", "id", r.Get("id").Int(), "field", field, "value", v.String())
	}
	return t
}
