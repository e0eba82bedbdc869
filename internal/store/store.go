// Package store reads actions and jalons from the dashboard's entity store.
// Sources are read-only; the scheduling core never writes back.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/joshharrison/pertloom/internal/entity"
)

// Snapshot is the entity collection at one point in time.
type Snapshot struct {
	Actions    []entity.Action    `json:"actions"`
	Milestones []entity.Milestone `json:"jalons"`
}

// Source loads a snapshot of the entity store.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Open returns the source for driver ("json" or "sqlite") reading path.
// A nil logger uses the package default.
func Open(driver, path string, logger *log.Logger) (Source, error) {
	if logger == nil {
		logger = log.Default()
	}
	switch driver {
	case "", "json":
		return &JSONFile{Path: path, Logger: logger}, nil
	case "sqlite":
		return &SQLite{Path: path, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// SortMilestones orders jalons by due date. Undated jalons go last and ties
// keep their current order.
func SortMilestones(ms []entity.Milestone) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i].Due, ms[j].Due
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
