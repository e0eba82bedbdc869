package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
)

// Schema is the subset of the dashboard database pertloom reads.
const Schema = `
CREATE TABLE IF NOT EXISTS jalons (
	id          INTEGER PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	axis        TEXT NOT NULL DEFAULT '',
	due_date    TEXT,
	gantt_start TEXT,
	progress    INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'planned'
);

CREATE TABLE IF NOT EXISTS actions (
	id            INTEGER PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	axis          TEXT NOT NULL DEFAULT '',
	planned_start TEXT,
	planned_end   TEXT,
	progress      INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'planned',
	jalon_id      INTEGER REFERENCES jalons(id)
);
`

// SQLite reads actions and jalons from the dashboard database.
type SQLite struct {
	Path   string
	Logger *log.Logger
}

func (s *SQLite) Load(ctx context.Context) (*Snapshot, error) {
	// sql.Open would create an empty database.
	if _, err := os.Stat(s.Path); err != nil {
		return nil, fmt.Errorf("open entity database: %w", err)
	}
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("open entity database: %w", err)
	}
	defer db.Close()

	actions, err := s.loadActions(ctx, db)
	if err != nil {
		return nil, err
	}
	milestones, err := s.loadMilestones(ctx, db)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Actions: actions, Milestones: milestones}, nil
}

func (s *SQLite) loadActions(ctx context.Context, db *sql.DB) ([]entity.Action, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, axis, planned_start, planned_end, progress, status, jalon_id
		FROM actions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []entity.Action
	for rows.Next() {
		var (
			a          entity.Action
			axis       string
			status     string
			start, end sql.NullString
			jalon      sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Title, &axis, &start, &end, &a.Progress, &status, &jalon); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Axis = entity.Axis(axis)
		a.Status = entity.Status(status)
		a.Start = s.date(a.ID, "planned_start", start)
		a.Due = s.date(a.ID, "planned_end", end)
		if jalon.Valid {
			id := int(jalon.Int64)
			a.MilestoneID = &id
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) loadMilestones(ctx context.Context, db *sql.DB) ([]entity.Milestone, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, axis, due_date, gantt_start, progress, status
		FROM jalons ORDER BY due_date IS NULL, due_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query jalons: %w", err)
	}
	defer rows.Close()

	var out []entity.Milestone
	for rows.Next() {
		var (
			m          entity.Milestone
			axis       string
			status     string
			due, start sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Title, &axis, &due, &start, &m.Progress, &status); err != nil {
			return nil, fmt.Errorf("scan jalon: %w", err)
		}
		m.Axis = entity.Axis(axis)
		m.Status = entity.Status(status)
		m.Due = s.date(m.ID, "due_date", due)
		m.StartOverride = s.date(m.ID, "gantt_start", start)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Text ordering is only right for ISO dates.
	SortMilestones(out)
	return out, nil
}

func (s *SQLite) date(id int, column string, v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t := dates.ParsePtr(v.String)
	if t == nil && v.String != "" && s.Logger != nil {
		s.Logger.Warn("ignoring unparseable date", "id", id, "column", column, "value", v.String)
	}
	return t
}
