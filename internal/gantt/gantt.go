// Package gantt reconstructs the bar drawn for a jalon on the timeline.
// A jalon only carries a due date, so its start is inferred from linked
// actions, explicit overrides, its predecessor in the same axis, or the
// project phase it falls in.
package gantt

import (
	"math"
	"sort"
	"time"

	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
)

// DefaultLookbackDays is the bar length used when nothing else dates a jalon.
const DefaultLookbackDays = 30

// Source names the rule that produced a period's start date.
type Source string

const (
	SourceLinkedActions     Source = "linked_actions"
	SourceOverride          Source = "override"
	SourcePreviousMilestone Source = "previous_milestone"
	SourcePhase             Source = "phase"
	SourceLookback          Source = "lookback"
	SourcePlanned           Source = "planned"
)

// Phase is a named project phase with boundary dates.
type Phase struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Config carries the project settings the resolver needs.
type Config struct {
	LookbackDays int
	Phases       []Phase
	Today        time.Time // end date for jalons without a due date
}

func (c Config) lookback() int {
	if c.LookbackDays <= 0 {
		return DefaultLookbackDays
	}
	return c.LookbackDays
}

func (c Config) today() time.Time {
	if c.Today.IsZero() {
		return dates.Day(time.Now())
	}
	return dates.Day(c.Today)
}

// Period is the resolved timeline bar.
type Period struct {
	EntityID    int       `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Progress    int       `json:"progress"`
	LinkedCount int       `json:"linked_count"`
	Source      Source    `json:"source"`
}

// Days is the bar length in days, never less than one so that it agrees
// with the minimum CPM duration.
func (p Period) Days() int {
	return max(1, dates.DaysBetween(p.Start, p.End))
}

// Input is everything known about one jalon.
type Input struct {
	Milestone entity.Milestone
	Linked    []entity.Action   // actions whose jalon foreign key points here
	Previous  *entity.Milestone // previous jalon in the same axis, if any
}

// Resolve computes the period for a single jalon.
func Resolve(in Input, cfg Config) Period {
	m := in.Milestone

	end := cfg.today()
	if m.Due != nil {
		end = dates.Day(*m.Due)
	}

	p := Period{
		EntityID:    m.ID,
		End:         end,
		LinkedCount: len(in.Linked),
	}
	p.Start, p.Source = resolveStart(in, cfg, end)
	if p.Start.After(end) {
		p.Start = end
	}
	p.Progress = progress(m, in.Linked)

	return p
}

func resolveStart(in Input, cfg Config, end time.Time) (time.Time, Source) {
	if start := earliestStart(in.Linked); start != nil {
		return dates.Day(*start), SourceLinkedActions
	}
	if o := in.Milestone.StartOverride; o != nil {
		return dates.Day(*o), SourceOverride
	}
	if prev := in.Previous; prev != nil && prev.Due != nil {
		return dates.Day(*prev.Due), SourcePreviousMilestone
	}
	for _, ph := range cfg.Phases {
		start, stop := dates.Day(ph.Start), dates.Day(ph.End)
		if start.Before(end) && !end.After(stop) {
			return start, SourcePhase
		}
	}
	return dates.AddDays(end, -cfg.lookback()), SourceLookback
}

func earliestStart(actions []entity.Action) *time.Time {
	var earliest *time.Time
	for _, a := range actions {
		if a.Start == nil {
			continue
		}
		if earliest == nil || a.Start.Before(*earliest) {
			earliest = a.Start
		}
	}
	return earliest
}

func progress(m entity.Milestone, linked []entity.Action) int {
	if len(linked) == 0 {
		if m.Status.Terminal() {
			return 100
		}
		return 0
	}
	sum := 0
	for _, a := range linked {
		sum += clampPercent(a.Progress)
	}
	return int(math.Round(float64(sum) / float64(len(linked))))
}

func clampPercent(v int) int {
	return min(100, max(0, v))
}

// ResolveAll resolves every jalon, pairing each with its linked actions and
// with the jalon due just before it in the same axis. Periods are returned
// in the order of milestones.
func ResolveAll(milestones []entity.Milestone, actions []entity.Action, cfg Config) []Period {
	previous := previousInAxis(milestones)

	periods := make([]Period, len(milestones))
	for i, m := range milestones {
		periods[i] = Resolve(Input{
			Milestone: m,
			Linked:    entity.LinkedActions(actions, m.ID),
			Previous:  previous[i],
		}, cfg)
	}
	return periods
}

// previousInAxis maps each jalon index to the dated jalon immediately before
// it in the same axis, ordered by due date with ties kept in input order.
func previousInAxis(milestones []entity.Milestone) []*entity.Milestone {
	byAxis := make(map[entity.Axis][]int)
	for i, m := range milestones {
		if m.Due != nil {
			byAxis[m.Axis] = append(byAxis[m.Axis], i)
		}
	}

	previous := make([]*entity.Milestone, len(milestones))
	for _, idx := range byAxis {
		sort.SliceStable(idx, func(a, b int) bool {
			return milestones[idx[a]].Due.Before(*milestones[idx[b]].Due)
		})
		for k := 1; k < len(idx); k++ {
			previous[idx[k]] = &milestones[idx[k-1]]
		}
	}
	return previous
}

// ActionPeriod returns the bar for an action. Actions carry their own
// planned dates; a missing start falls back to the day before the due date
// and a missing due date to the start (or today).
func ActionPeriod(a entity.Action, today time.Time) Period {
	p := Period{
		EntityID: a.ID,
		Progress: clampPercent(a.Progress),
		Source:   SourcePlanned,
	}

	switch {
	case a.Due != nil:
		p.End = dates.Day(*a.Due)
	case a.Start != nil:
		p.End = dates.AddDays(*a.Start, 1)
	default:
		p.End = dates.Day(today)
	}

	if a.Start != nil {
		p.Start = dates.Day(*a.Start)
	} else {
		p.Start = dates.AddDays(p.End, -1)
		p.Source = SourceLookback
	}
	if p.Start.After(p.End) {
		p.Start = p.End
	}
	return p
}
