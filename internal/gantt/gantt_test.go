package gantt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
)

var today = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func d(s string) *time.Time {
	t, ok := dates.Parse(s)
	if !ok {
		panic("bad date " + s)
	}
	return &t
}

func intp(v int) *int { return &v }

func TestResolve_FallbackOrder(t *testing.T) {
	m := entity.Milestone{ID: 1, Axis: "a", Due: d("2025-02-01")}
	cfg := Config{Today: today}

	withLinked := Resolve(Input{
		Milestone: m,
		Linked: []entity.Action{
			{ID: 10, Start: d("2025-01-10")},
			{ID: 11, Start: d("2025-01-05")},
		},
	}, cfg)
	assert.Equal(t, *d("2025-01-05"), withLinked.Start)
	assert.Equal(t, SourceLinkedActions, withLinked.Source)
	assert.Equal(t, 2, withLinked.LinkedCount)

	withPrevious := Resolve(Input{
		Milestone: m,
		Previous:  &entity.Milestone{ID: 0, Axis: "a", Due: d("2025-01-20")},
	}, cfg)
	assert.Equal(t, *d("2025-01-20"), withPrevious.Start)
	assert.Equal(t, SourcePreviousMilestone, withPrevious.Source)

	alone := Resolve(Input{Milestone: m}, cfg)
	assert.Equal(t, dates.AddDays(*m.Due, -30), alone.Start)
	assert.Equal(t, SourceLookback, alone.Source)
	assert.Equal(t, *d("2025-02-01"), alone.End)
	assert.Equal(t, 0, alone.LinkedCount)
}

func TestResolve_UndatedLinkedActionsFallThrough(t *testing.T) {
	p := Resolve(Input{
		Milestone: entity.Milestone{ID: 1, Due: d("2025-02-01")},
		Linked:    []entity.Action{{ID: 10, Progress: 20}},
	}, Config{Today: today})

	assert.Equal(t, SourceLookback, p.Source)
	assert.Equal(t, 1, p.LinkedCount)
	assert.Equal(t, 20, p.Progress)
}

func TestResolve_OverrideBeatsPrevious(t *testing.T) {
	p := Resolve(Input{
		Milestone: entity.Milestone{ID: 1, Due: d("2025-02-01"), StartOverride: d("2025-01-15")},
		Previous:  &entity.Milestone{Due: d("2025-01-20")},
	}, Config{Today: today})

	assert.Equal(t, *d("2025-01-15"), p.Start)
	assert.Equal(t, SourceOverride, p.Source)
}

func TestResolve_PhaseBoundary(t *testing.T) {
	cfg := Config{
		Today:        today,
		LookbackDays: 10,
		Phases: []Phase{
			{Name: "cadrage", Start: *d("2024-09-01"), End: *d("2024-12-31")},
			{Name: "deploiement", Start: *d("2025-01-01"), End: *d("2025-06-30")},
		},
	}

	p := Resolve(Input{Milestone: entity.Milestone{ID: 1, Due: d("2025-02-01")}}, cfg)
	assert.Equal(t, *d("2025-01-01"), p.Start)
	assert.Equal(t, SourcePhase, p.Source)

	// A due date on the first day of a phase has nothing before it in that phase.
	p = Resolve(Input{Milestone: entity.Milestone{ID: 2, Due: d("2025-01-01")}}, cfg)
	assert.Equal(t, SourceLookback, p.Source)
	assert.Equal(t, *d("2024-12-22"), p.Start)

	// Outside every phase.
	p = Resolve(Input{Milestone: entity.Milestone{ID: 3, Due: d("2025-09-01")}}, cfg)
	assert.Equal(t, SourceLookback, p.Source)
}

func TestResolve_MissingDueUsesToday(t *testing.T) {
	p := Resolve(Input{Milestone: entity.Milestone{ID: 1}}, Config{Today: today})

	assert.Equal(t, today, p.End)
	assert.Equal(t, dates.AddDays(today, -30), p.Start)
}

func TestResolve_StartNeverAfterEnd(t *testing.T) {
	p := Resolve(Input{
		Milestone: entity.Milestone{ID: 1, Due: d("2025-02-01")},
		Linked:    []entity.Action{{ID: 10, Start: d("2025-03-01")}},
	}, Config{Today: today})

	assert.Equal(t, p.End, p.Start)
	assert.Equal(t, 1, p.Days())
}

func TestResolve_Progress(t *testing.T) {
	cfg := Config{Today: today}

	p := Resolve(Input{
		Milestone: entity.Milestone{ID: 1, Due: d("2025-02-01")},
		Linked:    []entity.Action{{Progress: 40}, {Progress: 60}},
	}, cfg)
	assert.Equal(t, 50, p.Progress)

	p = Resolve(Input{
		Milestone: entity.Milestone{ID: 1, Due: d("2025-02-01")},
		Linked:    []entity.Action{{Progress: 33}, {Progress: 34}},
	}, cfg)
	assert.Equal(t, 34, p.Progress) // 33.5 rounds half away from zero

	p = Resolve(Input{
		Milestone: entity.Milestone{ID: 1, Due: d("2025-02-01")},
		Linked:    []entity.Action{{Progress: 150}, {Progress: -20}},
	}, cfg)
	assert.Equal(t, 50, p.Progress)

	for status, want := range map[entity.Status]int{
		entity.StatusCompleted:  100,
		entity.StatusOverrun:    100,
		entity.StatusInProgress: 0,
		entity.StatusPlanned:    0,
	} {
		p = Resolve(Input{Milestone: entity.Milestone{ID: 1, Status: status}}, cfg)
		assert.Equal(t, want, p.Progress, status)
	}
}

func TestResolveAll(t *testing.T) {
	milestones := []entity.Milestone{
		{ID: 1, Axis: "a", Due: d("2025-03-01")},
		{ID: 2, Axis: "a", Due: d("2025-02-01")},
		{ID: 3, Axis: "b", Due: d("2025-02-15")},
		{ID: 4, Axis: "a"},
	}
	actions := []entity.Action{
		{ID: 10, Start: d("2025-01-10"), Progress: 40, MilestoneID: intp(3)},
		{ID: 11, Start: d("2025-01-05"), Progress: 60, MilestoneID: intp(3)},
		{ID: 12, Progress: 80},
	}

	periods := ResolveAll(milestones, actions, Config{Today: today})
	require.Len(t, periods, 4)

	// Jalon 1 follows jalon 2 in axis a.
	assert.Equal(t, 1, periods[0].EntityID)
	assert.Equal(t, *d("2025-02-01"), periods[0].Start)
	assert.Equal(t, SourcePreviousMilestone, periods[0].Source)

	// Jalon 2 is first in its axis.
	assert.Equal(t, SourceLookback, periods[1].Source)

	assert.Equal(t, *d("2025-01-05"), periods[2].Start)
	assert.Equal(t, 50, periods[2].Progress)
	assert.Equal(t, 2, periods[2].LinkedCount)

	// Undated jalon has no predecessor and ends today.
	assert.Equal(t, today, periods[3].End)
	assert.Equal(t, SourceLookback, periods[3].Source)
}

func TestResolveAll_Idempotent(t *testing.T) {
	milestones := []entity.Milestone{
		{ID: 1, Axis: "a", Due: d("2025-03-01")},
		{ID: 2, Axis: "a", Due: d("2025-03-01")},
	}
	first := ResolveAll(milestones, nil, Config{Today: today})
	second := ResolveAll(milestones, nil, Config{Today: today})
	assert.Equal(t, first, second)

	// Equal due dates keep input order.
	assert.Equal(t, SourceLookback, first[0].Source)
	assert.Equal(t, SourcePreviousMilestone, first[1].Source)
}

func TestActionPeriod(t *testing.T) {
	p := ActionPeriod(entity.Action{ID: 1, Start: d("2025-01-05"), Due: d("2025-01-12"), Progress: 30}, today)
	assert.Equal(t, *d("2025-01-05"), p.Start)
	assert.Equal(t, *d("2025-01-12"), p.End)
	assert.Equal(t, 7, p.Days())
	assert.Equal(t, SourcePlanned, p.Source)

	p = ActionPeriod(entity.Action{ID: 2, Due: d("2025-01-12")}, today)
	assert.Equal(t, *d("2025-01-11"), p.Start)
	assert.Equal(t, SourceLookback, p.Source)

	p = ActionPeriod(entity.Action{ID: 3, Start: d("2025-01-05")}, today)
	assert.Equal(t, *d("2025-01-06"), p.End)

	p = ActionPeriod(entity.Action{ID: 4}, today)
	assert.Equal(t, today, p.End)
	assert.Equal(t, 1, p.Days())
}
