package reporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/gantt"
	"github.com/joshharrison/pertloom/internal/layout"
	"github.com/joshharrison/pertloom/internal/schedule"
)

var (
	epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	today = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
)

func day(n int) *time.Time {
	t := epoch.AddDate(0, 0, n)
	return &t
}

func intp(v int) *int { return &v }

func makePERT(t *testing.T) *PERT {
	t.Helper()
	actions := []entity.Action{
		{ID: 1, Title: "Kick-off", Axis: "a", Start: day(0), Due: day(3), Status: entity.StatusCompleted},
		{ID: 2, Title: "Design \"v2\"", Axis: "a", Start: day(3), Due: day(8)},
		{ID: 3, Title: "Build", Axis: "b", Due: day(12), Status: entity.StatusInProgress},
		{ID: 4, Title: "Stray", Axis: "zzz"},
	}
	s, err := schedule.Solve(actions, schedule.Options{
		Axes:   []entity.Axis{"a", "b", "c"},
		Today:  today,
		Layout: layout.DefaultConstants(),
		Labels: map[entity.Axis]string{"a": "Gouvernance"},
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	return BuildPERT("actions", s)
}

func TestBuildPERT(t *testing.T) {
	p := makePERT(t)

	if len(p.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(p.Nodes))
	}
	if p.Unclassified != 1 {
		t.Errorf("expected 1 unclassified, got %d", p.Unclassified)
	}
	if p.Epoch != "2025-01-01" {
		t.Errorf("expected epoch 2025-01-01, got %s", p.Epoch)
	}
	if got := p.Nodes[2].Predecessors; len(got) != 1 || got[0] != 2 {
		t.Errorf("expected node 3 to follow node 2, got %v", got)
	}
	if got := p.Nodes[1].EarlyStart; got != "2025-01-04" {
		t.Errorf("expected node 2 early start 2025-01-04, got %s", got)
	}
	if len(p.CriticalPath) == 0 {
		t.Error("expected a critical path")
	}
	if p.Nodes[0].Title != "Kick-off" || p.Nodes[0].Status != entity.StatusCompleted {
		t.Errorf("display fields not carried: %+v", p.Nodes[0])
	}
}

func TestPrintPERT(t *testing.T) {
	var buf bytes.Buffer
	PrintPERT(&buf, makePERT(t))

	output := buf.String()
	for _, want := range []string{"PERT", "Gouvernance", "Kick-off", "(empty)", "1 entities outside", "⚡"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestJSON(t *testing.T) {
	data, err := JSON(makePERT(t))
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"nodes", "critical_path", "layout", "waves", "project_end"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON should contain %q", key)
		}
	}
}

func TestDOT(t *testing.T) {
	var buf bytes.Buffer
	if err := DOT(&buf, makePERT(t)); err != nil {
		t.Fatalf("DOT: %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, `digraph "pert_actions" {`) {
		t.Errorf("unexpected header: %s", output)
	}
	if !strings.Contains(output, "n1 -> n2") {
		t.Error("expected chain edge n1 -> n2")
	}
	if !strings.Contains(output, "n2 -> n3") {
		t.Error("expected bridge edge n2 -> n3")
	}
	if !strings.Contains(output, `Design \"v2\"`) {
		t.Error("expected quotes in titles to be escaped")
	}
	if strings.Contains(output, "cluster_2") {
		t.Error("empty phases should not get a cluster")
	}
}

func TestBuildGantt(t *testing.T) {
	milestones := []entity.Milestone{
		{ID: 7, Title: "Cadrage", Axis: "a", Due: day(31)},
		{ID: 8, Title: "Go-live", Axis: "a", Due: day(60), Status: entity.StatusCompleted},
	}
	actions := []entity.Action{
		{ID: 1, Title: "Kick-off", Start: day(5), Due: day(10), Progress: 40, MilestoneID: intp(7)},
		{ID: 2, Title: "Loose", Start: day(1)},
		{ID: 3, Title: "Workshop", Start: day(9), Progress: 60, MilestoneID: intp(7)},
	}

	g := BuildGantt(milestones, actions, gantt.Config{Today: today})

	if g.Today != "2026-10-18" {
		t.Errorf("expected today 2026-10-18, got %s", g.Today)
	}
	var order []int
	for _, r := range g.Rows {
		order = append(order, r.EntityID)
	}
	want := []int{7, 1, 3, 8, 2}
	if len(order) != len(want) {
		t.Fatalf("expected rows %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected rows %v, got %v", want, order)
		}
	}

	cadrage := g.Rows[0]
	if cadrage.Progress != 50 || cadrage.Source != gantt.SourceLinkedActions {
		t.Errorf("unexpected cadrage row: %+v", cadrage)
	}
	if cadrage.Days != 26 {
		t.Errorf("expected 26 days, got %d", cadrage.Days)
	}
	golive := g.Rows[3]
	if golive.Source != gantt.SourcePreviousMilestone || golive.Progress != 100 {
		t.Errorf("unexpected go-live row: %+v", golive)
	}

	var buf bytes.Buffer
	PrintGantt(&buf, g)
	if !strings.Contains(buf.String(), "Workshop") {
		t.Error("expected Gantt table to list linked actions")
	}
}

func TestFallback(t *testing.T) {
	rows := BuildFlat([]entity.Milestone{
		{ID: 1, Title: "Undated"},
		{ID: 2, Title: "Soon", Due: day(3)},
	})
	if len(rows) != 2 || rows[0].ID != 2 || rows[0].Due != "2025-01-04" || rows[1].Due != "" {
		t.Fatalf("unexpected fallback rows: %+v", rows)
	}

	var buf bytes.Buffer
	PrintFallback(&buf, errors.New("cycle"), rows)
	if !strings.Contains(buf.String(), "no due date") {
		t.Error("expected undated rows to be marked")
	}
}

func TestTruncate_Runes(t *testing.T) {
	title := strings.Repeat("é", 39) + "tude de déploiement"
	got := truncate(title, 40)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated title is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 40 {
		t.Errorf("expected 40 runes, got %d", n)
	}
	if truncate("Cadrage réglementaire", 40) != "Cadrage réglementaire" {
		t.Error("short titles should be left alone")
	}

	var buf bytes.Buffer
	PrintGantt(&buf, &Gantt{Today: "2026-10-18", Rows: []GanttRow{{Kind: "jalon", Title: strings.Repeat("à", 50)}}})
	if !utf8.ValidString(buf.String()) {
		t.Error("Gantt table should stay valid UTF-8")
	}
}
