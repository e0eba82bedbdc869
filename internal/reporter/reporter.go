// Package reporter renders computed schedules for the terminal, as JSON
// payloads for the dashboard, and as Graphviz DOT.
package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/ui"
)

// PrintPERT writes a terminal-friendly PERT table, one block per phase.
func PrintPERT(w io.Writer, p *PERT) {
	critical := 0
	for _, n := range p.Nodes {
		if n.Critical {
			critical++
		}
	}

	fmt.Fprintf(w, "%s %s — %d nodes, %d critical, project end day %d %s\n",
		ui.BoldCyan("PERT"), ui.Bold(p.Kind),
		len(p.Nodes), critical, p.ProjectEnd,
		ui.Dim(fmt.Sprintf("[epoch %s]", p.Epoch)))
	if p.Unclassified > 0 {
		fmt.Fprintf(w, "%s\n", ui.Yellow(fmt.Sprintf("%d entities outside the configured axes were left out", p.Unclassified)))
	}
	fmt.Fprintln(w)

	byPhase := make(map[int][]NodeView)
	for _, n := range p.Nodes {
		byPhase[n.Phase] = append(byPhase[n.Phase], n)
	}

	for i, lane := range p.Layout.Lanes {
		nodes := byPhase[i]
		fmt.Fprintf(w, "  %s %s\n", ui.BoldWhite("PHASE"), ui.AxisLabel(lane.Axis, lane.Label))
		if len(nodes) == 0 {
			fmt.Fprintf(w, "    %s\n\n", ui.Dim("(empty)"))
			continue
		}
		fmt.Fprintf(w, "    %s\n", ui.Dim(fmt.Sprintf("  %-6s %-40s %4s %4s %4s %4s %5s", "id", "title", "ES", "EF", "LS", "LF", "slack")))
		for _, n := range nodes {
			printNode(w, n)
		}
		fmt.Fprintln(w)
	}

	if len(p.CriticalPath) > 0 {
		ids := make([]string, len(p.CriticalPath))
		for i, id := range p.CriticalPath {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "Critical:  %s\n", ui.BoldYellow("⚡ "+strings.Join(ids, " → ")))
	}
}

func printNode(w io.Writer, n NodeView) {
	title := truncate(n.Title, 40)
	fmt.Fprintf(w, "    %s %s %-6s %-40s %4d %4d %4d %4d %s\n",
		ui.StatusIcon(n.Status), ui.CriticalMarker(n.Critical),
		ui.BoldMagenta(fmt.Sprint(n.ID)), title,
		n.ES, n.EF, n.LS, n.LF, ui.Slack(n.Slack))
}

// truncate shortens s to at most limit runes, ending in "...".
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

// PrintGantt writes the Gantt rows as a table. Actions are indented under
// their jalon.
func PrintGantt(w io.Writer, g *Gantt) {
	fmt.Fprintf(w, "%s %s\n\n", ui.BoldCyan("GANTT"), ui.Dim(fmt.Sprintf("[today %s]", g.Today)))
	for _, r := range g.Rows {
		title := r.Title
		indent := ""
		if r.Kind == "action" {
			indent = "  "
			if r.MilestoneID == nil {
				indent = ""
			}
		}
		title = truncate(title, 36)
		source := ""
		if r.Kind == "jalon" {
			source = ui.Dim(string(r.Source))
		}
		fmt.Fprintf(w, "  %s %s%-6s %-38s %s → %s %4dd  %s  %s\n",
			ui.StatusIcon(r.Status), indent,
			ui.BoldMagenta(fmt.Sprint(r.EntityID)), title,
			dates.Format(r.Start), dates.Format(r.End), r.Days,
			ui.Progress(r.Progress), source)
	}
}

// PrintFallback writes the unscheduled due-date list shown when the PERT
// computation fails.
func PrintFallback(w io.Writer, reason error, rows []FlatRow) {
	fmt.Fprintf(w, "%s %s\n\n", ui.BoldRed("Scheduling failed:"), reason)
	for _, r := range rows {
		due := ui.Dim("no due date")
		if r.Due != "" {
			due = r.Due
		}
		fmt.Fprintf(w, "  %s %-6s %-40s %s\n", ui.StatusIcon(r.Status), ui.BoldMagenta(fmt.Sprint(r.ID)), r.Title, due)
	}
}
