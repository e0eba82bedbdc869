package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/joshharrison/pertloom/internal/entity"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintLogo renders the pertloom banner to w.
func PrintLogo(w io.Writer) {
	frame := color.New(color.FgCyan)
	nodes := color.New(color.FgYellow)
	arrows := color.New(color.FgCyan, color.Faint)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	nodes.Fprintln(w, "   |  o--o--o     o--o--o     |")
	arrows.Fprintln(w, "   |         \\  /       \\    |")
	brand.Fprintln(w, "   |  P  E  R  T  L  O  O  M  |")
	arrows.Fprintln(w, "   |         /  \\       /    |")
	nodes.Fprintln(w, "   |  o--o--o     o--o--o     |")
	frame.Fprintln(w, "   +--------------------------+")
	tag.Fprintf(w, "   Critical paths for project dashboards\n")
	fmt.Fprintln(w)
}

// axisColors is a palette of distinct bold colors for differentiating axes.
var axisColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// axisColorIndex hashes an axis key to a palette index.
func axisColorIndex(axis entity.Axis) int {
	var h uint32
	for _, c := range axis {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(axisColors)))
}

// AxisLabel returns label colored by its axis.
// Each axis gets a stable color from the palette.
func AxisLabel(axis entity.Axis, label string) string {
	return axisColors[axisColorIndex(axis)](label)
}

// StatusIcon returns a colored status icon for compact table display.
func StatusIcon(status entity.Status) string {
	switch status {
	case entity.StatusCompleted:
		return Green("✓")
	case entity.StatusInProgress:
		return Cyan("●")
	case entity.StatusOverrun:
		return Red("✗")
	case entity.StatusBlocked:
		return Yellow("⊘")
	case entity.StatusCancelled:
		return Dim("⊘")
	default:
		return Dim("◌")
	}
}

// CriticalMarker returns the marker shown next to critical nodes.
func CriticalMarker(critical bool) string {
	if critical {
		return BoldYellow("⚡")
	}
	return " "
}

// Slack returns a colored slack value. Zero slack is red.
func Slack(days int) string {
	s := fmt.Sprintf("%dd", days)
	switch {
	case days == 0:
		return BoldRed(s)
	case days <= 5:
		return Yellow(s)
	default:
		return Green(s)
	}
}

// Progress renders a percentage with a short bar.
func Progress(pct int) string {
	const width = 10
	filled := min(width, max(0, pct*width/100))
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	text := fmt.Sprintf("%s %3d%%", bar, pct)
	if pct >= 100 {
		return Green(text)
	}
	return Dim(text)
}
