// Package layout places a solved PERT graph on a phase-by-column grid and
// produces pixel coordinates and SVG path data for a renderer.
//
// Coordinates are computed at scale 1. Zoom is applied by the renderer
// through Transform/Viewport so the graph never needs recomputing.
package layout

import (
	"fmt"

	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/graph"
)

// Constants are the pixel dimensions of the grid.
type Constants struct {
	NodeWidth   int `json:"node_width" yaml:"node_width" toml:"node_width"`
	NodeHeight  int `json:"node_height" yaml:"node_height" toml:"node_height"`
	HGap        int `json:"h_gap" yaml:"h_gap" toml:"h_gap"`
	VGap        int `json:"v_gap" yaml:"v_gap" toml:"v_gap"`
	HeaderWidth int `json:"header_width" yaml:"header_width" toml:"header_width"`
	Padding     int `json:"padding" yaml:"padding" toml:"padding"`
}

// DefaultConstants matches the dashboard's PERT view.
func DefaultConstants() Constants {
	return Constants{
		NodeWidth:   180,
		NodeHeight:  72,
		HGap:        60,
		VGap:        40,
		HeaderWidth: 140,
		Padding:     24,
	}
}

// Point is a top-left pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NodeBox is a node's position on the canvas.
type NodeBox struct {
	Node   int   `json:"node"` // arena index
	Phase  int   `json:"phase"`
	Column int   `json:"column"`
	Pos    Point `json:"pos"`
}

// EdgePath is an SVG path between two node boxes.
type EdgePath struct {
	From       int    `json:"from"`
	To         int    `json:"to"`
	Path       string `json:"path"`
	CrossPhase bool   `json:"cross_phase"`
	Critical   bool   `json:"critical"`
}

// Lane is the header row of one phase.
type Lane struct {
	Axis  entity.Axis `json:"axis"`
	Label string      `json:"label"`
	Y     int         `json:"y"`
	Empty bool        `json:"empty"`
}

// Layout is the positioned graph.
type Layout struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Nodes  []NodeBox  `json:"nodes"`
	Edges  []EdgePath `json:"edges"`
	Lanes  []Lane     `json:"lanes"`
	Start  Point      `json:"start"` // synthetic start marker, centre
	End    Point      `json:"end"`   // synthetic end marker, centre
}

// Compute lays out a graph. labels maps axes to display names; missing
// labels fall back to the axis key.
func Compute[E entity.Schedulable](g *graph.Graph[E], c Constants, labels map[entity.Axis]string) *Layout {
	if c == (Constants{}) {
		c = DefaultConstants()
	}

	cols := g.MaxColumns()
	phases := len(g.Axes)

	l := &Layout{
		Width:  c.HeaderWidth + 2*c.Padding + span(cols, c.NodeWidth, c.HGap),
		Height: 2*c.Padding + span(phases, c.NodeHeight, c.VGap),
		Nodes:  make([]NodeBox, len(g.Nodes)),
	}

	for i, n := range g.Nodes {
		l.Nodes[i] = NodeBox{
			Node:   i,
			Phase:  n.PhaseIndex,
			Column: n.ColumnIndex,
			Pos:    Position(c, n.PhaseIndex, n.ColumnIndex),
		}
	}

	for p, axis := range g.Axes {
		label := labels[axis]
		if label == "" {
			label = string(axis)
		}
		l.Lanes = append(l.Lanes, Lane{
			Axis:  axis,
			Label: label,
			Y:     Position(c, p, 0).Y,
			Empty: len(g.Phases[p]) == 0,
		})
	}

	for _, e := range g.Edges() {
		from, to := l.Nodes[e.From], l.Nodes[e.To]
		l.Edges = append(l.Edges, EdgePath{
			From:       e.From,
			To:         e.To,
			Path:       edgePath(c, from.Pos, to.Pos, from.Phase != to.Phase),
			CrossPhase: from.Phase != to.Phase,
			Critical:   g.Nodes[e.From].IsCritical && g.Nodes[e.To].IsCritical,
		})
	}

	midY := l.Height / 2
	l.Start = Point{X: c.HeaderWidth + c.Padding/2, Y: midY}
	l.End = Point{X: l.Width - c.Padding/2, Y: midY}

	return l
}

// Position returns the top-left corner of the cell at (phase, column).
func Position(c Constants, phase, column int) Point {
	return Point{
		X: c.HeaderWidth + c.Padding + column*(c.NodeWidth+c.HGap),
		Y: c.Padding + phase*(c.NodeHeight+c.VGap),
	}
}

// span is the extent of n cells of size `size` separated by gap.
func span(n, size, gap int) int {
	if n == 0 {
		return 0
	}
	return n*size + (n-1)*gap
}

// edgePath joins the right-middle of the source box to the left-middle of
// the target box. Cross-phase edges bend through a horizontal midpoint.
func edgePath(c Constants, from, to Point, crossPhase bool) string {
	x1 := from.X + c.NodeWidth
	y1 := from.Y + c.NodeHeight/2
	x2 := to.X
	y2 := to.Y + c.NodeHeight/2

	if !crossPhase {
		return fmt.Sprintf("M %d %d L %d %d", x1, y1, x2, y2)
	}
	mx := (x1 + x2) / 2
	return fmt.Sprintf("M %d %d C %d %d, %d %d, %d %d", x1, y1, mx, y1, mx, y2, x2, y2)
}

// Viewport returns the canvas size at the given zoom factor.
func (l *Layout) Viewport(scale float64) (width, height int) {
	if scale <= 0 {
		scale = 1
	}
	return int(float64(l.Width)*scale + 0.5), int(float64(l.Height)*scale + 0.5)
}

// Transform returns the SVG transform attribute for the given zoom factor.
func Transform(scale float64) string {
	if scale <= 0 {
		scale = 1
	}
	return fmt.Sprintf("scale(%g)", scale)
}
