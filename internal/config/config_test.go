package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/gantt"
	"github.com/joshharrison/pertloom/internal/graph"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, entity.DefaultAxes, cfg.AxisList())
	assert.Equal(t, "Gouvernance", cfg.AxisLabels()["gouvernance"])
	assert.Equal(t, gantt.DefaultLookbackDays, cfg.Gantt.LookbackDays)
	assert.Equal(t, 180, cfg.Layout.NodeWidth)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "pertloom.yaml", `
project: Refonte SI
axes:
  - key: pilotage
    label: Pilotage
  - key: technique
    label: Technique
phases:
  - name: cadrage
    start: 2025-01-01
    end: 2025-03-31
gantt:
  lookback_days: 14
inference:
  duration_model: single
layout:
  node_width: 200
store:
  driver: sqlite
  path: dashboard.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Refonte SI", cfg.Project)
	assert.Equal(t, []entity.Axis{"pilotage", "technique"}, cfg.AxisList())
	assert.Equal(t, 14, cfg.Gantt.LookbackDays)
	assert.Equal(t, 200, cfg.Layout.NodeWidth)
	assert.Equal(t, 72, cfg.Layout.NodeHeight, "unset layout fields keep defaults")
	assert.Equal(t, "sqlite", cfg.Store.Driver)

	today := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	opts := cfg.GraphOptions(today)
	assert.Equal(t, graph.SingleDay, opts.DurationModel)

	gc := cfg.GanttConfig(today)
	require.Len(t, gc.Phases, 1)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), gc.Phases[0].End)
	assert.Equal(t, 14, gc.LookbackDays)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "pertloom.toml", `
project = "Refonte SI"

[[axes]]
key = "pilotage"
label = "Pilotage"

[[phases]]
name = "build"
start = "2025-04-01"
end = "2025-09-30"

[gantt]
lookback_days = 21

[viewer]
port = 8080
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []entity.Axis{"pilotage"}, cfg.AxisList())
	assert.Equal(t, 21, cfg.Gantt.LookbackDays)
	assert.Equal(t, 8080, cfg.Viewer.Port)
	assert.Equal(t, "json", cfg.Store.Driver)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "pertloom.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeFile(t, "pertloom.yaml", "colour: blue\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"no axes":        func(c *Config) { c.Axes = nil },
		"empty axis key": func(c *Config) { c.Axes = append(c.Axes, AxisConfig{}) },
		"duplicate axis": func(c *Config) { c.Axes = append(c.Axes, c.Axes[0]) },
		"bad phase date": func(c *Config) { c.Phases = []PhaseConfig{{Name: "x", Start: "soon", End: "2025-01-01"}} },
		"phase reversed": func(c *Config) {
			c.Phases = []PhaseConfig{{Name: "x", Start: "2025-02-01", End: "2025-01-01"}}
		},
		"duration model":    func(c *Config) { c.Inference.DurationModel = "weekly" },
		"negative lookback": func(c *Config) { c.Gantt.LookbackDays = -1 },
		"store driver":      func(c *Config) { c.Store.Driver = "postgres" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", Find(dir))

	path := filepath.Join(dir, "pertloom.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))
	assert.Equal(t, path, Find(dir))
}
