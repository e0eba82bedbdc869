// Package config loads the project configuration: the ordered axis list,
// the phase calendar, and the tuning knobs of the scheduling core.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/gantt"
	"github.com/joshharrison/pertloom/internal/graph"
	"github.com/joshharrison/pertloom/internal/layout"
)

// FileNames are searched, in order, when no config path is given.
var FileNames = []string{"pertloom.yaml", "pertloom.yml", "pertloom.toml", ".pertloom.yaml", ".pertloom.toml"}

// Config is the full project configuration.
type Config struct {
	Project   string           `yaml:"project" toml:"project"`
	Axes      []AxisConfig     `yaml:"axes" toml:"axes"`
	Phases    []PhaseConfig    `yaml:"phases" toml:"phases"`
	Gantt     GanttConfig      `yaml:"gantt" toml:"gantt"`
	Inference InferenceConfig  `yaml:"inference" toml:"inference"`
	Layout    layout.Constants `yaml:"layout" toml:"layout"`
	Store     StoreConfig      `yaml:"store" toml:"store"`
	Viewer    ViewerConfig     `yaml:"viewer" toml:"viewer"`
}

// AxisConfig is one workstream, in phase order.
type AxisConfig struct {
	Key   string `yaml:"key" toml:"key"`
	Label string `yaml:"label" toml:"label"`
}

// PhaseConfig is a named project phase. Dates are YYYY-MM-DD.
type PhaseConfig struct {
	Name  string `yaml:"name" toml:"name"`
	Start string `yaml:"start" toml:"start"`
	End   string `yaml:"end" toml:"end"`
}

// GanttConfig tunes the jalon period resolver.
type GanttConfig struct {
	LookbackDays int `yaml:"lookback_days" toml:"lookback_days"`
}

// InferenceConfig tunes the dependency inference engine.
type InferenceConfig struct {
	DurationModel string `yaml:"duration_model" toml:"duration_model"`
}

// StoreConfig points at the entity store.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "json" or "sqlite"
	Path   string `yaml:"path" toml:"path"`
}

// ViewerConfig configures the dashboard feed server.
type ViewerConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	axes := make([]AxisConfig, len(entity.DefaultAxes))
	for i, a := range entity.DefaultAxes {
		axes[i] = AxisConfig{Key: string(a), Label: strings.ToUpper(string(a[:1])) + string(a[1:])}
	}
	return &Config{
		Project:   "pertloom",
		Axes:      axes,
		Gantt:     GanttConfig{LookbackDays: gantt.DefaultLookbackDays},
		Inference: InferenceConfig{DurationModel: string(graph.GapFromPrevious)},
		Layout:    layout.DefaultConstants(),
		Store:     StoreConfig{Driver: "json", Path: "pertloom.json"},
		Viewer:    ViewerConfig{Port: 7171},
	}
}

// Load reads the config file at path, or the first of FileNames found in
// the working directory when path is empty. A missing default file yields
// DefaultConfig; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Find(".")
		if path == "" {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := Decode(cfg, data, filepath.Ext(path)); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode merges data onto cfg. ext selects the format (".toml" or YAML).
func Decode(cfg *Config, data []byte, ext string) error {
	switch strings.ToLower(ext) {
	case ".toml":
		_, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		return err
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
}

// Find returns the first config file present in dir, or "".
func Find(dir string) string {
	for _, name := range FileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Validate checks the config for values the core cannot work with.
func (c *Config) Validate() error {
	if len(c.Axes) == 0 {
		return fmt.Errorf("at least one axis is required")
	}
	seen := make(map[string]bool)
	for _, a := range c.Axes {
		if a.Key == "" {
			return fmt.Errorf("axis with empty key")
		}
		if seen[a.Key] {
			return fmt.Errorf("duplicate axis %q", a.Key)
		}
		seen[a.Key] = true
	}

	for _, p := range c.Phases {
		start, ok := dates.Parse(p.Start)
		if !ok {
			return fmt.Errorf("phase %q: bad start date %q", p.Name, p.Start)
		}
		end, ok := dates.Parse(p.End)
		if !ok {
			return fmt.Errorf("phase %q: bad end date %q", p.Name, p.End)
		}
		if end.Before(start) {
			return fmt.Errorf("phase %q ends before it starts", p.Name)
		}
	}

	switch graph.DurationModel(c.Inference.DurationModel) {
	case "", graph.GapFromPrevious, graph.SingleDay:
	default:
		return fmt.Errorf("unknown duration model %q", c.Inference.DurationModel)
	}

	if c.Gantt.LookbackDays < 0 {
		return fmt.Errorf("gantt lookback_days must not be negative")
	}

	switch c.Store.Driver {
	case "", "json", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// AxisList returns the configured axes in phase order.
func (c *Config) AxisList() []entity.Axis {
	axes := make([]entity.Axis, len(c.Axes))
	for i, a := range c.Axes {
		axes[i] = entity.Axis(a.Key)
	}
	return axes
}

// AxisLabels maps axis keys to display labels.
func (c *Config) AxisLabels() map[entity.Axis]string {
	labels := make(map[entity.Axis]string, len(c.Axes))
	for _, a := range c.Axes {
		labels[entity.Axis(a.Key)] = a.Label
	}
	return labels
}

// GraphOptions returns inference options for the given day.
func (c *Config) GraphOptions(today time.Time) graph.Options {
	return graph.Options{
		Axes:          c.AxisList(),
		Today:         today,
		DurationModel: graph.DurationModel(c.Inference.DurationModel),
	}
}

// GanttConfig returns resolver settings for the given day. Phases are
// assumed validated.
func (c *Config) GanttConfig(today time.Time) gantt.Config {
	cfg := gantt.Config{LookbackDays: c.Gantt.LookbackDays, Today: today}
	for _, p := range c.Phases {
		start, _ := dates.Parse(p.Start)
		end, _ := dates.Parse(p.End)
		cfg.Phases = append(cfg.Phases, gantt.Phase{Name: p.Name, Start: start, End: end})
	}
	return cfg
}
