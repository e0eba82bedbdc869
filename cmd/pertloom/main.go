package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/joshharrison/pertloom/internal/config"
	"github.com/joshharrison/pertloom/internal/cpm"
	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/reporter"
	"github.com/joshharrison/pertloom/internal/schedule"
	"github.com/joshharrison/pertloom/internal/store"
	"github.com/joshharrison/pertloom/internal/ui"
	"github.com/joshharrison/pertloom/internal/viewer"
)

var (
	flagConfig  string
	flagStore   string
	flagDriver  string
	flagToday   string
	flagJSON    bool
	flagVerbose bool
	flagKind    string
	flagOutput  string
)

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "pertloom"})

func main() {
	rootCmd := &cobra.Command{
		Use:   "pertloom",
		Short: "Infer PERT dependencies and Gantt periods for a project dashboard",
		Long: `Pertloom reads the actions and jalons of a project dashboard, infers their
dependency graph from phase and date order, runs a critical path analysis,
and lays the result out for the PERT and Gantt views.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Project config file (default: pertloom.yaml or pertloom.toml)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Entity store path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "", "Entity store driver: json or sqlite (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagToday, "today", "", "Reference day as YYYY-MM-DD (default: today)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(pertCmd())
	rootCmd.AddCommand(ganttCmd())
	rootCmd.AddCommand(dotCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pushCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is the loaded configuration plus everything derived from flags.
type env struct {
	cfg   *config.Config
	src   store.Source
	today time.Time
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDriver != "" {
		cfg.Store.Driver = flagDriver
	}
	if flagStore != "" {
		cfg.Store.Path = flagStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	today := dates.Day(time.Now())
	if flagToday != "" {
		t, ok := dates.Parse(flagToday)
		if !ok {
			return nil, fmt.Errorf("bad --today %q", flagToday)
		}
		today = t
	}

	src, err := store.Open(cfg.Store.Driver, cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", "project", cfg.Project, "store", cfg.Store.Path, "driver", cfg.Store.Driver, "today", dates.Format(today))
	return &env{cfg: cfg, src: src, today: today}, nil
}

func (e *env) load(ctx context.Context) (*store.Snapshot, error) {
	snap, err := e.src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	logger.Debug("entities loaded", "actions", len(snap.Actions), "jalons", len(snap.Milestones))
	return snap, nil
}

func (e *env) scheduleOptions() schedule.Options {
	g := e.cfg.GraphOptions(e.today)
	return schedule.Options{
		Axes:          g.Axes,
		Today:         g.Today,
		DurationModel: g.DurationModel,
		Layout:        e.cfg.Layout,
		Labels:        e.cfg.AxisLabels(),
	}
}

// pertResult is either a PERT payload or the fallback list.
type pertResult struct {
	pert     *reporter.PERT
	fallback *reporter.Fallback
}

func solvePERT[E entity.Described](kind string, entities []E, opts schedule.Options) (pertResult, error) {
	s, err := schedule.Solve(entities, opts)
	if err != nil {
		if errors.Is(err, cpm.ErrSchedulingFailed) {
			logger.Warn("scheduling failed, falling back to due-date list", "kind", kind, "err", err)
			return pertResult{fallback: &reporter.Fallback{Kind: kind, Error: err.Error(), Fallback: reporter.BuildFlat(entities)}}, nil
		}
		return pertResult{}, err
	}
	return pertResult{pert: reporter.BuildPERT(kind, s)}, nil
}

func buildPERT(ctx context.Context) (pertResult, error) {
	e, err := loadEnv()
	if err != nil {
		return pertResult{}, err
	}
	snap, err := e.load(ctx)
	if err != nil {
		return pertResult{}, err
	}

	switch flagKind {
	case "actions":
		return solvePERT("actions", snap.Actions, e.scheduleOptions())
	case "jalons":
		return solvePERT("jalons", snap.Milestones, e.scheduleOptions())
	default:
		return pertResult{}, fmt.Errorf("unknown --kind %q (want actions or jalons)", flagKind)
	}
}

func pertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pert",
		Short: "Compute the PERT schedule and critical path",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := buildPERT(cmd.Context())
			if err != nil {
				return err
			}

			var payload any = res.pert
			if res.fallback != nil {
				payload = res.fallback
			}

			if flagOutput != "" {
				data, err := reporter.JSON(payload)
				if err != nil {
					return err
				}
				return os.WriteFile(flagOutput, data, 0644)
			}
			if flagJSON {
				return outputJSON(payload)
			}

			if res.fallback != nil {
				reporter.PrintFallback(os.Stdout, errors.New(res.fallback.Error), res.fallback.Fallback)
				return nil
			}
			reporter.PrintPERT(os.Stdout, res.pert)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagKind, "kind", "actions", "Entities to schedule (actions, jalons)")
	cmd.Flags().StringVar(&flagOutput, "output", "", "Save the JSON payload to file")

	return cmd
}

func ganttCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gantt",
		Short: "Resolve Gantt periods for jalons and actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			snap, err := e.load(cmd.Context())
			if err != nil {
				return err
			}

			g := reporter.BuildGantt(snap.Milestones, snap.Actions, e.cfg.GanttConfig(e.today))

			if flagOutput != "" {
				data, err := reporter.JSON(g)
				if err != nil {
					return err
				}
				return os.WriteFile(flagOutput, data, 0644)
			}
			if flagJSON {
				return outputJSON(g)
			}
			reporter.PrintGantt(os.Stdout, g)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagOutput, "output", "", "Save the JSON payload to file")

	return cmd
}

func dotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Print the PERT graph in Graphviz DOT format",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := buildPERT(cmd.Context())
			if err != nil {
				return err
			}
			if res.fallback != nil {
				return fmt.Errorf("%s", res.fallback.Error)
			}
			return reporter.DOT(os.Stdout, res.pert)
		},
	}

	cmd.Flags().StringVar(&flagKind, "kind", "actions", "Entities to schedule (actions, jalons)")

	return cmd
}

func serveCmd() *cobra.Command {
	var (
		flagPort   int
		flagReload time.Duration
		flagOpen   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve PERT and Gantt payloads to the dashboard",
		Long: `Loads the entity store and serves the computed PERT and Gantt views over
HTTP. Renderers can subscribe on /ws to receive recomputed payloads whenever
the snapshot changes, either by --reload polling the store or by a POST to
/entities.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if flagPort == 0 {
				flagPort = e.cfg.Viewer.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// --today pins the day; otherwise the feed follows the clock.
			var pinned time.Time
			if flagToday != "" {
				pinned = e.today
			}
			opts := e.scheduleOptions()
			opts.Today = pinned
			gcfg := e.cfg.GanttConfig(pinned)

			srv := viewer.New(viewer.Options{Schedule: opts, Gantt: gcfg, Logger: logger})
			if !flagJSON {
				ui.PrintLogo(os.Stderr)
			}

			snap, err := e.load(ctx)
			if err != nil {
				return err
			}
			if _, err := srv.SetSnapshot(snap); err != nil {
				return err
			}

			if flagReload > 0 {
				go reload(ctx, e, srv, flagReload)
			}
			if flagOpen {
				openBrowser(fmt.Sprintf("http://localhost:%d/pert", flagPort))
			}

			return srv.Serve(ctx, flagPort)
		},
	}

	cmd.Flags().IntVar(&flagPort, "port", 0, "Port for the feed server (default: config viewer.port)")
	cmd.Flags().DurationVar(&flagReload, "reload", 0, "Re-read the entity store at this interval (e.g. 30s)")
	cmd.Flags().BoolVar(&flagOpen, "open", false, "Open the PERT payload in the browser")

	return cmd
}

// reload polls the store. Unchanged snapshots hash the same and keep the
// feed's cache.
func reload(ctx context.Context, e *env, srv *viewer.Server, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := e.load(ctx)
			if err != nil {
				logger.Warn("reload failed", "err", err)
				continue
			}
			if _, err := srv.SetSnapshot(snap); err != nil {
				logger.Warn("reload failed", "err", err)
			}
		}
	}
}

func pushCmd() *cobra.Command {
	var flagAddr string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send the entity store to a running feed server",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if flagAddr == "" {
				flagAddr = fmt.Sprintf("http://localhost:%d", e.cfg.Viewer.Port)
			}

			snap, err := e.load(cmd.Context())
			if err != nil {
				return err
			}
			info, err := viewer.PostEntities(flagAddr, snap)
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(info)
			}
			fmt.Printf("%s snapshot %s (%d actions, %d jalons) %s\n",
				ui.Green("✓"), ui.Bold(info.ID), info.Actions, info.Milestones, ui.Dim(info.Hash[:12]))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "Feed server base URL (default: http://localhost:<viewer.port>)")

	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and entity store and report scheduling problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			snap, err := e.load(cmd.Context())
			if err != nil {
				return err
			}

			report := checkSnapshot(snap, e)
			if flagJSON {
				if err := outputJSON(report); err != nil {
					return err
				}
			} else {
				printCheck(report)
			}
			if report.Failed() {
				return fmt.Errorf("check failed")
			}
			return nil
		},
	}
	return cmd
}

// checkReport collects problems found by check.
type checkReport struct {
	Project  string   `json:"project"`
	Actions  int      `json:"actions"`
	Jalons   int      `json:"jalons"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

func (r *checkReport) Failed() bool { return len(r.Errors) > 0 }

func checkSnapshot(snap *store.Snapshot, e *env) *checkReport {
	r := &checkReport{
		Project:  e.cfg.Project,
		Actions:  len(snap.Actions),
		Jalons:   len(snap.Milestones),
		Warnings: []string{},
		Errors:   []string{},
	}
	axes := e.cfg.AxisList()

	if _, n := entity.Classify(snap.Actions, axes); n > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d actions have an axis outside the configured list", n))
	}
	if _, n := entity.Classify(snap.Milestones, axes); n > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d jalons have an axis outside the configured list", n))
	}

	jalons := make(map[int]bool)
	for _, m := range snap.Milestones {
		if jalons[m.ID] && m.ID != 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("duplicate jalon id %d", m.ID))
		}
		jalons[m.ID] = true
		if m.Due == nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("jalon %d has no due date", m.ID))
		}
	}
	seen := make(map[int]bool)
	for _, a := range snap.Actions {
		if seen[a.ID] && a.ID != 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("duplicate action id %d", a.ID))
		}
		seen[a.ID] = true
		if a.MilestoneID != nil && !jalons[*a.MilestoneID] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("action %d points at unknown jalon %d", a.ID, *a.MilestoneID))
		}
		if a.Start != nil && a.Due != nil && a.Due.Before(*a.Start) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("action %d ends before it starts", a.ID))
		}
	}

	opts := e.scheduleOptions()
	if _, err := schedule.Solve(snap.Actions, opts); err != nil {
		r.Errors = append(r.Errors, "actions: "+err.Error())
	}
	if _, err := schedule.Solve(snap.Milestones, opts); err != nil {
		r.Errors = append(r.Errors, "jalons: "+err.Error())
	}
	return r
}

func printCheck(r *checkReport) {
	fmt.Printf("%s %s: %d actions, %d jalons\n", ui.BoldCyan("check"), ui.Bold(r.Project), r.Actions, r.Jalons)
	for _, w := range r.Warnings {
		fmt.Printf("  %s %s\n", ui.Yellow("!"), w)
	}
	for _, e := range r.Errors {
		fmt.Printf("  %s %s\n", ui.Red("✗"), e)
	}
	if !r.Failed() {
		fmt.Printf("  %s schedules solve\n", ui.Green("✓"))
	}
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		cmd = exec.Command("cmd", "/c", "start", url)
	}
	cmd.Start()
}

// --- Output helpers ---

func outputJSON(v interface{}) error {
	data, err := reporter.JSON(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
