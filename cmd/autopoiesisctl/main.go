package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"autopoiesis/internal/experiment"
	"autopoiesis/internal/model"
	"autopoiesis/internal/sim"
	"autopoiesis/internal/storage"
	api "autopoiesis/pkg/autopoiesis"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:], out)
	case "trial":
		return runTrial(ctx, args[1:], out)
	case "compare":
		return runCompare(ctx, args[1:], out)
	case "scenarios":
		return runScenarios(ctx, args[1:], out)
	case "dynamics":
		return runDynamics(ctx, args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	case "show":
		return runShow(ctx, args[1:], out)
	case "export":
		return runExport(ctx, args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are the store and artifact flags shared by every command.
type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", storage.DefaultSQLitePath, "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", artifactsDir, "experiment artifacts directory"),
	}
}

func (f clientFlags) open() (*api.Client, error) {
	return api.New(api.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   exportsDir,
	})
}

// experimentFlags are the flags a config file can also provide.
type experimentFlags struct {
	configPath *string
	seed       *int64
	trials     *int
	workers    *int
	metric     *string
	steps      *int
	noExplore  *bool
	progress   *bool
}

func addExperimentFlags(fs *flag.FlagSet, trials int) experimentFlags {
	return experimentFlags{
		configPath: fs.String("config", "", "optional YAML or JSON config path"),
		seed:       fs.Int64("seed", 42, "base seed; trial i uses seed+i"),
		trials:     fs.Int("trials", trials, "trials per configuration"),
		workers:    fs.Int("workers", 0, "worker count (0 uses GOMAXPROCS)"),
		metric:     fs.String("metric", string(experiment.MetricFeeding), "efficiency metric: feeding|energy"),
		steps:      fs.Int("steps", 1000, "step budget per trial"),
		noExplore:  fs.Bool("no-explore", false, "disable heuristic and epsilon exploration"),
		progress:   fs.Bool("progress", false, "print a line per finished trial"),
	}
}

// load merges the config file with the flags set explicitly on fs.
func (f experimentFlags) load(fs *flag.FlagSet) (runConfig, error) {
	setFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) {
		setFlags[fl.Name] = true
	})

	cfg, err := loadOrDefaultRunConfig(*f.configPath)
	if err != nil {
		return runConfig{}, err
	}
	if *f.configPath == "" {
		// Without a file every flag value applies, defaults included.
		for _, name := range []string{"seed", "trials", "workers", "metric", "steps"} {
			setFlags[name] = true
		}
	}
	if err := overrideFromFlags(&cfg, setFlags, map[string]any{
		"seed":       *f.seed,
		"trials":     *f.trials,
		"workers":    *f.workers,
		"metric":     *f.metric,
		"steps":      *f.steps,
		"no-explore": *f.noExplore,
	}); err != nil {
		return runConfig{}, err
	}
	if cfg.Trials <= 0 {
		return runConfig{}, errors.New("trials must be > 0")
	}
	return cfg, nil
}

func (f experimentFlags) onTrialDone(out io.Writer) func(experiment.TrialOutcome) {
	if !*f.progress {
		return nil
	}
	return func(o experiment.TrialOutcome) {
		printTrialProgress(out, o)
	}
}

func runInit(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "initialized store=%s\n", *cf.storeKind)
	return nil
}

func runTrial(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trial", flag.ContinueOnError)
	cf := addClientFlags(fs)
	ef := addExperimentFlags(fs, 1)
	preset := fs.String("preset", "", "trial preset: default|rich|poor|legacy-poor")
	historyPath := fs.String("history", "", "optional step history CSV path")
	chartPath := fs.String("chart", "", "optional dashboard HTML path")
	progressEvery := fs.Int("progress-every", 0, "print energy every N steps (0 disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ef.load(fs)
	if err != nil {
		return err
	}
	trialCfg := cfg.Trial
	if *preset != "" {
		trialCfg, err = presetConfig(*preset)
		if err != nil {
			return err
		}
		trialCfg.Steps = cfg.Trial.Steps
		trialCfg.Explore = cfg.Trial.Explore
	}

	hooks := sim.Hooks{ProgressEvery: *progressEvery}
	if *progressEvery > 0 {
		hooks.OnProgress = func(r model.StepRecord) { printStepProgress(out, r) }
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Trial(ctx, api.TrialRequest{
		Config:      trialCfg,
		Seed:        cfg.Seed,
		HistoryPath: *historyPath,
		ChartPath:   *chartPath,
		Hooks:       hooks,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "trial seed=%d decay=%g cost=%g threshold=%g\n", summary.Seed, trialCfg.DecayRate, trialCfg.ComputationCost, trialCfg.LearningThreshold)
	printTrialStats(out, summary.Stats)
	if summary.HistoryPath != "" {
		fmt.Fprintf(out, "history=%s\n", summary.HistoryPath)
	}
	if summary.ChartPath != "" {
		fmt.Fprintf(out, "chart=%s\n", summary.ChartPath)
	}
	return nil
}

func runCompare(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	cf := addClientFlags(fs)
	ef := addExperimentFlags(fs, 10)
	runID := fs.String("run-id", "", "explicit run id (optional)")
	legacy := fs.Bool("legacy", false, "compare against the harsher first-generation poor config")
	keepHistory := fs.Bool("history", false, "store step histories and write them as CSV artifacts")
	chart := fs.Bool("chart", false, "write a comparison chart into the run directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ef.load(fs)
	if err != nil {
		return err
	}
	if *legacy {
		legacyPoor := experiment.LegacyPoorConfig()
		cfg.Poor.DecayRate = legacyPoor.DecayRate
		cfg.Poor.ComputationCost = legacyPoor.ComputationCost
		cfg.Poor.LearningThreshold = legacyPoor.LearningThreshold
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Compare(ctx, api.CompareRequest{
		RunID:       *runID,
		Rich:        cfg.Rich,
		Poor:        cfg.Poor,
		BaseSeed:    cfg.Seed,
		Trials:      cfg.Trials,
		Workers:     cfg.Workers,
		Metric:      experiment.Metric(cfg.Metric),
		KeepHistory: *keepHistory,
		Chart:       *chart,
		OnTrialDone: ef.onTrialDone(out),
	})
	if err != nil {
		return err
	}

	c := summary.Comparison
	fmt.Fprintf(out, "run_id=%s kind=%s seed=%d trials=%d metric=%s\n", summary.RunID, summary.Record.Kind, cfg.Seed, c.Request.Trials, c.Request.Metric)
	printAverages(out, c.Rich.Averages)
	printAverages(out, c.Poor.Averages)
	au := newAurora(out)
	fmt.Fprintf(out, "ratio=%s verdict=%s valid=%t\n", formatRatio(summary.Record.Ratio), colorVerdict(au, string(c.Verdict)), c.Valid)
	for _, check := range c.Checks {
		fmt.Fprintf(out, "check=%s passed=%s detail=%q\n", check.Name, colorPassed(au, check.Passed), check.Detail)
	}
	printArtifacts(out, summary)
	return nil
}

func runScenarios(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("scenarios", flag.ContinueOnError)
	cf := addClientFlags(fs)
	ef := addExperimentFlags(fs, 5)
	runID := fs.String("run-id", "", "explicit run id (optional)")
	noChart := fs.Bool("no-chart", false, "skip the scenario comparison chart")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ef.load(fs)
	if err != nil {
		return err
	}
	scenarios := experiment.Scenarios()
	for i := range scenarios {
		scenarios[i].Config.Steps = cfg.Trial.Steps
		scenarios[i].Config.Explore = cfg.Trial.Explore
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Scenarios(ctx, api.SweepRequest{
		RunID:       *runID,
		Scenarios:   scenarios,
		BaseSeed:    cfg.Seed,
		Trials:      cfg.Trials,
		Workers:     cfg.Workers,
		Metric:      experiment.Metric(cfg.Metric),
		Chart:       !*noChart,
		OnTrialDone: ef.onTrialDone(out),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run_id=%s kind=%s seed=%d trials=%d\n", summary.RunID, summary.Record.Kind, cfg.Seed, cfg.Trials)
	for _, result := range summary.Results {
		printAverages(out, result.Averages)
	}
	printArtifacts(out, summary)
	return nil
}

func runDynamics(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("dynamics", flag.ContinueOnError)
	cf := addClientFlags(fs)
	ef := addExperimentFlags(fs, 5)
	runID := fs.String("run-id", "", "explicit run id (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ef.load(fs)
	if err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Dynamics(ctx, api.DynamicsRequest{
		RunID:       *runID,
		Config:      cfg.Trial,
		BaseSeed:    cfg.Seed,
		Trials:      cfg.Trials,
		Workers:     cfg.Workers,
		OnTrialDone: ef.onTrialDone(out),
	})
	if err != nil {
		return err
	}

	d := summary.Dynamics
	fmt.Fprintf(out, "run_id=%s kind=%s seed=%d trials=%d\n", summary.RunID, summary.Record.Kind, cfg.Seed, cfg.Trials)
	printAverages(out, d.Result.Averages)
	if d.HasCorrelation {
		fmt.Fprintf(out, "energy_learning_correlation=%.4f\n", d.Correlation)
	} else {
		fmt.Fprintln(out, "energy_learning_correlation=n/a")
	}
	if d.HasThreshold {
		fmt.Fprintf(out, "effective_threshold=%.2f configured_threshold=%.2f\n", d.EffectiveThreshold, d.ConfiguredThreshold)
	} else {
		fmt.Fprintf(out, "effective_threshold=n/a configured_threshold=%.2f\n", d.ConfiguredThreshold)
	}
	printArtifacts(out, summary)
	return nil
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	cf := addClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer client.Close()

	entries, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}
	au := newAurora(out)
	for _, e := range entries {
		verdict := e.Verdict
		if verdict == "" {
			verdict = "-"
		}
		fmt.Fprintf(out, "run_id=%s kind=%s created_at=%s seed=%d trials=%d metric=%s ratio=%s verdict=%s\n",
			e.RunID, e.Kind, e.CreatedAtUTC, e.BaseSeed, e.Trials, e.Metric, formatRatio(e.Ratio), colorVerdict(au, verdict))
	}
	return nil
}

func runShow(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	showTrials := fs.Bool("trials", false, "print every trial")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("show requires --run-id or --latest")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer client.Close()

	shown, err := client.Show(ctx, api.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}

	r := shown.Record
	fmt.Fprintf(out, "run_id=%s kind=%s created_at=%s seed=%d trials=%d metric=%s source=%s\n", r.RunID, r.Kind, r.CreatedAtUTC, r.BaseSeed, r.Trials, r.Metric, shown.Source)
	for _, avg := range r.Configs {
		printAverages(out, avg)
	}
	if r.Kind == experiment.KindCompare {
		fmt.Fprintf(out, "ratio=%s verdict=%s valid=%t\n", formatRatio(r.Ratio), colorVerdict(newAurora(out), r.Verdict), r.Valid)
	}
	if *showTrials {
		for _, trial := range shown.Trials {
			fmt.Fprintf(out, "trial label=%s index=%d seed=%d ", trial.Label, trial.Index, trial.Seed)
			printTrialStats(out, trial.Stats)
		}
	}
	return nil
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer client.Close()

	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "exported run_id=%s to=%s\n", exported.RunID, filepath.Clean(exported.Directory))
	return nil
}

func presetConfig(name string) (sim.TrialConfig, error) {
	switch name {
	case "default":
		return sim.DefaultTrialConfig(), nil
	case "rich":
		return experiment.RichConfig(), nil
	case "poor":
		return experiment.PoorConfig(), nil
	case "legacy-poor":
		return experiment.LegacyPoorConfig(), nil
	default:
		return sim.TrialConfig{}, fmt.Errorf("unknown preset: %s", name)
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: autopoiesisctl <init|trial|compare|scenarios|dynamics|runs|show|export> [flags]", msg)
}
