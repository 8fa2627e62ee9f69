package autopoiesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"

	"autopoiesis/internal/experiment"
	"autopoiesis/internal/model"
	"autopoiesis/internal/report"
	"autopoiesis/internal/sim"
	"autopoiesis/internal/stats"
	"autopoiesis/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"

	runStampLayout = "%Y%m%dT%H%M%S"

	trialChartFile    = "dashboard.html"
	scenarioChartFile = "scenario_comparison.html"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	// Now overrides the clock used for run ids and timestamps.
	Now func() time.Time
}

type Client struct {
	store       storage.Store
	initialized bool

	artifactsDir string
	exportsDir   string
	now          func() time.Time
}

type TrialRequest struct {
	Config      sim.TrialConfig
	Seed        int64
	HistoryPath string
	ChartPath   string
	Hooks       sim.Hooks
}

type TrialSummary struct {
	Seed        int64
	Stats       model.TrialStats
	History     []model.StepRecord
	HistoryPath string
	ChartPath   string
}

type CompareRequest struct {
	RunID       string
	Rich        sim.TrialConfig
	Poor        sim.TrialConfig
	BaseSeed    int64
	Trials      int
	Workers     int
	Metric      experiment.Metric
	KeepHistory bool
	Chart       bool
	OnTrialDone func(experiment.TrialOutcome)
}

type SweepRequest struct {
	RunID       string
	Scenarios   []experiment.Scenario
	BaseSeed    int64
	Trials      int
	Workers     int
	Metric      experiment.Metric
	Chart       bool
	OnTrialDone func(experiment.TrialOutcome)
}

type DynamicsRequest struct {
	RunID       string
	Config      sim.TrialConfig
	BaseSeed    int64
	Trials      int
	Workers     int
	OnTrialDone func(experiment.TrialOutcome)
}

// ExperimentSummary is what every persisted experiment returns. Exactly one
// of Comparison, Results or Dynamics describes the outcome.
type ExperimentSummary struct {
	RunID        string
	ArtifactsDir string
	ChartPath    string
	Record       model.ExperimentRecord
	Comparison   *experiment.Comparison
	Results      []experiment.ConfigResult
	Dynamics     *experiment.Dynamics
}

type RunsRequest struct {
	Limit int
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type ShowSummary struct {
	Record model.ExperimentRecord
	Trials []model.TrialRecord
	// Source is "store" or "artifacts".
	Source string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = storage.DefaultSQLitePath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
		now:          now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Trial runs a single trial and optionally writes its history CSV and
// dashboard. Nothing is stored.
func (c *Client) Trial(ctx context.Context, req TrialRequest) (TrialSummary, error) {
	result, err := sim.RunTrialWithHistory(ctx, req.Config, req.Seed, req.Hooks)
	if err != nil {
		return TrialSummary{}, err
	}
	summary := TrialSummary{Seed: req.Seed, Stats: result.Stats, History: result.History}

	if req.HistoryPath != "" {
		if err := ensureParent(req.HistoryPath); err != nil {
			return TrialSummary{}, err
		}
		if err := stats.WriteHistoryCSV(req.HistoryPath, result.History); err != nil {
			return TrialSummary{}, fmt.Errorf("write history: %w", err)
		}
		summary.HistoryPath = filepath.Clean(req.HistoryPath)
	}
	if req.ChartPath != "" {
		title := fmt.Sprintf("Autopoietic agent (seed %d)", req.Seed)
		if err := writeChart(req.ChartPath, func(f *os.File) error {
			return report.TrialDashboard(f, title, req.Config, result.History)
		}); err != nil {
			return TrialSummary{}, err
		}
		summary.ChartPath = filepath.Clean(req.ChartPath)
	}
	return summary, nil
}

// Compare runs rich against poor, stores the outcome and writes artifacts.
func (c *Client) Compare(ctx context.Context, req CompareRequest) (ExperimentSummary, error) {
	if err := c.Init(ctx); err != nil {
		return ExperimentSummary{}, err
	}
	expReq := experiment.Request{
		BaseSeed:    req.BaseSeed,
		Trials:      req.Trials,
		Workers:     req.Workers,
		Metric:      req.Metric,
		KeepHistory: req.KeepHistory || req.Chart,
	}
	comparison, err := experiment.Compare(ctx, req.Rich, req.Poor, expReq, experiment.Hooks{OnTrialDone: req.OnTrialDone})
	if err != nil {
		return ExperimentSummary{}, err
	}

	runID, createdAt := c.stamp(req.RunID, experiment.KindCompare)
	record := comparison.Record(runID, createdAt, storage.CurrentVersion())
	results := []experiment.ConfigResult{comparison.Rich, comparison.Poor}
	summary, err := c.persist(ctx, record, comparison.Request, results, req.KeepHistory)
	if err != nil {
		return ExperimentSummary{}, err
	}
	if req.Chart {
		path := filepath.Join(summary.ArtifactsDir, scenarioChartFile)
		if err := writeChart(path, func(f *os.File) error {
			return report.ScenarioComparison(f, "Rich vs poor", results)
		}); err != nil {
			return ExperimentSummary{}, err
		}
		summary.ChartPath = path
	}
	summary.Comparison = &comparison
	return summary, nil
}

// Scenarios runs the energy sweep, stores it and writes its comparison chart.
func (c *Client) Scenarios(ctx context.Context, req SweepRequest) (ExperimentSummary, error) {
	if err := c.Init(ctx); err != nil {
		return ExperimentSummary{}, err
	}
	if len(req.Scenarios) == 0 {
		req.Scenarios = experiment.Scenarios()
	}
	expReq := experiment.Request{
		BaseSeed:    req.BaseSeed,
		Trials:      req.Trials,
		Workers:     req.Workers,
		Metric:      req.Metric,
		KeepHistory: req.Chart,
	}
	results, err := experiment.RunScenarios(ctx, req.Scenarios, expReq, experiment.Hooks{OnTrialDone: req.OnTrialDone})
	if err != nil {
		return ExperimentSummary{}, err
	}

	runID, createdAt := c.stamp(req.RunID, experiment.KindScenarios)
	record := experiment.SweepRecord(experiment.KindScenarios, runID, createdAt, storage.CurrentVersion(), expReq, results)
	summary, err := c.persist(ctx, record, expReq, results, false)
	if err != nil {
		return ExperimentSummary{}, err
	}
	if req.Chart {
		path := filepath.Join(summary.ArtifactsDir, scenarioChartFile)
		if err := writeChart(path, func(f *os.File) error {
			return report.ScenarioComparison(f, "Energy scenarios", results)
		}); err != nil {
			return ExperimentSummary{}, err
		}
		summary.ChartPath = path
	}
	summary.Results = results
	return summary, nil
}

// Dynamics measures how energy gates learning and stores the run.
func (c *Client) Dynamics(ctx context.Context, req DynamicsRequest) (ExperimentSummary, error) {
	if err := c.Init(ctx); err != nil {
		return ExperimentSummary{}, err
	}
	expReq := experiment.Request{
		BaseSeed: req.BaseSeed,
		Trials:   req.Trials,
		Workers:  req.Workers,
	}
	dynamics, err := experiment.AnalyzeDynamics(ctx, req.Config, expReq, experiment.Hooks{OnTrialDone: req.OnTrialDone})
	if err != nil {
		return ExperimentSummary{}, err
	}

	runID, createdAt := c.stamp(req.RunID, experiment.KindDynamics)
	results := []experiment.ConfigResult{dynamics.Result}
	record := experiment.SweepRecord(experiment.KindDynamics, runID, createdAt, storage.CurrentVersion(), expReq, results)
	summary, err := c.persist(ctx, record, expReq, results, true)
	if err != nil {
		return ExperimentSummary{}, err
	}
	if len(dynamics.Result.Trials) > 0 {
		path := filepath.Join(summary.ArtifactsDir, trialChartFile)
		first := dynamics.Result.Trials[0]
		if err := writeChart(path, func(f *os.File) error {
			return report.TrialDashboard(f, fmt.Sprintf("Dynamics (seed %d)", first.Seed), req.Config, first.History)
		}); err != nil {
			return ExperimentSummary{}, err
		}
		summary.ChartPath = path
	}
	summary.Dynamics = &dynamics
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]stats.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

// Show loads an experiment from the store, falling back to its artifacts
// when the store does not hold it (a memory store in a new process).
func (c *Client) Show(ctx context.Context, req ShowRequest) (ShowSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ShowSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return ShowSummary{}, err
	}

	record, ok, err := c.store.GetExperiment(ctx, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	if ok {
		trials, _, err := c.store.GetTrials(ctx, runID)
		if err != nil {
			return ShowSummary{}, err
		}
		return ShowSummary{Record: record, Trials: trials, Source: "store"}, nil
	}

	record, ok, err = stats.ReadSummary(c.artifactsDir, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	if !ok {
		return ShowSummary{}, fmt.Errorf("run not found: %s", runID)
	}
	trials, _, err := stats.ReadTrials(c.artifactsDir, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	return ShowSummary{Record: record, Trials: trials, Source: "artifacts"}, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

// stamp picks the run id and creation timestamp of a new run.
func (c *Client) stamp(runID, kind string) (string, string) {
	now := c.now().UTC()
	if strings.TrimSpace(runID) == "" {
		runID = fmt.Sprintf("%s-%s-%s", kind, strftime.Format(runStampLayout, now), uuid.NewString()[:8])
	}
	return runID, now.Format(time.RFC3339Nano)
}

func (c *Client) persist(ctx context.Context, record model.ExperimentRecord, req experiment.Request, results []experiment.ConfigResult, keepHistory bool) (ExperimentSummary, error) {
	runID := record.RunID
	trials := experiment.TrialRecords(runID, storage.CurrentVersion(), results...)

	if err := c.store.SaveExperiment(ctx, record); err != nil {
		return ExperimentSummary{}, fmt.Errorf("save experiment: %w", err)
	}
	if err := c.store.SaveTrials(ctx, runID, trials); err != nil {
		return ExperimentSummary{}, fmt.Errorf("save trials: %w", err)
	}

	configs := make([]stats.LabeledConfig, 0, len(results))
	var histories []stats.TrialHistory
	for _, result := range results {
		configs = append(configs, stats.LabeledConfig{Label: result.Label, Config: result.Config})
		if !keepHistory {
			continue
		}
		for _, trial := range result.Trials {
			if trial.History == nil {
				continue
			}
			key := storage.HistoryKey{RunID: runID, Label: result.Label, Index: trial.Index}
			if err := c.store.SaveHistory(ctx, key, trial.History); err != nil {
				return ExperimentSummary{}, fmt.Errorf("save history: %w", err)
			}
			histories = append(histories, stats.TrialHistory{Label: result.Label, Index: trial.Index, Records: trial.History})
		}
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        runID,
			Kind:         record.Kind,
			CreatedAtUTC: record.CreatedAtUTC,
			BaseSeed:     req.BaseSeed,
			Trials:       req.Trials,
			Workers:      req.Workers,
			Metric:       record.Metric,
			Configs:      configs,
		},
		Trials:    trials,
		Summary:   record,
		Histories: histories,
	})
	if err != nil {
		return ExperimentSummary{}, err
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        runID,
		Kind:         record.Kind,
		BaseSeed:     req.BaseSeed,
		Trials:       req.Trials,
		Workers:      req.Workers,
		Metric:       record.Metric,
		Ratio:        record.Ratio,
		Verdict:      record.Verdict,
		CreatedAtUTC: record.CreatedAtUTC,
	}); err != nil {
		return ExperimentSummary{}, err
	}

	return ExperimentSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Record:       record,
	}, nil
}

func writeChart(path string, render func(*os.File) error) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
