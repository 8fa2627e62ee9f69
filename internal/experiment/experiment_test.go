package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopoiesis/internal/model"
	"autopoiesis/internal/sim"
)

func shortConfig(cfg sim.TrialConfig, steps int) sim.TrialConfig {
	cfg.Steps = steps
	return cfg
}

func TestPresetsCarryDocumentedTunables(t *testing.T) {
	cases := []struct {
		name                   string
		cfg                    sim.TrialConfig
		decay, cost, threshold float64
	}{
		{"rich", RichConfig(), 0.05, 0.005, 25},
		{"poor", PoorConfig(), 0.12, 0.015, 60},
		{"legacy poor", LegacyPoorConfig(), 0.18, 0.025, 75},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.decay, tc.cfg.DecayRate, tc.name)
		assert.Equal(t, tc.cost, tc.cfg.ComputationCost, tc.name)
		assert.Equal(t, tc.threshold, tc.cfg.LearningThreshold, tc.name)
		assert.Equal(t, 1000, tc.cfg.Steps, tc.name)
		require.NoError(t, tc.cfg.Validate(), tc.name)
	}

	scenarios := Scenarios()
	require.Len(t, scenarios, 4)
	names := make([]string, 0, len(scenarios))
	for i, s := range scenarios {
		names = append(names, s.Name)
		require.NoError(t, s.Config.Validate(), s.Name)
		if i > 0 {
			prev := scenarios[i-1].Config
			assert.Greater(t, s.Config.DecayRate, prev.DecayRate, s.Name)
			assert.Greater(t, s.Config.ComputationCost, prev.ComputationCost, s.Name)
			assert.Greater(t, s.Config.LearningThreshold, prev.LearningThreshold, s.Name)
		}
	}
	assert.Equal(t, []string{"Abundant Energy", "Moderate Energy", "Scarce Energy", "Extreme Scarcity"}, names)
}

func TestRunTrialsUsesPairedSeedsAndIgnoresWorkerCount(t *testing.T) {
	cfg := shortConfig(PoorConfig(), 300)
	serial, err := RunTrials(context.Background(), LabelPoor, cfg, Request{BaseSeed: 7, Trials: 4, Workers: 1}, Hooks{})
	require.NoError(t, err)
	parallel, err := RunTrials(context.Background(), LabelPoor, cfg, Request{BaseSeed: 7, Trials: 4, Workers: 4}, Hooks{})
	require.NoError(t, err)

	require.Len(t, serial.Trials, 4)
	for i, trial := range serial.Trials {
		assert.Equal(t, i, trial.Index)
		assert.Equal(t, int64(7+i), trial.Seed)
		assert.Nil(t, trial.History)
	}
	assert.Equal(t, serial.Trials, parallel.Trials)
	assert.Equal(t, serial.Averages, parallel.Averages)
	assert.Equal(t, 4, serial.Averages.Trials)
	assert.Equal(t, cfg.Params(), serial.Averages.Params)

	single, err := sim.RunTrial(context.Background(), cfg, 9)
	require.NoError(t, err)
	assert.Equal(t, single, serial.Trials[2].Stats)
}

func TestRunTrialsKeepsHistoryWhenAsked(t *testing.T) {
	cfg := shortConfig(RichConfig(), 50)
	result, err := RunTrials(context.Background(), LabelRich, cfg, Request{Trials: 2, KeepHistory: true}, Hooks{})
	require.NoError(t, err)
	for _, history := range result.Histories() {
		assert.Len(t, history, 50)
	}
}

func TestRunTrialsRejectsMisuse(t *testing.T) {
	ctx := context.Background()
	_, err := RunTrials(ctx, "x", RichConfig(), Request{Trials: 0}, Hooks{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = RunTrials(ctx, "x", RichConfig(), Request{Trials: 1, Metric: "speed"}, Hooks{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	bad := RichConfig()
	bad.ComputationCost = -1
	_, err = RunTrials(ctx, "x", bad, Request{Trials: 1}, Hooks{})
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestRunTrialsReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunTrials(ctx, "x", RichConfig(), Request{Trials: 3, Workers: 2}, Hooks{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestHooksSeeEveryTrial(t *testing.T) {
	cfg := shortConfig(RichConfig(), 20)
	seen := map[int]bool{}
	_, err := RunTrials(context.Background(), LabelRich, cfg, Request{Trials: 5, Workers: 3}, Hooks{
		OnTrialDone: func(o TrialOutcome) { seen[o.Index] = true },
	})
	require.NoError(t, err)
	assert.Len(t, seen, 5)
}

func TestMetricSelectsEfficiency(t *testing.T) {
	stats := model.TrialStats{FeedingEfficiency: 0.01, EnergyEfficiency: 0.2}
	assert.Equal(t, 0.01, MetricFeeding.Of(stats))
	assert.Equal(t, 0.2, MetricEnergy.Of(stats))
	assert.Equal(t, 0.01, Metric("").Of(stats))
}

func TestAverage(t *testing.T) {
	outcomes := []TrialOutcome{
		{Stats: model.TrialStats{FoodConsumed: 4, LearningRatio: 0.5, FeedingEfficiency: 0.01, SurvivalTime: 400, AverageEnergy: 60}},
		{Stats: model.TrialStats{FoodConsumed: 8, LearningRatio: 0.7, FeedingEfficiency: 0.03, SurvivalTime: 600, AverageEnergy: 80}},
	}
	avg := Average("poor", PoorConfig(), outcomes, MetricFeeding)
	assert.Equal(t, "poor", avg.Label)
	assert.Equal(t, 2, avg.Trials)
	assert.Equal(t, 6.0, avg.FoodConsumed)
	assert.InDelta(t, 0.6, avg.LearningRatio, 1e-12)
	assert.InDelta(t, 0.02, avg.Efficiency, 1e-12)
	assert.InDelta(t, 0.01, avg.EfficiencyStd, 1e-12)
	assert.Equal(t, 500.0, avg.SurvivalTime)
	assert.Equal(t, 70.0, avg.AverageEnergy)

	empty := Average("none", RichConfig(), nil, MetricFeeding)
	assert.Zero(t, empty.Trials)
	assert.Zero(t, empty.Efficiency)
}

func TestClassify(t *testing.T) {
	cases := map[float64]Verdict{
		1.22: VerdictStrongEmergence,
		1.15: VerdictMildEmergence,
		1.06: VerdictMildEmergence,
		1.05: VerdictComparable,
		0.95: VerdictComparable,
		0.9:  VerdictRichMoreEfficient,
		0.4:  VerdictRichMoreEfficient,
	}
	for ratio, want := range cases {
		assert.Equal(t, want, Classify(ratio), "ratio %v", ratio)
	}
}

func result(label string, food, learning, efficiency float64) ConfigResult {
	return ConfigResult{
		Label: label,
		Averages: model.ConfigAverages{
			Label:         label,
			FoodConsumed:  food,
			LearningRatio: learning,
			Efficiency:    efficiency,
		},
	}
}

func TestAssess(t *testing.T) {
	req := Request{Trials: 3, Metric: MetricFeeding}

	healthy := Assess(req, result(LabelRich, 10, 0.95, 0.010), result(LabelPoor, 8, 0.45, 0.012))
	require.True(t, healthy.HasRatio)
	assert.InDelta(t, 1.2, healthy.Ratio, 1e-12)
	assert.Equal(t, VerdictStrongEmergence, healthy.Verdict)
	assert.True(t, healthy.Valid)
	require.Len(t, healthy.Checks, 4)

	starving := Assess(req, result(LabelRich, 10, 0.95, 0.010), result(LabelPoor, 0, 0.1, 0))
	assert.False(t, starving.HasRatio)
	assert.Equal(t, VerdictInsufficient, starving.Verdict)
	assert.False(t, starving.Valid)

	lazy := Assess(req, result(LabelRich, 10, 0.95, 0.010), result(LabelPoor, 0.5, 0.2, 0.0095))
	require.True(t, lazy.HasRatio)
	assert.Equal(t, VerdictComparable, lazy.Verdict)
	assert.False(t, lazy.Valid)
	failed := map[string]bool{}
	for _, check := range lazy.Checks {
		if !check.Passed {
			failed[check.Name] = true
		}
	}
	assert.Equal(t, map[string]bool{"both_found_food": true, "poor_learns": true, "learning_balance": true}, failed)
}

func TestComparisonRecords(t *testing.T) {
	req := Request{BaseSeed: 42, Trials: 3, Metric: MetricFeeding}
	rich := result(LabelRich, 10, 0.95, 0.010)
	rich.Config = RichConfig()
	rich.Trials = []TrialOutcome{{Index: 0, Seed: 42}}
	c := Assess(req, rich, result(LabelPoor, 8, 0.45, 0.012))
	version := model.VersionedRecord{SchemaVersion: 1, CodecVersion: 1}

	record := c.Record("run-1", "2026-03-01T10:00:00Z", version)
	assert.Equal(t, KindCompare, record.Kind)
	assert.Equal(t, int64(42), record.BaseSeed)
	assert.Equal(t, "strong_emergence", record.Verdict)
	require.NotNil(t, record.Ratio)
	assert.InDelta(t, 1.2, *record.Ratio, 1e-12)
	assert.Len(t, record.Configs, 2)

	noRatio := Assess(req, result(LabelRich, 0, 0.95, 0), result(LabelPoor, 0, 0.45, 0)).Record("run-2", "", version)
	assert.Nil(t, noRatio.Ratio)

	trials := TrialRecords("run-1", version, rich)
	require.Len(t, trials, 1)
	assert.Equal(t, LabelRich, trials[0].Label)
	assert.Equal(t, RichConfig().Params(), trials[0].Params)
	assert.Equal(t, version, trials[0].VersionedRecord)
}

func TestRunScenarios(t *testing.T) {
	scenarios := Scenarios()[:2]
	for i := range scenarios {
		scenarios[i].Config.Steps = 80
	}
	results, err := RunScenarios(context.Background(), scenarios, Request{Trials: 2}, Hooks{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Abundant Energy", results[0].Label)
	assert.Equal(t, 0.1, results[1].Averages.Params.DecayRate)

	record := SweepRecord(KindScenarios, "run-s", "2026-03-01T10:00:00Z", model.VersionedRecord{}, Request{Trials: 2}, results)
	assert.Equal(t, "feeding", record.Metric)
	assert.Len(t, record.Configs, 2)

	_, err = RunScenarios(context.Background(), nil, Request{Trials: 1}, Hooks{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAnalyzeDynamics(t *testing.T) {
	cfg := shortConfig(sim.DefaultTrialConfig(), 300)
	d, err := AnalyzeDynamics(context.Background(), cfg, Request{BaseSeed: 3, Trials: 2}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, cfg.LearningThreshold, d.ConfiguredThreshold)
	require.True(t, d.HasThreshold)

	// A learning step records energy after paying learning and decay.
	slack := cfg.LearningCost + cfg.ComputationCost + cfg.DecayRate + 1e-9
	assert.GreaterOrEqual(t, d.EffectiveThreshold, cfg.LearningThreshold-slack)
	for _, history := range d.Result.Histories() {
		assert.NotEmpty(t, history)
	}
	if d.HasCorrelation {
		assert.GreaterOrEqual(t, d.Correlation, -1.0)
		assert.LessOrEqual(t, d.Correlation, 1.0)
	}
}
