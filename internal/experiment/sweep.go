package experiment

import (
	"context"
	"fmt"

	"autopoiesis/internal/model"
	"autopoiesis/internal/sim"
	"autopoiesis/internal/stats"
)

const (
	KindCompare   = "compare"
	KindScenarios = "scenarios"
	KindDynamics  = "dynamics"
)

// RunScenarios runs every scenario with the same request, in order.
func RunScenarios(ctx context.Context, scenarios []Scenario, req Request, hooks Hooks) ([]ConfigResult, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("%w: no scenarios", ErrInvalidRequest)
	}
	results := make([]ConfigResult, 0, len(scenarios))
	for _, scenario := range scenarios {
		result, err := RunTrials(ctx, scenario.Name, scenario.Config, req, hooks)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Dynamics relates energy to learning over a set of recorded trials.
type Dynamics struct {
	Result              ConfigResult
	Correlation         float64
	HasCorrelation      bool
	EffectiveThreshold  float64
	HasThreshold        bool
	ConfiguredThreshold float64
}

// AnalyzeDynamics runs req.Trials trials of cfg keeping their histories and
// measures how strongly energy gates learning.
func AnalyzeDynamics(ctx context.Context, cfg sim.TrialConfig, req Request, hooks Hooks) (Dynamics, error) {
	req.KeepHistory = true
	result, err := RunTrials(ctx, "dynamics", cfg, req, hooks)
	if err != nil {
		return Dynamics{}, err
	}
	histories := result.Histories()
	corr, ok, err := stats.EnergyLearningCorrelation(histories)
	if err != nil {
		return Dynamics{}, fmt.Errorf("energy-learning correlation: %w", err)
	}
	threshold, hasThreshold := stats.EffectiveThreshold(histories)
	return Dynamics{
		Result:              result,
		Correlation:         corr,
		HasCorrelation:      ok,
		EffectiveThreshold:  threshold,
		HasThreshold:        hasThreshold,
		ConfiguredThreshold: cfg.LearningThreshold,
	}, nil
}

// SweepRecord is the persisted summary of a scenario sweep or dynamics run.
func SweepRecord(kind, runID, createdAtUTC string, version model.VersionedRecord, req Request, results []ConfigResult) model.ExperimentRecord {
	configs := make([]model.ConfigAverages, 0, len(results))
	for _, result := range results {
		configs = append(configs, result.Averages)
	}
	metric := req.Metric
	if metric == "" {
		metric = MetricFeeding
	}
	return model.ExperimentRecord{
		VersionedRecord: version,
		RunID:           runID,
		Kind:            kind,
		CreatedAtUTC:    createdAtUTC,
		BaseSeed:        req.BaseSeed,
		Trials:          req.Trials,
		Metric:          string(metric),
		Configs:         configs,
		Valid:           true,
	}
}
