package experiment

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"autopoiesis/internal/model"
	"autopoiesis/internal/nn"
	"autopoiesis/internal/sim"
)

var ErrInvalidRequest = errors.New("invalid experiment request")

// Metric selects the per-trial efficiency that is averaged and compared.
type Metric string

const (
	// MetricFeeding is food consumed per step survived.
	MetricFeeding Metric = "feeding"
	// MetricEnergy is food consumed per unit of computation energy spent.
	MetricEnergy Metric = "energy"
)

func (m Metric) Of(stats model.TrialStats) float64 {
	if m == MetricEnergy {
		return stats.EnergyEfficiency
	}
	return stats.FeedingEfficiency
}

// Request describes how many trials to run and how. Trial i of every
// configuration runs with seed BaseSeed+i.
type Request struct {
	BaseSeed    int64
	Trials      int
	Workers     int
	Metric      Metric
	KeepHistory bool
}

func (r Request) normalized() (Request, error) {
	if r.Trials <= 0 {
		return Request{}, fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidRequest, r.Trials)
	}
	switch r.Metric {
	case "":
		r.Metric = MetricFeeding
	case MetricFeeding, MetricEnergy:
	default:
		return Request{}, fmt.Errorf("%w: unsupported metric %q", ErrInvalidRequest, r.Metric)
	}
	if r.Workers <= 0 {
		r.Workers = runtime.GOMAXPROCS(0)
	}
	if r.Workers > r.Trials {
		r.Workers = r.Trials
	}
	return r, nil
}

// Hooks are optional progress callbacks. They are invoked from the
// goroutine that called the experiment, one trial at a time.
type Hooks struct {
	OnTrialDone func(outcome TrialOutcome)
}

type TrialOutcome struct {
	Label   string
	Index   int
	Seed    int64
	Stats   model.TrialStats
	History []model.StepRecord
}

// ConfigResult is every trial of one configuration plus their averages.
type ConfigResult struct {
	Label    string
	Config   sim.TrialConfig
	Trials   []TrialOutcome
	Averages model.ConfigAverages
}

// Histories returns the recorded step histories in trial order.
func (r ConfigResult) Histories() [][]model.StepRecord {
	out := make([][]model.StepRecord, 0, len(r.Trials))
	for _, trial := range r.Trials {
		out = append(out, trial.History)
	}
	return out
}

// RunTrials runs req.Trials trials of cfg across a bounded worker pool. Each
// trial owns its generator, so results do not depend on the worker count or
// on scheduling.
func RunTrials(ctx context.Context, label string, cfg sim.TrialConfig, req Request, hooks Hooks) (ConfigResult, error) {
	req, err := req.normalized()
	if err != nil {
		return ConfigResult{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ConfigResult{}, fmt.Errorf("%s: %w", label, err)
	}

	type result struct {
		idx     int
		outcome TrialOutcome
		err     error
	}

	jobs := make(chan int)
	results := make(chan result, req.Trials)

	var wg sync.WaitGroup
	wg.Add(req.Workers)
	for w := 0; w < req.Workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				seed := req.BaseSeed + int64(idx)
				trial, err := sim.RunTrialWithHistory(ctx, cfg, seed, sim.Hooks{})
				if err != nil {
					results <- result{idx: idx, err: fmt.Errorf("%s trial %d (seed %d): %w", label, idx, seed, err)}
					continue
				}
				outcome := TrialOutcome{Label: label, Index: idx, Seed: seed, Stats: trial.Stats}
				if req.KeepHistory {
					outcome.History = trial.History
				}
				results <- result{idx: idx, outcome: outcome}
			}
		}()
	}

	go func() {
		for i := 0; i < req.Trials; i++ {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	outcomes := make([]TrialOutcome, req.Trials)
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		outcomes[res.idx] = res.outcome
		if hooks.OnTrialDone != nil && firstErr == nil {
			hooks.OnTrialDone(res.outcome)
		}
	}
	if firstErr != nil {
		return ConfigResult{}, firstErr
	}

	return ConfigResult{
		Label:    label,
		Config:   cfg,
		Trials:   outcomes,
		Averages: Average(label, cfg, outcomes, req.Metric),
	}, nil
}

// Average folds trial outcomes in index order so the sums are reproducible.
func Average(label string, cfg sim.TrialConfig, outcomes []TrialOutcome, metric Metric) model.ConfigAverages {
	avg := model.ConfigAverages{Label: label, Params: cfg.Params(), Trials: len(outcomes)}
	if len(outcomes) == 0 {
		return avg
	}
	food := make([]float64, len(outcomes))
	learning := make([]float64, len(outcomes))
	efficiency := make([]float64, len(outcomes))
	survival := make([]float64, len(outcomes))
	energy := make([]float64, len(outcomes))
	for i, o := range outcomes {
		food[i] = float64(o.Stats.FoodConsumed)
		learning[i] = o.Stats.LearningRatio
		efficiency[i] = metric.Of(o.Stats)
		survival[i] = float64(o.Stats.SurvivalTime)
		energy[i] = o.Stats.AverageEnergy
	}
	avg.FoodConsumed, _ = nn.Avg(food)
	avg.LearningRatio, _ = nn.Avg(learning)
	avg.Efficiency, _ = nn.Avg(efficiency)
	avg.EfficiencyStd, _ = nn.Std(efficiency)
	avg.SurvivalTime, _ = nn.Avg(survival)
	avg.AverageEnergy, _ = nn.Avg(energy)
	return avg
}
