package sim

import (
	"context"

	"autopoiesis/internal/model"
)

// TrialResult is a finished trial with its full step history.
type TrialResult struct {
	Seed    int64
	Stats   model.TrialStats
	History []model.StepRecord
}

// RunTrial runs one trial to completion and returns its summary. It is the
// only entry point the aggregator needs. No step records are kept.
func RunTrial(ctx context.Context, cfg TrialConfig, seed int64) (model.TrialStats, error) {
	s, err := New(cfg, seed)
	if err != nil {
		return model.TrialStats{}, err
	}
	for range s.Steps() {
		if err := ctx.Err(); err != nil {
			return model.TrialStats{}, err
		}
	}
	if err := s.Err(); err != nil {
		return model.TrialStats{}, err
	}
	return s.Stats(), nil
}

// RunTrialWithHistory is RunTrial keeping every step record.
func RunTrialWithHistory(ctx context.Context, cfg TrialConfig, seed int64, hooks Hooks) (TrialResult, error) {
	s, err := New(cfg, seed)
	if err != nil {
		return TrialResult{}, err
	}
	s.SetHooks(hooks)

	history := make([]model.StepRecord, 0, cfg.Steps)
	for record := range s.Steps() {
		if err := ctx.Err(); err != nil {
			return TrialResult{}, err
		}
		history = append(history, record)
	}
	if err := s.Err(); err != nil {
		return TrialResult{}, err
	}
	return TrialResult{Seed: seed, Stats: s.Stats(), History: history}, nil
}

// Summarize folds a step history into trial statistics.
func Summarize(history []model.StepRecord, reason string) model.TrialStats {
	stats := model.TrialStats{
		SurvivalTime:   len(history),
		TerminalReason: reason,
	}
	if len(history) == 0 {
		return stats
	}
	energySum := 0.0
	for _, record := range history {
		stats.FoodConsumed += record.FoodEaten
		if record.Learned {
			stats.LearningSteps++
		}
		energySum += record.Energy
		stats.EnergySpent += record.Cost
	}
	n := float64(len(history))
	stats.LearningRatio = float64(stats.LearningSteps) / n
	stats.AverageEnergy = energySum / n
	stats.FinalEnergy = history[len(history)-1].Energy
	stats.FeedingEfficiency = float64(stats.FoodConsumed) / n
	if stats.EnergySpent > 0 {
		stats.EnergyEfficiency = float64(stats.FoodConsumed) / stats.EnergySpent
	}
	return stats
}
