package storage

import (
	"context"

	"autopoiesis/internal/model"
)

// Store persists experiment summaries, their per-trial results and the step
// histories of the trials that were recorded.
type Store interface {
	Init(ctx context.Context) error
	SaveExperiment(ctx context.Context, experiment model.ExperimentRecord) error
	GetExperiment(ctx context.Context, runID string) (model.ExperimentRecord, bool, error)
	ListExperiments(ctx context.Context) ([]model.ExperimentRecord, error)
	SaveTrials(ctx context.Context, runID string, trials []model.TrialRecord) error
	GetTrials(ctx context.Context, runID string) ([]model.TrialRecord, bool, error)
	SaveHistory(ctx context.Context, key HistoryKey, history []model.StepRecord) error
	GetHistory(ctx context.Context, key HistoryKey) ([]model.StepRecord, bool, error)
}

// HistoryKey addresses the history of one trial within a run.
type HistoryKey struct {
	RunID string
	Label string
	Index int
}
