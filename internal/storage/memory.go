package storage

import (
	"context"
	"errors"
	"sync"

	"autopoiesis/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	experiments map[string]model.ExperimentRecord
	trials      map[string][]model.TrialRecord
	histories   map[HistoryKey][]model.StepRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.experiments = make(map[string]model.ExperimentRecord)
	s.trials = make(map[string][]model.TrialRecord)
	s.histories = make(map[HistoryKey][]model.StepRecord)
	return nil
}

func (s *MemoryStore) SaveExperiment(_ context.Context, experiment model.ExperimentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.experiments[experiment.RunID] = cloneExperiment(experiment)
	return nil
}

func (s *MemoryStore) GetExperiment(_ context.Context, runID string) (model.ExperimentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	experiment, ok := s.experiments[runID]
	if !ok {
		return model.ExperimentRecord{}, false, nil
	}
	return cloneExperiment(experiment), true, nil
}

func (s *MemoryStore) ListExperiments(_ context.Context) ([]model.ExperimentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ExperimentRecord, 0, len(s.experiments))
	for _, experiment := range s.experiments {
		out = append(out, cloneExperiment(experiment))
	}
	sortExperiments(out)
	return out, nil
}

func (s *MemoryStore) DeleteExperiment(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.experiments, runID)
	delete(s.trials, runID)
	for key := range s.histories {
		if key.RunID == runID {
			delete(s.histories, key)
		}
	}
	return nil
}

func (s *MemoryStore) SaveTrials(_ context.Context, runID string, trials []model.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.trials[runID] = append([]model.TrialRecord(nil), trials...)
	return nil
}

func (s *MemoryStore) GetTrials(_ context.Context, runID string) ([]model.TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials, ok := s.trials[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.TrialRecord(nil), trials...), true, nil
}

func (s *MemoryStore) SaveHistory(_ context.Context, key HistoryKey, history []model.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.histories[key] = append([]model.StepRecord(nil), history...)
	return nil
}

func (s *MemoryStore) GetHistory(_ context.Context, key HistoryKey) ([]model.StepRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.histories[key]
	if !ok {
		return nil, false, nil
	}
	return append([]model.StepRecord(nil), history...), true, nil
}

var errNotInitialized = errors.New("store is not initialized")

func cloneExperiment(e model.ExperimentRecord) model.ExperimentRecord {
	e.Configs = append([]model.ConfigAverages(nil), e.Configs...)
	if e.Ratio != nil {
		ratio := *e.Ratio
		e.Ratio = &ratio
	}
	return e
}
