//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"autopoiesis/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "autopoiesis.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ratio := 1.18
	experiment := model.ExperimentRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		Kind:            "compare",
		CreatedAtUTC:    "2026-03-01T10:00:00Z",
		BaseSeed:        42,
		Trials:          3,
		Configs:         []model.ConfigAverages{{Label: "rich", Trials: 3}, {Label: "poor", Trials: 3}},
		Ratio:           &ratio,
		Verdict:         "strong_emergence",
		Valid:           true,
	}
	if err := store.SaveExperiment(ctx, experiment); err != nil {
		t.Fatalf("save experiment: %v", err)
	}
	experiment.Verdict = "mild_emergence"
	if err := store.SaveExperiment(ctx, experiment); err != nil {
		t.Fatalf("upsert experiment: %v", err)
	}
	loaded, ok, err := store.GetExperiment(ctx, "run-1")
	if err != nil {
		t.Fatalf("get experiment: %v", err)
	}
	if !ok {
		t.Fatal("expected experiment run-1")
	}
	if loaded.Verdict != "mild_emergence" || loaded.Ratio == nil || *loaded.Ratio != ratio || len(loaded.Configs) != 2 {
		t.Fatalf("unexpected experiment loaded: %+v", loaded)
	}

	if err := store.SaveExperiment(ctx, model.ExperimentRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-2",
		CreatedAtUTC:    "2026-03-02T10:00:00Z",
	}); err != nil {
		t.Fatalf("save run-2: %v", err)
	}
	list, err := store.ListExperiments(ctx)
	if err != nil {
		t.Fatalf("list experiments: %v", err)
	}
	if len(list) != 2 || list[0].RunID != "run-2" {
		t.Fatalf("unexpected experiment list: %+v", list)
	}

	trials := []model.TrialRecord{{VersionedRecord: CurrentVersion(), RunID: "run-1", Label: "rich", Seed: 42}}
	if err := store.SaveTrials(ctx, "run-1", trials); err != nil {
		t.Fatalf("save trials: %v", err)
	}
	loadedTrials, ok, err := store.GetTrials(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get trials: ok=%t err=%v", ok, err)
	}
	if len(loadedTrials) != 1 || loadedTrials[0].Seed != 42 {
		t.Fatalf("unexpected trials loaded: %+v", loadedTrials)
	}

	key := HistoryKey{RunID: "run-1", Label: "rich", Index: 0}
	history := []model.StepRecord{{Step: 0, Energy: 99.8, Learned: true}, {Step: 1, Energy: 119.7, Fed: true, FoodEaten: 1}}
	if err := store.SaveHistory(ctx, key, history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	loadedHistory, ok, err := store.GetHistory(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(loadedHistory) != 2 || !loadedHistory[1].Fed {
		t.Fatalf("unexpected history loaded: %+v", loadedHistory)
	}

	if _, ok, err := store.GetExperiment(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing experiment; ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresPathAndInit(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
	if _, _, err := NewSQLiteStore("x.db").GetExperiment(context.Background(), "x"); err == nil {
		t.Fatal("expected not initialized error")
	}
}

func TestNewStoreSQLiteBackend(t *testing.T) {
	store, err := NewStore("sqlite", filepath.Join(t.TempDir(), "factory.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close: %v", err)
	}
}
