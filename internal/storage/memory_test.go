package storage

import (
	"context"
	"testing"

	"autopoiesis/internal/model"
)

func newInitializedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func TestMemoryStoreExperimentRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	ratio := 1.2
	input := model.ExperimentRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		Kind:            "compare",
		CreatedAtUTC:    "2026-03-01T10:00:00Z",
		Configs:         []model.ConfigAverages{{Label: "rich"}, {Label: "poor"}},
		Ratio:           &ratio,
	}
	if err := store.SaveExperiment(ctx, input); err != nil {
		t.Fatalf("save experiment: %v", err)
	}
	ratio = 9
	input.Configs[0].Label = "mutated"

	output, ok, err := store.GetExperiment(ctx, "run-1")
	if err != nil {
		t.Fatalf("get experiment: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted experiment")
	}
	if output.Ratio == nil || *output.Ratio != 1.2 || output.Configs[0].Label != "rich" {
		t.Fatalf("stored experiment aliased caller data: %+v", output)
	}

	if _, ok, err := store.GetExperiment(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing experiment; ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreListExperimentsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	for _, e := range []model.ExperimentRecord{
		{RunID: "b", CreatedAtUTC: "2026-03-01T10:00:00Z"},
		{RunID: "c", CreatedAtUTC: "2026-03-02T10:00:00Z"},
		{RunID: "a", CreatedAtUTC: "2026-03-01T10:00:00Z"},
	} {
		if err := store.SaveExperiment(ctx, e); err != nil {
			t.Fatalf("save %s: %v", e.RunID, err)
		}
	}
	list, err := store.ListExperiments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].RunID != "c" || list[1].RunID != "a" || list[2].RunID != "b" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestMemoryStoreTrialsAndHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	trials := []model.TrialRecord{{RunID: "run-1", Label: "poor", Index: 2, Seed: 44}}
	if err := store.SaveTrials(ctx, "run-1", trials); err != nil {
		t.Fatalf("save trials: %v", err)
	}
	gotTrials, ok, err := store.GetTrials(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get trials: ok=%t err=%v", ok, err)
	}
	if len(gotTrials) != 1 || gotTrials[0].Seed != 44 {
		t.Fatalf("unexpected trials: %+v", gotTrials)
	}

	key := HistoryKey{RunID: "run-1", Label: "poor", Index: 2}
	history := []model.StepRecord{{Step: 0, Energy: 99}, {Step: 1, Energy: 98}}
	if err := store.SaveHistory(ctx, key, history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	got, ok, err := store.GetHistory(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(got) != 2 || got[1].Energy != 98 {
		t.Fatalf("unexpected history: %+v", got)
	}
	if _, ok, _ := store.GetHistory(ctx, HistoryKey{RunID: "run-1", Label: "poor", Index: 3}); ok {
		t.Fatal("expected no history for other trial index")
	}

	if err := store.DeleteExperiment(ctx, "run-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.GetHistory(ctx, key); ok {
		t.Fatal("expected history removed with its experiment")
	}
	if _, ok, _ := store.GetTrials(ctx, "run-1"); ok {
		t.Fatal("expected trials removed with their experiment")
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveExperiment(context.Background(), model.ExperimentRecord{RunID: "x"}); err == nil {
		t.Fatal("expected error saving before init")
	}
}
