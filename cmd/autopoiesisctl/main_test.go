package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autopoiesis/internal/stats"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestRunRequiresKnownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), nil, &out); err == nil {
		t.Fatal("expected missing command error")
	}
	if err := run(context.Background(), []string{"evolve"}, &out); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestTrialCommandWritesHistoryAndChart(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.csv")
	chartPath := filepath.Join(dir, "dashboard.html")

	out := runCommand(t, "trial",
		"--store", "memory",
		"--artifacts-dir", filepath.Join(dir, "runs"),
		"--preset", "rich",
		"--seed", "3",
		"--steps", "120",
		"--history", historyPath,
		"--chart", chartPath,
		"--progress-every", "40",
	)
	for _, want := range []string{"trial seed=3", "step=40 energy=", "survival=", "history=" + historyPath, "chart=" + chartPath} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if _, err := os.Stat(chartPath); err != nil {
		t.Fatalf("expected chart: %v", err)
	}
	history, ok, err := stats.ReadHistoryCSV(historyPath)
	if err != nil || !ok || len(history) == 0 {
		t.Fatalf("read history: ok=%t len=%d err=%v", ok, len(history), err)
	}
}

func TestTrialCommandRejectsUnknownPreset(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"trial", "--store", "memory", "--preset", "lavish"}, &out)
	if err == nil {
		t.Fatal("expected unknown preset error")
	}
}

func TestCompareShowRunsAndExportCommands(t *testing.T) {
	dir := t.TempDir()
	runsDir := filepath.Join(dir, "runs")
	common := []string{"--store", "memory", "--artifacts-dir", runsDir}

	out := runCommand(t, append([]string{"compare",
		"--run-id", "cmp-1",
		"--trials", "2",
		"--workers", "2",
		"--steps", "150",
		"--progress",
	}, common...)...)
	for _, want := range []string{"run_id=cmp-1 kind=compare", `config="rich"`, `config="poor"`, "ratio=", "verdict=", "check=both_found_food", "trial_done"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in compare output:\n%s", want, out)
		}
	}

	out = runCommand(t, append([]string{"runs"}, common...)...)
	if !strings.Contains(out, "run_id=cmp-1 kind=compare") {
		t.Fatalf("expected run in list:\n%s", out)
	}

	// The memory store of the compare command is gone, so show reads artifacts.
	out = runCommand(t, append([]string{"show", "--latest", "--trials"}, common...)...)
	if !strings.Contains(out, "source=artifacts") || strings.Count(out, "trial label=") != 4 {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	exportDir := filepath.Join(dir, "exports")
	out = runCommand(t, append([]string{"export", "--run-id", "cmp-1", "--out", exportDir}, common...)...)
	if !strings.Contains(out, "exported run_id=cmp-1") {
		t.Fatalf("unexpected export output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "cmp-1", "summary.json")); err != nil {
		t.Fatalf("expected exported summary: %v", err)
	}
}

func TestCompareCommandUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compare.yaml")
	body := "seed: 8\ntrials: 1\nsteps: 100\nrich:\n  decay_rate: 0.06\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out := runCommand(t, "compare", "--store", "memory", "--artifacts-dir", filepath.Join(dir, "runs"), "--config", path, "--trials", "2")
	if !strings.Contains(out, "seed=8 trials=2") {
		t.Fatalf("expected file seed and flag trials:\n%s", out)
	}
	if !strings.Contains(out, "decay=0.06") {
		t.Fatalf("expected rich decay from file:\n%s", out)
	}
}

func TestScenariosAndDynamicsCommands(t *testing.T) {
	dir := t.TempDir()
	common := []string{"--store", "memory", "--artifacts-dir", filepath.Join(dir, "runs"), "--trials", "1", "--steps", "80"}

	out := runCommand(t, append([]string{"scenarios", "--run-id", "sweep-1"}, common...)...)
	for _, want := range []string{"kind=scenarios", `config="Abundant Energy"`, `config="Extreme Scarcity"`, "chart="} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in scenarios output:\n%s", want, out)
		}
	}

	out = runCommand(t, append([]string{"dynamics", "--run-id", "dyn-1"}, common...)...)
	for _, want := range []string{"kind=dynamics", "energy_learning_correlation=", "configured_threshold=50.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in dynamics output:\n%s", want, out)
		}
	}
}

func TestRunsCommandWithoutRuns(t *testing.T) {
	out := runCommand(t, "runs", "--store", "memory", "--artifacts-dir", t.TempDir())
	if !strings.Contains(out, "no runs found") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestExportRequiresSelection(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"export", "--store", "memory"}, &out); err == nil {
		t.Fatal("expected selection error")
	}
	if err := run(context.Background(), []string{"show", "--store", "memory", "--run-id", "a", "--latest"}, &out); err == nil {
		t.Fatal("expected conflicting selection error")
	}
}
