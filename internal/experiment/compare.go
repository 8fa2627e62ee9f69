package experiment

import (
	"context"
	"fmt"
	"math"

	"autopoiesis/internal/model"
	"autopoiesis/internal/sim"
)

type Verdict string

const (
	VerdictStrongEmergence   Verdict = "strong_emergence"
	VerdictMildEmergence     Verdict = "mild_emergence"
	VerdictComparable        Verdict = "comparable"
	VerdictRichMoreEfficient Verdict = "rich_more_efficient"
	VerdictInsufficient      Verdict = "insufficient_food"
)

const (
	strongRatio     = 1.15
	mildRatio       = 1.05
	comparableRatio = 0.9

	minAverageFood       = 1.0
	minPoorLearning      = 0.3
	minRichLearning      = 0.6
	minLearningBalance   = 0.3
	learningBalanceFloor = 0.01
)

// Classify maps a poor/rich efficiency ratio to a verdict.
func Classify(ratio float64) Verdict {
	switch {
	case ratio > strongRatio:
		return VerdictStrongEmergence
	case ratio > mildRatio:
		return VerdictMildEmergence
	case ratio > comparableRatio:
		return VerdictComparable
	default:
		return VerdictRichMoreEfficient
	}
}

// Check is one sanity condition a comparison must meet to be trusted.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Checks evaluates the validity conditions of a rich/poor comparison.
func Checks(rich, poor model.ConfigAverages) []Check {
	balance := poor.LearningRatio / math.Max(rich.LearningRatio, learningBalanceFloor)
	return []Check{
		{
			Name:   "both_found_food",
			Passed: rich.FoodConsumed >= minAverageFood && poor.FoodConsumed >= minAverageFood,
			Detail: fmt.Sprintf("rich=%.2f poor=%.2f min=%.0f", rich.FoodConsumed, poor.FoodConsumed, minAverageFood),
		},
		{
			Name:   "poor_learns",
			Passed: poor.LearningRatio > minPoorLearning,
			Detail: fmt.Sprintf("poor=%.3f min=%.2f", poor.LearningRatio, minPoorLearning),
		},
		{
			Name:   "rich_learns",
			Passed: rich.LearningRatio > minRichLearning,
			Detail: fmt.Sprintf("rich=%.3f min=%.2f", rich.LearningRatio, minRichLearning),
		},
		{
			Name:   "learning_balance",
			Passed: balance > minLearningBalance,
			Detail: fmt.Sprintf("poor/rich=%.3f min=%.2f", balance, minLearningBalance),
		},
	}
}

type Comparison struct {
	Request  Request
	Rich     ConfigResult
	Poor     ConfigResult
	Ratio    float64
	HasRatio bool
	Verdict  Verdict
	Checks   []Check
	Valid    bool
}

// Compare runs the paired rich and poor trials and reports poor/rich
// efficiency. No ratio is computed unless both sides found food.
func Compare(ctx context.Context, rich, poor sim.TrialConfig, req Request, hooks Hooks) (Comparison, error) {
	req, err := req.normalized()
	if err != nil {
		return Comparison{}, err
	}
	richResult, err := RunTrials(ctx, LabelRich, rich, req, hooks)
	if err != nil {
		return Comparison{}, err
	}
	poorResult, err := RunTrials(ctx, LabelPoor, poor, req, hooks)
	if err != nil {
		return Comparison{}, err
	}
	return Assess(req, richResult, poorResult), nil
}

// Assess derives ratio, verdict and validity from finished results.
func Assess(req Request, rich, poor ConfigResult) Comparison {
	c := Comparison{
		Request: req,
		Rich:    rich,
		Poor:    poor,
		Checks:  Checks(rich.Averages, poor.Averages),
	}
	if rich.Averages.FoodConsumed > 0 && poor.Averages.FoodConsumed > 0 && rich.Averages.Efficiency > 0 {
		c.Ratio = poor.Averages.Efficiency / rich.Averages.Efficiency
		c.HasRatio = true
		c.Verdict = Classify(c.Ratio)
	} else {
		c.Verdict = VerdictInsufficient
	}
	c.Valid = c.HasRatio
	for _, check := range c.Checks {
		c.Valid = c.Valid && check.Passed
	}
	return c
}

// Record converts the comparison to its persisted summary.
func (c Comparison) Record(runID, createdAtUTC string, version model.VersionedRecord) model.ExperimentRecord {
	record := model.ExperimentRecord{
		VersionedRecord: version,
		RunID:           runID,
		Kind:            KindCompare,
		CreatedAtUTC:    createdAtUTC,
		BaseSeed:        c.Request.BaseSeed,
		Trials:          c.Request.Trials,
		Metric:          string(c.Request.Metric),
		Configs:         []model.ConfigAverages{c.Rich.Averages, c.Poor.Averages},
		Verdict:         string(c.Verdict),
		Valid:           c.Valid,
	}
	if c.HasRatio {
		ratio := c.Ratio
		record.Ratio = &ratio
	}
	return record
}

// TrialRecords flattens the per-trial results of several configurations.
func TrialRecords(runID string, version model.VersionedRecord, results ...ConfigResult) []model.TrialRecord {
	out := make([]model.TrialRecord, 0, 8)
	for _, result := range results {
		for _, trial := range result.Trials {
			out = append(out, model.TrialRecord{
				VersionedRecord: version,
				RunID:           runID,
				Label:           result.Label,
				Index:           trial.Index,
				Seed:            trial.Seed,
				Stats:           trial.Stats,
				Params:          result.Config.Params(),
			})
		}
	}
	return out
}
