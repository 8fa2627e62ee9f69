package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/logrusorgru/aurora"
	"github.com/mattn/go-isatty"

	"autopoiesis/internal/experiment"
	"autopoiesis/internal/model"
	api "autopoiesis/pkg/autopoiesis"
)

// newAurora colours output only when it goes to a terminal.
func newAurora(out io.Writer) aurora.Aurora {
	return aurora.NewAurora(isTerminal(out))
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorVerdict(au aurora.Aurora, verdict string) aurora.Value {
	switch experiment.Verdict(verdict) {
	case experiment.VerdictStrongEmergence:
		return au.Bold(au.Green(verdict))
	case experiment.VerdictMildEmergence:
		return au.Green(verdict)
	case experiment.VerdictComparable:
		return au.Yellow(verdict)
	case experiment.VerdictRichMoreEfficient, experiment.VerdictInsufficient:
		return au.Red(verdict)
	default:
		return au.Reset(verdict)
	}
}

func colorPassed(au aurora.Aurora, passed bool) aurora.Value {
	if passed {
		return au.Green("true")
	}
	return au.Red("false")
}

func formatRatio(ratio *float64) string {
	if ratio == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *ratio)
}

func printTrialStats(out io.Writer, s model.TrialStats) {
	fmt.Fprintf(out, "survival=%s food=%s learning_steps=%s learning_ratio=%.3f avg_energy=%.2f final_energy=%.2f spent=%.3f feeding_eff=%.5f energy_eff=%.4f end=%s\n",
		humanize.Comma(int64(s.SurvivalTime)),
		humanize.Comma(int64(s.FoodConsumed)),
		humanize.Comma(int64(s.LearningSteps)),
		s.LearningRatio,
		s.AverageEnergy,
		s.FinalEnergy,
		s.EnergySpent,
		s.FeedingEfficiency,
		s.EnergyEfficiency,
		s.TerminalReason,
	)
}

func printAverages(out io.Writer, avg model.ConfigAverages) {
	fmt.Fprintf(out, "config=%q decay=%g cost=%g threshold=%g trials=%d food=%.2f learning=%.3f efficiency=%.5f std=%.5f survival=%.1f energy=%.2f\n",
		avg.Label,
		avg.Params.DecayRate,
		avg.Params.ComputationCost,
		avg.Params.LearningThreshold,
		avg.Trials,
		avg.FoodConsumed,
		avg.LearningRatio,
		avg.Efficiency,
		avg.EfficiencyStd,
		avg.SurvivalTime,
		avg.AverageEnergy,
	)
}

func printTrialProgress(out io.Writer, o experiment.TrialOutcome) {
	fmt.Fprintf(out, "trial_done config=%q index=%d seed=%d survival=%s food=%s end=%s\n",
		o.Label, o.Index, o.Seed,
		humanize.Comma(int64(o.Stats.SurvivalTime)),
		humanize.Comma(int64(o.Stats.FoodConsumed)),
		o.Stats.TerminalReason,
	)
}

func printStepProgress(out io.Writer, r model.StepRecord) {
	fmt.Fprintf(out, "step=%s energy=%.2f food_eaten=%d learned=%t source=%s\n",
		humanize.Comma(int64(r.Step+1)), r.Energy, r.FoodEaten, r.Learned, r.Source)
}

func printArtifacts(out io.Writer, summary api.ExperimentSummary) {
	fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
	if summary.ChartPath != "" {
		fmt.Fprintf(out, "chart=%s\n", summary.ChartPath)
	}
}
