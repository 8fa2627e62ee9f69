// Package report renders experiment results as standalone HTML pages.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"autopoiesis/internal/experiment"
	"autopoiesis/internal/model"
	"autopoiesis/internal/sim"
	"autopoiesis/internal/stats"
)

const theme = "shine"

// histogramBins caps the number of feeding-interval buckets.
const histogramBins = 20

// TrialDashboard writes the per-trial page: energy against the learning
// threshold, learning mode, trajectory, feeding intervals and rolling
// efficiency.
func TrialDashboard(w io.Writer, title string, cfg sim.TrialConfig, history []model.StepRecord) error {
	if len(history) == 0 {
		return fmt.Errorf("trial dashboard %q: empty history", title)
	}
	steps := stepLabels(history)

	energy := charts.NewLine()
	energy.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "energy over time"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithXAxisOpts(opts.XAxis{Name: "step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "energy"}),
	)
	energyData := make([]opts.LineData, 0, len(history))
	thresholdData := make([]opts.LineData, 0, len(history))
	fedData := make([]opts.LineData, 0, len(history))
	for _, record := range history {
		energyData = append(energyData, opts.LineData{Value: record.Energy})
		thresholdData = append(thresholdData, opts.LineData{Value: cfg.LearningThreshold})
		if record.Fed {
			fedData = append(fedData, opts.LineData{Value: record.Energy})
		} else {
			fedData = append(fedData, opts.LineData{Value: "-"})
		}
	}
	energy.SetXAxis(steps).
		AddSeries("energy", energyData).
		AddSeries("learning threshold", thresholdData).
		AddSeries("feeding", fedData)

	mode := charts.NewLine()
	mode.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Learning vs survival mode", Subtitle: "1 = learning, 0 = survival"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithXAxisOpts(opts.XAxis{Name: "step"}),
	)
	modeData := make([]opts.LineData, 0, len(history))
	for _, record := range history {
		v := 0
		if record.Learned {
			v = 1
		}
		modeData = append(modeData, opts.LineData{Value: v})
	}
	mode.SetXAxis(steps).AddSeries("mode", modeData)

	trajectory := charts.NewScatter()
	trajectory.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Trajectory"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y", Type: "value"}),
	)
	path := make([]opts.ScatterData, 0, len(history))
	meals := make([]opts.ScatterData, 0, 16)
	for _, record := range history {
		point := opts.ScatterData{Value: []float64{record.Position.X, record.Position.Y}, SymbolSize: 3}
		path = append(path, point)
		if record.Fed {
			point.SymbolSize = 10
			meals = append(meals, point)
		}
	}
	trajectory.AddSeries("path", path).AddSeries("meals", meals)

	labels, counts := histogram(stats.FeedingIntervals(history), histogramBins)
	intervals := charts.NewBar()
	intervals.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Feeding intervals", Subtitle: fmt.Sprintf("%d meals", len(stats.FeedingSteps(history)))}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithXAxisOpts(opts.XAxis{Name: "steps between meals"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)
	intervalData := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		intervalData = append(intervalData, opts.BarData{Value: c})
	}
	intervals.SetXAxis(labels).AddSeries("intervals", intervalData)

	rolling := stats.RollingEfficiency(history, stats.DefaultEfficiencyWindow)
	efficiency := charts.NewLine()
	efficiency.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Energy efficiency (rolling window=%d)", stats.DefaultEfficiencyWindow)}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithXAxisOpts(opts.XAxis{Name: "step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "food per unit cost"}),
	)
	efficiencyX := make([]string, 0, len(rolling))
	efficiencyData := make([]opts.LineData, 0, len(rolling))
	for _, p := range rolling {
		efficiencyX = append(efficiencyX, strconv.Itoa(p.Index))
		efficiencyData = append(efficiencyData, opts.LineData{Value: p.Value})
	}
	efficiency.SetXAxis(efficiencyX).AddSeries("efficiency", efficiencyData)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(energy, mode, trajectory, intervals, efficiency)
	return page.Render(w)
}

// ScenarioComparison writes the sweep page: survival and learning per
// scenario, the mean energy trajectory of each and learning against
// feeding efficiency per trial. Results must carry histories.
func ScenarioComparison(w io.Writer, title string, results []experiment.ConfigResult) error {
	if len(results) == 0 {
		return fmt.Errorf("scenario comparison %q: no results", title)
	}
	names := make([]string, 0, len(results))
	survivalData := make([]opts.BarData, 0, len(results))
	learningData := make([]opts.BarData, 0, len(results))
	for _, result := range results {
		names = append(names, result.Label)
		survivalData = append(survivalData, opts.BarData{Value: result.Averages.SurvivalTime})
		learningData = append(learningData, opts.BarData{Value: result.Averages.LearningRatio})
	}

	survival := charts.NewBar()
	survival.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "survival time"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithYAxisOpts(opts.YAxis{Name: "steps"}),
	)
	survival.SetXAxis(names).AddSeries("survival", survivalData)

	learning := charts.NewBar()
	learning.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Learning ratio"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithYAxisOpts(opts.YAxis{Name: "fraction of steps"}),
	)
	learning.SetXAxis(names).AddSeries("learning ratio", learningData)

	trajectories := charts.NewLine()
	trajectories.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Energy trajectories", Subtitle: "mean over surviving trials"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithXAxisOpts(opts.XAxis{Name: "step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "energy"}),
	)
	longest := 0
	series := make([][]stats.PlotPoint, 0, len(results))
	for _, result := range results {
		lists := make([][]float64, 0, len(result.Trials))
		for _, history := range result.Histories() {
			lists = append(lists, stats.EnergySeries(history))
		}
		points := stats.BuildAverageSeries(lists, 0, 1)
		if len(points) > longest {
			longest = len(points)
		}
		series = append(series, points)
	}
	x := make([]string, longest)
	for i := range x {
		x[i] = strconv.Itoa(i)
	}
	trajectories.SetXAxis(x)
	for i, points := range series {
		data := make([]opts.LineData, longest)
		for j := range data {
			data[j] = opts.LineData{Value: "-"}
		}
		for _, p := range points {
			data[p.Index] = opts.LineData{Value: p.Value}
		}
		trajectories.AddSeries(results[i].Label, data)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Learning vs feeding efficiency"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithXAxisOpts(opts.XAxis{Name: "learning ratio", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "feeding efficiency", Type: "value"}),
	)
	for _, result := range results {
		points := make([]opts.ScatterData, 0, len(result.Trials))
		for _, trial := range result.Trials {
			points = append(points, opts.ScatterData{
				Value:      []float64{trial.Stats.LearningRatio, trial.Stats.FeedingEfficiency},
				SymbolSize: 12,
			})
		}
		scatter.AddSeries(result.Label, points)
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(survival, learning, trajectories, scatter)
	return page.Render(w)
}

func stepLabels(history []model.StepRecord) []string {
	out := make([]string, len(history))
	for i, record := range history {
		out[i] = strconv.Itoa(record.Step)
	}
	return out
}

// histogram buckets values into at most bins equal-width integer ranges.
func histogram(values []int, bins int) ([]string, []int) {
	if len(values) == 0 || bins <= 0 {
		return []string{}, []int{}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	width := (hi - lo + bins) / bins
	n := (hi-lo)/width + 1
	labels := make([]string, n)
	counts := make([]int, n)
	for i := range labels {
		start := lo + i*width
		if width == 1 {
			labels[i] = strconv.Itoa(start)
		} else {
			labels[i] = fmt.Sprintf("%d-%d", start, start+width-1)
		}
	}
	for _, v := range values {
		counts[(v-lo)/width]++
	}
	return labels, counts
}
