package stats

import (
	"math"

	"autopoiesis/internal/model"
	"autopoiesis/internal/nn"
)

// DefaultEfficiencyWindow is the rolling window used by dashboards.
const DefaultEfficiencyWindow = 50

// minWindowCost keeps a window with no computation from dividing by zero.
const minWindowCost = 0.001

// EnergySeries extracts the per-step energy trajectory.
func EnergySeries(history []model.StepRecord) []float64 {
	out := make([]float64, len(history))
	for i, record := range history {
		out[i] = record.Energy
	}
	return out
}

// RollingEfficiency reports food eaten per unit of computation cost over
// each trailing window of the given size. The point index is the step that
// closes the window.
func RollingEfficiency(history []model.StepRecord, window int) []PlotPoint {
	if window <= 0 || len(history) < window {
		return []PlotPoint{}
	}
	points := make([]PlotPoint, 0, len(history)-window+1)
	food, cost := 0, 0.0
	for i, record := range history {
		food += record.FoodEaten
		cost += record.Cost
		if i >= window {
			food -= history[i-window].FoodEaten
			cost -= history[i-window].Cost
		}
		if i >= window-1 {
			points = append(points, PlotPoint{
				Index: record.Step,
				Value: float64(food) / math.Max(cost, minWindowCost),
			})
		}
	}
	return points
}

// FeedingSteps lists the steps on which the agent ate.
func FeedingSteps(history []model.StepRecord) []int {
	steps := make([]int, 0, 16)
	for _, record := range history {
		if record.Fed {
			steps = append(steps, record.Step)
		}
	}
	return steps
}

// FeedingIntervals is the gap in steps between consecutive meals.
func FeedingIntervals(history []model.StepRecord) []int {
	steps := FeedingSteps(history)
	if len(steps) < 2 {
		return []int{}
	}
	intervals := make([]int, 0, len(steps)-1)
	for i := 1; i < len(steps); i++ {
		intervals = append(intervals, steps[i]-steps[i-1])
	}
	return intervals
}

// EnergyLearningCorrelation pools every step of every history and returns
// the Pearson correlation between energy and the learning flag. ok is false
// when either series is constant.
func EnergyLearningCorrelation(histories [][]model.StepRecord) (float64, bool, error) {
	energies := make([]float64, 0, 1024)
	learning := make([]float64, 0, 1024)
	for _, history := range histories {
		for _, record := range history {
			energies = append(energies, record.Energy)
			if record.Learned {
				learning = append(learning, 1)
			} else {
				learning = append(learning, 0)
			}
		}
	}
	if len(energies) == 0 {
		return 0, false, nil
	}
	return nn.Pearson(energies, learning)
}

// EffectiveThreshold is the mean, over histories that learned at all, of the
// lowest recorded energy on a learning step.
func EffectiveThreshold(histories [][]model.StepRecord) (float64, bool) {
	minima := make([]float64, 0, len(histories))
	for _, history := range histories {
		lowest := math.Inf(1)
		for _, record := range history {
			if record.Learned && record.Energy < lowest {
				lowest = record.Energy
			}
		}
		if !math.IsInf(lowest, 1) {
			minima = append(minima, lowest)
		}
	}
	if len(minima) == 0 {
		return 0, false
	}
	mean, _ := nn.Avg(minima)
	return mean, true
}
