package stats

import (
	"autopoiesis/internal/nn"
)

type PlotPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// BuildAverageSeries averages ragged per-trial series position by position.
// Trials that stopped early drop out of later positions instead of counting
// as zero.
func BuildAverageSeries(lists [][]float64, startIndex, step int) []PlotPoint {
	if step <= 0 {
		step = 1
	}
	if startIndex < 0 {
		startIndex = 0
	}
	points := make([]PlotPoint, 0, 128)
	index := startIndex
	current := cloneSeries(lists)
	for {
		values := make([]float64, 0, len(current))
		next := make([][]float64, 0, len(current))
		for _, list := range current {
			if len(list) == 0 {
				continue
			}
			values = append(values, list[0])
			if len(list) > 1 {
				next = append(next, list[1:])
			}
		}
		if len(values) == 0 {
			break
		}
		avg, _ := nn.Avg(values)
		points = append(points, PlotPoint{Index: index, Value: avg})
		index += step
		current = next
	}
	return points
}

// BuildPeakSeries returns one point per non-empty series holding its maximum.
func BuildPeakSeries(lists [][]float64, startIndex, step int) []PlotPoint {
	if step <= 0 {
		step = 1
	}
	if startIndex < 0 {
		startIndex = 0
	}
	points := make([]PlotPoint, 0, len(lists))
	index := startIndex
	for _, list := range lists {
		if len(list) == 0 {
			continue
		}
		points = append(points, PlotPoint{Index: index, Value: maxFloat(list)})
		index += step
	}
	return points
}

func maxFloat(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

func cloneSeries(lists [][]float64) [][]float64 {
	cloned := make([][]float64, 0, len(lists))
	for _, list := range lists {
		cloned = append(cloned, append([]float64(nil), list...))
	}
	return cloned
}
