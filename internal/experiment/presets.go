package experiment

import "autopoiesis/internal/sim"

const (
	LabelRich = "rich"
	LabelPoor = "poor"
)

// RichConfig is the well-fed agent: slow decay, cheap computation and a low
// learning threshold.
func RichConfig() sim.TrialConfig {
	return tuned(0.05, 0.005, 25)
}

// PoorConfig is the constrained agent of the balanced comparison.
func PoorConfig() sim.TrialConfig {
	return tuned(0.12, 0.015, 60)
}

// LegacyPoorConfig is the harsher first-generation poor agent, which starves
// before it can learn often enough for the comparison to be meaningful.
func LegacyPoorConfig() sim.TrialConfig {
	return tuned(0.18, 0.025, 75)
}

// Scenario is a named trial configuration in the energy sweep.
type Scenario struct {
	Name   string
	Config sim.TrialConfig
}

// Scenarios is the four-step energy sweep from abundant to extreme scarcity.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "Abundant Energy", Config: tuned(0.05, 0.005, 30)},
		{Name: "Moderate Energy", Config: tuned(0.1, 0.01, 50)},
		{Name: "Scarce Energy", Config: tuned(0.15, 0.02, 70)},
		{Name: "Extreme Scarcity", Config: tuned(0.2, 0.03, 80)},
	}
}

func tuned(decay, cost, threshold float64) sim.TrialConfig {
	cfg := sim.DefaultTrialConfig()
	cfg.DecayRate = decay
	cfg.ComputationCost = cost
	cfg.LearningThreshold = threshold
	return cfg
}
