package sim

import (
	"errors"
	"fmt"
	"math"

	"autopoiesis/internal/arena"
	"autopoiesis/internal/model"
)

var ErrInvalidConfig = errors.New("invalid trial config")

type RewardMode string

const (
	// RewardShaped pays a large bonus on feeding and otherwise a signal that
	// grows as the nearest food gets closer.
	RewardShaped RewardMode = "shaped"
	// RewardFeeding pays 1 on feeding and 0 otherwise.
	RewardFeeding RewardMode = "feeding"
)

// TrialConfig fixes every constant of one trial. Simulations copy it at
// construction, so mutating a config after New has no effect on a running
// trial.
type TrialConfig struct {
	// The three tunables compared across experiments.
	DecayRate         float64 `json:"decay_rate"`
	ComputationCost   float64 `json:"computation_cost"`
	LearningThreshold float64 `json:"learning_threshold"`

	Steps   int  `json:"steps"`
	Explore bool `json:"explore"`

	InitialEnergy float64 `json:"initial_energy"`
	MaxEnergy     float64 `json:"max_energy"`
	SensingCost   float64 `json:"sensing_cost"`
	ActingCost    float64 `json:"acting_cost"`
	LearningCost  float64 `json:"learning_cost"`

	ArenaHalfWidth    float64 `json:"arena_half_width"`
	FoodCount         int     `json:"food_count"`
	FoodReward        float64 `json:"food_reward"`
	FoodRewardSpread  float64 `json:"food_reward_spread"`
	ConsumptionRadius float64 `json:"consumption_radius"`
	Respawn           bool    `json:"respawn"`

	Epsilon         float64 `json:"epsilon"`
	EpsilonDecay    float64 `json:"epsilon_decay"`
	EpsilonMin      float64 `json:"epsilon_min"`
	HeuristicRadius float64 `json:"heuristic_radius"`
	HeuristicBias   float64 `json:"heuristic_bias"`

	Reward       RewardMode       `json:"reward"`
	LearningRate float64          `json:"learning_rate"`
	Body         arena.BodyConfig `json:"body"`
}

func DefaultTrialConfig() TrialConfig {
	return TrialConfig{
		DecayRate:         0.1,
		ComputationCost:   0.01,
		LearningThreshold: 50,
		Steps:             1000,
		Explore:           true,

		InitialEnergy: 100,
		MaxEnergy:     150,
		SensingCost:   0.02,
		ActingCost:    0.03,
		LearningCost:  0.05,

		ArenaHalfWidth:    5,
		FoodCount:         16,
		FoodReward:        20,
		ConsumptionRadius: 0.8,
		Respawn:           true,

		Epsilon:         0.5,
		EpsilonDecay:    0.998,
		EpsilonMin:      0.1,
		HeuristicRadius: 4,
		HeuristicBias:   1,

		Reward:       RewardShaped,
		LearningRate: 0.001,
		Body:         arena.DefaultBodyConfig(),
	}
}

// Params returns the persisted view of the tunables.
func (c TrialConfig) Params() model.TrialParams {
	return model.TrialParams{
		DecayRate:         c.DecayRate,
		ComputationCost:   c.ComputationCost,
		LearningThreshold: c.LearningThreshold,
		Steps:             c.Steps,
		Explore:           c.Explore,
	}
}

// Bounds is the arena rectangle implied by ArenaHalfWidth.
func (c TrialConfig) Bounds() arena.Bounds {
	return arena.Square(c.ArenaHalfWidth)
}

// Validate reports every problem at once; each wraps ErrInvalidConfig.
func (c TrialConfig) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}
	nonNegative := func(name string, v float64) {
		if !(v >= 0) || math.IsInf(v, 1) {
			bad("%s must be a non-negative finite number, got %v", name, v)
		}
	}
	probability := func(name string, v float64) {
		if !(v >= 0 && v <= 1) {
			bad("%s must be in [0, 1], got %v", name, v)
		}
	}

	nonNegative("decay rate", c.DecayRate)
	nonNegative("computation cost", c.ComputationCost)
	nonNegative("sensing cost", c.SensingCost)
	nonNegative("acting cost", c.ActingCost)
	nonNegative("learning cost", c.LearningCost)
	nonNegative("food reward", c.FoodReward)
	nonNegative("food reward spread", c.FoodRewardSpread)
	nonNegative("learning threshold", c.LearningThreshold)

	if c.Steps <= 0 {
		bad("step budget must be positive, got %d", c.Steps)
	}
	if !(c.MaxEnergy > 0) || math.IsInf(c.MaxEnergy, 1) {
		bad("max energy must be positive, got %v", c.MaxEnergy)
	}
	if !(c.InitialEnergy > 0) || c.InitialEnergy > c.MaxEnergy {
		bad("initial energy must be in (0, max energy], got %v", c.InitialEnergy)
	}
	if c.LearningThreshold > c.MaxEnergy {
		bad("learning threshold %v exceeds max energy %v", c.LearningThreshold, c.MaxEnergy)
	}
	if c.FoodRewardSpread > c.FoodReward {
		bad("food reward spread %v exceeds food reward %v", c.FoodRewardSpread, c.FoodReward)
	}
	if !(c.ArenaHalfWidth > 0) {
		bad("arena half width must be positive, got %v", c.ArenaHalfWidth)
	}
	if c.FoodCount < 0 {
		bad("food count must be non-negative, got %d", c.FoodCount)
	}
	if !(c.ConsumptionRadius > 0) {
		bad("consumption radius must be positive, got %v", c.ConsumptionRadius)
	}

	probability("epsilon", c.Epsilon)
	probability("epsilon decay", c.EpsilonDecay)
	probability("epsilon min", c.EpsilonMin)
	probability("heuristic bias", c.HeuristicBias)
	if c.EpsilonMin > c.Epsilon {
		bad("epsilon min %v exceeds epsilon %v", c.EpsilonMin, c.Epsilon)
	}
	if c.HeuristicRadius < 0 {
		bad("heuristic radius must be non-negative, got %v", c.HeuristicRadius)
	}

	switch c.Reward {
	case RewardShaped, RewardFeeding:
	default:
		bad("unsupported reward mode %q", c.Reward)
	}
	if !(c.LearningRate > 0) {
		bad("learning rate must be positive, got %v", c.LearningRate)
	}
	if err := c.Body.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}
