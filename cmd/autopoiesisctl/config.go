package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"autopoiesis/internal/experiment"
	"autopoiesis/internal/sim"
)

// runConfig is everything an experiment command can read from a config file.
type runConfig struct {
	Seed    int64
	Trials  int
	Workers int
	Metric  string
	Trial   sim.TrialConfig
	Rich    sim.TrialConfig
	Poor    sim.TrialConfig
}

func defaultRunConfig() runConfig {
	return runConfig{
		Seed:   42,
		Trials: 10,
		Metric: string(experiment.MetricFeeding),
		Trial:  sim.DefaultTrialConfig(),
		Rich:   experiment.RichConfig(),
		Poor:   experiment.PoorConfig(),
	}
}

func loadOrDefaultRunConfig(path string) (runConfig, error) {
	if path == "" {
		return defaultRunConfig(), nil
	}
	return loadRunConfig(path)
}

// loadRunConfig reads a YAML or JSON file. Top-level "steps" applies to every
// trial config before the per-config sections are applied.
func loadRunConfig(path string) (runConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return runConfig{}, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return runConfig{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg := defaultRunConfig()
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Seed = v
	}
	if v, ok := asInt(raw["trials"]); ok {
		cfg.Trials = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		cfg.Workers = v
	}
	if v, ok := asString(raw["metric"]); ok {
		cfg.Metric = v
	}
	if v, ok := asInt(raw["steps"]); ok {
		cfg.Trial.Steps = v
		cfg.Rich.Steps = v
		cfg.Poor.Steps = v
	}
	for key, target := range map[string]*sim.TrialConfig{
		"trial": &cfg.Trial,
		"rich":  &cfg.Rich,
		"poor":  &cfg.Poor,
	} {
		section, ok := raw[key]
		if !ok {
			continue
		}
		m, ok := section.(map[string]any)
		if !ok {
			return runConfig{}, fmt.Errorf("config section %q must be a mapping", key)
		}
		applyTrialConfig(target, m)
	}
	return cfg, nil
}

func applyTrialConfig(cfg *sim.TrialConfig, raw map[string]any) {
	floats := map[string]*float64{
		"decay_rate":         &cfg.DecayRate,
		"computation_cost":   &cfg.ComputationCost,
		"learning_threshold": &cfg.LearningThreshold,
		"initial_energy":     &cfg.InitialEnergy,
		"max_energy":         &cfg.MaxEnergy,
		"sensing_cost":       &cfg.SensingCost,
		"acting_cost":        &cfg.ActingCost,
		"learning_cost":      &cfg.LearningCost,
		"arena_half_width":   &cfg.ArenaHalfWidth,
		"food_reward":        &cfg.FoodReward,
		"food_reward_spread": &cfg.FoodRewardSpread,
		"consumption_radius": &cfg.ConsumptionRadius,
		"epsilon":            &cfg.Epsilon,
		"epsilon_decay":      &cfg.EpsilonDecay,
		"epsilon_min":        &cfg.EpsilonMin,
		"heuristic_radius":   &cfg.HeuristicRadius,
		"heuristic_bias":     &cfg.HeuristicBias,
		"learning_rate":      &cfg.LearningRate,
	}
	for key, dst := range floats {
		if v, ok := asFloat64(raw[key]); ok {
			*dst = v
		}
	}
	if v, ok := asInt(raw["steps"]); ok {
		cfg.Steps = v
	}
	if v, ok := asInt(raw["food_count"]); ok {
		cfg.FoodCount = v
	}
	if v, ok := asBool(raw["explore"]); ok {
		cfg.Explore = v
	}
	if v, ok := asBool(raw["respawn"]); ok {
		cfg.Respawn = v
	}
	if v, ok := asString(raw["reward"]); ok {
		cfg.Reward = sim.RewardMode(v)
	}
	if body, ok := raw["body"].(map[string]any); ok {
		if v, ok := asFloat64(body["mass"]); ok {
			cfg.Body.Mass = v
		}
		if v, ok := asFloat64(body["force"]); ok {
			cfg.Body.Force = v
		}
		if v, ok := asFloat64(body["time_step"]); ok {
			cfg.Body.TimeStep = v
		}
		if v, ok := asFloat64(body["linear_damping"]); ok {
			cfg.Body.LinearDamping = v
		}
		if v, ok := asFloat64(body["rolling_factor"]); ok {
			cfg.Body.RollingFactor = v
		}
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags the user set explicitly, so file
// values survive unless overridden on the command line.
func overrideFromFlags(cfg *runConfig, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "seed":
			cfg.Seed = v.(int64)
		case "trials":
			cfg.Trials = v.(int)
		case "workers":
			cfg.Workers = v.(int)
		case "metric":
			cfg.Metric = v.(string)
		case "steps":
			steps := v.(int)
			cfg.Trial.Steps = steps
			cfg.Rich.Steps = steps
			cfg.Poor.Steps = steps
		case "no-explore":
			explore := !v.(bool)
			cfg.Trial.Explore = explore
			cfg.Rich.Explore = explore
			cfg.Poor.Explore = explore
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}
