package sim

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"math/rand"

	"autopoiesis/internal/arena"
	"autopoiesis/internal/model"
	"autopoiesis/internal/nn"
)

var ErrTrialFinished = errors.New("trial already finished")

const (
	eatReward          = 50.0
	existencePenalty   = -0.005
	shapingMaxDistance = 12.0
)

// ObservationSize is the width of the sensed vector fed to the policy.
const ObservationSize = 8

// Hooks are optional callbacks for progress reporting.
type Hooks struct {
	OnStep func(record model.StepRecord)
	// OnProgress fires every ProgressEvery steps and on the final step.
	ProgressEvery int
	OnProgress    func(record model.StepRecord)
}

// Simulation advances one agent through one trial. It is not safe for
// concurrent use; parallel trials each own a Simulation and a generator.
type Simulation struct {
	cfg    TrialConfig
	rng    *rand.Rand
	arena  *arena.Arena
	body   *arena.Body
	policy *nn.Policy
	hooks  Hooks

	energy        float64
	epsilon       float64
	step          int
	foodEaten     int
	learningSteps int
	spent         float64
	energySum     float64

	done   bool
	reason string
	err    error
}

// New builds a simulation whose every random draw comes from a generator
// seeded with seed.
func New(cfg TrialConfig, seed int64) (*Simulation, error) {
	return NewWithRand(cfg, rand.New(rand.NewSource(seed)))
}

// NewWithRand builds a simulation on a caller-owned generator. The generator
// must not be shared with another simulation.
func NewWithRand(cfg TrialConfig, rng *rand.Rand) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("simulation requires a random source")
	}

	// Draw order is fixed: policy weights, then food placement.
	policyCfg := nn.DefaultPolicyConfig()
	policyCfg.Inputs = ObservationSize
	policyCfg.Actions = model.ActionCount
	policyCfg.LearningRate = cfg.LearningRate
	policy, err := nn.NewPolicy(policyCfg, rng)
	if err != nil {
		return nil, fmt.Errorf("build policy: %w", err)
	}
	field, err := arena.New(arena.Config{
		Bounds:    cfg.Bounds(),
		FoodCount: cfg.FoodCount,
		Respawn:   cfg.Respawn,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("build arena: %w", err)
	}

	return &Simulation{
		cfg:     cfg,
		rng:     rng,
		arena:   field,
		body:    arena.NewBody(cfg.Body, model.Vec2{}),
		policy:  policy,
		energy:  cfg.InitialEnergy,
		epsilon: cfg.Epsilon,
	}, nil
}

// SetHooks installs progress callbacks; call before the first Step.
func (s *Simulation) SetHooks(h Hooks) {
	s.hooks = h
}

func (s *Simulation) Config() TrialConfig { return s.cfg }

func (s *Simulation) Arena() *arena.Arena { return s.arena }

func (s *Simulation) Policy() *nn.Policy { return s.policy }

func (s *Simulation) Energy() float64 { return s.energy }

func (s *Simulation) Position() model.Vec2 { return s.body.Position }

func (s *Simulation) StepsTaken() int { return s.step }

func (s *Simulation) Done() bool { return s.done }

// TerminalReason is model.TerminalDepleted or model.TerminalBudget once Done.
func (s *Simulation) TerminalReason() string { return s.reason }

// Err returns the error that stopped a Steps iteration, if any.
func (s *Simulation) Err() error { return s.err }

// Step runs sense, act, feed, learn and decay once. The returned flag is true
// when the trial has terminated with this step.
func (s *Simulation) Step() (model.StepRecord, bool, error) {
	if s.done {
		return model.StepRecord{}, true, ErrTrialFinished
	}
	cost := 0.0

	// Sense.
	cost += s.spend(s.cfg.SensingCost + s.cfg.ComputationCost)
	obs, dist, err := s.sense()
	if err != nil {
		return model.StepRecord{}, false, err
	}

	// Act.
	cost += s.spend(s.cfg.ActingCost + s.cfg.ComputationCost)
	decision, err := s.policy.Decide(obs)
	if err != nil {
		return model.StepRecord{}, false, fmt.Errorf("step %d: %w", s.step, err)
	}
	action, source := s.choose(obs, dist, decision)
	s.epsilon = math.Max(s.epsilon*s.cfg.EpsilonDecay, s.cfg.EpsilonMin)
	s.body.Push(action)
	s.body.Step(s.arena.Bounds())

	// Feed.
	eaten := s.arena.ConsumeWithin(s.body.Position, s.cfg.ConsumptionRadius, s.rng)
	gain := 0.0
	for i := 0; i < eaten; i++ {
		gain += s.foodReward()
	}
	if eaten > 0 {
		s.energy = arena.Clamp(s.energy+gain, 0, s.cfg.MaxEnergy)
		s.foodEaten += eaten
	}

	// Learn.
	reward := s.reward(dist, eaten > 0)
	learned := s.energy > s.cfg.LearningThreshold
	if learned {
		if _, err := s.policy.Reinforce(decision, int(action), reward); err != nil {
			return model.StepRecord{}, false, fmt.Errorf("step %d: %w", s.step, err)
		}
		cost += s.spend(s.cfg.LearningCost + s.cfg.ComputationCost)
		s.learningSteps++
	}

	// Decay.
	s.spend(s.cfg.DecayRate)
	s.spent += cost
	s.energySum += s.energy

	record := model.StepRecord{
		Step:      s.step,
		Energy:    s.energy,
		Position:  s.body.Position,
		Velocity:  s.body.Velocity,
		Action:    action,
		Source:    source,
		Learned:   learned,
		Fed:       eaten > 0,
		FoodEaten: eaten,
		Gain:      gain,
		Reward:    reward,
		Cost:      cost,
		Epsilon:   s.epsilon,
	}
	s.step++

	switch {
	case s.energy <= 0:
		s.done, s.reason = true, model.TerminalDepleted
	case s.step >= s.cfg.Steps:
		s.done, s.reason = true, model.TerminalBudget
	}
	if s.hooks.OnStep != nil {
		s.hooks.OnStep(record)
	}
	if s.hooks.OnProgress != nil && s.hooks.ProgressEvery > 0 && (s.step%s.hooks.ProgressEvery == 0 || s.done) {
		s.hooks.OnProgress(record)
	}
	return record, s.done, nil
}

// Steps returns the remaining steps as a lazy sequence. The sequence drives
// the simulation itself, so ranging over it a second time resumes where the
// first range stopped and yields nothing once the trial is over. A step error
// ends the sequence and is reported by Err.
func (s *Simulation) Steps() iter.Seq[model.StepRecord] {
	return func(yield func(model.StepRecord) bool) {
		for !s.done && s.err == nil {
			record, _, err := s.Step()
			if err != nil {
				s.err = err
				return
			}
			if !yield(record) {
				return
			}
		}
	}
}

// Stats summarizes the steps taken so far from the running counters, so
// callers need not keep the step records.
func (s *Simulation) Stats() model.TrialStats {
	stats := model.TrialStats{
		SurvivalTime:   s.step,
		FoodConsumed:   s.foodEaten,
		LearningSteps:  s.learningSteps,
		EnergySpent:    s.spent,
		TerminalReason: s.reason,
	}
	if s.step == 0 {
		return stats
	}
	n := float64(s.step)
	stats.LearningRatio = float64(s.learningSteps) / n
	stats.AverageEnergy = s.energySum / n
	stats.FinalEnergy = s.energy
	stats.FeedingEfficiency = float64(s.foodEaten) / n
	if s.spent > 0 {
		stats.EnergyEfficiency = float64(s.foodEaten) / s.spent
	}
	return stats
}

func (s *Simulation) FoodEaten() int { return s.foodEaten }

func (s *Simulation) LearningSteps() int { return s.learningSteps }

// EnergySpent is the computation energy charged so far, decay excluded.
func (s *Simulation) EnergySpent() float64 { return s.spent }

func (s *Simulation) spend(amount float64) float64 {
	s.energy = arena.Clamp(s.energy-amount, 0, s.cfg.MaxEnergy)
	return amount
}

func (s *Simulation) sense() ([]float64, float64, error) {
	pos := s.body.Position
	vel := s.body.Velocity
	target := model.Vec2{}
	dist := math.Inf(1)
	if nearest, d, err := s.arena.Nearest(pos); err == nil {
		target, dist = nearest.Position, d
	} else if !errors.Is(err, arena.ErrNoFood) {
		return nil, 0, err
	}

	rel := target.Sub(pos)
	sensed := dist
	if math.IsInf(dist, 1) {
		// Nothing left to find; report the arena diagonal as the distance.
		rel = model.Vec2{}
		sensed = s.arena.Bounds().Diagonal()
	}
	obs := []float64{
		pos.X, pos.Y,
		vel.X, vel.Y,
		rel.X, rel.Y,
		sensed,
		s.energy / s.cfg.MaxEnergy,
	}
	return obs, sensed, nil
}

// choose always makes three draws so the random stream advances identically
// whichever branch is taken.
func (s *Simulation) choose(obs []float64, dist float64, d nn.Decision) (model.Action, model.ActionSource) {
	heuristicDraw := s.rng.Float64()
	exploreDraw := s.rng.Float64()
	randomAction := model.Action(s.rng.Intn(model.ActionCount))

	if !s.cfg.Explore {
		return model.Action(d.Greedy), model.SourcePolicy
	}
	if s.cfg.HeuristicRadius > 0 && dist < s.cfg.HeuristicRadius {
		bias := s.cfg.HeuristicBias * (1 - dist/s.cfg.HeuristicRadius)
		if heuristicDraw < bias {
			return towards(obs[4], obs[5]), model.SourceHeuristic
		}
	}
	if exploreDraw < s.epsilon {
		return randomAction, model.SourceExplore
	}
	return model.Action(d.Greedy), model.SourcePolicy
}

// towards picks the axis move that most reduces the offset (dx, dy).
func towards(dx, dy float64) model.Action {
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			return model.ActionForward
		}
		return model.ActionBackward
	}
	if dy > 0 {
		return model.ActionLeft
	}
	return model.ActionRight
}

func (s *Simulation) foodReward() float64 {
	if s.cfg.FoodRewardSpread == 0 {
		return s.cfg.FoodReward
	}
	return s.cfg.FoodReward + (s.rng.Float64()*2-1)*s.cfg.FoodRewardSpread
}

func (s *Simulation) reward(dist float64, fed bool) float64 {
	switch s.cfg.Reward {
	case RewardFeeding:
		if fed {
			return 1
		}
		return 0
	default:
		if fed {
			return eatReward
		}
		return (shapingMaxDistance-dist)/shapingMaxDistance + existencePenalty
	}
}
