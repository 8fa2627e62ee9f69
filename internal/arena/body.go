package arena

import (
	"fmt"
	"math"

	"autopoiesis/internal/model"
)

// BodyConfig holds the rigid-body constants of the agent, a ball rolling on
// a flat floor with no gravity component in the plane.
type BodyConfig struct {
	Mass float64 `json:"mass"`
	// Force is the push magnitude of one action, in newtons.
	Force    float64 `json:"force"`
	TimeStep float64 `json:"time_step"`
	// LinearDamping is the per-second fraction of velocity lost.
	LinearDamping float64 `json:"linear_damping"`
	// RollingFactor scales acceleration for rolling without slipping
	// (5/7 for a solid sphere).
	RollingFactor float64 `json:"rolling_factor"`
}

func DefaultBodyConfig() BodyConfig {
	return BodyConfig{
		Mass:          1.0,
		Force:         40.0,
		TimeStep:      1.0 / 240.0,
		LinearDamping: 0.04,
		RollingFactor: 5.0 / 7.0,
	}
}

func (c BodyConfig) Validate() error {
	switch {
	case !(c.Mass > 0):
		return fmt.Errorf("body mass must be positive, got %f", c.Mass)
	case c.Force < 0:
		return fmt.Errorf("body force must be non-negative, got %f", c.Force)
	case !(c.TimeStep > 0):
		return fmt.Errorf("body time step must be positive, got %f", c.TimeStep)
	case c.LinearDamping < 0 || c.LinearDamping >= 1:
		return fmt.Errorf("body linear damping must be in [0, 1), got %f", c.LinearDamping)
	case !(c.RollingFactor > 0) || c.RollingFactor > 1:
		return fmt.Errorf("body rolling factor must be in (0, 1], got %f", c.RollingFactor)
	}
	return nil
}

// Body is the agent's point-mass integrator.
type Body struct {
	Position model.Vec2
	Velocity model.Vec2

	cfg   BodyConfig
	force model.Vec2
}

func NewBody(cfg BodyConfig, position model.Vec2) *Body {
	return &Body{Position: position, cfg: cfg}
}

// Direction maps an action to its unit push direction.
func Direction(a model.Action) model.Vec2 {
	switch a {
	case model.ActionForward:
		return model.Vec2{X: 1}
	case model.ActionBackward:
		return model.Vec2{X: -1}
	case model.ActionLeft:
		return model.Vec2{Y: 1}
	case model.ActionRight:
		return model.Vec2{Y: -1}
	default:
		return model.Vec2{}
	}
}

// Push accumulates the action's force until the next Step.
func (b *Body) Push(a model.Action) {
	b.force = b.force.Add(Direction(a).Scale(b.cfg.Force))
}

// Step advances one tick with semi-implicit Euler and clears the force.
// Walls at the bounds absorb the velocity component that would cross them.
func (b *Body) Step(bounds Bounds) {
	dt := b.cfg.TimeStep
	accel := b.force.Scale(b.cfg.RollingFactor / b.cfg.Mass)
	b.Velocity = b.Velocity.Add(accel.Scale(dt))
	b.Velocity = b.Velocity.Scale(math.Pow(1-b.cfg.LinearDamping, dt))
	b.Position = b.Position.Add(b.Velocity.Scale(dt))
	b.force = model.Vec2{}

	if x := Clamp(b.Position.X, bounds.Min.X, bounds.Max.X); x != b.Position.X {
		b.Position.X, b.Velocity.X = x, 0
	}
	if y := Clamp(b.Position.Y, bounds.Min.Y, bounds.Max.Y); y != b.Position.Y {
		b.Position.Y, b.Velocity.Y = y, 0
	}
}
