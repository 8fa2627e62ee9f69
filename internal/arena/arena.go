package arena

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/exp/constraints"

	"autopoiesis/internal/model"
)

var ErrNoFood = errors.New("arena has no available food")

// Bounds is an axis-aligned rectangle; both edges are inside.
type Bounds struct {
	Min model.Vec2 `json:"min"`
	Max model.Vec2 `json:"max"`
}

// Square returns the bounds [-half, half] x [-half, half].
func Square(half float64) Bounds {
	return Bounds{Min: model.Vec2{X: -half, Y: -half}, Max: model.Vec2{X: half, Y: half}}
}

func (b Bounds) Validate() error {
	if !(b.Max.X > b.Min.X) || !(b.Max.Y > b.Min.Y) {
		return fmt.Errorf("arena bounds are empty: min=%+v max=%+v", b.Min, b.Max)
	}
	return nil
}

func (b Bounds) Contains(p model.Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Diagonal is the largest distance between two points inside b.
func (b Bounds) Diagonal() float64 {
	return b.Max.Dist(b.Min)
}

// Sample draws a uniform point inside b: x first, then y.
func (b Bounds) Sample(rng *rand.Rand) model.Vec2 {
	return model.Vec2{
		X: b.Min.X + rng.Float64()*(b.Max.X-b.Min.X),
		Y: b.Min.Y + rng.Float64()*(b.Max.Y-b.Min.Y),
	}
}

type Food struct {
	ID        int        `json:"id"`
	Position  model.Vec2 `json:"position"`
	Available bool       `json:"available"`
}

// Config describes the food field.
type Config struct {
	Bounds    Bounds
	FoodCount int
	// Respawn relocates a consumed item immediately; otherwise it stays
	// unavailable for the rest of the trial.
	Respawn bool
}

// Arena holds the food field. It owns no random source; callers pass the
// trial's generator so placement stays on the trial's stream.
type Arena struct {
	bounds  Bounds
	respawn bool
	food    []Food
}

func New(cfg Config, rng *rand.Rand) (*Arena, error) {
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	if cfg.FoodCount < 0 {
		return nil, fmt.Errorf("food count must be non-negative, got %d", cfg.FoodCount)
	}
	a := &Arena{bounds: cfg.Bounds, respawn: cfg.Respawn, food: make([]Food, cfg.FoodCount)}
	for i := range a.food {
		a.food[i] = Food{ID: i, Position: cfg.Bounds.Sample(rng), Available: true}
	}
	return a, nil
}

// NewWithFood builds an arena from explicit placements, mainly for tests and
// replay. Positions must lie inside the bounds.
func NewWithFood(cfg Config, positions []model.Vec2) (*Arena, error) {
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	a := &Arena{bounds: cfg.Bounds, respawn: cfg.Respawn, food: make([]Food, len(positions))}
	for i, p := range positions {
		if !cfg.Bounds.Contains(p) {
			return nil, fmt.Errorf("food %d at %+v outside arena bounds", i, p)
		}
		a.food[i] = Food{ID: i, Position: p, Available: true}
	}
	return a, nil
}

func (a *Arena) Bounds() Bounds {
	return a.bounds
}

// Food returns a copy of the current food field.
func (a *Arena) Food() []Food {
	return append([]Food(nil), a.food...)
}

// Nearest returns the closest available food item to p.
func (a *Arena) Nearest(p model.Vec2) (Food, float64, error) {
	best := -1
	bestDist := math.Inf(1)
	for i, f := range a.food {
		if !f.Available {
			continue
		}
		if d := p.Dist(f.Position); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Food{}, 0, ErrNoFood
	}
	return a.food[best], bestDist, nil
}

// ConsumeWithin consumes every available item strictly closer than radius to
// p and returns how many were eaten. With respawn enabled each eaten item is
// relocated inside the bounds and is available again; items are visited in ID
// order so relocation draws stay reproducible.
func (a *Arena) ConsumeWithin(p model.Vec2, radius float64, rng *rand.Rand) int {
	eaten := 0
	for i := range a.food {
		f := &a.food[i]
		if !f.Available || p.Dist(f.Position) >= radius {
			continue
		}
		f.Available = false
		eaten++
		if a.respawn {
			f.Position = a.bounds.Sample(rng)
			f.Available = true
		}
	}
	return eaten
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Available counts items that can still be eaten.
func (a *Arena) Available() int {
	n := 0
	for _, f := range a.food {
		if f.Available {
			n++
		}
	}
	return n
}
