package arena

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopoiesis/internal/model"
)

func TestNewPlacesFoodInsideBounds(t *testing.T) {
	bounds := Square(5)
	a, err := New(Config{Bounds: bounds, FoodCount: 64, Respawn: true}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	food := a.Food()
	require.Len(t, food, 64)
	for _, f := range food {
		assert.True(t, bounds.Contains(f.Position), "food %d at %+v", f.ID, f.Position)
		assert.True(t, f.Available)
	}
	assert.Equal(t, 64, a.Available())
}

func TestNewRejectsBadConfig(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := New(Config{Bounds: Bounds{}, FoodCount: 1}, rng)
	assert.Error(t, err)
	_, err = New(Config{Bounds: Square(1), FoodCount: -1}, rng)
	assert.Error(t, err)
	_, err = NewWithFood(Config{Bounds: Square(1)}, []model.Vec2{{X: 3}})
	assert.Error(t, err)
}

func TestConsumeWithinRadiusBoundary(t *testing.T) {
	cfg := Config{Bounds: Square(5), Respawn: true}
	rng := rand.New(rand.NewSource(9))

	inside, err := NewWithFood(cfg, []model.Vec2{{X: 0.79}})
	require.NoError(t, err)
	assert.Equal(t, 1, inside.ConsumeWithin(model.Vec2{}, 0.8, rng))

	outside, err := NewWithFood(cfg, []model.Vec2{{X: 0.81}, {Y: -0.8}})
	require.NoError(t, err)
	assert.Equal(t, 0, outside.ConsumeWithin(model.Vec2{}, 0.8, rng))
	assert.Equal(t, []model.Vec2{{X: 0.81}, {Y: -0.8}}, []model.Vec2{outside.Food()[0].Position, outside.Food()[1].Position})
}

func TestConsumeWithinEatsEveryItemInRangeAndRelocates(t *testing.T) {
	cfg := Config{Bounds: Square(5), Respawn: true}
	a, err := NewWithFood(cfg, []model.Vec2{{X: 0.1}, {Y: 0.2}, {X: 4, Y: 4}})
	require.NoError(t, err)

	eaten := a.ConsumeWithin(model.Vec2{}, 0.8, rand.New(rand.NewSource(5)))
	assert.Equal(t, 2, eaten)
	for _, f := range a.Food() {
		assert.True(t, f.Available)
		assert.True(t, cfg.Bounds.Contains(f.Position))
	}
	assert.Equal(t, model.Vec2{X: 4, Y: 4}, a.Food()[2].Position)
}

func TestConsumeWithoutRespawnRemovesItem(t *testing.T) {
	a, err := NewWithFood(Config{Bounds: Square(5)}, []model.Vec2{{X: 0.1}, {X: 2}})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(5))

	assert.Equal(t, 1, a.ConsumeWithin(model.Vec2{}, 0.8, rng))
	assert.Equal(t, 0, a.ConsumeWithin(model.Vec2{}, 0.8, rng))
	assert.Equal(t, 1, a.Available())

	nearest, dist, err := a.Nearest(model.Vec2{})
	require.NoError(t, err)
	assert.Equal(t, 1, nearest.ID)
	assert.InDelta(t, 2.0, dist, 1e-12)
}

func TestNearestWithoutFood(t *testing.T) {
	a, err := NewWithFood(Config{Bounds: Square(5)}, nil)
	require.NoError(t, err)
	_, _, err = a.Nearest(model.Vec2{})
	assert.ErrorIs(t, err, ErrNoFood)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(3.0, -1, 1))
	assert.Equal(t, float32(-1), Clamp(float32(-3), -1, 1))
	assert.Equal(t, 0.5, Clamp(0.5, -1, 1))
}
