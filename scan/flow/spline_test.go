package flow

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSplineRaw(numBins int, rng *rand.Rand) []float64 {
	raw := make([]float64, splineParamsPerDim(numBins))
	for i := range raw {
		raw[i] = rng.NormFloat64()
	}
	return raw
}

func TestRQSpline_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sp := newRQSpline(randomSplineRaw(8, rng), 8, 1.0)

	for _, x := range []float64{-0.95, -0.5, -0.1, 0, 0.3, 0.77, 0.99} {
		y, ldFwd := sp.forward(x)
		back, ldInv := sp.inverse(y)
		require.InDelta(t, x, back, 1e-10, "inverse(forward(%v))", x)
		require.InDelta(t, 0, ldFwd+ldInv, 1e-10, "log-det cancellation at %v", x)
	}
}

func TestRQSpline_TailsAreIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	sp := newRQSpline(randomSplineRaw(8, rng), 8, 1.0)

	for _, x := range []float64{-3.5, -1.01, 1.01, 42} {
		y, ld := sp.forward(x)
		assert.Equal(t, x, y, "tail input must pass through")
		assert.Zero(t, ld)
	}
}

func TestRQSpline_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	sp := newRQSpline(randomSplineRaw(16, rng), 16, 2.0)

	prev := math.Inf(-1)
	for x := -2.0; x <= 2.0; x += 1e-3 {
		y, _ := sp.forward(x)
		require.Greater(t, y, prev, "spline must be strictly increasing at %v", x)
		prev = y
	}
}

func TestRQSpline_LogDetMatchesFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	sp := newRQSpline(randomSplineRaw(8, rng), 8, 1.0)

	const h = 1e-6
	for _, x := range []float64{-0.6, 0.2, 0.85} {
		_, ld := sp.forward(x)
		yPlus, _ := sp.forward(x + h)
		yMinus, _ := sp.forward(x - h)
		numeric := math.Log((yPlus - yMinus) / (2 * h))
		assert.InDelta(t, numeric, ld, 1e-5, "analytic log-derivative at %v", x)
	}
}

func TestRQSpline_MapsIntervalOntoItself(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	sp := newRQSpline(randomSplineRaw(8, rng), 8, 1.0)

	yLo, _ := sp.forward(-1.0)
	yHi, _ := sp.forward(1.0)
	assert.InDelta(t, -1.0, yLo, 1e-12)
	assert.InDelta(t, 1.0, yHi, 1e-12)
}
