package scan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chirpVector(chirpMass, tc float64) ParameterVector {
	return ParameterVector{
		names:  []string{"chirp_mass", "geocent_time"},
		values: []float64{chirpMass, tc},
	}
}

func TestGaussianKernel_ScoreIsFinite(t *testing.T) {
	kernel := NewGaussianKernel(testEvent(), 0)
	logL, snr, err := kernel.Score(chirpVector(1.4, 0.01))
	require.NoError(t, err)
	assert.False(t, math.IsNaN(logL) || math.IsInf(logL, 0))
	assert.False(t, math.IsNaN(snr) || math.IsInf(snr, 0))
}

func TestGaussianKernel_TimeTranslationCovariance(t *testing.T) {
	// GIVEN the same event scored directly and after a time translation
	ev := testEvent()
	const dt = 0.003
	direct := NewGaussianKernel(ev, 0)
	shifted := NewGaussianKernel(ev.TimeTranslate(dt), 0)

	// WHEN the coalescence time moves with the shift
	logL0, snr0, err := direct.Score(chirpVector(1.4, 0.01))
	require.NoError(t, err)
	logL1, snr1, err := shifted.Score(chirpVector(1.4, 0.01+dt))
	require.NoError(t, err)

	// THEN the matched filter is unchanged
	assert.InDelta(t, logL0, logL1, math.Abs(logL0)*1e-9+1e-9)
	assert.InDelta(t, snr0, snr1, math.Abs(snr0)*1e-9+1e-9)
}

func TestGaussianKernel_DeterministicAndPure(t *testing.T) {
	kernel := NewGaussianKernel(testEvent(), 0)
	pv := chirpVector(1.4, 0.0)
	logL0, snr0, err := kernel.Score(pv)
	require.NoError(t, err)
	logL1, snr1, err := kernel.Score(pv)
	require.NoError(t, err)
	assert.Equal(t, logL0, logL1)
	assert.Equal(t, snr0, snr1)
}

func TestGaussianKernel_TruncationChangesBand(t *testing.T) {
	full := NewGaussianKernel(testEvent(), 0)
	cut := NewGaussianKernel(testEvent(), 20.5)

	logL0, _, err := full.Score(chirpVector(1.4, 0.0))
	require.NoError(t, err)
	logL1, _, err := cut.Score(chirpVector(1.4, 0.0))
	require.NoError(t, err)
	assert.NotEqual(t, logL0, logL1)
}

func TestGaussianKernel_ParameterErrors(t *testing.T) {
	kernel := NewGaussianKernel(testEvent(), 0)

	_, _, err := kernel.Score(ParameterVector{names: []string{"geocent_time"}, values: []float64{0}})
	assert.ErrorContains(t, err, "chirp_mass")

	_, _, err = kernel.Score(chirpVector(-1.4, 0))
	assert.ErrorContains(t, err, "non-positive chirp mass")

	_, _, err = kernel.Score(ParameterVector{names: []string{"chirp_mass"}, values: []float64{1.4}})
	assert.ErrorContains(t, err, "geocent_time")
}
