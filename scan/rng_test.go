package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionedRNG_SamplingUsesMasterSeed(t *testing.T) {
	p := NewPartitionedRNG(NewScanKey(42))
	direct := NewPartitionedRNG(NewScanKey(42))

	a := p.ForSubsystem(SubsystemSampling)
	b := direct.ForSubsystem(SubsystemSampling)
	for i := 0; i < 16; i++ {
		require.Equal(t, a.Int63(), b.Int63(), "draw %d", i)
	}
}

func TestPartitionedRNG_SubsystemsAreIsolated(t *testing.T) {
	p := NewPartitionedRNG(NewScanKey(42))
	sampling := p.ForSubsystem(SubsystemSampling)
	modelInit := p.ForSubsystem(SubsystemModelInit)

	assert.NotEqual(t, sampling.Int63(), modelInit.Int63())
}

func TestPartitionedRNG_CachesInstances(t *testing.T) {
	p := NewPartitionedRNG(NewScanKey(7))
	assert.Same(t, p.ForSubsystem(SubsystemSampling), p.ForSubsystem(SubsystemSampling))
	assert.Equal(t, NewScanKey(7), p.Key())
}

func TestPartitionedRNG_DifferentSeedsDiverge(t *testing.T) {
	a := NewPartitionedRNG(NewScanKey(1)).ForSubsystem(SubsystemSampling)
	b := NewPartitionedRNG(NewScanKey(2)).ForSubsystem(SubsystemSampling)
	assert.NotEqual(t, a.Int63(), b.Int63())
}
