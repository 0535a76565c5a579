package flow

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParseTransformMode(t *testing.T) {
	m, err := ParseTransformMode("rq-coupling")
	require.NoError(t, err)
	assert.Equal(t, ModeCoupling, m)

	m, err = ParseTransformMode("rq-autoregressive")
	require.NoError(t, err)
	assert.Equal(t, ModeAutoregressive, m)

	_, err = ParseTransformMode("affine-coupling")
	require.ErrorContains(t, err, "unsupported transform mode")
}

func TestHyperParams_Validate(t *testing.T) {
	hp := testHyperParams("rq-coupling", 3)
	require.NoError(t, hp.Validate())

	bad := hp
	bad.Mode = "nope"
	assert.Error(t, bad.Validate())

	bad = hp
	bad.NumBins = 1
	assert.Error(t, bad.Validate())

	bad = hp
	bad.TailBound = 0
	assert.Error(t, bad.Validate())

	bad = hp
	bad.InferenceParameters = []string{"delta_chirp_mass"}
	assert.ErrorContains(t, bad.Validate(), "inference parameters")

	bad = hp
	bad.Standardization = map[string]Standardizer{
		"delta_chirp_mass": {Mean: 0, Std: 0.2},
	}
	assert.ErrorContains(t, bad.Validate(), "standardization")
}

func testMetadata() Metadata {
	return Metadata{
		IntrinsicPrior: map[string]Bounds{
			"chirp_mass": {Min: 1.0, Max: 2.0},
		},
		ExtrinsicPrior: map[string]Bounds{
			"geocent_time": {Min: -0.1, Max: 0.1},
		},
		ChirpMassKernel: Bounds{Min: -0.01, Max: 0.01},
		Detectors:       []string{"H1", "L1"},
		RefTime:         1187008882.4,
	}
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	// GIVEN a freshly built model saved to disk
	hp := testHyperParams("rq-coupling", 3)
	w, err := RandomFlowWeights(hp, rand.New(rand.NewSource(51)))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, SaveCheckpoint(path, Checkpoint{
		Version:     CheckpointVersion,
		HyperParams: hp,
		Metadata:    testMetadata(),
		Weights:     w,
	}))

	// WHEN it is loaded back
	loaded, meta, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, testMetadata(), meta)
	assert.Equal(t, hp, loaded.HyperParams())

	// THEN the rebuilt model is numerically identical to the original
	orig, err := NewFlow(hp, w)
	require.NoError(t, err)
	ctx := &Context{Params: mat.NewDense(1, 3, []float64{0.2, -0.3, 0.5})}
	a, err := orig.Sample(ctx, 4, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	b, err := loaded.Sample(ctx, 4, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(a, b, 1e-15))
}

func TestCheckpoint_RejectsWrongVersion(t *testing.T) {
	hp := testHyperParams("rq-coupling", 3)
	w, err := RandomFlowWeights(hp, rand.New(rand.NewSource(52)))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, SaveCheckpoint(path, Checkpoint{
		Version:     CheckpointVersion + 1,
		HyperParams: hp,
		Metadata:    testMetadata(),
		Weights:     w,
	}))

	_, _, err = LoadCheckpoint(path)
	require.ErrorContains(t, err, "version")
}

func TestCheckpoint_RejectsBadMetadata(t *testing.T) {
	hp := testHyperParams("rq-coupling", 3)
	w, err := RandomFlowWeights(hp, rand.New(rand.NewSource(53)))
	require.NoError(t, err)

	meta := testMetadata()
	delete(meta.IntrinsicPrior, "chirp_mass")
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, SaveCheckpoint(path, Checkpoint{
		Version:     CheckpointVersion,
		HyperParams: hp,
		Metadata:    meta,
		Weights:     w,
	}))

	_, _, err = LoadCheckpoint(path)
	require.ErrorContains(t, err, "chirp_mass")
}

func TestBuildTransform_RejectsMismatchedSteps(t *testing.T) {
	hp := testHyperParams("rq-coupling", 3)
	w, err := RandomFlowWeights(hp, rand.New(rand.NewSource(54)))
	require.NoError(t, err)

	w.Steps = w.Steps[:1]
	_, err = NewFlow(hp, w)
	require.ErrorContains(t, err, "step weights")

	w2, err := RandomFlowWeights(hp, rand.New(rand.NewSource(55)))
	require.NoError(t, err)
	w2.Steps[1].Coupling = nil
	_, err = NewFlow(hp, w2)
	require.ErrorContains(t, err, "missing coupling weights")
}
