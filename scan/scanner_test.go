package scan

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gw-scan/gw-scan/scan/flow"
)

// fakeSampler records the context it was handed and returns zeros, so the
// de-standardized chirp mass is exactly the grid proxy of each row's block.
type fakeSampler struct {
	gotCtx     *flow.Context
	gotSamples int
	dim        int
}

func (f *fakeSampler) Sample(ctx *flow.Context, numSamples int, rng *rand.Rand) (*mat.Dense, error) {
	f.gotCtx = ctx
	f.gotSamples = numSamples
	return mat.NewDense(ctx.Rows()*numSamples, f.dim, nil), nil
}

func scannerHyperParams() flow.HyperParams {
	return flow.HyperParams{
		ParamDim:            2,
		ContextDim:          2,
		NumFlowSteps:        1,
		HiddenDim:           4,
		NumBins:             4,
		TailBound:           1,
		Mode:                "rq-coupling",
		InferenceParameters: []string{"delta_chirp_mass", "geocent_time"},
		Standardization: map[string]flow.Standardizer{
			"delta_chirp_mass": {Mean: 0, Std: 0.2},
			"geocent_time":     {Mean: 0.01, Std: 0.05},
		},
	}
}

func countingBuilder(calls *[]float64) ContextBuilder {
	return func(ev *EventDataset, proxy float64) ([]float64, []float64, error) {
		*calls = append(*calls, proxy)
		return []float64{proxy * 10}, []float64{proxy}, nil
	}
}

func TestScanner_BatchesOneBlockPerGridPoint(t *testing.T) {
	// GIVEN a 3-point grid at 4 samples per point
	grid := []float64{1.0, 1.5, 2.0}
	var calls []float64
	model := &fakeSampler{dim: 2}
	s, err := NewScanner(model, scannerHyperParams(), grid,
		ScanConfig{NumSamples: 4}, countingBuilder(&calls))
	require.NoError(t, err)

	// WHEN the scan runs
	table, err := s.Run(testEvent(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	// THEN the model saw a single call with one conditioning row per
	// (grid point, sample), grid blocks contiguous
	require.Equal(t, 1, model.gotSamples)
	require.Equal(t, 12, model.gotCtx.Rows())
	assert.Equal(t, grid, calls, "context builder runs once per grid point")
	for i := 0; i < 12; i++ {
		// No embedding net: strain and params are concatenated per row.
		want := grid[i/4]
		assert.Equal(t, want*10, model.gotCtx.Params.At(i, 0), "row %d strain block", i)
		assert.Equal(t, want, model.gotCtx.Params.At(i, 1), "row %d proxy", i)
	}

	// AND zero network outputs de-standardize to mean + grid proxy
	require.Equal(t, 12, table.Len())
	chirpMass, err := table.Column("chirp_mass")
	require.NoError(t, err)
	geocent, err := table.Column("geocent_time")
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		assert.InDelta(t, grid[i/4], chirpMass[i], 1e-12, "row %d maps to grid value %d", i, i/4)
		assert.Equal(t, 0.01, geocent[i])
	}
}

func TestScanner_TruncatesForTheModelBand(t *testing.T) {
	var bins []int
	build := func(ev *EventDataset, proxy float64) ([]float64, []float64, error) {
		bins = append(bins, ev.NumBins())
		return nil, []float64{proxy, 0}, nil
	}
	model := &fakeSampler{dim: 2}
	s, err := NewScanner(model, scannerHyperParams(), []float64{1.0},
		ScanConfig{NumSamples: 2, FMaxFlow: 20.5}, build)
	require.NoError(t, err)

	_, err = s.Run(testEvent(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, []int{3}, bins, "builder must see the truncated band")
}

func TestScanner_RejectsInconsistentContextWidths(t *testing.T) {
	build := func(ev *EventDataset, proxy float64) ([]float64, []float64, error) {
		if proxy > 1.0 {
			return nil, []float64{proxy, 0, 0}, nil
		}
		return nil, []float64{proxy, 0}, nil
	}
	model := &fakeSampler{dim: 2}
	s, err := NewScanner(model, scannerHyperParams(), []float64{1.0, 1.5},
		ScanConfig{NumSamples: 2}, build)
	require.NoError(t, err)

	_, err = s.Run(testEvent(), rand.New(rand.NewSource(1)))
	require.ErrorContains(t, err, "context widths")
}

func TestScanner_PropagatesBuilderErrors(t *testing.T) {
	build := func(ev *EventDataset, proxy float64) ([]float64, []float64, error) {
		return nil, nil, fmt.Errorf("bad ASD")
	}
	model := &fakeSampler{dim: 2}
	s, err := NewScanner(model, scannerHyperParams(), []float64{1.0},
		ScanConfig{NumSamples: 1}, build)
	require.NoError(t, err)

	_, err = s.Run(testEvent(), rand.New(rand.NewSource(1)))
	require.ErrorContains(t, err, "bad ASD")
}

func TestNewScanner_Validation(t *testing.T) {
	hp := scannerHyperParams()
	build := countingBuilder(&[]float64{})

	_, err := NewScanner(&fakeSampler{dim: 2}, hp, []float64{1}, ScanConfig{NumSamples: 0}, build)
	assert.ErrorContains(t, err, "samples per grid point")

	_, err = NewScanner(&fakeSampler{dim: 2}, hp, nil, ScanConfig{NumSamples: 1}, build)
	assert.ErrorContains(t, err, "empty candidate grid")

	_, err = NewScanner(&fakeSampler{dim: 2}, hp, []float64{1}, ScanConfig{NumSamples: 1}, nil)
	assert.ErrorContains(t, err, "context builder")
}
