package scan

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/gw-scan/gw-scan/scan/flow"
)

// Sampler is the slice of the flow model the scan controller depends on.
type Sampler interface {
	Sample(ctx *flow.Context, numSamples int, rng *rand.Rand) (*mat.Dense, error)
}

// Scanner drives the conditional flow model over the candidate chirp-mass
// grid: it batches one conditioning row per (grid point, sample), draws the
// posterior samples in a single model call and de-standardizes the outputs
// into a sample table.
type Scanner struct {
	model Sampler
	hyper flow.HyperParams
	grid  []float64
	cfg   ScanConfig
	build ContextBuilder
}

// NewScanner validates the configuration and returns a scan controller.
func NewScanner(model Sampler, hp flow.HyperParams, grid []float64, cfg ScanConfig, build ContextBuilder) (*Scanner, error) {
	if cfg.NumSamples < 1 {
		return nil, fmt.Errorf("scanner: samples per grid point must be >= 1, got %d", cfg.NumSamples)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("scanner: empty candidate grid")
	}
	if build == nil {
		return nil, fmt.Errorf("scanner: nil context builder")
	}
	return &Scanner{model: model, hyper: hp, grid: grid, cfg: cfg, build: build}, nil
}

// Run scans the event dataset. The conditioning buffers hold
// len(grid)·NumSamples rows; each grid point's block occupies its
// contiguous slice, so output row i always belongs to grid value
// i/NumSamples.
func (s *Scanner) Run(ev *EventDataset, rng *rand.Rand) (*Table, error) {
	data := ev
	if s.cfg.FMaxFlow > 0 {
		data = ev.Truncate(s.cfg.FMaxFlow)
	}

	ns := s.cfg.NumSamples
	n := len(s.grid) * ns

	strain0, params0, err := s.build(data, s.grid[0])
	if err != nil {
		return nil, fmt.Errorf("scanner: building context for grid point 0: %w", err)
	}
	var strainBuf *mat.Dense
	if len(strain0) > 0 {
		strainBuf = mat.NewDense(n, len(strain0), nil)
	}
	paramBuf := mat.NewDense(n, len(params0), nil)

	for gi, proxy := range s.grid {
		strainRow, paramRow := strain0, params0
		if gi > 0 {
			strainRow, paramRow, err = s.build(data, proxy)
			if err != nil {
				return nil, fmt.Errorf("scanner: building context for grid point %d: %w", gi, err)
			}
			if len(strainRow) != len(strain0) || len(paramRow) != len(params0) {
				return nil, fmt.Errorf("scanner: grid point %d context widths (%d,%d) differ from point 0 (%d,%d)",
					gi, len(strainRow), len(paramRow), len(strain0), len(params0))
			}
		}
		lower := gi * ns
		for k := 0; k < ns; k++ {
			if strainBuf != nil {
				copy(strainBuf.RawRowView(lower+k), strainRow)
			}
			copy(paramBuf.RawRowView(lower+k), paramRow)
		}
	}

	ctx, err := s.assembleContext(strainBuf, paramBuf)
	if err != nil {
		return nil, err
	}
	samples, err := s.model.Sample(ctx, 1, rng)
	if err != nil {
		return nil, fmt.Errorf("scanner: sampling: %w", err)
	}
	sn, sd := samples.Dims()
	if sn != n || sd != len(s.hyper.InferenceParameters) {
		return nil, fmt.Errorf("scanner: sample block (%d,%d), want (%d,%d)",
			sn, sd, n, len(s.hyper.InferenceParameters))
	}
	return s.destandardize(samples)
}

// assembleContext routes the conditioning buffers to the model. Models
// without an embedding network take the flattened conditioning row
// directly as context.
func (s *Scanner) assembleContext(strain, params *mat.Dense) (*flow.Context, error) {
	if s.hyper.Embedding != nil {
		if strain == nil {
			return nil, fmt.Errorf("scanner: model expects a strain block but the context builder produced none")
		}
		return &flow.Context{Strain: strain, Params: params}, nil
	}
	if strain == nil {
		return &flow.Context{Params: params}, nil
	}
	sn, sc := strain.Dims()
	_, pc := params.Dims()
	joined := mat.NewDense(sn, sc+pc, nil)
	for i := 0; i < sn; i++ {
		row := joined.RawRowView(i)
		copy(row[:sc], strain.RawRowView(i))
		copy(row[sc:], params.RawRowView(i))
	}
	return &flow.Context{Params: joined}, nil
}

// destandardize maps network-space samples into physical parameters and
// reconstructs the chirp mass as proxy + delta_chirp_mass.
func (s *Scanner) destandardize(samples *mat.Dense) (*Table, error) {
	ns := s.cfg.NumSamples
	n, _ := samples.Dims()

	names := make([]string, len(s.hyper.InferenceParameters))
	for j, name := range s.hyper.InferenceParameters {
		if name == "delta_chirp_mass" {
			names[j] = "chirp_mass"
		} else {
			names[j] = name
		}
	}
	table := NewTable(names, n)
	for j, name := range s.hyper.InferenceParameters {
		std, ok := s.hyper.Standardization[name]
		if !ok {
			return nil, fmt.Errorf("scanner: no standardization for parameter %q", name)
		}
		delta := name == "delta_chirp_mass"
		for i := 0; i < n; i++ {
			v := samples.At(i, j)*std.Std + std.Mean
			if delta {
				v += s.grid[i/ns]
			}
			table.Set(i, j, v)
		}
	}
	return table, nil
}
