package flow

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Flow pairs a standard-normal base distribution with the composite
// invertible transform and an optional embedding network. A Flow is
// immutable after construction: sampling and density evaluation are pure
// functions of (model, context, rng).
type Flow struct {
	hyper     HyperParams
	base      *StandardNormal
	transform Transform
	embed     *EmbeddingNet
}

// NewFlow builds a flow model from its hyperparameter record and weights.
// Every shape mismatch between the two is a construction error.
func NewFlow(hp HyperParams, w FlowWeights) (*Flow, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	transform, err := buildTransform(hp, w)
	if err != nil {
		return nil, err
	}
	f := &Flow{
		hyper:     hp,
		base:      NewStandardNormal(hp.ParamDim),
		transform: transform,
	}
	if hp.Embedding != nil {
		if w.Embedding == nil {
			return nil, fmt.Errorf("flow: hyperparams declare an embedding net but weights carry none")
		}
		e := hp.Embedding
		embed, err := NewEmbeddingNet(e.StrainDim, e.ProjDim, e.AuxDim, e.HiddenDim,
			hp.ContextDim, e.NumBlocks, *w.Embedding)
		if err != nil {
			return nil, err
		}
		f.embed = embed
	}
	return f, nil
}

// HyperParams returns the model's immutable hyperparameter record.
func (f *Flow) HyperParams() HyperParams { return f.hyper }

// ParamDim returns the parameter-space dimension.
func (f *Flow) ParamDim() int { return f.hyper.ParamDim }

// embedContext resolves a structured context to the (n × contextDim)
// conditioning matrix the transform stack sees. Without an embedding net
// the auxiliary parameter block is the context and must already have the
// right width.
func (f *Flow) embedContext(ctx *Context) (*mat.Dense, error) {
	if ctx == nil || ctx.Rows() == 0 {
		if f.hyper.ContextDim == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: context required (dim %d)", f.hyper.ContextDim)
	}
	if f.embed != nil {
		return f.embed.Embed(ctx)
	}
	if ctx.Strain != nil {
		return nil, fmt.Errorf("flow: model has no embedding net for structured strain context")
	}
	_, c := ctx.Params.Dims()
	if c != f.hyper.ContextDim {
		return nil, fmt.Errorf("flow: context dim %d, want %d", c, f.hyper.ContextDim)
	}
	return ctx.Params, nil
}

// Sample embeds the context once, draws numSamples base points per context
// row and pushes them through the forward transform. The output has
// rows·numSamples rows in row-major order: output row i belongs to context
// row i/numSamples. For a single context row this is simply a
// (numSamples × paramDim) block, matching the squeezed convention.
func (f *Flow) Sample(ctx *Context, numSamples int, rng *rand.Rand) (*mat.Dense, error) {
	if numSamples < 1 {
		return nil, fmt.Errorf("flow sample: numSamples must be >= 1, got %d", numSamples)
	}
	embedded, err := f.embedContext(ctx)
	if err != nil {
		return nil, err
	}

	rows := 1
	var expanded *mat.Dense
	if embedded != nil {
		n, c := embedded.Dims()
		rows = n
		expanded = mat.NewDense(n*numSamples, c, nil)
		for i := 0; i < n; i++ {
			src := embedded.RawRowView(i)
			for k := 0; k < numSamples; k++ {
				copy(expanded.RawRowView(i*numSamples+k), src)
			}
		}
	}

	noise := f.base.Sample(rows*numSamples, rng)
	samples, _, err := f.transform.Forward(noise, expanded)
	if err != nil {
		return nil, fmt.Errorf("flow sample: %w", err)
	}
	return samples, nil
}

// LogProb returns the exact log-density of each parameter row under the
// flow: base log-density of the inverse image plus the log-Jacobian of the
// inverse map. The context must have one row per parameter row (or a
// single row, broadcast). Diagnostics/training only; the scan path never
// calls this.
func (f *Flow) LogProb(params *mat.Dense, ctx *Context) ([]float64, error) {
	n, d := params.Dims()
	if d != f.hyper.ParamDim {
		return nil, fmt.Errorf("flow log prob: param dim %d, want %d", d, f.hyper.ParamDim)
	}
	embedded, err := f.embedContext(ctx)
	if err != nil {
		return nil, err
	}
	if embedded != nil {
		en, c := embedded.Dims()
		if en == 1 && n > 1 {
			broadcast := mat.NewDense(n, c, nil)
			for i := 0; i < n; i++ {
				copy(broadcast.RawRowView(i), embedded.RawRowView(0))
			}
			embedded = broadcast
		} else if en != n {
			return nil, fmt.Errorf("flow log prob: %d context rows for %d parameter rows", en, n)
		}
	}
	noise, logDet, err := f.transform.Inverse(params, embedded)
	if err != nil {
		return nil, fmt.Errorf("flow log prob: %w", err)
	}
	out := f.base.LogProb(noise)
	for i := range out {
		out[i] += logDet[i]
	}
	return out, nil
}
