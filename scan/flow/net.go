package flow

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// DenseWeights is the serialized form of one affine layer. W is stored
// row-major as (in × out).
type DenseWeights struct {
	W [][]float64 `json:"w"`
	B []float64   `json:"b"`
}

// RandomDenseWeights draws small random weights (scale 0.01) so that a
// freshly built network keeps every spline near identity. Trained weights
// come from a checkpoint; this initializer serves tests and tooling.
func RandomDenseWeights(in, out int, rng *rand.Rand) DenseWeights {
	w := DenseWeights{W: make([][]float64, in), B: make([]float64, out)}
	for i := range w.W {
		w.W[i] = make([]float64, out)
		for j := range w.W[i] {
			w.W[i][j] = 0.01 * rng.NormFloat64()
		}
	}
	return w
}

type denseLayer struct {
	w    *mat.Dense // (in × out)
	b    []float64
	mask *mat.Dense // optional 0/1 connectivity mask, same shape as w
}

func newDenseLayer(in, out int, w DenseWeights) (*denseLayer, error) {
	if len(w.W) != in || len(w.B) != out {
		return nil, fmt.Errorf("dense layer: weight shape (%d,%d), want (%d,%d)", len(w.W), len(w.B), in, out)
	}
	m := mat.NewDense(in, out, nil)
	for i, row := range w.W {
		if len(row) != out {
			return nil, fmt.Errorf("dense layer: ragged weight row %d", i)
		}
		m.SetRow(i, row)
	}
	return &denseLayer{w: m, b: append([]float64(nil), w.B...)}, nil
}

// effective returns the connectivity-masked weight matrix.
func (l *denseLayer) effective() *mat.Dense {
	if l.mask == nil {
		return l.w
	}
	var m mat.Dense
	m.MulElem(l.w, l.mask)
	return &m
}

// apply computes x·W + b for a batch of row vectors.
func (l *denseLayer) apply(x *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(x, l.effective())
	n, c := out.Dims()
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] += l.b[j]
		}
	}
	return &out
}

func relu(x *mat.Dense) *mat.Dense {
	n, c := x.Dims()
	out := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		src := x.RawRowView(i)
		dst := out.RawRowView(i)
		for j := 0; j < c; j++ {
			if src[j] > 0 {
				dst[j] = src[j]
			}
		}
	}
	return out
}

// ResidualNetWeights is the serialized form of a context-conditioned
// residual MLP: an input layer over [x ++ ctx], a sequence of two-layer
// residual blocks, and an output layer.
type ResidualNetWeights struct {
	In     DenseWeights      `json:"in"`
	Blocks [][2]DenseWeights `json:"blocks"`
	Out    DenseWeights      `json:"out"`
}

// RandomResidualNetWeights builds random near-identity weights for a net
// with the given dimensions.
func RandomResidualNetWeights(in, ctx, hidden, out, numBlocks int, rng *rand.Rand) ResidualNetWeights {
	w := ResidualNetWeights{
		In:  RandomDenseWeights(in+ctx, hidden, rng),
		Out: RandomDenseWeights(hidden, out, rng),
	}
	for i := 0; i < numBlocks; i++ {
		w.Blocks = append(w.Blocks, [2]DenseWeights{
			RandomDenseWeights(hidden, hidden, rng),
			RandomDenseWeights(hidden, hidden, rng),
		})
	}
	return w
}

// ResidualNet is the conditioner network of a coupling block: a residual
// MLP over the untransformed features concatenated with the context vector.
type ResidualNet struct {
	in     int
	ctx    int
	input  *denseLayer
	blocks [][2]*denseLayer
	output *denseLayer
}

// NewResidualNet assembles a residual net with in input features, ctx
// context features, hidden units per layer and out output features.
func NewResidualNet(in, ctx, hidden, out int, w ResidualNetWeights) (*ResidualNet, error) {
	inLayer, err := newDenseLayer(in+ctx, hidden, w.In)
	if err != nil {
		return nil, fmt.Errorf("residual net input: %w", err)
	}
	outLayer, err := newDenseLayer(hidden, out, w.Out)
	if err != nil {
		return nil, fmt.Errorf("residual net output: %w", err)
	}
	net := &ResidualNet{in: in, ctx: ctx, input: inLayer, output: outLayer}
	for i, bw := range w.Blocks {
		l1, err := newDenseLayer(hidden, hidden, bw[0])
		if err != nil {
			return nil, fmt.Errorf("residual block %d: %w", i, err)
		}
		l2, err := newDenseLayer(hidden, hidden, bw[1])
		if err != nil {
			return nil, fmt.Errorf("residual block %d: %w", i, err)
		}
		net.blocks = append(net.blocks, [2]*denseLayer{l1, l2})
	}
	return net, nil
}

// forward evaluates the net on a batch. x may have zero columns (the
// one-dimensional coupling case, where the conditioner sees context only);
// ctx may be nil when the net is unconditional.
func (r *ResidualNet) forward(x, ctx *mat.Dense) (*mat.Dense, error) {
	joined, err := hconcat(x, ctx, r.in, r.ctx)
	if err != nil {
		return nil, err
	}
	h := relu(r.input.apply(joined))
	for _, blk := range r.blocks {
		t := blk[1].apply(relu(blk[0].apply(h)))
		var sum mat.Dense
		sum.Add(h, t)
		h = relu(&sum)
	}
	return r.output.apply(h), nil
}

// hconcat joins feature and context blocks row-wise, validating widths.
func hconcat(x, ctx *mat.Dense, wantX, wantCtx int) (*mat.Dense, error) {
	var n, xc, cc int
	if x != nil {
		n, xc = x.Dims()
	}
	if ctx != nil {
		cn, c := ctx.Dims()
		if x != nil && cn != n {
			return nil, fmt.Errorf("context rows %d do not match input rows %d", cn, n)
		}
		n, cc = cn, c
	}
	if xc != wantX || cc != wantCtx {
		return nil, fmt.Errorf("conditioner input dims (%d,%d), want (%d,%d)", xc, cc, wantX, wantCtx)
	}
	out := mat.NewDense(n, xc+cc, nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		if x != nil {
			copy(row[:xc], x.RawRowView(i))
		}
		if ctx != nil {
			copy(row[xc:], ctx.RawRowView(i))
		}
	}
	return out, nil
}
