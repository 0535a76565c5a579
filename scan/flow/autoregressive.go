package flow

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// MaskedNetWeights is the serialized form of a MADE-style conditioner:
// masked hidden layers (first maps paramDim to hidden, the rest hidden to
// hidden), an unmasked context layer added to the first hidden
// pre-activation, and a masked output layer producing the spline parameter
// block for every dimension. Masks are reconstructed from the layer degrees
// at build time and are not stored.
type MaskedNetWeights struct {
	Hidden []DenseWeights `json:"hidden"`
	Ctx    *DenseWeights  `json:"ctx,omitempty"`
	Out    DenseWeights   `json:"out"`
}

// RandomMaskedNetWeights builds random near-identity weights for a masked
// net with numLayers hidden layers.
func RandomMaskedNetWeights(dim, ctx, hidden, numLayers, numBins int, rng *rand.Rand) MaskedNetWeights {
	w := MaskedNetWeights{
		Hidden: []DenseWeights{RandomDenseWeights(dim, hidden, rng)},
		Out:    RandomDenseWeights(hidden, dim*splineParamsPerDim(numBins), rng),
	}
	for i := 1; i < numLayers; i++ {
		w.Hidden = append(w.Hidden, RandomDenseWeights(hidden, hidden, rng))
	}
	if ctx > 0 {
		cw := RandomDenseWeights(ctx, hidden, rng)
		w.Ctx = &cw
	}
	return w
}

// AutoregressiveTransform is a conditional rational-quadratic spline
// transform where each dimension's spline parameters depend on all
// preceding dimensions (via degree-masked layers) plus context. The density
// direction is a single vectorized pass; the sampling direction is
// inherently sequential, one dimension at a time.
type AutoregressiveTransform struct {
	dim       int
	hidden    []*denseLayer
	ctxLayer  *denseLayer
	out       *denseLayer
	numBins   int
	tailBound float64
}

// NewAutoregressiveTransform builds the masked conditioner and validates
// every layer shape against the hyperparameters.
func NewAutoregressiveTransform(dim, ctxDim, hiddenDim, numLayers, numBins int, tailBound float64, w MaskedNetWeights) (*AutoregressiveTransform, error) {
	if numBins < 2 {
		return nil, fmt.Errorf("autoregressive transform: numBins must be >= 2, got %d", numBins)
	}
	if len(w.Hidden) != numLayers {
		return nil, fmt.Errorf("autoregressive transform: %d hidden layers in weights, want %d", len(w.Hidden), numLayers)
	}
	if (ctxDim > 0) != (w.Ctx != nil) {
		return nil, fmt.Errorf("autoregressive transform: context layer weights do not match ctxDim %d", ctxDim)
	}

	inDegrees := make([]int, dim)
	for i := range inDegrees {
		inDegrees[i] = i + 1
	}
	hidDegrees := hiddenDegrees(dim, hiddenDim)

	t := &AutoregressiveTransform{dim: dim, numBins: numBins, tailBound: tailBound}
	prev := inDegrees
	for i, hw := range w.Hidden {
		in := hiddenDim
		if i == 0 {
			in = dim
		}
		layer, err := newDenseLayer(in, hiddenDim, hw)
		if err != nil {
			return nil, fmt.Errorf("autoregressive hidden layer %d: %w", i, err)
		}
		layer.mask = degreeMask(prev, hidDegrees, false)
		t.hidden = append(t.hidden, layer)
		prev = hidDegrees
	}

	if ctxDim > 0 {
		layer, err := newDenseLayer(ctxDim, hiddenDim, *w.Ctx)
		if err != nil {
			return nil, fmt.Errorf("autoregressive context layer: %w", err)
		}
		t.ctxLayer = layer
	}

	perDim := splineParamsPerDim(numBins)
	outDegrees := make([]int, dim*perDim)
	for j := 0; j < dim; j++ {
		for k := 0; k < perDim; k++ {
			outDegrees[j*perDim+k] = j + 1
		}
	}
	outLayer, err := newDenseLayer(hiddenDim, dim*perDim, w.Out)
	if err != nil {
		return nil, fmt.Errorf("autoregressive output layer: %w", err)
	}
	outLayer.mask = degreeMask(prev, outDegrees, true)
	t.out = outLayer
	return t, nil
}

// hiddenDegrees assigns degrees cycling over 1..dim-1 (or 1 for dim 1).
func hiddenDegrees(dim, hiddenDim int) []int {
	maxDeg := dim - 1
	if maxDeg < 1 {
		maxDeg = 1
	}
	degrees := make([]int, hiddenDim)
	for i := range degrees {
		degrees[i] = i%maxDeg + 1
	}
	return degrees
}

// degreeMask builds the MADE connectivity mask: unit (i,j) connects when
// outDeg[j] >= inDeg[i], strictly greater for the output layer so that
// dimension j never sees itself.
func degreeMask(inDeg, outDeg []int, strict bool) *mat.Dense {
	mask := mat.NewDense(len(inDeg), len(outDeg), nil)
	for i, di := range inDeg {
		for j, dj := range outDeg {
			if (strict && dj > di) || (!strict && dj >= di) {
				mask.Set(i, j, 1)
			}
		}
	}
	return mask
}

// conditionerPass evaluates the masked net on the current parameter-space
// values, returning the raw spline parameter block per row.
func (t *AutoregressiveTransform) conditionerPass(y, ctx *mat.Dense) (*mat.Dense, error) {
	if t.ctxLayer != nil {
		if ctx == nil {
			return nil, fmt.Errorf("autoregressive conditioner: missing context")
		}
		yn, _ := y.Dims()
		cn, _ := ctx.Dims()
		if cn != yn {
			return nil, fmt.Errorf("autoregressive conditioner: context rows %d do not match input rows %d", cn, yn)
		}
	}
	h := t.hidden[0].apply(y)
	if t.ctxLayer != nil {
		var sum mat.Dense
		sum.Add(h, t.ctxLayer.apply(ctx))
		h = &sum
	}
	h = relu(h)
	for _, layer := range t.hidden[1:] {
		h = relu(layer.apply(h))
	}
	return t.out.apply(h), nil
}

// Forward maps base-space points into parameter space. The spline for
// dimension j depends on the already-computed output dimensions < j, so the
// batch is built up one dimension at a time with one conditioner pass each.
func (t *AutoregressiveTransform) Forward(x, ctx *mat.Dense) (*mat.Dense, []float64, error) {
	n, d := x.Dims()
	if d != t.dim {
		return nil, nil, fmt.Errorf("autoregressive forward: input dim %d, want %d", d, t.dim)
	}
	y := mat.NewDense(n, d, nil)
	logDet := make([]float64, n)
	perDim := splineParamsPerDim(t.numBins)
	for j := 0; j < d; j++ {
		params, err := t.conditionerPass(y, ctx)
		if err != nil {
			return nil, nil, err
		}
		for i := 0; i < n; i++ {
			raw := params.RawRowView(i)
			sp := newRQSpline(raw[j*perDim:(j+1)*perDim], t.numBins, t.tailBound)
			v, ld := sp.forward(x.At(i, j))
			y.Set(i, j, v)
			logDet[i] += ld
		}
	}
	return y, logDet, nil
}

// Inverse maps parameter-space points back to base space in a single
// vectorized pass: all spline parameters follow from the known y.
func (t *AutoregressiveTransform) Inverse(y, ctx *mat.Dense) (*mat.Dense, []float64, error) {
	n, d := y.Dims()
	if d != t.dim {
		return nil, nil, fmt.Errorf("autoregressive inverse: input dim %d, want %d", d, t.dim)
	}
	params, err := t.conditionerPass(y, ctx)
	if err != nil {
		return nil, nil, err
	}
	x := mat.NewDense(n, d, nil)
	logDet := make([]float64, n)
	perDim := splineParamsPerDim(t.numBins)
	for i := 0; i < n; i++ {
		raw := params.RawRowView(i)
		for j := 0; j < d; j++ {
			sp := newRQSpline(raw[j*perDim:(j+1)*perDim], t.numBins, t.tailBound)
			v, ld := sp.inverse(y.At(i, j))
			x.Set(i, j, v)
			logDet[i] += ld
		}
	}
	return x, logDet, nil
}
