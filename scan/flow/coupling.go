package flow

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CouplingTransform is a conditional rational-quadratic spline coupling
// block. An alternating binary mask splits the parameter dimensions into an
// identity half and a transformed half; the identity half, concatenated
// with the context vector, feeds a residual net that outputs the spline
// parameters for each transformed dimension. The mask parity flips with the
// block index so successive blocks swap which half is transformed.
type CouplingTransform struct {
	dim       int
	identity  []int // dimensions passed through unchanged
	transform []int // dimensions pushed through the spline
	net       *ResidualNet
	numBins   int
	tailBound float64
}

// couplingSplit returns the identity/transformed index sets for block i.
// A single-dimension parameter space is always transformed (the conditioner
// then sees context only).
func couplingSplit(dim, blockIndex int) (identity, transform []int) {
	if dim == 1 {
		return nil, []int{0}
	}
	for j := 0; j < dim; j++ {
		if j%2 == blockIndex%2 {
			transform = append(transform, j)
		} else {
			identity = append(identity, j)
		}
	}
	return identity, transform
}

// NewCouplingTransform builds coupling block blockIndex of a flow with the
// given dimensions. The conditioner net must map
// len(identity)+ctxDim features to len(transform)·(3·numBins-1) outputs.
func NewCouplingTransform(dim, ctxDim, hiddenDim, numBlocks, numBins, blockIndex int, tailBound float64, w ResidualNetWeights) (*CouplingTransform, error) {
	if numBins < 2 {
		return nil, fmt.Errorf("coupling transform: numBins must be >= 2, got %d", numBins)
	}
	identity, transform := couplingSplit(dim, blockIndex)
	net, err := NewResidualNet(len(identity), ctxDim, hiddenDim, len(transform)*splineParamsPerDim(numBins), w)
	if err != nil {
		return nil, fmt.Errorf("coupling transform: %w", err)
	}
	if len(w.Blocks) != numBlocks {
		return nil, fmt.Errorf("coupling transform: %d residual blocks in weights, want %d", len(w.Blocks), numBlocks)
	}
	return &CouplingTransform{
		dim:       dim,
		identity:  identity,
		transform: transform,
		net:       net,
		numBins:   numBins,
		tailBound: tailBound,
	}, nil
}

func (t *CouplingTransform) Forward(x, ctx *mat.Dense) (*mat.Dense, []float64, error) {
	return t.apply(x, ctx, false)
}

func (t *CouplingTransform) Inverse(y, ctx *mat.Dense) (*mat.Dense, []float64, error) {
	return t.apply(y, ctx, true)
}

// apply runs the coupling in either direction. Both directions take a
// single net evaluation because the conditioner only sees the identity
// half, which the transform leaves untouched.
func (t *CouplingTransform) apply(in, ctx *mat.Dense, inverse bool) (*mat.Dense, []float64, error) {
	n, d := in.Dims()
	if d != t.dim {
		return nil, nil, fmt.Errorf("coupling: input dim %d, want %d", d, t.dim)
	}
	params, err := t.net.forward(selectColumns(in, t.identity), ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("coupling conditioner: %w", err)
	}

	out := mat.NewDense(n, d, nil)
	out.Copy(in)
	logDet := make([]float64, n)
	perDim := splineParamsPerDim(t.numBins)
	for i := 0; i < n; i++ {
		raw := params.RawRowView(i)
		row := out.RawRowView(i)
		for k, j := range t.transform {
			sp := newRQSpline(raw[k*perDim:(k+1)*perDim], t.numBins, t.tailBound)
			var v, ld float64
			if inverse {
				v, ld = sp.inverse(row[j])
			} else {
				v, ld = sp.forward(row[j])
			}
			row[j] = v
			logDet[i] += ld
		}
	}
	return out, logDet, nil
}

// selectColumns extracts the given columns into a new matrix, or nil for an
// empty selection.
func selectColumns(m *mat.Dense, cols []int) *mat.Dense {
	if len(cols) == 0 {
		return nil
	}
	n, _ := m.Dims()
	out := mat.NewDense(n, len(cols), nil)
	for i := 0; i < n; i++ {
		src := m.RawRowView(i)
		dst := out.RawRowView(i)
		for k, j := range cols {
			dst[k] = src[j]
		}
	}
	return out
}
