package flow

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LinearWeights is the serialized form of one linear transform: a fixed
// feature permutation followed by an LU-factored invertible linear map.
// L carries the strict lower triangle (unit diagonal implied), U the upper
// triangle including the diagonal. Identity initialization is L=0, U=I,
// Bias=0.
type LinearWeights struct {
	Perm []int       `json:"perm"`
	L    [][]float64 `json:"l"`
	U    [][]float64 `json:"u"`
	Bias []float64   `json:"bias"`
}

// RandomLinearWeights returns identity-initialized weights with a random
// fixed permutation drawn from rng.
func RandomLinearWeights(dim int, rng *rand.Rand) LinearWeights {
	w := LinearWeights{
		Perm: rng.Perm(dim),
		L:    zeroMatrix(dim),
		U:    zeroMatrix(dim),
		Bias: make([]float64, dim),
	}
	for i := 0; i < dim; i++ {
		w.U[i][i] = 1
	}
	return w
}

func zeroMatrix(dim int) [][]float64 {
	m := make([][]float64, dim)
	for i := range m {
		m[i] = make([]float64, dim)
	}
	return m
}

// LinearTransform decorrelates which dimensions successive coupling blocks
// hold fixed: a random (but fixed at construction) permutation composed
// with an invertible linear map W = L·U plus bias. The log-determinant is
// Σ log|U_ii|, independent of the input.
type LinearTransform struct {
	dim       int
	perm      []int // forward: out[j] = in[perm[j]]
	invPerm   []int
	weight    *mat.Dense // W = L·U, (dim × dim)
	bias      []float64
	logAbsDet float64
}

// NewLinearTransform validates and assembles a linear transform from its
// serialized weights.
func NewLinearTransform(dim int, w LinearWeights) (*LinearTransform, error) {
	if len(w.Perm) != dim || len(w.L) != dim || len(w.U) != dim || len(w.Bias) != dim {
		return nil, fmt.Errorf("linear transform: weight shapes do not match dim %d", dim)
	}
	invPerm := make([]int, dim)
	seen := make([]bool, dim)
	for j, p := range w.Perm {
		if p < 0 || p >= dim || seen[p] {
			return nil, fmt.Errorf("linear transform: invalid permutation %v", w.Perm)
		}
		seen[p] = true
		invPerm[p] = j
	}

	l := mat.NewDense(dim, dim, nil)
	u := mat.NewDense(dim, dim, nil)
	logAbsDet := 0.0
	for i := 0; i < dim; i++ {
		if len(w.L[i]) != dim || len(w.U[i]) != dim {
			return nil, fmt.Errorf("linear transform: ragged L/U row %d", i)
		}
		l.Set(i, i, 1)
		for j := 0; j < dim; j++ {
			if j < i {
				l.Set(i, j, w.L[i][j])
			}
			if j >= i {
				u.Set(i, j, w.U[i][j])
			}
		}
		diag := u.At(i, i)
		if diag == 0 {
			return nil, fmt.Errorf("linear transform: singular U (zero diagonal at %d)", i)
		}
		logAbsDet += math.Log(math.Abs(diag))
	}

	var weight mat.Dense
	weight.Mul(l, u)
	return &LinearTransform{
		dim:       dim,
		perm:      append([]int(nil), w.Perm...),
		invPerm:   invPerm,
		weight:    &weight,
		bias:      append([]float64(nil), w.Bias...),
		logAbsDet: logAbsDet,
	}, nil
}

// Forward computes y = W·permute(x) + b for each row. ctx is ignored; the
// linear transform is unconditional.
func (t *LinearTransform) Forward(x, _ *mat.Dense) (*mat.Dense, []float64, error) {
	n, d := x.Dims()
	if d != t.dim {
		return nil, nil, fmt.Errorf("linear forward: input dim %d, want %d", d, t.dim)
	}
	permuted := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		dst := permuted.RawRowView(i)
		for j := 0; j < d; j++ {
			dst[j] = row[t.perm[j]]
		}
	}
	var y mat.Dense
	y.Mul(permuted, t.weight.T())
	for i := 0; i < n; i++ {
		row := y.RawRowView(i)
		for j := 0; j < d; j++ {
			row[j] += t.bias[j]
		}
	}
	logDet := make([]float64, n)
	for i := range logDet {
		logDet[i] = t.logAbsDet
	}
	return &y, logDet, nil
}

// Inverse solves W·z = y - b per row and undoes the permutation.
func (t *LinearTransform) Inverse(y, _ *mat.Dense) (*mat.Dense, []float64, error) {
	n, d := y.Dims()
	if d != t.dim {
		return nil, nil, fmt.Errorf("linear inverse: input dim %d, want %d", d, t.dim)
	}
	rhs := mat.NewDense(d, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			rhs.Set(j, i, y.At(i, j)-t.bias[j])
		}
	}
	var sol mat.Dense
	if err := sol.Solve(t.weight, rhs); err != nil {
		return nil, nil, fmt.Errorf("linear inverse: %w", err)
	}
	x := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j := 0; j < d; j++ {
			row[t.perm[j]] = sol.At(j, i)
		}
	}
	logDet := make([]float64, n)
	for i := range logDet {
		logDet[i] = -t.logAbsDet
	}
	return x, logDet, nil
}
