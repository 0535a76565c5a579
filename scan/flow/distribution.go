package flow

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// StandardNormal is the fixed base distribution of the flow: an isotropic
// unit Gaussian over the parameter dimension.
type StandardNormal struct {
	dim int
}

// NewStandardNormal returns a standard normal over dim dimensions.
func NewStandardNormal(dim int) *StandardNormal {
	return &StandardNormal{dim: dim}
}

// LogProb returns the log-density of each row of x.
func (s *StandardNormal) LogProb(x *mat.Dense) []float64 {
	n, d := x.Dims()
	constant := -0.5 * float64(d) * math.Log(2*math.Pi)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		var sq float64
		for _, v := range row {
			sq += v * v
		}
		out[i] = constant - 0.5*sq
	}
	return out
}

// Sample draws n independent points using rng.
func (s *StandardNormal) Sample(n int, rng *rand.Rand) *mat.Dense {
	out := mat.NewDense(n, s.dim, nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}
	return out
}
