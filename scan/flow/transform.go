// Package flow implements the conditional normalizing flow used for
// amortized posterior sampling: a stack of invertible transforms mapping a
// standard-normal base distribution to the parameter posterior, conditioned
// on embedded detector data.
package flow

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transform is a batched conditional bijection over the parameter space.
// Forward maps base-space points into parameter space (the sampling
// direction); Inverse maps parameter-space points back to base space (the
// density direction). Both operate on n rows at a time: x and y are
// (n × paramDim), ctx is (n × contextDim) or nil for unconditional
// transforms, and the returned slice holds one log|det J| per row.
//
// Forward and Inverse must be mutually consistent to floating tolerance.
type Transform interface {
	Forward(x, ctx *mat.Dense) (*mat.Dense, []float64, error)
	Inverse(y, ctx *mat.Dense) (*mat.Dense, []float64, error)
}

// CompositeTransform applies a sequence of transforms: Forward runs them in
// order, Inverse in reverse order. Log-determinants accumulate per row.
type CompositeTransform struct {
	transforms []Transform
}

// NewCompositeTransform builds a composite from the given sequence.
func NewCompositeTransform(transforms ...Transform) *CompositeTransform {
	return &CompositeTransform{transforms: transforms}
}

func (c *CompositeTransform) Forward(x, ctx *mat.Dense) (*mat.Dense, []float64, error) {
	n, _ := x.Dims()
	total := make([]float64, n)
	cur := x
	for i, t := range c.transforms {
		out, logDet, err := t.Forward(cur, ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("composite forward step %d: %w", i, err)
		}
		accumulate(total, logDet)
		cur = out
	}
	return cur, total, nil
}

func (c *CompositeTransform) Inverse(y, ctx *mat.Dense) (*mat.Dense, []float64, error) {
	n, _ := y.Dims()
	total := make([]float64, n)
	cur := y
	for i := len(c.transforms) - 1; i >= 0; i-- {
		out, logDet, err := c.transforms[i].Inverse(cur, ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("composite inverse step %d: %w", i, err)
		}
		accumulate(total, logDet)
		cur = out
	}
	return cur, total, nil
}

func accumulate(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}
