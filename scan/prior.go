package scan

import (
	"fmt"
	"math"

	"github.com/gw-scan/gw-scan/scan/flow"
)

// Prior is the product of independent uniform priors over the named
// physical parameters, assembled from the model metadata (intrinsic union
// extrinsic bounds).
type Prior struct {
	names  []string
	bounds []flow.Bounds
}

// NewPrior builds the prior for the given parameter names. A parameter with
// no bounds in either prior dictionary is a configuration error.
func NewPrior(meta flow.Metadata, names []string) (*Prior, error) {
	p := &Prior{names: append([]string(nil), names...)}
	for _, name := range names {
		b, ok := meta.IntrinsicPrior[name]
		if !ok {
			b, ok = meta.ExtrinsicPrior[name]
		}
		if !ok {
			return nil, fmt.Errorf("prior: no bounds for parameter %q", name)
		}
		if b.Range() <= 0 {
			return nil, fmt.Errorf("prior: empty bounds for parameter %q", name)
		}
		p.bounds = append(p.bounds, b)
	}
	return p, nil
}

// LnProb returns the log prior density of one sample: the sum of uniform
// log-densities, or -Inf outside support.
func (p *Prior) LnProb(pv ParameterVector) float64 {
	total := 0.0
	for i, name := range p.names {
		v, ok := pv.Get(name)
		if !ok {
			return math.Inf(-1)
		}
		if !p.bounds[i].Contains(v) {
			return math.Inf(-1)
		}
		total -= math.Log(p.bounds[i].Range())
	}
	return total
}

// FilterSupported computes the log prior of every row and returns a new
// table holding only rows inside prior support, with LogPrior filled in.
// Rows outside support never reach the likelihood evaluator.
func (p *Prior) FilterSupported(t *Table) *Table {
	var keep []int
	logPriors := make([]float64, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		lp := p.LnProb(t.Row(i))
		if !math.IsInf(lp, -1) {
			keep = append(keep, i)
			logPriors = append(logPriors, lp)
		}
	}
	out := t.Select(keep)
	copy(out.LogPrior, logPriors)
	return out
}
