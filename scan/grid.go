package scan

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/gw-scan/gw-scan/scan/flow"
)

// gridEps absorbs floating error when counting evenly spaced points.
const gridEps = 1e-9

// ChirpMassGrid builds the candidate chirp-mass proxy grid from the
// trained model's global prior and conditioning-kernel bounds. Candidates
// cover [priorMin - kernelMin, priorMax - kernelMax] inclusive with spacing
// at most kernelRange/overlap, so consecutive candidates' kernel windows
// overlap by construction and no value in the prior range is unreachable.
func ChirpMassGrid(prior, kernel flow.Bounds, overlap float64) ([]float64, error) {
	if kernel.Range() <= 0 {
		return nil, fmt.Errorf("chirp-mass grid: kernel range must be positive, got %v", kernel.Range())
	}
	if overlap < 1 {
		return nil, fmt.Errorf("chirp-mass grid: overlap factor must be >= 1, got %v", overlap)
	}
	lo := prior.Min - kernel.Min
	hi := prior.Max - kernel.Max
	if hi <= lo {
		return nil, fmt.Errorf("chirp-mass grid: prior [%v, %v] narrower than kernel [%v, %v]",
			prior.Min, prior.Max, kernel.Min, kernel.Max)
	}
	spacing := kernel.Range() / overlap
	return evenGrid(lo, hi, spacing), nil
}

// TimeGrid builds the trial arrival-time offsets for a requested window
// [tMin, tMax], spaced by at most the extrinsic time-coincidence window
// width divided by the overlap factor. Both endpoints are included.
func TimeGrid(tMin, tMax, window, overlap float64) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("time grid: prior time window must be positive, got %v", window)
	}
	if overlap < 1 {
		return nil, fmt.Errorf("time grid: overlap factor must be >= 1, got %v", overlap)
	}
	if tMax < tMin {
		return nil, fmt.Errorf("time grid: t_max %v < t_min %v", tMax, tMin)
	}
	spacing := window / overlap
	return evenGrid(tMin, tMax, spacing), nil
}

// evenGrid returns ceil((hi-lo)/spacing)+1 points evenly spaced over
// [lo, hi] inclusive. When (hi-lo) is a whole number of spacings the grid
// steps at exactly the requested spacing; otherwise the extra point shrinks
// the effective spacing below the requested one, never widens it, so grids
// built from a coverage spacing keep their coverage at the upper end.
func evenGrid(lo, hi, spacing float64) []float64 {
	n := int(math.Ceil((hi-lo)/spacing-gridEps)) + 1
	if n < 2 {
		return []float64{lo}
	}
	grid := make([]float64, n)
	floats.Span(grid, lo, hi)
	return grid
}
