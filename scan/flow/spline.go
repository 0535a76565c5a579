package flow

import (
	"math"
	"sort"
)

// Monotonic rational-quadratic spline on [-tailBound, tailBound] with
// identity ("linear") tails outside, so the transform stays well-defined
// for unbounded inputs. A spline over K bins is parametrized by K
// unnormalized widths, K unnormalized heights and K-1 unnormalized interior
// derivatives; boundary derivatives are pinned to 1 to match the identity
// tails. Per transformed dimension this is 3K-1 raw parameters.

const (
	minBinWidth   = 1e-3
	minBinHeight  = 1e-3
	minDerivative = 1e-3
)

// splineParamsPerDim is the number of raw network outputs consumed by one
// transformed dimension.
func splineParamsPerDim(numBins int) int { return 3*numBins - 1 }

// rqSpline holds the normalized knot description of one spline.
type rqSpline struct {
	cumWidths  []float64 // K+1 knot x-positions, cumWidths[0]=-B, cumWidths[K]=B
	cumHeights []float64 // K+1 knot y-positions
	derivs     []float64 // K+1 knot derivatives, derivs[0]=derivs[K]=1
	tailBound  float64
}

// newRQSpline normalizes the raw parameter block for one dimension.
// raw is laid out as [widths..., heights..., interior derivatives...].
func newRQSpline(raw []float64, numBins int, tailBound float64) rqSpline {
	widths := normalizeBins(raw[:numBins], minBinWidth, tailBound)
	heights := normalizeBins(raw[numBins:2*numBins], minBinHeight, tailBound)

	derivs := make([]float64, numBins+1)
	derivs[0] = 1
	derivs[numBins] = 1
	for i, d := range raw[2*numBins:] {
		derivs[i+1] = minDerivative + softplus(d)
	}
	return rqSpline{cumWidths: widths, cumHeights: heights, derivs: derivs, tailBound: tailBound}
}

// normalizeBins maps unnormalized bin sizes to cumulative knot positions on
// [-B, B] via a softmax with a minimum bin-size floor. Endpoints are set
// exactly to ±B.
func normalizeBins(raw []float64, minSize, tailBound float64) []float64 {
	k := len(raw)
	sizes := softmax(raw)
	span := 2 * tailBound
	cum := make([]float64, k+1)
	cum[0] = -tailBound
	for i := 0; i < k; i++ {
		w := (minSize + (1-minSize*float64(k))*sizes[i]) * span
		cum[i+1] = cum[i] + w
	}
	cum[k] = tailBound
	return cum
}

// forward evaluates the spline at x, returning the transformed value and
// the log-derivative. Inputs outside the tail bound pass through unchanged.
func (s rqSpline) forward(x float64) (float64, float64) {
	if x < -s.tailBound || x > s.tailBound {
		return x, 0
	}
	k := s.findBin(s.cumWidths, x)
	xk, xk1 := s.cumWidths[k], s.cumWidths[k+1]
	yk, yk1 := s.cumHeights[k], s.cumHeights[k+1]
	dk, dk1 := s.derivs[k], s.derivs[k+1]
	w := xk1 - xk
	h := yk1 - yk
	slope := h / w

	theta := (x - xk) / w
	omt := 1 - theta
	den := slope + (dk1+dk-2*slope)*theta*omt
	y := yk + h*(slope*theta*theta+dk*theta*omt)/den
	deriv := slope * slope * (dk1*theta*theta + 2*slope*theta*omt + dk*omt*omt) / (den * den)
	return y, math.Log(deriv)
}

// inverse evaluates the spline inverse at y, returning the pre-image and
// the log-derivative of the inverse map.
func (s rqSpline) inverse(y float64) (float64, float64) {
	if y < -s.tailBound || y > s.tailBound {
		return y, 0
	}
	k := s.findBin(s.cumHeights, y)
	xk, xk1 := s.cumWidths[k], s.cumWidths[k+1]
	yk, yk1 := s.cumHeights[k], s.cumHeights[k+1]
	dk, dk1 := s.derivs[k], s.derivs[k+1]
	w := xk1 - xk
	h := yk1 - yk
	slope := h / w

	// Solve the rational-quadratic for theta; the discriminant is
	// non-negative for any monotonic parametrization.
	dy := y - yk
	cross := dk1 + dk - 2*slope
	a := h*(slope-dk) + dy*cross
	b := h*dk - dy*cross
	c := -slope * dy
	disc := b*b - 4*a*c
	theta := 2 * c / (-b - math.Sqrt(disc))
	omt := 1 - theta

	x := xk + theta*w
	den := slope + cross*theta*omt
	deriv := slope * slope * (dk1*theta*theta + 2*slope*theta*omt + dk*omt*omt) / (den * den)
	return x, -math.Log(deriv)
}

// findBin locates the bin whose [knots[k], knots[k+1]] interval contains v.
func (s rqSpline) findBin(knots []float64, v float64) int {
	k := sort.SearchFloat64s(knots, v) - 1
	if k < 0 {
		k = 0
	}
	if k > len(knots)-2 {
		k = len(knots) - 2
	}
	return k
}

func softmax(raw []float64) []float64 {
	maxv := raw[0]
	for _, v := range raw[1:] {
		if v > maxv {
			maxv = v
		}
	}
	out := make([]float64, len(raw))
	var sum float64
	for i, v := range raw {
		out[i] = math.Exp(v - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func softplus(x float64) float64 {
	// Guard against overflow for large x.
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}
