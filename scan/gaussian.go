package scan

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Physical constants for the leading-order chirp template.
const (
	solarMassSeconds = 4.925491025543576e-6 // G·M_sun/c^3
	megaparsecSecond = 1.02927125054339e14  // Mpc/c
)

// GaussianKernel is the built-in exact likelihood: a stationary-Gaussian
// matched filter of the data against a leading-order (Newtonian) chirp
// template. The evaluator treats it as a black box; any other ScoreFunc
// with the same signature can replace it.
type GaussianKernel struct {
	ev *EventDataset
}

// NewGaussianKernel prepares the kernel over the event data, optionally
// truncated to fMax for the likelihood band.
func NewGaussianKernel(ev *EventDataset, fMax float64) *GaussianKernel {
	if fMax > 0 {
		ev = ev.Truncate(fMax)
	}
	return &GaussianKernel{ev: ev}
}

// Score computes log L = <d|h> - <h|h>/2 and the matched-filter SNR
// <d|h>/sqrt(<h|h>), summed over detectors. Required parameters:
// chirp_mass, geocent_time; luminosity_distance and phase default to
// 100 Mpc and 0 when the model does not infer them.
func (g *GaussianKernel) Score(pv ParameterVector) (float64, float64, error) {
	chirpMass, ok := pv.Get("chirp_mass")
	if !ok {
		return 0, 0, fmt.Errorf("gaussian kernel: sample has no chirp_mass")
	}
	if chirpMass <= 0 {
		return 0, 0, fmt.Errorf("gaussian kernel: non-positive chirp mass %v", chirpMass)
	}
	tc, ok := pv.Get("geocent_time")
	if !ok {
		return 0, 0, fmt.Errorf("gaussian kernel: sample has no geocent_time")
	}
	distance, ok := pv.Get("luminosity_distance")
	if !ok || distance <= 0 {
		distance = 100
	}
	phase, _ := pv.Get("phase")

	mcSec := chirpMass * solarMassSeconds
	amp := math.Sqrt(5.0/24.0) * math.Pow(math.Pi, -2.0/3.0) *
		math.Pow(mcSec, 5.0/6.0) / (distance * megaparsecSecond)

	var dh, hh float64
	deltaF := g.ev.DeltaF()
	for _, det := range g.ev.Detectors {
		data := g.ev.Strain[det]
		asd := g.ev.ASD[det]
		for i, d := range data {
			f := g.ev.Frequency(i)
			if f <= 0 || asd[i] <= 0 {
				continue
			}
			// Stationary-phase Newtonian chirp.
			psi := 2*math.Pi*f*tc - 2*phase + (3.0/128.0)*math.Pow(math.Pi*mcSec*f, -5.0/3.0)
			h := complex(amp*math.Pow(f, -7.0/6.0), 0) * cmplx.Exp(complex(0, -psi))
			w := 4 * deltaF / (asd[i] * asd[i])
			dh += w * real(d*cmplx.Conj(h))
			hh += w * real(h*cmplx.Conj(h))
		}
	}
	if hh <= 0 {
		return 0, 0, fmt.Errorf("gaussian kernel: degenerate template power")
	}
	return dh - hh/2, dh / math.Sqrt(hh), nil
}
