package scan

import (
	"fmt"
	"math"

	"github.com/gw-scan/gw-scan/scan/flow"
)

// ContextBuilder maps the raw event data and one chirp-mass proxy value to
// a ready-to-sample flow input: a flattened strain row and the auxiliary
// conditioning-parameter row. The builder is an external collaborator; the
// scan controller only requires that every grid point yields rows of the
// same width.
type ContextBuilder func(ev *EventDataset, proxy float64) (strain, params []float64, err error)

// DefaultContextBuilder packages the event data the way the model was
// trained: per detector, the strain whitened by the ASD and scaled to unit
// noise variance as interleaved (re, im, 1/asd) channels, and the
// chirp-mass proxy standardized with the model's standardization record.
func DefaultContextBuilder(std map[string]flow.Standardizer) ContextBuilder {
	return func(ev *EventDataset, proxy float64) ([]float64, []float64, error) {
		s, ok := std["chirp_mass_proxy"]
		if !ok {
			return nil, nil, fmt.Errorf("context builder: no standardization for chirp_mass_proxy")
		}
		if s.Std <= 0 {
			return nil, nil, fmt.Errorf("context builder: non-positive std for chirp_mass_proxy")
		}

		bins := ev.NumBins()
		scale := 1 / math.Sqrt(4*ev.DeltaF())
		strain := make([]float64, 0, 3*bins*len(ev.Detectors))
		for _, det := range ev.Detectors {
			h := ev.Strain[det]
			asd := ev.ASD[det]
			for i := 0; i < bins; i++ {
				if asd[i] <= 0 {
					return nil, nil, fmt.Errorf("context builder: non-positive ASD at bin %d of %s", i, det)
				}
				w := 1 / (asd[i] * scale)
				strain = append(strain, real(h[i])*w, imag(h[i])*w, 1/asd[i])
			}
		}
		params := []float64{(proxy - s.Mean) / s.Std}
		return strain, params, nil
	}
}
