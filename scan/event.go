package scan

import (
	"encoding/json"
	"fmt"
	"math"
	"math/cmplx"
	"os"
)

// EventSettings are the frequency-domain settings of an observed segment.
type EventSettings struct {
	FMin      float64 `json:"f_min"`
	FMax      float64 `json:"f_max"`
	T         float64 `json:"duration"`   // segment duration in seconds; delta_f = 1/T
	TimeEvent float64 `json:"time_event"` // recorded GPS event time
}

// EventDataset is a frequency-domain observation: per-detector strain and
// noise amplitude spectral density, plus settings. Datasets are treated as
// immutable; derived datasets (time-translated, truncated) are fresh
// copies and never alias the original's arrays.
type EventDataset struct {
	Settings  EventSettings
	Detectors []string
	Strain    map[string][]complex128
	ASD       map[string][]float64
}

// DeltaF returns the frequency resolution 1/T.
func (ev *EventDataset) DeltaF() float64 { return 1 / ev.Settings.T }

// NumBins returns the per-detector array length.
func (ev *EventDataset) NumBins() int {
	if len(ev.Detectors) == 0 {
		return 0
	}
	return len(ev.Strain[ev.Detectors[0]])
}

// Frequency returns the frequency of bin i: f_min + i/T.
func (ev *EventDataset) Frequency(i int) float64 {
	return ev.Settings.FMin + float64(i)*ev.DeltaF()
}

// eventFile is the on-disk JSON layout; complex strain is stored as
// parallel re/im arrays.
type eventFile struct {
	Settings EventSettings           `json:"settings"`
	Strain   map[string]complexArray `json:"strain"`
	ASDs     map[string][]float64    `json:"asds"`
	Order    []string                `json:"detectors"`
}

type complexArray struct {
	Re []float64 `json:"re"`
	Im []float64 `json:"im"`
}

// LoadEventDataset reads an event data file and validates its shape.
func LoadEventDataset(path string) (*EventDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event data: %w", err)
	}
	var file eventFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing event data %s: %w", path, err)
	}
	if file.Settings.T <= 0 {
		return nil, fmt.Errorf("event data %s: non-positive duration %v", path, file.Settings.T)
	}
	if len(file.Order) == 0 {
		return nil, fmt.Errorf("event data %s: no detectors", path)
	}

	ev := &EventDataset{
		Settings:  file.Settings,
		Detectors: file.Order,
		Strain:    make(map[string][]complex128, len(file.Order)),
		ASD:       make(map[string][]float64, len(file.Order)),
	}
	bins := -1
	for _, det := range file.Order {
		s, ok := file.Strain[det]
		if !ok {
			return nil, fmt.Errorf("event data %s: no strain for detector %s", path, det)
		}
		asd, ok := file.ASDs[det]
		if !ok {
			return nil, fmt.Errorf("event data %s: no ASD for detector %s", path, det)
		}
		if len(s.Re) != len(s.Im) || len(s.Re) != len(asd) {
			return nil, fmt.Errorf("event data %s: detector %s array lengths re=%d im=%d asd=%d",
				path, det, len(s.Re), len(s.Im), len(asd))
		}
		if bins == -1 {
			bins = len(s.Re)
		} else if len(s.Re) != bins {
			return nil, fmt.Errorf("event data %s: detector %s has %d bins, others %d", path, det, len(s.Re), bins)
		}
		strain := make([]complex128, len(s.Re))
		for i := range strain {
			strain[i] = complex(s.Re[i], s.Im[i])
		}
		ev.Strain[det] = strain
		ev.ASD[det] = append([]float64(nil), asd...)
	}
	return ev, nil
}

// TimeTranslate returns a new dataset whose waveform is phase-rotated to
// implement a time shift of dt seconds and whose recorded event time is
// reduced by dt. The receiver is left unmodified.
func (ev *EventDataset) TimeTranslate(dt float64) *EventDataset {
	out := &EventDataset{
		Settings:  ev.Settings,
		Detectors: append([]string(nil), ev.Detectors...),
		Strain:    make(map[string][]complex128, len(ev.Detectors)),
		ASD:       make(map[string][]float64, len(ev.Detectors)),
	}
	out.Settings.TimeEvent -= dt
	for _, det := range ev.Detectors {
		strain := make([]complex128, len(ev.Strain[det]))
		for i, v := range ev.Strain[det] {
			phase := -2 * math.Pi * ev.Frequency(i) * dt
			strain[i] = v * cmplx.Exp(complex(0, phase))
		}
		out.Strain[det] = strain
		out.ASD[det] = append([]float64(nil), ev.ASD[det]...)
	}
	return out
}

// Truncate returns a new dataset restricted to frequencies <= fMax.
// fMax <= 0 or beyond the stored band returns an unrestricted copy.
func (ev *EventDataset) Truncate(fMax float64) *EventDataset {
	bins := ev.NumBins()
	keep := bins
	if fMax > 0 {
		keep = 0
		for i := 0; i < bins; i++ {
			if ev.Frequency(i) > fMax {
				break
			}
			keep++
		}
	}
	out := &EventDataset{
		Settings:  ev.Settings,
		Detectors: append([]string(nil), ev.Detectors...),
		Strain:    make(map[string][]complex128, len(ev.Detectors)),
		ASD:       make(map[string][]float64, len(ev.Detectors)),
	}
	if keep < bins {
		out.Settings.FMax = fMax
	}
	for _, det := range ev.Detectors {
		out.Strain[det] = append([]complex128(nil), ev.Strain[det][:keep]...)
		out.ASD[det] = append([]float64(nil), ev.ASD[det][:keep]...)
	}
	return out
}
