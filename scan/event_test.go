package scan

import (
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *EventDataset {
	// Two detectors, 4 bins from 20 Hz at delta_f = 0.25 Hz.
	mk := func(scale float64) []complex128 {
		return []complex128{
			complex(1*scale, 0.5),
			complex(-0.3, 2*scale),
			complex(0.7*scale, -1.1),
			complex(0.2, 0.9*scale),
		}
	}
	return &EventDataset{
		Settings:  EventSettings{FMin: 20, FMax: 20.75, T: 4, TimeEvent: 1187008882.4},
		Detectors: []string{"H1", "L1"},
		Strain:    map[string][]complex128{"H1": mk(1), "L1": mk(-1)},
		ASD: map[string][]float64{
			"H1": {1e-23, 2e-23, 1.5e-23, 1e-23},
			"L1": {2e-23, 1e-23, 1e-23, 3e-23},
		},
	}
}

func TestEventDataset_FrequencyAxis(t *testing.T) {
	ev := testEvent()
	assert.Equal(t, 0.25, ev.DeltaF())
	assert.Equal(t, 4, ev.NumBins())
	assert.Equal(t, 20.0, ev.Frequency(0))
	assert.Equal(t, 20.75, ev.Frequency(3))
}

func TestEventDataset_TimeTranslate(t *testing.T) {
	// GIVEN a dataset and a 10 ms shift
	ev := testEvent()
	origH1 := append([]complex128(nil), ev.Strain["H1"]...)
	const dt = 0.01

	// WHEN the dataset is time-translated
	shifted := ev.TimeTranslate(dt)

	// THEN every bin picks up the phase exp(-2*pi*i*f*dt) and the recorded
	// event time moves back by dt
	for i, v := range origH1 {
		want := v * cmplx.Exp(complex(0, -2*math.Pi*ev.Frequency(i)*dt))
		assert.InDelta(t, real(want), real(shifted.Strain["H1"][i]), 1e-12, "bin %d re", i)
		assert.InDelta(t, imag(want), imag(shifted.Strain["H1"][i]), 1e-12, "bin %d im", i)
	}
	assert.Equal(t, ev.Settings.TimeEvent-dt, shifted.Settings.TimeEvent)

	// AND the original is untouched
	assert.Equal(t, origH1, ev.Strain["H1"])
	assert.Equal(t, testEvent().Settings, ev.Settings)

	// AND the magnitude of every bin is preserved
	for i := range origH1 {
		assert.InDelta(t, cmplx.Abs(origH1[i]), cmplx.Abs(shifted.Strain["H1"][i]), 1e-12)
	}
}

func TestEventDataset_Truncate(t *testing.T) {
	ev := testEvent()

	cut := ev.Truncate(20.5)
	assert.Equal(t, 3, cut.NumBins())
	assert.Equal(t, 20.5, cut.Settings.FMax)
	assert.Equal(t, ev.Strain["L1"][:3], cut.Strain["L1"])
	// The original keeps its full band.
	assert.Equal(t, 4, ev.NumBins())

	full := ev.Truncate(0)
	assert.Equal(t, 4, full.NumBins())
	assert.Equal(t, ev.Settings.FMax, full.Settings.FMax)

	beyond := ev.Truncate(100)
	assert.Equal(t, 4, beyond.NumBins())
}

func TestLoadEventDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	blob := `{
		"settings": {"f_min": 20, "f_max": 20.25, "duration": 4, "time_event": 100.5},
		"detectors": ["H1", "L1"],
		"strain": {
			"H1": {"re": [1, 2], "im": [0.5, -0.5]},
			"L1": {"re": [-1, 0], "im": [0.1, 0.2]}
		},
		"asds": {"H1": [1e-23, 2e-23], "L1": [3e-23, 1e-23]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))

	ev, err := LoadEventDataset(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"H1", "L1"}, ev.Detectors)
	assert.Equal(t, 2, ev.NumBins())
	assert.Equal(t, complex(1, 0.5), ev.Strain["H1"][0])
	assert.Equal(t, complex(0, 0.2), ev.Strain["L1"][1])
	assert.Equal(t, 100.5, ev.Settings.TimeEvent)
}

func TestLoadEventDataset_RejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, blob string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))
		return path
	}

	_, err := LoadEventDataset(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "reading event data")

	_, err = LoadEventDataset(write("dur.json",
		`{"settings": {"duration": 0}, "detectors": ["H1"], "strain": {}, "asds": {}}`))
	assert.ErrorContains(t, err, "duration")

	_, err = LoadEventDataset(write("noasd.json",
		`{"settings": {"duration": 4}, "detectors": ["H1"],
		  "strain": {"H1": {"re": [1], "im": [0]}}, "asds": {}}`))
	assert.ErrorContains(t, err, "no ASD")

	_, err = LoadEventDataset(write("ragged.json",
		`{"settings": {"duration": 4}, "detectors": ["H1"],
		  "strain": {"H1": {"re": [1, 2], "im": [0]}}, "asds": {"H1": [1e-23]}}`))
	assert.ErrorContains(t, err, "array lengths")
}
