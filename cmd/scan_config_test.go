package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gw-scan/gw-scan/scan"
)

func TestApplyScanPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	blob := `
scans:
  quick:
    num_samples: 50
    num_workers: 8
  deep:
    num_samples: 500
    overlap_factor: 4
    f_max_flow: 512
    f_max_likelihood: 1024
`
	require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))

	cfg := scan.Config{
		Scan:       scan.ScanConfig{NumSamples: 10, OverlapFactor: 2, FMaxFlow: 256},
		Likelihood: scan.LikelihoodConfig{NumWorkers: 1, FMax: 256},
	}
	ApplyScanPreset(path, "quick", &cfg)

	// Preset values overlay; unset preset fields keep the flag values.
	assert.Equal(t, 50, cfg.Scan.NumSamples)
	assert.Equal(t, 8, cfg.Likelihood.NumWorkers)
	assert.Equal(t, 2.0, cfg.Scan.OverlapFactor)
	assert.Equal(t, 256.0, cfg.Scan.FMaxFlow)
	assert.Equal(t, 256.0, cfg.Likelihood.FMax)

	ApplyScanPreset(path, "deep", &cfg)
	assert.Equal(t, 500, cfg.Scan.NumSamples)
	assert.Equal(t, 4.0, cfg.Scan.OverlapFactor)
	assert.Equal(t, 512.0, cfg.Scan.FMaxFlow)
	assert.Equal(t, 1024.0, cfg.Likelihood.FMax)
	assert.Equal(t, 8, cfg.Likelihood.NumWorkers, "deep preset leaves workers untouched")
}
