package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/gw-scan/gw-scan/scan"
)

// Define struct for YAML
type PresetConfig struct {
	Scans map[string]ScanPreset `yaml:"scans"`
}

type ScanPreset struct {
	NumSamples     int     `yaml:"num_samples"`
	OverlapFactor  float64 `yaml:"overlap_factor"`
	FMaxFlow       float64 `yaml:"f_max_flow"`
	FMaxLikelihood float64 `yaml:"f_max_likelihood"`
	NumWorkers     int     `yaml:"num_workers"`
}

// ApplyScanPreset overlays a named preset from a YAML file onto the scan
// configuration. Zero-valued preset fields leave the flag values in place.
func ApplyScanPreset(path, name string, cfg *scan.Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Fatalf("unable to read preset file: %v", err)
	}

	var presets PresetConfig
	if err := yaml.Unmarshal(data, &presets); err != nil {
		logrus.Fatalf("unable to parse preset file: %v", err)
	}

	preset, ok := presets.Scans[name]
	if !ok {
		logrus.Fatalf("preset %q not found in %s", name, path)
	}
	logrus.Infof("Using scan preset %v", name)

	if preset.NumSamples > 0 {
		cfg.Scan.NumSamples = preset.NumSamples
	}
	if preset.OverlapFactor > 0 {
		cfg.Scan.OverlapFactor = preset.OverlapFactor
	}
	if preset.FMaxFlow > 0 {
		cfg.Scan.FMaxFlow = preset.FMaxFlow
	}
	if preset.FMaxLikelihood > 0 {
		cfg.Likelihood.FMax = preset.FMaxLikelihood
	}
	if preset.NumWorkers > 0 {
		cfg.Likelihood.NumWorkers = preset.NumWorkers
	}
}
