package flow

import (
	"encoding/json"
	"fmt"
	"os"
)

// CheckpointVersion is the current on-disk format version. Loading bumps
// this forward-compatibly: older majors are rejected with a clear error
// instead of misreading tensors.
const CheckpointVersion = 1

// Bounds is a closed interval for a single named parameter.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Range returns Max - Min.
func (b Bounds) Range() float64 { return b.Max - b.Min }

// Contains reports whether v lies inside the interval.
func (b Bounds) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

// Metadata is the training-time information the scan needs: prior bounds,
// the chirp-mass conditioning kernel the model was trained with, detector
// ordering and the reference time.
type Metadata struct {
	IntrinsicPrior  map[string]Bounds `json:"intrinsic_prior"`
	ExtrinsicPrior  map[string]Bounds `json:"extrinsic_prior"`
	ChirpMassKernel Bounds            `json:"chirp_mass_kernel"`
	Detectors       []string          `json:"detectors"`
	RefTime         float64           `json:"ref_time"`
}

// ChirpMassPrior returns the global intrinsic chirp-mass bounds.
func (m Metadata) ChirpMassPrior() (Bounds, error) {
	b, ok := m.IntrinsicPrior["chirp_mass"]
	if !ok {
		return Bounds{}, fmt.Errorf("model metadata: no intrinsic chirp_mass prior")
	}
	return b, nil
}

// TimeWindow returns the extrinsic time-coincidence window bounds.
func (m Metadata) TimeWindow() (Bounds, error) {
	b, ok := m.ExtrinsicPrior["geocent_time"]
	if !ok {
		return Bounds{}, fmt.Errorf("model metadata: no extrinsic geocent_time prior")
	}
	return b, nil
}

// Checkpoint is the persisted form of a trained flow model.
type Checkpoint struct {
	Version     int         `json:"version"`
	HyperParams HyperParams `json:"hyperparams"`
	Metadata    Metadata    `json:"metadata"`
	Weights     FlowWeights `json:"weights"`
}

// LoadCheckpoint reads and validates a checkpoint file and rebuilds the
// flow model. The returned model is read-only for the rest of the run.
func LoadCheckpoint(path string) (*Flow, Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("reading checkpoint: %w", err)
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, Metadata{}, fmt.Errorf("parsing checkpoint %s: %w", path, err)
	}
	if ckpt.Version != CheckpointVersion {
		return nil, Metadata{}, fmt.Errorf("checkpoint %s: version %d, this build reads version %d",
			path, ckpt.Version, CheckpointVersion)
	}
	model, err := NewFlow(ckpt.HyperParams, ckpt.Weights)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("rebuilding model from %s: %w", path, err)
	}
	if err := validateMetadata(ckpt.HyperParams, ckpt.Metadata); err != nil {
		return nil, Metadata{}, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return model, ckpt.Metadata, nil
}

// SaveCheckpoint serializes a checkpoint. Provided for tooling and tests;
// training happens elsewhere.
func SaveCheckpoint(path string, ckpt Checkpoint) error {
	data, err := json.Marshal(ckpt)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func validateMetadata(hp HyperParams, meta Metadata) error {
	if _, err := meta.ChirpMassPrior(); err != nil {
		return err
	}
	if meta.ChirpMassKernel.Range() <= 0 {
		return fmt.Errorf("model metadata: chirp-mass kernel range must be positive, got %v",
			meta.ChirpMassKernel.Range())
	}
	for _, name := range hp.InferenceParameters {
		if name == "chirp_mass" || name == "delta_chirp_mass" {
			continue
		}
		_, in := meta.IntrinsicPrior[name]
		_, ex := meta.ExtrinsicPrior[name]
		if !in && !ex {
			return fmt.Errorf("model metadata: no prior bounds for inference parameter %q", name)
		}
	}
	return nil
}
