package flow

import (
	"fmt"
	"math/rand"
)

// TransformMode selects the conditional sub-transform of each flow step.
type TransformMode int

const (
	ModeCoupling TransformMode = iota
	ModeAutoregressive
)

// Mode tags as stored in checkpoints.
const (
	modeTagCoupling       = "rq-coupling"
	modeTagAutoregressive = "rq-autoregressive"
)

// ParseTransformMode maps a checkpoint mode tag to its variant. An
// unsupported tag is a fatal configuration error; there is no fallback.
func ParseTransformMode(tag string) (TransformMode, error) {
	switch tag {
	case modeTagCoupling:
		return ModeCoupling, nil
	case modeTagAutoregressive:
		return ModeAutoregressive, nil
	default:
		return 0, fmt.Errorf("unsupported transform mode %q (want %q or %q)", tag, modeTagCoupling, modeTagAutoregressive)
	}
}

func (m TransformMode) String() string {
	switch m {
	case ModeCoupling:
		return modeTagCoupling
	case ModeAutoregressive:
		return modeTagAutoregressive
	default:
		return fmt.Sprintf("TransformMode(%d)", int(m))
	}
}

// Standardizer holds the affine standardization of one named parameter:
// network-space value = (physical - Mean) / Std.
type Standardizer struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// EmbeddingDims sizes the optional embedding network.
type EmbeddingDims struct {
	StrainDim int `json:"strain_dim"`
	ProjDim   int `json:"proj_dim"`
	AuxDim    int `json:"aux_dim"`
	HiddenDim int `json:"hidden_dim"`
	NumBlocks int `json:"num_blocks"`
}

// HyperParams is the immutable hyperparameter record stored alongside the
// trained weights. It fully determines every tensor shape in the model, so
// a checkpoint can be rebuilt without any out-of-band information.
type HyperParams struct {
	ParamDim            int                     `json:"param_dim"`
	ContextDim          int                     `json:"context_dim"`
	NumFlowSteps        int                     `json:"num_flow_steps"`
	HiddenDim           int                     `json:"hidden_dim"`
	NumBlocks           int                     `json:"num_blocks"`
	NumBins             int                     `json:"num_bins"`
	TailBound           float64                 `json:"tail_bound"`
	Mode                string                  `json:"mode"`
	InferenceParameters []string                `json:"inference_parameters"`
	Standardization     map[string]Standardizer `json:"standardization"`
	Embedding           *EmbeddingDims          `json:"embedding,omitempty"`
}

// Validate checks internal consistency of the record.
func (hp HyperParams) Validate() error {
	if _, err := ParseTransformMode(hp.Mode); err != nil {
		return err
	}
	if hp.ParamDim < 1 || hp.NumFlowSteps < 1 || hp.HiddenDim < 1 || hp.NumBins < 2 {
		return fmt.Errorf("hyperparams: dims (param=%d steps=%d hidden=%d bins=%d) out of range",
			hp.ParamDim, hp.NumFlowSteps, hp.HiddenDim, hp.NumBins)
	}
	if hp.TailBound <= 0 {
		return fmt.Errorf("hyperparams: tail bound must be positive, got %v", hp.TailBound)
	}
	if len(hp.InferenceParameters) != hp.ParamDim {
		return fmt.Errorf("hyperparams: %d inference parameters for param dim %d",
			len(hp.InferenceParameters), hp.ParamDim)
	}
	for _, name := range hp.InferenceParameters {
		s, ok := hp.Standardization[name]
		if !ok {
			return fmt.Errorf("hyperparams: no standardization for parameter %q", name)
		}
		if s.Std <= 0 {
			return fmt.Errorf("hyperparams: non-positive std for parameter %q", name)
		}
	}
	return nil
}

// StepWeights holds one flow step: the linear sub-transform plus exactly
// one conditional sub-transform matching the model's mode.
type StepWeights struct {
	Linear         LinearWeights       `json:"linear"`
	Coupling       *ResidualNetWeights `json:"coupling,omitempty"`
	Autoregressive *MaskedNetWeights   `json:"autoregressive,omitempty"`
}

// FlowWeights holds every trainable tensor of the model.
type FlowWeights struct {
	Steps       []StepWeights     `json:"steps"`
	FinalLinear LinearWeights     `json:"final_linear"`
	Embedding   *EmbeddingWeights `json:"embedding,omitempty"`
}

// RandomFlowWeights builds identity-initialized linear maps and small
// random conditioner weights for the given hyperparameters. Used by tests
// and model-construction tooling; inference always loads trained weights.
func RandomFlowWeights(hp HyperParams, rng *rand.Rand) (FlowWeights, error) {
	mode, err := ParseTransformMode(hp.Mode)
	if err != nil {
		return FlowWeights{}, err
	}
	w := FlowWeights{FinalLinear: RandomLinearWeights(hp.ParamDim, rng)}
	perDim := splineParamsPerDim(hp.NumBins)
	for i := 0; i < hp.NumFlowSteps; i++ {
		step := StepWeights{Linear: RandomLinearWeights(hp.ParamDim, rng)}
		switch mode {
		case ModeCoupling:
			identity, transform := couplingSplit(hp.ParamDim, i)
			nw := RandomResidualNetWeights(len(identity), hp.ContextDim, hp.HiddenDim,
				len(transform)*perDim, hp.NumBlocks, rng)
			step.Coupling = &nw
		case ModeAutoregressive:
			nw := RandomMaskedNetWeights(hp.ParamDim, hp.ContextDim, hp.HiddenDim,
				hp.NumBlocks, hp.NumBins, rng)
			step.Autoregressive = &nw
		}
		w.Steps = append(w.Steps, step)
	}
	if hp.Embedding != nil {
		e := hp.Embedding
		ew := RandomEmbeddingWeights(e.StrainDim, e.ProjDim, e.AuxDim, e.HiddenDim,
			hp.ContextDim, e.NumBlocks, rng)
		w.Embedding = &ew
	}
	return w, nil
}

// buildTransform composes numFlowSteps blocks, each a linear sub-transform
// followed by the conditional spline sub-transform, plus one trailing
// linear transform.
func buildTransform(hp HyperParams, w FlowWeights) (Transform, error) {
	mode, err := ParseTransformMode(hp.Mode)
	if err != nil {
		return nil, err
	}
	if len(w.Steps) != hp.NumFlowSteps {
		return nil, fmt.Errorf("build transform: %d step weights, want %d", len(w.Steps), hp.NumFlowSteps)
	}

	var transforms []Transform
	for i, step := range w.Steps {
		linear, err := NewLinearTransform(hp.ParamDim, step.Linear)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		transforms = append(transforms, linear)

		switch mode {
		case ModeCoupling:
			if step.Coupling == nil {
				return nil, fmt.Errorf("step %d: missing coupling weights", i)
			}
			ct, err := NewCouplingTransform(hp.ParamDim, hp.ContextDim, hp.HiddenDim,
				hp.NumBlocks, hp.NumBins, i, hp.TailBound, *step.Coupling)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			transforms = append(transforms, ct)
		case ModeAutoregressive:
			if step.Autoregressive == nil {
				return nil, fmt.Errorf("step %d: missing autoregressive weights", i)
			}
			at, err := NewAutoregressiveTransform(hp.ParamDim, hp.ContextDim, hp.HiddenDim,
				hp.NumBlocks, hp.NumBins, hp.TailBound, *step.Autoregressive)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			transforms = append(transforms, at)
		}
	}

	final, err := NewLinearTransform(hp.ParamDim, w.FinalLinear)
	if err != nil {
		return nil, fmt.Errorf("final linear: %w", err)
	}
	transforms = append(transforms, final)
	return NewCompositeTransform(transforms...), nil
}
