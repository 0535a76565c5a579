package scan

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gw-scan/gw-scan/scan/flow"
	"github.com/gw-scan/gw-scan/scan/results"
)

// ScoreBuilder constructs the exact-likelihood scoring function for one
// (possibly time-translated) dataset. The pipeline builds a fresh kernel
// per time-scan iteration because the likelihood is tied to the data.
type ScoreBuilder func(ev *EventDataset, cfg LikelihoodConfig) (ScoreFunc, error)

// DefaultScoreBuilder wires the built-in stationary-Gaussian kernel.
func DefaultScoreBuilder(ev *EventDataset, cfg LikelihoodConfig) (ScoreFunc, error) {
	return NewGaussianKernel(ev, cfg.FMax).Score, nil
}

// Pipeline is a single batch scan job: time-scan loop, chirp-mass scan,
// prior filter, exact-likelihood evaluation and trigger selection, in that
// order. A run either completes or the process is terminated externally;
// there are no timeouts and no retries.
type Pipeline struct {
	model *flow.Flow
	meta  flow.Metadata
	cfg   Config
	build ContextBuilder
	score ScoreBuilder
	rngs  *PartitionedRNG
}

// NewPipeline validates the configuration against the model metadata and
// prepares a pipeline. A nil context builder selects the default; a nil
// score builder selects the built-in Gaussian kernel.
func NewPipeline(model *flow.Flow, meta flow.Metadata, cfg Config, build ContextBuilder, score ScoreBuilder) (*Pipeline, error) {
	if model == nil {
		return nil, fmt.Errorf("pipeline: nil model")
	}
	if cfg.Scan.OverlapFactor == 0 {
		cfg.Scan.OverlapFactor = 2
	}
	if cfg.TimeScan.OverlapFactor == 0 {
		cfg.TimeScan.OverlapFactor = 1
	}
	if build == nil {
		build = DefaultContextBuilder(model.HyperParams().Standardization)
	}
	if score == nil {
		score = DefaultScoreBuilder
	}
	return &Pipeline{
		model: model,
		meta:  meta,
		cfg:   cfg,
		build: build,
		score: score,
		rngs:  NewPartitionedRNG(NewScanKey(cfg.Seed)),
	}, nil
}

// Run executes the full scan over the event dataset and returns the
// accumulated result table and the per-iteration trace.
func (p *Pipeline) Run(event *EventDataset) (*ResultTable, *results.ScanTrace, error) {
	chirpPrior, err := p.meta.ChirpMassPrior()
	if err != nil {
		return nil, nil, err
	}
	grid, err := ChirpMassGrid(chirpPrior, p.meta.ChirpMassKernel, p.cfg.Scan.OverlapFactor)
	if err != nil {
		return nil, nil, err
	}

	offsets := []float64{0}
	if p.cfg.TimeScan.Enabled {
		window, err := p.meta.TimeWindow()
		if err != nil {
			return nil, nil, err
		}
		offsets, err = TimeGrid(p.cfg.TimeScan.TMin, p.cfg.TimeScan.TMax,
			window.Range(), p.cfg.TimeScan.OverlapFactor)
		if err != nil {
			return nil, nil, err
		}
	}

	scanner, err := NewScanner(p.model, p.model.HyperParams(), grid, p.cfg.Scan, p.build)
	if err != nil {
		return nil, nil, err
	}
	prior, err := NewPrior(p.meta, priorParameterNames(p.model.HyperParams()))
	if err != nil {
		return nil, nil, err
	}

	logrus.Infof("Scanning %d chirp-mass candidates x %d samples over %d time offsets",
		len(grid), p.cfg.Scan.NumSamples, len(offsets))

	table := &ResultTable{}
	trace := &results.ScanTrace{}
	rng := p.rngs.ForSubsystem(SubsystemSampling)

	// The time-scan and grid loops are strictly sequential; flow sampling
	// saturates the numeric backend on its own.
	for _, dt := range offsets {
		data := event
		if p.cfg.TimeScan.Enabled && dt != 0 {
			data = event.TimeTranslate(dt)
		}

		t0 := time.Now()
		samples, err := scanner.Run(data, rng)
		if err != nil {
			return nil, nil, fmt.Errorf("time offset %v: %w", dt, err)
		}
		logrus.Infof("Wall time for flow sampling: %.2f seconds", time.Since(t0).Seconds())

		supported := prior.FilterSupported(samples)
		if supported.Len() == 0 {
			// Degenerate iteration: nothing inside prior support. Not fatal.
			logrus.Warnf("time offset %v: all %d samples outside prior support", dt, samples.Len())
			trace.Degenerate++
			continue
		}

		score, err := p.score(data, p.cfg.Likelihood)
		if err != nil {
			return nil, nil, fmt.Errorf("time offset %v: building likelihood: %w", dt, err)
		}
		evaluator, err := NewEvaluator(score, p.cfg.Likelihood)
		if err != nil {
			return nil, nil, err
		}
		t0 = time.Now()
		if err := evaluator.Evaluate(supported); err != nil {
			return nil, nil, fmt.Errorf("time offset %v: %w", dt, err)
		}
		logrus.Infof("Wall time for likelihoods: %.2f seconds", time.Since(t0).Seconds())

		trigger, err := SelectTrigger(supported, data.Settings.TimeEvent, dt)
		if err != nil {
			return nil, nil, fmt.Errorf("time offset %v: %w", dt, err)
		}
		if trigger != nil {
			logTrigger(trigger, p.cfg.TimeScan.Enabled)
			trace.Add(results.TriggerRecord{
				TimeOffset:    dt,
				ChirpMass:     trigger.ChirpMass,
				SNR:           trigger.SNR,
				LogLikelihood: trigger.LogLikelihood,
				EventTime:     trigger.EventTime,
				NumSamples:    samples.Len(),
				NumSupported:  supported.Len(),
			})
		}
		if err := table.Append(supported, dt, data.Settings.TimeEvent); err != nil {
			return nil, nil, err
		}
	}
	return table, trace, nil
}

// priorParameterNames lists the physical parameters the prior constrains:
// the model's inference parameters with delta_chirp_mass resolved to the
// reconstructed chirp_mass.
func priorParameterNames(hp flow.HyperParams) []string {
	names := make([]string, len(hp.InferenceParameters))
	for i, name := range hp.InferenceParameters {
		if name == "delta_chirp_mass" {
			names[i] = "chirp_mass"
		} else {
			names[i] = name
		}
	}
	return names
}

func logTrigger(trigger *Trigger, timeScan bool) {
	if timeScan {
		logrus.Infof("dt: %.2f\tChirp mass trigger: %.4f Msun\tSNR: %.1f\tGPS trigger: %.2f",
			trigger.TimeOffset, trigger.ChirpMass, trigger.SNR, trigger.EventTime)
		return
	}
	logrus.Infof("Chirp mass trigger: %.4f Msun\tSNR: %.1f\tGPS trigger: %.2f",
		trigger.ChirpMass, trigger.SNR, trigger.EventTime)
}
