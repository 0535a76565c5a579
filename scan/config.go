package scan

// ScanConfig groups chirp-mass scan parameters.
type ScanConfig struct {
	NumSamples    int     // posterior samples drawn per grid point (must be > 0)
	OverlapFactor float64 // grid density multiplier (default 2; must be >= 1)
	FMaxFlow      float64 // upper frequency cutoff for model conditioning (0 = full band)
}

// TimeScanConfig groups the optional arrival-time scan. Enabled=false runs
// the chirp-mass scan once on the untranslated dataset.
type TimeScanConfig struct {
	Enabled       bool
	TMin          float64 // requested window start (seconds, relative to recorded event time)
	TMax          float64 // requested window end
	OverlapFactor float64 // trial-offset density multiplier (default 1)
}

// LikelihoodConfig groups exact-likelihood evaluation parameters.
// NumWorkers <= 1 (0 and unset included) evaluates strictly sequentially;
// only an explicit value > 1 enables the worker pool.
type LikelihoodConfig struct {
	NumWorkers int
	FMax       float64 // upper frequency cutoff for likelihood data (0 = full band)
}

// Config bundles all pipeline knobs.
type Config struct {
	Scan       ScanConfig
	TimeScan   TimeScanConfig
	Likelihood LikelihoodConfig
	Seed       int64
}
