// Package results provides pure record types for scan outcomes and their
// aggregation. This package has no dependencies on scan/ or scan/flow/ —
// it stores plain data.
package results

// TriggerRecord captures the selected trigger of one scan iteration.
type TriggerRecord struct {
	TimeOffset    float64 // trial time-scan offset (0 when the time scan is off)
	ChirpMass     float64 // solar masses
	SNR           float64
	LogLikelihood float64
	EventTime     float64 // absolute GPS time of the trigger
	NumSamples    int     // samples drawn for this iteration
	NumSupported  int     // samples inside prior support (scored rows)
}

// ScanTrace accumulates one record per scan iteration, including
// degenerate iterations that produced no trigger.
type ScanTrace struct {
	Triggers   []TriggerRecord
	Degenerate int // iterations where no sample survived the prior filter
}

// Add appends one trigger record.
func (st *ScanTrace) Add(rec TriggerRecord) {
	st.Triggers = append(st.Triggers, rec)
}
