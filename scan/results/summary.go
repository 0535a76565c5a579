package results

// Summary aggregates statistics from a ScanTrace.
type Summary struct {
	NumIterations     int
	NumDegenerate     int
	BestSNR           float64
	BestChirpMass     float64
	BestEventTime     float64
	BestTimeOffset    float64
	MeanSupportedFrac float64
}

// Summarize computes aggregate statistics from a ScanTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *ScanTrace) *Summary {
	summary := &Summary{}
	if st == nil {
		return summary
	}
	summary.NumIterations = len(st.Triggers) + st.Degenerate
	summary.NumDegenerate = st.Degenerate

	var fracTotal float64
	for i, rec := range st.Triggers {
		if rec.NumSamples > 0 {
			fracTotal += float64(rec.NumSupported) / float64(rec.NumSamples)
		}
		if i == 0 || rec.SNR > summary.BestSNR {
			summary.BestSNR = rec.SNR
			summary.BestChirpMass = rec.ChirpMass
			summary.BestEventTime = rec.EventTime
			summary.BestTimeOffset = rec.TimeOffset
		}
	}
	if len(st.Triggers) > 0 {
		summary.MeanSupportedFrac = fracTotal / float64(len(st.Triggers))
	}
	return summary
}
