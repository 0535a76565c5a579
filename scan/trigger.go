package scan

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Trigger is the single best-supported candidate of one scan iteration.
type Trigger struct {
	Row           int     // index into the scored table
	ChirpMass     float64 // solar masses
	SNR           float64
	LogLikelihood float64
	EventTime     float64 // dataset reference time + local coalescence time
	TimeOffset    float64 // trial time-scan offset this iteration ran under
}

// SelectTrigger picks the maximum-log-likelihood row of a scored table and
// resolves its absolute event time against the dataset's recorded event
// time. An empty table yields no trigger (nil) without error: a degenerate
// iteration contributes nothing and the scan continues.
func SelectTrigger(t *Table, timeEvent, timeOffset float64) (*Trigger, error) {
	if t.Len() == 0 {
		return nil, nil
	}
	best := 0
	for i := 1; i < t.Len(); i++ {
		if t.LogLikelihood[i] > t.LogLikelihood[best] {
			best = i
		}
	}
	row := t.Row(best)
	chirpMass, ok := row.Get("chirp_mass")
	if !ok {
		return nil, fmt.Errorf("trigger selection: table has no chirp_mass column")
	}
	localTime, ok := row.Get("geocent_time")
	if !ok {
		return nil, fmt.Errorf("trigger selection: table has no geocent_time column")
	}
	return &Trigger{
		Row:           best,
		ChirpMass:     chirpMass,
		SNR:           t.SNR[best],
		LogLikelihood: t.LogLikelihood[best],
		EventTime:     timeEvent + localTime,
		TimeOffset:    timeOffset,
	}, nil
}

// ResultTable accumulates every surviving scored sample across time-scan
// iterations, tagged with per-iteration metadata. It only ever grows.
type ResultTable struct {
	names []string // physical parameter columns

	rows []resultRow
}

type resultRow struct {
	params     []float64
	logPrior   float64
	logL       float64
	snr        float64
	logPost    float64
	timeOffset float64
	timeEvent  float64
}

// Len returns the number of accumulated rows.
func (r *ResultTable) Len() int { return len(r.rows) }

// Append adds one scored, filtered sample table with its scan metadata.
// The posterior score log L + log prior is stored per row but never used
// for ranking.
func (r *ResultTable) Append(t *Table, timeOffset, timeEvent float64) error {
	if r.names == nil {
		r.names = append([]string(nil), t.Names()...)
	} else if len(r.names) != len(t.Names()) {
		return fmt.Errorf("result table: appending %d columns to table with %d", len(t.Names()), len(r.names))
	}
	for i := 0; i < t.Len(); i++ {
		r.rows = append(r.rows, resultRow{
			params:     t.Row(i).Values(),
			logPrior:   t.LogPrior[i],
			logL:       t.LogLikelihood[i],
			snr:        t.SNR[i],
			logPost:    t.LogLikelihood[i] + t.LogPrior[i],
			timeOffset: timeOffset,
			timeEvent:  timeEvent,
		})
	}
	return nil
}

// Profile returns (chirp-mass values, log-likelihoods) for diagnostics;
// both slices are copies.
func (r *ResultTable) Profile() (chirpMass, logL []float64) {
	idx := -1
	for j, n := range r.names {
		if n == "chirp_mass" {
			idx = j
		}
	}
	if idx < 0 {
		return nil, nil
	}
	for _, row := range r.rows {
		chirpMass = append(chirpMass, row.params[idx])
		logL = append(logL, row.logL)
	}
	return chirpMass, logL
}

// WriteCSV serializes the table: one row per surviving sample, the
// physical parameter columns followed by the scoring and metadata columns.
func (r *ResultTable) WriteCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating result file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := append(append([]string(nil), r.names...),
		"log_prior", "log_likelihood", "snr", "log_posterior", "time_offset", "time_event")
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing result header: %w", err)
	}
	record := make([]string, len(header))
	for _, row := range r.rows {
		for j, v := range row.params {
			record[j] = formatFloat(v)
		}
		k := len(row.params)
		record[k] = formatFloat(row.logPrior)
		record[k+1] = formatFloat(row.logL)
		record[k+2] = formatFloat(row.snr)
		record[k+3] = formatFloat(row.logPost)
		record[k+4] = formatFloat(row.timeOffset)
		record[k+5] = formatFloat(row.timeEvent)
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing result row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}
