package scan

import (
	"fmt"
	"math"
)

// ParameterVector is an immutable ordered view of one sample's named
// physical parameters.
type ParameterVector struct {
	names  []string
	values []float64
}

// Get returns the value of the named parameter.
func (p ParameterVector) Get(name string) (float64, bool) {
	for i, n := range p.names {
		if n == name {
			return p.values[i], true
		}
	}
	return 0, false
}

// Names returns the parameter ordering.
func (p ParameterVector) Names() []string { return p.names }

// Values returns the values in parameter order.
func (p ParameterVector) Values() []float64 { return p.values }

// Table is a column-ordered table of samples: one named physical parameter
// per column plus the per-row scoring columns filled in as the pipeline
// progresses.
type Table struct {
	names []string
	cols  [][]float64

	LogPrior      []float64
	LogLikelihood []float64
	SNR           []float64
}

// NewTable allocates a table with n rows and the given parameter columns.
// Scoring columns start at zero (log-prior at -Inf until computed).
func NewTable(names []string, n int) *Table {
	t := &Table{
		names:         append([]string(nil), names...),
		cols:          make([][]float64, len(names)),
		LogPrior:      make([]float64, n),
		LogLikelihood: make([]float64, n),
		SNR:           make([]float64, n),
	}
	for i := range t.cols {
		t.cols[i] = make([]float64, n)
	}
	for i := range t.LogPrior {
		t.LogPrior[i] = math.Inf(-1)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.cols) == 0 {
		return len(t.LogPrior)
	}
	return len(t.cols[0])
}

// Names returns the parameter column names in order.
func (t *Table) Names() []string { return t.names }

// Column returns the values of the named parameter column.
func (t *Table) Column(name string) ([]float64, error) {
	for i, n := range t.names {
		if n == name {
			return t.cols[i], nil
		}
	}
	return nil, fmt.Errorf("sample table: no column %q", name)
}

// Set writes one cell by column index.
func (t *Table) Set(row, col int, v float64) { t.cols[col][row] = v }

// Row returns an immutable view of row i's physical parameters.
func (t *Table) Row(i int) ParameterVector {
	values := make([]float64, len(t.cols))
	for j := range t.cols {
		values[j] = t.cols[j][i]
	}
	return ParameterVector{names: t.names, values: values}
}

// Select returns a new table holding only the given rows, in order.
func (t *Table) Select(rows []int) *Table {
	out := NewTable(t.names, len(rows))
	for dst, src := range rows {
		for j := range t.cols {
			out.cols[j][dst] = t.cols[j][src]
		}
		out.LogPrior[dst] = t.LogPrior[src]
		out.LogLikelihood[dst] = t.LogLikelihood[src]
		out.SNR[dst] = t.SNR[src]
	}
	return out
}
