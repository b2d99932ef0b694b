package pipeline

import (
	"fmt"
	"math"

	"ukbqsm/internal/idp"
	"ukbqsm/internal/textutil"
)

// Fixed measurement columns written after the region table columns.
const (
	ColumnVentricles      = "Ventricles"
	ColumnSNLeft          = "SN_L"
	ColumnSNRight         = "SN_R"
	ColumnWMH             = "WMH"
	ColumnWM              = "WM"
	ColumnWMNoLesions     = "WM_no_lesions"
	ColumnDiffWM          = "Diff-WM"
	ColumnDiffWMNoLesions = "Diff-WM-no-lesions"
)

// FixedColumns returns the non-table columns in output order.
func FixedColumns() []string {
	return []string{
		ColumnVentricles,
		ColumnSNLeft, ColumnSNRight,
		ColumnWMH, ColumnWM, ColumnWMNoLesions,
		ColumnDiffWM, ColumnDiffWMNoLesions,
	}
}

// Columns returns the full column list for regions.
func Columns(regions []Region) []string {
	out := make([]string, 0, len(regions)+len(FixedColumns()))
	for _, r := range regions {
		out = append(out, r.Name)
	}
	return append(out, FixedColumns()...)
}

// Measurements collects one value per column. Every column starts as NaN and
// may be set at most once.
type Measurements struct {
	columns []string
	values  map[string]float64
	set     map[string]bool
}

func newMeasurements(regions []Region) (*Measurements, error) {
	cols := Columns(regions)
	m := &Measurements{
		columns: cols,
		values:  make(map[string]float64, len(cols)),
		set:     make(map[string]bool, len(cols)),
	}
	folded := make(map[string]string, len(cols))
	for _, c := range cols {
		key := textutil.FoldKey(c)
		if prev, dup := folded[key]; dup {
			return nil, fmt.Errorf("%w: column %q collides with %q", ErrInvalidRegions, c, prev)
		}
		folded[key] = c
		m.values[c] = math.NaN()
	}
	return m, nil
}

// Set records the value of column.
func (m *Measurements) Set(column string, value float64) error {
	if _, ok := m.values[column]; !ok {
		return fmt.Errorf("unknown measurement column %q", column)
	}
	if m.set[column] {
		return fmt.Errorf("measurement %q already recorded", column)
	}
	m.values[column] = value
	m.set[column] = true
	return nil
}

// Get returns the value of column, NaN when unset.
func (m *Measurements) Get(column string) float64 {
	v, ok := m.values[column]
	if !ok {
		return math.NaN()
	}
	return v
}

// Columns returns the column order.
func (m *Measurements) Columns() []string {
	return append([]string(nil), m.columns...)
}

// Row converts the measurements to an IDP table row.
func (m *Measurements) Row(subject string, session int) idp.Row {
	values := make([]float64, 0, len(m.columns))
	for _, c := range m.columns {
		values = append(values, m.values[c])
	}
	return idp.Row{Subject: subject, Session: session, Columns: m.Columns(), Values: values}
}
