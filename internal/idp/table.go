package idp

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	// ColumnSubject and ColumnSession lead every row.
	ColumnSubject = "subject"
	ColumnSession = "session"

	// NaN is how absent measurements are written.
	NaN = "nan"
)

var (
	// ErrHeaderMismatch reports an existing table whose columns differ from the row.
	ErrHeaderMismatch = errors.New("idp header mismatch")
	// ErrMalformed reports a table that could not be parsed.
	ErrMalformed = errors.New("malformed idp table")
)

// Row is one subject session's measurements in column order.
type Row struct {
	Subject string
	Session int
	Columns []string
	Values  []float64
}

// Header returns the CSV header for the row.
func (r Row) Header() []string {
	return append([]string{ColumnSubject, ColumnSession}, r.Columns...)
}

// Value returns the value recorded for column.
func (r Row) Value(column string) (float64, bool) {
	idx := slices.Index(r.Columns, column)
	if idx < 0 || idx >= len(r.Values) {
		return math.NaN(), false
	}
	return r.Values[idx], true
}

func (r Row) record() []string {
	out := make([]string, 0, len(r.Values)+2)
	out = append(out, r.Subject, strconv.Itoa(r.Session))
	for _, v := range r.Values {
		out = append(out, FormatValue(v))
	}
	return out
}

func (r Row) validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return errors.New("row subject is required")
	}
	if len(r.Columns) != len(r.Values) {
		return fmt.Errorf("row has %d columns but %d values", len(r.Columns), len(r.Values))
	}
	seen := make(map[string]struct{}, len(r.Columns))
	for _, c := range r.Columns {
		if c == "" || c == ColumnSubject || c == ColumnSession {
			return fmt.Errorf("invalid column name %q", c)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// FormatValue renders a measurement; NaN becomes "nan".
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return NaN
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseValue parses a measurement written by FormatValue. Blank cells are NaN.
func ParseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, NaN) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(raw, 64)
}

// AppendRow appends row to the CSV table at path, writing the header when
// the file is new or empty.
func AppendRow(path string, row Row) error {
	if err := row.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create idp directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open idp table: %w", err)
	}
	defer file.Close()

	header := row.Header()
	existing, err := csv.NewReader(file).Read()
	switch {
	case errors.Is(err, io.EOF):
		existing = nil
	case err != nil:
		return fmt.Errorf("%w: read header: %v", ErrMalformed, err)
	}
	if existing != nil && !slices.Equal(existing, header) {
		return fmt.Errorf("%w: %s has %v, row has %v", ErrHeaderMismatch, path, existing, header)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek idp table: %w", err)
	}

	w := csv.NewWriter(file)
	if existing == nil {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write idp header: %w", err)
		}
	}
	if err := w.Write(row.record()); err != nil {
		return fmt.Errorf("write idp row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush idp table: %w", err)
	}
	return file.Sync()
}

// Table is a parsed IDP CSV.
type Table struct {
	Columns []string
	Rows    []Row
}

// Column returns every value of column in row order.
func (t Table) Column(name string) ([]float64, bool) {
	idx := slices.Index(t.Columns, name)
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r.Values[idx])
	}
	return out, true
}

// Latest keeps one row per subject session. Reruns append rows, so the last
// row for a key wins while the key keeps its first position. The returned
// keys name every subject session that had more than one row.
func (t Table) Latest() (Table, []string) {
	type key struct {
		subject string
		session int
	}
	index := make(map[key]int, len(t.Rows))
	rows := make([]Row, 0, len(t.Rows))
	var dups []string
	for _, r := range t.Rows {
		k := key{r.Subject, r.Session}
		if i, ok := index[k]; ok {
			if !slices.Contains(dups, rowKey(r)) {
				dups = append(dups, rowKey(r))
			}
			rows[i] = r
			continue
		}
		index[k] = len(rows)
		rows = append(rows, r)
	}
	return Table{Columns: t.Columns, Rows: rows}, dups
}

func rowKey(r Row) string {
	return fmt.Sprintf("%s session %d", r.Subject, r.Session)
}

// ReadTable parses the CSV at path.
func ReadTable(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer file.Close()
	return ParseTable(file)
}

// ParseTable parses an IDP CSV stream.
func ParseTable(r io.Reader) (Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	header := records[0]
	if len(header) < 2 || header[0] != ColumnSubject || header[1] != ColumnSession {
		return Table{}, fmt.Errorf("%w: header must start with %s,%s", ErrMalformed, ColumnSubject, ColumnSession)
	}
	table := Table{Columns: append([]string(nil), header[2:]...)}
	for i, rec := range records[1:] {
		line := i + 2
		session, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return Table{}, fmt.Errorf("%w: line %d: session %q", ErrMalformed, line, rec[1])
		}
		row := Row{Subject: rec[0], Session: session, Columns: table.Columns, Values: make([]float64, 0, len(table.Columns))}
		for j, cell := range rec[2:] {
			v, err := ParseValue(cell)
			if err != nil {
				return Table{}, fmt.Errorf("%w: line %d column %s: %q", ErrMalformed, line, table.Columns[j], cell)
			}
			row.Values = append(row.Values, v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
