// Package frame holds tabular data in memory and converts it to and from CSV,
// the format rAPId accepts for uploads and schema inference.
package frame

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrEmptyHeader is returned when a frame would have no columns.
var ErrEmptyHeader = errors.New("frame has no columns")

// Frame is an ordered header plus rows of string cells.
type Frame struct {
	header []string
	rows   [][]string
}

// New builds a frame. Every row must be as wide as the header.
func New(header []string, rows ...[]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, ErrEmptyHeader
	}

	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
	}

	f := &Frame{header: append([]string(nil), header...)}
	for _, r := range rows {
		if err := f.Append(r...); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// Empty returns a frame with no columns and no rows, as produced by a query
// that matched nothing.
func Empty() *Frame {
	return &Frame{}
}

// FromColumns builds a frame from named column vectors of equal length.
func FromColumns(order []string, cols map[string][]string) (*Frame, error) {
	n := -1
	for _, name := range order {
		v, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q has no values", name)
		}
		if n >= 0 && len(v) != n {
			return nil, fmt.Errorf("column %q has %d values, want %d", name, len(v), n)
		}
		n = len(v)
	}

	f, err := New(order)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		row := make([]string, len(order))
		for j, name := range order {
			row[j] = cols[name][i]
		}
		f.rows = append(f.rows, row)
	}

	return f, nil
}

// Append adds one row.
func (f *Frame) Append(cells ...string) error {
	if len(cells) != len(f.header) {
		return fmt.Errorf("row %d has %d cells, want %d", len(f.rows), len(cells), len(f.header))
	}

	f.rows = append(f.rows, append([]string(nil), cells...))
	return nil
}

// Header returns a copy of the column names.
func (f *Frame) Header() []string {
	return append([]string(nil), f.header...)
}

// Rows returns the row count.
func (f *Frame) Rows() int {
	return len(f.rows)
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []string {
	return append([]string(nil), f.rows[i]...)
}

// Column returns the values of the named column.
func (f *Frame) Column(name string) ([]string, bool) {
	idx := -1
	for i, h := range f.header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	out := make([]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[idx]
	}

	return out, true
}

// WriteCSV writes a header line followed by every row. No index column is emitted.
func (f *Frame) WriteCSV(w io.Writer) error {
	if len(f.header) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(f.header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(f.rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	return nil
}

// CSV returns the frame serialized as CSV.
func (f *Frame) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ReadCSV parses CSV whose first record is the header.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	return New(header, records...)
}

// ReadFile parses a CSV file from disk.
func ReadFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	f, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return f, nil
}
