package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Table is an ordered-header table of string cells. Columns can be added
// after creation; rows never change position.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.AddColumn(c, "")
	}
	return t
}

// Columns returns a copy of the header.
func (t *Table) Columns() []string {
	out := make([]string, len(t.header))
	copy(out, t.header)
	return out
}

// Has reports whether the column exists.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// AddColumn appends a column filled with def. Existing columns are left alone.
func (t *Table) AddColumn(column, def string) {
	if t.Has(column) {
		return
	}
	t.index[column] = len(t.header)
	t.header = append(t.header, column)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], def)
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Get returns the cell value, or "" for unknown columns.
func (t *Table) Get(row int, column string) string {
	idx, ok := t.index[column]
	if !ok {
		return ""
	}
	return t.rows[row][idx]
}

// Set writes a cell, adding the column if needed.
func (t *Table) Set(row int, column, value string) {
	if !t.Has(column) {
		t.AddColumn(column, "")
	}
	t.rows[row][t.index[column]] = value
}

// Append adds a row; keys that are not columns yet become new columns.
func (t *Table) Append(values map[string]string) {
	for k := range values {
		if !t.Has(k) {
			t.AddColumn(k, "")
		}
	}
	row := make([]string, len(t.header))
	for k, v := range values {
		row[t.index[k]] = v
	}
	t.rows = append(t.rows, row)
}

// Row returns the row as a column->value map.
func (t *Table) Row(i int) map[string]string {
	out := make(map[string]string, len(t.header))
	for c, idx := range t.index {
		out[c] = t.rows[i][idx]
	}
	return out
}

// Filter returns a new table with the rows for which keep is true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := New(t.header...)
	for i, r := range t.rows {
		if !keep(i) {
			continue
		}
		cp := make([]string, len(r))
		copy(cp, r)
		out.rows = append(out.rows, cp)
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return t.Filter(func(int) bool { return true })
}

// ReadCSV reads a table with a header row.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses CSV with a header row.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := New(header...)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", t.Len()+1, err)
		}
		row := make([]string, len(t.header))
		copy(row, rec)
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// Encode writes the table as CSV.
func (t *Table) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteCSV replaces the file at path. The table is written to a sibling temp
// file first so an interrupted write leaves the previous file intact.
func WriteCSV(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := t.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
