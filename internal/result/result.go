// Package result maps raw engine output into immutable query results.
//
// A QueryResult owns one flat slice of cells. Rows, Row and the iterators
// are views over that slice; nothing is copied per row.
package result

import (
	"bytes"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/roach88/opsql/internal/ir"
)

// UnknownType is the declared type reported for columns that are not backed
// by a table column (expressions, aggregates, literals).
const UnknownType = "UNKNOWN"

// Column describes one result column in declaration order.
type Column struct {
	Name         string `json:"name"`
	DeclaredType string `json:"type"`
}

// RawColumn is the column metadata reported by the engine.
// DeclType is empty when the engine has no declared type.
type RawColumn struct {
	Name     string
	DeclType string
}

// Raw is the unshaped output of one statement execution.
// Cells hold driver values (nil, int64, float64, string, []byte, ...).
type Raw struct {
	Columns      []RawColumn
	Rows         [][]any
	Changes      int64
	LastInsertID int64
	// TotalChanges is the session's total_changes() counter. Not part of
	// QueryResult; batches use it to count rows modified per command.
	TotalChanges int64
}

// QueryResult is the immutable outcome of one executed statement.
type QueryResult struct {
	// RowsAffected is the engine's changes() counter after the statement.
	RowsAffected int64
	// InsertID is the connection's last inserted rowid; null if the
	// connection has never inserted a row.
	InsertID sql.NullInt64
	// Metadata lists the result columns in declaration order.
	Metadata []Column
	// Rows holds the returned rows.
	Rows Rows
}

// Map converts raw engine output into a QueryResult.
//
// Column order is preserved, engine NULL becomes ir.Null, and all cells are
// stored in a single slice shared by every row view.
func Map(raw Raw) (QueryResult, error) {
	cols := make([]Column, len(raw.Columns))
	for i, c := range raw.Columns {
		cols[i] = Column{Name: c.Name, DeclaredType: declaredType(c.DeclType)}
	}

	width := len(cols)
	cells := make([]ir.Value, 0, width*len(raw.Rows))
	for r, row := range raw.Rows {
		if len(row) != width {
			return QueryResult{}, fmt.Errorf("row %d has %d cells, expected %d", r, len(row), width)
		}
		for c, cell := range row {
			v, err := ir.FromDriver(cell)
			if err != nil {
				return QueryResult{}, fmt.Errorf("row %d column %q: %w", r, cols[c].Name, err)
			}
			cells = append(cells, v)
		}
	}

	res := QueryResult{
		RowsAffected: raw.Changes,
		Metadata:     cols,
		Rows:         Rows{columns: cols, cells: cells, n: len(raw.Rows)},
	}
	if raw.LastInsertID != 0 {
		res.InsertID = sql.NullInt64{Int64: raw.LastInsertID, Valid: true}
	}
	return res, nil
}

func declaredType(decl string) string {
	decl = strings.ToUpper(strings.TrimSpace(decl))
	if decl == "" {
		return UnknownType
	}
	return decl
}

// Rows is an ordered, read-only collection of result rows.
type Rows struct {
	columns []Column
	cells   []ir.Value
	n       int
}

// Len returns the number of rows.
func (r Rows) Len() int {
	return r.n
}

// At returns the row at index i. Panics if i is out of range, like a slice.
func (r Rows) At(i int) Row {
	if i < 0 || i >= r.n {
		panic(fmt.Sprintf("result: row index %d out of range [0:%d]", i, r.n))
	}
	w := len(r.columns)
	return Row{columns: r.columns, cells: r.cells[i*w : (i+1)*w : (i+1)*w]}
}

// All iterates rows in order.
func (r Rows) All() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i := 0; i < r.n; i++ {
			if !yield(i, r.At(i)) {
				return
			}
		}
	}
}

// Slice returns every row. The returned rows still share storage with r.
func (r Rows) Slice() []Row {
	out := make([]Row, r.n)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

// Maps returns every row as a name-to-native-value map.
func (r Rows) Maps() []map[string]any {
	out := make([]map[string]any, r.n)
	for i := range out {
		out[i] = r.At(i).Map()
	}
	return out
}

// MarshalJSON encodes the rows as an array of ordered objects.
func (r Rows) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < r.n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := r.At(i).MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Row is a view of one result row: an ordered mapping from column name to
// value, with insertion order equal to column order.
type Row struct {
	columns []Column
	cells   []ir.Value
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.cells)
}

// At returns the value in column i.
func (r Row) At(i int) ir.Value {
	return r.cells[i]
}

// Get returns the value of the named column. When several columns share a
// name, the first one wins.
func (r Row) Get(name string) (ir.Value, bool) {
	for i, c := range r.columns {
		if c.Name == name {
			return r.cells[i], true
		}
	}
	return nil, false
}

// Columns returns the column metadata of the row.
func (r Row) Columns() []Column {
	return r.columns
}

// Values returns the row's cells in column order.
func (r Row) Values() []ir.Value {
	return r.cells
}

// Map returns a copy of the row as column name to native Go value
// (nil, int64, float64, string or []byte).
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.cells))
	for i, c := range r.columns {
		if _, dup := m[c.Name]; dup {
			continue
		}
		m[c.Name] = ir.Native(r.cells[i])
	}
	return m
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := ir.MarshalCanonical(c.Name)
		if err != nil {
			return nil, err
		}
		val, err := ir.MarshalCanonical(r.cells[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
