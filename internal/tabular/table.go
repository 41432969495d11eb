// Package tabular defines the in-memory table that flows through the load
// pipeline: the JSON normalizer produces one, the cleaner rewrites it, and
// the bulk loader writes it out.
//
// Cell values are restricted to a small set of types:
//   - nil              (null / missing)
//   - string           (text)
//   - bool             (boolean)
//   - decimal.Decimal  (any JSON number, kept exact)
//
// Keeping numbers as decimals end-to-end avoids float drift between the
// source snapshots, the CSV audit copies, and the destination stores.
package tabular

import "github.com/shopspring/decimal"

// Table is a named-column, row-major dataset.
//
// Invariant: every row has exactly len(Columns) cells; absent source keys
// are represented as nil cells, never by ragged rows.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NumRows returns the number of data rows.
func (t Table) NumRows() int { return len(t.Rows) }

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Kind is the inferred storage type of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBool:
		return "bool"
	default:
		return "text"
	}
}

// Column pairs a column name with its inferred kind. Destination backends
// translate Kind into their own DDL type names.
type Column struct {
	Name string
	Kind Kind
}

// InferSchema derives a column type for every column from the cell values.
//
// Rules:
//   - all non-nil cells decimal  -> numeric
//   - all non-nil cells bool     -> bool
//   - anything else (including an all-nil column) -> text
//
// Mixed-type columns degrade to text rather than failing: the sources are
// heterogeneous exports with no declared schema.
func InferSchema(t Table) []Column {
	out := make([]Column, len(t.Columns))
	for i, name := range t.Columns {
		out[i] = Column{Name: name, Kind: inferColumn(t.Rows, i)}
	}
	return out
}

func inferColumn(rows [][]any, idx int) Kind {
	seen := false
	kind := KindText
	for _, row := range rows {
		v := row[idx]
		if v == nil {
			continue
		}
		var k Kind
		switch v.(type) {
		case decimal.Decimal:
			k = KindNumeric
		case bool:
			k = KindBool
		default:
			return KindText
		}
		if !seen {
			kind, seen = k, true
			continue
		}
		if k != kind {
			return KindText
		}
	}
	if !seen {
		return KindText
	}
	return kind
}
