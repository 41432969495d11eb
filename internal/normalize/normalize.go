// Package normalize turns the published JSON snapshots into flat tables.
//
// The source tree is heterogeneous: some files are plain arrays of
// records, most wrap their records in an envelope object, and a few are a
// single bare object. A single classification step tags the root shape
// and the rest of the package handles each shape exhaustively, so the
// heuristic stays auditable in one place.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"pulsedash/internal/tabular"
)

// Shape classifies the root value of a snapshot file.
type Shape int

const (
	// ShapeEmpty covers scalar and null roots; they normalize to an
	// empty table rather than an error.
	ShapeEmpty Shape = iota
	// ShapeRecordList is a root array of record objects.
	ShapeRecordList
	// ShapeEnvelope is a root object carrying its records under one of
	// the candidate keys.
	ShapeEnvelope
	// ShapeBareObject is a root object with no embedded record list; it
	// flattens to exactly one record.
	ShapeBareObject
)

func (s Shape) String() string {
	switch s {
	case ShapeRecordList:
		return "record_list"
	case ShapeEnvelope:
		return "envelope"
	case ShapeBareObject:
		return "bare_object"
	default:
		return "empty"
	}
}

// candidateKeys is the ordered list of envelope keys probed on an object
// root. The first key present whose value is an array wins.
var candidateKeys = []string{"data", "records", "rows", "items", "transactions", "users", "list"}

// ClassifyRoot tags a decoded JSON root. For ShapeEnvelope the second
// return value names the matched candidate key.
func ClassifyRoot(root any) (Shape, string) {
	switch v := root.(type) {
	case []any:
		return ShapeRecordList, ""
	case map[string]any:
		for _, k := range candidateKeys {
			if _, ok := v[k].([]any); ok {
				return ShapeEnvelope, k
			}
		}
		return ShapeBareObject, ""
	default:
		return ShapeEmpty, ""
	}
}

// Path normalizes a snapshot file or a directory of snapshot files.
//
// Directories are read in lexicographic order and concatenated; the
// column set is the union across files, with absent cells as nil. A
// missing path or unreadable file is an error; an empty directory is not.
func Path(path string) (tabular.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return tabular.Table{}, fmt.Errorf("normalize: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Dir(path)
	}
	return File(path)
}

// Dir normalizes every *.json file directly under dir, preserving
// file-then-within-file row order.
func Dir(dir string) (tabular.Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return tabular.Table{}, fmt.Errorf("normalize: read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out tabular.Table
	for _, name := range names {
		t, err := File(filepath.Join(dir, name))
		if err != nil {
			return tabular.Table{}, err
		}
		out = concat(out, t)
	}
	return out, nil
}

// File parses one JSON file and flattens it according to its root shape.
// A parse failure is fatal for the file and is returned wrapped with the
// path; it is never absorbed here.
func File(path string) (tabular.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return tabular.Table{}, fmt.Errorf("normalize: read %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return tabular.Table{}, fmt.Errorf("normalize: parse %s: %w", path, err)
	}

	shape, key := ClassifyRoot(root)
	switch shape {
	case ShapeRecordList:
		t, err := fromList(root.([]any))
		if err != nil {
			return tabular.Table{}, fmt.Errorf("normalize: %s: %w", path, err)
		}
		return t, nil
	case ShapeEnvelope:
		t, err := fromList(root.(map[string]any)[key].([]any))
		if err != nil {
			return tabular.Table{}, fmt.Errorf("normalize: %s: key %q: %w", path, key, err)
		}
		return t, nil
	case ShapeBareObject:
		return fromRecords([]map[string]any{root.(map[string]any)}), nil
	default:
		return tabular.Table{}, nil
	}
}

func fromList(list []any) (tabular.Table, error) {
	records := make([]map[string]any, 0, len(list))
	for i, el := range list {
		if el == nil {
			continue
		}
		obj, ok := el.(map[string]any)
		if !ok {
			return tabular.Table{}, fmt.Errorf("element %d is not an object (got %T)", i, el)
		}
		records = append(records, obj)
	}
	return fromRecords(records), nil
}

// fromRecords flattens each record and aligns all of them on the union
// column set. Keys within a record are visited in sorted order so column
// order is deterministic regardless of map iteration.
func fromRecords(records []map[string]any) tabular.Table {
	var (
		cols   []string
		colIdx = map[string]int{}
		flats  = make([]map[string]any, len(records))
	)

	for i, rec := range records {
		flat := map[string]any{}
		flatten("", rec, flat)
		flats[i] = flat

		keys := make([]string, 0, len(flat))
		for k := range flat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := colIdx[k]; !ok {
				colIdx[k] = len(cols)
				cols = append(cols, k)
			}
		}
	}

	rows := make([][]any, len(flats))
	for i, flat := range flats {
		row := make([]any, len(cols))
		for k, v := range flat {
			row[colIdx[k]] = v
		}
		rows[i] = row
	}
	return tabular.Table{Columns: cols, Rows: rows}
}

// flatten walks a record, dotting nested object keys into the parent
// name. Lists of strings join with commas; any other list is kept as its
// JSON text so nothing is silently dropped.
func flatten(prefix string, obj map[string]any, into map[string]any) {
	for k, v := range obj {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(name, t, into)
		case []any:
			into[name] = flattenList(t)
		case json.Number:
			into[name] = toDecimal(t)
		default:
			// string, bool or nil
			into[name] = t
		}
	}
}

func flattenList(list []any) any {
	if len(list) == 0 {
		return ""
	}
	ss := make([]string, 0, len(list))
	for _, el := range list {
		s, ok := el.(string)
		if !ok {
			// Mixed or structured list: keep the JSON text.
			raw, err := json.Marshal(list)
			if err != nil {
				return fmt.Sprint(list)
			}
			return string(raw)
		}
		ss = append(ss, s)
	}
	return strings.Join(ss, ",")
}

func toDecimal(n json.Number) any {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return n.String()
	}
	return d
}

// concat appends b under a, unioning the column sets and padding absent
// cells with nil.
func concat(a, b tabular.Table) tabular.Table {
	if a.Empty() && len(a.Columns) == 0 {
		return b
	}
	if b.Empty() && len(b.Columns) == 0 {
		return a
	}

	cols := append([]string{}, a.Columns...)
	colIdx := map[string]int{}
	for i, c := range cols {
		colIdx[c] = i
	}
	for _, c := range b.Columns {
		if _, ok := colIdx[c]; !ok {
			colIdx[c] = len(cols)
			cols = append(cols, c)
		}
	}

	rows := make([][]any, 0, len(a.Rows)+len(b.Rows))
	for _, src := range a.Rows {
		row := make([]any, len(cols))
		copy(row, src)
		rows = append(rows, row)
	}
	for _, src := range b.Rows {
		row := make([]any, len(cols))
		for i, v := range src {
			row[colIdx[b.Columns[i]]] = v
		}
		rows = append(rows, row)
	}
	return tabular.Table{Columns: cols, Rows: rows}
}
