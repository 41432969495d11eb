package tabular

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Collision records two source columns whose names fold to the same
// canonical identifier. The later column's cells overwrite the earlier
// ones (last write wins); callers are expected to surface the collision
// rather than let it pass silently.
type Collision struct {
	Earlier   string
	Later     string
	Canonical string
}

// Clean returns a copy of t with canonical column names and trimmed text
// cells, plus any name collisions produced by the fold.
//
// Clean is pure and idempotent: Clean(Clean(t)) == Clean(t).
func Clean(t Table) (Table, []Collision) {
	var (
		cols       []string
		colIdx     = map[string]int{}
		collisions []Collision
		origin     = map[string]string{}
		// source column index -> destination column index
		dest = make([]int, len(t.Columns))
	)

	for i, name := range t.Columns {
		canon := CanonicalName(name)
		if j, ok := colIdx[canon]; ok {
			collisions = append(collisions, Collision{
				Earlier:   origin[canon],
				Later:     name,
				Canonical: canon,
			})
			dest[i] = j
			origin[canon] = name
			continue
		}
		colIdx[canon] = len(cols)
		origin[canon] = name
		dest[i] = len(cols)
		cols = append(cols, canon)
	}

	rows := make([][]any, len(t.Rows))
	for r, src := range t.Rows {
		row := make([]any, len(cols))
		for i, v := range src {
			j := dest[i]
			if v == nil && row[j] != nil {
				// Last write wins, but a nil from the colliding column
				// does not erase an earlier value.
				continue
			}
			if s, ok := v.(string); ok {
				v = strings.TrimSpace(s)
			}
			row[j] = v
		}
		rows[r] = row
	}

	return Table{Columns: cols, Rows: rows}, collisions
}

// fold decomposes characters and strips combining marks so that accented
// letters survive canonicalization as their base letter.
var fold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CanonicalName converts a source column name into a safe destination
// identifier: letters and digits are kept (lower-cased), everything else
// becomes an underscore, runs collapse, ends are trimmed.
//
// Applying CanonicalName twice is stable.
func CanonicalName(name string) string {
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune('_')
		}
	}

	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '_' })
	return strings.Join(parts, "_")
}
