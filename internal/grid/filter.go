package grid

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// matcher holds the prepared (case-folded, set-converted) form of a query
// and filter set so a record slice can be scanned without re-deriving them.
type matcher struct {
	fold       cases.Caser
	query      string
	searchable []Column
	filters    []columnFilter
}

type columnFilter struct {
	column   Column
	accepted map[string]struct{}
}

func newMatcher(query string, active Filters, columns Columns) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.query = m.fold.String(strings.TrimSpace(query))

	for _, c := range columns {
		if c.Searchable {
			m.searchable = append(m.searchable, c)
		}
	}

	// Iterate columns rather than the map so filter evaluation order is
	// deterministic.
	for _, c := range columns {
		values := active[c.Key]
		if len(values) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		m.filters = append(m.filters, columnFilter{column: c, accepted: set})
	}
	return m
}

func (m *matcher) match(rec Record) bool {
	return m.matchText(rec) && m.matchFilters(rec)
}

func (m *matcher) matchText(rec Record) bool {
	if m.query == "" {
		return true
	}
	for _, c := range m.searchable {
		if strings.Contains(m.fold.String(Stringify(c.Value(rec))), m.query) {
			return true
		}
	}
	return false
}

func (m *matcher) matchFilters(rec Record) bool {
	for _, f := range m.filters {
		if !f.accepts(rec) {
			return false
		}
	}
	return true
}

// accepts reports whether any of the record's values for the column is in
// the accepted set. List fields match on any element.
func (f columnFilter) accepts(rec Record) bool {
	for _, v := range Strings(f.column.Value(rec)) {
		if _, ok := f.accepted[v]; ok {
			return true
		}
	}
	return false
}

// Matches reports whether rec satisfies the free-text query and every
// active categorical filter.
//
// The query matches when empty or when its case-folded form is a substring
// of at least one searchable column. Filters are ANDed across columns and
// ORed within a column; a column with no accepted values places no
// constraint. Filters on unknown columns are ignored.
func Matches(rec Record, query string, active Filters, columns Columns) bool {
	return newMatcher(query, active, columns).match(rec)
}

// Filter returns the records that satisfy Matches, in input order. The input
// slice is never modified.
func Filter(records []Record, query string, active Filters, columns Columns) []Record {
	m := newMatcher(query, active, columns)
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if m.match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// FilterOptions returns the distinct values present for column across
// records, list fields flattened, ordered case-insensitively.
func FilterOptions(records []Record, column Column) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for _, v := range Strings(column.Value(rec)) {
			if v == "" {
				continue
			}
			seen[v] = struct{}{}
		}
	}
	opts := sortedKeys(seen)
	sort.SliceStable(opts, func(i, j int) bool {
		return strings.ToLower(opts[i]) < strings.ToLower(opts[j])
	})
	return opts
}

// AllFilterOptions computes FilterOptions for every filterable column.
func AllFilterOptions(records []Record, columns Columns) map[string][]string {
	out := make(map[string][]string)
	for _, c := range columns {
		if c.Filterable {
			out[c.Key] = FilterOptions(records, c)
		}
	}
	return out
}
