package grid

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// comparator compares records under one sort state. A collator is not safe
// for concurrent use, so each Sort call builds its own comparator.
type comparator struct {
	column Column
	known  bool
	state  SortState
	coll   *collate.Collator
}

func newComparator(columns Columns, state SortState) *comparator {
	c := &comparator{
		state: state,
		coll:  collate.New(language.Und, collate.IgnoreCase),
	}
	if state.Active() {
		c.column, c.known = columns.Lookup(state.Column)
	}
	return c
}

// compare returns -1, 0 or 1. Unsorted state and unknown columns compare
// equal without a tie-break so a stable sort leaves the input order intact.
func (c *comparator) compare(a, b Record) int {
	if !c.known {
		return 0
	}

	primary, handled := c.primary(a, b)
	if !handled && c.state.Direction == Descending {
		primary = -primary
	}
	if primary != 0 {
		return primary
	}
	return sign(naturalCompare(a.ID, b.ID))
}

// primary compares the sort column values. handled reports that the result
// is already final with respect to direction (missing dates sort last in
// both directions).
func (c *comparator) primary(a, b Record) (result int, handled bool) {
	va, vb := c.column.Value(a), c.column.Value(b)

	switch c.column.Type {
	case ColumnNumber:
		fa, oka := ParseNumber(va)
		fb, okb := ParseNumber(vb)
		if !oka || !okb {
			return missingLast(oka, okb), true
		}
		return cmpOrdered(fa, fb), false

	case ColumnDate:
		ta, oka := ParseDate(va)
		tb, okb := ParseDate(vb)
		if !oka || !okb {
			return missingLast(oka, okb), true
		}
		return ta.Compare(tb), false

	case ColumnBool:
		ba, _ := ParseBool(va)
		bb, _ := ParseBool(vb)
		switch {
		case ba == bb:
			return 0, false
		case !ba:
			return -1, false
		default:
			return 1, false
		}

	default:
		return sign(c.coll.CompareString(Stringify(va), Stringify(vb))), false
	}
}

// missingLast orders present values before missing ones. Two missing
// values compare equal.
func missingLast(aPresent, bPresent bool) int {
	switch {
	case aPresent == bPresent:
		return 0
	case aPresent:
		return -1
	default:
		return 1
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Compare orders a and b under state.
//
// Text and enum columns use case-insensitive collation, numbers compare
// numerically, dates chronologically with invalid or missing dates last,
// and booleans false before true. Descending flips the primary result.
// Equal primary values fall back to ascending record id, so the order is
// total. Unsorted state or an unknown column key compares equal.
func Compare(a, b Record, columns Columns, state SortState) int {
	return newComparator(columns, state).compare(a, b)
}

// Sort returns a sorted copy of records. The input slice is not modified.
func Sort(records []Record, columns Columns, state SortState) []Record {
	out := slices.Clone(records)
	if out == nil {
		out = []Record{}
	}
	if !state.Active() {
		return out
	}
	cmp := newComparator(columns, state)
	slices.SortStableFunc(out, cmp.compare)
	return out
}

// NextSort advances the three-state sort cycle for a header click:
// a new column sorts ascending, ascending becomes descending, and
// descending clears the sort.
func NextSort(current SortState, column string) SortState {
	if !strings.EqualFold(current.Column, column) {
		return SortState{Column: column, Direction: Ascending}
	}
	if current.Direction == Ascending {
		return SortState{Column: current.Column, Direction: Descending}
	}
	return SortState{}
}
