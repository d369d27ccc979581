package grid

import "sort"

// Selection tracks checked rows by record id, never by row index, so
// re-sorting or re-filtering cannot move a check mark onto another record.
// The zero value is an empty selection ready to use.
//
// Selection is not safe for concurrent use; Controller serializes access.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection returns a selection holding ids.
func NewSelection(ids ...string) *Selection {
	s := &Selection{}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s *Selection) add(id string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

// Toggle flips membership of id.
func (s *Selection) Toggle(id string) {
	if s.IsSelected(id) {
		delete(s.ids, id)
		return
	}
	s.add(id)
}

// SelectAll adds every id in visibleIDs. Callers pass the ids of the
// current page, matching spreadsheet-style "select all on this page".
func (s *Selection) SelectAll(visibleIDs []string) {
	for _, id := range visibleIDs {
		s.add(id)
	}
}

// SelectNone clears the selection.
func (s *Selection) SelectNone() {
	s.ids = nil
}

// IsSelected reports whether id is selected.
func (s *Selection) IsSelected(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Count returns the number of selected ids.
func (s *Selection) Count() int {
	return len(s.ids)
}

// IDs returns a sorted snapshot of the selected ids.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return naturalCompare(out[i], out[j]) < 0
	})
	return out
}

// Reconcile drops ids that are not in present and returns how many were
// dropped. Run after the record set changes so no selection dangles.
func (s *Selection) Reconcile(present map[string]struct{}) int {
	dropped := 0
	for id := range s.ids {
		if _, ok := present[id]; !ok {
			delete(s.ids, id)
			dropped++
		}
	}
	return dropped
}

// Clone returns an independent copy.
func (s *Selection) Clone() *Selection {
	return NewSelection(s.IDs()...)
}
