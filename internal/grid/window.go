package grid

// Window computes the half-open row range [start, end) that must be rendered
// for a scrolled viewport over total fixed-height rows. overscan extra rows
// are included on each side so fast scrolling does not flash blank space.
//
// Window is independent of filtering, sorting and selection; it only slices
// an already derived row list.
func Window(total, scrollOffset, viewportHeight, rowHeight, overscan int) (start, end int) {
	if total <= 0 || rowHeight <= 0 || viewportHeight <= 0 {
		return 0, 0
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if overscan < 0 {
		overscan = 0
	}

	first := scrollOffset / rowHeight
	if first >= total {
		return total, total
	}

	visible := viewportHeight / rowHeight
	if viewportHeight%rowHeight != 0 {
		visible++
	}
	// Capped at total so the sums below cannot overflow.
	visible = min(visible, total)
	overscan = min(overscan, total)

	start = max(first-overscan, 0)
	end = first + min(visible+overscan, total-first)
	return start, end
}

// Slice returns the windowed part of rows.
func Slice[T any](rows []T, scrollOffset, viewportHeight, rowHeight, overscan int) []T {
	start, end := Window(len(rows), scrollOffset, viewportHeight, rowHeight, overscan)
	return rows[start:end]
}
