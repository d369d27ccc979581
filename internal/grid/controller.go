package grid

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultPageSize is the number of rows per page when none is configured.
const DefaultPageSize = 10

var (
	// ErrBulkInFlight is returned when a bulk action is already running on
	// the controller, or when the selection is changed during one.
	ErrBulkInFlight = errors.New("bulk action already in progress")

	// ErrEmptySelection is returned by bulk actions with nothing selected.
	ErrEmptySelection = errors.New("no rows selected")
)

// BulkFunc performs a bulk side effect on a fixed set of record ids.
type BulkFunc func(ctx context.Context, ids []string) error

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the page size. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithName sets the collection name used for export filenames.
func WithName(name string) Option {
	return func(c *Controller) {
		if name != "" {
			c.name = name
		}
	}
}

// WithClock overrides time.Now for export timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for bulk action events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller owns the table state for one collection view: query, filters,
// sort, page and selection over a read-only snapshot of records. The visible
// rows are always derived as paginate(sort(filter(records))) and never
// stored.
//
// All methods are safe for concurrent use. Bulk callbacks run without the
// controller lock held, so reads keep working while a bulk action is in
// flight.
type Controller struct {
	columns  Columns
	pageSize int
	name     string
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	records   []Record
	present   map[string]struct{}
	options   map[string][]string
	query     string
	filters   Filters
	sort      SortState
	page      int
	selection *Selection
	inFlight  bool
}

// NewController creates a controller for columns with default state:
// no query, no filters, unsorted, first page, nothing selected.
func NewController(columns Columns, opts ...Option) *Controller {
	c := &Controller{
		columns:   append(Columns(nil), columns...),
		pageSize:  DefaultPageSize,
		name:      "export",
		now:       time.Now,
		logger:    slog.Default(),
		present:   make(map[string]struct{}),
		options:   make(map[string][]string),
		filters:   make(Filters),
		selection: NewSelection(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Columns returns the column definitions.
func (c *Controller) Columns() Columns {
	return append(Columns(nil), c.columns...)
}

// View is a derived snapshot of the table.
type View struct {
	Rows          []Record            `json:"rows"`
	TotalRecords  int                 `json:"totalRecords"`
	TotalFiltered int                 `json:"totalFiltered"`
	Page          int                 `json:"page"`
	PageSize      int                 `json:"pageSize"`
	PageCount     int                 `json:"pageCount"`
	Query         string              `json:"query"`
	Filters       Filters             `json:"filters"`
	Sort          SortState           `json:"sort"`
	Selected      []string            `json:"selected"`
	SelectedCount int                 `json:"selectedCount"`
	Options       map[string][]string `json:"options"`
	BulkInFlight  bool                `json:"bulkInFlight"`
}

// SetRecords replaces the record snapshot. Selected ids that no longer exist
// are dropped, filter values that are no longer offered are removed and the
// page is clamped to the new page count. The slice is copied.
func (c *Controller) SetRecords(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append([]Record(nil), records...)
	c.present = make(map[string]struct{}, len(records))
	for _, rec := range c.records {
		c.present[rec.ID] = struct{}{}
	}
	c.options = AllFilterOptions(c.records, c.columns)

	for key, values := range c.filters {
		kept := keepOffered(values, c.options[key])
		if len(kept) == 0 {
			delete(c.filters, key)
			continue
		}
		c.filters[key] = kept
	}

	if dropped := c.selection.Reconcile(c.present); dropped > 0 {
		c.logger.Debug("selection reconciled", "table", c.name, "dropped", dropped)
	}

	c.page = c.clampPage(c.page, len(c.filtered()))
}

// keepOffered returns the values that appear in offered, preserving order
// and dropping duplicates.
func keepOffered(values, offered []string) []string {
	allowed := make(map[string]struct{}, len(offered))
	for _, o := range offered {
		allowed[o] = struct{}{}
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := allowed[v]; !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SetQuery sets the free-text query.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.query = q
	c.resetPageIfBeyond()
}

// SetFilter sets the accepted values for a filterable column. Values not
// present in the current record set are discarded; an empty list clears the
// column's filter. Unknown or non-filterable columns are ignored.
func (c *Controller) SetFilter(key string, values []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.columns.Lookup(key)
	if !ok || !col.Filterable {
		return
	}

	kept := keepOffered(values, c.options[col.Key])
	if len(kept) == 0 {
		delete(c.filters, col.Key)
	} else {
		c.filters[col.Key] = kept
	}
	c.resetPageIfBeyond()
}

// ClearFilters removes every active filter.
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filters = make(Filters)
	c.resetPageIfBeyond()
}

// SetSort advances the sort cycle for a column header click: unsorted ->
// ascending -> descending -> unsorted. Clicking another column starts it at
// ascending. Unknown or non-sortable columns are ignored.
func (c *Controller) SetSort(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.columns.Lookup(key)
	if !ok || !col.Sortable {
		return
	}
	c.sort = NextSort(c.sort, col.Key)
}

// Sort returns the active sort state.
func (c *Controller) Sort() SortState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sort
}

// SetPage moves to page p (0-based), clamped to the valid range.
func (c *Controller) SetPage(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.page = c.clampPage(p, len(c.filtered()))
}

// Page returns the current page (0-based).
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Toggle flips the selection of one record. Ids not in the current record
// set are ignored.
func (c *Controller) Toggle(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrBulkInFlight
	}
	if _, ok := c.present[id]; !ok {
		return nil
	}
	c.selection.Toggle(id)
	return nil
}

// SelectPage selects every row on the current page.
func (c *Controller) SelectPage() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrBulkInFlight
	}
	rows := c.pageRows(c.sorted())
	ids := make([]string, len(rows))
	for i, rec := range rows {
		ids[i] = rec.ID
	}
	c.selection.SelectAll(ids)
	return nil
}

// SelectNone clears the selection.
func (c *Controller) SelectNone() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrBulkInFlight
	}
	c.selection.SelectNone()
	return nil
}

// IsSelected reports whether id is selected.
func (c *Controller) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.IsSelected(id)
}

// SelectedIDs returns a sorted snapshot of the selection.
func (c *Controller) SelectedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.IDs()
}

// SelectedCount returns the number of selected records.
func (c *Controller) SelectedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Count()
}

// SelectedRecords returns the selected records in snapshot order.
func (c *Controller) SelectedRecords() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Record, 0, c.selection.Count())
	for _, rec := range c.records {
		if c.selection.IsSelected(rec.ID) {
			out = append(out, rec)
		}
	}
	return out
}

// Reset restores the default state: no query, no filters, unsorted, first
// page, empty selection. The record snapshot is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.query = ""
	c.filters = make(Filters)
	c.sort = SortState{}
	c.page = 0
	c.selection.SelectNone()
}

// View derives the current table view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	sorted := c.sorted()
	rows := c.pageRows(sorted)

	options := make(map[string][]string, len(c.options))
	for k, v := range c.options {
		options[k] = append([]string(nil), v...)
	}

	return View{
		Rows:          rows,
		TotalRecords:  len(c.records),
		TotalFiltered: len(sorted),
		Page:          c.page,
		PageSize:      c.pageSize,
		PageCount:     c.pageCount(len(sorted)),
		Query:         c.query,
		Filters:       c.filters.Clone(),
		Sort:          c.sort,
		Selected:      c.selection.IDs(),
		SelectedCount: c.selection.Count(),
		Options:       options,
		BulkInFlight:  c.inFlight,
	}
}

// VisibleRows returns the rows of the current page.
func (c *Controller) VisibleRows() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageRows(c.sorted())
}

// FilteredRows returns every row matching the query and filters, sorted,
// across all pages.
func (c *Controller) FilteredRows() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sorted()
}

// TotalFiltered returns the number of rows matching the query and filters.
func (c *Controller) TotalFiltered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.filtered())
}

// BulkDelete runs onDelete over a snapshot of the selected ids. Only one
// bulk action may run at a time. A callback error is returned unchanged and
// the selection is left intact; on success the selection is cleared. The
// caller refreshes the records afterwards.
func (c *Controller) BulkDelete(ctx context.Context, onDelete BulkFunc) error {
	return c.runBulk(ctx, "delete", onDelete, true)
}

// BulkUpdate runs onUpdate over a snapshot of the selected ids with the same
// single-flight discipline as BulkDelete. The selection is kept on success so
// further actions can follow.
func (c *Controller) BulkUpdate(ctx context.Context, onUpdate BulkFunc) error {
	return c.runBulk(ctx, "update", onUpdate, false)
}

func (c *Controller) runBulk(ctx context.Context, action string, fn BulkFunc, clearOnSuccess bool) error {
	ids, err := c.beginBulk()
	if err != nil {
		return err
	}
	defer c.endBulk()

	start := c.now()
	if err := fn(ctx, ids); err != nil {
		c.logger.Warn("bulk action failed",
			"table", c.name,
			"action", action,
			"ids", len(ids),
			"error", err,
		)
		return err
	}

	if clearOnSuccess {
		c.mu.Lock()
		c.selection.SelectNone()
		c.mu.Unlock()
	}

	c.logger.Info("bulk action completed",
		"table", c.name,
		"action", action,
		"ids", len(ids),
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return nil
}

func (c *Controller) beginBulk() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return nil, ErrBulkInFlight
	}
	ids := c.selection.IDs()
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	c.inFlight = true
	return ids, nil
}

func (c *Controller) endBulk() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// ExportVisible serializes every filtered, sorted row (all pages) projected
// onto fields. A nil field list exports every column.
func (c *Controller) ExportVisible(format Format, fields []string) (ExportFile, error) {
	return c.export(c.FilteredRows(), format, fields)
}

// ExportPage serializes only the rows of the current page.
func (c *Controller) ExportPage(format Format, fields []string) (ExportFile, error) {
	return c.export(c.VisibleRows(), format, fields)
}

// ExportSelected serializes the selected rows.
func (c *Controller) ExportSelected(format Format, fields []string) (ExportFile, error) {
	return c.export(c.SelectedRecords(), format, fields)
}

func (c *Controller) export(rows []Record, format Format, fields []string) (ExportFile, error) {
	if fields == nil {
		fields = c.columns.Keys()
	}
	now := c.now()
	body, err := Serialize(rows, fields, format, now)
	if err != nil {
		return ExportFile{}, err
	}
	return NewExportFile(c.name, format, body, now), nil
}

// filtered applies the query and filters. Caller holds c.mu.
func (c *Controller) filtered() []Record {
	return Filter(c.records, c.query, c.filters, c.columns)
}

// sorted applies filter then sort. Caller holds c.mu.
func (c *Controller) sorted() []Record {
	return Sort(c.filtered(), c.columns, c.sort)
}

// pageRows slices one page out of rows. Caller holds c.mu.
func (c *Controller) pageRows(rows []Record) []Record {
	start := c.page * c.pageSize
	if start >= len(rows) {
		return []Record{}
	}
	end := min(start+c.pageSize, len(rows))
	return append([]Record(nil), rows[start:end]...)
}

func (c *Controller) pageCount(total int) int {
	return max(1, (total+c.pageSize-1)/c.pageSize)
}

func (c *Controller) clampPage(p, total int) int {
	return max(0, min(p, c.pageCount(total)-1))
}

// resetPageIfBeyond returns to the first page when the filtered rows no
// longer reach the current page. Caller holds c.mu.
func (c *Controller) resetPageIfBeyond() {
	if c.page > 0 && len(c.filtered()) <= c.page*c.pageSize {
		c.page = 0
	}
}
