package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/folio/internal/grid"
	"github.com/JonMunkholm/folio/internal/store"
)

var (
	// ErrFallbackRecord is returned for writes to built-in fallback records.
	ErrFallbackRecord = errors.New("built-in fallback record is read-only")

	// ErrUnknownCollection is returned for collection keys with no definition.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrFieldNotBulkEditable is returned by BulkUpdate for fields outside
	// the collection's BulkFields.
	ErrFieldNotBulkEditable = errors.New("field is not bulk editable")
)

// ExportScope selects which rows an export covers.
type ExportScope string

const (
	ScopeAll      ExportScope = "all"      // every filtered row, all pages
	ScopePage     ExportScope = "page"     // current page only
	ScopeSelected ExportScope = "selected" // selected rows
)

// ParseExportScope parses a scope name. Empty means ScopeAll.
func ParseExportScope(s string) (ExportScope, error) {
	switch ExportScope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeAll, "":
		return ScopeAll, nil
	case ScopePage:
		return ScopePage, nil
	case ScopeSelected:
		return ScopeSelected, nil
	default:
		return "", fmt.Errorf("unknown export scope %q", s)
	}
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	PageSize int
	Logger   *slog.Logger
	Now      func() time.Time
}

// Manager binds one collection's table state to the store. It owns the
// record cache; the controller only ever sees copies.
type Manager struct {
	def    CollectionDefinition
	store  store.Store
	audit  *AuditLog
	table  *grid.Controller
	logger *slog.Logger

	mu          sync.RWMutex
	records     []grid.Record
	byID        map[string]grid.Record
	fallback    bool
	refreshedAt time.Time
	generation  uint64
	applied     uint64
	now         func() time.Time
}

// NewManager creates a manager for def. The table is empty until Refresh.
func NewManager(def CollectionDefinition, s store.Store, audit *AuditLog, opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger = logger.With("collection", def.Info.Key)

	return &Manager{
		def:    def,
		store:  s,
		audit:  audit,
		logger: logger,
		now:    now,
		byID:   make(map[string]grid.Record),
		table: grid.NewController(def.Columns,
			grid.WithPageSize(opts.PageSize),
			grid.WithName(def.Info.Key),
			grid.WithClock(now),
			grid.WithLogger(logger),
		),
	}
}

// Definition returns the collection definition.
func (m *Manager) Definition() CollectionDefinition { return m.def }

// Key returns the collection key.
func (m *Manager) Key() string { return m.def.Info.Key }

// Table returns the table controller.
func (m *Manager) Table() *grid.Controller { return m.table }

// Refresh reloads the collection from the store. When the store has no
// records the built-in fallback records are shown instead. When the store
// fails and nothing was loaded before, the fallback records are shown and
// the error is still returned so the caller can show a banner. Results of a
// refresh whose context was cancelled, or that was overtaken by a newer
// refresh, are discarded.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	start := m.now()
	docs, err := m.store.List(ctx, m.def.Info.Key)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen < m.applied {
		return err
	}
	m.applied = gen

	if err != nil {
		if len(m.records) == 0 && len(m.def.Fallback) > 0 {
			m.setRecordsLocked(m.fallbackRecords(), true)
			m.logger.Warn("store unavailable, showing fallback records", "error", err)
		}
		return fmt.Errorf("refresh %s: %w", m.def.Info.Key, err)
	}

	if len(docs) == 0 && len(m.def.Fallback) > 0 {
		m.setRecordsLocked(m.fallbackRecords(), true)
	} else {
		records := make([]grid.Record, len(docs))
		for i, doc := range docs {
			records[i] = recordFromDocument(doc)
		}
		m.setRecordsLocked(records, false)
	}

	m.logger.Debug("collection refreshed",
		"records", len(m.records),
		"fallback", m.fallback,
		"duration_ms", m.now().Sub(start).Milliseconds(),
	)
	return nil
}

// setRecordsLocked replaces the cache and hands a copy to the controller.
// Caller holds m.mu.
func (m *Manager) setRecordsLocked(records []grid.Record, fallback bool) {
	m.records = records
	m.fallback = fallback
	m.refreshedAt = m.now()
	m.byID = make(map[string]grid.Record, len(records))
	for _, rec := range records {
		m.byID[rec.ID] = rec
	}
	m.table.SetRecords(records)
}

func (m *Manager) fallbackRecords() []grid.Record {
	out := make([]grid.Record, len(m.def.Fallback))
	for i, rec := range m.def.Fallback {
		out[i] = grid.Record{
			ID:     rec.ID,
			Origin: grid.OriginLocalFallback,
			Fields: maps.Clone(rec.Fields),
		}
	}
	return out
}

// Records returns a copy of the cached records in store order.
func (m *Manager) Records() []grid.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// Record returns one cached record.
func (m *Manager) Record(id string) (grid.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	return rec, ok
}

// Summary describes the collection for listings.
func (m *Manager) Summary() CollectionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CollectionSummary{
		Key:      m.def.Info.Key,
		Label:    m.def.Info.Label,
		Public:   m.def.Info.Public,
		Records:  len(m.records),
		Fallback: m.fallback,
	}
}

// checkMutable fails with ErrFallbackRecord when any id is a fallback record.
func (m *Manager) checkMutable(ids ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range ids {
		if rec, ok := m.byID[id]; ok && !rec.Mutable() {
			return fmt.Errorf("%w: %s", ErrFallbackRecord, id)
		}
	}
	return nil
}

// Create validates fields, applies defaults and stores a new record.
func (m *Manager) Create(ctx context.Context, fields map[string]any) (grid.Record, error) {
	input := make(map[string]any, len(fields)+len(m.def.Defaults))
	maps.Copy(input, m.def.Defaults)
	maps.Copy(input, fields)

	clean, err := ValidateFields(m.def.FieldSpecs, input, false)
	if err != nil {
		return grid.Record{}, err
	}

	doc, err := m.store.Create(ctx, m.def.Info.Key, clean)
	if err != nil {
		return grid.Record{}, err
	}

	m.audit.record(ctx, AuditLogParams{
		Action:       ActionCreate,
		Collection:   m.def.Info.Key,
		RecordIDs:    []string{doc.ID},
		RowsAffected: 1,
	})
	m.refreshAfterWrite(ctx)

	return recordFromDocument(doc), nil
}

// Update validates patch and merges it into the stored record. Empty values
// remove optional fields.
func (m *Manager) Update(ctx context.Context, id string, patch map[string]any) error {
	if err := m.checkMutable(id); err != nil {
		return err
	}

	clean, err := ValidateFields(m.def.FieldSpecs, patch, true)
	if err != nil {
		return err
	}
	if len(clean) == 0 {
		return nil
	}

	if err := m.store.Update(ctx, m.def.Info.Key, id, clean); err != nil {
		return err
	}

	m.audit.record(ctx, AuditLogParams{
		Action:       ActionUpdate,
		Collection:   m.def.Info.Key,
		RecordIDs:    []string{id},
		Field:        strings.Join(slices.Sorted(maps.Keys(clean)), ","),
		RowsAffected: 1,
	})
	m.refreshAfterWrite(ctx)
	return nil
}

// Delete removes one record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.checkMutable(id); err != nil {
		return err
	}

	if err := m.store.Delete(ctx, m.def.Info.Key, id); err != nil {
		return err
	}

	m.audit.record(ctx, AuditLogParams{
		Action:       ActionDelete,
		Collection:   m.def.Info.Key,
		RecordIDs:    []string{id},
		RowsAffected: 1,
	})
	m.refreshAfterWrite(ctx)
	return nil
}

// Duplicate stores a copy of a record under a new id with its title field
// suffixed " (copy)". Fallback records may be duplicated; the copy is a
// regular stored record.
func (m *Manager) Duplicate(ctx context.Context, id string) (grid.Record, error) {
	src, ok := m.Record(id)
	if !ok {
		return grid.Record{}, fmt.Errorf("duplicate %s/%s: %w", m.def.Info.Key, id, store.ErrNotFound)
	}

	fields := make(map[string]any, len(src.Fields))
	for _, spec := range m.def.FieldSpecs {
		if v, ok := src.Fields[spec.Name]; ok {
			fields[spec.Name] = v
		}
	}
	if tf := m.def.Info.TitleField; tf != "" {
		if title := grid.Stringify(fields[tf]); title != "" {
			fields[tf] = title + " (copy)"
		}
	}

	clean, err := ValidateFields(m.def.FieldSpecs, fields, false)
	if err != nil {
		return grid.Record{}, err
	}

	doc, err := m.store.Create(ctx, m.def.Info.Key, clean)
	if err != nil {
		return grid.Record{}, err
	}

	m.audit.record(ctx, AuditLogParams{
		Action:       ActionDuplicate,
		Collection:   m.def.Info.Key,
		RecordIDs:    []string{id, doc.ID},
		RowsAffected: 1,
	})
	m.refreshAfterWrite(ctx)

	return recordFromDocument(doc), nil
}

// BulkDelete deletes the selected records in one batched store write. The
// store error is returned unchanged and the selection kept; on success the
// selection is cleared and the collection refreshed.
func (m *Manager) BulkDelete(ctx context.Context) (int, error) {
	var deleted int
	err := m.table.BulkDelete(ctx, func(ctx context.Context, ids []string) error {
		if err := m.checkMutable(ids...); err != nil {
			return err
		}
		if err := m.store.DeleteMany(ctx, m.def.Info.Key, ids); err != nil {
			return err
		}
		deleted = len(ids)
		m.audit.record(ctx, AuditLogParams{
			Action:       ActionBulkDelete,
			Collection:   m.def.Info.Key,
			RecordIDs:    ids,
			RowsAffected: len(ids),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.refreshAfterWrite(ctx)
	return deleted, nil
}

// BulkUpdate sets field to value on every selected record. Only fields in
// the collection's BulkFields are accepted. Records are updated in id order
// and the first store error stops the run.
func (m *Manager) BulkUpdate(ctx context.Context, field string, value any) (int, error) {
	if !slices.Contains(m.def.BulkFields, field) {
		return 0, fmt.Errorf("%w: %s", ErrFieldNotBulkEditable, field)
	}

	clean, err := ValidateFields(m.def.FieldSpecs, map[string]any{field: value}, true)
	if err != nil {
		return 0, err
	}

	var updated int
	err = m.table.BulkUpdate(ctx, func(ctx context.Context, ids []string) error {
		if err := m.checkMutable(ids...); err != nil {
			return err
		}
		for _, id := range ids {
			if err := m.store.Update(ctx, m.def.Info.Key, id, clean); err != nil {
				return err
			}
			updated++
		}
		return nil
	})

	// Partial runs still changed records.
	if updated > 0 {
		m.audit.record(ctx, AuditLogParams{
			Action:       ActionBulkUpdate,
			Collection:   m.def.Info.Key,
			Field:        field,
			NewValue:     grid.Stringify(clean[field]),
			RowsAffected: updated,
		})
		m.refreshAfterWrite(ctx)
	}
	return updated, err
}

// Export serializes the rows covered by scope. A nil field list uses the
// collection's default export fields.
func (m *Manager) Export(ctx context.Context, format grid.Format, scope ExportScope, fields []string) (grid.ExportFile, error) {
	if fields == nil {
		fields = m.def.ExportKeys()
	}

	var (
		file grid.ExportFile
		err  error
	)
	switch scope {
	case ScopePage:
		file, err = m.table.ExportPage(format, fields)
	case ScopeSelected:
		file, err = m.table.ExportSelected(format, fields)
	default:
		file, err = m.table.ExportVisible(format, fields)
	}
	if err != nil {
		return grid.ExportFile{}, err
	}

	m.audit.record(ctx, AuditLogParams{
		Action:     ActionExport,
		Collection: m.def.Info.Key,
		Reason:     fmt.Sprintf("%s/%s", format, scope),
	})
	return file, nil
}

// Import validates every input first, then stores them in order. onProgress,
// if set, is called after each stored record. One refresh runs at the end.
func (m *Manager) Import(ctx context.Context, inputs []map[string]any, onProgress func(done int)) (int, error) {
	cleaned := make([]map[string]any, len(inputs))
	for i, fields := range inputs {
		input := make(map[string]any, len(fields)+len(m.def.Defaults))
		maps.Copy(input, m.def.Defaults)
		maps.Copy(input, fields)

		clean, err := ValidateFields(m.def.FieldSpecs, input, false)
		if err != nil {
			return 0, fmt.Errorf("%s record %d: %w", m.def.Info.Key, i+1, err)
		}
		cleaned[i] = clean
	}

	var created int
	for _, clean := range cleaned {
		if _, err := m.store.Create(ctx, m.def.Info.Key, clean); err != nil {
			m.refreshAfterWrite(ctx)
			return created, err
		}
		created++
		if onProgress != nil {
			onProgress(created)
		}
	}

	if created > 0 {
		m.audit.record(ctx, AuditLogParams{
			Action:       ActionSeed,
			Collection:   m.def.Info.Key,
			RowsAffected: created,
		})
	}
	m.refreshAfterWrite(ctx)
	return created, nil
}

// refreshAfterWrite reloads the table after a successful write. A failed
// reload leaves the previous snapshot in place.
func (m *Manager) refreshAfterWrite(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil {
		m.logger.Warn("refresh after write failed", "error", err)
	}
}

func recordFromDocument(doc store.Document) grid.Record {
	fields := maps.Clone(doc.Fields)
	if fields == nil {
		fields = map[string]any{}
	}
	return grid.Record{
		ID:     doc.ID,
		Origin: grid.OriginRemote,
		Fields: fields,
	}
}
