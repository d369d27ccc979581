package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/JonMunkholm/folio/internal/grid"
	"github.com/JonMunkholm/folio/internal/store"
)

// AuditCollection is the store collection holding audit entries.
const AuditCollection = "_audit"

// DefaultAuditLimit caps audit queries without an explicit limit.
const DefaultAuditLimit = 100

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionCreate     AuditAction = "record_create"
	ActionUpdate     AuditAction = "record_update"
	ActionDelete     AuditAction = "record_delete"
	ActionDuplicate  AuditAction = "record_duplicate"
	ActionBulkDelete AuditAction = "bulk_delete"
	ActionBulkUpdate AuditAction = "bulk_update"
	ActionExport     AuditAction = "export"
	ActionSeed       AuditAction = "seed"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string        `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	Collection   string        `json:"collection"`
	RecordIDs    []string      `json:"recordIds,omitempty"`
	Field        string        `json:"field,omitempty"`
	NewValue     string        `json:"newValue,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	Actor        string        `json:"actor,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	RequestID    string        `json:"requestId,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
// Caller details are read from the context.
type AuditLogParams struct {
	Action       AuditAction
	Collection   string
	RecordIDs    []string
	Field        string
	NewValue     string
	RowsAffected int
	Reason       string
}

// AuditLogOptions filters audit queries.
type AuditLogOptions struct {
	Collection string
	Action     AuditAction
	Since      time.Time
	Limit      int
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionBulkDelete, ActionBulkUpdate, ActionDelete, ActionSeed:
		return SeverityHigh
	case ActionExport:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditLog records mutations as documents in the store.
type AuditLog struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLog creates an audit log on s.
func NewAuditLog(s store.Store, logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{store: s, logger: logger, now: time.Now}
}

// Log writes an audit entry. Failures are returned but callers treat the
// audit trail as best effort.
func (a *AuditLog) Log(ctx context.Context, params AuditLogParams) (*AuditEntry, error) {
	meta := RequestMetaFromContext(ctx)
	entry := AuditEntry{
		Action:       params.Action,
		Severity:     determineSeverity(params.Action),
		Collection:   params.Collection,
		RecordIDs:    params.RecordIDs,
		Field:        params.Field,
		NewValue:     params.NewValue,
		RowsAffected: params.RowsAffected,
		Actor:        meta.Actor,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		RequestID:    meta.RequestID,
		Reason:       params.Reason,
		CreatedAt:    a.now().UTC(),
	}

	doc, err := a.store.Create(ctx, AuditCollection, entry.fields())
	if err != nil {
		return nil, fmt.Errorf("write audit entry: %w", err)
	}
	entry.ID = doc.ID
	return &entry, nil
}

// record logs an entry and only warns on failure.
func (a *AuditLog) record(ctx context.Context, params AuditLogParams) {
	if _, err := a.Log(ctx, params); err != nil {
		a.logger.Warn("audit entry not recorded",
			"action", params.Action,
			"collection", params.Collection,
			"error", err,
		)
	}
}

// List returns matching entries, newest first.
func (a *AuditLog) List(ctx context.Context, opts AuditLogOptions) ([]AuditEntry, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultAuditLimit
	}

	docs, err := a.store.List(ctx, AuditCollection)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	entries := make([]AuditEntry, 0, len(docs))
	for _, doc := range docs {
		e := auditEntryFromDocument(doc)
		if opts.Collection != "" && e.Collection != opts.Collection {
			continue
		}
		if opts.Action != "" && e.Action != opts.Action {
			continue
		}
		if !opts.Since.IsZero() && e.CreatedAt.Before(opts.Since) {
			continue
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// Prune deletes entries created before cutoff and returns how many went.
func (a *AuditLog) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	docs, err := a.store.List(ctx, AuditCollection)
	if err != nil {
		return 0, fmt.Errorf("list audit entries: %w", err)
	}

	var stale []string
	for _, doc := range docs {
		if auditEntryFromDocument(doc).CreatedAt.Before(cutoff) {
			stale = append(stale, doc.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := a.store.DeleteMany(ctx, AuditCollection, stale); err != nil {
		return 0, fmt.Errorf("prune audit entries: %w", err)
	}
	return len(stale), nil
}

func (e AuditEntry) fields() map[string]any {
	f := map[string]any{
		"action":     string(e.Action),
		"severity":   string(e.Severity),
		"collection": e.Collection,
		"created_at": e.CreatedAt.Format(time.RFC3339Nano),
	}
	if len(e.RecordIDs) > 0 {
		f["record_ids"] = e.RecordIDs
	}
	if e.RowsAffected > 0 {
		f["rows_affected"] = e.RowsAffected
	}
	for k, v := range map[string]string{
		"field":      e.Field,
		"new_value":  e.NewValue,
		"actor":      e.Actor,
		"ip_address": e.IPAddress,
		"user_agent": e.UserAgent,
		"request_id": e.RequestID,
		"reason":     e.Reason,
	} {
		if v != "" {
			f[k] = v
		}
	}
	return f
}

func auditEntryFromDocument(doc store.Document) AuditEntry {
	str := func(key string) string { return grid.Stringify(doc.Fields[key]) }

	e := AuditEntry{
		ID:         doc.ID,
		Action:     AuditAction(str("action")),
		Severity:   AuditSeverity(str("severity")),
		Collection: str("collection"),
		RecordIDs:  grid.Strings(doc.Fields["record_ids"]),
		Field:      str("field"),
		NewValue:   str("new_value"),
		Actor:      str("actor"),
		IPAddress:  str("ip_address"),
		UserAgent:  str("user_agent"),
		RequestID:  str("request_id"),
		Reason:     str("reason"),
		CreatedAt:  doc.CreatedAt,
	}
	if n, ok := grid.ParseNumber(doc.Fields["rows_affected"]); ok {
		e.RowsAffected = int(n)
	}
	if t, err := time.Parse(time.RFC3339Nano, str("created_at")); err == nil {
		e.CreatedAt = t
	}
	return e
}
