package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/folio/internal/core"
	"github.com/JonMunkholm/folio/internal/grid"
	"github.com/JonMunkholm/folio/internal/logging"
)

// maxBodyBytes caps JSON request bodies on the admin API.
const maxBodyBytes = 1 << 20

// columnInfo is the client-facing description of a column.
type columnInfo struct {
	Key        string `json:"key"`
	Header     string `json:"header"`
	Type       string `json:"type"`
	Searchable bool   `json:"searchable"`
	Filterable bool   `json:"filterable"`
	Sortable   bool   `json:"sortable"`
}

// viewResponse is the table state returned by every state-changing call.
type viewResponse struct {
	Collection string              `json:"collection"`
	Label      string              `json:"label"`
	Fallback   bool                `json:"fallback"`
	Columns    []columnInfo        `json:"columns"`
	Display    []map[string]string `json:"display"`
	View       grid.View           `json:"view"`
	Warning    *core.UserMessage   `json:"warning,omitempty"`
}

func columnInfos(cols grid.Columns) []columnInfo {
	out := make([]columnInfo, len(cols))
	for i, c := range cols {
		out[i] = columnInfo{
			Key:        c.Key,
			Header:     c.Header,
			Type:       c.Type.String(),
			Searchable: c.Searchable,
			Filterable: c.Filterable,
			Sortable:   c.Sortable,
		}
	}
	return out
}

// displayRows renders each row's cells for humans, keyed by column.
func displayRows(cols grid.Columns, rows []grid.Record) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, rec := range rows {
		cells := make(map[string]string, len(cols))
		for _, c := range cols {
			cells[c.Key] = c.Display(rec)
		}
		out[i] = cells
	}
	return out
}

func buildView(m *core.Manager) viewResponse {
	def := m.Definition()
	view := m.Table().View()
	return viewResponse{
		Collection: def.Info.Key,
		Label:      def.Info.Label,
		Fallback:   m.Summary().Fallback,
		Columns:    columnInfos(def.Columns),
		Display:    displayRows(def.Columns, view.Rows),
		View:       view,
	}
}

// manager resolves the {collection} URL parameter.
func (s *Server) manager(r *http.Request) (*core.Manager, error) {
	return s.service.Manager(chi.URLParam(r, "collection"))
}

// decodeBody reads a JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// collectionHandler handles a request for one resolved collection.
type collectionHandler func(w http.ResponseWriter, r *http.Request, m *core.Manager)

// withManager resolves the {collection} parameter before calling fn.
func (s *Server) withManager(fn collectionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.manager(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		fn(w, r, m)
	}
}

// handleListCollections lists every collection with record counts.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": s.service.Collections(),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	writeJSON(w, http.StatusOK, buildView(m))
}

// handleRows returns the window of filtered, sorted rows visible in a
// scrolled viewport, for clients that render every row instead of pages.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	q := r.URL.Query()
	scroll := parseIntParam(q.Get("scroll"), 0)
	height := parseIntParam(q.Get("height"), 600)
	rowHeight := parseIntParam(q.Get("row_height"), 32)
	overscan := parseIntParam(q.Get("overscan"), 5)

	rows := m.Table().FilteredRows()
	start, end := grid.Window(len(rows), scroll, height, rowHeight, overscan)
	window := rows[start:end]

	writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(rows),
		"start":   start,
		"end":     end,
		"rows":    window,
		"display": displayRows(m.Definition().Columns, window),
	})
}

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	m.Table().SetQuery(req.Query)
	writeJSON(w, http.StatusOK, buildView(m))
}

// handleSetFilter sets one column's accepted values. An empty list clears
// that column; {"clear": true} clears every filter.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	var req struct {
		Column string   `json:"column"`
		Values []string `json:"values"`
		Clear  bool     `json:"clear"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Clear {
		m.Table().ClearFilters()
	} else {
		m.Table().SetFilter(req.Column, req.Values)
	}
	writeJSON(w, http.StatusOK, buildView(m))
}

// handleSetSort advances the sort cycle of a column.
func (s *Server) handleSetSort(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	var req struct {
		Column string `json:"column"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	m.Table().SetSort(req.Column)
	writeJSON(w, http.StatusOK, buildView(m))
}

func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	var req struct {
		Page int `json:"page"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	m.Table().SetPage(req.Page)
	writeJSON(w, http.StatusOK, buildView(m))
}

// handleRefresh reloads the collection. A store failure still returns the
// view (with fallback records where there is nothing cached) plus a warning.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	err := m.Refresh(r.Context())
	resp := buildView(m)
	if err != nil {
		logging.WithFields(r.Context(), "collection", m.Key()).Warn("refresh failed", "error", err)
		msg := core.MapError(err)
		resp.Warning = &msg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToggleSelect(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	if err := m.Table().Toggle(chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buildView(m))
}

func (s *Server) handleSelectPage(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	if err := m.Table().SelectPage(); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buildView(m))
}

func (s *Server) handleSelectNone(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	if err := m.Table().SelectNone(); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buildView(m))
}

// handleBulkDelete deletes the selected records. On failure the selection
// is kept so the action can be retried.
func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	deleted, err := m.BulkDelete(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "collection", m.Key()).Info("bulk delete", "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": deleted,
		"view":    buildView(m),
	})
}

// handleBulkUpdate sets one field on every selected record.
func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	var req struct {
		Field string `json:"field"`
		Value any    `json:"value"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Field == "" {
		respondError(w, r, fmt.Errorf("%w: missing field", errBadRequest))
		return
	}

	updated, err := m.BulkUpdate(r.Context(), req.Field, req.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
		"view":    buildView(m),
	})
}

// handleExport downloads the rows in scope as CSV or JSON.
// Query: format=csv|json, scope=all|page|selected, fields=a,b,c
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	q := r.URL.Query()

	format := grid.FormatCSV
	if f := q.Get("format"); f != "" {
		var err error
		if format, err = grid.ParseFormat(f); err != nil {
			respondError(w, r, err)
			return
		}
	}
	scope, err := core.ParseExportScope(q.Get("scope"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	var fields []string
	if f := q.Get("fields"); f != "" {
		fields = splitList(f)
	}

	file, err := m.Export(r.Context(), format, scope, fields)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	_, _ = w.Write([]byte(file.Body))
}

type recordRequest struct {
	Fields map[string]any `json:"fields"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	var req recordRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	rec, err := m.Create(r.Context(), req.Fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	id := chi.URLParam(r, "id")
	var req recordRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := m.Update(r.Context(), id, req.Fields); err != nil {
		respondError(w, r, err)
		return
	}
	rec, _ := m.Record(id)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	if err := m.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateRecord(w http.ResponseWriter, r *http.Request, m *core.Manager) {
	rec, err := m.Duplicate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleAuditLog lists audit entries, newest first.
// Query: collection, action, since (RFC 3339 or YYYY-MM-DD), limit
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := core.AuditLogOptions{
		Collection: q.Get("collection"),
		Action:     core.AuditAction(q.Get("action")),
		Limit:      parseIntParam(q.Get("limit"), core.DefaultAuditLimit),
	}
	if since := q.Get("since"); since != "" {
		t, ok := grid.ParseDate(since)
		if !ok {
			respondError(w, r, fmt.Errorf("%w: invalid date format for since: %q", errBadRequest, since))
			return
		}
		opts.Since = t
	}

	start := time.Now()
	entries, err := s.service.Audit().List(r.Context(), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Debug("audit log listed",
		"entries", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// parseIntParam parses a non-negative integer parameter with a default.
func parseIntParam(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// splitList splits a comma-separated parameter, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
