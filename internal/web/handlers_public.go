package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/folio/internal/core"
	"github.com/JonMunkholm/folio/internal/grid"
	"github.com/JonMunkholm/folio/internal/web/templates"
)

// siteTitle heads the public page.
const siteTitle = "Folio"

// publicRecord is a record as shown to visitors.
type publicRecord struct {
	ID     string         `json:"id"`
	Sample bool           `json:"sample,omitempty"`
	Fields map[string]any `json:"fields"`
}

// publicManager returns the manager of a public collection. Private
// collections look the same as unknown ones.
func (s *Server) publicManager(key string) (*core.Manager, error) {
	m, err := s.service.Manager(key)
	if err != nil {
		return nil, err
	}
	if !m.Definition().Info.Public {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownCollection, key)
	}
	return m, nil
}

// handlePublicCollection returns every record of a public collection in
// store order. The admin table state does not apply here.
func (s *Server) handlePublicCollection(w http.ResponseWriter, r *http.Request) {
	m, err := s.publicManager(chi.URLParam(r, "collection"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	records := m.Records()
	out := make([]publicRecord, len(records))
	for i, rec := range records {
		out[i] = publicRecord{
			ID:     rec.ID,
			Sample: rec.Origin == grid.OriginLocalFallback,
			Fields: rec.Fields,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"collection": m.Key(),
		"label":      m.Definition().Info.Label,
		"count":      len(out),
		"records":    out,
	})
}

// handleHome renders the public portfolio page.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	var sections []templates.Section
	for _, def := range core.Public() {
		m, err := s.service.Manager(def.Info.Key)
		if err != nil {
			continue
		}
		sections = append(sections, publicSection(m))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Page(siteTitle, sections).Render(r.Context(), w); err != nil {
		slog.Error("render home page", "error", err)
	}
}

func publicSection(m *core.Manager) templates.Section {
	def := m.Definition()
	summary := m.Summary()

	headers := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		headers[i] = c.Header
	}

	records := m.Records()
	rows := make([][]string, len(records))
	for i, rec := range records {
		cells := make([]string, len(def.Columns))
		for j, c := range def.Columns {
			cells[j] = c.Display(rec)
		}
		rows[i] = cells
	}

	return templates.Section{
		Key:      def.Info.Key,
		Label:    def.Info.Label,
		Headers:  headers,
		Rows:     rows,
		Fallback: summary.Fallback,
	}
}
