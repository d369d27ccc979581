package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/folio/internal/config"
	"github.com/JonMunkholm/folio/internal/core"
	"github.com/JonMunkholm/folio/internal/grid"
	"github.com/JonMunkholm/folio/internal/store"
)

const testAPIKey = "test-key"

// faultyStore lets tests fail batched deletes.
type faultyStore struct {
	store.Store
	deleteManyErr error
}

func (s *faultyStore) DeleteMany(ctx context.Context, collection string, ids []string) error {
	if s.deleteManyErr != nil {
		return s.deleteManyErr
	}
	return s.Store.DeleteMany(ctx, collection, ids)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Grid:     config.GridConfig{PageSize: 2},
		Security: config.SecurityConfig{APIKeys: []string{testAPIKey}, RequireAPIKey: true, EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func registerCollections(t *testing.T) {
	t.Helper()
	core.Clear()
	t.Cleanup(core.Clear)

	core.Register(core.CollectionDefinition{
		Info: core.CollectionInfo{Key: "projects", Label: "Projects", TitleField: "title", Public: true},
		Columns: grid.Columns{
			{Key: "title", Header: "Title", Type: grid.ColumnText, Searchable: true, Sortable: true},
			{Key: "status", Header: "Status", Type: grid.ColumnEnum, Filterable: true, Sortable: true},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "title", Type: core.FieldText, Required: true},
			{Name: "status", Type: core.FieldEnum, EnumValues: []string{"planning", "completed"}},
		},
		Defaults:   map[string]any{"status": "planning"},
		BulkFields: []string{"status"},
		Fallback: []grid.Record{
			{ID: "sample-1", Fields: map[string]any{"title": "Sample <b>", "status": "completed"}},
		},
	})
	core.Register(core.CollectionDefinition{
		Info:       core.CollectionInfo{Key: "applications", Label: "Applications", TitleField: "company"},
		Columns:    grid.Columns{{Key: "company", Header: "Company", Searchable: true, Sortable: true}},
		FieldSpecs: []core.FieldSpec{{Name: "company", Type: core.FieldText, Required: true}},
	})
}

type testEnv struct {
	server *Server
	store  *faultyStore
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	registerCollections(t)

	fs, err := store.OpenFile(filepath.Join(t.TempDir(), "folio.json"))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	t.Cleanup(func() { _ = fs.Close() })

	st := &faultyStore{Store: fs}
	svc := core.NewService(st, core.ServiceOptions{PageSize: cfg.Grid.PageSize})
	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{server: srv, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-API-Key", testAPIKey)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) create(t *testing.T, title string) grid.Record {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/admin/projects/records", `{"fields":{"title":"`+title+`"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %q: status %d, body %s", title, rec.Code, rec.Body.String())
	}
	return decode[grid.Record](t, rec)
}

func TestAdminRequiresAPIKey(t *testing.T) {
	env := newTestEnv(t, testConfig())

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusForbidden},
		{"header key", "X-API-Key", testAPIKey, http.StatusOK},
		{"bearer token", "Authorization", "Bearer " + testAPIKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/collections", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			env.server.Router().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestPublicCollection(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/public/projects", nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode[struct {
		Count   int            `json:"count"`
		Records []publicRecord `json:"records"`
	}](t, rec)
	if body.Count != 1 || !body.Records[0].Sample || body.Records[0].ID != "sample-1" {
		t.Errorf("body = %+v", body)
	}

	// Private collections are hidden.
	req = httptest.NewRequest(http.MethodGet, "/api/public/applications", nil)
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("private collection status = %d, want 404", rec.Code)
	}
}

func TestHomePage(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "Projects") || strings.Contains(html, "Applications") {
		t.Errorf("page should list public collections only: %s", html)
	}
	if !strings.Contains(html, "Sample &lt;b&gt;") {
		t.Errorf("record cell not escaped: %s", html)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing CSP header")
	}
}

func TestAdminTableFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	for _, title := range []string{"Beta", "Alpha", "Gamma"} {
		env.create(t, title)
	}

	rec := env.do(t, http.MethodPost, "/api/admin/projects/sort", `{"column":"title"}`)
	view := decode[viewResponse](t, rec)
	if view.View.Sort.Direction != grid.Ascending {
		t.Fatalf("sort = %+v", view.View.Sort)
	}
	if len(view.View.Rows) != 2 || view.Display[0]["title"] != "Alpha" {
		t.Errorf("first page = %v", view.Display)
	}
	if view.View.PageCount != 2 || view.Fallback {
		t.Errorf("page count = %d, fallback = %v", view.View.PageCount, view.Fallback)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/projects/page", `{"page":5}`)
	view = decode[viewResponse](t, rec)
	if view.View.Page != 1 || view.Display[0]["title"] != "Gamma" {
		t.Errorf("clamped page = %d rows %v", view.View.Page, view.Display)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/projects/query", `{"query":"alp"}`)
	view = decode[viewResponse](t, rec)
	if view.View.Page != 0 || view.View.TotalFiltered != 1 {
		t.Errorf("query view page = %d filtered = %d", view.View.Page, view.View.TotalFiltered)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/projects/select-page", "")
	view = decode[viewResponse](t, rec)
	if view.View.SelectedCount != 1 {
		t.Errorf("selected = %d, want 1", view.View.SelectedCount)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/projects/export?format=csv&scope=selected&fields=title", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "title\nAlpha\n" {
		t.Errorf("export body = %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "projects-") || !strings.Contains(cd, ".csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/projects/bulk-update", `{"field":"status","value":"completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk update status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/admin/projects/bulk-delete", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk delete status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decode[struct {
		Deleted int          `json:"deleted"`
		View    viewResponse `json:"view"`
	}](t, rec)
	if result.Deleted != 1 || result.View.View.SelectedCount != 0 || result.View.View.TotalRecords != 2 {
		t.Errorf("bulk delete result = %+v", result)
	}

	entries := decode[struct {
		Count   int               `json:"count"`
		Entries []core.AuditEntry `json:"entries"`
	}](t, env.do(t, http.MethodGet, "/api/admin/audit-log?action=bulk_delete", ""))
	if entries.Count != 1 || entries.Entries[0].Actor != "api-key-1" {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestAdminBulkDeleteFailureKeepsSelection(t *testing.T) {
	env := newTestEnv(t, testConfig())
	a := env.create(t, "Alpha")

	env.do(t, http.MethodPost, "/api/admin/projects/select/"+a.ID, "")
	env.store.deleteManyErr = store.ErrPermissionDenied

	rec := env.do(t, http.MethodPost, "/api/admin/projects/bulk-delete", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "STORE001" {
		t.Errorf("code = %q, want STORE001", got.Code)
	}

	view := decode[viewResponse](t, env.do(t, http.MethodGet, "/api/admin/projects/view", ""))
	if view.View.SelectedCount != 1 || view.View.TotalRecords != 1 {
		t.Errorf("after failure: selected = %d, records = %d", view.View.SelectedCount, view.View.TotalRecords)
	}
}

func TestAdminRecordErrors(t *testing.T) {
	env := newTestEnv(t, testConfig())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown collection", http.MethodGet, "/api/admin/widgets/view", "", http.StatusNotFound, "REC002"},
		{"validation", http.MethodPost, "/api/admin/projects/records", `{"fields":{"status":"done"}}`, http.StatusUnprocessableEntity, "VAL003"},
		{"fallback update", http.MethodPut, "/api/admin/projects/records/sample-1", `{"fields":{"title":"x"}}`, http.StatusConflict, "REC001"},
		{"missing delete", http.MethodDelete, "/api/admin/projects/records/nope", "", http.StatusNotFound, "STORE002"},
		{"bad body", http.MethodPost, "/api/admin/projects/query", `{"query":`, http.StatusBadRequest, "ERR000"},
		{"not bulk editable", http.MethodPost, "/api/admin/projects/bulk-update", `{"field":"title","value":"x"}`, http.StatusBadRequest, "REC003"},
		{"empty selection", http.MethodPost, "/api/admin/projects/bulk-delete", "", http.StatusBadRequest, "GRID002"},
		{"bad format", http.MethodGet, "/api/admin/projects/export?format=xml", "", http.StatusBadRequest, "GRID003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestAdminRecordLifecycle(t *testing.T) {
	env := newTestEnv(t, testConfig())
	created := env.create(t, "Folio")

	rec := env.do(t, http.MethodPut, "/api/admin/projects/records/"+created.ID, `{"fields":{"status":"completed"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[grid.Record](t, rec); got.Fields["status"] != "completed" {
		t.Errorf("updated record = %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/projects/records/"+created.ID+"/duplicate", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
	if got := decode[grid.Record](t, rec); got.Fields["title"] != "Folio (copy)" {
		t.Errorf("duplicate = %+v", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/admin/projects/records/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestAdminRows(t *testing.T) {
	env := newTestEnv(t, testConfig())
	for _, title := range []string{"A", "B", "C", "D"} {
		env.create(t, title)
	}

	rec := env.do(t, http.MethodGet, "/api/admin/projects/rows?scroll=64&height=32&row_height=32&overscan=1", "")
	body := decode[struct {
		Total int `json:"total"`
		Start int `json:"start"`
		End   int `json:"end"`
	}](t, rec)
	if body.Total != 4 || body.Start != 1 || body.End != 4 {
		t.Errorf("window = %+v, want total 4 range [1,4)", body)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/projects/rows?height=9223372036854775807&row_height=32&overscan=9223372036854775807", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("huge window status = %d: %s", rec.Code, rec.Body.String())
	}
	body = decode[struct {
		Total int `json:"total"`
		Start int `json:"start"`
		End   int `json:"end"`
	}](t, rec)
	if body.Start != 0 || body.End != 4 {
		t.Errorf("huge window = %+v, want range [0,4)", body)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	env := newTestEnv(t, cfg)

	first := httptest.NewRecorder()
	env.server.Router().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	second := httptest.NewRecorder()
	env.server.Router().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if first.Code != http.StatusOK {
		t.Errorf("first status = %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}
