package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/skuline/catalog-importer/internal/config"
	"github.com/skuline/catalog-importer/internal/importer"
)

type fakeService struct {
	started    []string
	records    []importer.RunRecord
	historyErr error
	reportErr  error
	pingErr    error
	lastLimit  int
}

func (f *fakeService) Start(filePath string) importer.ImportBatch {
	f.started = append(f.started, filePath)
	return importer.ImportBatch{
		ID:         "20260823T120000-deadbeef",
		SourceFile: filePath,
		StartedAt:  time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeService) History(ctx context.Context, limit int) ([]importer.RunRecord, error) {
	f.lastLimit = limit
	return f.records, f.historyErr
}

func (f *fakeService) Report(ctx context.Context, batchID string) (importer.RunRecord, error) {
	if f.reportErr != nil {
		return importer.RunRecord{}, f.reportErr
	}
	for _, rec := range f.records {
		if rec.BatchID == batchID {
			return rec, nil
		}
	}
	return importer.RunRecord{}, pgx.ErrNoRows
}

func (f *fakeService) Ping(ctx context.Context) error { return f.pingErr }

func newTestServer(svc ImportService) *Server {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	return NewServer(svc, cfg)
}

func TestHandleStartImport(t *testing.T) {
	file := filepath.Join(t.TempDir(), "products.csv")
	if err := os.WriteFile(file, []byte("barcode,price,stock,name,description\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := &fakeService{}
	server := newTestServer(svc)

	body := strings.NewReader(`{"file":"` + file + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body)
	}
	if len(svc.started) != 1 || svc.started[0] != file {
		t.Errorf("service started with %v, want [%s]", svc.started, file)
	}

	var resp struct {
		BatchID    string `json:"batchId"`
		SourceFile string `json:"sourceFile"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BatchID == "" {
		t.Error("response missing batchId")
	}
	if resp.SourceFile != file {
		t.Errorf("sourceFile = %q, want %q", resp.SourceFile, file)
	}
}

func TestHandleStartImport_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{file:`},
		{"missing file", `{}`},
		{"nonexistent file", `{"file":"/no/such/file.csv"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			server := newTestServer(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/imports", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if len(svc.started) != 0 {
				t.Error("import started despite bad request")
			}
		})
	}
}

func TestHandleListImports(t *testing.T) {
	svc := &fakeService{records: []importer.RunRecord{
		{BatchID: "b2", Status: "done"},
		{BatchID: "b1", Status: "failed"},
	}}
	server := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastLimit != 50 {
		t.Errorf("default limit = %d, want 50", svc.lastLimit)
	}

	var recs []importer.RunRecord
	if err := json.NewDecoder(rec.Body).Decode(&recs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(recs) != 2 || recs[0].BatchID != "b2" {
		t.Errorf("records = %+v", recs)
	}
}

func TestHandleListImports_LimitParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"limit=10", 10},
		{"limit=0", 50},
		{"limit=-5", 50},
		{"limit=9999", 50},
		{"limit=abc", 50},
	}

	for _, tt := range tests {
		svc := &fakeService{}
		server := newTestServer(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/imports?"+tt.query, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		if svc.lastLimit != tt.want {
			t.Errorf("%s: limit = %d, want %d", tt.query, svc.lastLimit, tt.want)
		}
	}
}

func TestHandleGetImport(t *testing.T) {
	svc := &fakeService{records: []importer.RunRecord{
		{BatchID: "b1", Status: "done", RecordsLoaded: 1000},
	}}
	server := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/imports/b1", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var got importer.RunRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.BatchID != "b1" || got.RecordsLoaded != 1000 {
		t.Errorf("record = %+v", got)
	}
}

func TestHandleGetImport_NotFound(t *testing.T) {
	server := newTestServer(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/imports/nope", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetImport_StorageError(t *testing.T) {
	server := newTestServer(&fakeService{reportErr: errors.New("conn refused")})

	req := httptest.NewRequest(http.MethodGet, "/api/imports/b1", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	server = newTestServer(&fakeService{pingErr: errors.New("down")})
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status with failing ping = %d, want 503", rec.Code)
	}
}
