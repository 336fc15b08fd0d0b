package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

// stubFactory serves a fixed reader listing for handler tests.
type stubFactory struct {
	infos []reader.Info
}

func (f *stubFactory) NewReader(models.ReaderSpec, *zap.Logger) (reader.Reader, error) {
	return nil, nil
}

func (f *stubFactory) ListTypes() []reader.Info {
	return f.infos
}

func TestReadersHandler_List(t *testing.T) {
	factory := &stubFactory{infos: []reader.Info{
		{Type: "csv", DisplayName: "CSV file", Description: "Delimited text files."},
		{Type: "postgres", DisplayName: "PostgreSQL", Description: "Tables or queries over pgx."},
	}}
	handler := NewReadersHandler(factory, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/readers", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response ListReadersResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Readers) != 2 {
		t.Fatalf("expected 2 readers, got %d", len(response.Readers))
	}
	if response.Readers[0].Type != "csv" {
		t.Errorf("expected first reader 'csv', got %q", response.Readers[0].Type)
	}
	if response.Readers[1].DisplayName != "PostgreSQL" {
		t.Errorf("expected display name 'PostgreSQL', got %q", response.Readers[1].DisplayName)
	}
}

func TestReadersHandler_MethodNotAllowed(t *testing.T) {
	handler := NewReadersHandler(&stubFactory{}, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/readers", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
