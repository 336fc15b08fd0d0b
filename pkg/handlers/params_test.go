package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func runIDRequest(raw string) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/id", nil)
	req.SetPathValue("id", raw)
	return httptest.NewRecorder(), req
}

func TestParseRunID_AcceptsUUID(t *testing.T) {
	want := uuid.New()
	rec, req := runIDRequest(want.String())

	id, ok := ParseRunID(rec, req, zap.NewNop())

	if !ok || id != want {
		t.Errorf("got (%v, %v), want (%v, true)", id, ok, want)
	}
}

func TestParseRunID_RejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not a uuid", "not-a-uuid"},
		{"empty", ""},
		{"truncated", "550e8400-e29b-41d4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, req := runIDRequest(tt.raw)

			id, ok := ParseRunID(rec, req, zap.NewNop())

			if ok || id != uuid.Nil {
				t.Errorf("got (%v, %v), want (uuid.Nil, false)", id, ok)
			}
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if body := decodeBody[map[string]string](t, rec); body["error"] != "invalid_run_id" {
				t.Errorf("error code = %q, want invalid_run_id", body["error"])
			}
		})
	}
}

func TestParseUUID_ReadsNamedParam(t *testing.T) {
	want := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req.SetPathValue("mapping_id", want.String())
	rec := httptest.NewRecorder()

	id, ok := parseUUID(rec, req, "mapping_id", "invalid_mapping_id", "Invalid mapping ID format", zap.NewNop())

	if !ok || id != want {
		t.Errorf("got (%v, %v), want (%v, true)", id, ok, want)
	}
}

func TestParseUUID_CustomEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req.SetPathValue("mapping_id", "bogus")
	rec := httptest.NewRecorder()

	if _, ok := parseUUID(rec, req, "mapping_id", "invalid_mapping_id", "Invalid mapping ID format", zap.NewNop()); ok {
		t.Fatal("expected parse to fail")
	}

	body := decodeBody[map[string]string](t, rec)
	if body["error"] != "invalid_mapping_id" || body["message"] != "Invalid mapping ID format" {
		t.Errorf("envelope = %v", body)
	}
}
