package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// serve pushes one request through the middleware-wrapped handler and
// returns the recorded log entries.
func serve(t *testing.T, h http.HandlerFunc, method, path string) *observer.ObservedLogs {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	wrapped := RequestLogger(zap.New(core))(h)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
	return logs
}

func TestRequestLogger_EmitsOneEntryPerRequest(t *testing.T) {
	logs := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, http.MethodGet, "/api/v1/runs")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "HTTP request", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/runs", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Contains(t, fields, "duration")
	assert.Contains(t, fields, "remote_addr")
}

func TestRequestLogger_RecordsHandlerStatus(t *testing.T) {
	logs := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, http.MethodGet, "/api/v1/runs/nope")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(http.StatusNotFound), logs.All()[0].ContextMap()["status"])
}

func TestRequestLogger_DoubleWriteHeaderLogsFirstStatus(t *testing.T) {
	logs := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.WriteHeader(http.StatusInternalServerError)
	}, http.MethodPost, "/api/v1/runs")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(http.StatusBadRequest), logs.All()[0].ContextMap()["status"])
}

func TestRequestLogger_NilLoggerDisablesWrapping(t *testing.T) {
	reached := false
	wrapped := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.True(t, reached)
}

func TestStatusRecorder_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusCreated)
	sr.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, sr.status)
	assert.Equal(t, http.StatusCreated, rec.Code, "second WriteHeader must not reach the underlying writer")
}

func TestStatusRecorder_BareWriteCountsAsOK(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	_, err := sr.Write([]byte(`{"status":"ok"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, sr.status)
	assert.True(t, sr.headerWritten)
	assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusRecorder_WriteAfterExplicitHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusAccepted)
	_, err := sr.Write([]byte("queued"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, sr.status)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
