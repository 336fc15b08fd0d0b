package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/config"
)

// ServiceInfo is the /ping payload: enough to tell which build answered
// from which host.
type ServiceInfo struct {
	Status      string  `json:"status"`
	Service     string  `json:"service"`
	Version     string  `json:"version"`
	Environment string  `json:"environment"`
	GoVersion   string  `json:"go_version"`
	Hostname    string  `json:"hostname"`
	UptimeSecs  float64 `json:"uptime_seconds"`
}

// HealthHandler serves the liveness and service info endpoints.
type HealthHandler struct {
	cfg     *config.Config
	started time.Time
	logger  *zap.Logger
}

func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, started: time.Now(), logger: logger}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/ping", h.Ping)
}

// Health answers liveness probes with a bare "ok".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping reports build and host details for checking what a deployment runs.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := ServiceInfo{
		Status:      "ok",
		Service:     "recon-engine",
		Version:     h.cfg.Version,
		Environment: h.cfg.Env,
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		UptimeSecs:  time.Since(h.started).Seconds(),
	}

	if err := WriteJSON(w, http.StatusOK, info); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
