package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/reconlab/recon-engine/pkg/apperrors"
	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/services"
)

// ListRunsResponse is the payload of the run listing endpoint.
type ListRunsResponse struct {
	Runs []*models.Run `json:"runs"`
}

// RunsHandler serves the run lifecycle endpoints.
type RunsHandler struct {
	runService services.RunService
	logger     *zap.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runService services.RunService, logger *zap.Logger) *RunsHandler {
	return &RunsHandler{runService: runService, logger: logger}
}

// RegisterRoutes registers the runs handler's routes on the given mux.
func (h *RunsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/runs", h.Submit)
	mux.HandleFunc("GET /api/v1/runs", h.List)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/runs/{id}/cancel", h.Cancel)
	mux.HandleFunc("GET /api/v1/runs/{id}/report", h.Report)
	mux.HandleFunc("GET /api/v1/runs/{id}/export", h.Export)
}

// Submit handles POST /api/v1/runs
// Accepts a run definition as JSON or YAML, queues the run, and answers
// 202 with the pending run.
func (h *RunsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	def, ok := h.decodeDefinition(w, r)
	if !ok {
		return
	}

	run, err := h.runService.Submit(def)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownReader) {
			if err := ErrorResponse(w, http.StatusBadRequest, "unknown_reader", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrUnknownFormat) {
			if err := ErrorResponse(w, http.StatusBadRequest, "unknown_format", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_definition", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, run); err != nil {
		h.logger.Error("Failed to encode run response", zap.Error(err))
	}
}

// decodeDefinition reads a run definition from the request body. The
// Content-Type header selects YAML; everything else is treated as JSON.
func (h *RunsHandler) decodeDefinition(w http.ResponseWriter, r *http.Request) (models.RunDefinition, bool) {
	var def models.RunDefinition

	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		body, err := io.ReadAll(r.Body)
		if err == nil {
			err = yaml.Unmarshal(body, &def)
		}
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid YAML run definition"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return def, false
		}
		return def, true
	}

	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON run definition"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return def, false
	}
	return def, true
}

// List handles GET /api/v1/runs
// Returns all retained runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	response := ListRunsResponse{Runs: h.runService.List()}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode runs response", zap.Error(err))
	}
}

// Get handles GET /api/v1/runs/{id}
// Returns one run with its stage trace and verdicts.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, ok := ParseRunID(w, r, h.logger)
	if !ok {
		return
	}

	run, err := h.runService.Get(runID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Run not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get run", zap.String("run_id", runID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get run"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, run); err != nil {
		h.logger.Error("Failed to encode run response", zap.Error(err))
	}
}

// Cancel handles POST /api/v1/runs/{id}/cancel
// Requests cancellation and returns the updated run.
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID, ok := ParseRunID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.runService.Cancel(runID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Run not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrRunNotCancellable) {
			if err := ErrorResponse(w, http.StatusConflict, "not_cancellable", "Run has already finished"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to cancel run", zap.String("run_id", runID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to cancel run"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	run, err := h.runService.Get(runID)
	if err != nil {
		h.logger.Error("Failed to get run after cancel", zap.String("run_id", runID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get run"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, run); err != nil {
		h.logger.Error("Failed to encode run response", zap.Error(err))
	}
}

// Report handles GET /api/v1/runs/{id}/report
// Returns the full report of a completed run. Until the run completes the
// report does not exist, so the endpoint answers 404.
func (h *RunsHandler) Report(w http.ResponseWriter, r *http.Request) {
	runID, ok := ParseRunID(w, r, h.logger)
	if !ok {
		return
	}

	report, err := h.runService.Report(runID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Run not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrRunNotFinished) {
			if err := ErrorResponse(w, http.StatusNotFound, "report_not_ready", "Run has not completed"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get report", zap.String("run_id", runID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get report"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode report response", zap.Error(err))
	}
}

// Export handles GET /api/v1/runs/{id}/export?format=json|xlsx|zip
// Streams the report artifact in the requested format, rendering it on
// demand when the run did not already export it.
func (h *RunsHandler) Export(w http.ResponseWriter, r *http.Request) {
	runID, ok := ParseRunID(w, r, h.logger)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	path, err := h.runService.ExportArtifact(runID, format)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Run not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrRunNotFinished) {
			if err := ErrorResponse(w, http.StatusNotFound, "artifact_not_ready", "Run has not completed"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrUnknownFormat) {
			if err := ErrorResponse(w, http.StatusBadRequest, "unknown_format", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to export artifact",
			zap.String("run_id", runID.String()),
			zap.String("format", format),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "export_failed", "Failed to export artifact"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", artifactContentType(format))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	http.ServeFile(w, r, path)
}

func artifactContentType(format string) string {
	switch strings.ToLower(format) {
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "zip":
		return "application/zip"
	default:
		return "application/json"
	}
}
