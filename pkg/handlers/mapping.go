package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/services"
)

// ProposeMappingRequest carries the two column lists to match. The
// threshold is optional; zero selects the engine default.
type ProposeMappingRequest struct {
	SourceColumns  []string `json:"source_columns"`
	TargetColumns  []string `json:"target_columns"`
	MatchThreshold float64  `json:"match_threshold,omitempty"`
}

// ProposeMappingResponse returns the proposed mapping in source column
// order, ready for client-side editing and a validate round-trip.
type ProposeMappingResponse struct {
	Mapping models.Mapping `json:"mapping"`
}

// SchemaPayload is a dataset schema without values: what a client knows
// about a table before any data is read.
type SchemaPayload struct {
	Name    string                `json:"name,omitempty"`
	Columns []models.ColumnSchema `json:"columns"`
}

// ValidateMappingRequest carries both schemas plus the mapping and join
// key to check.
type ValidateMappingRequest struct {
	Source      SchemaPayload  `json:"source"`
	Target      SchemaPayload  `json:"target"`
	Mapping     models.Mapping `json:"mapping"`
	JoinColumns []string       `json:"join_columns"`
}

// MappingHandler serves the mapping propose/validate endpoints used by
// clients to prepare a run definition interactively.
type MappingHandler struct {
	matcher   services.ColumnMatcher
	validator services.MappingValidator
	logger    *zap.Logger
}

// NewMappingHandler creates a new mapping handler.
func NewMappingHandler(matcher services.ColumnMatcher, validator services.MappingValidator, logger *zap.Logger) *MappingHandler {
	return &MappingHandler{
		matcher:   matcher,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes registers the mapping handler's routes on the given mux.
func (h *MappingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/mapping/propose", h.Propose)
	mux.HandleFunc("POST /api/v1/mapping/validate", h.Validate)
}

// Propose handles POST /api/v1/mapping/propose
// Matches source columns against target columns and returns the proposal.
func (h *MappingHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req ProposeMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if len(req.SourceColumns) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_source_columns", "source_columns is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(req.TargetColumns) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_target_columns", "target_columns is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	threshold := req.MatchThreshold
	if threshold <= 0 {
		threshold = models.DefaultRunOptions().MatchThreshold
	}

	mapping := h.matcher.Propose(req.SourceColumns, req.TargetColumns, threshold)
	if err := WriteJSON(w, http.StatusOK, ProposeMappingResponse{Mapping: mapping}); err != nil {
		h.logger.Error("Failed to encode mapping response", zap.Error(err))
	}
}

// Validate handles POST /api/v1/mapping/validate
// Checks a mapping and join key against both schemas. A rejected
// configuration is answered with 422 and the structured verdict; only a
// malformed request is a 400.
func (h *MappingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if len(req.Source.Columns) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_source_schema", "source.columns is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(req.Target.Columns) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_target_schema", "target.columns is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result := h.validator.Validate(
		schemaDataset(req.Source, "source"),
		schemaDataset(req.Target, "target"),
		req.Mapping,
		req.JoinColumns,
	)

	status := http.StatusOK
	if !result.OK {
		status = http.StatusUnprocessableEntity
	}
	if err := WriteJSON(w, status, result); err != nil {
		h.logger.Error("Failed to encode validation response", zap.Error(err))
	}
}

// schemaDataset lifts a schema payload into a zero-row dataset. Value
// checks (nulls, duplicate keys) trivially pass on it; they run for real
// against the ingested data inside the pipeline.
func schemaDataset(p SchemaPayload, fallback string) *models.Dataset {
	name := p.Name
	if name == "" {
		name = fallback
	}
	columns := make([]models.Column, len(p.Columns))
	for i, c := range p.Columns {
		columns[i] = models.Column{Name: c.Name, DeclaredType: c.Type}
	}
	return &models.Dataset{Name: name, Columns: columns}
}
