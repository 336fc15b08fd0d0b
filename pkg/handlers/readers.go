package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
)

// ListReadersResponse is the payload of the reader discovery endpoint.
type ListReadersResponse struct {
	Readers []reader.Info `json:"readers"`
}

// ReadersHandler serves discovery of the reader types compiled into this
// binary.
type ReadersHandler struct {
	factory reader.Factory
	logger  *zap.Logger
}

// NewReadersHandler creates a new readers handler.
func NewReadersHandler(factory reader.Factory, logger *zap.Logger) *ReadersHandler {
	return &ReadersHandler{factory: factory, logger: logger}
}

// RegisterRoutes registers the readers handler's routes on the given mux.
func (h *ReadersHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/readers", h.List)
}

// List handles GET /api/v1/readers
// Returns every registered reader type with its display metadata.
func (h *ReadersHandler) List(w http.ResponseWriter, r *http.Request) {
	response := ListReadersResponse{Readers: h.factory.ListTypes()}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode readers response", zap.Error(err))
	}
}
