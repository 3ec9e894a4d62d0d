package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/teamsync/pkg/teamsync"
	"github.com/tendant/teamsync/pkg/teamsync/metrics"
)

// PositionResponse acknowledges an accepted position report
type PositionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PositionsHandler handles position reporting endpoints
type PositionsHandler struct {
	registry *teamsync.PositionRegistry
	metrics  *metrics.Metrics
}

// NewPositionsHandler creates a new positions handler
func NewPositionsHandler(registry *teamsync.PositionRegistry, m *metrics.Metrics) *PositionsHandler {
	return &PositionsHandler{
		registry: registry,
		metrics:  m,
	}
}

// RegisterRoutes adds the position endpoints to r
func (h *PositionsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/position", h.ReportPosition)
	r.Get("/positions", h.ListPositions)
}

// ReportPosition stores the latest position of one team member
func (h *PositionsHandler) ReportPosition(w http.ResponseWriter, r *http.Request) {
	var in teamsync.PositionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		slog.Warn("Invalid position payload", "error", err)
		h.metrics.RecordPositionReport(false, h.registry.Len())

		message := "Invalid JSON payload"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			message = fmt.Sprintf("Invalid value for field '%s': expected %s", typeErr.Field, typeErr.Type)
		}
		writeJSONError(w, r, http.StatusBadRequest, message)
		return
	}

	ack, err := h.registry.Upsert(in)
	if err != nil {
		slog.Warn("Position report rejected", "uuid", in.ClientID, "error", err)
		h.metrics.RecordPositionReport(false, h.registry.Len())
		writeJSONError(w, r, statusFor(err), err.Error())
		return
	}

	h.metrics.RecordPositionReport(true, h.registry.Len())
	slog.Debug("Position updated", "uuid", ack.ClientID)
	render.JSON(w, r, PositionResponse{
		Status:  "success",
		Message: fmt.Sprintf("Position updated for %s", ack.ClientID),
	})
}

// ListPositions returns the latest known position of every team member
func (h *PositionsHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.registry.Snapshot())
}
