package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/chorepet/chorepet/internal/chore"
	apperrors "github.com/chorepet/chorepet/internal/errors"
	"github.com/chorepet/chorepet/internal/model"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

type DemoHandler struct {
	broadcaster
	engine *chore.Engine
	logger *slog.Logger
}

func NewDemoHandler(engine *chore.Engine, hub *ws.Hub, logger *slog.Logger) *DemoHandler {
	return &DemoHandler{broadcaster: broadcaster{hub}, engine: engine, logger: logger}
}

// maxAdvanceDays bounds a single advance so the duration cannot overflow.
const maxAdvanceDays = 3650

type advanceRequest struct {
	Days  float64 `json:"days"`
	Hours float64 `json:"hours"`
}

type advanceResponse struct {
	model.DemoStatus
	HealthChanges []model.HealthDelta `json:"health_changes"`
}

func (h *DemoHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	hours := req.Days*24 + req.Hours
	if req.Days < 0 || req.Hours < 0 || hours > maxAdvanceDays*24 {
		writeError(w, h.logger, apperrors.NewInvalidRequest("days and hours must be non-negative and total at most 3650 days"))
		return
	}
	d := time.Duration(hours * float64(time.Hour))
	if d <= 0 {
		writeError(w, h.logger, apperrors.NewInvalidRequest("days or hours must be positive"))
		return
	}

	status, deltas, err := h.engine.AdvanceDemoTime(r.Context(), d)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if deltas == nil {
		deltas = []model.HealthDelta{}
	}

	h.broadcast(ws.NewMessage(ws.EntityDemo, "advanced", "", status))
	if len(deltas) > 0 {
		h.broadcast(ws.NewMessage(ws.EntityHealth, "decayed", "", deltas))
	}
	writeJSON(w, http.StatusOK, advanceResponse{DemoStatus: status, HealthChanges: deltas})
}

func (h *DemoHandler) Reset(w http.ResponseWriter, r *http.Request) {
	status := h.engine.ResetDemoTime()
	h.broadcast(ws.NewMessage(ws.EntityDemo, "reset", "", status))
	writeJSON(w, http.StatusOK, status)
}

func (h *DemoHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.DemoStatus())
}
