package handler

import (
	"log/slog"
	"net/http"

	"github.com/chorepet/chorepet/internal/chore"
	apperrors "github.com/chorepet/chorepet/internal/errors"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

type RoommateHandler struct {
	broadcaster
	engine *chore.Engine
	logger *slog.Logger
}

func NewRoommateHandler(engine *chore.Engine, hub *ws.Hub, logger *slog.Logger) *RoommateHandler {
	return &RoommateHandler{broadcaster: broadcaster{hub}, engine: engine, logger: logger}
}

func (h *RoommateHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListRoommates(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RoommateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req chore.NewRoommate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rm, err := h.engine.CreateRoommate(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityRoommate, "created", rm.Username, rm))
	writeJSON(w, http.StatusCreated, rm)
}

func (h *RoommateHandler) Get(w http.ResponseWriter, r *http.Request) {
	rm, err := h.engine.GetRoommate(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (h *RoommateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if err := h.engine.DeleteRoommate(r.Context(), username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityRoommate, "deleted", username, nil))
	w.WriteHeader(http.StatusNoContent)
}

type healthRequest struct {
	HealthChange *int `json:"health_change"`
}

func (h *RoommateHandler) AdjustHealth(w http.ResponseWriter, r *http.Request) {
	var req healthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.HealthChange == nil {
		writeError(w, h.logger, apperrors.NewInvalidRequest("health_change is required"))
		return
	}

	rm, err := h.engine.AdjustHealth(r.Context(), r.PathValue("username"), *req.HealthChange)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityHealth, "updated", rm.Username, rm))
	writeJSON(w, http.StatusOK, rm)
}

type setHealthRequest struct {
	PetHealth *int `json:"pet_health"`
}

// SetHealth replaces the pet's health; out-of-range values are clamped.
func (h *RoommateHandler) SetHealth(w http.ResponseWriter, r *http.Request) {
	var req setHealthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.PetHealth == nil {
		writeError(w, h.logger, apperrors.NewInvalidRequest("pet_health is required"))
		return
	}

	rm, err := h.engine.SetHealth(r.Context(), r.PathValue("username"), *req.PetHealth)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityHealth, "updated", rm.Username, rm))
	writeJSON(w, http.StatusOK, rm)
}

type loginRequest struct {
	Username string `json:"username"`
}

// Login is a username lookup; there are no sessions or passwords.
func (h *RoommateHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rm, err := h.engine.Login(r.Context(), req.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}
