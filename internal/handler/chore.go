package handler

import (
	"log/slog"
	"net/http"

	"github.com/chorepet/chorepet/internal/chore"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

type ChoreHandler struct {
	broadcaster
	engine *chore.Engine
	logger *slog.Logger
}

func NewChoreHandler(engine *chore.Engine, hub *ws.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{broadcaster: broadcaster{hub}, engine: engine, logger: logger}
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req chore.NewChore
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, err := h.engine.CreateChore(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityChore, "created", c.ID, c))
	writeJSON(w, http.StatusCreated, c)
}

// List accepts optional ?completed=true|false and ?roommate=<username>.
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	completed, err := parseBoolQuery(r, "completed")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	list, err := h.engine.ListChores(r.Context(), chore.ChoreFilter{
		Completed: completed,
		Roommate:  r.URL.Query().Get("roommate"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListForRoommate returns one roommate's chores, 404 if they do not exist.
func (h *ChoreHandler) ListForRoommate(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if _, err := h.engine.GetRoommate(r.Context(), username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	list, err := h.engine.ListChores(r.Context(), chore.ChoreFilter{Roommate: username})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.GetChore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update accepts {"name"?, "difficulty"?}. The chore's weight does not change.
func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req chore.ChoreUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, err := h.engine.UpdateChore(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityChore, "updated", c.ID, c))
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.DeleteChore(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityChore, "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Complete advances progress by one step. It is not idempotent.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.AdvanceChore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	action := "progressed"
	switch {
	case res.Reassigned:
		action = "reassigned"
	case res.Rewarded:
		action = "completed"
	}
	h.broadcast(ws.NewMessage(ws.EntityChore, action, res.Chore.ID, res))
	writeJSON(w, http.StatusOK, res)
}

func (h *ChoreHandler) Reset(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.ResetChore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityChore, "reset", c.ID, c))
	writeJSON(w, http.StatusOK, c)
}
