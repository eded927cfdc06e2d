package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/chorepet/chorepet/internal/errors"
	"github.com/chorepet/chorepet/internal/model"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

// BackupService is the part of backup.Manager the HTTP layer uses.
type BackupService interface {
	Enabled() bool
	RunNow(ctx context.Context) (*model.Backup, error)
	List(ctx context.Context) ([]model.Backup, error)
	Restore(ctx context.Context, key string) error
}

type BackupHandler struct {
	broadcaster
	backups BackupService
	logger  *slog.Logger
}

func NewBackupHandler(backups BackupService, hub *ws.Hub, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{broadcaster: broadcaster{hub}, backups: backups, logger: logger}
}

func (h *BackupHandler) enabled(w http.ResponseWriter) bool {
	if h.backups == nil || !h.backups.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "backups are not configured",
			"code":  "BACKUPS_DISABLED",
		})
		return false
	}
	return true
}

func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	b, err := h.backups.RunNow(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityBackup, "created", b.Key, b))
	writeJSON(w, http.StatusCreated, b)
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	list, err := h.backups.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, list)
}

type restoreRequest struct {
	Key string `json:"key"`
}

func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		writeError(w, h.logger, apperrors.NewInvalidRequest("key is required"))
		return
	}

	if err := h.backups.Restore(r.Context(), req.Key); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ws.NewMessage(ws.EntityBackup, "restored", req.Key, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "key": req.Key})
}
