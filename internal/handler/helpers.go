package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/chorepet/chorepet/internal/errors"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and {"error", "code"} body. Anything
// that is not an AppError is logged and reported as INTERNAL.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		logger.Error("unhandled error", "error", err)
		appErr = apperrors.NewInternal(nil)
	} else if appErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", appErr.Code, "error", err)
	}
	body := map[string]any{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	writeJSON(w, appErr.Status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewInvalidRequest("request body is required")
		}
		return apperrors.NewInvalidRequest("invalid JSON")
	}
	return nil
}

// parseBoolQuery returns nil when the parameter is absent.
func parseBoolQuery(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewInvalidRequest(name + " must be true or false")
	}
	return &b, nil
}

type broadcaster struct {
	hub *ws.Hub
}

func (b broadcaster) broadcast(msg ws.Message) {
	if b.hub != nil {
		b.hub.Broadcast(msg)
	}
}
