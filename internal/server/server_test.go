package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chorepet/chorepet/internal/chore"
	"github.com/chorepet/chorepet/internal/clock"
	"github.com/chorepet/chorepet/internal/middleware"
	"github.com/chorepet/chorepet/internal/store"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

func setupTestServer(t *testing.T, loginLimit int) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	start := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	engine := chore.NewEngine(store.NewMemoryStore(), clock.NewDemo(func() time.Time { return start }), chore.DefaultSettings(), logger)
	hub := ws.NewHub(logger)
	t.Cleanup(hub.Close)

	var limiter *middleware.RateLimiter
	if loginLimit > 0 {
		limiter = middleware.NewRateLimiter(loginLimit, time.Minute)
	}
	return New(engine, hub, nil, limiter, logger).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	h := setupTestServer(t, 0)
	rec := do(t, h, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Errorf("status = %v, want ok", got)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestChoreLifecycleOverHTTP(t *testing.T) {
	h := setupTestServer(t, 0)

	rec := do(t, h, "POST", "/api/users", `{"username":"ana","capacity_score":40}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, h, "POST", "/api/chores", `{"name":"Trash","frequency":2,"difficulty":2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create chore: status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode(t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("chore id missing")
	}
	if created["roommate"] != "ana" || created["weight"] != float64(4) || created["status"] != "active" {
		t.Errorf("unexpected chore: %v", created)
	}

	rec = do(t, h, "GET", "/api/chores/user/ana", "")
	var mine []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &mine); err != nil || len(mine) != 1 {
		t.Fatalf("chores for ana: %s (%v)", rec.Body, err)
	}

	rec = do(t, h, "PATCH", "/api/chores/"+id+"/complete", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first step: status = %d", rec.Code)
	}
	if decode(t, rec)["rewarded"] != false {
		t.Error("first step should not reward")
	}

	rec = do(t, h, "PATCH", "/api/chores/"+id+"/complete", "")
	res := decode(t, rec)
	if res["rewarded"] != true || res["reassigned"] != false {
		t.Errorf("second step: %v", res)
	}

	rec = do(t, h, "PATCH", "/api/chores/"+id+"/complete", "")
	if rec.Code != http.StatusConflict || decode(t, rec)["code"] != "ALREADY_COMPLETED" {
		t.Errorf("third step: status = %d, body %s", rec.Code, rec.Body)
	}

	// 80, less one day of decay on the first read, plus the reward.
	rec = do(t, h, "GET", "/api/users/ana", "")
	user := decode(t, rec)
	if user["pet_health"] != float64(85) || user["capacity_score"] != float64(40) {
		t.Errorf("user after completion: %v", user)
	}

	rec = do(t, h, "DELETE", "/api/users/ana", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("delete held user: status = %d, want 409", rec.Code)
	}

	rec = do(t, h, "PATCH", "/api/chores/"+id+"/reset", "")
	if rec.Code != http.StatusOK || decode(t, rec)["progress"] != float64(0) {
		t.Errorf("reset: status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, h, "DELETE", "/api/chores/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete chore: status = %d", rec.Code)
	}
	rec = do(t, h, "GET", "/api/chores/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted chore: status = %d", rec.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	h := setupTestServer(t, 0)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"no roommates", "POST", "/api/chores", `{"name":"Sweep"}`, http.StatusConflict, "NO_ASSIGNEE_AVAILABLE"},
		{"bad json", "POST", "/api/chores", `{`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"empty body", "POST", "/api/users", ``, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown chore", "PATCH", "/api/chores/nope/complete", ``, http.StatusNotFound, "NOT_FOUND"},
		{"unknown user chores", "GET", "/api/chores/user/ghost", ``, http.StatusNotFound, "NOT_FOUND"},
		{"bad completed filter", "GET", "/api/chores?completed=maybe", ``, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing health change", "PATCH", "/api/users/ghost/health", `{}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"login unknown", "POST", "/api/login", `{"username":"ghost"}`, http.StatusNotFound, "NOT_FOUND"},
		{"demo non-positive", "POST", "/api/demo/advance", `{"days":0}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"demo too far", "POST", "/api/demo/advance", `{"days":1e12}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"demo over ten years", "POST", "/api/demo/advance", `{"days":3650,"hours":1}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"demo negative hours", "POST", "/api/demo/advance", `{"days":2,"hours":-1}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"update unknown chore", "PUT", "/api/chores/nope", `{"name":"Mop"}`, http.StatusNotFound, "NOT_FOUND"},
		{"set health unknown user", "PUT", "/api/users/ghost", `{"pet_health":50}`, http.StatusNotFound, "NOT_FOUND"},
		{"set health missing value", "PUT", "/api/users/ghost", `{}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"backups disabled", "GET", "/api/backups", ``, http.StatusServiceUnavailable, "BACKUPS_DISABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if got := decode(t, rec)["code"]; got != tt.code {
				t.Errorf("code = %v, want %q", got, tt.code)
			}
		})
	}
}

func TestEditRoutes(t *testing.T) {
	h := setupTestServer(t, 0)

	do(t, h, "POST", "/api/users", `{"username":"ana","capacity_score":40}`)
	rec := do(t, h, "POST", "/api/chores", `{"name":"Bins","difficulty":2}`)
	id, _ := decode(t, rec)["id"].(string)

	rec = do(t, h, "PUT", "/api/chores/"+id, `{"name":"Recycling","difficulty":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update chore: status = %d, body %s", rec.Code, rec.Body)
	}
	updated := decode(t, rec)
	if updated["name"] != "Recycling" || updated["difficulty"] != float64(5) || updated["weight"] != float64(2) {
		t.Errorf("unexpected update: %v", updated)
	}

	rec = do(t, h, "PUT", "/api/chores/"+id, `{"difficulty":9}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad difficulty: status = %d, want 400", rec.Code)
	}

	if rec = do(t, h, "DELETE", "/api/chores/"+id, ""); rec.Code >= 300 {
		t.Fatalf("delete chore: status = %d", rec.Code)
	}
	if got := decode(t, do(t, h, "GET", "/api/users/ana", ""))["capacity_score"]; got != float64(40) {
		t.Errorf("capacity after delete = %v, want 40", got)
	}

	rec = do(t, h, "PUT", "/api/users/ana", `{"pet_health":150}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set health: status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode(t, rec)["pet_health"]; got != float64(100) {
		t.Errorf("pet_health = %v, want 100", got)
	}
}

func TestStoreFailureHidesCause(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms := store.NewMemoryStore()
	ms.FailLoads(errors.New("open /srv/chorepet/db.json: permission denied"))
	engine := chore.NewEngine(ms, clock.NewDemo(nil), chore.DefaultSettings(), logger)
	hub := ws.NewHub(logger)
	t.Cleanup(hub.Close)
	h := New(engine, hub, nil, nil, logger).Router()

	rec := do(t, h, "GET", "/api/chores", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if decode(t, rec)["code"] != "STORE_READ_ERROR" {
		t.Errorf("unexpected body %s", rec.Body)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("/srv/chorepet")) {
		t.Errorf("store error detail leaked to client: %s", rec.Body)
	}
}

func TestDemoAdvanceDecaysHealth(t *testing.T) {
	h := setupTestServer(t, 0)

	do(t, h, "POST", "/api/users", `{"username":"ben"}`)
	do(t, h, "POST", "/api/chores", `{"name":"Mop"}`)

	rec := do(t, h, "POST", "/api/demo/advance", `{"days":8}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("advance: status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	if body["offset_days"] != float64(8) {
		t.Errorf("offset_days = %v, want 8", body["offset_days"])
	}
	changes, _ := body["health_changes"].([]any)
	if len(changes) != 1 {
		t.Fatalf("health_changes = %v, want one entry", body["health_changes"])
	}

	rec = do(t, h, "GET", "/api/chores?completed=false", "")
	var list []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 || list[0]["status"] != "overdue" {
		t.Errorf("expected one overdue chore, got %s", rec.Body)
	}

	rec = do(t, h, "POST", "/api/demo/reset", "")
	if decode(t, rec)["offset_days"] != float64(0) {
		t.Errorf("reset did not clear offset: %s", rec.Body)
	}
}

func TestLoginRateLimited(t *testing.T) {
	h := setupTestServer(t, 2)
	do(t, h, "POST", "/api/users", `{"username":"cy"}`)

	for i := 0; i < 2; i++ {
		if rec := do(t, h, "POST", "/api/login", `{"username":"cy"}`); rec.Code != http.StatusOK {
			t.Fatalf("login %d: status = %d", i, rec.Code)
		}
	}
	rec := do(t, h, "POST", "/api/login", `{"username":"cy"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Other routes are not throttled.
	if rec := do(t, h, "GET", "/api/users", ""); rec.Code != http.StatusOK {
		t.Errorf("list users: status = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := setupTestServer(t, 0)
	rec := do(t, h, "PUT", "/api/chores", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
