package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		send: make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(testLogger())
	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)
	defer hub.Close()

	hub.Broadcast(NewMessage(EntityChore, "completed", "01HZX", map[string]any{"rewarded": true}))

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "chore_completed" {
				t.Errorf("type = %q, want chore_completed", got.Type)
			}
			if got.ID != "01HZX" {
				t.Errorf("id = %q, want 01HZX", got.ID)
			}
			payload, _ := got.Data.(map[string]any)
			if payload["rewarded"] != true {
				t.Errorf("data = %v, want rewarded=true", got.Data)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Broadcast(NewMessage(EntityDemo, "reset", "", nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage(EntityHealth, "decayed", "", nil))
	}
	hub.Broadcast(NewMessage(EntityHealth, "decayed", "", nil))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
	if got := hub.Dropped(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(EntityRoommate, "created", "sam", nil)
	if msg.Type != "roommate_created" || msg.Entity != EntityRoommate || msg.Action != "created" || msg.ID != "sam" {
		t.Errorf("unexpected message: %+v", msg)
	}

	raw, _ := json.Marshal(NewMessage(EntityDemo, "reset", "", nil))
	if string(raw) != `{"type":"demo_reset","entity":"demo","action":"reset"}` {
		t.Errorf("unexpected encoding: %s", raw)
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub)
	hub.Register(c)

	hub.Close()
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
	// Unregister after Close must not double-close.
	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(testLogger())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(NewMessage(EntityChore, "updated", "x", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandleWebSocketDelivers(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(HandleWebSocket(hub))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(NewMessage(EntityChore, "created", "01ABC", nil))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "chore_created" || got.ID != "01ABC" {
		t.Errorf("unexpected message: %+v", got)
	}
}

func TestParseSubscriptions(t *testing.T) {
	tests := []struct {
		raw  string
		want []Entity
	}{
		{"", nil},
		{"bogus", nil},
		{"chore", []Entity{EntityChore}},
		{" Chore , health,nope", []Entity{EntityChore, EntityHealth}},
	}

	for _, tt := range tests {
		got := ParseSubscriptions(tt.raw)
		if tt.want == nil {
			if got != nil {
				t.Errorf("ParseSubscriptions(%q) = %v, want nil", tt.raw, got)
			}
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseSubscriptions(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for _, e := range tt.want {
			if !got[e] {
				t.Errorf("ParseSubscriptions(%q) missing %q", tt.raw, e)
			}
		}
	}
}

func TestBroadcastRespectsSubscriptions(t *testing.T) {
	hub := NewHub(testLogger())
	all := mockClient(hub)
	healthOnly := mockClient(hub)
	healthOnly.subs = ParseSubscriptions("health")
	hub.Register(all)
	hub.Register(healthOnly)
	defer hub.Close()

	hub.Broadcast(NewMessage(EntityChore, "created", "01ABC", nil))
	hub.Broadcast(NewMessage(EntityHealth, "decayed", "", nil))

	if got := len(all.send); got != 2 {
		t.Errorf("unfiltered client got %d messages, want 2", got)
	}
	if got := len(healthOnly.send); got != 1 {
		t.Fatalf("filtered client got %d messages, want 1", got)
	}
	var msg Message
	json.Unmarshal(<-healthOnly.send, &msg)
	if msg.Entity != EntityHealth {
		t.Errorf("entity = %q, want health", msg.Entity)
	}
}
