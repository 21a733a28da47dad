package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/eventpilot/internal/notify"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) notify.Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got notify.Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return notify.Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "")
	c2 := mockClient(hub, "u1")
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	// Should not panic
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastFiltersByUser(t *testing.T) {
	hub := NewHub(slog.Default())

	all := mockClient(hub, "")
	alice := mockClient(hub, "alice")
	bob := mockClient(hub, "bob")
	for _, c := range []*Client{all, alice, bob} {
		hub.Register(c)
		defer hub.Unregister(c)
	}

	msg := notify.NewMessage("event", "created", "evt-1", nil)
	msg.Users = []string{"alice"}
	hub.Broadcast(msg)

	for _, c := range []*Client{all, alice} {
		got := receive(t, c)
		if got.Type != "event_created" {
			t.Errorf("type = %q, want %q", got.Type, "event_created")
		}
		if got.ID != "evt-1" {
			t.Errorf("id = %q, want %q", got.ID, "evt-1")
		}
	}

	select {
	case data := <-bob.send:
		t.Errorf("bob received %s, want nothing", data)
	default:
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "")
	hub.Register(c)
	defer hub.Unregister(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(notify.NewMessage("test", "fill", "", nil))
	}
	// This should drop the message, not panic or block
	hub.Broadcast(notify.NewMessage("test", "dropped", "", nil))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
}

func TestNotifyRequiresType(t *testing.T) {
	hub := NewHub(slog.Default())
	if err := hub.Notify(context.Background(), notify.Message{}); err == nil {
		t.Error("expected error for message without type")
	}
	if err := hub.Notify(context.Background(), notify.NewMessage("user", "created", "u1", nil)); err != nil {
		t.Errorf("notify: %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "")
			hub.Register(c)
			hub.Broadcast(notify.NewMessage("test", "concurrent", "", nil))
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

func TestHandleWebSocketDeliversNotifications(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(HandleWebSocket(hub))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=alice"
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msg := notify.NewMessage("event", "deleted", "evt-9", nil)
	msg.Users = []string{"alice"}
	if err := hub.Notify(ctx, msg); err != nil {
		t.Fatalf("notify: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got notify.Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "event_deleted" || got.ID != "evt-9" {
		t.Errorf("got %+v, want event_deleted evt-9", got)
	}
}
