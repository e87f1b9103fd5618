package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/riddle-engine/internal/models"
)

type recordingHandler struct {
	mu       sync.Mutex
	messages []models.Message
	adds     []models.Reaction
	removes  []models.Reaction
	joins    []models.Member
}

func (h *recordingHandler) OnMessage(ctx context.Context, msg models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

func (h *recordingHandler) OnReactionAdd(ctx context.Context, r models.Reaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.adds = append(h.adds, r)
}

func (h *recordingHandler) OnReactionRemove(ctx context.Context, r models.Reaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removes = append(h.removes, r)
}

func (h *recordingHandler) OnMemberJoin(ctx context.Context, m models.Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joins = append(h.joins, m)
}

func (h *recordingHandler) counts() (int, int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages), len(h.adds), len(h.removes), len(h.joins)
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func frame(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	out, err := json.Marshal(Frame{Type: typ, Data: data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return out
}

// newTestClient wires a client with a tight constant backoff so reconnect
// tests finish quickly.
func newTestClient(url string, h Handler) *Client {
	c := New(url, "test-token", h)
	c.newBackoff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(5 * time.Millisecond)
	}
	return c
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDispatchesDecodedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		frames := [][]byte{
			frame(t, "message_create", models.Message{ID: "m1", ChannelID: "c1", AuthorID: "a1", Content: "hi"}),
			frame(t, "reaction_add", models.Reaction{MessageID: "m1", MemberID: "a1", Emoji: "🔔"}),
			frame(t, "reaction_remove", models.Reaction{MessageID: "m1", MemberID: "a1", Emoji: "🔔"}),
			frame(t, "member_join", models.Member{ID: "a2", Name: "newbie"}),
			[]byte(`{"type":"presence_update","data":{}}`),
			[]byte(`not json`),
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = newTestClient(wsURL(srv), h).Run(ctx)
	}()

	waitFor(t, func() bool {
		msgs, adds, removes, joins := h.counts()
		return msgs == 1 && adds == 1 && removes == 1 && joins == 1
	})
	cancel()
	<-done

	if h.messages[0].Content != "hi" || h.messages[0].ChannelID != "c1" {
		t.Errorf("message = %+v", h.messages[0])
	}
	if h.joins[0].Name != "newbie" {
		t.Errorf("join = %+v", h.joins[0])
	}
}

func TestReconnectsAfterConnectionDrop(t *testing.T) {
	var mu sync.Mutex
	connections := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		connections++
		n := connections
		mu.Unlock()

		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		payload := frame(t, "message_create", models.Message{ID: "m", Content: "conn"})
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection right after the frame.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = newTestClient(wsURL(srv), h).Run(ctx)
	}()

	waitFor(t, func() bool {
		msgs, _, _, _ := h.counts()
		return msgs >= 2
	})
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if connections < 2 {
		t.Errorf("connections = %d, want at least 2", connections)
	}
}

func TestHeartbeatIsAcknowledged(t *testing.T) {
	acked := make(chan Frame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(Frame{Type: "heartbeat"}); err != nil {
			return
		}
		var reply Frame
		if err := conn.ReadJSON(&reply); err != nil {
			return
		}
		select {
		case acked <- reply:
		default:
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = newTestClient(wsURL(srv), h).Run(ctx)
	}()

	select {
	case reply := <-acked:
		if reply.Type != "heartbeat_ack" {
			t.Errorf("reply type = %q, want heartbeat_ack", reply.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat never acknowledged")
	}
	// Heartbeats are control traffic, not events.
	if msgs, adds, removes, joins := h.counts(); msgs+adds+removes+joins != 0 {
		t.Errorf("heartbeat reached the handler: %d/%d/%d/%d", msgs, adds, removes, joins)
	}
	cancel()
	<-done
}

func TestSendsAuthorizationHeader(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case got <- r.Header.Get("Authorization"):
		default:
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = newTestClient(wsURL(srv), &recordingHandler{}).Run(ctx)
	}()

	select {
	case header := <-got:
		if header != "Bearer test-token" {
			t.Errorf("Authorization = %q", header)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never dialed")
	}
	cancel()
	<-done
}
