// Package gateway maintains the event-stream connection to the chat
// platform. It dials the websocket gateway, decodes event frames and hands
// them to a Handler; dropped connections are redialed with exponential
// backoff until the context ends.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/riddle-engine/internal/models"
)

// Handler receives decoded gateway events. Implementations must not block
// for long; the read loop is single-threaded per connection.
type Handler interface {
	OnMessage(ctx context.Context, msg models.Message)
	OnReactionAdd(ctx context.Context, r models.Reaction)
	OnReactionRemove(ctx context.Context, r models.Reaction)
	OnMemberJoin(ctx context.Context, m models.Member)
}

// Frame is the envelope of every gateway event.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client is the gateway connection manager.
type Client struct {
	url     string
	token   string
	handler Handler

	dialer     *websocket.Dialer
	newBackoff func() backoff.BackOff
}

// New creates a gateway client for the given websocket URL.
func New(url, token string, handler Handler) *Client {
	return &Client{
		url:     url,
		token:   token,
		handler: handler,
		dialer:  websocket.DefaultDialer,
		newBackoff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = time.Minute
			// Reconnect until the context is canceled.
			bo.MaxElapsedTime = 0
			return bo
		},
	}
}

// Run connects and processes events until ctx is canceled. Every dropped
// connection is redialed; the backoff resets after a session that received
// at least one frame.
func (c *Client) Run(ctx context.Context) error {
	bo := c.newBackoff()
	for {
		received, err := c.session(ctx)
		if ctx.Err() != nil {
			slog.Info("gateway stopped")
			return ctx.Err()
		}
		if err != nil {
			slog.Warn("gateway session ended", "error", err)
		}
		if received > 0 {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("gateway reconnect budget exhausted")
		}
		slog.Info("gateway reconnecting", "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection and returns the number of frames received.
func (c *Client) session(ctx context.Context) (int, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return 0, fmt.Errorf("failed to dial gateway (status %d): %w", resp.StatusCode, err)
		}
		return 0, fmt.Errorf("failed to dial gateway: %w", err)
	}
	slog.Info("gateway connected", "url", c.url)

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	received := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return received, fmt.Errorf("gateway read failed: %w", err)
			}
			return received, nil
		}
		received++

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Debug("invalid gateway frame", "error", err)
			continue
		}
		if frame.Type == "heartbeat" {
			// Answered from the read loop so the ack never races another
			// write on the connection.
			if err := conn.WriteJSON(Frame{Type: "heartbeat_ack"}); err != nil {
				return received, fmt.Errorf("failed to ack heartbeat: %w", err)
			}
			continue
		}
		c.dispatch(ctx, frame)
	}
}

func (c *Client) dispatch(ctx context.Context, frame Frame) {
	switch frame.Type {
	case "message_create":
		var msg models.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			slog.Debug("invalid message_create payload", "error", err)
			return
		}
		c.handler.OnMessage(ctx, msg)
	case "reaction_add", "reaction_remove":
		var r models.Reaction
		if err := json.Unmarshal(frame.Data, &r); err != nil {
			slog.Debug("invalid reaction payload", "error", err)
			return
		}
		if frame.Type == "reaction_add" {
			c.handler.OnReactionAdd(ctx, r)
		} else {
			c.handler.OnReactionRemove(ctx, r)
		}
	case "member_join":
		var m models.Member
		if err := json.Unmarshal(frame.Data, &m); err != nil {
			slog.Debug("invalid member_join payload", "error", err)
			return
		}
		c.handler.OnMemberJoin(ctx, m)
	default:
		slog.Debug("unhandled gateway event", "type", frame.Type)
	}
}
