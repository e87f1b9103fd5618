// Package conversation tracks commands that are suspended mid-flight
// waiting for a follow-up message from the same author in the same
// channel. Each wait has a deadline and is canceled on shutdown, so an
// author who never replies cannot leak a suspended handler.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/riddle-engine/internal/models"
)

// Common errors
var (
	ErrExpired    = errors.New("wait expired before a reply arrived")
	ErrCanceled   = errors.New("wait canceled")
	ErrSuperseded = errors.New("wait superseded by a newer command")
)

type pending struct {
	id       string
	reply    chan models.Message
	canceled chan struct{}
	err      error
}

// Waiter parks awaiting handlers and resolves them as inbound messages
// arrive. Keys are (channel, author) pairs: one pending wait per pair, a
// newer command supersedes an older one.
type Waiter struct {
	timeout time.Duration

	mu     sync.Mutex
	waits  map[string]*pending
	closed bool
}

// NewWaiter creates a Waiter. A non-positive timeout defaults to 5 minutes.
func NewWaiter(timeout time.Duration) *Waiter {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Waiter{
		timeout: timeout,
		waits:   make(map[string]*pending),
	}
}

func key(channelID, authorID string) string {
	return channelID + "\x00" + authorID
}

// Await blocks until the author's next message in the channel, the
// timeout, a superseding wait, context cancellation or Close.
func (w *Waiter) Await(ctx context.Context, channelID, authorID string) (models.Message, error) {
	k := key(channelID, authorID)
	p := &pending{
		id:       uuid.NewString(),
		reply:    make(chan models.Message, 1),
		canceled: make(chan struct{}),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return models.Message{}, ErrCanceled
	}
	if old, ok := w.waits[k]; ok {
		old.err = ErrSuperseded
		close(old.canceled)
	}
	w.waits[k] = p
	w.mu.Unlock()

	defer w.remove(k, p.id)

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case msg := <-p.reply:
		return msg, nil
	case <-p.canceled:
		return models.Message{}, p.err
	case <-timer.C:
		return models.Message{}, ErrExpired
	case <-ctx.Done():
		return models.Message{}, ctx.Err()
	}
}

// Observe offers an inbound message to the scheduler. It reports true when
// the message resolved a pending wait and must not be dispatched further.
func (w *Waiter) Observe(msg models.Message) bool {
	k := key(msg.ChannelID, msg.AuthorID)

	w.mu.Lock()
	p, ok := w.waits[k]
	if ok {
		delete(w.waits, k)
	}
	w.mu.Unlock()

	if !ok {
		return false
	}
	p.reply <- msg
	return true
}

// Pending reports whether a wait is registered for the pair, mainly for
// tests and diagnostics.
func (w *Waiter) Pending(channelID, authorID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.waits[key(channelID, authorID)]
	return ok
}

// Close cancels every pending wait. Subsequent Await calls fail with
// ErrCanceled.
func (w *Waiter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for k, p := range w.waits {
		p.err = ErrCanceled
		close(p.canceled)
		delete(w.waits, k)
	}
}

func (w *Waiter) remove(k, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.waits[k]; ok && p.id == id {
		delete(w.waits, k)
	}
}
