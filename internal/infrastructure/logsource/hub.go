// Package logsource provides log sources for the event stream manager: an
// in-process hub fed by the application's own logger, and a client for a
// remote hub exposed over HTTP.
package logsource

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/pkg/ring"
	"github.com/doeshing/shai-ops/internal/ports"
)

// subscriberBuffer is the per-subscriber channel depth.
const subscriberBuffer = 256

// Hub fans published records out to subscribers and keeps a bounded backlog
// for FetchRecent. Publish never blocks: a subscriber that falls behind loses
// records and the loss is counted.
type Hub struct {
	mu      sync.Mutex
	backlog *ring.Buffer[domain.LogRecord]
	subs    map[*subscription]struct{}
	closed  bool
	dropped atomic.Uint64
}

type subscription struct {
	ch    chan domain.LogRecord
	level domain.LogLevel
}

// NewHub creates a hub keeping up to backlog recent records.
func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = domain.LogBufferCapacity
	}
	return &Hub{
		backlog: ring.New[domain.LogRecord](backlog),
		subs:    make(map[*subscription]struct{}),
	}
}

// Publish records rec and offers it to every subscriber whose filter admits it.
func (h *Hub) Publish(rec domain.LogRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.backlog.Push(rec)
	for sub := range h.subs {
		if !sub.level.Admits(rec.Level) {
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of records admitted by level and a function
// that ends the subscription and closes the channel.
func (h *Hub) Subscribe(level domain.LogLevel) (<-chan domain.LogRecord, func()) {
	sub := h.subscribe(level)
	return sub.ch, func() { h.unsubscribe(sub) }
}

// SetLevel changes the filter of a live subscription channel.
func (h *Hub) SetLevel(ch <-chan domain.LogRecord, level domain.LogLevel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.ch == ch {
			sub.level = level
			return true
		}
	}
	return false
}

// FetchRecent returns up to limit backlog records admitted by level, newest first.
func (h *Hub) FetchRecent(_ context.Context, level domain.LogLevel, limit int) ([]domain.LogRecord, error) {
	if limit <= 0 {
		limit = domain.DefaultBackfillLimit
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.LogRecord, 0, limit)
	h.backlog.EachNewest(func(rec domain.LogRecord) bool {
		if level.Admits(rec.Level) {
			out = append(out, rec)
		}
		return len(out) < limit
	})
	return out, nil
}

// OpenStream implements ports.LogSource. The hub is local, so the handshake
// completes as soon as the subscription exists.
func (h *Hub) OpenStream(_ context.Context, filter domain.LogLevel, onRecord ports.RecordHandler, onStatus ports.StatusHandler) (ports.LogStream, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, domain.ErrStreamClosed
	}

	s := &hubStream{hub: h, sub: h.subscribe(filter), done: make(chan struct{})}
	go s.deliver(onRecord, onStatus)
	return s, nil
}

// Dropped returns how many records slow subscribers have missed.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close ends every subscription. Streams opened from the hub report a
// disconnect to their status handler.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

func (h *Hub) subscribe(level domain.LogLevel) *subscription {
	sub := &subscription{ch: make(chan domain.LogRecord, subscriberBuffer), level: level}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

type hubStream struct {
	hub    *Hub
	sub    *subscription
	done   chan struct{}
	closed atomic.Bool
}

func (s *hubStream) deliver(onRecord ports.RecordHandler, onStatus ports.StatusHandler) {
	defer close(s.done)
	for rec := range s.sub.ch {
		onRecord(rec)
	}
	if !s.closed.Load() && onStatus != nil {
		onStatus(domain.StreamDisconnected, domain.ErrStreamClosed)
	}
}

func (s *hubStream) UpdateFilter(_ context.Context, level domain.LogLevel) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.subs[s.sub]; !ok {
		return domain.ErrStreamClosed
	}
	s.sub.level = level
	return nil
}

func (s *hubStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.hub.unsubscribe(s.sub)
	<-s.done
	return nil
}

var _ ports.LogSource = (*Hub)(nil)
