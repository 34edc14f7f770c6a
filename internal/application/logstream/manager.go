// Package logstream keeps a bounded, newest-first view of a live log stream
// and reconnects when the stream drops.
package logstream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/pkg/backoff"
	"github.com/doeshing/shai-ops/internal/pkg/ring"
	"github.com/doeshing/shai-ops/internal/ports"
)

// Status is a snapshot of the manager's connection.
type Status struct {
	State     domain.StreamStatus
	Filter    domain.LogLevel
	Attempt   int
	LastError error
	Buffered  int
}

// StatusListener is notified after every status change.
type StatusListener func(Status)

// Config carries the manager's collaborators and retry budget.
type Config struct {
	Source ports.LogSource
	Logger ports.Logger

	Capacity int
	Retry    backoff.Policy

	// Sleep waits between reconnect attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Manager owns one log stream subscription and its record buffer.
type Manager struct {
	source ports.LogSource
	logger ports.Logger
	retry  backoff.Policy
	sleep  func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	buffer    *ring.Buffer[domain.LogRecord]
	state     domain.StreamStatus
	filter    domain.LogLevel
	attempt   int
	lastErr   error
	stream    ports.LogStream
	gen       uint64
	stopRetry context.CancelFunc
	listeners []StatusListener
	// ingested counts every record pushed into the buffer
	ingested uint64
	// openSeq identifies the latest OpenStream call; earlyDrop holds a drop
	// it reported before the manager marked it connected
	openSeq   uint64
	earlyDrop error
}

// New builds a disconnected manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Source == nil || cfg.Logger == nil {
		return nil, errors.New("logstream.Manager dependencies not satisfied")
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = domain.LogBufferCapacity
	}
	retry := cfg.Retry
	if retry.Base <= 0 {
		retry.Base = domain.DefaultRetryBase
	}
	if retry.Max <= 0 {
		retry.Max = domain.DefaultRetryMax
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = domain.DefaultRetryAttempts
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = backoff.Sleep
	}
	return &Manager{
		source: cfg.Source,
		logger: cfg.Logger,
		retry:  retry,
		sleep:  sleep,
		buffer: ring.New[domain.LogRecord](capacity),
		state:  domain.StreamDisconnected,
		filter: domain.LevelAll,
	}, nil
}

// OnStatusChange registers a listener. Listeners run on the goroutine that
// caused the change and must not call back into the manager synchronously.
func (m *Manager) OnStatusChange(fn StatusListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Status returns the current connection snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Connect subscribes to the source and blocks until the handshake completes.
// It is a no-op while a subscription is already live or being established.
func (m *Manager) Connect(ctx context.Context, filter domain.LogLevel) error {
	filter = normalizeLevel(filter)

	m.mu.Lock()
	if m.state != domain.StreamDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	gen := m.gen
	open := m.beginOpenLocked()
	m.filter = filter
	m.attempt = 0
	m.lastErr = nil
	m.state = domain.StreamConnecting
	snap, listeners := m.statusLocked(), m.listenersLocked()
	m.mu.Unlock()
	notify(listeners, snap)

	m.logger.Info("connecting log stream", map[string]interface{}{"filter": string(filter)})

	stream, err := m.source.OpenStream(ctx, filter, m.recordHandler(gen), m.statusHandler(gen, open))
	if err != nil {
		m.mu.Lock()
		if gen == m.gen {
			m.state = domain.StreamDisconnected
			m.lastErr = err
		}
		snap, listeners = m.statusLocked(), m.listenersLocked()
		m.mu.Unlock()
		notify(listeners, snap)
		m.logger.Warn("log stream connect failed", map[string]interface{}{"error": err.Error()})
		return domain.NewError(domain.KindStream, "connect", err)
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		_ = stream.Close()
		return domain.NewError(domain.KindStream, "connect", domain.ErrStreamClosed)
	}
	if dropErr := m.earlyDrop; dropErr != nil {
		m.earlyDrop = nil
		retryCtx, retryFilter := m.beginRetryLocked(dropErr)
		snap, listeners = m.statusLocked(), m.listenersLocked()
		m.mu.Unlock()
		_ = stream.Close()
		notify(listeners, snap)
		m.logger.Warn("log stream dropped after handshake", map[string]interface{}{"error": dropErr.Error()})
		go m.reconnect(retryCtx, gen, retryFilter)
		return nil
	}
	m.stream = stream
	m.state = domain.StreamConnected
	snap, listeners = m.statusLocked(), m.listenersLocked()
	m.mu.Unlock()
	notify(listeners, snap)
	return nil
}

// Ingest adds a record to the buffer, evicting the oldest beyond capacity.
func (m *Manager) Ingest(record domain.LogRecord) {
	m.mu.Lock()
	m.pushLocked(record)
	m.mu.Unlock()
}

// Backfill seeds the buffer with recent records pulled from the source.
// Records arrive newest-first and are pushed oldest-first. limit is capped at
// the buffer capacity.
func (m *Manager) Backfill(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = domain.DefaultBackfillLimit
	}
	m.mu.Lock()
	filter := m.filter
	if capacity := m.buffer.Cap(); limit > capacity {
		limit = capacity
	}
	m.mu.Unlock()

	records, err := m.source.FetchRecent(ctx, filter, limit)
	if err != nil {
		return 0, domain.NewError(domain.KindStream, "backfill", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(records) - 1; i >= 0; i-- {
		m.pushLocked(records[i])
	}
	return len(records), nil
}

// UpdateFilter changes the subscription filter. When connected the source is
// asked to re-subscribe; client-side filtering in ComputeView works either way.
func (m *Manager) UpdateFilter(ctx context.Context, level domain.LogLevel) error {
	level = normalizeLevel(level)

	m.mu.Lock()
	m.filter = level
	stream := m.stream
	connected := m.state == domain.StreamConnected
	snap, listeners := m.statusLocked(), m.listenersLocked()
	m.mu.Unlock()
	notify(listeners, snap)

	if !connected || stream == nil {
		return nil
	}
	if err := stream.UpdateFilter(ctx, level); err != nil {
		m.logger.Warn("log stream filter update failed", map[string]interface{}{
			"filter": string(level),
			"error":  err.Error(),
		})
		return domain.NewError(domain.KindStream, "update filter", err)
	}
	return nil
}

// Disconnect closes the subscription and stops reconnecting. The buffer is kept.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.gen++
	stream := m.stream
	m.stream = nil
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
	changed := m.state != domain.StreamDisconnected
	m.state = domain.StreamDisconnected
	m.attempt = 0
	snap, listeners := m.statusLocked(), m.listenersLocked()
	m.mu.Unlock()

	if changed {
		notify(listeners, snap)
	}
	if stream != nil {
		return stream.Close()
	}
	return nil
}

// Records returns the buffer newest-first.
func (m *Manager) Records() []domain.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Newest()
}

// Since returns the records that arrived after the arrival count seq, newest
// first, with the current count. Records already evicted are not returned, and
// order follows arrival rather than timestamps.
func (m *Manager) Since(seq uint64) ([]domain.LogRecord, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq >= m.ingested {
		return nil, m.ingested
	}
	want := m.ingested - seq
	var out []domain.LogRecord
	m.buffer.EachNewest(func(rec domain.LogRecord) bool {
		if uint64(len(out)) >= want {
			return false
		}
		out = append(out, rec)
		return true
	})
	return out, m.ingested
}

// ComputeView projects the buffer through a level and search filter.
func (m *Manager) ComputeView(level domain.LogLevel, search string) []domain.LogRecord {
	return ComputeView(m.Records(), level, search)
}

// ComputeView keeps records whose level matches exactly (ALL matches any) and
// whose message or source contains search, case-insensitively. It does not
// modify records and keeps their order.
func ComputeView(records []domain.LogRecord, level domain.LogLevel, search string) []domain.LogRecord {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.LogRecord, 0, len(records))
	for _, rec := range records {
		if !level.Admits(rec.Level) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(rec.Message), needle) &&
			!strings.Contains(strings.ToLower(rec.Source), needle) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (m *Manager) recordHandler(gen uint64) ports.RecordHandler {
	return func(rec domain.LogRecord) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen {
			return
		}
		m.pushLocked(rec)
	}
}

// statusHandler reacts to the source reporting a dropped stream. A drop
// reported before the opening call has returned is parked in earlyDrop for
// Connect or reconnect to act on.
func (m *Manager) statusHandler(gen, open uint64) ports.StatusHandler {
	return func(status domain.StreamStatus, err error) {
		if status != domain.StreamDisconnected {
			return
		}
		if err == nil {
			err = domain.ErrStreamClosed
		}
		m.mu.Lock()
		if gen != m.gen || open != m.openSeq {
			m.mu.Unlock()
			return
		}
		switch m.state {
		case domain.StreamConnecting, domain.StreamRetrying:
			m.earlyDrop = err
			m.mu.Unlock()
			return
		case domain.StreamConnected:
		default:
			m.mu.Unlock()
			return
		}
		m.stream = nil
		ctx, filter := m.beginRetryLocked(err)
		snap, listeners := m.statusLocked(), m.listenersLocked()
		m.mu.Unlock()

		notify(listeners, snap)
		m.logger.Warn("log stream dropped", map[string]interface{}{"error": err.Error()})
		go m.reconnect(ctx, gen, filter)
	}
}

// beginRetryLocked moves to Retrying and returns the context the reconnect
// loop runs under.
func (m *Manager) beginRetryLocked(err error) (context.Context, domain.LogLevel) {
	m.state = domain.StreamRetrying
	m.lastErr = err
	m.attempt = 0
	ctx, cancel := context.WithCancel(context.Background())
	m.stopRetry = cancel
	return ctx, m.filter
}

func (m *Manager) beginOpenLocked() uint64 {
	m.openSeq++
	m.earlyDrop = nil
	return m.openSeq
}

func (m *Manager) pushLocked(rec domain.LogRecord) {
	m.buffer.Push(rec)
	m.ingested++
}

// reconnect retries OpenStream with capped exponential backoff until it
// succeeds, the budget runs out, or Disconnect is called.
func (m *Manager) reconnect(ctx context.Context, gen uint64, filter domain.LogLevel) {
	for attempt := 1; attempt <= m.retry.MaxAttempts; attempt++ {
		if err := m.sleep(ctx, m.retry.Delay(attempt)); err != nil {
			return
		}

		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		m.attempt = attempt
		filter = m.filter
		open := m.beginOpenLocked()
		snap, listeners := m.statusLocked(), m.listenersLocked()
		m.mu.Unlock()
		notify(listeners, snap)

		stream, err := m.source.OpenStream(ctx, filter, m.recordHandler(gen), m.statusHandler(gen, open))
		if err != nil {
			m.mu.Lock()
			if gen == m.gen {
				m.lastErr = err
			}
			m.mu.Unlock()
			m.logger.Debug("log stream reconnect failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			continue
		}

		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			_ = stream.Close()
			return
		}
		if dropErr := m.earlyDrop; dropErr != nil {
			m.earlyDrop = nil
			m.lastErr = dropErr
			m.mu.Unlock()
			_ = stream.Close()
			m.logger.Debug("log stream dropped after handshake", map[string]interface{}{
				"attempt": attempt,
				"error":   dropErr.Error(),
			})
			continue
		}
		m.stream = stream
		m.state = domain.StreamConnected
		m.attempt = 0
		m.lastErr = nil
		m.stopRetry = nil
		snap, listeners = m.statusLocked(), m.listenersLocked()
		m.mu.Unlock()
		notify(listeners, snap)
		m.logger.Info("log stream reconnected", map[string]interface{}{"attempt": attempt})
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.state = domain.StreamDisconnected
	m.stopRetry = nil
	snap, listeners := m.statusLocked(), m.listenersLocked()
	m.mu.Unlock()
	notify(listeners, snap)
	m.logger.Error("log stream retry budget exhausted", snap.LastError, map[string]interface{}{
		"attempts": m.retry.MaxAttempts,
	})
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:     m.state,
		Filter:    m.filter,
		Attempt:   m.attempt,
		LastError: m.lastErr,
		Buffered:  m.buffer.Len(),
	}
}

func (m *Manager) listenersLocked() []StatusListener {
	return append([]StatusListener(nil), m.listeners...)
}

func notify(listeners []StatusListener, snap Status) {
	for _, fn := range listeners {
		fn(snap)
	}
}

func normalizeLevel(level domain.LogLevel) domain.LogLevel {
	if level == "" {
		return domain.LevelAll
	}
	return level
}
