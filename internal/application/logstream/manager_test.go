package logstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/pkg/backoff"
	"github.com/doeshing/shai-ops/internal/pkg/logger"
	"github.com/doeshing/shai-ops/internal/ports"
)

func TestConnectIngestAndDisconnect(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(t, src, 3)
	ctx := context.Background()

	var seen []domain.StreamStatus
	var mu sync.Mutex
	m.OnStatusChange(func(s Status) {
		mu.Lock()
		seen = append(seen, s.State)
		mu.Unlock()
	})

	require.NoError(t, m.Connect(ctx, domain.LevelAll))
	assert.Equal(t, domain.StreamConnected, m.Status().State)
	require.NoError(t, m.Connect(ctx, domain.LevelError))
	assert.Equal(t, 1, src.opens(), "second connect must be a no-op")

	src.emit(rec(domain.LevelInfo, "one"))
	src.emit(rec(domain.LevelError, "two"))
	records := m.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "two", records[0].Message)

	require.NoError(t, m.Disconnect())
	assert.Equal(t, domain.StreamDisconnected, m.Status().State)
	assert.Len(t, m.Records(), 2, "buffer survives disconnect")
	assert.True(t, src.lastStream().closed)

	src.emit(rec(domain.LevelInfo, "late"))
	assert.Len(t, m.Records(), 2, "records from a closed stream are ignored")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.StreamStatus{
		domain.StreamConnecting,
		domain.StreamConnected,
		domain.StreamDisconnected,
	}, seen)
}

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	src := &fakeSource{failures: []error{errors.New("connection refused")}}
	m := newTestManager(t, src, 3)

	err := m.Connect(context.Background(), domain.LevelAll)
	require.Error(t, err)
	assert.Equal(t, domain.KindStream, domain.KindOf(err))
	st := m.Status()
	assert.Equal(t, domain.StreamDisconnected, st.State)
	assert.EqualError(t, st.LastError, "connection refused")
}

func TestBufferKeepsNewestThousand(t *testing.T) {
	m := newTestManager(t, &fakeSource{}, 3)
	for i := 0; i < 1500; i++ {
		m.Ingest(rec(domain.LevelInfo, fmt.Sprintf("msg %d", i)))
	}
	records := m.Records()
	require.Len(t, records, domain.LogBufferCapacity)
	assert.Equal(t, "msg 1499", records[0].Message)
	assert.Equal(t, "msg 500", records[len(records)-1].Message)
}

func TestBufferBoundProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("buffer is bounded and keeps the most recent records", prop.ForAll(
		func(n int) bool {
			m := newTestManager(t, &fakeSource{}, 3)
			for i := 0; i < n; i++ {
				m.Ingest(rec(domain.LevelInfo, fmt.Sprintf("%d", i)))
			}
			records := m.Records()
			want := n
			if want > domain.LogBufferCapacity {
				want = domain.LogBufferCapacity
			}
			if len(records) != want {
				return false
			}
			for i, r := range records {
				if r.Message != fmt.Sprintf("%d", n-1-i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 2500),
	))

	properties.TestingRun(t)
}

func TestComputeViewFiltersAndIsIdempotent(t *testing.T) {
	records := []domain.LogRecord{
		{Level: domain.LevelError, Source: "api", Message: "Disk full"},
		{Level: domain.LevelInfo, Source: "worker", Message: "job done"},
		{Level: domain.LevelError, Source: "DISK-monitor", Message: "threshold"},
		{Level: domain.LevelWarning, Source: "api", Message: "slow disk"},
	}

	errorsOnly := ComputeView(records, domain.LevelError, "")
	assert.Len(t, errorsOnly, 2)

	disk := ComputeView(records, domain.LevelAll, "disk")
	assert.Len(t, disk, 3)

	both := ComputeView(records, domain.LevelError, "DISK")
	assert.Len(t, both, 2)
	assert.Equal(t, both, ComputeView(both, domain.LevelError, "DISK"))

	assert.Len(t, records, 4, "input untouched")
	assert.Equal(t, "Disk full", records[0].Message)
}

func TestUpdateFilterResubscribesWhenConnected(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(t, src, 3)
	ctx := context.Background()

	require.NoError(t, m.UpdateFilter(ctx, domain.LevelError))
	assert.Equal(t, domain.LevelError, m.Status().Filter)

	require.NoError(t, m.Connect(ctx, domain.LevelAll))
	require.NoError(t, m.UpdateFilter(ctx, domain.LevelWarning))
	assert.Equal(t, []domain.LogLevel{domain.LevelWarning}, src.lastStream().filters())
}

func TestDropTriggersRetryThenRecovers(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(t, src, 5)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []domain.StreamStatus
	m.OnStatusChange(func(s Status) {
		mu.Lock()
		seen = append(seen, s.State)
		mu.Unlock()
	})

	require.NoError(t, m.Connect(ctx, domain.LevelInfo))
	src.queueFailures(errors.New("refused"), errors.New("refused"))
	src.drop(errors.New("eof"))

	assert.Eventually(t, func() bool {
		return m.Status().State == domain.StreamConnected
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, src.opens())
	assert.Equal(t, domain.LevelInfo, src.lastFilter())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, domain.StreamRetrying)
}

func TestRetryBudgetExhaustedEndsDisconnected(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(t, src, 3)

	require.NoError(t, m.Connect(context.Background(), domain.LevelAll))
	m.Ingest(rec(domain.LevelInfo, "kept"))
	src.queueFailures(errors.New("down"), errors.New("down"), errors.New("still down"))
	src.drop(errors.New("eof"))

	assert.Eventually(t, func() bool {
		return m.Status().State == domain.StreamDisconnected
	}, 2*time.Second, 5*time.Millisecond)
	st := m.Status()
	assert.EqualError(t, st.LastError, "still down")
	assert.Equal(t, 4, src.opens())
	assert.Len(t, m.Records(), 1, "no records are synthesized")
}

func TestDisconnectStopsRetrying(t *testing.T) {
	src := &fakeSource{}
	release := make(chan struct{})
	m, err := New(Config{
		Source: src,
		Logger: logger.NewStd(false),
		Retry:  backoff.Policy{Base: time.Millisecond, Max: time.Millisecond, MaxAttempts: 3},
		Sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-release:
				return nil
			}
		},
	})
	require.NoError(t, err)

	require.NoError(t, m.Connect(context.Background(), domain.LevelAll))
	src.drop(errors.New("eof"))
	assert.Equal(t, domain.StreamRetrying, m.Status().State)

	require.NoError(t, m.Disconnect())
	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, domain.StreamDisconnected, m.Status().State)
	assert.Equal(t, 1, src.opens())
}

func TestBackfillSeedsBufferOldestFirst(t *testing.T) {
	src := &fakeSource{recent: []domain.LogRecord{
		rec(domain.LevelInfo, "newest"),
		rec(domain.LevelInfo, "middle"),
		rec(domain.LevelInfo, "oldest"),
	}}
	m := newTestManager(t, src, 3)

	n, err := m.Backfill(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	records := m.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "newest", records[0].Message)
	assert.Equal(t, "oldest", records[2].Message)
}

func TestDropDuringHandshakeIsNotReportedAsConnected(t *testing.T) {
	src := &fakeSource{earlyDrops: 1}
	m := newTestManager(t, src, 3)

	var mu sync.Mutex
	var seen []domain.StreamStatus
	m.OnStatusChange(func(s Status) {
		mu.Lock()
		seen = append(seen, s.State)
		mu.Unlock()
	})

	require.NoError(t, m.Connect(context.Background(), domain.LevelAll))
	assert.Eventually(t, func() bool {
		return m.Status().State == domain.StreamConnected && src.opens() == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, src.stream(0).isClosed())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, domain.StreamRetrying)
}

func TestStreamsThatAlwaysDieEarlyEndDisconnected(t *testing.T) {
	src := &fakeSource{earlyDrops: 10}
	m := newTestManager(t, src, 3)

	require.NoError(t, m.Connect(context.Background(), domain.LevelAll))
	assert.Eventually(t, func() bool {
		return m.Status().State == domain.StreamDisconnected
	}, 2*time.Second, 5*time.Millisecond)
	assert.EqualError(t, m.Status().LastError, "eof after handshake")
	assert.Equal(t, 4, src.opens())
}

func TestBackfillClampsToCapacity(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(t, src, 3)

	_, err := m.Backfill(context.Background(), 5000)
	require.NoError(t, err)
	assert.Equal(t, domain.LogBufferCapacity, src.lastLimit)

	_, err = m.Backfill(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBackfillLimit, src.lastLimit)
}

func TestSinceFollowsArrivalOrder(t *testing.T) {
	m := newTestManager(t, &fakeSource{}, 3)
	ts := time.Date(2025, 10, 8, 10, 0, 0, 0, time.UTC)

	records, seq := m.Since(0)
	assert.Empty(t, records)
	assert.Zero(t, seq)

	m.Ingest(domain.LogRecord{Timestamp: ts, Level: domain.LevelInfo, Message: "first"})
	records, seq = m.Since(seq)
	require.Len(t, records, 1)

	m.Ingest(domain.LogRecord{Timestamp: ts, Level: domain.LevelInfo, Message: "same second"})
	m.Ingest(domain.LogRecord{Timestamp: ts.Add(-time.Minute), Level: domain.LevelInfo, Message: "late arrival"})
	records, seq = m.Since(seq)
	require.Len(t, records, 2)
	assert.Equal(t, "late arrival", records[0].Message)
	assert.Equal(t, "same second", records[1].Message)

	records, _ = m.Since(seq)
	assert.Empty(t, records)
}

func TestSinceStopsAtEvictedRecords(t *testing.T) {
	m, err := New(Config{Source: &fakeSource{}, Logger: logger.NewStd(false), Capacity: 3})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		m.Ingest(rec(domain.LevelInfo, fmt.Sprintf("msg %d", i)))
	}
	records, seq := m.Since(0)
	assert.Equal(t, uint64(5), seq)
	require.Len(t, records, 3)
	assert.Equal(t, "msg 4", records[0].Message)
}

func newTestManager(t *testing.T, src *fakeSource, attempts int) *Manager {
	t.Helper()
	m, err := New(Config{
		Source: src,
		Logger: logger.NewStd(false),
		Retry:  backoff.Policy{Base: time.Millisecond, Max: 2 * time.Millisecond, MaxAttempts: attempts},
		Sleep:  func(context.Context, time.Duration) error { return nil },
	})
	require.NoError(t, err)
	return m
}

func rec(level domain.LogLevel, msg string) domain.LogRecord {
	return domain.LogRecord{Timestamp: time.Now(), Level: level, Source: "test", Message: msg}
}

type fakeSource struct {
	mu       sync.Mutex
	failures []error
	recent   []domain.LogRecord
	streams  []*fakeStream
	calls    int
	filter   domain.LogLevel
	onRecord ports.RecordHandler
	onStatus ports.StatusHandler

	// earlyDrops makes the next N opens report a drop before returning.
	earlyDrops int
	lastLimit  int
}

func (f *fakeSource) FetchRecent(_ context.Context, _ domain.LogLevel, limit int) ([]domain.LogRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeSource) OpenStream(_ context.Context, filter domain.LogLevel, onRecord ports.RecordHandler, onStatus ports.StatusHandler) (ports.LogStream, error) {
	f.mu.Lock()
	f.calls++
	f.filter = filter
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.onRecord = onRecord
	f.onStatus = onStatus
	s := &fakeStream{}
	f.streams = append(f.streams, s)
	dropNow := f.earlyDrops > 0
	if dropNow {
		f.earlyDrops--
	}
	f.mu.Unlock()

	if dropNow {
		// the reader ended before the caller saw the stream
		onStatus(domain.StreamDisconnected, errors.New("eof after handshake"))
	}
	return s, nil
}

func (f *fakeSource) emit(r domain.LogRecord) {
	f.mu.Lock()
	fn := f.onRecord
	f.mu.Unlock()
	fn(r)
}

func (f *fakeSource) drop(err error) {
	f.mu.Lock()
	fn := f.onStatus
	f.mu.Unlock()
	fn(domain.StreamDisconnected, err)
}

func (f *fakeSource) queueFailures(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

func (f *fakeSource) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) lastFilter() domain.LogLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter
}

func (f *fakeSource) lastStream() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

func (f *fakeSource) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

type fakeStream struct {
	mu      sync.Mutex
	updates []domain.LogLevel
	closed  bool
}

func (s *fakeStream) UpdateFilter(_ context.Context, level domain.LogLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, level)
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) filters() []domain.LogLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LogLevel(nil), s.updates...)
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
