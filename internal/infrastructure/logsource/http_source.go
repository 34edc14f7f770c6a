package logsource

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// HandshakeComment is the SSE comment a log stream server sends once the
// subscription is live.
const HandshakeComment = ": connected"

// HTTPSource reads logs from a remote `shai serve` instance.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no overall timeout; streams live until closed.
	streamClient *http.Client
}

// NewHTTPSource builds a source for baseURL (e.g. http://127.0.0.1:8787).
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: domain.DefaultHTTPClientTimeout},
		streamClient: &http.Client{},
	}
}

// FetchRecent implements ports.LogSource via GET /api/logs.
func (s *HTTPSource) FetchRecent(ctx context.Context, level domain.LogLevel, limit int) ([]domain.LogRecord, error) {
	q := url.Values{}
	q.Set("level", string(level))
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/logs?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching logs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var records []domain.LogRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("parsing logs: %w", err)
	}
	return records, nil
}

// OpenStream implements ports.LogSource via SSE on GET /api/logs/stream. It
// returns once the server's handshake comment has been read.
func (s *HTTPSource) OpenStream(ctx context.Context, filter domain.LogLevel, onRecord ports.RecordHandler, onStatus ports.StatusHandler) (ports.LogStream, error) {
	stream := &httpStream{source: s, onRecord: onRecord, onStatus: onStatus}
	if err := stream.open(ctx, filter); err != nil {
		return nil, err
	}
	return stream, nil
}

type httpStream struct {
	source   *HTTPSource
	onRecord ports.RecordHandler
	onStatus ports.StatusHandler

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	closed bool
}

// open connects with level and swaps the new connection in, retiring the old one.
func (s *httpStream) open(ctx context.Context, level domain.LogLevel) error {
	streamCtx, cancel := context.WithCancel(context.Background())
	// until the handshake the caller's context governs the request
	stop := context.AfterFunc(ctx, cancel)

	q := url.Values{}
	q.Set("level", string(level))
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, s.source.baseURL+"/api/logs/stream?"+q.Encode(), nil)
	if err != nil {
		stop()
		cancel()
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.source.streamClient.Do(req)
	if err != nil {
		stop()
		cancel()
		return fmt.Errorf("connecting to log stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		stop()
		cancel()
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if err := awaitHandshake(scanner); err != nil {
		resp.Body.Close()
		stop()
		cancel()
		return err
	}
	if !stop() {
		resp.Body.Close()
		cancel()
		return ctx.Err()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		resp.Body.Close()
		cancel()
		return domain.ErrStreamClosed
	}
	previous := s.cancel
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	if previous != nil {
		previous()
	}
	go s.read(scanner, resp.Body, gen)
	return nil
}

func awaitHandshake(scanner *bufio.Scanner) error {
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, HandshakeComment) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading log stream handshake: %w", err)
	}
	return errors.New("log stream closed before handshake")
}

func (s *httpStream) read(scanner *bufio.Scanner, body io.ReadCloser, gen uint64) {
	defer body.Close()
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var rec domain.LogRecord
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &rec); err != nil {
			continue
		}
		if !s.current(gen) {
			return
		}
		s.onRecord(rec)
	}

	if !s.current(gen) || s.onStatus == nil {
		return
	}
	err := scanner.Err()
	if err == nil {
		err = domain.ErrStreamClosed
	}
	s.onStatus(domain.StreamDisconnected, err)
}

func (s *httpStream) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && gen == s.gen
}

// UpdateFilter reopens the stream with the new level. The old connection is
// kept if the new one cannot be established.
func (s *httpStream) UpdateFilter(ctx context.Context, level domain.LogLevel) error {
	return s.open(ctx, level)
}

func (s *httpStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

var _ ports.LogSource = (*HTTPSource)(nil)
