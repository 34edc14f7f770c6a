package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/pkg/logger"
)

func TestSubmitIntentRejectsEmptyText(t *testing.T) {
	h := newHarness(t, nil)

	turn, err := h.orch.SubmitIntent(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.True(t, errors.Is(err, domain.ErrEmptyIntent))
	assert.Empty(t, turn.ID)
	assert.Empty(t, h.orch.Turns())
	assert.Zero(t, h.translator.callCount())
}

func TestSafeCommandExecutesAndIsRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "Get-Date", Confidence: 0.95, Explanation: "Shows the time", Risk: "safe"}
	h.executor.result = domain.ExecutionResult{Output: "2025-10-08 10:30:00", ExitCode: 0, ElapsedSeconds: 0.3}

	turn, err := h.orch.SubmitIntent(context.Background(), "显示当前时间")
	require.NoError(t, err)

	assert.Equal(t, domain.StateSettled, turn.State)
	require.NotNil(t, turn.Outcome)
	assert.True(t, turn.Outcome.Success)
	assert.Equal(t, "2025-10-08 10:30:00", *turn.Outcome.Output)
	assert.NotEmpty(t, turn.HistoryID)
	assert.Equal(t, 1, h.executor.callCount())

	records := h.store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "显示当前时间", records[0].UserInput)
	assert.Equal(t, "Get-Date", records[0].Command)
	assert.True(t, records[0].Success)
	assert.Equal(t, h.orch.SessionID(), records[0].SessionID)
	assert.Equal(t, domain.StateIdle, h.orch.State())
}

func TestCriticalCommandRequiresExactLiteral(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "rm -rf /tmp/x", Confidence: 0.9, Risk: "critical"}
	h.executor.result = domain.ExecutionResult{ExitCode: 0}
	ctx := context.Background()

	proposal, err := h.orch.SubmitIntent(ctx, "delete /tmp/x")
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingConfirmation, proposal.State)
	require.NotNil(t, proposal.Confirmation)
	assert.Equal(t, domain.ConfirmExactText, proposal.Confirmation.Mode)
	assert.Equal(t, "EXECUTE", proposal.Confirmation.RequiredLiteral)
	assert.Equal(t, domain.StateAwaitingConfirmation, h.orch.State())

	for _, wrong := range []string{"execute", "EXECUTE ", "yes", ""} {
		turn, err := h.orch.Confirm(ctx, proposal.ID, wrong)
		require.Error(t, err, "entry %q", wrong)
		assert.True(t, errors.Is(err, domain.ErrConfirmationMismatch))
		assert.Equal(t, domain.StateAwaitingConfirmation, turn.State)
	}
	assert.Zero(t, h.executor.callCount())

	settled, err := h.orch.Confirm(ctx, proposal.ID, "EXECUTE")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, settled.State)
	assert.Nil(t, settled.Confirmation)
	assert.Equal(t, 1, h.executor.callCount())
	assert.Len(t, h.store.all(), 1)
}

func TestMediumRiskUsesSimpleConfirm(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "git reset --hard", Risk: "medium"}
	ctx := context.Background()

	proposal, err := h.orch.SubmitIntent(ctx, "discard my changes")
	require.NoError(t, err)
	require.NotNil(t, proposal.Confirmation)
	assert.Equal(t, domain.ConfirmSimple, proposal.Confirmation.Mode)

	settled, err := h.orch.Confirm(ctx, proposal.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, settled.State)
}

func TestElevationIsDisclosed(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "sudo systemctl restart nginx", Risk: "high", RequiresElevation: true}

	proposal, err := h.orch.SubmitIntent(context.Background(), "restart nginx")
	require.NoError(t, err)
	require.NotNil(t, proposal.Confirmation)
	assert.True(t, proposal.Confirmation.DiscloseElevation)
}

func TestCancelPreventsExecution(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "shutdown now", Risk: "high"}
	ctx := context.Background()

	proposal, err := h.orch.SubmitIntent(ctx, "turn it off")
	require.NoError(t, err)

	cancelled, err := h.orch.Cancel(proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, cancelled.State)
	assert.Nil(t, cancelled.Outcome)

	_, err = h.orch.Confirm(ctx, proposal.ID, "EXECUTE")
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
	_, err = h.orch.Cancel(proposal.ID)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	assert.Zero(t, h.executor.callCount())
	assert.Empty(t, h.store.all())
	assert.Equal(t, domain.StateIdle, h.orch.State())
}

func TestConfirmUnknownTurn(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.Confirm(context.Background(), "nope", "EXECUTE")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestTransportFailureProducesNoticeAndNoRecord(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "sleep 100", Risk: "low"}
	h.executor.err = fmt.Errorf("waiting for execution service: %w", context.DeadlineExceeded)
	ctx := context.Background()

	notice, err := h.orch.SubmitIntent(ctx, "wait a long time")
	require.Error(t, err)
	assert.Equal(t, domain.KindTransport, domain.KindOf(err))
	assert.Equal(t, domain.TurnSystemNotice, notice.Kind)
	assert.Equal(t, domain.NoticeTransport, notice.Notice)
	assert.Empty(t, h.store.all())
	assert.Equal(t, domain.StateIdle, h.orch.State())

	turns := h.orch.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, domain.StateSettled, turns[1].State)
	assert.Nil(t, turns[1].Outcome)
	assert.Equal(t, turns[1].ID, notice.RelatesTo)

	h.executor.setErr(nil)
	h.translator.reply = domain.Translation{Command: "echo ok", Risk: "safe"}
	next, err := h.orch.SubmitIntent(ctx, "say ok")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, next.State)
}

func TestFailedCommandIsRecordedAsFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "ls /missing", Risk: "safe"}
	h.executor.result = domain.ExecutionResult{Error: "ls: /missing: No such file or directory", ExitCode: 2, ElapsedSeconds: 0.01}

	turn, err := h.orch.SubmitIntent(context.Background(), "list missing dir")
	require.NoError(t, err)
	require.NotNil(t, turn.Outcome)
	assert.False(t, turn.Outcome.Success)
	assert.Equal(t, 2, turn.Outcome.ExitCode)

	records := h.store.all()
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	require.NotNil(t, records[0].Error)
}

func TestTranslationFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.err = errors.New("model unavailable")

	notice, err := h.orch.SubmitIntent(context.Background(), "list files")
	require.Error(t, err)
	assert.Equal(t, domain.KindTranslation, domain.KindOf(err))
	assert.Equal(t, domain.NoticeTranslation, notice.Notice)
	assert.Equal(t, 1, h.translator.callCount())
	assert.Zero(t, h.executor.callCount())
	assert.Equal(t, domain.StateIdle, h.orch.State())
}

func TestOverlappingSubmissionIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "ls", Risk: "safe"}
	h.translator.gate = make(chan struct{})
	h.translator.entered = make(chan struct{}, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.orch.SubmitIntent(ctx, "first")
	}()
	<-h.translator.entered

	assert.Equal(t, domain.StateTranslating, h.orch.State())
	turn, err := h.orch.SubmitIntent(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, domain.KindBusy, domain.KindOf(err))
	assert.Empty(t, turn.ID)
	_, err = h.orch.Clear()
	assert.Equal(t, domain.KindBusy, domain.KindOf(err))

	close(h.translator.gate)
	wg.Wait()
	assert.Equal(t, 1, h.translator.callCount())
	assert.Equal(t, domain.StateIdle, h.orch.State())
}

func TestPersistenceFailureKeepsOutcome(t *testing.T) {
	h := newHarness(t, errors.New("disk full"))
	h.translator.reply = domain.Translation{Command: "uptime", Risk: "safe"}
	h.executor.result = domain.ExecutionResult{Output: "up 3 days"}

	turn, err := h.orch.SubmitIntent(context.Background(), "how long has it been up")
	require.NoError(t, err)
	require.NotNil(t, turn.Outcome)
	assert.True(t, turn.Outcome.Success)
	assert.Empty(t, turn.HistoryID)

	turns := h.orch.Turns()
	last := turns[len(turns)-1]
	assert.Equal(t, domain.NoticePersistence, last.Notice)
	assert.Equal(t, turn.ID, last.RelatesTo)
	assert.Equal(t, 1, h.store.appendCalls())
}

func TestTranslationContextCarriesRecentTurns(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "echo", Risk: "safe"}
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := h.orch.SubmitIntent(ctx, fmt.Sprintf("intent %d", i))
		require.NoError(t, err)
	}
	_, err := h.orch.SubmitIntent(ctx, "intent 4")
	require.NoError(t, err)

	req := h.translator.lastRequest()
	require.Len(t, req.Context, domain.DefaultContextTurns)
	last := req.Context[len(req.Context)-1]
	assert.Equal(t, domain.TurnAssistantProposal, last.Kind)
	assert.Equal(t, "echo", last.Command)
	assert.Equal(t, "intent 4", req.Text)
	for _, ct := range req.Context {
		assert.NotEqual(t, "intent 4", ct.Text)
	}
}

func TestResubmitSkipsTranslation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	turn, err := h.orch.Resubmit(ctx, "list files", "ls -la", domain.RiskSafe)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, turn.State)
	assert.Zero(t, h.translator.callCount())

	_, err = h.orch.Resubmit(ctx, "list files", "ls -la", domain.RiskSafe)
	require.NoError(t, err)
	records := h.store.all()
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].ID, records[1].ID)

	gated, err := h.orch.Resubmit(ctx, "wipe", "rm -rf build", domain.RiskHigh)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingConfirmation, gated.State)
}

func TestClearIssuesNewSession(t *testing.T) {
	h := newHarness(t, nil)
	h.translator.reply = domain.Translation{Command: "ls", Risk: "safe"}
	before := h.orch.SessionID()
	_, err := h.orch.SubmitIntent(context.Background(), "list")
	require.NoError(t, err)

	after, err := h.orch.Clear()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.Empty(t, h.orch.Turns())
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

type harness struct {
	orch       *Orchestrator
	translator *stubTranslator
	executor   *stubExecutor
	store      *stubStore
}

func newHarness(t *testing.T, appendErr error) *harness {
	t.Helper()
	tr := &stubTranslator{}
	ex := &stubExecutor{}
	st := &stubStore{err: appendErr}
	log := logger.NewStd(false)
	orch, err := New(Config{
		Translator: tr,
		Executor:   ex,
		Recorder:   NewRecorder(st, log),
		Logger:     log,
		Timeout:    time.Second,
	})
	require.NoError(t, err)
	return &harness{orch: orch, translator: tr, executor: ex, store: st}
}

type stubTranslator struct {
	mu       sync.Mutex
	reply    domain.Translation
	err      error
	calls    int
	requests []domain.TranslationRequest
	gate     chan struct{}
	entered  chan struct{}
}

func (s *stubTranslator) Translate(ctx context.Context, req domain.TranslationRequest) (domain.Translation, error) {
	s.mu.Lock()
	s.calls++
	s.requests = append(s.requests, req)
	reply, err, gate, entered := s.reply, s.err, s.gate, s.entered
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return reply, err
}

func (s *stubTranslator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubTranslator) lastRequest() domain.TranslationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type stubExecutor struct {
	mu     sync.Mutex
	result domain.ExecutionResult
	err    error
	calls  int
}

func (s *stubExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *stubExecutor) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubStore struct {
	mu      sync.Mutex
	err     error
	records []domain.HistoryRecord
	appends int
}

func (s *stubStore) Append(_ context.Context, rec domain.HistoryRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.err != nil {
		return "", s.err
	}
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *stubStore) Query(context.Context, domain.HistoryQuery) (domain.HistoryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.HistoryPage{Items: append([]domain.HistoryRecord(nil), s.records...), Total: len(s.records)}, nil
}

func (s *stubStore) Delete(context.Context, string) (bool, error) { return false, nil }

func (s *stubStore) Clear(context.Context) (bool, error) { return true, nil }

func (s *stubStore) all() []domain.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.HistoryRecord(nil), s.records...)
}

func (s *stubStore) appendCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}
