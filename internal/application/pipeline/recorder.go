package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

const recordTimeout = 5 * time.Second

// Recorder turns settled proposals into history records. Persistence is best
// effort and at most once: a failed append is reported, never retried.
type Recorder struct {
	Store  ports.HistoryStore
	Logger ports.Logger
	Now    func() time.Time
	NewID  func() string
}

// NewRecorder builds a recorder with wall-clock time and UUIDv7 ids.
func NewRecorder(store ports.HistoryStore, logger ports.Logger) *Recorder {
	return &Recorder{Store: store, Logger: logger}
}

// Record appends the outcome of turn to the history store.
func (r *Recorder) Record(ctx context.Context, sessionID string, turn domain.Turn) (domain.HistoryRecord, error) {
	if r == nil || r.Store == nil {
		return domain.HistoryRecord{}, domain.NewError(domain.KindPersistence, "record outcome", errors.New("history store unavailable"))
	}
	if turn.Proposal == nil || turn.Outcome == nil {
		return domain.HistoryRecord{}, domain.NewError(domain.KindInvalidState, "record outcome", errors.New("turn has no outcome"))
	}

	rec := domain.HistoryRecord{
		ID:            r.newID(),
		SessionID:     sessionID,
		UserInput:     turn.Intent,
		Command:       turn.Proposal.CommandText,
		Success:       turn.Outcome.Success,
		Output:        turn.Outcome.Output,
		Error:         turn.Outcome.Error,
		ExecutionTime: turn.Outcome.ElapsedSeconds,
		Timestamp:     r.now(),
		RiskLevel:     turn.Proposal.Risk,
	}

	// the command already ran; a cancelled caller must not lose the record
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	id, err := r.Store.Append(ctx, rec)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Error("history append failed", err, map[string]interface{}{
				"turn":    turn.ID,
				"command": rec.Command,
			})
		}
		return rec, domain.NewError(domain.KindPersistence, "record outcome", err)
	}
	if id != "" {
		rec.ID = id
	}
	return rec, nil
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Recorder) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.Must(uuid.NewV7()).String()
}
