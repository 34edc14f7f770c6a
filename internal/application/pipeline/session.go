package pipeline

import (
	"github.com/google/uuid"

	"github.com/doeshing/shai-ops/internal/domain"
)

// session is the turn log of one interactive session. It is owned by an
// Orchestrator and only touched under the orchestrator's lock.
type session struct {
	id       string
	turns    []*domain.Turn
	maxTurns int
}

func newSession(maxTurns int) *session {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMaxTurns
	}
	return &session{id: newSessionID(), maxTurns: maxTurns}
}

func newSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *session) append(turn *domain.Turn) {
	s.turns = append(s.turns, turn)
	s.trim()
}

// trim drops the oldest turns beyond maxTurns. Turns still waiting for the
// operator or still running are never dropped.
func (s *session) trim() {
	for len(s.turns) > s.maxTurns {
		idx := -1
		for i, t := range s.turns {
			if t.Kind != domain.TurnAssistantProposal || t.State.Terminal() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		s.turns = append(s.turns[:idx], s.turns[idx+1:]...)
	}
}

func (s *session) find(id string) *domain.Turn {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].ID == id {
			return s.turns[i]
		}
	}
	return nil
}

// recent returns the last n turns as translation context, oldest first.
func (s *session) recent(n int) []domain.ContextTurn {
	if n <= 0 {
		return nil
	}
	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.ContextTurn, 0, len(s.turns)-start)
	for _, t := range s.turns[start:] {
		ct := domain.ContextTurn{Kind: t.Kind, Text: t.Text}
		if t.Proposal != nil {
			ct.Command = t.Proposal.CommandText
		}
		out = append(out, ct)
	}
	return out
}

func (s *session) hasPending() bool {
	for _, t := range s.turns {
		if t.Actionable() {
			return true
		}
	}
	return false
}

func (s *session) snapshot() []domain.Turn {
	out := make([]domain.Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = t.Clone()
	}
	return out
}

func (s *session) reset() {
	s.id = newSessionID()
	s.turns = nil
}
