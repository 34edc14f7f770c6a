package translator

import (
	"context"
	"strings"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// Heuristic is the offline fallback used when no translation endpoint is
// configured. Its guesses are low confidence and never claim to be safe
// beyond what the keyword implies.
type Heuristic struct{}

// NewHeuristic returns the keyword translator.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Translate implements ports.Translator.
func (Heuristic) Translate(_ context.Context, req domain.TranslationRequest) (domain.Translation, error) {
	command, risk := guessCommand(req.Text)
	return domain.Translation{
		Command:     command,
		Confidence:  0.3,
		Explanation: "Heuristic suggestion (no translation service configured)",
		Risk:        risk,
	}, nil
}

func guessCommand(prompt string) (string, domain.RiskLevel) {
	prompt = strings.ToLower(prompt)
	switch {
	case strings.Contains(prompt, "docker"):
		return "docker ps", domain.RiskSafe
	case strings.Contains(prompt, "git status"):
		return "git status", domain.RiskSafe
	case strings.Contains(prompt, "list") && strings.Contains(prompt, "file"):
		return "ls -la", domain.RiskSafe
	case strings.Contains(prompt, "kubernetes") || strings.Contains(prompt, "pod"):
		return "kubectl get pods", domain.RiskSafe
	case strings.Contains(prompt, "disk") || strings.Contains(prompt, "space"):
		return "df -h", domain.RiskSafe
	case strings.Contains(prompt, "time") || strings.Contains(prompt, "date"):
		return "date", domain.RiskSafe
	default:
		return "echo \"No translation service configured\"", domain.RiskLow
	}
}

var _ ports.Translator = Heuristic{}
