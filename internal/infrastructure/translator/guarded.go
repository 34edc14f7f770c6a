package translator

import (
	"context"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// Guarded runs the guardrail over every proposed command and keeps the stricter
// of the service's and the guardrail's risk.
type Guarded struct {
	Next     ports.Translator
	Security ports.SecurityService
	Logger   ports.Logger
}

// Translate implements ports.Translator.
func (g *Guarded) Translate(ctx context.Context, req domain.TranslationRequest) (domain.Translation, error) {
	translation, err := g.Next.Translate(ctx, req)
	if err != nil || g.Security == nil {
		return translation, err
	}

	assessment, err := g.Security.Evaluate(translation.Command)
	if err != nil {
		// an unevaluated command is treated as critical
		g.Logger.Warn("guardrail evaluation failed", map[string]interface{}{"error": err.Error()})
		translation.Risk = domain.RiskCritical
		translation.Warnings = append(translation.Warnings, "Guardrail could not evaluate this command")
		return translation, nil
	}

	serviceRisk := domain.ParseRiskLevel(string(translation.Risk))
	translation.Risk = domain.MaxRisk(serviceRisk, assessment.Level)
	translation.Warnings = append(translation.Warnings, assessment.Reasons...)
	if translation.Risk != serviceRisk {
		g.Logger.Info("guardrail raised risk", map[string]interface{}{
			"from":  string(serviceRisk),
			"to":    string(translation.Risk),
			"rules": assessment.MatchedRules,
		})
	}
	return translation, nil
}

var _ ports.Translator = (*Guarded)(nil)
