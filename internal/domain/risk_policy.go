package domain

// ConfirmationMode is the strength of acknowledgment required before execution.
type ConfirmationMode string

const (
	ConfirmNone      ConfirmationMode = "None"
	ConfirmSimple    ConfirmationMode = "SimpleConfirm"
	ConfirmExactText ConfirmationMode = "ExactTextConfirm"
)

// ExecuteLiteral is the text an operator must type to release high and critical commands.
const ExecuteLiteral = "EXECUTE"

// ConfirmationPolicy is the gate a proposal has to pass.
type ConfirmationPolicy struct {
	Mode            ConfirmationMode
	RequiredLiteral string
	// DiscloseElevation asks the confirmation surface to state that the command
	// needs elevated privileges.
	DiscloseElevation bool
}

// RequiresConfirmation reports whether the policy pauses the pipeline.
func (p ConfirmationPolicy) RequiresConfirmation() bool {
	return p.Mode != ConfirmNone
}

// PolicyFor maps a risk level to its confirmation policy. Unrecognized levels
// are treated as critical.
func PolicyFor(risk RiskLevel, requiresElevation bool) ConfirmationPolicy {
	switch risk {
	case RiskSafe, RiskLow:
		return ConfirmationPolicy{Mode: ConfirmNone}
	case RiskMedium:
		return ConfirmationPolicy{Mode: ConfirmSimple}
	default:
		return ConfirmationPolicy{
			Mode:              ConfirmExactText,
			RequiredLiteral:   ExecuteLiteral,
			DiscloseElevation: requiresElevation,
		}
	}
}
