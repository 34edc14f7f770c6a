package translator

import (
	"context"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// WithEnvironment attaches a probe snapshot to requests that carry none.
type WithEnvironment struct {
	Next  ports.Translator
	Probe ports.EnvironmentProbe
}

// Translate implements ports.Translator.
func (w *WithEnvironment) Translate(ctx context.Context, req domain.TranslationRequest) (domain.Translation, error) {
	if req.Environment == nil && w.Probe != nil {
		env := w.Probe.Snapshot(ctx)
		req.Environment = &env
	}
	return w.Next.Translate(ctx, req)
}

var _ ports.Translator = (*WithEnvironment)(nil)
