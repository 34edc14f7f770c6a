// Package translator turns natural-language intents into proposed commands.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// maxResponseBytes bounds how much of a translation response is read.
const maxResponseBytes = 1 << 20

// HTTPTranslator posts intents to a remote translation service.
type HTTPTranslator struct {
	endpoint   string
	authEnvVar string
	httpClient *http.Client
}

type translateRequest struct {
	Text        string               `json:"text"`
	Context     []domain.ContextTurn `json:"context"`
	Environment *domain.Environment  `json:"environment,omitempty"`
}

type translateResponse struct {
	Command           string   `json:"command"`
	Confidence        float64  `json:"confidence"`
	Explanation       string   `json:"explanation"`
	RiskLevel         string   `json:"riskLevel"`
	Warnings          []string `json:"warnings"`
	RequiresElevation bool     `json:"requiresElevation"`
}

// NewHTTPTranslator builds a translator for endpoint. When authEnvVar names a
// set environment variable its value is sent as a bearer token.
func NewHTTPTranslator(endpoint, authEnvVar string, timeout time.Duration) *HTTPTranslator {
	if timeout <= 0 {
		timeout = domain.DefaultTranslationTimeout
	}
	return &HTTPTranslator{
		endpoint:   endpoint,
		authEnvVar: authEnvVar,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Translate implements ports.Translator.
func (t *HTTPTranslator) Translate(ctx context.Context, req domain.TranslationRequest) (domain.Translation, error) {
	body, err := json.Marshal(translateRequest{Text: req.Text, Context: req.Context, Environment: req.Environment})
	if err != nil {
		return domain.Translation{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Translation{}, err
	}
	httpReq.Header.Set("content-type", "application/json")
	if t.authEnvVar != "" {
		if token := os.Getenv(t.authEnvVar); token != "" {
			httpReq.Header.Set("authorization", "Bearer "+token)
		}
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return domain.Translation{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Translation{}, err
	}
	if resp.StatusCode >= 400 {
		return domain.Translation{}, fmt.Errorf("translation service: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var decoded translateResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return domain.Translation{}, fmt.Errorf("decoding translation: %w", err)
	}
	command := strings.TrimSpace(decoded.Command)
	if command == "" {
		return domain.Translation{}, fmt.Errorf("translation service returned no command")
	}
	return domain.Translation{
		Command:           command,
		Confidence:        decoded.Confidence,
		Explanation:       decoded.Explanation,
		Risk:              domain.RiskLevel(decoded.RiskLevel),
		Warnings:          decoded.Warnings,
		RequiresElevation: decoded.RequiresElevation,
	}, nil
}

var _ ports.Translator = (*HTTPTranslator)(nil)
