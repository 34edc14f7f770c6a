package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// probeTimeout bounds each endpoint reachability check.
const probeTimeout = 3 * time.Second

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider  ports.ConfigProvider
	SecurityService ports.SecurityService
	HistoryStore    ports.HistoryStore
	// HTTPClient probes the translation and stream endpoints; nil uses a
	// client with probeTimeout.
	HTTPClient *http.Client
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("loaded %s", cfg.ConfigFormatVersion)))

	if s.SecurityService != nil {
		if _, err := s.SecurityService.Evaluate("ls"); err != nil {
			checks = append(checks, fail("Guardrail", err.Error()))
		} else {
			checks = append(checks, ok("Guardrail", "rules loaded"))
		}
	} else {
		checks = append(checks, warn("Guardrail", "security service not initialized"))
	}

	if s.HistoryStore != nil {
		page, err := s.HistoryStore.Query(ctx, domain.HistoryQuery{Page: 1, PageSize: 1})
		if err != nil {
			checks = append(checks, fail("History store", err.Error()))
		} else {
			checks = append(checks, ok("History store", fmt.Sprintf("%s backend, %d records", cfg.GetHistoryBackend(), page.Total)))
		}
	}

	checks = append(checks, s.translationCheck(ctx, cfg))
	checks = append(checks, s.streamCheck(ctx, cfg))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) translationCheck(ctx context.Context, cfg domain.Config) domain.HealthCheck {
	const name = "Translation service"
	if !cfg.UsesRemoteTranslation() {
		return warn(name, "no endpoint configured, using offline heuristic")
	}
	if env := cfg.Translation.AuthEnvVar; env != "" && os.Getenv(env) == "" {
		return warn(name, fmt.Sprintf("%s missing", env))
	}
	if err := s.probe(ctx, cfg.Translation.Endpoint); err != nil {
		return warn(name, err.Error())
	}
	return ok(name, cfg.Translation.Endpoint)
}

func (s *Service) streamCheck(ctx context.Context, cfg domain.Config) domain.HealthCheck {
	const name = "Log stream"
	endpoint := strings.TrimRight(cfg.Stream.Endpoint, "/")
	if endpoint == "" {
		return ok(name, "in-process hub")
	}
	if err := s.probe(ctx, endpoint+"/health"); err != nil {
		return warn(name, err.Error())
	}
	return ok(name, endpoint)
}

// probe treats any HTTP answer below 500 as reachable.
func (s *Service) probe(ctx context.Context, url string) error {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
