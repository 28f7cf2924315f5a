package telemetry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/infra/config"
)

// Provider is the telemetry handle owned by the application. Tracing is
// optional; when no OTLP endpoint is configured the provider is inert and
// Shutdown is a no-op.
type Provider struct {
	tracing *TracerProvider
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := &Provider{}

	if cfg.Telemetry.OTLPEndpoint != "" {
		tracing, err := NewTracerProvider(ctx, cfg.Telemetry, logger)
		if err != nil {
			return nil, fmt.Errorf("init tracer provider: %w", err)
		}
		provider.tracing = tracing
	}

	return provider, nil
}

// Tracing returns the tracer provider, or nil when tracing is disabled.
func (p *Provider) Tracing() *TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracing
}

// Shutdown flushes and stops the configured exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracing == nil {
		return nil
	}
	return p.tracing.Shutdown(ctx)
}
