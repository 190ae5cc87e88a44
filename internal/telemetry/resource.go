package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/nonebot/store-test/internal/versions"
)

// ExportOption configures how a provider exports its signal
type ExportOption func(*exportConfig)

type exportConfig struct {
	serviceName    string
	serviceVersion string
	endpoint       string
	insecure       bool
}

func newExportConfig(opts []ExportOption) *exportConfig {
	cfg := &exportConfig{
		serviceName:    DefaultServiceName,
		serviceVersion: versions.GetBuildInfo().Version,
		endpoint:       DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithServiceName sets the service.name resource attribute
func WithServiceName(name string) ExportOption {
	return func(cfg *exportConfig) {
		if name != "" {
			cfg.serviceName = name
		}
	}
}

// WithServiceVersion sets the service.version resource attribute
func WithServiceVersion(version string) ExportOption {
	return func(cfg *exportConfig) {
		if version != "" {
			cfg.serviceVersion = version
		}
	}
}

// WithEndpoint sets the OTLP collector endpoint as "host:port"
func WithEndpoint(endpoint string) ExportOption {
	return func(cfg *exportConfig) {
		if endpoint != "" {
			cfg.endpoint = endpoint
		}
	}
}

// WithInsecure sends the signal over plain HTTP
func WithInsecure(insecure bool) ExportOption {
	return func(cfg *exportConfig) {
		cfg.insecure = insecure
	}
}

// resource describes the running binary to the collector.
// resource.New is used instead of resource.Default to avoid schema URL conflicts.
func (c *exportConfig) resource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(c.serviceName),
			semconv.ServiceVersion(c.serviceVersion),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
