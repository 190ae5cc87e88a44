package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nonebot/store-test/internal/cache"
	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/git"
	"github.com/nonebot/store-test/internal/httpclient"
	"github.com/nonebot/store-test/internal/pypi"
	"github.com/nonebot/store-test/internal/runner"
	"github.com/nonebot/store-test/internal/sources"
	"github.com/nonebot/store-test/internal/status"
	"github.com/nonebot/store-test/internal/storage"
	"github.com/nonebot/store-test/internal/storetest"
	"github.com/nonebot/store-test/internal/telemetry"
	"github.com/nonebot/store-test/internal/validation"
)

// TracerName is the instrumentation name of store test spans
const TracerName = "github.com/nonebot/store-test"

// StoreTestAppOptions is a function that configures the store test app builder
type StoreTestAppOptions func(*storeTestAppConfig) error

// storeTestAppConfig collects the builder inputs. Every component can be
// injected, which is how tests replace the network and poetry.
type storeTestAppConfig struct {
	config  *config.Config
	options storetest.Options
	now     func() time.Time

	// Optional component overrides (primarily for testing)
	httpClient     httpclient.Client
	gitClient      git.Client
	commandRunner  runner.CommandRunner
	handlerFactory sources.SourceHandlerFactory
	loader         SnapshotLoader
	oracle         storetest.VersionOracle
	validator      validation.Validator
	store          storage.SnapshotStore
	status         status.StatusPersistence

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...StoreTestAppOptions) (*storeTestAppConfig, error) {
	cfg := &storeTestAppConfig{
		options: storetest.Options{Limit: 1},
		now:     time.Now,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = config.Default()
	}

	return cfg, nil
}

// NewStoreTestApp creates the app from the given options
func NewStoreTestApp(
	ctx context.Context,
	opts ...StoreTestAppOptions,
) (*StoreTestApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if err := cfg.options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run options: %w", err)
	}

	components, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &StoreTestApp{
		config:     cfg.config,
		options:    cfg.options,
		components: components,
		now:        cfg.now,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithRunOptions sets the run window
func WithRunOptions(options storetest.Options) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		if err := options.Validate(); err != nil {
			return err
		}
		cfg.options = options
		return nil
	}
}

// WithClock sets the time source of the run status
func WithClock(now func() time.Time) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		cfg.now = now
		return nil
	}
}

// WithHTTPClient allows injecting a custom HTTP client (for testing)
func WithHTTPClient(c httpclient.Client) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithGitClient allows injecting a custom git client (for testing)
func WithGitClient(c git.Client) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.gitClient = c
		return nil
	}
}

// WithCommandRunner allows injecting the runner of poetry commands (for testing)
func WithCommandRunner(r runner.CommandRunner) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.commandRunner = r
		return nil
	}
}

// WithSourceHandlerFactory allows injecting a custom source handler factory (for testing)
func WithSourceHandlerFactory(f sources.SourceHandlerFactory) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.handlerFactory = f
		return nil
	}
}

// WithSnapshotLoader allows injecting a custom snapshot loader (for testing)
func WithSnapshotLoader(l SnapshotLoader) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.loader = l
		return nil
	}
}

// WithVersionOracle allows injecting a custom version oracle (for testing)
func WithVersionOracle(o storetest.VersionOracle) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.oracle = o
		return nil
	}
}

// WithValidator allows injecting a custom plugin validator (for testing)
func WithValidator(v validation.Validator) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.validator = v
		return nil
	}
}

// WithSnapshotStore allows injecting a custom snapshot store (for testing)
func WithSnapshotStore(s storage.SnapshotStore) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.store = s
		return nil
	}
}

// WithStatusPersistence allows injecting a custom status persistence (for testing)
func WithStatusPersistence(s status.StatusPersistence) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.status = s
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for run metrics
func WithMeterProvider(mp metric.MeterProvider) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for run spans
func WithTracerProvider(tp trace.TracerProvider) StoreTestAppOptions {
	return func(cfg *storeTestAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildComponents builds every component not injected through options
func buildComponents(_ context.Context, b *storeTestAppConfig) (*AppComponents, error) {
	slog.Info("Initializing store test components")

	components := &AppComponents{}

	if b.meterProvider != nil {
		metrics, err := telemetry.NewRunMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create run metrics: %w", err)
		}
		components.Metrics = metrics
		slog.Info("Run metrics enabled")
	}
	if b.tracerProvider != nil {
		components.Tracer = b.tracerProvider.Tracer(TracerName)
	}

	if b.httpClient == nil {
		b.httpClient = httpclient.NewDefaultClient(b.config.HTTP.GetTimeout())
	}

	loader, err := buildLoader(b, components)
	if err != nil {
		return nil, err
	}
	components.Loader = loader

	versionCache := cache.NewMemo[string]()
	index := pypi.NewOracle(b.httpClient,
		pypi.WithEndpoint(b.config.PyPI.Endpoint),
		pypi.WithCache(versionCache),
	)

	components.Oracle = b.oracle
	if components.Oracle == nil {
		components.Oracle = index
	}

	components.Validator = b.validator
	if components.Validator == nil {
		components.Validator = buildValidator(b, index)
	}

	components.Store = b.store
	if components.Store == nil {
		components.Store = storage.NewFileSnapshotStore(b.config.Output.Directory)
	}

	components.Status = b.status
	if components.Status == nil {
		components.Status = status.NewFileStatusPersistence(b.config.Output.StatusPath())
	}

	slog.Info("Store test components initialized successfully",
		"output", b.config.Output.Directory,
		"runner_work_dir", b.config.Runner.WorkDir)
	return components, nil
}

func buildLoader(b *storeTestAppConfig, components *AppComponents) (SnapshotLoader, error) {
	if b.loader != nil {
		return b.loader, nil
	}

	if b.handlerFactory == nil {
		if b.gitClient == nil {
			b.gitClient = git.NewDefaultGitClient()
		}
		b.handlerFactory = sources.NewSourceHandlerFactory(b.httpClient, b.gitClient)
	}

	loader, err := sources.NewSnapshotLoader(b.handlerFactory,
		sources.WithTracer(components.Tracer),
		sources.WithMetrics(components.Metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot loader: %w", err)
	}
	return loader, nil
}

func buildValidator(b *storeTestAppConfig, index validation.PackageIndex) validation.Validator {
	commands := b.commandRunner
	if commands == nil {
		commands = runner.NewExecRunner()
	}

	poetry := runner.NewPoetryRunner(commands, b.config.Runner.WorkDir,
		runner.WithPoetryBinary(b.config.Runner.Poetry),
		runner.WithOutputLimit(b.config.Runner.OutputLimit),
		runner.WithTimeout(b.config.Runner.GetTimeout()),
	)

	opts := []validation.Option{
		validation.WithClock(b.now),
		validation.WithHomepageCache(cache.NewMemo[int]()),
	}
	if b.config.Validation.SkipHomepageCheck {
		opts = append(opts, validation.WithoutHomepageCheck())
	}
	if b.config.Validation.SkipPublishedCheck {
		opts = append(opts, validation.WithoutPublishedCheck())
	}

	return validation.NewPluginValidator(poetry, index, b.httpClient, opts...)
}
