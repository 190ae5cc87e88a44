package app

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/sources"
	"github.com/nonebot/store-test/internal/status"
	"github.com/nonebot/store-test/internal/storage"
	"github.com/nonebot/store-test/internal/storetest"
	"github.com/nonebot/store-test/internal/telemetry"
	"github.com/nonebot/store-test/internal/validation"
)

// SnapshotLoader loads the inputs of a run
type SnapshotLoader interface {
	Load(ctx context.Context, cfg *config.Config) (*sources.LoadResult, error)
}

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Loader reads the store listings and the previous run
	Loader SnapshotLoader

	// Oracle resolves latest published versions for the skip policy
	Oracle storetest.VersionOracle

	// Validator tests one plugin
	Validator validation.Validator

	// Store writes the new snapshot
	Store storage.SnapshotStore

	// Status records the run status
	Status status.StatusPersistence

	// Metrics is nil when metrics are disabled
	Metrics *telemetry.RunMetrics

	// Tracer is nil when tracing is disabled
	Tracer trace.Tracer
}
