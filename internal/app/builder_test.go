package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"

	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/pypi"
	"github.com/nonebot/store-test/internal/sources"
	statusmocks "github.com/nonebot/store-test/internal/status/mocks"
	"github.com/nonebot/store-test/internal/storetest"
	"github.com/nonebot/store-test/internal/validation"
)

func TestNewStoreTestApp_Defaults(t *testing.T) {
	t.Parallel()

	app, err := NewStoreTestApp(context.Background())
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.Equal(t, config.DefaultOutputDirectory, app.GetConfig().Output.Directory)
	assert.Equal(t, storetest.Options{Limit: 1}, app.options)
	assert.IsType(t, &sources.SnapshotLoader{}, app.components.Loader)
	assert.IsType(t, &pypi.Oracle{}, app.components.Oracle)
	assert.IsType(t, &validation.PluginValidator{}, app.components.Validator)
	assert.NotNil(t, app.components.Store)
	assert.NotNil(t, app.components.Status)
	assert.Nil(t, app.components.Metrics)
	assert.Nil(t, app.components.Tracer)
}

func TestNewStoreTestApp_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []StoreTestAppOptions
		wantErr bool
	}{
		{name: "negative limit", opts: []StoreTestAppOptions{WithRunOptions(storetest.Options{Limit: -1})}, wantErr: true},
		{name: "negative offset", opts: []StoreTestAppOptions{WithRunOptions(storetest.Options{Offset: -2})}, wantErr: true},
		{name: "nil clock", opts: []StoreTestAppOptions{WithClock(nil)}, wantErr: true},
		{name: "window", opts: []StoreTestAppOptions{WithRunOptions(storetest.Options{Offset: 3, Limit: 0, Force: true})}},
		{
			name: "telemetry",
			opts: []StoreTestAppOptions{
				WithMeterProvider(metricnoop.NewMeterProvider()),
				WithTracerProvider(tracenoop.NewTracerProvider()),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, err := NewStoreTestApp(context.Background(), tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, app)
		})
	}
}

func TestNewStoreTestApp_Telemetry(t *testing.T) {
	t.Parallel()

	app, err := NewStoreTestApp(context.Background(),
		WithMeterProvider(metricnoop.NewMeterProvider()),
		WithTracerProvider(tracenoop.NewTracerProvider()),
	)
	require.NoError(t, err)
	assert.NotNil(t, app.components.Metrics)
	assert.NotNil(t, app.components.Tracer)
}

func TestNewStoreTestApp_InjectedComponents(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := statusmocks.NewMockStatusPersistence(ctrl)
	validator := &recordingValidator{}
	oracle := versionOracle("1.0.0")

	app, err := NewStoreTestApp(context.Background(),
		WithStatusPersistence(persistence),
		WithValidator(validator),
		WithVersionOracle(oracle),
	)
	require.NoError(t, err)

	assert.Same(t, validator, app.components.Validator)
	assert.Equal(t, oracle, app.components.Oracle)
	assert.Equal(t, persistence, app.components.Status)
}
