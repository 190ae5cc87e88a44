package validation_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nonebot/store-test/internal/cache"
	httpmocks "github.com/nonebot/store-test/internal/httpclient/mocks"
	"github.com/nonebot/store-test/internal/registry"
	"github.com/nonebot/store-test/internal/runner"
	runnermocks "github.com/nonebot/store-test/internal/runner/mocks"
	"github.com/nonebot/store-test/internal/validation"
	"github.com/nonebot/store-test/internal/validation/mocks"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	runner *runnermocks.MockRunner
	index  *mocks.MockPackageIndex
	http   *httpmocks.MockClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	return &fixture{
		runner: runnermocks.NewMockRunner(ctrl),
		index:  mocks.NewMockPackageIndex(ctrl),
		http:   httpmocks.NewMockClient(ctrl),
	}
}

func (f *fixture) validator(opts ...validation.Option) *validation.PluginValidator {
	opts = append([]validation.Option{validation.WithClock(func() time.Time { return fixedNow })}, opts...)
	return validation.NewPluginValidator(f.runner, f.index, f.http, opts...)
}

func goodMetadata() *registry.Metadata {
	return &registry.Metadata{
		Name:              "Status",
		Description:       "server status",
		Usage:             "/status",
		Type:              registry.PluginTypeApplication,
		Homepage:          "https://github.com/cscs181/QQ-GitHub-Bot",
		SupportedAdapters: []string{"~onebot.v11"},
	}
}

func TestValidate_Passing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sp := registry.NewTestStorePlugin("nonebot-plugin-status")
	known := map[string]string{"nonebot-plugin-status": "nonebot_plugin_status"}

	f.runner.EXPECT().Run(gomock.Any(), &runner.Request{
		ProjectLink:  "nonebot-plugin-status",
		ModuleName:   "nonebot_plugin_status",
		Config:       "A=1",
		KnownPlugins: known,
	}).Return(&runner.Outcome{Passed: true, Output: "loaded", Version: "0.8.0", Metadata: goodMetadata()}, nil)
	f.index.EXPECT().IsPublished(gomock.Any(), "nonebot-plugin-status").Return(true, nil)
	f.http.EXPECT().Status(gomock.Any(), goodMetadata().Homepage).Return(http.StatusOK, nil)

	result, plugin, err := f.validator().Validate(t.Context(), &validation.Request{Plugin: sp, Config: "A=1", KnownPlugins: known})
	require.NoError(t, err)

	assert.True(t, result.Passed())
	assert.Equal(t, "0.8.0", result.Version)
	assert.Equal(t, fixedNow.Format(time.RFC3339), result.Time)
	assert.Equal(t, "A=1", result.Inputs.Config)
	assert.Equal(t, "loaded", result.Outputs.Load)
	assert.Nil(t, result.Outputs.Validation)
	assert.Equal(t, goodMetadata(), result.Outputs.Metadata)

	assert.True(t, plugin.Valid)
	assert.Equal(t, "Status", plugin.Name)
	assert.Equal(t, "server status", plugin.Desc)
	assert.Equal(t, registry.PluginTypeApplication, plugin.Type)
	assert.Equal(t, "0.8.0", plugin.Version)
	assert.Equal(t, result.Time, plugin.Time)
	assert.False(t, plugin.SkipTest)
	assert.Equal(t, sp.Author, plugin.Author)
}

func TestValidate_LoadFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sp := registry.NewTestStorePlugin("nonebot-plugin-broken")

	f.runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(&runner.Outcome{Passed: false, Output: "ImportError"}, nil)
	f.index.EXPECT().LatestVersion(gomock.Any(), "nonebot-plugin-broken").Return("1.2.0", nil)
	f.index.EXPECT().IsPublished(gomock.Any(), "nonebot-plugin-broken").Return(true, nil)
	f.http.EXPECT().Status(gomock.Any(), sp.Homepage).Return(http.StatusOK, nil)

	result, plugin, err := f.validator().Validate(t.Context(), &validation.Request{Plugin: sp})
	require.NoError(t, err)

	assert.False(t, result.Passed())
	assert.True(t, result.Results.Validation)
	assert.False(t, result.Results.Load)
	assert.False(t, result.Results.Metadata)
	assert.Equal(t, "1.2.0", result.Version)
	assert.Contains(t, result.Outputs.Validation, "plugin metadata not found")

	// the record is still produced, from the store fields
	require.NotNil(t, plugin)
	assert.True(t, plugin.Valid)
	assert.Equal(t, sp.Name, plugin.Name)
	assert.Equal(t, "1.2.0", plugin.Version)
}

func TestValidate_ValidationFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sp := registry.NewTestStorePlugin("nonebot-plugin-gone")
	md := goodMetadata()
	md.Homepage = "https://example.com/gone"

	f.runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(&runner.Outcome{Passed: true, Version: "0.1.0", Metadata: md}, nil)
	f.index.EXPECT().IsPublished(gomock.Any(), "nonebot-plugin-gone").Return(false, nil)
	f.http.EXPECT().Status(gomock.Any(), "https://example.com/gone").Return(http.StatusNotFound, nil)

	result, plugin, err := f.validator().Validate(t.Context(), &validation.Request{Plugin: sp})
	require.NoError(t, err)

	assert.False(t, result.Results.Validation)
	assert.True(t, result.Results.Load)
	assert.True(t, result.Results.Metadata)
	assert.Equal(t, []string{
		"package nonebot-plugin-gone is not available on the package index",
		"project homepage https://example.com/gone returns 404",
	}, result.Outputs.Validation)
	assert.False(t, plugin.Valid)
}

func TestValidate_HomepageCachedPerURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	homepages := cache.NewMemo[int]()
	v := f.validator(validation.WithHomepageCache(homepages), validation.WithoutPublishedCheck())

	sp := registry.NewTestStorePlugin("nonebot-plugin-a", registry.WithHomepage("https://down.example.com"))
	f.runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(&runner.Outcome{Passed: true, Version: "1.0.0"}, nil).Times(2)
	f.http.EXPECT().Status(gomock.Any(), "https://down.example.com").
		Return(0, errors.New("connection refused")).Times(1)

	for range 2 {
		result, _, err := v.Validate(t.Context(), &validation.Request{Plugin: sp})
		require.NoError(t, err)
		assert.Contains(t, result.Outputs.Validation, "project homepage https://down.example.com is unreachable")
	}
	assert.Equal(t, 1, homepages.Len())
}

func TestValidate_SkipTest(t *testing.T) {
	t.Parallel()

	data := `{"name":"Override","description":"d","usage":"u","type":"library","homepage":"https://override.example.com","supported_adapters":null}`

	tests := []struct {
		name     string
		data     *string
		previous *registry.Plugin
		wantName string
		wantMeta bool
	}{
		{name: "data override", data: &data, wantName: "Override", wantMeta: true},
		{
			name: "previous record",
			previous: registry.NewTestPlugin(registry.NewTestStorePlugin("nonebot-plugin-skip"),
				registry.WithSkipTest(true)),
			wantName: "nonebot-plugin-skip",
			wantMeta: true,
		},
		{name: "nothing", wantName: "nonebot-plugin-skip", wantMeta: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			sp := registry.NewTestStorePlugin("nonebot-plugin-skip")
			f.index.EXPECT().LatestVersion(gomock.Any(), "nonebot-plugin-skip").Return("2.0.0", nil)

			v := f.validator(validation.WithoutHomepageCheck(), validation.WithoutPublishedCheck())
			result, plugin, err := v.Validate(t.Context(), &validation.Request{
				Plugin:   sp,
				SkipTest: true,
				Data:     tt.data,
				Previous: tt.previous,
			})
			require.NoError(t, err)

			assert.True(t, result.Results.Load)
			assert.Equal(t, validation.SkippedOutput, result.Outputs.Load)
			assert.Equal(t, tt.wantMeta, result.Results.Metadata)
			assert.Equal(t, "2.0.0", result.Version)
			assert.True(t, plugin.SkipTest)
			assert.Equal(t, tt.wantName, plugin.Name)
		})
	}
}

func TestValidate_InvalidDataOverride(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	data := `{not json`
	_, _, err := f.validator().Validate(t.Context(), &validation.Request{
		Plugin:   registry.NewTestStorePlugin("nonebot-plugin-skip"),
		SkipTest: true,
		Data:     &data,
	})
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	t.Run("runner error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))

		_, _, err := f.validator().Validate(t.Context(), &validation.Request{Plugin: registry.NewTestStorePlugin("p")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("index error is a validation problem", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.runner.EXPECT().Run(gomock.Any(), gomock.Any()).
			Return(&runner.Outcome{Passed: true, Version: "1", Metadata: goodMetadata()}, nil)
		f.index.EXPECT().IsPublished(gomock.Any(), "p").Return(false, errors.New("index down"))

		result, plugin, err := f.validator(validation.WithoutHomepageCheck()).
			Validate(t.Context(), &validation.Request{Plugin: registry.NewTestStorePlugin("p")})
		require.NoError(t, err)
		assert.False(t, result.Results.Validation)
		assert.True(t, result.Results.Load)
		assert.Equal(t, []string{"package index lookup failed: index down"}, result.Outputs.Validation)
		assert.Equal(t, "1", result.Version)
		assert.False(t, plugin.Valid)
	})

	t.Run("version lookup failure leaves version empty", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(&runner.Outcome{Passed: true, Metadata: goodMetadata()}, nil)
		f.index.EXPECT().LatestVersion(gomock.Any(), "p").Return("", errors.New("index down"))

		result, plugin, err := f.validator(validation.WithoutHomepageCheck(), validation.WithoutPublishedCheck()).
			Validate(t.Context(), &validation.Request{Plugin: registry.NewTestStorePlugin("p")})
		require.NoError(t, err)
		assert.Empty(t, result.Version)
		assert.Empty(t, plugin.Version)
	})

	t.Run("nil request", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, _, err := f.validator().Validate(t.Context(), nil)
		assert.Error(t, err)
	})
}

func TestCheckMetadata(t *testing.T) {
	t.Parallel()

	assert.Empty(t, validation.CheckMetadata(goodMetadata()))
	assert.Empty(t, validation.CheckMetadata(&registry.Metadata{Name: "x"}))
	assert.Len(t, validation.CheckMetadata(nil), 1)
	assert.Len(t, validation.CheckMetadata(&registry.Metadata{Type: "service"}), 1)
	assert.Len(t, validation.CheckMetadata(&registry.Metadata{SupportedAdapters: []string{"~onebot.v11", ""}}), 1)
}
