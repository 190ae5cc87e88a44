package sources_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/git"
	"github.com/nonebot/store-test/internal/httpclient"
	"github.com/nonebot/store-test/internal/registry"
	"github.com/nonebot/store-test/internal/sources"
	"github.com/nonebot/store-test/internal/sources/mocks"
)

const (
	adaptersDoc = `[
  {"module_name":"nonebot.adapters.onebot.v11","project_link":"nonebot-adapter-onebot","name":"OneBot V11","desc":"OneBot V11 protocol","author":"yanyongyu","homepage":"https://onebot.adapters.nonebot.dev/","tags":[],"is_official":true}
]`
	botsDoc = `[
  {"name":"Bot","desc":"A bot","author":"someone","homepage":"https://example.com","tags":["fun"],"is_official":false},
  {"desc":"missing name"}
]`
	driversDoc = `[
  {"module_name":"~none","project_link":"","name":"None","desc":"none","author":"yanyongyu","homepage":"/docs/","tags":[],"is_official":true},
  {"module_name":"~fastapi","project_link":"nonebot2[fastapi]","name":"FastAPI","desc":"FastAPI driver","author":"yanyongyu","homepage":"/docs/","tags":[],"is_official":true}
]`
	pluginsDoc = `[
  {"module_name":"nonebot_plugin_status","project_link":"nonebot-plugin-status","author":"yanyongyu","tags":[{"label":"server","color":"#aabbcc"}],"is_official":true},
  {"module_name":"nonebot_plugin_abc","project_link":"nonebot-plugin-abc","author":"someone","tags":["bare"],"is_official":false},
  {"project_link":"no-module"},
  {"module_name":"nonebot_plugin_git","project_link":"git+https://github.com/x/y","author":"x","tags":[],"is_official":false}
]`
	resultsDoc = `{
  "nonebot-plugin-abc:nonebot_plugin_abc": {"time":"2024-01-01T00:00:00+08:00","version":"0.1.0","results":{"validation":true,"load":true,"metadata":true},"inputs":{"config":"A=1"},"outputs":{"validation":null,"load":"ok","metadata":null}},
  "nonebot-plugin-status:nonebot_plugin_status": {"time":"2024-01-01T00:00:00+08:00","version":"0.8.0","results":{"validation":true,"load":false,"metadata":true},"inputs":{"config":""},"outputs":{"validation":null,"load":"boom","metadata":null}},
  "bad-result:bad": {"version":"1"},
  "nokey": {"version":"1","results":{"validation":true,"load":true,"metadata":true}}
}`
	previousPluginsDoc = `[
  {"module_name":"nonebot_plugin_status","project_link":"nonebot-plugin-status","name":"Status","desc":"d","author":"yanyongyu","homepage":"https://x","tags":[],"is_official":true,"type":"application","supported_adapters":null,"valid":true,"time":"2024-01-01T00:00:00+08:00","version":"0.8.0","skip_test":true}
]`
)

func writeFile(t *testing.T, dir, name, content string) *config.SourceConfig {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return &config.SourceConfig{File: &config.FileConfig{Path: path}}
}

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Adapters = *writeFile(t, dir, "adapters.json", adaptersDoc)
	cfg.Store.Bots = *writeFile(t, dir, "bots.json", botsDoc)
	cfg.Store.Drivers = *writeFile(t, dir, "drivers.json", driversDoc)
	cfg.Store.Plugins = *writeFile(t, dir, "plugins.json", pluginsDoc)
	cfg.Previous.Results = *writeFile(t, dir, "results.json", resultsDoc)
	cfg.Previous.Plugins = *writeFile(t, dir, "previous_plugins.json", previousPluginsDoc)
	return cfg
}

func newLoader(t *testing.T) *sources.SnapshotLoader {
	t.Helper()
	loader, err := sources.NewSnapshotLoader(sources.NewSourceHandlerFactory(httpclient.NewDefaultClient(0), git.NewDefaultGitClient()))
	require.NoError(t, err)
	return loader
}

func TestSnapshotLoader_Load(t *testing.T) {
	t.Parallel()

	result, err := newLoader(t).Load(t.Context(), fileConfig(t))
	require.NoError(t, err)
	snapshot := result.Snapshot

	require.Len(t, snapshot.Adapters, 1)
	assert.Equal(t, registry.KindAdapter, snapshot.Adapters[0].Kind)
	require.Len(t, snapshot.Bots, 1)
	assert.Equal(t, registry.KindBot, snapshot.Bots[0].Kind)
	assert.Nil(t, snapshot.Bots[0].Package)
	require.Len(t, snapshot.Drivers, 2)

	assert.Equal(t, []registry.Key{
		"nonebot-plugin-status:nonebot_plugin_status",
		"nonebot-plugin-abc:nonebot_plugin_abc",
		"git+https://github.com/x/y:nonebot_plugin_git",
	}, snapshot.Plugins.Keys())
	abc, ok := snapshot.Plugins.Get("nonebot-plugin-abc:nonebot_plugin_abc")
	require.True(t, ok)
	require.Len(t, abc.Tags, 1)
	assert.Equal(t, "bare", abc.Tags[0].Label)

	// document order, not registry order
	assert.Equal(t, []registry.Key{
		"nonebot-plugin-abc:nonebot_plugin_abc",
		"nonebot-plugin-status:nonebot_plugin_status",
	}, snapshot.PreviousResults.Keys())
	prev, ok := snapshot.PreviousResults.Get("nonebot-plugin-abc:nonebot_plugin_abc")
	require.True(t, ok)
	assert.Equal(t, "A=1", prev.Inputs.Config)
	assert.True(t, prev.Passed())

	prevPlugin, ok := snapshot.PreviousPlugins.Get("nonebot-plugin-status:nonebot_plugin_status")
	require.True(t, ok)
	assert.True(t, prevPlugin.SkipTest)
	assert.Equal(t, "0.8.0", prevPlugin.Version)

	reports := map[string]sources.SourceReport{}
	for _, r := range result.Sources {
		reports[r.Name] = r
	}
	require.Len(t, reports, 6)
	assert.Equal(t, 1, reports[sources.SourceStoreBots].Rejected)
	assert.Equal(t, 1, reports[sources.SourceStorePlugins].Rejected)
	assert.Equal(t, 3, reports[sources.SourceStorePlugins].Entries)
	assert.Equal(t, 2, reports[sources.SourcePreviousResults].Rejected)
	assert.Equal(t, config.SourceTypeFile, reports[sources.SourcePreviousResults].Type)
	assert.Len(t, reports[sources.SourceStoreAdapters].Hash, 64)
	assert.Equal(t, 4, result.Rejected())
}

func TestSnapshotLoader_MissingPrevious(t *testing.T) {
	t.Parallel()

	cfg := fileConfig(t)
	missing := filepath.Join(t.TempDir(), "missing.json")
	cfg.Previous.Results = config.SourceConfig{File: &config.FileConfig{Path: missing}}
	cfg.Previous.Plugins = config.SourceConfig{File: &config.FileConfig{Path: missing}}

	result, err := newLoader(t).Load(t.Context(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Snapshot.PreviousResults.Len())
	assert.Equal(t, 0, result.Snapshot.PreviousPlugins.Len())
	assert.Equal(t, 3, result.Snapshot.Plugins.Len())

	for _, r := range result.Sources {
		if r.Name == sources.SourcePreviousResults || r.Name == sources.SourcePreviousPlugins {
			assert.True(t, r.Missing, r.Name)
		}
	}
}

func TestSnapshotLoader_MissingStoreListingIsFatal(t *testing.T) {
	t.Parallel()

	cfg := fileConfig(t)
	cfg.Store.Plugins = config.SourceConfig{File: &config.FileConfig{Path: filepath.Join(t.TempDir(), "missing.json")}}

	_, err := newLoader(t).Load(t.Context(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sources.ErrSourceNotFound)
	assert.Contains(t, err.Error(), sources.SourceStorePlugins)
}

func TestSnapshotLoader_WrongShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(t *testing.T, cfg *config.Config, dir string)
		source string
	}{
		{
			name: "plugins object",
			mutate: func(t *testing.T, cfg *config.Config, dir string) {
				t.Helper()
				cfg.Store.Plugins = *writeFile(t, dir, "p.json", `{"a":1}`)
			},
			source: sources.SourceStorePlugins,
		},
		{
			name: "results array",
			mutate: func(t *testing.T, cfg *config.Config, dir string) {
				t.Helper()
				cfg.Previous.Results = *writeFile(t, dir, "r.json", `[]`)
			},
			source: sources.SourcePreviousResults,
		},
		{
			name: "adapters not json",
			mutate: func(t *testing.T, cfg *config.Config, dir string) {
				t.Helper()
				cfg.Store.Adapters = *writeFile(t, dir, "a.json", `not json`)
			},
			source: sources.SourceStoreAdapters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := fileConfig(t)
			tt.mutate(t, cfg, t.TempDir())
			_, err := newLoader(t).Load(t.Context(), cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.source)
		})
	}
}

func TestSnapshotLoader_NullPreviousResults(t *testing.T) {
	t.Parallel()

	cfg := fileConfig(t)
	cfg.Previous.Results = *writeFile(t, t.TempDir(), "results.json", `null`)

	result, err := newLoader(t).Load(t.Context(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Snapshot.PreviousResults.Len())
}

func TestSnapshotLoader_HandlerFactoryError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := mocks.NewMockSourceHandlerFactory(ctrl)
	factory.EXPECT().CreateHandler(config.SourceTypeURL).Return(nil, assert.AnError)

	loader, err := sources.NewSnapshotLoader(factory)
	require.NoError(t, err)

	_, err = loader.Load(t.Context(), config.Default())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSnapshotLoader_MockedSources(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	handler := mocks.NewMockSourceHandler(ctrl)
	factory := mocks.NewMockSourceHandlerFactory(ctrl)
	factory.EXPECT().CreateHandler(config.SourceTypeURL).Return(handler, nil).Times(6)

	cfg := config.Default()
	docs := map[string]string{
		cfg.Store.Adapters.URL.Address: adaptersDoc,
		cfg.Store.Bots.URL.Address:     botsDoc,
		cfg.Store.Drivers.URL.Address:  driversDoc,
		cfg.Store.Plugins.URL.Address:  pluginsDoc,
	}
	handler.EXPECT().FetchData(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, source *config.SourceConfig) (*sources.FetchResult, error) {
			if doc, ok := docs[source.URL.Address]; ok {
				return sources.NewFetchResult([]byte(doc), source.URL.Address), nil
			}
			return nil, sources.ErrSourceNotFound
		}).Times(6)

	loader, err := sources.NewSnapshotLoader(factory)
	require.NoError(t, err)

	result, err := loader.Load(t.Context(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Snapshot.Plugins.Len())
	assert.Equal(t, 0, result.Snapshot.PreviousResults.Len())
}

func TestRecordValidator(t *testing.T) {
	t.Parallel()

	v, err := sources.NewRecordValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		schema  string
		record  string
		wantErr bool
	}{
		{name: "plugin", schema: sources.SchemaPlugin, record: `{"module_name":"a","project_link":"b"}`},
		{name: "plugin without module", schema: sources.SchemaPlugin, record: `{"project_link":"b"}`, wantErr: true},
		{name: "plugin empty module", schema: sources.SchemaPlugin, record: `{"module_name":"","project_link":"b"}`, wantErr: true},
		{name: "plugin bad tags", schema: sources.SchemaPlugin, record: `{"module_name":"a","project_link":"b","tags":[1]}`, wantErr: true},
		{name: "plugin adapters null", schema: sources.SchemaPlugin, record: `{"module_name":"a","project_link":"b","supported_adapters":null}`},
		{name: "bot", schema: sources.SchemaBot, record: `{"name":"x","tags":[{"label":"l","color":"#fff"}]}`},
		{name: "bot tag without label", schema: sources.SchemaBot, record: `{"name":"x","tags":[{"color":"#fff"}]}`, wantErr: true},
		{name: "adapter needs package", schema: sources.SchemaAdapter, record: `{"name":"x"}`, wantErr: true},
		{name: "driver with empty project", schema: sources.SchemaDriver, record: `{"name":"x","module_name":"~none","project_link":""}`},
		{name: "plugin with empty project", schema: sources.SchemaPlugin, record: `{"module_name":"a","project_link":""}`, wantErr: true},
		{name: "result", schema: sources.SchemaResult, record: `{"version":"1","results":{"validation":true,"load":false,"metadata":true}}`},
		{name: "result missing flag", schema: sources.SchemaResult, record: `{"version":"1","results":{"validation":true}}`, wantErr: true},
		{name: "not json", schema: sources.SchemaResult, record: `{`, wantErr: true},
		{name: "unknown schema", schema: "server", record: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(tt.schema, []byte(tt.record))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
