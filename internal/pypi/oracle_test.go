package pypi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nonebot/store-test/internal/cache"
	"github.com/nonebot/store-test/internal/httpclient"
	"github.com/nonebot/store-test/internal/httpclient/mocks"
	"github.com/nonebot/store-test/internal/pypi"
)

func newIndexServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/nonebot-plugin-status/json", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"info":{"name":"nonebot-plugin-status","version":"0.9.0"},"releases":{}}`))
	})
	mux.HandleFunc("/pypi/no-version/json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"info":{}}`))
	})
	mux.HandleFunc("/pypi/broken/json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"info":`))
	})
	mux.HandleFunc("/pypi/flaky/json", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	server := httptest.NewServer(mux)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)
	return server
}

func TestOracleLatestVersion(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := newIndexServer(t, &hits)
	memo := cache.NewMemo[string]()
	oracle := pypi.NewOracle(httpclient.NewDefaultClient(5*time.Second),
		pypi.WithEndpoint(server.URL+"/pypi/"),
		pypi.WithCache(memo),
	)

	for i := 0; i < 3; i++ {
		version, err := oracle.LatestVersion(context.Background(), "nonebot-plugin-status")
		require.NoError(t, err)
		assert.Equal(t, "0.9.0", version)
	}
	assert.Equal(t, int32(1), hits.Load(), "repeated lookups must be served from the cache")
	assert.Equal(t, 1, memo.Len())

	oracle.ClearCache()
	_, err := oracle.LatestVersion(context.Background(), "nonebot-plugin-status")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOracleLatestVersionErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := newIndexServer(t, &hits)
	oracle := pypi.NewOracle(httpclient.NewDefaultClient(5*time.Second), pypi.WithEndpoint(server.URL+"/pypi"))

	tests := []struct {
		name    string
		project string
		target  error
	}{
		{name: "not found", project: "does-not-exist", target: pypi.ErrPackageNotFound},
		{name: "git source", project: "git+https://github.com/owner/repo", target: pypi.ErrUnsupportedSource},
		{name: "empty project", project: "", target: pypi.ErrUnsupportedSource},
		{name: "missing version", project: "no-version"},
		{name: "invalid document", project: "broken"},
		{name: "server error", project: "flaky"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := oracle.LatestVersion(context.Background(), tt.project)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestOracleFailuresAreNotCached(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Get(gomock.Any(), "https://pypi.org/pypi/nonebot-plugin-status/json").
			Return(nil, errors.New("connection reset")),
		client.EXPECT().Get(gomock.Any(), "https://pypi.org/pypi/nonebot-plugin-status/json").
			Return([]byte(`{"info":{"version":"1.2.0"}}`), nil),
	)

	oracle := pypi.NewOracle(client)

	_, err := oracle.LatestVersion(context.Background(), "nonebot-plugin-status")
	require.Error(t, err)

	version, err := oracle.LatestVersion(context.Background(), "nonebot-plugin-status")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", version)
}

func TestOracleIsPublished(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := newIndexServer(t, &hits)
	oracle := pypi.NewOracle(httpclient.NewDefaultClient(5*time.Second), pypi.WithEndpoint(server.URL+"/pypi"))

	published, err := oracle.IsPublished(context.Background(), "nonebot-plugin-status")
	require.NoError(t, err)
	assert.True(t, published)

	published, err = oracle.IsPublished(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, published)

	_, err = oracle.IsPublished(context.Background(), "flaky")
	assert.Error(t, err)
}
