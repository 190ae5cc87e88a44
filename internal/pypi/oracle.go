// Package pypi resolves the latest published version of a project on the
// Python package index
package pypi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nonebot/store-test/internal/cache"
	"github.com/nonebot/store-test/internal/httpclient"
)

// DefaultEndpoint is the JSON API root of the public package index
const DefaultEndpoint = "https://pypi.org/pypi"

var (
	// ErrPackageNotFound is returned when the index has no such project
	ErrPackageNotFound = errors.New("package not found")

	// ErrUnsupportedSource is returned for project links that do not name an
	// index project, such as git URLs
	ErrUnsupportedSource = errors.New("unsupported package source")
)

// Oracle looks up latest versions and memoizes successful lookups for the
// lifetime of its cache
type Oracle struct {
	client   httpclient.Client
	endpoint string
	cache    *cache.Memo[string]
}

// Option configures an Oracle
type Option func(*Oracle)

// WithEndpoint overrides the index JSON API root
func WithEndpoint(endpoint string) Option {
	return func(o *Oracle) {
		o.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithCache injects the cache shared with the rest of the run
func WithCache(memo *cache.Memo[string]) Option {
	return func(o *Oracle) {
		o.cache = memo
	}
}

// NewOracle creates a version oracle
func NewOracle(client httpclient.Client, opts ...Option) *Oracle {
	o := &Oracle{
		client:   client,
		endpoint: DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = cache.NewMemo[string]()
	}
	return o
}

// LatestVersion returns the latest published version of projectLink
func (o *Oracle) LatestVersion(ctx context.Context, projectLink string) (string, error) {
	if projectLink == "" || strings.HasPrefix(projectLink, "git+") {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, projectLink)
	}

	return o.cache.Get(ctx, projectLink, func(ctx context.Context) (string, error) {
		doc, err := o.fetch(ctx, projectLink)
		if err != nil {
			return "", err
		}

		version := gjson.GetBytes(doc, "info.version")
		if !version.Exists() || version.String() == "" {
			return "", fmt.Errorf("index document for %s has no info.version", projectLink)
		}

		slog.Debug("Resolved latest version", "project", projectLink, "version", version.String())
		return version.String(), nil
	})
}

// IsPublished reports whether projectLink exists on the index. Only a
// not-found answer is reported as false; other failures are returned.
func (o *Oracle) IsPublished(ctx context.Context, projectLink string) (bool, error) {
	_, err := o.LatestVersion(ctx, projectLink)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrPackageNotFound), errors.Is(err, ErrUnsupportedSource):
		return false, nil
	default:
		return false, err
	}
}

// ClearCache forgets every resolved version
func (o *Oracle) ClearCache() {
	o.cache.Clear()
}

func (o *Oracle) fetch(ctx context.Context, projectLink string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s/json", o.endpoint, url.PathEscape(projectLink))
	doc, err := o.client.Get(ctx, endpoint)
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, projectLink)
		}
		return nil, fmt.Errorf("failed to query package index for %s: %w", projectLink, err)
	}
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("package index returned invalid JSON for %s", projectLink)
	}
	return doc, nil
}
