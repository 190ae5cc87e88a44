package sources

import (
	"context"
	"fmt"

	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/httpclient"
)

// urlSourceHandler downloads documents over HTTP
type urlSourceHandler struct {
	httpClient httpclient.Client
}

// NewURLSourceHandler creates a new URL source handler
func NewURLSourceHandler(httpClient httpclient.Client) SourceHandler {
	return &urlSourceHandler{httpClient: httpClient}
}

// Validate validates the URL source configuration
func (*urlSourceHandler) Validate(source *config.SourceConfig) error {
	if source == nil {
		return fmt.Errorf("source configuration cannot be nil")
	}
	if source.URL == nil {
		return fmt.Errorf("url configuration is required")
	}
	if source.URL.Address == "" {
		return fmt.Errorf("url address cannot be empty")
	}
	return nil
}

// FetchData downloads the document the source points at
func (h *urlSourceHandler) FetchData(ctx context.Context, source *config.SourceConfig) (*FetchResult, error) {
	if err := h.Validate(source); err != nil {
		return nil, fmt.Errorf("source validation failed: %w", err)
	}

	address := source.URL.Address
	data, err := h.httpClient.Get(ctx, address)
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, address)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", address, err)
	}

	return NewFetchResult(data, address), nil
}
