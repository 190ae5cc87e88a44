package sources

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nonebot/store-test/internal/config"
)

// fileSourceHandler reads documents from the local filesystem
type fileSourceHandler struct{}

// NewFileSourceHandler creates a new file source handler
func NewFileSourceHandler() SourceHandler {
	return &fileSourceHandler{}
}

// Validate validates the file source configuration
func (*fileSourceHandler) Validate(source *config.SourceConfig) error {
	if source == nil {
		return fmt.Errorf("source configuration cannot be nil")
	}
	if source.File == nil {
		return fmt.Errorf("file configuration is required")
	}
	if source.File.Path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	return nil
}

// FetchData reads the file the source points at
func (h *fileSourceHandler) FetchData(_ context.Context, source *config.SourceConfig) (*FetchResult, error) {
	if err := h.Validate(source); err != nil {
		return nil, fmt.Errorf("source validation failed: %w", err)
	}

	filePath := source.File.Path
	//nolint:gosec // File path comes from user configuration, this is expected behavior
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", ErrSourceNotFound, filePath)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return NewFetchResult(data, filePath), nil
}
