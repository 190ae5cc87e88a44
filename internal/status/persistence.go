// Package status provides run status tracking and persistence for the store test.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nonebot/store-test/internal/storage"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

// StatusPersistence defines the interface for run status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the run status to persistent storage
	SaveStatus(ctx context.Context, status *RunStatus) error

	// LoadStatus loads the run status from persistent storage.
	// Returns an empty RunStatus if the file doesn't exist (first run)
	LoadStatus(ctx context.Context) (*RunStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	path string
}

// NewFileStatusPersistence creates a new file-based status persistence
// writing to path
func NewFileStatusPersistence(path string) StatusPersistence {
	return &fileStatusPersistence{
		path: path,
	}
}

// SaveStatus saves the run status to a JSON file
func (f *fileStatusPersistence) SaveStatus(_ context.Context, status *RunStatus) error {
	// Create the output directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	if err := storage.WriteJSON(f.path, status); err != nil {
		return fmt.Errorf("failed to save run status: %w", err)
	}
	return nil
}

// LoadStatus loads the run status from the JSON file.
// Returns an empty RunStatus if the file doesn't exist
func (f *fileStatusPersistence) LoadStatus(_ context.Context) (*RunStatus, error) {
	// #nosec G304 -- path comes from the output configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist - this is OK for first run
			return &RunStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data: %w", err)
	}

	return &status, nil
}
