// Package storage writes the store snapshot produced by a run.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/nonebot/store-test/internal/registry"
)

const (
	// AdaptersFileName is the adapter listing file
	AdaptersFileName = "adapters.json"
	// BotsFileName is the bot listing file
	BotsFileName = "bots.json"
	// DriversFileName is the driver listing file
	DriversFileName = "drivers.json"
	// PluginsFileName is the enriched plugin list file
	PluginsFileName = "plugins.json"
	// ResultsFileName is the test results file
	ResultsFileName = "results.json"

	// LockFileName is the lock held on the output directory while writing
	LockFileName = ".lock"

	lockRetryDelay = 100 * time.Millisecond
)

// ErrLocked is returned when another process holds the output directory lock
var ErrLocked = errors.New("output directory is locked")

//go:generate mockgen -destination=mocks/mock_snapshot_store.go -package=mocks -source=storage.go SnapshotStore

// SnapshotStore persists the output of a run
type SnapshotStore interface {
	// Store writes every output document
	Store(ctx context.Context, out *registry.Output) error
}

// fileSnapshotStore implements SnapshotStore on a local directory
type fileSnapshotStore struct {
	directory   string
	lockTimeout time.Duration
}

// Option configures the file snapshot store
type Option func(*fileSnapshotStore)

// WithLockTimeout bounds how long Store waits for the directory lock
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *fileSnapshotStore) {
		s.lockTimeout = timeout
	}
}

// NewFileSnapshotStore creates a snapshot store writing into directory
func NewFileSnapshotStore(directory string, opts ...Option) SnapshotStore {
	s := &fileSnapshotStore{
		directory:   directory,
		lockTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store writes the five documents. Nil listings are written as empty arrays.
func (s *fileSnapshotStore) Store(ctx context.Context, out *registry.Output) error {
	if out == nil {
		return errors.New("output is nil")
	}

	unlock, err := LockDirectory(ctx, s.directory, s.lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	results := out.Results
	if results == nil {
		results = registry.NewOrderedMap[*registry.TestResult]()
	}

	documents := []struct {
		name  string
		value any
	}{
		{AdaptersFileName, nonNil(out.Adapters)},
		{BotsFileName, nonNil(out.Bots)},
		{DriversFileName, nonNil(out.Drivers)},
		{PluginsFileName, nonNil(out.Plugins)},
		{ResultsFileName, results},
	}

	for _, doc := range documents {
		path := filepath.Join(s.directory, doc.name)
		if err := WriteJSON(path, doc.value); err != nil {
			return err
		}
	}

	slog.Info("Store snapshot written",
		"directory", s.directory,
		"plugins", len(out.Plugins),
		"results", results.Len())
	return nil
}

// LockDirectory creates directory and takes its exclusive lock, waiting up to
// timeout. The returned function releases the lock.
func LockDirectory(ctx context.Context, directory string, timeout time.Duration) (func(), error) {
	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(directory, LockFileName))

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("failed to lock output directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, directory)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release output directory lock", "directory", directory, "error", err)
		}
	}, nil
}

// WriteJSON encodes v with two space indentation and replaces path with it
// atomically
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	// Write to temporary file first for atomic operation
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temporary file for %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}

	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
