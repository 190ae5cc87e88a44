package status

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestFileStatusPersistence_SaveAndLoad(t *testing.T) {
	t.Parallel()

	// Create temporary directory for test
	tmpDir := t.TempDir()
	statusPath := filepath.Join(tmpDir, "status.json")

	persistence := NewFileStatusPersistence(statusPath)
	require.NotNil(t, persistence)

	now := time.Now()
	testStatus := NewRunStatus(nil, Window{Limit: 5, Force: true}, now)
	testStatus.Sources = []SourceStatus{
		{Name: "store.plugins", Type: "file", Location: "plugins.json", Hash: "abc123", Entries: 3},
		{Name: "previous.results", Type: "url", Location: "https://example.com/results.json", Missing: true},
	}
	testStatus.Complete(Counts{Candidates: 3, Tested: 2, Passed: 1, Skipped: 1}, now.Add(time.Minute))

	ctx := context.Background()
	err := persistence.SaveStatus(ctx, testStatus)
	require.NoError(t, err)

	// Verify file was created
	_, err = os.Stat(statusPath)
	require.NoError(t, err)

	loaded, err := persistence.LoadStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, testStatus.RunID, loaded.RunID)
	require.Equal(t, RunPhaseComplete, loaded.Phase)
	require.Equal(t, testStatus.Window, loaded.Window)
	require.Equal(t, testStatus.Counts, loaded.Counts)
	require.Equal(t, testStatus.Sources, loaded.Sources)
	require.Equal(t, "1m0s", loaded.Duration)
	require.NotNil(t, loaded.LastCompleteTime)
}

func TestFileStatusPersistence_LoadNonExistent(t *testing.T) {
	t.Parallel()

	persistence := NewFileStatusPersistence(filepath.Join(t.TempDir(), "status.json"))

	// Load non-existent status should return empty status
	loaded, err := persistence.LoadStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, RunPhase(""), loaded.Phase)
	require.Equal(t, "", loaded.Message)
}

func TestFileStatusPersistence_LoadInvalid(t *testing.T) {
	t.Parallel()

	statusPath := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(statusPath, []byte("{invalid json}"), 0600))

	_, err := NewFileStatusPersistence(statusPath).LoadStatus(context.Background())
	require.Error(t, err)
}

func TestFileStatusPersistence_AtomicWrite(t *testing.T) {
	t.Parallel()

	statusPath := filepath.Join(t.TempDir(), "status.json")
	persistence := NewFileStatusPersistence(statusPath)

	err := persistence.SaveStatus(context.Background(), NewRunStatus(nil, Window{}, time.Now()))
	require.NoError(t, err)

	// Verify temporary file was cleaned up
	_, err = os.Stat(statusPath + ".tmp")
	require.True(t, os.IsNotExist(err), "Temporary file should not exist after save")
}

func TestRunStatus_History(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := NewRunStatus(&RunStatus{}, Window{Limit: 1}, start)
	_, err := uuid.Parse(first.RunID)
	require.NoError(t, err)
	require.Equal(t, RunPhaseRunning, first.Phase)
	first.Fail(errors.New("load failed"), start.Add(time.Second))
	require.Equal(t, RunPhaseFailed, first.Phase)
	require.Equal(t, "load failed", first.Message)
	require.Equal(t, 1, first.AttemptCount)
	require.Nil(t, first.LastCompleteTime)

	second := NewRunStatus(first, Window{Limit: 1}, start.Add(time.Hour))
	require.NotEqual(t, first.RunID, second.RunID)
	second.Fail(errors.New("write failed"), start.Add(time.Hour+time.Second))
	require.Equal(t, 2, second.AttemptCount)

	third := NewRunStatus(second, Window{Limit: 1}, start.Add(2*time.Hour))
	third.Complete(Counts{Tested: 1}, start.Add(2*time.Hour+time.Minute))
	require.Equal(t, 0, third.AttemptCount)
	require.NotNil(t, third.LastCompleteTime)
	require.Equal(t, start.Add(2*time.Hour+time.Minute), *third.LastCompleteTime)

	fourth := NewRunStatus(third, Window{}, start.Add(3*time.Hour))
	require.Equal(t, third.LastCompleteTime, fourth.LastCompleteTime)
}
