package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_RecordAndRecent(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)

	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, log.Record(KindCommand, "deploy", start, 1500*time.Millisecond, 0, ""))
	require.NoError(t, log.Record(KindWorkflow, "release", start.Add(time.Minute), 3*time.Second, 1, "push"))

	entries, err := log.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "release", entries[0].Name)
	assert.Equal(t, KindWorkflow, entries[0].Kind)
	assert.Equal(t, int64(3000), entries[0].DurationMS)
	assert.Equal(t, 1, entries[0].ExitCode)
	assert.Equal(t, "push", entries[0].FailedStep)

	assert.Equal(t, "deploy", entries[1].Name)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestLog_RecentHonorsLimit(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Record(KindCommand, "cmd", time.Now(), time.Second, 0, ""))
	}

	entries, err := log.Recent(2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLog_EmptyHistory(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)

	entries, err := log.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLog_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, first.Record(KindCommand, "deploy", time.Now(), time.Second, 0, ""))

	second, err := Open(dir)
	require.NoError(t, err)
	entries, err := second.Recent(0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
