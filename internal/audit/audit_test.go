package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()

	l, err := Open(t.Context(), filepath.Join(t.TempDir(), "audit.sqlite"))
	require.NoError(t, err, "Open error")
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()

	l := newTestLog(t)

	require.NoError(t, l.Record(t.Context(), "docs/report.pdf", ModePresigned, "10.0.0.1:1234"), "Record error")
	require.NoError(t, l.Record(t.Context(), "images/logo.png", ModeStreamed, "10.0.0.2:5678"), "Record error")

	entries, err := l.Recent(t.Context(), 10)
	require.NoError(t, err, "Recent error")
	require.Len(t, entries, 2, "entry count")

	// Newest first.
	require.Equal(t, "images/logo.png", entries[0].Key, "first entry key")
	require.Equal(t, ModeStreamed, entries[0].Mode, "first entry mode")
	require.Equal(t, "docs/report.pdf", entries[1].Key, "second entry key")
	require.Equal(t, ModePresigned, entries[1].Mode, "second entry mode")
	require.False(t, entries[0].CreatedAt.IsZero(), "timestamp recorded")
}

func TestRecentHonorsLimit(t *testing.T) {
	t.Parallel()

	l := newTestLog(t)

	for range 5 {
		require.NoError(t, l.Record(t.Context(), "a/b.txt", ModeStreamed, "10.0.0.1:1"), "Record error")
	}

	entries, err := l.Recent(t.Context(), 3)
	require.NoError(t, err, "Recent error")
	require.Len(t, entries, 3, "limit respected")
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := Open(t.Context(), "")
	require.Error(t, err, "expected error for empty path")
}
