package permission

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "permissions.yaml")
}

func TestStoreRoundTrip(t *testing.T) {
	path := tempStorePath(t)

	s := OpenStore(path)
	defer s.Close()

	require.NoError(t, s.Upsert(Record{Tool: "list_files", Scope: ".", Decision: AllowAlways}))
	require.NoError(t, s.Upsert(Record{Tool: "shell_execute", Scope: "git commit *", Decision: DenyAlways}))

	// A fresh load must contain both records, unchanged.
	reloaded := OpenStore(path)
	defer reloaded.Close()

	rec, ok := reloaded.Lookup(Key{Tool: "list_files", Scope: "."})
	require.True(t, ok)
	assert.Equal(t, AllowAlways, rec.Decision)
	assert.False(t, rec.CreatedAt.IsZero())

	rec, ok = reloaded.Lookup(Key{Tool: "shell_execute", Scope: "git commit *"})
	require.True(t, ok)
	assert.Equal(t, DenyAlways, rec.Decision)
}

func TestStoreUpsertPreservesUnrelatedRecords(t *testing.T) {
	path := tempStorePath(t)

	s := OpenStore(path)
	defer s.Close()

	require.NoError(t, s.Upsert(Record{Tool: "a", Decision: AllowAlways}))
	require.NoError(t, s.Upsert(Record{Tool: "b", Decision: DenyAlways}))
	require.NoError(t, s.Upsert(Record{Tool: "a", Decision: DenyAlways})) // replace

	records := s.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Tool)
	assert.Equal(t, DenyAlways, records[0].Decision)
	assert.Equal(t, "b", records[1].Tool)
}

func TestStoreRejectsNonDurableDecision(t *testing.T) {
	s := OpenStore(tempStorePath(t))
	defer s.Close()

	err := s.Upsert(Record{Tool: "x", Decision: AllowOnce})
	assert.ErrorIs(t, err, ErrNotDurable)
	assert.Zero(t, s.Len())
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	s := OpenStore(tempStorePath(t))
	defer s.Close()
	assert.Zero(t, s.Len())
}

func TestStoreCorruptFileFailsClosed(t *testing.T) {
	path := tempStorePath(t)
	require.NoError(t, os.WriteFile(path, []byte("records: [not : valid : yaml"), 0o644))

	s := OpenStore(path)
	defer s.Close()

	// Fail closed: empty store, every decision defaults to ask.
	assert.Zero(t, s.Len())
}

func TestStoreIgnoresUnknownFields(t *testing.T) {
	path := tempStorePath(t)
	doc := `
version: 99
future_field: whatever
records:
  - tool: list_files
    scope: "."
    decision: allow_always
    created_at: 2026-01-02T03:04:05Z
    annotation: added by a future release
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s := OpenStore(path)
	defer s.Close()

	rec, ok := s.Lookup(Key{Tool: "list_files", Scope: "."})
	require.True(t, ok)
	assert.Equal(t, AllowAlways, rec.Decision)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), rec.CreatedAt.UTC())
}

func TestStoreDropsNonDurableRecordsOnLoad(t *testing.T) {
	path := tempStorePath(t)
	doc := `
records:
  - tool: ghost
    decision: allow_once
  - tool: kept
    decision: deny_always
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s := OpenStore(path)
	defer s.Close()

	assert.Equal(t, 1, s.Len())
	_, ok := s.Lookup(Key{Tool: "kept"})
	assert.True(t, ok)
}

func TestStoreRemove(t *testing.T) {
	s := OpenStore(tempStorePath(t))
	defer s.Close()

	require.NoError(t, s.Upsert(Record{Tool: "a", Scope: "x", Decision: AllowAlways}))
	require.NoError(t, s.Upsert(Record{Tool: "a", Scope: "y", Decision: AllowAlways}))
	require.NoError(t, s.Upsert(Record{Tool: "b", Decision: DenyAlways}))

	n, err := s.Remove("a", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.Len())

	n, err = s.Remove("", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, s.Len())
}

func TestStoreReloadPicksUpHandEdits(t *testing.T) {
	path := tempStorePath(t)

	s := OpenStore(path)
	defer s.Close()
	require.NoError(t, s.Upsert(Record{Tool: "a", Decision: AllowAlways}))

	// Operator flips the record to deny by hand.
	doc := `
records:
  - tool: a
    decision: deny_always
    created_at: 2026-02-01T00:00:00Z
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	require.NoError(t, s.Reload())

	rec, ok := s.Lookup(Key{Tool: "a"})
	require.True(t, ok)
	assert.Equal(t, DenyAlways, rec.Decision)
}

func TestStoreSecondInstanceWarnsButWorks(t *testing.T) {
	path := tempStorePath(t)

	first := OpenStore(path)
	defer first.Close()

	second := OpenStore(path)
	defer second.Close()

	// The second instance still reads and writes; the lock is advisory.
	require.NoError(t, second.Upsert(Record{Tool: "t", Decision: AllowAlways}))
}
