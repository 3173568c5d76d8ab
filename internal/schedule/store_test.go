package schedule_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempodel/internal/logging"
	"tempodel/internal/schedule"
)

const schedulePath = "/state/schedule.json"

func newMemStore(t *testing.T) (*schedule.Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store := schedule.NewStore(schedule.Options{
		Path:    schedulePath,
		Fs:      fsys,
		Retries: 2,
		Role:    "test",
		Logger:  logging.NewNop(),
	})
	return store, fsys
}

func TestLoadMissingFileReturnsEmptyWithoutWriting(t *testing.T) {
	store, fsys := newMemStore(t)

	entries := store.Load(context.Background())
	assert.Empty(t, entries)

	exists, err := afero.Exists(fsys, schedulePath)
	require.NoError(t, err)
	assert.False(t, exists, "missing schedule must not be created by load")
}

func TestLoadCorruptFileSelfHeals(t *testing.T) {
	for name, content := range map[string]string{
		"garbage": "{not json",
		"object":  `{"path": "/x"}`,
		"null":    "null",
	} {
		t.Run(name, func(t *testing.T) {
			store, fsys := newMemStore(t)
			require.NoError(t, afero.WriteFile(fsys, schedulePath, []byte(content), 0o644))

			assert.Empty(t, store.Load(context.Background()))

			data, err := afero.ReadFile(fsys, schedulePath)
			require.NoError(t, err)
			assert.Equal(t, "[]", string(data))
		})
	}
}

func TestLoadFiltersMalformedAndDuplicateRecords(t *testing.T) {
	store, fsys := newMemStore(t)
	content := `[
		{"path": "/data/a", "delete_at": 10, "is_dir": false},
		{"path": "/data/./a", "delete_at": 20, "is_dir": false},
		{"path": "", "delete_at": 10, "is_dir": false},
		{"path": 42, "delete_at": 10, "is_dir": false},
		{"path": "/data/b", "is_dir": true},
		{"path": "/data/c", "delete_at": "soon", "is_dir": true},
		{"path": "/data/d", "delete_at": 30, "is_dir": "no"},
		"just a string",
		null,
		{"path": "/data/e", "delete_at": 40.5, "is_dir": true, "periodic": true, "original_duration_seconds": 60}
	]`
	require.NoError(t, afero.WriteFile(fsys, schedulePath, []byte(content), 0o644))

	entries := store.Load(context.Background())
	require.Len(t, entries, 2)
	assert.Equal(t, "/data/a", entries[0].Path)
	assert.Equal(t, 10.0, entries[0].DeleteAt)
	assert.Equal(t, "/data/e", entries[1].Path)
	r, ok := entries[1].Recurrence()
	require.True(t, ok)
	assert.Equal(t, 60.0, r)
}

func TestSaveWritesIndentedArrayAtomically(t *testing.T) {
	store, fsys := newMemStore(t)
	entries := []schedule.Entry{
		{Path: "/tmp/logs", DeleteAt: 1760000000.5, IsDir: true, Periodic: true, RecurrenceSeconds: schedule.Float(3600)},
		{Path: "/tmp/a.txt", DeleteAt: 1760000100, RecurrenceSeconds: schedule.Float(5)},
		{Path: "/tmp/b", DeleteAt: 1760000200, Kind: schedule.KindDir, IsDir: true},
	}
	require.NoError(t, store.SaveStrict(context.Background(), entries))

	data, err := afero.ReadFile(fsys, schedulePath)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "[\n    {\n        \"path\": \"/tmp/logs\""), text)
	assert.Contains(t, text, `"original_duration_seconds": 3600`)
	assert.Equal(t, 1, strings.Count(text, "original_duration_seconds"), "non-periodic recurrence must not be persisted")
	assert.Equal(t, 3, strings.Count(text, `"periodic"`))
	assert.Contains(t, text, `"kind": "dir"`)
	assert.Equal(t, 1, strings.Count(text, `"kind"`))

	for _, leftover := range []string{schedulePath + ".tmp", schedulePath + ".lock"} {
		exists, err := afero.Exists(fsys, leftover)
		require.NoError(t, err)
		assert.False(t, exists, "%s should not remain after save", leftover)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, fsys := newMemStore(t)
	original := []schedule.Entry{
		{Path: "/tmp/logs", DeleteAt: 1760000000.25, IsDir: true, Periodic: true, RecurrenceSeconds: schedule.Float(90)},
		{Path: "/tmp/a.txt", DeleteAt: 1760000100},
	}
	ctx := context.Background()
	store.Save(ctx, original)
	first, err := afero.ReadFile(fsys, schedulePath)
	require.NoError(t, err)

	store.Save(ctx, store.Load(ctx))
	second, err := afero.ReadFile(fsys, schedulePath)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, original, store.Load(ctx))
}

func TestSaveDropsMalformedEntries(t *testing.T) {
	store, _ := newMemStore(t)
	ctx := context.Background()
	store.Save(ctx, []schedule.Entry{{Path: ""}, {Path: "/ok", DeleteAt: 1}})

	entries := store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "/ok", entries[0].Path)
}

func TestAddOrUpdateKeepsOneEntryPerPath(t *testing.T) {
	store, fsys := newMemStore(t)
	ctx := context.Background()
	require.NoError(t, fsys.MkdirAll("/data/logs", 0o755))

	_, err := store.AddOrUpdate(ctx, schedule.Request{Path: "/data/logs", DeleteAt: 100, Periodic: true, Recurrence: 60})
	require.NoError(t, err)
	updated, err := store.AddOrUpdate(ctx, schedule.Request{Path: "/data/other/../logs/", DeleteAt: 200})
	require.NoError(t, err)

	entries := store.List(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "/data/logs", entries[0].Path)
	assert.Equal(t, 200.0, entries[0].DeleteAt)
	assert.True(t, entries[0].IsDir)
	assert.False(t, entries[0].Periodic)
	assert.Nil(t, updated.RecurrenceSeconds, "switching to non-periodic clears recurrence")

	data, err := afero.ReadFile(fsys, schedulePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "original_duration_seconds")
}

func TestAddOrUpdateDowngradesInvalidRecurrence(t *testing.T) {
	store, _ := newMemStore(t)
	entry, err := store.AddOrUpdate(context.Background(), schedule.Request{Path: "/data/x", DeleteAt: 5, Periodic: true, Recurrence: -5})
	require.NoError(t, err)
	assert.False(t, entry.Periodic)
	assert.Nil(t, entry.RecurrenceSeconds)
}

func TestAddOrUpdateHonoursKindHint(t *testing.T) {
	store, _ := newMemStore(t)
	entry, err := store.AddOrUpdate(context.Background(), schedule.Request{Path: "/future/dir", DeleteAt: 5, Kind: schedule.KindDir})
	require.NoError(t, err)
	assert.True(t, entry.IsDir, "declared kind wins over a missing target")
}

func TestAddOrUpdateRejectsEmptyPath(t *testing.T) {
	store, _ := newMemStore(t)
	_, err := store.AddOrUpdate(context.Background(), schedule.Request{Path: "   ", DeleteAt: 5})
	require.ErrorIs(t, err, schedule.ErrEmptyPath)
}

func TestMutationsWrapSaveFailuresAsPersistErrors(t *testing.T) {
	store := schedule.NewStore(schedule.Options{
		Path:    schedulePath,
		Fs:      afero.NewReadOnlyFs(afero.NewMemMapFs()),
		Retries: 1,
		Role:    "test",
		Logger:  logging.NewNop(),
	})
	_, err := store.AddOrUpdate(context.Background(), schedule.Request{Path: "/data/a", DeleteAt: 5})
	require.ErrorIs(t, err, schedule.ErrPersist)

	_, err = store.AddOrUpdate(context.Background(), schedule.Request{Path: " ", DeleteAt: 5})
	assert.NotErrorIs(t, err, schedule.ErrPersist)
}

func TestRemove(t *testing.T) {
	store, fsys := newMemStore(t)
	ctx := context.Background()

	removed, err := store.Remove(ctx, "/data/none")
	require.NoError(t, err)
	assert.False(t, removed)
	exists, _ := afero.Exists(fsys, schedulePath)
	assert.False(t, exists, "no-op remove must not write the schedule")

	_, err = store.AddOrUpdate(ctx, schedule.Request{Path: "/data/a", DeleteAt: 5})
	require.NoError(t, err)
	_, err = store.AddOrUpdate(ctx, schedule.Request{Path: "/data/b", DeleteAt: 1})
	require.NoError(t, err)

	removed, err = store.Remove(ctx, "/data/a")
	require.NoError(t, err)
	assert.True(t, removed)

	entries := store.List(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "/data/b", entries[0].Path)

	_, err = store.Get(ctx, "/data/a")
	require.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestListSortsByDueTime(t *testing.T) {
	store, _ := newMemStore(t)
	ctx := context.Background()
	store.Save(ctx, []schedule.Entry{
		{Path: "/c", DeleteAt: 30},
		{Path: "/a", DeleteAt: 10},
		{Path: "/b", DeleteAt: 20},
	})
	var got []string
	for _, e := range store.List(ctx) {
		got = append(got, e.Path)
	}
	assert.Equal(t, []string{"/a", "/b", "/c"}, got)
}

func TestEntryJSONRejectsMissingFields(t *testing.T) {
	var e schedule.Entry
	require.Error(t, json.Unmarshal([]byte(`{"path": "/x", "delete_at": 1}`), &e))
	require.NoError(t, json.Unmarshal([]byte(`{"path": "/x", "delete_at": 1, "is_dir": false, "periodic": "yes"}`), &e))
	assert.False(t, e.Periodic, "mistyped optional fields fall back to defaults")
}
