package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenMigratesSchema(t *testing.T) {
	d := openTestDB(t)

	for _, table := range []string{"frames", "changes"} {
		var name string
		err := d.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	d1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d1.Close())

	d2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d2.Close())
}

func TestRecordAndQueryFrames(t *testing.T) {
	d := openTestDB(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	frames := []struct {
		id      string
		raw     []byte
		forced  bool
		changes []ChangeRecord
	}{
		{
			id: "f-1", raw: []byte("A1y50\n"), forced: false,
			changes: []ChangeRecord{
				{Field: "ignition", OldValue: 0, NewValue: 1},
				{Field: "speed", OldValue: 0, NewValue: 50},
			},
		},
		{
			id: "f-2", raw: []byte("y60\n"), forced: false,
			changes: []ChangeRecord{
				{Field: "speed", OldValue: 50, NewValue: 60},
			},
		},
	}
	for i, f := range frames {
		for j := range f.changes {
			f.changes[j].FrameID = f.id
		}
		err := d.RecordFrame(FrameRecord{
			FrameID:   f.id,
			Raw:       f.raw,
			Commands:  len(f.changes),
			Forced:    f.forced,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}, f.changes)
		require.NoError(t, err)
	}

	recent, err := d.RecentFrames(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "f-2", recent[0].FrameID, "newest frame first")
	assert.Equal(t, []byte("y60\n"), recent[0].Raw)
	assert.Equal(t, "f-1", recent[1].FrameID)
	assert.Equal(t, 2, recent[1].Commands)

	history, err := d.FieldHistory("speed", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, uint32(60), history[0].NewValue, "newest change first")
	assert.Equal(t, uint32(50), history[1].NewValue)

	ignition, err := d.FieldHistory("ignition", 10)
	require.NoError(t, err)
	require.Len(t, ignition, 1)
	assert.Equal(t, "f-1", ignition[0].FrameID)
}

func TestRecordFrameDuplicateIDFails(t *testing.T) {
	d := openTestDB(t)

	rec := FrameRecord{FrameID: "dup", Raw: []byte("A1\n"), Commands: 1}
	require.NoError(t, d.RecordFrame(rec, nil))
	assert.Error(t, d.RecordFrame(rec, nil))
}

func TestFieldHistoryLimit(t *testing.T) {
	d := openTestDB(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := d.RecordFrame(FrameRecord{
			FrameID:   "f-" + string(rune('a'+i)),
			Raw:       []byte("x1\n"),
			Commands:  1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}, []ChangeRecord{{Field: "fuel", OldValue: uint32(i), NewValue: uint32(i + 1)}})
		require.NoError(t, err)
	}

	history, err := d.FieldHistory("fuel", 3)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, uint32(5), history[0].NewValue)
}
