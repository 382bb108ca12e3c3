package journal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchload/stitchload/pkg/types"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndQueryFlushes(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	recs := []*FlushRecord{
		{
			RunID: "run-1", Ordinal: 1, TableName: "users",
			OperationCount: 3, FirstSequence: 1001, LastSequence: 1003,
			KeyProperties: []string{"id"}, Fingerprint: 0xdeadbeef,
			Response: `{"status":"OK"}`,
		},
		{
			RunID: "run-1", Ordinal: 2, TableName: "users",
			OperationCount: 1, FirstSequence: 2001, LastSequence: 2001,
			KeyProperties: []string{"id"}, Fingerprint: 42,
		},
	}
	for _, rec := range recs {
		require.NoError(t, j.RecordFlush(ctx, rec))
	}

	got, err := j.FlushesForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Ordinal)
	assert.Equal(t, 3, got[0].OperationCount)
	assert.Equal(t, int64(1001), got[0].FirstSequence)
	assert.Equal(t, int64(1003), got[0].LastSequence)
	assert.Equal(t, []string{"id"}, got[0].KeyProperties)
	assert.Equal(t, uint64(0xdeadbeef), got[0].Fingerprint)
	assert.Equal(t, `{"status":"OK"}`, got[0].Response)
	assert.False(t, got[0].CreatedAt.IsZero())

	assert.Equal(t, 2, got[1].Ordinal)
	assert.Equal(t, uint64(42), got[1].Fingerprint)
}

func TestFlushesForRun_IsolatedByRun(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	require.NoError(t, j.RecordFlush(ctx, &FlushRecord{
		RunID: "run-a", Ordinal: 1, TableName: "t", OperationCount: 1,
		FirstSequence: 1, LastSequence: 1,
	}))
	require.NoError(t, j.RecordFlush(ctx, &FlushRecord{
		RunID: "run-b", Ordinal: 1, TableName: "t", OperationCount: 1,
		FirstSequence: 1, LastSequence: 1,
	}))

	got, err := j.FlushesForRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run-a", got[0].RunID)
}

func TestRecordFlush_DuplicateOrdinalFails(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	rec := &FlushRecord{RunID: "run-1", Ordinal: 1, TableName: "t",
		OperationCount: 1, FirstSequence: 1, LastSequence: 1}
	require.NoError(t, j.RecordFlush(ctx, rec))
	assert.Error(t, j.RecordFlush(ctx, rec))
}

func TestJournal_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordFlush(ctx, &FlushRecord{
		RunID: "run-1", Ordinal: 1, TableName: "t",
		OperationCount: 1, FirstSequence: 1, LastSequence: 1,
	}))
	require.NoError(t, j.Close())

	j2, err := NewJournal(path)
	require.NoError(t, err)
	defer j2.Close()

	got, err := j2.FlushesForRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFingerprint_Deterministic(t *testing.T) {
	envelope := &types.BatchEnvelope{
		Schema:    json.RawMessage(`{"type":"object"}`),
		TableName: "users",
		Messages: []types.Operation{
			{Action: types.ActionUpsert, Data: json.RawMessage(`{"id":1}`), Sequence: 1001},
		},
	}

	f1, err := Fingerprint(envelope)
	require.NoError(t, err)
	f2, err := Fingerprint(envelope)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)

	envelope.TableName = "orders"
	f3, err := Fingerprint(envelope)
	require.NoError(t, err)
	assert.NotEqual(t, f1, f3)
}
