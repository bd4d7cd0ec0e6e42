package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsync/obsync/pkg/model"
)

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()

	st, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func appendTestOp(t *testing.T, st *GORMStore, vaultID, key string) (int64, bool) {
	t.Helper()

	seq, wasNew, err := st.AppendOp(context.Background(), AppendOpParams{
		VaultID:        vaultID,
		OpType:         model.OpMdUpdate,
		Payload:        []byte(`{"path":"note.md"}`),
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return seq, wasNew
}

func TestAppendOpAssignsGaplessSeq(t *testing.T) {
	st := newTestStore(t)

	for i := 1; i <= 5; i++ {
		seq, wasNew := appendTestOp(t, st, "vault-a", fmt.Sprintf("key-%d", i))
		assert.Equal(t, int64(i), seq)
		assert.True(t, wasNew)
	}

	latest, err := st.LatestSeq(context.Background(), "vault-a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), latest)
}

func TestAppendOpIsIdempotent(t *testing.T) {
	st := newTestStore(t)

	first, wasNew := appendTestOp(t, st, "vault-a", "same-key")
	assert.True(t, wasNew)

	replay, wasNew := appendTestOp(t, st, "vault-a", "same-key")
	assert.False(t, wasNew)
	assert.Equal(t, first, replay)

	latest, err := st.LatestSeq(context.Background(), "vault-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest)
}

func TestAppendOpScopesSeqPerVault(t *testing.T) {
	st := newTestStore(t)

	seqA, _ := appendTestOp(t, st, "vault-a", "a-1")
	seqB, _ := appendTestOp(t, st, "vault-b", "b-1")

	assert.Equal(t, int64(1), seqA)
	assert.Equal(t, int64(1), seqB)
}

func TestReadOpsSincePaginates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		appendTestOp(t, st, "vault-a", fmt.Sprintf("key-%d", i))
	}

	page, err := st.ReadOpsSince(ctx, "vault-a", 0, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, int64(1), page[0].Seq)
	assert.Equal(t, int64(4), page[3].Seq)

	page, err = st.ReadOpsSince(ctx, "vault-a", 4, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, int64(5), page[0].Seq)

	page, err = st.ReadOpsSince(ctx, "vault-a", 10, 4)
	require.NoError(t, err)
	assert.Empty(t, page)

	// Non-positive limit falls back to the cap.
	page, err = st.ReadOpsSince(ctx, "vault-a", 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 10)
}

func TestCursorPolicies(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertCursor(ctx, "dev-1", "vault-a", 5, CursorMax))

	got, err := st.GetCursor(ctx, "dev-1", "vault-a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	// Max never regresses.
	require.NoError(t, st.UpsertCursor(ctx, "dev-1", "vault-a", 3, CursorMax))
	got, err = st.GetCursor(ctx, "dev-1", "vault-a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	// Set always replaces.
	require.NoError(t, st.UpsertCursor(ctx, "dev-1", "vault-a", 3, CursorSet))
	got, err = st.GetCursor(ctx, "dev-1", "vault-a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	// Unknown cursor reads as zero.
	got, err = st.GetCursor(ctx, "dev-unknown", "vault-a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestVaultLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateVault(ctx, &model.Vault{ID: "vault-a", Name: "notes", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "vault-a", id)

	_, err = st.CreateVault(ctx, &model.Vault{ID: "vault-a", Name: "again", Owner: "alice"})
	assert.ErrorIs(t, err, model.ErrDuplicateVault)

	vault, err := st.GetVault(ctx, "vault-a")
	require.NoError(t, err)
	assert.Equal(t, "alice", vault.Owner)

	_, err = st.GetVault(ctx, "vault-unknown")
	assert.ErrorIs(t, err, model.ErrVaultNotFound)

	vaults, err := st.ListVaults(ctx)
	require.NoError(t, err)
	assert.Len(t, vaults, 1)
}

func TestBlobManifestAndChunks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	hash := "aa11bb22cc33dd44ee55ff6600112233aa11bb22cc33dd44ee55ff6600112233"

	require.NoError(t, st.UpsertBlobManifest(ctx, hash, 2048, 2, "aes-256-gcm"))
	// Re-declaring is a no-op, not an error.
	require.NoError(t, st.UpsertBlobManifest(ctx, hash, 2048, 2, "aes-256-gcm"))

	blob, err := st.LookupBlob(ctx, hash)
	require.NoError(t, err)
	assert.False(t, blob.Committed())
	assert.Equal(t, 2, blob.ChunkCount)

	require.NoError(t, st.UpsertChunk(ctx, hash, 0, "c0", 1024, "blobs/x/0.bin"))
	require.NoError(t, st.UpsertChunk(ctx, hash, 1, "c1", 1024, "blobs/x/1.bin"))
	// Re-upload replaces the row instead of duplicating it.
	require.NoError(t, st.UpsertChunk(ctx, hash, 1, "c1b", 1024, "blobs/x/1.bin"))

	count, sumSize, err := st.CountChunks(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(2048), sumSize)

	chunks, err := st.ListChunks(ctx, hash)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1b", chunks[1].ChunkHash)

	require.NoError(t, st.MarkBlobCommitted(ctx, hash))
	blob, err = st.LookupBlob(ctx, hash)
	require.NoError(t, err)
	require.True(t, blob.Committed())
	committedAt := *blob.CommittedAt

	// Re-committing preserves the original commit time.
	require.NoError(t, st.MarkBlobCommitted(ctx, hash))
	blob, err = st.LookupBlob(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, committedAt, *blob.CommittedAt)

	_, err = st.LookupBlob(ctx, "feedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedface")
	assert.ErrorIs(t, err, model.ErrBlobNotFound)

	chunk, err := st.GetChunk(ctx, hash, 0)
	require.NoError(t, err)
	assert.Equal(t, "blobs/x/0.bin", chunk.StorageKey)

	_, err = st.GetChunk(ctx, hash, 9)
	assert.ErrorIs(t, err, model.ErrChunkNotFound)
}

func TestKeyEnvelopeVersions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for v := 1; v <= 3; v++ {
		require.NoError(t, st.UpsertKeyEnvelope(ctx, &model.KeyEnvelope{
			VaultID:           "vault-a",
			DeviceID:          "dev-1",
			Version:           v,
			EncryptedVaultKey: fmt.Sprintf("wrapped-v%d", v),
		}))
	}

	env, err := st.GetKeyEnvelope(ctx, "vault-a", "dev-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "wrapped-v2", env.EncryptedVaultKey)

	envs, err := st.ListKeyEnvelopes(ctx, "vault-a", "dev-1")
	require.NoError(t, err)
	require.Len(t, envs, 3)

	_, err = st.GetKeyEnvelope(ctx, "vault-a", "dev-2", 1)
	assert.ErrorIs(t, err, model.ErrKeyEnvelopeNotFound)
}

func TestTouchDeviceCreatesAndUpdates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.TouchDevice(ctx, "dev-1", "alice"))

	dev, err := st.GetDevice(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", dev.Owner)
	require.NotNil(t, dev.LastSeenAt)
	firstSeen := *dev.LastSeenAt

	require.NoError(t, st.TouchDevice(ctx, "dev-1", "alice"))
	dev, err = st.GetDevice(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, dev.LastSeenAt)
	assert.False(t, dev.LastSeenAt.Before(firstSeen))
}
