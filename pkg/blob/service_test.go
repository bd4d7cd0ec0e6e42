package blob

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/chunkstore/memory"
	"github.com/obsync/obsync/pkg/model"
	"github.com/obsync/obsync/pkg/store"
)

const (
	testOwner = "user-1"
	testVault = "vault-1"
)

// testHash is a syntactically valid sha256 hex digest for manifests.
var testHash = strings.Repeat("ab", 32)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.CreateVault(context.Background(), &model.Vault{
		ID:    testVault,
		Owner: testOwner,
		Name:  "notes",
	})
	require.NoError(t, err)

	chunks := memory.New()
	return NewService(st, chunks, auth.NewGate(st)), chunks
}

func principal() *auth.Principal {
	return &auth.Principal{UserID: testOwner, Scopes: []auth.Scope{auth.ScopeRead, auth.ScopeWrite}}
}

func chunkReq(data []byte) *PutChunkRequest {
	return &PutChunkRequest{
		ChunkHash: sha256Hex(data),
		Size:      int64(len(data)),
		Data:      data,
	}
}

func TestUploadLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	part0 := []byte("encrypted-part-zero")
	part1 := []byte("encrypted-part-one")
	total := int64(len(part0) + len(part1))

	init, err := svc.Init(ctx, principal(), testVault, &InitRequest{
		Hash:       testHash,
		Size:       total,
		ChunkCount: 2,
		CipherAlg:  "AES-256-GCM",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, init.UploadID)
	assert.Equal(t, []int{0, 1}, init.MissingIndices)

	// Manifest is invisible before commit.
	_, err = svc.Manifest(ctx, principal(), testVault, testHash)
	assert.ErrorIs(t, err, model.ErrBlobNotFound)

	put, err := svc.PutChunk(ctx, principal(), testVault, testHash, 0, chunkReq(part0))
	require.NoError(t, err)
	assert.True(t, put.Persisted)

	// Committing before all chunks arrive fails with current progress.
	_, err = svc.Commit(ctx, principal(), testVault, testHash, &CommitRequest{
		Hash:               testHash,
		ExpectedChunkCount: 2,
		ExpectedSize:       total,
	})
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, int64(1), inc.CurrentCount)
	assert.Equal(t, int64(len(part0)), inc.CurrentSize)

	// Re-init resumes: only index 1 is still missing.
	init, err = svc.Init(ctx, principal(), testVault, &InitRequest{
		Hash:       testHash,
		Size:       total,
		ChunkCount: 2,
		CipherAlg:  "AES-256-GCM",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, init.MissingIndices)

	_, err = svc.PutChunk(ctx, principal(), testVault, testHash, 1, chunkReq(part1))
	require.NoError(t, err)

	commit, err := svc.Commit(ctx, principal(), testVault, testHash, &CommitRequest{
		Hash:               testHash,
		ExpectedChunkCount: 2,
		ExpectedSize:       total,
	})
	require.NoError(t, err)
	assert.True(t, commit.Committed)

	// Re-commit is a no-op.
	_, err = svc.Commit(ctx, principal(), testVault, testHash, &CommitRequest{
		Hash:               testHash,
		ExpectedChunkCount: 2,
		ExpectedSize:       total,
	})
	require.NoError(t, err)

	manifest, err := svc.Manifest(ctx, principal(), testVault, testHash)
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.ChunkCount)
	require.Len(t, manifest.Chunks, 2)
	assert.Equal(t, 0, manifest.Chunks[0].Index)
	assert.Equal(t, 1, manifest.Chunks[1].Index)

	got, err := svc.GetChunk(ctx, principal(), testVault, testHash, 1)
	require.NoError(t, err)
	assert.Equal(t, part1, got.Data)
	assert.Equal(t, sha256Hex(part1), got.ChunkHash)
}

func TestPutChunkHashMismatchWritesNothing(t *testing.T) {
	svc, chunks := newTestService(t)
	ctx := context.Background()

	_, err := svc.Init(ctx, principal(), testVault, &InitRequest{
		Hash:       testHash,
		Size:       10,
		ChunkCount: 1,
		CipherAlg:  "AES-256-GCM",
	})
	require.NoError(t, err)

	data := []byte("0123456789")
	_, err = svc.PutChunk(ctx, principal(), testVault, testHash, 0, &PutChunkRequest{
		ChunkHash: strings.Repeat("00", 32),
		Size:      int64(len(data)),
		Data:      data,
	})
	var mismatch *HashMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, sha256Hex(data), mismatch.Computed)

	// Integrity gate runs before anything durable: no stored bytes, no row.
	assert.Equal(t, 0, chunks.Len())
	init, err := svc.Init(ctx, principal(), testVault, &InitRequest{
		Hash:       testHash,
		Size:       10,
		ChunkCount: 1,
		CipherAlg:  "AES-256-GCM",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, init.MissingIndices)
}

func TestPutChunkValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Init(ctx, principal(), testVault, &InitRequest{
		Hash:       testHash,
		Size:       4,
		ChunkCount: 1,
		CipherAlg:  "AES-256-GCM",
	})
	require.NoError(t, err)

	// Index beyond the declared chunk count.
	data := []byte("data")
	_, err = svc.PutChunk(ctx, principal(), testVault, testHash, 5, chunkReq(data))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Details, "index")

	// Declared size disagrees with the payload.
	_, err = svc.PutChunk(ctx, principal(), testVault, testHash, 0, &PutChunkRequest{
		ChunkHash: sha256Hex(data),
		Size:      99,
		Data:      data,
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Details, "size")

	// Unknown blob.
	other := strings.Repeat("cd", 32)
	_, err = svc.PutChunk(ctx, principal(), testVault, other, 0, chunkReq(data))
	assert.ErrorIs(t, err, model.ErrBlobNotFound)
}

func TestInitValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Init(ctx, principal(), testVault, &InitRequest{
		Hash:       "not-hex",
		Size:       0,
		ChunkCount: 0,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Details, "hash")
	assert.Contains(t, verr.Details, "size")
	assert.Contains(t, verr.Details, "chunkCount")
	assert.Contains(t, verr.Details, "cipherAlg")
}

func TestCommitHashMustMatchURL(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Commit(ctx, principal(), testVault, testHash, &CommitRequest{
		Hash: strings.Repeat("cd", 32),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Details, "hash")
}

func TestBlobAccessControl(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	readOnly := &auth.Principal{UserID: testOwner, Scopes: []auth.Scope{auth.ScopeRead}}
	_, err := svc.Init(ctx, readOnly, testVault, &InitRequest{
		Hash:       testHash,
		Size:       1,
		ChunkCount: 1,
		CipherAlg:  "AES-256-GCM",
	})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	stranger := &auth.Principal{UserID: "user-2", Scopes: []auth.Scope{auth.ScopeRead, auth.ScopeWrite}}
	_, err = svc.Manifest(ctx, stranger, testVault, testHash)
	assert.ErrorIs(t, err, model.ErrVaultNotFound)
}
