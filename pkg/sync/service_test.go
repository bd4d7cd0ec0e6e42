package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/model"
	"github.com/obsync/obsync/pkg/realtime"
	"github.com/obsync/obsync/pkg/store"
)

const (
	testOwner = "user-1"
	testVault = "vault-1"
)

func newTestService(t *testing.T) (*Service, *store.GORMStore, *realtime.Bus) {
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

	bus := realtime.NewBus()
	return NewService(st, bus, auth.NewGate(st)), st, bus
}

func writePrincipal() *auth.Principal {
	return &auth.Principal{UserID: testOwner, Scopes: []auth.Scope{auth.ScopeRead, auth.ScopeWrite}}
}

func mdOp(key string) PushOp {
	return PushOp{
		IdempotencyKey: key,
		OpType:         string(model.OpMdUpdate),
		Payload:        json.RawMessage(`{"path":"daily/2026-08-25.md"}`),
	}
}

func TestPushAppendsInOrder(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Push(ctx, writePrincipal(), testVault, &PushRequest{
		DeviceID: "dev-1",
		Ops:      []PushOp{mdOp("k-1"), mdOp("k-2"), mdOp("k-3")},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.AppliedCount)
	assert.Equal(t, int64(3), resp.AcknowledgedSeq)
	assert.Empty(t, resp.MissingChunks)
	assert.False(t, resp.RebaseRequired)

	cursor, err := st.GetCursor(ctx, "dev-1", testVault)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cursor)
}

func TestPushReplayIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	batch := &PushRequest{DeviceID: "dev-1", Ops: []PushOp{mdOp("k-1"), mdOp("k-2")}}

	first, err := svc.Push(ctx, writePrincipal(), testVault, batch)
	require.NoError(t, err)

	second, err := svc.Push(ctx, writePrincipal(), testVault, batch)
	require.NoError(t, err)

	assert.Equal(t, 0, second.AppliedCount)
	assert.Equal(t, first.AcknowledgedSeq, second.AcknowledgedSeq)

	pull, err := svc.Pull(ctx, writePrincipal(), testVault, 0, 0, "")
	require.NoError(t, err)
	assert.Len(t, pull.Ops, 2)
}

func TestPushPublishesAfterCommit(t *testing.T) {
	svc, _, bus := newTestService(t)
	ctx := context.Background()

	sub := bus.Subscribe(testVault)
	defer bus.Unsubscribe(sub)

	_, err := svc.Push(ctx, writePrincipal(), testVault, &PushRequest{
		DeviceID: "dev-1",
		Ops:      []PushOp{mdOp("k-1"), mdOp("k-2")},
	})
	require.NoError(t, err)

	for want := int64(1); want <= 2; want++ {
		ev := <-sub.C()
		assert.Equal(t, want, ev.Seq)
		assert.Equal(t, string(model.OpMdUpdate), ev.OpType)
	}

	// Replays do not appear on the bus.
	_, err = svc.Push(ctx, writePrincipal(), testVault, &PushRequest{
		DeviceID: "dev-1",
		Ops:      []PushOp{mdOp("k-1")},
	})
	require.NoError(t, err)
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event for replayed op: seq=%d", ev.Seq)
	default:
	}
}

func TestPushValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		req   *PushRequest
		field string
	}{
		{
			name:  "empty batch",
			req:   &PushRequest{DeviceID: "dev-1", Ops: []PushOp{}},
			field: "PushRequest.Ops",
		},
		{
			name:  "missing device id",
			req:   &PushRequest{Ops: []PushOp{mdOp("k-1")}},
			field: "PushRequest.DeviceID",
		},
		{
			name: "unknown op type",
			req: &PushRequest{DeviceID: "dev-1", Ops: []PushOp{{
				IdempotencyKey: "k-1",
				OpType:         "frobnicate",
				Payload:        json.RawMessage(`{}`),
			}}},
			field: "ops[0].opType",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Push(ctx, writePrincipal(), testVault, tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Details, tc.field)
		})
	}
}

func TestPushAccessControl(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := &PushRequest{DeviceID: "dev-1", Ops: []PushOp{mdOp("k-1")}}

	_, err := svc.Push(ctx, nil, testVault, req)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	readOnly := &auth.Principal{UserID: testOwner, Scopes: []auth.Scope{auth.ScopeRead}}
	_, err = svc.Push(ctx, readOnly, testVault, req)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	// Someone else's vault looks exactly like a missing vault.
	stranger := &auth.Principal{UserID: "user-2", Scopes: []auth.Scope{auth.ScopeWrite}}
	_, err = svc.Push(ctx, stranger, testVault, req)
	assert.ErrorIs(t, err, model.ErrVaultNotFound)
	_, err = svc.Push(ctx, writePrincipal(), "no-such-vault", req)
	assert.ErrorIs(t, err, model.ErrVaultNotFound)
}

func TestPushBlobRefReportsMissing(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	blobRef := func(key, hash string) PushOp {
		return PushOp{
			IdempotencyKey: key,
			OpType:         string(model.OpBlobRef),
			Payload:        json.RawMessage(fmt.Sprintf(`{"blobHash":%q,"index":0}`, hash)),
		}
	}

	resp, err := svc.Push(ctx, writePrincipal(), testVault, &PushRequest{
		DeviceID: "dev-1",
		Ops:      []PushOp{blobRef("k-1", "deadbeef")},
	})
	require.NoError(t, err)
	require.Len(t, resp.MissingChunks, 1)
	assert.Equal(t, "deadbeef", resp.MissingChunks[0].BlobHash)
	// The op is recorded regardless.
	assert.Equal(t, 1, resp.AppliedCount)

	// Known but uncommitted blobs are still reported missing.
	require.NoError(t, st.UpsertBlobManifest(ctx, "cafef00d", 4, 1, "aes-256-gcm"))
	resp, err = svc.Push(ctx, writePrincipal(), testVault, &PushRequest{
		DeviceID: "dev-1",
		Ops:      []PushOp{blobRef("k-2", "cafef00d")},
	})
	require.NoError(t, err)
	require.Len(t, resp.MissingChunks, 1)

	require.NoError(t, st.MarkBlobCommitted(ctx, "cafef00d"))
	resp, err = svc.Push(ctx, writePrincipal(), testVault, &PushRequest{
		DeviceID: "dev-1",
		Ops:      []PushOp{blobRef("k-3", "cafef00d")},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.MissingChunks)
}

func TestPullPaginatesByWatermark(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	ops := make([]PushOp, 5)
	for i := range ops {
		ops[i] = mdOp(fmt.Sprintf("k-%d", i))
	}
	_, err := svc.Push(ctx, writePrincipal(), testVault, &PushRequest{DeviceID: "dev-1", Ops: ops})
	require.NoError(t, err)

	page, err := svc.Pull(ctx, writePrincipal(), testVault, 0, 2, "dev-2")
	require.NoError(t, err)
	require.Len(t, page.Ops, 2)
	assert.Equal(t, int64(2), page.Watermark)
	assert.Equal(t, int64(1), page.Ops[0].Seq)

	page, err = svc.Pull(ctx, writePrincipal(), testVault, page.Watermark, 0, "dev-2")
	require.NoError(t, err)
	require.Len(t, page.Ops, 3)
	assert.Equal(t, int64(5), page.Watermark)

	// Caught up: watermark echoes since and the cursor never regresses.
	page, err = svc.Pull(ctx, writePrincipal(), testVault, 5, 0, "dev-2")
	require.NoError(t, err)
	assert.Empty(t, page.Ops)
	assert.Equal(t, int64(5), page.Watermark)

	_, err = svc.Pull(ctx, writePrincipal(), testVault, 1, 1, "dev-2")
	require.NoError(t, err)
	cursor, err := st.GetCursor(ctx, "dev-2", testVault)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cursor, "max-policy cursor must not move backwards")
}

func TestPullRequiresReadScope(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Pull(context.Background(), nil, testVault, 0, 0, "")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	noScopes := &auth.Principal{UserID: testOwner}
	_, err = svc.Pull(context.Background(), noScopes, testVault, 0, 0, "")
	assert.True(t, errors.Is(err, auth.ErrForbidden))
}
