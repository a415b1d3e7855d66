package relation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

func TestReconcileConverges(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardTwo, "task0001", "Remote task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))

	want := rig.parentOf(t, child)
	require.NotNil(t, want)

	// Repeated renders, and even a replayed queue entry, land on the same
	// state.
	for i := 0; i < 3; i++ {
		require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))
		assert.Equal(t, want, rig.parentOf(t, child))
	}
	require.NoError(t, rig.engine.enqueue(ctx, ctxFor(child), types.NewSyncEntry(types.SyncKindParent, child.ID)))
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))
	assert.Equal(t, want, rig.parentOf(t, child))
}

func TestReconcileSkipsDuringGrace(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardTwo, "task0001", "Remote task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))

	// A mutation on the child is still inside its grace window; the drain
	// must not run under it.
	require.NoError(t, rig.engine.markUpdating(ctx, child.ID))
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))
	assert.Nil(t, rig.parentOf(t, child))
	require.NotNil(t, rig.queued(t, types.SyncParentKey(child.ID)))

	// Once the window expires the same entry drains normally.
	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))
	require.NotNil(t, rig.parentOf(t, child))
	assert.Nil(t, rig.queued(t, types.SyncParentKey(child.ID)))
}

func TestReconcileUnauthorizedIsNoop(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardTwo, "task0001", "Remote task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))

	require.NoError(t, rig.engine.Deauthorize(ctx, ctxFor(child)))
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))

	// Nothing drained; the entry waits for an authorized render.
	assert.Nil(t, rig.parentOf(t, child))
	require.NotNil(t, rig.queued(t, types.SyncParentKey(child.ID)))
}

func TestReconcileRequeuesOnRemoteFailure(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardTwo, "task0001", "Remote task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))

	boom := errors.New("rate limited")
	rig.remote.FailNext = boom
	err := rig.engine.Reconcile(ctx, ctxFor(child))
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, rig.notify.Alerts, rig.notify.String())

	// The entry survived the failed pass and the next render applies it.
	require.NotNil(t, rig.queued(t, types.SyncParentKey(child.ID)))
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))
	require.NotNil(t, rig.parentOf(t, child))
	assert.Nil(t, rig.queued(t, types.SyncParentKey(child.ID)))
}

func TestReconcileHealsManualItemRemoval(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	keep := rig.remote.AddCard(boardOne, "task0001", "Kept task")
	drop := rig.remote.AddCard(boardOne, "task0002", "Dropped task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), keep))
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), drop))

	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(parent)))

	// Someone deletes a check-item by hand in the board UI.
	record := rig.childrenOf(t, parent)
	require.NotNil(t, record)
	rig.remote.DropCheckItem(record.ChecklistID, record.CheckItemIDs[drop.ShortLink])
	rig.remote.TouchCard(parent.ID)

	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(parent)))

	healed := rig.childrenOf(t, parent)
	require.NotNil(t, healed)
	assert.Equal(t, []string{keep.ShortLink}, healed.ShortLinks)
	assert.Equal(t, types.ChildCounts{Done: 0, Total: 1}, healed.Counts)
}

func TestReconcileRecountsCompletedItems(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	one := rig.remote.AddCard(boardOne, "task0001", "Task one")
	two := rig.remote.AddCard(boardOne, "task0002", "Task two")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), one))
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), two))

	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(parent)))

	record := rig.childrenOf(t, parent)
	require.NotNil(t, record)
	rig.remote.SetCheckItemState(record.ChecklistID, record.CheckItemIDs[one.ShortLink], types.CheckItemComplete)
	rig.remote.TouchCard(parent.ID)

	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(parent)))
	assert.Equal(t, types.ChildCounts{Done: 1, Total: 2}, rig.childrenOf(t, parent).Counts)
}

func TestReconcilePropagatesRename(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	local := rig.remote.AddCard(boardOne, "task0001", "Local task")
	remote := rig.remote.AddCard(boardTwo, "task0002", "Remote task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), local))
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), remote))
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(remote)))

	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(parent)))

	rig.remote.RenameCard(parent.ID, "Shipping epic")
	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(parent)))

	// Same board updates directly, the other board goes through the queue.
	assert.Equal(t, "Shipping epic", rig.parentOf(t, local).Name)
	require.NotNil(t, rig.queued(t, types.SyncParentKey(remote.ID)))

	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(remote)))
	assert.Equal(t, "Shipping epic", rig.parentOf(t, remote).Name)
}

func TestReconcileWarnsOnReassignedChild(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	loyal := rig.remote.AddCard(boardOne, "task0001", "Loyal task")
	stray := rig.remote.AddCard(boardOne, "task0002", "Stray task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), loyal))
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), stray))

	// The stray card's parent record vanished (for example a purge on its
	// side). A queued re-derivation drops it and warns, because a record
	// already existed here.
	require.NoError(t, rig.store.Remove(ctx, types.CardScope(stray.ID), types.VisibilityShared, "", types.KeyParent))
	require.NoError(t, rig.engine.enqueue(ctx, ctxFor(parent), types.NewSyncEntry(types.SyncKindChildren, parent.ID)))

	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(parent)))

	record := rig.childrenOf(t, parent)
	require.NotNil(t, record)
	assert.Equal(t, []string{loyal.ShortLink}, record.ShortLinks)
	assert.NotEmpty(t, rig.notify.Warnings, rig.notify.String())

	// The stray item still occupies a checklist slot and keeps counting.
	assert.Equal(t, types.ChildCounts{Done: 0, Total: 2}, record.Counts)
}

func TestReconcileDetectsCopiedCard(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardOne, "task0001", "Write docs")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))

	// Copying a card clones its scoped values onto a new card ID.
	copied := rig.remote.AddCard(boardOne, "epic0099", "Release epic (copy)")
	for _, key := range relationKeys {
		value, err := rig.store.Get(ctx, types.CardScope(parent.ID), types.VisibilityShared, "", key)
		if errors.Is(err, types.ErrKeyNotFound) {
			continue
		}
		require.NoError(t, err)
		require.NoError(t, rig.store.Set(ctx, types.CardScope(copied.ID), types.VisibilityShared, "", key, value))
	}

	rig.settle()
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(copied)))

	// The copy is stripped and the user told; the original is untouched.
	assert.Nil(t, rig.childrenOf(t, copied))
	assert.NotEmpty(t, rig.notify.Warnings, rig.notify.String())
	require.NotNil(t, rig.childrenOf(t, parent))

	rig.notify.Warnings = nil
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(parent)))
	assert.Empty(t, rig.notify.Warnings, rig.notify.String())
	require.NotNil(t, rig.childrenOf(t, parent))
}

func TestReconcileClearsDissolvedRelation(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardTwo, "task0001", "Remote task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))
	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))
	require.NotNil(t, rig.parentOf(t, child))

	// The relation dissolves from the parent side; the child side drains the
	// queued entry, finds no confirmation, and clears with a warning.
	rig.settle()
	require.NoError(t, rig.engine.RemoveChild(ctx, ctxFor(parent), child.ShortLink))
	require.NotNil(t, rig.queued(t, types.SyncParentKey(child.ID)))

	require.NoError(t, rig.engine.Reconcile(ctx, ctxFor(child)))
	assert.Nil(t, rig.parentOf(t, child))
}
