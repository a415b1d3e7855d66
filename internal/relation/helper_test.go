package relation

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/epiclink/internal/memstore"
	"github.com/mesh-intelligence/epiclink/internal/reltest"
	"github.com/mesh-intelligence/epiclink/pkg/types"
)

const (
	testOrg    = "org-1"
	testMember = "member-1"
	boardOne   = "board-1"
	boardTwo   = "board-2"
)

// testClock is an adjustable clock shared with the engine, used to step
// past the updating-flag grace window without sleeping.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testRig struct {
	engine *Engine
	remote *reltest.FakeRemote
	store  *memstore.Store
	notify *reltest.Notifier
	clock  *testClock
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	rig := &testRig{
		remote: reltest.NewFakeRemote(),
		store:  memstore.New(),
		notify: &reltest.Notifier{},
		clock:  &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	rig.engine = New(rig.remote, rig.store, Options{
		Notifier: rig.notify,
		Logger:   log.New(testWriter{t}, "[relation] ", 0),
		Grace:    DefaultGracePeriod,
		Clock:    rig.clock.Now,
	})

	cc := CardContext{MemberID: testMember, OrgID: testOrg}
	require.NoError(t, rig.engine.Authorize(context.Background(), cc, "test-token"))
	return rig
}

// settle steps past the grace window so a following reconcile is not
// skipped by the advisory updating flag.
func (r *testRig) settle() {
	r.clock.Advance(DefaultGracePeriod + time.Second)
}

func ctxFor(card types.CardRef) CardContext {
	return CardContext{
		CardID:   card.ID,
		BoardID:  card.BoardID,
		MemberID: testMember,
		OrgID:    testOrg,
	}
}

// parentOf reads a card's stored ParentRecord; nil means no record.
func (r *testRig) parentOf(t *testing.T, card types.CardRef) *types.ParentRecord {
	t.Helper()
	record, err := r.engine.parentRecord(context.Background(), card.ID)
	require.NoError(t, err)
	return record
}

// childrenOf reads a card's stored ChildrenRecord; nil means no record.
func (r *testRig) childrenOf(t *testing.T, card types.CardRef) *types.ChildrenRecord {
	t.Helper()
	record, err := r.engine.childrenRecord(context.Background(), card.ID)
	require.NoError(t, err)
	return record
}

// queued reads a sync entry from the organization queue; nil means absent.
func (r *testRig) queued(t *testing.T, key string) *types.SyncEntry {
	t.Helper()
	var entry types.SyncEntry
	err := types.GetJSON(context.Background(), r.store, types.OrgScope(testOrg), types.VisibilityShared, "", key, &entry)
	if errors.Is(err, types.ErrKeyNotFound) {
		return nil
	}
	require.NoError(t, err)
	return &entry
}

// testWriter routes engine logs into the test output.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
