// Package integration provides end-to-end scenario tests for the epiclink
// relationship protocol: engine + scoped store + fake remote board, driven
// the way card renders and popup actions drive the real plugin.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mesh-intelligence/epiclink/internal/relation"
	"github.com/mesh-intelligence/epiclink/internal/reltest"
	"github.com/mesh-intelligence/epiclink/internal/sqlitestore"
	"github.com/mesh-intelligence/epiclink/pkg/types"
)

const (
	orgID    = "org-acme"
	memberID = "member-ana"
	boardA   = "board-alpha"
	boardB   = "board-beta"
)

// clock is an adjustable time source shared with the engine.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scenario wires an engine to a sqlite-backed scoped store and a fake remote
// board, mirroring the production composition minus the network.
type scenario struct {
	Engine *relation.Engine
	Remote *reltest.FakeRemote
	Store  types.ScopedStore
	Notify *reltest.Notifier
	Clock  *clock
}

func newScenario(t *testing.T) *scenario {
	t.Helper()

	store, err := sqlitestore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s := &scenario{
		Remote: reltest.NewFakeRemote(),
		Store:  store,
		Notify: &reltest.Notifier{},
		Clock:  &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	s.Engine = relation.New(s.Remote, s.Store, relation.Options{
		Notifier: s.Notify,
		Clock:    s.Clock.Now,
	})

	cc := relation.CardContext{MemberID: memberID, OrgID: orgID}
	if err := s.Engine.Authorize(context.Background(), cc, "scenario-token"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	return s
}

// Settle steps the clock past the updating-flag grace window.
func (s *scenario) Settle() {
	s.Clock.Advance(relation.DefaultGracePeriod + time.Second)
}

// On builds the card context a render on the given card would carry.
func (s *scenario) On(card types.CardRef) relation.CardContext {
	return relation.CardContext{
		CardID:   card.ID,
		BoardID:  card.BoardID,
		MemberID: memberID,
		OrgID:    orgID,
	}
}

// Render reconciles the card the way its render hook would, then returns the
// front badges of both sides.
func (s *scenario) Render(t *testing.T, card types.CardRef) (types.Badge, types.Badge) {
	t.Helper()
	ctx := context.Background()

	if err := s.Engine.Reconcile(ctx, s.On(card)); err != nil {
		t.Fatalf("reconcile %s: %v", card.ID, err)
	}
	parentBadge, err := s.Engine.ParentBadge(ctx, s.On(card), types.BadgeFront)
	if err != nil {
		t.Fatalf("parent badge %s: %v", card.ID, err)
	}
	childBadge, err := s.Engine.ChildBadge(ctx, s.On(card), types.BadgeFront)
	if err != nil {
		t.Fatalf("child badge %s: %v", card.ID, err)
	}
	return parentBadge, childBadge
}
