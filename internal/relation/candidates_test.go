package relation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

func TestCandidatesExcludesSelfAndRelated(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardOne, "task0001", "Linked task")
	free := rig.remote.AddCard(boardOne, "card0001", "Free card")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))

	refs, err := rig.engine.Candidates(ctx, ctxFor(parent), "")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, free.ID, refs[0].ID)
}

func TestCandidatesMatchesNamesCaseInsensitive(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	card := rig.remote.AddCard(boardOne, "card0001", "Anchor card")
	rig.remote.AddCard(boardOne, "card0002", "Deploy ALPHA build")
	rig.remote.AddCard(boardOne, "card0003", "Beta rollout")

	refs, err := rig.engine.Candidates(ctx, ctxFor(card), "alpha")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Deploy ALPHA build", refs[0].Name)
}

func TestCandidatesOrdersByRecentActivity(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	card := rig.remote.AddCard(boardOne, "card0001", "Anchor card")
	older := rig.remote.AddCard(boardOne, "card0002", "Older card")
	newer := rig.remote.AddCard(boardOne, "card0003", "Newer card")
	rig.remote.TouchCard(newer.ID)

	refs, err := rig.engine.Candidates(ctx, ctxFor(card), "card")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, newer.ID, refs[0].ID)
	assert.Equal(t, older.ID, refs[1].ID)
}

func TestCandidatesCapped(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	card := rig.remote.AddCard(boardOne, "card0000", "Anchor card")
	for i := 1; i <= ListMaximum+3; i++ {
		rig.remote.AddCard(boardOne, fmt.Sprintf("card%04d", i), fmt.Sprintf("Filler %d", i))
	}

	refs, err := rig.engine.Candidates(ctx, ctxFor(card), "")
	require.NoError(t, err)
	assert.Len(t, refs, ListMaximum)
}

func TestCandidatesResolvesPastedLink(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	card := rig.remote.AddCard(boardOne, "card0001", "Anchor card")
	elsewhere := rig.remote.AddCard(boardTwo, "card0002", "Other board card")

	refs, err := rig.engine.Candidates(ctx, ctxFor(card), elsewhere.URL)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, elsewhere.ID, refs[0].ID)
	assert.Equal(t, boardTwo, refs[0].BoardID)
}

func TestCandidatesPastedLinkOfRelatedCardIsEmpty(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardTwo, "task0001", "Linked task")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))

	refs, err := rig.engine.Candidates(ctx, ctxFor(parent), child.URL)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCandidatesRejectsMalformedCardLink(t *testing.T) {
	rig := newTestRig(t)
	card := rig.remote.AddCard(boardOne, "card0001", "Anchor card")

	_, err := rig.engine.Candidates(context.Background(), ctxFor(card), "https://trello.com/c/")
	assert.ErrorIs(t, err, types.ErrNotCard)
}

func TestDebugLines(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	parent := rig.remote.AddCard(boardOne, "epic0001", "Release epic")
	child := rig.remote.AddCard(boardOne, "task0001", "Write docs")
	require.NoError(t, rig.engine.AddChild(ctx, ctxFor(parent), child))

	lines, err := rig.engine.Debug(ctx, ctxFor(parent))
	require.NoError(t, err)
	assert.Contains(t, lines, "parent: -")
	assert.Contains(t, lines, "children.counts: 0/1")

	lines, err = rig.engine.Debug(ctx, ctxFor(child))
	require.NoError(t, err)
	assert.Contains(t, lines, "parent.shortLink: "+parent.ShortLink)
	assert.Contains(t, lines, "children: -")

	plain := rig.remote.AddCard(boardOne, "card0001", "Plain card")
	lines, err = rig.engine.Debug(ctx, ctxFor(plain))
	require.NoError(t, err)
	assert.Equal(t, []string{"parent: -", "children: -"}, lines)
}
