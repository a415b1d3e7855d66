// Same-board EPIC lifecycle: link, progress, unlink, all through the render
// path a board session would take.
package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

func TestSameBoardLifecycle(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()

	epic := s.Remote.AddCard(boardA, "epicrel1", "Release 1.0")
	docs := s.Remote.AddCard(boardA, "taskdocs", "Write docs")
	tests := s.Remote.AddCard(boardA, "tasktest", "Write tests")

	require.NoError(t, s.Engine.AddChild(ctx, s.On(epic), docs))
	require.NoError(t, s.Engine.AddChild(ctx, s.On(epic), tests))
	s.Settle()

	epicBadge, _ := s.Render(t, epic)
	assert.Equal(t, "0/2 tasks", epicBadge.Text)
	assert.Equal(t, types.BadgeColorLightGray, epicBadge.Color)

	_, docsBadge := s.Render(t, docs)
	assert.Equal(t, "part of Release 1.0", docsBadge.Text)

	// A task gets checked off on the board.
	var record types.ChildrenRecord
	require.NoError(t, types.GetJSON(ctx, s.Store, types.CardScope(epic.ID), types.VisibilityShared, "", types.KeyChildren, &record))
	s.Remote.SetCheckItemState(record.ChecklistID, record.CheckItemIDs[docs.ShortLink], types.CheckItemComplete)
	s.Remote.TouchCard(epic.ID)
	s.Settle()

	epicBadge, _ = s.Render(t, epic)
	assert.Equal(t, "1/2 tasks", epicBadge.Text)

	// Dropping the unfinished task leaves a fully done EPIC.
	require.NoError(t, s.Engine.RemoveChild(ctx, s.On(epic), tests.ShortLink))
	s.Settle()

	epicBadge, _ = s.Render(t, epic)
	assert.Equal(t, "1/1 tasks", epicBadge.Text)
	assert.Equal(t, types.BadgeColorGreen, epicBadge.Color)
	_, testsBadge := s.Render(t, tests)
	assert.Equal(t, types.Badge{}, testsBadge)

	// The last task walks away on its own.
	require.NoError(t, s.Engine.RemoveParent(ctx, s.On(docs)))
	s.Settle()

	epicBadge, epicChildBadge := s.Render(t, epic)
	assert.Equal(t, types.Badge{}, epicBadge)
	assert.Equal(t, types.Badge{}, epicChildBadge)
	_, docsBadge = s.Render(t, docs)
	assert.Equal(t, types.Badge{}, docsBadge)

	assert.Empty(t, s.Remote.Attachments(docs.ID))
}

func TestDoubleParentRejectedEndToEnd(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()

	first := s.Remote.AddCard(boardA, "epicone1", "Epic one")
	second := s.Remote.AddCard(boardA, "epictwo1", "Epic two")
	task := s.Remote.AddCard(boardA, "taskone1", "Shared ambition")

	require.NoError(t, s.Engine.AddChild(ctx, s.On(first), task))
	err := s.Engine.AddChild(ctx, s.On(second), task)
	assert.ErrorIs(t, err, types.ErrChildHasParent)
	assert.NotEmpty(t, s.Notify.Alerts, s.Notify.String())

	// Moving the task the supported way: remove, then add.
	s.Settle()
	require.NoError(t, s.Engine.RemoveParent(ctx, s.On(task)))
	require.NoError(t, s.Engine.AddChild(ctx, s.On(second), task))
	s.Settle()

	_, taskBadge := s.Render(t, task)
	assert.Equal(t, "part of Epic two", taskBadge.Text)
	firstBadge, _ := s.Render(t, first)
	assert.Equal(t, types.Badge{}, firstBadge)
}
