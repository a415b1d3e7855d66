// Badge projection: read-only derivation of badge text and color from the
// relationship records.
package relation

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// ParentBadge projects the EPIC-side badge (task progress) for the card in
// context. A missing record triggers one opportunistic derivation, the way
// the render hook self-heals after a cross-board add or a lost record; a
// card that is no EPIC renders nothing.
func (e *Engine) ParentBadge(ctx context.Context, cc CardContext, kind string) (types.Badge, error) {
	record, err := e.childrenRecord(ctx, cc.CardID)
	if err != nil {
		return types.Badge{}, err
	}
	if record == nil {
		if err := e.loadToken(ctx, cc); err != nil {
			return types.Badge{}, nil // unauthorized renders nothing
		}
		record, err = e.deriveChildren(ctx, cc, "")
		if err != nil || record == nil {
			return types.Badge{}, err
		}
		if err := e.saveChildrenRecord(ctx, cc.CardID, record); err != nil {
			return types.Badge{}, err
		}
	}

	color := types.BadgeColorLightGray
	if record.Counts.Done > 0 && record.Counts.Done == record.Counts.Total {
		color = types.BadgeColorGreen
	}
	progress := fmt.Sprintf("%d/%d", record.Counts.Done, record.Counts.Total)

	switch kind {
	case types.BadgeDetail:
		return types.Badge{Title: "Tasks", Text: progress, Color: color}, nil
	default:
		return types.Badge{Icon: types.BadgeIconDown, Text: progress + " tasks", Color: color}, nil
	}
}

// ChildBadge projects the task-side badge (the EPIC it belongs to) for the
// card in context.
func (e *Engine) ChildBadge(ctx context.Context, cc CardContext, kind string) (types.Badge, error) {
	record, err := e.parentRecord(ctx, cc.CardID)
	if err != nil {
		return types.Badge{}, err
	}
	if record == nil {
		if err := e.loadToken(ctx, cc); err != nil {
			return types.Badge{}, nil
		}
		record, err = e.findParent(ctx, cc)
		if err != nil || record == nil {
			return types.Badge{}, err
		}
		if err := e.saveParentRecord(ctx, cc.CardID, record); err != nil {
			return types.Badge{}, err
		}
	}

	switch kind {
	case types.BadgeDetail:
		return types.Badge{
			Title:             "Part of EPIC",
			Text:              record.Name,
			ShowCardShortLink: record.ShortLink,
		}, nil
	default:
		return types.Badge{
			Icon:  types.BadgeIconUp,
			Text:  "part of " + record.Name,
			Color: types.BadgeColorLightGray,
		}, nil
	}
}
