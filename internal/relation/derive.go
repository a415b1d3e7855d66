// Record derivation from the remote source of truth. Derivation never
// trusts stored records or queue payloads: it re-scans the live checklist
// or attachment list and accepts a relation only when the counterpart
// confirms it, which is what makes drains idempotent and convergent.
package relation

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/epiclink/internal/trello"
	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// deriveChildren recomputes the ChildrenRecord of the card in context by
// scanning its checklists. checklistHint, when non-empty, names the
// checklist a queue entry pointed at; it only narrows the scan order, the
// content is still re-derived.
//
// A check-item is confirmed as a child when its name resolves to a card
// whose own ParentRecord points back at this card. Unconfirmed items still
// occupy checklist slots and are counted, but never enter the record's
// short-links. Items that fail the mutual check are reported as drift only
// when a record already existed; on a first derivation every item is
// expected to be unconfirmed and warnings would just be noise.
//
// Returns nil when no checklist yields a confirmed child.
func (e *Engine) deriveChildren(ctx context.Context, cc CardContext, checklistHint string) (*types.ChildrenRecord, error) {
	card, err := e.remote.GetCard(ctx, cc.CardID)
	if err != nil {
		return nil, fmt.Errorf("load own card: %w", err)
	}

	checklists, err := e.remote.GetChecklists(ctx, cc.CardID)
	if err != nil {
		return nil, fmt.Errorf("load checklists: %w", err)
	}
	if len(checklists) == 0 {
		return nil, nil
	}

	// The hinted checklist goes first so a fresh queue entry resolves
	// without scanning unrelated checklists.
	if checklistHint != "" {
		for i, cl := range checklists {
			if cl.ID == checklistHint && i != 0 {
				checklists[0], checklists[i] = checklists[i], checklists[0]
				break
			}
		}
	}

	previous, err := e.childrenRecord(ctx, cc.CardID)
	if err != nil {
		return nil, err
	}

	for _, checklist := range checklists {
		record, err := e.deriveFromChecklist(ctx, card.ShortLink, checklist, previous != nil)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}
	return nil, nil
}

// deriveFromChecklist builds a record from one checklist, or nil when the
// checklist holds no confirmed child.
func (e *Engine) deriveFromChecklist(ctx context.Context, parentShortLink string, checklist trello.Checklist, warnOnDrift bool) (*types.ChildrenRecord, error) {
	if len(checklist.CheckItems) == 0 {
		return nil, nil
	}

	record := types.NewChildrenRecord(checklist.ID)
	states := make([]string, 0, len(checklist.CheckItems))

	for _, item := range checklist.CheckItems {
		states = append(states, item.State)

		shortLink, ok := types.ShortLinkFromURL(e.host, item.Name)
		if !ok {
			continue // occupies a slot, carries no identity
		}

		child, err := e.remote.GetCard(ctx, shortLink)
		if err != nil {
			return nil, fmt.Errorf("resolve child %s: %w", shortLink, err)
		}
		childParent, err := e.parentRecord(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		if childParent == nil || childParent.ShortLink != parentShortLink {
			// The other end was reassigned elsewhere or never synced.
			if warnOnDrift {
				e.notify.Warn(fmt.Sprintf("Task %q no longer points at this EPIC and was skipped.", child.Name))
			}
			continue
		}

		record.AddChild(shortLink, item.ID)
	}

	if len(record.ShortLinks) == 0 {
		return nil, nil
	}
	record.Counts = types.CountChildren(states)
	return record, nil
}

// findParent recomputes the ParentRecord of the card in context by scanning
// its attachments for a card URL whose target lists this card as a child.
// Returns nil when no attachment is mutually confirmed.
func (e *Engine) findParent(ctx context.Context, cc CardContext) (*types.ParentRecord, error) {
	attachments, err := e.remote.GetAttachments(ctx, cc.CardID)
	if err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	if len(attachments) == 0 {
		return nil, nil
	}

	card, err := e.remote.GetCard(ctx, cc.CardID)
	if err != nil {
		return nil, fmt.Errorf("load own card: %w", err)
	}

	for _, attachment := range attachments {
		shortLink, ok := types.ShortLinkFromURL(e.host, attachment.URL)
		if !ok {
			continue
		}

		parent, err := e.remote.GetCard(ctx, shortLink)
		if err != nil {
			return nil, fmt.Errorf("resolve parent %s: %w", shortLink, err)
		}
		children, err := e.childrenRecord(ctx, parent.ID)
		if err != nil {
			return nil, err
		}
		if children == nil || !children.HasChild(card.ShortLink) {
			continue
		}

		return &types.ParentRecord{
			AttachmentID: attachment.ID,
			ShortLink:    parent.ShortLink,
			Name:         parent.Name,
		}, nil
	}
	return nil, nil
}

// liveCounts recounts checklist progress from the remote checklist state.
// Used after removals so counts self-heal instead of drifting with blind
// decrements. Returns ok=false when the checklist no longer exists.
func (e *Engine) liveCounts(ctx context.Context, cardID, checklistID string) (types.ChildCounts, bool, error) {
	checklists, err := e.remote.GetChecklists(ctx, cardID)
	if err != nil {
		return types.ChildCounts{}, false, fmt.Errorf("load checklists: %w", err)
	}
	for _, checklist := range checklists {
		if checklist.ID != checklistID {
			continue
		}
		states := make([]string, 0, len(checklist.CheckItems))
		for _, item := range checklist.CheckItems {
			states = append(states, item.State)
		}
		return types.CountChildren(states), true, nil
	}
	return types.ChildCounts{}, false, nil
}
