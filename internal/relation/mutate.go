// Local mutation protocol: add/remove parent and child relations. Each
// mutation writes the remote objects first, then the record of the side it
// executes on, and finally either patches the counterpart record directly
// (same board) or leaves a sync entry for it (cross-board). Remote
// mutations already issued are never rolled back on a later failure; the
// reconciliation pass repairs the records from remote truth instead.
package relation

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// AddParent relates the card in context (the task) to parent (the EPIC).
// An existing parent relation is removed first, so invoking this path with
// a new EPIC is a replace, and with the same EPIC an idempotent refresh.
func (e *Engine) AddParent(ctx context.Context, cc CardContext, parent types.CardRef) error {
	if err := e.loadToken(ctx, cc); err != nil {
		return err
	}
	if parent.ID == cc.CardID {
		return fmt.Errorf("%w: a card cannot be its own epic", types.ErrNoRelation)
	}

	if err := e.markUpdating(ctx, cc.CardID); err != nil {
		return err
	}

	existing, err := e.parentRecord(ctx, cc.CardID)
	if err != nil {
		return err
	}
	if existing != nil {
		// No dangling double-parent: the old relation goes first.
		if err := e.RemoveParent(ctx, cc); err != nil {
			return fmt.Errorf("replace existing epic: %w", err)
		}
		if err := e.markUpdating(ctx, cc.CardID); err != nil {
			return err
		}
	}

	child, err := e.remote.GetCard(ctx, cc.CardID)
	if err != nil {
		e.alertRemote("load card", err)
		return err
	}

	attachment, err := e.remote.CreateAttachment(ctx, cc.CardID, types.AttachmentName, parent.URL)
	if err != nil {
		e.alertRemote("attach epic", err)
		return err
	}

	// The child side is always directly writable here: adding a parent
	// executes in the child card's context.
	record := &types.ParentRecord{
		AttachmentID: attachment.ID,
		ShortLink:    parent.ShortLink,
		Name:         parent.Name,
	}
	if err := e.saveParentRecord(ctx, cc.CardID, record); err != nil {
		return err
	}

	checklistID, err := e.resolveChecklist(ctx, parent.ID)
	if err != nil {
		e.alertRemote("resolve checklist", err)
		return err
	}
	item, err := e.remote.CreateCheckItem(ctx, checklistID, child.URL)
	if err != nil {
		e.alertRemote("add task item", err)
		return err
	}

	if cc.canWriteCard(parent.BoardID) {
		return e.appendChildDirect(ctx, parent.ID, checklistID, child.ShortLink, item.ID)
	}

	entry := types.NewSyncEntry(types.SyncKindChildren, parent.ID)
	entry.ChecklistID = checklistID
	return e.enqueue(ctx, cc, entry)
}

// AddChild relates the card in context (the EPIC) to child (the task).
// A child already related to a different EPIC is rejected with a
// user-facing message; relations are never silently reassigned from this
// path.
func (e *Engine) AddChild(ctx context.Context, cc CardContext, child types.CardRef) error {
	if err := e.loadToken(ctx, cc); err != nil {
		return err
	}
	if child.ID == cc.CardID {
		return fmt.Errorf("%w: a card cannot be its own task", types.ErrNoRelation)
	}

	parent, err := e.remote.GetCard(ctx, cc.CardID)
	if err != nil {
		e.alertRemote("load card", err)
		return err
	}

	childParent, err := e.parentRecord(ctx, child.ID)
	if err != nil {
		return err
	}
	if childParent != nil {
		if childParent.ShortLink == parent.ShortLink {
			return nil // already related, nothing to do
		}
		e.notify.Alert(fmt.Sprintf("%q already belongs to the EPIC %q. Remove that relation first.", child.Name, childParent.Name))
		return types.ErrChildHasParent
	}

	if err := e.markUpdating(ctx, cc.CardID); err != nil {
		return err
	}

	checklistID, err := e.resolveChecklist(ctx, cc.CardID)
	if err != nil {
		e.alertRemote("resolve checklist", err)
		return err
	}
	item, err := e.remote.CreateCheckItem(ctx, checklistID, child.URL)
	if err != nil {
		e.alertRemote("add task item", err)
		return err
	}

	// The parent side is always directly writable here.
	if err := e.appendChildDirect(ctx, cc.CardID, checklistID, child.ShortLink, item.ID); err != nil {
		return err
	}

	attachment, err := e.remote.CreateAttachment(ctx, child.ID, types.AttachmentName, parent.URL)
	if err != nil {
		e.alertRemote("attach epic", err)
		return err
	}

	if cc.canWriteCard(child.BoardID) {
		record := &types.ParentRecord{
			AttachmentID: attachment.ID,
			ShortLink:    parent.ShortLink,
			Name:         parent.Name,
		}
		return e.saveParentRecord(ctx, child.ID, record)
	}

	entry := types.NewSyncEntry(types.SyncKindParent, child.ID)
	entry.AttachmentID = attachment.ID
	return e.enqueue(ctx, cc, entry)
}

// RemoveParent disconnects the card in context from its EPIC.
func (e *Engine) RemoveParent(ctx context.Context, cc CardContext) error {
	if err := e.loadToken(ctx, cc); err != nil {
		return err
	}

	record, err := e.parentRecord(ctx, cc.CardID)
	if err != nil {
		return err
	}
	if record == nil {
		return types.ErrNoRelation
	}

	if err := e.markUpdating(ctx, cc.CardID); err != nil {
		return err
	}

	if err := e.remote.DeleteAttachment(ctx, cc.CardID, record.AttachmentID); err != nil {
		e.alertRemote("remove epic attachment", err)
		return err
	}

	// Clear the local side immediately; the parent side follows.
	if err := e.store.Remove(ctx, types.CardScope(cc.CardID), types.VisibilityShared, "", types.KeyParent); err != nil {
		return fmt.Errorf("clear parent record: %w", err)
	}

	child, err := e.remote.GetCard(ctx, cc.CardID)
	if err != nil {
		e.alertRemote("load card", err)
		return err
	}
	parent, err := e.remote.GetCard(ctx, record.ShortLink)
	if err != nil {
		// The EPIC card is gone; there is no counterpart left to patch.
		e.logger.Printf("remove parent: epic card %s unavailable: %v", record.ShortLink, err)
		e.notify.Warn(fmt.Sprintf("The EPIC card %q could not be loaded; its task checklist may need manual cleanup.", record.Name))
		return nil
	}

	parentChildren, err := e.childrenRecord(ctx, parent.ID)
	if err != nil {
		return err
	}
	if parentChildren != nil {
		if itemID, ok := parentChildren.CheckItemIDs[child.ShortLink]; ok {
			if err := e.remote.DeleteCheckItem(ctx, parentChildren.ChecklistID, itemID); err != nil {
				e.alertRemote("remove task item", err)
				return err
			}
		}
	}

	if cc.canWriteCard(parent.BoardID) {
		return e.dropChildDirect(ctx, parent.ID, child.ShortLink)
	}
	return e.enqueue(ctx, cc, types.NewSyncEntry(types.SyncKindChildren, parent.ID))
}

// RemoveChild disconnects one task, identified by short-link, from the EPIC
// card in context.
func (e *Engine) RemoveChild(ctx context.Context, cc CardContext, shortLink string) error {
	if err := e.loadToken(ctx, cc); err != nil {
		return err
	}

	record, err := e.childrenRecord(ctx, cc.CardID)
	if err != nil {
		return err
	}
	if record == nil || !record.HasChild(shortLink) {
		return types.ErrNoRelation
	}

	if err := e.markUpdating(ctx, cc.CardID); err != nil {
		return err
	}

	itemID := record.CheckItemIDs[shortLink]
	if err := e.remote.DeleteCheckItem(ctx, record.ChecklistID, itemID); err != nil {
		e.alertRemote("remove task item", err)
		return err
	}

	if err := e.dropChildDirect(ctx, cc.CardID, shortLink); err != nil {
		return err
	}

	return e.detachChildSide(ctx, cc, shortLink)
}

// RemoveChildren disconnects every task of the EPIC card in context and
// deletes the checklist.
func (e *Engine) RemoveChildren(ctx context.Context, cc CardContext) error {
	if err := e.loadToken(ctx, cc); err != nil {
		return err
	}

	record, err := e.childrenRecord(ctx, cc.CardID)
	if err != nil {
		return err
	}
	if record == nil {
		return types.ErrNoRelation
	}

	if err := e.markUpdating(ctx, cc.CardID); err != nil {
		return err
	}

	if err := e.remote.DeleteChecklist(ctx, record.ChecklistID); err != nil {
		e.alertRemote("remove task checklist", err)
		return err
	}
	if err := e.store.Remove(ctx, types.CardScope(cc.CardID), types.VisibilityShared, "", types.KeyChildren); err != nil {
		return fmt.Errorf("clear children record: %w", err)
	}

	for _, shortLink := range record.ShortLinks {
		if err := e.detachChildSide(ctx, cc, shortLink); err != nil {
			// Keep going; the remaining children still need detaching.
			e.logger.Printf("remove children: detach %s: %v", shortLink, err)
		}
	}
	return nil
}

// resolveChecklist returns the parent card's task checklist ID, reusing the
// one recorded or already present on the card before creating a new one.
// Double checklists were a known failure mode of naive creation.
func (e *Engine) resolveChecklist(ctx context.Context, parentCardID string) (string, error) {
	record, err := e.childrenRecord(ctx, parentCardID)
	if err != nil {
		return "", err
	}
	if record != nil && record.ChecklistID != "" {
		return record.ChecklistID, nil
	}

	checklists, err := e.remote.GetChecklists(ctx, parentCardID)
	if err != nil {
		return "", err
	}
	for _, checklist := range checklists {
		if checklist.Name == types.ChecklistName {
			return checklist.ID, nil
		}
	}

	checklist, err := e.remote.CreateChecklist(ctx, parentCardID, types.ChecklistName)
	if err != nil {
		return "", err
	}
	return checklist.ID, nil
}

// appendChildDirect read-modify-writes the parent's ChildrenRecord. Not
// atomic; lost updates are repaired by the next drain's re-derivation.
func (e *Engine) appendChildDirect(ctx context.Context, parentCardID, checklistID, childShortLink, checkItemID string) error {
	record, err := e.childrenRecord(ctx, parentCardID)
	if err != nil {
		return err
	}
	if record == nil || record.ChecklistID != checklistID {
		record = types.NewChildrenRecord(checklistID)
	}
	record.AddChild(childShortLink, checkItemID)
	return e.saveChildrenRecord(ctx, parentCardID, record)
}

// dropChildDirect removes one child from the parent's ChildrenRecord and
// recomputes counts from the live checklist instead of decrementing, so any
// prior drift heals here.
func (e *Engine) dropChildDirect(ctx context.Context, parentCardID, childShortLink string) error {
	record, err := e.childrenRecord(ctx, parentCardID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	if _, err := record.RemoveChild(childShortLink); err != nil {
		return nil // already gone
	}

	counts, alive, err := e.liveCounts(ctx, parentCardID, record.ChecklistID)
	if err != nil {
		return err
	}
	if !alive || len(record.ShortLinks) == 0 && counts.Total == 0 {
		return e.store.Remove(ctx, types.CardScope(parentCardID), types.VisibilityShared, "", types.KeyChildren)
	}
	record.Counts = counts
	return e.saveChildrenRecord(ctx, parentCardID, record)
}

// detachChildSide removes the EPIC attachment from a child card and clears
// or queues the child's ParentRecord.
func (e *Engine) detachChildSide(ctx context.Context, cc CardContext, shortLink string) error {
	child, err := e.remote.GetCard(ctx, shortLink)
	if err != nil {
		e.notify.Warn(fmt.Sprintf("Task card %s could not be loaded; its EPIC attachment may need manual cleanup.", shortLink))
		return nil
	}

	childParent, err := e.parentRecord(ctx, child.ID)
	if err != nil {
		return err
	}
	if childParent != nil {
		if err := e.remote.DeleteAttachment(ctx, child.ID, childParent.AttachmentID); err != nil {
			e.alertRemote("remove epic attachment", err)
			return err
		}
	}

	if cc.canWriteCard(child.BoardID) {
		return e.store.Remove(ctx, types.CardScope(child.ID), types.VisibilityShared, "", types.KeyParent)
	}
	return e.enqueue(ctx, cc, types.NewSyncEntry(types.SyncKindParent, child.ID))
}
