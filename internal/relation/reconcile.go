// Cross-board queue drain and the render-path reconciliation pass.
package relation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// Reconcile is the render-path entry point: it runs before badges are read
// and brings the card's records up to date. In order: authorization check
// (missing token skips the pass), copy detection, queue drain for this
// card, staleness repair. Failures are terminal for the current pass but
// never fatal; the next render retries.
func (e *Engine) Reconcile(ctx context.Context, cc CardContext) error {
	if err := e.loadToken(ctx, cc); err != nil {
		if errors.Is(err, types.ErrNotAuthorized) {
			return nil // try again once authorized
		}
		return err
	}

	copied, err := e.checkCopy(ctx, cc)
	if err != nil {
		return err
	}
	if copied {
		return nil // records purged, nothing left to reconcile
	}

	// Skip while a mutation on this card is inside its grace window, so the
	// drain cannot overwrite a record mid-flight.
	updating, err := e.isUpdating(ctx, cc.CardID)
	if err != nil {
		return err
	}
	if updating {
		return nil
	}

	if err := e.DrainQueue(ctx, cc); err != nil {
		return err
	}
	return e.refreshStale(ctx, cc)
}

// DrainQueue processes sync entries addressed to the card in context, in
// both queue namespaces. An entry is removed before its recomputation so a
// concurrent drain sees nothing; on remote failure the entry is re-enqueued
// and the next render retries. The recomputation re-derives the record from
// the remote source of truth and never replays the queue payload, so
// duplicated or reordered drains converge to the same state.
func (e *Engine) DrainQueue(ctx context.Context, cc CardContext) error {
	for _, key := range []string{types.SyncChildrenKey(cc.CardID), types.SyncParentKey(cc.CardID)} {
		entry, err := e.takeEntry(ctx, cc, key)
		if err != nil {
			return err
		}
		if entry == nil {
			continue
		}

		var applyErr error
		switch entry.Kind {
		case types.SyncKindChildren:
			applyErr = e.applySyncChildren(ctx, cc, entry.ChecklistID)
		case types.SyncKindParent:
			applyErr = e.applySyncParent(ctx, cc)
		default:
			e.logger.Printf("drop sync entry %s with unknown kind %q", entry.EntryID, entry.Kind)
			continue
		}

		if applyErr != nil {
			if requeueErr := e.enqueue(ctx, cc, *entry); requeueErr != nil {
				e.logger.Printf("requeue %s: %v", key, requeueErr)
			}
			e.alertRemote("sync "+key, applyErr)
			return applyErr
		}
		e.logger.Printf("drained %s for card %s", entry.Kind, cc.CardID)
	}
	return nil
}

// takeEntry reads and removes a queue entry in one step. A nil entry means
// the key was absent.
func (e *Engine) takeEntry(ctx context.Context, cc CardContext, key string) (*types.SyncEntry, error) {
	var entry types.SyncEntry
	err := types.GetJSON(ctx, e.store, types.OrgScope(cc.OrgID), types.VisibilityShared, "", key, &entry)
	if errors.Is(err, types.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync entry %s: %w", key, err)
	}
	if err := e.store.Remove(ctx, types.OrgScope(cc.OrgID), types.VisibilityShared, "", key); err != nil {
		return nil, fmt.Errorf("remove sync entry %s: %w", key, err)
	}
	return &entry, nil
}

// applySyncChildren re-derives and persists this card's ChildrenRecord.
// No confirmed child clears the record: the relation was dissolved or the
// underlying objects were removed outside the plugin.
func (e *Engine) applySyncChildren(ctx context.Context, cc CardContext, checklistHint string) error {
	record, err := e.deriveChildren(ctx, cc, checklistHint)
	if err != nil {
		return err
	}
	if record == nil {
		if err := e.store.Remove(ctx, types.CardScope(cc.CardID), types.VisibilityShared, "", types.KeyChildren); err != nil {
			return fmt.Errorf("clear children record: %w", err)
		}
		return nil
	}
	return e.saveChildrenRecord(ctx, cc.CardID, record)
}

// applySyncParent re-derives and persists this card's ParentRecord.
func (e *Engine) applySyncParent(ctx context.Context, cc CardContext) error {
	record, err := e.findParent(ctx, cc)
	if err != nil {
		return err
	}
	if record == nil {
		previous, err := e.parentRecord(ctx, cc.CardID)
		if err != nil {
			return err
		}
		if err := e.store.Remove(ctx, types.CardScope(cc.CardID), types.VisibilityShared, "", types.KeyParent); err != nil {
			return fmt.Errorf("clear parent record: %w", err)
		}
		if previous != nil {
			e.notify.Warn(fmt.Sprintf("The EPIC relation to %q could not be confirmed and was removed. Check the card's attachments.", previous.Name))
		}
		return nil
	}
	return e.saveParentRecord(ctx, cc.CardID, record)
}

// refreshStale compares the card's live last-activity stamp with the cached
// one. On change, a parent card recounts its checklist and pushes its
// (possibly renamed) name down to each child's cached ParentRecord:
// directly for same-board children, through the queue for cross-board ones,
// skipping children that never synced.
func (e *Engine) refreshStale(ctx context.Context, cc CardContext) error {
	card, err := e.remote.GetCard(ctx, cc.CardID)
	if err != nil {
		return fmt.Errorf("load own card: %w", err)
	}

	var cached time.Time
	err = types.GetJSON(ctx, e.store, types.CardScope(cc.CardID), types.VisibilityShared, "", types.KeyLastActivity, &cached)
	if err != nil && !errors.Is(err, types.ErrKeyNotFound) {
		return fmt.Errorf("load activity cache: %w", err)
	}
	if card.DateLastActivity.Equal(cached) {
		return nil
	}

	record, err := e.childrenRecord(ctx, cc.CardID)
	if err != nil {
		return err
	}
	if record != nil {
		counts, alive, err := e.liveCounts(ctx, cc.CardID, record.ChecklistID)
		if err != nil {
			return err
		}
		if !alive || counts != record.Counts {
			// The checklist changed under the record: re-derive instead of
			// patching counts, so manually removed items also leave the
			// short-links.
			if err := e.applySyncChildren(ctx, cc, record.ChecklistID); err != nil {
				return err
			}
			if record, err = e.childrenRecord(ctx, cc.CardID); err != nil {
				return err
			}
		}
		if record != nil {
			e.propagateName(ctx, cc, card.Name, record.ShortLinks)
		}
	}

	return types.SetJSON(ctx, e.store, types.CardScope(cc.CardID), types.VisibilityShared, "", types.KeyLastActivity, card.DateLastActivity)
}

// propagateName pushes a parent's display name into the children's cached
// ParentRecord. Best effort: one remote read per child, failures logged and
// skipped.
func (e *Engine) propagateName(ctx context.Context, cc CardContext, name string, shortLinks []string) {
	for _, shortLink := range shortLinks {
		child, err := e.remote.GetCard(ctx, shortLink)
		if err != nil {
			e.logger.Printf("propagate name to %s: %v", shortLink, err)
			continue
		}
		childParent, err := e.parentRecord(ctx, child.ID)
		if err != nil {
			e.logger.Printf("propagate name to %s: %v", shortLink, err)
			continue
		}
		if childParent == nil || childParent.Name == name {
			continue // not yet synced, or already current
		}

		if cc.canWriteCard(child.BoardID) {
			childParent.Name = name
			if err := e.saveParentRecord(ctx, child.ID, childParent); err != nil {
				e.logger.Printf("propagate name to %s: %v", shortLink, err)
			}
			continue
		}
		if err := e.enqueue(ctx, cc, types.NewSyncEntry(types.SyncKindParent, child.ID)); err != nil {
			e.logger.Printf("propagate name to %s: %v", shortLink, err)
		}
	}
}
