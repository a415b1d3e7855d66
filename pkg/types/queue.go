// Cross-board sync queue entries. When a mutation cannot reach the
// counterpart card's scope (the card lives on another board), the acting
// side leaves a SyncEntry in the organization scope. The entry is drained
// the next time the counterpart card renders.
package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sync entry kinds. SyncParent instructs a child card to re-derive its
// ParentRecord; SyncChildren instructs a parent card to re-derive its
// ChildrenRecord.
const (
	SyncKindParent   = "sync-parent"
	SyncKindChildren = "sync-children"
)

// SyncEntry is a deferred instruction addressed to one card. The payload
// (ChecklistID or AttachmentID) is a hint that can spare a full re-scan;
// it is never trusted as authoritative because it may be stale by the time
// the entry drains.
type SyncEntry struct {
	EntryID      string    `json:"entryId"`
	Kind         string    `json:"kind"`
	CardID       string    `json:"cardId"`
	ChecklistID  string    `json:"checklistId,omitempty"`
	AttachmentID string    `json:"attachmentId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewSyncEntry creates an entry addressed to the given card.
func NewSyncEntry(kind, cardID string) SyncEntry {
	return SyncEntry{
		EntryID:   newEntryID(),
		Kind:      kind,
		CardID:    cardID,
		CreatedAt: time.Now().UTC(),
	}
}

// Key returns the organization-scope storage key for the entry. One entry
// per card and direction; a newer enqueue overwrites the older one, which
// is safe because drains re-derive instead of replaying payloads.
func (e SyncEntry) Key() string {
	return e.Kind + "-" + e.CardID
}

// SyncParentKey returns the queue key instructing the given child card to
// re-derive its ParentRecord.
func SyncParentKey(childCardID string) string {
	return SyncKindParent + "-" + childCardID
}

// SyncChildrenKey returns the queue key instructing the given parent card to
// re-derive its ChildrenRecord.
func SyncChildrenKey(parentCardID string) string {
	return SyncKindChildren + "-" + parentCardID
}

// ParseSyncKey splits a queue key into kind and card ID. The second return
// value is false for keys that are not sync entries.
func ParseSyncKey(key string) (kind, cardID string, ok bool) {
	for _, k := range []string{SyncKindChildren, SyncKindParent} {
		if strings.HasPrefix(key, k+"-") {
			return k, key[len(k)+1:], true
		}
	}
	return "", "", false
}

// newEntryID generates a UUID v7 entry ID, falling back to v4 if the clock
// source fails.
func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
