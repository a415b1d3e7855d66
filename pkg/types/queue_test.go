package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncEntryKey(t *testing.T) {
	parent := NewSyncEntry(SyncKindParent, "card-1")
	assert.Equal(t, "sync-parent-card-1", parent.Key())
	assert.Equal(t, parent.Key(), SyncParentKey("card-1"))

	children := NewSyncEntry(SyncKindChildren, "card-2")
	assert.Equal(t, "sync-children-card-2", children.Key())
	assert.Equal(t, children.Key(), SyncChildrenKey("card-2"))

	assert.NotEmpty(t, parent.EntryID)
	assert.NotEqual(t, parent.EntryID, children.EntryID)
}

func TestParseSyncKey(t *testing.T) {
	tests := []struct {
		key      string
		wantKind string
		wantCard string
		ok       bool
	}{
		{key: "sync-parent-card-1", wantKind: SyncKindParent, wantCard: "card-1", ok: true},
		{key: "sync-children-card-2", wantKind: SyncKindChildren, wantCard: "card-2", ok: true},
		{key: "sync-parent-", wantKind: SyncKindParent, wantCard: "", ok: true},
		{key: "parent", ok: false},
		{key: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			kind, cardID, ok := ParseSyncKey(tt.key)

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantCard, cardID)
		})
	}
}
