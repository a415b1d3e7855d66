// ScopedStore is the contract for the per-card / per-organization key-value
// storage every backend implements. It mirrors the host product's plugin
// data store: JSON values, two visibility levels, no cross-key atomicity
// and no transactions.
package types

import (
	"context"
	"encoding/json"
	"errors"
)

// Scope kinds. Card scopes hold relationship records; the organization
// scope holds the cross-board sync queue.
const (
	ScopeKindCard         = "card"
	ScopeKindOrganization = "organization"
)

// Visibility levels. Shared keys are visible to every member looking at the
// scope target; private keys are per-member.
const (
	VisibilityShared  = "shared"
	VisibilityPrivate = "private"
)

// Storage keys used by the relation protocol.
const (
	KeyParent        = "parent"        // card/shared: ParentRecord
	KeyChildren      = "children"      // card/shared: ChildrenRecord
	KeyCopyDetection = "copyDetection" // card/shared: writing card's own ID
	KeyUpdating      = "updating"      // card/shared: advisory updating flag
	KeyLastActivity  = "lastActivity"  // card/shared: cached last-activity stamp
	KeyToken         = "token"         // member private: API token
)

// Store errors.
var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrInvalidScope = errors.New("invalid scope")
	ErrStoreClosed  = errors.New("store is closed")
)

// Scope addresses one storage target.
type Scope struct {
	Kind string // ScopeKindCard or ScopeKindOrganization
	ID   string // card ID or organization ID
}

// CardScope returns the scope of a single card.
func CardScope(cardID string) Scope {
	return Scope{Kind: ScopeKindCard, ID: cardID}
}

// OrgScope returns the scope of an organization.
func OrgScope(orgID string) Scope {
	return Scope{Kind: ScopeKindOrganization, ID: orgID}
}

// Validate checks that the scope is addressable.
func (s Scope) Validate() error {
	if s.ID == "" {
		return ErrInvalidScope
	}
	if s.Kind != ScopeKindCard && s.Kind != ScopeKindOrganization {
		return ErrInvalidScope
	}
	return nil
}

// ScopedStore provides persisted key-value access scoped to a card or an
// organization. Values are JSON documents. Member identifies the acting
// member and namespaces private keys; it is ignored for shared visibility.
//
// There is no atomicity across keys or across scopes. A read-modify-write
// on a single key is best-effort; the reconciliation protocol compensates
// by re-deriving records from the remote source of truth.
type ScopedStore interface {
	// Get retrieves the value stored under the key.
	// Returns ErrKeyNotFound if the key has never been set or was removed.
	Get(ctx context.Context, scope Scope, visibility, member, key string) (json.RawMessage, error)

	// Set stores the value under the key, overwriting any previous value.
	Set(ctx context.Context, scope Scope, visibility, member, key string, value json.RawMessage) error

	// Remove deletes the given keys. Missing keys are ignored.
	Remove(ctx context.Context, scope Scope, visibility, member string, keys ...string) error

	// Keys lists the keys present in the scope at the given visibility.
	// Used by the reconciler to find queue entries addressed to a card.
	Keys(ctx context.Context, scope Scope, visibility, member string) ([]string, error)

	// Close releases backend resources. Operations after Close return
	// ErrStoreClosed. Idempotent.
	Close() error
}

// GetJSON reads a key and unmarshals it into out. Returns ErrKeyNotFound
// unchanged when the key is absent so callers can treat absence as an
// explicit no-record condition.
func GetJSON(ctx context.Context, s ScopedStore, scope Scope, visibility, member, key string, out any) error {
	raw, err := s.Get(ctx, scope, visibility, member, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// SetJSON marshals v and stores it under the key.
func SetJSON(ctx context.Context, s ScopedStore, scope Scope, visibility, member, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, scope, visibility, member, key, raw)
}
