// Package relation implements the EPIC ↔ Task relationship protocol: local
// mutations, the cross-board sync queue, reconciliation, staleness and copy
// detection, and badge projection.
//
// The two sides of a relation live in independently-stored records with no
// shared transaction. Consistency is eventual: mutations write the side they
// can reach and leave an organization-scoped queue entry for the other side,
// and every render drains pending entries by re-deriving records from the
// checklist/attachment source of truth. A relation is only accepted when
// both directions agree, which keeps the protocol convergent and idempotent
// under repeated, duplicated, or reordered drains.
package relation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mesh-intelligence/epiclink/internal/trello"
	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// DefaultGracePeriod is how long the advisory updating flag stays set after
// a mutation, absorbing the remote API's read-after-write lag.
const DefaultGracePeriod = 10 * time.Second

// RemoteStore is the remote object store the engine mutates: card,
// attachment, checklist, and check-item CRUD. Implemented by
// *trello.Client and by the test fake.
type RemoteStore interface {
	GetCard(ctx context.Context, idOrShortLink string) (*trello.Card, error)
	GetBoardCards(ctx context.Context, boardID string) ([]trello.Card, error)
	GetAttachments(ctx context.Context, cardID string) ([]trello.Attachment, error)
	CreateAttachment(ctx context.Context, cardID, name, url string) (*trello.Attachment, error)
	DeleteAttachment(ctx context.Context, cardID, attachmentID string) error
	GetChecklists(ctx context.Context, cardID string) ([]trello.Checklist, error)
	CreateChecklist(ctx context.Context, cardID, name string) (*trello.Checklist, error)
	DeleteChecklist(ctx context.Context, checklistID string) error
	CreateCheckItem(ctx context.Context, checklistID, name string) (*trello.CheckItem, error)
	DeleteCheckItem(ctx context.Context, checklistID, checkItemID string) error
	SetToken(token string)
}

// Notifier receives user-facing messages. Alert carries failures the user
// must act on; Warn carries recoverable drift notices.
type Notifier interface {
	Alert(message string)
	Warn(message string)
}

// NopNotifier discards all messages.
type NopNotifier struct{}

func (NopNotifier) Alert(string) {}
func (NopNotifier) Warn(string)  {}

// CardContext identifies the card a render or mutation executes on, the way
// the host hands context to the plugin. Scoped writes are only legal for
// cards on BoardID; the organization scope is always reachable.
type CardContext struct {
	CardID   string
	BoardID  string
	MemberID string
	OrgID    string
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Notifier Notifier
	Logger   *log.Logger
	Host     string        // card URL host, default types.DefaultHost
	Grace    time.Duration // updating-flag grace period
	Clock    func() time.Time
}

// Engine runs the relationship protocol against a remote store and a scoped
// key-value store.
type Engine struct {
	remote RemoteStore
	store  types.ScopedStore
	notify Notifier
	logger *log.Logger
	host   string
	grace  time.Duration
	now    func() time.Time
}

// New creates an engine. A nil logger writes to stderr.
func New(remote RemoteStore, store types.ScopedStore, opts Options) *Engine {
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[relation] ", log.LstdFlags)
	}
	if opts.Host == "" {
		opts.Host = types.DefaultHost
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGracePeriod
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		remote: remote,
		store:  store,
		notify: opts.Notifier,
		logger: opts.Logger,
		host:   opts.Host,
		grace:  opts.Grace,
		now:    opts.Clock,
	}
}

// Host returns the configured card URL host.
func (e *Engine) Host() string { return e.host }

// cardRef converts a remote card to the reference shape stored in records.
func cardRef(card *trello.Card) types.CardRef {
	return types.CardRef{
		ID:        card.ID,
		ShortLink: card.ShortLink,
		Name:      card.Name,
		URL:       card.URL,
		BoardID:   card.BoardID,
	}
}

// Authorize stores the member token and installs it on the remote client.
func (e *Engine) Authorize(ctx context.Context, cc CardContext, token string) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if err := e.store.Set(ctx, types.OrgScope(cc.OrgID), types.VisibilityPrivate, cc.MemberID, types.KeyToken, raw); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	e.remote.SetToken(token)
	return nil
}

// Deauthorize removes the stored member token.
func (e *Engine) Deauthorize(ctx context.Context, cc CardContext) error {
	return e.store.Remove(ctx, types.OrgScope(cc.OrgID), types.VisibilityPrivate, cc.MemberID, types.KeyToken)
}

// IsAuthorized reports whether a token is stored for the acting member.
func (e *Engine) IsAuthorized(ctx context.Context, cc CardContext) bool {
	return e.loadToken(ctx, cc) == nil
}

// loadToken reads the stored token and installs it on the remote client.
// Returns types.ErrNotAuthorized when no token is stored; callers treat
// that as "skip this render's work, retry once authorized".
func (e *Engine) loadToken(ctx context.Context, cc CardContext) error {
	var token string
	err := types.GetJSON(ctx, e.store, types.OrgScope(cc.OrgID), types.VisibilityPrivate, cc.MemberID, types.KeyToken, &token)
	if errors.Is(err, types.ErrKeyNotFound) {
		return types.ErrNotAuthorized
	}
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	e.remote.SetToken(token)
	return nil
}

// Record accessors. Absence is explicit: a nil record with a nil error
// means "no record", never a missing-key guess.

func (e *Engine) parentRecord(ctx context.Context, cardID string) (*types.ParentRecord, error) {
	var record types.ParentRecord
	err := types.GetJSON(ctx, e.store, types.CardScope(cardID), types.VisibilityShared, "", types.KeyParent, &record)
	if errors.Is(err, types.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load parent record: %w", err)
	}
	return &record, nil
}

func (e *Engine) childrenRecord(ctx context.Context, cardID string) (*types.ChildrenRecord, error) {
	var record types.ChildrenRecord
	err := types.GetJSON(ctx, e.store, types.CardScope(cardID), types.VisibilityShared, "", types.KeyChildren, &record)
	if errors.Is(err, types.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load children record: %w", err)
	}
	return &record, nil
}

// saveParentRecord persists the record and stamps the owning card's ID for
// copy detection.
func (e *Engine) saveParentRecord(ctx context.Context, cardID string, record *types.ParentRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	scope := types.CardScope(cardID)
	if err := types.SetJSON(ctx, e.store, scope, types.VisibilityShared, "", types.KeyParent, record); err != nil {
		return fmt.Errorf("save parent record: %w", err)
	}
	return e.stampCopyDetection(ctx, cardID)
}

// saveChildrenRecord persists the record and stamps the owning card's ID.
func (e *Engine) saveChildrenRecord(ctx context.Context, cardID string, record *types.ChildrenRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	scope := types.CardScope(cardID)
	if err := types.SetJSON(ctx, e.store, scope, types.VisibilityShared, "", types.KeyChildren, record); err != nil {
		return fmt.Errorf("save children record: %w", err)
	}
	return e.stampCopyDetection(ctx, cardID)
}

func (e *Engine) stampCopyDetection(ctx context.Context, cardID string) error {
	return types.SetJSON(ctx, e.store, types.CardScope(cardID), types.VisibilityShared, "", types.KeyCopyDetection, cardID)
}

// relationKeys are the card-scoped keys purged when a copy is detected or a
// relation side is fully disconnected.
var relationKeys = []string{
	types.KeyParent,
	types.KeyChildren,
	types.KeyCopyDetection,
	types.KeyUpdating,
	types.KeyLastActivity,
}

// checkCopy detects a duplicated card: the copy marker still carries the
// original card's ID because card copies preserve plugin values but not
// identity. On mismatch every relationship key is purged and the user is
// told the leftover attachment/checklist must be cleaned up by hand; the
// remote objects are left untouched because their ownership is ambiguous.
func (e *Engine) checkCopy(ctx context.Context, cc CardContext) (bool, error) {
	var stamped string
	err := types.GetJSON(ctx, e.store, types.CardScope(cc.CardID), types.VisibilityShared, "", types.KeyCopyDetection, &stamped)
	if errors.Is(err, types.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load copy marker: %w", err)
	}
	if stamped == cc.CardID {
		return false, nil
	}

	if err := e.store.Remove(ctx, types.CardScope(cc.CardID), types.VisibilityShared, "", relationKeys...); err != nil {
		return false, fmt.Errorf("purge copied records: %w", err)
	}
	e.logger.Printf("copy detected on card %s (records stamped for %s), relationship state purged", cc.CardID, stamped)
	e.notify.Warn("This card looks like a copy. Its EPIC/task links were reset; remove any leftover EPIC attachment or Tasks checklist manually.")
	return true, nil
}

// markUpdating raises the advisory updating flag: an expiry timestamp at
// now + grace. Readers compare against their own clock, so release needs no
// timer. The flag is advisory only; the storage layer enforces nothing, and
// the grace window is a known race window rather than a guarantee.
func (e *Engine) markUpdating(ctx context.Context, cardID string) error {
	expiry := e.now().Add(e.grace).UTC()
	return types.SetJSON(ctx, e.store, types.CardScope(cardID), types.VisibilityShared, "", types.KeyUpdating, expiry)
}

// isUpdating reports whether a mutation on the card is still inside its
// grace window.
func (e *Engine) isUpdating(ctx context.Context, cardID string) (bool, error) {
	var expiry time.Time
	err := types.GetJSON(ctx, e.store, types.CardScope(cardID), types.VisibilityShared, "", types.KeyUpdating, &expiry)
	if errors.Is(err, types.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load updating flag: %w", err)
	}
	return e.now().Before(expiry), nil
}

// canWriteCard reports whether the card's scope is directly writable from
// this context. Scoped writes only reach cards on the rendering board; the
// counterpart of a cross-board relation goes through the sync queue.
func (cc CardContext) canWriteCard(boardID string) bool {
	return boardID != "" && boardID == cc.BoardID
}

// enqueue leaves a sync entry in the organization scope. One entry per card
// and direction; a newer enqueue overwrites an older one, which is safe
// because drains re-derive state instead of replaying the payload.
func (e *Engine) enqueue(ctx context.Context, cc CardContext, entry types.SyncEntry) error {
	if err := types.SetJSON(ctx, e.store, types.OrgScope(cc.OrgID), types.VisibilityShared, "", entry.Key(), entry); err != nil {
		return fmt.Errorf("enqueue %s: %w", entry.Key(), err)
	}
	e.logger.Printf("queued %s for card %s", entry.Kind, entry.CardID)
	return nil
}

// alertRemote surfaces a failed remote call to the user and the log.
func (e *Engine) alertRemote(op string, err error) {
	e.logger.Printf("%s: %v", op, err)
	e.notify.Alert(fmt.Sprintf("%s: %v", op, err))
}
