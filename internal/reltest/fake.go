// Package reltest provides an in-memory fake of the remote object store for
// engine and integration tests, plus a notifier that records messages.
package reltest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/epiclink/internal/trello"
	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// FakeRemote is an in-memory board product: cards, attachments, checklists,
// and check-items, addressable the way the REST API addresses them.
type FakeRemote struct {
	mu          sync.Mutex
	token       string
	cards       map[string]*trello.Card      // by ID
	byShortLink map[string]string            // short-link -> ID
	attachments map[string][]*trello.Attachment
	checklists  map[string]*trello.Checklist // by checklist ID
	cardLists   map[string][]string          // card ID -> checklist IDs

	// FailNext makes the next remote call fail with the given error.
	FailNext error
}

// NewFakeRemote creates an empty fake.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		cards:       map[string]*trello.Card{},
		byShortLink: map[string]string{},
		attachments: map[string][]*trello.Attachment{},
		checklists:  map[string]*trello.Checklist{},
		cardLists:   map[string][]string{},
	}
}

func newID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}

// AddCard registers a card on a board and returns its reference.
func (f *FakeRemote) AddCard(boardID, shortLink, name string) types.CardRef {
	f.mu.Lock()
	defer f.mu.Unlock()

	card := &trello.Card{
		ID:               newID("card"),
		Name:             name,
		URL:              "https://" + types.DefaultHost + "/c/" + shortLink,
		ShortLink:        shortLink,
		BoardID:          boardID,
		DateLastActivity: time.Now().UTC(),
	}
	f.cards[card.ID] = card
	f.byShortLink[shortLink] = card.ID
	return types.CardRef{
		ID:        card.ID,
		ShortLink: card.ShortLink,
		Name:      card.Name,
		URL:       card.URL,
		BoardID:   card.BoardID,
	}
}

// RenameCard changes a card's name and touches its activity stamp.
func (f *FakeRemote) RenameCard(cardID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if card, ok := f.cards[cardID]; ok {
		card.Name = name
		card.DateLastActivity = card.DateLastActivity.Add(time.Second)
	}
}

// TouchCard bumps a card's last-activity stamp.
func (f *FakeRemote) TouchCard(cardID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if card, ok := f.cards[cardID]; ok {
		card.DateLastActivity = card.DateLastActivity.Add(time.Second)
	}
}

// SetCheckItemState flips a check-item's state ("complete"/"incomplete").
func (f *FakeRemote) SetCheckItemState(checklistID, itemID, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	checklist, ok := f.checklists[checklistID]
	if !ok {
		return
	}
	for i := range checklist.CheckItems {
		if checklist.CheckItems[i].ID == itemID {
			checklist.CheckItems[i].State = state
		}
	}
}

// DropCheckItem removes a check-item outside the protocol, simulating a
// manual edit.
func (f *FakeRemote) DropCheckItem(checklistID, itemID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	checklist, ok := f.checklists[checklistID]
	if !ok {
		return
	}
	items := checklist.CheckItems[:0]
	for _, item := range checklist.CheckItems {
		if item.ID != itemID {
			items = append(items, item)
		}
	}
	checklist.CheckItems = items
}

// Checklist returns a copy of a checklist for assertions.
func (f *FakeRemote) Checklist(checklistID string) (trello.Checklist, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	checklist, ok := f.checklists[checklistID]
	if !ok {
		return trello.Checklist{}, false
	}
	return *checklist, true
}

// Attachments returns the attachments of a card for assertions.
func (f *FakeRemote) Attachments(cardID string) []trello.Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]trello.Attachment, 0, len(f.attachments[cardID]))
	for _, a := range f.attachments[cardID] {
		out = append(out, *a)
	}
	return out
}

func (f *FakeRemote) fail() error {
	if err := f.FailNext; err != nil {
		f.FailNext = nil
		return err
	}
	return nil
}

func (f *FakeRemote) resolve(idOrShortLink string) (*trello.Card, error) {
	if card, ok := f.cards[idOrShortLink]; ok {
		return card, nil
	}
	if id, ok := f.byShortLink[idOrShortLink]; ok {
		return f.cards[id], nil
	}
	return nil, &trello.RemoteError{Status: 404, Path: "cards/" + idOrShortLink, Body: "card not found"}
}

// SetToken implements relation.RemoteStore.
func (f *FakeRemote) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// GetCard implements relation.RemoteStore.
func (f *FakeRemote) GetCard(ctx context.Context, idOrShortLink string) (*trello.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	card, err := f.resolve(idOrShortLink)
	if err != nil {
		return nil, err
	}
	copied := *card
	return &copied, nil
}

// GetBoardCards implements relation.RemoteStore.
func (f *FakeRemote) GetBoardCards(ctx context.Context, boardID string) ([]trello.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	var cards []trello.Card
	for _, card := range f.cards {
		if card.BoardID == boardID {
			cards = append(cards, *card)
		}
	}
	return cards, nil
}

// GetAttachments implements relation.RemoteStore.
func (f *FakeRemote) GetAttachments(ctx context.Context, cardID string) ([]trello.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	var out []trello.Attachment
	for _, a := range f.attachments[cardID] {
		out = append(out, *a)
	}
	return out, nil
}

// CreateAttachment implements relation.RemoteStore.
func (f *FakeRemote) CreateAttachment(ctx context.Context, cardID, name, url string) (*trello.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	if _, err := f.resolve(cardID); err != nil {
		return nil, err
	}
	attachment := &trello.Attachment{ID: newID("att"), Name: name, URL: url}
	f.attachments[cardID] = append(f.attachments[cardID], attachment)
	copied := *attachment
	return &copied, nil
}

// DeleteAttachment implements relation.RemoteStore.
func (f *FakeRemote) DeleteAttachment(ctx context.Context, cardID, attachmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	kept := f.attachments[cardID][:0]
	for _, a := range f.attachments[cardID] {
		if a.ID != attachmentID {
			kept = append(kept, a)
		}
	}
	f.attachments[cardID] = kept
	return nil
}

// GetChecklists implements relation.RemoteStore.
func (f *FakeRemote) GetChecklists(ctx context.Context, cardID string) ([]trello.Checklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	var out []trello.Checklist
	for _, id := range f.cardLists[cardID] {
		if checklist, ok := f.checklists[id]; ok {
			out = append(out, *checklist)
		}
	}
	return out, nil
}

// CreateChecklist implements relation.RemoteStore.
func (f *FakeRemote) CreateChecklist(ctx context.Context, cardID, name string) (*trello.Checklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	if _, err := f.resolve(cardID); err != nil {
		return nil, err
	}
	checklist := &trello.Checklist{ID: newID("cl"), Name: name, CardID: cardID}
	f.checklists[checklist.ID] = checklist
	f.cardLists[cardID] = append(f.cardLists[cardID], checklist.ID)
	copied := *checklist
	return &copied, nil
}

// DeleteChecklist implements relation.RemoteStore.
func (f *FakeRemote) DeleteChecklist(ctx context.Context, checklistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	checklist, ok := f.checklists[checklistID]
	if !ok {
		return nil
	}
	delete(f.checklists, checklistID)
	kept := f.cardLists[checklist.CardID][:0]
	for _, id := range f.cardLists[checklist.CardID] {
		if id != checklistID {
			kept = append(kept, id)
		}
	}
	f.cardLists[checklist.CardID] = kept
	return nil
}

// CreateCheckItem implements relation.RemoteStore.
func (f *FakeRemote) CreateCheckItem(ctx context.Context, checklistID, name string) (*trello.CheckItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	checklist, ok := f.checklists[checklistID]
	if !ok {
		return nil, &trello.RemoteError{Status: 404, Path: "checklists/" + checklistID, Body: "checklist not found"}
	}
	item := trello.CheckItem{ID: newID("item"), Name: name, State: "incomplete"}
	checklist.CheckItems = append(checklist.CheckItems, item)
	return &item, nil
}

// DeleteCheckItem implements relation.RemoteStore.
func (f *FakeRemote) DeleteCheckItem(ctx context.Context, checklistID, checkItemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	checklist, ok := f.checklists[checklistID]
	if !ok {
		return nil
	}
	kept := checklist.CheckItems[:0]
	for _, item := range checklist.CheckItems {
		if item.ID != checkItemID {
			kept = append(kept, item)
		}
	}
	checklist.CheckItems = kept
	return nil
}

// Notifier records alerts and warnings for assertions.
type Notifier struct {
	mu       sync.Mutex
	Alerts   []string
	Warnings []string
}

// Alert implements relation.Notifier.
func (n *Notifier) Alert(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Alerts = append(n.Alerts, message)
}

// Warn implements relation.Notifier.
func (n *Notifier) Warn(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Warnings = append(n.Warnings, message)
}

// String renders recorded messages for failure output.
func (n *Notifier) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fmt.Sprintf("alerts=%v warnings=%v", n.Alerts, n.Warnings)
}
