// Parent and children records: the two sides of an EPIC ↔ Task relation.
// The parent's ChildrenRecord mirrors a checklist on the parent card; each
// child's ParentRecord mirrors an attachment on the child card. The records
// are denormalized caches of that remote state, kept consistent by the
// relation engine.
package types

import "errors"

// Names of the remote objects the protocol creates. The attachment on a
// child card is named AttachmentName; the checklist on a parent card is
// named ChecklistName.
const (
	AttachmentName = "EPIC"
	ChecklistName  = "Tasks"
)

// CheckItemComplete is the check-item state counted as done.
const CheckItemComplete = "complete"

// Relation errors.
var (
	ErrChildHasParent = errors.New("card already belongs to a different epic")
	ErrNoRelation     = errors.New("no relation found")
	ErrNotCard        = errors.New("not a card reference")
	ErrNotAuthorized  = errors.New("not authorized")
	ErrInvalidRecord  = errors.New("invalid relationship record")
)

// ParentRecord is stored on a child card (shared visibility). It exists iff
// the child currently has exactly one EPIC attachment recognized by the
// plugin; AttachmentID must reference a live attachment on the child card.
// ShortLink and Name are cached from the parent for display.
type ParentRecord struct {
	AttachmentID string `json:"attachmentId"`
	ShortLink    string `json:"shortLink"`
	Name         string `json:"name"`
}

// Validate checks the required fields of the record.
func (p *ParentRecord) Validate() error {
	if p.AttachmentID == "" || p.ShortLink == "" {
		return ErrInvalidRecord
	}
	return nil
}

// ChildCounts aggregates checklist progress: Total check-items and how many
// are complete.
type ChildCounts struct {
	Total int `json:"total"`
	Done  int `json:"done"`
}

// CountChildren derives counts from checklist check-item states. Every item
// occupies a checklist slot and is counted, whether or not its name resolves
// to a card; short-link resolution only matters when attributing identity.
func CountChildren(states []string) ChildCounts {
	c := ChildCounts{Total: len(states)}
	for _, s := range states {
		if s == CheckItemComplete {
			c.Done++
		}
	}
	return c
}

// ChildrenRecord is stored on a parent card (shared visibility). It mirrors
// the checklist referenced by ChecklistID: one short-link and one check-item
// ID per confirmed child, plus progress counts.
type ChildrenRecord struct {
	ChecklistID  string            `json:"checklistId"`
	ShortLinks   []string          `json:"shortLinks"`
	CheckItemIDs map[string]string `json:"checkItemIds"`
	Counts       ChildCounts       `json:"counts"`
}

// NewChildrenRecord returns an empty record bound to a checklist.
func NewChildrenRecord(checklistID string) *ChildrenRecord {
	return &ChildrenRecord{
		ChecklistID:  checklistID,
		ShortLinks:   []string{},
		CheckItemIDs: map[string]string{},
	}
}

// Validate checks the record invariants: a checklist reference, no duplicate
// short-links, check-item IDs keyed exactly by the short-links, and sane
// counts. Counts.Total may exceed the number of confirmed short-links when a
// derivation counted checklist slots whose names do not resolve to cards;
// it can never be smaller.
func (c *ChildrenRecord) Validate() error {
	if c.ChecklistID == "" {
		return ErrInvalidRecord
	}
	seen := make(map[string]bool, len(c.ShortLinks))
	for _, sl := range c.ShortLinks {
		if sl == "" || seen[sl] {
			return ErrInvalidRecord
		}
		seen[sl] = true
		if _, ok := c.CheckItemIDs[sl]; !ok {
			return ErrInvalidRecord
		}
	}
	if len(c.CheckItemIDs) != len(c.ShortLinks) {
		return ErrInvalidRecord
	}
	if c.Counts.Done < 0 || c.Counts.Done > c.Counts.Total {
		return ErrInvalidRecord
	}
	if c.Counts.Total < len(c.ShortLinks) {
		return ErrInvalidRecord
	}
	return nil
}

// HasChild reports whether the record lists the given short-link.
func (c *ChildrenRecord) HasChild(shortLink string) bool {
	_, ok := c.CheckItemIDs[shortLink]
	return ok
}

// AddChild appends a child to the record. Idempotent: adding a short-link
// already present leaves the record unchanged.
func (c *ChildrenRecord) AddChild(shortLink, checkItemID string) {
	if c.HasChild(shortLink) {
		return
	}
	if c.CheckItemIDs == nil {
		c.CheckItemIDs = map[string]string{}
	}
	c.ShortLinks = append(c.ShortLinks, shortLink)
	c.CheckItemIDs[shortLink] = checkItemID
	c.Counts.Total++
}

// RemoveChild removes a child from the record and returns the check-item ID
// it was mapped to. Returns ErrNoRelation if the short-link is not listed.
// Counts are not adjusted here; callers recompute them from the live
// checklist to self-heal prior drift.
func (c *ChildrenRecord) RemoveChild(shortLink string) (string, error) {
	itemID, ok := c.CheckItemIDs[shortLink]
	if !ok {
		return "", ErrNoRelation
	}
	delete(c.CheckItemIDs, shortLink)
	for i, sl := range c.ShortLinks {
		if sl == shortLink {
			c.ShortLinks = append(c.ShortLinks[:i], c.ShortLinks[i+1:]...)
			break
		}
	}
	return itemID, nil
}
