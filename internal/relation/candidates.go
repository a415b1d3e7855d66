// Candidate listing for the add-relation popups, and the debug projection.
package relation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// ListMaximum caps the candidate list; the popup never shows more.
const ListMaximum = 10

// Candidates lists cards that can be related to the card in context,
// filtered by a search term. A pasted card link resolves directly, board
// search by contrast matches names case-insensitively and favors the most
// recently touched cards. The card itself, its current EPIC, and its
// current tasks never appear.
func (e *Engine) Candidates(ctx context.Context, cc CardContext, search string) ([]types.CardRef, error) {
	if err := e.loadToken(ctx, cc); err != nil {
		return nil, err
	}

	parentRecord, err := e.parentRecord(ctx, cc.CardID)
	if err != nil {
		return nil, err
	}
	childrenRecord, err := e.childrenRecord(ctx, cc.CardID)
	if err != nil {
		return nil, err
	}

	related := func(shortLink string) bool {
		if parentRecord != nil && parentRecord.ShortLink == shortLink {
			return true
		}
		return childrenRecord != nil && childrenRecord.HasChild(shortLink)
	}

	if strings.HasPrefix(search, types.CardURLPrefix(e.host)) {
		return e.candidateFromLink(ctx, cc, search, related)
	}

	cards, err := e.remote.GetBoardCards(ctx, cc.BoardID)
	if err != nil {
		return nil, fmt.Errorf("load board cards: %w", err)
	}

	needle := strings.ToLower(search)
	matches := cards[:0]
	for _, card := range cards {
		if card.ID == cc.CardID || related(card.ShortLink) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(card.Name), needle) {
			continue
		}
		matches = append(matches, card)
	}

	// Most recently touched first.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DateLastActivity.After(matches[j].DateLastActivity)
	})
	if len(matches) > ListMaximum {
		matches = matches[:ListMaximum]
	}

	refs := make([]types.CardRef, 0, len(matches))
	for i := range matches {
		refs = append(refs, cardRef(&matches[i]))
	}
	return refs, nil
}

// candidateFromLink resolves a pasted card URL, reaching beyond the current
// board when the link points elsewhere in the organization.
func (e *Engine) candidateFromLink(ctx context.Context, cc CardContext, link string, related func(string) bool) ([]types.CardRef, error) {
	shortLink, ok := types.ShortLinkFromURL(e.host, link)
	if !ok {
		return nil, types.ErrNotCard
	}
	if related(shortLink) {
		return nil, nil
	}

	card, err := e.remote.GetCard(ctx, shortLink)
	if err != nil {
		return nil, fmt.Errorf("resolve card link: %w", err)
	}
	if card.ID == cc.CardID {
		return nil, nil
	}
	return []types.CardRef{cardRef(card)}, nil
}

// ResolveCard turns a card URL, short-link, or ID into a CardRef via the
// remote store.
func (e *Engine) ResolveCard(ctx context.Context, cc CardContext, urlOrID string) (types.CardRef, error) {
	if err := e.loadToken(ctx, cc); err != nil {
		return types.CardRef{}, err
	}

	lookup := urlOrID
	if strings.HasPrefix(urlOrID, types.CardURLPrefix(e.host)) {
		shortLink, ok := types.ShortLinkFromURL(e.host, urlOrID)
		if !ok {
			return types.CardRef{}, fmt.Errorf("%w: %s", types.ErrNotCard, urlOrID)
		}
		lookup = shortLink
	}

	card, err := e.remote.GetCard(ctx, lookup)
	if err != nil {
		return types.CardRef{}, fmt.Errorf("resolve card %s: %w", urlOrID, err)
	}
	return cardRef(card), nil
}

// Debug renders the stored relationship state of the card in context as
// plain lines, mirroring what the records hold without any derivation.
func (e *Engine) Debug(ctx context.Context, cc CardContext) ([]string, error) {
	var lines []string

	parentRecord, err := e.parentRecord(ctx, cc.CardID)
	if err != nil {
		return nil, err
	}
	if parentRecord != nil {
		lines = append(lines,
			"parent.attachmentId: "+parentRecord.AttachmentID,
			"parent.shortLink: "+parentRecord.ShortLink,
			"parent.name: "+parentRecord.Name,
		)
	} else {
		lines = append(lines, "parent: -")
	}

	childrenRecord, err := e.childrenRecord(ctx, cc.CardID)
	if err != nil {
		return nil, err
	}
	if childrenRecord != nil {
		lines = append(lines,
			"children.checklistId: "+childrenRecord.ChecklistID,
			fmt.Sprintf("children.shortLinks: %v", childrenRecord.ShortLinks),
			fmt.Sprintf("children.counts: %d/%d", childrenRecord.Counts.Done, childrenRecord.Counts.Total),
		)
	} else {
		lines = append(lines, "children: -")
	}
	return lines, nil
}
