// Package trello wraps the board product's REST API: card, checklist,
// check-item, and attachment CRUD. The adapter exposes typed results and
// errors; surfacing failures to the user is the caller's concern, never
// baked in here.
package trello

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIBase is the REST API root of the hosted product.
const DefaultAPIBase = "https://api.trello.com/1"

// CardFields is the field list fetched for card references.
const CardFields = "id,name,url,shortLink,idBoard"

// cardActivityFields adds the last-activity stamp for staleness checks and
// candidate ordering.
const cardActivityFields = CardFields + ",dateLastActivity"

// RemoteError is a failed remote call. Status is zero for transport
// failures that never produced a response.
type RemoteError struct {
	Status int
	Path   string
	Body   string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote call %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("remote call %s: status %d: %s", e.Path, e.Status, e.Body)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Card is the remote card resource.
type Card struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	URL              string    `json:"url"`
	ShortLink        string    `json:"shortLink"`
	BoardID          string    `json:"idBoard"`
	DateLastActivity time.Time `json:"dateLastActivity"`
}

// Attachment is a link attachment on a card.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Checklist is a checklist on a card, including its check-items.
type Checklist struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	CardID     string      `json:"idCard"`
	CheckItems []CheckItem `json:"checkItems"`
}

// CheckItem is one entry of a checklist. Name holds the child card URL for
// items managed by this plugin. State is "complete" or "incomplete".
type CheckItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Client talks to the REST API with key+token authentication.
type Client struct {
	apiBase string
	key     string
	token   string
	http    *http.Client
}

// NewClient creates a client for the given API base URL. An empty base
// selects DefaultAPIBase; a nil httpClient selects a client with a 30s
// timeout.
func NewClient(apiBase, key string, httpClient *http.Client) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiBase: strings.TrimRight(apiBase, "/"),
		key:     key,
		http:    httpClient,
	}
}

// SetToken installs the member token captured by the authorization
// handshake. Calls made without a token fail remotely with 401.
func (c *Client) SetToken(token string) { c.token = token }

// GetCard fetches one card by ID or short-link.
func (c *Client) GetCard(ctx context.Context, idOrShortLink string) (*Card, error) {
	var card Card
	path := fmt.Sprintf("cards/%s", url.PathEscape(idOrShortLink))
	if err := c.do(ctx, http.MethodGet, path, url.Values{"fields": {cardActivityFields}}, nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// GetBoardCards fetches all open cards of a board.
func (c *Client) GetBoardCards(ctx context.Context, boardID string) ([]Card, error) {
	var cards []Card
	path := fmt.Sprintf("boards/%s/cards", url.PathEscape(boardID))
	if err := c.do(ctx, http.MethodGet, path, url.Values{"fields": {cardActivityFields}}, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// GetAttachments fetches the link attachments of a card.
func (c *Client) GetAttachments(ctx context.Context, cardID string) ([]Attachment, error) {
	var attachments []Attachment
	path := fmt.Sprintf("cards/%s/attachments", url.PathEscape(cardID))
	if err := c.do(ctx, http.MethodGet, path, url.Values{"fields": {"id,name,url"}}, nil, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// CreateAttachment attaches a URL to a card and returns the created
// attachment with its remote ID.
func (c *Client) CreateAttachment(ctx context.Context, cardID, name, attachURL string) (*Attachment, error) {
	var attachment Attachment
	path := fmt.Sprintf("cards/%s/attachments", url.PathEscape(cardID))
	body := map[string]string{"name": name, "url": attachURL}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &attachment); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// DeleteAttachment removes an attachment from a card.
func (c *Client) DeleteAttachment(ctx context.Context, cardID, attachmentID string) error {
	path := fmt.Sprintf("cards/%s/attachments/%s", url.PathEscape(cardID), url.PathEscape(attachmentID))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// GetChecklists fetches all checklists of a card, check-items included.
func (c *Client) GetChecklists(ctx context.Context, cardID string) ([]Checklist, error) {
	var checklists []Checklist
	path := fmt.Sprintf("cards/%s/checklists", url.PathEscape(cardID))
	if err := c.do(ctx, http.MethodGet, path, url.Values{"checkItem_fields": {"id,name,state"}}, nil, &checklists); err != nil {
		return nil, err
	}
	return checklists, nil
}

// CreateChecklist creates a checklist at the top of a card.
func (c *Client) CreateChecklist(ctx context.Context, cardID, name string) (*Checklist, error) {
	var checklist Checklist
	path := fmt.Sprintf("cards/%s/checklists", url.PathEscape(cardID))
	body := map[string]string{"name": name, "pos": "top"}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &checklist); err != nil {
		return nil, err
	}
	return &checklist, nil
}

// DeleteChecklist removes a checklist and all its check-items.
func (c *Client) DeleteChecklist(ctx context.Context, checklistID string) error {
	path := fmt.Sprintf("checklists/%s", url.PathEscape(checklistID))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// CreateCheckItem appends a check-item to a checklist.
func (c *Client) CreateCheckItem(ctx context.Context, checklistID, name string) (*CheckItem, error) {
	var item CheckItem
	path := fmt.Sprintf("checklists/%s/checkItems", url.PathEscape(checklistID))
	body := map[string]string{"name": name, "pos": "bottom"}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteCheckItem removes a check-item from a checklist.
func (c *Client) DeleteCheckItem(ctx context.Context, checklistID, checkItemID string) error {
	path := fmt.Sprintf("checklists/%s/checkItems/%s", url.PathEscape(checklistID), url.PathEscape(checkItemID))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// do executes one API call. Query auth parameters are appended to every
// request; non-2xx responses become a *RemoteError carrying the response
// body verbatim.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.key != "" {
		query.Set("key", c.key)
	}
	if c.token != "" {
		query.Set("token", c.token)
	}

	endpoint := c.apiBase + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return &RemoteError{Path: path, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Status: resp.StatusCode, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Status: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &RemoteError{Status: resp.StatusCode, Path: path, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
