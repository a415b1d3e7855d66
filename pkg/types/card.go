package types

import (
	"fmt"
	"regexp"
	"sync"
)

// DefaultHost is the board product host used for card URLs when no host is
// configured.
const DefaultHost = "trello.com"

// CardRef identifies a card and carries the denormalized fields the relation
// protocol needs without another remote fetch.
type CardRef struct {
	ID        string `json:"id"`
	ShortLink string `json:"shortLink"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	BoardID   string `json:"idBoard,omitempty"`
}

// shortLinkPatterns caches the compiled URL pattern per host.
// Card URLs have the fixed shape https://<host>/c/<shortLink>(/<slug>)?.
var (
	shortLinkMu       sync.RWMutex
	shortLinkPatterns = map[string]*regexp.Regexp{}
)

func shortLinkPattern(host string) *regexp.Regexp {
	if host == "" {
		host = DefaultHost
	}
	shortLinkMu.RLock()
	re, ok := shortLinkPatterns[host]
	shortLinkMu.RUnlock()
	if ok {
		return re
	}
	re = regexp.MustCompile(`^https://` + regexp.QuoteMeta(host) + `/c/([^/]+)(/|$)`)
	shortLinkMu.Lock()
	shortLinkPatterns[host] = re
	shortLinkMu.Unlock()
	return re
}

// ShortLinkFromURL extracts the card short-link from a card URL.
// Any URL not matching https://<host>/c/<shortLink>(/<slug>)? is not a card
// reference; the second return value is false and no error is involved.
func ShortLinkFromURL(host, url string) (string, bool) {
	m := shortLinkPattern(host).FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CardURLPrefix returns the prefix every card URL on the given host starts
// with. Used to recognize pasted card links in search input.
func CardURLPrefix(host string) string {
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("https://%s/c/", host)
}
