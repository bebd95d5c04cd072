package birbank

import (
	"net/http"
	"sync"
)

// HeaderProvider supplies the identification headers sent with every request.
// The bank's WAF rejects requests that don't look like a browser, so the set
// is injected rather than hardcoded at call sites, and Refresh rotates to a
// different fingerprint after a 403.
type HeaderProvider interface {
	Apply(h http.Header)
	Refresh()
}

var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// BrowserHeaders is the default HeaderProvider. Safe for concurrent use.
type BrowserHeaders struct {
	mu  sync.Mutex
	idx int
}

func NewBrowserHeaders() *BrowserHeaders {
	return &BrowserHeaders{}
}

func (b *BrowserHeaders) Apply(h http.Header) {
	b.mu.Lock()
	ua := browserUserAgents[b.idx]
	b.mu.Unlock()

	h.Set("User-Agent", ua)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Connection", "keep-alive")
}

// Refresh rotates to the next user agent in the list.
func (b *BrowserHeaders) Refresh() {
	b.mu.Lock()
	b.idx = (b.idx + 1) % len(browserUserAgents)
	b.mu.Unlock()
}
