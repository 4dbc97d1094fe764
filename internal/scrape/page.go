package scrape

import "context"

// Page is one fetched web page. HTML is set only by fetchers that see the
// raw markup; Text is always plain text or markdown.
type Page struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	HTML       string `json:"-"`
	StatusCode int    `json:"status_code"`
	Fetcher    string `json:"fetcher"`
}

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Name() string
	Supports(url string) bool
}
