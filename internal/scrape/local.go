package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

const (
	localFetcherName = "local_http"
	maxPageBytes     = 512 * 1024
	minPageBytes     = 100
	userAgent        = "Mozilla/5.0 (compatible; JobSearchBot/1.0)"
)

// LocalFetcher fetches HTML via net/http, detects blocks, and extracts text
// with goquery. Free, no API calls.
type LocalFetcher struct {
	client *http.Client
}

// NewLocalFetcher creates a LocalFetcher with sensible defaults.
func NewLocalFetcher() *LocalFetcher {
	return &LocalFetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// WithHTTPClient swaps the underlying client (for testing).
func (l *LocalFetcher) WithHTTPClient(hc *http.Client) *LocalFetcher {
	l.client = hc
	return l
}

func (l *LocalFetcher) Name() string           { return localFetcherName }
func (l *LocalFetcher) Supports(_ string) bool { return true }

// Fetch downloads a URL, rejects blocked or empty pages, and extracts text.
func (l *LocalFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Wrapf(resilience.ErrSourceUnavailable, "local_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, resilience.HTTPStatusError(localFetcherName, resp)
	}
	if len(body) < minPageBytes {
		return nil, eris.Wrap(resilience.ErrSourceUnavailable, "local_http: empty page")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	return &Page{
		URL:        targetURL,
		Title:      title,
		Text:       ExtractText(doc),
		HTML:       string(body),
		StatusCode: resp.StatusCode,
		Fetcher:    localFetcherName,
	}, nil
}

const blockSelectors = "p, div, li, tr, br, section, article, header, address, blockquote, dt, dd, h1, h2, h3, h4, h5, h6"

// ExtractText returns the readable text of a document: scripts, styles,
// navigation and footers are dropped, block elements end a line, and blank
// lines are removed. The document is modified.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, svg, nav, footer, iframe, template").Remove()
	doc.Find(blockSelectors).AfterHtml("\n")

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	for _, line := range strings.Split(root.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
