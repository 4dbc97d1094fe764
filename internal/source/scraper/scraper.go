// Package scraper holds the Tier 2 adapters: public job-board APIs, board
// HTML, web search, and company website contact discovery.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

const (
	userAgent     = "JobSearch/1.0 (+https://github.com/sells-group/jobsearch-cli)"
	maxBodyBytes  = 4 << 20
	boardWorkers  = 4
	detailWorkers = 4
)

// Board is one company's board on an ATS provider.
type Board struct {
	Company string
	Slug    string
}

// BoardsFromConfig converts configured boards.
func BoardsFromConfig(cfg []source.BoardConfig) []Board {
	out := make([]Board, len(cfg))
	for i, b := range cfg {
		out[i] = Board{Company: b.Company, Slug: b.Slug}
	}
	return out
}

// Option configures an adapter's HTTP behavior.
type Option func(*base)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *base) { b.hc = hc }
}

// WithBaseURL overrides the provider endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(b *base) {
		if u != "" {
			b.baseURL = u
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(b *base) { b.retry = cfg }
}

// WithClock sets the clock used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// base carries what every HTTP adapter shares.
type base struct {
	name    string
	baseURL string
	hc      *http.Client
	retry   resilience.RetryConfig
	now     func() time.Time
}

func newBase(name, baseURL string, opts []Option) base {
	b := base{
		name:    name,
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 20 * time.Second},
		retry:   resilience.DefaultRetryConfig(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.retry.OnRetry == nil {
		b.retry.OnRetry = resilience.RetryLogger(name, "fetch")
	}
	return b
}

func (b *base) Name() string { return b.name }

func (b *base) Tier() model.Source { return model.SourceScrape }

// get fetches u with retries and returns the body of a 2xx response. Non-2xx
// statuses are classified by resilience.HTTPStatusError.
func (b *base) get(ctx context.Context, u, accept string) ([]byte, error) {
	return resilience.DoVal(ctx, b.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: create request", b.name)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", accept)

		resp, err := b.hc.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: get %s", b.name, u)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, resilience.HTTPStatusError(b.name, resp)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, eris.Wrapf(err, "%s: read body", b.name)
		}
		return body, nil
	})
}

func (b *base) getJSON(ctx context.Context, u string, out any) error {
	body, err := b.get(ctx, u, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(resilience.ErrSourceUnavailable, "%s: decode %s: %v", b.name, u, err)
	}
	return nil
}

func (b *base) getHTML(ctx context.Context, u string) (*goquery.Document, error) {
	body, err := b.get(ctx, u, "text/html")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse html", b.name)
	}
	return doc, nil
}

// fetchBoards runs fn for every board with bounded concurrency. A failing
// board is logged and skipped; the call fails only when every board failed,
// or ctx ended, in which case the partial results are returned with the error.
func fetchBoards(ctx context.Context, name string, boards []Board, fn func(ctx context.Context, b Board) ([]model.Candidate, error)) ([]model.Candidate, error) {
	var (
		mu      sync.Mutex
		results = make([][]model.Candidate, len(boards))
		errs    []error
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(boardWorkers)
	for i, board := range boards {
		g.Go(func() error {
			out, err := fn(gCtx, board)
			mu.Lock()
			defer mu.Unlock()
			results[i] = out
			if err != nil {
				errs = append(errs, err)
				zap.L().Warn("scraper: board failed",
					zap.String("adapter", name),
					zap.String("board", board.Slug),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []model.Candidate
	for _, r := range results {
		out = append(out, r...)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if len(errs) > 0 && len(errs) == len(boards) {
		return out, errors.Join(errs...)
	}
	return out, nil
}
