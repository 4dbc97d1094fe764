// Package scrape fetches company web pages through a chain of fetchers:
// plain HTTP first, a hosted reader when the site blocks or fails.
package scrape

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// Chain tries fetchers in priority order, returning the first success.
type Chain struct {
	PathMatcher *PathMatcher

	// ShouldFallback decides whether a failed fetcher hands over to the
	// next one. Defaults to resilience.IsFallbackWorthy.
	ShouldFallback func(err error) bool

	fetchers []Fetcher
}

// NewChain creates a Chain with the given path matcher and fetchers.
// Fetchers are tried in order; the first successful page is returned.
func NewChain(matcher *PathMatcher, fetchers ...Fetcher) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{
		PathMatcher: matcher,
		fetchers:    fetchers,
	}
}

// Fetch tries each fetcher in order for a single URL.
func (c *Chain) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: url excluded by path matcher: %s", targetURL)
	}
	should := c.ShouldFallback
	if should == nil {
		should = resilience.IsFallbackWorthy
	}

	var lastErr error
	for _, f := range c.fetchers {
		if !f.Supports(targetURL) {
			continue
		}
		page, err := f.Fetch(ctx, targetURL)
		if err == nil && page != nil {
			return page, nil
		}
		if err == nil {
			continue
		}
		lastErr = err
		if ctx.Err() != nil || !should(err) {
			return nil, eris.Wrapf(err, "scrape: %s", f.Name())
		}
		zap.L().Debug("scrape: fetcher failed, trying next",
			zap.String("fetcher", f.Name()),
			zap.String("url", targetURL),
			zap.Error(err),
		)
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all fetchers failed")
	}
	return nil, eris.Wrapf(resilience.ErrSourceUnavailable, "scrape: no suitable fetcher for url: %s", targetURL)
}

// FetchAll fetches urls in parallel with at most maxConcurrent in flight.
// Failed and excluded URLs are skipped. Pages are returned in input order.
func (c *Chain) FetchAll(ctx context.Context, urls []string, maxConcurrent int) []Page {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	var (
		mu    sync.Mutex
		found = make(map[int]Page, len(urls))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, u := range urls {
		if c.PathMatcher.IsExcluded(u) {
			continue
		}
		g.Go(func() error {
			page, err := c.Fetch(gCtx, u)
			if err != nil {
				zap.L().Debug("scrape: chain failed for url", zap.String("url", u), zap.Error(err))
				return nil
			}
			mu.Lock()
			found[i] = *page
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]Page, 0, len(found))
	for i := range urls {
		if p, ok := found[i]; ok {
			pages = append(pages, p)
		}
	}
	return pages
}
