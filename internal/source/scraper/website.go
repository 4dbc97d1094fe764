package scraper

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/scrape"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

const websiteConcurrency = 3

// PageFetcher fetches a batch of pages. *scrape.Chain implements it.
type PageFetcher interface {
	FetchAll(ctx context.Context, urls []string, maxConcurrent int) []scrape.Page
}

// WebsiteContacts discovers people on a company's own team and contact pages.
type WebsiteContacts struct {
	name        string
	pages       PageFetcher
	concurrency int
	now         func() time.Time
}

// NewWebsiteContacts creates a website contact adapter.
func NewWebsiteContacts(name string, pages PageFetcher) *WebsiteContacts {
	if name == "" {
		name = source.ProviderWebsiteContacts
	}
	return &WebsiteContacts{name: name, pages: pages, concurrency: websiteConcurrency, now: time.Now}
}

// WithConcurrency caps parallel page fetches per query.
func (w *WebsiteContacts) WithConcurrency(n int) *WebsiteContacts {
	if n > 0 {
		w.concurrency = n
	}
	return w
}

// WithClock sets the clock used for FetchedAt.
func (w *WebsiteContacts) WithClock(now func() time.Time) *WebsiteContacts {
	w.now = now
	return w
}

func (w *WebsiteContacts) Name() string                        { return w.name }
func (w *WebsiteContacts) Tier() model.Source                  { return model.SourceScrape }
func (w *WebsiteContacts) Supports(kind model.RecordKind) bool { return kind == model.KindContact }

// Fetch implements source.Adapter. Queries without a company website yield
// nothing.
func (w *WebsiteContacts) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	if q.Kind != model.KindContact || q.Contacts == nil {
		return nil, nil
	}
	urls := scrape.ContactPageURLs(q.Contacts.CompanyWebsite)
	if len(urls) == 0 {
		return nil, nil
	}

	pages := w.pages.FetchAll(ctx, urls, w.concurrency)
	if len(pages) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, eris.Wrapf(resilience.ErrSourceUnavailable, "%s: no pages fetched for %s", w.name, q.Contacts.CompanyWebsite)
	}

	fetched := w.now()
	set := &contactSet{company: q.Contacts.CompanyName, byKey: map[string]int{}}
	for _, p := range pages {
		for _, c := range extractContacts(p, q.Contacts.CompanyName) {
			set.add(c)
		}
	}

	out := make([]model.Candidate, 0, len(set.out))
	for _, c := range set.out {
		out = append(out, model.NewContactCandidate(w.name, source.ConfidenceHTMLBoard, fetched, c))
	}
	return out, ctx.Err()
}
