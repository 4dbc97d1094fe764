package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
	"github.com/sells-group/jobsearch-cli/pkg/jina"
)

const linkedInProfileSite = "linkedin.com/in"

// LinkedInSearch finds public LinkedIn profiles of people at a company
// through Jina web search. Profiles are never fetched directly.
type LinkedInSearch struct {
	name   string
	client jina.Client
	count  int
	now    func() time.Time
}

// NewLinkedInSearch creates a LinkedIn profile search adapter.
func NewLinkedInSearch(name string, client jina.Client, count int) *LinkedInSearch {
	if name == "" {
		name = source.ProviderLinkedInSearch
	}
	if count <= 0 {
		count = defaultSearchCount
	}
	return &LinkedInSearch{name: name, client: client, count: count, now: time.Now}
}

// WithClock sets the clock used for FetchedAt.
func (l *LinkedInSearch) WithClock(now func() time.Time) *LinkedInSearch {
	l.now = now
	return l
}

func (l *LinkedInSearch) Name() string                        { return l.name }
func (l *LinkedInSearch) Tier() model.Source                  { return model.SourceScrape }
func (l *LinkedInSearch) Supports(kind model.RecordKind) bool { return kind == model.KindContact }

// Fetch implements source.Adapter.
func (l *LinkedInSearch) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	if q.Kind != model.KindContact || q.Contacts == nil {
		return nil, nil
	}
	cq := q.Contacts
	query := `"` + strings.TrimSpace(cq.CompanyName) + `"`
	if cq.TargetTitleHint != "" {
		query += " " + cq.TargetTitleHint
	}

	resp, err := l.client.Search(ctx, query, jina.WithSiteFilter(linkedInProfileSite), jina.WithCount(l.count))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: search", l.name)
	}

	fetched := l.now()
	seen := map[string]bool{}
	var out []model.Candidate
	for _, r := range resp.Data {
		c, ok := contactFromProfile(r, cq.CompanyName)
		if !ok || seen[c.LinkedInURL] {
			continue
		}
		seen[c.LinkedInURL] = true
		out = append(out, model.NewContactCandidate(l.name, source.ConfidenceWebSearch, fetched, c))
	}
	return out, nil
}

// contactFromProfile parses "Jane Doe - Head of Talent - Acme | LinkedIn".
// The result must mention the company somewhere.
func contactFromProfile(r jina.SearchResult, company string) (model.Contact, bool) {
	if !strings.Contains(strings.ToLower(r.URL), "linkedin.com/in/") {
		return model.Contact{}, false
	}
	blob := strings.ToLower(r.Title + " " + r.Description + " " + r.Content)
	if !strings.Contains(blob, strings.ToLower(strings.TrimSpace(company))) {
		return model.Contact{}, false
	}

	parts := splitTitle(r.Title)
	if len(parts) > 0 && strings.EqualFold(parts[len(parts)-1], "linkedin") {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 || !looksLikeName(parts[0]) {
		return model.Contact{}, false
	}

	c := model.Contact{
		Name:        parts[0],
		LinkedInURL: r.URL,
		Company:     company,
	}
	if len(parts) > 1 && !strings.EqualFold(parts[1], company) {
		c.Title = parts[1]
	}
	return c, true
}
