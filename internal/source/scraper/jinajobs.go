package scraper

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
	"github.com/sells-group/jobsearch-cli/pkg/jina"
)

const defaultSearchCount = 20

// titleSeparators split search result titles like
// "Senior Go Engineer - Acme Corp | Careers".
var titleSeparators = []string{" | ", " - ", " \u2013 ", " \u2014 ", " at "}

// siteLabels are trailing title segments naming the site, not the employer.
var siteLabels = map[string]bool{
	"linkedin": true, "indeed": true, "glassdoor": true, "careers": true,
	"jobs": true, "job board": true, "ziprecruiter": true, "built in": true,
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "Jan 2, 2006", time.RFC1123}

// JinaJobs finds postings through Jina web search.
type JinaJobs struct {
	name   string
	client jina.Client
	count  int
	now    func() time.Time
}

// NewJinaJobs creates a web-search job adapter. count caps results per
// search; 0 uses the default.
func NewJinaJobs(name string, client jina.Client, count int) *JinaJobs {
	if name == "" {
		name = source.ProviderJinaJobs
	}
	if count <= 0 {
		count = defaultSearchCount
	}
	return &JinaJobs{name: name, client: client, count: count, now: time.Now}
}

// WithClock sets the clock used for FetchedAt.
func (j *JinaJobs) WithClock(now func() time.Time) *JinaJobs {
	j.now = now
	return j
}

func (j *JinaJobs) Name() string                        { return j.name }
func (j *JinaJobs) Tier() model.Source                  { return model.SourceScrape }
func (j *JinaJobs) Supports(kind model.RecordKind) bool { return kind == model.KindJob }

// Fetch implements source.Adapter.
func (j *JinaJobs) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	if q.Kind != model.KindJob || q.Jobs == nil {
		return nil, nil
	}
	jq := q.Jobs

	resp, err := j.client.Search(ctx, searchQuery(jq), jina.WithCount(j.count))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: search", j.name)
	}

	fetched := j.now()
	var out []model.Candidate
	for _, r := range resp.Data {
		job, ok := jobFromResult(r, jq)
		if !ok || !matchesJob(&job, jq) {
			continue
		}
		out = append(out, model.NewJobCandidate(j.name, source.ConfidenceWebSearch, fetched, job))
	}
	return out, nil
}

func searchQuery(q *model.JobQuery) string {
	parts := []string{strings.Join(model.NormalizeKeywords(q.Keywords), " "), "jobs"}
	if q.Location != "" {
		parts = append(parts, "in", q.Location)
	}
	if q.WorkType != "" && q.WorkType != model.WorkTypeAny {
		parts = append(parts, string(q.WorkType))
	}
	return strings.Join(parts, " ")
}

func jobFromResult(r jina.SearchResult, q *model.JobQuery) (model.Job, bool) {
	parts := splitTitle(r.Title)
	if len(parts) == 0 || !matchesTitle(parts[0], q.Keywords) {
		return model.Job{}, false
	}

	company := ""
	if len(parts) > 1 && !siteLabels[strings.ToLower(parts[1])] {
		company = parts[1]
	}
	if company == "" {
		company = companyFromHost(r.URL)
	}

	body := r.Content
	if strings.TrimSpace(body) == "" {
		body = r.Description
	}
	loc := labeledLocation(body)
	if loc == "" {
		loc = labeledLocation(r.Description)
	}
	if loc == "" && q.Location != "" && locationMatches(body, q.Location) {
		loc = q.Location
	}

	job := model.Job{
		Title:       parts[0],
		Company:     company,
		Location:    loc,
		URL:         r.URL,
		Description: cleanText(body),
		WorkType:    inferWorkType(parts[0], loc, head(body, 1000)),
		Source:      source.ProviderJinaJobs,
	}
	if job.Location == "" && job.WorkType == model.WorkTypeRemote {
		job.Location = "Remote"
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(r.Date)); err == nil {
			job.PostedAt = &t
			break
		}
	}
	return job, true
}

// splitTitle cuts a result title on common separators, dropping blanks.
func splitTitle(title string) []string {
	parts := []string{title}
	for _, sep := range titleSeparators {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	out := parts[:0]
	for _, p := range parts {
		if p = cleanText(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// companyFromHost derives a display name from a URL host:
// "https://careers.acme.com/x" yields "Acme".
func companyFromHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	labels := strings.Split(strings.ToLower(u.Hostname()), ".")
	if len(labels) < 2 {
		return ""
	}
	name := labels[len(labels)-2]
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
