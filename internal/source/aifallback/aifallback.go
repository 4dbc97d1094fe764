// Package aifallback is the Tier 3 adapter: it asks a paid model for records
// when every cheaper tier came up short.
package aifallback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/cost"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/sanitize"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

const (
	defaultMaxTokens  = 4096
	defaultMaxRecords = 20
)

// Adapter implements source.Adapter over a Completer.
type Adapter struct {
	name      string
	completer Completer
	maxTokens int64
	maxCost   float64
	now       func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMaxTokens caps the model's output tokens.
func WithMaxTokens(n int64) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithMaxCost refuses calls whose worst-case cost exceeds usd. Zero disables
// the ceiling.
func WithMaxCost(usd float64) Option {
	return func(a *Adapter) { a.maxCost = usd }
}

// WithClock sets the clock used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New creates an AI fallback adapter. An empty name uses the provider name.
func New(name string, c Completer, opts ...Option) *Adapter {
	if name == "" {
		name = c.Provider()
	}
	a := &Adapter{
		name:      name,
		completer: c,
		maxTokens: defaultMaxTokens,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string                     { return a.name }
func (a *Adapter) Tier() model.Source               { return model.SourceAIFallback }
func (a *Adapter) Supports(_ model.RecordKind) bool { return true }

// Fetch implements source.Adapter.
func (a *Adapter) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	limit := q.Limit(defaultMaxRecords)
	req, err := buildRequest(q, limit, a.maxTokens)
	if err != nil {
		return nil, err
	}

	if a.maxCost > 0 {
		est := a.completer.Estimate(approxTokens(req.System+req.Prompt), req.MaxTokens)
		if est > a.maxCost {
			return nil, eris.Wrapf(resilience.ErrSourceUnavailable,
				"%s: estimated cost $%.4f exceeds ceiling $%.4f", a.name, est, a.maxCost)
		}
	}

	comp, err := a.completer.Complete(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: complete", a.name)
	}
	cost.Record(ctx, cost.Entry{
		Provider:     a.completer.Provider(),
		Model:        comp.Model,
		InputTokens:  comp.InputTokens,
		OutputTokens: comp.OutputTokens,
		USD:          comp.CostUSD,
	})

	fetched := a.now()
	var out []model.Candidate
	switch q.Kind {
	case model.KindJob:
		jobs, err := parseJobs(comp.Text)
		if err != nil {
			return nil, eris.Wrapf(resilience.ErrSourceUnavailable, "%s: parse response: %v", a.name, err)
		}
		for _, j := range jobs {
			out = append(out, model.NewJobCandidate(a.name, source.ConfidenceAIFallback, fetched, j))
		}
	case model.KindContact:
		contacts, err := parseContacts(comp.Text, q.Contacts.CompanyName)
		if err != nil {
			return nil, eris.Wrapf(resilience.ErrSourceUnavailable, "%s: parse response: %v", a.name, err)
		}
		for _, c := range contacts {
			out = append(out, model.NewContactCandidate(a.name, source.ConfidenceAIFallback, fetched, c))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}

	zap.L().Debug("aifallback: parsed records",
		zap.String("adapter", a.name),
		zap.String("model", comp.Model),
		zap.Int("records", len(out)),
		zap.Float64("cost_usd", comp.CostUSD),
	)
	return out, nil
}

// approxTokens estimates prompt tokens at four bytes per token.
func approxTokens(s string) int64 {
	return int64(len(s)/4 + 1)
}

const jobSystem = `You find real, currently open job postings. Answer with a JSON array only, no prose.
Each element has: "title", "company", "location", "url" (direct link to the posting),
"description" (at least two sentences), "salary" (text, optional), "salary_min" and
"salary_max" (annual numbers, optional), "posted_at" (YYYY-MM-DD, optional),
"work_type" ("remote", "hybrid", or "onsite"), and "source" (site the posting is on).
Never invent postings or URLs. If you find none, answer [].`

const contactSystem = `You find real people who work at a given company. Answer with a JSON array only, no prose.
Each element has: "name", "title", "email" (optional), "phone" (optional),
"linkedin_url" (optional), and "department" (optional).
Only include people you can attribute to the company from a public source. Never guess email
addresses. If you find none, answer [].`

func buildRequest(q model.Query, limit int, maxTokens int64) (Request, error) {
	switch {
	case q.Kind == model.KindJob && q.Jobs != nil:
		jq := q.Jobs
		var b strings.Builder
		fmt.Fprintf(&b, "Find up to %d job postings matching: %s.\n", limit, strings.Join(model.NormalizeKeywords(jq.Keywords), ", "))
		if jq.Location != "" {
			fmt.Fprintf(&b, "Location: %s.\n", jq.Location)
		}
		if jq.WorkType != "" && jq.WorkType != model.WorkTypeAny {
			fmt.Fprintf(&b, "Work type: %s.\n", jq.WorkType)
		}
		return Request{System: jobSystem, Prompt: b.String(), MaxTokens: maxTokens, Kind: model.KindJob}, nil
	case q.Kind == model.KindContact && q.Contacts != nil:
		cq := q.Contacts
		var b strings.Builder
		fmt.Fprintf(&b, "Find up to %d people who work at %q.\n", limit, cq.CompanyName)
		if cq.CompanyWebsite != "" {
			fmt.Fprintf(&b, "Company website: %s.\n", cq.CompanyWebsite)
		}
		if cq.LinkedInCompanyURL != "" {
			fmt.Fprintf(&b, "Company LinkedIn: %s.\n", cq.LinkedInCompanyURL)
		}
		if cq.TargetTitleHint != "" {
			fmt.Fprintf(&b, "Prefer people whose title relates to: %s.\n", cq.TargetTitleHint)
		}
		return Request{
			System:    contactSystem,
			Prompt:    b.String(),
			MaxTokens: maxTokens,
			Kind:      model.KindContact,
			Domains:   contactDomains(cq.CompanyWebsite),
		}, nil
	}
	return Request{}, eris.Wrap(model.ErrMalformedQuery, "aifallback: query body missing")
}

// contactDomains limits web search to the company's own site and LinkedIn.
// Without a usable website the search is left open.
func contactDomains(website string) []string {
	website = strings.TrimSpace(website)
	if website == "" {
		return nil
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), "linkedin.com"}
}

type aiJob struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Salary      any    `json:"salary"`
	SalaryMin   any    `json:"salary_min"`
	SalaryMax   any    `json:"salary_max"`
	PostedAt    string `json:"posted_at"`
	WorkType    string `json:"work_type"`
	Source      string `json:"source"`
}

type aiContact struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	LinkedInURL string `json:"linkedin_url"`
	Department  string `json:"department"`
}

func parseJobs(text string) ([]model.Job, error) {
	var raw []aiJob
	if err := json.Unmarshal([]byte(cleanJSONArray(text)), &raw); err != nil {
		return nil, err
	}
	out := make([]model.Job, 0, len(raw))
	for _, r := range raw {
		j := model.Job{
			Title:       r.Title,
			Company:     r.Company,
			Location:    r.Location,
			URL:         r.URL,
			Description: r.Description,
			WorkType:    workType(r.WorkType),
			Source:      r.Source,
		}
		switch s := r.Salary.(type) {
		case string:
			j.Salary = s
		case float64:
			j.Salary = fmt.Sprintf("%.0f", s)
		}
		if n, ok := sanitize.Number(r.SalaryMin); ok {
			j.SalaryMin = n
		}
		if n, ok := sanitize.Number(r.SalaryMax); ok {
			j.SalaryMax = n
		}
		if t, ok := parseDate(r.PostedAt); ok {
			j.PostedAt = &t
		}
		out = append(out, j)
	}
	return out, nil
}

func parseContacts(text, company string) ([]model.Contact, error) {
	var raw []aiContact
	if err := json.Unmarshal([]byte(cleanJSONArray(text)), &raw); err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.Contact{
			Name:        r.Name,
			Title:       r.Title,
			Email:       r.Email,
			Phone:       r.Phone,
			LinkedInURL: r.LinkedInURL,
			Department:  r.Department,
			Company:     company,
		})
	}
	return out, nil
}

func workType(s string) model.WorkType {
	wt := model.WorkType(strings.ToLower(strings.TrimSpace(s)))
	if wt == model.WorkTypeAny || !wt.Valid() {
		return ""
	}
	return wt
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// cleanJSONArray extracts a JSON array from text that may carry markdown
// fences or prose around it.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
