package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

// Lever reads postings from the public Lever postings API.
type Lever struct {
	base
	boards []Board
}

// NewLever creates a Lever adapter over boards.
func NewLever(name string, boards []Board, opts ...Option) *Lever {
	if name == "" {
		name = source.ProviderLever
	}
	return &Lever{
		base:   newBase(name, "https://api.lever.co", opts),
		boards: boards,
	}
}

// Supports implements source.Adapter.
func (l *Lever) Supports(kind model.RecordKind) bool { return kind == model.KindJob }

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"`
	Description      string `json:"description"`
	DescriptionPlain string `json:"descriptionPlain"`
	WorkplaceType    string `json:"workplaceType"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	SalaryRange *struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
		Interval string  `json:"interval"`
	} `json:"salaryRange"`
}

// Fetch implements source.Adapter.
func (l *Lever) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	if q.Kind != model.KindJob || q.Jobs == nil {
		return nil, nil
	}
	return fetchBoards(ctx, l.name, l.boards, func(ctx context.Context, b Board) ([]model.Candidate, error) {
		return l.fetchBoard(ctx, b, q.Jobs)
	})
}

func (l *Lever) fetchBoard(ctx context.Context, b Board, q *model.JobQuery) ([]model.Candidate, error) {
	apiURL := fmt.Sprintf("%s/v0/postings/%s?mode=json", l.baseURL, url.PathEscape(b.Slug))

	var postings []leverPosting
	if err := l.getJSON(ctx, apiURL, &postings); err != nil {
		return nil, err
	}

	fetched := l.now()
	var out []model.Candidate
	for _, p := range postings {
		title := strings.TrimSpace(p.Text)
		if p.ID == "" || p.HostedURL == "" || title == "" || !matchesTitle(title, q.Keywords) {
			continue
		}

		desc := strings.TrimSpace(p.DescriptionPlain)
		if desc == "" {
			desc = htmlText(p.Description)
		}
		loc := cleanText(p.Categories.Location)
		wt := parseWorkType(p.WorkplaceType)
		if wt == "" {
			wt = inferWorkType(loc, title)
		}

		job := model.Job{
			Title:       title,
			Company:     b.Company,
			Location:    loc,
			URL:         p.HostedURL,
			Description: desc,
			WorkType:    wt,
			Source:      source.ProviderLever,
		}
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt).UTC()
			job.PostedAt = &t
		}
		if s := p.SalaryRange; s != nil && (s.Min > 0 || s.Max > 0) {
			job.SalaryMin = int64(s.Min)
			job.SalaryMax = int64(s.Max)
			job.Salary = strings.TrimSpace(fmt.Sprintf("%s %.0f-%.0f %s", s.Currency, s.Min, s.Max, s.Interval))
		}
		if !matchesJob(&job, q) {
			continue
		}
		out = append(out, model.NewJobCandidate(l.name, source.ConfidenceAPIBoard, fetched, job))
	}
	return out, nil
}
