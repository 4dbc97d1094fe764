package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

const (
	srPageSize = 100
	srMaxPages = 5
)

// SmartRecruiters reads postings from the public SmartRecruiters API.
type SmartRecruiters struct {
	base
	boards   []Board
	maxPages int
}

// NewSmartRecruiters creates a SmartRecruiters adapter over boards. maxPages
// caps list pages per board; 0 uses the default.
func NewSmartRecruiters(name string, boards []Board, maxPages int, opts ...Option) *SmartRecruiters {
	if name == "" {
		name = source.ProviderSmartRecruiters
	}
	if maxPages <= 0 {
		maxPages = srMaxPages
	}
	return &SmartRecruiters{
		base:     newBase(name, "https://api.smartrecruiters.com", opts),
		boards:   boards,
		maxPages: maxPages,
	}
}

// Supports implements source.Adapter.
func (s *SmartRecruiters) Supports(kind model.RecordKind) bool { return kind == model.KindJob }

type srPostingsResponse struct {
	Content    []srPosting `json:"content"`
	TotalFound int         `json:"totalFound"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
}

type srPosting struct {
	ID           string    `json:"id"`
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	ReleasedDate time.Time `json:"releasedDate"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
		Hybrid  bool   `json:"hybrid"`
	} `json:"location"`
}

type srPostingDetail struct {
	PostingURL string `json:"postingUrl"`
	JobAd      struct {
		Sections struct {
			CompanyDescription struct {
				Text string `json:"text"`
			} `json:"companyDescription"`
			JobDescription struct {
				Text string `json:"text"`
			} `json:"jobDescription"`
			Qualifications struct {
				Text string `json:"text"`
			} `json:"qualifications"`
		} `json:"sections"`
	} `json:"jobAd"`
}

// Fetch implements source.Adapter.
func (s *SmartRecruiters) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	if q.Kind != model.KindJob || q.Jobs == nil {
		return nil, nil
	}
	return fetchBoards(ctx, s.name, s.boards, func(ctx context.Context, b Board) ([]model.Candidate, error) {
		return s.fetchBoard(ctx, b, q.Jobs)
	})
}

func (s *SmartRecruiters) fetchBoard(ctx context.Context, b Board, q *model.JobQuery) ([]model.Candidate, error) {
	listURL := fmt.Sprintf("%s/v1/companies/%s/postings", s.baseURL, url.PathEscape(b.Slug))

	var matched []srPosting
	for page := 0; page < s.maxPages; page++ {
		params := url.Values{}
		params.Set("limit", fmt.Sprint(srPageSize))
		params.Set("offset", fmt.Sprint(page*srPageSize))
		params.Set("q", strings.Join(q.Keywords, " "))

		var pr srPostingsResponse
		if err := s.getJSON(ctx, listURL+"?"+params.Encode(), &pr); err != nil {
			if page == 0 {
				return nil, err
			}
			break
		}
		for _, p := range pr.Content {
			if strings.TrimSpace(p.Name) != "" && firstNonEmpty(p.ID, p.UUID) != "" && matchesTitle(p.Name, q.Keywords) {
				matched = append(matched, p)
			}
		}
		if len(pr.Content) < srPageSize || (page+1)*srPageSize >= pr.TotalFound {
			break
		}
	}

	var (
		mu   sync.Mutex
		jobs = make([]*model.Job, len(matched))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(detailWorkers)
	for i, p := range matched {
		eg.Go(func() error {
			job, err := s.hydrate(egCtx, b, listURL, p)
			if err != nil {
				zap.L().Debug("smartrecruiters: posting detail failed", zap.String("id", p.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			jobs[i] = job
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	fetched := s.now()
	var out []model.Candidate
	for _, job := range jobs {
		if job == nil || !matchesJob(job, q) {
			continue
		}
		out = append(out, model.NewJobCandidate(s.name, source.ConfidenceAPIBoard, fetched, *job))
	}
	return out, ctx.Err()
}

func (s *SmartRecruiters) hydrate(ctx context.Context, b Board, listURL string, p srPosting) (*model.Job, error) {
	id := firstNonEmpty(p.ID, p.UUID)

	var d srPostingDetail
	if err := s.getJSON(ctx, listURL+"/"+url.PathEscape(id), &d); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(p.Name)
	loc := joinNonEmpty(", ", p.Location.City, p.Location.Region, p.Location.Country)
	var wt model.WorkType
	switch {
	case p.Location.Hybrid:
		wt = model.WorkTypeHybrid
	case p.Location.Remote:
		wt = model.WorkTypeRemote
	default:
		wt = inferWorkType(loc, title)
	}

	jobURL := d.PostingURL
	if jobURL == "" {
		jobURL = fmt.Sprintf("https://jobs.smartrecruiters.com/%s/%s", url.PathEscape(b.Slug), url.PathEscape(id))
	}
	sections := d.JobAd.Sections
	job := &model.Job{
		Title:       title,
		Company:     b.Company,
		Location:    loc,
		URL:         jobURL,
		Description: htmlText(joinNonEmpty("\n", sections.JobDescription.Text, sections.Qualifications.Text)),
		WorkType:    wt,
		Source:      source.ProviderSmartRecruiters,
	}
	if !p.ReleasedDate.IsZero() {
		t := p.ReleasedDate.UTC()
		job.PostedAt = &t
	}
	return job, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
