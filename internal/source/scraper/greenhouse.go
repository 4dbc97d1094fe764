package scraper

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

// Greenhouse scrapes public Greenhouse board pages.
type Greenhouse struct {
	base
	boards []Board
}

// NewGreenhouse creates a Greenhouse adapter over boards.
func NewGreenhouse(name string, boards []Board, opts ...Option) *Greenhouse {
	if name == "" {
		name = source.ProviderGreenhouse
	}
	return &Greenhouse{
		base:   newBase(name, "https://boards.greenhouse.io", opts),
		boards: boards,
	}
}

// Supports implements source.Adapter.
func (g *Greenhouse) Supports(kind model.RecordKind) bool { return kind == model.KindJob }

// Fetch implements source.Adapter.
func (g *Greenhouse) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	if q.Kind != model.KindJob || q.Jobs == nil {
		return nil, nil
	}
	return fetchBoards(ctx, g.name, g.boards, func(ctx context.Context, b Board) ([]model.Candidate, error) {
		return g.fetchBoard(ctx, b, q.Jobs)
	})
}

type boardLink struct {
	url   string
	title string
}

func (g *Greenhouse) fetchBoard(ctx context.Context, b Board, q *model.JobQuery) ([]model.Candidate, error) {
	doc, err := g.getHTML(ctx, g.baseURL+"/"+b.Slug)
	if err != nil {
		return nil, err
	}

	// Titles on the board page decide which postings are worth a detail fetch.
	links := g.boardLinks(doc, q.Keywords)

	var (
		mu   sync.Mutex
		jobs = make([]*model.Job, len(links))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(detailWorkers)
	for i, link := range links {
		eg.Go(func() error {
			job, err := g.hydrate(egCtx, b, link)
			if err != nil {
				zap.L().Debug("greenhouse: job page failed", zap.String("url", link.url), zap.Error(err))
				return nil
			}
			mu.Lock()
			jobs[i] = job
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	fetched := g.now()
	var out []model.Candidate
	for _, job := range jobs {
		if job == nil || !matchesJob(job, q) {
			continue
		}
		out = append(out, model.NewJobCandidate(g.name, source.ConfidenceHTMLBoard, fetched, *job))
	}
	return out, ctx.Err()
}

func (g *Greenhouse) boardLinks(doc *goquery.Document, keywords []string) []boardLink {
	seen := map[string]bool{}
	var links []boardLink
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if strings.HasPrefix(href, "/") {
			href = g.baseURL + href
		}
		if !strings.HasPrefix(href, g.baseURL) || !strings.Contains(href, "/jobs/") {
			return
		}
		id := greenhouseJobID(href)
		if id == "" || seen[id] {
			return
		}
		title := cleanText(a.Text())
		if !matchesTitle(title, keywords) {
			return
		}
		seen[id] = true
		links = append(links, boardLink{url: href, title: title})
	})
	return links
}

func (g *Greenhouse) hydrate(ctx context.Context, b Board, link boardLink) (*model.Job, error) {
	doc, err := g.getHTML(ctx, link.url)
	if err != nil {
		return nil, err
	}

	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		title = link.title
	}
	loc := cleanText(doc.Find(".location").First().Text())
	if loc == "" {
		loc = labeledLocation(doc.Find("body").Text())
	}
	desc := htmlText(htmlOf(doc.Find("#content").First()))

	job := &model.Job{
		Title:       title,
		Company:     b.Company,
		Location:    loc,
		URL:         link.url,
		Description: desc,
		WorkType:    inferWorkType(loc, title),
		Source:      source.ProviderGreenhouse,
	}
	if ts, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			job.PostedAt = &t
		}
	}
	return job, nil
}

func htmlOf(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	h, err := sel.Html()
	if err != nil {
		return ""
	}
	return h
}

// greenhouseJobID returns the numeric id after "/jobs/".
func greenhouseJobID(u string) string {
	_, tail, ok := strings.Cut(u, "/jobs/")
	if !ok {
		return ""
	}
	end := 0
	for end < len(tail) && tail[end] >= '0' && tail[end] <= '9' {
		end++
	}
	return tail[:end]
}
