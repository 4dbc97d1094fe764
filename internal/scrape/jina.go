package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/pkg/jina"
)

const jinaFetcherName = "jina"

// readerMarkers flag reader output that is really a challenge page.
var readerMarkers = append([]string{"enable javascript", "cloudflare"}, challengeMarkers...)

// JinaFetcher wraps a Jina Reader client as a Fetcher behind a circuit
// breaker, so a flaky reader is skipped instead of slowing every page.
type JinaFetcher struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewJinaFetcher creates a JinaFetcher. 3 consecutive failures open the
// circuit for 60s.
func NewJinaFetcher(client jina.Client) *JinaFetcher {
	return &JinaFetcher{
		client: client,
		breaker: resilience.NewCircuitBreaker(jinaFetcherName, resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     60 * time.Second,
			ShouldTrip:       resilience.TripsBreaker,
		}),
	}
}

func (j *JinaFetcher) Name() string { return jinaFetcherName }

// Supports returns true unless the circuit breaker is open.
func (j *JinaFetcher) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Fetch reads a URL through Jina Reader and validates the content.
func (j *JinaFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	return resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*Page, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.Wrap(resilience.ErrSourceUnavailable, "jina: response needs fallback")
		}
		url := resp.Data.URL
		if url == "" {
			url = targetURL
		}
		return &Page{
			URL:        url,
			Title:      resp.Data.Title,
			Text:       resp.Data.Content,
			StatusCode: resp.Code,
			Fetcher:    jinaFetcherName,
		}, nil
	})
}

// needsFallback reports whether a reader response is unusable: a non-200
// code, near-empty content, or a short challenge page.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}
	if len(content) >= 1000 {
		return false
	}
	lower := strings.ToLower(content)
	for _, sig := range readerMarkers {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
