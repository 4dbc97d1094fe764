package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

var fastRetry = WithRetry(resilience.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
})

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var fixedClock = WithClock(func() time.Time { return fixedNow })

func jobQuery(keywords ...string) model.Query {
	return model.NewJobQuery(model.JobQuery{Keywords: keywords})
}

func TestFetchBoards_PartialFailure(t *testing.T) {
	boards := []Board{{Company: "Acme", Slug: "acme"}, {Company: "Globex", Slug: "globex"}}

	out, err := fetchBoards(context.Background(), "test", boards, func(_ context.Context, b Board) ([]model.Candidate, error) {
		if b.Slug == "globex" {
			return nil, fmt.Errorf("boom")
		}
		return []model.Candidate{model.NewJobCandidate("test", 1, fixedNow, model.Job{Title: "Engineer"})}, nil
	})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestFetchBoards_AllFail(t *testing.T) {
	boards := []Board{{Slug: "a"}, {Slug: "b"}}

	_, err := fetchBoards(context.Background(), "test", boards, func(_ context.Context, b Board) ([]model.Candidate, error) {
		return nil, fmt.Errorf("%s down", b.Slug)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Contains(t, err.Error(), "b down")
}

func TestFetchBoards_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetchBoards(ctx, "test", []Board{{Slug: "a"}}, func(ctx context.Context, _ Board) ([]model.Candidate, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBase_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	b := newBase("test", srv.URL, []Option{fastRetry})
	var out []any
	require.NoError(t, b.getJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestBase_RateLimitNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := newBase("test", srv.URL, []Option{fastRetry})
	_, err := b.get(context.Background(), srv.URL, "application/json")
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestBase_DecodeErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	b := newBase("test", srv.URL, []Option{fastRetry})
	var out []any
	err := b.getJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrSourceUnavailable)
}

func TestBoardsFromConfig(t *testing.T) {
	got := BoardsFromConfig([]source.BoardConfig{{Company: "Acme", Slug: "acme"}})
	assert.Equal(t, []Board{{Company: "Acme", Slug: "acme"}}, got)
}
