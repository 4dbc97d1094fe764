package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
	"github.com/sells-group/jobsearch-cli/pkg/jina"
)

type mockJina struct {
	mock.Mock
}

func (m *mockJina) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	resp, _ := args.Get(0).(*jina.ReadResponse)
	return resp, args.Error(1)
}

func (m *mockJina) Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	resp, _ := args.Get(0).(*jina.SearchResponse)
	return resp, args.Error(1)
}

func TestJinaJobs_Fetch(t *testing.T) {
	client := &mockJina{}
	client.On("Search", mock.Anything, "engineer jobs").Return(&jina.SearchResponse{
		Code: 200,
		Data: []jina.SearchResult{
			{
				Title:   "Senior Go Engineer - Acme Corp | LinkedIn",
				URL:     "https://www.linkedin.com/jobs/view/1",
				Content: "Location: Remote (US)\nWe are hiring remote engineers.",
				Date:    "2024-05-01",
			},
			{
				Title: "Marketing Manager | Careers",
				URL:   "https://careers.acme.com/jobs/9",
			},
			{
				Title:       "Go Engineer | Careers",
				URL:         "https://careers.globex.com/jobs/2",
				Description: "Join our onsite team in our Austin, TX office.",
			},
		},
	}, nil)

	a := NewJinaJobs("", client, 0).WithClock(func() time.Time { return fixedNow })
	assert.Equal(t, source.ProviderJinaJobs, a.Name())
	assert.Equal(t, defaultSearchCount, a.count)
	assert.True(t, a.Supports(model.KindJob))
	assert.False(t, a.Supports(model.KindContact))

	out, err := a.Fetch(context.Background(), jobQuery("Engineer"))
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, source.ConfidenceWebSearch, first.RawConfidence)
	assert.Equal(t, fixedNow, first.FetchedAt)
	assert.Equal(t, "Senior Go Engineer", first.Job.Title)
	assert.Equal(t, "Acme Corp", first.Job.Company)
	assert.Equal(t, "Remote (US)", first.Job.Location)
	assert.Equal(t, model.WorkTypeRemote, first.Job.WorkType)
	require.NotNil(t, first.Job.PostedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *first.Job.PostedAt)

	second := out[1]
	assert.Equal(t, "Go Engineer", second.Job.Title)
	assert.Equal(t, "Globex", second.Job.Company)
	assert.Equal(t, model.WorkTypeOnsite, second.Job.WorkType)
	assert.Equal(t, "Join our onsite team in our Austin, TX office.", second.Job.Description)
	client.AssertExpectations(t)
}

func TestJinaJobs_RemoteWithoutLocation(t *testing.T) {
	client := &mockJina{}
	client.On("Search", mock.Anything, "engineer jobs remote").Return(&jina.SearchResponse{
		Data: []jina.SearchResult{{
			Title:   "Staff Engineer at Initech",
			URL:     "https://initech.io/careers/staff",
			Content: "This is a fully remote position.",
		}},
	}, nil)

	a := NewJinaJobs("web_jobs", client, 5)
	out, err := a.Fetch(context.Background(), model.NewJobQuery(model.JobQuery{
		Keywords: []string{"engineer"},
		WorkType: model.WorkTypeRemote,
	}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "web_jobs", out[0].SourceID)
	assert.Equal(t, "Initech", out[0].Job.Company)
	assert.Equal(t, "Remote", out[0].Job.Location)
}

func TestJinaJobs_SearchError(t *testing.T) {
	client := &mockJina{}
	client.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))

	_, err := NewJinaJobs("", client, 0).Fetch(context.Background(), jobQuery("engineer"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jina_jobs: search")
}

func TestSearchQuery(t *testing.T) {
	q := &model.JobQuery{
		Keywords: []string{"Go", "backend", "go"},
		Location: "Austin, TX",
		WorkType: model.WorkTypeHybrid,
	}
	assert.Equal(t, "backend go jobs in Austin, TX hybrid", searchQuery(q))
}

func TestSplitTitle(t *testing.T) {
	assert.Equal(t, []string{"Go Engineer", "Acme", "LinkedIn"}, splitTitle("Go Engineer - Acme | LinkedIn"))
	assert.Equal(t, []string{"Go Engineer", "Acme"}, splitTitle("Go Engineer at Acme"))
	assert.Equal(t, []string{"Go Engineer", "Acme"}, splitTitle("Go Engineer \u2013 Acme"))
	assert.Empty(t, splitTitle("  "))
}

func TestCompanyFromHost(t *testing.T) {
	assert.Equal(t, "Acme", companyFromHost("https://careers.acme.com/x"))
	assert.Equal(t, "Globex", companyFromHost("https://globex.io"))
	assert.Equal(t, "", companyFromHost("localhost"))
	assert.Equal(t, "", companyFromHost("::bad"))
}
