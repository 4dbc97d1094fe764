package aifallback

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/cost"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type mockCompleter struct {
	mock.Mock
	estimate float64
}

func (m *mockCompleter) Provider() string { return "mock" }
func (m *mockCompleter) Model() string    { return "mock-1" }

func (m *mockCompleter) Estimate(_, _ int64) float64 { return m.estimate }

func (m *mockCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*Completion)
	return resp, args.Error(1)
}

func jobQuery() model.Query {
	return model.NewJobQuery(model.JobQuery{
		Keywords: []string{"Go", "backend"},
		Location: "Austin, TX",
		WorkType: model.WorkTypeRemote,
	})
}

const jobsReply = "Here you go:\n```json\n" + `[
  {"title": "Senior Go Engineer", "company": "Acme", "location": "Remote", "url": "https://acme.com/jobs/1",
   "description": "Build services. Ship often.", "salary": "$150k-$180k", "salary_min": "$150,000",
   "salary_max": 180000, "posted_at": "2024-05-20", "work_type": "Remote", "source": "acme.com"},
  {"title": "Backend Engineer", "company": "Globex", "location": "Austin, TX", "url": "https://globex.com/careers/2",
   "description": "Own the API.", "posted_at": "yesterday", "work_type": "sometimes"}
]` + "\n```"

func TestAdapter_FetchJobs(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return req.System == jobSystem &&
			req.MaxTokens == defaultMaxTokens &&
			containsAll(req.Prompt, "backend, go", "Austin, TX", "remote")
	})).Return(&Completion{
		Text: jobsReply, Model: "mock-1", InputTokens: 300, OutputTokens: 400, CostUSD: 0.01,
	}, nil)

	a := New("", c, WithClock(func() time.Time { return fixedNow }))
	assert.Equal(t, "mock", a.Name())
	assert.Equal(t, model.SourceAIFallback, a.Tier())
	assert.True(t, a.Supports(model.KindJob))
	assert.True(t, a.Supports(model.KindContact))

	tracker := &cost.Tracker{}
	ctx := cost.WithTracker(context.Background(), tracker)

	got, err := a.Fetch(ctx, jobQuery())
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, model.KindJob, first.Kind)
	assert.Equal(t, "mock", first.SourceID)
	assert.Equal(t, source.ConfidenceAIFallback, first.RawConfidence)
	assert.Equal(t, fixedNow, first.FetchedAt)
	assert.Equal(t, "Senior Go Engineer", first.Job.Title)
	assert.Equal(t, "$150k-$180k", first.Job.Salary)
	assert.Equal(t, int64(150000), first.Job.SalaryMin)
	assert.Equal(t, int64(180000), first.Job.SalaryMax)
	require.NotNil(t, first.Job.PostedAt)
	assert.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), *first.Job.PostedAt)
	assert.Equal(t, model.WorkTypeRemote, first.Job.WorkType)

	second := got[1]
	assert.Nil(t, second.Job.PostedAt)
	assert.Equal(t, model.WorkType(""), second.Job.WorkType)

	assert.InDelta(t, 0.01, tracker.Total(), 1e-9)
	require.Len(t, tracker.Entries(), 1)
	assert.Equal(t, "mock", tracker.Entries()[0].Provider)
	c.AssertExpectations(t)
}

func TestAdapter_FetchContacts(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return req.System == contactSystem && req.Kind == model.KindContact &&
			containsAll(req.Prompt, `"Acme Corp"`, "acme.com", "engineering") &&
			len(req.Domains) == 2 && req.Domains[0] == "acme.com" && req.Domains[1] == "linkedin.com"
	})).Return(&Completion{
		Text: `[{"name": "Jane Doe", "title": "VP Engineering", "email": "jane@acme.com"},
		        {"name": "John Roe", "title": "CTO", "linkedin_url": "https://linkedin.com/in/johnroe"}]`,
	}, nil)

	q := model.NewContactQuery(model.ContactQuery{
		CompanyName:     "Acme Corp",
		CompanyWebsite:  "acme.com",
		TargetTitleHint: "engineering",
	})
	got, err := New("claude", c).Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "claude", got[0].SourceID)
	assert.Equal(t, "Jane Doe", got[0].Contact.Name)
	assert.Equal(t, "Acme Corp", got[0].Contact.Company)
	assert.Equal(t, "https://linkedin.com/in/johnroe", got[1].Contact.LinkedInURL)
}

func TestAdapter_CapsAtLimit(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return(&Completion{
		Text: `[{"name":"A B"},{"name":"C D"},{"name":"E F"}]`,
	}, nil)

	q := model.NewContactQuery(model.ContactQuery{CompanyName: "Acme", MaxResults: 2})
	got, err := New("", c).Fetch(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAdapter_CostCeiling(t *testing.T) {
	c := &mockCompleter{estimate: 0.50}

	a := New("", c, WithMaxCost(0.10))
	_, err := a.Fetch(context.Background(), jobQuery())
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "exceeds ceiling")
	c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestAdapter_UnderCeiling(t *testing.T) {
	c := &mockCompleter{estimate: 0.01}
	c.On("Complete", mock.Anything, mock.Anything).Return(&Completion{Text: "[]"}, nil)

	got, err := New("", c, WithMaxCost(0.10)).Fetch(context.Background(), jobQuery())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAdapter_UnparseableReply(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return(&Completion{Text: "I could not find any postings."}, nil)

	_, err := New("", c).Fetch(context.Background(), jobQuery())
	assert.ErrorIs(t, err, resilience.ErrSourceUnavailable)
}

func TestAdapter_CompleterError(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return(nil, resilience.NewRateLimitError("mock", nil))

	_, err := New("", c).Fetch(context.Background(), jobQuery())
	assert.True(t, resilience.IsRateLimited(err))
}

func TestAdapter_MalformedQuery(t *testing.T) {
	c := &mockCompleter{}
	_, err := New("", c).Fetch(context.Background(), model.Query{Kind: model.KindJob})
	assert.ErrorIs(t, err, model.ErrMalformedQuery)
	c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestWithMaxTokens(t *testing.T) {
	c := &mockCompleter{}
	assert.Equal(t, int64(1000), New("", c, WithMaxTokens(1000)).maxTokens)
	assert.Equal(t, int64(defaultMaxTokens), New("", c, WithMaxTokens(0)).maxTokens)
}

func TestCleanJSONArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `[1,2]`, `[1,2]`},
		{"json fence", "```json\n[1]\n```", `[1]`},
		{"plain fence", "```\n[2]\n```", `[2]`},
		{"prose around", "Sure! [3] Hope that helps.", `[3]`},
		{"nested", `[{"a":[1]}]`, `[{"a":[1]}]`},
		{"no array", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONArray(tt.in))
		})
	}
}

func TestParseDate(t *testing.T) {
	got, ok := parseDate("2024-05-20T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())

	_, ok = parseDate("last week")
	assert.False(t, ok)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestContactDomains(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"acme.com", []string{"acme.com", "linkedin.com"}},
		{"https://www.Acme.com/about", []string{"acme.com", "linkedin.com"}},
		{"http://careers.globex.io", []string{"careers.globex.io", "linkedin.com"}},
		{"://", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contactDomains(tt.in), tt.in)
	}
}
