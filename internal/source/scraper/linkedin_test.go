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

func TestLinkedInSearch_Fetch(t *testing.T) {
	client := &mockJina{}
	client.On("Search", mock.Anything, `"Acme" recruiter`).Return(&jina.SearchResponse{
		Data: []jina.SearchResult{
			{Title: "Jane Doe - Head of Talent - Acme | LinkedIn", URL: "https://www.linkedin.com/in/janedoe"},
			{Title: "Jane Doe - Head of Talent - Acme | LinkedIn", URL: "https://www.linkedin.com/in/janedoe"},
			{Title: "John Roe - Engineer - Globex | LinkedIn", URL: "https://www.linkedin.com/in/johnroe"},
			{Title: "Acme | LinkedIn", URL: "https://www.linkedin.com/company/acme"},
			{Title: "Sam Poe | LinkedIn", URL: "https://www.linkedin.com/in/sampoe", Description: "Recruiter at Acme since 2020"},
		},
	}, nil)

	l := NewLinkedInSearch("", client, 0).WithClock(func() time.Time { return fixedNow })
	assert.Equal(t, source.ProviderLinkedInSearch, l.Name())
	assert.True(t, l.Supports(model.KindContact))
	assert.False(t, l.Supports(model.KindJob))

	out, err := l.Fetch(context.Background(), model.NewContactQuery(model.ContactQuery{
		CompanyName:     "Acme",
		TargetTitleHint: "recruiter",
	}))
	require.NoError(t, err)
	require.Len(t, out, 2)

	jane := out[0]
	assert.Equal(t, source.ConfidenceWebSearch, jane.RawConfidence)
	assert.Equal(t, fixedNow, jane.FetchedAt)
	assert.Equal(t, "Jane Doe", jane.Contact.Name)
	assert.Equal(t, "Head of Talent", jane.Contact.Title)
	assert.Equal(t, "Acme", jane.Contact.Company)
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", jane.Contact.LinkedInURL)

	sam := out[1]
	assert.Equal(t, "Sam Poe", sam.Contact.Name)
	assert.Empty(t, sam.Contact.Title)
	client.AssertExpectations(t)
}

func TestLinkedInSearch_SearchError(t *testing.T) {
	client := &mockJina{}
	client.On("Search", mock.Anything, `"Acme"`).Return(nil, errors.New("boom"))

	_, err := NewLinkedInSearch("li", client, 3).Fetch(context.Background(), model.NewContactQuery(model.ContactQuery{CompanyName: "Acme"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "li: search")
}

func TestLinkedInSearch_IgnoresJobQuery(t *testing.T) {
	client := &mockJina{}
	out, err := NewLinkedInSearch("", client, 0).Fetch(context.Background(), jobQuery("engineer"))
	require.NoError(t, err)
	assert.Nil(t, out)
	client.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}
