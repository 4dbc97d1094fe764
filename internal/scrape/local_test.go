package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

func serveHTML(t *testing.T, status int, header http.Header, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range header {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalFetcher_ExtractsText(t *testing.T) {
	srv := serveHTML(t, 200, nil, `<html><head><title> Acme Corp </title></head>
<body><nav>Menu</nav><h1>Welcome</h1><p>We build great products &amp; services.</p>
<ul><li>Jane Doe</li><li>John Roe</li></ul>
<footer>Copyright 2024</footer></body></html>`)

	f := NewLocalFetcher()
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "local_http", page.Fetcher)
	assert.Equal(t, "Acme Corp", page.Title)
	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.Text, "Welcome")
	assert.Contains(t, page.Text, "great products & services.")
	assert.Contains(t, page.Text, "Jane Doe\nJohn Roe")
	assert.NotContains(t, page.Text, "Menu")
	assert.NotContains(t, page.Text, "Copyright 2024")
	assert.Contains(t, page.HTML, "<nav>Menu</nav>")
}

func TestLocalFetcher_Blocked(t *testing.T) {
	srv := serveHTML(t, 403, http.Header{"Cf-Ray": {"abc123"}}, `<html><body>Access denied</body></html>`)

	_, err := NewLocalFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked (cloudflare)")
	assert.ErrorIs(t, err, resilience.ErrSourceUnavailable)
}

func TestLocalFetcher_Captcha(t *testing.T) {
	srv := serveHTML(t, 200, nil, `<html><body>Please complete the reCAPTCHA to continue</body></html>`)

	_, err := NewLocalFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked (captcha)")
}

func TestLocalFetcher_EmptyBody(t *testing.T) {
	srv := serveHTML(t, 200, nil, `<html></html>`)

	_, err := NewLocalFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLocalFetcher_HTTP404(t *testing.T) {
	srv := serveHTML(t, 404, nil, `<html><body>Not found page with lots of content here to exceed the minimum size threshold for pages</body></html>`)

	_, err := NewLocalFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.True(t, resilience.IsFallbackWorthy(err))
}

func TestLocalFetcher_RateLimited(t *testing.T) {
	srv := serveHTML(t, 429, http.Header{"Retry-After": {"5"}}, strings.Repeat("slow down ", 20))

	_, err := NewLocalFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))
}

func TestLocalFetcher_NameSupports(t *testing.T) {
	f := NewLocalFetcher()
	assert.Equal(t, "local_http", f.Name())
	assert.True(t, f.Supports("https://example.com"))
}

func TestExtractText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head><style>body{color:red}</style></head>
<body><script>alert('hi')</script><h1>Hello</h1><p>World &amp;   friends</p><div>a<br>b</div></body></html>`))
	require.NoError(t, err)

	text := ExtractText(doc)
	assert.Equal(t, "Hello\nWorld & friends\na\nb", text)
}
