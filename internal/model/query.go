package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// ErrMalformedQuery is returned when a query is missing required fields.
var ErrMalformedQuery = eris.New("malformed query")

// JobQuery searches for job postings.
type JobQuery struct {
	Keywords      []string `json:"keywords"`
	Location      string   `json:"location,omitempty"`
	WorkType      WorkType `json:"work_type,omitempty"`
	MaxResults    int      `json:"max_results,omitempty"`
	MinAcceptable int      `json:"min_acceptable,omitempty"`
}

// ContactQuery searches for people at a company.
type ContactQuery struct {
	CompanyName        string `json:"company_name"`
	CompanyWebsite     string `json:"company_website,omitempty"`
	LinkedInCompanyURL string `json:"linkedin_company_url,omitempty"`
	TargetTitleHint    string `json:"target_title_hint,omitempty"`
	MaxResults         int    `json:"max_results,omitempty"`
	MinAcceptable      int    `json:"min_acceptable,omitempty"`
}

// Query is an aggregation request. Exactly one of Jobs or Contacts is set,
// matching Kind.
type Query struct {
	Kind     RecordKind    `json:"kind"`
	Jobs     *JobQuery     `json:"jobs,omitempty"`
	Contacts *ContactQuery `json:"contacts,omitempty"`
}

// NewJobQuery wraps q in a Query.
func NewJobQuery(q JobQuery) Query {
	return Query{Kind: KindJob, Jobs: &q}
}

// NewContactQuery wraps q in a Query.
func NewContactQuery(q ContactQuery) Query {
	return Query{Kind: KindContact, Contacts: &q}
}

// Validate checks the query for required fields. All failures wrap
// ErrMalformedQuery.
func (q Query) Validate() error {
	switch q.Kind {
	case KindJob:
		if q.Jobs == nil {
			return eris.Wrap(ErrMalformedQuery, "job query body missing")
		}
		if len(NormalizeKeywords(q.Jobs.Keywords)) == 0 {
			return eris.Wrap(ErrMalformedQuery, "at least one keyword is required")
		}
		if !q.Jobs.WorkType.Valid() {
			return eris.Wrapf(ErrMalformedQuery, "unknown work type %q", q.Jobs.WorkType)
		}
		if q.Jobs.MaxResults < 0 || q.Jobs.MinAcceptable < 0 {
			return eris.Wrap(ErrMalformedQuery, "limits must not be negative")
		}
	case KindContact:
		if q.Contacts == nil {
			return eris.Wrap(ErrMalformedQuery, "contact query body missing")
		}
		if strings.TrimSpace(q.Contacts.CompanyName) == "" {
			return eris.Wrap(ErrMalformedQuery, "company name is required")
		}
		if q.Contacts.MaxResults < 0 || q.Contacts.MinAcceptable < 0 {
			return eris.Wrap(ErrMalformedQuery, "limits must not be negative")
		}
	default:
		return eris.Wrapf(ErrMalformedQuery, "unknown query kind %q", q.Kind)
	}
	return nil
}

// Limit returns the requested result cap, or def when unset.
func (q Query) Limit(def int) int {
	var n int
	switch {
	case q.Jobs != nil:
		n = q.Jobs.MaxResults
	case q.Contacts != nil:
		n = q.Contacts.MaxResults
	}
	if n <= 0 {
		return def
	}
	return n
}

// MinAcceptable returns the sufficiency threshold, or def when unset.
func (q Query) MinAcceptable(def int) int {
	var n int
	switch {
	case q.Jobs != nil:
		n = q.Jobs.MinAcceptable
	case q.Contacts != nil:
		n = q.Contacts.MinAcceptable
	}
	if n <= 0 {
		return def
	}
	return n
}

// Fingerprint returns a stable hash of the query's semantic fields. Keyword
// order, case, and duplicates do not change it; neither do result limits.
func (q Query) Fingerprint() string {
	var b strings.Builder
	b.WriteString(string(q.Kind))
	switch {
	case q.Jobs != nil:
		wt := q.Jobs.WorkType
		if wt == "" {
			wt = WorkTypeAny
		}
		b.WriteString("|k=")
		b.WriteString(strings.Join(NormalizeKeywords(q.Jobs.Keywords), ","))
		b.WriteString("|l=")
		b.WriteString(NormalizeLocation(q.Jobs.Location))
		b.WriteString("|w=")
		b.WriteString(string(wt))
	case q.Contacts != nil:
		b.WriteString("|c=")
		b.WriteString(foldSpace(q.Contacts.CompanyName))
		b.WriteString("|h=")
		b.WriteString(websiteHost(q.Contacts.CompanyWebsite))
		b.WriteString("|li=")
		b.WriteString(strings.TrimRight(strings.ToLower(strings.TrimSpace(q.Contacts.LinkedInCompanyURL)), "/"))
		b.WriteString("|t=")
		b.WriteString(foldSpace(q.Contacts.TargetTitleHint))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// NormalizeKeywords lower-cases, trims, de-duplicates, and sorts keywords.
// Blank entries are dropped.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = foldSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeLocation folds case and whitespace and trims each comma-separated
// part, so "Toronto,ON" and " toronto, on " compare equal.
func NormalizeLocation(loc string) string {
	parts := strings.Split(loc, ",")
	out := parts[:0]
	for _, p := range parts {
		p = foldSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func foldSpace(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func websiteHost(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
