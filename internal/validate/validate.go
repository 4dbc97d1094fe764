// Package validate rejects structurally invalid or placeholder records and
// scores the ones that pass.
package validate

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// Reason is a stable rejection code.
type Reason string

const (
	ReasonKindMismatch       Reason = "kind_mismatch"
	ReasonTitleMissing       Reason = "title_missing"
	ReasonTitleListing       Reason = "title_listing"
	ReasonCompanyMissing     Reason = "company_missing"
	ReasonCompanyPlaceholder Reason = "company_placeholder"
	ReasonURLMissing         Reason = "url_missing"
	ReasonURLInvalid         Reason = "url_invalid"
	ReasonURLListing         Reason = "url_listing"
	ReasonLocationMissing    Reason = "location_missing"
	ReasonDescriptionShort   Reason = "description_short"
	ReasonNameMissing        Reason = "name_missing"
	ReasonNamePlaceholder    Reason = "name_placeholder"
	ReasonEmailFormat        Reason = "email_format"
	ReasonEmailDisposable    Reason = "email_disposable"
	ReasonEmailPlaceholder   Reason = "email_placeholder"
)

// Minimum field lengths, in runes.
const (
	MinTitleLen       = 5
	MinCompanyLen     = 2
	MinLocationLen    = 3
	MinDescriptionLen = 50
	MinNameLen        = 2
)

// Result is the outcome of validating one candidate. A rejected result has
// Accepted false, a Reason, and zero Confidence.
type Result struct {
	Accepted   bool
	Reason     Reason
	Confidence int
	Issues     []string
}

var listingTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\d[\d,.]*\+?\s+(?:new\s+)?(?:jobs?|positions?|openings?|vacancies|roles|opportunities)\b`),
	regexp.MustCompile(`(?i)\bsearch\s+results\b`),
	regexp.MustCompile(`(?i)^(?:browse|find|search)\s+(?:all\s+)?jobs\b`),
	regexp.MustCompile(`(?i)^jobs?\s+(?:in|near)\s+`),
}

var placeholderCompanies = map[string]bool{
	"unknown":         true,
	"confidential":    true,
	"n/a":             true,
	"na":              true,
	"undisclosed":     true,
	"not specified":   true,
	"not disclosed":   true,
	"company name":    true,
	"staffing agency": true,
	"hiring company":  true,
	"employer":        true,
	"anonymous":       true,
	"private":         true,
	"various":         true,
	"tbd":             true,
	"none":            true,
	"null":            true,
}

var placeholderNames = map[string]bool{
	"unknown":    true,
	"n/a":        true,
	"na":         true,
	"contact":    true,
	"team":       true,
	"admin":      true,
	"null":       true,
	"none":       true,
	"name":       true,
	"your name":  true,
	"first last": true,
}

var listingQueryKeys = []string{"q", "query", "keywords", "keyword", "search", "searchterm"}

// Record validates c and, when it passes, returns it as a ValidatedRecord
// with Confidence and Issues set. CanonicalKey is left empty.
func Record(c model.Candidate) (model.ValidatedRecord, Result) {
	var res Result
	out := c.Clone()
	switch {
	case out.Kind == model.KindJob && out.Job != nil:
		res = Job(out.Job)
	case out.Kind == model.KindContact && out.Contact != nil:
		res = Contact(out.Contact)
	default:
		res = reject(ReasonKindMismatch)
	}
	if !res.Accepted {
		return model.ValidatedRecord{}, res
	}
	return model.ValidatedRecord{
		Candidate:  out,
		Confidence: res.Confidence,
		Issues:     res.Issues,
	}, res
}

// Job applies the job rules. Every rule is independently sufficient to
// reject.
func Job(j *model.Job) Result {
	title := strings.TrimSpace(j.Title)
	switch {
	case runeLen(title) < MinTitleLen:
		return reject(ReasonTitleMissing)
	case isListingTitle(title):
		return reject(ReasonTitleListing)
	}

	company := strings.TrimSpace(j.Company)
	switch {
	case runeLen(company) < MinCompanyLen:
		return reject(ReasonCompanyMissing)
	case isPlaceholderCompany(company):
		return reject(ReasonCompanyPlaceholder)
	}

	if strings.TrimSpace(j.URL) == "" {
		return reject(ReasonURLMissing)
	}
	u, err := url.Parse(j.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return reject(ReasonURLInvalid)
	}
	if isListingURL(u) {
		return reject(ReasonURLListing)
	}

	if runeLen(strings.TrimSpace(j.Location)) < MinLocationLen {
		return reject(ReasonLocationMissing)
	}
	if runeLen(strings.TrimSpace(j.Description)) < MinDescriptionLen {
		return reject(ReasonDescriptionShort)
	}

	return Result{
		Accepted:   true,
		Confidence: Score(JobWeights, jobFields(j), 0),
	}
}

// Contact applies the contact rules. An invalid email rejects; a role
// mailbox is kept with a penalty. A LinkedIn URL that is not a linkedin.com
// address is dropped with an issue.
func Contact(c *model.Contact) Result {
	name := strings.TrimSpace(c.Name)
	if runeLen(name) < MinNameLen {
		return reject(ReasonNameMissing)
	}
	if placeholderNames[strings.ToLower(name)] {
		return reject(ReasonNamePlaceholder)
	}

	var issues []string
	penalty := 0
	if c.Email != "" {
		v := CheckEmail(c.Email)
		if !v.Valid {
			return reject(v.Reason)
		}
		if v.RoleBased {
			issues = append(issues, "email is a shared role mailbox")
			penalty = RoleEmailPenalty
		}
	}

	if c.LinkedInURL != "" && !isLinkedInURL(c.LinkedInURL) {
		issues = append(issues, "linkedin_url dropped: not a linkedin.com address")
		c.LinkedInURL = ""
	}

	return Result{
		Accepted:   true,
		Confidence: Score(ContactWeights, contactFields(c), penalty),
		Issues:     issues,
	}
}

func reject(r Reason) Result {
	return Result{Reason: r}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func isListingTitle(title string) bool {
	for _, re := range listingTitlePatterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

func isPlaceholderCompany(company string) bool {
	c := strings.ToLower(strings.Trim(company, " .,-()[]"))
	if placeholderCompanies[c] {
		return true
	}
	return strings.Contains(c, "confidential") || strings.Contains(c, "undisclosed")
}

func isListingURL(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	if strings.Contains(path, "/browse/") || strings.Contains(path, "/jobsearch") ||
		strings.HasSuffix(path, "/search") || strings.Contains(path, "/search/") {
		return true
	}
	q := u.Query()
	for _, k := range listingQueryKeys {
		if _, ok := q[k]; ok {
			return true
		}
	}
	return false
}

func isLinkedInURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}
