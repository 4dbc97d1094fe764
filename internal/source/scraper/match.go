package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// matchesTitle reports whether any query keyword appears in the job title.
// Boards return every posting for a company, so this is the cheap filter run
// before any detail page is fetched.
func matchesTitle(title string, keywords []string) bool {
	lt := strings.ToLower(title)
	for _, k := range model.NormalizeKeywords(keywords) {
		if strings.Contains(lt, k) {
			return true
		}
	}
	return false
}

// matchesJob applies the query's location and work-type filters to a fully
// populated job. Keyword matching is done by matchesTitle.
func matchesJob(j *model.Job, q *model.JobQuery) bool {
	if q.WorkType != "" && q.WorkType != model.WorkTypeAny &&
		j.WorkType != "" && j.WorkType != q.WorkType {
		return false
	}
	if q.Location == "" || j.WorkType == model.WorkTypeRemote && q.WorkType == model.WorkTypeRemote {
		return true
	}
	return locationMatches(j.Location, q.Location)
}

// locationMatches reports whether the job location mentions the first part
// of the wanted location ("Austin, TX" matches "Austin").
func locationMatches(have, want string) bool {
	want = model.NormalizeLocation(want)
	if want == "" {
		return true
	}
	city, _, _ := strings.Cut(want, ",")
	return strings.Contains(model.NormalizeLocation(have), strings.TrimSpace(city))
}

// inferWorkType guesses remote/hybrid/onsite from free text. Returns "" when
// nothing says.
func inferWorkType(texts ...string) model.WorkType {
	blob := strings.ToLower(strings.Join(texts, " "))
	switch {
	case strings.Contains(blob, "hybrid"):
		return model.WorkTypeHybrid
	case strings.Contains(blob, "remote"), strings.Contains(blob, "work from home"), strings.Contains(blob, "wfh"):
		return model.WorkTypeRemote
	case strings.Contains(blob, "on-site"), strings.Contains(blob, "onsite"), strings.Contains(blob, "in office"), strings.Contains(blob, "in-office"):
		return model.WorkTypeOnsite
	}
	return ""
}

// parseWorkType maps provider workplace labels onto model.WorkType.
func parseWorkType(s string) model.WorkType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote":
		return model.WorkTypeRemote
	case "hybrid":
		return model.WorkTypeHybrid
	case "onsite", "on-site", "on_site", "office":
		return model.WorkTypeOnsite
	}
	return ""
}

// htmlText flattens an HTML fragment to single-spaced text.
func htmlText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return cleanText(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanText(fragment)
	}
	doc.Find("script, style").Remove()
	return cleanText(doc.Text())
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// labeledLocation extracts the text after a "Location:" label, up to the end
// of the line.
func labeledLocation(s string) string {
	low := strings.ToLower(s)
	for _, lab := range []string{"job location:", "locations:", "location:"} {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		rest := s[i+len(lab):]
		for _, cut := range []string{"\n", "\r", " | ", " \u00b7 "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		if rest = cleanText(rest); rest != "" && len(rest) <= 80 {
			return rest
		}
	}
	return ""
}
