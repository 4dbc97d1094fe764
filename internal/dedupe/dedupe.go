// Package dedupe collapses validated records that share a canonical identity
// and ranks the survivors.
package dedupe

import (
	"sort"
	"strings"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/sanitize"
)

// Key returns the canonical identity of a record: the sanitized URL for a
// job; for a contact, the lower-case email if present, else the lower-case
// name with whitespace collapsed. Records without a usable identity return
// "".
func Key(c model.Candidate) string {
	switch c.Kind {
	case model.KindJob:
		if c.Job == nil {
			return ""
		}
		u, ok := sanitize.URL(c.Job.URL)
		if !ok {
			return ""
		}
		return "job:" + u
	case model.KindContact:
		if c.Contact == nil {
			return ""
		}
		if email := strings.ToLower(strings.TrimSpace(c.Contact.Email)); email != "" {
			return "contact:email:" + email
		}
		name := strings.Join(strings.Fields(strings.ToLower(c.Contact.Name)), " ")
		if name == "" {
			return ""
		}
		return "contact:name:" + name
	}
	return ""
}

// Dedupe returns one record per canonical key, keeping the higher-confidence
// record and the first one seen on a tie. Output order follows the first
// appearance of each key. Records with an empty CanonicalKey get one from
// Key. The second return value is the number of records dropped.
func Dedupe(records []model.ValidatedRecord) ([]model.ValidatedRecord, int) {
	out := make([]model.ValidatedRecord, 0, len(records))
	index := make(map[string]int, len(records))
	dropped := 0
	for _, r := range records {
		if r.CanonicalKey == "" {
			r.CanonicalKey = Key(r.Candidate)
		}
		if r.CanonicalKey == "" {
			out = append(out, r)
			continue
		}
		i, seen := index[r.CanonicalKey]
		if !seen {
			index[r.CanonicalKey] = len(out)
			out = append(out, r)
			continue
		}
		dropped++
		if r.Confidence > out[i].Confidence {
			out[i] = r
		}
	}
	return out, dropped
}

// Rank sorts records by confidence descending, then FetchedAt descending.
// Exact ties keep their input order.
func Rank(records []model.ValidatedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.FetchedAt.After(b.FetchedAt)
	})
}
