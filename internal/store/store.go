package store

import (
	"context"
	"strings"

	"github.com/sells-group/jobsearch-cli/internal/dedupe"
	"github.com/sells-group/jobsearch-cli/internal/model"
)

// JobFilter selects indexed jobs. Keywords match title, company, or
// description (any keyword); Location is a substring match.
type JobFilter struct {
	Keywords []string       `json:"keywords"`
	Location string         `json:"location,omitempty"`
	WorkType model.WorkType `json:"work_type,omitempty"`
	Limit    int            `json:"limit,omitempty"`
}

// ContactFilter selects indexed contacts for one company. TitleHint, when
// set, is a substring match on the contact's title.
type ContactFilter struct {
	Company   string `json:"company"`
	TitleHint string `json:"title_hint,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the aggregation pipeline: the
// durable result cache and the structured job/contact index.
type Store interface {
	// Result cache
	GetCachedResults(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	SetCachedResults(ctx context.Context, entry model.CacheEntry) error
	DeleteCachedResults(ctx context.Context, fingerprint string) error
	DeleteExpiredResults(ctx context.Context) (int, error)

	// Structured index
	UpsertJobs(ctx context.Context, records []model.ValidatedRecord) (int, error)
	QueryJobs(ctx context.Context, filter JobFilter) ([]model.Candidate, error)
	UpsertContacts(ctx context.Context, records []model.ValidatedRecord) (int, error)
	QueryContacts(ctx context.Context, filter ContactFilter) ([]model.Candidate, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultQueryLimit = 50

func queryLimit(n int) int {
	if n <= 0 {
		return defaultQueryLimit
	}
	return n
}

func likePattern(s string) string {
	return "%" + s + "%"
}

// CompanyKey normalizes a company name for contact lookups.
func CompanyKey(company string) string {
	return strings.Join(strings.Fields(strings.ToLower(company)), " ")
}

// contactRowKey returns the per-company identity of a contact record. Records
// without a company or an identity are not indexed.
func contactRowKey(r model.ValidatedRecord) (string, bool) {
	if r.Kind != model.KindContact || r.Contact == nil || CompanyKey(r.Contact.Company) == "" {
		return "", false
	}
	key := r.CanonicalKey
	if key == "" {
		key = dedupe.Key(r.Candidate)
	}
	return key, key != ""
}
