package model

import "time"

// RecordKind identifies which variant a record or query carries.
type RecordKind string

const (
	KindJob     RecordKind = "job"
	KindContact RecordKind = "contact"
)

// Source identifies the tier that produced a record or satisfied a request.
type Source string

const (
	SourceNone       Source = "none"
	SourceCache      Source = "cache"
	SourceStore      Source = "store"
	SourceScrape     Source = "scrape"
	SourceAIFallback Source = "ai-fallback"
)

// Rank orders sources by tier. Unknown sources rank below SourceNone.
func (s Source) Rank() int {
	switch s {
	case SourceNone:
		return 0
	case SourceCache:
		return 1
	case SourceStore:
		return 2
	case SourceScrape:
		return 3
	case SourceAIFallback:
		return 4
	default:
		return -1
	}
}

// WorkType is the remote/hybrid/onsite filter of a job query.
type WorkType string

const (
	WorkTypeAny    WorkType = "any"
	WorkTypeRemote WorkType = "remote"
	WorkTypeHybrid WorkType = "hybrid"
	WorkTypeOnsite WorkType = "onsite"
)

// Valid reports whether w is a known work type. Empty is treated as any.
func (w WorkType) Valid() bool {
	switch w {
	case "", WorkTypeAny, WorkTypeRemote, WorkTypeHybrid, WorkTypeOnsite:
		return true
	}
	return false
}

// Job is a single job posting.
type Job struct {
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Salary      string     `json:"salary,omitempty"`
	SalaryMin   int64      `json:"salary_min,omitempty"`
	SalaryMax   int64      `json:"salary_max,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	WorkType    WorkType   `json:"work_type,omitempty"`
	Source      string     `json:"source,omitempty"` // board or site label, e.g. "greenhouse"
}

// HasSalary reports whether any salary information is present.
func (j *Job) HasSalary() bool {
	return j.Salary != "" || j.SalaryMin > 0 || j.SalaryMax > 0
}

// Contact is a person discovered at a company.
type Contact struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	Department  string `json:"department,omitempty"`
	Company     string `json:"company,omitempty"`
}

// Candidate is a raw record produced by a source adapter. Exactly one of
// Job or Contact is set, matching Kind.
type Candidate struct {
	Kind          RecordKind `json:"kind"`
	Job           *Job       `json:"job,omitempty"`
	Contact       *Contact   `json:"contact,omitempty"`
	SourceID      string     `json:"source_id"`
	RawConfidence int        `json:"raw_confidence"`
	FetchedAt     time.Time  `json:"fetched_at"`
	Origin        Source     `json:"origin,omitempty"`
}

// NewJobCandidate builds a job candidate.
func NewJobCandidate(sourceID string, rawConfidence int, fetchedAt time.Time, j Job) Candidate {
	return Candidate{
		Kind:          KindJob,
		Job:           &j,
		SourceID:      sourceID,
		RawConfidence: rawConfidence,
		FetchedAt:     fetchedAt,
	}
}

// NewContactCandidate builds a contact candidate.
func NewContactCandidate(sourceID string, rawConfidence int, fetchedAt time.Time, c Contact) Candidate {
	return Candidate{
		Kind:          KindContact,
		Contact:       &c,
		SourceID:      sourceID,
		RawConfidence: rawConfidence,
		FetchedAt:     fetchedAt,
	}
}

// Clone returns a deep copy so callers can mutate fields without touching
// the adapter's original record.
func (c Candidate) Clone() Candidate {
	out := c
	if c.Job != nil {
		j := *c.Job
		if c.Job.PostedAt != nil {
			t := *c.Job.PostedAt
			j.PostedAt = &t
		}
		out.Job = &j
	}
	if c.Contact != nil {
		ct := *c.Contact
		out.Contact = &ct
	}
	return out
}

// ValidatedRecord is a candidate that passed validation.
type ValidatedRecord struct {
	Candidate
	Confidence   int      `json:"confidence"`
	Issues       []string `json:"issues,omitempty"`
	CanonicalKey string   `json:"canonical_key"`
}
