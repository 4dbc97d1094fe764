// Package storesrc is the Tier 1 adapter over the structured job/contact index.
package storesrc

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
	"github.com/sells-group/jobsearch-cli/internal/store"
)

// Querier is the subset of store.Store the adapter reads from.
type Querier interface {
	QueryJobs(ctx context.Context, filter store.JobFilter) ([]model.Candidate, error)
	QueryContacts(ctx context.Context, filter store.ContactFilter) ([]model.Candidate, error)
}

// Adapter answers queries from previously indexed records.
type Adapter struct {
	name  string
	st    Querier
	limit int
}

// New creates a store adapter. limit caps rows per query; 0 uses the
// store's default.
func New(name string, st Querier, limit int) *Adapter {
	if name == "" {
		name = "store"
	}
	return &Adapter{name: name, st: st, limit: limit}
}

// Name implements source.Adapter.
func (a *Adapter) Name() string { return a.name }

// Tier implements source.Adapter.
func (a *Adapter) Tier() model.Source { return model.SourceStore }

// Supports implements source.Adapter.
func (a *Adapter) Supports(kind model.RecordKind) bool {
	return kind == model.KindJob || kind == model.KindContact
}

// Fetch implements source.Adapter.
func (a *Adapter) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	var (
		out []model.Candidate
		err error
	)
	switch {
	case q.Kind == model.KindJob && q.Jobs != nil:
		out, err = a.st.QueryJobs(ctx, store.JobFilter{
			Keywords: q.Jobs.Keywords,
			Location: q.Jobs.Location,
			WorkType: q.Jobs.WorkType,
			Limit:    a.limit,
		})
	case q.Kind == model.KindContact && q.Contacts != nil:
		out, err = a.st.QueryContacts(ctx, store.ContactFilter{
			Company:   q.Contacts.CompanyName,
			TitleHint: q.Contacts.TargetTitleHint,
			Limit:     a.limit,
		})
	default:
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: query index", a.name)
	}
	for i := range out {
		out[i].SourceID = a.name
		out[i].RawConfidence = source.ConfidenceStore
	}
	return out, nil
}
