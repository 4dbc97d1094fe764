package aggregate

import (
	"github.com/sells-group/jobsearch-cli/internal/dedupe"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/sanitize"
	"github.com/sells-group/jobsearch-cli/internal/validate"
)

// workingSet is the validated records of one request in arrival order, plus
// the counters reported in Stats. It is owned by a single request.
type workingSet struct {
	kind    model.RecordKind
	records []model.ValidatedRecord
	stats   model.Stats
}

func newWorkingSet(kind model.RecordKind) *workingSet {
	return &workingSet{
		kind:  kind,
		stats: model.Stats{Rejections: make(map[string]int)},
	}
}

func (w *workingSet) record(o ...model.Outcome) {
	w.stats.Outcomes = append(w.stats.Outcomes, o...)
}

// add sanitizes and validates candidates produced by tier. Rejected
// candidates are counted by reason and dropped.
func (w *workingSet) add(tier model.Source, cands []model.Candidate) {
	for _, c := range cands {
		w.stats.Candidates++
		if c.Kind != w.kind {
			w.reject(validate.ReasonKindMismatch)
			continue
		}
		c.Origin = tier

		clean, notes := sanitize.Candidate(c)
		vr, res := validate.Record(clean)
		if !res.Accepted {
			w.reject(res.Reason)
			continue
		}
		vr.Issues = append(vr.Issues, notes...)
		vr.CanonicalKey = dedupe.Key(vr.Candidate)
		w.records = append(w.records, vr)
		w.stats.Validated++
	}
}

func (w *workingSet) reject(r validate.Reason) {
	w.stats.Rejected++
	w.stats.Rejections[string(r)]++
}

// count is the number of distinct records collected so far.
func (w *workingSet) count() int {
	out, _ := dedupe.Dedupe(w.records)
	return len(out)
}

// final deduplicates and ranks the full set.
func (w *workingSet) final() ([]model.ValidatedRecord, int) {
	out, dropped := dedupe.Dedupe(w.records)
	dedupe.Rank(out)
	return out, dropped
}
