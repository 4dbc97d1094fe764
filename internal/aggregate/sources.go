package aggregate

import (
	"time"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

// SourceStatus describes one configured adapter.
type SourceStatus struct {
	Name          string       `json:"name"`
	Tier          model.Source `json:"tier"`
	Jobs          bool         `json:"jobs"`
	Contacts      bool         `json:"contacts"`
	Circuit       string       `json:"circuit"`
	CoolingDownTo *time.Time   `json:"cooling_down_until,omitempty"`
}

// Sources reports every adapter in tier order with its breaker and
// cooldown state.
func (o *Orchestrator) Sources() []SourceStatus {
	var adapters []source.Adapter
	if o.deps.Store != nil {
		adapters = append(adapters, o.deps.Store)
	}
	adapters = append(adapters, o.deps.Scrapers...)
	if o.deps.AI != nil {
		adapters = append(adapters, o.deps.AI)
	}
	adapters = stages(adapters)

	out := make([]SourceStatus, 0, len(adapters))
	for _, a := range adapters {
		st := SourceStatus{
			Name:     a.Name(),
			Tier:     a.Tier(),
			Jobs:     a.Supports(model.KindJob),
			Contacts: a.Supports(model.KindContact),
			Circuit:  "closed",
		}
		if o.deps.Breakers != nil {
			st.Circuit = o.deps.Breakers.Get(a.Name()).State().String()
		}
		if o.deps.Limits != nil {
			if until, ok := o.deps.Limits.CooldownUntil(a.Name()); ok {
				st.CoolingDownTo = &until
			}
		}
		out = append(out, st)
	}
	return out
}

// stages replaces every staged adapter with its stages, since breakers and
// cooldowns are kept per stage.
func stages(adapters []source.Adapter) []source.Adapter {
	var out []source.Adapter
	for _, a := range adapters {
		st, ok := a.(*source.Staged)
		if !ok {
			out = append(out, a)
			continue
		}
		out = append(out, stages([]source.Adapter{st.Preferred})...)
		if st.Fallback != nil {
			out = append(out, stages([]source.Adapter{st.Fallback})...)
		}
	}
	return out
}
