package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

type fetchResult struct {
	cands []model.Candidate
	err   error
}

// timeout returns the per-call deadline for adapter name.
func (o *Orchestrator) timeout(name string) time.Duration {
	if d, ok := o.cfg.Timeouts[name]; ok && d > 0 {
		return d
	}
	return o.cfg.AdapterTimeout
}

// run invokes a through call. A staged adapter is unwrapped so that every
// stage is called under its own name, with its own cooldown, breaker,
// limiter and deadline; the fallback stage runs only when the preferred
// stage's error passes the stage's rule.
func (o *Orchestrator) run(ctx context.Context, a source.Adapter, q model.Query) ([]model.Candidate, []model.Outcome, error) {
	st, ok := a.(*source.Staged)
	if !ok || !st.Supports(q.Kind) {
		cands, out, err := o.call(ctx, a, q)
		return cands, []model.Outcome{out}, err
	}

	var outcomes []model.Outcome
	if st.Preferred.Supports(q.Kind) {
		cands, outs, err := o.run(ctx, st.Preferred, q)
		outcomes = outs
		if err == nil || st.Fallback == nil || ctx.Err() != nil || !st.FallsBack(err) {
			return cands, outcomes, err
		}
	}
	if st.Fallback == nil || !st.Fallback.Supports(q.Kind) {
		return nil, outcomes, nil
	}
	cands, outs, err := o.run(ctx, st.Fallback, q)
	return cands, append(outcomes, outs...), err
}

// call runs one adapter invocation: cooldown check, circuit breaker, rate
// limiter, then Fetch under a deadline. The call never outlives its deadline
// even when the adapter ignores cancellation. Every failure is folded into
// the returned Outcome and a failed call yields no candidates, partial or
// not. The error is nil for a skipped or successful call.
func (o *Orchestrator) call(ctx context.Context, a source.Adapter, q model.Query) ([]model.Candidate, model.Outcome, error) {
	name := a.Name()
	out := model.Outcome{Adapter: name, Tier: a.Tier()}

	if !a.Supports(q.Kind) {
		out.Status = model.OutcomeSkipped
		return nil, out, nil
	}

	if o.deps.Limits != nil {
		if until, cooling := o.deps.Limits.CooldownUntil(name); cooling {
			out.Status = model.OutcomeRateLimited
			out.Error = "cooling down until " + until.Format(time.RFC3339)
			o.logOutcome(out)
			return nil, out, eris.Wrapf(resilience.ErrRateLimited, "%s: cooling down", name)
		}
	}

	var breaker *resilience.CircuitBreaker
	if o.deps.Breakers != nil {
		breaker = o.deps.Breakers.Get(name)
		if err := breaker.Allow(); err != nil {
			out.Status = model.OutcomeCircuitOpen
			out.Error = err.Error()
			o.logOutcome(out)
			return nil, out, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout(name))
	defer cancel()

	start := time.Now()
	cands, err := o.fetch(callCtx, a, q)
	out.Duration = time.Since(start)

	if breaker != nil {
		breaker.Record(err)
	}
	if err != nil && resilience.IsRateLimited(err) && o.deps.Limits != nil {
		o.deps.Limits.Trip(name, resilience.RetryAfter(err))
	}

	out.Status = classify(err, callCtx)
	if err != nil {
		cands = nil
		out.Error = err.Error()
	}
	out.Count = len(cands)
	o.logOutcome(out)
	return cands, out, err
}

// fetch waits for the limiter and calls the adapter in its own goroutine so
// that an adapter stuck past its deadline is abandoned rather than awaited.
func (o *Orchestrator) fetch(ctx context.Context, a source.Adapter, q model.Query) ([]model.Candidate, error) {
	if o.deps.Limits != nil {
		if err := o.deps.Limits.Wait(ctx, a.Name()); err != nil {
			return nil, err
		}
	}

	done := make(chan fetchResult, 1)
	go func() {
		cands, err := a.Fetch(ctx, q)
		done <- fetchResult{cands: cands, err: err}
	}()

	select {
	case r := <-done:
		return r.cands, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// classify maps a call error to an outcome status. A deadline is reported as
// a timeout, distinct from an error.
func classify(err error, callCtx context.Context) model.OutcomeStatus {
	switch {
	case err == nil:
		return model.OutcomeOK
	case resilience.IsRateLimited(err):
		return model.OutcomeRateLimited
	case errors.Is(err, resilience.ErrCircuitOpen):
		return model.OutcomeCircuitOpen
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return model.OutcomeTimeout
	default:
		return model.OutcomeError
	}
}

func (o *Orchestrator) logOutcome(out model.Outcome) {
	fields := []zap.Field{
		zap.String("adapter", out.Adapter),
		zap.String("tier", string(out.Tier)),
		zap.String("outcome", string(out.Status)),
		zap.Int("count", out.Count),
		zap.Duration("duration", out.Duration),
	}
	if out.Error != "" {
		fields = append(fields, zap.String("error", out.Error))
	}

	switch out.Status {
	case model.OutcomeOK:
		zap.L().Debug("aggregate: adapter returned", fields...)
	case model.OutcomeTimeout:
		zap.L().Warn("aggregate: adapter timed out", fields...)
	case model.OutcomeRateLimited, model.OutcomeCircuitOpen:
		zap.L().Info("aggregate: adapter skipped", fields...)
	default:
		zap.L().Warn("aggregate: adapter failed", fields...)
	}
}
