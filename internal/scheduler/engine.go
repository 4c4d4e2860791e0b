package scheduler

import (
	"context"
	"time"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Result is the outcome of one generation run.
type Result struct {
	Status     dto.ScheduleStatus
	Index      *Index
	Outcome    *Outcome
	Candidates []dto.ScheduleCandidate
	Cap        int
	Duration   time.Duration
}

// Engine runs the index, enumerate and assemble pipeline under a search deadline.
type Engine struct {
	enumerator *Enumerator
	timeout    time.Duration
}

// NewEngine builds an engine. A zero timeout leaves the deadline to the caller's context.
func NewEngine(opts Options, timeout time.Duration) *Engine {
	return &Engine{enumerator: NewEnumerator(opts), timeout: timeout}
}

// Cap returns the configured result cap.
func (e *Engine) Cap() int {
	return e.enumerator.Options().MaxCandidates
}

// Run generates schedules for a resolved plan against the catalog.
func (e *Engine) Run(ctx context.Context, catalog *Catalog, plan *Plan) (*Result, error) {
	start := time.Now()
	result := &Result{Cap: e.Cap(), Outcome: &Outcome{}, Candidates: []dto.ScheduleCandidate{}}

	if plan.Empty() {
		result.Status = dto.ScheduleStatusEmpty
		result.Index = &Index{}
		result.Duration = time.Since(start)
		return result, nil
	}

	ix, err := catalog.Index(plan)
	if err != nil {
		return nil, err
	}
	result.Index = ix
	if ix.Infeasible() {
		result.Status = dto.ScheduleStatusInfeasible
		result.Duration = time.Since(start)
		return result, nil
	}

	searchCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	outcome, err := e.enumerator.Enumerate(searchCtx, ix)
	if err != nil {
		return nil, err
	}
	if outcome.TimedOut && len(outcome.Candidates) == 0 {
		return nil, appErrors.WithCause(appErrors.ErrSearchTimeout, context.DeadlineExceeded)
	}

	result.Outcome = outcome
	result.Candidates = Assemble(ix, outcome.Candidates)
	result.Duration = time.Since(start)

	switch {
	case outcome.TimedOut:
		result.Status = dto.ScheduleStatusPartial
	case outcome.Truncated:
		result.Status = dto.ScheduleStatusTruncated
	case len(outcome.Candidates) == 0:
		result.Status = dto.ScheduleStatusInfeasible
	default:
		result.Status = dto.ScheduleStatusOK
	}
	return result, nil
}

// Response renders the result for the API.
func (r *Result) Response(requestID, mode string) dto.GenerateScheduleResponse {
	resp := dto.GenerateScheduleResponse{
		RequestID:     requestID,
		Mode:          mode,
		Status:        r.Status,
		Infeasible:    r.Status == dto.ScheduleStatusInfeasible,
		Cap:           r.Cap,
		Count:         len(r.Candidates),
		Unschedulable: Unschedulable(r.Index),
		Candidates:    r.Candidates,
		Stats: dto.SearchStats{
			Components: r.Index.Size(),
			DurationMs: r.Duration.Milliseconds(),
		},
	}
	if r.Outcome != nil {
		resp.Truncated = r.Outcome.Truncated
		resp.TruncationReason = r.Outcome.Reason
		resp.Stats.NodesVisited = r.Outcome.NodesVisited
		resp.Stats.Workers = r.Outcome.Workers
	}
	return resp
}
