package remedy

import (
	"context"
	"fmt"
	"time"
)

// DetectionError marks a detector failure. It aborts the whole module
// invocation; no remediation is attempted (unlike per-item errors, which
// accumulate in the result).
type DetectionError struct {
	Module string
	Err    error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection failed for %s: %v", e.Module, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Engine executes batches of findings against a fixed applier registry.
// Execution is strictly sequential: appliers mutate host-global state
// (registry hives, the service control manager, firewall profiles) where
// concurrent writers are unsafe and callers may rely on finding order.
type Engine struct {
	registry *Registry
	observer Observer
}

// NewEngine creates an engine bound to a registry. A nil observer is
// replaced with NopObserver so the engine can always call it.
func NewEngine(registry *Registry, obs Observer) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("remedy: engine requires an applier registry")
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Engine{registry: registry, observer: obs}, nil
}

// Run processes findings in order and returns one Result. Semantics:
//
//   - An empty batch short-circuits to StatusSkipped without touching the
//     registry.
//   - A kind with no registered applier is recorded as a failed item and the
//     batch continues.
//   - In dry-run, appliers simulate; a successful simulation counts as
//     processed.
//   - Live applier errors are recorded per item and the batch continues;
//     one failing step never aborts the rest.
//   - Cancellation is checked between findings only, never mid-applier.
//     Unattempted findings appear in no count.
//
// There is no rollback: whatever subset already succeeded stays applied.
// Each finding is an independent unit of change.
func (e *Engine) Run(ctx context.Context, findings []Finding, dryRun bool) *Result {
	start := time.Now()
	res := &Result{
		ItemsDetected: len(findings),
		DryRun:        dryRun,
	}

	e.observer.BatchStarted(len(findings), dryRun)

	if len(findings) == 0 {
		res.Status = StatusSkipped
		res.Message = "nothing to do: no deviations detected"
		res.Duration = time.Since(start)
		e.observer.BatchFinished(res)
		return res
	}

	cancelled := false
	for _, f := range findings {
		if err := ctx.Err(); err != nil {
			cancelled = true
			res.Message = fmt.Sprintf("stopped early: %v", err)
			break
		}

		applier, ok := e.registry.Resolve(f.Kind)
		if !ok {
			err := fmt.Errorf("no applier registered for kind %q", f.Kind)
			res.ItemsFailed++
			res.Errors = append(res.Errors, ItemError{ID: f.ID, Message: err.Error()})
			e.observer.FindingApplied(f, Outcome{}, err)
			continue
		}

		out, err := applier.Apply(ctx, f, dryRun)
		e.observer.FindingApplied(f, out, err)
		if err != nil {
			res.ItemsFailed++
			res.Errors = append(res.Errors, ItemError{ID: f.ID, Message: err.Error()})
			continue
		}
		res.ItemsProcessed++
	}

	res.Status = deriveStatus(res.ItemsProcessed, res.ItemsFailed, cancelled)
	res.Duration = time.Since(start)
	e.observer.BatchFinished(res)
	return res
}
