package remedy

import (
	"context"
	"time"
)

// Outcome is the result of one applier invocation.
type Outcome struct {
	// Changed reports whether host state was actually mutated. An applier
	// facing an already-compliant target returns Changed=false and no error.
	Changed bool

	// Message describes what was done, or what would be done in dry-run.
	Message string
}

// Applier remediates one kind of finding. Implementations must be idempotent:
// applying the same finding twice leaves the host in the same state and the
// second call reports Changed=false. When dryRun is set the applier must
// describe the change it would make without mutating anything.
type Applier interface {
	Apply(ctx context.Context, f Finding, dryRun bool) (Outcome, error)
}

// ApplyFunc adapts a function to the Applier interface.
type ApplyFunc func(ctx context.Context, f Finding, dryRun bool) (Outcome, error)

// Apply implements Applier.
func (fn ApplyFunc) Apply(ctx context.Context, f Finding, dryRun bool) (Outcome, error) {
	return fn(ctx, f, dryRun)
}

// WithTimeout wraps an applier so each invocation is bounded by d. The engine
// itself never times out appliers; callers opt in at registration time.
func WithTimeout(a Applier, d time.Duration) Applier {
	return ApplyFunc(func(ctx context.Context, f Finding, dryRun bool) (Outcome, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return a.Apply(ctx, f, dryRun)
	})
}
