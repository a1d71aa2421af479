package remedy

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeApplier tracks declared state per target so tests can assert
// idempotence and dry-run isolation.
type fakeApplier struct {
	state map[string]string // target ID -> applied value
	calls int
	fail  bool
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{state: make(map[string]string)}
}

func (a *fakeApplier) Apply(ctx context.Context, f Finding, dryRun bool) (Outcome, error) {
	a.calls++
	if a.fail {
		return Outcome{}, errors.New("simulated applier failure")
	}
	if a.state[f.ID] == f.Desired {
		return Outcome{Changed: false, Message: "already compliant"}, nil
	}
	if dryRun {
		return Outcome{Changed: false, Message: "would set " + f.ID + " = " + f.Desired}, nil
	}
	a.state[f.ID] = f.Desired
	return Outcome{Changed: true, Message: "set " + f.ID + " = " + f.Desired}, nil
}

func testFindings(n int, kind Kind) []Finding {
	findings := make([]Finding, 0, n)
	for i := 0; i < n; i++ {
		findings = append(findings, Finding{
			Kind:    kind,
			ID:      "target-" + string(rune('a'+i)),
			Desired: "1",
		})
	}
	return findings
}

func TestNewEngineRequiresRegistry(t *testing.T) {
	if _, err := NewEngine(nil, nil); err == nil {
		t.Fatal("expected error for nil registry")
	}
}

func TestRunEmptyBatchSkips(t *testing.T) {
	reg := NewRegistry()
	reg.Register(KindRegistryValue, newFakeApplier())
	eng, err := NewEngine(reg, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res := eng.Run(context.Background(), nil, false)

	if res.Status != StatusSkipped {
		t.Errorf("status = %s, want %s", res.Status, StatusSkipped)
	}
	if res.ItemsDetected != 0 || res.ItemsProcessed != 0 || res.ItemsFailed != 0 {
		t.Errorf("counts = %d/%d/%d, want all zero",
			res.ItemsDetected, res.ItemsProcessed, res.ItemsFailed)
	}
	if res.Message == "" {
		t.Error("expected a descriptive message for an empty batch")
	}
}

func TestRunAllSuccess(t *testing.T) {
	reg := NewRegistry()
	reg.Register(KindRegistryValue, newFakeApplier())
	eng, _ := NewEngine(reg, nil)

	res := eng.Run(context.Background(), testFindings(4, KindRegistryValue), false)

	if res.Status != StatusSuccess {
		t.Errorf("status = %s, want %s", res.Status, StatusSuccess)
	}
	if res.ItemsProcessed != 4 || res.ItemsFailed != 0 {
		t.Errorf("processed/failed = %d/%d, want 4/0", res.ItemsProcessed, res.ItemsFailed)
	}
}

func TestRunFirewallScenario(t *testing.T) {
	reg := NewRegistry()
	reg.Register(KindFirewallProfile, newFakeApplier())
	eng, _ := NewEngine(reg, nil)

	findings := []Finding{{
		Kind:    KindFirewallProfile,
		ID:      "Domain,Private,Public",
		Desired: "true",
	}}
	res := eng.Run(context.Background(), findings, false)

	if res.ItemsDetected != 1 || res.ItemsProcessed != 1 || res.ItemsFailed != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/1/0",
			res.ItemsDetected, res.ItemsProcessed, res.ItemsFailed)
	}
	if res.Status != StatusSuccess {
		t.Errorf("status = %s, want %s", res.Status, StatusSuccess)
	}
}

func TestRunUnknownKindOnly(t *testing.T) {
	eng, _ := NewEngine(NewRegistry(), nil)

	findings := []Finding{{Kind: "unknown-kind", ID: "mystery", Desired: "1"}}
	res := eng.Run(context.Background(), findings, false)

	if res.ItemsDetected != 1 || res.ItemsProcessed != 0 || res.ItemsFailed != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/0/1",
			res.ItemsDetected, res.ItemsProcessed, res.ItemsFailed)
	}
	if res.Status != StatusFailed {
		t.Errorf("status = %s, want %s", res.Status, StatusFailed)
	}
	if len(res.Errors) != 1 || res.Errors[0].ID != "mystery" {
		t.Errorf("errors = %+v, want one entry for mystery", res.Errors)
	}
}

func TestRunUnknownKindAmongResolvable(t *testing.T) {
	reg := NewRegistry()
	reg.Register(KindServiceState, newFakeApplier())
	eng, _ := NewEngine(reg, nil)

	findings := testFindings(3, KindServiceState)
	findings = append(findings, Finding{Kind: "bogus", ID: "bogus-target", Desired: "x"})
	res := eng.Run(context.Background(), findings, false)

	if res.ItemsFailed < 1 {
		t.Errorf("failed = %d, want >= 1", res.ItemsFailed)
	}
	if res.Status != StatusWarning && res.Status != StatusFailed {
		t.Errorf("status = %s, want warning or failed", res.Status)
	}
	found := false
	for _, e := range res.Errors {
		if e.ID == "bogus-target" {
			found = true
			if !strings.Contains(e.Message, "bogus") {
				t.Errorf("error message %q does not name the kind", e.Message)
			}
		}
	}
	if !found {
		t.Errorf("bogus-target missing from errors: %+v", res.Errors)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	good := newFakeApplier()
	bad := newFakeApplier()
	bad.fail = true

	reg := NewRegistry()
	reg.Register(KindRegistryValue, good)
	reg.Register(KindServiceState, bad)
	eng, _ := NewEngine(reg, nil)

	findings := []Finding{
		{Kind: KindRegistryValue, ID: "r1", Desired: "1"},
		{Kind: KindServiceState, ID: "s1", Desired: "stopped"},
		{Kind: KindRegistryValue, ID: "r2", Desired: "1"},
	}
	res := eng.Run(context.Background(), findings, false)

	if res.ItemsProcessed != 2 || res.ItemsFailed != 1 {
		t.Errorf("processed/failed = %d/%d, want 2/1", res.ItemsProcessed, res.ItemsFailed)
	}
	if res.Status != StatusWarning {
		t.Errorf("status = %s, want %s", res.Status, StatusWarning)
	}
	if good.calls != 2 {
		t.Errorf("good applier calls = %d, want 2 (batch must continue past failure)", good.calls)
	}
}

func TestRunAllFailures(t *testing.T) {
	bad := newFakeApplier()
	bad.fail = true
	reg := NewRegistry()
	reg.Register(KindRegistryValue, bad)
	eng, _ := NewEngine(reg, nil)

	res := eng.Run(context.Background(), testFindings(3, KindRegistryValue), false)

	if res.Status != StatusFailed {
		t.Errorf("status = %s, want %s", res.Status, StatusFailed)
	}
	if res.ItemsProcessed != 0 || res.ItemsFailed != 3 {
		t.Errorf("processed/failed = %d/%d, want 0/3", res.ItemsProcessed, res.ItemsFailed)
	}
}

func TestRunIdempotence(t *testing.T) {
	applier := newFakeApplier()
	reg := NewRegistry()
	reg.Register(KindRegistryValue, applier)
	eng, _ := NewEngine(reg, nil)

	findings := testFindings(3, KindRegistryValue)

	first := eng.Run(context.Background(), findings, false)
	if first.Status != StatusSuccess {
		t.Fatalf("first run status = %s, want %s", first.Status, StatusSuccess)
	}

	// Second pass over identical findings: every applier call must report
	// no change, and the engine still counts them as processed.
	var changes int
	obs := &countingObserver{onApplied: func(out Outcome, err error) {
		if err == nil && out.Changed {
			changes++
		}
	}}
	eng2, _ := NewEngine(reg, obs)
	second := eng2.Run(context.Background(), findings, false)

	if second.Status != StatusSuccess {
		t.Errorf("second run status = %s, want %s", second.Status, StatusSuccess)
	}
	if changes != 0 {
		t.Errorf("second run made %d changes, want 0", changes)
	}
	if second.ItemsProcessed != 3 {
		t.Errorf("second run processed = %d, want 3", second.ItemsProcessed)
	}
}

func TestRunDryRunDoesNotMutate(t *testing.T) {
	applier := newFakeApplier()
	reg := NewRegistry()
	reg.Register(KindServiceState, applier)
	eng, _ := NewEngine(reg, nil)

	findings := testFindings(5, KindServiceState)
	res := eng.Run(context.Background(), findings, true)

	if len(applier.state) != 0 {
		t.Errorf("dry-run mutated fake state: %v", applier.state)
	}
	if res.ItemsProcessed != res.ItemsDetected {
		t.Errorf("processed = %d, want %d (dry-run counts as processed)",
			res.ItemsProcessed, res.ItemsDetected)
	}
	if !res.DryRun {
		t.Error("result must carry the dry-run flag")
	}
	if res.Status != StatusSuccess {
		t.Errorf("status = %s, want %s", res.Status, StatusSuccess)
	}
}

func TestRunCancellationBetweenFindings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	applier := newFakeApplier()
	reg := NewRegistry()
	reg.Register(KindRegistryValue, applier)

	// Cancel once the second finding has been applied.
	obs := &countingObserver{onApplied: func(Outcome, error) {
		if applier.calls == 2 {
			cancel()
		}
	}}
	eng, _ := NewEngine(reg, obs)

	res := eng.Run(ctx, testFindings(5, KindRegistryValue), false)

	if applier.calls != 2 {
		t.Errorf("applier calls = %d, want exactly 2", applier.calls)
	}
	if res.ItemsProcessed != 2 {
		t.Errorf("processed = %d, want 2", res.ItemsProcessed)
	}
	if res.ItemsFailed != 0 || len(res.Errors) != 0 {
		t.Errorf("unattempted findings leaked into failures: %d failed, %+v",
			res.ItemsFailed, res.Errors)
	}
	if res.Status != StatusWarning {
		t.Errorf("status = %s, want %s (work was done before cancel)", res.Status, StatusWarning)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	applier := newFakeApplier()
	reg := NewRegistry()
	reg.Register(KindRegistryValue, applier)
	eng, _ := NewEngine(reg, nil)

	res := eng.Run(ctx, testFindings(3, KindRegistryValue), false)

	if applier.calls != 0 {
		t.Errorf("applier calls = %d, want 0", applier.calls)
	}
	if res.Status != StatusSkipped {
		t.Errorf("status = %s, want %s", res.Status, StatusSkipped)
	}
}

// countingObserver invokes a callback per applied finding; the other events
// are ignored.
type countingObserver struct {
	onApplied func(Outcome, error)
}

func (o *countingObserver) BatchStarted(int, bool) {}

func (o *countingObserver) FindingApplied(_ Finding, out Outcome, err error) {
	if o.onApplied != nil {
		o.onApplied(out, err)
	}
}

func (o *countingObserver) BatchFinished(*Result) {}
