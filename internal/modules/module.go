// Package modules defines the five maintenance module pairs: each couples a
// detector that diffs observed host state against policy with a fixed applier
// registry that remediates the deviations. All OS access flows through the
// winexec.Runner collaborator.
package modules

import (
	"context"
	"fmt"

	"winmaint/internal/config"
	"winmaint/internal/remedy"
	"winmaint/internal/winexec"
)

// Deps is the collaborator wiring shared by every module. Missing pieces are
// a construction error, not a runtime discovery problem.
type Deps struct {
	Runner winexec.Runner
	Policy config.Policy
}

func (d Deps) validate() error {
	if d.Runner == nil {
		return fmt.Errorf("modules: a runner is required")
	}
	return nil
}

// Module pairs one detector with its applier registry.
type Module struct {
	Name        string
	Description string
	Detect      func(ctx context.Context) ([]remedy.Finding, error)
	Registry    *remedy.Registry
}

// Run detects deviations and remediates them in one batch. Detector failure
// is fatal to this module invocation only; it surfaces as a DetectionError
// and no remediation is attempted. The returned findings are what detection
// produced, for inclusion in reports.
func (m *Module) Run(ctx context.Context, dryRun bool, obs remedy.Observer) (*remedy.Result, []remedy.Finding, error) {
	findings, err := m.Detect(ctx)
	if err != nil {
		return nil, nil, &remedy.DetectionError{Module: m.Name, Err: err}
	}
	eng, err := remedy.NewEngine(m.Registry, obs)
	if err != nil {
		return nil, nil, err
	}
	return eng.Run(ctx, findings, dryRun), findings, nil
}

// All builds every module against the shared dependencies, in execution
// order: inventory first (pure collection), then hardening before
// optimization so security settings win when they overlap, updates last.
func All(deps Deps) ([]*Module, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return []*Module{
		Inventory(deps),
		Security(deps),
		Firewall(deps),
		Services(deps),
		Updates(deps),
	}, nil
}

// Select filters modules by name, preserving execution order. Unknown names
// are an error so typos do not silently skip maintenance.
func Select(mods []*Module, names []string) ([]*Module, error) {
	if len(names) == 0 {
		return mods, nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}
	selected := make([]*Module, 0, len(names))
	for _, m := range mods {
		if want[m.Name] {
			selected = append(selected, m)
			delete(want, m.Name)
		}
	}
	for name := range want {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	return selected, nil
}
