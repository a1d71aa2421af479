package modules

import (
	"context"
	"fmt"
	"strings"

	"winmaint/internal/remedy"
	"winmaint/internal/winexec"
)

// Updates builds the update-installation module on top of the PSWindowsUpdate
// module, which must already be present on the target (bootstrap is the
// operator's concern).
func Updates(deps Deps) *Module {
	reg := remedy.NewRegistry()
	reg.Register(remedy.KindUpdateInstall, updateApplier(deps.Runner, deps.Policy.Updates.AutoReboot))

	return &Module{
		Name:        "updates",
		Description: "Pending Windows updates via PSWindowsUpdate",
		Detect:      func(ctx context.Context) ([]remedy.Finding, error) { return detectUpdates(ctx, deps) },
		Registry:    reg,
	}
}

func detectUpdates(ctx context.Context, deps Deps) ([]remedy.Finding, error) {
	filter := ""
	if !deps.Policy.Updates.AcceptAll {
		filter = ` -Category "Security Updates"`
	}
	script := fmt.Sprintf(`
Import-Module PSWindowsUpdate -ErrorAction Stop
Get-WindowsUpdate%s | ForEach-Object { "$($_.KB)|$($_.Title)" }
`, filter)

	lines, err := winexec.Lines(ctx, deps.Runner, script)
	if err != nil {
		return nil, fmt.Errorf("query pending updates: %w", err)
	}

	var findings []remedy.Finding
	for _, line := range lines {
		kb, title, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		kb = strings.TrimSpace(kb)
		title = strings.TrimSpace(title)
		id := kb
		if id == "" {
			id = title
		}
		if id == "" {
			continue
		}
		findings = append(findings, remedy.Finding{
			Kind:    remedy.KindUpdateInstall,
			ID:      id,
			Desired: "installed",
			Current: "missing",
			Detail:  title,
		})
	}
	return findings, nil
}

// updateApplier installs one update per finding so failure accounting stays
// per item. PSWindowsUpdate produces no output when the update is no longer
// offered, which is treated as already installed.
func updateApplier(r winexec.Runner, autoReboot bool) remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		if dryRun {
			return remedy.Outcome{Message: fmt.Sprintf("would install %s (%s)", f.ID, f.Detail)}, nil
		}

		reboot := "-IgnoreReboot"
		if autoReboot {
			reboot = "-AutoReboot"
		}
		selector := fmt.Sprintf(`-KBArticleID "%s"`, f.ID)
		if !strings.HasPrefix(f.ID, "KB") {
			selector = fmt.Sprintf(`-Title "%s"`, f.ID)
		}
		script := fmt.Sprintf(`
Import-Module PSWindowsUpdate -ErrorAction Stop
Install-WindowsUpdate %s -AcceptAll %s -ErrorAction Stop | Out-String
`, selector, reboot)

		out, err := r.Run(ctx, script)
		if err != nil {
			return remedy.Outcome{}, err
		}
		if strings.TrimSpace(out) == "" {
			return remedy.Outcome{Changed: false, Message: "already installed or no longer offered"}, nil
		}
		return remedy.Outcome{Changed: true, Message: "installed " + f.ID}, nil
	}
}
