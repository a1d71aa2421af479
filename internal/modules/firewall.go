package modules

import (
	"context"
	"fmt"
	"strings"

	"winmaint/internal/remedy"
	"winmaint/internal/winexec"
)

// firewallProfiles is the fixed profile order used for detection output.
var firewallProfiles = []string{"Domain", "Private", "Public"}

// Firewall builds the firewall module: per-profile enabled state, default
// inbound action, and blocked-packet logging, taken from policy.
func Firewall(deps Deps) *Module {
	reg := remedy.NewRegistry()
	reg.Register(remedy.KindFirewallProfile, firewallApplier(deps.Runner))

	return &Module{
		Name:        "firewall",
		Description: "Windows Firewall profile state, inbound defaults and logging",
		Detect:      func(ctx context.Context) ([]remedy.Finding, error) { return detectFirewall(ctx, deps) },
		Registry:    reg,
	}
}

// profileState is the parsed per-profile detection snapshot.
type profileState struct {
	name       string
	enabled    bool
	inbound    string // "Allow", "Block", "NotConfigured"
	logBlocked bool
}

func detectFirewall(ctx context.Context, deps Deps) ([]remedy.Finding, error) {
	if !deps.Policy.Firewall.Enabled {
		return nil, nil
	}

	states, err := queryFirewallProfiles(ctx, deps.Runner)
	if err != nil {
		return nil, err
	}

	var findings []remedy.Finding

	if bad := nonCompliant(states, func(s profileState) bool { return !s.enabled }); len(bad) > 0 {
		findings = append(findings, remedy.Finding{
			Kind:    remedy.KindFirewallProfile,
			ID:      strings.Join(bad, ","),
			Desired: "true",
			Current: "false",
			Detail:  "firewall disabled for profiles " + strings.Join(bad, ","),
		})
	}

	if deps.Policy.Firewall.BlockInbound {
		if bad := nonCompliant(states, func(s profileState) bool { return !strings.EqualFold(s.inbound, "Block") }); len(bad) > 0 {
			findings = append(findings, remedy.Finding{
				Kind:    remedy.KindFirewallProfile,
				ID:      "inbound:" + strings.Join(bad, ","),
				Desired: "Block",
				Detail:  "default inbound action not Block for " + strings.Join(bad, ","),
			})
		}
	}

	if deps.Policy.Firewall.LogBlocked {
		if bad := nonCompliant(states, func(s profileState) bool { return !s.logBlocked }); len(bad) > 0 {
			findings = append(findings, remedy.Finding{
				Kind:    remedy.KindFirewallProfile,
				ID:      "logging:" + strings.Join(bad, ","),
				Desired: "true",
				Current: "false",
				Detail:  "blocked-packet logging off for " + strings.Join(bad, ","),
			})
		}
	}

	return findings, nil
}

// queryFirewallProfiles reads all three profiles in one round trip. Output is
// one "Name|Enabled|DefaultInboundAction|LogBlocked" line per profile.
func queryFirewallProfiles(ctx context.Context, r winexec.Runner) ([]profileState, error) {
	script := `Get-NetFirewallProfile | ForEach-Object { "$($_.Name)|$($_.Enabled)|$($_.DefaultInboundAction)|$($_.LogBlocked)" }`
	lines, err := winexec.Lines(ctx, r, script)
	if err != nil {
		return nil, fmt.Errorf("query firewall profiles: %w", err)
	}

	var states []profileState
	for _, line := range lines {
		parts := strings.Split(line, "|")
		if len(parts) != 4 {
			continue
		}
		states = append(states, profileState{
			name:       strings.TrimSpace(parts[0]),
			enabled:    strings.EqualFold(strings.TrimSpace(parts[1]), "True"),
			inbound:    strings.TrimSpace(parts[2]),
			logBlocked: strings.EqualFold(strings.TrimSpace(parts[3]), "True"),
		})
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("query firewall profiles: no parsable output")
	}
	return states, nil
}

// firewallCompliant reports whether every profile in the comma list already
// satisfies the given setting.
func firewallCompliant(states []profileState, setting, profiles, desired string) bool {
	wanted := make(map[string]bool)
	for _, p := range strings.Split(profiles, ",") {
		wanted[strings.TrimSpace(p)] = true
	}
	for _, s := range states {
		if !wanted[s.name] {
			continue
		}
		switch setting {
		case "enabled":
			if !s.enabled {
				return false
			}
		case "inbound":
			if !strings.EqualFold(s.inbound, desired) {
				return false
			}
		case "logging":
			if !s.logBlocked {
				return false
			}
		}
	}
	return true
}

func nonCompliant(states []profileState, bad func(profileState) bool) []string {
	var names []string
	for _, s := range states {
		if bad(s) {
			names = append(names, s.name)
		}
	}
	return names
}

// firewallApplier handles the three firewall finding shapes. A bare profile
// list toggles Enabled; "inbound:" sets the default inbound action;
// "logging:" turns on blocked-packet logging.
func firewallApplier(r winexec.Runner) remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		setting, profiles, ok := strings.Cut(f.ID, ":")
		if !ok {
			setting, profiles = "enabled", f.ID
		}

		// Re-check before mutating so a repeated batch is a no-op.
		states, err := queryFirewallProfiles(ctx, r)
		if err != nil {
			return remedy.Outcome{}, err
		}
		if firewallCompliant(states, setting, profiles, f.Desired) {
			return remedy.Outcome{Changed: false, Message: "already compliant"}, nil
		}

		var script, action string
		switch setting {
		case "enabled":
			script = fmt.Sprintf(`Set-NetFirewallProfile -Profile %s -Enabled True`, profiles)
			action = fmt.Sprintf("enable firewall for %s", profiles)
		case "inbound":
			script = fmt.Sprintf(`Set-NetFirewallProfile -Profile %s -DefaultInboundAction %s`, profiles, f.Desired)
			action = fmt.Sprintf("set default inbound %s for %s", f.Desired, profiles)
		case "logging":
			script = fmt.Sprintf(`Set-NetFirewallProfile -Profile %s -LogBlocked True -LogMaxSizeKilobytes 16384`, profiles)
			action = fmt.Sprintf("enable blocked-packet logging for %s", profiles)
		default:
			return remedy.Outcome{}, fmt.Errorf("unknown firewall setting %q", setting)
		}

		if dryRun {
			return remedy.Outcome{Message: "would " + action}, nil
		}
		if _, err := r.Run(ctx, script); err != nil {
			return remedy.Outcome{}, err
		}
		return remedy.Outcome{Changed: true, Message: action}, nil
	}
}
