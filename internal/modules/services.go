package modules

import (
	"context"
	"fmt"
	"strings"

	"winmaint/internal/remedy"
	"winmaint/internal/winexec"
)

// unnecessaryServices maps service names to the policy service tag that keeps
// them alive. An empty tag means the service is always fair game.
var unnecessaryServices = []struct {
	service string
	keepTag string
	desc    string
}{
	{"RemoteRegistry", "", "Remote Registry"},
	{"RpcLocator", "", "RPC Locator"},
	{"Fax", "", "Fax"},
	{"XblAuthManager", "", "Xbox Live Auth Manager"},
	{"XblGameSave", "", "Xbox Live Game Save"},
	{"XboxNetApiSvc", "", "Xbox Live Networking"},
	{"WMPNetworkSvc", "", "Windows Media Player Network Sharing"},
	{"icssvc", "", "Windows Mobile Hotspot"},
	{"SNMP", "snmp", "SNMP Service"},
	{"SNMPTRAP", "snmp", "SNMP Trap"},
	{"TelnetServer", "telnet", "Telnet Server"},
	{"Spooler", "print", "Print Spooler"},
	{"TermService", "rdp", "Remote Desktop"},
	{"WinRM", "winrm", "Windows Remote Management"},
}

// Services builds the performance-optimization module: stop and disable
// unnecessary services, enforce the power plan, and clear cache paths.
func Services(deps Deps) *Module {
	reg := remedy.NewRegistry()
	reg.Register(remedy.KindServiceState, serviceApplier(deps.Runner))
	reg.Register(remedy.KindPowerPlan, powerPlanApplier(deps.Runner))
	reg.Register(remedy.KindFileRemove, fileRemoveApplier(deps.Runner))

	return &Module{
		Name:        "services",
		Description: "Unnecessary services, power plan and cache cleanup",
		Detect:      func(ctx context.Context) ([]remedy.Finding, error) { return detectServices(ctx, deps) },
		Registry:    reg,
	}
}

func detectServices(ctx context.Context, deps Deps) ([]remedy.Finding, error) {
	var findings []remedy.Finding

	for _, svc := range unnecessaryServices {
		if svc.keepTag != "" && deps.Policy.ServiceRequired(svc.keepTag) {
			continue
		}
		// Policy may also pin by literal service name.
		if deps.Policy.ServiceRequired(svc.service) {
			continue
		}

		state, err := queryServiceState(ctx, deps.Runner, svc.service)
		if err != nil {
			return nil, err
		}
		if state == "" || state == "Stopped|Disabled" {
			continue
		}
		findings = append(findings, remedy.Finding{
			Kind:    remedy.KindServiceState,
			ID:      svc.service,
			Desired: "Stopped|Disabled",
			Current: state,
			Detail:  svc.desc,
		})
	}

	plan, err := detectPowerPlan(ctx, deps)
	if err != nil {
		return nil, err
	}
	findings = append(findings, plan...)

	cleanup, err := detectCleanupPaths(ctx, deps)
	if err != nil {
		return nil, err
	}
	findings = append(findings, cleanup...)

	return findings, nil
}

// queryServiceState returns "Status|StartType", or "" when the service does
// not exist on the host.
func queryServiceState(ctx context.Context, r winexec.Runner, service string) (string, error) {
	script := fmt.Sprintf(
		`$s = Get-Service -Name "%s" -ErrorAction SilentlyContinue; if ($s) { "$($s.Status)|$($s.StartType)" }`,
		service)
	out, err := r.Run(ctx, script)
	if err != nil {
		return "", fmt.Errorf("query service %s: %w", service, err)
	}
	return strings.TrimSpace(out), nil
}

func detectPowerPlan(ctx context.Context, deps Deps) ([]remedy.Finding, error) {
	if deps.Policy.PowerPlan == "" {
		return nil, nil
	}
	script := `(Get-CimInstance -Namespace root\cimv2\power -ClassName Win32_PowerPlan -ErrorAction SilentlyContinue | Where-Object IsActive).ElementName`
	out, err := deps.Runner.Run(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query power plan: %w", err)
	}
	current := strings.TrimSpace(out)
	if current == "" || strings.EqualFold(current, deps.Policy.PowerPlan) {
		return nil, nil
	}
	return []remedy.Finding{{
		Kind:    remedy.KindPowerPlan,
		ID:      "active-plan",
		Desired: deps.Policy.PowerPlan,
		Current: current,
		Detail:  "active power plan differs from policy",
	}}, nil
}

func detectCleanupPaths(ctx context.Context, deps Deps) ([]remedy.Finding, error) {
	var findings []remedy.Finding
	for _, pattern := range deps.Policy.CleanupPaths {
		script := fmt.Sprintf(
			`(Get-ChildItem -Path "%s" -Force -ErrorAction SilentlyContinue | Measure-Object).Count`,
			pattern)
		out, err := deps.Runner.Run(ctx, script)
		if err != nil {
			return nil, fmt.Errorf("scan cleanup path %s: %w", pattern, err)
		}
		count := strings.TrimSpace(out)
		if count == "" || count == "0" {
			continue
		}
		findings = append(findings, remedy.Finding{
			Kind:    remedy.KindFileRemove,
			ID:      pattern,
			Desired: "absent",
			Current: count + " items",
			Detail:  "cache files pending cleanup",
		})
	}
	return findings, nil
}

func serviceApplier(r winexec.Runner) remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		state, err := queryServiceState(ctx, r, f.ID)
		if err != nil {
			return remedy.Outcome{}, err
		}
		if state == "" || state == f.Desired {
			return remedy.Outcome{Changed: false, Message: "already compliant"}, nil
		}
		if dryRun {
			return remedy.Outcome{Message: fmt.Sprintf("would stop and disable %s", f.ID)}, nil
		}

		script := fmt.Sprintf(`
Stop-Service -Name "%s" -Force -ErrorAction SilentlyContinue
Set-Service -Name "%s" -StartupType Disabled -ErrorAction Stop
`, f.ID, f.ID)
		if _, err := r.Run(ctx, script); err != nil {
			return remedy.Outcome{}, err
		}
		return remedy.Outcome{Changed: true, Message: fmt.Sprintf("stopped and disabled %s", f.ID)}, nil
	}
}

func powerPlanApplier(r winexec.Runner) remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		if dryRun {
			return remedy.Outcome{Message: fmt.Sprintf("would activate power plan %q", f.Desired)}, nil
		}
		script := fmt.Sprintf(`
$plan = Get-CimInstance -Namespace root\cimv2\power -ClassName Win32_PowerPlan | Where-Object { $_.ElementName -eq "%s" }
if (-not $plan) { throw "power plan not found" }
if (-not $plan.IsActive) { Invoke-CimMethod -InputObject $plan -MethodName Activate | Out-Null; "activated" } else { "active" }
`, f.Desired)
		out, err := r.Run(ctx, script)
		if err != nil {
			return remedy.Outcome{}, err
		}
		if strings.TrimSpace(out) == "active" {
			return remedy.Outcome{Changed: false, Message: "already compliant"}, nil
		}
		return remedy.Outcome{Changed: true, Message: fmt.Sprintf("activated power plan %q", f.Desired)}, nil
	}
}

func fileRemoveApplier(r winexec.Runner) remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		if dryRun {
			return remedy.Outcome{Message: fmt.Sprintf("would remove %s (%s)", f.ID, f.Current)}, nil
		}
		script := fmt.Sprintf(`
$items = Get-ChildItem -Path "%s" -Force -ErrorAction SilentlyContinue
if ($items) {
    $items | Remove-Item -Recurse -Force -ErrorAction SilentlyContinue
    "removed $($items.Count)"
} else {
    "clean"
}
`, f.ID)
		out, err := r.Run(ctx, script)
		if err != nil {
			return remedy.Outcome{}, err
		}
		if strings.TrimSpace(out) == "clean" {
			return remedy.Outcome{Changed: false, Message: "already clean"}, nil
		}
		return remedy.Outcome{Changed: true, Message: strings.TrimSpace(out) + " from " + f.ID}, nil
	}
}
