package modules

import (
	"context"
	"fmt"
	"strings"

	"winmaint/internal/remedy"
	"winmaint/internal/winexec"
)

// registryPolicy is one hardening setting enforced through the registry.
type registryPolicy struct {
	name    string
	path    string
	value   string
	desired string // DWORD rendered as a decimal string
}

// securityRegistryPolicies is the fixed hardening table. Ordering matters:
// LSA restrictions come after the UAC entries they depend on.
var securityRegistryPolicies = []registryPolicy{
	{
		name:    "Enable UAC",
		path:    `HKLM:\SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\System`,
		value:   "EnableLUA",
		desired: "1",
	},
	{
		name:    "UAC prompt on secure desktop",
		path:    `HKLM:\SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\System`,
		value:   "PromptOnSecureDesktop",
		desired: "1",
	},
	{
		name:    "Don't display last username",
		path:    `HKLM:\SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\System`,
		value:   "DontDisplayLastUserName",
		desired: "1",
	},
	{
		name:    "Limit blank password use to console",
		path:    `HKLM:\SYSTEM\CurrentControlSet\Control\Lsa`,
		value:   "LimitBlankPasswordUse",
		desired: "1",
	},
	{
		name:    "Disable anonymous SAM enumeration",
		path:    `HKLM:\SYSTEM\CurrentControlSet\Control\Lsa`,
		value:   "RestrictAnonymousSAM",
		desired: "1",
	},
	{
		name:    "Do not store LAN Manager hash",
		path:    `HKLM:\SYSTEM\CurrentControlSet\Control\Lsa`,
		value:   "NoLMHash",
		desired: "1",
	},
	{
		name:    "NTLMv2 only authentication",
		path:    `HKLM:\SYSTEM\CurrentControlSet\Control\Lsa`,
		value:   "LmCompatibilityLevel",
		desired: "5",
	},
	{
		name:    "Disable AutoRun",
		path:    `HKLM:\SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\Explorer`,
		value:   "NoAutorun",
		desired: "1",
	},
	{
		name:    "Disable AutoPlay on all drives",
		path:    `HKLM:\SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\Explorer`,
		value:   "NoDriveTypeAutoRun",
		desired: "255",
	},
	{
		name:    "Disable WDigest cleartext credentials",
		path:    `HKLM:\SYSTEM\CurrentControlSet\Control\SecurityProviders\WDigest`,
		value:   "UseLogonCredential",
		desired: "0",
	},
	{
		name:    "Enable SmartScreen",
		path:    `HKLM:\SOFTWARE\Policies\Microsoft\Windows\System`,
		value:   "EnableSmartScreen",
		desired: "1",
	},
}

// defenderPreferences are Get-MpPreference fields with their desired values.
// Order is fixed so the detector can query them in one round trip.
var defenderPreferences = []struct {
	name    string
	desired string
}{
	{"DisableRealtimeMonitoring", "False"},
	{"DisableBehaviorMonitoring", "False"},
	{"DisableIOAVProtection", "False"},
	{"DisableScriptScanning", "False"},
	{"PUAProtection", "1"},
}

// Security builds the hardening module: registry policies, guest account,
// Defender preferences, SMB protocol settings, and the secedit password
// policy.
func Security(deps Deps) *Module {
	reg := remedy.NewRegistry()
	reg.Register(remedy.KindRegistryValue, registryApplier(deps.Runner))
	reg.Register(remedy.KindFeatureToggle, featureToggleApplier(deps.Runner))
	reg.Register(remedy.KindDefenderPreference, defenderApplier(deps.Runner))

	return &Module{
		Name:        "security",
		Description: "Registry hardening, account state, Defender and SMB settings",
		Detect:      func(ctx context.Context) ([]remedy.Finding, error) { return detectSecurity(ctx, deps) },
		Registry:    reg,
	}
}

func detectSecurity(ctx context.Context, deps Deps) ([]remedy.Finding, error) {
	var findings []remedy.Finding

	for _, pol := range securityRegistryPolicies {
		current, err := readRegistryValue(ctx, deps.Runner, pol.path, pol.value)
		if err != nil {
			return nil, fmt.Errorf("read %s\\%s: %w", pol.path, pol.value, err)
		}
		if current == pol.desired {
			continue
		}
		findings = append(findings, remedy.Finding{
			Kind:    remedy.KindRegistryValue,
			ID:      pol.path + "!" + pol.value,
			Desired: pol.desired,
			Current: current,
			Detail:  pol.name,
		})
	}

	guest, err := detectGuestAccount(ctx, deps.Runner)
	if err != nil {
		return nil, err
	}
	findings = append(findings, guest...)

	defender, err := detectDefender(ctx, deps.Runner)
	if err != nil {
		return nil, err
	}
	findings = append(findings, defender...)

	smb, err := detectSMB(ctx, deps.Runner)
	if err != nil {
		return nil, err
	}
	findings = append(findings, smb...)

	password, err := detectPasswordPolicy(ctx, deps)
	if err != nil {
		return nil, err
	}
	findings = append(findings, password...)

	return findings, nil
}

// readRegistryValue returns the value rendered as a string, or "" when the
// key or value is absent.
func readRegistryValue(ctx context.Context, r winexec.Runner, path, value string) (string, error) {
	script := fmt.Sprintf(`(Get-ItemProperty -Path "%s" -Name "%s" -ErrorAction SilentlyContinue)."%s"`,
		path, value, value)
	out, err := r.Run(ctx, script)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func detectGuestAccount(ctx context.Context, r winexec.Runner) ([]remedy.Finding, error) {
	out, err := r.Run(ctx, `(Get-LocalUser -Name "Guest" -ErrorAction SilentlyContinue).Enabled`)
	if err != nil {
		return nil, fmt.Errorf("query guest account: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(out), "True") {
		return nil, nil
	}
	return []remedy.Finding{{
		Kind:    remedy.KindFeatureToggle,
		ID:      "localuser:Guest",
		Desired: "disabled",
		Current: "enabled",
		Detail:  "Guest account is enabled",
	}}, nil
}

func detectDefender(ctx context.Context, r winexec.Runner) ([]remedy.Finding, error) {
	var fields []string
	for _, p := range defenderPreferences {
		fields = append(fields, fmt.Sprintf("$($p.%s)", p.name))
	}
	script := fmt.Sprintf(`$p = Get-MpPreference -ErrorAction SilentlyContinue; "%s"`,
		strings.Join(fields, "|"))
	out, err := r.Run(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query defender preferences: %w", err)
	}

	parts := strings.Split(strings.TrimSpace(out), "|")
	if len(parts) != len(defenderPreferences) {
		// Defender not present (e.g. third-party AV owns the host).
		return nil, nil
	}

	var findings []remedy.Finding
	for i, p := range defenderPreferences {
		current := strings.TrimSpace(parts[i])
		if strings.EqualFold(current, p.desired) || current == "" {
			continue
		}
		findings = append(findings, remedy.Finding{
			Kind:    remedy.KindDefenderPreference,
			ID:      p.name,
			Desired: p.desired,
			Current: current,
			Detail:  "Defender preference " + p.name,
		})
	}
	return findings, nil
}

func detectSMB(ctx context.Context, r winexec.Runner) ([]remedy.Finding, error) {
	script := `$c = Get-SmbServerConfiguration -ErrorAction SilentlyContinue; "$($c.EnableSMB1Protocol)|$($c.RequireSecuritySignature)"`
	out, err := r.Run(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query smb configuration: %w", err)
	}
	parts := strings.Split(strings.TrimSpace(out), "|")
	if len(parts) != 2 {
		return nil, nil
	}

	var findings []remedy.Finding
	if strings.EqualFold(parts[0], "True") {
		findings = append(findings, remedy.Finding{
			Kind:    remedy.KindFeatureToggle,
			ID:      "smb:EnableSMB1Protocol",
			Desired: "false",
			Current: "true",
			Detail:  "SMBv1 protocol is enabled",
		})
	}
	if strings.EqualFold(parts[1], "False") {
		findings = append(findings, remedy.Finding{
			Kind:    remedy.KindFeatureToggle,
			ID:      "smb:RequireSecuritySignature",
			Desired: "true",
			Current: "false",
			Detail:  "SMB signing is not required",
		})
	}
	return findings, nil
}

// secpolFields maps "net accounts" output lines to secedit keys.
var secpolFields = []struct {
	outputPrefix string
	seceditKey   string
	want         func(Deps) int
}{
	{"Minimum password age", "MinimumPasswordAge", func(d Deps) int { return d.Policy.Password.MinAge }},
	{"Maximum password age", "MaximumPasswordAge", func(d Deps) int { return d.Policy.Password.MaxAge }},
	{"Minimum password length", "MinimumPasswordLength", func(d Deps) int { return d.Policy.Password.MinLength }},
	{"Length of password history maintained", "PasswordHistorySize", func(d Deps) int { return d.Policy.Password.History }},
	{"Lockout threshold", "LockoutBadCount", func(d Deps) int { return d.Policy.Password.LockoutBad }},
}

func detectPasswordPolicy(ctx context.Context, deps Deps) ([]remedy.Finding, error) {
	out, err := deps.Runner.Run(ctx, "net accounts")
	if err != nil {
		return nil, fmt.Errorf("query account policy: %w", err)
	}

	var findings []remedy.Finding
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		for _, f := range secpolFields {
			if !strings.HasPrefix(line, f.outputPrefix) {
				continue
			}
			_, raw, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			current := strings.TrimSpace(raw)
			want := fmt.Sprintf("%d", f.want(deps))
			// "Never" and "None" both mean unlimited/disabled.
			if current == want {
				continue
			}
			findings = append(findings, remedy.Finding{
				Kind:    remedy.KindFeatureToggle,
				ID:      "secpol:" + f.seceditKey,
				Desired: want,
				Current: current,
				Detail:  f.outputPrefix,
			})
		}
	}
	return findings, nil
}

// registryApplier handles registry-value findings. The ID is the key path
// and value name joined by "!".
func registryApplier(r winexec.Runner) remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		path, value, ok := strings.Cut(f.ID, "!")
		if !ok {
			return remedy.Outcome{}, fmt.Errorf("malformed registry target %q", f.ID)
		}

		current, err := readRegistryValue(ctx, r, path, value)
		if err != nil {
			return remedy.Outcome{}, err
		}
		if current == f.Desired {
			return remedy.Outcome{Changed: false, Message: "already compliant"}, nil
		}
		if dryRun {
			return remedy.Outcome{
				Message: fmt.Sprintf("would set %s\\%s = %s", path, value, f.Desired),
			}, nil
		}

		script := fmt.Sprintf(`Set-ItemProperty -Path "%s" -Name "%s" -Value %s -Type DWord -Force`,
			path, value, f.Desired)
		if _, err := r.Run(ctx, script); err != nil {
			return remedy.Outcome{}, err
		}
		return remedy.Outcome{
			Changed: true,
			Message: fmt.Sprintf("set %s\\%s = %s", path, value, f.Desired),
		}, nil
	}
}

// featureToggleApplier dispatches on the ID prefix: localuser:, smb:, secpol:.
func featureToggleApplier(r winexec.Runner) remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		prefix, target, ok := strings.Cut(f.ID, ":")
		if !ok {
			return remedy.Outcome{}, fmt.Errorf("malformed feature target %q", f.ID)
		}

		switch prefix {
		case "localuser":
			return applyLocalUserDisable(ctx, r, target, dryRun)
		case "smb":
			return applySMBSetting(ctx, r, target, f.Desired, dryRun)
		case "secpol":
			return applySecpolSetting(ctx, r, target, f.Desired, dryRun)
		default:
			return remedy.Outcome{}, fmt.Errorf("unknown feature target %q", f.ID)
		}
	}
}

func applyLocalUserDisable(ctx context.Context, r winexec.Runner, user string, dryRun bool) (remedy.Outcome, error) {
	out, err := r.Run(ctx, fmt.Sprintf(`(Get-LocalUser -Name "%s" -ErrorAction SilentlyContinue).Enabled`, user))
	if err != nil {
		return remedy.Outcome{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(out), "True") {
		return remedy.Outcome{Changed: false, Message: "account already disabled"}, nil
	}
	if dryRun {
		return remedy.Outcome{Message: fmt.Sprintf("would disable local user %s", user)}, nil
	}
	if _, err := r.Run(ctx, fmt.Sprintf(`Disable-LocalUser -Name "%s"`, user)); err != nil {
		return remedy.Outcome{}, err
	}
	return remedy.Outcome{Changed: true, Message: fmt.Sprintf("disabled local user %s", user)}, nil
}

func applySMBSetting(ctx context.Context, r winexec.Runner, setting, desired string, dryRun bool) (remedy.Outcome, error) {
	out, err := r.Run(ctx, fmt.Sprintf(`(Get-SmbServerConfiguration -ErrorAction SilentlyContinue).%s`, setting))
	if err != nil {
		return remedy.Outcome{}, err
	}
	if strings.EqualFold(strings.TrimSpace(out), desired) {
		return remedy.Outcome{Changed: false, Message: "already compliant"}, nil
	}
	if dryRun {
		return remedy.Outcome{Message: fmt.Sprintf("would set SMB %s = %s", setting, desired)}, nil
	}

	psBool := "$false"
	if strings.EqualFold(desired, "true") {
		psBool = "$true"
	}
	script := fmt.Sprintf(`Set-SmbServerConfiguration -%s %s -Force`, setting, psBool)
	if _, err := r.Run(ctx, script); err != nil {
		return remedy.Outcome{}, err
	}
	return remedy.Outcome{Changed: true, Message: fmt.Sprintf("set SMB %s = %s", setting, desired)}, nil
}

func applySecpolSetting(ctx context.Context, r winexec.Runner, key, desired string, dryRun bool) (remedy.Outcome, error) {
	if dryRun {
		return remedy.Outcome{Message: fmt.Sprintf("would set %s = %s via secedit", key, desired)}, nil
	}
	// secedit merges: a cfg naming a single key updates only that key.
	script := fmt.Sprintf(`
$cfg = @"
[Unicode]
Unicode=yes
[System Access]
%s = %s
[Version]
signature="$CHICAGO$"
Revision=1
"@
$tmp = "$env:TEMP\winmaint_secpol.cfg"
$cfg | Out-File -FilePath $tmp -Encoding ASCII
secedit /configure /db "$env:TEMP\winmaint_secpol.sdb" /cfg $tmp /areas SECURITYPOLICY /quiet
Remove-Item $tmp -Force -ErrorAction SilentlyContinue
`, key, desired)
	if _, err := r.Run(ctx, script); err != nil {
		return remedy.Outcome{}, err
	}
	return remedy.Outcome{Changed: true, Message: fmt.Sprintf("set %s = %s", key, desired)}, nil
}

// defenderApplier sets one Get-MpPreference field back to its desired value.
func defenderApplier(r winexec.Runner) remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		out, err := r.Run(ctx, fmt.Sprintf(`(Get-MpPreference -ErrorAction SilentlyContinue).%s`, f.ID))
		if err != nil {
			return remedy.Outcome{}, err
		}
		if strings.EqualFold(strings.TrimSpace(out), f.Desired) {
			return remedy.Outcome{Changed: false, Message: "already compliant"}, nil
		}
		if dryRun {
			return remedy.Outcome{Message: fmt.Sprintf("would set Defender %s = %s", f.ID, f.Desired)}, nil
		}

		val := f.Desired
		switch strings.ToLower(val) {
		case "true":
			val = "$true"
		case "false":
			val = "$false"
		}
		script := fmt.Sprintf(`Set-MpPreference -%s %s -ErrorAction Stop`, f.ID, val)
		if _, err := r.Run(ctx, script); err != nil {
			return remedy.Outcome{}, err
		}
		return remedy.Outcome{Changed: true, Message: fmt.Sprintf("set Defender %s = %s", f.ID, f.Desired)}, nil
	}
}
