package remedy

// Kind categorizes a configuration deviation and selects the applier
// responsible for fixing it.
type Kind string

const (
	// KindRegistryValue is a registry key/value that differs from policy.
	KindRegistryValue Kind = "registry-value"
	// KindServiceState is a service whose run/startup state differs from policy.
	KindServiceState Kind = "service-state"
	// KindFeatureToggle is an optional Windows feature or protocol toggle.
	KindFeatureToggle Kind = "feature-toggle"
	// KindFirewallProfile is a firewall profile setting.
	KindFirewallProfile Kind = "firewall-profile"
	// KindDefenderPreference is a Windows Defender preference.
	KindDefenderPreference Kind = "defender-preference"
	// KindUpdateInstall is a missing update to be installed.
	KindUpdateInstall Kind = "update-install"
	// KindInventoryRecord is a collected inventory fact; its applier only records.
	KindInventoryRecord Kind = "inventory-record"
	// KindFileRemove is a file slated for removal (caches, leftovers).
	KindFileRemove Kind = "file-remove"
	// KindPowerPlan is the active power plan selection.
	KindPowerPlan Kind = "power-plan"
)

// Finding is a single detected deviation between observed host state and
// desired policy. Findings are produced by a module's detector once per run,
// are immutable, and are consumed exactly once by the engine.
type Finding struct {
	// Kind selects the applier. A Kind with no registered applier is
	// reported as a per-item error, never silently dropped.
	Kind Kind

	// ID uniquely names the target: a registry path plus value name, a
	// service name, an update KB id, a firewall profile list.
	ID string

	// Desired is the target state, rendered as a string regardless of the
	// underlying value type.
	Desired string

	// Current is the state observed at detection time, when known. Kept for
	// audit trails only; appliers re-check before mutating.
	Current string

	// Detail is a short human-readable summary for logs and reports.
	Detail string
}
