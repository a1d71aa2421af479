package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the desired-state document consumed by module detectors. It is
// loaded once per invocation; the remediation engine itself never sees it.
type Policy struct {
	// Modules toggles individual maintenance modules. Absent entries
	// default to enabled.
	Modules map[string]bool `yaml:"modules"`

	Password PasswordPolicy `yaml:"password"`
	Firewall FirewallPolicy `yaml:"firewall"`
	Updates  UpdatePolicy   `yaml:"updates"`

	// RequiredServices are never stopped or disabled, whatever the
	// optimization tables say.
	RequiredServices []string `yaml:"required_services"`

	// PowerPlan is the desired active power plan name.
	PowerPlan string `yaml:"power_plan"`

	// CleanupPaths are glob patterns of files safe to remove (caches,
	// installer leftovers).
	CleanupPaths []string `yaml:"cleanup_paths"`
}

// PasswordPolicy mirrors the secedit [System Access] knobs winmaint manages.
type PasswordPolicy struct {
	MaxAge     int `yaml:"max_age"`
	MinAge     int `yaml:"min_age"`
	MinLength  int `yaml:"min_length"`
	History    int `yaml:"history"`
	LockoutBad int `yaml:"lockout_bad_count"`
}

// FirewallPolicy describes the desired firewall profile state.
type FirewallPolicy struct {
	Enabled      bool `yaml:"enabled"`
	BlockInbound bool `yaml:"block_inbound"`
	LogBlocked   bool `yaml:"log_blocked"`
}

// UpdatePolicy controls the update-installation module.
type UpdatePolicy struct {
	// AcceptAll installs everything offered; otherwise only security
	// category updates are taken.
	AcceptAll bool `yaml:"accept_all"`
	// AutoReboot allows the update agent to reboot when required.
	AutoReboot bool `yaml:"auto_reboot"`
}

// DefaultPolicy returns the built-in desired state.
func DefaultPolicy() Policy {
	return Policy{
		Password: PasswordPolicy{
			MaxAge:     90,
			MinAge:     1,
			MinLength:  12,
			History:    24,
			LockoutBad: 5,
		},
		Firewall: FirewallPolicy{
			Enabled:      true,
			BlockInbound: true,
			LogBlocked:   true,
		},
		Updates: UpdatePolicy{
			AcceptAll:  false,
			AutoReboot: false,
		},
		PowerPlan: "High performance",
		CleanupPaths: []string{
			`$env:TEMP\*`,
			`$env:SystemRoot\Temp\*`,
		},
	}
}

// LoadPolicy reads a YAML policy file, layering it over the defaults so a
// partial file only overrides what it names.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return Policy{}, fmt.Errorf("policy: %s: %w", path, err)
	}
	return p, nil
}

// ModuleEnabled reports whether a module should run. Modules not mentioned
// in the policy are enabled.
func (p Policy) ModuleEnabled(name string) bool {
	if p.Modules == nil {
		return true
	}
	enabled, ok := p.Modules[name]
	if !ok {
		return true
	}
	return enabled
}

// ServiceRequired reports whether a service was marked as required.
func (p Policy) ServiceRequired(name string) bool {
	for _, s := range p.RequiredServices {
		if s == name {
			return true
		}
	}
	return false
}

func (p Policy) validate() error {
	if p.Password.MinLength < 0 || p.Password.MaxAge < 0 || p.Password.MinAge < 0 {
		return fmt.Errorf("password policy values must be non-negative")
	}
	if p.Password.MaxAge > 0 && p.Password.MinAge > p.Password.MaxAge {
		return fmt.Errorf("password min_age %d exceeds max_age %d", p.Password.MinAge, p.Password.MaxAge)
	}
	return nil
}
