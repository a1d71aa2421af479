package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.Password.MinLength != 12 {
		t.Errorf("min length = %d, want 12", p.Password.MinLength)
	}
	if !p.Firewall.Enabled || !p.Firewall.BlockInbound {
		t.Errorf("default firewall policy not restrictive: %+v", p.Firewall)
	}
	if p.Updates.AutoReboot {
		t.Error("auto reboot must default to off")
	}
	if !p.ModuleEnabled("security") {
		t.Error("modules default to enabled")
	}
}

func TestLoadPolicyPartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	doc := `
modules:
  updates: false
password:
  max_age: 90
  min_age: 1
  min_length: 14
  history: 24
  lockout_bad_count: 5
required_services:
  - Spooler
  - TermService
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}

	if p.Password.MinLength != 14 {
		t.Errorf("min length = %d, want 14", p.Password.MinLength)
	}
	if p.ModuleEnabled("updates") {
		t.Error("updates module should be disabled by policy")
	}
	if !p.ModuleEnabled("security") {
		t.Error("unmentioned modules stay enabled")
	}
	if !p.ServiceRequired("Spooler") || p.ServiceRequired("Fax") {
		t.Errorf("required services wrong: %v", p.RequiredServices)
	}
	// Defaults survive where the file is silent.
	if !p.Firewall.Enabled {
		t.Error("firewall default lost during overlay")
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing policy file")
	}
}

func TestLoadPolicyEmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy(\"\"): %v", err)
	}
	if p.Password.MinLength != DefaultPolicy().Password.MinLength {
		t.Error("empty path must return defaults")
	}
}

func TestLoadPolicyRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	doc := "password:\n  max_age: 10\n  min_age: 20\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Error("expected validation error for min_age > max_age")
	}
}
