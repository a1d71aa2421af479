package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// RunMode controls whether modules mutate the host or only simulate.
type RunMode string

const (
	// ModeDryRun reports what would change without touching the host.
	ModeDryRun RunMode = "dry-run"
	// ModeApply executes remediations for real.
	ModeApply RunMode = "apply"
)

// TargetKind selects where maintenance runs.
type TargetKind string

const (
	// TargetLocal runs PowerShell on this machine.
	TargetLocal TargetKind = "local"
	// TargetSSH runs PowerShell on a remote host over Win32-OpenSSH.
	TargetSSH TargetKind = "ssh"
)

// Config holds the in-memory runtime configuration for winmaint.
type Config struct {
	Mode   RunMode
	Target TargetKind

	// Remote target settings, used only when Target == TargetSSH.
	SSHHost         string
	SSHPort         int
	SSHUser         string
	SSHUserFallback string
	SSHKeyPath      string
	SSHTimeout      time.Duration

	// Output locations.
	ReportDir   string
	LogDir      string
	HistoryPath string

	// Desired-state policy file (YAML). Empty means built-in defaults.
	PolicyPath string

	LogVerbose bool

	// Environment detection.
	OS           string
	Architecture string
}

// DefaultConfig returns a safe configuration: dry-run against the local host,
// output under .winmaint in the working directory.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeDryRun,
		Target:       TargetLocal,
		SSHPort:      22,
		SSHUser:      "Administrator",
		SSHTimeout:   15 * time.Second,
		ReportDir:    filepath.Join(".winmaint", "reports"),
		LogDir:       filepath.Join(".winmaint", "logs"),
		HistoryPath:  filepath.Join(".winmaint", "history.db"),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
}

// ModeFromString converts a string to a RunMode; anything unrecognized
// falls back to dry-run, the safe default.
func ModeFromString(s string) RunMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "apply", "live", "enforce":
		return ModeApply
	default:
		return ModeDryRun
	}
}

// Validate fails fast on incoherent wiring instead of letting a module
// discover it mid-run.
func (c Config) Validate() error {
	switch c.Target {
	case TargetLocal:
	case TargetSSH:
		if strings.TrimSpace(c.SSHHost) == "" {
			return fmt.Errorf("config: ssh target requires a host")
		}
		if strings.TrimSpace(c.SSHKeyPath) == "" {
			return fmt.Errorf("config: ssh target requires a key path")
		}
	default:
		return fmt.Errorf("config: unknown target %q", c.Target)
	}
	if c.ReportDir == "" || c.LogDir == "" {
		return fmt.Errorf("config: report and log directories are required")
	}
	return nil
}
