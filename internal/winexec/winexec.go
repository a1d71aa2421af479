// Package winexec runs PowerShell against the maintenance target, either the
// local host or a remote machine over SSH. Detectors and appliers depend only
// on the Runner interface so tests can substitute a fake.
package winexec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a PowerShell script and returns its combined output.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
}

// Lines runs a script and splits its output into trimmed, non-empty lines.
func Lines(ctx context.Context, r Runner, script string) ([]string, error) {
	output, err := r.Run(ctx, script)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// PowerShell runs scripts on the local host.
type PowerShell struct {
	// Executable overrides the interpreter, e.g. "pwsh". Defaults to
	// "powershell".
	Executable string
}

// Run implements Runner.
func (p PowerShell) Run(ctx context.Context, script string) (string, error) {
	shell := p.Executable
	if shell == "" {
		shell = "powershell"
	}
	cmd := exec.CommandContext(ctx, shell, "-NoProfile", "-NonInteractive", "-Command", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%s: %w", shell, err)
	}
	return string(output), nil
}
