// Package cli wires configuration, modules, reporting and history into the
// winmaint command surface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"winmaint/internal/config"
	"winmaint/internal/modules"
	"winmaint/internal/remedy"
	"winmaint/internal/report"
	"winmaint/internal/winexec"
)

// App is the command dispatcher. Elevated reports whether the current
// process can mutate the local host; apply mode against the local target
// refuses to start without it.
type App struct {
	Version  string
	Stdout   io.Writer
	Stderr   io.Writer
	Elevated func() bool
}

func New(version string, stdout, stderr io.Writer, elevated func() bool) *App {
	if elevated == nil {
		elevated = func() bool { return false }
	}
	return &App{Version: version, Stdout: stdout, Stderr: stderr, Elevated: elevated}
}

// Run dispatches a subcommand. Exit codes: 0 clean, 1 maintenance found or
// hit failures, 2 usage or configuration error.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return 2
	}

	switch args[0] {
	case "help", "-h", "--help":
		a.printUsage()
		return 0
	case "version", "--version":
		fmt.Fprintf(a.Stdout, "winmaint %s\n", a.Version)
		return 0
	case "list":
		return a.runList()
	case "run":
		return a.runRun(ctx, args[1:])
	case "history":
		return a.runHistory(ctx, args[1:])
	default:
		fmt.Fprintf(a.Stderr, "Unknown command: %s\n\n", args[0])
		a.printUsage()
		return 2
	}
}

func (a *App) runList() int {
	mods, err := modules.All(modules.Deps{
		Runner: winexec.PowerShell{},
		Policy: config.DefaultPolicy(),
	})
	if err != nil {
		fmt.Fprintf(a.Stderr, "Module setup error: %v\n", err)
		return 2
	}
	for _, m := range mods {
		fmt.Fprintf(a.Stdout, "%s\t%s\n", m.Name, m.Description)
	}
	return 0
}

func (a *App) runRun(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("winmaint run", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)

	var (
		flagModules = fs.String("modules", "", "Comma-separated module names (default: all enabled)")
		flagApply   = fs.Bool("apply", false, "Apply changes instead of the default dry run")
		flagPolicy  = fs.String("policy", "", "Path to YAML policy file")
		flagDotEnv  = fs.String("dotenv", ".env", "Path to .env file")
		flagJSON    = fs.Bool("json", false, "Print JSON report to stdout")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.LoadEnv(config.DefaultConfig(), *flagDotEnv)
	if *flagApply {
		cfg.Mode = config.ModeApply
	}
	if *flagPolicy != "" {
		cfg.PolicyPath = *flagPolicy
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(a.Stderr, "Config error: %v\n", err)
		return 2
	}
	if cfg.Mode == config.ModeApply && cfg.Target == config.TargetLocal && !a.Elevated() {
		fmt.Fprintln(a.Stderr, "Apply mode on the local host requires an elevated (administrator) session")
		return 2
	}

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Policy error: %v\n", err)
		return 2
	}

	runner, err := newRunner(cfg)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Runner error: %v\n", err)
		return 2
	}

	mods, err := modules.All(modules.Deps{Runner: runner, Policy: policy})
	if err != nil {
		fmt.Fprintf(a.Stderr, "Module setup error: %v\n", err)
		return 2
	}
	mods, err = modules.Select(mods, splitList(*flagModules))
	if err != nil {
		fmt.Fprintf(a.Stderr, "Module selection error: %v\n", err)
		return 2
	}
	if *flagModules == "" {
		enabled := mods[:0]
		for _, m := range mods {
			if policy.ModuleEnabled(m.Name) {
				enabled = append(enabled, m)
			}
		}
		mods = enabled
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		fmt.Fprintf(a.Stderr, "Failed to create log dir: %v\n", err)
		return 2
	}
	if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
		fmt.Fprintf(a.Stderr, "Failed to create report dir: %v\n", err)
		return 2
	}

	rep := report.New(targetHost(cfg), string(cfg.Mode), a.Version)

	overallFail := false
	for _, m := range mods {
		if ctx.Err() != nil {
			fmt.Fprintln(a.Stderr, "Cancelled; skipping remaining modules")
			break
		}
		result := a.runOneModule(ctx, cfg, m)
		rep.Modules = append(rep.Modules, result)
		if result.Error != "" || result.Result.Status == remedy.StatusFailed {
			overallFail = true
		}
	}
	rep.Summary = report.Summarize(rep.Modules)

	reportPath := filepath.Join(cfg.ReportDir,
		fmt.Sprintf("winmaint_report_%s.json", rep.Timestamp.Format("20060102150405")))
	if err := report.WriteJSONFile(reportPath, rep); err != nil {
		fmt.Fprintf(a.Stderr, "Failed to write report: %v\n", err)
		return 2
	}

	if err := a.recordHistory(ctx, cfg, rep); err != nil {
		fmt.Fprintf(a.Stderr, "Warning: history not recorded: %v\n", err)
	}

	if *flagJSON {
		enc := json.NewEncoder(a.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
	} else {
		fmt.Fprint(a.Stdout, report.Render(rep))
		fmt.Fprintf(a.Stdout, "\nReport: %s\n", reportPath)
	}

	if overallFail {
		return 1
	}
	return 0
}

func (a *App) runOneModule(ctx context.Context, cfg config.Config, m *modules.Module) report.ModuleResult {
	startedAt := time.Now().UTC()
	logger, logPath, err := report.NewModuleLogger(cfg.LogDir, m.Name, startedAt)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Failed to init logger for %s: %v\n", m.Name, err)
	}
	defer logger.Close()

	fmt.Fprintf(a.Stdout, "[%s] running ...\n", m.Name)

	obs := &report.LogObserver{Log: logger, Module: m.Name}
	res, findings, runErr := m.Run(ctx, cfg.Mode == config.ModeDryRun, obs)
	finishedAt := time.Now().UTC()

	result := report.ModuleResult{
		Module:     m.Name,
		LogPath:    logPath,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}

	if runErr != nil {
		result.Error = runErr.Error()
		logger.Errorf("%v", runErr)
		var derr *remedy.DetectionError
		if errors.As(runErr, &derr) {
			fmt.Fprintf(a.Stdout, "  ERROR [%s] detection failed\n", m.Name)
		} else {
			fmt.Fprintf(a.Stdout, "  ERROR [%s]\n", m.Name)
		}
		return result
	}

	result.Result = *res
	if m.Name == "inventory" {
		result.Facts = factsFromFindings(findings)
	}
	line := fmt.Sprintf("  %s [%s]", strings.ToUpper(string(res.Status)), m.Name)
	if res.Message != "" {
		line += " " + res.Message
	}
	fmt.Fprintln(a.Stdout, line)
	return result
}

func (a *App) runHistory(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("winmaint history", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)

	var (
		flagLimit  = fs.Int("limit", 20, "Maximum rows to show")
		flagDotEnv = fs.String("dotenv", ".env", "Path to .env file")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.LoadEnv(config.DefaultConfig(), *flagDotEnv)

	h, err := report.OpenHistory(cfg.HistoryPath)
	if err != nil {
		fmt.Fprintf(a.Stderr, "History error: %v\n", err)
		return 2
	}
	defer h.Close()

	entries, err := h.Recent(ctx, *flagLimit)
	if err != nil {
		fmt.Fprintf(a.Stderr, "History error: %v\n", err)
		return 2
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.Stdout, "No recorded runs")
		return 0
	}
	for _, e := range entries {
		fmt.Fprintf(a.Stdout, "%s  %s  %-7s %-10s %-8s detected=%d processed=%d failed=%d\n",
			e.Timestamp.Format("2006-01-02 15:04"), e.Host, e.Mode, e.Module, e.Status,
			e.Detected, e.Processed, e.Failed)
	}
	return 0
}

func (a *App) recordHistory(ctx context.Context, cfg config.Config, rep report.Report) error {
	h, err := report.OpenHistory(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer h.Close()
	// Recording should survive a cancelled run context.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return h.Record(rctx, rep)
}

func newRunner(cfg config.Config) (winexec.Runner, error) {
	if cfg.Target == config.TargetSSH {
		return winexec.NewSSHRunner(winexec.SSHOptions{
			Host:         cfg.SSHHost,
			Port:         cfg.SSHPort,
			User:         cfg.SSHUser,
			UserFallback: cfg.SSHUserFallback,
			KeyPath:      cfg.SSHKeyPath,
			Timeout:      cfg.SSHTimeout,
		})
	}
	return winexec.PowerShell{}, nil
}

func targetHost(cfg config.Config) string {
	if cfg.Target == config.TargetSSH {
		return cfg.SSHHost
	}
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func factsFromFindings(findings []remedy.Finding) map[string]string {
	if len(findings) == 0 {
		return nil
	}
	facts := make(map[string]string, len(findings))
	for _, f := range findings {
		facts[f.ID] = f.Current
	}
	return facts
}

func (a *App) printUsage() {
	fmt.Fprint(a.Stdout, `winmaint - Windows maintenance automation

Usage:
  winmaint list
  winmaint run [--modules <names>] [--apply] [--policy <path>] [--dotenv <path>] [--json]
  winmaint history [--limit <n>] [--dotenv <path>]

Examples:
  winmaint list
  winmaint run
  winmaint run --modules security,firewall --apply
  winmaint history --limit 10
`)
}
