package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"winmaint/internal/remedy"
)

func sampleReport() Report {
	r := New("server01", "dry-run", "test")
	r.Modules = []ModuleResult{
		{
			Module: "inventory",
			Result: remedy.Result{Status: remedy.StatusSuccess, ItemsDetected: 9, ItemsProcessed: 9},
			Facts:  map[string]string{"os/caption": "Microsoft Windows Server 2022 Standard"},
		},
		{
			Module: "security",
			Result: remedy.Result{
				Status:         remedy.StatusWarning,
				ItemsDetected:  4,
				ItemsProcessed: 3,
				ItemsFailed:    1,
				Errors:         []remedy.ItemError{{ID: "localuser:Guest", Message: "access denied"}},
			},
		},
		{
			Module: "firewall",
			Result: remedy.Result{Status: remedy.StatusSkipped},
		},
		{
			Module: "updates",
			Error:  "detection failed for module updates: connection reset",
		},
	}
	r.Summary = Summarize(r.Modules)
	return r
}

func TestSummarize(t *testing.T) {
	s := sampleReport().Summary

	if s.Modules != 4 {
		t.Errorf("Modules = %d, want 4", s.Modules)
	}
	if s.Succeeded != 1 || s.Warnings != 1 || s.Skipped != 1 {
		t.Errorf("status counts = %+v", s)
	}
	// A detection failure with no engine result still counts as failed.
	if s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
	if s.ItemsDetected != 13 || s.ItemsProcessed != 12 || s.ItemsFailed != 1 {
		t.Errorf("item totals = %+v", s)
	}
}

func TestNewAssignsRunID(t *testing.T) {
	a := New("h", "apply", "test")
	b := New("h", "apply", "test")
	if a.RunID == "" || a.RunID == b.RunID {
		t.Errorf("run IDs not unique: %q vs %q", a.RunID, b.RunID)
	}
	if a.Tool.Name != "winmaint" {
		t.Errorf("tool name = %q", a.Tool.Name)
	}
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	want := sampleReport()

	if err := WriteJSONFile(path, want); err != nil {
		t.Fatalf("WriteJSONFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if got.RunID != want.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, want.RunID)
	}
	if len(got.Modules) != len(want.Modules) {
		t.Fatalf("modules = %d, want %d", len(got.Modules), len(want.Modules))
	}
	if got.Modules[1].Result.Errors[0].ID != "localuser:Guest" {
		t.Errorf("item error lost in round trip: %+v", got.Modules[1].Result)
	}
	if got.Modules[0].Facts["os/caption"] == "" {
		t.Error("inventory facts lost in round trip")
	}
}

func TestRender(t *testing.T) {
	out := Render(sampleReport())

	for _, want := range []string{
		"inventory", "security", "firewall", "updates",
		"localuser:Guest: access denied",
		"4 modules: 1 succeeded, 1 warnings, 1 failed, 1 skipped",
		"13 items detected, 12 processed, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered summary missing %q:\n%s", want, out)
		}
	}
}

func TestModuleLogger(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	logger, path, err := NewModuleLogger(dir, "security/extra", now)
	if err != nil {
		t.Fatalf("NewModuleLogger: %v", err)
	}

	if base := filepath.Base(path); base != "winmaint_security_extra_20260829120000.log" {
		t.Errorf("log filename = %q", base)
	}

	logger.Infof("hello %s", "world")
	logger.Errorf("bad %d", 7)
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[INFO] hello world") {
		t.Errorf("missing info line:\n%s", data)
	}
	if !strings.Contains(string(data), "[ERROR] bad 7") {
		t.Errorf("missing error line:\n%s", data)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Infof("ignored")
	l.Errorf("ignored")
	if err := l.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}

	obs := &LogObserver{Log: nil, Module: "security"}
	obs.BatchStarted(3, true)
	obs.FindingApplied(remedy.Finding{Kind: remedy.KindRegistryValue, ID: "x"}, remedy.Outcome{}, nil)
	obs.BatchFinished(&remedy.Result{Status: remedy.StatusSuccess})
}

func TestLogObserver(t *testing.T) {
	dir := t.TempDir()
	logger, path, err := NewModuleLogger(dir, "firewall", time.Now().UTC())
	if err != nil {
		t.Fatalf("NewModuleLogger: %v", err)
	}
	obs := &LogObserver{Log: logger, Module: "firewall"}

	obs.BatchStarted(2, false)
	obs.FindingApplied(
		remedy.Finding{Kind: remedy.KindFirewallProfile, ID: "Domain,Private,Public"},
		remedy.Outcome{Changed: true, Message: "enable firewall for Domain,Private,Public"}, nil)
	obs.FindingApplied(
		remedy.Finding{Kind: remedy.KindFirewallProfile, ID: "logging:Public"},
		remedy.Outcome{}, os.ErrPermission)
	obs.BatchFinished(&remedy.Result{
		Status:         remedy.StatusWarning,
		ItemsDetected:  2,
		ItemsProcessed: 1,
		ItemsFailed:    1,
	})
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"START firewall mode=apply detected=2",
		"CHANGED firewall-profile/Domain,Private,Public",
		"[ERROR] FAIL firewall-profile/logging:Public",
		"END firewall status=warning detected=2 processed=1 failed=1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("log missing %q:\n%s", want, text)
		}
	}
}
