package modules

import (
	"context"
	"testing"

	"winmaint/internal/remedy"
)

func TestDetectInventory(t *testing.T) {
	deps := testDeps(&fakeRunner{rules: []rule{
		{contains: "Win32_OperatingSystem).Caption", output: "Microsoft Windows Server 2022 Standard"},
		{contains: "Win32_OperatingSystem).Version", output: "10.0.20348"},
		{contains: "LastBootUpTime", output: "2026-08-28 06:12"},
		{contains: "Win32_ComputerSystem;", output: "Dell Inc. PowerEdge R650"},
		{contains: "TotalPhysicalMemory", output: "64"},
		{contains: "Win32_Processor", output: "Intel(R) Xeon(R) Silver 4314"},
		{contains: "Win32_LogicalDisk", output: `C: 120.5GB free of 237.9GB
D: 801.2GB free of 931.5GB`},
		{contains: "Win32_QuickFixEngineering", output: "23"},
	}})

	findings, err := detectInventory(context.Background(), deps)
	if err != nil {
		t.Fatalf("detectInventory: %v", err)
	}
	// Seven single-line facts plus two disk lines.
	if len(findings) != 9 {
		t.Fatalf("got %d findings, want 9: %+v", len(findings), findings)
	}

	byID := make(map[string]remedy.Finding, len(findings))
	for _, f := range findings {
		if f.Kind != remedy.KindInventoryRecord || f.Desired != "recorded" {
			t.Errorf("unexpected finding shape: %+v", f)
		}
		byID[f.ID] = f
	}
	if got := byID["os/caption"].Current; got != "Microsoft Windows Server 2022 Standard" {
		t.Errorf("os/caption = %q", got)
	}
	if _, ok := byID["disk/free/0"]; !ok {
		t.Error("multi-line disk output should index per line")
	}
	if got := byID["disk/free/1"].Current; got != "D: 801.2GB free of 931.5GB" {
		t.Errorf("disk/free/1 = %q", got)
	}
	if got := byID["sw/hotfix-count"].Current; got != "23" {
		t.Errorf("sw/hotfix-count = %q", got)
	}
}

func TestDetectInventorySparseHost(t *testing.T) {
	// Queries that produce no output simply contribute no facts.
	deps := testDeps(&fakeRunner{rules: []rule{
		{contains: "Win32_OperatingSystem).Caption", output: "Microsoft Windows 11 Pro"},
	}})

	findings, err := detectInventory(context.Background(), deps)
	if err != nil {
		t.Fatalf("detectInventory: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1: %+v", len(findings), findings)
	}
	if findings[0].ID != "os/caption" {
		t.Errorf("finding ID = %s", findings[0].ID)
	}
}

func TestRecorderApplierNeverMutates(t *testing.T) {
	f := remedy.Finding{
		Kind:    remedy.KindInventoryRecord,
		ID:      "os/caption",
		Desired: "recorded",
		Current: "Microsoft Windows 11 Pro",
	}

	for _, dryRun := range []bool{false, true} {
		out, err := recorderApplier().Apply(context.Background(), f, dryRun)
		if err != nil {
			t.Fatalf("apply (dryRun=%v): %v", dryRun, err)
		}
		if out.Changed {
			t.Errorf("recorder reported Changed (dryRun=%v)", dryRun)
		}
		if out.Message != "recorded Microsoft Windows 11 Pro" {
			t.Errorf("message = %q", out.Message)
		}
	}
}
