package modules

import (
	"context"
	"fmt"
	"strings"

	"winmaint/internal/remedy"
	"winmaint/internal/winexec"
)

// inventoryQueries are the CIM facts collected per run. Multi-line output
// yields one finding per line (disks, adapters).
var inventoryQueries = []struct {
	id     string
	script string
}{
	{
		"os/caption",
		`(Get-CimInstance Win32_OperatingSystem).Caption`,
	},
	{
		"os/version",
		`(Get-CimInstance Win32_OperatingSystem).Version`,
	},
	{
		"os/last-boot",
		`(Get-CimInstance Win32_OperatingSystem).LastBootUpTime.ToString("yyyy-MM-dd HH:mm")`,
	},
	{
		"hw/model",
		`$cs = Get-CimInstance Win32_ComputerSystem; "$($cs.Manufacturer) $($cs.Model)"`,
	},
	{
		"hw/memory-gb",
		`[math]::Round((Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory / 1GB, 1)`,
	},
	{
		"hw/cpu",
		`(Get-CimInstance Win32_Processor | Select-Object -First 1).Name`,
	},
	{
		"disk/free",
		`Get-CimInstance Win32_LogicalDisk -Filter "DriveType=3" | ForEach-Object { "$($_.DeviceID) $([math]::Round($_.FreeSpace / 1GB, 1))GB free of $([math]::Round($_.Size / 1GB, 1))GB" }`,
	},
	{
		"sw/hotfix-count",
		`(Get-CimInstance Win32_QuickFixEngineering | Measure-Object).Count`,
	},
}

// Inventory builds the collection module. Every fact flows through the same
// engine as remediations, under a recorder applier that never mutates, so
// reporting and accounting stay uniform across all five modules.
func Inventory(deps Deps) *Module {
	reg := remedy.NewRegistry()
	reg.Register(remedy.KindInventoryRecord, recorderApplier())

	return &Module{
		Name:        "inventory",
		Description: "OS, hardware and software inventory via CIM",
		Detect:      func(ctx context.Context) ([]remedy.Finding, error) { return detectInventory(ctx, deps) },
		Registry:    reg,
	}
}

func detectInventory(ctx context.Context, deps Deps) ([]remedy.Finding, error) {
	var findings []remedy.Finding
	for _, q := range inventoryQueries {
		lines, err := winexec.Lines(ctx, deps.Runner, q.script)
		if err != nil {
			return nil, fmt.Errorf("inventory %s: %w", q.id, err)
		}
		for i, line := range lines {
			id := q.id
			if len(lines) > 1 {
				id = fmt.Sprintf("%s/%d", q.id, i)
			}
			findings = append(findings, remedy.Finding{
				Kind:    remedy.KindInventoryRecord,
				ID:      id,
				Desired: "recorded",
				Current: line,
				Detail:  line,
			})
		}
	}
	return findings, nil
}

// recorderApplier acknowledges a fact without touching the host. Changed is
// always false: collection is not a mutation.
func recorderApplier() remedy.ApplyFunc {
	return func(ctx context.Context, f remedy.Finding, dryRun bool) (remedy.Outcome, error) {
		return remedy.Outcome{Changed: false, Message: "recorded " + strings.TrimSpace(f.Current)}, nil
	}
}
