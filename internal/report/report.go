package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"winmaint/internal/remedy"
)

type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Report is the run-level JSON artifact, one per invocation.
type Report struct {
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Host      string         `json:"host"`
	Mode      string         `json:"mode"`
	Tool      ToolInfo       `json:"tool"`
	Summary   Summary        `json:"summary"`
	Modules   []ModuleResult `json:"modules"`
}

// ModuleResult pairs a module's engine result with its timing, log location
// and any inventory facts it collected.
type ModuleResult struct {
	Module     string            `json:"module"`
	Result     remedy.Result     `json:"result"`
	Error      string            `json:"error,omitempty"`
	LogPath    string            `json:"log_path,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Facts      map[string]string `json:"facts,omitempty"`
}

type Summary struct {
	Modules        int `json:"modules"`
	Succeeded      int `json:"succeeded"`
	Warnings       int `json:"warnings"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	ItemsDetected  int `json:"items_detected"`
	ItemsProcessed int `json:"items_processed"`
	ItemsFailed    int `json:"items_failed"`
}

// New builds an empty report stamped with a fresh run ID.
func New(host, mode, version string) Report {
	return Report{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Host:      host,
		Mode:      mode,
		Tool:      ToolInfo{Name: "winmaint", Version: version},
	}
}

func Summarize(modules []ModuleResult) Summary {
	s := Summary{Modules: len(modules)}
	for _, m := range modules {
		switch m.Result.Status {
		case remedy.StatusSuccess:
			s.Succeeded++
		case remedy.StatusWarning:
			s.Warnings++
		case remedy.StatusFailed:
			s.Failed++
		case remedy.StatusSkipped:
			s.Skipped++
		}
		if m.Error != "" && m.Result.Status == "" {
			// Detection failure: the module never produced a result.
			s.Failed++
		}
		s.ItemsDetected += m.Result.ItemsDetected
		s.ItemsProcessed += m.Result.ItemsProcessed
		s.ItemsFailed += m.Result.ItemsFailed
	}
	return s
}

func WriteJSONFile(path string, v any) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
