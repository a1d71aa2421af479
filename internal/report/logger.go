package report

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"winmaint/internal/remedy"
)

type Logger struct {
	l *log.Logger
	f *os.File
}

// NewModuleLogger opens a per-module log file under logDir and returns the
// logger plus the file path for the report.
func NewModuleLogger(logDir, module string, t time.Time) (*Logger, string, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, "", err
	}
	path := filepath.Join(logDir, fmt.Sprintf("winmaint_%s_%s.log", sanitize(module), t.Format("20060102150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", err
	}
	l := log.New(f, "", log.LstdFlags|log.LUTC)
	return &Logger{l: l, f: f}, path, nil
}

func (l *Logger) Infof(format string, args ...any) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Printf("[INFO] "+format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Printf("[ERROR] "+format, args...)
}

func (l *Logger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r)
		case r >= '0' && r <= '9':
			out = append(out, r)
		case r == '.' || r == '_' || r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// LogObserver writes one log line per engine event. A nil Logger inside is
// safe: every method degrades to a no-op.
type LogObserver struct {
	Log    *Logger
	Module string
}

func (o *LogObserver) BatchStarted(detected int, dryRun bool) {
	mode := "apply"
	if dryRun {
		mode = "dry-run"
	}
	o.Log.Infof("START %s mode=%s detected=%d", o.Module, mode, detected)
}

func (o *LogObserver) FindingApplied(f remedy.Finding, out remedy.Outcome, err error) {
	switch {
	case err != nil:
		o.Log.Errorf("FAIL %s/%s: %v", f.Kind, f.ID, err)
	case out.Changed:
		o.Log.Infof("CHANGED %s/%s: %s", f.Kind, f.ID, out.Message)
	default:
		o.Log.Infof("OK %s/%s: %s", f.Kind, f.ID, out.Message)
	}
}

func (o *LogObserver) BatchFinished(res *remedy.Result) {
	line := fmt.Sprintf("END %s status=%s detected=%d processed=%d failed=%d duration=%s",
		o.Module, res.Status, res.ItemsDetected, res.ItemsProcessed, res.ItemsFailed, res.Duration)
	if res.Status == remedy.StatusFailed {
		o.Log.Errorf("%s", line)
		return
	}
	o.Log.Infof("%s", line)
}
