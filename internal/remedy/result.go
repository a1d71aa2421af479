package remedy

import "time"

// Status is the overall outcome of one remediation batch.
type Status string

const (
	// StatusSuccess means every attempted item succeeded.
	StatusSuccess Status = "success"
	// StatusWarning means some items succeeded and some failed, or the batch
	// was cancelled after work had been done.
	StatusWarning Status = "warning"
	// StatusFailed means items were attempted and none succeeded.
	StatusFailed Status = "failed"
	// StatusSkipped means no items were attempted at all.
	StatusSkipped Status = "skipped"
)

// ItemError records one per-finding failure: an applier error or a finding
// kind with no registered applier.
type ItemError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Result is the standardized outcome of one engine batch. It is constructed
// once per invocation, immutable afterwards, and handed to the reporter.
// ItemsProcessed + ItemsFailed never exceeds ItemsDetected; findings the
// engine never reached due to cancellation are absent from both counts.
type Result struct {
	Status         Status        `json:"status"`
	ItemsDetected  int           `json:"items_detected"`
	ItemsProcessed int           `json:"items_processed"`
	ItemsFailed    int           `json:"items_failed"`
	Errors         []ItemError   `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration"`
	DryRun         bool          `json:"dry_run"`
	Message        string        `json:"message,omitempty"`
}

// deriveStatus computes the terminal status for a completed batch.
// cancelled batches degrade to Warning when work was done, Skipped otherwise.
func deriveStatus(processed, failed int, cancelled bool) Status {
	if cancelled {
		if processed > 0 || failed > 0 {
			return StatusWarning
		}
		return StatusSkipped
	}
	switch {
	case processed == 0 && failed > 0:
		return StatusFailed
	case failed == 0:
		return StatusSuccess
	default:
		return StatusWarning
	}
}
