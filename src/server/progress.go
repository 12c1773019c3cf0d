package server

import (
	"github.com/tanema/steep/src/lsp"
)

// ProgressReporter is the work done progress state machine for a single batch
// check: exactly one begin, zero or more reports, and at most one end are ever
// emitted for its token.
type ProgressReporter struct {
	token   string
	total   int
	enabled bool
	begun   bool
	ended   bool
	last    int
	send    func(*lsp.Message)
}

// NewProgressReporter returns a reporter for one batch check. A disabled
// reporter swallows every event so that callers never need to branch on the
// client capability.
func NewProgressReporter(token string, total int, enabled bool, send func(*lsp.Message)) *ProgressReporter {
	return &ProgressReporter{token: token, total: total, enabled: enabled, last: -1, send: send}
}

// Begin negotiates the token with the client and emits the begin event at zero
// percent.
func (p *ProgressReporter) Begin() {
	if !p.enabled || p.begun {
		return
	}
	p.begun = true
	p.send(lsp.NewRequest("progress-"+p.token, lsp.MethodProgressCreate, lsp.WorkDoneProgressCreateParams{Token: p.token}))
	zero := 0
	p.send(lsp.NewNotification(lsp.MethodProgress, lsp.ProgressParams{
		Token: p.token,
		Value: lsp.WorkDoneProgressValue{Kind: "begin", Title: "type checking", Percentage: &zero},
	}))
}

// Report emits the floored percentage for the given completion count. Repeated
// counts are deduplicated.
func (p *ProgressReporter) Report(completed int) {
	if !p.enabled || !p.begun || p.ended || p.total == 0 {
		return
	}
	percentage := 100 * completed / p.total
	if percentage == p.last {
		return
	}
	p.last = percentage
	p.send(lsp.NewNotification(lsp.MethodProgress, lsp.ProgressParams{
		Token: p.token,
		Value: lsp.WorkDoneProgressValue{Kind: "report", Percentage: &percentage},
	}))
}

// End emits the end event once.
func (p *ProgressReporter) End() {
	if !p.enabled || !p.begun || p.ended {
		return
	}
	p.ended = true
	p.send(lsp.NewNotification(lsp.MethodProgress, lsp.ProgressParams{
		Token: p.token,
		Value: lsp.WorkDoneProgressValue{Kind: "end"},
	}))
}
