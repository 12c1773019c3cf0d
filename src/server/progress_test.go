package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/steep/src/lsp"
)

func progressEvents(t *testing.T, sent []*lsp.Message) []string {
	t.Helper()
	events := []string{}
	for _, msg := range sent {
		switch msg.Method {
		case lsp.MethodProgressCreate:
			events = append(events, "create")
		case lsp.MethodProgress:
			params := lsp.ProgressParams{}
			require.NoError(t, json.Unmarshal(msg.Params, &params))
			event := params.Value.Kind
			if params.Value.Percentage != nil {
				event = event + ":" + itoa(t, *params.Value.Percentage)
			}
			events = append(events, event)
		}
	}
	return events
}

func itoa(t *testing.T, n int) string {
	t.Helper()
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return string(data)
}

func TestProgressLifecycle(t *testing.T) {
	t.Parallel()
	sent := []*lsp.Message{}
	reporter := NewProgressReporter("guid-1", 4, true, func(msg *lsp.Message) {
		sent = append(sent, msg)
	})
	reporter.Begin()
	reporter.Begin() // a second begin must not emit again
	reporter.Report(1)
	reporter.Report(1) // duplicate percentage deduplicated
	reporter.Report(2)
	reporter.Report(3)
	reporter.Report(4)
	reporter.End()
	reporter.End() // a second end must not emit again

	assert.Equal(t, []string{"create", "begin:0", "report:25", "report:50", "report:75", "report:100", "end"}, progressEvents(t, sent))
}

func TestProgressDisabled(t *testing.T) {
	t.Parallel()
	sent := []*lsp.Message{}
	reporter := NewProgressReporter("guid-1", 4, false, func(msg *lsp.Message) {
		sent = append(sent, msg)
	})
	reporter.Begin()
	reporter.Report(2)
	reporter.End()
	assert.Empty(t, sent)
}

func TestProgressFlooring(t *testing.T) {
	t.Parallel()
	sent := []*lsp.Message{}
	reporter := NewProgressReporter("guid-1", 3, true, func(msg *lsp.Message) {
		sent = append(sent, msg)
	})
	reporter.Begin()
	reporter.Report(1)
	reporter.Report(2)
	reporter.Report(3)
	reporter.End()
	assert.Equal(t, []string{"create", "begin:0", "report:33", "report:66", "report:100", "end"}, progressEvents(t, sent))
}

func TestProgressNoReportBeforeBegin(t *testing.T) {
	t.Parallel()
	sent := []*lsp.Message{}
	reporter := NewProgressReporter("guid-1", 2, true, func(msg *lsp.Message) {
		sent = append(sent, msg)
	})
	reporter.Report(1)
	reporter.End()
	assert.Empty(t, sent)
}
