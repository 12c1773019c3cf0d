package server

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/steep/src/lsp"
)

type fakeService struct {
	checked []string
	diags   map[string][]lsp.Diagnostic
}

func (s *fakeService) CheckFile(path string) []lsp.Diagnostic {
	s.checked = append(s.checked, path)
	return s.diags[path]
}

func (s *fakeService) Hover(path string, pos lsp.Position) *lsp.Hover {
	return &lsp.Hover{Contents: lsp.MarkupContent{Kind: "markdown", Value: "def id: () -> Int"}}
}

func (s *fakeService) Complete(path string, pos lsp.Position) []lsp.CompletionItem {
	return []lsp.CompletionItem{{Label: "id"}}
}

func (s *fakeService) Definition(path string, pos lsp.Position) []lsp.Location {
	return []lsp.Location{}
}

func (s *fakeService) Implementation(path string, pos lsp.Position) []lsp.Location {
	return []lsp.Location{}
}

func (s *fakeService) Symbols(query string) []lsp.SymbolInformation {
	return []lsp.SymbolInformation{{Name: "User", Kind: 5}}
}

func encodeMessages(t *testing.T, msgs ...*lsp.Message) io.Reader {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	writer := lsp.NewWriter(buf)
	for _, msg := range msgs {
		require.NoError(t, writer.Write(msg))
	}
	return buf
}

func decodeMessages(t *testing.T, out *bytes.Buffer) []*lsp.Message {
	t.Helper()
	reader := lsp.NewReader(out)
	msgs := []*lsp.Message{}
	for {
		msg, err := reader.Read()
		if err != nil {
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

func TestCodeWorkerTypecheck(t *testing.T) {
	t.Parallel()
	service := &fakeService{diags: map[string][]lsp.Diagnostic{
		"lib/a.sig": {{Message: "unknown type name Post", Severity: lsp.SeverityError}},
	}}
	in := encodeMessages(t,
		lsp.NewNotification(lsp.MethodInitialize, lsp.InitializeParams{}),
		lsp.NewNotification(lsp.MethodTypecheckStart, lsp.TypecheckStartParams{
			GUID:  "guid-1",
			Paths: []string{"lib/a.sig", "lib/b.sig"},
		}),
		lsp.NewNotification(lsp.MethodExit, nil),
	)
	out := bytes.NewBuffer(nil)

	worker := NewCodeWorker(in, out, service, 0, 1)
	require.NoError(t, worker.Run())
	assert.Equal(t, []string{"lib/a.sig", "lib/b.sig"}, service.checked)

	methods := []string{}
	for _, msg := range decodeMessages(t, out) {
		methods = append(methods, msg.Method)
	}
	assert.Equal(t, []string{
		lsp.MethodPublishDiagnostics,
		lsp.MethodTypecheckUpdate,
		lsp.MethodPublishDiagnostics,
		lsp.MethodTypecheckUpdate,
	}, methods)
}

func TestCodeWorkerSymbols(t *testing.T) {
	t.Parallel()
	in := encodeMessages(t,
		lsp.NewRequest(3, lsp.MethodWorkspaceSymbol, lsp.WorkspaceSymbolParams{Query: "user"}),
		lsp.NewNotification(lsp.MethodExit, nil),
	)
	out := bytes.NewBuffer(nil)
	worker := NewCodeWorker(in, out, &fakeService{}, 0, 1)
	require.NoError(t, worker.Run())

	msgs := decodeMessages(t, out)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsResponse())
	assert.Contains(t, string(msgs[0].Result), "User")
}

func TestInteractionWorkerHover(t *testing.T) {
	t.Parallel()
	in := encodeMessages(t,
		lsp.NewRequest("m-1", lsp.MethodHover, lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: "file://lib/user.sig"},
			Position:     lsp.Position{Line: 1},
		}),
		lsp.NewNotification(lsp.MethodExit, nil),
	)
	out := bytes.NewBuffer(nil)
	worker := NewInteractionWorker(in, out, &fakeService{})
	require.NoError(t, worker.Run())

	msgs := decodeMessages(t, out)
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0].Result), "def id")
}

func TestInteractionWorkerCancel(t *testing.T) {
	t.Parallel()
	in := encodeMessages(t,
		lsp.NewNotification(lsp.MethodCancelRequest, lsp.CancelParams{ID: []byte(`"m-1"`)}),
		lsp.NewRequest("m-1", lsp.MethodHover, lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: "file://lib/user.sig"},
		}),
		lsp.NewNotification(lsp.MethodExit, nil),
	)
	out := bytes.NewBuffer(nil)
	worker := NewInteractionWorker(in, out, &fakeService{})
	require.NoError(t, worker.Run())
	assert.Empty(t, decodeMessages(t, out), "cancelled requests are never answered")
}

func TestSignatureWorkerPublishesOnChange(t *testing.T) {
	t.Parallel()
	service := &fakeService{diags: map[string][]lsp.Diagnostic{}}
	in := encodeMessages(t,
		lsp.NewNotification(lsp.MethodDidChange, lsp.DidChangeTextDocumentParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: "file://lib/user.sig"},
		}),
		lsp.NewNotification(lsp.MethodDidChange, lsp.DidChangeTextDocumentParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: "file://lib/app.code"},
		}),
		lsp.NewNotification(lsp.MethodExit, nil),
	)
	out := bytes.NewBuffer(nil)
	worker := NewSignatureWorker(in, out, service)
	require.NoError(t, worker.Run())

	assert.Equal(t, []string{"lib/user.sig"}, service.checked, "only signature files are revalidated")
	msgs := decodeMessages(t, out)
	require.Len(t, msgs, 1)
	assert.Equal(t, lsp.MethodPublishDiagnostics, msgs[0].Method)
}

func TestBaseWorkerShutdownReply(t *testing.T) {
	t.Parallel()
	in := encodeMessages(t,
		lsp.NewRequest("shutdown-code[0]", lsp.MethodShutdown, nil),
		lsp.NewNotification(lsp.MethodExit, nil),
	)
	out := bytes.NewBuffer(nil)
	worker := NewCodeWorker(in, out, &fakeService{}, 0, 1)
	require.NoError(t, worker.Run())

	msgs := decodeMessages(t, out)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsResponse())
}
