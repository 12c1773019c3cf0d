package server

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/tanema/steep/src/lsp"
)

// SignatureWorker watches signature files: whenever one is opened or changed it
// revalidates the environment and publishes the resulting diagnostics. Code
// workers only check what the master assigns, the signature worker keeps the
// environment itself honest between batches.
type SignatureWorker struct {
	*BaseWorker
	service Service
}

// NewSignatureWorker returns a signature worker over the given streams.
func NewSignatureWorker(in io.Reader, out io.Writer, service Service) *SignatureWorker {
	return &SignatureWorker{
		BaseWorker: NewBaseWorker("signature", in, out),
		service:    service,
	}
}

// Run processes messages until the master closes the stream.
func (w *SignatureWorker) Run() error {
	return w.BaseWorker.Run(w.handle)
}

func (w *SignatureWorker) handle(msg *lsp.Message) error {
	switch msg.Method {
	case lsp.MethodInitialize:
		return nil
	case lsp.MethodDidOpen, lsp.MethodDidChange:
		params := struct {
			TextDocument lsp.TextDocumentIdentifier `json:"textDocument"`
		}{}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			w.log.Printf("malformed document params: %v", err)
			return nil
		}
		path := documentPathOf(params.TextDocument.URI)
		if !strings.HasSuffix(path, ".sig") {
			return nil
		}
		w.Notify(lsp.MethodPublishDiagnostics, lsp.PublishDiagnosticsParams{
			URI:         "file://" + path,
			Diagnostics: w.service.CheckFile(path),
		})
		return nil
	default:
		if msg.IsRequest() {
			w.Reply(msg.ID, nil)
		}
		return nil
	}
}

// documentPathOf strips the file scheme off a document URI.
func documentPathOf(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
