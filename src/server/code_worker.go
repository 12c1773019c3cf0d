package server

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tanema/steep/src/lsp"
)

// CodeWorker is the worker server that runs batch checks: it receives
// typecheck_start notifications, checks each assigned path, publishes the
// diagnostics, and reports one typecheck_update per finished path.
type CodeWorker struct {
	*BaseWorker
	service Service
	index   int
	count   int
}

// NewCodeWorker returns a code worker over the given streams. Index and count
// identify this worker's slice of the pool.
func NewCodeWorker(in io.Reader, out io.Writer, service Service, index, count int) *CodeWorker {
	return &CodeWorker{
		BaseWorker: NewBaseWorker(workerName(index), in, out),
		service:    service,
		index:      index,
		count:      count,
	}
}

// Run processes messages until the master closes the stream.
func (w *CodeWorker) Run() error {
	return w.BaseWorker.Run(w.handle)
}

func (w *CodeWorker) handle(msg *lsp.Message) error {
	switch msg.Method {
	case lsp.MethodInitialize:
		// each worker loads the signature environment independently, nothing
		// shared with the master survives initialize
		return nil
	case lsp.MethodDidOpen, lsp.MethodDidChange, lsp.MethodDidClose:
		return nil
	case lsp.MethodTypecheckStart:
		params := lsp.TypecheckStartParams{}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			w.log.Printf("malformed typecheck start: %v", err)
			return nil
		}
		for _, path := range params.Paths {
			diags := w.service.CheckFile(path)
			w.Notify(lsp.MethodPublishDiagnostics, lsp.PublishDiagnosticsParams{
				URI:         "file://" + path,
				Diagnostics: diags,
			})
			w.Notify(lsp.MethodTypecheckUpdate, lsp.TypecheckUpdateParams{GUID: params.GUID, Path: path})
		}
		return nil
	case lsp.MethodWorkspaceSymbol:
		params := lsp.WorkspaceSymbolParams{}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			w.Reply(msg.ID, []lsp.SymbolInformation{})
			return nil
		}
		w.Reply(msg.ID, w.service.Symbols(params.Query))
		return nil
	default:
		if msg.IsRequest() {
			w.Reply(msg.ID, nil)
		}
		return nil
	}
}

func workerName(index int) string {
	return fmt.Sprintf("code[%v]", index)
}
