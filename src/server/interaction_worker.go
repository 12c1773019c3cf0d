package server

import (
	"encoding/json"
	"io"

	"github.com/tanema/steep/src/lsp"
)

// InteractionWorker answers hover, completion, definition, and implementation
// queries from the loaded signature environment. It never runs batch checks so
// interactive latency stays flat while the code workers are busy.
type InteractionWorker struct {
	*BaseWorker
	service   Service
	cancelled map[string]struct{}
}

// NewInteractionWorker returns an interaction worker over the given streams.
func NewInteractionWorker(in io.Reader, out io.Writer, service Service) *InteractionWorker {
	return &InteractionWorker{
		BaseWorker: NewBaseWorker("interaction", in, out),
		service:    service,
		cancelled:  map[string]struct{}{},
	}
}

// Run processes messages until the master closes the stream.
func (w *InteractionWorker) Run() error {
	return w.BaseWorker.Run(w.handle)
}

func (w *InteractionWorker) handle(msg *lsp.Message) error {
	switch msg.Method {
	case lsp.MethodInitialize:
		return nil
	case lsp.MethodCancelRequest:
		params := lsp.CancelParams{}
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			w.cancelled[string(params.ID)] = struct{}{}
		}
		return nil
	case lsp.MethodHover, lsp.MethodCompletion, lsp.MethodDefinition, lsp.MethodImplementation:
		if _, dropped := w.cancelled[string(msg.ID)]; dropped {
			delete(w.cancelled, string(msg.ID))
			return nil
		}
		params := lsp.TextDocumentPositionParams{}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			w.Reply(msg.ID, nil)
			return nil
		}
		path := documentPathOf(params.TextDocument.URI)
		switch msg.Method {
		case lsp.MethodHover:
			w.Reply(msg.ID, w.service.Hover(path, params.Position))
		case lsp.MethodCompletion:
			w.Reply(msg.ID, w.service.Complete(path, params.Position))
		case lsp.MethodDefinition:
			w.Reply(msg.ID, w.service.Definition(path, params.Position))
		case lsp.MethodImplementation:
			w.Reply(msg.ID, w.service.Implementation(path, params.Position))
		}
		return nil
	default:
		if msg.IsRequest() {
			w.Reply(msg.ID, nil)
		}
		return nil
	}
}
