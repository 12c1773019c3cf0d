package server

import (
	"io"

	"github.com/pkg/errors"

	"github.com/tanema/steep/src/logging"
	"github.com/tanema/steep/src/lsp"
	"github.com/tanema/steep/src/serrors"
	"github.com/tanema/steep/src/sig"
)

type (
	// Service is the checking and query surface the worker servers run against.
	// sig.Env is the production implementation, tests substitute fakes.
	Service interface {
		CheckFile(path string) []lsp.Diagnostic
		Hover(path string, pos lsp.Position) *lsp.Hover
		Complete(path string, pos lsp.Position) []lsp.CompletionItem
		Definition(path string, pos lsp.Position) []lsp.Location
		Implementation(path string, pos lsp.Position) []lsp.Location
		Symbols(query string) []lsp.SymbolInformation
	}

	// BaseWorker is the shared transport loop of every worker server: it reads
	// framed messages off stdin, handles lifecycle methods, and hands the rest
	// to the specific worker. An internal error is reported to the master as a
	// window/showMessage of type error, which the master treats as fatal.
	BaseWorker struct {
		name   string
		reader *lsp.Reader
		writer *lsp.Writer
		log    *logging.Logger
	}
)

var _ Service = (*sig.Env)(nil)

// NewBaseWorker wraps the given streams in a worker transport.
func NewBaseWorker(name string, in io.Reader, out io.Writer) *BaseWorker {
	return &BaseWorker{
		name:   name,
		reader: lsp.NewReader(in),
		writer: lsp.NewWriter(out),
		log:    logging.New(name),
	}
}

// Run drains the inbound stream until EOF or exit, dispatching every non
// lifecycle message to handle. Malformed messages are logged and skipped.
func (w *BaseWorker) Run(handle func(msg *lsp.Message) error) error {
	for {
		msg, err := w.reader.Read()
		if err != nil {
			var serr *serrors.Error
			if errors.As(err, &serr) {
				w.log.Printf("malformed message: %v", serr)
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch msg.Method {
		case lsp.MethodInitialized:
		case lsp.MethodShutdown:
			if msg.IsRequest() {
				w.Reply(msg.ID, nil)
			}
		case lsp.MethodExit:
			return nil
		default:
			if err := handle(msg); err != nil {
				w.InternalError(err)
			}
		}
	}
}

// Reply sends a response for the given request id.
func (w *BaseWorker) Reply(id []byte, result any) {
	if err := w.writer.Write(lsp.NewResponse(id, result)); err != nil {
		w.log.Printf("write failed: %v", err)
	}
}

// Notify sends a notification to the master.
func (w *BaseWorker) Notify(method string, params any) {
	if err := w.writer.Write(lsp.NewNotification(method, params)); err != nil {
		w.log.Printf("write failed: %v", err)
	}
}

// InternalError reports a programmer bug upstream. The master forwards it to
// the client and flags the session as unrecoverable.
func (w *BaseWorker) InternalError(err error) {
	w.log.Printf("internal error: %v", err)
	w.Notify(lsp.MethodShowMessage, lsp.ShowMessageParams{
		Type:    lsp.MessageError,
		Message: (&serrors.Error{Kind: serrors.InternalErr, Err: err}).Error(),
	})
}
