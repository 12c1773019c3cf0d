package server

import (
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/tanema/steep/src/conf"
	"github.com/tanema/steep/src/logging"
	"github.com/tanema/steep/src/lsp"
	"github.com/tanema/steep/src/serrors"
)

type (
	// Worker is the master's view of a worker: a named destination messages can
	// be sent to. Tests substitute in memory fakes.
	Worker interface {
		Name() string
		Send(msg *lsp.Message)
	}

	// Inbound is one decoded message arriving at the master event loop, tagged
	// with its source. EOF marks a closed stream instead of a message.
	Inbound struct {
		Source string
		Msg    *lsp.Message
		EOF    bool
	}

	// WorkerProcess is a child process speaking LSP over its stdin and stdout,
	// with stderr inherited. A writer goroutine drains the outbox so sends from
	// the event loop never block on the pipe.
	WorkerProcess struct {
		name   string
		cmd    *exec.Cmd
		stdin  io.WriteCloser
		reader *lsp.Reader
		writer *lsp.Writer
		outbox chan *lsp.Message
		donewr chan struct{}
		log    *logging.Logger
	}
)

// SourceClient tags inbound messages read from the client stream.
const SourceClient = "client"

// SpawnWorker starts a child worker process and its writer goroutine. The
// returned worker is ready to Send to, ReadLoop must be started by the caller
// so that the inbox is owned by the master.
func SpawnWorker(name, exe string, args ...string) (*WorkerProcess, error) {
	cmd := exec.Command(exe, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "spawning worker %v", name)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "spawning worker %v", name)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "spawning worker %v", name)
	}
	w := &WorkerProcess{
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		reader: lsp.NewReader(stdout),
		writer: lsp.NewWriter(stdin),
		outbox: make(chan *lsp.Message, conf.WRITEQUEUESIZE),
		donewr: make(chan struct{}),
		log:    logging.New(name),
	}
	go w.writeLoop()
	return w, nil
}

// Name implements Worker.
func (w *WorkerProcess) Name() string { return w.name }

// Send implements Worker by enqueueing onto the worker's outbox.
func (w *WorkerProcess) Send(msg *lsp.Message) {
	w.outbox <- msg
}

func (w *WorkerProcess) writeLoop() {
	defer close(w.donewr)
	for msg := range w.outbox {
		if err := w.writer.Write(msg); err != nil {
			w.log.Printf("write failed: %v", err)
			return
		}
	}
}

// ReadLoop decodes messages from the worker until its stream closes, pushing
// each onto the master inbox. A protocol error is logged and skipped, EOF is
// reported as a tagged sentinel so the master can requeue the worker's paths.
func (w *WorkerProcess) ReadLoop(inbox chan<- Inbound) {
	for {
		msg, err := w.reader.Read()
		if err != nil {
			var serr *serrors.Error
			if errors.As(err, &serr) {
				w.log.Printf("malformed message: %v", serr)
				continue
			}
			inbox <- Inbound{Source: w.name, EOF: true}
			return
		}
		inbox <- Inbound{Source: w.name, Msg: msg}
	}
}

// Shutdown drains the outbox, closes the worker's stdin as the exit sentinel,
// and waits for the process.
func (w *WorkerProcess) Shutdown() error {
	close(w.outbox)
	<-w.donewr
	if err := w.stdin.Close(); err != nil {
		w.log.Printf("closing stdin: %v", err)
	}
	return w.cmd.Wait()
}
