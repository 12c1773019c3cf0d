package server

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/tanema/steep/src/conf"
	"github.com/tanema/steep/src/logging"
	"github.com/tanema/steep/src/lsp"
	"github.com/tanema/steep/src/serrors"
)

type (
	// SendMessageJob is one outbound message on the master write queue, tagged
	// with its destination: the client or a worker by name.
	SendMessageJob struct {
		Dest    string
		Message *lsp.Message
	}

	// symbolAggregate collects workspace/symbol responses from all code workers
	// before replying to the client once.
	symbolAggregate struct {
		clientID  json.RawMessage
		remaining map[string]struct{}
		results   []lsp.SymbolInformation
	}

	// Master is the LSP server endpoint the client talks to. It demultiplexes
	// incoming messages to the interaction, signature, and code workers,
	// aggregates their responses, publishes diagnostics, and reports progress.
	// All state is owned by the single event loop goroutine.
	Master struct {
		log        *logging.Logger
		controller *TypeCheckController
		writeQueue chan SendMessageJob
		inbox      chan Inbound

		interaction Worker
		signature   Worker
		code        []Worker
		dead        map[string]struct{}

		progressEnabled   bool
		progressThreshold int

		current  *CheckRequest
		progress *ProgressReporter

		nextID             int
		pendingInteraction map[string]json.RawMessage
		cancelled          map[string]struct{}
		symbols            *symbolAggregate

		shutdownID      json.RawMessage
		shutdownPending map[string]struct{}

		hadDiagnostics bool
		fatal          bool
		exited         bool
	}
)

// NewMaster builds a master over the given workers. The code worker count must
// match the controller the assignments are computed with.
func NewMaster(interaction, signature Worker, code []Worker) *Master {
	return &Master{
		log:                logging.New("master"),
		controller:         NewTypeCheckController(len(code)),
		writeQueue:         make(chan SendMessageJob, conf.WRITEQUEUESIZE),
		inbox:              make(chan Inbound, conf.INBOUNDQUEUESIZE),
		interaction:        interaction,
		signature:          signature,
		code:               code,
		dead:               map[string]struct{}{},
		progressThreshold:  conf.DEFAULTPROGRESSTHRESHOLD,
		pendingInteraction: map[string]json.RawMessage{},
		cancelled:          map[string]struct{}{},
	}
}

// SetProgressThreshold overrides the minimum batch size for progress events.
func (m *Master) SetProgressThreshold(threshold int) { m.progressThreshold = threshold }

// Controller exposes the type check controller for the driver.
func (m *Master) Controller() *TypeCheckController { return m.controller }

// Inbox is the shared queue worker read loops push decoded messages onto.
func (m *Master) Inbox() chan<- Inbound { return m.inbox }

// Jobs exposes the write queue, drained by the writer goroutine in production
// and read directly under test.
func (m *Master) Jobs() <-chan SendMessageJob { return m.writeQueue }

// ExitCode reports the driver exit code for the session so far: 2 after an
// unrecoverable worker error, 1 when diagnostics were published, 0 otherwise.
func (m *Master) ExitCode() int {
	if m.fatal {
		return conf.EXITWORKERERR
	}
	if m.hadDiagnostics {
		return conf.EXITDIAGNOSTICS
	}
	return conf.EXITOK
}

// Run is the master event loop. The client reader is drained on its own
// goroutine into the shared inbox, worker read loops must already be pumping
// into Inbox. Returns once the client sent exit, the client stream closed, or
// no code worker is left.
func (m *Master) Run(clientIn io.Reader, clientOut io.Writer) error {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.runWriter(lsp.NewWriter(clientOut))
	}()
	go func() {
		reader := lsp.NewReader(clientIn)
		for {
			msg, err := reader.Read()
			if err != nil {
				var serr *serrors.Error
				if errors.As(err, &serr) {
					m.log.Printf("malformed client message: %v", serr)
					continue
				}
				m.inbox <- Inbound{Source: SourceClient, EOF: true}
				return
			}
			m.inbox <- Inbound{Source: SourceClient, Msg: msg}
		}
	}()

	for in := range m.inbox {
		m.Handle(in)
		if m.exited {
			break
		}
	}
	// drain every queued job before the caller shuts the workers down
	close(m.writeQueue)
	<-writerDone
	return nil
}

// runWriter drains the write queue, routing each job to the client stream or
// the named worker.
func (m *Master) runWriter(client *lsp.Writer) {
	for job := range m.writeQueue {
		if job.Dest == SourceClient {
			if err := client.Write(job.Message); err != nil {
				m.log.Printf("client write failed: %v", err)
			}
			continue
		}
		if worker := m.workerNamed(job.Dest); worker != nil {
			worker.Send(job.Message)
		}
	}
}

// Handle processes one inbound message to completion. It is the only method
// that touches master state and always runs on the event loop goroutine.
func (m *Master) Handle(in Inbound) {
	switch {
	case in.EOF && in.Source == SourceClient:
		m.exited = true
	case in.EOF:
		m.handleWorkerEOF(in.Source)
	case in.Source == SourceClient:
		m.handleClient(in.Msg)
	default:
		m.handleWorker(in.Source, in.Msg)
	}
}

func (m *Master) handleClient(msg *lsp.Message) {
	switch msg.Method {
	case lsp.MethodInitialize:
		m.handleInitialize(msg)
	case lsp.MethodInitialized:
	case lsp.MethodDidOpen:
		if path, ok := m.documentPath(msg.Params); ok {
			m.controller.UpdatePriority([]string{path}, nil)
			m.broadcastCode(msg)
		}
	case lsp.MethodDidClose:
		if path, ok := m.documentPath(msg.Params); ok {
			m.controller.UpdatePriority(nil, []string{path})
			m.broadcastCode(msg)
		}
	case lsp.MethodDidChange:
		if path, ok := m.documentPath(msg.Params); ok {
			m.controller.PushChange(path)
			m.broadcastCode(msg)
		}
	case lsp.MethodDidSave:
		// discarded, a save changes nothing the checker has not already seen
	case lsp.MethodHover, lsp.MethodCompletion:
		m.routeInteraction(msg, json.RawMessage("null"))
	case lsp.MethodDefinition, lsp.MethodImplementation:
		m.routeInteraction(msg, json.RawMessage("[]"))
	case lsp.MethodWorkspaceSymbol:
		m.handleWorkspaceSymbol(msg)
	case lsp.MethodTypecheck:
		m.handleTypecheck(msg)
	case lsp.MethodCancelRequest:
		params := lsp.CancelParams{}
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			m.cancelled[string(params.ID)] = struct{}{}
		}
		m.enqueue(m.interaction.Name(), msg)
	case lsp.MethodShutdown:
		m.handleShutdown(msg)
	case lsp.MethodExit:
		m.broadcastAll(lsp.NewNotification(lsp.MethodExit, nil))
		m.exited = true
	default:
		if msg.IsRequest() {
			m.enqueue(SourceClient, lsp.NewErrorResponse(msg.ID, -32601, fmt.Sprintf("unhandled method %v", msg.Method)))
		} else {
			m.log.Printf("ignoring %v", msg.Method)
		}
	}
}

func (m *Master) handleInitialize(msg *lsp.Message) {
	params := lsp.InitializeParams{}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		m.log.Printf("malformed initialize params: %v", err)
	}
	m.progressEnabled = params.Capabilities.Window.WorkDoneProgress
	m.enqueue(SourceClient, lsp.NewResponse(msg.ID, lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			TextDocumentSync:        1, // full
			HoverProvider:           true,
			DefinitionProvider:      true,
			ImplementationProvider:  true,
			WorkspaceSymbolProvider: true,
			CompletionProvider:      &lsp.CompletionOptions{TriggerCharacters: []string{"."}},
		},
	}))
	m.broadcastAll(lsp.NewNotification(lsp.MethodInitialize, msg.Params))
}

// routeInteraction forwards a positional request to the interaction worker,
// correlating the response by a fresh request id. Untitled documents never
// reach a worker, they are answered immediately with the empty result.
func (m *Master) routeInteraction(msg *lsp.Message, empty json.RawMessage) {
	params := lsp.TextDocumentPositionParams{}
	if err := json.Unmarshal(msg.Params, &params); err != nil || isUntitled(params.TextDocument.URI) {
		m.enqueue(SourceClient, lsp.NewResponse(msg.ID, empty))
		return
	}
	id := m.newID()
	m.pendingInteraction[id] = msg.ID
	m.enqueue(m.interaction.Name(), lsp.NewRequest(id, msg.Method, msg.Params))
}

func (m *Master) handleWorkspaceSymbol(msg *lsp.Message) {
	aggregate := &symbolAggregate{
		clientID:  msg.ID,
		remaining: map[string]struct{}{},
		results:   []lsp.SymbolInformation{},
	}
	for _, worker := range m.aliveCode() {
		id := m.newID()
		aggregate.remaining[id] = struct{}{}
		m.enqueue(worker.Name(), lsp.NewRequest(id, lsp.MethodWorkspaceSymbol, msg.Params))
	}
	if len(aggregate.remaining) == 0 {
		m.enqueue(SourceClient, lsp.NewResponse(msg.ID, aggregate.results))
		return
	}
	m.symbols = aggregate
}

func (m *Master) handleTypecheck(msg *lsp.Message) {
	params := lsp.TypecheckParams{}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		m.enqueue(SourceClient, lsp.NewErrorResponse(msg.ID, -32602, "invalid typecheck params"))
		return
	}
	for _, path := range params.Paths {
		if !isUntitled(path) {
			m.controller.PushChange(strings.TrimPrefix(path, "file://"))
		}
	}
	m.StartTypeCheck(params.GUID, msg.ID)
}

// StartTypeCheck begins a new batch check, replacing and thereby cancelling any
// batch still in flight. A nil clientID runs the batch without a response.
func (m *Master) StartTypeCheck(guid string, clientID json.RawMessage) {
	request := m.controller.MakeRequest(m.current)
	if request == nil {
		if clientID != nil {
			m.enqueue(SourceClient, lsp.NewResponse(clientID, nil))
		}
		return
	}
	if guid != "" {
		request.GUID = guid
	}
	request.ClientID = clientID

	enabled := m.progressEnabled && request.Total >= m.progressThreshold
	m.progress = NewProgressReporter(request.GUID, request.Total, enabled, func(msg *lsp.Message) {
		m.enqueue(SourceClient, msg)
	})
	m.progress.Begin()

	for i, assignment := range request.Assignments {
		if len(assignment) == 0 || i >= len(m.code) {
			continue
		}
		m.enqueue(m.code[i].Name(), lsp.NewNotification(lsp.MethodTypecheckStart, lsp.TypecheckStartParams{
			GUID:  request.GUID,
			Paths: assignment,
		}))
	}
	m.current = request
}

// OnTypeCheckUpdate accounts one checked path against the current batch. Stale
// GUIDs and paths outside the assignment are dropped without touching the
// counters.
func (m *Master) OnTypeCheckUpdate(guid, path string) {
	if m.current == nil || m.current.GUID != guid {
		return
	}
	if !m.current.MarkCompleted(path) {
		return
	}
	m.progress.Report(m.current.Completed)
	if !m.current.Finished() {
		return
	}
	m.progress.End()
	if m.current.ClientID != nil {
		m.enqueue(SourceClient, lsp.NewResponse(m.current.ClientID, lsp.TypecheckParams{GUID: m.current.GUID}))
	}
	m.current = nil
	m.progress = nil
}

func (m *Master) handleWorker(source string, msg *lsp.Message) {
	switch {
	case msg.Method == lsp.MethodPublishDiagnostics:
		params := lsp.PublishDiagnosticsParams{}
		if err := json.Unmarshal(msg.Params, &params); err == nil && len(params.Diagnostics) > 0 {
			m.hadDiagnostics = true
		}
		m.enqueue(SourceClient, msg)
	case msg.Method == lsp.MethodTypecheckUpdate:
		params := lsp.TypecheckUpdateParams{}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			m.log.Printf("malformed typecheck update from %v", source)
			return
		}
		m.OnTypeCheckUpdate(params.GUID, params.Path)
	case msg.Method == lsp.MethodShowMessage:
		params := lsp.ShowMessageParams{}
		if err := json.Unmarshal(msg.Params, &params); err == nil && params.Type == lsp.MessageError {
			// an error report from a worker is unrecoverable
			m.fatal = true
		}
		m.enqueue(SourceClient, msg)
	case msg.IsResponse():
		m.handleWorkerResponse(source, msg)
	default:
		m.log.Printf("ignoring %v from %v", msg.Method, source)
	}
}

func (m *Master) handleWorkerResponse(source string, msg *lsp.Message) {
	id := rawID(msg.ID)

	if clientID, waiting := m.pendingInteraction[id]; waiting {
		delete(m.pendingInteraction, id)
		if _, dropped := m.cancelled[string(clientID)]; dropped {
			delete(m.cancelled, string(clientID))
			return
		}
		response := &lsp.Message{JSONRPC: "2.0", ID: clientID, Result: msg.Result, Error: msg.Error}
		m.enqueue(SourceClient, response)
		return
	}

	if m.symbols != nil {
		if _, waiting := m.symbols.remaining[id]; waiting {
			delete(m.symbols.remaining, id)
			results := []lsp.SymbolInformation{}
			if err := json.Unmarshal(msg.Result, &results); err == nil {
				m.symbols.results = append(m.symbols.results, results...)
			}
			if len(m.symbols.remaining) == 0 {
				m.enqueue(SourceClient, lsp.NewResponse(m.symbols.clientID, m.symbols.results))
				m.symbols = nil
			}
			return
		}
	}

	if m.shutdownPending != nil {
		if _, waiting := m.shutdownPending[id]; waiting {
			delete(m.shutdownPending, id)
			if len(m.shutdownPending) == 0 {
				m.enqueue(SourceClient, lsp.NewResponse(m.shutdownID, nil))
				m.shutdownPending = nil
			}
			return
		}
	}
}

func (m *Master) handleShutdown(msg *lsp.Message) {
	m.shutdownID = msg.ID
	m.shutdownPending = map[string]struct{}{}
	for _, worker := range m.aliveWorkers() {
		id := "shutdown-" + worker.Name()
		m.shutdownPending[id] = struct{}{}
		m.enqueue(worker.Name(), lsp.NewRequest(id, lsp.MethodShutdown, nil))
	}
	if len(m.shutdownPending) == 0 {
		m.enqueue(SourceClient, lsp.NewResponse(msg.ID, nil))
		m.shutdownPending = nil
	}
}

// handleWorkerEOF marks a dead worker and requeues its unfinished assignment
// onto the surviving code workers. Losing the interaction or signature worker,
// or the last code worker, is unrecoverable.
func (m *Master) handleWorkerEOF(source string) {
	m.log.Printf("worker %v died", source)
	m.dead[source] = struct{}{}

	index := m.codeIndex(source)
	alive := m.aliveCode()
	if index < 0 || len(alive) == 0 {
		m.fatal = true
		m.enqueue(SourceClient, lsp.NewNotification(lsp.MethodShowMessage, lsp.ShowMessageParams{
			Type:    lsp.MessageError,
			Message: fmt.Sprintf("worker %v exited unexpectedly", source),
		}))
		if len(m.aliveCode()) == 0 {
			m.exited = true
		}
		return
	}
	if m.current == nil {
		return
	}

	pending := m.current.PendingFor(index)
	if len(pending) == 0 {
		return
	}
	regrouped := map[string][]string{}
	for i, path := range pending {
		target := alive[i%len(alive)]
		m.current.Reassign(path, m.workerIndex(target))
		regrouped[target.Name()] = append(regrouped[target.Name()], path)
	}
	for name, paths := range regrouped {
		m.enqueue(name, lsp.NewNotification(lsp.MethodTypecheckStart, lsp.TypecheckStartParams{
			GUID:  m.current.GUID,
			Paths: paths,
		}))
	}
}

func (m *Master) enqueue(dest string, msg *lsp.Message) {
	m.writeQueue <- SendMessageJob{Dest: dest, Message: msg}
}

func (m *Master) broadcastAll(msg *lsp.Message) {
	for _, worker := range m.aliveWorkers() {
		m.enqueue(worker.Name(), msg)
	}
}

func (m *Master) broadcastCode(msg *lsp.Message) {
	for _, worker := range m.aliveCode() {
		m.enqueue(worker.Name(), msg)
	}
}

func (m *Master) aliveWorkers() []Worker {
	workers := []Worker{}
	for _, worker := range append([]Worker{m.interaction, m.signature}, m.code...) {
		if _, died := m.dead[worker.Name()]; !died {
			workers = append(workers, worker)
		}
	}
	return workers
}

func (m *Master) aliveCode() []Worker {
	workers := []Worker{}
	for _, worker := range m.code {
		if _, died := m.dead[worker.Name()]; !died {
			workers = append(workers, worker)
		}
	}
	return workers
}

func (m *Master) workerNamed(name string) Worker {
	for _, worker := range append([]Worker{m.interaction, m.signature}, m.code...) {
		if worker.Name() == name {
			return worker
		}
	}
	return nil
}

func (m *Master) codeIndex(name string) int {
	for i, worker := range m.code {
		if worker.Name() == name {
			return i
		}
	}
	return -1
}

func (m *Master) workerIndex(w Worker) int { return m.codeIndex(w.Name()) }

func (m *Master) newID() string {
	m.nextID++
	return fmt.Sprintf("m-%v", m.nextID)
}

// documentPath extracts and normalizes the path of a text document param
// payload, reporting false for untitled documents so they never reach the
// controller or a worker.
func (m *Master) documentPath(raw json.RawMessage) (string, bool) {
	params := struct {
		TextDocument lsp.TextDocumentIdentifier `json:"textDocument"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		m.log.Printf("malformed document params: %v", err)
		return "", false
	}
	if isUntitled(params.TextDocument.URI) {
		return "", false
	}
	return strings.TrimPrefix(params.TextDocument.URI, "file://"), true
}

func isUntitled(uri string) bool {
	return strings.HasPrefix(uri, "untitled:")
}

// rawID normalizes a JSON id for map keys.
func rawID(id json.RawMessage) string {
	return strings.Trim(string(id), `"`)
}
