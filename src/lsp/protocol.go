// Package lsp contains the JSON-RPC 2.0 envelope, the LSP payload structs used
// by steep, and the Content-Length framed transport. The structs are wire
// schema only, behaviour lives in the server package.
package lsp

import "encoding/json"

type (
	// Message is the JSON-RPC envelope for requests, notifications, and
	// responses. The populated fields decide which one it is.
	Message struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id,omitempty"`
		Method  string          `json:"method,omitempty"`
		Params  json.RawMessage `json:"params,omitempty"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *ResponseError  `json:"error,omitempty"`
	}

	// ResponseError is the JSON-RPC error object.
	ResponseError struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	// Position is a zero based line and character offset.
	Position struct {
		Line      int `json:"line"`
		Character int `json:"character"`
	}

	// Range is a half open span between two positions.
	Range struct {
		Start Position `json:"start"`
		End   Position `json:"end"`
	}

	// Location is a range within a document.
	Location struct {
		URI   string `json:"uri"`
		Range Range  `json:"range"`
	}

	// Diagnostic is a single reported problem in a document.
	Diagnostic struct {
		Range    Range  `json:"range"`
		Severity int    `json:"severity,omitempty"`
		Code     string `json:"code,omitempty"`
		Message  string `json:"message"`
	}

	// PublishDiagnosticsParams carries all current diagnostics for a document.
	PublishDiagnosticsParams struct {
		URI         string       `json:"uri"`
		Diagnostics []Diagnostic `json:"diagnostics"`
	}

	// TextDocumentIdentifier names a document by URI.
	TextDocumentIdentifier struct {
		URI string `json:"uri"`
	}

	// TextDocumentItem is the full open document payload.
	TextDocumentItem struct {
		URI        string `json:"uri"`
		LanguageID string `json:"languageId"`
		Version    int    `json:"version"`
		Text       string `json:"text"`
	}

	// DidOpenTextDocumentParams is the payload of textDocument/didOpen.
	DidOpenTextDocumentParams struct {
		TextDocument TextDocumentItem `json:"textDocument"`
	}

	// DidCloseTextDocumentParams is the payload of textDocument/didClose.
	DidCloseTextDocumentParams struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}

	// DidChangeTextDocumentParams is the payload of textDocument/didChange.
	DidChangeTextDocumentParams struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}

	// TextDocumentPositionParams is shared by hover, completion, definition, and
	// implementation requests.
	TextDocumentPositionParams struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
		Position     Position               `json:"position"`
	}

	// MarkupContent is a formatted string payload.
	MarkupContent struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}

	// Hover is the response payload of textDocument/hover.
	Hover struct {
		Contents MarkupContent `json:"contents"`
		Range    *Range        `json:"range,omitempty"`
	}

	// CompletionItem is a single completion suggestion.
	CompletionItem struct {
		Label  string `json:"label"`
		Kind   int    `json:"kind,omitempty"`
		Detail string `json:"detail,omitempty"`
	}

	// SymbolInformation is a single workspace/symbol result.
	SymbolInformation struct {
		Name     string   `json:"name"`
		Kind     int      `json:"kind"`
		Location Location `json:"location"`
	}

	// WindowCapabilities is the client window capability block.
	WindowCapabilities struct {
		WorkDoneProgress bool `json:"workDoneProgress"`
	}

	// ClientCapabilities is the subset of client capabilities steep reads.
	ClientCapabilities struct {
		Window WindowCapabilities `json:"window"`
	}

	// InitializeParams is the payload of initialize.
	InitializeParams struct {
		ProcessID    int                `json:"processId,omitempty"`
		RootURI      string             `json:"rootUri,omitempty"`
		Capabilities ClientCapabilities `json:"capabilities"`
	}

	// CompletionOptions advertises completion support.
	CompletionOptions struct {
		TriggerCharacters []string `json:"triggerCharacters,omitempty"`
	}

	// ServerCapabilities advertises what the master can handle.
	ServerCapabilities struct {
		TextDocumentSync        int                `json:"textDocumentSync"`
		HoverProvider           bool               `json:"hoverProvider"`
		DefinitionProvider      bool               `json:"definitionProvider"`
		ImplementationProvider  bool               `json:"implementationProvider"`
		WorkspaceSymbolProvider bool               `json:"workspaceSymbolProvider"`
		CompletionProvider      *CompletionOptions `json:"completionProvider,omitempty"`
	}

	// InitializeResult is the response payload of initialize.
	InitializeResult struct {
		Capabilities ServerCapabilities `json:"capabilities"`
	}

	// ShowMessageParams is the payload of window/showMessage.
	ShowMessageParams struct {
		Type    int    `json:"type"`
		Message string `json:"message"`
	}

	// WorkDoneProgressCreateParams negotiates a progress token with the client.
	WorkDoneProgressCreateParams struct {
		Token string `json:"token"`
	}

	// WorkDoneProgressValue is the begin/report/end value of a $/progress
	// notification.
	WorkDoneProgressValue struct {
		Kind       string `json:"kind"`
		Title      string `json:"title,omitempty"`
		Percentage *int   `json:"percentage,omitempty"`
	}

	// ProgressParams is the payload of $/progress.
	ProgressParams struct {
		Token string                `json:"token"`
		Value WorkDoneProgressValue `json:"value"`
	}

	// CancelParams is the payload of $/cancelRequest.
	CancelParams struct {
		ID json.RawMessage `json:"id"`
	}

	// WorkspaceSymbolParams is the payload of workspace/symbol.
	WorkspaceSymbolParams struct {
		Query string `json:"query"`
	}

	// TypecheckParams is the payload of the client facing $/steep/typecheck
	// request.
	TypecheckParams struct {
		GUID  string   `json:"guid,omitempty"`
		Paths []string `json:"paths,omitempty"`
	}

	// TypecheckStartParams is the payload of the master to worker
	// $/steep/typecheck_start notification.
	TypecheckStartParams struct {
		GUID  string   `json:"guid"`
		Paths []string `json:"paths"`
	}

	// TypecheckUpdateParams is the payload of the worker to master
	// $/steep/typecheck_update notification.
	TypecheckUpdateParams struct {
		GUID string `json:"guid"`
		Path string `json:"path"`
	}
)

// MessageType values for window/showMessage.
const (
	MessageError   = 1
	MessageWarning = 2
	MessageInfo    = 3
	MessageLog     = 4
)

// DiagnosticSeverity values.
const (
	SeverityError       = 1
	SeverityWarning     = 2
	SeverityInformation = 3
	SeverityHint        = 4
)

// Recognized method names. The $/steep methods are the custom extension for
// batch checking.
const (
	MethodInitialize         = "initialize"
	MethodInitialized        = "initialized"
	MethodShutdown           = "shutdown"
	MethodExit               = "exit"
	MethodDidOpen            = "textDocument/didOpen"
	MethodDidClose           = "textDocument/didClose"
	MethodDidChange          = "textDocument/didChange"
	MethodDidSave            = "textDocument/didSave"
	MethodHover              = "textDocument/hover"
	MethodCompletion         = "textDocument/completion"
	MethodDefinition         = "textDocument/definition"
	MethodImplementation     = "textDocument/implementation"
	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
	MethodWorkspaceSymbol    = "workspace/symbol"
	MethodShowMessage        = "window/showMessage"
	MethodProgressCreate     = "window/workDoneProgress/create"
	MethodProgress           = "$/progress"
	MethodCancelRequest      = "$/cancelRequest"
	MethodTypecheck          = "$/steep/typecheck"
	MethodTypecheckStart     = "$/steep/typecheck_start"
	MethodTypecheckUpdate    = "$/steep/typecheck_update"
)

// IsRequest reports whether the message expects a response.
func (m *Message) IsRequest() bool { return m.Method != "" && len(m.ID) > 0 }

// IsNotification reports whether the message is a fire and forget call.
func (m *Message) IsNotification() bool { return m.Method != "" && len(m.ID) == 0 }

// IsResponse reports whether the message answers an earlier request.
func (m *Message) IsResponse() bool { return m.Method == "" }

// NewRequest builds a request message. Marshalling the params is the caller's
// last chance to fail, a bad payload panics because it is a programmer bug.
func NewRequest(id any, method string, params any) *Message {
	return &Message{JSONRPC: "2.0", ID: marshalRaw(id), Method: method, Params: marshalRaw(params)}
}

// NewNotification builds a notification message.
func NewNotification(method string, params any) *Message {
	return &Message{JSONRPC: "2.0", Method: method, Params: marshalRaw(params)}
}

// NewResponse builds a response message for the given request id.
func NewResponse(id json.RawMessage, result any) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Result: marshalRaw(result)}
}

// NewErrorResponse builds an error response message for the given request id.
func NewErrorResponse(id json.RawMessage, code int, message string) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Error: &ResponseError{Code: code, Message: message}}
}

func marshalRaw(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}
	if raw, isRaw := v.(json.RawMessage); isRaw {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
