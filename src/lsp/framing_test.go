package lsp

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/steep/src/serrors"
)

func TestWriteReadRoundtrip(t *testing.T) {
	t.Parallel()
	buf := bytes.NewBuffer(nil)
	writer := NewWriter(buf)
	require.NoError(t, writer.Write(NewRequest(1, MethodHover, TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///lib/user.sig"},
		Position:     Position{Line: 3, Character: 7},
	})))
	require.NoError(t, writer.Write(NewNotification(MethodTypecheckUpdate, TypecheckUpdateParams{GUID: "g1", Path: "lib/user.sig"})))

	reader := NewReader(buf)
	msg, err := reader.Read()
	require.NoError(t, err)
	assert.True(t, msg.IsRequest())
	assert.Equal(t, MethodHover, msg.Method)

	var params TextDocumentPositionParams
	require.NoError(t, json.Unmarshal(msg.Params, &params))
	assert.Equal(t, "file:///lib/user.sig", params.TextDocument.URI)
	assert.Equal(t, 3, params.Position.Line)

	msg, err = reader.Read()
	require.NoError(t, err)
	assert.True(t, msg.IsNotification())
	assert.Equal(t, MethodTypecheckUpdate, msg.Method)

	_, err = reader.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadMalformedBody(t *testing.T) {
	t.Parallel()
	buf := bytes.NewBufferString("Content-Length: 9\r\n\r\nnot JSON!")
	_, err := NewReader(buf).Read()
	var serr *serrors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, serrors.ProtocolErr, serr.Kind)
}

func TestReadMissingContentLength(t *testing.T) {
	t.Parallel()
	buf := bytes.NewBufferString("X-Other: 1\r\n\r\n{}")
	_, err := NewReader(buf).Read()
	var serr *serrors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, serrors.ProtocolErr, serr.Kind)
}

func TestMessageKinds(t *testing.T) {
	t.Parallel()
	response := NewResponse(json.RawMessage("1"), nil)
	assert.True(t, response.IsResponse())
	assert.False(t, response.IsRequest())

	request := NewRequest("i-1", MethodShutdown, nil)
	assert.True(t, request.IsRequest())
	assert.False(t, request.IsNotification())
}
