package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tanema/steep/src/serrors"
)

type (
	// Reader decodes Content-Length framed JSON-RPC messages from a stream.
	Reader struct {
		rdr *bufio.Reader
	}

	// Writer encodes messages onto a stream with Content-Length framing. It is
	// safe for concurrent use so that a writer goroutine and ad hoc replies can
	// share one destination.
	Writer struct {
		mu  sync.Mutex
		out io.Writer
	}
)

// NewReader wraps a stream in a framed message reader.
func NewReader(rdr io.Reader) *Reader {
	return &Reader{rdr: bufio.NewReader(rdr)}
}

// Read decodes the next message. io.EOF signals a closed stream. A frame with
// an unparsable body returns a *serrors.Error of kind ProtocolErr, callers log
// it and continue because malformed messages are never fatal.
func (r *Reader) Read() (*Message, error) {
	contentLen := 0
	for {
		line, err := r.rdr.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if i := strings.IndexByte(line, ':'); i >= 0 {
			key := strings.ToLower(strings.TrimSpace(line[:i]))
			if key == "content-length" {
				contentLen, _ = strconv.Atoi(strings.TrimSpace(line[i+1:]))
			}
		}
	}
	if contentLen <= 0 {
		return nil, &serrors.Error{Kind: serrors.ProtocolErr, Err: fmt.Errorf("missing content length header")}
	}
	body := make([]byte, contentLen)
	if _, err := io.ReadFull(r.rdr, body); err != nil {
		return nil, err
	}
	msg := &Message{}
	if err := json.Unmarshal(body, msg); err != nil {
		return nil, &serrors.Error{Kind: serrors.ProtocolErr, Err: err}
	}
	return msg, nil
}

// NewWriter wraps a stream in a framed message writer.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Write encodes one message with its framing header.
func (w *Writer) Write(msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	buf := bytes.NewBuffer(nil)
	fmt.Fprintf(buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.out.Write(buf.Bytes())
	return err
}
