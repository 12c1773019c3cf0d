// Package logging is a small timestamped stderr logger shared by the master and
// worker processes. Workers inherit stderr so their log lines interleave with the
// master's in one stream, the tag tells them apart.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// TIMEFORMAT is the strftime pattern prefixed to every log line.
const TIMEFORMAT = "%Y-%m-%d %H:%M:%S"

// Logger writes tagged, timestamped lines to a single writer.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	tag    string
	format *strftime.Strftime
}

// New returns a logger writing to stderr with the given component tag.
func New(tag string) *Logger {
	return NewWithWriter(os.Stderr, tag)
}

// NewWithWriter returns a logger writing to out with the given component tag.
func NewWithWriter(out io.Writer, tag string) *Logger {
	format, err := strftime.New(TIMEFORMAT)
	if err != nil {
		panic(err)
	}
	return &Logger{out: out, tag: tag, format: format}
}

// Printf writes a single formatted log line.
func (l *Logger) Printf(msg string, data ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%v] %v: %v\n", l.format.FormatString(time.Now()), l.tag, fmt.Sprintf(msg, data...))
}
