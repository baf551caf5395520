package shell

import (
	"bytes"
	"strings"
	"sync"

	"go.trai.ch/rex/internal/core/ports"
)

// logWriter forwards complete lines of process output to the logger at debug level.
type logWriter struct {
	logger ports.Logger
	prefix string

	mu  sync.Mutex
	buf []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Close flushes a trailing partial line.
func (w *logWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	w.logger.Debug(w.prefix + strings.TrimSuffix(string(line), "\r"))
}
