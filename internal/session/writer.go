// Package session implements the per-connection parts of the Telnet echo
// engine: the mutex-protected output writer, the two mode-specific input
// processors, the periodic timestamp emitter, and the session controller
// that wires them together.
package session

import "sync"

// Writer serializes writes to a connection so that every composed message
// (a banner, an option triple, a subnegotiation frame, a timestamp line)
// appears contiguously on the wire, regardless of which goroutine wrote it.
// This is the single mutual-exclusion discipline the reader goroutine, the
// timestamp task, and negotiation replies all share, holding one
// sync.Mutex across every Write call.
type Writer struct {
	mu   sync.Mutex
	conn writeCloser
}

// writeCloser is the minimal surface Writer needs from a connection.
type writeCloser interface {
	Write(p []byte) (int, error)
}

// NewWriter wraps conn with the shared write lock.
func NewWriter(conn writeCloser) *Writer {
	return &Writer{conn: conn}
}

// Write implements io.Writer under the shared lock.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(p)
}

// WriteString writes s under the shared lock.
func (w *Writer) WriteString(s string) error {
	_, err := w.Write([]byte(s))
	return err
}
