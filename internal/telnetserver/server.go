// Package telnetserver implements the accept loop shared by both the
// character-mode and line-mode binary servers: bind, listen, accept,
// consult the access-control hook, and hand each accepted connection off to
// a new session goroutine.
package telnetserver

import (
	"fmt"
	"net"
	"sync"

	"github.com/stlalpha/vision3/internal/config"
	"github.com/stlalpha/vision3/internal/logging"
	"github.com/stlalpha/vision3/internal/session"
	"github.com/stlalpha/vision3/internal/telnet"
)

// Config holds one server's listen parameters.
type Config struct {
	Host string
	Port int
	// Backlog is recorded for parity with config.json but is not applied:
	// net.Listen has no portable backlog knob short of raw syscalls, and
	// the OS default backlog is ample at this system's connection volume.
	Backlog int
	Mode    telnet.Mode
	// Access, when non-nil, gates each accepted connection through an
	// address accept/deny predicate. A nil Access accepts every peer.
	Access *config.AccessControl
}

// Server listens on one TCP port and spawns a session.Session per accepted
// connection. One Server runs the character-mode listener; a second runs
// the line-mode binary listener on its own port.
type Server struct {
	cfg      Config
	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// NewServer validates cfg and constructs a Server. The listener is not
// opened until ListenAndServe is called.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("telnetserver: invalid port %d", cfg.Port)
	}
	return &Server{cfg: cfg}, nil
}

// ListenAndServe binds the listener (backlog and SO_REUSEADDR semantics are
// whatever net.Listen's "tcp" network provides) and blocks, accepting
// connections until Close is called.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("telnetserver: listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logging.Infof(s.cfg.Mode, "listening on %s", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			logging.Warnf(s.cfg.Mode, "accept error: %v", err)
			continue
		}

		if s.cfg.Access != nil && !s.cfg.Access.Accept(conn.RemoteAddr().String()) {
			logging.Infof(s.cfg.Mode, "connection from %s refused by access control", conn.RemoteAddr())
			conn.Close()
			continue
		}

		sess := session.NewSession(conn, s.cfg.Mode)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.Run()
		}()
	}
}

// Close shuts the listener down. Already-accepted sessions run to
// completion; ListenAndServe returns nil once the listener is closed. Call
// Wait after Close to block until every in-flight session has finished.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.listener.Close()
}

// Wait blocks until every session spawned by this Server's accept loop has
// returned.
func (s *Server) Wait() {
	s.wg.Wait()
}
