package session

import (
	"errors"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/stlalpha/vision3/internal/logging"
	"github.com/stlalpha/vision3/internal/telnet"
)

// inputProcessor is implemented by CharProcessor and LineProcessor: the two
// mode-specific application-byte consumers a Session drives.
type inputProcessor interface {
	Done() bool
}

// charBanner and lineBanner are the literal welcome banners sent in order
// before the negotiation response loop begins.
var charBanner = []string{
	"Welcome to Character Mode Echo Server (Port 9092)\r\n",
	"Each character is echoed immediately as you type.\r\n",
	"Press Ctrl+D or type 'quit' and Enter to disconnect.\r\n",
	"A timestamp will be sent every 10 seconds.\r\n",
	"Negotiating telnet options...\r\n\r\n",
}

var lineBanner = []string{
	"Welcome to Line Mode Binary Echo Server (Port 9093)\r\n",
	"Type a line and press Enter. It will be echoed back.\r\n",
	"Type 'quit' to disconnect.\r\n",
	"A timestamp will be sent every 10 seconds.\r\n",
	"BINARY mode enabled for UTF-8 support.\r\n",
	"Negotiating telnet options...\r\n\r\n",
}

// readBufSize is the per-read chunk size the session loop reads at once.
const readBufSize = 1024

// Session drives one connection's full lifecycle: negotiation prelude,
// welcome banner, timestamp emitter, and the read loop dispatching decoded
// events to the negotiation state machine and the mode's input processor.
type Session struct {
	id   uuid.UUID
	mode telnet.Mode
	conn net.Conn
	w    *Writer
	neg  *telnet.NegotiationState
	dec  *telnet.Decoder

	char *CharProcessor
	line *LineProcessor
}

// NewSession creates a session for conn operating in mode. The session does
// not start doing I/O until Run is called.
func NewSession(conn net.Conn, mode telnet.Mode) *Session {
	w := NewWriter(conn)
	s := &Session{
		id:   uuid.New(),
		mode: mode,
		conn: conn,
		w:    w,
		neg:  telnet.NewNegotiationState(mode),
		dec:  &telnet.Decoder{},
	}
	if mode == telnet.ModeChar {
		s.char = NewCharProcessor(w)
	} else {
		s.line = NewLineProcessor(w)
	}
	return s
}

func (s *Session) processor() inputProcessor {
	if s.mode == telnet.ModeChar {
		return s.char
	}
	return s.line
}

// Run logs the connection, sends the banner and negotiation prelude, starts
// the timestamp emitter, runs the read loop, and tears everything down on
// exit. It blocks until the session ends and always closes conn before
// returning.
func (s *Session) Run() {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf(s.mode, "session %s: recovered from panic: %v", s.id, r)
		}
		s.conn.Close()
	}()

	logging.Infof(s.mode, "connection accepted: %s (session %s)", s.conn.RemoteAddr(), s.id)

	if err := s.sendBanner(); err != nil {
		logging.Warnf(s.mode, "session %s: banner write failed: %v", s.id, err)
		return
	}
	if err := s.neg.Start(s.w); err != nil {
		logging.Warnf(s.mode, "session %s: negotiation prelude failed: %v", s.id, err)
		return
	}

	task := NewTimestampTask(s.w, s.mode)
	defer task.Stop()

	if err := s.readLoop(); err != nil && !isExpectedClose(err) {
		logging.Warnf(s.mode, "session %s: %v", s.id, err)
	}

	logging.Infof(s.mode, "session %s: connection closed", s.id)
}

func (s *Session) sendBanner() error {
	lines := charBanner
	if s.mode == telnet.ModeLineBinary {
		lines = lineBanner
	}
	for _, line := range lines {
		if err := s.w.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// readLoop reads up to readBufSize bytes at a time, decodes them, dispatches
// the resulting events, and repeats until the processor signals completion
// or the connection closes.
func (s *Session) readLoop() error {
	buf := make([]byte, readBufSize)
	events := make([]telnet.Event, 0, readBufSize)

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			logging.Debug("session %s: read %d bytes: %x", s.id, n, buf[:n])
			events = s.dec.Decode(buf[:n], events[:0])
			if procErr := s.dispatch(events); procErr != nil {
				return procErr
			}
			if s.processor().Done() {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *Session) dispatch(events []telnet.Event) error {
	for _, ev := range events {
		switch ev.Kind {
		case telnet.EventOption:
			if _, err := s.neg.HandleOption(s.w, ev.Cmd, ev.Option); err != nil {
				return err
			}
		case telnet.EventSubnegotiation:
			// No subnegotiation from the client requires a response in
			// either mode; observed and ignored.
		case telnet.EventAppByte:
			if err := s.dispatchAppByte(ev.Byte); err != nil {
				return err
			}
		case telnet.EventOtherCommand:
			// Commands outside DO/DONT/WILL/WONT/SB are not meaningful to
			// either session mode and are ignored.
		}
		if s.processor().Done() {
			return nil
		}
	}
	if s.mode == telnet.ModeLineBinary {
		return s.line.Scan()
	}
	return nil
}

func (s *Session) dispatchAppByte(b byte) error {
	if s.mode == telnet.ModeChar {
		return s.char.ProcessByte(b)
	}
	s.line.AppendByte(b)
	return nil
}

// isExpectedClose reports whether err is an ordinary connection-closed
// condition rather than a failure worth logging at warn level.
func isExpectedClose(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
