package session

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/stlalpha/vision3/internal/logging"
	"github.com/stlalpha/vision3/internal/telnet"
)

// lineBufferCapacity is the LineBuffer's bounded capacity.
const lineBufferCapacity = 2047

// LineBuffer is the line-binary server's accumulation buffer: application
// bytes only, all Telnet framing already stripped by the Decoder.
type LineBuffer struct {
	data []byte
}

// Append adds data to the buffer. It reports whether the append overflowed
// capacity, in which case the previously accumulated, unterminated content
// has already been discarded and reset before data was appended.
func (b *LineBuffer) Append(data []byte) (overflowed bool) {
	if len(b.data)+len(data) > lineBufferCapacity {
		b.data = b.data[:0]
		overflowed = true
	}
	b.data = append(b.data, data...)
	return overflowed
}

// utf8LeadLen classifies a UTF-8 lead byte by its bit pattern, returning the
// sequence's total declared length, or 0 if lead is not a valid lead byte
// (either a continuation byte or otherwise malformed).
func utf8LeadLen(lead byte) int {
	switch {
	case lead&0x80 == 0x00: // 0xxxxxxx
		return 1
	case lead&0xE0 == 0xC0: // 110xxxxx
		return 2
	case lead&0xF0 == 0xE0: // 1110xxxx
		return 3
	case lead&0xF8 == 0xF0: // 11110xxx
		return 4
	default:
		return 0
	}
}

// utf8TailHold returns the number of trailing bytes that form a possibly
// incomplete UTF-8 sequence and must be held out of terminator scanning
// until more bytes arrive. It scans back up to 3 bytes looking for a lead
// byte whose declared length exceeds the bytes that follow it.
func utf8TailHold(data []byte) int {
	n := len(data)
	if n == 0 {
		return 0
	}
	limit := 3
	if n < limit {
		limit = n
	}
	for back := 1; back <= limit; back++ {
		pos := n - back
		lead := data[pos]
		if lead < 0x80 {
			// ASCII byte: cannot start a multi-byte sequence.
			return 0
		}
		want := utf8LeadLen(lead)
		if want == 0 {
			// Continuation byte (10xxxxxx): keep walking backwards.
			continue
		}
		have := n - pos
		if have < want {
			return have
		}
		return 0
	}
	return 0
}

// findLineEnding locates the earliest line terminator in data[:limit],
// returning the number of bytes consumed by the terminator's matched
// prefix (i.e. the index immediately after it), or -1 if none is found yet
// (including a bare trailing \r, which must wait for more bytes). The
// precedence order is CRLF, then CR-NUL, then LF, then bare CR.
func findLineEnding(data []byte, limit int) int {
	for i := 0; i < limit; i++ {
		switch data[i] {
		case '\r':
			if i+1 < limit {
				if data[i+1] == '\n' || data[i+1] == 0 {
					return i + 2
				}
				return i + 1 // bare CR followed by a non-{LF,NUL} byte
			}
			return -1 // CR at end of scanned region: wait for more
		case '\n':
			return i + 1
		}
	}
	return -1
}

// stripTerminator removes trailing \r, \n, \0 bytes from an extracted line.
func stripTerminator(line []byte) []byte {
	end := len(line)
	for end > 0 {
		switch line[end-1] {
		case '\r', '\n', 0:
			end--
			continue
		}
		break
	}
	return line[:end]
}

// LineProcessor implements line-binary input processing: accumulation,
// UTF-8 boundary-aware terminator scanning, and per-line echo/quit
// handling.
type LineProcessor struct {
	buf      LineBuffer
	w        *Writer
	done     bool
	validate transform.Transformer
}

// NewLineProcessor creates a line-binary input processor writing echoed
// lines to w.
func NewLineProcessor(w *Writer) *LineProcessor {
	return &LineProcessor{w: w, validate: unicode.UTF8Validator}
}

// Done reports whether the session should terminate.
func (p *LineProcessor) Done() bool {
	return p.done
}

// AppendByte buffers one application byte. Call Scan after a read's worth
// of bytes have been appended to extract any completed lines.
func (p *LineProcessor) AppendByte(b byte) {
	if p.buf.Append([]byte{b}) {
		logging.Warnf(telnet.ModeLineBinary, "line buffer overflow, discarding and resetting")
	}
}

// Scan extracts and processes every complete line currently available in
// the buffer, honoring the UTF-8 tail hold so a multi-byte codepoint split
// across reads is never cleaved.
func (p *LineProcessor) Scan() error {
	for {
		hold := utf8TailHold(p.buf.data)
		limit := len(p.buf.data) - hold
		if limit < 0 {
			limit = 0
		}
		end := findLineEnding(p.buf.data, limit)
		if end < 0 {
			return nil
		}

		content := stripTerminator(p.buf.data[:end])
		// Copy before the underlying slice is shifted below.
		line := append([]byte(nil), content...)
		p.buf.data = append(p.buf.data[:0], p.buf.data[end:]...)

		if err := p.processLine(line); err != nil {
			return err
		}
		if p.done {
			return nil
		}
	}
}

func (p *LineProcessor) processLine(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	if string(line) == "quit" {
		if err := p.w.WriteString("Goodbye!\r\n"); err != nil {
			return err
		}
		p.done = true
		return nil
	}

	// Defense-in-depth encoding check: reassembly should never split a
	// codepoint, but flag (non-fatally) content that still isn't
	// well-formed UTF-8.
	if _, _, err := transform.Bytes(p.validate, line); err != nil {
		logging.Warnf(telnet.ModeLineBinary, "echoed line is not well-formed UTF-8: %v", err)
	}

	// Any content byte equal to IAC (0xFF) must be re-doubled on the wire.
	if err := p.w.WriteString("ECHO: "); err != nil {
		return err
	}
	if _, err := p.w.Write(telnet.EscapeIAC(line)); err != nil {
		return err
	}
	return p.w.WriteString("\r\n")
}
