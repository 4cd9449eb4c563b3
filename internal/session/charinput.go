package session

import "github.com/stlalpha/vision3/internal/telnet"

// editBufferCapacity is the EditBuffer's bounded capacity.
const editBufferCapacity = 1023

// Control bytes the character-mode processor classifies specially.
const (
	ctrlC     byte = 3
	ctrlD     byte = 4
	backspace byte = 8
	del       byte = 127
)

// EditBuffer is the character-mode server's bounded, bytewise edit buffer
// with an insertion cursor at the tail.
type EditBuffer struct {
	data   [editBufferCapacity]byte
	cursor int
}

// Reset empties the buffer and moves the cursor back to 0.
func (b *EditBuffer) Reset() {
	b.cursor = 0
}

// Len returns the number of bytes currently held.
func (b *EditBuffer) Len() int {
	return b.cursor
}

// Append adds c to the tail if capacity remains, reporting whether it did.
func (b *EditBuffer) Append(c byte) bool {
	if b.cursor >= editBufferCapacity {
		return false
	}
	b.data[b.cursor] = c
	b.cursor++
	return true
}

// Backspace removes the last byte, reporting whether there was one to
// remove.
func (b *EditBuffer) Backspace() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor--
	return true
}

// Bytes returns the buffer's current contents.
func (b *EditBuffer) Bytes() []byte {
	return b.data[:b.cursor]
}

// IsQuit reports whether the buffer holds exactly "quit", with no trimming
// or prefix matching.
func (b *EditBuffer) IsQuit() bool {
	return b.cursor == 4 &&
		b.data[0] == 'q' && b.data[1] == 'u' && b.data[2] == 'i' && b.data[3] == 't'
}

// CharProcessor implements character-mode input processing: server-side
// echo, keystroke-granularity editing, quit recognition. It consumes one
// application byte at a time via ProcessByte.
type CharProcessor struct {
	buf  EditBuffer
	w    *Writer
	done bool
}

// NewCharProcessor creates a character-mode input processor writing echoed
// output and control responses to w.
func NewCharProcessor(w *Writer) *CharProcessor {
	return &CharProcessor{w: w}
}

// Done reports whether the session should terminate after the most recent
// ProcessByte call.
func (p *CharProcessor) Done() bool {
	return p.done
}

// ProcessByte classifies and acts on a single application byte.
func (p *CharProcessor) ProcessByte(b byte) error {
	switch {
	case b == ctrlD:
		if err := p.w.WriteString("\r\nGoodbye!\r\n"); err != nil {
			return err
		}
		p.done = true
		return nil

	case b == ctrlC:
		p.buf.Reset()
		return p.w.WriteString("\r\n")

	case b == backspace || b == del:
		if p.buf.Backspace() {
			return p.w.WriteString("\b \b")
		}
		return nil

	case b == '\r' || b == '\n':
		if b == '\r' {
			if err := p.w.WriteString("\r\n"); err != nil {
				return err
			}
		}
		if p.buf.IsQuit() {
			p.buf.Reset()
			if err := p.w.WriteString("Goodbye!\r\n"); err != nil {
				return err
			}
			p.done = true
			return nil
		}
		if p.buf.Len() > 0 {
			line := telnet.EscapeIAC(p.buf.Bytes())
			p.buf.Reset()
			if err := p.w.WriteString("ECHO: "); err != nil {
				return err
			}
			if _, err := p.w.Write(line); err != nil {
				return err
			}
			return p.w.WriteString("\r\n")
		}
		p.buf.Reset()
		return nil

	case b >= 32:
		// Includes 0xFF reaching the application stream via IAC-IAC
		// unescaping; treated as printable. Any echoed byte equal to IAC
		// (0xFF) must be re-doubled on the wire.
		if p.buf.Append(b) {
			_, err := p.w.Write(telnet.EscapeIAC([]byte{b}))
			return err
		}
		return nil

	default:
		// Other control bytes (0x00-0x1F minus the ones handled above)
		// are ignored.
		return nil
	}
}
