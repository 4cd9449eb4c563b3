package session

import (
	"bytes"
	"testing"
)

func newCharProcessor() (*CharProcessor, *bytes.Buffer) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	return NewCharProcessor(w), &buf
}

func feed(t *testing.T, p *CharProcessor, data []byte) {
	t.Helper()
	for _, b := range data {
		if err := p.ProcessByte(b); err != nil {
			t.Fatalf("ProcessByte(%#v): %v", b, err)
		}
	}
}

func TestCharProcessorEchoesPrintableImmediately(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte("a"))
	if got := buf.String(); got != "a" {
		t.Errorf("expected immediate echo %q, got %q", "a", got)
	}
}

func TestCharProcessorHelloAndEnter(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte("hi\r"))
	if got := buf.String(); got != "hi\r\nECHO: hi\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestCharProcessorBackspace(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte("ab"))
	buf.Reset()
	feed(t, p, []byte{backspace})
	if got := buf.String(); got != "\b \b" {
		t.Errorf("expected backspace sequence, got %q", got)
	}
	feed(t, p, []byte("c\r"))
	if got := buf.String(); got != "\b \bc\r\nECHO: ac\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestCharProcessorBackspaceOnEmptyBufferIsNoop(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte{backspace})
	if got := buf.String(); got != "" {
		t.Errorf("expected no output, got %q", got)
	}
}

func TestCharProcessorCtrlC(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte("ab"))
	buf.Reset()
	feed(t, p, []byte{ctrlC})
	if got := buf.String(); got != "\r\n" {
		t.Errorf("got %q", got)
	}
	feed(t, p, []byte("c\r"))
	if got := buf.String(); got != "\r\nc\r\nECHO: c\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestCharProcessorCtrlDTerminates(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte{ctrlD})
	if got := buf.String(); got != "\r\nGoodbye!\r\n" {
		t.Errorf("got %q", got)
	}
	if !p.Done() {
		t.Error("expected Done() after Ctrl+D")
	}
}

func TestCharProcessorQuitExactMatch(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte("quit\r"))
	if got := buf.String(); got != "quit\r\nGoodbye!\r\n" {
		t.Errorf("got %q", got)
	}
	if !p.Done() {
		t.Error("expected Done() after quit")
	}
}

func TestCharProcessorQuitPrefixIsNotQuit(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte("quitx\r"))
	if p.Done() {
		t.Error("did not expect Done() for 'quitx'")
	}
	if got := buf.String(); got != "quitx\r\nECHO: quitx\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestCharProcessorEmptyLineIsSilent(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte("\r"))
	if got := buf.String(); got != "\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestCharProcessorLineFeedAloneDoesNotDoublePrefix(t *testing.T) {
	p, buf := newCharProcessor()
	feed(t, p, []byte("hi\n"))
	if got := buf.String(); got != "hiECHO: hi\r\n" {
		t.Errorf("got %q", got)
	}
}
