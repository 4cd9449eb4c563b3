package telnet

import (
	"bytes"
	"testing"
)

func appBytes(events []Event) []byte {
	var out []byte
	for _, e := range events {
		if e.Kind == EventAppByte {
			out = append(out, e.Byte)
		}
	}
	return out
}

func TestDecodePlainData(t *testing.T) {
	var d Decoder
	events := d.Decode([]byte("hello"), nil)
	if got := appBytes(events); string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestDecodeIACIACIsSingleAppByte(t *testing.T) {
	var d Decoder
	events := d.Decode([]byte{IAC, IAC}, nil)
	if len(events) != 1 || events[0].Kind != EventAppByte || events[0].Byte != 0xFF {
		t.Fatalf("got %+v, want single AppByte(0xFF)", events)
	}
}

func TestDecodeIACIACSplitAcrossReads(t *testing.T) {
	var d Decoder
	first := d.Decode([]byte{IAC}, nil)
	if len(first) != 0 {
		t.Fatalf("expected no events from a lone IAC, got %+v", first)
	}
	second := d.Decode([]byte{IAC}, nil)
	if len(second) != 1 || second[0].Kind != EventAppByte || second[0].Byte != 0xFF {
		t.Fatalf("got %+v, want single AppByte(0xFF) after resuming", second)
	}
}

func TestDecodeOptionEvent(t *testing.T) {
	var d Decoder
	events := d.Decode([]byte{IAC, DO, OptEcho}, nil)
	if len(events) != 1 || events[0].Kind != EventOption || events[0].Cmd != DO || events[0].Option != OptEcho {
		t.Fatalf("got %+v, want Option(DO, ECHO)", events)
	}
}

func TestDecodeOptionSplitAcrossReads(t *testing.T) {
	var d Decoder
	if events := d.Decode([]byte{IAC, WILL}, nil); len(events) != 0 {
		t.Fatalf("expected no events mid-sequence, got %+v", events)
	}
	events := d.Decode([]byte{OptSGA}, nil)
	if len(events) != 1 || events[0].Cmd != WILL || events[0].Option != OptSGA {
		t.Fatalf("got %+v, want Option(WILL, SGA)", events)
	}
}

func TestDecodeSubnegotiation(t *testing.T) {
	var d Decoder
	seq := []byte{IAC, SB, OptLinemode, LinemodeMode, ModeEdit, IAC, SE}
	events := d.Decode(seq, nil)
	if len(events) != 1 || events[0].Kind != EventSubnegotiation {
		t.Fatalf("got %+v, want one Subnegotiation event", events)
	}
	if events[0].Option != OptLinemode {
		t.Errorf("option = %d, want %d", events[0].Option, OptLinemode)
	}
	if !bytes.Equal(events[0].Payload, []byte{LinemodeMode, ModeEdit}) {
		t.Errorf("payload = %v, want [1 1]", events[0].Payload)
	}
}

func TestDecodeSubnegotiationWithEscapedIAC(t *testing.T) {
	var d Decoder
	seq := []byte{IAC, SB, OptLinemode, 0xAA, IAC, IAC, 0xBB, IAC, SE}
	events := d.Decode(seq, nil)
	if len(events) != 1 || events[0].Kind != EventSubnegotiation {
		t.Fatalf("got %+v, want one Subnegotiation event", events)
	}
	want := []byte{0xAA, 0xFF, 0xBB}
	if !bytes.Equal(events[0].Payload, want) {
		t.Errorf("payload = %v, want %v", events[0].Payload, want)
	}
}

func TestDecodeSubnegotiationSplitAcrossReads(t *testing.T) {
	var d Decoder
	d.Decode([]byte{IAC, SB, OptLinemode, LinemodeMode}, nil)
	d.Decode([]byte{ModeEdit, IAC}, nil)
	events := d.Decode([]byte{SE}, nil)
	if len(events) != 1 || events[0].Kind != EventSubnegotiation {
		t.Fatalf("got %+v, want one Subnegotiation event after resuming", events)
	}
	if !bytes.Equal(events[0].Payload, []byte{LinemodeMode, ModeEdit}) {
		t.Errorf("payload = %v", events[0].Payload)
	}
}

func TestDecodeOtherCommandIgnored(t *testing.T) {
	var d Decoder
	events := d.Decode([]byte{'a', IAC, 241 /* NOP */, 'b'}, nil)
	if len(events) != 3 {
		t.Fatalf("got %+v, want 3 events (a, NOP, b)", events)
	}
	if events[1].Kind != EventOtherCommand || events[1].Cmd != 241 {
		t.Errorf("events[1] = %+v, want OtherCommand(241)", events[1])
	}
}

func TestDecodeMalformedSubnegotiationRecovers(t *testing.T) {
	var d Decoder
	// IAC SB opt <data> IAC <not SE or IAC> then plain data.
	events := d.Decode([]byte{IAC, SB, OptLinemode, 1, IAC, 'x', 'y'}, nil)
	if got := appBytes(events); string(got) != "xy" {
		t.Errorf("got %q, want %q (parser should resync to data state)", got, "xy")
	}
}

// TestRoundTripEncodeDecode exercises the codec invariant
// encode(decode(s)) == s for sequences with no truncated Telnet commands.
func TestRoundTripEncodeDecode(t *testing.T) {
	cases := [][]byte{
		[]byte("plain ascii"),
		EncodeOption(WILL, OptEcho),
		EncodeSubnegotiation(OptLinemode, []byte{LinemodeMode, ModeEdit}),
		append(append([]byte("a"), EncodeOption(DO, OptSGA)...), []byte("b")...),
	}
	for _, c := range cases {
		var d Decoder
		events := d.Decode(c, nil)
		var out []byte
		for _, e := range events {
			switch e.Kind {
			case EventAppByte:
				out = append(out, EscapeIAC([]byte{e.Byte})...)
			case EventOption:
				out = append(out, EncodeOption(e.Cmd, e.Option)...)
			case EventSubnegotiation:
				out = append(out, EncodeSubnegotiation(e.Option, e.Payload)...)
			}
		}
		if !bytes.Equal(out, c) {
			t.Errorf("round trip: got %v, want %v", out, c)
		}
	}
}

// FuzzDecodeNeverPanics feeds arbitrary byte sequences, including ones
// split mid-command across two Decode calls, through the parser. The only
// property asserted is that it never panics and always terminates in a
// known state; full semantic coverage lives in the table tests above.
func FuzzDecodeNeverPanics(f *testing.F) {
	f.Add([]byte{IAC, IAC})
	f.Add([]byte{IAC, DO, OptEcho})
	f.Add([]byte{IAC, SB, OptLinemode, 1, 1, IAC, SE})
	f.Add([]byte("hello\r\nworld"))
	f.Fuzz(func(t *testing.T, data []byte) {
		var d Decoder
		split := len(data) / 2
		d.Decode(data[:split], nil)
		d.Decode(data[split:], nil)
	})
}

// FuzzIACDoublingRoundTrips checks that any application byte sequence,
// once escaped for the wire and decoded back, reproduces exactly the
// original bytes as AppByte events.
func FuzzIACDoublingRoundTrips(f *testing.F) {
	f.Add([]byte{0xFF, 0x00, 0xFF, 0xFF})
	f.Add([]byte("hi"))
	f.Fuzz(func(t *testing.T, data []byte) {
		wire := EscapeIAC(data)
		var d Decoder
		events := d.Decode(wire, nil)
		got := appBytes(events)
		if !bytes.Equal(got, data) {
			t.Fatalf("round trip mismatch: got %v, want %v", got, data)
		}
	})
}
