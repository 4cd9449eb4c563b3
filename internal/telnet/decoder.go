package telnet

// EventKind classifies a decoded Event.
type EventKind int

const (
	// EventAppByte carries a single application data byte, already
	// unescaped (IAC IAC collapses to one 0xFF AppByte).
	EventAppByte EventKind = iota
	// EventOption carries an inbound DO/DONT/WILL/WONT request.
	EventOption
	// EventSubnegotiation carries a completed IAC SB ... IAC SE payload.
	EventSubnegotiation
	// EventOtherCommand carries any other IAC command byte, consumed and
	// otherwise ignored.
	EventOtherCommand
)

// Event is one unit of decoded Telnet stream output.
type Event struct {
	Kind    EventKind
	Byte    byte   // EventAppByte
	Cmd     byte   // EventOption (DO/DONT/WILL/WONT), EventOtherCommand
	Option  byte   // EventOption, EventSubnegotiation
	Payload []byte // EventSubnegotiation, IAC-IAC already unescaped
}

// decoderState is the parser's position in the IAC/subnegotiation grammar.
// It persists across Decode calls so a sequence split across two reads is
// completed correctly rather than dropped.
type decoderState int

const (
	stateData decoderState = iota
	stateSawIAC
	stateSawCommand   // saw IAC <DO|DONT|WILL|WONT>, waiting for option byte
	stateSubnegOption // saw IAC SB, waiting for the suboption byte
	stateSubnegData   // accumulating subnegotiation payload
	stateSubnegSawIAC // saw IAC inside a subnegotiation payload
)

// Decoder is a resumable Telnet stream parser. The zero value is ready to
// use. A Decoder must not be used from more than one goroutine at a time;
// callers that need concurrent access should serialize calls externally
// (this system only ever decodes from the single per-connection reader
// goroutine, so no internal locking is provided).
type Decoder struct {
	state    decoderState
	pendCmd  byte   // DO/DONT/WILL/WONT while in stateSawCommand
	sbOption byte   // option byte of the in-progress subnegotiation
	sbData   []byte // accumulated subnegotiation payload
}

// Decode consumes data and appends the events it produces to dst, returning
// the extended slice. A partial IAC sequence or subnegotiation at the end
// of data is held in the Decoder's state and completed on a later call.
func (d *Decoder) Decode(data []byte, dst []Event) []Event {
	for _, b := range data {
		switch d.state {
		case stateData:
			if b == IAC {
				d.state = stateSawIAC
				continue
			}
			dst = append(dst, Event{Kind: EventAppByte, Byte: b})

		case stateSawIAC:
			switch b {
			case IAC:
				// Escaped 0xFF: a literal application byte.
				dst = append(dst, Event{Kind: EventAppByte, Byte: 0xFF})
				d.state = stateData
			case DO, DONT, WILL, WONT:
				d.pendCmd = b
				d.state = stateSawCommand
			case SB:
				d.sbData = d.sbData[:0]
				d.state = stateSubnegOption
			default:
				dst = append(dst, Event{Kind: EventOtherCommand, Cmd: b})
				d.state = stateData
			}

		case stateSawCommand:
			dst = append(dst, Event{Kind: EventOption, Cmd: d.pendCmd, Option: b})
			d.state = stateData

		case stateSubnegOption:
			d.sbOption = b
			d.state = stateSubnegData

		case stateSubnegData:
			if b == IAC {
				d.state = stateSubnegSawIAC
				continue
			}
			d.sbData = append(d.sbData, b)

		case stateSubnegSawIAC:
			switch b {
			case SE:
				payload := make([]byte, len(d.sbData))
				copy(payload, d.sbData)
				dst = append(dst, Event{Kind: EventSubnegotiation, Option: d.sbOption, Payload: payload})
				d.sbData = d.sbData[:0]
				d.state = stateData
			case IAC:
				d.sbData = append(d.sbData, IAC)
				d.state = stateSubnegData
			default:
				// Malformed subnegotiation (IAC followed by something
				// other than SE or an escaped IAC): discard the partial
				// payload and resync to plain data rather than failing
				// the whole connection. The byte after the stray IAC is
				// the first byte of that plain data.
				d.sbData = d.sbData[:0]
				dst = append(dst, Event{Kind: EventAppByte, Byte: b})
				d.state = stateData
			}
		}
	}
	return dst
}
