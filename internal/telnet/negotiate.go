package telnet

import "io"

// readyBannerChar and readyBannerLineBinary are the per-mode sentinel
// messages sent exactly once, when every option tracked for the session's
// mode has been acknowledged.
const (
	readyBannerChar       = "\r\n*** READY! ***\r\n\r\n"
	readyBannerLineBinary = "\r\n*** READY! (BINARY mode active) ***\r\n\r\n"
)

// NegotiationState tracks acknowledgment of every option negotiated for one
// session and drives the per-mode request/response table. The zero value is
// not usable; construct with NewNegotiationState.
//
// acked[opt] becomes true the first time that option's negotiation settles
// (in either direction) and is never reset. readySent follows the same
// discipline: it transitions false to true exactly once. Reusing acked as
// the loop-avoidance guard prevents re-emitting a reply to an option that
// has already settled, which keeps the exchange terminating against a peer
// that mirrors every WILL with a DO.
type NegotiationState struct {
	mode      Mode
	acked     map[byte]bool
	readySent bool
}

// NewNegotiationState creates negotiation tracking for the given mode.
func NewNegotiationState(mode Mode) *NegotiationState {
	return &NegotiationState{
		mode:  mode,
		acked: make(map[byte]bool, 4),
	}
}

// Ready reports whether the ready banner has already been sent.
func (n *NegotiationState) Ready() bool {
	return n.readySent
}

// requiredOptions lists the options whose ack flag must be true before the
// ready banner is emitted, per mode.
func (n *NegotiationState) requiredOptions() []byte {
	if n.mode == ModeChar {
		return []byte{OptEcho, OptSGA}
	}
	return []byte{OptBinary, OptLinemode, OptEcho, OptSGA}
}

func (n *NegotiationState) allAcked() bool {
	for _, opt := range n.requiredOptions() {
		if !n.acked[opt] {
			return false
		}
	}
	return true
}

// Start emits the mode-specific initial negotiation vector to w.
func (n *NegotiationState) Start(w io.Writer) error {
	var seq []byte
	switch n.mode {
	case ModeChar:
		seq = append(seq, EncodeOption(DONT, OptLinemode)...)
		seq = append(seq, EncodeOption(WILL, OptEcho)...)
		n.acked[OptEcho] = true // self-acked: most clients never reply to WILL ECHO
		seq = append(seq, EncodeOption(WILL, OptSGA)...)
		seq = append(seq, EncodeOption(DO, OptSGA)...)
	case ModeLineBinary:
		seq = append(seq, EncodeOption(DO, OptBinary)...)
		seq = append(seq, EncodeOption(WILL, OptBinary)...)
		n.acked[OptBinary] = true // self-acked: most clients accept BINARY silently
		seq = append(seq, EncodeOption(DO, OptLinemode)...)
		seq = append(seq, EncodeOption(WONT, OptEcho)...)
		n.acked[OptEcho] = true // self-acked: client performs local echo under LINEMODE
		seq = append(seq, EncodeOption(WILL, OptSGA)...)
		seq = append(seq, EncodeOption(DO, OptSGA)...)
		seq = append(seq, EncodeSubnegotiation(OptLinemode, []byte{LinemodeMode, ModeEdit})...)
	}
	if _, err := w.Write(seq); err != nil {
		return err
	}
	return n.checkReady(w)
}

// HandleOption applies the inbound response table for a single DO/DONT/
// WILL/WONT event and, if this settles the last outstanding option for the
// mode, writes the ready banner. It reports whether the ready banner was
// written by this call.
func (n *NegotiationState) HandleOption(w io.Writer, cmd, opt byte) (readyNow bool, err error) {
	if err := n.applyTable(w, cmd, opt); err != nil {
		return false, err
	}
	before := n.readySent
	if err := n.checkReady(w); err != nil {
		return false, err
	}
	return !before && n.readySent, nil
}

func (n *NegotiationState) applyTable(w io.Writer, cmd, opt byte) error {
	// Loop-avoidance: once an option has settled, do not reply to further
	// events for it. A settled option can still arrive again from a chatty
	// or mirroring peer, and the exchange must terminate against one.
	if n.acked[opt] && (opt == OptEcho || opt == OptSGA || opt == OptBinary || opt == OptLinemode) {
		return nil
	}

	switch n.mode {
	case ModeChar:
		return n.applyCharTable(w, cmd, opt)
	default:
		return n.applyLineBinaryTable(w, cmd, opt)
	}
}

func (n *NegotiationState) applyCharTable(w io.Writer, cmd, opt byte) error {
	switch cmd {
	case DO:
		switch opt {
		case OptEcho:
			n.acked[OptEcho] = true
			return writeOption(w, WILL, opt)
		case OptSGA:
			n.acked[OptSGA] = true
			return writeOption(w, WILL, opt)
		default:
			return writeOption(w, WONT, opt)
		}
	case DONT:
		// Char mode replies WONT without setting any ack flag here,
		// unlike the line-binary table below.
		return writeOption(w, WONT, opt)
	case WILL:
		if opt == OptSGA {
			n.acked[OptSGA] = true
			return writeOption(w, DO, opt)
		}
		return writeOption(w, DONT, opt)
	case WONT:
		return writeOption(w, DONT, opt)
	}
	return nil
}

func (n *NegotiationState) applyLineBinaryTable(w io.Writer, cmd, opt byte) error {
	switch cmd {
	case DO:
		switch opt {
		case OptEcho:
			n.acked[OptEcho] = true
			return writeOption(w, WONT, opt)
		case OptSGA:
			n.acked[OptSGA] = true
			return writeOption(w, WILL, opt)
		case OptBinary:
			n.acked[OptBinary] = true
			return writeOption(w, WILL, opt)
		default:
			return writeOption(w, WONT, opt)
		}
	case DONT:
		switch opt {
		case OptEcho:
			n.acked[OptEcho] = true
		case OptBinary:
			n.acked[OptBinary] = true
		}
		return writeOption(w, WONT, opt)
	case WILL:
		switch opt {
		case OptSGA:
			n.acked[OptSGA] = true
			return writeOption(w, DO, opt)
		case OptBinary:
			n.acked[OptBinary] = true
			return writeOption(w, DO, opt)
		case OptLinemode:
			n.acked[OptLinemode] = true
			return writeOption(w, DO, opt)
		case OptEcho:
			n.acked[OptEcho] = true
			return writeOption(w, DO, opt)
		default:
			return writeOption(w, DONT, opt)
		}
	case WONT:
		switch opt {
		case OptLinemode:
			n.acked[OptLinemode] = true
		case OptBinary:
			n.acked[OptBinary] = true
		}
		return writeOption(w, DONT, opt)
	}
	return nil
}

func (n *NegotiationState) checkReady(w io.Writer) error {
	if n.readySent || !n.allAcked() {
		return nil
	}
	banner := readyBannerChar
	if n.mode == ModeLineBinary {
		banner = readyBannerLineBinary
	}
	if _, err := w.Write([]byte(banner)); err != nil {
		return err
	}
	n.readySent = true
	return nil
}

func writeOption(w io.Writer, cmd, opt byte) error {
	_, err := w.Write(EncodeOption(cmd, opt))
	return err
}
