// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package parley

import (
	"fmt"
	"unicode/utf8"

	"github.com/creachadair/mds/value"
)

// Kind describes which variant of Message a value holds.
type Kind byte

const (
	KindText  Kind = 1 // A text message for the presentation layer
	KindClose Kind = 2 // A request to close the session gracefully
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindClose:
		return "CLOSE"
	default:
		return fmt.Sprintf("KIND:%d", byte(k))
	}
}

// Message is a single unit exchanged between peers: either a Text message
// carrying a string, or a CloseRequest.
type Message struct {
	Kind Kind
	Text string // empty unless Kind == KindText
}

// Text constructs a text message carrying s.
func Text(s string) Message { return Message{Kind: KindText, Text: s} }

// CloseRequest is the message a peer sends before it closes the session.
var CloseRequest = Message{Kind: KindClose}

// IsClose reports whether m is a close request.
func (m Message) IsClose() bool { return m.Kind == KindClose }

// String returns a human-friendly rendering of the message.
func (m Message) String() string {
	return value.Cond(m.IsClose(), "Close()", fmt.Sprintf("Text(%q)", m.Text))
}

// Sentinel is the payload that denotes a close request in the legacy wire
// format.
const Sentinel = "CLOSE_CONNECTION"

// Wire selects how messages are encoded into frame payloads.
type Wire int

const (
	// WireTagged prefixes each payload with a one-byte Kind. Close requests
	// carry no text, so no text a user sends can be mistaken for one.
	WireTagged Wire = iota

	// WireLegacy sends text as the bare UTF-8 payload and a close request as
	// the Sentinel string. Under this format a text message equal to Sentinel
	// is indistinguishable from a close request, and decodes as one.
	WireLegacy
)

func (w Wire) String() string {
	switch w {
	case WireTagged:
		return "tagged"
	case WireLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("wire:%d", int(w))
	}
}

// ParseWire parses the name of a wire format as rendered by Wire.String.
func ParseWire(s string) (Wire, error) {
	switch s {
	case "tagged", "":
		return WireTagged, nil
	case "legacy":
		return WireLegacy, nil
	default:
		return 0, fmt.Errorf("unknown wire format %q", s)
	}
}

// Encode encodes m into a frame payload in format w.
func (w Wire) Encode(m Message) []byte {
	if w == WireLegacy {
		if m.IsClose() {
			return []byte(Sentinel)
		}
		return []byte(m.Text)
	}
	if m.IsClose() {
		return []byte{byte(KindClose)}
	}
	buf := make([]byte, 1+len(m.Text))
	buf[0] = byte(m.Kind)
	copy(buf[1:], m.Text)
	return buf
}

// errUnknownKind is reported by Decode for a tagged payload whose kind byte is
// not recognized. Sessions discard such frames.
type errUnknownKind struct{ kind Kind }

func (e errUnknownKind) Error() string { return fmt.Sprintf("unknown message kind %v", e.kind) }

// Decode decodes a frame payload in format w. It reports ErrInvalidText if
// the text of the message is not valid UTF-8.
func (w Wire) Decode(payload []byte) (Message, error) {
	if w == WireLegacy {
		if string(payload) == Sentinel {
			return CloseRequest, nil
		}
		return decodeText(payload)
	}
	if len(payload) == 0 {
		return Message{}, fmt.Errorf("empty tagged payload")
	}
	switch k := Kind(payload[0]); k {
	case KindText:
		return decodeText(payload[1:])
	case KindClose:
		return CloseRequest, nil
	default:
		return Message{}, errUnknownKind{kind: k}
	}
}

func decodeText(data []byte) (Message, error) {
	if !utf8.Valid(data) {
		return Message{}, ErrInvalidText
	}
	return Text(string(data)), nil
}
