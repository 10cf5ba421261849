// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package parley

import (
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	// ErrTruncatedFrame is reported when the stream ends after a length prefix
	// but before the complete payload has arrived.
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrFrameTooLarge is reported when a length prefix exceeds the limit
	// configured for a session.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrInvalidText is reported when a text payload is not valid UTF-8.
	ErrInvalidText = errors.New("message text is not valid UTF-8")

	// ErrInvalidAddress is reported for a host or port that cannot be dialed.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrConnect is reported when an outbound dial fails.
	ErrConnect = errors.New("connect failed")

	// ErrAlreadyConnected is reported by a dial that completed after another
	// path had already established the session.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrAborted is reported when an establisher is closed before any session
	// was established.
	ErrAborted = errors.New("establisher closed")
)

// AddressError is the concrete type of errors reported for an address that
// fails validation. It satisfies errors.Is(err, ErrInvalidAddress).
type AddressError struct {
	Host, Port string
	Err        error // the underlying cause, if any
}

func (a *AddressError) Error() string {
	if a.Err != nil {
		return fmt.Sprintf("invalid address %q: %v", net.JoinHostPort(a.Host, a.Port), a.Err)
	}
	return fmt.Sprintf("invalid address %q", net.JoinHostPort(a.Host, a.Port))
}

// Is reports whether target is ErrInvalidAddress.
func (a *AddressError) Is(target error) bool { return target == ErrInvalidAddress }

// Unwrap reports the underlying cause of a, if any.
func (a *AddressError) Unwrap() error { return a.Err }

// ConnectError is the concrete type of errors reported when an outbound dial
// is refused, times out, or cannot reach its host. It satisfies
// errors.Is(err, ErrConnect).
type ConnectError struct {
	Addr string
	Err  error
}

func (c *ConnectError) Error() string { return fmt.Sprintf("connect to %s: %v", c.Addr, c.Err) }

// Is reports whether target is ErrConnect.
func (c *ConnectError) Is(target error) bool { return target == ErrConnect }

// Unwrap reports the underlying dial error.
func (c *ConnectError) Unwrap() error { return c.Err }

// IsClosed reports whether err marks the ordinary end of a session, either
// because the remote peer hung up or because the session was closed locally,
// rather than a protocol fault.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
