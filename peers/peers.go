// Package peers provides support code for connecting and testing sessions.
package peers

import (
	"context"
	"net"

	"github.com/creachadair/parley"
)

// Local is a pair of connected sessions, suitable for testing.
type Local struct {
	A *parley.Session
	B *parley.Session
}

// Stop closes both sessions without notice and blocks until both of their
// receive loops, if started, have exited.
func (p *Local) Stop() error {
	aerr := p.A.Stop()
	berr := p.B.Stop()
	if aerr != nil {
		return aerr
	}
	return berr
}

// Start starts the receive loops of both sessions, and returns p to permit
// chaining.
func (p *Local) Start(ha, hb parley.Handler) *Local {
	p.A.Start(ha)
	p.B.Start(hb)
	return p
}

// NewLocal creates a pair of unstarted sessions connected by an in-memory
// synchronous pipe.
func NewLocal(opts *parley.Options) *Local {
	a, b := net.Pipe()
	return &Local{
		A: parley.NewSession(a, opts),
		B: parley.NewSession(b, opts),
	}
}

// NewLoopback creates a pair of unstarted sessions connected by TCP over the
// loopback interface. Session A is the listening side, B the dialing side.
func NewLoopback(ctx context.Context, opts *parley.Options) (*Local, error) {
	e, err := parley.Listen(ctx, "127.0.0.1:0", opts)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	_, port, err := net.SplitHostPort(e.Addr().String())
	if err != nil {
		return nil, err
	}

	// The kernel completes the handshake whether or not the accept task has
	// reached Accept yet, so the dial does not need to run concurrently.
	b, err := parley.Dial(ctx, "127.0.0.1", port, opts)
	if err != nil {
		return nil, err
	}
	a, err := e.Wait(ctx)
	if err != nil {
		b.Close(false)
		return nil, err
	}
	return &Local{A: a, B: b}, nil
}
