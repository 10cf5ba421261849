// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package parley

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/creachadair/taskgroup"
	"github.com/rs/zerolog"
)

// State describes the progress of an Establisher.
type State int

const (
	StateIdle      State = iota // not yet listening
	StateListening              // waiting for an inbound or outbound connection
	StateConnected              // a session has been established
	StateAborted                // closed before any session was established
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateConnected:
		return "CONNECTED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("STATE:%d", int(s))
	}
}

// An Establisher produces exactly one Session from two racing paths: an
// inbound connection accepted on its listener, and any number of outbound
// dials requested by the caller. The first path to connect wins; the
// listener is then closed, pending dials are cancelled, and any connection
// that completes afterward is closed.
//
// Use Wait to obtain the winning session. The methods of an Establisher are
// safe for concurrent use.
type Establisher struct {
	lst   net.Listener
	opts  *Options
	log   zerolog.Logger
	tasks *taskgroup.Group

	// ctx ends when the race is decided or the establisher is closed.
	// Pending dials derive from it.
	ctx    context.Context
	cancel context.CancelFunc

	μ     sync.Mutex
	state State
	sess  *Session      // the winning session, once connected
	err   error         // why the establisher aborted, if it did
	done  chan struct{} // closed when state leaves StateListening
}

// Listen binds a TCP listener on addr and returns an establisher accepting
// on it. If addr == "", Listen binds an ephemeral port on all interfaces.
// If ctx ends before a session is established, the establisher is closed.
//
// If opts.OnListen is set, it is called with the endpoint from Endpoint
// before Listen returns.
func Listen(ctx context.Context, addr string, opts *Options) (*Establisher, error) {
	if addr == "" {
		addr = ":0"
	}
	var lc net.ListenConfig
	lst, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	e := NewEstablisher(lst, opts)
	context.AfterFunc(ctx, func() { e.Close() }) // no effect once connected
	return e, nil
}

// NewEstablisher constructs an establisher that accepts on lst, and starts
// its accept task. The establisher takes ownership of lst.
func NewEstablisher(lst net.Listener, opts *Options) *Establisher {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Establisher{
		lst:    lst,
		opts:   opts,
		log:    opts.logger(),
		tasks:  taskgroup.New(nil),
		ctx:    ctx,
		cancel: cancel,
		state:  StateListening,
		done:   make(chan struct{}),
	}
	host, port := e.Endpoint()
	e.log.Info().Str("host", host).Int("port", port).Msg("listening")
	if opts != nil && opts.OnListen != nil {
		opts.OnListen(host, port)
	}

	e.tasks.Go(func() error {
		conn, err := e.lst.Accept()
		if err != nil {
			e.abort(fmt.Errorf("accept: %w", err))
			return nil
		}
		e.log.Debug().Stringer("peer", conn.RemoteAddr()).Msg("accepted connection")
		e.claim(conn)
		return nil
	})
	return e
}

// Addr returns the address of the listener.
func (e *Establisher) Addr() net.Addr { return e.lst.Addr() }

// Endpoint returns a host and port at which a peer can reach the listener,
// for sharing out of band. If the listener is bound to an unspecified
// address, Endpoint substitutes an address of this host.
func (e *Establisher) Endpoint() (host string, port int) {
	ta, ok := e.lst.Addr().(*net.TCPAddr)
	if !ok {
		h, p, _ := net.SplitHostPort(e.lst.Addr().String())
		port, _ = strconv.Atoi(p)
		return h, port
	}
	if ta.IP == nil || ta.IP.IsUnspecified() {
		return hostAddress(), ta.Port
	}
	return ta.IP.String(), ta.Port
}

// State reports the current state of e.
func (e *Establisher) State() State {
	e.μ.Lock()
	defer e.μ.Unlock()
	return e.state
}

// Done returns a channel that is closed once e has established a session or
// been closed.
func (e *Establisher) Done() <-chan struct{} { return e.done }

// Dial connects to the peer listening at host and port. The port must be a
// decimal integer in [0, 65535], or Dial reports an *AddressError before
// attempting any I/O. A failed connection is reported as a *ConnectError.
//
// If Dial connects first, the new session wins and is returned, and also
// becomes the result of Wait. If another path wins first, the attempt is
// cancelled or its connection closed, and Dial reports ErrAlreadyConnected.
func (e *Establisher) Dial(ctx context.Context, host, port string) (*Session, error) {
	addr, err := dialAddress(host, port)
	if err != nil {
		return nil, err
	}
	if err := e.raceErr(); err != nil {
		return nil, err
	}

	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(e.ctx, cancel)()

	conn, err := dialContext(dctx, addr, e.opts)
	if err != nil {
		if rerr := e.raceErr(); rerr != nil {
			return nil, rerr
		}
		return nil, err
	}
	e.log.Debug().Str("addr", addr).Msg("dialed peer")
	if s, ok := e.claim(conn); ok {
		return s, nil
	}
	return nil, e.raceErr()
}

// Wait blocks until e has established a session or been closed, or until ctx
// ends. It returns the winning session, or ErrAborted if e was closed first.
// The caller is responsible for closing the session.
func (e *Establisher) Wait(ctx context.Context) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
	}
	e.μ.Lock()
	defer e.μ.Unlock()
	if e.sess != nil {
		return e.sess, nil
	}
	return nil, e.err
}

// Close stops listening and cancels any pending dials. If no session has
// been established, Wait reports ErrAborted thereafter. Close does not close
// a session that has already been established.
func (e *Establisher) Close() error {
	e.abort(ErrAborted)
	err := e.lst.Close()
	e.tasks.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// claim offers conn as the session for e. It reports the new session and true
// if conn won the race; otherwise it closes conn and reports false.
func (e *Establisher) claim(conn net.Conn) (*Session, bool) {
	e.μ.Lock()
	if e.state != StateListening {
		e.μ.Unlock()
		conn.Close()
		metrics.raceLost.Add(1)
		e.log.Debug().Stringer("peer", conn.RemoteAddr()).Msg("closed losing connection")
		return nil, false
	}
	s := NewSession(conn, e.opts)
	e.sess = s
	e.state = StateConnected
	close(e.done)
	e.μ.Unlock()

	e.cancel()
	e.lst.Close()
	e.log.Info().Stringer("peer", conn.RemoteAddr()).Msg("connected")
	return s, true
}

// abort moves e to the aborted state with the given cause, if no session has
// been established yet.
func (e *Establisher) abort(cause error) {
	e.μ.Lock()
	if e.state == StateListening {
		e.state = StateAborted
		if !errors.Is(cause, ErrAborted) {
			cause = fmt.Errorf("%w: %w", ErrAborted, cause)
		}
		e.err = cause
		close(e.done)
	}
	e.μ.Unlock()
	e.cancel()
}

// raceErr reports why a new connection cannot win the race, or nil if it
// still can.
func (e *Establisher) raceErr() error {
	e.μ.Lock()
	defer e.μ.Unlock()
	switch e.state {
	case StateConnected:
		return ErrAlreadyConnected
	case StateAborted:
		return e.err
	}
	return nil
}

// ListenAndAccept listens on addr and blocks until one peer connects, then
// stops listening and returns the session for that peer. Use opts.OnListen
// to learn the endpoint to share with the peer.
func ListenAndAccept(ctx context.Context, addr string, opts *Options) (*Session, error) {
	e, err := Listen(ctx, addr, opts)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.Wait(ctx)
}

// Dial connects to the peer listening at host and port, and returns a session
// for the connection. Errors are reported as for Establisher.Dial.
func Dial(ctx context.Context, host, port string, opts *Options) (*Session, error) {
	addr, err := dialAddress(host, port)
	if err != nil {
		return nil, err
	}
	conn, err := dialContext(ctx, addr, opts)
	if err != nil {
		return nil, err
	}
	return NewSession(conn, opts), nil
}

// ParsePort parses s as a TCP port number, a decimal integer in [0, 65535].
func ParsePort(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &AddressError{Port: s, Err: errors.New("port is not an integer")}
	}
	if v < 0 || v > 65535 {
		return 0, &AddressError{Port: s, Err: errors.New("port out of range")}
	}
	return v, nil
}

func dialAddress(host, port string) (string, error) {
	p, err := ParsePort(port)
	if err != nil {
		err.(*AddressError).Host = host
		return "", err
	}
	return net.JoinHostPort(strings.TrimSpace(host), strconv.Itoa(p)), nil
}

func dialContext(ctx context.Context, addr string, opts *Options) (net.Conn, error) {
	d := net.Dialer{Timeout: opts.dialTimeout()}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		metrics.dialFailed.Add(1)
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return conn, nil
}

// hostAddress guesses an address at which peers can reach this host.
func hostAddress() string {
	if name, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupHost(name); err == nil {
			for _, a := range addrs {
				if ip := net.ParseIP(a); ip != nil && !ip.IsLoopback() {
					return a
				}
			}
		}
	}
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
				return ipn.IP.String()
			}
		}
	}
	return "127.0.0.1"
}
