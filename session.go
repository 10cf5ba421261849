// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package parley

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/creachadair/taskgroup"
	"github.com/rs/zerolog"
)

// A Session is the single active connection between two peers. It sends and
// receives whole messages over a net.Conn.
//
// Send, SendText, and Close are safe for concurrent use; at most one frame is
// written at a time. Receive must be called from only one goroutine, which
// is normally the receive loop started by Start.
type Session struct {
	conn  net.Conn
	in    *bufio.Reader
	wire  Wire
	grace time.Duration
	limit int
	log   zerolog.Logger

	out struct {
		// Must hold the lock to write to w.
		sync.Mutex
		w *bufio.Writer
	}

	closing  atomic.Bool   // set when Close begins
	closed   chan struct{} // closed when the socket has been closed
	hangup   chan struct{} // closed when the remote peer ends the stream
	hangOnce sync.Once

	μ     sync.Mutex
	tasks *taskgroup.Group // receive loop, if started
	err   error            // why the receive loop stopped
}

// NewSession constructs a session that exchanges messages on conn. The
// session takes ownership of conn and closes it when the session closes.
func NewSession(conn net.Conn, opts *Options) *Session {
	if conn == nil {
		panic("parley: nil connection")
	}
	s := &Session{
		conn:   conn,
		in:     bufio.NewReader(conn),
		wire:   opts.wire(),
		grace:  opts.gracePeriod(),
		limit:  opts.maxMessageLen(),
		log:    opts.logger().With().Stringer("peer", conn.RemoteAddr()).Logger(),
		closed: make(chan struct{}),
		hangup: make(chan struct{}),
	}
	s.out.w = bufio.NewWriter(conn)
	return s
}

// Peer returns the network address of the remote peer.
func (s *Session) Peer() net.Addr { return s.conn.RemoteAddr() }

// Local returns the local network address of the session.
func (s *Session) Local() net.Addr { return s.conn.LocalAddr() }

// Wire reports the payload encoding used by s.
func (s *Session) Wire() Wire { return s.wire }

// Send writes msg to the remote peer as a single frame, and does not return
// until the whole frame has been handed to the socket. Text that is not valid
// UTF-8 is rejected with ErrInvalidText before anything is written. If the
// write fails, the session is closed and the error is returned. Once Close
// has begun, Send reports net.ErrClosed.
func (s *Session) Send(msg Message) error {
	if msg.Kind == KindText && !utf8.ValidString(msg.Text) {
		return fmt.Errorf("send: %w", ErrInvalidText)
	}
	payload := s.wire.Encode(msg)
	if s.limit > 0 && len(payload) > s.limit {
		return fmt.Errorf("send: %w: %d > %d bytes", ErrFrameTooLarge, len(payload), s.limit)
	}

	s.out.Lock()
	if s.closing.Load() {
		s.out.Unlock()
		return net.ErrClosed
	}
	err := s.writeLocked(msg, payload)
	s.out.Unlock()

	if err != nil {
		s.log.Debug().Err(err).Msg("send failed, closing session")
		s.Close(false)
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// SendText sends a text message carrying text to the remote peer.
func (s *Session) SendText(text string) error { return s.Send(Text(text)) }

// writeLocked writes a frame for payload. The caller must hold s.out.
func (s *Session) writeLocked(msg Message, payload []byte) error {
	s.log.Trace().Str("dir", "send").Stringer("msg", msg).Int("len", len(payload)).Msg("frame")
	if err := WriteFrame(s.out.w, payload); err != nil {
		return err
	}
	if err := s.out.w.Flush(); err != nil {
		return err
	}
	metrics.frameSent.Add(1)
	metrics.bytesSent.Add(int64(len(payload)))
	return nil
}

// Receive blocks until the next message arrives from the remote peer.
//
// If the peer ends the stream between frames, Receive reports io.EOF. If the
// stream ends inside a frame, it reports ErrTruncatedFrame. If the session
// was closed locally, it reports net.ErrClosed. Any error from Receive means
// the stream cannot be used further.
func (s *Session) Receive() (Message, error) {
	for {
		payload, err := ReadFrame(s.in, s.limit)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.hangOnce.Do(func() { close(s.hangup) })
			} else if s.closing.Load() {
				// Reads on a locally-closed conn report a variety of errors
				// depending on the implementation; normalize them.
				return Message{}, net.ErrClosed
			}
			return Message{}, err
		}
		metrics.frameRecv.Add(1)
		metrics.bytesRecv.Add(int64(len(payload)))

		msg, err := s.wire.Decode(payload)
		var uk errUnknownKind
		if errors.As(err, &uk) {
			metrics.frameDropped.Add(1)
			s.log.Debug().Stringer("kind", uk.kind).Msg("discarding frame")
			continue
		} else if err != nil {
			return Message{}, err
		}
		s.log.Trace().Str("dir", "recv").Stringer("msg", msg).Int("len", len(payload)).Msg("frame")
		return msg, nil
	}
}

// Close closes the session. If sendNotice is true, Close first sends a close
// request to the peer, ignoring any error, and then waits for the grace
// period (or until the peer hangs up, if sooner) so the request can reach the
// peer before the socket closes.
//
// Close is idempotent. A concurrent or repeated call waits for the first one
// to finish and reports nil.
func (s *Session) Close(sendNotice bool) error {
	if s.closing.Swap(true) {
		<-s.closed
		return nil
	}
	if sendNotice {
		s.sendNotice()
		if s.grace > 0 {
			t := time.NewTimer(s.grace)
			select {
			case <-t.C:
			case <-s.hangup:
				t.Stop()
			}
		}
	}
	err := s.conn.Close()
	close(s.closed)
	s.log.Debug().Bool("notice", sendNotice).Msg("session closed")
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// RequestClose asks the remote peer to close the session, then closes it
// locally. It is shorthand for Close(true).
func (s *Session) RequestClose() error { return s.Close(true) }

// Closed returns a channel that is closed once the session's socket has been
// closed.
func (s *Session) Closed() <-chan struct{} { return s.closed }

// sendNotice makes a best effort to send a close request to the peer. The
// write is bounded by the grace period so that a peer that has stopped
// reading cannot stall the close.
func (s *Session) sendNotice() {
	// Set the deadline before taking the lock, so that it also bounds a send
	// already in progress.
	if s.grace > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.grace))
	}
	s.out.Lock()
	defer s.out.Unlock()
	if err := s.writeLocked(CloseRequest, s.wire.Encode(CloseRequest)); err != nil {
		s.log.Debug().Err(err).Msg("close notice not delivered")
	}
}
