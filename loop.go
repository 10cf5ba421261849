// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package parley

import (
	"errors"
	"net"

	"github.com/creachadair/taskgroup"
)

// A Handler receives the events of a session from its receive loop. The
// methods of a handler are called synchronously by the loop, in order, from a
// single goroutine.
type Handler interface {
	// OnConnected is called once when the receive loop starts.
	OnConnected(peer net.Addr)

	// OnMessageReceived is called for each text message from the peer.
	OnMessageReceived(text string)

	// OnDisconnected is called once when the receive loop ends. The error is
	// nil if the peer requested the close or the session was closed locally,
	// io.EOF if the peer went away without a close request, and otherwise
	// reports the fault that ended the session.
	OnDisconnected(err error)
}

// HandlerFuncs implements Handler with optional callbacks. A nil field
// ignores the corresponding event.
type HandlerFuncs struct {
	Connected    func(peer net.Addr)
	Received     func(text string)
	Disconnected func(err error)
}

func (h HandlerFuncs) OnConnected(peer net.Addr) {
	if h.Connected != nil {
		h.Connected(peer)
	}
}

func (h HandlerFuncs) OnMessageReceived(text string) {
	if h.Received != nil {
		h.Received(text)
	}
}

func (h HandlerFuncs) OnDisconnected(err error) {
	if h.Disconnected != nil {
		h.Disconnected(err)
	}
}

// Start starts the receive loop for s, delivering events to h. Start does not
// block; call Wait to wait for the loop to exit. The loop runs until the peer
// requests a close, the stream ends or fails, or s is closed locally, and
// it is never restarted. Start panics if called more than once.
func (s *Session) Start(h Handler) *Session {
	s.μ.Lock()
	defer s.μ.Unlock()
	if s.tasks != nil {
		panic("session is already started")
	}
	if h == nil {
		h = HandlerFuncs{}
	}

	g := taskgroup.New(nil)
	s.tasks = g
	metrics.sessionStarted.Add(1)
	metrics.sessionActive.Add(1)

	g.Go(func() error {
		defer metrics.sessionActive.Add(-1)
		h.OnConnected(s.Peer())
		s.log.Info().Msg("session started")

		err := s.receiveLoop(h)

		s.μ.Lock()
		s.err = err
		s.μ.Unlock()

		s.log.Info().AnErr("reason", err).Msg("session ended")
		h.OnDisconnected(err)
		return nil
	})
	return s
}

// receiveLoop delivers inbound messages to h until the session ends, and
// reports why it ended.
func (s *Session) receiveLoop(h Handler) error {
	for {
		msg, err := s.Receive()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil // closed locally
			}
			s.Close(false)
			return err
		}
		if msg.IsClose() {
			// The peer asked to close; there is no need to answer.
			s.Close(false)
			return nil
		}
		h.OnMessageReceived(msg.Text)
	}
}

// Wait blocks until the receive loop of s has exited, and reports the error
// that ended it. Wait returns nil if the loop was not started, or if the
// session ended by a close request, a local close, or the peer hanging up
// between frames.
func (s *Session) Wait() error {
	s.μ.Lock()
	g := s.tasks
	s.μ.Unlock()
	if g == nil {
		return nil
	}
	g.Wait()

	s.μ.Lock()
	defer s.μ.Unlock()
	if IsClosed(s.err) {
		return nil
	}
	return s.err
}

// Stop closes s without notifying the peer and waits for its receive loop to
// exit. It reports the same value as Wait.
func (s *Session) Stop() error { s.Close(false); return s.Wait() }
