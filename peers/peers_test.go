// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package peers_test

import (
	"net"
	"testing"
	"testing/synctest"
	"time"

	"github.com/creachadair/parley"
	"github.com/creachadair/parley/peers"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

type fakeListener struct {
	conns  chan net.Conn
	closed chan struct{}
}

func (f fakeListener) push(c net.Conn) { f.conns <- c }

func (f fakeListener) Accept() (net.Conn, error) {
	select {
	case <-f.closed:
		return nil, net.ErrClosed
	case c := <-f.conns:
		return c, nil
	}
}

func (f fakeListener) Close() error {
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
		close(f.closed)
		return nil
	}
}

func (fakeListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 2112} }

func newFakeListener() fakeListener {
	return fakeListener{
		conns:  make(chan net.Conn),
		closed: make(chan struct{}),
	}
}

// exchange sends each of msgs from one session to the other and reports what
// arrived.
func exchange(t *testing.T, loc *peers.Local, msgs ...string) []string {
	t.Helper()
	got := make(chan string, len(msgs))
	loc.Start(nil, parley.HandlerFuncs{
		Received: func(text string) { got <- text },
	})
	var out []string
	for _, msg := range msgs {
		if err := loc.A.SendText(msg); err != nil {
			t.Fatalf("Send %q: %v", msg, err)
		}
		select {
		case text := <-got:
			out = append(out, text)
		case <-time.After(5 * time.Second):
			t.Fatalf("Timeout waiting for %q", msg)
		}
	}
	return out
}

func TestLocal(t *testing.T) {
	defer leaktest.Check(t)()

	loc := peers.NewLocal(nil)
	msgs := []string{"alpha", "", "gamma delta"}
	if diff := cmp.Diff(msgs, exchange(t, loc, msgs...)); diff != "" {
		t.Errorf("Messages (-want, +got):\n%s", diff)
	}
	if err := loc.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestLoopback(t *testing.T) {
	defer leaktest.Check(t)()

	loc, err := peers.NewLoopback(t.Context(), nil)
	if err != nil {
		t.Fatalf("NewLoopback: %v", err)
	}
	if got, want := loc.A.Peer().String(), loc.B.Local().String(); got != want {
		t.Errorf("A peer: got %s, want %s", got, want)
	}
	msgs := []string{"one", "two", "three"}
	if diff := cmp.Diff(msgs, exchange(t, loc, msgs...)); diff != "" {
		t.Errorf("Messages (-want, +got):\n%s", diff)
	}
	if err := loc.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestAccept(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		lst := newFakeListener()
		var host string
		var port int
		e := parley.NewEstablisher(lst, &parley.Options{
			OnListen: func(h string, p int) { host, port = h, p },
		})
		defer e.Close()
		if host != "10.0.0.1" || port != 2112 {
			t.Errorf("OnListen: got %s:%d, want 10.0.0.1:2112", host, port)
		}

		a, b := net.Pipe()
		defer b.Close()
		time.AfterFunc(1*time.Second, func() { lst.push(a) })

		start := time.Now()
		s, err := e.Wait(t.Context())
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		defer s.Close(false)
		if got := time.Since(start); got != time.Second {
			t.Errorf("Wait took %v, want 1s", got)
		}
		if got := e.State(); got != parley.StateConnected {
			t.Errorf("State: got %v, want %v", got, parley.StateConnected)
		}

		// Winning closes the listener.
		select {
		case <-lst.closed:
		default:
			t.Error("Listener was not closed")
		}
	})
}

func TestAcceptClosed(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		lst := newFakeListener()
		e := parley.NewEstablisher(lst, nil)

		time.AfterFunc(1*time.Second, func() { e.Close() })
		s, err := e.Wait(t.Context())
		if err == nil {
			s.Close(false)
			t.Fatal("Wait: unexpectedly succeeded")
		}
		if got := e.State(); got != parley.StateAborted {
			t.Errorf("State: got %v, want %v", got, parley.StateAborted)
		}
		synctest.Wait()
	})
}
