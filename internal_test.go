package parley

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

func TestClaim(t *testing.T) {
	defer leaktest.Check(t)()

	lst, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	e := NewEstablisher(lst, nil)
	defer e.Close()

	wa, wb := net.Pipe()
	defer wa.Close()
	la, lb := net.Pipe()
	defer la.Close()

	lost := metrics.raceLost.Value()
	s, ok := e.claim(wb)
	if !ok || s == nil {
		t.Fatalf("First claim: got (%v, %v), want a session", s, ok)
	}
	defer s.Close(false)

	if s2, ok := e.claim(lb); ok || s2 != nil {
		t.Errorf("Second claim: got (%v, %v), want loss", s2, ok)
	}
	if got := metrics.raceLost.Value(); got != lost+1 {
		t.Errorf("races_lost: got %d, want %d", got, lost+1)
	}

	// The losing connection is closed, so its far end sees EOF.
	la.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := la.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("Read loser: got %v, want %v", err, io.EOF)
	}

	// Claiming closed the listener, so the accept task has ended; an abort
	// after the fact changes nothing.
	e.abort(errors.New("too late"))
	if got := e.State(); got != StateConnected {
		t.Errorf("State: got %v, want %v", got, StateConnected)
	}
	if got, err := e.raceErr(), ErrAlreadyConnected; got != err {
		t.Errorf("raceErr: got %v, want %v", got, err)
	}
}

func TestAbortCause(t *testing.T) {
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	e := NewEstablisher(lst, nil)
	defer e.Close()

	cause := errors.New("listener failed")
	e.abort(cause)
	err = e.raceErr()
	if !errors.Is(err, ErrAborted) || !errors.Is(err, cause) {
		t.Errorf("raceErr: got %v, want %v and %v", err, ErrAborted, cause)
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := WireTagged.Decode([]byte{0x7f, 'x'})
	var uk errUnknownKind
	if !errors.As(err, &uk) {
		t.Fatalf("Decode: got %v, want errUnknownKind", err)
	}
	if uk.kind != 0x7f {
		t.Errorf("Kind: got %v, want 0x7f", uk.kind)
	}
}

func TestOptionDefaults(t *testing.T) {
	var nilOpts *Options
	tests := []struct {
		name      string
		opts      *Options
		wire      Wire
		grace     time.Duration
		limit     int
		dialLimit time.Duration
	}{
		{"Nil", nilOpts, WireTagged, DefaultGracePeriod, DefaultMaxMessageLen, 0},
		{"Zero", &Options{}, WireTagged, DefaultGracePeriod, DefaultMaxMessageLen, 0},
		{"Negative", &Options{GracePeriod: -1, MaxMessageLen: -1}, WireTagged, 0, 0, 0},
		{"Set", &Options{
			Wire:          WireLegacy,
			GracePeriod:   3 * time.Second,
			MaxMessageLen: 100,
			DialTimeout:   time.Minute,
		}, WireLegacy, 3 * time.Second, 100, time.Minute},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.opts.wire(); got != tc.wire {
				t.Errorf("wire: got %v, want %v", got, tc.wire)
			}
			if got := tc.opts.gracePeriod(); got != tc.grace {
				t.Errorf("gracePeriod: got %v, want %v", got, tc.grace)
			}
			if got := tc.opts.maxMessageLen(); got != tc.limit {
				t.Errorf("maxMessageLen: got %v, want %v", got, tc.limit)
			}
			if got := tc.opts.dialTimeout(); got != tc.dialLimit {
				t.Errorf("dialTimeout: got %v, want %v", got, tc.dialLimit)
			}
		})
	}
}

func TestMetricsMap(t *testing.T) {
	m := Metrics()
	for _, name := range []string{
		"frames_received", "frames_sent", "frames_dropped", "bytes_received",
		"bytes_sent", "sessions_started", "sessions_active", "dials_failed", "races_lost",
	} {
		if m.Get(name) == nil {
			t.Errorf("Metric %q not found", name)
		}
	}
}
