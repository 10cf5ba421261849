// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package parley implements a symmetric two-party text channel over TCP.
//
// Either party may listen for the other or dial it; once a single connection
// is established, both sides exchange discrete text messages over it until
// one side requests a graceful close. There is no client or server: the two
// peers run the same protocol.
//
// # Frames
//
// Each message on the wire is one frame: a 4-byte big-endian length followed
// by exactly that many payload bytes. See [EncodeFrame], [WriteFrame], and
// [ReadFrame]. A stream that ends between frames is an orderly disconnect
// ([io.EOF]); one that ends inside a frame reports [ErrTruncatedFrame]. There
// is no resynchronization: a corrupted length prefix ends the session.
//
// # Messages
//
// A [Message] is either text or a close request. The [Wire] format selects
// how messages map onto frame payloads. The default, [WireTagged], prefixes
// each payload with a one-byte kind. [WireLegacy] interoperates with peers
// that send text as the bare payload and signal a close with the [Sentinel]
// string; under that format a user who sends the sentinel text closes the
// session.
//
// # Establishing a session
//
// An [Establisher] listens for an inbound connection while the caller may
// dial out. Whichever connects first becomes the session:
//
//	e, err := parley.Listen(ctx, "", nil)
//	if err != nil {
//	   log.Fatalf("Listen: %v", err)
//	}
//	defer e.Close()
//	host, port := e.Endpoint() // share this with the peer
//
//	// Meanwhile, perhaps: e.Dial(ctx, peerHost, peerPort)
//
//	s, err := e.Wait(ctx)
//
// # Sessions
//
// A [Session] sends messages with [Session.Send] or [Session.SendText].
// Call [Session.Start] with a [Handler] to run the receive loop, which
// reports inbound text and the end of the session:
//
//	s.Start(parley.HandlerFuncs{
//	   Received:     func(text string) { fmt.Println(text) },
//	   Disconnected: func(err error) { log.Printf("Peer left: %v", err) },
//	})
//
// [Session.Close] with sendNotice set (or [Session.RequestClose]) sends a
// close request, waits for a grace period so that it reaches the peer, and
// closes the socket.
//
// # Metrics
//
// Sessions and establishers maintain counters in a shared [expvar.Map],
// available from [Metrics]:
//
//   - frames_received: counter of frames received
//   - frames_sent: counter of frames sent
//   - frames_dropped: counter of frames received with an unknown kind
//   - bytes_received: counter of payload bytes received
//   - bytes_sent: counter of payload bytes sent
//   - sessions_started: counter of receive loops started
//   - sessions_active: gauge of receive loops currently running
//   - dials_failed: counter of outbound dials that failed
//   - races_lost: counter of connections closed because another path won
package parley
