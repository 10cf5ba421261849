// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package parley

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultGracePeriod is how long Close waits after sending a close
	// request before it closes the socket.
	DefaultGracePeriod = 1 * time.Second

	// DefaultMaxMessageLen bounds the payload of a received frame when no
	// other limit is configured.
	DefaultMaxMessageLen = 16 << 20
)

// Options control the behavior of sessions and establishers. A nil *Options
// is ready for use and provides default values.
type Options struct {
	// Wire selects the payload encoding. The default is WireTagged. Both
	// peers must agree on the format.
	Wire Wire

	// GracePeriod is the delay between sending a close request and closing
	// the socket. If zero, DefaultGracePeriod is used; if negative, the socket
	// is closed as soon as the request is written.
	GracePeriod time.Duration

	// MaxMessageLen is the largest frame payload a session will accept or
	// send. If zero, DefaultMaxMessageLen is used; if negative, there is no
	// limit.
	MaxMessageLen int

	// DialTimeout bounds an outbound connection attempt. If zero, only the
	// system default applies.
	DialTimeout time.Duration

	// Logger, if set, receives lifecycle and frame logs.
	Logger *zerolog.Logger

	// OnListen, if set, is called with the endpoint of each new establisher,
	// so that it can be shared with the peer.
	OnListen func(host string, port int)
}

func (o *Options) wire() Wire {
	if o == nil {
		return WireTagged
	}
	return o.Wire
}

func (o *Options) gracePeriod() time.Duration {
	if o == nil || o.GracePeriod == 0 {
		return DefaultGracePeriod
	} else if o.GracePeriod < 0 {
		return 0
	}
	return o.GracePeriod
}

func (o *Options) maxMessageLen() int {
	if o == nil || o.MaxMessageLen == 0 {
		return DefaultMaxMessageLen
	} else if o.MaxMessageLen < 0 {
		return 0
	}
	return o.MaxMessageLen
}

func (o *Options) dialTimeout() time.Duration {
	if o == nil {
		return 0
	}
	return o.DialTimeout
}

func (o *Options) logger() zerolog.Logger {
	if o == nil || o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}
