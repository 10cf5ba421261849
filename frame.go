// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package parley

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// prefixLen is the size in bytes of the frame length prefix.
const prefixLen = 4

// EncodeFrame returns payload with its 4-byte big-endian length prefix.  No
// limit is enforced here beyond the range of the prefix itself.
func EncodeFrame(payload []byte) []byte {
	buf := make([]byte, prefixLen, prefixLen+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// WriteFrame writes a complete frame containing payload to w.
// The prefix and payload are delivered to w in a single Write.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > 1<<32-1 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	_, err := w.Write(EncodeFrame(payload))
	return err
}

// ReadFrame reads one complete frame from r and returns its payload.
//
// If r ends before a complete length prefix is read, ReadFrame reports
// io.EOF: the peer went away between frames. If r ends after the prefix but
// before the full payload, it reports ErrTruncatedFrame. If limit > 0 and the
// prefix announces more than limit bytes, it reports ErrFrameTooLarge without
// reading the payload.
func ReadFrame(r io.Reader, limit int) ([]byte, error) {
	var pfx [prefixLen]byte
	if _, err := io.ReadFull(r, pfx[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(pfx[:])
	if limit > 0 && uint64(n) > uint64(limit) {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, n, limit)
	}
	if n == 0 {
		return []byte{}, nil
	}
	payload := make([]byte, int(n))
	if nr, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedFrame, nr, n)
		}
		return nil, err
	}
	return payload, nil
}
