// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package parley_test

import (
	"strings"
	"testing"

	"github.com/creachadair/parley"
	"github.com/creachadair/parley/peers"
)

func BenchmarkSend(b *testing.B) {
	short := "fuzzy wuzzy was a bear"
	long := strings.Repeat("fuzzy wuzzy had no hair\n", 400)

	b.Run("Pipe-short", func(b *testing.B) {
		runBench(b, peers.NewLocal(nil), short)
	})
	b.Run("Pipe-long", func(b *testing.B) {
		runBench(b, peers.NewLocal(nil), long)
	})
	b.Run("TCP-short", func(b *testing.B) {
		runBench(b, mustLoopback(b), short)
	})
	b.Run("TCP-long", func(b *testing.B) {
		runBench(b, mustLoopback(b), long)
	})
}

func mustLoopback(b *testing.B) *peers.Local {
	b.Helper()
	loc, err := peers.NewLoopback(b.Context(), nil)
	if err != nil {
		b.Fatalf("NewLoopback: %v", err)
	}
	return loc
}

// runBench sends text from A to B until the benchmark ends, and waits for B
// to receive every message.
func runBench(b *testing.B, loc *peers.Local, text string) {
	b.Helper()
	got := make(chan struct{}, 64)
	loc.Start(nil, parley.HandlerFuncs{
		Received: func(string) { got <- struct{}{} },
	})
	b.Cleanup(func() {
		if err := loc.Stop(); err != nil {
			b.Errorf("Stop: %v", err)
		}
	})

	b.SetBytes(int64(len(text)))
	for b.Loop() {
		if err := loc.A.SendText(text); err != nil {
			b.Fatal(err)
		}
		<-got
	}
}
