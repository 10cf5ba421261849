// Program parley is a terminal client for two-party parley text sessions.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/parley"
	"github.com/creachadair/parley/internal/config"
	"github.com/creachadair/parley/internal/logging"
	"github.com/rs/zerolog"
)

var flags struct {
	Config   string `flag:"config,Configuration file (TOML)"`
	Listen   string `flag:"listen,Listen address (default: all interfaces, any port)"`
	Wire     string `flag:"wire,Payload encoding (tagged or legacy)"`
	Grace    string `flag:"grace,Delay after sending a close request (duration)"`
	LogLevel string `flag:"log-level,Log level (trace, debug, info, warn, error, off)"`
}

var chatFlags struct {
	Dial string `flag:"dial,Peer address to dial at startup (host:port)"`
}

var encodeFlags struct {
	Close bool `flag:"close,Encode a close request instead of text"`
}

func main() {
	root := &command.C{
		Name:     filepath.Base(os.Args[0]),
		Help:     "Exchange text messages with one peer over TCP.",
		SetFlags: command.Flags(flax.MustBind, &flags),
		Commands: []*command.C{
			{
				Name:  "chat",
				Usage: "[--dial host:port]",
				Help: `Start a chat session with one peer.

The program listens for the peer and prints the endpoint to share with it.
Either side may dial the other; the first connection to complete is used
and the other path is abandoned.

Before a peer is connected, the following input lines are understood:

  /connect host port  : dial the peer at host and port
  /quit               : exit

Once connected, each input line is sent to the peer as one message.
Enter /quit (or end the input) to ask the peer to close the session.`,
				SetFlags: command.Flags(flax.MustBind, &chatFlags),
				Run:      runChat,
			},
			{
				Name:  "encode",
				Usage: "[--close] <text>...",
				Help: `Write a wire frame to stdout.

The arguments are joined with spaces and encoded as one text message in the
selected wire format. With --close, encode a close request instead.`,
				SetFlags: command.Flags(flax.MustBind, &encodeFlags),
				Run:      runEncode,
			},
			{
				Name: "decode",
				Help: `Read wire frames from stdin and print the messages they contain.`,
				Run:  runDecode,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

// loadConfig resolves the configuration file, if any, and applies flag
// overrides to it.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if flags.Config != "" {
		var err error
		cfg, err = config.Load(flags.Config)
		if err != nil {
			return config.Config{}, err
		}
	}
	if flags.Listen != "" {
		cfg.Listen = flags.Listen
	}
	if flags.Wire != "" {
		w, err := parley.ParseWire(flags.Wire)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Wire = w
	}
	if flags.Grace != "" {
		d, err := time.ParseDuration(flags.Grace)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --grace: %w", err)
		}
		cfg.GracePeriod = d
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	return cfg, nil
}

// newLogger constructs the program logger for cfg.
func newLogger(cfg config.Config) (zerolog.Logger, error) {
	lvl, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}
	return logging.New(os.Stderr, "parley", lvl, true), nil
}

func runEncode(env *command.Env) error {
	if len(env.Args) == 0 && !encodeFlags.Close {
		return env.Usagef("Missing message text")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	msg := parley.Text(strings.Join(env.Args, " "))
	if encodeFlags.Close {
		msg = parley.CloseRequest
	}
	return parley.WriteFrame(os.Stdout, cfg.Wire.Encode(msg))
}

func runDecode(env *command.Env) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r := bufio.NewReader(os.Stdin)
	for i := 1; ; i++ {
		payload, err := parley.ReadFrame(r, cfg.MaxMessageBytes)
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		msg, err := cfg.Wire.Decode(payload)
		if err != nil {
			fmt.Printf("%d: invalid payload (%d bytes): %v\n", i, len(payload), err)
			continue
		}
		fmt.Printf("%d: %v\n", i, msg)
	}
}
