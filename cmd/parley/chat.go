package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/creachadair/command"
	"github.com/creachadair/parley"
	"github.com/creachadair/taskgroup"
	"github.com/rs/zerolog"
)

func runChat(env *command.Env) error {
	if len(env.Args) != 0 {
		return env.Usagef("Extra arguments: %q", env.Args)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(env.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := cfg.Options(&log)
	opts.OnListen = func(host string, port int) {
		fmt.Printf("Listening at %s (share this with your peer)\n", net.JoinHostPort(host, fmt.Sprint(port)))
	}
	e, err := parley.Listen(ctx, cfg.Listen, opts)
	if err != nil {
		return err
	}

	// Dials run in the background. They end when the race is decided, or when
	// the establisher is closed, which happens before we wait for them.
	dials := taskgroup.New(nil)
	defer dials.Wait()
	defer e.Close()

	dial := func(host, port string) {
		dials.Go(func() error {
			fmt.Printf("Connecting to %s...\n", net.JoinHostPort(host, port))
			_, err := e.Dial(ctx, host, port)
			if err != nil && !errors.Is(err, parley.ErrAlreadyConnected) && !errors.Is(err, parley.ErrAborted) {
				fmt.Printf("Connection failed: %v\n", err)
			}
			return nil
		})
	}
	if chatFlags.Dial != "" {
		host, port, err := net.SplitHostPort(chatFlags.Dial)
		if err != nil {
			return fmt.Errorf("invalid --dial address: %w", err)
		}
		dial(host, port)
	}

	lines := readLines(os.Stdin)
	s, err := awaitPeer(ctx, e, lines, dial)
	if err != nil || s == nil {
		return err
	}
	return chat(ctx, s, lines, log)
}

// awaitPeer handles input until a session is established. It returns nil
// without error if the user quits first.
func awaitPeer(ctx context.Context, e *parley.Establisher, lines <-chan string, dial func(host, port string)) (*parley.Session, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-e.Done():
			s, err := e.Wait(ctx)
			if errors.Is(err, parley.ErrAborted) && ctx.Err() != nil {
				return nil, nil
			}
			return s, err
		case line, ok := <-lines:
			if !ok {
				return nil, nil
			}
			switch fs := strings.Fields(line); {
			case len(fs) == 0:
				// skip blank lines
			case fs[0] == "/quit":
				return nil, nil
			case fs[0] == "/connect" && len(fs) == 3:
				dial(fs[1], fs[2])
			case fs[0] == "/connect" && len(fs) == 2:
				host, port, err := net.SplitHostPort(fs[1])
				if err != nil {
					fmt.Printf("Invalid address: %v\n", err)
					break
				}
				dial(host, port)
			default:
				fmt.Println("Not connected; use /connect host port or /quit")
			}
		}
	}
}

// chat runs the session s until either side closes it.
func chat(ctx context.Context, s *parley.Session, lines <-chan string, log zerolog.Logger) error {
	left := make(chan struct{})
	s.Start(parley.HandlerFuncs{
		Connected: func(peer net.Addr) {
			fmt.Printf("Connected to %v\n", peer)
		},
		Received: func(text string) {
			fmt.Printf("peer> %s\n", text)
		},
		Disconnected: func(err error) {
			if err == nil {
				fmt.Println("Session closed")
			} else if errors.Is(err, io.EOF) {
				fmt.Println("Peer disconnected")
			} else {
				fmt.Printf("Connection lost: %v\n", err)
			}
			close(left)
		},
	})
	for {
		select {
		case <-left:
			return s.Wait()
		case <-ctx.Done():
			s.RequestClose()
			return s.Wait()
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				s.RequestClose()
				return s.Wait()
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := s.SendText(line); err != nil {
				log.Error().Err(err).Msg("send failed")
			}
		}
	}
}

// readLines delivers lines of input from r until it ends or fails.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}
