// Package engine defines the interface to an external chess engine and the
// proxy that drives it from a single worker.
package engine

import (
	"errors"
	"strings"
	"time"
)

// ErrEngineOffline is returned once the engine worker has stopped.
var ErrEngineOffline = errors.New("engine offline")

// Engine is one running engine process. Calls are never concurrent: the
// proxy worker is the only caller.
type Engine interface {
	// NewGame tells the engine to forget the previous game.
	NewGame() error

	// Stop asks a running search to report its best move now. It is a
	// no-op when the engine is idle.
	Stop() error

	// Search blocks until the engine picks a move for the position.
	// white and black are the remaining clock times, advisory only.
	Search(fen string, white, black time.Duration) (Reply, error)

	// Close shuts the engine down.
	Close() error
}

// Interrupter is implemented by engines that can cut a search short from
// another goroutine. After Interrupt, a running Search returns promptly and
// later searches fail without starting.
type Interrupter interface {
	Interrupt() error
}

// Reply is the engine's answer to a search.
type Reply struct {
	Move  string // coordinate notation, e.g. "e7e5"
	Score Score
}

// Option is one engine-specific setting.
type Option struct {
	Name  string
	Value string
	// Button options carry no value.
	Button bool
}

// ParseOption parses "ID[:VALUE]". A missing value makes a button option.
func ParseOption(s string) Option {
	name, value, found := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !found {
		return Option{Name: name, Button: true}
	}
	return Option{Name: name, Value: strings.TrimSpace(value)}
}

// ParseArgs splits a ";" separated argument string, dropping empty parts.
func ParseArgs(s string) []string {
	var args []string
	for _, a := range strings.Split(s, ";") {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return args
}

// Config holds what is needed to launch an engine.
type Config struct {
	Path    string
	Args    []string
	Options []Option
}

// DefaultConfig returns a reasonable default configuration.
func DefaultConfig() Config {
	return Config{
		Path: "stockfish",
	}
}
