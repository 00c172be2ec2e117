// Package uci runs a chess engine process speaking the Universal Chess
// Interface over its stdin and stdout.
package uci

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chess-diagram/engine"
)

var (
	// ErrClosed is returned when the engine's output ends unexpectedly.
	ErrClosed = errors.New("engine output closed")
	// ErrInterrupted is returned by Search after Interrupt.
	ErrInterrupted = errors.New("engine interrupted")
)

// ProtocolError records which exchange with the engine failed.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("uci %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// quitTimeout bounds how long Close waits for the process after "quit".
const quitTimeout = 2 * time.Second

// Engine is a running UCI engine process. It implements engine.Engine and
// is not safe for concurrent use, except for Interrupt.
type Engine struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	log    zerolog.Logger

	name string

	// mu serializes writes to stdin.
	mu          sync.Mutex
	interrupted bool
}

var (
	_ engine.Engine      = (*Engine)(nil)
	_ engine.Interrupter = (*Engine)(nil)
)

// Start launches the engine, performs the uci handshake, applies the
// configured options and waits until the engine is ready.
func Start(cfg engine.Config, log zerolog.Logger) (*Engine, error) {
	e := &Engine{
		log: log.With().Str("component", "uci").Str("path", cfg.Path).Logger(),
	}
	e.cmd = exec.Command(cfg.Path, cfg.Args...)

	var err error
	e.stdin, err = e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	e.stdout = bufio.NewReader(stdout)

	// Discard stderr to prevent blocking
	e.cmd.Stderr = nil

	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Path, err)
	}

	if err := e.handshake(cfg.Options); err != nil {
		e.kill()
		return nil, err
	}
	e.log.Info().Str("name", e.name).Msg("engine started")
	return e, nil
}

func (e *Engine) handshake(opts []engine.Option) error {
	if err := e.send("uci"); err != nil {
		return err
	}
	err := e.readUntil("uci", "uciok", func(line string) {
		if name, ok := strings.CutPrefix(line, "id name "); ok {
			e.name = name
		}
	})
	if err != nil {
		return err
	}

	for _, opt := range opts {
		if err := e.send(setOption(opt)); err != nil {
			return err
		}
	}
	return e.sync()
}

func setOption(opt engine.Option) string {
	if opt.Button {
		return "setoption name " + opt.Name
	}
	return "setoption name " + opt.Name + " value " + opt.Value
}

// Name returns the engine's self-reported name.
func (e *Engine) Name() string {
	return e.name
}

// send writes one command line.
func (e *Engine) send(cmd string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.write(cmd)
}

func (e *Engine) write(cmd string) error {
	e.log.Debug().Str("cmd", cmd).Msg("send")
	if _, err := fmt.Fprintf(e.stdin, "%s\n", cmd); err != nil {
		return &ProtocolError{Op: firstWord(cmd), Err: err}
	}
	return nil
}

// readUntil consumes output lines until one starts with token, passing
// every line (the final one included) to each.
func (e *Engine) readUntil(op, token string, each func(line string)) error {
	for {
		line, err := e.stdout.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrClosed
			}
			return &ProtocolError{Op: op, Err: err}
		}
		line = strings.TrimRight(line, "\r\n")
		e.log.Trace().Str("line", line).Msg("recv")
		if each != nil {
			each(line)
		}
		if line == token || strings.HasPrefix(line, token+" ") {
			return nil
		}
	}
}

// sync waits for the engine to finish processing earlier commands.
func (e *Engine) sync() error {
	if err := e.send("isready"); err != nil {
		return err
	}
	return e.readUntil("isready", "readyok", nil)
}

// NewGame implements engine.Engine.
func (e *Engine) NewGame() error {
	if err := e.send("ucinewgame"); err != nil {
		return err
	}
	return e.sync()
}

// Stop implements engine.Engine. An idle engine ignores it.
func (e *Engine) Stop() error {
	return e.send("stop")
}

// Interrupt implements engine.Interrupter. It may be called while Search
// is waiting for the engine's answer.
func (e *Engine) Interrupt() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interrupted = true
	return e.write("stop")
}

// Search implements engine.Engine.
func (e *Engine) Search(fen string, white, black time.Duration) (engine.Reply, error) {
	if err := e.start(fen, white, black); err != nil {
		return engine.Reply{}, err
	}

	var (
		score engine.Score
		best  string
	)
	err := e.readUntil("go", "bestmove", func(line string) {
		switch firstWord(line) {
		case "info":
			parseInfo(line, &score)
		case "bestmove":
			best = parseBestMove(line)
		}
	})
	if err != nil {
		return engine.Reply{}, err
	}
	return engine.Reply{Move: best, Score: score}, nil
}

// start sends the position and the go command, unless Interrupt came first.
func (e *Engine) start(fen string, white, black time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interrupted {
		return &ProtocolError{Op: "go", Err: ErrInterrupted}
	}
	if err := e.write("position fen " + fen); err != nil {
		return err
	}
	return e.write(goCommand(white, black))
}

// defaultMoveTime is used when no clock budget is configured.
const defaultMoveTime = time.Second

func goCommand(white, black time.Duration) string {
	if white <= 0 && black <= 0 {
		return fmt.Sprintf("go movetime %d", defaultMoveTime.Milliseconds())
	}
	return fmt.Sprintf("go wtime %d btime %d", white.Milliseconds(), black.Milliseconds())
}

// Close implements engine.Engine. It asks the engine to quit and kills it
// if it does not exit in time.
func (e *Engine) Close() error {
	if e.stdin != nil {
		_ = e.send("quit")
		e.stdin.Close()
	}
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- e.cmd.Wait()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(quitTimeout):
		e.log.Warn().Msg("engine ignored quit, killing it")
		_ = e.cmd.Process.Kill()
		<-done
		return nil
	}
}

func (e *Engine) kill() {
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
		_ = e.cmd.Wait()
	}
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
