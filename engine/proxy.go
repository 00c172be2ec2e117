package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CommandKind names what the worker should do.
type CommandKind int

const (
	CmdNewGame CommandKind = iota
	CmdStop
	CmdGo
)

func (k CommandKind) String() string {
	switch k {
	case CmdNewGame:
		return "new_game"
	case CmdStop:
		return "stop"
	case CmdGo:
		return "go"
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Search is a request for a move in one position.
type Search struct {
	FEN        string
	White      time.Duration
	Black      time.Duration
	Generation uint64 // owner's game counter, echoed back with the reply
}

// Command is one queued instruction for the worker.
type Command struct {
	Kind   CommandKind
	Search Search // CmdGo only
}

// Sink receives what the worker produces. Both methods run on the worker
// goroutine.
type Sink interface {
	// ApplyReply records the engine's answer to search.
	ApplyReply(search Search, reply Reply)

	// EngineFailed is called once when the worker stops on an error.
	EngineFailed(err error)
}

// Connector starts an engine.
type Connector func() (Engine, error)

// Proxy owns a single engine through one worker goroutine. Commands are
// queued without blocking and run strictly in submission order.
type Proxy struct {
	queue  *commandQueue
	sink   Sink
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
	eng Engine
}

// Start launches the worker. The engine is started on the worker, so a
// slow or failing launch never blocks the caller.
func Start(ctx context.Context, connect Connector, sink Sink, log zerolog.Logger) *Proxy {
	ctx, cancel := context.WithCancel(ctx)
	p := &Proxy{
		queue:  newCommandQueue(),
		sink:   sink,
		log:    log.With().Str("component", "engine").Logger(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.run(ctx, connect)
	return p
}

func (p *Proxy) run(ctx context.Context, connect Connector) {
	defer close(p.done)

	eng, err := connect()
	if err != nil {
		p.fail(fmt.Errorf("start engine: %w", err))
		return
	}
	p.mu.Lock()
	p.eng = eng
	p.mu.Unlock()
	defer func() {
		if err := eng.Close(); err != nil {
			p.log.Warn().Err(err).Msg("engine close failed")
		}
	}()
	p.log.Info().Msg("engine worker ready")

	for {
		cmd, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.log.Debug().Err(err).Msg("engine worker exiting")
			return
		}
		if err := p.handle(ctx, eng, cmd); err != nil {
			if ctx.Err() != nil {
				p.log.Debug().Err(err).Msg("engine command cut short by close")
				return
			}
			p.fail(fmt.Errorf("%s: %w", cmd.Kind, err))
			return
		}
	}
}

func (p *Proxy) handle(ctx context.Context, eng Engine, cmd Command) error {
	p.log.Debug().Stringer("cmd", cmd.Kind).Msg("engine command")
	switch cmd.Kind {
	case CmdNewGame:
		return eng.NewGame()
	case CmdStop:
		return eng.Stop()
	case CmdGo:
		start := time.Now()
		reply, err := eng.Search(cmd.Search.FEN, cmd.Search.White, cmd.Search.Black)
		if err != nil {
			return err
		}
		p.log.Info().
			Str("fen", cmd.Search.FEN).
			Str("move", reply.Move).
			Str("score", reply.Score.String()).
			Dur("elapsed", time.Since(start)).
			Msg("engine reply")
		if ctx.Err() != nil {
			return nil
		}
		p.sink.ApplyReply(cmd.Search, reply)
		return nil
	}
	return fmt.Errorf("unknown command %s", cmd.Kind)
}

func (p *Proxy) fail(err error) {
	err = fmt.Errorf("%w: %w", ErrEngineOffline, err)
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	p.queue.Close()
	p.log.Error().Err(err).Msg("engine worker stopped")
	p.sink.EngineFailed(err)
}

// NewGame queues a new-game command.
func (p *Proxy) NewGame() error {
	return p.submit(Command{Kind: CmdNewGame})
}

// Stop queues a stop command. It is delivered in order, so it cannot cut
// short a search queued before it.
func (p *Proxy) Stop() error {
	return p.submit(Command{Kind: CmdStop})
}

// RequestMove queues a search. The reply reaches the Sink later, on the
// worker goroutine.
func (p *Proxy) RequestMove(s Search) error {
	return p.submit(Command{Kind: CmdGo, Search: s})
}

func (p *Proxy) submit(cmd Command) error {
	if err := p.queue.Enqueue(cmd); err != nil {
		if perr := p.Err(); perr != nil {
			return perr
		}
		return err
	}
	return nil
}

// Err returns why the worker stopped. It stays nil while the worker runs
// and after a clean Close.
func (p *Proxy) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed once the worker has exited.
func (p *Proxy) Done() <-chan struct{} {
	return p.done
}

// Close stops the worker and the engine. Queued commands are dropped. A
// search in progress is interrupted when the engine supports it, and its
// reply is discarded.
func (p *Proxy) Close() {
	p.cancel()
	p.queue.Close()

	p.mu.Lock()
	eng := p.eng
	p.mu.Unlock()
	if i, ok := eng.(Interrupter); ok {
		if err := i.Interrupt(); err != nil {
			p.log.Debug().Err(err).Msg("engine interrupt failed")
		}
	}
	<-p.done
}
