// Package game coordinates the move history, the opening book and the
// engine for one interactive session.
package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"chess-diagram/engine"
	"chess-diagram/opening"
	"chess-diagram/rules"
	"chess-diagram/variation"
)

var (
	// ErrIllegalMove rejects a move that cannot be played at the cursor.
	ErrIllegalMove = errors.New("illegal move")
	// ErrInternal reports a broken history invariant.
	ErrInternal = errors.New("internal error")
)

// Mode is the session's interaction mode.
type Mode int

const (
	// ModeSetup lets the user move both sides; the engine stays idle.
	ModeSetup Mode = iota
	// ModePlay asks the engine to answer moves the book does not cover.
	ModePlay
)

func (m Mode) String() string {
	if m == ModePlay {
		return "play"
	}
	return "setup"
}

// EngineProxy is the part of engine.Proxy the session drives.
type EngineProxy interface {
	NewGame() error
	Stop() error
	RequestMove(engine.Search) error
}

// Options configures a Session.
type Options struct {
	EngineColor chess.Color
	WhiteTime   time.Duration
	BlackTime   time.Duration
	// Repaint asks the UI to redraw. It is called without the session lock
	// held, possibly from the engine worker.
	Repaint func()
}

// Session owns the history, the book and the engine handle. All state is
// guarded by one RWMutex: readers are the UI, writers are the UI's
// mutations and the engine worker applying replies.
type Session struct {
	id   string
	log  zerolog.Logger
	book *opening.Matcher
	opts Options

	mu         sync.RWMutex
	tree       *variation.Tree
	engine     EngineProxy
	mode       Mode
	score      engine.Score
	bookLabel  string
	opening    opening.Opening
	hasOpening bool
	openingPly int // ply on the cursor line where opening was reached
	fault      error
	generation uint64
}

// NewSession returns a session in Setup mode with an empty history. The
// engine handle is attached separately with AttachEngine, since the proxy
// needs the session as its sink.
func NewSession(book *opening.Matcher, opts Options, log zerolog.Logger) *Session {
	id := uuid.New().String()
	if opts.Repaint == nil {
		opts.Repaint = func() {}
	}
	return &Session{
		id:   id,
		log:  log.With().Str("component", "session").Str("session", id).Logger(),
		book: book,
		opts: opts,
		tree: variation.NewTree(),
	}
}

// AttachEngine sets the engine proxy.
func (s *Session) AttachEngine(p EngineProxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = p
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// PushMove plays a human move at the cursor. In Play mode the book answers
// first and the engine is asked when it has nothing. In Setup mode nothing
// answers: the user moves both sides.
func (s *Session) PushMove(m rules.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.tree.Position()
	if !pos.IsLegal(m) {
		return fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	s.push(m)
	s.score = engine.Score{}
	s.bookLabel = ""

	after := s.tree.Position()
	if s.mode != ModePlay || after.Outcome() != "" {
		return nil
	}
	if bm, label, ok := s.book.Find(after); ok {
		s.log.Debug().Str("move", bm.String()).Str("line", label).Msg("book move")
		s.push(bm)
		s.bookLabel = label
		return nil
	}
	return s.requestLocked()
}

// PushUCI parses coordinate notation and plays it as a human move.
func (s *Session) PushUCI(text string) error {
	m, err := rules.ParseMove(text)
	if err != nil {
		return err
	}
	return s.PushMove(m)
}

// PushText accepts SAN or coordinate notation.
func (s *Session) PushText(text string) error {
	s.mu.RLock()
	pos := s.tree.Position()
	s.mu.RUnlock()
	m, err := pos.ParseAny(text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return s.PushMove(m)
}

// push records m and refreshes the opening classification. Callers hold
// the write lock.
func (s *Session) push(m rules.Move) {
	s.tree.Push(m)
	s.classifyLocked()
}

// classifyLocked names the opening of the line up to the cursor: the
// deepest classified position on it, or none.
func (s *Session) classifyLocked() {
	s.opening, s.hasOpening, s.openingPly = opening.Opening{}, false, 0
	moves, err := s.tree.MovesToCursor()
	if err != nil {
		return
	}
	pos := s.tree.Start()
	for i, m := range moves {
		next, err := pos.Play(m)
		if err != nil {
			return
		}
		pos = next
		if o, ok := s.book.Classify(pos); ok {
			s.opening, s.hasOpening, s.openingPly = o, true, i+1
		}
	}
}

// requestLocked asks the engine for a move in the cursor position. Once the
// engine is offline this is a no-op; the fault is reported through Fault.
func (s *Session) requestLocked() error {
	if s.engine == nil || s.fault != nil {
		return nil
	}
	search := engine.Search{
		FEN:        s.tree.Position().FEN(),
		White:      s.opts.WhiteTime,
		Black:      s.opts.BlackTime,
		Generation: s.generation,
	}
	if err := s.engine.RequestMove(search); err != nil {
		return s.setFaultLocked(err)
	}
	return nil
}

// SetMode switches between Setup and Play. Entering Play asks the engine
// to move in the current position.
func (s *Session) SetMode(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == m {
		return nil
	}
	s.mode = m
	s.log.Info().Stringer("mode", m).Msg("mode changed")
	if m == ModePlay && s.tree.Position().Outcome() == "" {
		return s.requestLocked()
	}
	return nil
}

// SetEngineColor changes the side the engine plays from the next game on.
func (s *Session) SetEngineColor(c chess.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.EngineColor = c
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// NewGame discards the history and tells the engine to start over. Replies
// to searches issued before the reset are ignored.
func (s *Session) NewGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newGameLocked(s.mode)
}

// NewGameIn starts a new game in mode m. Unlike NewGame followed by SetMode,
// the engine only moves first when it plays white.
func (s *Session) NewGameIn(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newGameLocked(m)
}

func (s *Session) newGameLocked(m Mode) error {
	s.tree = variation.NewTree()
	s.mode = m
	s.score = engine.Score{}
	s.bookLabel = ""
	s.classifyLocked()
	s.generation++
	s.log.Info().Uint64("generation", s.generation).Stringer("mode", m).Msg("new game")

	if s.engine == nil || s.fault != nil {
		return nil
	}
	if err := s.engine.NewGame(); err != nil {
		return s.setFaultLocked(err)
	}
	if s.mode == ModePlay && s.opts.EngineColor == chess.White {
		return s.requestLocked()
	}
	return nil
}

// Stop asks the engine to cut its current search short. It is queued
// behind commands already submitted.
func (s *Session) Stop() error {
	s.mu.RLock()
	p, fault := s.engine, s.fault
	s.mu.RUnlock()
	if p == nil {
		return nil
	}
	if fault != nil {
		return fault
	}
	return p.Stop()
}

// SetCursor moves the cursor. Unknown addresses are ignored.
func (s *Session) SetCursor(addr variation.MoveAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.SetCursor(addr)
	s.classifyLocked()
}

// Back steps the cursor towards the start of the game.
func (s *Session) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tree.Back() {
		return false
	}
	s.classifyLocked()
	return true
}

// Forward steps the cursor along its variation.
func (s *Session) Forward() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tree.Forward() {
		return false
	}
	s.classifyLocked()
	return true
}

// ApplyReply implements engine.Sink. The reply is applied under the write
// lock and the repaint is requested after the lock is released. Replies
// for an older game or for a position the cursor has left are dropped.
func (s *Session) ApplyReply(search engine.Search, reply engine.Reply) {
	if !s.applyReply(search, reply) {
		return
	}
	s.opts.Repaint()
}

func (s *Session) applyReply(search engine.Search, reply engine.Reply) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("move", reply.Move).Uint64("generation", search.Generation).Logger()
	if search.Generation != s.generation {
		log.Debug().Msg("reply for a previous game dropped")
		return false
	}
	pos := s.tree.Position()
	want, err := rules.ParseFEN(search.FEN)
	if err != nil || want.Canonical() != pos.Canonical() {
		log.Debug().Msg("reply for a stale position dropped")
		return false
	}
	if reply.Move == "" {
		log.Debug().Msg("engine has no move")
		s.score = reply.Score
		return true
	}
	m, err := rules.ParseMove(reply.Move)
	if err != nil || !pos.IsLegal(m) {
		log.Warn().Msg("engine returned an illegal move")
		return false
	}
	s.push(m)
	s.score = reply.Score
	s.bookLabel = ""
	return true
}

// EngineFailed implements engine.Sink.
func (s *Session) EngineFailed(err error) {
	s.mu.Lock()
	s.setFaultLocked(err)
	s.mu.Unlock()
	s.opts.Repaint()
}

func (s *Session) setFaultLocked(err error) error {
	if !errors.Is(err, engine.ErrEngineOffline) {
		err = fmt.Errorf("%w: %w", engine.ErrEngineOffline, err)
	}
	if s.fault == nil {
		s.fault = err
		s.log.Error().Err(err).Msg("engine offline")
	}
	return s.fault
}

// Fault returns the persistent engine failure, if any.
func (s *Session) Fault() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fault
}

// Position returns the position at the cursor.
func (s *Session) Position() rules.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Position()
}

// PositionAt returns the position after the move at addr.
func (s *Session) PositionAt(addr variation.MoveAddress) (rules.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.PositionAt(addr)
}

// MovesToCursor returns the line from the start to the cursor.
func (s *Session) MovesToCursor() ([]rules.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	moves, err := s.tree.MovesToCursor()
	if err != nil {
		s.log.Error().Err(err).Msg("history is corrupt")
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return moves, nil
}

// BranchingFrom lists the variations starting at addr.
func (s *Session) BranchingFrom(addr variation.MoveAddress) []variation.Variation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.BranchingFrom(addr)
}

// IsCurrent reports whether addr is the cursor.
func (s *Session) IsCurrent(addr variation.MoveAddress) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.IsCurrent(addr)
}

// IsCurrentVariation reports whether the cursor lies in variation id.
func (s *Session) IsCurrentVariation(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.IsCurrentVariation(id)
}

// Score returns the last engine evaluation.
func (s *Session) Score() engine.Score {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.score
}

// Opening returns the classification of the deepest named position on the
// line up to the cursor.
func (s *Session) Opening() (opening.Opening, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opening, s.hasOpening
}

// BookLabel returns the name of the line the last book move came from.
func (s *Session) BookLabel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookLabel
}
