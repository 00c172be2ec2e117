package game

import (
	"fmt"

	"github.com/notnil/chess"

	"chess-diagram/engine"
	"chess-diagram/opening"
	"chess-diagram/rules"
	"chess-diagram/variation"
)

// Snapshot is a consistent copy of the session for rendering. It shares
// nothing mutable with the session.
type Snapshot struct {
	Tree        *variation.Tree
	Position    rules.Position
	Line        []rules.Move
	LastMove    rules.Move
	HasLastMove bool
	Mode        Mode
	EngineColor chess.Color
	Score       engine.Score
	Opening     opening.Opening
	InBook      bool // the cursor sits on the classified position
	BookLabel   string
	BookMoves   []string // book continuations from Position, in SAN
	Fault       error
	Err         error // ErrInternal when the history is corrupt
}

// Snapshot copies everything the UI draws under a single read lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Tree:        s.tree.Clone(),
		Position:    s.tree.Position(),
		Mode:        s.mode,
		EngineColor: s.opts.EngineColor,
		Score:       s.score,
		Opening:     s.opening,
		BookLabel:   s.bookLabel,
		Fault:       s.fault,
	}
	line, err := s.tree.MovesToCursor()
	if err != nil {
		snap.Err = fmt.Errorf("%w: %w", ErrInternal, err)
		return snap
	}
	snap.Line = line
	if len(line) > 0 {
		snap.LastMove, snap.HasLastMove = line[len(line)-1], true
	}
	snap.InBook = s.hasOpening && s.openingPly == len(line)
	for _, m := range s.book.Candidates(snap.Position) {
		if san, err := snap.Position.SAN(m); err == nil {
			snap.BookMoves = append(snap.BookMoves, san)
		}
	}
	return snap
}
