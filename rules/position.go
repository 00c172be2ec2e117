package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// Position is an immutable board position. The zero value is not usable;
// get one from Start, ParseFEN or Play.
type Position struct {
	pos   *chess.Position
	legal []*chess.Move
}

func wrap(p *chess.Position) Position {
	// Fill the legal move list now: notnil caches it lazily on first use,
	// and positions are read concurrently under a shared lock.
	return Position{pos: p, legal: p.ValidMoves()}
}

// Start returns the standard starting position.
func Start() Position {
	return wrap(chess.StartingPosition())
}

// ParseFEN decodes a position in Forsyth-Edwards notation.
func ParseFEN(fen string) (Position, error) {
	opt, err := chess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	return wrap(chess.NewGame(opt).Position()), nil
}

// IsZero reports whether p was never initialised.
func (p Position) IsZero() bool {
	return p.pos == nil
}

// FEN returns the full FEN string, counters included.
func (p Position) FEN() string {
	return p.pos.String()
}

// Canonical returns the lookup key for p: placement, side to move,
// castling rights and the en-passant square, the latter only when an
// en-passant capture is actually legal. Move counters are dropped.
func (p Position) Canonical() string {
	fields := strings.Fields(p.pos.String())
	if len(fields) < 4 {
		return p.pos.String()
	}
	ep := "-"
	for _, m := range p.legal {
		if m.HasTag(chess.EnPassant) {
			ep = fields[3]
			break
		}
	}
	return strings.Join([]string{fields[0], fields[1], fields[2], ep}, " ")
}

// Turn returns the side to move.
func (p Position) Turn() chess.Color {
	return p.pos.Turn()
}

// FullMoves returns the full-move number from the FEN counters.
func (p Position) FullMoves() int {
	fields := strings.Fields(p.pos.String())
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// PieceAt returns the piece on sq, chess.NoPiece if empty.
func (p Position) PieceAt(sq chess.Square) chess.Piece {
	return p.pos.Board().Piece(sq)
}

// Status returns the game status method (checkmate, stalemate, ...).
func (p Position) Status() chess.Method {
	return p.pos.Status()
}

// Outcome describes a finished game, or "" while play can continue.
func (p Position) Outcome() string {
	switch p.Status() {
	case chess.Checkmate:
		if p.Turn() == chess.White {
			return "0-1 (black mates)"
		}
		return "1-0 (white mates)"
	case chess.Stalemate:
		return "1/2-1/2 (stalemate)"
	case chess.InsufficientMaterial:
		return "1/2-1/2 (insufficient material)"
	}
	return ""
}

// LegalMoves enumerates the legal moves from p.
func (p Position) LegalMoves() []Move {
	out := make([]Move, 0, len(p.legal))
	for _, m := range p.legal {
		out = append(out, fromChess(m))
	}
	return out
}

// IsLegal reports whether m can be played from p.
func (p Position) IsLegal(m Move) bool {
	return p.resolve(m) != nil
}

func (p Position) resolve(m Move) *chess.Move {
	for _, c := range p.legal {
		if c.S1() == m.From && c.S2() == m.To && c.Promo() == m.Promo {
			return c
		}
	}
	return nil
}

// Play returns the position after m. p itself is unchanged.
func (p Position) Play(m Move) (Position, error) {
	c := p.resolve(m)
	if c == nil {
		return Position{}, fmt.Errorf("%w: %s in %s", ErrIllegalMove, m, p.FEN())
	}
	return wrap(p.pos.Update(c)), nil
}

// SAN renders m in standard algebraic notation as played from p.
func (p Position) SAN(m Move) (string, error) {
	c := p.resolve(m)
	if c == nil {
		return "", fmt.Errorf("%w: %s in %s", ErrIllegalMove, m, p.FEN())
	}
	return chess.AlgebraicNotation{}.Encode(p.pos, c), nil
}

// ParseSAN decodes a move given in standard algebraic notation.
func (p Position) ParseSAN(san string) (Move, error) {
	san = strings.TrimRight(strings.TrimSpace(san), "!?")
	c, err := chess.AlgebraicNotation{}.Decode(p.pos, san)
	if err != nil {
		return Move{}, fmt.Errorf("%w: %q: %v", ErrBadNotation, san, err)
	}
	return fromChess(c), nil
}

// ParseAny accepts either coordinate notation or SAN.
func (p Position) ParseAny(s string) (Move, error) {
	if m, err := ParseMove(s); err == nil && p.IsLegal(m) {
		return m, nil
	}
	m, err := p.ParseSAN(s)
	if err != nil {
		return Move{}, err
	}
	return m, nil
}

// SANLine renders a sequence of coordinate moves played from p. It stops
// at the first move that cannot be played.
func (p Position) SANLine(moves []Move) []string {
	out := make([]string, 0, len(moves))
	cur := p
	for _, m := range moves {
		san, err := cur.SAN(m)
		if err != nil {
			break
		}
		out = append(out, san)
		cur, _ = cur.Play(m)
	}
	return out
}

// Replay plays moves from p, skipping any that are not legal where they
// fall.
func (p Position) Replay(moves []Move) Position {
	cur := p
	for _, m := range moves {
		if next, err := cur.Play(m); err == nil {
			cur = next
		}
	}
	return cur
}
