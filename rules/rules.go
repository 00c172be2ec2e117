// Package rules wraps github.com/notnil/chess as the position authority:
// legality, FEN, SAN and coordinate notation.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrBadNotation = errors.New("bad move notation")
	ErrBadFEN      = errors.New("bad FEN")
)

// Move is a move in coordinate form. It is comparable, so two moves are
// equal when they have the same squares and promotion piece.
type Move struct {
	From  chess.Square
	To    chess.Square
	Promo chess.PieceType
}

var promoLetters = map[chess.PieceType]string{
	chess.Queen:  "q",
	chess.Rook:   "r",
	chess.Bishop: "b",
	chess.Knight: "n",
}

// String returns the move in coordinate notation, e.g. "e7e8q".
func (m Move) String() string {
	return m.From.String() + m.To.String() + promoLetters[m.Promo]
}

// IsZero reports whether m is the zero Move.
func (m Move) IsZero() bool {
	return m == Move{}
}

// ParseMove parses coordinate notation ("e2e4", "a7a8q").
func ParseMove(s string) (Move, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrBadNotation, s)
	}
	from, ok := parseSquare(s[0:2])
	if !ok {
		return Move{}, fmt.Errorf("%w: %q", ErrBadNotation, s)
	}
	to, ok := parseSquare(s[2:4])
	if !ok {
		return Move{}, fmt.Errorf("%w: %q", ErrBadNotation, s)
	}
	m := Move{From: from, To: to, Promo: chess.NoPieceType}
	if len(s) == 5 {
		switch s[4] {
		case 'q':
			m.Promo = chess.Queen
		case 'r':
			m.Promo = chess.Rook
		case 'b':
			m.Promo = chess.Bishop
		case 'n':
			m.Promo = chess.Knight
		default:
			return Move{}, fmt.Errorf("%w: %q", ErrBadNotation, s)
		}
	}
	return m, nil
}

// MustParseMove is ParseMove for literals known to be well formed.
func MustParseMove(s string) Move {
	m, err := ParseMove(s)
	if err != nil {
		panic(err)
	}
	return m
}

func parseSquare(s string) (chess.Square, bool) {
	if len(s) != 2 {
		return chess.NoSquare, false
	}
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return chess.NoSquare, false
	}
	return chess.NewSquare(chess.File(f-'a'), chess.Rank(r-'1')), true
}

func fromChess(m *chess.Move) Move {
	return Move{From: m.S1(), To: m.S2(), Promo: m.Promo()}
}
