package engine

import "fmt"

// ScoreKind tells which field of a Score is meaningful.
type ScoreKind int

const (
	ScoreNone ScoreKind = iota
	ScoreCentipawns
	ScoreMate
)

// Score is an engine evaluation from the side to move's point of view.
type Score struct {
	Kind ScoreKind
	CP   int      // centipawns, for ScoreCentipawns
	Mate int      // moves to mate, negative when being mated
	PV   []string // principal variation in coordinate notation
}

// Centipawns builds a centipawn score.
func Centipawns(cp int, pv ...string) Score {
	return Score{Kind: ScoreCentipawns, CP: cp, PV: pv}
}

// MateIn builds a forced-mate score.
func MateIn(n int, pv ...string) Score {
	return Score{Kind: ScoreMate, Mate: n, PV: pv}
}

// IsNone reports whether there is no evaluation.
func (s Score) IsNone() bool {
	return s.Kind == ScoreNone
}

// String formats the score as "+1.23", "-0.45", "+M3" or "-M5". It is
// empty when there is no score.
func (s Score) String() string {
	switch s.Kind {
	case ScoreCentipawns:
		sign := "+"
		cp := s.CP
		if cp < 0 {
			sign = "-"
			cp = -cp
		}
		return fmt.Sprintf("%s%d.%02d", sign, cp/100, cp%100)
	case ScoreMate:
		if s.Mate < 0 {
			return fmt.Sprintf("-M%d", -s.Mate)
		}
		return fmt.Sprintf("+M%d", s.Mate)
	}
	return ""
}
