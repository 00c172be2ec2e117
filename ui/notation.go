package ui

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"chess-diagram/engine"
	"chess-diagram/game"
	"chess-diagram/rules"
	"chess-diagram/variation"
)

// Title is the one-line summary drawn above the board: the result once the
// game is over, then a forced mate for or against the engine, then the
// evaluation with its line, and finally the opening name while the cursor
// is on a named position.
func Title(snap game.Snapshot) string {
	if outcome := snap.Position.Outcome(); outcome != "" {
		return outcome
	}
	switch snap.Score.Kind {
	case engine.ScoreMate:
		if snap.Score.Mate < 0 {
			return fmt.Sprintf("Mated in %d", -snap.Score.Mate)
		}
		return fmt.Sprintf("Mate in %d", snap.Score.Mate)
	case engine.ScoreCentipawns:
		line := PVText(searchPosition(snap), snap.Score.PV)
		if line == "" {
			return fmt.Sprintf("[%s]", snap.Score)
		}
		return fmt.Sprintf("[%s]  %s", snap.Score, line)
	}
	if snap.InBook && snap.Opening.Name != "" {
		return snap.Opening.Name
	}
	return ""
}

// searchPosition is the position the engine was asked about: one ply
// before the cursor, since the engine's own move is already played.
func searchPosition(snap game.Snapshot) rules.Position {
	start := rules.Start()
	if snap.Tree != nil {
		start = snap.Tree.Start()
	}
	if len(snap.Line) == 0 {
		return start
	}
	return start.Replay(snap.Line[:len(snap.Line)-1])
}

// PVText renders a principal variation in SAN with move numbers, starting
// with "…" when black moves first. Moves after the first unplayable one
// are dropped.
func PVText(from rules.Position, pv []string) string {
	moves := make([]rules.Move, 0, len(pv))
	for _, s := range pv {
		m, err := rules.ParseMove(s)
		if err != nil {
			break
		}
		moves = append(moves, m)
	}
	sans := from.SANLine(moves)
	if len(sans) == 0 {
		return ""
	}
	if from.Turn() == chess.Black {
		sans = append([]string{"…"}, sans...)
	}

	start := from.FullMoves()
	var pairs []string
	for i := 0; i < len(sans); i += 2 {
		n := start + i/2
		if i+1 < len(sans) {
			pairs = append(pairs, fmt.Sprintf("%d.%s %s", n, sans[i], sans[i+1]))
		} else {
			pairs = append(pairs, fmt.Sprintf("%d.%s", n, sans[i]))
		}
	}
	return strings.Join(pairs, "  ")
}

// MoveText renders the whole tree for a tview.TextView with dynamic colors
// and regions enabled. Every move is a region named by its address; the
// cursor is shown reversed. Side variations follow the move they replace,
// in parentheses.
func MoveText(t *variation.Tree) string {
	if t == nil {
		return ""
	}
	root, ok := t.Root()
	if !ok {
		return ""
	}
	var parts []string
	writeVariation(&parts, t, root)
	return strings.Join(parts, " ")
}

func writeVariation(parts *[]string, t *variation.Tree, v variation.Variation) {
	pos := v.Base
	numbered := true
	for i, m := range v.Moves {
		addr := variation.MoveAddress{Variation: v.ID, Ply: i}
		n := pos.FullMoves()
		switch {
		case pos.Turn() == chess.White:
			*parts = append(*parts, fmt.Sprintf("%d.", n))
		case numbered:
			*parts = append(*parts, fmt.Sprintf("%d...", n))
		}
		numbered = false

		san, err := pos.SAN(m)
		if err != nil {
			san = m.String()
		}
		*parts = append(*parts, moveToken(addr, san, t.IsCurrent(addr)))
		if next, err := pos.Play(m); err == nil {
			pos = next
		}

		if i == 0 {
			continue
		}
		for _, b := range t.BranchingFrom(variation.MoveAddress{Variation: v.ID, Ply: i - 1}) {
			writeBranch(parts, t, b)
			numbered = true
		}
	}
	if len(v.Moves) > 0 {
		for _, b := range t.BranchingFrom(variation.MoveAddress{Variation: v.ID, Ply: len(v.Moves) - 1}) {
			writeBranch(parts, t, b)
		}
	}
}

func writeBranch(parts *[]string, t *variation.Tree, v variation.Variation) {
	var inner []string
	writeVariation(&inner, t, v)
	*parts = append(*parts, "("+strings.Join(inner, " ")+")")
}

func moveToken(addr variation.MoveAddress, san string, current bool) string {
	if current {
		return fmt.Sprintf(`["%s"][::r]%s[::-][""]`, addr, san)
	}
	return fmt.Sprintf(`["%s"]%s[""]`, addr, san)
}

// ParseRegion turns a region id written by MoveText back into an address.
func ParseRegion(id string) (variation.MoveAddress, bool) {
	var addr variation.MoveAddress
	if _, err := fmt.Sscanf(id, "%d:%d", &addr.Variation, &addr.Ply); err != nil {
		return variation.MoveAddress{}, false
	}
	return addr, true
}
