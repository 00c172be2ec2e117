package rules

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/notnil/chess"
)

func TestParseMove(t *testing.T) {
	m, err := ParseMove("e2e4")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if m.From != chess.E2 || m.To != chess.E4 || m.Promo != chess.NoPieceType {
		t.Fatalf("unexpected move %+v", m)
	}
	if m.String() != "e2e4" {
		t.Fatalf("expected e2e4, got %s", m)
	}

	p, err := ParseMove("A7A8Q")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if p.Promo != chess.Queen || p.String() != "a7a8q" {
		t.Fatalf("unexpected promotion %+v", p)
	}

	for _, bad := range []string{"", "e2", "e2e9", "i2e4", "e7e8k", "e2e4e5"} {
		if _, err := ParseMove(bad); !errors.Is(err, ErrBadNotation) {
			t.Fatalf("ParseMove(%q): expected ErrBadNotation, got %v", bad, err)
		}
	}
}

func TestPlayAndSAN(t *testing.T) {
	start := Start()
	e4 := MustParseMove("e2e4")
	san, err := start.SAN(e4)
	if err != nil || san != "e4" {
		t.Fatalf("expected SAN e4, got %q (%v)", san, err)
	}

	next, err := start.Play(e4)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if next.Turn() != chess.Black {
		t.Fatal("expected black to move after e4")
	}
	if start.Turn() != chess.White {
		t.Fatal("Play mutated the original position")
	}

	if _, err := next.Play(MustParseMove("e2e4")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}

	m, err := next.ParseSAN("Nf6")
	if err != nil {
		t.Fatalf("ParseSAN: %v", err)
	}
	if diff := cmp.Diff(MustParseMove("g8f6"), m); diff != "" {
		t.Fatalf("ParseSAN mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAny(t *testing.T) {
	start := Start()
	for _, in := range []string{"g1f3", "Nf3"} {
		m, err := start.ParseAny(in)
		if err != nil {
			t.Fatalf("ParseAny(%q): %v", in, err)
		}
		if m != MustParseMove("g1f3") {
			t.Fatalf("ParseAny(%q) = %s", in, m)
		}
	}
	if _, err := start.ParseAny("Ke2"); err == nil {
		t.Fatal("expected an error for an illegal SAN move")
	}
}

func TestCanonicalIgnoresCounters(t *testing.T) {
	a, err := ParseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 7 23")
	if err != nil {
		t.Fatal(err)
	}
	if a.Canonical() != b.Canonical() {
		t.Fatalf("expected equal keys, got %q and %q", a.Canonical(), b.Canonical())
	}
}

func TestCanonicalDropsDeadEnPassant(t *testing.T) {
	// After 1.e4 no black pawn can capture on e3.
	pos := Start().Replay([]Move{MustParseMove("e2e4")})
	if got, want := pos.Canonical(), "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	// 1.e4 a6 2.e5 d5: exd6 is legal, so d6 stays in the key.
	live := Start().Replay([]Move{
		MustParseMove("e2e4"), MustParseMove("a7a6"),
		MustParseMove("e4e5"), MustParseMove("d7d5"),
	})
	if got, want := live.Canonical(), "rnbqkbnr/1pp1pppp/p7/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestReplaySkipsIllegal(t *testing.T) {
	pos := Start().Replay([]Move{
		MustParseMove("e2e4"),
		MustParseMove("e2e4"),
		MustParseMove("e7e5"),
	})
	want := Start().Replay([]Move{MustParseMove("e2e4"), MustParseMove("e7e5")})
	if pos.FEN() != want.FEN() {
		t.Fatalf("expected %s, got %s", want.FEN(), pos.FEN())
	}
}

func TestSANLineAndOutcome(t *testing.T) {
	moves := []Move{
		MustParseMove("f2f3"), MustParseMove("e7e5"),
		MustParseMove("g2g4"), MustParseMove("d8h4"),
	}
	if diff := cmp.Diff([]string{"f3", "e5", "g4", "Qh4#"}, Start().SANLine(moves)); diff != "" {
		t.Fatalf("SANLine mismatch (-want +got):\n%s", diff)
	}
	if got := Start().Replay(moves).Outcome(); got != "0-1 (black mates)" {
		t.Fatalf("unexpected outcome %q", got)
	}
	if Start().Outcome() != "" {
		t.Fatal("start position should not be finished")
	}
}

func TestBadFEN(t *testing.T) {
	if _, err := ParseFEN("not a fen"); !errors.Is(err, ErrBadFEN) {
		t.Fatalf("expected ErrBadFEN, got %v", err)
	}
}
