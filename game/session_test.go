package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"chess-diagram/engine"
	"chess-diagram/opening"
	"chess-diagram/rules"
	"chess-diagram/variation"
)

// recordingProxy captures what the session submits.
type recordingProxy struct {
	mu       sync.Mutex
	newGames int
	stops    int
	searches []engine.Search
	err      error
}

func (p *recordingProxy) NewGame() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newGames++
	return p.err
}

func (p *recordingProxy) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return p.err
}

func (p *recordingProxy) RequestMove(s engine.Search) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.searches = append(p.searches, s)
	return nil
}

func (p *recordingProxy) Searches() []engine.Search {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.Search(nil), p.searches...)
}

func mv(s string) rules.Move {
	return rules.MustParseMove(s)
}

func fenAfter(moves ...string) string {
	pos := rules.Start()
	for _, s := range moves {
		pos, _ = pos.Play(mv(s))
	}
	return pos.FEN()
}

func newTestSession(t *testing.T, lines []opening.Line) (*Session, *recordingProxy, *int) {
	t.Helper()
	book := opening.Build(lines, opening.Filter{}, zerolog.Nop(), opening.WithPicker(opening.FirstPicker))
	repaints := 0
	s := NewSession(book, Options{
		EngineColor: chess.Black,
		WhiteTime:   time.Minute,
		BlackTime:   time.Minute,
		Repaint:     func() { repaints++ },
	}, zerolog.Nop())
	p := &recordingProxy{}
	s.AttachEngine(p)
	return s, p, &repaints
}

func lineOf(t *testing.T, s *Session) []string {
	t.Helper()
	moves, err := s.MovesToCursor()
	if err != nil {
		t.Fatalf("MovesToCursor: %v", err)
	}
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

func TestBookMoveAnswersFirst(t *testing.T) {
	lines := []opening.Line{{Code: "C20", Name: "King's Pawn Game", Moves: []string{"e4", "e5", "Nf3"}}}
	s, p, _ := newTestSession(t, lines)
	if err := s.SetMode(ModePlay); err != nil {
		t.Fatal(err)
	}
	before := len(p.Searches())

	if err := s.PushUCI("e2e4"); err != nil {
		t.Fatalf("PushUCI: %v", err)
	}
	if diff := cmp.Diff([]string{"e2e4", "e7e5"}, lineOf(t, s)); diff != "" {
		t.Fatalf("line mismatch (-want +got):\n%s", diff)
	}
	if s.BookLabel() != "King's Pawn Game" {
		t.Fatalf("unexpected book label %q", s.BookLabel())
	}
	if len(p.Searches()) != before {
		t.Fatal("the engine was asked although the book had a move")
	}
}

func TestSetupModeIgnoresBook(t *testing.T) {
	lines := []opening.Line{{Code: "B20", Name: "Sicilian Defense", Moves: []string{"e4", "c5"}}}
	s, p, _ := newTestSession(t, lines)

	if err := s.PushUCI("e2e4"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"e2e4"}, lineOf(t, s)); diff != "" {
		t.Fatalf("line mismatch (-want +got):\n%s", diff)
	}
	if err := s.PushUCI("e7e5"); err != nil {
		t.Fatalf("the reply for black must stay with the user: %v", err)
	}
	if diff := cmp.Diff([]string{"e2e4", "e7e5"}, lineOf(t, s)); diff != "" {
		t.Fatalf("line mismatch (-want +got):\n%s", diff)
	}
	if s.BookLabel() != "" || len(p.Searches()) != 0 {
		t.Fatal("setup mode answered a move")
	}
}

func TestOpeningFollowsCursor(t *testing.T) {
	lines := []opening.Line{
		{Code: "B20", Name: "Sicilian Defense", Moves: []string{"e4", "c5"}},
		{Code: "C00", Name: "French Defense", Moves: []string{"e4", "e6"}},
	}
	s, _, _ := newTestSession(t, lines)
	for _, m := range []string{"e2e4", "c7c5"} {
		if err := s.PushUCI(m); err != nil {
			t.Fatal(err)
		}
	}
	name := func() string {
		o, ok := s.Opening()
		if !ok {
			return ""
		}
		return o.Name
	}
	if name() != "Sicilian Defense" || !s.Snapshot().InBook {
		t.Fatalf("unexpected opening %q", name())
	}

	s.SetCursor(variation.MoveAddress{Variation: 0, Ply: 0})
	if err := s.PushUCI("e7e6"); err != nil {
		t.Fatal(err)
	}
	if name() != "French Defense" {
		t.Fatalf("branch should be classified as the French, got %q", name())
	}

	s.Back()
	if _, ok := s.Opening(); ok {
		t.Fatalf("1.e4 alone names no opening, got %q", name())
	}
	if s.Snapshot().InBook {
		t.Fatal("no opening, so not in book")
	}

	s.SetCursor(variation.MoveAddress{Variation: 0, Ply: 1})
	if name() != "Sicilian Defense" {
		t.Fatalf("main line should be the Sicilian again, got %q", name())
	}
	if err := s.PushUCI("g1f3"); err != nil {
		t.Fatal(err)
	}
	if name() != "Sicilian Defense" || s.Snapshot().InBook {
		t.Fatalf("after leaving the book the opening stays named but not in book: %q", name())
	}

	if err := s.NewGame(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Opening(); ok {
		t.Fatal("new game kept the opening")
	}
}

func TestSetupModeKeepsEngineIdle(t *testing.T) {
	s, p, _ := newTestSession(t, nil)
	for _, m := range []string{"e2e4", "e7e5", "g1f3"} {
		if err := s.PushUCI(m); err != nil {
			t.Fatalf("PushUCI(%s): %v", m, err)
		}
	}
	if len(p.Searches()) != 0 {
		t.Fatalf("setup mode submitted %d searches", len(p.Searches()))
	}
	if s.Mode() != ModeSetup {
		t.Fatal("a new session should start in setup mode")
	}
}

func TestPlayModeAsksEngine(t *testing.T) {
	s, p, repaints := newTestSession(t, nil)
	if err := s.PushUCI("e2e4"); err != nil {
		t.Fatal(err)
	}

	// Entering play asks for a move in the current position.
	if err := s.SetMode(ModePlay); err != nil {
		t.Fatal(err)
	}
	searches := p.Searches()
	if len(searches) != 1 || searches[0].FEN != fenAfter("e2e4") {
		t.Fatalf("unexpected searches %+v", searches)
	}
	if searches[0].White != time.Minute || searches[0].Black != time.Minute {
		t.Fatalf("time budgets not passed: %+v", searches[0])
	}

	s.ApplyReply(searches[0], engine.Reply{Move: "c7c5", Score: engine.Centipawns(-20)})
	if *repaints != 1 {
		t.Fatalf("expected one repaint, got %d", *repaints)
	}
	if diff := cmp.Diff([]string{"e2e4", "c7c5"}, lineOf(t, s)); diff != "" {
		t.Fatalf("line mismatch (-want +got):\n%s", diff)
	}
	if s.Score().String() != "-0.20" {
		t.Fatalf("unexpected score %q", s.Score())
	}

	// A human move clears the score and asks again.
	if err := s.PushUCI("g1f3"); err != nil {
		t.Fatal(err)
	}
	if !s.Score().IsNone() {
		t.Fatal("a human move should clear the score")
	}
	searches = p.Searches()
	if len(searches) != 2 || searches[1].FEN != fenAfter("e2e4", "c7c5", "g1f3") {
		t.Fatalf("unexpected searches %+v", searches)
	}

	// Leaving play is inert.
	if err := s.SetMode(ModeSetup); err != nil {
		t.Fatal(err)
	}
	if len(p.Searches()) != 2 {
		t.Fatal("leaving play mode submitted a search")
	}
}

func TestIllegalMoveRejected(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	if err := s.PushUCI("e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if err := s.PushText("Ke2"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if len(lineOf(t, s)) != 0 {
		t.Fatal("a rejected move reached the history")
	}
	if err := s.PushText("Nf3"); err != nil {
		t.Fatalf("PushText(Nf3): %v", err)
	}
}

func TestNewGameResets(t *testing.T) {
	s, p, repaints := newTestSession(t, nil)
	if err := s.SetMode(ModePlay); err != nil {
		t.Fatal(err)
	}
	if err := s.PushUCI("d2d4"); err != nil {
		t.Fatal(err)
	}
	stale := p.Searches()[len(p.Searches())-1]

	if err := s.NewGame(); err != nil {
		t.Fatal(err)
	}
	if p.newGames != 1 {
		t.Fatalf("expected one new_game command, got %d", p.newGames)
	}
	if len(lineOf(t, s)) != 0 {
		t.Fatal("new game kept the history")
	}

	// A reply to a search from the previous game is ignored.
	s.ApplyReply(stale, engine.Reply{Move: "d7d5"})
	if *repaints != 0 || len(lineOf(t, s)) != 0 {
		t.Fatal("a reply from the previous game was applied")
	}
}

func TestNewGameEngineWhite(t *testing.T) {
	s, p, _ := newTestSession(t, nil)
	s.SetEngineColor(chess.White)
	if err := s.SetMode(ModePlay); err != nil {
		t.Fatal(err)
	}
	if err := s.NewGame(); err != nil {
		t.Fatal(err)
	}
	searches := p.Searches()
	if len(searches) != 2 || searches[1].FEN != rules.Start().FEN() || searches[1].Generation != 1 {
		t.Fatalf("expected a fresh search from the start, got %+v", searches)
	}
}

func TestStaleReplyDropped(t *testing.T) {
	s, p, repaints := newTestSession(t, nil)
	if err := s.PushUCI("e2e4"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMode(ModePlay); err != nil {
		t.Fatal(err)
	}
	search := p.Searches()[0]

	// The user jumps back before the engine answers.
	if err := s.SetMode(ModeSetup); err != nil {
		t.Fatal(err)
	}
	if err := s.PushUCI("e7e5"); err != nil {
		t.Fatal(err)
	}

	s.ApplyReply(search, engine.Reply{Move: "c7c5"})
	if *repaints != 0 {
		t.Fatal("a stale reply triggered a repaint")
	}
	if diff := cmp.Diff([]string{"e2e4", "e7e5"}, lineOf(t, s)); diff != "" {
		t.Fatalf("line mismatch (-want +got):\n%s", diff)
	}
}

func TestIllegalEngineMoveDropped(t *testing.T) {
	s, p, repaints := newTestSession(t, nil)
	if err := s.SetMode(ModePlay); err != nil {
		t.Fatal(err)
	}
	s.ApplyReply(p.Searches()[0], engine.Reply{Move: "e2e5"})
	if *repaints != 0 || len(lineOf(t, s)) != 0 {
		t.Fatal("an illegal engine move was applied")
	}
}

func TestEngineFailureIsPersistent(t *testing.T) {
	s, p, repaints := newTestSession(t, nil)
	s.EngineFailed(errors.New("broken pipe"))

	if !errors.Is(s.Fault(), engine.ErrEngineOffline) {
		t.Fatalf("expected an offline fault, got %v", s.Fault())
	}
	if *repaints != 1 {
		t.Fatalf("expected a repaint for the fault, got %d", *repaints)
	}

	if err := s.SetMode(ModePlay); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := s.PushUCI("e2e4"); err != nil {
		t.Fatalf("moves must still be accepted offline: %v", err)
	}
	if len(p.Searches()) != 0 {
		t.Fatal("an offline engine was asked for a move")
	}
	if s.Fault() == nil {
		t.Fatal("the fault must persist")
	}
}

func TestSubmitFailureSetsFault(t *testing.T) {
	s, p, _ := newTestSession(t, nil)
	p.err = engine.ErrEngineOffline
	if err := s.SetMode(ModePlay); !errors.Is(err, engine.ErrEngineOffline) {
		t.Fatalf("expected ErrEngineOffline, got %v", err)
	}
	if !errors.Is(s.Fault(), engine.ErrEngineOffline) {
		t.Fatal("submit failure should set the fault")
	}
}

func TestNavigation(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	for _, m := range []string{"e2e4", "e7e5"} {
		if err := s.PushUCI(m); err != nil {
			t.Fatal(err)
		}
	}
	s.SetCursor(variation.MoveAddress{Variation: 0, Ply: 0})
	if err := s.PushUCI("c7c5"); err != nil {
		t.Fatal(err)
	}
	if !s.IsCurrent(variation.MoveAddress{Variation: 1, Ply: 0}) || !s.IsCurrentVariation(1) {
		t.Fatal("cursor should be on the new branch")
	}
	if got := s.BranchingFrom(variation.MoveAddress{Variation: 0, Ply: 0}); len(got) != 1 {
		t.Fatalf("expected one branch, got %d", len(got))
	}
	if !s.Back() || !s.IsCurrent(variation.MoveAddress{Variation: 0, Ply: 0}) {
		t.Fatal("Back should return to the branch point")
	}
	if !s.Forward() || !s.IsCurrent(variation.MoveAddress{Variation: 0, Ply: 1}) {
		t.Fatal("Forward should follow the main line")
	}
	pos, ok := s.PositionAt(variation.MoveAddress{Variation: 1, Ply: 0})
	if !ok || pos.FEN() != fenAfter("e2e4", "c7c5") {
		t.Fatalf("unexpected branch position %s", pos.FEN())
	}
}

func TestSnapshot(t *testing.T) {
	lines := []opening.Line{{Code: "B20", Name: "Sicilian Defense", Moves: []string{"e4", "c5"}}}
	s, _, _ := newTestSession(t, lines)
	if err := s.SetMode(ModePlay); err != nil {
		t.Fatal(err)
	}
	if err := s.PushUCI("e2e4"); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if !snap.InBook || snap.Opening.Name != "Sicilian Defense" || snap.Opening.Code != "B20" {
		t.Fatalf("unexpected opening %+v (in book %v)", snap.Opening, snap.InBook)
	}
	if !snap.HasLastMove || snap.LastMove != mv("c7c5") {
		t.Fatalf("unexpected last move %s", snap.LastMove)
	}

	s.Back()
	if diff := cmp.Diff([]string{"c5"}, s.Snapshot().BookMoves); diff != "" {
		t.Fatalf("book moves mismatch (-want +got):\n%s", diff)
	}
	s.Forward()

	if err := s.PushUCI("g1f3"); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().InBook {
		t.Fatal("the line left the book")
	}
	if got := s.Snapshot().BookMoves; len(got) != 0 {
		t.Fatalf("unexpected book moves out of book: %v", got)
	}

	// The snapshot does not follow later changes.
	if _, ok := snap.Tree.MoveAt(variation.MoveAddress{Variation: 0, Ply: 2}); ok {
		t.Fatal("snapshot tree shares state with the session")
	}
}

// syncEngine replies instantly with a fixed move.
type syncEngine struct{}

func (syncEngine) NewGame() error { return nil }
func (syncEngine) Stop() error    { return nil }
func (syncEngine) Close() error   { return nil }
func (syncEngine) Search(fen string, white, black time.Duration) (engine.Reply, error) {
	return engine.Reply{Move: "e7e5", Score: engine.Centipawns(15)}, nil
}

func TestRepaintSeesAppliedReply(t *testing.T) {
	var (
		s       *Session
		painted = make(chan string, 4)
	)
	s = NewSession(nil, Options{
		EngineColor: chess.Black,
		Repaint: func() {
			painted <- s.Position().FEN()
		},
	}, zerolog.Nop())
	p := engine.Start(context.Background(), func() (engine.Engine, error) { return syncEngine{}, nil }, s, zerolog.Nop())
	defer p.Close()
	s.AttachEngine(p)

	if err := s.SetMode(ModePlay); err != nil {
		t.Fatal(err)
	}
	if err := s.PushUCI("e2e4"); err != nil {
		t.Fatal(err)
	}

	select {
	case fen := <-painted:
		if want := fenAfter("e2e4", "e7e5"); fen != want {
			t.Fatalf("repaint saw %s, want %s", fen, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no repaint after the engine replied")
	}
}

func TestNewGameInPlay(t *testing.T) {
	s, p, _ := newTestSession(t, nil)
	if err := s.NewGameIn(ModePlay); err != nil {
		t.Fatal(err)
	}
	if s.Mode() != ModePlay {
		t.Fatal("mode not applied")
	}
	if len(p.Searches()) != 0 {
		t.Fatal("the engine moved first although it plays black")
	}

	s.SetEngineColor(chess.White)
	if err := s.NewGameIn(ModePlay); err != nil {
		t.Fatal(err)
	}
	if searches := p.Searches(); len(searches) != 1 || searches[0].Generation != 2 {
		t.Fatalf("expected one search for the second game, got %+v", searches)
	}
}
