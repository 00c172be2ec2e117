// Package variation stores a game's move history as a tree of variations.
//
// Variations live in a flat list indexed by id. A branch records the
// address it diverges from instead of holding a pointer to its parent, so
// the tree has no reference cycles and can be shared behind a single lock.
package variation

import (
	"errors"
	"fmt"

	"chess-diagram/rules"
)

// ErrBrokenChain reports a parent link that does not lead back to the
// root variation. It means the tree is corrupt, not that the caller erred.
var ErrBrokenChain = errors.New("variation: broken parent chain")

// MoveAddress identifies one move inside one variation.
type MoveAddress struct {
	Variation int
	Ply       int
}

// Compare orders addresses by variation id, then by ply.
// It returns -1, 0 or +1.
func (a MoveAddress) Compare(b MoveAddress) int {
	switch {
	case a.Variation < b.Variation:
		return -1
	case a.Variation > b.Variation:
		return 1
	case a.Ply < b.Ply:
		return -1
	case a.Ply > b.Ply:
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func (a MoveAddress) Less(b MoveAddress) bool {
	return a.Compare(b) < 0
}

// Next returns the address of the following ply in the same variation.
func (a MoveAddress) Next() MoveAddress {
	return MoveAddress{Variation: a.Variation, Ply: a.Ply + 1}
}

func (a MoveAddress) String() string {
	return fmt.Sprintf("%d:%d", a.Variation, a.Ply)
}

// Variation is one contiguous run of moves sharing a single branch point.
type Variation struct {
	ID     int
	Parent *MoveAddress // nil for the root variation
	Base   rules.Position
	Moves  []rules.Move
}

// Address returns the address of the variation's first move.
func (v Variation) Address() MoveAddress {
	return MoveAddress{Variation: v.ID}
}

// Tree is the whole move history plus the cursor. It is not safe for
// concurrent use; the owner guards it.
type Tree struct {
	start      rules.Position
	variations []Variation
	cursor     *MoveAddress
}

// NewTree returns an empty tree rooted at the standard starting position.
func NewTree() *Tree {
	return NewTreeFrom(rules.Start())
}

// NewTreeFrom returns an empty tree rooted at start.
func NewTreeFrom(start rules.Position) *Tree {
	return &Tree{start: start}
}

// Start returns the position before the root variation's first move.
func (t *Tree) Start() rules.Position {
	return t.start
}

// Len returns the number of variations.
func (t *Tree) Len() int {
	return len(t.variations)
}

// Empty reports whether no move was ever pushed.
func (t *Tree) Empty() bool {
	return len(t.variations) == 0
}

// Cursor returns the current address, false when the tree is empty.
func (t *Tree) Cursor() (MoveAddress, bool) {
	if t.cursor == nil {
		return MoveAddress{}, false
	}
	return *t.cursor, true
}

// Root returns variation 0.
func (t *Tree) Root() (Variation, bool) {
	return t.Variation(0)
}

// Variation returns the variation with the given id.
func (t *Tree) Variation(id int) (Variation, bool) {
	if id < 0 || id >= len(t.variations) {
		return Variation{}, false
	}
	return t.variations[id], true
}

// Contains reports whether addr names a recorded move.
func (t *Tree) Contains(addr MoveAddress) bool {
	if addr.Variation < 0 || addr.Variation >= len(t.variations) {
		return false
	}
	return addr.Ply >= 0 && addr.Ply < len(t.variations[addr.Variation].Moves)
}

// MoveAt returns the move recorded at addr.
func (t *Tree) MoveAt(addr MoveAddress) (rules.Move, bool) {
	if !t.Contains(addr) {
		return rules.Move{}, false
	}
	return t.variations[addr.Variation].Moves[addr.Ply], true
}

// Push plays move at the cursor and moves the cursor onto it.
//
// At the tip of a variation the move extends it. If the variation already
// continues with the same move the cursor just follows it. Any other move
// opens a new variation branching from the cursor. Legality is not checked.
func (t *Tree) Push(move rules.Move) MoveAddress {
	if t.cursor == nil {
		t.variations = []Variation{{
			ID:    0,
			Base:  t.start,
			Moves: []rules.Move{move},
		}}
		return t.setCursor(MoveAddress{})
	}

	cur := *t.cursor
	v := &t.variations[cur.Variation]
	switch {
	case cur.Ply+1 == len(v.Moves):
		v.Moves = append(v.Moves, move)
		return t.setCursor(cur.Next())
	case v.Moves[cur.Ply+1] == move:
		return t.setCursor(cur.Next())
	}

	base, _ := t.PositionAt(cur)
	parent := cur
	id := len(t.variations)
	t.variations = append(t.variations, Variation{
		ID:     id,
		Parent: &parent,
		Base:   base,
		Moves:  []rules.Move{move},
	})
	return t.setCursor(MoveAddress{Variation: id})
}

func (t *Tree) setCursor(addr MoveAddress) MoveAddress {
	t.cursor = &addr
	return addr
}

// SetCursor moves the cursor to addr. Unknown addresses are ignored.
func (t *Tree) SetCursor(addr MoveAddress) {
	if !t.Contains(addr) {
		return
	}
	t.setCursor(addr)
}

// Back moves the cursor one ply towards the root, crossing into the
// parent variation at a branch point. It returns false at the first move.
func (t *Tree) Back() bool {
	if t.cursor == nil {
		return false
	}
	cur := *t.cursor
	if cur.Ply > 0 {
		t.setCursor(MoveAddress{Variation: cur.Variation, Ply: cur.Ply - 1})
		return true
	}
	parent := t.variations[cur.Variation].Parent
	if parent == nil {
		return false
	}
	t.setCursor(*parent)
	return true
}

// Forward advances the cursor along its variation. It returns false at the
// tip.
func (t *Tree) Forward() bool {
	if t.cursor == nil {
		return false
	}
	next := t.cursor.Next()
	if !t.Contains(next) {
		return false
	}
	t.setCursor(next)
	return true
}

// PositionAt replays the addressed variation from its base position
// through the move at addr. Moves that cannot be played are skipped.
func (t *Tree) PositionAt(addr MoveAddress) (rules.Position, bool) {
	if !t.Contains(addr) {
		return rules.Position{}, false
	}
	v := t.variations[addr.Variation]
	return v.Base.Replay(v.Moves[:addr.Ply+1]), true
}

// Position returns the position at the cursor, or the start position for
// an empty tree.
func (t *Tree) Position() rules.Position {
	if t.cursor == nil {
		return t.start
	}
	pos, _ := t.PositionAt(*t.cursor)
	return pos
}

// MovesToCursor returns every move from the start of the game up to and
// including the cursor, in playing order.
func (t *Tree) MovesToCursor() ([]rules.Move, error) {
	if t.cursor == nil {
		return nil, nil
	}

	var segments [][]rules.Move
	total := 0
	addr := *t.cursor
	for hops := 0; ; hops++ {
		if hops > len(t.variations) {
			return nil, fmt.Errorf("%w: more than %d hops from %s", ErrBrokenChain, len(t.variations), t.cursor)
		}
		if !t.Contains(addr) {
			return nil, fmt.Errorf("%w: dangling address %s", ErrBrokenChain, addr)
		}
		v := t.variations[addr.Variation]
		segments = append(segments, v.Moves[:addr.Ply+1])
		total += addr.Ply + 1
		if v.Parent == nil {
			if v.ID != 0 {
				return nil, fmt.Errorf("%w: variation %d has no parent", ErrBrokenChain, v.ID)
			}
			break
		}
		if v.Parent.Variation >= v.ID {
			return nil, fmt.Errorf("%w: variation %d points forward to %s", ErrBrokenChain, v.ID, v.Parent)
		}
		addr = *v.Parent
	}

	moves := make([]rules.Move, 0, total)
	for i := len(segments) - 1; i >= 0; i-- {
		moves = append(moves, segments[i]...)
	}
	return moves, nil
}

// BranchingFrom returns the variations whose parent is addr, oldest first.
func (t *Tree) BranchingFrom(addr MoveAddress) []Variation {
	var out []Variation
	for _, v := range t.variations {
		if v.Parent != nil && *v.Parent == addr {
			out = append(out, v)
		}
	}
	return out
}

// IsCurrent reports whether addr is the cursor.
func (t *Tree) IsCurrent(addr MoveAddress) bool {
	return t.cursor != nil && *t.cursor == addr
}

// IsCurrentVariation reports whether the cursor lies in variation id.
func (t *Tree) IsCurrentVariation(id int) bool {
	return t.cursor != nil && t.cursor.Variation == id
}

// Clone returns a deep copy of t, used for rendering outside the lock.
func (t *Tree) Clone() *Tree {
	c := &Tree{start: t.start, variations: make([]Variation, len(t.variations))}
	for i, v := range t.variations {
		v.Moves = append([]rules.Move(nil), v.Moves...)
		if v.Parent != nil {
			p := *v.Parent
			v.Parent = &p
		}
		c.variations[i] = v
	}
	if t.cursor != nil {
		cur := *t.cursor
		c.cursor = &cur
	}
	return c
}
