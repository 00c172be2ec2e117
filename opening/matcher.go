// Package opening indexes a repertoire of opening lines by position and
// suggests book continuations.
package opening

import (
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog"

	"chess-diagram/rules"
)

// Line is one repertoire line as read from a source.
type Line struct {
	Code  string // ECO classification, e.g. "C20"
	Name  string
	Moves []string // SAN or coordinate notation, from the start position
}

// Opening is the classification shown for a position.
type Opening struct {
	Code  string
	Name  string
	Depth int // plies from the start position
}

// Filter narrows the repertoire at build time. A zero Filter keeps every
// line; a non-empty Name wins over Codes.
type Filter struct {
	Name  string   // case-insensitive substring of the line name
	Codes []string // ECO code prefixes
}

// Keep reports whether l passes the filter.
func (f Filter) Keep(l Line) bool {
	if f.Name != "" {
		return strings.Contains(strings.ToLower(l.Name), strings.ToLower(f.Name))
	}
	if len(f.Codes) == 0 {
		return true
	}
	for _, c := range f.Codes {
		if strings.HasPrefix(strings.ToUpper(l.Code), strings.ToUpper(c)) {
			return true
		}
	}
	return false
}

// Picker returns an index in [0, n). n is always at least 1.
type Picker func(n int) int

// RandomPicker chooses uniformly.
func RandomPicker(n int) int {
	return rand.IntN(n)
}

// FirstPicker always chooses the first candidate.
func FirstPicker(int) int {
	return 0
}

type candidate struct {
	continuation []rules.Move
	label        string
}

// Stats summarises a build.
type Stats struct {
	Lines     int // lines offered
	Kept      int // lines passing the filter
	Truncated int // lines cut short at an unplayable move
	Positions int // distinct indexed positions
}

// Matcher maps canonical positions to book continuations. It is immutable
// once built and safe for concurrent use.
type Matcher struct {
	index    map[string][]candidate
	classify map[string]Opening
	pick     Picker
	stats    Stats
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithPicker overrides the random choice among candidates.
func WithPicker(p Picker) Option {
	return func(m *Matcher) {
		m.pick = p
	}
}

// Build indexes every line that passes filter. A line containing a move
// that cannot be played is indexed only up to that move.
func Build(lines []Line, filter Filter, log zerolog.Logger, opts ...Option) *Matcher {
	m := &Matcher{
		index:    make(map[string][]candidate),
		classify: make(map[string]Opening),
		pick:     RandomPicker,
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, l := range lines {
		m.stats.Lines++
		if !filter.Keep(l) {
			continue
		}
		m.stats.Kept++

		played, ok := playLine(l.Moves)
		if !ok {
			m.stats.Truncated++
			log.Debug().Str("code", l.Code).Str("name", l.Name).Int("playable", len(played)).Msg("repertoire line truncated")
		}
		if len(played) == 0 {
			continue
		}

		label := l.Name
		pos := rules.Start()
		for i, mv := range played {
			key := pos.Canonical()
			m.index[key] = append(m.index[key], candidate{continuation: played[i:], label: label})
			pos, _ = pos.Play(mv)
		}
		if !ok {
			continue
		}
		final := pos.Canonical()
		if prev, seen := m.classify[final]; !seen || len(played) >= prev.Depth {
			m.classify[final] = Opening{Code: l.Code, Name: l.Name, Depth: len(played)}
		}
	}
	m.stats.Positions = len(m.index)

	log.Info().
		Int("lines", m.stats.Lines).
		Int("kept", m.stats.Kept).
		Int("truncated", m.stats.Truncated).
		Int("positions", m.stats.Positions).
		Msg("opening book ready")
	return m
}

// playLine resolves notation into moves from the start position. It
// returns the playable prefix and false if the line was cut short.
func playLine(notation []string) ([]rules.Move, bool) {
	pos := rules.Start()
	out := make([]rules.Move, 0, len(notation))
	for _, s := range notation {
		mv, err := pos.ParseAny(s)
		if err != nil {
			return out, false
		}
		next, err := pos.Play(mv)
		if err != nil {
			return out, false
		}
		out = append(out, mv)
		pos = next
	}
	return out, true
}

// Find suggests a book move for pos and the name of the line it belongs
// to. When several lines pass through pos one is picked at random.
func (m *Matcher) Find(pos rules.Position) (rules.Move, string, bool) {
	if m == nil {
		return rules.Move{}, "", false
	}
	cands := m.index[pos.Canonical()]
	if len(cands) == 0 {
		return rules.Move{}, "", false
	}
	c := cands[m.pick(len(cands))]
	return c.continuation[0], c.label, true
}

// Candidates returns the distinct book moves known for pos.
func (m *Matcher) Candidates(pos rules.Position) []rules.Move {
	if m == nil {
		return nil
	}
	var out []rules.Move
	seen := make(map[rules.Move]bool)
	for _, c := range m.index[pos.Canonical()] {
		if mv := c.continuation[0]; !seen[mv] {
			seen[mv] = true
			out = append(out, mv)
		}
	}
	return out
}

// Classify names the deepest repertoire line that ends exactly at pos.
func (m *Matcher) Classify(pos rules.Position) (Opening, bool) {
	if m == nil {
		return Opening{}, false
	}
	o, ok := m.classify[pos.Canonical()]
	return o, ok
}

// Stats reports how the index was built.
func (m *Matcher) Stats() Stats {
	return m.stats
}
