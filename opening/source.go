package opening

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/freeeve/pgn/v3"
	"github.com/klauspost/compress/zstd"
	eco "github.com/notnil/chess/opening"
	"github.com/rs/zerolog"

	"chess-diagram/rules"
)

// ErrUnknownFormat is returned for repertoire files that are neither TSV
// nor PGN.
var ErrUnknownFormat = errors.New("unknown repertoire format")

// moveNumberRegex matches move numbers like "1." or "12..."
var moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)

// SplitMovetext turns "1. e4 e5 2. Nf3" into ["e4" "e5" "Nf3"], dropping
// annotations, comments and the game result.
func SplitMovetext(text string) []string {
	cleaned := moveNumberRegex.ReplaceAllString(text, "")
	var out []string
	inComment := false
	for _, tok := range strings.Fields(cleaned) {
		if inComment {
			inComment = !strings.HasSuffix(tok, "}")
			continue
		}
		switch {
		case tok == "":
			continue
		case tok[0] == '{':
			inComment = !strings.HasSuffix(tok, "}")
			continue
		case tok[0] == '$':
			continue
		case tok == "1-0" || tok == "0-1" || tok == "1/2-1/2" || tok == "*":
			continue
		}
		tok = strings.TrimRight(tok, "+#!?")
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// BookLines returns the ECO repertoire bundled with notnil/chess, sorted
// by code then name.
func BookLines() []Line {
	book := eco.NewBookECO()
	var lines []Line
	for _, o := range book.Possible(nil) {
		lines = append(lines, Line{
			Code:  o.Code(),
			Name:  o.Title(),
			Moves: SplitMovetext(o.PGN()),
		})
	}
	sortLines(lines)
	return lines
}

func sortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Code != lines[j].Code {
			return lines[i].Code < lines[j].Code
		}
		return lines[i].Name < lines[j].Name
	})
}

// LoadFiles reads every repertoire file, choosing the reader by extension:
// .tsv and .pgn, optionally zstd-compressed (.tsv.zst, .pgn.zst).
func LoadFiles(paths []string, log zerolog.Logger) ([]Line, error) {
	var lines []Line
	for _, path := range paths {
		var (
			got []Line
			err error
		)
		switch base := strings.TrimSuffix(path, ".zst"); filepath.Ext(base) {
		case ".tsv":
			got, err = LoadTSV(path)
		case ".pgn":
			got, err = LoadPGN(path)
		default:
			err = ErrUnknownFormat
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		log.Info().Str("file", filepath.Base(path)).Int("lines", len(got)).Msg("repertoire loaded")
		lines = append(lines, got...)
	}
	return lines, nil
}

// LoadTSV reads a lichess-style opening table: eco, name and movetext
// separated by tabs, with an optional header row.
func LoadTSV(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return ReadTSV(r)
}

// ReadTSV parses TSV repertoire rows from r. Malformed rows are skipped.
func ReadTSV(r io.Reader) ([]Line, error) {
	scanner := bufio.NewScanner(r)
	var lines []Line
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		row := scanner.Text()

		// Skip header
		if lineNum == 1 && strings.HasPrefix(row, "eco\t") {
			continue
		}

		parts := strings.SplitN(row, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		moves := SplitMovetext(parts[2])
		if len(moves) == 0 {
			continue
		}
		lines = append(lines, Line{Code: parts[0], Name: parts[1], Moves: moves})
	}
	return lines, scanner.Err()
}

// LoadPGN reads repertoire lines from a PGN file. The line name comes from
// the Opening and Variation tags, the code from the ECO tag.
func LoadPGN(path string) ([]Line, error) {
	parser := pgn.Games(path)

	var lines []Line
	for game := range parser.Games {
		name := game.Tags["Opening"]
		if v := game.Tags["Variation"]; v != "" {
			name += ": " + v
		}
		if name == "" {
			name = game.Tags["Event"]
		}
		moves := coordinateMoves(game)
		if len(moves) == 0 {
			continue
		}
		lines = append(lines, Line{Code: game.Tags["ECO"], Name: name, Moves: moves})
	}
	if err := parser.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// coordinateMoves replays a parsed game and converts each move to
// coordinate notation by matching the position it leads to.
func coordinateMoves(game *pgn.Game) []string {
	state := pgn.NewStartingPosition()
	pos := rules.Start()
	var out []string
	for _, mv := range game.Moves {
		if err := pgn.ApplyMove(state, mv); err != nil {
			break
		}
		after, err := rules.ParseFEN(state.ToFEN())
		if err != nil {
			break
		}
		next, played, ok := successor(pos, after.Canonical())
		if !ok {
			break
		}
		out = append(out, played.String())
		pos = next
	}
	return out
}

func successor(pos rules.Position, key string) (rules.Position, rules.Move, bool) {
	for _, mv := range pos.LegalMoves() {
		next, err := pos.Play(mv)
		if err == nil && next.Canonical() == key {
			return next, mv, true
		}
	}
	return rules.Position{}, rules.Move{}, false
}
