package uci

import (
	"strconv"
	"strings"

	"chess-diagram/engine"
)

// parseInfo updates score from an "info" line. Lines without a score, or
// for a secondary multipv line, leave it untouched.
func parseInfo(line string, score *engine.Score) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return
	}

	var (
		next   engine.Score
		scored bool
	)
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			return
		case "multipv":
			if i+1 < len(fields) && fields[i+1] != "1" {
				return
			}
			i++
		case "score":
			if i+2 >= len(fields) {
				return
			}
			n, err := strconv.Atoi(fields[i+2])
			if err != nil {
				return
			}
			switch fields[i+1] {
			case "cp":
				next.Kind, next.CP = engine.ScoreCentipawns, n
				scored = true
			case "mate":
				next.Kind, next.Mate = engine.ScoreMate, n
				scored = true
			}
			i += 2
		case "pv":
			next.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}
	if !scored {
		return
	}
	*score = next
}

// parseBestMove extracts the move from "bestmove e2e4 [ponder e7e5]". A
// null move ("(none)" or "0000") yields "".
func parseBestMove(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		return ""
	}
	switch fields[1] {
	case "(none)", "0000":
		return ""
	}
	return fields[1]
}
