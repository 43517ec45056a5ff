// Package movelist rebuilds the shadow board from the move list rendered by
// the host page.
//
// The host list is the source of truth for the game so far: every resync
// resets the [board.Position] and replays the whole list from the first ply.
// Tokens that cannot be replayed are skipped and counted, never fatal.
package movelist

import (
	"log/slog"
	"strings"

	"github.com/MrWong99/voxmate/pkg/board"
	"github.com/MrWong99/voxmate/pkg/types"
)

// Report summarises one replay.
type Report struct {
	// Tokens is the number of move tokens extracted from the list.
	Tokens int

	// Applied is the number of tokens that changed the board.
	Applied int

	// Skipped is the number of tokens that could not be replayed.
	Skipped int

	// SkippedTokens lists the skipped tokens in list order.
	SkippedTokens []string

	// LastSAN is the final token of the list, or "" for an empty list.
	LastSAN string

	// Turn is the side to move after the list, derived from the token count
	// so that skipped plies do not shift it.
	Turn types.Color

	// Position is the replayed board. It is owned by the receiver of the
	// report.
	Position *board.Position
}

// ExtractTokens splits rendered move-list text into move tokens. Move-number
// labels ("1.", "12..."), result markers ("1-0", "0-1", "1/2-1/2", "*") and
// empty tokens are dropped. A number glued to a move ("1.e4") is removed.
func ExtractTokens(text string) []string {
	var out []string
	for _, f := range strings.Fields(text) {
		f = stripMoveNumber(f)
		if f == "" || isResult(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isResult(t string) bool {
	switch t {
	case "1-0", "0-1", "1/2-1/2", "½-½", "*":
		return true
	}
	return false
}

// stripMoveNumber removes a leading "12." or "12..." label.
func stripMoveNumber(t string) string {
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	if i == 0 || i == len(t) || t[i] != '.' {
		return t
	}
	return strings.TrimLeft(t[i:], ".")
}

// stripAnnotations removes move numbers and annotation characters, the
// second attempt for a token the board rejected.
func stripAnnotations(t string) string {
	t = stripMoveNumber(t)
	return strings.Map(func(r rune) rune {
		switch r {
		case '+', '#', '!', '?', '.':
			return -1
		}
		return r
	}, t)
}

// Replay resets pos and applies tokens alternately for White and Black,
// starting with White. A rejected token is retried once with numbers and
// annotation characters stripped; if it still fails it is skipped and the
// next token keeps the colour its index implies.
func Replay(pos *board.Position, tokens []string) Report {
	pos.Reset()
	rep := Report{Tokens: len(tokens), Position: pos, Turn: types.White}
	for i, tok := range tokens {
		color := types.White
		if i%2 == 1 {
			color = types.Black
		}
		if pos.ApplyMove(tok, color) {
			rep.Applied++
			continue
		}
		if retry := stripAnnotations(tok); retry != tok && retry != "" && pos.ApplyMove(retry, color) {
			rep.Applied++
			continue
		}
		rep.Skipped++
		rep.SkippedTokens = append(rep.SkippedTokens, tok)
		slog.Debug("movelist: skipped token", "token", tok, "ply", i+1, "color", color)
	}
	if len(tokens)%2 == 1 {
		rep.Turn = types.Black
	}
	if len(tokens) > 0 {
		rep.LastSAN = tokens[len(tokens)-1]
	}
	return rep
}
