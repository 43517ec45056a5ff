package stt

import "errors"

var (
	// ErrNotSupported is returned by optional SessionHandle operations the
	// backend does not implement.
	ErrNotSupported = errors.New("stt: operation not supported")

	// ErrClosed is returned by SendAudio after the session has ended.
	ErrClosed = errors.New("stt: session closed")
)

// ChessGrammar is the phrase list handed to grammar-capable recognizers. It
// covers the spoken move and command vocabulary; "[unk]" lets the engine
// reject everything else.
var ChessGrammar = []string{
	"a", "b", "c", "d", "e", "f", "g", "h",
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel",
	"one", "two", "three", "four", "five", "six", "seven", "eight",
	"pawn", "knight", "bishop", "rook", "queen", "king",
	"to", "takes", "captures", "from", "x",
	"castle", "kingside", "queenside", "king side", "queen side", "short", "long",
	"promote", "promotes", "equals",
	"yes", "no", "cancel", "clear", "confirm", "undo", "resign",
	"offer draw", "accept draw", "decline draw",
	"[unk]",
}
