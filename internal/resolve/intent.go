package resolve

import (
	"strings"

	"github.com/MrWong99/voxmate/pkg/types"
)

// Command is a special, non-movement instruction.
type Command int

const (
	NoCommand Command = iota
	Clear
	Cancel
	CastleKingside
	CastleQueenside
	Resign
	OfferDraw
	AcceptDraw
	DeclineDraw
	Undo
	Yes
	No
)

var commandNames = [...]string{
	NoCommand:       "none",
	Clear:           "clear",
	Cancel:          "cancel",
	CastleKingside:  "castle-kingside",
	CastleQueenside: "castle-queenside",
	Resign:          "resign",
	OfferDraw:       "offer-draw",
	AcceptDraw:      "accept-draw",
	DeclineDraw:     "decline-draw",
	Undo:            "undo",
	Yes:             "yes",
	No:              "no",
}

// String returns the command tag ("castle-kingside").
func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return "unknown"
	}
	return commandNames[c]
}

// ParseCommand is the inverse of [Command.String].
func ParseCommand(s string) (Command, bool) {
	for i, name := range commandNames {
		if i > 0 && name == s {
			return Command(i), true
		}
	}
	return NoCommand, false
}

// Intent is the structured reading of one utterance. Either Command is set,
// or Target (plus the optional movement fields) is.
type Intent struct {
	// Piece is the moving piece. NoPiece means "not said": it defaults to a
	// pawn unless an exact From square was given.
	Piece types.PieceKind

	// Target is the destination square ("e4").
	Target string

	// From is the exact source square when spoken.
	From string

	// FromFile narrows the source to a file ('a'..'h') when the exact square
	// is unknown.
	FromFile byte

	// Promotion is the requested promotion piece, or NoPiece.
	Promotion types.PieceKind

	// Command is the special command, or NoCommand for a movement intent.
	Command Command

	// Strategy names the parser that produced the intent.
	Strategy string
}

// IsCommand reports whether the intent is a special command.
func (i Intent) IsCommand() bool { return i.Command != NoCommand }

// String renders the intent for logs.
func (i Intent) String() string {
	if i.IsCommand() {
		return i.Command.String()
	}
	var sb strings.Builder
	if i.Piece != types.NoPiece {
		sb.WriteString(i.Piece.String())
		sb.WriteByte(' ')
	}
	switch {
	case i.From != "":
		sb.WriteString(i.From)
		sb.WriteByte('-')
	case i.FromFile != 0:
		sb.WriteByte(i.FromFile)
		sb.WriteByte('-')
	}
	sb.WriteString(i.Target)
	if i.Promotion != types.NoPiece {
		sb.WriteByte('=')
		sb.WriteByte(i.Promotion.Letter())
	}
	return sb.String()
}
