package board

import (
	"strconv"
	"strings"

	"github.com/MrWong99/voxmate/pkg/types"
)

// LastMove describes the most recently applied move.
type LastMove struct {
	From  Square
	To    Square
	Piece byte
	Color types.Color

	// WasDoublePawnPush is true only when the move was a two-square pawn
	// advance. It makes the following ply eligible for en-passant and is
	// overwritten by every move.
	WasDoublePawnPush bool
}

// GameState carries the move history the board grid alone cannot express.
type GameState struct {
	LastMove *LastMove

	// Plies counts moves applied since the last reset.
	Plies int
}

// Reset clears the state back to the starting position's.
func (g *GameState) Reset() {
	*g = GameState{}
}

// Position is the board plus its game state. It is the unit a session owns.
type Position struct {
	Board Board
	State GameState
}

// NewPosition returns a Position holding the standard starting array.
func NewPosition() *Position {
	p := &Position{}
	p.Reset()
	return p
}

// Reset restores the starting array and clears the game state.
func (p *Position) Reset() {
	p.Board.Reset()
	p.State.Reset()
}

// PieceAt returns the piece code at the named square, or Empty when the
// square is empty or the name is invalid.
func (p *Position) PieceAt(square string) byte {
	sq, ok := ParseSquare(square)
	if !ok {
		return Empty
	}
	return p.Board.At(sq)
}

// Clone returns an independent copy of p.
func (p *Position) Clone() *Position {
	c := &Position{Board: p.Board, State: GameState{Plies: p.State.Plies}}
	if p.State.LastMove != nil {
		lm := *p.State.LastMove
		c.State.LastMove = &lm
	}
	return c
}

// Equal reports whether both positions hold the same pieces.
func (p *Position) Equal(o *Position) bool {
	return p.Board == o.Board
}

// SideToMove infers whose turn it is from the last applied move. White moves
// first from a reset position.
func (p *Position) SideToMove() types.Color {
	if p.State.LastMove == nil {
		return types.White
	}
	return p.State.LastMove.Color.Opponent()
}

// FEN renders the position as a FEN string. Castling availability is derived
// from kings and rooks standing on their home squares, and the en-passant
// target from the last double pawn push.
func (p *Position) FEN() string {
	var sb strings.Builder
	sb.WriteString(p.Board.Placement())
	if p.SideToMove() == types.White {
		sb.WriteString(" w ")
	} else {
		sb.WriteString(" b ")
	}

	castling := ""
	if p.Board.At(MustSquare("e1")) == 'K' {
		if p.Board.At(MustSquare("h1")) == 'R' {
			castling += "K"
		}
		if p.Board.At(MustSquare("a1")) == 'R' {
			castling += "Q"
		}
	}
	if p.Board.At(MustSquare("e8")) == 'k' {
		if p.Board.At(MustSquare("h8")) == 'r' {
			castling += "k"
		}
		if p.Board.At(MustSquare("a8")) == 'r' {
			castling += "q"
		}
	}
	if castling == "" {
		castling = "-"
	}
	sb.WriteString(castling)

	ep := "-"
	if lm := p.State.LastMove; lm != nil && lm.WasDoublePawnPush {
		ep = Square{Row: (lm.From.Row + lm.To.Row) / 2, Col: lm.To.Col}.String()
	}
	sb.WriteString(" " + ep)
	sb.WriteString(" 0 ")
	sb.WriteString(strconv.Itoa(p.State.Plies/2 + 1))
	return sb.String()
}

// String renders the board diagram.
func (p *Position) String() string {
	return p.Board.String()
}

func (p *Position) record(from, to Square, piece byte, color types.Color, double bool) {
	p.State.LastMove = &LastMove{
		From:              from,
		To:                to,
		Piece:             piece,
		Color:             color,
		WasDoublePawnPush: double,
	}
	p.State.Plies++
}
