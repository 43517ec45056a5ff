// Package board implements the shadow chessboard: an 8×8 grid of piece codes
// that tracks the host application's position independently of it.
//
// The model is a position tracker, not a rules engine. It replays moves in
// standard algebraic notation (including castling, promotion and en-passant)
// and enumerates pseudo-legal moves, but it never checks whether a move
// leaves the mover's king in check and never validates the king count.
//
// A Position is owned by exactly one session controller and is not safe for
// concurrent use.
package board

import (
	"strconv"
	"strings"

	"github.com/MrWong99/voxmate/pkg/types"
)

// Empty marks an unoccupied cell.
const Empty byte = 0

// Board is the piece grid. Each cell is Empty or one of PNBRQK (White) or
// pnbrqk (Black).
type Board [8][8]byte

var startingRows = [8]string{
	"rnbqkbnr",
	"pppppppp",
	"",
	"",
	"",
	"",
	"PPPPPPPP",
	"RNBQKBNR",
}

// Reset restores the standard starting array.
func (b *Board) Reset() {
	*b = Board{}
	for r, row := range startingRows {
		for c := 0; c < len(row); c++ {
			b[r][c] = row[c]
		}
	}
}

// At returns the code at sq, or Empty when sq is off the board.
func (b *Board) At(sq Square) byte {
	if !sq.Valid() {
		return Empty
	}
	return b[sq.Row][sq.Col]
}

// Set places code at sq. Off-board squares are ignored.
func (b *Board) Set(sq Square, code byte) {
	if sq.Valid() {
		b[sq.Row][sq.Col] = code
	}
}

// Placement returns the piece-placement field of a FEN string.
func (b *Board) Placement() string {
	var sb strings.Builder
	for r := 0; r < 8; r++ {
		empty := 0
		for c := 0; c < 8; c++ {
			code := b[r][c]
			if code == Empty {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(code)
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if r < 7 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// String renders an ASCII diagram with rank 8 at the top.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < 8; r++ {
		sb.WriteByte(byte('8' - r))
		for c := 0; c < 8; c++ {
			sb.WriteByte(' ')
			if code := b[r][c]; code != Empty {
				sb.WriteByte(code)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h")
	return sb.String()
}

// find returns every square holding code, in row-major order (rank 8 first,
// file a first).
func (b *Board) find(code byte) []Square {
	var out []Square
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if b[r][c] == code {
				out = append(out, Square{Row: r, Col: c})
			}
		}
	}
	return out
}

// friendly reports whether sq holds a piece of color c.
func (b *Board) friendly(sq Square, c types.Color) bool {
	code := b.At(sq)
	return code != Empty && types.ColorOf(code) == c
}

// enemy reports whether sq holds a piece of the opponent of c.
func (b *Board) enemy(sq Square, c types.Color) bool {
	code := b.At(sq)
	return code != Empty && types.ColorOf(code) != c
}

// pathClear reports whether every square strictly between from and to is
// empty, walking the unit vector. from and to must share a rank, file or
// diagonal.
func (b *Board) pathClear(from, to Square) bool {
	dr, dc := sign(to.Row-from.Row), sign(to.Col-from.Col)
	for sq := from.Offset(dr, dc); sq != to; sq = sq.Offset(dr, dc) {
		if !sq.Valid() {
			return false
		}
		if b.At(sq) != Empty {
			return false
		}
	}
	return true
}

// reaches reports whether a piece of kind on from can move to to by its basic
// movement pattern. Sliders need a clear path. Pawns are handled separately.
func (b *Board) reaches(kind types.PieceKind, from, to Square) bool {
	dr, dc := to.Row-from.Row, to.Col-from.Col
	if dr == 0 && dc == 0 {
		return false
	}
	switch kind {
	case types.Knight:
		return (abs(dr) == 1 && abs(dc) == 2) || (abs(dr) == 2 && abs(dc) == 1)
	case types.Bishop:
		return abs(dr) == abs(dc) && b.pathClear(from, to)
	case types.Rook:
		return (dr == 0 || dc == 0) && b.pathClear(from, to)
	case types.Queen:
		return (abs(dr) == abs(dc) || dr == 0 || dc == 0) && b.pathClear(from, to)
	case types.King:
		return abs(dr) <= 1 && abs(dc) <= 1
	}
	return false
}
