package board

import (
	"strings"

	"github.com/MrWong99/voxmate/pkg/types"
)

var (
	knightJumps = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingSteps   = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	rookRays    = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	bishopRays  = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	promotions  = [4]byte{'Q', 'R', 'B', 'N'}
)

// PseudoLegalMoves enumerates every move for color that follows the pieces'
// movement patterns. It does not filter moves that leave the king in check.
// Each move carries its SAN.
func (p *Position) PseudoLegalMoves(color types.Color) []types.LegalMove {
	var moves []types.LegalMove
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			from := Square{Row: r, Col: c}
			code := p.Board.At(from)
			if code == Empty || types.ColorOf(code) != color {
				continue
			}
			moves = append(moves, p.pieceMoves(from, code, color)...)
		}
	}
	moves = append(moves, p.castlingMoves(color)...)
	p.annotateSAN(moves)
	return moves
}

// Destinations returns the squares the piece on from can move to.
func (p *Position) Destinations(square string) []string {
	from, ok := ParseSquare(square)
	if !ok {
		return nil
	}
	code := p.Board.At(from)
	if code == Empty {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range p.pieceMoves(from, code, types.ColorOf(code)) {
		if !seen[m.To] {
			seen[m.To] = true
			out = append(out, m.To)
		}
	}
	return out
}

func (p *Position) pieceMoves(from Square, code byte, color types.Color) []types.LegalMove {
	var moves []types.LegalMove
	add := func(to Square) {
		moves = append(moves, types.LegalMove{From: from.String(), To: to.String(), Piece: code})
	}

	switch types.KindOf(code) {
	case types.Pawn:
		return p.pawnMoves(from, code, color)
	case types.Knight:
		for _, j := range knightJumps {
			if to := from.Offset(j[0], j[1]); to.Valid() && !p.Board.friendly(to, color) {
				add(to)
			}
		}
	case types.King:
		for _, s := range kingSteps {
			if to := from.Offset(s[0], s[1]); to.Valid() && !p.Board.friendly(to, color) {
				add(to)
			}
		}
	case types.Bishop:
		p.slide(from, color, bishopRays[:], add)
	case types.Rook:
		p.slide(from, color, rookRays[:], add)
	case types.Queen:
		p.slide(from, color, bishopRays[:], add)
		p.slide(from, color, rookRays[:], add)
	}
	return moves
}

func (p *Position) slide(from Square, color types.Color, rays [][2]int, add func(Square)) {
	for _, ray := range rays {
		for to := from.Offset(ray[0], ray[1]); to.Valid(); to = to.Offset(ray[0], ray[1]) {
			if p.Board.friendly(to, color) {
				break
			}
			add(to)
			if p.Board.At(to) != Empty {
				break
			}
		}
	}
}

func (p *Position) pawnMoves(from Square, code byte, color types.Color) []types.LegalMove {
	dir, startRow, lastRow := pawnDirection(color)
	var moves []types.LegalMove
	add := func(to Square) {
		if to.Row == lastRow {
			for _, promo := range promotions {
				moves = append(moves, types.LegalMove{From: from.String(), To: to.String(), Piece: code, Promotion: promo})
			}
			return
		}
		moves = append(moves, types.LegalMove{From: from.String(), To: to.String(), Piece: code})
	}

	if one := from.Offset(dir, 0); one.Valid() && p.Board.At(one) == Empty {
		add(one)
		if two := from.Offset(2*dir, 0); from.Row == startRow && p.Board.At(two) == Empty {
			add(two)
		}
	}
	for _, dc := range [2]int{-1, 1} {
		to := from.Offset(dir, dc)
		if !to.Valid() {
			continue
		}
		if p.Board.enemy(to, color) || (p.Board.At(to) == Empty && p.enPassantTarget(color, to)) {
			add(to)
		}
	}
	return moves
}

// castlingMoves offers castling whenever king and rook stand on their home
// squares with nothing between them. Attacked squares are not considered.
func (p *Position) castlingMoves(color types.Color) []types.LegalMove {
	row := 7
	if color == types.Black {
		row = 0
	}
	king := types.King.Code(color)
	rook := types.Rook.Code(color)
	kingSq := Square{Row: row, Col: 4}
	if p.Board.At(kingSq) != king {
		return nil
	}

	var moves []types.LegalMove
	if p.Board.At(Square{Row: row, Col: 7}) == rook && p.Board.pathClear(kingSq, Square{Row: row, Col: 7}) {
		moves = append(moves, types.LegalMove{From: kingSq.String(), To: Square{Row: row, Col: 6}.String(), Piece: king, SAN: "O-O"})
	}
	if p.Board.At(Square{Row: row, Col: 0}) == rook && p.Board.pathClear(kingSq, Square{Row: row, Col: 0}) {
		moves = append(moves, types.LegalMove{From: kingSq.String(), To: Square{Row: row, Col: 2}.String(), Piece: king, SAN: "O-O-O"})
	}
	return moves
}

// annotateSAN fills in the SAN of every move that lacks one, adding file or
// rank disambiguators when several pieces of the same type reach the same
// square.
func (p *Position) annotateSAN(moves []types.LegalMove) {
	for i := range moves {
		m := &moves[i]
		if m.SAN != "" {
			continue
		}
		kind := m.Kind()
		var sb strings.Builder
		if kind == types.Pawn {
			if m.From[0] != m.To[0] {
				sb.WriteByte(m.From[0])
				sb.WriteByte('x')
			}
			sb.WriteString(m.To)
			if m.Promotion != 0 {
				sb.WriteByte('=')
				sb.WriteByte(m.Promotion)
			}
			m.SAN = sb.String()
			continue
		}

		sb.WriteByte(kind.Letter())
		sameFile, sameRank, rivals := false, false, false
		for j := range moves {
			o := moves[j]
			if j == i || o.Piece != m.Piece || o.To != m.To || o.From == m.From {
				continue
			}
			rivals = true
			if o.From[0] == m.From[0] {
				sameFile = true
			}
			if o.From[1] == m.From[1] {
				sameRank = true
			}
		}
		switch {
		case !rivals:
		case !sameFile:
			sb.WriteByte(m.From[0])
		case !sameRank:
			sb.WriteByte(m.From[1])
		default:
			sb.WriteString(m.From)
		}
		if p.PieceAt(m.To) != Empty {
			sb.WriteByte('x')
		}
		sb.WriteString(m.To)
		m.SAN = sb.String()
	}
}
