package board

import (
	"strings"

	"github.com/MrWong99/voxmate/pkg/types"
)

// ApplyMove replays a single move for color. san may be standard algebraic
// notation ("e4", "Nbd7", "exd6", "e8=Q", "O-O") or long coordinate form
// ("e2e4", "e7e8q"). Check, mate and annotation suffixes are ignored.
//
// It returns false and leaves the position untouched when the move cannot be
// matched to a piece on the board.
func (p *Position) ApplyMove(san string, color types.Color) bool {
	s := cleanSAN(san)
	if s == "" {
		return false
	}

	switch {
	case isCastle(s):
		return p.applyCastle(color, strings.Count(s, "O")+strings.Count(s, "o")+strings.Count(s, "0") == 3)
	case isCoordinate(s):
		return p.applyCoordinate(s, color)
	case strings.IndexByte("NBRQK", s[0]) >= 0:
		return p.applyPieceMove(s, color)
	case s[0] >= 'a' && s[0] <= 'h':
		return p.applyPawnMove(s, color)
	}
	return false
}

// cleanSAN trims whitespace and strips check, mate and annotation marks.
func cleanSAN(san string) string {
	s := strings.TrimSpace(san)
	s = strings.TrimRight(s, "+#!?")
	s = strings.TrimSuffix(s, "e.p.")
	return strings.TrimSpace(s)
}

func isCastle(s string) bool {
	switch strings.ToUpper(s) {
	case "O-O", "0-0", "O-O-O", "0-0-0", "OO", "OOO":
		return true
	}
	return false
}

// isCoordinate matches "e2e4" and "e7e8q".
func isCoordinate(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if _, ok := ParseSquare(s[0:2]); !ok {
		return false
	}
	if _, ok := ParseSquare(s[2:4]); !ok {
		return false
	}
	return len(s) == 4 || strings.IndexByte("qrbnQRBN", s[4]) >= 0
}

// applyCastle relocates king and rook to their canonical squares. Castling
// rights and attacked squares are not checked.
func (p *Position) applyCastle(color types.Color, queenside bool) bool {
	row := 7
	if color == types.Black {
		row = 0
	}
	king := types.King.Code(color)
	rook := types.Rook.Code(color)

	kingFrom := Square{Row: row, Col: 4}
	kingTo, rookFrom, rookTo := Square{Row: row, Col: 6}, Square{Row: row, Col: 7}, Square{Row: row, Col: 5}
	if queenside {
		kingTo, rookFrom, rookTo = Square{Row: row, Col: 2}, Square{Row: row, Col: 0}, Square{Row: row, Col: 3}
	}

	p.Board.Set(kingFrom, Empty)
	p.Board.Set(rookFrom, Empty)
	p.Board.Set(kingTo, king)
	p.Board.Set(rookTo, rook)
	p.record(kingFrom, kingTo, king, color, false)
	return true
}

// applyCoordinate moves whatever stands on the source square. King moves of
// two files castle, diagonal pawn moves onto an empty square capture
// en-passant, and pawns reaching the last rank promote (queen by default).
func (p *Position) applyCoordinate(s string, color types.Color) bool {
	from, _ := ParseSquare(s[0:2])
	to, _ := ParseSquare(s[2:4])
	code := p.Board.At(from)
	if code == Empty || types.ColorOf(code) != color || p.Board.friendly(to, color) {
		return false
	}

	kind := types.KindOf(code)
	if kind == types.King && from.Row == to.Row && abs(to.Col-from.Col) == 2 {
		return p.applyCastle(color, to.Col < from.Col)
	}

	if kind == types.Pawn {
		promo := byte('Q')
		if len(s) == 5 {
			promo = s[4] &^ 0x20
		}
		return p.movePawn(from, to, color, promo)
	}

	p.Board.Set(from, Empty)
	p.Board.Set(to, code)
	p.record(from, to, code, color, false)
	return true
}

// applyPieceMove handles "<Piece>[disambiguator][x]<square>".
func (p *Position) applyPieceMove(s string, color types.Color) bool {
	kind := types.KindOf(s[0])
	body := strings.ReplaceAll(s[1:], "x", "")
	body = strings.ReplaceAll(body, ":", "")
	if len(body) < 2 {
		return false
	}
	to, ok := ParseSquare(body[len(body)-2:])
	if !ok {
		return false
	}
	disambiguator := body[:len(body)-2]

	code := kind.Code(color)
	if p.Board.friendly(to, color) {
		return false
	}

	var candidates []Square
	for _, from := range p.Board.find(code) {
		if !p.Board.reaches(kind, from, to) {
			continue
		}
		if !matchesDisambiguator(from, disambiguator) {
			continue
		}
		candidates = append(candidates, from)
	}
	if len(candidates) == 0 {
		return false
	}

	// SAN is expected to disambiguate fully. When it does not, the first
	// candidate in scan order wins.
	from := candidates[0]
	p.Board.Set(from, Empty)
	p.Board.Set(to, code)
	p.record(from, to, code, color, false)
	return true
}

func matchesDisambiguator(from Square, d string) bool {
	for i := 0; i < len(d); i++ {
		switch c := d[i]; {
		case c >= 'a' && c <= 'h':
			if from.File() != c {
				return false
			}
		case c >= '1' && c <= '8':
			if from.Rank() != c {
				return false
			}
		}
	}
	return true
}

// applyPawnMove handles quiet pushes ("e4"), captures ("exd5"), and
// promotions of either ("e8=Q", "exd8N", "e8").
func (p *Position) applyPawnMove(s string, color types.Color) bool {
	promo := byte(0)
	if i := strings.IndexByte(s, '='); i >= 0 {
		if i+1 < len(s) {
			promo = s[i+1] &^ 0x20
		}
		s = s[:i]
	} else if n := len(s); n >= 3 && strings.IndexByte("QRBN", s[n-1]) >= 0 && s[n-2] >= '1' && s[n-2] <= '8' {
		promo = s[n-1]
		s = s[:n-1]
	}
	if promo != 0 && strings.IndexByte("QRBN", promo) < 0 {
		return false
	}

	fromFile := byte(0)
	var target string
	switch {
	case len(s) == 2:
		target = s
	case len(s) == 4 && (s[1] == 'x' || s[1] == ':'):
		fromFile, target = s[0], s[2:4]
	case len(s) == 3 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= 'a' && s[1] <= 'h':
		// "ed5" with the capture mark dropped.
		fromFile, target = s[0], s[1:3]
	default:
		return false
	}
	to, ok := ParseSquare(target)
	if !ok {
		return false
	}

	if fromFile != 0 {
		return p.pawnCapture(fromFile, to, color, promo)
	}
	return p.pawnPush(to, color, promo)
}

func pawnDirection(color types.Color) (dir, startRow, lastRow int) {
	if color == types.White {
		return -1, 6, 0
	}
	return 1, 1, 7
}

// pawnPush moves the pawn that can reach to by a single or double step,
// preferring the single step.
func (p *Position) pawnPush(to Square, color types.Color, promo byte) bool {
	if p.Board.At(to) != Empty {
		return false
	}
	dir, startRow, _ := pawnDirection(color)
	pawn := types.Pawn.Code(color)

	single := to.Offset(-dir, 0)
	if p.Board.At(single) == pawn {
		return p.movePawn(single, to, color, promo)
	}
	double := to.Offset(-2*dir, 0)
	if double.Row == startRow && p.Board.At(double) == pawn && p.Board.At(single) == Empty {
		return p.movePawn(double, to, color, promo)
	}
	return false
}

// pawnCapture moves the pawn on fromFile that can capture on to, including
// en-passant when to is empty.
func (p *Position) pawnCapture(fromFile byte, to Square, color types.Color, promo byte) bool {
	dir, _, _ := pawnDirection(color)
	from := Square{Row: to.Row - dir, Col: int(fromFile - 'a')}
	if abs(from.Col-to.Col) != 1 || p.Board.At(from) != types.Pawn.Code(color) {
		return false
	}
	if p.Board.enemy(to, color) {
		return p.movePawn(from, to, color, promo)
	}
	if p.Board.At(to) != Empty {
		return false
	}
	if !p.enPassantTarget(color, to) {
		return false
	}
	return p.movePawn(from, to, color, promo)
}

// enPassantTarget reports whether a pawn of color may capture en-passant on
// to: the previous ply must be an opposing double push that landed beside the
// capturing pawn on to's file.
func (p *Position) enPassantTarget(color types.Color, to Square) bool {
	lm := p.State.LastMove
	if lm == nil || !lm.WasDoublePawnPush || lm.Color == color {
		return false
	}
	dir, _, _ := pawnDirection(color)
	return lm.To == to.Offset(-dir, 0)
}

// movePawn relocates a pawn, removing an en-passant victim and promoting on
// the last rank. promo defaults to queen.
func (p *Position) movePawn(from, to Square, color types.Color, promo byte) bool {
	dir, _, lastRow := pawnDirection(color)
	pawn := types.Pawn.Code(color)

	if from.Col != to.Col && p.Board.At(to) == Empty {
		if !p.enPassantTarget(color, to) {
			return false
		}
		p.Board.Set(to.Offset(-dir, 0), Empty)
	}

	placed := pawn
	if to.Row == lastRow {
		if promo == 0 {
			promo = 'Q'
		}
		placed = types.KindOf(promo).Code(color)
	}

	p.Board.Set(from, Empty)
	p.Board.Set(to, placed)
	p.record(from, to, pawn, color, abs(to.Row-from.Row) == 2)
	return true
}
