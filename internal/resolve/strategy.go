package resolve

import (
	"strings"

	"github.com/MrWong99/voxmate/pkg/types"
)

// Strategy is one parser in the resolver's ordered list. Parse returns ok
// false when the text does not have the shape the strategy understands.
// Implementations must be stateless and safe for concurrent use.
type Strategy interface {
	Name() string
	Parse(text string) (Intent, bool)
}

// StrategyFunc adapts a function to [Strategy].
type StrategyFunc struct {
	Label string
	Fn    func(text string) (Intent, bool)
}

// Name returns Label.
func (s StrategyFunc) Name() string { return s.Label }

// Parse calls Fn and stamps the strategy name on the intent.
func (s StrategyFunc) Parse(text string) (Intent, bool) {
	in, ok := s.Fn(text)
	if ok {
		in.Strategy = s.Label
	}
	return in, ok
}

// DefaultStrategies returns the parsers in precedence order. The first one to
// match wins.
func DefaultStrategies() []Strategy {
	direct := []Strategy{
		StrategyFunc{Label: "coordinate-pair", Fn: parseCoordinatePair},
		StrategyFunc{Label: "spelled-pair", Fn: parseSpelledPair},
		StrategyFunc{Label: "piece-phrase", Fn: parsePiecePhrase},
		StrategyFunc{Label: "san", Fn: parseSAN},
	}
	out := []Strategy{StrategyFunc{Label: "command", Fn: parseCommand}}
	out = append(out, direct...)
	out = append(out,
		recompact{next: direct},
		StrategyFunc{Label: "bare-squares", Fn: parseBareSquares},
		StrategyFunc{Label: "any-square", Fn: parseAnySquare},
	)
	return out
}

// ── a: special commands ───────────────────────────────────────────────────────

var commandVocabulary = map[string]Command{
	"clear":            Clear,
	"clear board":      Clear,
	"cancel":           Cancel,
	"castle kingside":  CastleKingside,
	"castle queenside": CastleQueenside,
	"o-o":              CastleKingside,
	"0-0":              CastleKingside,
	"o-o-o":            CastleQueenside,
	"0-0-0":            CastleQueenside,
	"resign":           Resign,
	"i resign":         Resign,
	"offer draw":       OfferDraw,
	"draw":             OfferDraw,
	"draw offer":       OfferDraw,
	"accept draw":      AcceptDraw,
	"accept":           AcceptDraw,
	"decline draw":     DeclineDraw,
	"decline":          DeclineDraw,
	"undo":             Undo,
	"takeback":         Undo,
	"yes":              Yes,
	"yeah":             Yes,
	"yep":              Yes,
	"confirm":          Yes,
	"correct":          Yes,
	"no":               No,
	"nope":             No,
}

func parseCommand(text string) (Intent, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if c, ok := commandVocabulary[key]; ok {
		return Intent{Command: c}, true
	}
	return Intent{}, false
}

// ── b: explicit from/to ───────────────────────────────────────────────────────

// parseCoordinatePair matches "e2e4", "e2 e4", "e2 to e4", "e2-e4",
// "e7 x d8=Q" and "e7e8q".
func parseCoordinatePair(text string) (Intent, bool) {
	var joined strings.Builder
	for _, t := range strings.Fields(text) {
		if isSeparator(t) {
			continue
		}
		joined.WriteString(fixEight(t))
	}
	s := joined.String()

	if len(s) < 4 {
		return Intent{}, false
	}
	from, ok1 := squareAt(s, 0)
	to, ok2 := squareAt(s, 2)
	if !ok1 || !ok2 {
		return Intent{}, false
	}
	promo, ok := promotionSuffix(s[4:])
	if !ok {
		return Intent{}, false
	}
	return Intent{From: from, Target: to, Promotion: promo}, true
}

// ── c: four spelled tokens ────────────────────────────────────────────────────

// parseSpelledPair matches "e 2 e 4".
func parseSpelledPair(text string) (Intent, bool) {
	tokens := strings.Fields(text)
	if len(tokens) != 4 {
		return Intent{}, false
	}
	from, ok1 := squareAt(tokens[0]+tokens[1], 0)
	to, ok2 := squareAt(tokens[2]+tokens[3], 0)
	if !ok1 || !ok2 || len(tokens[0])+len(tokens[1]) != 2 || len(tokens[2])+len(tokens[3]) != 2 {
		return Intent{}, false
	}
	return Intent{From: from, Target: to}, true
}

// ── d: piece phrase ───────────────────────────────────────────────────────────

// parsePiecePhrase matches "<piece> [from] [source] [to|x] <square>[=P]".
// The source may be a square or a bare file.
func parsePiecePhrase(text string) (Intent, bool) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return Intent{}, false
	}
	piece, ok := pieceNames[tokens[0]]
	if !ok {
		return Intent{}, false
	}

	rest := make([]string, 0, len(tokens)-1)
	for _, t := range tokens[1:] {
		if t == "from" || isSeparator(t) {
			continue
		}
		rest = append(rest, fixEight(t))
	}

	var in Intent
	switch len(rest) {
	case 1:
	case 2:
		if sq, ok := squareAt(rest[0], 0); ok && len(rest[0]) == 2 {
			in.From = sq
		} else if isFileToken(rest[0]) {
			in.FromFile = rest[0][0]
		} else {
			return Intent{}, false
		}
	default:
		return Intent{}, false
	}

	last := rest[len(rest)-1]
	target, ok := squareAt(last, 0)
	if !ok {
		return Intent{}, false
	}
	promo, ok := promotionSuffix(last[2:])
	if !ok {
		return Intent{}, false
	}
	in.Piece = piece
	in.Target = target
	in.Promotion = promo
	return in, true
}

// ── e: SAN-like compact ───────────────────────────────────────────────────────

// parseSAN matches a single compact token such as "nf3", "nbd7", "qh4xe1",
// "exd5", "e8=q" or "e4". A leading "b" is read as a bishop unless the token
// is a b-pawn capture onto the a or c file.
func parseSAN(text string) (Intent, bool) {
	tokens := strings.Fields(text)
	if len(tokens) != 1 {
		return Intent{}, false
	}
	s := fixEight(tokens[0])
	s = strings.TrimRight(s, "+#!?")
	if s == "" {
		return Intent{}, false
	}

	// Promotion suffix first, so "e8=q" and "e8q" leave "e8".
	promo := types.NoPiece
	if i := strings.IndexByte(s, '='); i >= 0 {
		p, ok := promotionSuffix(s[i:])
		if !ok {
			return Intent{}, false
		}
		promo, s = p, s[:i]
	} else if n := len(s); n >= 3 && isRankByte(s[n-2]) && strings.IndexByte("qrbnQRBN", s[n-1]) >= 0 {
		promo = types.KindOf(s[n-1])
		s = s[:n-1]
	}

	piece := types.NoPiece
	switch c := s[0]; {
	case strings.IndexByte("NBRQK", c) >= 0:
		piece = types.KindOf(c)
		s = s[1:]
	case strings.IndexByte("nrqk", c) >= 0:
		piece = types.KindOf(c)
		s = s[1:]
	case c == 'b' && !isPawnCaptureFromB(s):
		if _, ok := squareAt(s, 0); !ok || len(s) != 2 {
			piece = types.Bishop
			s = s[1:]
		}
	}

	s = strings.ReplaceAll(s, "x", "")
	s = strings.ReplaceAll(s, ":", "")
	if len(s) < 2 || len(s) > 4 {
		return Intent{}, false
	}
	target, ok := squareAt(s, len(s)-2)
	if !ok {
		return Intent{}, false
	}

	in := Intent{Piece: piece, Target: target, Promotion: promo}
	switch d := s[:len(s)-2]; len(d) {
	case 0:
	case 1:
		switch {
		case isFileByte(d[0]):
			in.FromFile = d[0]
		case isRankByte(d[0]) && piece != types.NoPiece:
			// Rank-only disambiguation cannot be expressed by the intent;
			// the destination and piece usually suffice.
		default:
			return Intent{}, false
		}
	case 2:
		sq, ok := squareAt(d, 0)
		if !ok {
			return Intent{}, false
		}
		in.From = sq
	}
	if piece == types.NoPiece && in.From == "" {
		in.Piece = types.Pawn
	}
	return in, true
}

// isPawnCaptureFromB reports whether s reads as "bxa5" or "bxc5".
func isPawnCaptureFromB(s string) bool {
	return len(s) == 4 && s[0] == 'b' && s[1] == 'x' && (s[2] == 'a' || s[2] == 'c') && isRankByte(s[3])
}

// ── f: recompaction ───────────────────────────────────────────────────────────

// recompact joins spelled-out file and rank tokens that survived
// normalization ("e 4" → "e4", "8 4" → "h4") and retries the direct parsers
// until the text stops changing.
type recompact struct {
	next []Strategy
}

func (recompact) Name() string { return "recompact" }

func (r recompact) Parse(text string) (Intent, bool) {
	for i := 0; i < 4; i++ {
		compacted := compactTokens(text)
		if compacted == text {
			return Intent{}, false
		}
		text = compacted
		for _, s := range r.next {
			if in, ok := s.Parse(text); ok {
				in.Strategy = r.Name() + "/" + in.Strategy
				return in, true
			}
		}
	}
	return Intent{}, false
}

func compactTokens(text string) string {
	tokens := strings.Fields(text)
	var out []string
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if i+1 < len(tokens) {
			next := tokens[i+1]
			switch {
			case (isFileToken(t) || t == "8") && isRankToken(next):
				out = append(out, fixEight(t+next))
				i++
				continue
			case isRankToken(t) && isFileToken(next):
				out = append(out, next+t)
				i++
				continue
			}
		}
		out = append(out, fixEight(t))
	}
	return strings.Join(out, " ")
}

// ── g: bare squares ───────────────────────────────────────────────────────────

// parseBareSquares scans the whole text for square tokens. Two squares are
// read as from/to; one square is a destination. A piece name anywhere in the
// text sets the piece.
func parseBareSquares(text string) (Intent, bool) {
	var squares []string
	in := Intent{}
	for _, t := range strings.Fields(text) {
		if p, ok := pieceNames[t]; ok && in.Piece == types.NoPiece {
			in.Piece = p
			continue
		}
		t = fixEight(t)
		if sq, ok := squareAt(t, 0); ok {
			if promo, ok := promotionSuffix(t[2:]); ok {
				squares = append(squares, sq)
				if promo != types.NoPiece {
					in.Promotion = promo
				}
			}
		}
	}
	switch len(squares) {
	case 1:
		in.Target = squares[0]
	case 2:
		in.From, in.Target = squares[0], squares[1]
	default:
		return Intent{}, false
	}
	return in, true
}

// ── h: any square ─────────────────────────────────────────────────────────────

// parseAnySquare takes the last file+rank pair found anywhere in the text,
// even inside a longer token.
func parseAnySquare(text string) (Intent, bool) {
	s := strings.ToLower(text)
	for i := len(s) - 2; i >= 0; i-- {
		if sq, ok := squareAt(s, i); ok {
			return Intent{Target: sq}, true
		}
	}
	return Intent{}, false
}

// ── helpers ───────────────────────────────────────────────────────────────────

var pieceNames = map[string]types.PieceKind{
	"pawn":   types.Pawn,
	"knight": types.Knight,
	"bishop": types.Bishop,
	"rook":   types.Rook,
	"queen":  types.Queen,
	"king":   types.King,
}

func isSeparator(t string) bool {
	switch t {
	case "to", "x", "-", "takes":
		return true
	}
	return false
}

// fixEight rewrites a leading "8" followed by a rank digit as the file h
// ("84" → "h4"); speech engines hear "h four" as "eight four".
func fixEight(t string) string {
	if len(t) >= 2 && t[0] == '8' && isRankByte(t[1]) {
		return "h" + t[1:]
	}
	return t
}

// squareAt returns the square spelled at s[i:i+2].
func squareAt(s string, i int) (string, bool) {
	if i < 0 || i+2 > len(s) {
		return "", false
	}
	if !isFileByte(s[i]) || !isRankByte(s[i+1]) {
		return "", false
	}
	return s[i : i+2], true
}

// promotionSuffix parses "", "=Q", "=q" or "q".
func promotionSuffix(s string) (types.PieceKind, bool) {
	s = strings.TrimPrefix(s, "=")
	switch len(s) {
	case 0:
		return types.NoPiece, true
	case 1:
		if strings.IndexByte("qrbnQRBN", s[0]) >= 0 {
			return types.KindOf(s[0]), true
		}
	}
	return types.NoPiece, false
}

func isFileByte(c byte) bool { return c >= 'a' && c <= 'h' }
func isRankByte(c byte) bool { return c >= '1' && c <= '8' }

func isFileToken(t string) bool { return len(t) == 1 && isFileByte(t[0]) }
func isRankToken(t string) bool { return len(t) == 1 && isRankByte(t[0]) }
