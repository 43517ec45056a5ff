package transcript

// fillers are dropped before any substitution. "a" is handled separately
// because it doubles as a file letter.
var fillers = map[string]bool{
	"please": true,
	"the":    true,
	"an":     true,
	"hey":    true,
	"um":     true,
	"uh":     true,
	"like":   true,
	"so":     true,
	"move":   true,
}

// homophones maps misrecognised words onto chess vocabulary, letters and
// digits.
var homophones = map[string]string{
	// pieces
	"night":    "knight",
	"nite":     "knight",
	"knights":  "knight",
	"nights":   "knight",
	"horse":    "knight",
	"rock":     "rook",
	"rooks":    "rook",
	"brook":    "rook",
	"tower":    "rook",
	"bishops":  "bishop",
	"queens":   "queen",
	"kings":    "king",
	"pawns":    "pawn",
	"pond":     "pawn",
	"porn":     "pawn",
	"prawn":    "pawn",
	"palm":     "pawn",
	"castles":  "castle",
	"castling": "castle",
	"cassel":   "castle",

	// digits
	"for":   "4",
	"fore":  "4",
	"won":   "1",
	"tree":  "3",
	"free":  "3",
	"ate":   "8",
	"eat":   "8",
	"sex":   "6",
	"sicks": "6",
	"fife":  "5",
	"too":   "2",

	// file letters
	"alpha":   "a",
	"alfa":    "a",
	"bravo":   "b",
	"be":      "b",
	"bee":     "b",
	"charlie": "c",
	"see":     "c",
	"sea":     "c",
	"delta":   "d",
	"dee":     "d",
	"echo":    "e",
	"ee":      "e",
	"foxtrot": "f",
	"eff":     "f",
	"golf":    "g",
	"gee":     "g",
	"jee":     "g",
	"hotel":   "h",
	"aitch":   "h",
	"age":     "h",
}

// numberWords covers the ranks. "to" is deliberately absent: it is resolved
// during square compaction.
var numberWords = map[string]string{
	"one":   "1",
	"two":   "2",
	"three": "3",
	"four":  "4",
	"five":  "5",
	"six":   "6",
	"seven": "7",
	"eight": "8",
}

// pieceLetters maps spoken piece names to their SAN letters.
var pieceLetters = map[string]string{
	"queen":  "Q",
	"rook":   "R",
	"bishop": "B",
	"knight": "N",
	"q":      "Q",
	"r":      "R",
	"b":      "B",
	"n":      "N",
}

// known reports whether word is already understood by some stage, in which
// case the phonetic corrector must leave it alone.
func known(word string) bool {
	if fillers[word] {
		return true
	}
	if _, ok := homophones[word]; ok {
		return true
	}
	if _, ok := numberWords[word]; ok {
		return true
	}
	if _, ok := pieceLetters[word]; ok {
		return true
	}
	switch word {
	case "to", "pawn", "king", "castle", "kingside", "queenside", "side",
		"short", "long", "takes", "take", "captures", "capture", "capturing",
		"promote", "promotes", "promoting", "promotion", "equals", "into",
		"yes", "yeah", "yep", "confirm", "no", "nope", "cancel", "clear",
		"resign", "draw", "offer", "accept", "decline", "undo", "from", "on":
		return true
	}
	return false
}

// pieceNames lists the spoken piece names after homophone correction.
var pieceNames = map[string]struct{}{
	"pawn":   {},
	"knight": {},
	"bishop": {},
	"rook":   {},
	"queen":  {},
	"king":   {},
}
