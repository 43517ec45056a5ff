package board

// Square addresses a board cell. Row 0 is rank 8 and column 0 is file a, so
// the array layout matches the order pieces are written in a FEN string.
type Square struct {
	Row int
	Col int
}

// NoSquare is the zero-information square returned by failed lookups.
var NoSquare = Square{Row: -1, Col: -1}

// ParseSquare parses an algebraic square such as "e4". The boolean is false
// for anything that is not exactly a file letter a-h followed by a rank 1-8.
func ParseSquare(s string) (Square, bool) {
	if len(s) != 2 {
		return NoSquare, false
	}
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return NoSquare, false
	}
	return Square{Row: int('8' - r), Col: int(f - 'a')}, true
}

// MustSquare is ParseSquare for literals known to be valid. It panics on bad
// input and is meant for tables and tests.
func MustSquare(s string) Square {
	sq, ok := ParseSquare(s)
	if !ok {
		panic("board: invalid square " + s)
	}
	return sq
}

// Valid reports whether s lies on the board.
func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < 8 && s.Col >= 0 && s.Col < 8
}

// File returns the file letter ('a'..'h').
func (s Square) File() byte { return byte('a' + s.Col) }

// Rank returns the rank digit ('1'..'8').
func (s Square) Rank() byte { return byte('8' - s.Row) }

// String returns the algebraic name, or "-" for an off-board square.
func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{s.File(), s.Rank()})
}

// Offset returns the square dr rows and dc columns away. The result may be
// off the board.
func (s Square) Offset(dr, dc int) Square {
	return Square{Row: s.Row + dr, Col: s.Col + dc}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
