// Package transcript turns raw speech-recognition output into the canonical
// token stream the move resolver understands.
//
// Speech engines rarely produce clean chess notation. "Night takes e five",
// "four e" and "short castle" all need to become "knight x e5", "e4" and
// "castle kingside" before a parser can make sense of them. The [Normalizer]
// applies a fixed, ordered sequence of stages to do so:
//
//  1. Filler words are dropped.
//  2. Misheard words are corrected, first phonetically against the chess
//     vocabulary (see package phonetic) and then through a homophone table
//     that also covers phonetic letters and digits.
//  3. Number words become digits.
//  4. Castling phrases become "castle kingside" or "castle queenside".
//  5. Capture words become "x".
//  6. Promotion phrases become "=Q", "=R", "=B" or "=N".
//  7. Spaced file and rank pairs are compacted in either order, resolving
//     the word "to" as either the rank 2 or a separator.
//  8. Whitespace is collapsed.
//
// Normalization never fails. Anything no stage understands passes through
// unchanged and is left for the resolver to reject.
package transcript

// WordCorrector maps a single misheard word onto a known vocabulary word.
// Implementations must be safe for concurrent use.
type WordCorrector interface {
	// Correct returns the corrected word and a confidence in [0, 1]. When ok
	// is false, corrected equals word and confidence is 0.
	Correct(word string) (corrected string, confidence float64, ok bool)
}

// Correction records a single word-level substitution made by the
// phonetic stage.
type Correction struct {
	Original   string
	Corrected  string
	Confidence float64
}

// Result is the output of [Normalizer.Run].
type Result struct {
	// Raw is the input as received.
	Raw string

	// Text is the normalized token stream.
	Text string

	// Corrections lists phonetic substitutions in order. Nil when none were
	// made.
	Corrections []Correction
}
