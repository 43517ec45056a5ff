// Package resolve turns normalized transcript text into a move intent and
// matches that intent against the legal moves of the current position.
//
// Parsing is an ordered list of [Strategy] values. Each one recognises a
// single shape of utterance (a special command, an explicit coordinate pair,
// a piece phrase, compact SAN, loose squares) and the first strategy to
// produce an [Intent] wins. Matching then narrows the legal moves by
// destination, piece, promotion and source until exactly one candidate is
// left, none are, or several remain.
package resolve

import "github.com/MrWong99/voxmate/pkg/types"

// Outcome classifies a resolution.
type Outcome int

const (
	// NoParse means no strategy understood the text. Callers ignore it
	// silently; speech is noisy.
	NoParse Outcome = iota

	// Special means the text is a special command that needs no legal-move
	// lookup (yes, no, resign, ...).
	Special

	// Matched means exactly one legal move fits the intent.
	Matched

	// NoMatch means no legal move fits the intent.
	NoMatch

	// Ambiguous means several legal moves fit; the user has to name a source.
	Ambiguous
)

// String returns a short label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case NoParse:
		return "no_parse"
	case Special:
		return "command"
	case Matched:
		return "matched"
	case NoMatch:
		return "no_match"
	case Ambiguous:
		return "ambiguous"
	}
	return "unknown"
}

// Result is the output of [Resolver.Resolve].
type Result struct {
	Outcome Outcome
	Intent  Intent

	// Move is the single matching legal move for Matched outcomes.
	Move *types.LegalMove

	// Candidates holds every surviving move for Ambiguous outcomes.
	Candidates []types.LegalMove
}

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithStrategies replaces the default parser list.
func WithStrategies(s ...Strategy) Option {
	return func(r *Resolver) {
		r.strategies = s
	}
}

// Resolver runs the strategy list and the legal-move matcher. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	strategies []Strategy
}

// New returns a [Resolver] using [DefaultStrategies] unless overridden.
func New(opts ...Option) *Resolver {
	r := &Resolver{strategies: DefaultStrategies()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Parse returns the intent produced by the first matching strategy.
func (r *Resolver) Parse(text string) (Intent, bool) {
	for _, s := range r.strategies {
		if in, ok := s.Parse(text); ok {
			return in, true
		}
	}
	return Intent{}, false
}

// Resolve parses text and matches it against legal.
//
// Castling commands are matched to the king's two-file move so the caller
// receives a concrete move; other commands return the Special outcome.
func (r *Resolver) Resolve(text string, legal []types.LegalMove) Result {
	in, ok := r.Parse(text)
	if !ok {
		return Result{Outcome: NoParse}
	}
	switch in.Command {
	case NoCommand:
		return Disambiguate(in, legal)
	case CastleKingside, CastleQueenside:
		return matchCastle(in, legal)
	default:
		return Result{Outcome: Special, Intent: in}
	}
}

// Disambiguate narrows legal to the moves that fit in:
//
//   - the destination must equal Target;
//   - the piece must equal Piece, where an unspoken piece means a pawn unless
//     an exact source square was given;
//   - a spoken promotion must match exactly, and without one promotions are
//     excluded;
//   - From and FromFile, when present, must match the source.
func Disambiguate(in Intent, legal []types.LegalMove) Result {
	piece := in.Piece
	if piece == types.NoPiece && in.From == "" {
		piece = types.Pawn
	}

	var candidates []types.LegalMove
	for _, m := range legal {
		if m.To != in.Target {
			continue
		}
		if piece != types.NoPiece && m.Kind() != piece {
			continue
		}
		if m.PromotionKind() != in.Promotion {
			continue
		}
		if in.From != "" && m.From != in.From {
			continue
		}
		if in.FromFile != 0 && (len(m.From) == 0 || m.From[0] != in.FromFile) {
			continue
		}
		candidates = append(candidates, m)
	}

	switch len(candidates) {
	case 0:
		return Result{Outcome: NoMatch, Intent: in}
	case 1:
		m := candidates[0]
		return Result{Outcome: Matched, Intent: in, Move: &m}
	default:
		return Result{Outcome: Ambiguous, Intent: in, Candidates: candidates}
	}
}

func matchCastle(in Intent, legal []types.LegalMove) Result {
	wantFile := byte('g')
	if in.Command == CastleQueenside {
		wantFile = 'c'
	}
	for _, m := range legal {
		if m.Kind() != types.King || len(m.From) != 2 || len(m.To) != 2 {
			continue
		}
		if m.From[0] == 'e' && m.To[0] == wantFile && m.From[1] == m.To[1] {
			mv := m
			return Result{Outcome: Matched, Intent: in, Move: &mv}
		}
	}
	return Result{Outcome: NoMatch, Intent: in}
}
