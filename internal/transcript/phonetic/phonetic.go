// Package phonetic snaps misheard words onto the fixed chess command
// vocabulary using Double Metaphone encoding combined with Jaro-Winkler
// string similarity.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes of the input word
//     are compared against the precomputed codes of every vocabulary word.
//     Any shared code makes the vocabulary word a phonetic candidate.
//
//  2. Jaro-Winkler ranking: the phonetic candidate with the highest
//     similarity wins if it clears the phonetic threshold (default 0.78).
//     Without a phonetic candidate, pure Jaro-Winkler similarity against the
//     whole vocabulary must clear the stricter fuzzy threshold (default 0.88).
//
// "bishup" becomes "bishop" and "rock" becomes "rook", while words that sound
// like nothing in the vocabulary pass through untouched.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.78
	defaultFuzzyThreshold    = 0.88
)

// DefaultVocabulary is the set of words the resolver understands by name.
var DefaultVocabulary = []string{
	"pawn", "knight", "bishop", "rook", "queen", "king",
	"castle", "kingside", "queenside", "short", "long",
	"takes", "captures", "promote", "promotion",
	"yes", "confirm", "cancel", "clear", "resign", "draw",
	"accept", "decline", "offer", "undo",
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched word to be accepted. Default: 0.78.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate exists. Default: 0.88.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// WithVocabulary replaces [DefaultVocabulary].
func WithVocabulary(words []string) Option {
	return func(c *Corrector) {
		c.vocabulary = words
	}
}

type entry struct {
	word  string
	codes [2]string
}

// Corrector maps single words onto the vocabulary. It is read-only after
// construction and safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	vocabulary        []string
	entries           []entry
}

// New returns a [Corrector] with precomputed phonetic codes for its
// vocabulary.
func New(opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		vocabulary:        DefaultVocabulary,
	}
	for _, o := range opts {
		o(c)
	}
	c.entries = make([]entry, 0, len(c.vocabulary))
	for _, w := range c.vocabulary {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		p, s := matchr.DoubleMetaphone(w)
		c.entries = append(c.entries, entry{word: w, codes: [2]string{p, s}})
	}
	return c
}

// Correct returns the vocabulary word closest to word. When ok is false,
// corrected equals word and confidence is 0. Exact vocabulary hits return
// ok=false because nothing needs correcting.
func (c *Corrector) Correct(word string) (corrected string, confidence float64, ok bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return word, 0, false
	}
	p, s := matchr.DoubleMetaphone(w)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, e := range c.entries {
		if e.word == w {
			return word, 0, false
		}
		score := matchr.JaroWinkler(w, e.word, false)
		if sharesCode(p, s, e.codes) {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = e.word, score, true
			}
			continue
		}
		if !bestPhonetic && score >= c.fuzzyThreshold && score > bestScore {
			best, bestScore = e.word, score
		}
	}

	if best == "" {
		return word, 0, false
	}
	return best, bestScore, true
}

func sharesCode(p, s string, codes [2]string) bool {
	for _, in := range [2]string{p, s} {
		if in == "" {
			continue
		}
		if in == codes[0] || in == codes[1] {
			return true
		}
	}
	return false
}
