package transcript

import (
	"sort"
	"strings"
)

// Option is a functional option for configuring a [Normalizer].
type Option func(*Normalizer)

// WithCorrector attaches a [WordCorrector] that runs on words no other stage
// recognises. When nil (the default), phonetic correction is skipped.
func WithCorrector(c WordCorrector) Option {
	return func(n *Normalizer) {
		n.corrector = c
	}
}

// WithMinCorrectionLength sets the shortest word the corrector is allowed to
// touch. Shorter words are too ambiguous to correct reliably. Default: 4.
func WithMinCorrectionLength(n int) Option {
	return func(nz *Normalizer) {
		nz.minCorrectLen = n
	}
}

// Normalizer converts raw transcripts into canonical command text. It is
// read-only after construction and safe for concurrent use.
type Normalizer struct {
	corrector     WordCorrector
	minCorrectLen int
}

// New returns a [Normalizer] configured with opts.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{minCorrectLen: 4}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize returns the canonical form of raw.
func (n *Normalizer) Normalize(raw string) string {
	return n.Run(raw).Text
}

// Run normalizes raw and reports the phonetic corrections that were applied.
func (n *Normalizer) Run(raw string) Result {
	res := Result{Raw: raw}

	tokens := tokenize(raw)
	tokens = stripFillers(tokens)
	tokens, res.Corrections = n.correct(tokens)
	tokens = substitute(tokens, homophones)
	tokens = substitute(tokens, numberWords)
	tokens = replacePhrases(tokens, castlingPhrases)
	tokens = normalizeCaptures(tokens)
	tokens = normalizePromotions(tokens)
	tokens = compactSquares(tokens)

	res.Text = strings.Join(tokens, " ")
	return res
}

// tokenize lower-cases raw and splits it on anything that is not a letter,
// digit, '=' or '-'.
func tokenize(raw string) []string {
	return strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '=', r == '-':
			return false
		}
		return true
	})
}

// ── Stage 1: fillers ──────────────────────────────────────────────────────────

// stripFillers drops filler words. The article "a" is dropped only when it is
// not next to a rank and does not start a file phrase, so "a four",
// "a to a four" and "a takes b five" keep their file letter.
func stripFillers(tokens []string) []string {
	out := tokens[:0:0]
	for i, t := range tokens {
		if fillers[t] {
			continue
		}
		if t == "a" {
			prevRank := i > 0 && rankWord(tokens[i-1])
			nextRank := i+1 < len(tokens) && rankWord(tokens[i+1])
			if !prevRank && !nextRank && !leadsFile(tokens[i+1:]) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// leadsFile reports whether rest is "to" or a capture word followed by a
// file, which makes a preceding "a" a source file.
func leadsFile(rest []string) bool {
	if len(rest) < 2 || (rest[0] != "to" && !captureWords[rest[0]]) {
		return false
	}
	return fileWord(rest[1])
}

// fileWord reports whether t will become a file letter in a later stage.
func fileWord(t string) bool {
	if isFile(t) {
		return true
	}
	h, ok := homophones[t]
	return ok && isFile(h)
}

// rankWord reports whether t will become a rank digit in a later stage.
func rankWord(t string) bool {
	if isRank(t) {
		return true
	}
	if _, ok := numberWords[t]; ok {
		return true
	}
	if h, ok := homophones[t]; ok && isRank(h) {
		return true
	}
	return false
}

// ── Stage 2: corrections ──────────────────────────────────────────────────────

func (n *Normalizer) correct(tokens []string) ([]string, []Correction) {
	if n.corrector == nil {
		return tokens, nil
	}
	var corrections []Correction
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t
		if len(t) < n.minCorrectLen || !alphabetic(t) || known(t) {
			continue
		}
		if c, conf, ok := n.corrector.Correct(t); ok {
			out[i] = c
			corrections = append(corrections, Correction{Original: t, Corrected: c, Confidence: conf})
		}
	}
	return out, corrections
}

func substitute(tokens []string, table map[string]string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if r, ok := table[t]; ok {
			out[i] = r
		} else {
			out[i] = t
		}
	}
	return out
}

// ── Stage 4: castling ─────────────────────────────────────────────────────────

type phrase struct {
	words []string
	out   []string
}

var (
	kingside  = []string{"castle", "kingside"}
	queenside = []string{"castle", "queenside"}

	castlingPhrases = buildPhrases(map[string][]string{
		"o-o":                  kingside,
		"0-0":                  kingside,
		"oo":                   kingside,
		"o o":                  kingside,
		"oh oh":                kingside,
		"zero zero":            kingside,
		"castle kingside":      kingside,
		"castle king side":     kingside,
		"castle on kingside":   kingside,
		"castle on king side":  kingside,
		"castle short":         kingside,
		"short castle":         kingside,
		"kingside castle":      kingside,
		"king side castle":     kingside,
		"o-o-o":                queenside,
		"0-0-0":                queenside,
		"ooo":                  queenside,
		"o o o":                queenside,
		"oh oh oh":             queenside,
		"zero zero zero":       queenside,
		"castle queenside":     queenside,
		"castle queen side":    queenside,
		"castle on queenside":  queenside,
		"castle on queen side": queenside,
		"castle long":          queenside,
		"long castle":          queenside,
		"queenside castle":     queenside,
		"queen side castle":    queenside,
	})
)

// buildPhrases orders phrases longest first so "o o o" wins over "o o".
func buildPhrases(m map[string][]string) []phrase {
	out := make([]phrase, 0, len(m))
	for k, v := range m {
		out = append(out, phrase{words: strings.Fields(k), out: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].words) != len(out[j].words) {
			return len(out[i].words) > len(out[j].words)
		}
		return strings.Join(out[i].words, " ") < strings.Join(out[j].words, " ")
	})
	return out
}

func replacePhrases(tokens []string, phrases []phrase) []string {
	var out []string
	for i := 0; i < len(tokens); {
		matched := false
		for _, p := range phrases {
			if hasPrefix(tokens[i:], p.words) {
				out = append(out, p.out...)
				i += len(p.words)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return out
}

func hasPrefix(tokens, words []string) bool {
	if len(tokens) < len(words) {
		return false
	}
	for i, w := range words {
		if tokens[i] != w {
			return false
		}
	}
	return true
}

// ── Stage 5: captures ─────────────────────────────────────────────────────────

var captureWords = map[string]bool{
	"takes": true, "take": true, "captures": true, "capture": true, "capturing": true, "x": true,
}

func normalizeCaptures(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if captureWords[t] {
			out[i] = "x"
		} else {
			out[i] = t
		}
	}
	return out
}

// ── Stage 6: promotions ───────────────────────────────────────────────────────

// normalizePromotions rewrites "promote to queen", "equals knight" and
// written forms such as "e8=q" into "=Q" markers.
func normalizePromotions(tokens []string) []string {
	var out []string
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]

		if j := strings.IndexByte(t, '='); j >= 0 && j+1 < len(t) {
			if l, ok := pieceLetters[t[j+1:]]; ok {
				out = append(out, t[:j]+"="+l)
				continue
			}
		}

		switch t {
		case "promote", "promotes", "promoting", "promotion", "equals", "=":
		default:
			out = append(out, t)
			continue
		}

		k := i + 1
		if k < len(tokens) {
			switch tokens[k] {
			case "to", "2", "into", "in", "as":
				k++
			}
		}
		if k < len(tokens) {
			if l, ok := pieceLetters[tokens[k]]; ok {
				out = append(out, "="+l)
				i = k
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// ── Stage 7: squares ──────────────────────────────────────────────────────────

// compactSquares joins spaced file and rank pairs ("e 4", "4 e"), splits
// hyphenated coordinates ("e2-e4"), resolves "to" after a bare file letter
// into rank 2, attaches promotion markers to the preceding square and folds
// pawn captures into SAN ("e x d5" → "exd5").
func compactSquares(tokens []string) []string {
	tokens = splitHyphens(tokens)

	var out []string
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		next := ""
		if i+1 < len(tokens) {
			next = tokens[i+1]
		}

		switch {
		case isFile(t) && isRank(next):
			out = append(out, t+next)
			i++

		case t == "to" && rankTo(out, next):
			out[len(out)-1] += "2"

		case isRank(t) && isFile(next) && (i+2 >= len(tokens) || !isRank(tokens[i+2])):
			out = append(out, next+t)
			i++

		case strings.HasPrefix(t, "=") && len(out) > 0 && endsWithRank(out[len(out)-1]):
			out[len(out)-1] += t

		default:
			out = append(out, t)
		}
	}
	return foldPawnCaptures(out)
}

// foldPawnCaptures joins a bare source file, the capture marker and the
// target square into one SAN token. A file after a piece name is the piece's
// source file and is left for the piece phrase parser.
func foldPawnCaptures(tokens []string) []string {
	var out []string
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if isFile(t) && i+2 < len(tokens) && tokens[i+1] == "x" && startsWithSquare(tokens[i+2]) {
			_, afterPiece := pieceNames[prev(tokens, i)]
			if !afterPiece {
				out = append(out, t+"x"+tokens[i+2])
				i += 2
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func prev(tokens []string, i int) string {
	if i == 0 {
		return ""
	}
	return tokens[i-1]
}

func startsWithSquare(t string) bool {
	return len(t) >= 2 && isFile(t[:1]) && isRank(t[1:2])
}

// splitHyphens rewrites "e-4" as "e4" and "e2-e4" as "e2 e4". Castling
// tokens have already been consumed by stage 4.
func splitHyphens(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if !strings.Contains(t, "-") {
			out = append(out, t)
			continue
		}
		parts := strings.Split(t, "-")
		if len(parts) == 2 && isFile(parts[0]) && isRank(parts[1]) {
			out = append(out, parts[0]+parts[1])
			continue
		}
		for _, p := range parts {
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// rankTo reports whether "to" reads as the rank 2: it must follow a bare file
// letter that is not itself a piece's source file ("knight b to c3").
func rankTo(out []string, next string) bool {
	n := len(out)
	if n == 0 || !isFile(out[n-1]) || isRank(next) {
		return false
	}
	if n >= 2 {
		if _, piece := pieceNames[out[n-2]]; piece {
			return false
		}
	}
	return true
}

func isFile(t string) bool {
	return len(t) == 1 && t[0] >= 'a' && t[0] <= 'h'
}

func isRank(t string) bool {
	return len(t) == 1 && t[0] >= '1' && t[0] <= '8'
}

func endsWithRank(t string) bool {
	return len(t) >= 2 && isFile(t[len(t)-2:len(t)-1]) && isRank(t[len(t)-1:])
}

func alphabetic(t string) bool {
	for i := 0; i < len(t); i++ {
		if t[i] < 'a' || t[i] > 'z' {
			return false
		}
	}
	return true
}
