// Package types defines the shared types used across all voxmate packages.
//
// These types form the lingua franca between the speech providers, the board
// model, the resolver, and the oracles. Each package defines its own domain
// types; only cross-cutting data structures live here to avoid circular imports.
package types

import (
	"fmt"
	"strings"
	"time"
)

// AudioFrame represents a single frame of audio data flowing through the
// offline recognition pipeline.
type AudioFrame struct {
	// PCM audio data, 16-bit little-endian.
	Data []byte

	// SampleRate in Hz (e.g., 48000 from a browser capture, 16000 for Vosk).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Transcript represents a speech-to-text result. Both partial (interim) and
// final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// backend does not report confidence.
	Confidence float64

	// Words contains per-word detail when available (Vosk with SetWords).
	Words []WordDetail

	// Timestamp marks when the utterance was received, relative to session start.
	Timestamp time.Duration
}

// WordDetail holds per-word metadata from backends that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Color is the side a piece or move belongs to.
type Color int8

const (
	White Color = iota
	Black
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// String returns "white" or "black".
func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// PieceKind identifies a piece type independent of color. The zero value
// means "no piece".
type PieceKind byte

const (
	NoPiece PieceKind = 0
	Pawn    PieceKind = 'p'
	Knight  PieceKind = 'n'
	Bishop  PieceKind = 'b'
	Rook    PieceKind = 'r'
	Queen   PieceKind = 'q'
	King    PieceKind = 'k'
)

// KindOf returns the piece kind for a board code such as 'N' or 'q'.
// Unknown codes map to NoPiece.
func KindOf(code byte) PieceKind {
	switch code | 0x20 {
	case 'p', 'n', 'b', 'r', 'q', 'k':
		return PieceKind(code | 0x20)
	}
	return NoPiece
}

// ColorOf returns the color of a board code. Uppercase is White.
func ColorOf(code byte) Color {
	if code >= 'a' && code <= 'z' {
		return Black
	}
	return White
}

// Code returns the board code for k in color c.
func (k PieceKind) Code(c Color) byte {
	if k == NoPiece {
		return 0
	}
	if c == White {
		return byte(k) - 0x20
	}
	return byte(k)
}

// Letter returns the uppercase SAN letter for k ("N", "Q", ...). Pawns have
// no SAN letter and return 0.
func (k PieceKind) Letter() byte {
	if k == NoPiece || k == Pawn {
		return 0
	}
	return byte(k) - 0x20
}

// String returns the spoken piece name.
func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// LegalMove is a candidate move supplied by an oracle or derived from the
// shadow board.
type LegalMove struct {
	// From and To are squares in algebraic form ("e2", "e4").
	From string
	To   string

	// Piece is the board code of the moving piece ('P', 'n', ...).
	Piece byte

	// Promotion is the uppercase letter of the promotion piece, or 0.
	Promotion byte

	// SAN is the move in standard algebraic notation when the source knows it.
	SAN string
}

// Kind returns the kind of the moving piece.
func (m LegalMove) Kind() PieceKind { return KindOf(m.Piece) }

// PromotionKind returns the promotion piece kind, or NoPiece.
func (m LegalMove) PromotionKind() PieceKind { return KindOf(m.Promotion) }

// Coordinate returns the move in long coordinate form ("e7e8q").
func (m LegalMove) Coordinate() string {
	s := m.From + m.To
	if m.Promotion != 0 {
		s += strings.ToLower(string(m.Promotion))
	}
	return s
}

// String returns the SAN when known and the coordinate form otherwise.
func (m LegalMove) String() string {
	if m.SAN != "" {
		return m.SAN
	}
	return m.Coordinate()
}

// Spoken returns a short phrase suitable for text-to-speech prompts
// ("knight f3", "pawn e8 promote to queen").
func (m LegalMove) Spoken() string {
	s := fmt.Sprintf("%s %s to %s", m.Kind(), m.From, m.To)
	if p := m.PromotionKind(); p != NoPiece {
		s += " promote to " + p.String()
	}
	return s
}

// MoveEvent reports a move committed on the host board, own or opponent.
type MoveEvent struct {
	// SAN is the committed move in standard algebraic notation.
	SAN string

	// Ply is the zero-based half-move index when the source reports it, or -1.
	Ply int
}
