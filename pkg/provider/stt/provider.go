// Package stt defines the Provider interface for speech-to-text backends.
//
// A provider wraps either the browser's native recognizer (reached over the
// extension bridge) or an in-process offline engine such as Vosk, and exposes
// a uniform streaming interface. The central abstraction is SessionHandle:
// once opened, a session accepts raw PCM audio frames (when the backend needs
// them) and emits two streams of Transcript values, low-latency partials and
// authoritative finals. A session ends when the backend stops on its own;
// both channels are then closed and the caller decides whether to restart.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/voxmate/pkg/types"
)

// StreamConfig describes the audio format and recognition hints for a new
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Offline engines expect 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	Language string

	// Grammar restricts recognition to the listed phrases when the backend
	// supports it. Empty means free-form recognition.
	Grammar []string

	// Continuous asks the backend to keep listening across utterances
	// instead of ending after the first final result.
	Continuous bool
}

// SessionHandle represents an open streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of 16-bit little-endian PCM matching the
	// agreed StreamConfig. Backends that capture audio themselves return
	// ErrNotSupported. Calling SendAudio after Close returns ErrClosed.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. Closed when the session ends.
	Partials() <-chan types.Transcript

	// Finals emits authoritative transcripts. Closed when the session ends.
	Finals() <-chan types.Transcript

	// Ready is closed once the backend confirms that capture has begun.
	// Backends that are capturing by the time StartStream returns close it
	// before returning. It is never closed for a backend that ends or
	// fails before confirming.
	Ready() <-chan struct{}

	// SetGrammar replaces the active phrase list without restarting the
	// session. Backends without grammar support return ErrNotSupported.
	SetGrammar(phrases []string) error

	// Close terminates the session and releases its resources. After Close
	// returns, Partials and Finals are closed. Calling Close more than once
	// is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new streaming session. The returned handle accepts
	// audio immediately; recognition is live once its Ready channel is
	// closed. The caller owns the handle.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
