// Package tts defines the Speaker interface for spoken feedback.
//
// voxmate speaks short fixed phrases ("knight to f3, confirm?", "ambiguous,
// please specify a source"). Playback happens wherever the user is: in the
// browser through the extension bridge, or not at all when speech is turned
// off. A new phrase always interrupts the one still playing.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Speaker plays short phrases.
type Speaker interface {
	// Speak cancels any in-flight phrase and starts playing text. It returns
	// once playback has been handed to the backend, not when it finishes.
	Speak(ctx context.Context, text string) error

	// Cancel stops the in-flight phrase, if any.
	Cancel(ctx context.Context) error
}

// Nop is a Speaker that discards every phrase. It is used when spoken
// feedback is disabled.
type Nop struct{}

// Speak does nothing.
func (Nop) Speak(context.Context, string) error { return nil }

// Cancel does nothing.
func (Nop) Cancel(context.Context) error { return nil }

var _ Speaker = Nop{}
