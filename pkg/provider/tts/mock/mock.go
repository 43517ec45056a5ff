// Package mock provides a test double for the tts.Speaker interface.
//
// Example:
//
//	s := &mock.Speaker{}
//	s.Speak(ctx, "confirm?")
//	s.Phrases() // ["confirm?"]
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxmate/pkg/provider/tts"
)

// Speaker is a mock implementation of tts.Speaker.
type Speaker struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned by every Speak call.
	SpeakErr error

	// CancelErr, if non-nil, is returned by every Cancel call.
	CancelErr error

	// SpeakCalls records the text of every Speak call in order.
	SpeakCalls []string

	// CancelCallCount is the number of Cancel calls.
	CancelCallCount int
}

// Speak records the call and returns SpeakErr.
func (s *Speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = append(s.SpeakCalls, text)
	return s.SpeakErr
}

// Cancel records the call and returns CancelErr.
func (s *Speaker) Cancel(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelCallCount++
	return s.CancelErr
}

// Phrases returns a copy of SpeakCalls. Thread-safe.
func (s *Speaker) Phrases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.SpeakCalls...)
}

// Reset clears all recorded calls. Thread-safe.
func (s *Speaker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = nil
	s.CancelCallCount = 0
}

var _ tts.Speaker = (*Speaker)(nil)
