// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled transcripts and inspect which
// audio chunks were delivered.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.FinalsCh <- types.Transcript{Text: "e4", IsFinal: true}
//	sess.End() // backend stopped on its own
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxmate/pkg/provider/stt"
	"github.com/MrWong99/voxmate/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by StartStream. If nil, each call
	// creates a fresh Session, available afterwards through Sessions.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall

	// OnStart, if set, receives every session created by StartStream.
	OnStart func(*Session)

	// DeferReady makes sessions created by StartStream wait for
	// Session.MarkReady instead of being ready at once.
	DeferReady bool

	sessions []*Session
}

// StartStream records the call and returns Session, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		err := p.StartStreamErr
		p.mu.Unlock()
		return nil, err
	}
	if p.Session != nil {
		s := p.Session
		p.mu.Unlock()
		return s, nil
	}
	s := NewSession()
	if p.DeferReady {
		s = NewPendingSession()
	}
	p.sessions = append(p.sessions, s)
	onStart := p.OnStart
	p.mu.Unlock()

	if onStart != nil {
		onStart(s)
	}
	return s, nil
}

// StartCount returns the number of StartStream calls. Thread-safe.
func (p *Provider) StartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Sessions returns the sessions created by StartStream so far. Thread-safe.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
	p.sessions = nil
}

var _ stt.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of stt.SessionHandle. Tests send on
// PartialsCh and FinalsCh and call End to simulate the backend stopping.
type Session struct {
	mu sync.Mutex

	// PartialsCh is the channel returned by Partials().
	PartialsCh chan types.Transcript

	// FinalsCh is the channel returned by Finals().
	FinalsCh chan types.Transcript

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SetGrammarErr, if non-nil, is returned by every SetGrammar call.
	SetGrammarErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// SetGrammarCalls records every phrase list passed to SetGrammar.
	SetGrammarCalls [][]string

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	ready     chan struct{}
	readyOnce sync.Once
	endOnce   sync.Once
}

// NewSession returns a ready Session with buffered channels.
func NewSession() *Session {
	s := NewPendingSession()
	s.MarkReady()
	return s
}

// NewPendingSession returns a Session whose Ready channel stays open until
// MarkReady is called, like a backend still waiting for the microphone.
func NewPendingSession() *Session {
	return &Session{
		PartialsCh: make(chan types.Transcript, 16),
		FinalsCh:   make(chan types.Transcript, 16),
		ready:      make(chan struct{}),
	}
}

// Ready returns the channel closed by MarkReady.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// MarkReady confirms that capture has begun. Safe to call more than once.
func (s *Session) MarkReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Partials returns PartialsCh.
func (s *Session) Partials() <-chan types.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PartialsCh
}

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan types.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinalsCh
}

// SetGrammar records the call and returns SetGrammarErr.
func (s *Session) SetGrammar(phrases []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetGrammarCalls = append(s.SetGrammarCalls, append([]string(nil), phrases...))
	return s.SetGrammarErr
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// SendAudioCallAt returns the i-th recorded SendAudio call. Thread-safe.
func (s *Session) SendAudioCallAt(i int) SendAudioCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SendAudioCalls[i]
}

// End closes both output channels, as a backend does when it stops on its
// own. Safe to call more than once.
func (s *Session) End() {
	s.endOnce.Do(func() {
		close(s.PartialsCh)
		close(s.FinalsCh)
	})
}

// Close records the call, ends the session and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	err := s.CloseErr
	s.mu.Unlock()
	s.End()
	return err
}

// Closes returns CloseCallCount. Thread-safe.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.SetGrammarCalls = nil
	s.CloseCallCount = 0
}

var _ stt.SessionHandle = (*Session)(nil)
