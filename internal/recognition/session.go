// Package recognition keeps a speech-recognition backend listening for as
// long as the user wants voice input.
//
// Browser and offline recognizers both stop on their own: after silence,
// after a network hiccup, or after a final result. A [Session] hides that by
// restarting the backend after a short pause until [Session.Stop] is called.
// It also clears and restarts a backend that has gone quiet for the
// inactivity timeout, so stale partial hypotheses never linger.
//
// All state lives in the goroutine running [Session.Run]. Every other method
// posts a typed event to it.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxmate/pkg/provider/stt"
	"github.com/MrWong99/voxmate/pkg/types"
)

// ErrNoSpeechCapability is returned by [Session.Start] when no recognition
// backend is available at all.
var ErrNoSpeechCapability = errors.New("recognition: no speech recognition capability")

// Default timing parameters.
const (
	DefaultRestartPause = 300 * time.Millisecond
	DefaultInactivity   = 5 * time.Second
	DefaultStartTimeout = 5 * time.Second
	defaultMaxBackoff   = 10 * time.Second
	defaultMaxRetries   = 8
)

// State is the recognition lifecycle state.
type State int

const (
	Idle State = iota
	Starting
	Listening
	AwaitingRestart
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Listening:
		return "listening"
	case AwaitingRestart:
		return "awaiting_restart"
	}
	return "unknown"
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evBackendEnded
	evResult
	evInactivity
	evRestart
	evReady
	evStartTimeout
)

type event struct {
	kind eventKind

	// seq ties backend and timer events to the handle or timer that
	// produced them; stale ones are dropped.
	seq uint64

	transcript types.Transcript
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithStreamConfig sets the config passed to every StartStream call.
func WithStreamConfig(cfg stt.StreamConfig) Option {
	return func(s *Session) { s.streamCfg = cfg }
}

// WithRestartPause sets the pause between a backend ending and the restart.
func WithRestartPause(d time.Duration) Option {
	return func(s *Session) { s.restartPause = d }
}

// WithInactivity sets the quiet period after which the backend is cleared and
// restarted. Zero disables the timer.
func WithInactivity(d time.Duration) Option {
	return func(s *Session) { s.inactivity = d }
}

// WithStartTimeout bounds how long a backend may take to confirm that
// capture has begun. An unconfirmed start counts as a failed start.
func WithStartTimeout(d time.Duration) Option {
	return func(s *Session) { s.startTimeout = d }
}

// WithMaxRetries limits consecutive failed starts before the session gives up
// and returns to Idle.
func WithMaxRetries(n int) Option {
	return func(s *Session) { s.maxRetries = n }
}

// WithOnStateChange registers a transition callback. It runs on the session
// goroutine and must not block.
func WithOnStateChange(fn func(from, to State)) Option {
	return func(s *Session) { s.onStateChange = fn }
}

// WithOnReset registers a callback fired when the inactivity timer clears the
// backend. Pending confirmations should be discarded.
func WithOnReset(fn func()) Option {
	return func(s *Session) { s.onReset = fn }
}

// WithOnError registers a callback for backend start failures.
func WithOnError(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// Session is the recognition state machine.
type Session struct {
	provider     stt.Provider
	streamCfg    stt.StreamConfig
	restartPause time.Duration
	inactivity   time.Duration
	startTimeout time.Duration
	maxRetries   int

	onStateChange func(from, to State)
	onReset       func()
	onError       func(error)

	events  chan event
	results chan types.Transcript
	done    chan struct{}

	mu     sync.Mutex
	state  State
	handle stt.SessionHandle

	// Owned by the Run goroutine.
	manualStop    bool
	handleSeq     uint64
	timerSeq      uint64
	inactiveTimer *time.Timer
	restartTimer  *time.Timer
	startTimer    *time.Timer
	failures      int
	backoff       time.Duration
}

// New creates an idle session. provider may be nil, in which case Start
// returns [ErrNoSpeechCapability].
func New(provider stt.Provider, opts ...Option) *Session {
	s := &Session{
		provider:     provider,
		streamCfg:    stt.StreamConfig{SampleRate: 16000, Channels: 1, Continuous: true},
		restartPause: DefaultRestartPause,
		inactivity:   DefaultInactivity,
		startTimeout: DefaultStartTimeout,
		maxRetries:   defaultMaxRetries,
		events:       make(chan event, 64),
		results:      make(chan types.Transcript, 64),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Results delivers partial and final transcripts in arrival order. It is
// closed when Run returns.
func (s *Session) Results() <-chan types.Transcript { return s.results }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start asks the session to begin listening. It returns
// [ErrNoSpeechCapability] when there is no backend; start failures after
// that are retried with backoff and reported through the error callback.
func (s *Session) Start(ctx context.Context) error {
	if s.provider == nil {
		return ErrNoSpeechCapability
	}
	return s.post(ctx, event{kind: evStart})
}

// Stop halts recognition and suppresses automatic restarts until the next
// Start.
func (s *Session) Stop(ctx context.Context) error {
	return s.post(ctx, event{kind: evStop})
}

// SendAudio forwards a PCM chunk to the active backend. Chunks arriving while
// no backend is open are dropped.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	if err := h.SendAudio(chunk); err != nil && !errors.Is(err, stt.ErrClosed) {
		return fmt.Errorf("recognition: send audio: %w", err)
	}
	return nil
}

func (s *Session) post(ctx context.Context, ev event) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return errors.New("recognition: session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postAsync is used by timers and backend forwarders.
func (s *Session) postAsync(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run drives the state machine until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.results)
	defer close(s.done)
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, ev event) {
	switch ev.kind {
	case evStart:
		s.manualStop = false
		s.failures = 0
		s.backoff = s.restartPause
		if st := s.State(); st == Idle || st == AwaitingRestart {
			s.open(ctx)
		}

	case evStop:
		s.manualStop = true
		s.stopTimers()
		s.closeHandle()
		s.transition(Idle)

	case evReady:
		if ev.seq != s.handleSeq || s.State() != Starting {
			return
		}
		s.listen()

	case evStartTimeout:
		if ev.seq != s.handleSeq || s.State() != Starting {
			return
		}
		s.closeHandle()
		s.startFailed(fmt.Errorf("recognition: backend did not confirm capture within %s", s.startTimeout))

	case evBackendEnded:
		if ev.seq != s.handleSeq {
			return
		}
		s.closeHandle()
		if s.manualStop {
			s.transition(Idle)
			return
		}
		if s.State() == Starting {
			s.startFailed(errors.New("recognition: backend ended before capture began"))
			return
		}
		slog.Debug("recognition: backend ended, restarting", "pause", s.restartPause)
		s.scheduleRestart(s.restartPause)

	case evResult:
		if ev.seq != s.handleSeq {
			return
		}
		s.armInactivity()
		select {
		case s.results <- ev.transcript:
		default:
			slog.Warn("recognition: result dropped, consumer too slow", "text", ev.transcript.Text)
		}

	case evInactivity:
		if ev.seq != s.timerSeq || s.State() != Listening {
			return
		}
		slog.Debug("recognition: inactivity timeout, clearing backend")
		s.closeHandle()
		if s.onReset != nil {
			s.onReset()
		}
		s.scheduleRestart(s.restartPause)

	case evRestart:
		if ev.seq != s.timerSeq || s.manualStop || s.State() != AwaitingRestart {
			return
		}
		s.open(ctx)
	}
}

// open starts a backend stream and waits in Starting until the backend
// confirms capture. Failures back off exponentially and give up after
// maxRetries.
func (s *Session) open(ctx context.Context) {
	s.transition(Starting)

	h, err := s.provider.StartStream(ctx, s.streamCfg)
	if err != nil {
		s.startFailed(fmt.Errorf("recognition: start backend: %w", err))
		return
	}

	s.handleSeq++
	seq := s.handleSeq
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()

	ended := make(chan struct{})
	go s.forward(h, seq, ended)

	select {
	case <-h.Ready():
		s.listen()
		return
	default:
	}
	go s.awaitReady(h, seq, ended)
	if s.startTimeout > 0 {
		s.startTimer = time.AfterFunc(s.startTimeout, func() {
			s.postAsync(event{kind: evStartTimeout, seq: seq})
		})
	}
}

// listen completes a start once the backend has confirmed capture.
func (s *Session) listen() {
	s.stopStartTimer()
	s.failures = 0
	s.backoff = s.restartPause
	s.transition(Listening)
	s.armInactivity()
}

// startFailed records a failed start and schedules the next attempt, or
// returns to Idle once maxRetries is reached.
func (s *Session) startFailed(err error) {
	s.stopStartTimer()
	s.failures++
	slog.Warn("recognition: backend start failed",
		"attempt", s.failures,
		"max_retries", s.maxRetries,
		"err", err,
	)
	if s.onError != nil {
		s.onError(err)
	}
	if s.failures >= s.maxRetries {
		s.transition(Idle)
		return
	}
	pause := s.backoff
	s.backoff *= 2
	if s.backoff > defaultMaxBackoff {
		s.backoff = defaultMaxBackoff
	}
	s.scheduleRestart(pause)
}

// awaitReady reports the backend's capture confirmation to the event loop.
func (s *Session) awaitReady(h stt.SessionHandle, seq uint64, ended <-chan struct{}) {
	select {
	case <-h.Ready():
		s.postAsync(event{kind: evReady, seq: seq})
	case <-ended:
	case <-s.done:
	}
}

// forward copies a handle's output into the event loop and reports the end
// of the backend once both channels are closed.
func (s *Session) forward(h stt.SessionHandle, seq uint64, ended chan<- struct{}) {
	defer close(ended)
	partials, finals := h.Partials(), h.Finals()
	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			s.postAsync(event{kind: evResult, seq: seq, transcript: t})
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			s.postAsync(event{kind: evResult, seq: seq, transcript: t})
		case <-s.done:
			return
		}
	}
	s.postAsync(event{kind: evBackendEnded, seq: seq})
}

func (s *Session) scheduleRestart(pause time.Duration) {
	s.stopTimers()
	s.transition(AwaitingRestart)
	seq := s.timerSeq
	s.restartTimer = time.AfterFunc(pause, func() {
		s.postAsync(event{kind: evRestart, seq: seq})
	})
}

func (s *Session) armInactivity() {
	if s.inactiveTimer != nil {
		s.inactiveTimer.Stop()
	}
	s.timerSeq++
	if s.inactivity <= 0 {
		return
	}
	seq := s.timerSeq
	s.inactiveTimer = time.AfterFunc(s.inactivity, func() {
		s.postAsync(event{kind: evInactivity, seq: seq})
	})
}

func (s *Session) stopStartTimer() {
	if s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
	}
}

func (s *Session) stopTimers() {
	s.stopStartTimer()
	s.timerSeq++
	if s.inactiveTimer != nil {
		s.inactiveTimer.Stop()
		s.inactiveTimer = nil
	}
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}

// closeHandle closes the active backend and invalidates its pending events.
func (s *Session) closeHandle() {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()
	s.handleSeq++
	if h != nil {
		if err := h.Close(); err != nil {
			slog.Debug("recognition: close backend", "err", err)
		}
	}
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from == to {
		return
	}
	slog.Debug("recognition: state change", "from", from, "to", to)
	if s.onStateChange != nil {
		s.onStateChange(from, to)
	}
}

func (s *Session) shutdown() {
	s.stopTimers()
	s.closeHandle()
	s.transition(Idle)
}
