package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxmate/pkg/provider/stt"
	"github.com/MrWong99/voxmate/pkg/types"
)

var (
	_ stt.Provider      = (*Conn)(nil)
	_ stt.SessionHandle = (*nativeStream)(nil)
)

// StartStream starts the browser's speech recognizer for the tab. Results
// arrive as transcript messages and are delivered on the returned handle
// until the browser reports that recognition ended. Only one stream is
// active per connection; starting a new one ends the previous one.
func (c *Conn) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	ns := &nativeStream{
		conn:     c,
		partials: make(chan types.Transcript, 64),
		finals:   make(chan types.Transcript, 64),
		ready:    make(chan struct{}),
		start:    time.Now(),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	prev := c.native
	c.native = ns
	c.mu.Unlock()
	if prev != nil {
		prev.end()
	}

	if err := c.send(ctx, TypeRecognition, RecognitionMsg{Command: "start", Lang: cfg.Language}); err != nil {
		c.detach(ns)
		ns.end()
		return nil, err
	}
	return ns, nil
}

// detach forgets ns if it is still the active stream.
func (c *Conn) detach(ns *nativeStream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.native != ns {
		return false
	}
	c.native = nil
	return true
}

func (c *Conn) activeStream() *nativeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.native
}

// handleTranscript feeds a browser result into the active stream.
func (c *Conn) handleTranscript(m TranscriptMsg) {
	ns := c.activeStream()
	if ns == nil {
		slog.Debug("bridge: transcript without active stream", "tab", c.tab, "text", m.Text)
		return
	}
	ns.emit(types.Transcript{
		Text:       m.Text,
		IsFinal:    m.Final,
		Confidence: m.Confidence,
		Timestamp:  time.Since(ns.start),
	})
}

// fatalRecognitionErrors are browser recognizer error codes after which
// capture cannot continue without a new start.
var fatalRecognitionErrors = map[string]bool{
	"not-allowed":            true,
	"service-not-allowed":    true,
	"audio-capture":          true,
	"language-not-supported": true,
}

// handleRecognition processes lifecycle events of the browser recognizer.
// "started" marks the active stream ready. "ended" and fatal errors close it
// so the recognition session restarts it or gives up.
func (c *Conn) handleRecognition(m RecognitionMsg) {
	switch m.Event {
	case "started":
		slog.Debug("bridge: native recognition started", "tab", c.tab)
		if ns := c.activeStream(); ns != nil {
			ns.markReady()
		}
	case "ended":
		c.endActiveStream()
	case "error":
		if !fatalRecognitionErrors[m.Error] {
			slog.Debug("bridge: native recognition error", "tab", c.tab, "error", m.Error)
			return
		}
		slog.Warn("bridge: native recognition failed", "tab", c.tab, "error", m.Error)
		c.endActiveStream()
	}
}

func (c *Conn) endActiveStream() {
	if ns := c.activeStream(); ns != nil && c.detach(ns) {
		ns.end()
	}
}

// nativeStream is an stt.SessionHandle fed by transcript messages.
type nativeStream struct {
	conn     *Conn
	partials chan types.Transcript
	finals   chan types.Transcript
	ready    chan struct{}
	start    time.Time

	readyOnce sync.Once

	mu    sync.Mutex
	ended bool
}

// SendAudio is not supported: the browser captures audio itself.
func (s *nativeStream) SendAudio([]byte) error { return stt.ErrNotSupported }

func (s *nativeStream) Partials() <-chan types.Transcript { return s.partials }

func (s *nativeStream) Finals() <-chan types.Transcript { return s.finals }

// Ready is closed when the browser reports that recognition started.
func (s *nativeStream) Ready() <-chan struct{} { return s.ready }

func (s *nativeStream) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// SetGrammar is not supported by the browser recognizer.
func (s *nativeStream) SetGrammar([]string) error { return stt.ErrNotSupported }

// Close stops browser recognition and ends the stream.
func (s *nativeStream) Close() error {
	if !s.conn.detach(s) {
		s.end()
		return nil
	}
	s.end()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.conn.send(ctx, TypeRecognition, RecognitionMsg{Command: "stop"}); err != nil && !errors.Is(err, ErrClosed) {
		slog.Debug("bridge: stop native recognition", "tab", s.conn.tab, "err", err)
	}
	return nil
}

// emit delivers t without blocking the read loop; a full buffer drops it.
func (s *nativeStream) emit(t types.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	ch := s.partials
	if t.IsFinal {
		ch = s.finals
	}
	select {
	case ch <- t:
	default:
		slog.Warn("bridge: transcript dropped, consumer too slow", "tab", s.conn.tab, "final", t.IsFinal)
	}
}

func (s *nativeStream) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	close(s.partials)
	close(s.finals)
}
