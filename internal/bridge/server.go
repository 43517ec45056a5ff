// Package bridge is the websocket link between voxmate and the browser
// extension.
//
// Every tab opens one connection to /ws and announces itself with a hello
// message. The resulting [Conn] is what the rest of the service uses to reach
// the page: it executes moves, speaks, exposes the page's game object as an
// oracle host link and runs the browser's native speech recognizer as an
// stt.Provider. Everything else the tab pushes (microphone audio, move list,
// move events, FEN, settings) is handed to a per-tab [Handler].
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/internal/observe"
	"github.com/MrWong99/voxmate/pkg/types"
)

const (
	// DefaultHelloTimeout bounds the wait for the hello message.
	DefaultHelloTimeout = 5 * time.Second

	// readLimit allows audio chunks of a few hundred milliseconds.
	readLimit = 1 << 20
)

// Handler receives the pushes of one tab. Methods are called from the
// connection's read loop, one at a time.
type Handler interface {
	HandleAudio(ctx context.Context, frame types.AudioFrame)
	HandleMoveList(ctx context.Context, m MoveListMsg)
	HandleMoveEvent(ctx context.Context, ev types.MoveEvent)
	HandleFEN(ctx context.Context, fen string)
	HandleSettings(ctx context.Context, s controller.Settings)

	// Close is called once after the connection has gone away.
	Close() error
}

// ConnectFunc builds the handler for a newly announced tab. Returning an
// error rejects the connection.
type ConnectFunc func(ctx context.Context, c *Conn) (Handler, error)

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithOriginPatterns sets the host patterns allowed to connect in addition
// to same-origin requests (for example "chrome-extension://*").
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// WithHelloTimeout overrides [DefaultHelloTimeout].
func WithHelloTimeout(d time.Duration) Option {
	return func(s *Server) { s.helloTimeout = d }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server accepts extension connections. It implements [http.Handler].
type Server struct {
	connect      ConnectFunc
	origins      []string
	helloTimeout time.Duration
	metrics      *observe.Metrics

	anon atomic.Uint64

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewServer creates a [Server] that calls connect for every new tab.
func NewServer(connect ConnectFunc, opts ...Option) *Server {
	s := &Server{
		connect:      connect,
		helloTimeout: DefaultHelloTimeout,
		conns:        make(map[string]*Conn),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Conn returns the live connection of tab.
func (s *Server) Conn(tab string) (*Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[tab]
	return c, ok
}

// Tabs returns the identifiers of all connected tabs.
func (s *Server) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tabs := make([]string, 0, len(s.conns))
	for tab := range s.conns {
		tabs = append(tabs, tab)
	}
	return tabs
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		slog.Warn("bridge: websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	ws.SetReadLimit(readLimit)

	ctx := r.Context()
	hello, err := s.readHello(ctx, ws)
	if err != nil {
		slog.Warn("bridge: no hello", "remote", r.RemoteAddr, "err", err)
		_ = ws.Close(websocket.StatusPolicyViolation, "expected hello")
		return
	}
	if hello.Tab == "" {
		hello.Tab = "tab-" + strconv.FormatUint(s.anon.Add(1), 10)
	}

	c := newConn(context.WithoutCancel(ctx), ws, hello)
	h, err := s.connect(ctx, c)
	if err != nil {
		slog.Warn("bridge: connection rejected", "tab", hello.Tab, "err", err)
		c.close(websocket.StatusPolicyViolation, "rejected")
		return
	}
	s.register(c)
	s.metrics.ActiveTabs.Add(ctx, 1)
	slog.Info("bridge: tab connected", "tab", hello.Tab, "host_game", hello.Capabilities.HostGame)

	defer func() {
		s.unregister(c)
		s.metrics.ActiveTabs.Add(context.WithoutCancel(ctx), -1)
		c.close(websocket.StatusNormalClosure, "bye")
		if err := h.Close(); err != nil {
			slog.Warn("bridge: handler close", "tab", hello.Tab, "err", err)
		}
		slog.Info("bridge: tab disconnected", "tab", hello.Tab)
	}()

	if err := c.readLoop(ctx, h); err != nil {
		slog.Debug("bridge: read loop ended", "tab", hello.Tab, "err", err)
	}
}

func (s *Server) readHello(ctx context.Context, ws *websocket.Conn) (Hello, error) {
	ctx, cancel := context.WithTimeout(ctx, s.helloTimeout)
	defer cancel()

	_, data, err := ws.Read(ctx)
	if err != nil {
		return Hello{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Hello{}, fmt.Errorf("bridge: decode envelope: %w", err)
	}
	if env.Type != TypeHello {
		return Hello{}, fmt.Errorf("bridge: first message is %q", env.Type)
	}
	var h Hello
	if err := env.decode(&h); err != nil {
		return Hello{}, err
	}
	return h, nil
}

// register tracks c, replacing an older connection of the same tab.
func (s *Server) register(c *Conn) {
	s.mu.Lock()
	old := s.conns[c.tab]
	s.conns[c.tab] = c
	s.mu.Unlock()
	if old != nil {
		old.close(websocket.StatusGoingAway, "replaced")
	}
}

func (s *Server) unregister(c *Conn) {
	s.mu.Lock()
	if s.conns[c.tab] == c {
		delete(s.conns, c.tab)
	}
	s.mu.Unlock()
}

// readLoop dispatches inbound messages until the connection fails.
func (c *Conn) readLoop(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("bridge: bad envelope", "tab", c.tab, "err", err)
			continue
		}
		if err := c.dispatch(ctx, h, env); err != nil {
			slog.Debug("bridge: bad message", "tab", c.tab, "type", env.Type, "err", err)
		}
	}
}

func (c *Conn) dispatch(ctx context.Context, h Handler, env Envelope) error {
	switch env.Type {
	case TypeReply:
		var r Reply
		if err := env.decode(&r); err != nil {
			return err
		}
		if !c.deliver(env.ID, r) {
			slog.Debug("bridge: reply without request", "tab", c.tab, "id", env.ID)
		}

	case TypeTranscript:
		var m TranscriptMsg
		if err := env.decode(&m); err != nil {
			return err
		}
		c.handleTranscript(m)

	case TypeRecognition:
		var m RecognitionMsg
		if err := env.decode(&m); err != nil {
			return err
		}
		c.handleRecognition(m)

	case TypeAudio:
		var m AudioMsg
		if err := env.decode(&m); err != nil {
			return err
		}
		pcm, err := base64.StdEncoding.DecodeString(m.PCM)
		if err != nil {
			return fmt.Errorf("bridge: decode audio: %w", err)
		}
		h.HandleAudio(ctx, types.AudioFrame{Data: pcm, SampleRate: m.SampleRate, Channels: 1})

	case TypeMoveList:
		var m MoveListMsg
		if err := env.decode(&m); err != nil {
			return err
		}
		h.HandleMoveList(ctx, m)

	case TypeMoveEvent:
		var m MoveEventMsg
		if err := env.decode(&m); err != nil {
			return err
		}
		h.HandleMoveEvent(ctx, m.Event())

	case TypeFEN:
		var m FENMsg
		if err := env.decode(&m); err != nil {
			return err
		}
		h.HandleFEN(ctx, m.FEN)

	case TypeSettings:
		var s controller.Settings
		if err := env.decode(&s); err != nil {
			return err
		}
		h.HandleSettings(ctx, s)

	case TypeHello:
		slog.Debug("bridge: duplicate hello ignored", "tab", c.tab)

	default:
		return fmt.Errorf("bridge: unknown message type %q", env.Type)
	}
	return nil
}
