package app_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voxmate/internal/app"
	"github.com/MrWong99/voxmate/internal/bridge"
	"github.com/MrWong99/voxmate/internal/config"
	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/internal/observe"
	sttmock "github.com/MrWong99/voxmate/pkg/provider/stt/mock"
	"github.com/MrWong99/voxmate/pkg/types"
)

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b"

// ── Helpers ───────────────────────────────────────────────────────────────────

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Controller.MoveListDebounce = 5 * time.Millisecond
	cfg.Recognition.RestartPause = 10 * time.Millisecond
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newApp(t *testing.T, cfg *config.Config, backends app.Backends, opts ...app.Option) (*app.App, *httptest.Server) {
	t.Helper()
	opts = append([]app.Option{app.WithMetrics(testMetrics(t))}, opts...)
	a, err := app.New(cfg, backends, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = a.Shutdown(context.Background())
	})
	return a, srv
}

// extension is a fake browser extension: it confirms recognition starts,
// acknowledges every execute request and records what the service sent.
type extension struct {
	t  *testing.T
	ws *websocket.Conn

	mu        sync.Mutex
	executes  []bridge.ExecuteMsg
	statuses  []string
	listening chan struct{}
	once      sync.Once
}

func dialExtension(t *testing.T, srv *httptest.Server, hello bridge.Hello) *extension {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close(websocket.StatusNormalClosure, "done") })

	e := &extension{t: t, ws: ws, listening: make(chan struct{})}
	e.send(bridge.TypeHello, "", hello)
	go e.readLoop()
	return e
}

func (e *extension) send(typ, id string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		e.t.Errorf("marshal %s: %v", typ, err)
		return
	}
	data, _ := json.Marshal(bridge.Envelope{Type: typ, ID: id, Payload: raw})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := e.ws.Write(ctx, websocket.MessageText, data); err != nil {
		e.t.Errorf("write %s: %v", typ, err)
	}
}

func (e *extension) readLoop() {
	for {
		_, data, err := e.ws.Read(context.Background())
		if err != nil {
			return
		}
		var env bridge.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case bridge.TypeStatus:
			var m bridge.StatusMsg
			_ = json.Unmarshal(env.Payload, &m)
			e.mu.Lock()
			e.statuses = append(e.statuses, m.Text)
			e.mu.Unlock()
		case bridge.TypeRecognition:
			var m bridge.RecognitionMsg
			_ = json.Unmarshal(env.Payload, &m)
			if m.Command == "start" {
				e.send(bridge.TypeRecognition, "", bridge.RecognitionMsg{Event: "started"})
				e.once.Do(func() { close(e.listening) })
			}
		case bridge.TypeExecute:
			var m bridge.ExecuteMsg
			_ = json.Unmarshal(env.Payload, &m)
			e.mu.Lock()
			e.executes = append(e.executes, m)
			e.mu.Unlock()
			e.send(bridge.TypeReply, env.ID, bridge.Reply{OK: true})
		}
	}
}

func (e *extension) executeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.executes)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func controllerOf(t *testing.T, a *app.App, tab string) *controller.Controller {
	t.Helper()
	var c *controller.Controller
	waitFor(t, "tab "+tab, func() bool {
		var ok bool
		c, ok = a.Tabs().Controller(tab)
		return ok
	})
	return c
}

func fenOf(c *controller.Controller) string {
	v, err := c.Snapshot(context.Background())
	if err != nil {
		return ""
	}
	return v.FEN
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestApp_Endpoints(t *testing.T) {
	t.Parallel()
	_, srv := newApp(t, testConfig(), app.Backends{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestApp_NativeVoiceMove(t *testing.T) {
	t.Parallel()
	a, srv := newApp(t, testConfig(), app.Backends{})

	ext := dialExtension(t, srv, bridge.Hello{
		Tab:          "t1",
		Capabilities: bridge.Capabilities{NativeSpeech: true},
		Settings:     &controller.Settings{AutoConfirm: true, EnableVoice: true},
	})

	select {
	case <-ext.listening:
	case <-time.After(3 * time.Second):
		t.Fatal("browser recognizer was never started")
	}
	ext.send(bridge.TypeTranscript, "", bridge.TranscriptMsg{Text: "e four", Final: true, Confidence: 0.9})

	waitFor(t, "execute request", func() bool { return ext.executeCount() == 1 })
	c := controllerOf(t, a, "t1")
	waitFor(t, "board after e4", func() bool { return strings.HasPrefix(fenOf(c), afterE4) })
}

func TestApp_OfflineRecognizerReceivesConvertedAudio(t *testing.T) {
	t.Parallel()
	offline := &sttmock.Provider{}
	a, srv := newApp(t, testConfig(), app.Backends{Offline: offline})

	ext := dialExtension(t, srv, bridge.Hello{
		Tab:      "t1",
		Settings: &controller.Settings{AutoConfirm: true, EnableVoice: true, UseVosk: true},
	})
	waitFor(t, "offline stream", func() bool { return len(offline.Sessions()) > 0 })
	sess := offline.Sessions()[0]

	// 20 ms of 48 kHz mono arrives as 320 samples at 16 kHz.
	pcm := base64.StdEncoding.EncodeToString(make([]byte, 960*2))
	waitFor(t, "audio at the recognizer", func() bool {
		ext.send(bridge.TypeAudio, "", bridge.AudioMsg{PCM: pcm, SampleRate: 48000})
		return sess.SendAudioCallCount() > 0
	})
	if got := len(sess.SendAudioCallAt(0).Chunk); got != 640 {
		t.Errorf("chunk = %d bytes, want 640", got)
	}

	sess.FinalsCh <- types.Transcript{Text: "e four", IsFinal: true, Confidence: 1}
	c := controllerOf(t, a, "t1")
	waitFor(t, "board after e4", func() bool { return strings.HasPrefix(fenOf(c), afterE4) })
}

func TestApp_ApplyConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	level := new(slog.LevelVar)
	a, srv := newApp(t, cfg, app.Backends{}, app.WithLogLevel(level))

	dialExtension(t, srv, bridge.Hello{Tab: "defaults"})
	dialExtension(t, srv, bridge.Hello{Tab: "own", Settings: &controller.Settings{EnableTTS: true}})
	def := controllerOf(t, a, "defaults")
	own := controllerOf(t, a, "own")

	next := *cfg
	next.Server.LogLevel = config.LogDebug
	next.Defaults = controller.Settings{AutoConfirm: true}
	a.ApplyConfig(context.Background(), &next)

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
	waitFor(t, "new defaults", func() bool { return def.Settings().AutoConfirm })
	if s := own.Settings(); s.AutoConfirm || !s.EnableTTS {
		t.Errorf("tab with its own settings changed to %+v", s)
	}
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	a, err := app.New(testConfig(), app.Backends{}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Serve(ctx, ln) }()

	waitFor(t, "listener", func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestApp_DesktopNeedsOfflineRecognizer(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Desktop.Enabled = true
	if _, err := app.New(cfg, app.Backends{}, app.WithMetrics(testMetrics(t))); err == nil {
		t.Fatal("New with desktop mode and no offline recognizer = nil error")
	}
}
