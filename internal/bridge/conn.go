package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/internal/oracle"
	"github.com/MrWong99/voxmate/pkg/provider/tts"
	"github.com/MrWong99/voxmate/pkg/types"
)

// ErrClosed is returned by requests on a connection that has gone away.
var ErrClosed = errors.New("bridge: connection closed")

// Compile-time interface checks.
var (
	_ controller.Executor = (*Conn)(nil)
	_ tts.Speaker         = (*Conn)(nil)
	_ oracle.HostLink     = (*Conn)(nil)
)

// Conn is the link to one browser tab. It drives the host page for the
// controller (executor, speaker, host game object) and owns the tab's
// native speech stream.
type Conn struct {
	ws    *websocket.Conn
	tab   string
	hello Hello

	// ctx is cancelled when the connection closes.
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan Reply
	native  *nativeStream
	closed  bool
}

func newConn(ctx context.Context, ws *websocket.Conn, hello Hello) *Conn {
	ctx, cancel := context.WithCancel(ctx)
	return &Conn{
		ws:      ws,
		tab:     hello.Tab,
		hello:   hello,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]chan Reply),
	}
}

// Tab returns the tab identifier announced in the hello message.
func (c *Conn) Tab() string { return c.tab }

// Hello returns the hello message of the connection.
func (c *Conn) Hello() Hello { return c.hello }

// Done is closed when the connection has gone away.
func (c *Conn) Done() <-chan struct{} { return c.ctx.Done() }

// ── Wire helpers ────────────────────────────────────────────────────────────

// send writes a notification.
func (c *Conn) send(ctx context.Context, typ string, payload any) error {
	env, err := newEnvelope(typ, "", payload)
	if err != nil {
		return err
	}
	return c.write(ctx, env)
}

func (c *Conn) write(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bridge: marshal envelope: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("bridge: write %s: %w", env.Type, err)
	}
	return nil
}

// request writes a request and waits for the matching reply.
func (c *Conn) request(ctx context.Context, typ string, payload any) (Reply, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	env, err := newEnvelope(typ, id, payload)
	if err != nil {
		return Reply{}, err
	}

	ch := make(chan Reply, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Reply{}, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, env); err != nil {
		return Reply{}, err
	}
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return Reply{}, fmt.Errorf("bridge: %s: %w", typ, ctx.Err())
	case <-c.ctx.Done():
		return Reply{}, ErrClosed
	}
}

// deliver routes a reply to its waiting request. Late replies are dropped.
func (c *Conn) deliver(id string, r Reply) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- r:
	default:
	}
	return true
}

// close tears the connection down and ends the native stream.
func (c *Conn) close(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ns := c.native
	c.native = nil
	c.mu.Unlock()

	if ns != nil {
		ns.end()
	}
	c.cancel()
	_ = c.ws.Close(code, reason)
}

// ── controller.Executor ─────────────────────────────────────────────────────

// Execute asks the extension to play m with input method attempt. A reply
// with error "no_effect" maps to [controller.ErrNoEffect].
func (c *Conn) Execute(ctx context.Context, m types.LegalMove, attempt int) error {
	r, err := c.request(ctx, TypeExecute, ExecuteMsg{MoveMsg: toMoveMsg(m), Attempt: attempt})
	if err != nil {
		return err
	}
	return replyErr(r)
}

// Action asks the extension to press a game control.
func (c *Conn) Action(ctx context.Context, action string) error {
	r, err := c.request(ctx, TypeAction, ActionMsg{Action: action})
	if err != nil {
		return err
	}
	return replyErr(r)
}

func replyErr(r Reply) error {
	switch {
	case r.OK:
		return nil
	case r.Error == "no_effect":
		return controller.ErrNoEffect
	case r.Error == "":
		return errors.New("bridge: request rejected")
	default:
		return fmt.Errorf("bridge: %s", r.Error)
	}
}

// ── tts.Speaker ─────────────────────────────────────────────────────────────

// Speak asks the extension to speak text. It does not wait for playback.
func (c *Conn) Speak(ctx context.Context, text string) error {
	return c.send(ctx, TypeSpeak, SpeakMsg{Text: text})
}

// Cancel stops any speech in progress.
func (c *Conn) Cancel(ctx context.Context) error {
	return c.send(ctx, TypeCancelSpeech, nil)
}

// Status updates the extension's status line.
func (c *Conn) Status(ctx context.Context, text string) error {
	return c.send(ctx, TypeStatus, StatusMsg{Text: text})
}

// ── oracle.HostLink ─────────────────────────────────────────────────────────

// QueryLegalMoves asks the host game object for the legal moves.
func (c *Conn) QueryLegalMoves(ctx context.Context) ([]types.LegalMove, types.Color, error) {
	r, err := c.request(ctx, TypeLegalMoves, nil)
	if err != nil {
		return nil, types.White, err
	}
	if err := replyErr(r); err != nil {
		return nil, types.White, err
	}
	moves := make([]types.LegalMove, len(r.Moves))
	for i, m := range r.Moves {
		moves[i] = fromMoveMsg(m)
	}
	turn := types.White
	if r.Turn == "black" || r.Turn == "b" {
		turn = types.Black
	}
	return moves, turn, nil
}

// SubmitMove asks the host game object to play m.
func (c *Conn) SubmitMove(ctx context.Context, m types.LegalMove) error {
	r, err := c.request(ctx, TypeMove, toMoveMsg(m))
	if err != nil {
		return err
	}
	return replyErr(r)
}
