package controller_test

import (
	"bytes"
	"context"
	"log/slog"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/internal/controller/mock"
	"github.com/MrWong99/voxmate/internal/journal"
	"github.com/MrWong99/voxmate/internal/observe"
	"github.com/MrWong99/voxmate/internal/oracle"
	ttsmock "github.com/MrWong99/voxmate/pkg/provider/tts/mock"
	"github.com/MrWong99/voxmate/pkg/types"
)

type harness struct {
	c       *controller.Controller
	exec    *mock.Executor
	speaker *ttsmock.Speaker
	journal *journal.MemStore
	ctx     context.Context

	mu       sync.Mutex
	statuses []string
}

func (h *harness) lastStatus() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.statuses) == 0 {
		return ""
	}
	return h.statuses[len(h.statuses)-1]
}

func newHarness(t *testing.T, settings controller.Settings, opts ...controller.Option) *harness {
	t.Helper()

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := &harness{
		exec:    &mock.Executor{},
		speaker: &ttsmock.Speaker{},
		journal: journal.NewMemStore(16),
	}
	base := []controller.Option{
		controller.WithMetrics(met),
		controller.WithExecutor(h.exec),
		controller.WithSpeaker(h.speaker),
		controller.WithJournal(h.journal),
		controller.WithSettings(settings),
		controller.WithDebounce(5 * time.Millisecond),
		controller.WithStatus(func(s string) {
			h.mu.Lock()
			h.statuses = append(h.statuses, s)
			h.mu.Unlock()
		}),
	}
	h.c = controller.New("tab-1", append(base, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	h.ctx = ctx
	return h
}

func (h *harness) say(t *testing.T, text string) controller.Result {
	t.Helper()
	res, err := h.c.HandleTranscript(h.ctx, types.Transcript{Text: text, IsFinal: true})
	if err != nil {
		t.Fatalf("HandleTranscript(%q): %v", text, err)
	}
	return res
}

func (h *harness) view(t *testing.T) controller.View {
	t.Helper()
	v, err := h.c.Snapshot(h.ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return v
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var autoConfirm = controller.Settings{AutoConfirm: true, EnableTTS: true}

func TestAutoConfirmCommitsAndAlternatesTurns(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)

	res := h.say(t, "e four")
	if res.Outcome != controller.OutcomeCommitted {
		t.Fatalf("Outcome = %v, want committed (err=%v)", res.Outcome, res.Err)
	}
	if res.Normalized != "e4" {
		t.Errorf("Normalized = %q, want e4", res.Normalized)
	}
	calls := h.exec.Executed()
	if len(calls) != 1 || calls[0].Move.Coordinate() != "e2e4" || calls[0].Attempt != 0 {
		t.Fatalf("Execute calls = %+v, want one e2e4 attempt 0", calls)
	}
	if v := h.view(t); v.Turn != "black" {
		t.Errorf("Turn = %q, want black", v.Turn)
	}

	res = h.say(t, "e five")
	if res.Outcome != controller.OutcomeCommitted || res.Move.Coordinate() != "e7e5" {
		t.Fatalf("second move = %v %v, want committed e7e5", res.Outcome, res.Move)
	}
	if got := len(h.speaker.Phrases()); got != 2 {
		t.Errorf("spoken phrases = %d, want 2", got)
	}
	if v := h.view(t); !strings.HasPrefix(v.FEN, "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w") {
		t.Errorf("FEN = %q", v.FEN)
	}
}

func TestConfirmationDialogue(t *testing.T) {
	t.Parallel()
	h := newHarness(t, controller.Settings{EnableTTS: true})

	res := h.say(t, "knight f three")
	if res.Outcome != controller.OutcomePrompted {
		t.Fatalf("Outcome = %v, want prompted", res.Outcome)
	}
	if len(h.exec.Executed()) != 0 {
		t.Fatal("move executed before confirmation")
	}
	v := h.view(t)
	if v.Dialogue != "awaiting_confirmation" || v.Pending == "" {
		t.Errorf("view = %+v, want a pending move", v)
	}
	phrases := h.speaker.Phrases()
	if len(phrases) != 1 || !strings.HasSuffix(phrases[0], "confirm?") {
		t.Errorf("phrases = %v, want a confirmation prompt", phrases)
	}

	// Anything but yes/no/cancel is ignored while awaiting.
	if res := h.say(t, "e four"); res.Outcome != controller.OutcomeIgnored {
		t.Errorf("Outcome(e four while awaiting) = %v, want ignored", res.Outcome)
	}
	if res := h.say(t, "resign"); res.Outcome != controller.OutcomeIgnored {
		t.Errorf("Outcome(resign while awaiting) = %v, want ignored", res.Outcome)
	}
	if len(h.exec.Actions()) != 0 {
		t.Errorf("actions = %v, want none", h.exec.Actions())
	}

	res = h.say(t, "yes")
	if res.Outcome != controller.OutcomeCommitted || res.Move.Coordinate() != "g1f3" {
		t.Fatalf("yes = %v %v, want committed g1f3", res.Outcome, res.Move)
	}
	if v := h.view(t); v.Dialogue != "idle" {
		t.Errorf("Dialogue = %q after yes, want idle", v.Dialogue)
	}

	if res := h.say(t, "d five"); res.Outcome != controller.OutcomePrompted {
		t.Fatalf("Outcome = %v, want prompted", res.Outcome)
	}
	if res := h.say(t, "no"); res.Outcome != controller.OutcomeDiscarded {
		t.Errorf("Outcome(no) = %v, want discarded", res.Outcome)
	}
	if got := len(h.exec.Executed()); got != 1 {
		t.Errorf("Execute calls = %d, want 1", got)
	}
	if v := h.view(t); v.Turn != "black" {
		t.Errorf("Turn = %q, want black after discarded move", v.Turn)
	}
}

func TestAmbiguityAfterMoveListSync(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)

	h.c.HandleMoveList("1. d4 d5 2. Nf3 Nf6", false)
	waitFor(t, "move list resync", func() bool {
		v := h.view(t)
		return strings.HasPrefix(v.FEN, "rnbqkb1r/ppp1pppp/5n2/3p4/3P4/5N2/PPP1PPPP/RNBQKB1R")
	})

	res := h.say(t, "knight d two")
	if res.Outcome != controller.OutcomeAmbiguous {
		t.Fatalf("Outcome = %v, want ambiguous", res.Outcome)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("Candidates = %v, want 2", res.Candidates)
	}
	phrases := h.speaker.Phrases()
	if len(phrases) != 1 || phrases[0] != "ambiguous, please specify a source" {
		t.Errorf("phrases = %v", phrases)
	}
	if len(h.exec.Executed()) != 0 {
		t.Error("ambiguous utterance executed a move")
	}

	res = h.say(t, "knight b d two")
	if res.Outcome != controller.OutcomeCommitted || res.Move.From != "b1" {
		t.Fatalf("Outcome = %v %v, want committed from b1", res.Outcome, res.Move)
	}
}

func TestNoMatchAndNoParse(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)

	if res := h.say(t, "e five"); res.Outcome != controller.OutcomeNoMatch {
		t.Errorf("Outcome(e five) = %v, want no_match", res.Outcome)
	}
	if got := h.lastStatus(); got != "illegal move: e5" {
		t.Errorf("status = %q, want illegal move: e5", got)
	}

	if res := h.say(t, "banana split"); res.Outcome != controller.OutcomeNoParse {
		t.Errorf("Outcome(banana split) = %v, want no_parse", res.Outcome)
	}
	if got := h.lastStatus(); got != "illegal move: e5" {
		t.Errorf("status changed on no_parse: %q", got)
	}
	if got := h.speaker.Phrases(); len(got) != 0 {
		t.Errorf("phrases = %v, want silence", got)
	}
}

func TestExecutorRetriesOnNoEffect(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)
	h.exec.ExecuteErrs = []error{controller.ErrNoEffect, controller.ErrNoEffect}

	res := h.say(t, "e four")
	if res.Outcome != controller.OutcomeCommitted {
		t.Fatalf("Outcome = %v, want committed (err=%v)", res.Outcome, res.Err)
	}
	calls := h.exec.Executed()
	if len(calls) != 3 {
		t.Fatalf("Execute calls = %d, want 3", len(calls))
	}
	for i, c := range calls {
		if c.Attempt != i {
			t.Errorf("call %d attempt = %d, want %d", i, c.Attempt, i)
		}
	}
}

func TestExecutorFailureLeavesBoard(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)
	boom := errors.New("tab closed")
	h.exec.ExecuteErrs = []error{boom}

	res := h.say(t, "e four")
	if res.Outcome != controller.OutcomeFailed || !errors.Is(res.Err, boom) {
		t.Fatalf("result = %v %v, want failed wrapping %v", res.Outcome, res.Err, boom)
	}
	if got := len(h.exec.Executed()); got != 1 {
		t.Errorf("Execute calls = %d, want 1 (hard errors are not retried)", got)
	}
	if v := h.view(t); v.Turn != "white" {
		t.Errorf("Turn = %q, want white", v.Turn)
	}
	if got := h.lastStatus(); got != "could not play e4" {
		t.Errorf("status = %q", got)
	}
}

func TestExecutorGivesUpAfterAllAttempts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm, controller.WithExecAttempts(2))
	h.exec.ExecuteErrs = []error{controller.ErrNoEffect, controller.ErrNoEffect, controller.ErrNoEffect}

	res := h.say(t, "e four")
	if res.Outcome != controller.OutcomeFailed || !errors.Is(res.Err, controller.ErrNoEffect) {
		t.Fatalf("result = %v %v, want failed with ErrNoEffect", res.Outcome, res.Err)
	}
	if got := len(h.exec.Executed()); got != 2 {
		t.Errorf("Execute calls = %d, want 2", got)
	}
}

func TestCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)

	if res := h.say(t, "resign"); res.Outcome != controller.OutcomeCommand {
		t.Errorf("Outcome(resign) = %v, want command", res.Outcome)
	}
	if res := h.say(t, "offer draw"); res.Outcome != controller.OutcomeCommand {
		t.Errorf("Outcome(offer draw) = %v, want command", res.Outcome)
	}
	if got := h.exec.Actions(); len(got) != 2 || got[0] != "resign" || got[1] != "offer-draw" {
		t.Errorf("actions = %v, want [resign offer-draw]", got)
	}

	if res := h.say(t, "clear"); res.Outcome != controller.OutcomeCommand {
		t.Errorf("Outcome(clear) = %v, want command", res.Outcome)
	}
	if h.speaker.CancelCallCount != 1 {
		t.Errorf("Cancel calls = %d, want 1", h.speaker.CancelCallCount)
	}

	if res := h.say(t, "yes"); res.Outcome != controller.OutcomeIgnored {
		t.Errorf("Outcome(yes while idle) = %v, want ignored", res.Outcome)
	}

	h.exec.ActionErr = errors.New("no draw button")
	if res := h.say(t, "accept draw"); res.Outcome != controller.OutcomeFailed {
		t.Errorf("Outcome(accept draw) = %v, want failed", res.Outcome)
	}
}

func TestPartialUpdatesStatusOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)

	res, err := h.c.HandleTranscript(h.ctx, types.Transcript{Text: "e fo"})
	if err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}
	if res.Outcome != controller.OutcomePartial {
		t.Errorf("Outcome = %v, want partial", res.Outcome)
	}
	if got := h.lastStatus(); got != "hearing: e fo" {
		t.Errorf("status = %q", got)
	}
	entries, _ := h.c.History(h.ctx, 0)
	if len(entries) != 0 {
		t.Errorf("journal entries = %d, want 0 for partials", len(entries))
	}
}

func TestSubmitKeepsArrivalOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)

	for _, text := range []string{"e four", "e five", "knight f three"} {
		if err := h.c.Submit(h.ctx, types.Transcript{Text: text, IsFinal: true}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	// Snapshot is queued behind the transcripts.
	v := h.view(t)
	if v.Turn != "black" {
		t.Errorf("Turn = %q, want black after three moves", v.Turn)
	}
	entries, err := h.c.History(h.ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []string{"e4", "e5", "knight f3"}
	if len(entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Normalized != want[i] || e.Outcome != "committed" || e.Oracle != "shadow" {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
}

func TestResetExpiresPendingMove(t *testing.T) {
	t.Parallel()
	h := newHarness(t, controller.Settings{})

	h.say(t, "e four")
	if err := h.c.Reset(h.ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if v := h.view(t); v.Dialogue != "idle" || v.Pending != "" {
		t.Errorf("view after reset = %+v, want idle", v)
	}
	if res := h.say(t, "yes"); res.Outcome != controller.OutcomeIgnored {
		t.Errorf("Outcome(yes after reset) = %v, want ignored", res.Outcome)
	}
	if len(h.exec.Executed()) != 0 {
		t.Error("expired move was executed")
	}
}

func TestApplySettings(t *testing.T) {
	t.Parallel()
	h := newHarness(t, controller.Settings{EnableTTS: true})

	var (
		mu   sync.Mutex
		seen []controller.Settings
	)
	h.c.OnSettings(func(s controller.Settings) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	if err := h.c.ApplySettings(h.ctx, controller.Settings{AutoConfirm: true}); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	res := h.say(t, "e four")
	if res.Outcome != controller.OutcomeCommitted {
		t.Errorf("Outcome = %v, want committed with auto-confirm", res.Outcome)
	}
	if h.speaker.CancelCallCount != 1 {
		t.Errorf("Cancel calls = %d, want 1 when speech is disabled", h.speaker.CancelCallCount)
	}
	if got := h.speaker.Phrases(); len(got) != 0 {
		t.Errorf("phrases = %v, want none with speech disabled", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || !seen[0].AutoConfirm {
		t.Errorf("settings hooks saw %+v", seen)
	}
}

// hostLink is an oracle.HostLink serving the starting position.
type hostLink struct {
	mu        sync.Mutex
	submitted []types.LegalMove
}

func (l *hostLink) QueryLegalMoves(context.Context) ([]types.LegalMove, types.Color, error) {
	return []types.LegalMove{
		{From: "e2", To: "e4", Piece: 'P', SAN: "e4"},
		{From: "g1", To: "f3", Piece: 'N', SAN: "Nf3"},
	}, types.White, nil
}

func (l *hostLink) SubmitMove(_ context.Context, m types.LegalMove) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitted = append(l.submitted, m)
	return nil
}

func TestHostOracleCommitsThroughPage(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)
	link := &hostLink{}

	if err := h.c.SetCapabilities(h.ctx, oracle.Capabilities{HostGame: true}, link); err != nil {
		t.Fatalf("SetCapabilities: %v", err)
	}
	if got := h.c.OracleName(); got != "host" {
		t.Fatalf("OracleName = %q, want host", got)
	}

	res := h.say(t, "knight f three")
	if res.Outcome != controller.OutcomeCommitted {
		t.Fatalf("Outcome = %v, want committed (err=%v)", res.Outcome, res.Err)
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	if len(link.submitted) != 1 || link.submitted[0].SAN != "Nf3" {
		t.Errorf("submitted = %v, want [Nf3]", link.submitted)
	}
	if len(h.exec.Executed()) != 0 {
		t.Error("executor used although the host oracle drives the page")
	}
}

func TestGameOracleFollowsHostMoves(t *testing.T) {
	t.Parallel()
	h := newHarness(t, autoConfirm)

	caps := oracle.Capabilities{FEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"}
	if err := h.c.SetCapabilities(h.ctx, caps, nil); err != nil {
		t.Fatalf("SetCapabilities: %v", err)
	}
	if got := h.c.OracleName(); got != "game" {
		t.Fatalf("OracleName = %q, want game", got)
	}

	if res := h.say(t, "e four"); res.Outcome != controller.OutcomeCommitted {
		t.Fatalf("Outcome = %v, want committed (err=%v)", res.Outcome, res.Err)
	}
	// The host echoes our own move, then reports the opponent's reply.
	if err := h.c.HandleMoveEvent(h.ctx, types.MoveEvent{SAN: "e4", Ply: 0}); err != nil {
		t.Fatalf("HandleMoveEvent: %v", err)
	}
	if err := h.c.HandleMoveEvent(h.ctx, types.MoveEvent{SAN: "c5", Ply: 1}); err != nil {
		t.Fatalf("HandleMoveEvent: %v", err)
	}

	v := h.view(t)
	if v.Turn != "white" {
		t.Errorf("Turn = %q, want white", v.Turn)
	}
	if !strings.HasPrefix(v.FEN, "rnbqkbnr/pp1ppppp/8/2p5/4P3/8/PPPP1PPP/RNBQKBNR w") {
		t.Errorf("FEN = %q", v.FEN)
	}

	moves, err := h.c.LegalMoves(h.ctx)
	if err != nil {
		t.Fatalf("LegalMoves: %v", err)
	}
	if len(moves) == 0 {
		t.Error("no legal moves for white")
	}
}

func TestStoppedControllerRejectsInput(t *testing.T) {
	t.Parallel()

	c := controller.New("tab-x")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	_, err := c.HandleTranscript(context.Background(), types.Transcript{Text: "e4", IsFinal: true})
	if !errors.Is(err, controller.ErrStopped) {
		t.Errorf("HandleTranscript after stop: err = %v, want ErrStopped", err)
	}
}

// stallingExecutor blocks every Execute call until its context ends.
type stallingExecutor struct {
	entered chan struct{}
	once    sync.Once
}

func (e *stallingExecutor) Execute(ctx context.Context, _ types.LegalMove, _ int) error {
	e.once.Do(func() { close(e.entered) })
	<-ctx.Done()
	return ctx.Err()
}

func (e *stallingExecutor) Action(context.Context, string) error { return nil }

func TestRunReturnsWithMoveListSyncBlockedOnFullInbox(t *testing.T) {
	t.Parallel()

	exec := &stallingExecutor{entered: make(chan struct{})}
	c := controller.New("tab-stall",
		controller.WithExecutor(exec),
		controller.WithExecTimeout(time.Minute),
		controller.WithSettings(controller.Settings{AutoConfirm: true}),
		controller.WithDebounce(time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Occupy the controller goroutine, then fill the inbox behind it.
	go func() { _, _ = c.HandleTranscript(ctx, types.Transcript{Text: "e4", IsFinal: true}) }()
	select {
	case <-exec.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never called")
	}
	for queued := 0; ; queued++ {
		pctx, pcancel := context.WithTimeout(ctx, 20*time.Millisecond)
		err := c.Submit(pctx, types.Transcript{Text: "e5", IsFinal: true})
		pcancel()
		if err != nil {
			break
		}
		if queued > 1000 {
			t.Fatal("inbox never filled")
		}
	}

	// The synchronizer now blocks handing its report to the full inbox.
	c.HandleMoveList("1. e4", true)
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// Not parallel: it swaps the default logger.
func TestUtteranceIsTracedAndLogCorrelated(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := newHarness(t, autoConfirm, controller.WithTracerProvider(tp))
	if res := h.say(t, "e four"); res.Outcome != controller.OutcomeCommitted {
		t.Fatalf("outcome = %s, want committed", res.Outcome)
	}

	var utterance, execute tracetest.SpanStub
	for _, s := range exp.GetSpans() {
		switch s.Name {
		case observe.SpanUtterance:
			utterance = s
		case observe.SpanExecute:
			execute = s
		}
	}
	if utterance.Name == "" {
		t.Fatalf("no %s span in %d spans", observe.SpanUtterance, len(exp.GetSpans()))
	}
	attrs := map[string]string{}
	for _, kv := range utterance.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	for k, want := range map[string]string{
		string(observe.AttrTab):     "tab-1",
		string(observe.AttrOracle):  "shadow",
		string(observe.AttrOutcome): string(controller.OutcomeCommitted),
	} {
		if attrs[k] != want {
			t.Errorf("utterance attribute %s = %q, want %q", k, attrs[k], want)
		}
	}
	if attrs[string(observe.AttrMove)] == "" {
		t.Error("utterance span has no move attribute")
	}

	if execute.Name == "" {
		t.Fatal("no executor span")
	}
	if execute.Parent.SpanID() != utterance.SpanContext.SpanID() {
		t.Error("executor span is not a child of the utterance span")
	}

	traceID := utterance.SpanContext.TraceID().String()
	var found bool
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "controller: utterance") && strings.Contains(line, "tab=tab-1") {
			found = true
			if !strings.Contains(line, "trace_id="+traceID) {
				t.Errorf("utterance log %q missing trace_id=%s", line, traceID)
			}
		}
	}
	if !found {
		t.Errorf("no utterance log line in %q", buf.String())
	}
}
