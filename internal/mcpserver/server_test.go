package mcpserver_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/internal/journal"
	"github.com/MrWong99/voxmate/internal/mcpserver"
	"github.com/MrWong99/voxmate/internal/observe"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// sessions is a fixed set of running controllers.
type sessions struct {
	mu    sync.Mutex
	ctrls map[string]*controller.Controller
}

func (s *sessions) Controller(tab string) (*controller.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrls[tab]
	return c, ok
}

func (s *sessions) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tabs := make([]string, 0, len(s.ctrls))
	for t := range s.ctrls {
		tabs = append(tabs, t)
	}
	return tabs
}

func startController(t *testing.T, tab string) *controller.Controller {
	t.Helper()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	c := controller.New(tab,
		controller.WithSettings(controller.Settings{AutoConfirm: true}),
		controller.WithJournal(journal.NewMemStore(16)),
		controller.WithMetrics(metrics),
		controller.WithDebounce(5*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

// connect starts the MCP server over in-memory transports and returns a
// client session.
func connect(t *testing.T, tabs ...string) *sdk.ClientSession {
	t.Helper()
	sess := &sessions{ctrls: make(map[string]*controller.Controller)}
	for _, tab := range tabs {
		sess.ctrls[tab] = startController(t, tab)
	}
	srv := mcpserver.New(sess, mcpserver.WithVersion("test"))

	ctx := context.Background()
	clientT, serverT := sdk.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverT)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return cs
}

// call invokes tool and decodes its structured output into out.
func call(t *testing.T, cs *sdk.ClientSession, tool string, args map[string]any, out any) *sdk.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", tool, err)
	}
	if res.IsError {
		t.Fatalf("CallTool(%s) returned a tool error: %s", tool, textOf(res))
	}
	if out != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			t.Fatalf("marshal structured content: %v", err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s output: %v", tool, err)
		}
	}
	return res
}

func textOf(res *sdk.CallToolResult) string {
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*sdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestTools_Listed(t *testing.T) {
	t.Parallel()
	cs := connect(t, "t1")

	var names []string
	for tool, err := range cs.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("list tools: %v", err)
		}
		names = append(names, tool.Name)
	}
	for _, want := range []string{"list_tabs", "submit_utterance", "board", "legal_moves", "resync", "history"} {
		found := false
		for _, n := range names {
			found = found || n == want
		}
		if !found {
			t.Errorf("tool %q not listed, got %v", want, names)
		}
	}
}

func TestSubmitUtterance_PlaysMove(t *testing.T) {
	t.Parallel()
	cs := connect(t, "t1")

	var res mcpserver.UtteranceResult
	call(t, cs, "submit_utterance", map[string]any{"text": "e four"}, &res)
	if res.Outcome != string(controller.OutcomeCommitted) {
		t.Fatalf("outcome = %q, want committed (status %q)", res.Outcome, res.Status)
	}
	if res.Move == "" {
		t.Error("move is empty")
	}

	var view controller.View
	call(t, cs, "board", map[string]any{"tab": "t1"}, &view)
	if !strings.HasPrefix(view.FEN, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b") {
		t.Errorf("FEN = %q, want e4 played and black to move", view.FEN)
	}

	var hist mcpserver.History
	call(t, cs, "history", map[string]any{"limit": 5}, &hist)
	if len(hist.Entries) != 1 || hist.Entries[0].Outcome != string(controller.OutcomeCommitted) {
		t.Errorf("history = %+v, want one committed entry", hist.Entries)
	}
}

func TestLegalMoves_StartingPosition(t *testing.T) {
	t.Parallel()
	cs := connect(t, "t1")

	var ml mcpserver.MoveList
	call(t, cs, "legal_moves", map[string]any{}, &ml)
	if len(ml.Moves) != 20 {
		t.Errorf("got %d legal moves, want 20", len(ml.Moves))
	}
	if ml.Oracle == "" {
		t.Error("oracle name is empty")
	}
}

func TestResync_RebuildsBoard(t *testing.T) {
	t.Parallel()
	cs := connect(t, "t1")

	call(t, cs, "resync", map[string]any{"move_list": "1. d4 d5 2. c4"}, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		var view controller.View
		call(t, cs, "board", map[string]any{}, &view)
		if strings.HasPrefix(view.FEN, "rnbqkbnr/ppp1pppp/8/3p4/2PP4/8/PP2PPPP/RNBQKBNR b") {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("FEN = %q after resync, want position after 1. d4 d5 2. c4", view.FEN)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListTabs(t *testing.T) {
	t.Parallel()
	cs := connect(t, "b-tab", "a-tab")

	var list mcpserver.TabList
	call(t, cs, "list_tabs", map[string]any{}, &list)
	if len(list.Tabs) != 2 || list.Tabs[0].Tab != "a-tab" || list.Tabs[1].Tab != "b-tab" {
		t.Errorf("tabs = %+v, want a-tab and b-tab sorted", list.Tabs)
	}
}

func TestUnknownTab(t *testing.T) {
	t.Parallel()
	cs := connect(t, "t1", "t2")

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing tab with several connected", args: map[string]any{"text": "e four"}},
		{name: "not connected", args: map[string]any{"tab": "t9", "text": "e four"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: "submit_utterance", Arguments: tt.args})
			if err == nil && !res.IsError {
				t.Fatal("want an error for an unresolvable tab")
			}
			if err == nil && !strings.Contains(textOf(res), "unknown tab") {
				t.Errorf("error text = %q, want it to mention unknown tab", textOf(res))
			}
		})
	}
}
