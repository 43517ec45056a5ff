package mcpserver

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/pkg/types"
)

// defaultHistory is the number of journal entries returned when the client
// does not ask for a limit.
const defaultHistory = 20

// ── Arguments ───────────────────────────────────────────────────────────────

// TabArgs selects a tab.
type TabArgs struct {
	Tab string `json:"tab,omitempty" jsonschema:"browser tab id; may be omitted when exactly one tab is connected"`
}

// UtteranceArgs is the input of submit_utterance.
type UtteranceArgs struct {
	Tab  string `json:"tab,omitempty" jsonschema:"browser tab id; may be omitted when exactly one tab is connected"`
	Text string `json:"text" jsonschema:"what the player said, e.g. knight f three or yes"`
}

// ResyncArgs is the input of resync.
type ResyncArgs struct {
	Tab      string `json:"tab,omitempty" jsonschema:"browser tab id; may be omitted when exactly one tab is connected"`
	MoveList string `json:"move_list" jsonschema:"move list text as rendered by the page, e.g. 1. e4 e5 2. Nf3"`
}

// HistoryArgs is the input of history.
type HistoryArgs struct {
	Tab   string `json:"tab,omitempty" jsonschema:"browser tab id; may be omitted when exactly one tab is connected"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of entries, newest last"`
}

// ── Results ─────────────────────────────────────────────────────────────────

// TabInfo describes one connected tab.
type TabInfo struct {
	Tab    string `json:"tab"`
	Oracle string `json:"oracle"`
	Status string `json:"status"`
}

// TabList is the output of list_tabs.
type TabList struct {
	Tabs []TabInfo `json:"tabs"`
}

// UtteranceResult is the output of submit_utterance.
type UtteranceResult struct {
	Outcome    string   `json:"outcome"`
	Normalized string   `json:"normalized"`
	Intent     string   `json:"intent,omitempty"`
	Move       string   `json:"move,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Error      string   `json:"error,omitempty"`
	Status     string   `json:"status"`
}

// MoveList is the output of legal_moves.
type MoveList struct {
	Oracle string   `json:"oracle"`
	Moves  []string `json:"moves"`
}

// HistoryEntry is one journaled utterance.
type HistoryEntry struct {
	Time       time.Time `json:"time"`
	Raw        string    `json:"raw"`
	Normalized string    `json:"normalized"`
	Outcome    string    `json:"outcome"`
	Move       string    `json:"move,omitempty"`
}

// History is the output of history.
type History struct {
	Entries []HistoryEntry `json:"entries"`
}

// Ack is returned by tools that only schedule work.
type Ack struct {
	Message string `json:"message"`
}

// ── Registration ────────────────────────────────────────────────────────────

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_tabs",
		Description: "List the browser tabs connected to voxmate with their move oracle and status line.",
	}, s.listTabs)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "submit_utterance",
		Description: "Process a spoken chess command as if the recognizer had heard it. Moves are played on the page once confirmed.",
	}, s.submitUtterance)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "board",
		Description: "Show the tab's position as FEN and ASCII board together with side to move, confirmation state and status line.",
	}, s.board)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "legal_moves",
		Description: "List the legal moves in the tab's current position.",
	}, s.legalMoves)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "resync",
		Description: "Replace the tab's move list and rebuild its board from it.",
	}, s.resync)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "history",
		Description: "Return the most recent utterances of the tab with how each one was resolved.",
	}, s.history)
}

// ── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) listTabs(_ context.Context, _ *sdk.CallToolRequest, _ struct{}) (*sdk.CallToolResult, TabList, error) {
	tabs := s.sessions.Tabs()
	slices.Sort(tabs)

	out := TabList{Tabs: make([]TabInfo, 0, len(tabs))}
	var sb strings.Builder
	for _, tab := range tabs {
		c, ok := s.sessions.Controller(tab)
		if !ok {
			continue
		}
		info := TabInfo{Tab: tab, Oracle: c.OracleName(), Status: c.Status()}
		out.Tabs = append(out.Tabs, info)
		fmt.Fprintf(&sb, "%s (%s): %s\n", info.Tab, info.Oracle, info.Status)
	}
	if len(out.Tabs) == 0 {
		sb.WriteString("no tabs connected")
	}
	return text(sb.String()), out, nil
}

func (s *Server) submitUtterance(ctx context.Context, _ *sdk.CallToolRequest, args UtteranceArgs) (*sdk.CallToolResult, UtteranceResult, error) {
	c, err := s.controller(args.Tab)
	if err != nil {
		return nil, UtteranceResult{}, err
	}
	res, err := c.HandleTranscript(ctx, types.Transcript{Text: args.Text, IsFinal: true, Confidence: 1})
	if err != nil {
		return nil, UtteranceResult{}, fmt.Errorf("mcpserver: submit utterance: %w", err)
	}

	out := UtteranceResult{
		Outcome:    string(res.Outcome),
		Normalized: res.Normalized,
		Status:     c.Status(),
	}
	if res.Intent.Strategy != "" {
		out.Intent = res.Intent.String()
	}
	if res.Move != nil {
		out.Move = res.Move.String()
	}
	for _, m := range res.Candidates {
		out.Candidates = append(out.Candidates, m.String())
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return text(fmt.Sprintf("%s: %s", out.Outcome, out.Status)), out, nil
}

func (s *Server) board(ctx context.Context, _ *sdk.CallToolRequest, args TabArgs) (*sdk.CallToolResult, controller.View, error) {
	c, err := s.controller(args.Tab)
	if err != nil {
		return nil, controller.View{}, err
	}
	v, err := c.Snapshot(ctx)
	if err != nil {
		return nil, controller.View{}, fmt.Errorf("mcpserver: board: %w", err)
	}
	return text(fmt.Sprintf("%s\n%s to move, oracle %s\nFEN: %s", v.Board, v.Turn, v.Oracle, v.FEN)), v, nil
}

func (s *Server) legalMoves(ctx context.Context, _ *sdk.CallToolRequest, args TabArgs) (*sdk.CallToolResult, MoveList, error) {
	c, err := s.controller(args.Tab)
	if err != nil {
		return nil, MoveList{}, err
	}
	moves, err := c.LegalMoves(ctx)
	if err != nil {
		return nil, MoveList{}, err
	}
	out := MoveList{Oracle: c.OracleName(), Moves: make([]string, len(moves))}
	for i, m := range moves {
		out.Moves[i] = m.String()
	}
	return text(strings.Join(out.Moves, " ")), out, nil
}

func (s *Server) resync(_ context.Context, _ *sdk.CallToolRequest, args ResyncArgs) (*sdk.CallToolResult, Ack, error) {
	c, err := s.controller(args.Tab)
	if err != nil {
		return nil, Ack{}, err
	}
	c.HandleMoveList(args.MoveList, true)
	out := Ack{Message: "resync scheduled"}
	return text(out.Message), out, nil
}

func (s *Server) history(ctx context.Context, _ *sdk.CallToolRequest, args HistoryArgs) (*sdk.CallToolResult, History, error) {
	c, err := s.controller(args.Tab)
	if err != nil {
		return nil, History{}, err
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultHistory
	}
	entries, err := c.History(ctx, limit)
	if err != nil {
		return nil, History{}, fmt.Errorf("mcpserver: history: %w", err)
	}

	out := History{Entries: make([]HistoryEntry, len(entries))}
	var sb strings.Builder
	for i, e := range entries {
		out.Entries[i] = HistoryEntry{Time: e.Time, Raw: e.Raw, Normalized: e.Normalized, Outcome: e.Outcome, Move: e.Move}
		fmt.Fprintf(&sb, "%s %q -> %s %s\n", e.Time.Format(time.TimeOnly), e.Raw, e.Outcome, e.Move)
	}
	return text(sb.String()), out, nil
}

func text(s string) *sdk.CallToolResult {
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: s}}}
}
