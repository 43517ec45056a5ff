// Package mcpserver exposes the per-tab controllers as Model Context Protocol
// tools, so an agent or a test harness can drive voxmate with text instead of
// speech and inspect the session state.
//
// Tools:
//
//   - list_tabs: connected tabs and their oracle.
//   - submit_utterance: run a final transcript through a tab's pipeline.
//   - board: FEN, ASCII board, turn, dialogue state and status of a tab.
//   - legal_moves: the moves the tab's oracle currently allows.
//   - resync: replace the tab's move-list text and resynchronize the board.
//   - history: the most recent journal entries of a tab.
//
// The server runs on stdio or is mounted on the HTTP listener as a
// streamable-HTTP endpoint.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/voxmate/internal/controller"
)

// ErrUnknownTab is returned when a tool names a tab that is not connected, or
// omits the tab while several are connected.
var ErrUnknownTab = errors.New("mcpserver: unknown tab")

// Sessions gives the tools access to the live controllers.
type Sessions interface {
	// Controller returns the controller of tab.
	Controller(tab string) (*controller.Controller, bool)

	// Tabs lists the connected tabs.
	Tabs() []string
}

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithVersion sets the implementation version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server is the voxmate MCP server.
type Server struct {
	sessions Sessions
	version  string
	mcp      *sdk.Server
}

// New creates a [Server] over sessions and registers its tools.
func New(sessions Sessions, opts ...Option) *Server {
	s := &Server{sessions: sessions, version: "dev"}
	for _, o := range opts {
		o(s)
	}
	s.mcp = sdk.NewServer(&sdk.Implementation{Name: "voxmate", Version: s.version}, nil)
	s.registerTools()
	return s
}

// RunStdio serves MCP on stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.mcp.Run(ctx, &sdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcpserver: stdio: %w", err)
	}
	return nil
}

// Handler returns the streamable-HTTP endpoint.
func (s *Server) Handler() http.Handler {
	return sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server { return s.mcp }, nil)
}

// Connect serves a single session on t. Used with in-memory transports.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// controller resolves tab. An empty tab is accepted when exactly one tab is
// connected.
func (s *Server) controller(tab string) (*controller.Controller, error) {
	if tab == "" {
		tabs := s.sessions.Tabs()
		if len(tabs) != 1 {
			slices.Sort(tabs)
			return nil, fmt.Errorf("%w: tab is required, connected tabs: %v", ErrUnknownTab, tabs)
		}
		tab = tabs[0]
	}
	c, ok := s.sessions.Controller(tab)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	return c, nil
}
