package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/voxmate/pkg/types"
)

// HostLink is the request/response channel to the host page's game object.
// The extension bridge implements it.
type HostLink interface {
	// QueryLegalMoves asks the page for the legal moves and the side to move.
	QueryLegalMoves(ctx context.Context) ([]types.LegalMove, types.Color, error)

	// SubmitMove asks the page to play m.
	SubmitMove(ctx context.Context, m types.LegalMove) error
}

var _ Oracle = (*Host)(nil)

// Host is the oracle backed by the page's own game object.
type Host struct {
	link HostLink

	mu   sync.Mutex
	turn types.Color
}

// NewHost wraps link.
func NewHost(link HostLink) *Host {
	return &Host{link: link}
}

func (h *Host) Name() string { return "host" }

func (h *Host) LegalMoves(ctx context.Context) ([]types.LegalMove, error) {
	moves, turn, err := h.link.QueryLegalMoves(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: host legal moves: %w", err)
	}
	h.mu.Lock()
	h.turn = turn
	h.mu.Unlock()
	return moves, nil
}

func (h *Host) Move(ctx context.Context, m types.LegalMove) error {
	if err := h.link.SubmitMove(ctx, m); err != nil {
		return fmt.Errorf("oracle: host move %s: %w", m, err)
	}
	h.mu.Lock()
	h.turn = h.turn.Opponent()
	h.mu.Unlock()
	return nil
}

// Turn returns the side to move as of the last query.
func (h *Host) Turn() types.Color {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.turn
}
