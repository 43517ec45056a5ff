package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/voxmate/pkg/board"
	"github.com/MrWong99/voxmate/pkg/types"
)

var _ Oracle = (*Shadow)(nil)

// Shadow serves pseudo-legal moves from the session's shadow board. It does
// not know about check, so its move lists are a superset of the legal ones.
type Shadow struct {
	mu   sync.Mutex
	pos  *board.Position
	turn types.Color
}

// NewShadow wraps pos. White moves first.
func NewShadow(pos *board.Position) *Shadow {
	return &Shadow{pos: pos, turn: types.White}
}

// Sync replaces the position and side to move after a move-list resync.
func (s *Shadow) Sync(pos *board.Position, turn types.Color) {
	s.mu.Lock()
	s.pos = pos
	s.turn = turn
	s.mu.Unlock()
}

// Position returns the current shadow position.
func (s *Shadow) Position() *board.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *Shadow) Name() string { return "shadow" }

func (s *Shadow) LegalMoves(ctx context.Context) ([]types.LegalMove, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return nil, ErrUnavailable
	}
	return s.pos.PseudoLegalMoves(s.turn), nil
}

// Move applies m to the shadow board and passes the turn.
func (s *Shadow) Move(ctx context.Context, m types.LegalMove) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return ErrUnavailable
	}
	if !s.pos.ApplyMove(m.Coordinate(), s.turn) {
		return fmt.Errorf("oracle: shadow move %s rejected", m)
	}
	s.turn = s.turn.Opponent()
	return nil
}

// ApplySAN records a move observed on the host page.
func (s *Shadow) ApplySAN(san string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return ErrUnavailable
	}
	if !s.pos.ApplyMove(san, s.turn) {
		return fmt.Errorf("oracle: shadow apply %q rejected", san)
	}
	s.turn = s.turn.Opponent()
	return nil
}

func (s *Shadow) Turn() types.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}
