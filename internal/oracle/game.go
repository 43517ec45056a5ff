package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/voxmate/pkg/types"
	"github.com/notnil/chess"
)

var _ Oracle = (*Game)(nil)

// Game is a full rules engine seeded from a FEN. It knows about check,
// castling rights and en passant, unlike the shadow board.
type Game struct {
	mu   sync.Mutex
	game *chess.Game
}

// NewGame parses fen and returns a Game positioned there.
func NewGame(fen string) (*Game, error) {
	g := &Game{}
	if err := g.SetFEN(fen); err != nil {
		return nil, err
	}
	return g, nil
}

// SetFEN replaces the position.
func (g *Game) SetFEN(fen string) error {
	opt, err := chess.FEN(fen)
	if err != nil {
		return fmt.Errorf("oracle: parse fen: %w", err)
	}
	game := chess.NewGame(opt)
	g.mu.Lock()
	g.game = game
	g.mu.Unlock()
	return nil
}

// FEN returns the current position.
func (g *Game) FEN() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.game.Position().String()
}

func (g *Game) Name() string { return "game" }

func (g *Game) LegalMoves(ctx context.Context) ([]types.LegalMove, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	pos := g.game.Position()
	valid := g.game.ValidMoves()
	out := make([]types.LegalMove, 0, len(valid))
	for _, m := range valid {
		out = append(out, toLegalMove(pos, m))
	}
	return out, nil
}

// Move advances the engine by m. The move must be legal in the current
// position.
func (g *Game) Move(ctx context.Context, m types.LegalMove) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, vm := range g.game.ValidMoves() {
		if vm.S1().String() == m.From && vm.S2().String() == m.To && promoLetter(vm.Promo()) == m.Promotion {
			if err := g.game.Move(vm); err != nil {
				return fmt.Errorf("oracle: game move %s: %w", m, err)
			}
			return nil
		}
	}
	return fmt.Errorf("oracle: game move %s: not legal", m)
}

// ApplySAN advances the engine by a move observed on the host page.
func (g *Game) ApplySAN(san string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, err := chess.AlgebraicNotation{}.Decode(g.game.Position(), san)
	if err != nil {
		return fmt.Errorf("oracle: decode %q: %w", san, err)
	}
	if err := g.game.Move(m); err != nil {
		return fmt.Errorf("oracle: apply %q: %w", san, err)
	}
	return nil
}

func (g *Game) Turn() types.Color {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.game.Position().Turn() == chess.Black {
		return types.Black
	}
	return types.White
}

func toLegalMove(pos *chess.Position, m *chess.Move) types.LegalMove {
	piece := pos.Board().Piece(m.S1())
	color := types.White
	if piece.Color() == chess.Black {
		color = types.Black
	}
	return types.LegalMove{
		From:      m.S1().String(),
		To:        m.S2().String(),
		Piece:     pieceKind(piece.Type()).Code(color),
		Promotion: promoLetter(m.Promo()),
		SAN:       chess.AlgebraicNotation{}.Encode(pos, m),
	}
}

func pieceKind(t chess.PieceType) types.PieceKind {
	switch t {
	case chess.King:
		return types.King
	case chess.Queen:
		return types.Queen
	case chess.Rook:
		return types.Rook
	case chess.Bishop:
		return types.Bishop
	case chess.Knight:
		return types.Knight
	case chess.Pawn:
		return types.Pawn
	}
	return types.NoPiece
}

func promoLetter(t chess.PieceType) byte {
	return pieceKind(t).Letter()
}
