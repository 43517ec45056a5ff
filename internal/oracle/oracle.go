// Package oracle answers "which moves are legal right now" for a session.
//
// Three sources exist, in decreasing order of authority:
//
//   - [Host]: the host page's own game object, queried over the extension
//     bridge. It also commits moves itself.
//   - [Game]: a full rules engine (github.com/notnil/chess) loaded from a FEN
//     the extension pushed.
//   - [Shadow]: the pseudo-legal move generator of the session's shadow board.
//
// [Probe] picks one source per session; the caller never branches on the
// source again.
package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrWong99/voxmate/pkg/types"
)

// ErrUnavailable is returned when the oracle's backing source cannot answer.
var ErrUnavailable = errors.New("oracle: unavailable")

// Oracle supplies legal moves and records committed ones.
type Oracle interface {
	// Name identifies the variant ("host", "game", "shadow").
	Name() string

	// LegalMoves returns the legal moves of the side to move.
	LegalMoves(ctx context.Context) ([]types.LegalMove, error)

	// Move commits m. For [Host] this executes the move on the page; the
	// other variants only advance their local model after the move has been
	// executed elsewhere.
	Move(ctx context.Context, m types.LegalMove) error

	// Turn returns the side to move.
	Turn() types.Color
}

// ExecutesOnHost reports whether o's Move performs the move on the host page
// itself, so the caller must not drive the page a second time.
func ExecutesOnHost(o Oracle) bool {
	_, ok := o.(*Host)
	return ok
}

// Capabilities describes what the extension reported for a tab.
type Capabilities struct {
	// HostGame is true when the page exposes a game object the extension can
	// query and drive.
	HostGame bool

	// FEN is the current position if the extension could read one.
	FEN string
}

// ProbeTimeout bounds the host query made by [Probe].
const ProbeTimeout = 2 * time.Second

// Probe selects the most authoritative oracle the capabilities allow:
// Host, then Game, then Shadow. link may be nil when no bridge exists.
func Probe(ctx context.Context, caps Capabilities, link HostLink, shadow *Shadow) Oracle {
	if caps.HostGame && link != nil {
		h := NewHost(link)
		pctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
		_, err := h.LegalMoves(pctx)
		cancel()
		if err == nil {
			slog.Info("oracle: using host game object")
			return h
		}
		slog.Warn("oracle: host game object did not answer", "err", err)
	}
	if caps.FEN != "" {
		g, err := NewGame(caps.FEN)
		if err == nil {
			slog.Info("oracle: using local rules engine")
			return g
		}
		slog.Warn("oracle: bad FEN from host page", "fen", caps.FEN, "err", err)
	}
	slog.Info("oracle: using shadow board")
	return shadow
}

// Follower is implemented by oracles that track moves made on the host page
// (by the opponent or by mouse) so their local model stays current.
type Follower interface {
	ApplySAN(san string) error
}

var (
	_ Follower = (*Game)(nil)
	_ Follower = (*Shadow)(nil)
)
