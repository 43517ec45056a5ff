package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/voxmate/internal/observe"
	"github.com/MrWong99/voxmate/internal/oracle"
	"github.com/MrWong99/voxmate/pkg/types"
)

const (
	// DefaultExecTimeout bounds one move execution across all attempts.
	DefaultExecTimeout = 1200 * time.Millisecond

	// DefaultExecAttempts is the number of input methods the extension knows
	// (click-click, drag, keyboard entry).
	DefaultExecAttempts = 3
)

var (
	// ErrNoEffect is returned by an [Executor] when an attempt did not change
	// the host page. The controller then tries the next attempt.
	ErrNoEffect = errors.New("controller: move had no effect on the page")

	// ErrNoExecutor is returned for page actions when no executor is wired.
	ErrNoExecutor = errors.New("controller: no executor")
)

// Executor performs moves and game actions on the host page.
type Executor interface {
	// Execute plays m using input method attempt (0-based). It returns
	// [ErrNoEffect] when the page did not react.
	Execute(ctx context.Context, m types.LegalMove, attempt int) error

	// Action triggers a page control: "resign", "offer-draw",
	// "accept-draw", "decline-draw" or "undo".
	Action(ctx context.Context, action string) error
}

// play executes m on the page if needed and advances the oracle.
func (c *Controller) play(ctx context.Context, o oracle.Oracle, m types.LegalMove) error {
	if oracle.ExecutesOnHost(o) {
		if err := o.Move(ctx, m); err != nil {
			return fmt.Errorf("controller: host move %s: %w", m, err)
		}
		return nil
	}

	if c.exec != nil {
		if err := c.execute(ctx, m); err != nil {
			return err
		}
	}
	if err := o.Move(ctx, m); err != nil {
		// The page has the move; the next move-list resync repairs the model.
		slog.Warn("controller: oracle did not accept executed move",
			"tab", c.tab,
			"oracle", o.Name(),
			"move", m,
			"err", err,
		)
		c.sync.Invalidate()
	}
	return nil
}

// execute tries each input method in order until one changes the page, the
// executor fails hard, or the time budget runs out.
func (c *Controller) execute(ctx context.Context, m types.LegalMove) error {
	ctx, cancel := context.WithTimeout(ctx, c.execTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, observe.SpanExecute)
	span.SetAttributes(observe.AttrMove.String(m.String()))
	defer span.End()

	start := time.Now()
	defer func() {
		c.metrics.ExecuteDuration.Record(ctx, time.Since(start).Seconds())
	}()

	var err error
	for attempt := 0; attempt < c.attempts; attempt++ {
		span.SetAttributes(observe.AttrAttempts.Int(attempt + 1))
		err = c.exec.Execute(ctx, m, attempt)
		if err == nil {
			c.metrics.RecordExecutorAttempt(ctx, "ok")
			return nil
		}
		if !errors.Is(err, ErrNoEffect) {
			c.metrics.RecordExecutorAttempt(ctx, "error")
			break
		}
		c.metrics.RecordExecutorAttempt(ctx, "no_effect")
		slog.Debug("controller: execution attempt had no effect", "tab", c.tab, "move", m, "attempt", attempt)
		if ctx.Err() != nil {
			break
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "execute failed")
	return fmt.Errorf("controller: execute %s: %w", m, err)
}
