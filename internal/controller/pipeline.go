package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/voxmate/internal/confirm"
	"github.com/MrWong99/voxmate/internal/journal"
	"github.com/MrWong99/voxmate/internal/observe"
	"github.com/MrWong99/voxmate/internal/resolve"
	"github.com/MrWong99/voxmate/pkg/types"
)

// Outcome labels what the controller did with one utterance. The values are
// used as journal outcomes and metric attributes.
type Outcome string

const (
	OutcomePartial     Outcome = "partial"
	OutcomeNoParse     Outcome = "no_parse"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeAmbiguous   Outcome = "ambiguous"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeCommitted   Outcome = "committed"
	OutcomePrompted    Outcome = "prompted"
	OutcomeDiscarded   Outcome = "discarded"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeCommand     Outcome = "command"
	OutcomeFailed      Outcome = "failed"
)

// Result describes how one transcript was handled.
type Result struct {
	Outcome    Outcome
	Raw        string
	Normalized string
	Intent     resolve.Intent

	// Move is the committed or pending move.
	Move *types.LegalMove

	// Candidates lists the competing moves of an ambiguous utterance.
	Candidates []types.LegalMove

	// Err is the failure behind OutcomeFailed or OutcomeUnavailable.
	Err error

	Latency time.Duration
}

// process runs the utterance pipeline on the controller goroutine.
func (c *Controller) process(ctx context.Context, t types.Transcript) Result {
	if !t.IsFinal {
		if t.Text != "" {
			c.setStatus("hearing: " + t.Text)
		}
		return Result{Outcome: OutcomePartial, Raw: t.Text}
	}

	start := time.Now()
	ctx, span := observe.StartUtterance(ctx, c.tracer, c.tab, c.currentOracle().Name())

	norm := c.normalizer.Run(t.Text)
	res := Result{Raw: t.Text, Normalized: norm.Text}
	if len(norm.Corrections) > 0 {
		observe.Logger(ctx).Debug("controller: phonetic corrections",
			"tab", c.tab,
			"corrections", norm.Corrections,
		)
	}

	if c.dialogue.State() == confirm.AwaitingConfirmation {
		c.answer(ctx, &res)
	} else {
		c.resolve(ctx, &res)
	}

	res.Latency = time.Since(start)
	c.metrics.RecordUtterance(ctx, string(res.Outcome), res.Latency)
	c.record(ctx, res)

	observe.Logger(ctx).Info("controller: utterance",
		"tab", c.tab,
		"raw", res.Raw,
		"normalized", res.Normalized,
		"outcome", res.Outcome,
		"strategy", res.Intent.Strategy,
		"latency", res.Latency,
	)
	var move string
	if res.Move != nil {
		move = res.Move.String()
	}
	observe.EndUtterance(span, string(res.Outcome), res.Intent.Strategy, move, res.Err)
	return res
}

// answer handles an utterance while a move awaits confirmation. Only yes,
// no and cancel have an effect.
func (c *Controller) answer(ctx context.Context, res *Result) {
	in, _ := c.resolver.Parse(res.Normalized)
	res.Intent = in

	decision, m := c.dialogue.Answer(in.Command)
	res.Move = m
	switch decision {
	case confirm.Commit:
		c.commit(ctx, res, *m)
	case confirm.Discard:
		res.Outcome = OutcomeDiscarded
		c.say(ctx, "cancelled", "cancelled")
	default:
		res.Outcome = OutcomeIgnored
		if p := c.dialogue.Pending(); p != nil {
			c.setStatus(fmt.Sprintf("confirm %s? say yes or no", p))
		}
	}
}

// resolve handles an utterance while no confirmation is pending.
func (c *Controller) resolve(ctx context.Context, res *Result) {
	in, ok := c.resolver.Parse(res.Normalized)
	if !ok {
		res.Outcome = OutcomeNoParse
		return
	}
	res.Intent = in
	if in.IsCommand() && in.Command != resolve.CastleKingside && in.Command != resolve.CastleQueenside {
		c.command(ctx, res, in.Command)
		return
	}

	o := c.currentOracle()
	legal, err := o.LegalMoves(ctx)
	if err != nil {
		res.Outcome = OutcomeUnavailable
		res.Err = fmt.Errorf("controller: %s legal moves: %w", o.Name(), err)
		observe.Logger(ctx).Warn("controller: legal moves unavailable", "tab", c.tab, "oracle", o.Name(), "err", err)
		c.setStatus("legal moves unavailable")
		return
	}

	r := c.resolver.Resolve(res.Normalized, legal)
	res.Intent = r.Intent
	switch r.Outcome {
	case resolve.Matched:
		res.Move = r.Move
		switch c.dialogue.Propose(*r.Move) {
		case confirm.Commit:
			c.commit(ctx, res, *r.Move)
		default:
			res.Outcome = OutcomePrompted
			c.say(ctx,
				fmt.Sprintf("confirm %s? say yes or no", r.Move),
				r.Move.Spoken()+", confirm?",
			)
		}
	case resolve.Ambiguous:
		res.Outcome = OutcomeAmbiguous
		res.Candidates = r.Candidates
		c.say(ctx,
			"ambiguous: "+joinMoves(r.Candidates),
			"ambiguous, please specify a source",
		)
	case resolve.NoMatch:
		res.Outcome = OutcomeNoMatch
		c.setStatus("illegal move: " + res.Normalized)
	default:
		res.Outcome = OutcomeNoParse
	}
}

// command dispatches a special command that needs no legal-move lookup.
func (c *Controller) command(ctx context.Context, res *Result, cmd resolve.Command) {
	res.Outcome = OutcomeCommand
	switch cmd {
	case resolve.Clear, resolve.Cancel:
		if err := c.speaker.Cancel(ctx); err != nil {
			observe.Logger(ctx).Debug("controller: cancel speech", "tab", c.tab, "err", err)
		}
		c.setStatus("cleared")
	case resolve.Yes, resolve.No:
		res.Outcome = OutcomeIgnored
		c.setStatus("nothing to confirm")
	default:
		if c.exec == nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("controller: %s: %w", cmd, ErrNoExecutor)
			c.setStatus(cmd.String() + " is not available")
			return
		}
		actx, cancel := context.WithTimeout(ctx, c.execTimeout)
		defer cancel()
		if err := c.exec.Action(actx, cmd.String()); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("controller: %s: %w", cmd, err)
			observe.Logger(ctx).Warn("controller: action failed", "tab", c.tab, "action", cmd, "err", err)
			c.say(ctx, "could not "+spokenCommand(cmd), "could not "+spokenCommand(cmd))
			return
		}
		c.say(ctx, spokenCommand(cmd), spokenCommand(cmd))
	}
}

// commit plays m: on the page through the executor unless the oracle drives
// the page itself, then in the oracle's own model.
func (c *Controller) commit(ctx context.Context, res *Result, m types.LegalMove) {
	o := c.currentOracle()
	if err := c.play(ctx, o, m); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		observe.Logger(ctx).Warn("controller: move failed", "tab", c.tab, "move", m, "err", err)
		c.say(ctx, "could not play "+m.String(), "could not play the move")
		return
	}
	res.Outcome = OutcomeCommitted
	c.echo = cleanSAN(m.SAN)
	c.say(ctx, "played "+m.String(), m.Spoken())
}

// record journals a final utterance. Failures are logged only.
func (c *Controller) record(ctx context.Context, res Result) {
	if c.journal == nil {
		return
	}
	e := journal.Entry{
		Tab:        c.tab,
		Time:       time.Now(),
		Raw:        res.Raw,
		Normalized: res.Normalized,
		Outcome:    string(res.Outcome),
		Strategy:   res.Intent.Strategy,
		Oracle:     c.currentOracle().Name(),
		Latency:    res.Latency,
	}
	if res.Intent != (resolve.Intent{}) {
		e.Intent = res.Intent.String()
	}
	if res.Move != nil {
		e.Move = res.Move.String()
	}
	if err := c.journal.Record(ctx, e); err != nil {
		observe.Logger(ctx).Warn("controller: journal record failed", "tab", c.tab, "err", err)
	}
}

func joinMoves(moves []types.LegalMove) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

func spokenCommand(cmd resolve.Command) string {
	return strings.ReplaceAll(cmd.String(), "-", " ")
}

// cleanSAN drops check, mate and annotation suffixes.
func cleanSAN(san string) string {
	return strings.TrimRight(strings.TrimSpace(san), "+#!?")
}
