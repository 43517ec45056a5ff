// Package confirm implements the spoken confirmation dialogue that sits
// between a resolved move and its execution.
//
// With auto-confirm enabled every proposed move commits immediately. Without
// it the move is held until the user says "yes", and "no" or "cancel"
// discards it. Nothing else is accepted while a move is pending.
package confirm

import (
	"sync"

	"github.com/MrWong99/voxmate/internal/resolve"
	"github.com/MrWong99/voxmate/pkg/types"
)

// State is the dialogue state.
type State int

const (
	Idle State = iota
	AwaitingConfirmation
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	}
	return "unknown"
}

// Decision tells the caller what to do after a dialogue step.
type Decision int

const (
	// Ignore means the input has no effect on the dialogue.
	Ignore Decision = iota

	// Commit means the move must be executed now.
	Commit

	// Prompt means the move is pending and the user should be asked to
	// confirm it.
	Prompt

	// Discard means the pending move was dropped.
	Discard
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Ignore:
		return "ignore"
	case Commit:
		return "commit"
	case Prompt:
		return "prompt"
	case Discard:
		return "discard"
	}
	return "unknown"
}

// Dialogue is the confirmation state machine. All methods are safe for
// concurrent use.
type Dialogue struct {
	mu          sync.Mutex
	state       State
	pending     *types.LegalMove
	autoConfirm bool
}

// New returns an idle dialogue.
func New(autoConfirm bool) *Dialogue {
	return &Dialogue{autoConfirm: autoConfirm}
}

// SetAutoConfirm changes the auto-confirm setting. Turning it on does not
// commit a move that is already pending.
func (d *Dialogue) SetAutoConfirm(on bool) {
	d.mu.Lock()
	d.autoConfirm = on
	d.mu.Unlock()
}

// AutoConfirm reports the current setting.
func (d *Dialogue) AutoConfirm() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.autoConfirm
}

// State returns the current state.
func (d *Dialogue) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending returns a copy of the move awaiting confirmation, or nil.
func (d *Dialogue) Pending() *types.LegalMove {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	m := *d.pending
	return &m
}

// Propose offers a matched move. With auto-confirm it returns Commit and the
// dialogue stays idle. Otherwise the move replaces any pending one and
// Prompt is returned.
func (d *Dialogue) Propose(m types.LegalMove) Decision {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.autoConfirm {
		return Commit
	}
	d.pending = &m
	d.state = AwaitingConfirmation
	return Prompt
}

// Answer feeds a command while a move may be pending. Yes commits and returns
// the move; No and Cancel discard. Any other command, or any command while
// idle, is ignored.
func (d *Dialogue) Answer(cmd resolve.Command) (Decision, *types.LegalMove) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != AwaitingConfirmation {
		return Ignore, nil
	}
	switch cmd {
	case resolve.Yes:
		m := d.pending
		d.reset()
		return Commit, m
	case resolve.No, resolve.Cancel:
		m := d.pending
		d.reset()
		return Discard, m
	}
	return Ignore, nil
}

// Expire drops the pending move after recognition inactivity. It reports
// whether a move was dropped.
func (d *Dialogue) Expire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != AwaitingConfirmation {
		return false
	}
	d.reset()
	return true
}

func (d *Dialogue) reset() {
	d.pending = nil
	d.state = Idle
}
