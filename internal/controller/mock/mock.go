// Package mock provides a test double for the controller.Executor interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxmate/pkg/types"
)

// ExecuteCall records a single invocation of Execute.
type ExecuteCall struct {
	Move    types.LegalMove
	Attempt int
}

// Executor is a mock implementation of controller.Executor.
type Executor struct {
	mu sync.Mutex

	// ExecuteErrs is consumed one entry per Execute call; once exhausted,
	// Execute returns nil.
	ExecuteErrs []error

	// ActionErr, if non-nil, is returned by every Action call.
	ActionErr error

	// ExecuteCalls records every Execute call in order.
	ExecuteCalls []ExecuteCall

	// ActionCalls records every Action call in order.
	ActionCalls []string
}

// Execute records the call and returns the next queued error.
func (e *Executor) Execute(_ context.Context, m types.LegalMove, attempt int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ExecuteCalls = append(e.ExecuteCalls, ExecuteCall{Move: m, Attempt: attempt})
	if len(e.ExecuteErrs) == 0 {
		return nil
	}
	err := e.ExecuteErrs[0]
	e.ExecuteErrs = e.ExecuteErrs[1:]
	return err
}

// Action records the call and returns ActionErr.
func (e *Executor) Action(_ context.Context, action string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ActionCalls = append(e.ActionCalls, action)
	return e.ActionErr
}

// Executed returns a copy of ExecuteCalls. Thread-safe.
func (e *Executor) Executed() []ExecuteCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExecuteCall(nil), e.ExecuteCalls...)
}

// Actions returns a copy of ActionCalls. Thread-safe.
func (e *Executor) Actions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ActionCalls...)
}
