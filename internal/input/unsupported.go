//go:build !linux && !darwin && !windows

package input

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without global hotkeys.
var ErrUnsupported = errors.New("input: global hotkeys are not supported on this platform")

// Toggle is unavailable on this platform.
type Toggle struct{}

// NewToggle always fails with [ErrUnsupported].
func NewToggle(string, func(bool)) (*Toggle, error) { return nil, ErrUnsupported }

func (t *Toggle) Run(context.Context) error { return ErrUnsupported }
func (t *Toggle) Listening() bool          { return false }
func (t *Toggle) Set(bool)                 {}
