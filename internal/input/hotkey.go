//go:build linux || darwin || windows

// Package input turns a global keyboard shortcut into a push-to-talk
// toggle for the desktop microphone mode.
package input

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.design/x/hotkey"
)

// Toggle flips a listening flag every time its hotkey is pressed.
type Toggle struct {
	spec     string
	mods     []hotkey.Modifier
	key      hotkey.Key
	onToggle func(listening bool)

	mu        sync.Mutex
	listening bool
}

// NewToggle parses spec (for example "ctrl+shift+m") and returns a [Toggle]
// that calls onToggle with the new state after each key press.
func NewToggle(spec string, onToggle func(listening bool)) (*Toggle, error) {
	mods, key, err := ParseHotkey(spec)
	if err != nil {
		return nil, err
	}
	return &Toggle{spec: spec, mods: mods, key: key, onToggle: onToggle}, nil
}

// Run registers the hotkey and processes presses until ctx is cancelled.
// The hotkey is unregistered before Run returns.
func (t *Toggle) Run(ctx context.Context) error {
	hk := hotkey.New(t.mods, t.key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("input: register hotkey %q: %w", t.spec, err)
	}
	defer func() {
		if err := hk.Unregister(); err != nil {
			slog.Warn("input: unregister hotkey", "hotkey", t.spec, "err", err)
		}
	}()
	slog.Info("push-to-talk hotkey registered", "hotkey", t.spec)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hk.Keydown():
			t.Set(!t.Listening())
		}
	}
}

// Listening reports the current state.
func (t *Toggle) Listening() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listening
}

// Set changes the state and notifies the callback when it actually changed.
func (t *Toggle) Set(listening bool) {
	t.mu.Lock()
	changed := t.listening != listening
	t.listening = listening
	t.mu.Unlock()
	if changed && t.onToggle != nil {
		t.onToggle(listening)
	}
}

// ParseHotkey parses a "+"-separated shortcut such as "ctrl+shift+m". The
// last element is the key; all others are modifiers.
func ParseHotkey(spec string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(spec)), "+")
	if len(parts) < 2 {
		return nil, 0, fmt.Errorf("input: hotkey %q: need at least one modifier and a key", spec)
	}

	var mods []hotkey.Modifier
	for _, p := range parts[:len(parts)-1] {
		switch strings.TrimSpace(p) {
		case "ctrl", "control":
			mods = append(mods, hotkey.ModCtrl)
		case "shift":
			mods = append(mods, hotkey.ModShift)
		case "alt", "option":
			mods = append(mods, modAlt())
		case "cmd", "super", "win":
			mods = append(mods, modSuper())
		default:
			return nil, 0, fmt.Errorf("input: hotkey %q: unknown modifier %q", spec, p)
		}
	}

	name := strings.TrimSpace(parts[len(parts)-1])
	key, ok := keys[name]
	if !ok {
		return nil, 0, fmt.Errorf("input: hotkey %q: unknown key %q", spec, name)
	}
	return mods, key, nil
}

var keys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,

	"space":  hotkey.KeySpace,
	"enter":  hotkey.KeyReturn,
	"return": hotkey.KeyReturn,
	"tab":    hotkey.KeyTab,
	"esc":    hotkey.KeyEscape,
	"escape": hotkey.KeyEscape,
}
