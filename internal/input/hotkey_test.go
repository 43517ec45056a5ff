//go:build linux || darwin || windows

package input

import (
	"testing"

	"golang.design/x/hotkey"
)

func TestParseHotkey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec     string
		wantMods int
		wantKey  hotkey.Key
		wantErr  bool
	}{
		{spec: "ctrl+shift+m", wantMods: 2, wantKey: hotkey.KeyM},
		{spec: " Ctrl+Shift+Space ", wantMods: 2, wantKey: hotkey.KeySpace},
		{spec: "alt+f9", wantMods: 1, wantKey: hotkey.KeyF9},
		{spec: "cmd+1", wantMods: 1, wantKey: hotkey.Key1},
		{spec: "m", wantErr: true},
		{spec: "", wantErr: true},
		{spec: "hyper+m", wantErr: true},
		{spec: "ctrl+pgup", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()
			mods, key, err := ParseHotkey(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseHotkey(%q) = nil error, want error", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHotkey(%q): %v", tt.spec, err)
			}
			if len(mods) != tt.wantMods {
				t.Errorf("got %d modifiers, want %d", len(mods), tt.wantMods)
			}
			if key != tt.wantKey {
				t.Errorf("key = %v, want %v", key, tt.wantKey)
			}
		})
	}
}

func TestToggle_SetNotifiesOnChange(t *testing.T) {
	t.Parallel()

	var got []bool
	tg, err := NewToggle("ctrl+shift+m", func(on bool) { got = append(got, on) })
	if err != nil {
		t.Fatalf("NewToggle: %v", err)
	}

	tg.Set(true)
	tg.Set(true)
	tg.Set(false)

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("callbacks = %v, want [true false]", got)
	}
	if tg.Listening() {
		t.Error("Listening() = true after Set(false)")
	}
}
