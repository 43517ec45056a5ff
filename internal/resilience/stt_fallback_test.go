package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voxmate/pkg/provider/stt"
	sttmock "github.com/MrWong99/voxmate/pkg/provider/stt/mock"
)

func TestSTTFallback_StartStream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		primaryErr error
		nativeErr  error
		wantActive string
		wantErr    bool
	}{
		{name: "offline recognizer", wantActive: "vosk"},
		{name: "falls back to native", primaryErr: errors.New("model missing"), wantActive: "native"},
		{name: "both fail", primaryErr: errors.New("model missing"), nativeErr: errors.New("tab closed"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			primary := &sttmock.Provider{StartStreamErr: tt.primaryErr}
			native := &sttmock.Provider{StartStreamErr: tt.nativeErr}

			fb := NewSTTFallback(primary, "vosk", FallbackConfig{
				CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
			})
			fb.AddFallback("native", native)

			handle, err := fb.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
			if tt.wantErr {
				if !errors.Is(err, ErrAllFailed) {
					t.Fatalf("err = %v, want ErrAllFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer handle.Close()

			if fb.Active() != tt.wantActive {
				t.Errorf("Active() = %q, want %q", fb.Active(), tt.wantActive)
			}
			if primary.StartCount() != 1 {
				t.Errorf("primary StartStream calls = %d, want 1", primary.StartCount())
			}
			wantNative := 0
			if tt.primaryErr != nil {
				wantNative = 1
			}
			if native.StartCount() != wantNative {
				t.Errorf("native StartStream calls = %d, want %d", native.StartCount(), wantNative)
			}
		})
	}
}
