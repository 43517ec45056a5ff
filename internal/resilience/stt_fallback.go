package resilience

import (
	"context"

	"github.com/MrWong99/voxmate/pkg/provider/stt"
)

var _ stt.Provider = (*STTFallback)(nil)

// STTFallback is an [stt.Provider] that opens streams on the first healthy
// recognizer. A tab configured for the offline recognizer keeps listening
// through the browser's recognizer while the offline one cannot start.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// recognizer.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers a recognizer tried after the previous ones.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Active returns the name of the recognizer that opened the last stream.
func (f *STTFallback) Active() string { return f.group.Active() }

// StartStream opens a stream on the first recognizer that accepts it.
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
