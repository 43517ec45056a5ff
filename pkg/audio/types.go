// Package audio moves 16-bit PCM between the capture sources (the browser
// bridge and the local microphone) and the offline recognizer, converting
// sample rate and channel layout on the way.
package audio

import (
	"fmt"

	"github.com/MrWong99/voxmate/pkg/types"
)

// AudioFrame is a chunk of 16-bit little-endian PCM.
type AudioFrame = types.AudioFrame

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// RecognizerFormat is the layout the offline recognizer expects.
var RecognizerFormat = Format{SampleRate: 16000, Channels: 1}

func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}
