package audio

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// FormatConverter rewrites frames into Target. Create one per stream: the
// mismatch warning is logged once per converter.
type FormatConverter struct {
	Target Format

	warnMismatch sync.Once
	warnOdd      sync.Once
}

// Convert returns frame in the target format. A frame that already matches
// is returned as is. Frames with an odd byte count cannot be 16-bit PCM and
// come back with empty data.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	out := AudioFrame{SampleRate: c.Target.SampleRate, Channels: c.Target.Channels, Timestamp: frame.Timestamp}
	if len(frame.Data)%2 != 0 {
		c.warnOdd.Do(func() {
			slog.Warn("audio: dropping frame with odd byte count", "bytes", len(frame.Data), "format", Format{frame.SampleRate, frame.Channels})
		})
		return out
	}

	src := Format{SampleRate: frame.SampleRate, Channels: frame.Channels}
	if src == c.Target || src.SampleRate <= 0 || src.Channels <= 0 {
		return frame
	}
	c.warnMismatch.Do(func() {
		slog.Info("audio: converting stream", "from", src, "to", c.Target)
	})

	samples := decode(frame.Data)
	if src.Channels != 1 {
		samples = Downmix(samples, src.Channels)
	}
	samples = Resample(samples, src.SampleRate, c.Target.SampleRate)
	if c.Target.Channels > 1 {
		samples = upmix(samples, c.Target.Channels)
	}
	out.Data = encode(samples)
	return out
}

// ConvertStream converts every frame of in and forwards the non-empty ones.
// The returned channel is closed after in is closed.
func ConvertStream(in <-chan AudioFrame, target Format) <-chan AudioFrame {
	out := make(chan AudioFrame, cap(in))
	go func() {
		defer close(out)
		conv := &FormatConverter{Target: target}
		for f := range in {
			if f = conv.Convert(f); len(f.Data) > 0 {
				out <- f
			}
		}
	}()
	return out
}

// Downmix averages interleaved samples of the given channel count into mono.
// A trailing partial frame is discarded.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int32
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += int32(s)
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate by linear
// interpolation.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	out := make([]int16, n)
	step := float64(srcRate) / float64(dstRate)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(samples[j])*(1-frac) + float64(samples[j+1])*frac)
	}
	return out
}

func upmix(mono []int16, channels int) []int16 {
	out := make([]int16, len(mono)*channels)
	for i, s := range mono {
		for c := range channels {
			out[i*channels+c] = s
		}
	}
	return out
}

func decode(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func encode(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
