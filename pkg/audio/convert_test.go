package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/MrWong99/voxmate/pkg/audio"
)

func pcm(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func samplesOf(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func TestDownmix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       []int16
		channels int
		want     []int16
	}{
		{name: "mono unchanged", in: []int16{1, 2, 3}, channels: 1, want: []int16{1, 2, 3}},
		{name: "stereo average", in: []int16{100, 300, -50, 50}, channels: 2, want: []int16{200, 0}},
		{name: "no overflow", in: []int16{32767, 32767, -32768, -32768}, channels: 2, want: []int16{32767, -32768}},
		{name: "partial frame dropped", in: []int16{10, 20, 30}, channels: 2, want: []int16{15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := audio.Downmix(tt.in, tt.channels)
			if len(got) != len(tt.want) {
				t.Fatalf("Downmix() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Downmix() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestResample(t *testing.T) {
	t.Parallel()

	in := make([]int16, 480)
	for i := range in {
		in[i] = int16(i)
	}

	if got := audio.Resample(in, 16000, 16000); len(got) != len(in) {
		t.Errorf("same rate: got %d samples, want %d", len(got), len(in))
	}
	down := audio.Resample(in, 48000, 16000)
	if len(down) != 160 {
		t.Fatalf("48k->16k: got %d samples, want 160", len(down))
	}
	if down[1] != 3 {
		t.Errorf("48k->16k: sample 1 = %d, want 3", down[1])
	}
	up := audio.Resample([]int16{0, 100}, 8000, 16000)
	if len(up) != 4 || up[1] != 50 || up[3] != 100 {
		t.Errorf("8k->16k = %v, want [0 50 100 100]", up)
	}
	if got := audio.Resample(in, 0, 16000); len(got) != len(in) {
		t.Error("zero source rate should return the input")
	}
}

func TestFormatConverter_Convert(t *testing.T) {
	t.Parallel()

	t.Run("matching format is returned as is", func(t *testing.T) {
		t.Parallel()
		conv := &audio.FormatConverter{Target: audio.RecognizerFormat}
		in := audio.AudioFrame{Data: pcm(1, 2, 3), SampleRate: 16000, Channels: 1, Timestamp: time.Second}
		out := conv.Convert(in)
		if &out.Data[0] != &in.Data[0] {
			t.Error("matching frame was copied")
		}
	})

	t.Run("browser stereo to recognizer", func(t *testing.T) {
		t.Parallel()
		conv := &audio.FormatConverter{Target: audio.RecognizerFormat}
		stereo := make([]int16, 0, 960)
		for range 480 {
			stereo = append(stereo, 1000, 3000)
		}
		out := conv.Convert(audio.AudioFrame{Data: pcm(stereo...), SampleRate: 48000, Channels: 2, Timestamp: 20 * time.Millisecond})
		if out.SampleRate != 16000 || out.Channels != 1 {
			t.Fatalf("format = %d/%d, want 16000/1", out.SampleRate, out.Channels)
		}
		got := samplesOf(out.Data)
		if len(got) != 160 {
			t.Fatalf("got %d samples, want 160", len(got))
		}
		for _, s := range got {
			if s != 2000 {
				t.Fatalf("sample = %d, want 2000", s)
			}
		}
		if out.Timestamp != 20*time.Millisecond {
			t.Errorf("timestamp = %v, want 20ms", out.Timestamp)
		}
	})

	t.Run("odd byte count yields empty frame", func(t *testing.T) {
		t.Parallel()
		conv := &audio.FormatConverter{Target: audio.RecognizerFormat}
		out := conv.Convert(audio.AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 16000, Channels: 1})
		if len(out.Data) != 0 {
			t.Errorf("got %d bytes, want none", len(out.Data))
		}
	})

	t.Run("mono to stereo", func(t *testing.T) {
		t.Parallel()
		conv := &audio.FormatConverter{Target: audio.Format{SampleRate: 16000, Channels: 2}}
		out := conv.Convert(audio.AudioFrame{Data: pcm(7, -7), SampleRate: 16000, Channels: 1})
		got := samplesOf(out.Data)
		if len(got) != 4 || got[0] != 7 || got[1] != 7 || got[2] != -7 || got[3] != -7 {
			t.Errorf("samples = %v, want [7 7 -7 -7]", got)
		}
	})
}

func TestConvertStream(t *testing.T) {
	t.Parallel()

	in := make(chan audio.AudioFrame, 3)
	in <- audio.AudioFrame{Data: pcm(1, 1, 2, 2), SampleRate: 16000, Channels: 2}
	in <- audio.AudioFrame{Data: []byte{9}, SampleRate: 16000, Channels: 2}
	in <- audio.AudioFrame{Data: pcm(4, 6), SampleRate: 16000, Channels: 2}
	close(in)

	var got [][]int16
	for f := range audio.ConvertStream(in, audio.RecognizerFormat) {
		got = append(got, samplesOf(f.Data))
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2 (odd frame dropped)", len(got))
	}
	if got[0][0] != 1 || got[0][1] != 2 || got[1][0] != 5 {
		t.Errorf("frames = %v, want [[1 2] [5]]", got)
	}
}

func TestFormat_String(t *testing.T) {
	t.Parallel()
	if s := audio.RecognizerFormat.String(); s != "16000Hz mono" {
		t.Errorf("String() = %q", s)
	}
	if s := (audio.Format{SampleRate: 48000, Channels: 6}).String(); s != "48000Hz 6ch" {
		t.Errorf("String() = %q", s)
	}
}
