package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// ErrCaptureRunning is returned by [Microphone.Start] on a running capture.
var ErrCaptureRunning = errors.New("audio: capture already running")

// CaptureConfig configures the local microphone.
type CaptureConfig struct {
	// SampleRate in Hz. The recognizer wants 16000.
	SampleRate uint32

	// Channels captured from the device.
	Channels uint32

	// PeriodFrames is the number of frames delivered per callback.
	PeriodFrames uint32

	// Buffer is the number of frames queued before new ones are dropped.
	Buffer int
}

// DefaultCaptureConfig captures 30 ms periods of 16 kHz mono.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: 16000, Channels: 1, PeriodFrames: 480, Buffer: 64}
}

// Microphone captures 16-bit PCM from the default input device.
type Microphone struct {
	cfg     CaptureConfig
	frames  chan AudioFrame
	dropped atomic.Int64

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	started time.Time
	closed  bool
}

// NewMicrophone returns an unopened [Microphone]. Zero fields of cfg take
// the values of [DefaultCaptureConfig].
func NewMicrophone(cfg CaptureConfig) *Microphone {
	def := DefaultCaptureConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = def.Channels
	}
	if cfg.PeriodFrames == 0 {
		cfg.PeriodFrames = def.PeriodFrames
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	return &Microphone{cfg: cfg, frames: make(chan AudioFrame, cfg.Buffer)}
}

// Format reports the layout of the captured frames.
func (m *Microphone) Format() Format {
	return Format{SampleRate: int(m.cfg.SampleRate), Channels: int(m.cfg.Channels)}
}

// Start opens the default capture device and begins delivering frames.
func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("audio: capture closed")
	}
	if m.device != nil {
		return ErrCaptureRunning
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio: init context: %w", err)
	}

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = m.cfg.Channels
	dc.SampleRate = m.cfg.SampleRate
	dc.PeriodSizeInFrames = m.cfg.PeriodFrames

	started := time.Now()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			f := AudioFrame{
				Data:       append([]byte(nil), in...),
				SampleRate: int(m.cfg.SampleRate),
				Channels:   int(m.cfg.Channels),
				Timestamp:  time.Since(started),
			}
			select {
			case m.frames <- f:
			default:
				if m.dropped.Add(1) == 1 {
					slog.Warn("audio: capture buffer full, dropping frames")
				}
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, dc, callbacks)
	if err != nil {
		freeContext(mctx)
		return fmt.Errorf("audio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mctx)
		return fmt.Errorf("audio: start capture device: %w", err)
	}

	m.mctx, m.device, m.started = mctx, device, started
	slog.Info("audio: microphone capture started", "format", m.Format())
	return nil
}

// Frames delivers captured audio. It is closed by [Microphone.Close].
func (m *Microphone) Frames() <-chan AudioFrame { return m.frames }

// Dropped returns the number of frames lost to a full buffer.
func (m *Microphone) Dropped() int64 { return m.dropped.Load() }

// Close stops the device and closes the frame channel. It is safe to call
// more than once.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.device != nil {
		if serr := m.device.Stop(); serr != nil {
			err = fmt.Errorf("audio: stop capture device: %w", serr)
		}
		m.device.Uninit()
		m.device = nil
	}
	if m.mctx != nil {
		freeContext(m.mctx)
		m.mctx = nil
	}
	close(m.frames)
	return err
}

func freeContext(c *malgo.AllocatedContext) {
	if err := c.Uninit(); err != nil {
		slog.Debug("audio: uninit context", "err", err)
	}
	c.Free()
}
