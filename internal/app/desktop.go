package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxmate/internal/config"
	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/internal/input"
	"github.com/MrWong99/voxmate/internal/recognition"
	"github.com/MrWong99/voxmate/pkg/audio"
	"github.com/MrWong99/voxmate/pkg/provider/stt"
	"github.com/MrWong99/voxmate/pkg/types"
)

// Microphone is a local PCM source. *audio.Microphone implements it.
type Microphone interface {
	Start() error
	Frames() <-chan audio.AudioFrame
	Format() audio.Format
	Close() error
}

// Desktop is push-to-talk from the local microphone: while the hotkey has
// toggled listening on, captured audio runs through the offline recognizer
// and the transcripts go to the controller of the configured tab.
type Desktop struct {
	tab     string
	hotkey  string
	mic     Microphone
	tabs    *TabManager
	rec     *recognition.Session
	toggled chan bool
	resets  chan struct{}
}

// NewDesktop wires mic and the offline provider to the tab named in cfg.
// opts tune the recognition session.
func NewDesktop(cfg config.DesktopConfig, mic Microphone, offline stt.Provider, tabs *TabManager, opts ...recognition.Option) (*Desktop, error) {
	if offline == nil {
		return nil, errors.New("app: desktop mode needs the offline recognizer")
	}
	d := &Desktop{
		tab:     cfg.Tab,
		hotkey:  cfg.Hotkey,
		mic:     mic,
		tabs:    tabs,
		toggled: make(chan bool, 1),
		resets:  make(chan struct{}, 1),
	}
	opts = append(opts, recognition.WithOnReset(d.onReset))
	d.rec = recognition.New(offline, opts...)
	return d, nil
}

// Run captures until ctx is cancelled.
func (d *Desktop) Run(ctx context.Context) error {
	toggle, err := input.NewToggle(d.hotkey, d.onToggle)
	if err != nil {
		return err
	}
	if err := d.mic.Start(); err != nil {
		return err
	}
	defer d.mic.Close()

	slog.Info("desktop capture ready", "hotkey", d.hotkey, "tab", d.tab)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return toggle.Run(gctx) })
	g.Go(func() error { return ignoreCanceled(d.rec.Run(gctx)) })
	g.Go(func() error { return d.applyToggles(gctx) })
	g.Go(func() error {
		d.expireConfirmations(gctx)
		return nil
	})
	g.Go(func() error {
		d.forwardTranscripts(gctx)
		return nil
	})
	g.Go(func() error {
		d.pumpAudio(gctx, toggle)
		return nil
	})
	return g.Wait()
}

// onToggle runs on the hotkey goroutine; the recognition session is driven
// from applyToggles.
func (d *Desktop) onToggle(listening bool) {
	select {
	case <-d.toggled:
	default:
	}
	d.toggled <- listening
}

// onReset runs on the recognition goroutine when the inactivity timer clears
// the recognizer.
func (d *Desktop) onReset() {
	select {
	case d.resets <- struct{}{}:
	default:
	}
}

// expireConfirmations discards the target tab's pending confirmation after
// every inactivity reset.
func (d *Desktop) expireConfirmations(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.resets:
			c, tab, ok := d.target()
			if !ok {
				continue
			}
			if err := c.Reset(ctx); err != nil && ctx.Err() == nil {
				slog.Debug("desktop: reset after inactivity", "tab", tab, "err", err)
			}
		}
	}
}

func (d *Desktop) applyToggles(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case on := <-d.toggled:
			var err error
			if on {
				slog.Info("desktop: listening", "tab", d.tab)
				err = d.rec.Start(ctx)
			} else {
				slog.Info("desktop: muted", "tab", d.tab)
				err = d.rec.Stop(ctx)
			}
			if err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

func (d *Desktop) pumpAudio(ctx context.Context, toggle *input.Toggle) {
	frames := audio.ConvertStream(d.mic.Frames(), audio.RecognizerFormat)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if !toggle.Listening() {
				continue
			}
			if err := d.rec.SendAudio(f.Data); err != nil {
				slog.Debug("desktop: audio dropped", "err", err)
			}
		}
	}
}

func (d *Desktop) forwardTranscripts(ctx context.Context) {
	for t := range d.rec.Results() {
		d.submit(ctx, t)
	}
}

// target returns the controller of the configured tab, or of the only
// connected tab when none is configured.
func (d *Desktop) target() (*controller.Controller, string, bool) {
	tab := d.tab
	if tab == "" {
		if tabs := d.tabs.Tabs(); len(tabs) == 1 {
			tab = tabs[0]
		}
	}
	c, ok := d.tabs.Controller(tab)
	return c, tab, ok
}

func (d *Desktop) submit(ctx context.Context, t types.Transcript) {
	c, tab, ok := d.target()
	if !ok {
		if t.IsFinal {
			slog.Warn("desktop: no tab to receive transcript", "tab", d.tab, "text", t.Text)
		}
		return
	}
	if err := c.Submit(ctx, t); err != nil && ctx.Err() == nil {
		slog.Debug("desktop: transcript dropped", "tab", tab, "err", err)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
