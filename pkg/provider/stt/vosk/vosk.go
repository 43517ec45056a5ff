// Package vosk provides an offline stt.Provider backed by the Vosk speech
// recognition toolkit (CGO bindings to libvosk).
//
// The model is loaded once and shared by every session. Each session owns a
// recognizer driven by a single worker goroutine: audio chunks and grammar
// updates arrive on typed channels, and results leave on the Partials and
// Finals channels. A grammar narrows recognition to the chess vocabulary,
// which is far more accurate than free-form decoding for short commands.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/MrWong99/voxmate/pkg/provider/stt"
	vosk "github.com/alphacep/vosk-api/go"
)

// ErrModelUnavailable is returned when the model directory is missing or
// cannot be loaded. Callers fall back to another backend.
var ErrModelUnavailable = errors.New("vosk: model unavailable")

const defaultSampleRate = 16000

var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using an in-process Vosk model.
type Provider struct {
	model      *vosk.VoskModel
	sampleRate int
	grammar    []string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSampleRate sets the default recognizer sample rate. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithGrammar sets the default phrase list used when a StreamConfig carries
// none. An empty list means free-form recognition.
func WithGrammar(phrases []string) Option {
	return func(p *Provider) { p.grammar = phrases }
}

// New loads the model found at modelPath.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: empty model path", ErrModelUnavailable)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load %q: %v", ErrModelUnavailable, modelPath, err)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: load %q returned nil", ErrModelUnavailable, modelPath)
	}

	p := &Provider{model: model, sampleRate: defaultSampleRate}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the model. Sessions must be closed first.
func (p *Provider) Close() error {
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
	return nil
}

// StartStream opens a recognition session. cfg.SampleRate and cfg.Grammar
// override the provider defaults when set.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("vosk: start stream: %w", err)
	}
	if p.model == nil {
		return nil, ErrModelUnavailable
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = p.sampleRate
	}
	grammar := cfg.Grammar
	if len(grammar) == 0 {
		grammar = p.grammar
	}

	model := p.model
	factory := func(phrases []string) (recognizer, error) {
		return newRecognizer(model, rate, phrases)
	}
	s, err := startSession(ctx, factory, grammar)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newRecognizer(model *vosk.VoskModel, rate int, phrases []string) (recognizer, error) {
	var (
		rec *vosk.VoskRecognizer
		err error
	)
	if len(phrases) > 0 {
		g, gerr := grammarJSON(phrases)
		if gerr != nil {
			return nil, gerr
		}
		rec, err = vosk.NewRecognizerGrm(model, float64(rate), g)
	} else {
		rec, err = vosk.NewRecognizer(model, float64(rate))
	}
	if err != nil {
		return nil, fmt.Errorf("vosk: create recognizer: %w", err)
	}
	rec.SetWords(1)
	return rec, nil
}

// grammarJSON encodes phrases as the JSON array Vosk expects.
func grammarJSON(phrases []string) (string, error) {
	b, err := json.Marshal(phrases)
	if err != nil {
		return "", fmt.Errorf("vosk: encode grammar: %w", err)
	}
	return string(b), nil
}

// recognizer is the subset of *vosk.VoskRecognizer the worker uses.
type recognizer interface {
	AcceptWaveform(buffer []byte) int
	Result() string
	PartialResult() string
	FinalResult() string
	Free()
}

var _ recognizer = (*vosk.VoskRecognizer)(nil)
