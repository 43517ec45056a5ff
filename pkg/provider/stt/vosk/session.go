package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voxmate/pkg/provider/stt"
	"github.com/MrWong99/voxmate/pkg/types"
)

var _ stt.SessionHandle = (*session)(nil)

type recognizerFactory func(phrases []string) (recognizer, error)

type grammarRequest struct {
	phrases []string
	errc    chan error
}

// session is a live recognition session. The recognizer and all decoding
// state are confined to the run goroutine.
type session struct {
	factory recognizerFactory

	audioCh   chan []byte
	grammarCh chan grammarRequest
	partials  chan types.Transcript
	finals    chan types.Transcript

	start time.Time
	ready chan struct{}
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func startSession(ctx context.Context, factory recognizerFactory, grammar []string) (*session, error) {
	rec, err := factory(grammar)
	if err != nil {
		return nil, err
	}
	s := &session{
		factory:   factory,
		audioCh:   make(chan []byte, 256),
		grammarCh: make(chan grammarRequest),
		partials:  make(chan types.Transcript, 64),
		finals:    make(chan types.Transcript, 64),
		start:     time.Now(),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	// The recognizer is built, so decoding starts with the first chunk.
	close(s.ready)
	s.wg.Add(1)
	go s.run(ctx, rec)
	return s, nil
}

// SendAudio queues a chunk of 16-bit little-endian mono PCM.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stt.ErrClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return stt.ErrClosed
	}
}

func (s *session) Partials() <-chan types.Transcript { return s.partials }

func (s *session) Finals() <-chan types.Transcript { return s.finals }

func (s *session) Ready() <-chan struct{} { return s.ready }

// SetGrammar rebuilds the recognizer with a new phrase list. Audio already
// queued is decoded with the new grammar.
func (s *session) SetGrammar(phrases []string) error {
	req := grammarRequest{phrases: phrases, errc: make(chan error, 1)}
	select {
	case s.grammarCh <- req:
	case <-s.done:
		return stt.ErrClosed
	}
	select {
	case err := <-req.errc:
		return err
	case <-s.done:
		return stt.ErrClosed
	}
}

// Close flushes the final result and stops the worker.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *session) run(ctx context.Context, rec recognizer) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)
	defer func() { rec.Free() }()

	var lastPartial string

	flush := func() {
		if t, ok := parseFinal(rec.FinalResult()); ok {
			t.Timestamp = time.Since(s.start)
			s.emit(s.finals, t)
		}
		lastPartial = ""
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case <-s.done:
			flush()
			return

		case req := <-s.grammarCh:
			next, err := s.factory(req.phrases)
			if err != nil {
				req.errc <- fmt.Errorf("vosk: set grammar: %w", err)
				continue
			}
			flush()
			rec.Free()
			rec = next
			req.errc <- nil

		case chunk := <-s.audioCh:
			if rec.AcceptWaveform(chunk) > 0 {
				if t, ok := parseFinal(rec.Result()); ok {
					t.Timestamp = time.Since(s.start)
					s.emit(s.finals, t)
				}
				lastPartial = ""
				continue
			}
			text, err := parsePartial(rec.PartialResult())
			if err != nil {
				slog.Warn("vosk: bad partial result", "err", err)
				continue
			}
			if text == "" || text == lastPartial {
				continue
			}
			lastPartial = text
			s.emit(s.partials, types.Transcript{Text: text, Timestamp: time.Since(s.start)})
		}
	}
}

// emit delivers t without blocking the decoder; a slow consumer loses
// results rather than stalling audio intake.
func (s *session) emit(ch chan types.Transcript, t types.Transcript) {
	select {
	case ch <- t:
	default:
		slog.Warn("vosk: result dropped, consumer too slow", "text", t.Text, "final", t.IsFinal)
	}
}

// ---- result parsing ---------------------------------------------------------

// result mirrors the JSON objects returned by the recognizer.
type result struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
	Result  []struct {
		Conf  float64 `json:"conf"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Word  string  `json:"word"`
	} `json:"result"`
}

var errBadResult = errors.New("vosk: malformed result")

// parseFinal decodes a Result or FinalResult payload. Empty text and the
// "[unk]" placeholder are reported as not ok.
func parseFinal(raw string) (types.Transcript, bool) {
	var r result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		slog.Warn("vosk: bad final result", "err", err)
		return types.Transcript{}, false
	}
	text := cleanText(r.Text)
	if text == "" {
		return types.Transcript{}, false
	}

	t := types.Transcript{Text: text, IsFinal: true}
	var sum float64
	for _, w := range r.Result {
		if w.Word == "[unk]" {
			continue
		}
		sum += w.Conf
		t.Words = append(t.Words, types.WordDetail{
			Word:       w.Word,
			Start:      seconds(w.Start),
			End:        seconds(w.End),
			Confidence: w.Conf,
		})
	}
	if len(t.Words) > 0 {
		t.Confidence = sum / float64(len(t.Words))
	}
	return t, true
}

func parsePartial(raw string) (string, error) {
	var r result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return "", fmt.Errorf("%w: %v", errBadResult, err)
	}
	return cleanText(r.Partial), nil
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "[unk]", "")
	return strings.Join(strings.Fields(s), " ")
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
