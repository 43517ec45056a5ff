package movelist_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voxmate/internal/movelist"
	"github.com/MrWong99/voxmate/pkg/board"
	"github.com/MrWong99/voxmate/pkg/types"
)

func TestExtractTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "numbered", text: "1. e4 e5 2. Nf3 Nc6", want: []string{"e4", "e5", "Nf3", "Nc6"}},
		{name: "glued numbers", text: "1.e4 e5 2.Nf3", want: []string{"e4", "e5", "Nf3"}},
		{name: "black continuation", text: "12... Qxd5", want: []string{"Qxd5"}},
		{name: "result white", text: "1. f3 e5 2. g4 Qh4# 0-1", want: []string{"f3", "e5", "g4", "Qh4#"}},
		{name: "draw", text: "e4 e5 1/2-1/2", want: []string{"e4", "e5"}},
		{name: "ongoing", text: "e4 *", want: []string{"e4"}},
		{name: "castling zeros kept", text: "0-0 0-0-0", want: []string{"0-0", "0-0-0"}},
		{name: "multiline", text: "1.\n e4\n\n e5\t", want: []string{"e4", "e5"}},
		{name: "empty", text: "  ", want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := movelist.ExtractTokens(tc.text); !slices.Equal(got, tc.want) {
				t.Errorf("ExtractTokens(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestReplay(t *testing.T) {
	t.Parallel()

	pos := board.NewPosition()
	rep := movelist.Replay(pos, movelist.ExtractTokens("1. e4 e5 2. Nf3 Nc6 3. Bb5 a6"))

	if rep.Applied != 6 || rep.Skipped != 0 {
		t.Fatalf("Replay: applied=%d skipped=%d, want 6/0", rep.Applied, rep.Skipped)
	}
	if rep.Turn != types.White {
		t.Errorf("Turn = %v, want white", rep.Turn)
	}
	if rep.LastSAN != "a6" {
		t.Errorf("LastSAN = %q, want a6", rep.LastSAN)
	}
	for sq, want := range map[string]byte{"e4": 'P', "e5": 'p', "f3": 'N', "c6": 'n', "b5": 'B', "a6": 'p', "g1": 0, "f1": 0} {
		if got := pos.PieceAt(sq); got != want {
			t.Errorf("PieceAt(%s) = %q, want %q", sq, got, want)
		}
	}
}

func TestReplay_RetriesStrippedToken(t *testing.T) {
	t.Parallel()

	pos := board.NewPosition()
	rep := movelist.Replay(pos, []string{"1.e4", "e5", "Nf3!?"})
	if rep.Applied != 3 || rep.Skipped != 0 {
		t.Fatalf("Replay: applied=%d skipped=%d, want 3/0", rep.Applied, rep.Skipped)
	}
	if pos.PieceAt("e4") != 'P' {
		t.Errorf("PieceAt(e4) = %q, want P", pos.PieceAt("e4"))
	}
}

func TestReplay_SkipsUnreplayableAndKeepsColours(t *testing.T) {
	t.Parallel()

	pos := board.NewPosition()
	rep := movelist.Replay(pos, []string{"e4", "Zz9", "d4"})
	if rep.Skipped != 1 || !slices.Equal(rep.SkippedTokens, []string{"Zz9"}) {
		t.Fatalf("Skipped = %d %q, want 1 [Zz9]", rep.Skipped, rep.SkippedTokens)
	}
	// The third token is still White's.
	if pos.PieceAt("d4") != 'P' {
		t.Errorf("PieceAt(d4) = %q, want P", pos.PieceAt("d4"))
	}
	if rep.Turn != types.Black {
		t.Errorf("Turn = %v, want black", rep.Turn)
	}
}

func TestReplay_Idempotent(t *testing.T) {
	t.Parallel()

	tokens := movelist.ExtractTokens("1. d4 d5 2. c4 dxc4 3. e4 b5 4. a4 c6 5. axb5 cxb5")
	a := board.NewPosition()
	movelist.Replay(a, tokens)

	b := board.NewPosition()
	b.ApplyMove("e4", types.White) // stale state is discarded
	movelist.Replay(b, tokens)
	movelist.Replay(b, tokens)

	if !a.Equal(b) {
		t.Errorf("replays differ:\n%s\n%s", a, b)
	}
}

type syncRecorder struct {
	mu      sync.Mutex
	reports []movelist.Report
	signal  chan struct{}
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{signal: make(chan struct{}, 16)}
}

func (r *syncRecorder) record(rep movelist.Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *syncRecorder) snapshot() []movelist.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]movelist.Report(nil), r.reports...)
}

func (r *syncRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resync")
	}
}

func TestSynchronizer_DebouncesBursts(t *testing.T) {
	t.Parallel()

	rec := newSyncRecorder()
	s := movelist.New(movelist.WithDebounce(30*time.Millisecond), movelist.WithOnSynced(rec.record))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Observe(movelist.Snapshot{Text: "1. e4"})
	s.Observe(movelist.Snapshot{Text: "1. e4 e5"})
	s.Observe(movelist.Snapshot{Text: "1. e4 e5 2. Nf3"})

	rec.wait(t)
	time.Sleep(80 * time.Millisecond)

	reports := rec.snapshot()
	if len(reports) != 1 {
		t.Fatalf("got %d resyncs, want 1", len(reports))
	}
	if reports[0].Tokens != 3 {
		t.Errorf("Tokens = %d, want 3", reports[0].Tokens)
	}
}

func TestSynchronizer_SkipsUnchangedCountUnlessForced(t *testing.T) {
	t.Parallel()

	rec := newSyncRecorder()
	s := movelist.New(movelist.WithOnSynced(rec.record))

	if _, ok := s.Sync(movelist.Snapshot{Text: "e4 e5"}); !ok {
		t.Fatal("first Sync skipped")
	}
	if _, ok := s.Sync(movelist.Snapshot{Text: "1. e4 e5"}); ok {
		t.Error("Sync with unchanged count ran")
	}
	if _, ok := s.Sync(movelist.Snapshot{Text: "d4 d5", Force: true}); !ok {
		t.Error("forced Sync skipped")
	}
	s.Invalidate()
	if _, ok := s.Sync(movelist.Snapshot{Text: "d4 d5"}); !ok {
		t.Error("Sync after Invalidate skipped")
	}
	if got := len(rec.snapshot()); got != 3 {
		t.Errorf("callbacks = %d, want 3", got)
	}
}

func TestSynchronizer_ForceSurvivesCoalescing(t *testing.T) {
	t.Parallel()

	rec := newSyncRecorder()
	s := movelist.New(movelist.WithDebounce(20*time.Millisecond))
	s.OnSynced(rec.record)
	s.Sync(movelist.Snapshot{Text: "e4"})
	<-rec.signal

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Both snapshots land before Run starts; only the latest survives but
	// keeps the earlier Force flag.
	s.Observe(movelist.Snapshot{Text: "d4", Force: true})
	s.Observe(movelist.Snapshot{Text: "c4"})
	go s.Run(ctx)

	rec.wait(t)
	reports := rec.snapshot()
	if last := reports[len(reports)-1]; last.LastSAN != "c4" {
		t.Errorf("LastSAN = %q, want c4", last.LastSAN)
	}
}
