package journal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/voxmate/internal/journal"
)

func seed(t *testing.T, s journal.Store) {
	t.Helper()
	ctx := context.Background()
	for i, raw := range []string{"e four", "night f3", "yes", "castle short"} {
		tab := "a"
		if i%2 == 1 {
			tab = "b"
		}
		e := journal.Entry{Tab: tab, Time: time.Unix(int64(i), 0).UTC(), Raw: raw, Outcome: "matched"}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
}

func raws(es []journal.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Raw
	}
	return out
}

func testStore(t *testing.T, s journal.Store) {
	t.Helper()
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		tab   string
		limit int
		want  []string
	}{
		{tab: "", limit: 0, want: []string{"e four", "night f3", "yes", "castle short"}},
		{tab: "", limit: 2, want: []string{"yes", "castle short"}},
		{tab: "a", limit: 10, want: []string{"e four", "yes"}},
		{tab: "b", limit: 1, want: []string{"castle short"}},
		{tab: "zzz", limit: 5, want: []string{}},
	}
	for _, tc := range tests {
		got, err := s.Recent(ctx, tc.tab, tc.limit)
		if err != nil {
			t.Fatalf("Recent(%q, %d): %v", tc.tab, tc.limit, err)
		}
		g := raws(got)
		if len(g) != len(tc.want) {
			t.Errorf("Recent(%q, %d) = %q, want %q", tc.tab, tc.limit, g, tc.want)
			continue
		}
		for i := range g {
			if g[i] != tc.want[i] {
				t.Errorf("Recent(%q, %d) = %q, want %q", tc.tab, tc.limit, g, tc.want)
				break
			}
		}
	}
}

func TestMemStore(t *testing.T) {
	t.Parallel()
	testStore(t, journal.NewMemStore(0))
}

func TestMemStore_Evicts(t *testing.T) {
	t.Parallel()

	s := journal.NewMemStore(2)
	seed(t, s)
	got, _ := s.Recent(context.Background(), "", 0)
	if g := raws(got); len(g) != 2 || g[0] != "yes" || g[1] != "castle short" {
		t.Errorf("Recent after eviction = %q", g)
	}
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	testStore(t, journal.NewFileStore(path))
}

func TestFileStore_MissingFileAndMalformedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.jsonl")
	s := journal.NewFileStore(path)

	got, err := s.Recent(context.Background(), "", 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("Recent on missing file = %v, %v", got, err)
	}

	if err := s.Record(context.Background(), journal.Entry{Tab: "a", Raw: "e4"}); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("{not json\n")
	_ = f.Close()
	if err := s.Record(context.Background(), journal.Entry{Tab: "a", Raw: "d4"}); err != nil {
		t.Fatal(err)
	}

	got, err = s.Recent(context.Background(), "a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if g := raws(got); len(g) != 2 || g[0] != "e4" || g[1] != "d4" {
		t.Errorf("Recent = %q, want [e4 d4]", g)
	}
}
