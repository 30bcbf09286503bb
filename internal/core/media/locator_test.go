package media

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sumannaidur/extractor/internal/shared"
)

type fakeSearcher struct {
	results map[string][]shared.VideoCandidate
	errs    map[string]error
	calls   []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]shared.VideoCandidate, error) {
	f.calls = append(f.calls, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	res := f.results[query]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func newTestLocator(s *fakeSearcher) *Locator {
	return NewLocator(s, 3, shared.NewConsoleLoggerTo(io.Discard))
}

func TestQueries(t *testing.T) {
	want := []string{"X Y", "X Y official audio", "X Y official song", "X Y lyrics"}
	if diff := cmp.Diff(want, Queries("X", "Y")); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestLocateContainmentMatch(t *testing.T) {
	s := &fakeSearcher{results: map[string][]shared.VideoCandidate{
		"X Y": {
			{Title: "Something else", Reference: "ref-0"},
			{Title: "X - Official Audio | y", Reference: "ref-1"},
		},
	}}
	ref, err := newTestLocator(s).Locate(context.Background(), "X", "Y")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if ref != "ref-1" {
		t.Errorf("expected ref-1, got %s", ref)
	}
	if len(s.calls) != 1 {
		t.Errorf("search should stop at first match, got calls %v", s.calls)
	}
}

func TestLocateMatchInLaterVariant(t *testing.T) {
	s := &fakeSearcher{results: map[string][]shared.VideoCandidate{
		"Song Singer":               {{Title: "Unrelated", Reference: "first"}},
		"Song Singer official song": {{Title: "SONG by SINGER", Reference: "match"}},
	}}
	ref, err := newTestLocator(s).Locate(context.Background(), "Song", "Singer")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if ref != "match" {
		t.Errorf("expected containment match from later variant, got %s", ref)
	}
}

func TestLocateFallbackToFirstResult(t *testing.T) {
	s := &fakeSearcher{
		errs: map[string]error{"Song Singer": errors.New("tool crashed")},
		results: map[string][]shared.VideoCandidate{
			"Song Singer official audio": {{Title: "Unrelated A", Reference: "a"}},
			"Song Singer lyrics":         {{Title: "Unrelated B", Reference: "b"}},
		},
	}
	ref, err := newTestLocator(s).Locate(context.Background(), "Song", "Singer")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if ref != "a" {
		t.Errorf("expected first candidate of first successful search, got %s", ref)
	}
	if len(s.calls) != 4 {
		t.Errorf("all variants should be tried before falling back, got %v", s.calls)
	}
}

func TestLocateNoMedia(t *testing.T) {
	s := &fakeSearcher{errs: map[string]error{"Song Singer": errors.New("down")}}
	_, err := newTestLocator(s).Locate(context.Background(), "Song", "Singer")
	if !errors.Is(err, shared.ErrNoMedia) {
		t.Errorf("expected ErrNoMedia, got %v", err)
	}
}

func TestLocateCachesQueries(t *testing.T) {
	s := &fakeSearcher{results: map[string][]shared.VideoCandidate{
		"X Y": {{Title: "X Y", Reference: "r"}},
	}}
	l := newTestLocator(s)
	for i := 0; i < 2; i++ {
		if _, err := l.Locate(context.Background(), "X", "Y"); err != nil {
			t.Fatal(err)
		}
	}
	if len(s.calls) != 1 {
		t.Errorf("expected cached second lookup, got %d searches", len(s.calls))
	}
}

func TestMatchesFoldsCase(t *testing.T) {
	if !Matches("ÜBER ALLES – Künstler", fold("über alles"), fold("KÜNSTLER")) {
		t.Error("expected case-folded match")
	}
}
