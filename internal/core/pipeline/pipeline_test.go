package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sumannaidur/extractor/internal/core/sink"
	"github.com/sumannaidur/extractor/internal/shared"
)

type fakeResolver struct {
	tracks map[string][]shared.TrackRecord
}

func (r *fakeResolver) Resolve(_ context.Context, title, _ string, _ int) []shared.TrackRecord {
	return r.tracks[title]
}

type fakeLocator struct {
	missing map[string]bool
}

func (l *fakeLocator) Locate(_ context.Context, title, _ string) (string, error) {
	if l.missing[title] {
		return "", shared.ErrNoMedia
	}
	return "https://video.example/" + title, nil
}

type fakeFetcher struct {
	fail    bool
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, _, destination string) (string, error) {
	if f.fail {
		return "", shared.ErrDownloadFailed
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(destination, []byte("RIFF"), 0644); err != nil {
		return "", err
	}
	f.fetched = append(f.fetched, destination)
	return destination, nil
}

type fakeExtractor struct {
	err      error
	features shared.FeatureVector
}

func (e *fakeExtractor) Extract(path string) (shared.FeatureVector, error) {
	if _, err := os.Stat(path); err != nil {
		return shared.FeatureVector{}, err
	}
	return e.features, e.err
}

type memorySink struct {
	rows       []shared.EnrichedRecord
	seen       map[string]bool
	persistErr error
}

func newMemorySink(ids ...string) *memorySink {
	s := &memorySink{seen: map[string]bool{}}
	for _, id := range ids {
		s.seen[id] = true
	}
	return s
}

func (s *memorySink) IsProcessed(id string) bool { return s.seen[id] }
func (s *memorySink) Count() int                 { return len(s.seen) }
func (s *memorySink) Close() error               { return nil }

func (s *memorySink) Persist(rec shared.EnrichedRecord) error {
	if s.seen[rec.ID] {
		return shared.ErrAlreadyProcessed
	}
	s.seen[rec.ID] = true
	if s.persistErr != nil {
		return s.persistErr
	}
	s.rows = append(s.rows, rec)
	return nil
}

type recordingLedger struct {
	started  []string
	finished []*shared.RunSummary
	failures map[string]string
	cleared  []string
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{failures: map[string]string{}}
}

func (l *recordingLedger) StartRun(_ context.Context, runID string) error {
	l.started = append(l.started, runID)
	return nil
}

func (l *recordingLedger) FinishRun(_ context.Context, summary *shared.RunSummary) error {
	l.finished = append(l.finished, summary)
	return nil
}

func (l *recordingLedger) RecordFailure(_ context.Context, track shared.TrackRecord, stage string, _ error) error {
	l.failures[track.ID] = stage
	return nil
}

func (l *recordingLedger) ClearFailure(_ context.Context, trackID string) error {
	l.cleared = append(l.cleared, trackID)
	return nil
}

var sampleFeatures = shared.FeatureVector{
	Tempo: 120, Loudness: -12, Key: 3, Danceability: 0.4,
	Energy: 0.6, Speechiness: 0.1, Instrumentalness: 0.5,
}

func track(id, title string) shared.TrackRecord {
	return shared.TrackRecord{
		ID: id, Title: title, Artist: "A", Album: "Example Movie",
		MovieTitle: "Example Movie", Language: "telugu", Year: 2015,
	}
}

type harness struct {
	resolver  *fakeResolver
	locator   *fakeLocator
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	sink      *memorySink
	ledger    *recordingLedger
	warnings  *shared.WarningCollector
	audioDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		resolver:  &fakeResolver{tracks: map[string][]shared.TrackRecord{}},
		locator:   &fakeLocator{missing: map[string]bool{}},
		fetcher:   &fakeFetcher{},
		extractor: &fakeExtractor{features: sampleFeatures},
		sink:      newMemorySink(),
		ledger:    newRecordingLedger(),
		warnings:  shared.NewWarningCollector(true),
		audioDir:  t.TempDir(),
	}
}

func (h *harness) pipeline() *Pipeline {
	return New(Deps{
		Resolver:  h.resolver,
		Locator:   h.locator,
		Fetcher:   h.fetcher,
		Extractor: h.extractor,
		Sink:      h.sink,
		Ledger:    h.ledger,
		Logger:    shared.NewConsoleLoggerTo(io.Discard),
		Warnings:  h.warnings,
	}, h.audioDir)
}

func TestProcessTrackPersists(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline()

	outcome := p.ProcessTrack(context.Background(), track("t1", "Song One"))
	if outcome.Kind != Persisted {
		t.Fatalf("expected persisted, got %s", outcome.Describe())
	}
	if len(h.sink.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(h.sink.rows))
	}
	if diff := cmp.Diff(sampleFeatures, h.sink.rows[0].FeatureVector); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
	if len(h.fetcher.fetched) != 1 || shared.FileExists(h.fetcher.fetched[0]) {
		t.Errorf("staged audio should be removed after extraction: %v", h.fetcher.fetched)
	}
	want := filepath.Join(h.audioDir, "telugu", "2015", "t1.wav")
	if h.fetcher.fetched[0] != want {
		t.Errorf("artifact path = %s, want %s", h.fetcher.fetched[0], want)
	}
	if diff := cmp.Diff([]string{"t1"}, h.ledger.cleared); diff != "" {
		t.Errorf("cleared mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessTrackSkipsProcessed(t *testing.T) {
	h := newHarness(t)
	h.sink = newMemorySink("t1")
	p := h.pipeline()

	outcome := p.ProcessTrack(context.Background(), track("t1", "Song One"))
	if outcome.Kind != Skipped {
		t.Fatalf("expected skipped, got %s", outcome.Describe())
	}
	if len(h.fetcher.fetched) != 0 {
		t.Error("processed track should not be downloaded")
	}
}

func TestProcessTrackAbandonStages(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		stage Stage
		warn  shared.WarningType
	}{
		{
			name:  "no media",
			setup: func(h *harness) { h.locator.missing["Song One"] = true },
			stage: StageLocate,
			warn:  shared.MediaMissWarning,
		},
		{
			name:  "download failure",
			setup: func(h *harness) { h.fetcher.fail = true },
			stage: StageDownload,
			warn:  shared.DownloadFailedWarning,
		},
		{
			name:  "extraction failure",
			setup: func(h *harness) { h.extractor.err = shared.ErrExtractionFailed },
			stage: StageExtract,
			warn:  shared.ExtractionFailedWarning,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)
			p := h.pipeline()

			outcome := p.ProcessTrack(context.Background(), track("t1", "Song One"))
			if outcome.Kind != Abandoned || outcome.Stage != tt.stage {
				t.Fatalf("got %s, want abandoned at %s", outcome.Describe(), tt.stage)
			}
			if len(h.sink.rows) != 0 || h.sink.IsProcessed("t1") {
				t.Error("abandoned track must not be persisted")
			}
			if h.ledger.failures["t1"] != string(tt.stage) {
				t.Errorf("ledger stage = %q, want %q", h.ledger.failures["t1"], tt.stage)
			}
			if len(h.warnings.GetWarningsByType()[tt.warn]) != 1 {
				t.Errorf("expected one %v warning", tt.warn)
			}
			for _, path := range h.fetcher.fetched {
				if shared.FileExists(path) {
					t.Errorf("artifact %s left behind", path)
				}
			}
		})
	}
}

func TestProcessTrackPersistFailure(t *testing.T) {
	h := newHarness(t)
	h.sink.persistErr = shared.ErrPersistFailed
	p := h.pipeline()

	outcome := p.ProcessTrack(context.Background(), track("t1", "Song One"))
	if outcome.Kind != PersistFailed || !errors.Is(outcome.Err, shared.ErrPersistFailed) {
		t.Fatalf("expected persist failure, got %s", outcome.Describe())
	}
	if h.ledger.failures["t1"] != string(StagePersist) {
		t.Errorf("persist failure not recorded: %v", h.ledger.failures)
	}
}

func writeMovieList(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCountsPerLanguage(t *testing.T) {
	h := newHarness(t)
	h.resolver.tracks["Example Movie"] = []shared.TrackRecord{
		track("t1", "Song One"),
		track("t2", "Song Two"),
		track("t3", "Song Three"),
	}
	h.locator.missing["Song Two"] = true
	h.sink = newMemorySink("t3")
	p := h.pipeline()

	dir := t.TempDir()
	telugu := writeMovieList(t, dir, "telugu.csv",
		"Title,Release Date,Language\n"+
			"Example Movie,10-07-2015,Telugu\n"+
			"Unknown Movie,01-01-2010,Telugu\n"+
			"Ancient Movie,01-01-1850,Telugu\n")
	hindi := writeMovieList(t, dir, "hindi.csv", "Title,Year\nX,2001\n")

	summary, err := p.Run(context.Background(), []Source{
		{Language: "telugu", Path: telugu},
		{Language: "hindi", Path: hindi},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if diff := cmp.Diff([]string{"telugu", "hindi"}, summary.Languages); diff != "" {
		t.Errorf("language order mismatch (-want +got):\n%s", diff)
	}
	wantTelugu := shared.LanguageStats{Movies: 2, Processed: 1, Skipped: 1, Abandoned: 1, NoTracks: 1, InvalidRows: 1}
	if diff := cmp.Diff(wantTelugu, *summary.Stats["telugu"]); diff != "" {
		t.Errorf("telugu stats mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(shared.LanguageStats{Errors: 1}, *summary.Stats["hindi"]); diff != "" {
		t.Errorf("hindi stats mismatch (-want +got):\n%s", diff)
	}

	if len(h.ledger.started) != 1 || h.ledger.started[0] != summary.RunID {
		t.Errorf("run start not recorded: %v", h.ledger.started)
	}
	if len(h.ledger.finished) != 1 || summary.EndedAt.IsZero() {
		t.Error("run finish not recorded")
	}
	byType := h.warnings.GetWarningsByType()
	if len(byType[shared.CatalogMissWarning]) != 1 || len(byType[shared.MalformedInputWarning]) != 2 {
		t.Errorf("unexpected warnings: %v", byType)
	}
}

type countingObserver struct {
	started  map[string]int
	finished int
	done     []string
}

func (o *countingObserver) LanguageStarted(language string, movies int) {
	o.started[language] = movies
}

func (o *countingObserver) MovieFinished(string, shared.Movie) { o.finished++ }

func (o *countingObserver) LanguageFinished(language string, _ shared.LanguageStats) {
	o.done = append(o.done, language)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	h := newHarness(t)
	h.resolver.tracks["A"] = []shared.TrackRecord{track("a1", "A1")}
	obs := &countingObserver{started: map[string]int{}}
	p := New(Deps{
		Resolver:  h.resolver,
		Locator:   h.locator,
		Fetcher:   h.fetcher,
		Extractor: h.extractor,
		Sink:      h.sink,
		Logger:    shared.NewConsoleLoggerTo(io.Discard),
		Warnings:  h.warnings,
		Observer:  obs,
	}, h.audioDir)

	path := writeMovieList(t, t.TempDir(), "telugu.csv", "Title,Release Date,Language\nA,2010,Telugu\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Run(ctx, []Source{{Language: "telugu", Path: path}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary == nil || summary.Totals().Movies != 0 {
		t.Errorf("no movie should be processed after cancellation: %+v", summary)
	}
	if len(h.sink.rows) != 0 || obs.finished != 0 {
		t.Error("cancelled run should not persist records")
	}
}

func TestRunReportsProgress(t *testing.T) {
	h := newHarness(t)
	h.resolver.tracks["A"] = []shared.TrackRecord{track("a1", "A1")}
	obs := &countingObserver{started: map[string]int{}}
	p := New(Deps{
		Resolver:  h.resolver,
		Locator:   h.locator,
		Fetcher:   h.fetcher,
		Extractor: h.extractor,
		Sink:      h.sink,
		Logger:    shared.NewConsoleLoggerTo(io.Discard),
		Warnings:  h.warnings,
		Observer:  obs,
	}, h.audioDir)

	path := writeMovieList(t, t.TempDir(), "telugu.csv", "Title,Release Date,Language\nA,2010,Telugu\nB,2011,Telugu\n")
	if _, err := p.Run(context.Background(), []Source{{Language: "telugu", Path: path}}); err != nil {
		t.Fatal(err)
	}
	if obs.started["telugu"] != 2 || obs.finished != 2 {
		t.Errorf("unexpected progress: started=%v finished=%d", obs.started, obs.finished)
	}
	if diff := cmp.Diff([]string{"telugu"}, obs.done); diff != "" {
		t.Errorf("finished languages mismatch (-want +got):\n%s", diff)
	}
}

// csvIDs returns the first column of every data row in a CSV store.
func csvIDs(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var ids []string
	for _, row := range rows[1:] {
		ids = append(ids, row[0])
	}
	return ids
}

func TestRunTwiceAgainstStoreWritesEachTrackOnce(t *testing.T) {
	h := newHarness(t)
	hindiTrack := track("h1", "Hindi Song")
	hindiTrack.MovieTitle, hindiTrack.Album = "Other Movie", "Other Movie"
	hindiTrack.Language, hindiTrack.Year = "hindi", 2001
	h.resolver.tracks["Example Movie"] = []shared.TrackRecord{track("t1", "Song One"), track("t2", "Song Two")}
	h.resolver.tracks["Other Movie"] = []shared.TrackRecord{hindiTrack}

	dir := t.TempDir()
	combinedPath := filepath.Join(dir, "combined.csv")
	partitionDir := filepath.Join(dir, "songs_by_year")
	sources := []Source{
		{Language: "telugu", Path: writeMovieList(t, dir, "telugu.csv", "Title,Release Date,Language\nExample Movie,10-07-2015,Telugu\n")},
		{Language: "hindi", Path: writeMovieList(t, dir, "hindi.csv", "Title,Release Date,Language\nOther Movie,01-01-2001,Hindi\n")},
	}

	run := func() shared.LanguageStats {
		t.Helper()
		store, err := sink.Open(combinedPath, partitionDir)
		if err != nil {
			t.Fatalf("sink.Open: %v", err)
		}
		defer store.Close()
		p := New(Deps{
			Resolver:  h.resolver,
			Locator:   h.locator,
			Fetcher:   h.fetcher,
			Extractor: h.extractor,
			Sink:      store,
			Ledger:    h.ledger,
			Logger:    shared.NewConsoleLoggerTo(io.Discard),
			Warnings:  h.warnings,
		}, h.audioDir)
		summary, err := p.Run(context.Background(), sources)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return summary.Totals()
	}

	first := run()
	if first.Processed != 3 || first.Skipped != 0 {
		t.Errorf("first run: processed %d, skipped %d; want 3, 0", first.Processed, first.Skipped)
	}
	second := run()
	if second.Processed != 0 || second.Skipped != 3 || second.Errors != 0 {
		t.Errorf("second run: processed %d, skipped %d, errors %d; want 0, 3, 0", second.Processed, second.Skipped, second.Errors)
	}
	if len(h.fetcher.fetched) != 3 {
		t.Errorf("second run should not download again, fetched %d", len(h.fetcher.fetched))
	}

	stores := []struct {
		path string
		want []string
	}{
		{combinedPath, []string{"t1", "t2", "h1"}},
		{filepath.Join(partitionDir, "telugu", "2015.csv"), []string{"t1", "t2"}},
		{filepath.Join(partitionDir, "hindi", "2001.csv"), []string{"h1"}},
	}
	for _, st := range stores {
		if diff := cmp.Diff(st.want, csvIDs(t, st.path)); diff != "" {
			t.Errorf("%s ids mismatch (-want +got):\n%s", st.path, diff)
		}
	}
}
