package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sumannaidur/extractor/internal/shared"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndClearFailures(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	a := shared.TrackRecord{ID: "a", Title: "Song A", Artist: "X", Language: "telugu", Year: 2015}
	b := shared.TrackRecord{ID: "b", Title: "Song B", Artist: "Y", Language: "hindi", Year: 2001}

	if err := store.RecordFailure(ctx, a, "download", errors.New("first")); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordFailure(ctx, a, "extract", errors.New("second")); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordFailure(ctx, b, "locate", shared.ErrNoMedia); err != nil {
		t.Fatal(err)
	}

	failures, err := store.TopFailures(ctx, 10)
	if err != nil {
		t.Fatalf("TopFailures: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	top := failures[0]
	if top.TrackID != "a" || top.Count != 2 || top.Stage != "extract" || top.LastError != "second" {
		t.Errorf("unexpected top failure: %+v", top)
	}

	if err := store.ClearFailure(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	n, err := store.FailureCount(ctx)
	if err != nil || n != 1 {
		t.Errorf("expected 1 remaining failure, got %d (%v)", n, err)
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	summary := shared.NewRunSummary("run-1")
	if err := store.StartRun(ctx, summary.RunID); err != nil {
		t.Fatal(err)
	}
	summary.For("telugu").Processed = 4
	summary.For("telugu").Abandoned = 1
	summary.For("hindi").Skipped = 2
	if err := store.FinishRun(ctx, summary); err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.FinishedAt == nil {
		t.Error("finished run should have a finish time")
	}
	if diff := cmp.Diff(shared.LanguageStats{Processed: 4, Abandoned: 1, Skipped: 2}, run.Totals); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
	if run.PerLang["telugu"].Processed != 4 || run.PerLang["hindi"].Skipped != 2 {
		t.Errorf("per-language stats not decoded: %+v", run.PerLang)
	}
}
