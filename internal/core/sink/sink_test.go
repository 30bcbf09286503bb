package sink

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sumannaidur/extractor/internal/shared"
)

func record(id, language string, year int) shared.EnrichedRecord {
	rec, err := shared.NewEnrichedRecord(
		shared.TrackRecord{ID: id, Title: "Song " + id, Artist: "A, B", Album: "OST", ReleaseDate: "2015-07-10", MovieTitle: "Movie", Language: language, Year: year},
		shared.FeatureVector{Tempo: 120.5, Loudness: 0.1},
	)
	if err != nil {
		panic(err)
	}
	return rec
}

func readCSV(t *testing.T, path string) [][]string {
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
	return rows
}

func openTestSink(t *testing.T, dir string) *Sink {
	t.Helper()
	s, err := Open(filepath.Join(dir, "combined.csv"), filepath.Join(dir, "songs_by_year"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPersistWritesCombinedAndPartition(t *testing.T) {
	dir := t.TempDir()
	s := openTestSink(t, dir)

	for _, rec := range []shared.EnrichedRecord{record("t1", "telugu", 2015), record("t2", "telugu", 2015), record("t3", "hindi", 1999)} {
		if err := s.Persist(rec); err != nil {
			t.Fatalf("Persist %s: %v", rec.ID, err)
		}
	}

	combined := readCSV(t, filepath.Join(dir, "combined.csv"))
	if diff := cmp.Diff(Header, combined[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if len(combined) != 4 {
		t.Errorf("expected header + 3 rows, got %d", len(combined))
	}

	telugu := readCSV(t, filepath.Join(dir, "songs_by_year", "telugu", "2015.csv"))
	if len(telugu) != 3 || telugu[1][0] != "t1" || telugu[2][0] != "t2" {
		t.Errorf("unexpected telugu partition: %v", telugu)
	}
	if telugu[1][6] != "120.5" || telugu[1][15] != "2015" {
		t.Errorf("unexpected row encoding: %v", telugu[1])
	}

	totals, err := PartitionTotals(filepath.Join(dir, "songs_by_year"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]int{"telugu": 2, "hindi": 1}, totals); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	s := openTestSink(t, dir)

	if err := s.Persist(record("t1", "telugu", 2015)); err != nil {
		t.Fatal(err)
	}
	err := s.Persist(record("t1", "telugu", 2015))
	if !errors.Is(err, shared.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if rows := readCSV(t, filepath.Join(dir, "combined.csv")); len(rows) != 2 {
		t.Errorf("duplicate wrote a row: %d rows", len(rows))
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 processed id, got %d", s.Count())
	}
}

func TestPersistKeepsCombinedRowWhenPartitionFails(t *testing.T) {
	tests := []struct {
		name  string
		block func(t *testing.T, partitionDir string)
	}{
		{"partition dir is a file", func(t *testing.T, partitionDir string) {
			if err := os.WriteFile(partitionDir, []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
		}},
		{"partition file is a directory", func(t *testing.T, partitionDir string) {
			if err := os.MkdirAll(filepath.Join(partitionDir, "telugu", "2015.csv"), 0755); err != nil {
				t.Fatal(err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.block(t, filepath.Join(dir, "songs_by_year"))
			s := openTestSink(t, dir)

			err := s.Persist(record("t1", "telugu", 2015))
			if !errors.Is(err, shared.ErrPersistFailed) {
				t.Fatalf("expected ErrPersistFailed, got %v", err)
			}
			combined := readCSV(t, filepath.Join(dir, "combined.csv"))
			if len(combined) != 2 || combined[1][0] != "t1" {
				t.Errorf("combined row should be kept: %v", combined)
			}
			if !s.IsProcessed("t1") {
				t.Error("t1 should count as processed once the combined row is written")
			}
			if err := s.Persist(record("t1", "telugu", 2015)); !errors.Is(err, shared.ErrAlreadyProcessed) {
				t.Errorf("retry should be rejected as a duplicate, got %v", err)
			}
		})
	}
}

func TestOpenSeedsFromCombinedStore(t *testing.T) {
	dir := t.TempDir()
	first := openTestSink(t, dir)
	first.Persist(record("t1", "telugu", 2015))
	first.Persist(record("t2", "tamil", 2010))
	first.Close()

	second, err := Open(filepath.Join(dir, "combined.csv"), filepath.Join(dir, "songs_by_year"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if !second.IsProcessed("t1") || !second.IsProcessed("t2") || second.IsProcessed("t3") {
		t.Error("processed set not seeded from combined store")
	}
	if second.Count() != 2 {
		t.Errorf("expected 2 seeded ids, got %d", second.Count())
	}

	// Header is not repeated when appending to an existing store.
	second.Persist(record("t3", "telugu", 2015))
	rows := readCSV(t, filepath.Join(dir, "combined.csv"))
	if len(rows) != 4 {
		t.Errorf("expected header + 3 rows, got %d", len(rows))
	}
}

func TestOpenRejectsSecondWriter(t *testing.T) {
	dir := t.TempDir()
	openTestSink(t, dir)
	if _, err := Open(filepath.Join(dir, "combined.csv"), filepath.Join(dir, "p")); !errors.Is(err, shared.ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}
}

func TestReadProcessedIDsMissingFile(t *testing.T) {
	ids, err := ReadProcessedIDs(filepath.Join(t.TempDir(), "none.csv"))
	if err != nil || len(ids) != 0 {
		t.Errorf("expected no ids and no error, got %v %v", ids, err)
	}
}
