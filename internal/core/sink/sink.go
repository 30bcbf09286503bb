package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	csmap "github.com/mhmtszr/concurrent-swiss-map"

	"github.com/sumannaidur/extractor/internal/shared"
)

// Header is the column layout shared by the combined and partitioned stores.
var Header = []string{
	"Spotify ID", "Title", "Artist", "Album", "Release Date", "Popularity",
	"tempo", "loudness", "key", "danceability", "energy", "speechiness", "instrumentalness",
	"movie_title", "language", "year",
}

// Sink deduplicates enriched records and appends them to the combined CSV and
// to its (language, year) partition.
type Sink struct {
	combinedPath string
	partitionDir string
	lock         *flock.Flock

	mu        sync.Mutex
	processed *csmap.CsMap[string, struct{}]
}

// Open locks the combined store and seeds the processed set from it.
func Open(combinedPath, partitionDir string) (*Sink, error) {
	if err := shared.CreateDirIfNotExists(filepath.Dir(combinedPath)); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(combinedPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, shared.ErrRunInProgress
	}

	s := &Sink{
		combinedPath: combinedPath,
		partitionDir: partitionDir,
		lock:         lock,
		processed:    csmap.Create[string, struct{}](),
	}
	ids, err := ReadProcessedIDs(combinedPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	for _, id := range ids {
		s.processed.Store(id, struct{}{})
	}
	return s, nil
}

// ReadProcessedIDs returns the identifiers recorded in a combined store. A
// missing file yields no identifiers.
func ReadProcessedIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open combined store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var ids []string
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read combined store: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && strings.TrimPrefix(row[0], "\ufeff") == Header[0] {
				continue
			}
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		ids = append(ids, strings.TrimSpace(row[0]))
	}
	return ids, nil
}

// IsProcessed reports whether id has been persisted.
func (s *Sink) IsProcessed(id string) bool {
	_, ok := s.processed.Load(id)
	return ok
}

// Count returns the number of processed identifiers.
func (s *Sink) Count() int {
	return s.processed.Count()
}

// PartitionPath returns the partition file for a language and year.
func (s *Sink) PartitionPath(language string, year int) string {
	return filepath.Join(s.partitionDir, shared.SanitizeFileName(language), strconv.Itoa(year)+".csv")
}

// Persist appends rec to the combined store and then to its partition. A
// duplicate identifier is rejected with shared.ErrAlreadyProcessed and writes
// nothing. Once the combined row is written the identifier counts as
// processed, even if the partition append then fails.
func (s *Sink) Persist(rec shared.EnrichedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsProcessed(rec.ID) {
		return fmt.Errorf("%w: %s", shared.ErrAlreadyProcessed, rec.ID)
	}
	row := Row(rec)
	if err := appendRow(s.combinedPath, row); err != nil {
		return fmt.Errorf("%w: combined store: %v", shared.ErrPersistFailed, err)
	}
	s.processed.Store(rec.ID, struct{}{})

	partition := s.PartitionPath(rec.Language, rec.Year)
	if err := shared.CreateDirIfNotExists(filepath.Dir(partition)); err != nil {
		return fmt.Errorf("%w: partition directory: %v", shared.ErrPersistFailed, err)
	}
	if err := appendRow(partition, row); err != nil {
		return fmt.Errorf("%w: partition %s: %v", shared.ErrPersistFailed, partition, err)
	}
	return nil
}

// Close releases the writer lock.
func (s *Sink) Close() error {
	return s.lock.Unlock()
}

// Row renders rec in Header order.
func Row(rec shared.EnrichedRecord) []string {
	row := []string{
		rec.ID, rec.Title, rec.Artist, rec.Album, rec.ReleaseDate, strconv.Itoa(rec.Popularity),
	}
	for _, v := range rec.FeatureVector.Values() {
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return append(row, rec.MovieTitle, rec.Language, strconv.Itoa(rec.Year))
}

// appendRow appends one CSV row, writing the header first when the file is new or empty.
func appendRow(path string, row []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Write(row); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// PartitionTotals counts persisted rows per language under dir.
func PartitionTotals(dir string) (map[string]int, error) {
	totals := make(map[string]int)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return totals, nil
		}
		return nil, fmt.Errorf("read partition directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(dir, entry.Name(), "*.csv"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, file := range files {
			n, err := countRows(file)
			if err != nil {
				return nil, err
			}
			totals[entry.Name()] += n
		}
	}
	return totals, nil
}

func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	n := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
		n++
	}
	if n > 0 {
		n-- // header
	}
	return n, nil
}
