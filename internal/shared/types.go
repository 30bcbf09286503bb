package shared

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Catalog data structures
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ReleaseDate string   `json:"releaseDate"`
	Artists     []string `json:"artists,omitempty"`
}

type CatalogTrack struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
}

// VideoCandidate is one ranked result of a video search.
type VideoCandidate struct {
	Title     string `json:"title"`
	Reference string `json:"reference"`
}

// Movie is one usable row of a per-language movie list.
type Movie struct {
	Title       string
	ReleaseDate string
	Language    string
	Year        int
}

// TrackRecord is a catalog track tagged with the movie it was resolved for.
// ID is the dedup key for the whole pipeline.
type TrackRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	ReleaseDate string `json:"releaseDate"`
	Popularity  int    `json:"popularity"`
	MovieTitle  string `json:"movieTitle"`
	Language    string `json:"language"`
	Year        int    `json:"year"`
}

// FeatureVector is the fixed set of acoustic features computed for a track.
type FeatureVector struct {
	Tempo            float64 `json:"tempo"`
	Loudness         float64 `json:"loudness"`
	Key              float64 `json:"key"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Speechiness      float64 `json:"speechiness"`
	Instrumentalness float64 `json:"instrumentalness"`
}

// Values returns the features in persisted column order.
func (fv FeatureVector) Values() []float64 {
	return []float64{fv.Tempo, fv.Loudness, fv.Key, fv.Danceability, fv.Energy, fv.Speechiness, fv.Instrumentalness}
}

// EnrichedRecord is the unit of persistence.
type EnrichedRecord struct {
	TrackRecord
	FeatureVector
}

// NewEnrichedRecord combines a track and its features, rejecting records that
// could not be partitioned or that carry non-finite feature values.
func NewEnrichedRecord(track TrackRecord, features FeatureVector) (EnrichedRecord, error) {
	if strings.TrimSpace(track.ID) == "" {
		return EnrichedRecord{}, fmt.Errorf("%w: empty track id", ErrInvalidRecord)
	}
	if strings.TrimSpace(track.Language) == "" {
		return EnrichedRecord{}, fmt.Errorf("%w: track %s has no language", ErrInvalidRecord, track.ID)
	}
	names := []string{"tempo", "loudness", "key", "danceability", "energy", "speechiness", "instrumentalness"}
	for i, v := range features.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return EnrichedRecord{}, fmt.Errorf("%w: %s is not finite for track %s", ErrInvalidRecord, names[i], track.ID)
		}
	}
	return EnrichedRecord{TrackRecord: track, FeatureVector: features}, nil
}

// LanguageStats holds the counters reported for one language in a run.
type LanguageStats struct {
	Movies      int `json:"movies"`
	Processed   int `json:"processed"`
	Skipped     int `json:"skipped"`
	Abandoned   int `json:"abandoned"`
	NoTracks    int `json:"noTracks"`
	InvalidRows int `json:"invalidRows"`
	Errors      int `json:"errors"`
}

// Add accumulates other into s.
func (s *LanguageStats) Add(other LanguageStats) {
	s.Movies += other.Movies
	s.Processed += other.Processed
	s.Skipped += other.Skipped
	s.Abandoned += other.Abandoned
	s.NoTracks += other.NoTracks
	s.InvalidRows += other.InvalidRows
	s.Errors += other.Errors
}

// RunSummary is the result of one pipeline invocation.
type RunSummary struct {
	RunID     string                    `json:"runId"`
	StartedAt time.Time                 `json:"startedAt"`
	EndedAt   time.Time                 `json:"endedAt"`
	Languages []string                  `json:"languages"`
	Stats     map[string]*LanguageStats `json:"stats"`
}

// NewRunSummary creates an empty summary for the given run.
func NewRunSummary(runID string) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		StartedAt: time.Now(),
		Stats:     make(map[string]*LanguageStats),
	}
}

// For returns the counters for language, creating them on first use.
func (r *RunSummary) For(language string) *LanguageStats {
	if stats, ok := r.Stats[language]; ok {
		return stats
	}
	stats := &LanguageStats{}
	r.Stats[language] = stats
	r.Languages = append(r.Languages, language)
	return stats
}

// Totals sums the counters of every language.
func (r *RunSummary) Totals() LanguageStats {
	var total LanguageStats
	for _, stats := range r.Stats {
		total.Add(*stats)
	}
	return total
}
