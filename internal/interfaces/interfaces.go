package interfaces

import (
	"context"

	"github.com/sumannaidur/extractor/internal/shared"
)

// CatalogClient is an authenticated session against the music catalog.
type CatalogClient interface {
	// SearchAlbum returns the provider's top album for query, or nil when nothing matched
	SearchAlbum(ctx context.Context, query string) (*shared.Album, error)

	// AlbumTracks lists the tracks of an album (first page)
	AlbumTracks(ctx context.Context, albumID string) ([]shared.CatalogTrack, error)
}

// CatalogConnector opens catalog sessions for a credential pair.
type CatalogConnector interface {
	Connect(ctx context.Context, clientID, clientSecret string) (CatalogClient, error)
}

// VideoSearcher queries the video search service.
type VideoSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]shared.VideoCandidate, error)
}

// CommandRunner runs an external tool and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CredentialProvider hands out validated catalog clients.
type CredentialProvider interface {
	Acquire(ctx context.Context) (CatalogClient, error)
	Rotate(ctx context.Context) (CatalogClient, error)
	Cursor() int
}

// TrackResolver maps a movie to its soundtrack tracks.
type TrackResolver interface {
	Resolve(ctx context.Context, title, language string, year int) []shared.TrackRecord
}

// MediaLocator finds a playable reference for a track.
type MediaLocator interface {
	Locate(ctx context.Context, title, artist string) (string, error)
}

// AudioFetcher downloads a reference to a local WAV file.
type AudioFetcher interface {
	Fetch(ctx context.Context, reference, destination string) (string, error)
}

// FeatureExtractor computes a feature vector from a local audio file.
type FeatureExtractor interface {
	Extract(path string) (shared.FeatureVector, error)
}

// RecordSink is the deduplicating append-only store.
type RecordSink interface {
	IsProcessed(id string) bool
	Persist(rec shared.EnrichedRecord) error
	Count() int
	Close() error
}

// AttemptLedger records failures and run counters for reporting.
type AttemptLedger interface {
	StartRun(ctx context.Context, runID string) error
	FinishRun(ctx context.Context, summary *shared.RunSummary) error
	RecordFailure(ctx context.Context, track shared.TrackRecord, stage string, cause error) error
	ClearFailure(ctx context.Context, trackID string) error
}

// LoggerService defines the interface for logging
type LoggerService interface {
	Info(message string, args ...interface{})
	Warning(message string, args ...interface{})
	Error(message string, args ...interface{})
	Debug(message string, args ...interface{})
	Success(message string, args ...interface{})
	SetDebugMode(enabled bool)
}

// WarningCollectorService defines the interface for warning collection
type WarningCollectorService interface {
	AddCatalogMissWarning(title, language string, year int)
	AddMediaMissWarning(title, artist string)
	AddDownloadFailedWarning(title, artist, details string)
	AddExtractionFailedWarning(title, artist, details string)
	AddMalformedInputWarning(source, details string)
	AddPersistFailedWarning(trackID, details string)
	HasWarnings() bool
	GetWarningCount() int
	PrintSummary()
}
