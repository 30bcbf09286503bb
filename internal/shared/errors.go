package shared

import "errors"

var (
	// ErrNoTracks is reported when a movie resolves to no catalog tracks, either
	// because nothing matched or because the catalog could not be reached.
	ErrNoTracks = errors.New("no catalog tracks found")

	// ErrNoMedia is returned when no playable reference could be located.
	ErrNoMedia = errors.New("no media reference found")

	// ErrDownloadFailed is returned when the fetch tool did not produce an audio artifact.
	ErrDownloadFailed = errors.New("audio download failed")

	// ErrExtractionFailed is returned when features could not be computed.
	ErrExtractionFailed = errors.New("feature extraction failed")

	// ErrAlreadyProcessed is returned when persisting an identifier that is already recorded.
	ErrAlreadyProcessed = errors.New("track already processed")

	// ErrPersistFailed wraps I/O failures while appending to the output stores.
	ErrPersistFailed = errors.New("persisting record failed")

	// ErrInvalidRecord is returned when an enriched record fails validation.
	ErrInvalidRecord = errors.New("invalid enriched record")

	// ErrMissingColumns is returned when a movie list lacks a required column.
	ErrMissingColumns = errors.New("movie list is missing required columns")

	// ErrRunInProgress is returned when a run is requested while another holds the output stores.
	ErrRunInProgress = errors.New("another pipeline run holds the output store")
)
