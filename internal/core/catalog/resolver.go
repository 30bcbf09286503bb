package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/shared"
)

// Resolver maps a movie to the tracks of its top catalog album.
type Resolver struct {
	pool   interfaces.CredentialProvider
	policy shared.RetryPolicy
	logger interfaces.LoggerService
}

// NewResolver creates a resolver drawing sessions from pool.
func NewResolver(pool interfaces.CredentialProvider, policy shared.RetryPolicy, logger interfaces.LoggerService) *Resolver {
	return &Resolver{pool: pool, policy: policy, logger: logger}
}

// Query builds the catalog search string for a movie.
func Query(title, language string, year int) string {
	return fmt.Sprintf("%s %s %d", strings.TrimSpace(title), strings.TrimSpace(language), year)
}

// Resolve returns the movie's soundtrack tracks in album order. Failures and
// misses both yield an empty slice; the difference is only logged.
func (r *Resolver) Resolve(ctx context.Context, title, language string, year int) []shared.TrackRecord {
	query := Query(title, language, year)

	var records []shared.TrackRecord
	err := r.policy.Do(ctx, func(attempt int) error {
		client, err := r.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		found, err := r.lookup(ctx, client, query, title, language, year)
		if err != nil {
			return err
		}
		records = found
		return nil
	}, func(attempt int, err error) {
		switch {
		case shared.IsAuthHTTPError(err):
			r.logger.Warning("Catalog rejected credential #%d for %q: %v", r.pool.Cursor()+1, query, err)
		case shared.IsRetryableHTTPError(err):
			r.logger.Warning("Catalog busy for %q (attempt %d/%d): %v", query, attempt+1, r.policy.MaxAttempts, err)
		default:
			r.logger.Warning("Catalog lookup for %q failed (attempt %d/%d): %v", query, attempt+1, r.policy.MaxAttempts, err)
		}
		if _, rotErr := r.pool.Rotate(ctx); rotErr != nil {
			r.logger.Debug("Credential rotation interrupted: %v", rotErr)
		}
	})
	if err != nil {
		r.logger.Error("Catalog lookup for %q gave up: %v", query, err)
		return []shared.TrackRecord{}
	}
	if len(records) == 0 {
		r.logger.Debug("No album found for %q", query)
		return []shared.TrackRecord{}
	}
	return records
}

func (r *Resolver) lookup(ctx context.Context, client interfaces.CatalogClient, query, title, language string, year int) ([]shared.TrackRecord, error) {
	album, err := client.SearchAlbum(ctx, query)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, nil
	}
	tracks, err := client.AlbumTracks(ctx, album.ID)
	if err != nil {
		return nil, err
	}

	records := make([]shared.TrackRecord, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		records = append(records, shared.TrackRecord{
			ID:          t.ID,
			Title:       t.Name,
			Artist:      strings.Join(t.Artists, ", "),
			Album:       album.Name,
			ReleaseDate: album.ReleaseDate,
			Popularity:  0,
			MovieTitle:  title,
			Language:    language,
			Year:        year,
		})
	}
	return records, nil
}
