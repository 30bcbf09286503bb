package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/shared"
)

const (
	defaultCacheTTL     = time.Hour
	defaultCacheCleanup = 10 * time.Minute
)

var querySuffixes = []string{"", " official audio", " official song", " lyrics"}

// Locator finds a playable reference for a track using a containment heuristic.
type Locator struct {
	searcher interfaces.VideoSearcher
	limit    int
	cache    *cache.Cache
	logger   interfaces.LoggerService
}

// NewLocator creates a locator asking searcher for up to limit candidates per query.
func NewLocator(searcher interfaces.VideoSearcher, limit int, logger interfaces.LoggerService) *Locator {
	if limit <= 0 {
		limit = 3
	}
	return &Locator{
		searcher: searcher,
		limit:    limit,
		cache:    cache.New(defaultCacheTTL, defaultCacheCleanup),
		logger:   logger,
	}
}

// Queries returns the search variants tried for a track, in order.
func Queries(title, artist string) []string {
	base := strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(artist))
	queries := make([]string, len(querySuffixes))
	for i, suffix := range querySuffixes {
		queries[i] = base + suffix
	}
	return queries
}

// Locate returns the reference of the first candidate whose display title
// contains both title and artist. Without such a match it falls back to the
// first candidate of the first non-empty search.
func (l *Locator) Locate(ctx context.Context, title, artist string) (string, error) {
	wantTitle := fold(title)
	wantArtist := fold(artist)

	fallback := ""
	var lastErr error
	for _, query := range Queries(title, artist) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidates, err := l.search(ctx, query)
		if err != nil {
			lastErr = err
			l.logger.Debug("Search %q failed: %v", query, err)
			continue
		}
		for _, c := range candidates {
			if Matches(c.Title, wantTitle, wantArtist) {
				l.logger.Debug("Matched %q via %q", c.Title, query)
				return c.Reference, nil
			}
		}
		if fallback == "" && len(candidates) > 0 {
			fallback = candidates[0].Reference
		}
	}

	if fallback != "" {
		l.logger.Debug("No containment match for %s - %s, using first result", artist, title)
		return fallback, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %s - %s: %v", shared.ErrNoMedia, artist, title, lastErr)
	}
	return "", fmt.Errorf("%w: %s - %s", shared.ErrNoMedia, artist, title)
}

func (l *Locator) search(ctx context.Context, query string) ([]shared.VideoCandidate, error) {
	if cached, ok := l.cache.Get(query); ok {
		return cached.([]shared.VideoCandidate), nil
	}
	candidates, err := l.searcher.Search(ctx, query, l.limit)
	if err != nil {
		return nil, err
	}
	l.cache.Set(query, candidates, cache.DefaultExpiration)
	return candidates, nil
}

// Matches reports whether displayTitle contains both already-folded needles.
func Matches(displayTitle, foldedTitle, foldedArtist string) bool {
	haystack := fold(displayTitle)
	return strings.Contains(haystack, foldedTitle) && strings.Contains(haystack, foldedArtist)
}

func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}
