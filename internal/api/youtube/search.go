package youtube

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/shared"
)

const (
	defaultTimeout    = 45 * time.Second
	defaultRateLimit  = time.Second
	defaultBurstLimit = 2
	watchURLPrefix    = "https://www.youtube.com/watch?v="
)

// Config holds configuration for the yt-dlp backed search client
type Config struct {
	YtDlpPath  string        `json:"yt_dlp_path"`
	CookieFile string        `json:"cookie_file"`
	Timeout    time.Duration `json:"timeout"`
	RateLimit  time.Duration `json:"rate_limit"`
	BurstLimit int           `json:"burst_limit"`
}

// DefaultConfig returns sensible defaults for the search client
func DefaultConfig() Config {
	return Config{
		YtDlpPath:  "yt-dlp",
		Timeout:    defaultTimeout,
		RateLimit:  defaultRateLimit,
		BurstLimit: defaultBurstLimit,
	}
}

// Searcher runs ytsearch queries through yt-dlp.
type Searcher struct {
	config      Config
	runner      interfaces.CommandRunner
	rateLimiter *rate.Limiter
}

// NewSearcher creates a searcher; a nil runner uses os/exec.
func NewSearcher(config Config, runner interfaces.CommandRunner) *Searcher {
	if config.YtDlpPath == "" {
		config.YtDlpPath = "yt-dlp"
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.BurstLimit <= 0 {
		config.BurstLimit = defaultBurstLimit
	}
	if runner == nil {
		runner = shared.ExecRunner{}
	}
	return &Searcher{
		config:      config,
		runner:      runner,
		rateLimiter: rate.NewLimiter(rate.Every(config.RateLimit), config.BurstLimit),
	}
}

type searchEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	WebpageURL string `json:"webpage_url"`
}

func (e searchEntry) reference() string {
	switch {
	case strings.HasPrefix(e.WebpageURL, "http"):
		return e.WebpageURL
	case strings.HasPrefix(e.URL, "http"):
		return e.URL
	case e.ID != "":
		return watchURLPrefix + e.ID
	}
	return ""
}

// Search returns up to limit ranked candidates for query.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]shared.VideoCandidate, error) {
	if limit <= 0 {
		limit = 1
	}
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	args := []string{"--dump-json", "--flat-playlist", "--skip-download", "--no-warnings"}
	if s.config.CookieFile != "" {
		args = append(args, "--cookies", s.config.CookieFile)
	}
	args = append(args, fmt.Sprintf("ytsearch%d:%s", limit, query))

	out, err := s.runner.Run(ctx, s.config.YtDlpPath, args...)
	if err != nil {
		return nil, fmt.Errorf("video search %q failed: %w", query, err)
	}
	return parseSearchOutput(out, limit)
}

// parseSearchOutput reads one JSON object per line, skipping lines that do not parse.
func parseSearchOutput(out []byte, limit int) ([]shared.VideoCandidate, error) {
	var candidates []shared.VideoCandidate
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var entry searchEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		ref := entry.reference()
		if ref == "" {
			continue
		}
		candidates = append(candidates, shared.VideoCandidate{Title: entry.Title, Reference: ref})
		if len(candidates) == limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return candidates, fmt.Errorf("failed to read search output: %w", err)
	}
	return candidates, nil
}
