package spotify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/shared"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRateLimit  = 200 * time.Millisecond
	defaultBurstLimit = 5
	albumTrackLimit   = 50
)

// Config holds configuration for the Spotify catalog connector
type Config struct {
	TokenURL   string        `json:"token_url"`
	BaseURL    string        `json:"base_url"` // empty uses the public Web API
	Timeout    time.Duration `json:"timeout"`
	RateLimit  time.Duration `json:"rate_limit"`
	BurstLimit int           `json:"burst_limit"`
}

// DefaultConfig returns sensible defaults for the Spotify connector
func DefaultConfig() Config {
	return Config{
		TokenURL:   spotifyauth.TokenURL,
		Timeout:    defaultTimeout,
		RateLimit:  defaultRateLimit,
		BurstLimit: defaultBurstLimit,
	}
}

// Connector opens client-credentials sessions. All sessions share one rate limiter.
type Connector struct {
	config      Config
	rateLimiter *rate.Limiter
}

// NewConnector creates a connector with default configuration
func NewConnector() *Connector {
	return NewConnectorWithConfig(DefaultConfig())
}

// NewConnectorWithConfig creates a connector with custom configuration
func NewConnectorWithConfig(config Config) *Connector {
	if config.TokenURL == "" {
		config.TokenURL = spotifyauth.TokenURL
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
	return &Connector{
		config:      config,
		rateLimiter: rate.NewLimiter(rate.Every(config.RateLimit), config.BurstLimit),
	}
}

// Connect obtains a token for the credential pair and returns a catalog session.
func (c *Connector) Connect(ctx context.Context, clientID, clientSecret string) (interfaces.CatalogClient, error) {
	ccConfig := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     c.config.TokenURL,
	}

	tokenCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	token, err := ccConfig.Token(tokenCtx)
	if err != nil {
		return nil, fmt.Errorf("spotify token request failed: %w", translateError(err))
	}

	// The session outlives ctx, so refreshes run on a background context.
	ts := oauth2.ReuseTokenSource(token, ccConfig.TokenSource(context.Background()))
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = c.config.Timeout

	var opts []spotify.ClientOption
	if c.config.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(c.config.BaseURL))
	}
	return &Client{
		client:      spotify.New(httpClient, opts...),
		timeout:     c.config.Timeout,
		rateLimiter: c.rateLimiter,
	}, nil
}

// Client is an authenticated catalog session
type Client struct {
	client      *spotify.Client
	timeout     time.Duration
	rateLimiter *rate.Limiter
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return nil
}

// SearchAlbum returns the top album for query, or nil when the catalog has no match.
func (c *Client) SearchAlbum(ctx context.Context, query string) (*shared.Album, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.client.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("album search %q failed: %w", query, translateError(err))
	}
	if res == nil || res.Albums == nil || len(res.Albums.Albums) == 0 {
		return nil, nil
	}
	return toAlbum(res.Albums.Albums[0]), nil
}

// AlbumTracks lists the first page of an album's tracks.
func (c *Client) AlbumTracks(ctx context.Context, albumID string) ([]shared.CatalogTrack, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	page, err := c.client.GetAlbumTracks(ctx, spotify.ID(albumID), spotify.Limit(albumTrackLimit))
	if err != nil {
		return nil, fmt.Errorf("album tracks %s failed: %w", albumID, translateError(err))
	}
	tracks := make([]shared.CatalogTrack, 0, len(page.Tracks))
	for _, t := range page.Tracks {
		tracks = append(tracks, toCatalogTrack(t))
	}
	return tracks, nil
}

// translateError maps provider errors onto shared.HTTPError so callers can
// classify rate limiting and auth failures uniformly.
func translateError(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return &shared.HTTPError{
			StatusCode: apiErr.Status,
			Status:     http.StatusText(apiErr.Status),
			Message:    apiErr.Message,
		}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &shared.HTTPError{
			StatusCode: retrieveErr.Response.StatusCode,
			Status:     retrieveErr.Response.Status,
			Message:    string(retrieveErr.Body),
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &shared.HTTPError{
			StatusCode: http.StatusGatewayTimeout,
			Status:     "Gateway Timeout",
			Message:    err.Error(),
		}
	}
	return err
}
