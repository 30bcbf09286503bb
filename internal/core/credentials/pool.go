package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sumannaidur/extractor/internal/config"
	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/shared"
)

// validationQuery is searched once per credential to prove the session works.
const validationQuery = "test"

var ErrEmptyPool = errors.New("credential pool is empty")

// Pool rotates cyclically over catalog credentials. The cursor only moves
// forward, wrapping to zero after the last credential.
type Pool struct {
	mu        sync.Mutex
	creds     []config.SpotifyCredential
	cursor    int
	active    interfaces.CatalogClient
	connector interfaces.CatalogConnector
	policy    shared.RetryPolicy
	logger    interfaces.LoggerService
}

// Option configures a Pool
type Option func(*Pool)

// WithSleep replaces the wait between failed validations.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pool) { p.policy.Sleep = sleep }
}

// WithLogger attaches a logger.
func WithLogger(logger interfaces.LoggerService) Option {
	return func(p *Pool) { p.logger = logger }
}

// NewPool creates a pool over creds. policy spaces consecutive failed
// validations; its MaxAttempts is ignored because validation only stops
// when the context is done.
func NewPool(creds []config.SpotifyCredential, connector interfaces.CatalogConnector, policy shared.RetryPolicy, opts ...Option) (*Pool, error) {
	if len(creds) == 0 {
		return nil, ErrEmptyPool
	}
	p := &Pool{
		creds:     append([]config.SpotifyCredential(nil), creds...),
		connector: connector,
		policy:    policy,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Cursor returns the index of the current credential.
func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Len returns the number of credentials in the pool.
func (p *Pool) Len() int {
	return len(p.creds)
}

// Acquire returns the active client, validating the current credential on first use.
func (p *Pool) Acquire(ctx context.Context) (interfaces.CatalogClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return p.active, nil
	}
	return p.validateLocked(ctx)
}

// Rotate advances to the next credential and validates it.
func (p *Pool) Rotate(ctx context.Context) (interfaces.CatalogClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = nil
	p.advanceLocked()
	return p.validateLocked(ctx)
}

func (p *Pool) advanceLocked() {
	p.cursor = (p.cursor + 1) % len(p.creds)
}

// validateLocked tries credentials from the cursor onward until one connects
// and answers a test search. It only gives up when ctx is done.
func (p *Pool) validateLocked(ctx context.Context) (interfaces.CatalogClient, error) {
	for failures := 0; ; failures++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, err := p.tryLocked(ctx, p.creds[p.cursor])
		if err == nil {
			p.active = client
			p.debug("Using Spotify credential #%d", p.cursor+1)
			return client, nil
		}
		if p.logger != nil {
			p.logger.Warning("Spotify credential #%d failed validation: %v", p.cursor+1, err)
		}
		if err := p.policy.Wait(ctx, failures); err != nil {
			return nil, err
		}
		p.advanceLocked()
	}
}

func (p *Pool) tryLocked(ctx context.Context, cred config.SpotifyCredential) (interfaces.CatalogClient, error) {
	client, err := p.connector.Connect(ctx, cred.ClientID, cred.ClientSecret)
	if err != nil {
		return nil, err
	}
	if _, err := client.SearchAlbum(ctx, validationQuery); err != nil {
		return nil, fmt.Errorf("validation search failed: %w", err)
	}
	return client, nil
}

func (p *Pool) debug(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(format, args...)
	}
}
