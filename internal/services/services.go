package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sumannaidur/extractor/internal/api/spotify"
	"github.com/sumannaidur/extractor/internal/api/youtube"
	"github.com/sumannaidur/extractor/internal/config"
	"github.com/sumannaidur/extractor/internal/core/catalog"
	"github.com/sumannaidur/extractor/internal/core/credentials"
	"github.com/sumannaidur/extractor/internal/core/downloader"
	"github.com/sumannaidur/extractor/internal/core/features"
	"github.com/sumannaidur/extractor/internal/core/media"
	"github.com/sumannaidur/extractor/internal/core/pipeline"
	"github.com/sumannaidur/extractor/internal/core/sink"
	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/ledger"
	"github.com/sumannaidur/extractor/internal/shared"
)

const maxRetryDelay = 30 * time.Second

// ServiceContainer holds all application services
type ServiceContainer struct {
	Config           *config.Config
	Logger           interfaces.LoggerService
	WarningCollector *shared.WarningCollector
	Credentials      *credentials.Pool
	Resolver         *catalog.Resolver
	Locator          *media.Locator
	Downloader       *downloader.Downloader
	Extractor        *features.Extractor
	Sink             *sink.Sink
	Ledger           *ledger.Store // nil when LedgerPath is empty
	Pipeline         *pipeline.Pipeline
}

type options struct {
	connector interfaces.CatalogConnector
	runner    interfaces.CommandRunner
	prober    downloader.Prober
	noProbe   bool
	observer  pipeline.Observer
}

// Option customises how the container wires its services.
type Option func(*options)

// WithConnector replaces the Spotify connector.
func WithConnector(connector interfaces.CatalogConnector) Option {
	return func(o *options) { o.connector = connector }
}

// WithRunner replaces the process runner used for yt-dlp.
func WithRunner(runner interfaces.CommandRunner) Option {
	return func(o *options) { o.runner = runner }
}

// WithProber replaces artifact verification. A nil prober disables it.
func WithProber(prober downloader.Prober) Option {
	return func(o *options) {
		o.prober = prober
		o.noProbe = prober == nil
	}
}

// WithObserver receives pipeline progress.
func WithObserver(observer pipeline.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// NewServiceContainer wires every stage of the pipeline from cfg. It takes the
// output lock, so a second container over the same output fails with
// shared.ErrRunInProgress until Close is called.
func NewServiceContainer(cfg *config.Config, logger interfaces.LoggerService, opts ...Option) (*ServiceContainer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = shared.NewConsoleLogger()
	}
	logger.SetDebugMode(cfg.Debug || shared.IsDebugMode())

	warningCollector := shared.NewWarningCollector(true)

	connector := o.connector
	if connector == nil {
		spotifyConfig := spotify.DefaultConfig()
		spotifyConfig.Timeout = cfg.RequestTimeout()
		connector = spotify.NewConnectorWithConfig(spotifyConfig)
	}
	credentialPolicy := shared.RetryPolicy{
		BaseDelay: cfg.CredentialWait(),
		MaxDelay:  maxRetryDelay,
		Jitter:    cfg.RetryJitter(),
	}
	pool, err := credentials.NewPool(cfg.SpotifyCredentials, connector, credentialPolicy, credentials.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("credential pool: %w", err)
	}

	policy := shared.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxRetryAttempts
	policy.BaseDelay = cfg.RetryBaseDelay()
	policy.MaxDelay = maxRetryDelay
	policy.Jitter = cfg.RetryJitter()
	resolver := catalog.NewResolver(pool, policy, logger)

	searchConfig := youtube.DefaultConfig()
	searchConfig.YtDlpPath = cfg.YtDlpPath
	searchConfig.CookieFile = cfg.CookieFile
	searchConfig.Timeout = cfg.SearchTimeout()
	locator := media.NewLocator(youtube.NewSearcher(searchConfig, o.runner), cfg.SearchResults, logger)

	prober := o.prober
	if prober == nil && !o.noProbe && shared.LookupTool("ffprobe") {
		prober = downloader.FFprobe{}
	}
	fetcher := downloader.NewDownloader(downloader.Config{
		YtDlpPath:  cfg.YtDlpPath,
		CookieFile: cfg.CookieFile,
		SampleRate: cfg.SampleRate,
		Timeout:    cfg.DownloadTimeout(),
	}, o.runner, prober, logger)

	extractor := features.NewExtractor(cfg.SampleRate)

	store, err := sink.Open(cfg.OutputCSV, cfg.PartitionDir)
	if err != nil {
		return nil, err
	}

	var attempts *ledger.Store
	deps := pipeline.Deps{
		Resolver:  resolver,
		Locator:   locator,
		Fetcher:   fetcher,
		Extractor: extractor,
		Sink:      store,
		Logger:    logger,
		Warnings:  warningCollector,
		Observer:  o.observer,
	}
	if cfg.LedgerPath != "" {
		attempts, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		deps.Ledger = attempts
	}

	return &ServiceContainer{
		Config:           cfg,
		Logger:           logger,
		WarningCollector: warningCollector,
		Credentials:      pool,
		Resolver:         resolver,
		Locator:          locator,
		Downloader:       fetcher,
		Extractor:        extractor,
		Sink:             store,
		Ledger:           attempts,
		Pipeline:         pipeline.New(deps, cfg.AudioDir),
	}, nil
}

// Sources lists the configured movie files in run order.
func (c *ServiceContainer) Sources() []pipeline.Source {
	sources := make([]pipeline.Source, 0, len(c.Config.MovieFiles))
	for _, mf := range c.Config.MovieFiles {
		sources = append(sources, pipeline.Source{Language: mf.Language, Path: mf.Path})
	}
	return sources
}

// Close releases the output lock and the ledger.
func (c *ServiceContainer) Close() error {
	var errs []error
	if c.Sink != nil {
		errs = append(errs, c.Sink.Close())
	}
	if c.Ledger != nil {
		errs = append(errs, c.Ledger.Close())
	}
	return errors.Join(errs...)
}
