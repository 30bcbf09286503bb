package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/movies"
	"github.com/sumannaidur/extractor/internal/shared"
)

// Stage names the step at which a track was abandoned.
type Stage string

const (
	StageLocate   Stage = "locate"
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StagePersist  Stage = "persist"
)

// OutcomeKind is the terminal state of one track.
type OutcomeKind int

const (
	Persisted OutcomeKind = iota
	Skipped
	Abandoned
	PersistFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Persisted:
		return "persisted"
	case Skipped:
		return "skipped"
	case Abandoned:
		return "abandoned"
	case PersistFailed:
		return "persist-failed"
	default:
		return "unknown"
	}
}

// Outcome reports how ProcessTrack ended. Stage and Err are set for Abandoned and PersistFailed.
type Outcome struct {
	Kind  OutcomeKind
	Stage Stage
	Err   error
}

// Source is one language's movie list.
type Source struct {
	Language string
	Path     string
}

// Observer receives progress notifications. Methods are called from the run goroutine.
type Observer interface {
	LanguageStarted(language string, movies int)
	MovieFinished(language string, movie shared.Movie)
	LanguageFinished(language string, stats shared.LanguageStats)
}

type nopObserver struct{}

func (nopObserver) LanguageStarted(string, int)                   {}
func (nopObserver) MovieFinished(string, shared.Movie)            {}
func (nopObserver) LanguageFinished(string, shared.LanguageStats) {}

// Deps are the collaborators of a Pipeline. Ledger and Observer are optional.
type Deps struct {
	Resolver  interfaces.TrackResolver
	Locator   interfaces.MediaLocator
	Fetcher   interfaces.AudioFetcher
	Extractor interfaces.FeatureExtractor
	Sink      interfaces.RecordSink
	Ledger    interfaces.AttemptLedger
	Logger    interfaces.LoggerService
	Warnings  interfaces.WarningCollectorService
	Observer  Observer
}

// Pipeline processes movies one at a time and their tracks one at a time.
type Pipeline struct {
	deps     Deps
	audioDir string
}

// New creates a pipeline that stages downloads under audioDir.
func New(deps Deps, audioDir string) *Pipeline {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Pipeline{deps: deps, audioDir: audioDir}
}

// ArtifactPath is where the downloaded audio of track is staged.
func (p *Pipeline) ArtifactPath(track shared.TrackRecord) string {
	return filepath.Join(p.audioDir,
		shared.SanitizeFileName(track.Language),
		strconv.Itoa(track.Year),
		shared.SanitizeFileName(track.ID)+".wav")
}

// Run processes every source in order and returns the per-language summary.
// It returns ctx.Err() alongside the partial summary when cancelled.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*shared.RunSummary, error) {
	summary := shared.NewRunSummary(uuid.NewString())
	p.deps.Logger.Info("🚀 Starting run %s over %d language(s)", summary.RunID, len(sources))
	if p.deps.Ledger != nil {
		if err := p.deps.Ledger.StartRun(ctx, summary.RunID); err != nil {
			p.deps.Logger.Warning("Could not record run start: %v", err)
		}
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		stats := summary.For(src.Language)
		p.runSource(ctx, src, stats)
		p.deps.Observer.LanguageFinished(src.Language, *stats)
	}

	summary.EndedAt = time.Now()
	if p.deps.Ledger != nil {
		if err := p.deps.Ledger.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
			p.deps.Logger.Warning("Could not record run summary: %v", err)
		}
	}
	return summary, ctx.Err()
}

func (p *Pipeline) runSource(ctx context.Context, src Source, stats *shared.LanguageStats) {
	res, err := movies.Load(src.Path, src.Language)
	if err != nil {
		stats.Errors++
		p.deps.Logger.Error("Skipping %s movie list %s: %v", src.Language, src.Path, err)
		p.deps.Warnings.AddMalformedInputWarning(src.Path, err.Error())
		return
	}
	for _, skipped := range res.Skipped {
		stats.InvalidRows++
		p.deps.Warnings.AddMalformedInputWarning(src.Path, skipped.Error())
	}

	p.deps.Logger.Info("🌐 %s: %d movie(s)", src.Language, len(res.Movies))
	p.deps.Observer.LanguageStarted(src.Language, len(res.Movies))
	for _, movie := range res.Movies {
		if ctx.Err() != nil {
			return
		}
		p.ProcessMovie(ctx, movie, stats)
		p.deps.Observer.MovieFinished(src.Language, movie)
	}
}

// ProcessMovie resolves a movie's tracks and processes each in album order.
func (p *Pipeline) ProcessMovie(ctx context.Context, movie shared.Movie, stats *shared.LanguageStats) {
	stats.Movies++
	tracks := p.deps.Resolver.Resolve(ctx, movie.Title, movie.Language, movie.Year)
	if len(tracks) == 0 {
		stats.NoTracks++
		p.deps.Logger.Warning("%v: %s (%d)", shared.ErrNoTracks, movie.Title, movie.Year)
		p.deps.Warnings.AddCatalogMissWarning(movie.Title, movie.Language, movie.Year)
		return
	}

	p.deps.Logger.Info("🎬 %s (%d): %d track(s)", movie.Title, movie.Year, len(tracks))
	for _, track := range tracks {
		if ctx.Err() != nil {
			return
		}
		outcome := p.ProcessTrack(ctx, track)
		switch outcome.Kind {
		case Persisted:
			stats.Processed++
		case Skipped:
			stats.Skipped++
		case Abandoned:
			stats.Abandoned++
		case PersistFailed:
			stats.Errors++
		}
	}
}

// ProcessTrack drives one track from lookup to persistence. The staged audio
// file is removed after the extraction attempt whatever its result.
func (p *Pipeline) ProcessTrack(ctx context.Context, track shared.TrackRecord) Outcome {
	if p.deps.Sink.IsProcessed(track.ID) {
		p.deps.Logger.Debug("Skipping already processed %s (%s)", track.Title, track.ID)
		return Outcome{Kind: Skipped}
	}

	reference, err := p.deps.Locator.Locate(ctx, track.Title, track.Artist)
	if err != nil {
		p.deps.Warnings.AddMediaMissWarning(track.Title, track.Artist)
		return p.abandon(ctx, track, StageLocate, err)
	}

	path, err := p.deps.Fetcher.Fetch(ctx, reference, p.ArtifactPath(track))
	if err != nil {
		p.deps.Warnings.AddDownloadFailedWarning(track.Title, track.Artist, err.Error())
		return p.abandon(ctx, track, StageDownload, err)
	}

	features, err := p.deps.Extractor.Extract(path)
	p.removeArtifact(path)
	if err != nil {
		p.deps.Warnings.AddExtractionFailedWarning(track.Title, track.Artist, err.Error())
		return p.abandon(ctx, track, StageExtract, err)
	}

	rec, err := shared.NewEnrichedRecord(track, features)
	if err != nil {
		p.deps.Warnings.AddExtractionFailedWarning(track.Title, track.Artist, err.Error())
		return p.abandon(ctx, track, StageExtract, err)
	}

	if err := p.deps.Sink.Persist(rec); err != nil {
		if errors.Is(err, shared.ErrAlreadyProcessed) {
			return Outcome{Kind: Skipped}
		}
		p.deps.Logger.Error("Failed to persist %s: %v", track.ID, err)
		p.deps.Warnings.AddPersistFailedWarning(track.ID, err.Error())
		p.recordFailure(ctx, track, StagePersist, err)
		return Outcome{Kind: PersistFailed, Stage: StagePersist, Err: err}
	}

	if p.deps.Ledger != nil {
		if err := p.deps.Ledger.ClearFailure(ctx, track.ID); err != nil {
			p.deps.Logger.Debug("Could not clear ledger entry for %s: %v", track.ID, err)
		}
	}
	p.deps.Logger.Success("Saved %s - %s", track.Artist, track.Title)
	return Outcome{Kind: Persisted}
}

func (p *Pipeline) abandon(ctx context.Context, track shared.TrackRecord, stage Stage, err error) Outcome {
	p.deps.Logger.Warning("Abandoned %s - %s at %s: %v", track.Artist, track.Title, stage, err)
	p.recordFailure(ctx, track, stage, err)
	return Outcome{Kind: Abandoned, Stage: stage, Err: err}
}

func (p *Pipeline) recordFailure(ctx context.Context, track shared.TrackRecord, stage Stage, err error) {
	if p.deps.Ledger == nil {
		return
	}
	if lerr := p.deps.Ledger.RecordFailure(context.WithoutCancel(ctx), track, string(stage), err); lerr != nil {
		p.deps.Logger.Debug("Could not record failure for %s: %v", track.ID, lerr)
	}
}

func (p *Pipeline) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.deps.Logger.Warning("Could not remove %s: %v", path, err)
	}
}

// Describe renders an outcome for logs.
func (o Outcome) Describe() string {
	if o.Err == nil {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s at %s: %v", o.Kind, o.Stage, o.Err)
}
