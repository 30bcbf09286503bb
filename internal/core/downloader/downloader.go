package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/shared"
)

const (
	audioFormat     = "bestaudio[ext=m4a]/bestaudio/best"
	audioQuality    = "192K"
	defaultTimeout  = 10 * time.Minute
	defaultRate     = 22050
	canonicalSuffix = ".wav"
)

// Config holds configuration for the audio downloader
type Config struct {
	YtDlpPath  string
	CookieFile string
	SampleRate int
	Timeout    time.Duration
}

// Downloader fetches a reference with yt-dlp and leaves a mono WAV at the destination.
type Downloader struct {
	config Config
	runner interfaces.CommandRunner
	prober Prober
	logger interfaces.LoggerService
}

// NewDownloader creates a downloader. A nil runner uses os/exec; a nil prober skips verification.
func NewDownloader(config Config, runner interfaces.CommandRunner, prober Prober, logger interfaces.LoggerService) *Downloader {
	if config.YtDlpPath == "" {
		config.YtDlpPath = "yt-dlp"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = defaultRate
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if runner == nil {
		runner = shared.ExecRunner{}
	}
	return &Downloader{config: config, runner: runner, prober: prober, logger: logger}
}

// Args returns the yt-dlp arguments for fetching reference into destination.
func (d *Downloader) Args(reference, destination string) []string {
	stem := strings.TrimSuffix(destination, filepath.Ext(destination))
	args := []string{
		"--format", audioFormat,
		"--no-playlist",
		"--geo-bypass",
		"--no-progress",
		"--extract-audio",
		"--audio-format", "wav",
		"--audio-quality", audioQuality,
		"--postprocessor-args", "ExtractAudio:-ac 1 -ar " + strconv.Itoa(d.config.SampleRate),
		"--output", stem + ".%(ext)s",
	}
	if d.config.CookieFile != "" {
		args = append(args, "--cookies", d.config.CookieFile)
	}
	return append(args, reference)
}

// Fetch downloads reference and returns the path of the WAV artifact. On any
// failure every file sharing the destination stem is removed.
func (d *Downloader) Fetch(ctx context.Context, reference, destination string) (string, error) {
	if reference == "" {
		return "", fmt.Errorf("%w: empty reference", shared.ErrDownloadFailed)
	}
	target := strings.TrimSuffix(destination, filepath.Ext(destination)) + canonicalSuffix
	if err := shared.CreateDirIfNotExists(filepath.Dir(target)); err != nil {
		return "", fmt.Errorf("%w: failed to create audio directory: %v", shared.ErrDownloadFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	d.logger.Debug("Downloading %s -> %s", reference, target)
	if output, err := d.runner.Run(ctx, d.config.YtDlpPath, d.Args(reference, target)...); err != nil {
		d.logger.Debug("yt-dlp output: %s", shared.TruncateString(string(output), 500))
		RemovePartials(target)
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	// Verify that the output file was created
	info, err := os.Stat(target)
	if err != nil || info.Size() == 0 {
		RemovePartials(target)
		return "", fmt.Errorf("%w: audio file not found after download", shared.ErrDownloadFailed)
	}

	if d.prober != nil {
		if err := d.prober.Probe(ctx, target); err != nil {
			RemovePartials(target)
			return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
		}
	}
	return target, nil
}

// RemovePartials deletes path and any sibling whose name starts with its stem
// followed by a dot, covering yt-dlp's intermediate and .part files.
func RemovePartials(path string) {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), stem+".") {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
