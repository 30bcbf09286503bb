package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/sumannaidur/extractor/internal/shared"
)

const (
	DefaultOutputCSV    = "song_features_combined.csv"
	DefaultPartitionDir = "songs_by_year"
	DefaultAudioDir     = "audio_files"
	DefaultLedgerPath   = "pipeline_ledger.db"
	DefaultYtDlpPath    = "yt-dlp"
	DefaultSampleRate   = 22050
	DefaultMaxRetries   = 3
)

// SpotifyCredential is one client-credentials pair in the rotation pool.
type SpotifyCredential struct {
	ClientID     string `json:"ClientID" toml:"client_id"`
	ClientSecret string `json:"ClientSecret" toml:"client_secret"`
}

// MovieFile points at the movie list of one language.
type MovieFile struct {
	Language string `json:"Language" toml:"language"`
	Path     string `json:"Path" toml:"path"`
}

// Configuration structure
type Config struct {
	SpotifyCredentials     []SpotifyCredential `json:"SpotifyCredentials" toml:"spotify_credentials"`
	MovieFiles             []MovieFile         `json:"MovieFiles" toml:"movie_files"`
	OutputCSV              string              `json:"OutputCSV" toml:"output_csv"`
	PartitionDir           string              `json:"PartitionDir" toml:"partition_dir"`
	AudioDir               string              `json:"AudioDir" toml:"audio_dir"`
	LedgerPath             string              `json:"LedgerPath" toml:"ledger_path"` // empty disables the attempt ledger
	CookieFile             string              `json:"CookieFile,omitempty" toml:"cookie_file"`
	YtDlpPath              string              `json:"YtDlpPath" toml:"yt_dlp_path"`
	SampleRate             int                 `json:"SampleRate" toml:"sample_rate"`
	SearchResults          int                 `json:"SearchResults" toml:"search_results"`
	MaxRetryAttempts       int                 `json:"MaxRetryAttempts" toml:"max_retry_attempts"`
	RetryBaseDelaySeconds  int                 `json:"RetryBaseDelaySeconds" toml:"retry_base_delay_seconds"`
	CredentialWaitSeconds  int                 `json:"CredentialWaitSeconds" toml:"credential_wait_seconds"`
	RetryJitterMillis      int                 `json:"RetryJitterMillis" toml:"retry_jitter_millis"` // 0 disables jitter
	RequestTimeoutSeconds  int                 `json:"RequestTimeoutSeconds" toml:"request_timeout_seconds"`
	SearchTimeoutSeconds   int                 `json:"SearchTimeoutSeconds" toml:"search_timeout_seconds"`
	DownloadTimeoutSeconds int                 `json:"DownloadTimeoutSeconds" toml:"download_timeout_seconds"`
	DashboardAddr          string              `json:"DashboardAddr" toml:"dashboard_addr"`
	Debug                  bool                `json:"Debug" toml:"debug"`
}

// GetDefaultConfig returns a configuration with every optional field populated.
func GetDefaultConfig() *Config {
	return &Config{
		OutputCSV:              DefaultOutputCSV,
		PartitionDir:           DefaultPartitionDir,
		AudioDir:               DefaultAudioDir,
		LedgerPath:             DefaultLedgerPath,
		YtDlpPath:              DefaultYtDlpPath,
		SampleRate:             DefaultSampleRate,
		SearchResults:          3,
		MaxRetryAttempts:       DefaultMaxRetries,
		RetryBaseDelaySeconds:  1,
		CredentialWaitSeconds:  5,
		RetryJitterMillis:      250,
		RequestTimeoutSeconds:  30,
		SearchTimeoutSeconds:   45,
		DownloadTimeoutSeconds: 600,
		DashboardAddr:          ":5000",
	}
}

// ApplyDefaults fills zero-valued fields from GetDefaultConfig.
// LedgerPath is left alone so an explicit empty value keeps the ledger off.
func (cfg *Config) ApplyDefaults() {
	defaults := GetDefaultConfig()

	if cfg.OutputCSV == "" {
		cfg.OutputCSV = defaults.OutputCSV
	}
	if cfg.PartitionDir == "" {
		cfg.PartitionDir = defaults.PartitionDir
	}
	if cfg.AudioDir == "" {
		cfg.AudioDir = defaults.AudioDir
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = defaults.YtDlpPath
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaults.SampleRate
	}
	if cfg.SearchResults <= 0 {
		cfg.SearchResults = defaults.SearchResults
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = defaults.MaxRetryAttempts
	}
	if cfg.RetryBaseDelaySeconds <= 0 {
		cfg.RetryBaseDelaySeconds = defaults.RetryBaseDelaySeconds
	}
	if cfg.CredentialWaitSeconds <= 0 {
		cfg.CredentialWaitSeconds = defaults.CredentialWaitSeconds
	}
	if cfg.RetryJitterMillis < 0 {
		cfg.RetryJitterMillis = 0
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = defaults.RequestTimeoutSeconds
	}
	if cfg.SearchTimeoutSeconds <= 0 {
		cfg.SearchTimeoutSeconds = defaults.SearchTimeoutSeconds
	}
	if cfg.DownloadTimeoutSeconds <= 0 {
		cfg.DownloadTimeoutSeconds = defaults.DownloadTimeoutSeconds
	}
	if cfg.DashboardAddr == "" {
		cfg.DashboardAddr = defaults.DashboardAddr
	}
}

// Validate checks the settings a run cannot start without.
func (cfg *Config) Validate() error {
	var errs []error
	if len(cfg.SpotifyCredentials) == 0 {
		errs = append(errs, errors.New("at least one Spotify credential is required"))
	}
	for i, cred := range cfg.SpotifyCredentials {
		if cred.ClientID == "" || cred.ClientSecret == "" {
			errs = append(errs, fmt.Errorf("spotify credential %d is incomplete", i))
		}
	}
	if len(cfg.MovieFiles) == 0 {
		errs = append(errs, errors.New("no movie files configured"))
	}
	seen := make(map[string]bool)
	for _, mf := range cfg.MovieFiles {
		if mf.Language == "" || mf.Path == "" {
			errs = append(errs, fmt.Errorf("movie file entry %q/%q needs both language and path", mf.Language, mf.Path))
			continue
		}
		if seen[mf.Language] {
			errs = append(errs, fmt.Errorf("language %q configured twice", mf.Language))
		}
		seen[mf.Language] = true
	}
	if cfg.OutputCSV == "" {
		errs = append(errs, errors.New("output CSV path is empty"))
	}
	return errors.Join(errs...)
}

// FilterLanguages keeps only the movie files whose language is listed, preserving order.
func (cfg *Config) FilterLanguages(languages []string) {
	if len(languages) == 0 {
		return
	}
	want := make(map[string]bool, len(languages))
	for _, l := range languages {
		want[strings.ToLower(strings.TrimSpace(l))] = true
	}
	var kept []MovieFile
	for _, mf := range cfg.MovieFiles {
		if want[strings.ToLower(mf.Language)] {
			kept = append(kept, mf)
		}
	}
	cfg.MovieFiles = kept
}

// RetryBaseDelay returns the first backoff interval.
func (cfg *Config) RetryBaseDelay() time.Duration {
	return time.Duration(cfg.RetryBaseDelaySeconds) * time.Second
}

// CredentialWait returns the pause before trying the next credential.
func (cfg *Config) CredentialWait() time.Duration {
	return time.Duration(cfg.CredentialWaitSeconds) * time.Second
}

// RetryJitter is the random extra wait added to every backoff.
func (cfg *Config) RetryJitter() time.Duration {
	return time.Duration(cfg.RetryJitterMillis) * time.Millisecond
}

// RequestTimeout bounds a single catalog call.
func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
}

// SearchTimeout bounds a single video search.
func (cfg *Config) SearchTimeout() time.Duration {
	return time.Duration(cfg.SearchTimeoutSeconds) * time.Second
}

// DownloadTimeout bounds a single audio fetch.
func (cfg *Config) DownloadTimeout() time.Duration {
	return time.Duration(cfg.DownloadTimeoutSeconds) * time.Second
}

func isTOML(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), ".toml")
}

// LoadConfig loads configuration from a JSON or TOML file
func LoadConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if isTOML(filePath) {
		if err := toml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// SaveConfig saves configuration to a JSON or TOML file
func SaveConfig(filePath string, config *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(filePath) {
		data, err = toml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	dir := filepath.Dir(filePath)
	if err := shared.CreateDirIfNotExists(dir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// EnsureConfigExists writes a default configuration when none is present.
// It reports whether a new file was created.
func EnsureConfigExists(filePath string) (bool, error) {
	if _, err := os.Stat(filePath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := SaveConfig(filePath, GetDefaultConfig()); err != nil {
		return false, err
	}
	return true, nil
}
