package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Environment variables recognized on top of the config file
const (
	EnvListenAddr = "DRUMCHART_ADDR"
	EnvModel      = "DRUMCHART_MODEL"
	EnvWorkDir    = "DRUMCHART_WORKDIR"

	// EnvAPIKey and EnvAPIKeyAlt carry the Gemini API key. The key is never
	// read from or written to the config file.
	EnvAPIKey    = "GOOGLE_API_KEY"
	EnvAPIKeyAlt = "GEMINI_API_KEY"
)

// Default values
const (
	DefaultListenAddr      = ":8787"
	DefaultModel           = "gemini-2.5-pro"
	DefaultMaxParallelJobs = 2
	DefaultMaxUploadMB     = 200
	DefaultPollIntervalSec = 2.0
	DefaultProcessTimeout  = 10 * time.Minute
	DefaultRequestTimeout  = 4 * time.Minute
	DefaultJobTTL          = 24 * time.Hour
	DefaultLogoPath        = "logo.png"
)

// Clamps for MaxParallelJobs
const (
	MinParallelJobs        = 1
	MaxParallelJobsAllowed = 8
)

// Settings holds all configuration options.
type Settings struct {
	// HTTP server. Empty AllowedOrigins permits any origin.
	ListenAddr     string   `json:"listen_addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// Transcription
	Model              string  `json:"model"`
	MaxParallelJobs    int     `json:"max_parallel_jobs"`
	PollIntervalSec    float64 `json:"poll_interval_sec"`
	ProcessTimeoutSec  float64 `json:"process_timeout_sec"`
	RequestTimeoutSec  float64 `json:"request_timeout_sec"`
	JobTTLHours        float64 `json:"job_ttl_hours"`
	KeepPreparedAudio  bool    `json:"keep_prepared_audio"`
	SkipAudioTranscode bool    `json:"skip_audio_transcode"`

	// Uploads and scratch space
	WorkDir     string `json:"work_dir"`
	MaxUploadMB int    `json:"max_upload_mb"`

	// External tools. Empty means $PATH lookup.
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
	FFprobePath string `json:"ffprobe_path,omitempty"`

	// PDF export
	LogoPath string `json:"logo_path"`

	// APIKey comes from the environment only; keeping it out of the JSON
	// file keeps it out of backups and bug reports.
	APIKey string `json:"-"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		ListenAddr:        DefaultListenAddr,
		Model:             DefaultModel,
		MaxParallelJobs:   DefaultMaxParallelJobs,
		PollIntervalSec:   DefaultPollIntervalSec,
		ProcessTimeoutSec: DefaultProcessTimeout.Seconds(),
		RequestTimeoutSec: DefaultRequestTimeout.Seconds(),
		JobTTLHours:       DefaultJobTTL.Hours(),
		WorkDir:           filepath.Join(os.TempDir(), "drumchart"),
		MaxUploadMB:       DefaultMaxUploadMB,
		LogoPath:          DefaultLogoPath,
	}
}

// DefaultPath returns the default config file location under the user config
// directory, or "drumchart.json" in the working directory if that cannot be
// determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "drumchart.json"
	}
	return filepath.Join(dir, "drumchart", "config.json")
}

// Load reads settings from a JSON file and applies environment overrides. A
// missing file is not an error; defaults are used.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	settings.applyEnv()
	settings.clamp()
	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (s *Settings) applyEnv() {
	if v := os.Getenv(EnvListenAddr); v != "" {
		s.ListenAddr = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		s.Model = v
	}
	if v := os.Getenv(EnvWorkDir); v != "" {
		s.WorkDir = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		s.APIKey = v
	} else if v := os.Getenv(EnvAPIKeyAlt); v != "" {
		s.APIKey = v
	}
}

func (s *Settings) clamp() {
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.MaxParallelJobs < MinParallelJobs {
		s.MaxParallelJobs = MinParallelJobs
	}
	if s.MaxParallelJobs > MaxParallelJobsAllowed {
		s.MaxParallelJobs = MaxParallelJobsAllowed
	}
	if s.MaxUploadMB <= 0 {
		s.MaxUploadMB = DefaultMaxUploadMB
	}
	if s.PollIntervalSec <= 0 {
		s.PollIntervalSec = DefaultPollIntervalSec
	}
	if s.ProcessTimeoutSec <= 0 {
		s.ProcessTimeoutSec = DefaultProcessTimeout.Seconds()
	}
	if s.RequestTimeoutSec <= 0 {
		s.RequestTimeoutSec = DefaultRequestTimeout.Seconds()
	}
	if s.JobTTLHours <= 0 {
		s.JobTTLHours = DefaultJobTTL.Hours()
	}
	if s.WorkDir == "" {
		s.WorkDir = filepath.Join(os.TempDir(), "drumchart")
	}
	if s.LogoPath == "" {
		s.LogoPath = DefaultLogoPath
	}
}

// PollInterval returns how often the provider is polled while it ingests an
// uploaded file.
func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec * float64(time.Second))
}

// ProcessTimeout returns how long to wait for the provider to finish
// ingesting an uploaded file.
func (s *Settings) ProcessTimeout() time.Duration {
	return time.Duration(s.ProcessTimeoutSec * float64(time.Second))
}

// RequestTimeout returns the per-request timeout for provider calls.
func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec * float64(time.Second))
}

// JobTTL returns how long finished jobs are kept before the janitor removes
// them.
func (s *Settings) JobTTL() time.Duration {
	return time.Duration(s.JobTTLHours * float64(time.Hour))
}

// MaxUploadBytes returns the upload size cap in bytes.
func (s *Settings) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) * 1024 * 1024
}

// EnsureWorkDir creates the scratch directory if it does not exist.
func (s *Settings) EnsureWorkDir() error {
	if err := os.MkdirAll(s.WorkDir, 0755); err != nil {
		return fmt.Errorf("create work dir %s: %w", s.WorkDir, err)
	}
	return nil
}
