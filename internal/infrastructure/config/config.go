package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the production API endpoint. Override with
// QUIZLENS_BASE_URL for staging or local development.
const DefaultBaseURL = "https://api.quizlens.app"

// Endpoints is the API path table. Paths are relative to BaseURL.
type Endpoints struct {
	Login       string `yaml:"login"`
	Me          string `yaml:"me"`
	Banks       string `yaml:"banks"`
	ImageUpload string `yaml:"image_upload"`
	ImageResult string `yaml:"image_result"` // format arg: job_id
}

// BackoffStep maps a poll attempt ceiling to the wait after that attempt.
type BackoffStep struct {
	UpToAttempt int           `yaml:"up_to_attempt"` // 0 = all remaining attempts
	Interval    time.Duration `yaml:"interval"`
}

// PollConfig holds the result-poller tuning knobs.
type PollConfig struct {
	MaxAttempts        int           `yaml:"max_attempts"`
	AttemptTimeout     time.Duration `yaml:"attempt_timeout"`
	ErrorAllowance     int           `yaml:"error_allowance"`
	NetworkDelayFactor float64       `yaml:"network_delay_factor"`
	Steps              []BackoffStep `yaml:"steps"`
}

// Config is everything the CLI and services need.
type Config struct {
	BaseURL   string
	StorePath string // sqlite device store (token, user, job history)
	Endpoints Endpoints
	Poll      PollConfig

	GraceWait    time.Duration // delay between submit and first poll
	RetryDelay   time.Duration // delay before re-running a failed upload
	MaxRetries   int           // automatic re-runs on 500/503
	BatchWorkers int           // concurrent uploads in batch mode
}

// Load builds the configuration from defaults, the environment, and an
// optional YAML override file named by QUIZLENS_CONFIG.
func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:   getenvDefault("QUIZLENS_BASE_URL", DefaultBaseURL),
		StorePath: getenvDefault("QUIZLENS_STORE", defaultStorePath()),
		Endpoints: Endpoints{
			Login:       "/api/auth/login",
			Me:          "/api/auth/me",
			Banks:       "/api/banks",
			ImageUpload: "/api/image/upload",
			ImageResult: "/api/image/result/%s",
		},
		Poll:         DefaultPollConfig(),
		GraceWait:    2 * time.Second,
		RetryDelay:   3 * time.Second,
		MaxRetries:   2,
		BatchWorkers: getenvInt("QUIZLENS_BATCH_WORKERS", 3),
	}

	if path := os.Getenv("QUIZLENS_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	return cfg
}

// DefaultPollConfig returns the polling defaults: 120 attempts, 15s per
// query, short intervals early on that stretch as the wait drags out.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxAttempts:        120,
		AttemptTimeout:     15 * time.Second,
		ErrorAllowance:     5,
		NetworkDelayFactor: 1.5,
		Steps: []BackoffStep{
			{UpToAttempt: 10, Interval: 300 * time.Millisecond},
			{UpToAttempt: 30, Interval: 500 * time.Millisecond},
			{UpToAttempt: 60, Interval: 800 * time.Millisecond},
			{UpToAttempt: 0, Interval: time.Second},
		},
	}
}

// fileOverrides is the YAML shape of the optional config file. Every field
// is optional; zero values keep the defaults.
type fileOverrides struct {
	BaseURL   string      `yaml:"base_url"`
	Endpoints *Endpoints  `yaml:"endpoints"`
	Poll      *PollConfig `yaml:"poll"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var ov fileOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if ov.BaseURL != "" {
		c.BaseURL = ov.BaseURL
	}
	if ov.Endpoints != nil {
		c.Endpoints = *ov.Endpoints
	}
	if ov.Poll != nil {
		p := *ov.Poll
		if p.MaxAttempts <= 0 {
			p.MaxAttempts = c.Poll.MaxAttempts
		}
		if p.AttemptTimeout <= 0 {
			p.AttemptTimeout = c.Poll.AttemptTimeout
		}
		if p.ErrorAllowance <= 0 {
			p.ErrorAllowance = c.Poll.ErrorAllowance
		}
		if p.NetworkDelayFactor <= 0 {
			p.NetworkDelayFactor = c.Poll.NetworkDelayFactor
		}
		if len(p.Steps) == 0 {
			p.Steps = c.Poll.Steps
		}
		c.Poll = p
	}
	return nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "quizlens.db"
	}
	return filepath.Join(home, ".quizlens", "quizlens.db")
}

func getenvDefault(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		log.Fatalf("config: %s=%q is not a positive integer", k, v)
	}
	return n
}
