// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Durations are configured in milliseconds and exposed as time.Duration helpers.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Range is an inclusive [min, max] ideal interval for one angle, in degrees.
type Range struct {
	Min float64 `koanf:"min"`
	Max float64 `koanf:"max"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of analysis workers used for batches.
	// Workers mostly wait on providers, so the default is several per CPU.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// ConfidenceFloor is the minimum keypoint confidence treated as present.
	ConfidenceFloor float64 `koanf:"confidence_floor"`

	// DefaultShootingHand is used when a request carries no profile.
	DefaultShootingHand string `koanf:"default_shooting_hand"`

	// AngleIdealRanges overrides the ideal range of individual angles by name.
	AngleIdealRanges map[string]Range `koanf:"angle_ideal_ranges"`

	// SimilarityTopN caps the number of professional matches (max 5).
	SimilarityTopN int `koanf:"similarity_top_n"`

	// ShootersFile optionally replaces the embedded shooter table (TOML).
	ShootersFile string `koanf:"shooters_file"`

	// VisionPreference is auto, primary, or fallback.
	VisionPreference string `koanf:"vision_preference"`

	PrimaryTimeoutMS  int `koanf:"primary_timeout_ms"`
	FallbackTimeoutMS int `koanf:"fallback_timeout_ms"`

	OpenAIAPIKey  string `koanf:"openai_api_key"`
	OpenAIModel   string `koanf:"openai_model"`
	OpenAIBaseURL string `koanf:"openai_base_url"`

	GeminiAPIKey string `koanf:"gemini_api_key"`
	GeminiModel  string `koanf:"gemini_model"`

	// KeypointURL is the external keypoint provider endpoint; empty disables it.
	KeypointURL       string `koanf:"keypoint_url"`
	KeypointTimeoutMS int    `koanf:"keypoint_timeout_ms"`

	// MaxImageBytes caps decoded image size.
	MaxImageBytes int `koanf:"max_image_bytes"`

	// MaxBatchSize caps the number of jobs per batch request.
	MaxBatchSize int `koanf:"max_batch_size"`
}

// Workers per CPU for the default pool, and its floor.
const (
	workersPerCPU  = 4
	minWorkerCount = 16
)

// DefaultWorkerCount sizes the pool for provider-bound analyses.
func DefaultWorkerCount() int {
	return max(minWorkerCount, workersPerCPU*runtime.NumCPU())
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		WorkerCount:         DefaultWorkerCount(),
		QueueSize:           1024,
		ConfidenceFloor:     0.3,
		DefaultShootingHand: "right",
		AngleIdealRanges:    map[string]Range{},
		SimilarityTopN:      5,
		VisionPreference:    "auto",
		PrimaryTimeoutMS:    30_000,
		FallbackTimeoutMS:   30_000,
		OpenAIModel:         "gpt-4o",
		OpenAIBaseURL:       "https://api.openai.com/v1",
		GeminiModel:         "gemini-1.5-flash",
		KeypointTimeoutMS:   10_000,
		MaxImageBytes:       10 << 20,
		MaxBatchSize:        32,
	}
}

// PrimaryTimeout returns the primary provider timeout.
func (c *Config) PrimaryTimeout() time.Duration {
	return time.Duration(c.PrimaryTimeoutMS) * time.Millisecond
}

// FallbackTimeout returns the fallback provider timeout.
func (c *Config) FallbackTimeout() time.Duration {
	return time.Duration(c.FallbackTimeoutMS) * time.Millisecond
}

// KeypointTimeout returns the keypoint provider timeout.
func (c *Config) KeypointTimeout() time.Duration {
	return time.Duration(c.KeypointTimeoutMS) * time.Millisecond
}

// AnalysisBudget is the worst case of one analysis: a keypoint fetch followed
// by the primary and the fallback vision provider.
func (c *Config) AnalysisBudget() time.Duration {
	return c.KeypointTimeout() + c.PrimaryTimeout() + c.FallbackTimeout()
}

// BatchBudget is the worst case of a full batch on an idle pool, which runs
// it in ceil(max_batch_size / worker_count) rounds.
func (c *Config) BatchBudget() time.Duration {
	workers := max(c.WorkerCount, 1)
	rounds := (max(c.MaxBatchSize, 1) + workers - 1) / workers
	return time.Duration(rounds) * c.AnalysisBudget()
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1:
		return fmt.Errorf("%w: confidence_floor must be within [0,1]", ErrInvalidConfig)
	case c.SimilarityTopN < 1 || c.SimilarityTopN > 5:
		return fmt.Errorf("%w: similarity_top_n must be within [1,5]", ErrInvalidConfig)
	case c.PrimaryTimeoutMS <= 0 || c.FallbackTimeoutMS <= 0:
		return fmt.Errorf("%w: provider timeouts must be positive", ErrInvalidConfig)
	case c.KeypointTimeoutMS <= 0:
		return fmt.Errorf("%w: keypoint_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxImageBytes <= 0:
		return fmt.Errorf("%w: max_image_bytes must be positive", ErrInvalidConfig)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.DefaultShootingHand) {
	case "right", "left":
	default:
		return fmt.Errorf("%w: default_shooting_hand must be right or left", ErrInvalidConfig)
	}

	switch strings.ToLower(c.VisionPreference) {
	case "", "auto", "primary", "fallback":
	default:
		return fmt.Errorf("%w: vision_preference must be auto, primary or fallback", ErrInvalidConfig)
	}

	for name, r := range c.AngleIdealRanges {
		if r.Min < 0 || r.Max > 180 || r.Min > r.Max {
			return fmt.Errorf("%w: angle_ideal_ranges.%s must satisfy 0 <= min <= max <= 180", ErrInvalidConfig, name)
		}
	}
	return nil
}
