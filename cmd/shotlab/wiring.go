package main

import (
	"fmt"

	"github.com/okian/shotlab/internal/adapters/keypoints"
	"github.com/okian/shotlab/internal/adapters/vision/gemini"
	"github.com/okian/shotlab/internal/adapters/vision/openai"
	app "github.com/okian/shotlab/internal/app"
	"github.com/okian/shotlab/internal/config"
	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/internal/domain/shooters"
	"github.com/okian/shotlab/internal/domain/vision"
	"github.com/okian/shotlab/pkg/logger"
)

// serviceOptions translates configuration into service options. Providers
// without credentials are left out; with neither key set vision is disabled.
func serviceOptions(cfg *config.Config, log logger.Logger) ([]app.Option, error) {
	pref, err := vision.ParsePreference(cfg.VisionPreference)
	if err != nil {
		return nil, fmt.Errorf("vision_preference: %w", err)
	}

	engineOpts := []angles.Option{angles.WithConfidenceFloor(cfg.ConfidenceFloor)}
	for name, r := range cfg.AngleIdealRanges {
		engineOpts = append(engineOpts, angles.WithIdealRange(angles.Name(name), angles.Range{Min: r.Min, Max: r.Max}))
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithAngleEngine(angles.NewEngine(engineOpts...)),
		app.WithSimilarityTopN(cfg.SimilarityTopN),
		app.WithDefaultShootingHand(pose.Side(cfg.DefaultShootingHand)),
		app.WithProviderPreference(pref),
		app.WithMaxImageBytes(cfg.MaxImageBytes),
		app.WithMaxBatchSize(cfg.MaxBatchSize),
	}

	if cfg.ShootersFile != "" {
		table, err := shooters.LoadFile(cfg.ShootersFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithShooterTable(table))
	}

	orch, err := newOrchestrator(cfg, log)
	if err != nil {
		return nil, err
	}
	if orch != nil {
		opts = append(opts, app.WithVision(orch))
	}

	if cfg.KeypointURL != "" {
		kp, err := keypoints.New(cfg.KeypointURL,
			keypoints.WithTimeout(cfg.KeypointTimeout()),
			keypoints.WithLogger(log.Named("keypoints")),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithKeypointFetcher(kp))
	}
	return opts, nil
}

// newOrchestrator returns nil when no provider is configured.
func newOrchestrator(cfg *config.Config, log logger.Logger) (*vision.Orchestrator, error) {
	var primary, fallback vision.Provider
	if cfg.OpenAIAPIKey != "" {
		p, err := openai.New(cfg.OpenAIAPIKey,
			openai.WithModel(cfg.OpenAIModel),
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithLogger(log.Named("openai")),
		)
		if err != nil {
			return nil, err
		}
		primary = p
	}
	if cfg.GeminiAPIKey != "" {
		p, err := gemini.New(cfg.GeminiAPIKey,
			gemini.WithModel(cfg.GeminiModel),
			gemini.WithLogger(log.Named("gemini")),
		)
		if err != nil {
			return nil, err
		}
		fallback = p
	}
	if primary == nil && fallback == nil {
		return nil, nil
	}
	return vision.NewOrchestrator(primary, fallback,
		vision.WithPrimaryTimeout(cfg.PrimaryTimeout()),
		vision.WithFallbackTimeout(cfg.FallbackTimeout()),
		vision.WithLogger(log.Named("vision")),
	), nil
}
