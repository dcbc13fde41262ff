// Package service wires the analysis pipeline and implements the
// dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	jobqueue "github.com/okian/shotlab/internal/adapters/mq/queue"
	workerpool "github.com/okian/shotlab/internal/adapters/mq/worker"
	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/phase"
	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/internal/domain/report"
	"github.com/okian/shotlab/internal/domain/shooters"
	"github.com/okian/shotlab/internal/domain/similarity"
	"github.com/okian/shotlab/internal/domain/vision"
	"github.com/okian/shotlab/pkg/logger"
	"github.com/okian/shotlab/pkg/metrics"
)

const (
	defaultQueueSize     = 1024
	defaultMaxImageBytes = 10 << 20
	defaultMaxBatchSize  = 32
)

// VisionAnalyzer produces coaching feedback for an image.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, req vision.Request) (vision.Result, error)
}

// KeypointFetcher obtains landmarks for an image from an external estimator.
type KeypointFetcher interface {
	Fetch(ctx context.Context, image []byte, mime string) ([]pose.Keypoint, error)
}

// Service runs the analysis pipeline for single images and batches.
type Service struct {
	mu sync.RWMutex

	// Pipeline stages
	engine     *angles.Engine
	classifier *phase.Classifier
	vision     VisionAnalyzer
	keypoints  KeypointFetcher
	table      *shooters.Table
	matcher    *similarity.Matcher
	builder    *report.Builder

	// Batch execution
	jobs *jobqueue.InMemoryQueue
	pool *workerpool.Pool

	// Configuration
	workerCount   int
	queueSize     int
	topN          int
	defaultHand   pose.Side
	preference    vision.Preference
	maxImageBytes int
	maxBatchSize  int

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc
	counters  counters

	logger logger.Logger
}

type counters struct {
	processed       atomic.Int64
	failed          atomic.Int64
	batches         atomic.Int64
	visionFallbacks atomic.Int64
	visionFailures  atomic.Int64
	keypointFetches atomic.Int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of batch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the batch job queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAngleEngine replaces the default angle engine.
func WithAngleEngine(e *angles.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithPhaseClassifier replaces the default phase classifier.
func WithPhaseClassifier(c *phase.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithVision sets the vision stage. Without it images get no coaching text.
func WithVision(v VisionAnalyzer) Option {
	return func(s *Service) { s.vision = v }
}

// WithKeypointFetcher enables keypoint lookup for image-only requests.
func WithKeypointFetcher(f KeypointFetcher) Option {
	return func(s *Service) { s.keypoints = f }
}

// WithShooterTable sets the professional reference table. Start loads the
// embedded table when none is given.
func WithShooterTable(t *shooters.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.table = t
		}
	}
}

// WithSimilarityTopN caps the number of matches per report.
func WithSimilarityTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithReportBuilder replaces the default report builder.
func WithReportBuilder(b *report.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithDefaultShootingHand sets the side used when a profile names none.
func WithDefaultShootingHand(side pose.Side) Option {
	return func(s *Service) {
		if side == pose.Left || side == pose.Right {
			s.defaultHand = side
		}
	}
}

// WithProviderPreference sets the preference used when a request has none.
func WithProviderPreference(p vision.Preference) Option {
	return func(s *Service) {
		if p != "" {
			s.preference = p
		}
	}
}

// WithMaxImageBytes caps decoded image size.
func WithMaxImageBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxImageBytes = n
		}
	}
}

// WithMaxBatchSize caps the number of images per batch.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		topN:          similarity.MaxMatches,
		defaultHand:   pose.Right,
		preference:    vision.PreferAuto,
		maxImageBytes: defaultMaxImageBytes,
		maxBatchSize:  defaultMaxBatchSize,
		logger:        nil, // resolved in Start
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the reference table and starts the batch worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting analysis service...")

	if s.table == nil {
		t, err := shooters.Default()
		if err != nil {
			return fmt.Errorf("load shooter table: %w", err)
		}
		s.table = t
	}
	if s.engine == nil {
		s.engine = angles.NewEngine()
	}
	if s.classifier == nil {
		s.classifier = phase.NewClassifier(phase.WithConfidenceFloor(s.engine.ConfidenceFloor()))
	}
	if s.builder == nil {
		s.builder = report.NewBuilder(report.WithIdealRanges(s.engine.Ranges()))
	}
	s.matcher = similarity.NewMatcher(s.table, similarity.WithTopN(s.topN))

	// Workers outlive the Start ctx; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.jobs = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.jobs, workerpool.ProcessorFunc(s.processJob))
	s.pool.Start(runCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "analysis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("shooters", s.table.Len()),
		logger.Bool("vision", s.vision != nil),
		logger.Bool("keypointProvider", s.keypoints != nil),
	)
	return nil
}

// Stop drains queued batch jobs and stops the workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping analysis service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	s.logger.Info(ctx, "analysis service stopped")
}

// Shooters returns the professional reference table.
func (s *Service) Shooters() ([]shooters.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.table.All(), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"maxBatchSize":      s.maxBatchSize,
		"visionEnabled":     s.vision != nil,
		"keypointProvider":  s.keypoints != nil,
		"analysesProcessed": s.counters.processed.Load(),
		"analysesFailed":    s.counters.failed.Load(),
		"batches":           s.counters.batches.Load(),
		"visionFallbacks":   s.counters.visionFallbacks.Load(),
		"visionFailures":    s.counters.visionFailures.Load(),
		"keypointFetches":   s.counters.keypointFetches.Load(),
	}
	if s.started {
		queueLen := s.jobs.Len()
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["shooters"] = s.table.Len()
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
