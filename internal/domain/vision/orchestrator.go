package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/shotlab/pkg/logger"
	"github.com/okian/shotlab/pkg/metrics"
)

// DefaultTimeout bounds each provider call.
const DefaultTimeout = 30 * time.Second

// Outcome labels recorded per provider call.
const (
	outcomeSuccess     = "success"
	outcomeTimeout     = "timeout"
	outcomeRateLimited = "rate_limited"
	outcomeError       = "error"
	outcomeSchema      = "schema"
	outcomeCanceled    = "canceled"
)

// Orchestrator calls the primary provider and fails over to the fallback.
// It keeps no state between calls.
type Orchestrator struct {
	primary         Provider
	fallback        Provider
	primaryTimeout  time.Duration
	fallbackTimeout time.Duration
	logger          logger.Logger
	now             func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPrimaryTimeout bounds the primary call.
func WithPrimaryTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.primaryTimeout = d
		}
	}
}

// WithFallbackTimeout bounds the fallback call.
func WithFallbackTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.fallbackTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates an Orchestrator. Either provider may be nil.
func NewOrchestrator(primary, fallback Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		primary:         primary,
		fallback:        fallback,
		primaryTimeout:  DefaultTimeout,
		fallbackTimeout: DefaultTimeout,
		logger:          logger.Nop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type slot struct {
	role     Role
	provider Provider
	timeout  time.Duration
}

// Analyze returns feedback from the first eligible provider that succeeds.
// Under PreferAuto a failed primary is never retried; the fallback receives
// the identical prompt. Cancellation of ctx aborts without failover.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (Result, error) {
	pref := req.Preference
	if pref == "" {
		pref = PreferAuto
	}

	var slots []slot
	switch pref {
	case PreferAuto:
		slots = []slot{{RolePrimary, o.primary, o.primaryTimeout}, {RoleFallback, o.fallback, o.fallbackTimeout}}
	case PreferPrimary:
		slots = []slot{{RolePrimary, o.primary, o.primaryTimeout}}
	case PreferFallback:
		slots = []slot{{RoleFallback, o.fallback, o.fallbackTimeout}}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPreference, pref)
	}

	preq, err := BuildPrompt(req)
	if err != nil {
		return Result{}, err
	}

	var causes []error
	var primaryErr error
	for _, s := range slots {
		if s.provider == nil {
			causes = append(causes, fmt.Errorf("%s: %w", s.role, ErrProviderNotConfigured))
			if s.role == RolePrimary {
				primaryErr = ErrProviderNotConfigured
			}
			continue
		}

		fb, took, err := o.call(ctx, s, preq)
		if err == nil {
			res := Result{
				Provider:         s.role,
				ProviderName:     s.provider.Name(),
				Model:            s.provider.Model(),
				Feedback:         fb,
				FallbackUsed:     s.role == RoleFallback,
				ProcessingTimeMs: took.Milliseconds(),
			}
			if primaryErr != nil {
				res.PrimaryError = primaryErr.Error()
			}
			if res.FallbackUsed {
				metrics.RecordVisionFallback()
			}
			return res, nil
		}

		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		o.logger.Warn(ctx, "vision provider failed",
			logger.String("role", string(s.role)),
			logger.String("provider", s.provider.Name()),
			logger.Duration("took", took),
			logger.Error(err),
		)
		if s.role == RolePrimary {
			primaryErr = err
		}
		causes = append(causes, fmt.Errorf("%s %s: %w", s.role, s.provider.Name(), err))
	}

	metrics.RecordVisionExhausted()
	return Result{}, fmt.Errorf("%w: %w", ErrAllProvidersExhausted, errors.Join(causes...))
}

func (o *Orchestrator) call(ctx context.Context, s slot, preq ProviderRequest) (Feedback, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := o.now()
	raw, err := s.provider.Analyze(callCtx, preq)
	took := o.now().Sub(start)

	if err == nil {
		var fb Feedback
		fb, err = ParseResponse(raw)
		if err == nil {
			metrics.RecordVisionCall(s.provider.Name(), outcomeSuccess, float64(took.Milliseconds()))
			return fb, took, nil
		}
	} else {
		err = classify(ctx, callCtx, err)
	}

	metrics.RecordVisionCall(s.provider.Name(), outcome(err), float64(took.Milliseconds()))
	return Feedback{}, took, err
}

// classify maps context expiry onto the vision error kinds. Errors that
// already carry a kind are returned unchanged.
func classify(parent, callCtx context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, ErrProviderError), errors.Is(err, ErrProviderSchema):
		return err
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrProviderTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrProviderError, err)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.Is(err, ErrProviderTimeout):
		return outcomeTimeout
	case errors.Is(err, ErrRateLimited):
		return outcomeRateLimited
	case errors.Is(err, ErrProviderSchema):
		return outcomeSchema
	default:
		return outcomeError
	}
}
