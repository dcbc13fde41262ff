package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/phase"
	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/internal/domain/profile"
	"github.com/okian/shotlab/internal/domain/report"
	"github.com/okian/shotlab/internal/domain/vision"
	"github.com/okian/shotlab/internal/imagedata"
	"github.com/okian/shotlab/pkg/logger"
	"github.com/okian/shotlab/pkg/metrics"
)

// AnalysisRequest is one image to analyze. At least one of Image or
// Keypoints is required.
type AnalysisRequest struct {
	ImageID    string
	Image      []byte
	MIME       string
	Keypoints  []pose.Keypoint
	Profile    *profile.UserProfile
	Preference vision.Preference
}

// Analyze runs the full pipeline for one image: angles, phase, vision,
// similarity, report. Profile and structural errors are returned before
// any stage runs; stage failures are recorded in the report.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (report.Report, error) {
	if !s.running() {
		return report.Report{}, ErrNotStarted
	}
	return s.analyze(ctx, req)
}

func (s *Service) analyze(ctx context.Context, req AnalysisRequest) (report.Report, error) {
	start := time.Now()
	rep, err := s.run(ctx, req)
	if err != nil {
		s.counters.failed.Add(1)
		metrics.RecordAnalysisFailed(failureReason(err))
		return report.Report{}, err
	}
	s.counters.processed.Add(1)
	metrics.RecordAnalysisProcessed(float64(time.Since(start).Milliseconds()))
	return rep, nil
}

func (s *Service) run(ctx context.Context, req AnalysisRequest) (report.Report, error) {
	prof, err := validProfile(req.Profile)
	if err != nil {
		return report.Report{}, err
	}
	if len(req.Image) == 0 && len(req.Keypoints) == 0 {
		return report.Report{}, fmt.Errorf("%w: image or keypoints required", ErrInvalidRequest)
	}

	var mime string
	if len(req.Image) > 0 {
		mime = imagedata.PickMIME(req.MIME, "", req.Image)
		if err := imagedata.Check(req.Image, mime, s.maxImageBytes); err != nil {
			return report.Report{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	log := s.logger
	if req.ImageID != "" {
		log = log.With(logger.String("image_id", req.ImageID))
	}

	var set pose.Set
	if len(req.Keypoints) > 0 {
		// Caller keypoints are input; a bad one is the caller's mistake.
		set, err = pose.NewSet(req.Keypoints)
		if err != nil {
			return report.Report{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	} else if s.keypoints != nil {
		s.counters.keypointFetches.Add(1)
		fetched, err := s.keypoints.Fetch(ctx, req.Image, mime)
		switch {
		case ctx.Err() != nil:
			return report.Report{}, ctx.Err()
		case err != nil:
			log.Warn(ctx, "keypoint provider failed, continuing without keypoints", logger.Error(err))
		default:
			var dropped []pose.Keypoint
			set, dropped = pose.NewLenientSet(fetched)
			if len(dropped) > 0 {
				log.Warn(ctx, "dropped invalid keypoints from provider", logger.Int("dropped", len(dropped)))
			}
			for _, kp := range dropped {
				log.Debug(ctx, "dropped invalid detected keypoint",
					logger.String("joint", string(kp.Name)),
					logger.Float64("x", kp.X),
					logger.Float64("y", kp.Y),
					logger.Float64("confidence", kp.Confidence),
				)
			}
		}
	}

	in := report.Input{ImageID: req.ImageID, Phase: phase.Unknown}
	side := prof.Side(s.defaultHand)

	if set.Len() > 0 {
		in.Keypoints = set.Keypoints()
		in.Angles = s.engine.ComputeAll(set, side)
		for _, m := range in.Angles {
			metrics.RecordAngleMeasurement(string(m.Name), string(m.Status))
		}
		res := s.classifier.Classify(set, side, in.Angles)
		in.Phase = res.Phase
		metrics.RecordPhase(string(res.Phase))
		log.Debug(ctx, "pose analyzed",
			logger.Int("keypoints", set.Len()),
			logger.String("phase", string(res.Phase)),
			logger.Int("available", countAvailable(in.Angles)),
		)
	}

	if len(req.Image) > 0 && s.vision != nil {
		pref := req.Preference
		if pref == "" {
			pref = s.preference
		}
		res, err := s.vision.Analyze(ctx, vision.Request{
			Image:      req.Image,
			MIME:       mime,
			Angles:     in.Angles,
			Phase:      in.Phase,
			Profile:    prof,
			Preference: pref,
		})
		switch {
		case ctx.Err() != nil:
			return report.Report{}, ctx.Err()
		case errors.Is(err, vision.ErrUnknownPreference):
			return report.Report{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		case err != nil:
			s.counters.visionFailures.Add(1)
			log.Warn(ctx, "vision analysis unavailable", logger.Error(err))
			in.VisionErr = err
		default:
			if res.FallbackUsed {
				s.counters.visionFallbacks.Add(1)
			}
			in.Vision = &res
		}
	}

	in.Matches = s.matcher.Match(prof, in.Angles)
	metrics.RecordSimilarityMatches(len(in.Matches))

	rep, err := s.builder.Build(in)
	if err != nil {
		return report.Report{}, fmt.Errorf("build report: %w", err)
	}
	return rep, nil
}

// validProfile validates a copy so the caller's value is left untouched.
func validProfile(p *profile.UserProfile) (*profile.UserProfile, error) {
	if p == nil {
		return nil, nil
	}
	cp := *p
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

func countAvailable(ms []angles.Measurement) int {
	n := 0
	for _, m := range ms {
		if m.Available() {
			n++
		}
	}
	return n
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, profile.ErrInvalidUserProfile):
		return "invalid_profile"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
