package vision_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/phase"
	"github.com/okian/shotlab/internal/domain/profile"
	"github.com/okian/shotlab/internal/domain/vision"
	. "github.com/smartystreets/goconvey/convey"
)

const validJSON = `{
  "form_assessment": "Balanced base, elbow slightly flared.",
  "rating": "Good",
  "habits_identified": {"good": ["square feet"], "needs_improvement": ["elbow flare", " "]},
  "recommendations": ["tuck the elbow"],
  "professional_comparison": "Similar to Klay Thompson",
  "extra": 1
}`

// mockProvider records requests and answers with fn.
type mockProvider struct {
	name string
	fn   func(ctx context.Context) (string, error)

	mu    sync.Mutex
	calls []vision.ProviderRequest
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Model() string { return m.name + "-model" }
func (m *mockProvider) Analyze(ctx context.Context, req vision.ProviderRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.fn(ctx)
}

func (m *mockProvider) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func answer(s string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return s, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func block(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func request() vision.Request {
	v := 90.0
	return vision.Request{
		Image:   []byte{0xFF, 0xD8, 0xFF},
		MIME:    "image/jpeg",
		Angles:  []angles.Measurement{{Name: angles.Elbow, Value: &v, IdealMin: 85, IdealMax: 95, Tier: angles.Optimal, Status: angles.Available}},
		Phase:   phase.Release,
		Profile: &profile.UserProfile{HeightInches: 74},
	}
}

func TestOrchestrator(t *testing.T) {
	Convey("Given a primary and a fallback provider", t, func() {
		ctx := context.Background()

		Convey("When the primary succeeds", func() {
			primary := &mockProvider{name: "openai", fn: answer(validJSON)}
			fallback := &mockProvider{name: "gemini", fn: answer(validJSON)}
			res, err := vision.NewOrchestrator(primary, fallback).Analyze(ctx, request())

			Convey("Then the fallback is never called", func() {
				So(err, ShouldBeNil)
				So(res.Provider, ShouldEqual, vision.RolePrimary)
				So(res.ProviderName, ShouldEqual, "openai")
				So(res.Model, ShouldEqual, "openai-model")
				So(res.FallbackUsed, ShouldBeFalse)
				So(res.PrimaryError, ShouldBeEmpty)
				So(res.Rating, ShouldEqual, vision.Good)
				So(res.ImprovementHabits, ShouldResemble, []string{"elbow flare"})
				So(fallback.count(), ShouldEqual, 0)
			})
		})

		Convey("When the primary is rate limited", func() {
			primary := &mockProvider{name: "openai", fn: fail(&vision.StatusError{Provider: "openai", StatusCode: 429})}
			fallback := &mockProvider{name: "gemini", fn: answer("```json\n" + validJSON + "\n```")}
			res, err := vision.NewOrchestrator(primary, fallback).Analyze(ctx, request())

			Convey("Then the fallback answers with the identical prompt", func() {
				So(err, ShouldBeNil)
				So(res.Provider, ShouldEqual, vision.RoleFallback)
				So(res.FallbackUsed, ShouldBeTrue)
				So(res.PrimaryError, ShouldContainSubstring, "429")
				So(primary.count(), ShouldEqual, 1)
				So(fallback.count(), ShouldEqual, 1)
				So(fallback.calls[0], ShouldResemble, primary.calls[0])
			})
		})

		Convey("When the primary times out", func() {
			primary := &mockProvider{name: "openai", fn: block}
			fallback := &mockProvider{name: "gemini", fn: answer(validJSON)}
			o := vision.NewOrchestrator(primary, fallback, vision.WithPrimaryTimeout(20*time.Millisecond))
			res, err := o.Analyze(ctx, request())

			Convey("Then the fallback is used and the timeout is reported", func() {
				So(err, ShouldBeNil)
				So(res.FallbackUsed, ShouldBeTrue)
				So(res.PrimaryError, ShouldContainSubstring, "timeout")
			})
		})

		Convey("When the primary returns an incompatible document", func() {
			primary := &mockProvider{name: "openai", fn: answer(`{"rating":"good"}`)}
			fallback := &mockProvider{name: "gemini", fn: answer(validJSON)}
			res, err := vision.NewOrchestrator(primary, fallback).Analyze(ctx, request())

			Convey("Then it counts as a failure and the fallback answers", func() {
				So(err, ShouldBeNil)
				So(res.FallbackUsed, ShouldBeTrue)
				So(res.PrimaryError, ShouldContainSubstring, "form_assessment")
			})
		})

		Convey("When both providers fail", func() {
			primary := &mockProvider{name: "openai", fn: fail(&vision.StatusError{Provider: "openai", StatusCode: 503, Body: "overloaded"})}
			fallback := &mockProvider{name: "gemini", fn: answer("not json")}
			_, err := vision.NewOrchestrator(primary, fallback).Analyze(ctx, request())

			Convey("Then exhaustion wraps every cause", func() {
				So(errors.Is(err, vision.ErrAllProvidersExhausted), ShouldBeTrue)
				So(errors.Is(err, vision.ErrProviderError), ShouldBeTrue)
				So(errors.Is(err, vision.ErrProviderSchema), ShouldBeTrue)
				So(errors.Is(err, vision.ErrRateLimited), ShouldBeFalse)
			})
		})

		Convey("When the primary is pinned and fails", func() {
			primary := &mockProvider{name: "openai", fn: fail(errors.New("connection refused"))}
			fallback := &mockProvider{name: "gemini", fn: answer(validJSON)}
			req := request()
			req.Preference = vision.PreferPrimary
			_, err := vision.NewOrchestrator(primary, fallback).Analyze(ctx, req)

			Convey("Then the fallback is not eligible", func() {
				So(errors.Is(err, vision.ErrAllProvidersExhausted), ShouldBeTrue)
				So(errors.Is(err, vision.ErrProviderError), ShouldBeTrue)
				So(fallback.count(), ShouldEqual, 0)
			})
		})

		Convey("When the fallback is pinned", func() {
			primary := &mockProvider{name: "openai", fn: answer(validJSON)}
			fallback := &mockProvider{name: "gemini", fn: answer(validJSON)}
			req := request()
			req.Preference = vision.PreferFallback
			res, err := vision.NewOrchestrator(primary, fallback).Analyze(ctx, req)

			Convey("Then only the fallback runs and is branded as such", func() {
				So(err, ShouldBeNil)
				So(res.Provider, ShouldEqual, vision.RoleFallback)
				So(res.FallbackUsed, ShouldBeTrue)
				So(primary.count(), ShouldEqual, 0)
			})
		})

		Convey("When the caller cancels during the primary call", func() {
			cctx, cancel := context.WithCancel(ctx)
			primary := &mockProvider{name: "openai", fn: func(c context.Context) (string, error) {
				cancel()
				return block(c)
			}}
			fallback := &mockProvider{name: "gemini", fn: answer(validJSON)}
			_, err := vision.NewOrchestrator(primary, fallback).Analyze(cctx, request())

			Convey("Then no fallback is attempted", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(errors.Is(err, vision.ErrAllProvidersExhausted), ShouldBeFalse)
				So(fallback.count(), ShouldEqual, 0)
			})
		})

		Convey("When the primary slot is empty", func() {
			fallback := &mockProvider{name: "gemini", fn: answer(validJSON)}
			res, err := vision.NewOrchestrator(nil, fallback).Analyze(ctx, request())

			Convey("Then the fallback answers", func() {
				So(err, ShouldBeNil)
				So(res.FallbackUsed, ShouldBeTrue)
				So(res.PrimaryError, ShouldContainSubstring, "not configured")
			})
		})

		Convey("When no provider is configured", func() {
			_, err := vision.NewOrchestrator(nil, nil).Analyze(ctx, request())
			So(errors.Is(err, vision.ErrAllProvidersExhausted), ShouldBeTrue)
			So(errors.Is(err, vision.ErrProviderNotConfigured), ShouldBeTrue)
		})

		Convey("When the preference is unknown", func() {
			req := request()
			req.Preference = "cheapest"
			_, err := vision.NewOrchestrator(nil, nil).Analyze(ctx, req)
			So(errors.Is(err, vision.ErrUnknownPreference), ShouldBeTrue)
		})
	})
}

func TestParsePreference(t *testing.T) {
	Convey("Given preference strings", t, func() {
		p, err := vision.ParsePreference("")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, vision.PreferAuto)
		p, err = vision.ParsePreference(" Fallback ")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, vision.PreferFallback)
		_, err = vision.ParsePreference("both")
		So(errors.Is(err, vision.ErrUnknownPreference), ShouldBeTrue)
	})
}

func TestParseResponse(t *testing.T) {
	Convey("Given provider outputs", t, func() {
		Convey("A fenced valid document is normalized", func() {
			fb, err := vision.ParseResponse("```json\n" + validJSON + "\n```")
			So(err, ShouldBeNil)
			So(fb.FormAssessment, ShouldStartWith, "Balanced")
			So(fb.GoodHabits, ShouldResemble, []string{"square feet"})
			So(fb.Recommendations, ShouldResemble, []string{"tuck the elbow"})
			So(fb.ProfessionalComparison, ShouldEqual, "Similar to Klay Thompson")
		})

		Convey("Optional fields may be absent or unusual", func() {
			fb, err := vision.ParseResponse(`{"form_assessment":"ok","habits_identified":{"good":[],"needs_improvement":[]},"recommendations":[],"rating":"needs improvement","professional_comparison":{"player":"Ray Allen"}}`)
			So(err, ShouldBeNil)
			So(fb.Rating, ShouldEqual, vision.NeedsImprovement)
			So(fb.ProfessionalComparison, ShouldEqual, "Ray Allen")
			So(fb.GoodHabits, ShouldNotBeNil)

			fb, err = vision.ParseResponse(`{"form_assessment":"ok","habits_identified":{"good":[],"needs_improvement":[]},"recommendations":[],"rating":"superb"}`)
			So(err, ShouldBeNil)
			So(fb.Rating, ShouldEqual, vision.Rating(""))
		})

		Convey("Missing required fields are schema errors", func() {
			bad := []string{
				``,
				`not json`,
				`{"habits_identified":{"good":[],"needs_improvement":[]},"recommendations":[]}`,
				`{"form_assessment":"  ","habits_identified":{"good":[],"needs_improvement":[]},"recommendations":[]}`,
				`{"form_assessment":"ok","recommendations":[]}`,
				`{"form_assessment":"ok","habits_identified":{"good":[]},"recommendations":[]}`,
				`{"form_assessment":"ok","habits_identified":{"good":[],"needs_improvement":[]}}`,
				`{"form_assessment":"ok","habits_identified":{"good":"x","needs_improvement":[]},"recommendations":[]}`,
			}
			for _, b := range bad {
				_, err := vision.ParseResponse(b)
				So(errors.Is(err, vision.ErrProviderSchema), ShouldBeTrue)
			}
		})
	})
}

func TestBuildPrompt(t *testing.T) {
	Convey("Given a request", t, func() {
		preq, err := vision.BuildPrompt(request())
		So(err, ShouldBeNil)

		Convey("Then the context document carries angles, phase, profile and schema", func() {
			So(preq.System, ShouldEqual, vision.SystemInstruction)
			So(preq.MIME, ShouldEqual, "image/jpeg")
			var doc map[string]any
			So(json.Unmarshal([]byte(preq.Prompt), &doc), ShouldBeNil)
			So(doc["shooting_phase"], ShouldEqual, "release")
			So(doc["angles"], ShouldHaveLength, 1)
			So(doc, ShouldContainKey, "player_profile")
			So(doc, ShouldContainKey, "output_schema")
		})

		Convey("Then an empty phase renders as unknown", func() {
			req := request()
			req.Phase = ""
			req.Profile = nil
			preq, err := vision.BuildPrompt(req)
			So(err, ShouldBeNil)
			var doc map[string]any
			So(json.Unmarshal([]byte(preq.Prompt), &doc), ShouldBeNil)
			So(doc["shooting_phase"], ShouldEqual, "unknown")
			So(doc, ShouldNotContainKey, "player_profile")
		})
	})
}
