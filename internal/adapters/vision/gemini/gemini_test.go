package gemini_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/okian/shotlab/internal/adapters/vision/gemini"
	"github.com/okian/shotlab/internal/domain/vision"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("A key is required", t, func() {
		_, err := gemini.New("")
		So(errors.Is(err, gemini.ErrMissingAPIKey), ShouldBeTrue)

		p, err := gemini.New("key")
		So(err, ShouldBeNil)
		So(p.Name(), ShouldEqual, "gemini")
		So(p.Model(), ShouldEqual, "gemini-1.5-flash")

		p, _ = gemini.New("key", gemini.WithModel(" gemini-2.0-flash "))
		So(p.Model(), ShouldEqual, "gemini-2.0-flash")
	})
}

func TestFirstText(t *testing.T) {
	Convey("firstText picks the first text part of any candidate", t, func() {
		So(gemini.FirstText(nil), ShouldEqual, "")
		So(gemini.FirstText(&genai.GenerateContentResponse{}), ShouldEqual, "")

		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{Content: nil},
				{Content: &genai.Content{Parts: []genai.Part{
					&genai.Blob{MIMEType: "image/png"},
					genai.Text(`{"rating":"good"}`),
					genai.Text("ignored"),
				}}},
			},
		}
		So(gemini.FirstText(resp), ShouldEqual, `{"rating":"good"}`)
	})
}

func TestClassifyError(t *testing.T) {
	Convey("Given SDK errors", t, func() {
		Convey("A 429 googleapi error is a rate limit", func() {
			err := gemini.ClassifyError(&googleapi.Error{Code: 429, Message: "quota"})
			So(errors.Is(err, vision.ErrRateLimited), ShouldBeTrue)
		})

		Convey("A 500 googleapi error is a provider error", func() {
			err := gemini.ClassifyError(&googleapi.Error{Code: 500})
			So(errors.Is(err, vision.ErrProviderError), ShouldBeTrue)
			So(errors.Is(err, vision.ErrRateLimited), ShouldBeFalse)
		})

		Convey("A ResourceExhausted status is a rate limit", func() {
			err := gemini.ClassifyError(status.Error(codes.ResourceExhausted, "quota"))
			So(errors.Is(err, vision.ErrRateLimited), ShouldBeTrue)
		})

		Convey("A DeadlineExceeded status keeps deadline semantics", func() {
			err := gemini.ClassifyError(status.Error(codes.DeadlineExceeded, "slow"))
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("Context errors pass through", func() {
			So(gemini.ClassifyError(context.Canceled), ShouldEqual, context.Canceled)
		})

		Convey("Anything else is a provider error", func() {
			err := gemini.ClassifyError(errors.New("boom"))
			So(errors.Is(err, vision.ErrProviderError), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "boom")
		})
	})
}
