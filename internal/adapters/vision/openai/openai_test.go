package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/shotlab/internal/adapters/vision/openai"
	"github.com/okian/shotlab/internal/domain/vision"
	. "github.com/smartystreets/goconvey/convey"
)

func request() vision.ProviderRequest {
	return vision.ProviderRequest{
		System: "be a coach",
		Prompt: `{"task":"assess"}`,
		Image:  []byte{0xFF, 0xD8, 0xFF, 0xE0},
	}
}

func TestNew(t *testing.T) {
	Convey("A key is required", t, func() {
		_, err := openai.New("  ")
		So(errors.Is(err, openai.ErrMissingAPIKey), ShouldBeTrue)

		p, err := openai.New("k", openai.WithModel("gpt-4.1-mini"))
		So(err, ShouldBeNil)
		So(p.Name(), ShouldEqual, "openai")
		So(p.Model(), ShouldEqual, "gpt-4.1-mini")
	})
}

func TestAnalyze(t *testing.T) {
	Convey("Given an OpenAI-compatible server", t, func() {
		var got map[string]any
		var auth, path string
		status := http.StatusOK
		reply := `{"choices":[{"message":{"role":"assistant","content":"{\"form_assessment\":\"ok\"}"}}]}`

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			path = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
		defer srv.Close()

		p, err := openai.New("sk-test", openai.WithBaseURL(srv.URL+"/v1/"), openai.WithHTTPClient(srv.Client()))
		So(err, ShouldBeNil)

		Convey("When the call succeeds", func() {
			text, err := p.Analyze(context.Background(), request())

			Convey("Then the message content is returned", func() {
				So(err, ShouldBeNil)
				So(text, ShouldEqual, `{"form_assessment":"ok"}`)
			})

			Convey("Then the request carries the prompt and a data URL image", func() {
				So(auth, ShouldEqual, "Bearer sk-test")
				So(path, ShouldEqual, "/v1/chat/completions")
				So(got["model"], ShouldEqual, "gpt-4o")
				So(got["response_format"], ShouldResemble, map[string]any{"type": "json_object"})
				msgs := got["messages"].([]any)
				So(len(msgs), ShouldEqual, 2)
				So(msgs[0].(map[string]any)["content"], ShouldEqual, "be a coach")
				parts := msgs[1].(map[string]any)["content"].([]any)
				So(parts[0].(map[string]any)["text"], ShouldEqual, `{"task":"assess"}`)
				url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
				So(strings.HasPrefix(url, "data:image/jpeg;base64,"), ShouldBeTrue)
			})
		})

		Convey("When the server rate limits", func() {
			status = http.StatusTooManyRequests
			reply = `{"error":{"message":"slow down"}}`
			_, err := p.Analyze(context.Background(), request())

			Convey("Then the error is a rate limit", func() {
				So(errors.Is(err, vision.ErrRateLimited), ShouldBeTrue)
				So(errors.Is(err, vision.ErrProviderError), ShouldBeTrue)
				var se *vision.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.StatusCode, ShouldEqual, 429)
				So(se.Body, ShouldContainSubstring, "slow down")
			})
		})

		Convey("When the server fails", func() {
			status = http.StatusBadGateway
			_, err := p.Analyze(context.Background(), request())
			So(errors.Is(err, vision.ErrProviderError), ShouldBeTrue)
			So(errors.Is(err, vision.ErrRateLimited), ShouldBeFalse)
		})

		Convey("When the envelope has no choices", func() {
			reply = `{"choices":[]}`
			_, err := p.Analyze(context.Background(), request())
			So(errors.Is(err, vision.ErrProviderSchema), ShouldBeTrue)
		})
	})

	Convey("Given a slow server", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		p, _ := openai.New("k", openai.WithBaseURL(srv.URL))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := p.Analyze(ctx, request())

		Convey("Then the context deadline surfaces", func() {
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}
