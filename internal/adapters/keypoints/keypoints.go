// Package keypoints is the HTTP client for the external pose estimator.
package keypoints

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/pkg/logger"
	"github.com/okian/shotlab/pkg/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

var (
	// ErrNotConfigured is returned by New without a URL.
	ErrNotConfigured = errors.New("keypoint provider url is empty")

	// ErrRequestFailed covers transport errors and non-success statuses.
	ErrRequestFailed = errors.New("keypoint provider request failed")

	// ErrBadResponse is a body that does not decode into keypoints.
	ErrBadResponse = errors.New("keypoint provider response malformed")
)

// Client fetches landmarks for an image.
type Client struct {
	url     string
	timeout time.Duration
	httpc   *http.Client
	logger  logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each Fetch call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client that posts to url.
func New(url string, opts ...Option) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{url: url, timeout: defaultTimeout, httpc: &http.Client{}, logger: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type fetchRequest struct {
	Image string `json:"image"`
	MIME  string `json:"mime,omitempty"`
}

type wireKeypoint struct {
	Name       string   `json:"name"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Confidence *float64 `json:"confidence"`
	Visibility *float64 `json:"visibility"`
}

type fetchResponse struct {
	Keypoints []wireKeypoint `json:"keypoints"`
}

// Fetch posts the image and returns the provider's keypoints with their raw
// names. pose.NewSet canonicalizes them.
func (c *Client) Fetch(ctx context.Context, image []byte, mime string) ([]pose.Keypoint, error) {
	start := time.Now()
	kps, err := c.fetch(ctx, image, mime)
	took := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordKeypointRequest(outcome(err), took)
		c.logger.Warn(ctx, "keypoint fetch failed", logger.Error(err))
		return nil, err
	}
	metrics.RecordKeypointRequest("success", took)
	c.logger.Debug(ctx, "keypoints fetched", logger.Int("count", len(kps)))
	return kps, nil
}

func (c *Client) fetch(ctx context.Context, image []byte, mime string) ([]pose.Keypoint, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(fetchRequest{Image: base64.StdEncoding.EncodeToString(image), MIME: mime})
	if err != nil {
		return nil, fmt.Errorf("encode keypoint request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: http %d: %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	kps := make([]pose.Keypoint, 0, len(out.Keypoints))
	for _, w := range out.Keypoints {
		kps = append(kps, pose.Keypoint{
			Name:       pose.Joint(w.Name),
			X:          w.X,
			Y:          w.Y,
			Confidence: confidence(w),
		})
	}
	return kps, nil
}

// confidence prefers an explicit score, then MediaPipe visibility, then 1.
func confidence(w wireKeypoint) float64 {
	switch {
	case w.Confidence != nil:
		return *w.Confidence
	case w.Visibility != nil:
		return *w.Visibility
	default:
		return 1
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	default:
		return "error"
	}
}
