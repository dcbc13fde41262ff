// Package openai is the primary vision provider: an OpenAI-compatible chat
// completions endpoint called over HTTP with the image as a data URL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/shotlab/internal/domain/vision"
	"github.com/okian/shotlab/internal/imagedata"
	"github.com/okian/shotlab/pkg/logger"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
	maxErrorBody   = 512
)

// ErrMissingAPIKey is returned by New without a key.
var ErrMissingAPIKey = errors.New("openai: api key is empty")

// Provider implements vision.Provider.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	logger  logger.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(p *Provider) {
		if m := strings.TrimSpace(model); m != "" {
			p.model = m
		}
	}
}

// WithBaseURL points the provider at another OpenAI-compatible server.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			p.baseURL = u
		}
	}
}

// WithHTTPClient sets the HTTP client. Deadlines come from the call context.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpc = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{},
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Name() string  { return providerName }
func (p *Provider) Model() string { return p.model }

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []message         `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze sends one chat completion and returns the assistant message text.
func (p *Provider) Analyze(ctx context.Context, req vision.ProviderRequest) (string, error) {
	user := []contentPart{{Type: "text", Text: req.Prompt}}
	if len(req.Image) > 0 {
		mime := imagedata.PickMIME(req.MIME, "", req.Image)
		user = append(user, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: imagedata.DataURL(mime, req.Image), Detail: "high"},
		})
	}

	body := chatRequest{
		Model: p.model,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Debug(ctx, "openai non-success status", logger.Int("status", resp.StatusCode))
		return "", &vision.StatusError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(raw)), maxErrorBody),
		}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: openai envelope: %w", vision.ErrProviderSchema, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: openai returned no content", vision.ErrProviderSchema)
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
