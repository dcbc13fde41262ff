// Package gemini is the fallback vision provider backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/okian/shotlab/internal/domain/vision"
	"github.com/okian/shotlab/internal/imagedata"
	"github.com/okian/shotlab/pkg/logger"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-1.5-flash"
)

// ErrMissingAPIKey is returned by New without a key.
var ErrMissingAPIKey = errors.New("gemini: api key is empty")

// Provider implements vision.Provider. A client is opened per call.
type Provider struct {
	apiKey     string
	model      string
	clientOpts []option.ClientOption
	logger     logger.Logger
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

// WithClientOptions appends Google API client options, e.g. an endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
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
	p := &Provider{apiKey: apiKey, model: defaultModel, logger: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Name() string  { return providerName }
func (p *Provider) Model() string { return p.model }

// Analyze runs a single GenerateContent call in JSON response mode.
func (p *Provider) Analyze(ctx context.Context, req vision.ProviderRequest) (string, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(p.apiKey)}, p.clientOpts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: gemini client: %w", vision.ErrProviderError, err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(p.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}

	parts := []genai.Part{genai.Text(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, &genai.Blob{
			MIMEType: imagedata.PickMIME(req.MIME, "", req.Image),
			Data:     req.Image,
		})
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		p.logger.Debug(ctx, "gemini generate failed", logger.Error(err))
		return "", classifyError(err)
	}
	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		return "", fmt.Errorf("%w: gemini returned no text", vision.ErrProviderSchema)
	}
	return txt, nil
}

// classifyError maps SDK errors onto the vision error set. Context errors
// pass through so the orchestrator can tell a timeout from a failure.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &vision.StatusError{Provider: providerName, StatusCode: gerr.Code, Body: gerr.Message}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return &vision.StatusError{Provider: providerName, StatusCode: 429, Body: st.Message()}
		case codes.DeadlineExceeded:
			return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		case codes.Canceled:
			return fmt.Errorf("%w: %w", context.Canceled, err)
		}
	}
	return fmt.Errorf("%w: gemini: %w", vision.ErrProviderError, err)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
