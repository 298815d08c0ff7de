// Package llm provides the chat-completion gateway client used by the
// stage agents, plus helpers for digging a JSON object out of the
// free-text replies hosted models actually return.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/okian/sift/pkg/logger"
	"github.com/okian/sift/pkg/metrics"
)

// Default gateway configuration constants.
const (
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 30 * time.Second
	defaultTemperature = 0.1
)

// Client is what stage agents see: one prompt in, one free-text reply
// out. The reply is expected, not guaranteed, to embed a JSON object.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Func adapts a plain function to Client, mainly for tests.
type Func func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// GatewayClient talks to an OpenAI-wire chat-completion endpoint.
type GatewayClient struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      logger.Logger
}

// Option applies a configuration option to the GatewayClient.
type Option func(*settings)

type settings struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	timeout     time.Duration
}

// WithBaseURL points the client at a non-default gateway endpoint.
func WithBaseURL(url string) Option {
	return func(s *settings) {
		if url != "" {
			s.baseURL = url
		}
	}
}

// WithAPIKey sets the gateway credential.
func WithAPIKey(key string) Option {
	return func(s *settings) {
		s.apiKey = key
	}
}

// WithModel sets the model identifier sent with every request.
func WithModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithTimeout bounds each gateway call. A hung model reply cancels at
// this deadline instead of stalling the worker indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(s *settings) {
		if t >= 0 {
			s.temperature = t
		}
	}
}

// New creates a gateway client with configuration options.
func New(opts ...Option) *GatewayClient {
	s := &settings{
		model:       defaultModel,
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg := openai.DefaultConfig(s.apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}

	return &GatewayClient{
		api:         openai.NewClientWithConfig(cfg),
		model:       s.model,
		temperature: s.temperature,
		timeout:     s.timeout,
		logger:      logger.Get().Named("llm"),
	}
}

// Complete sends one chat-completion request and returns the raw reply
// text. Transport failures and non-2xx statuses surface as ErrGateway;
// parsing is left to Unmarshal so callers can choose their fallback.
func (c *GatewayClient) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	metrics.RecordLLMLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordLLMError()
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if len(resp.Choices) == 0 {
		metrics.RecordLLMError()
		return "", fmt.Errorf("%w: empty choices", ErrGateway)
	}
	metrics.RecordLLMRequest()
	return resp.Choices[0].Message.Content, nil
}
