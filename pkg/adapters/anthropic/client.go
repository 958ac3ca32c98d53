// Package anthropic implements ports.Completer on the Anthropic Messages API,
// reached directly with an API key or through AWS Bedrock.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aws/aws-sdk-go-v2/config"
)

// ErrMissingAPIKey is returned when neither the config nor the environment carries a key.
var ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY is not set")

// DefaultMaxTokens caps one completion.
const DefaultMaxTokens = 4096

// DefaultModel is used when Config.Model is empty.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// Config selects the model and how the API is reached.
type Config struct {
	Model     string
	MaxTokens int64
	// System is sent as the system prompt with every completion.
	System string

	// APIKey falls back to ANTHROPIC_API_KEY.
	APIKey  string
	BaseURL string
	// MaxRetries overrides the SDK's transport retries when non-nil.
	MaxRetries *int

	UseBedrock bool
	AWSRegion  string
	AWSProfile string
}

// Client is a ports.Completer backed by the Messages API.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	system    string
	tracker   *TokenTracker
	logger    *slog.Logger
}

var _ ports.Completer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracker shares a token tracker between clients, e.g. the writer and the scorer.
func WithTracker(t *TokenTracker) Option {
	return func(c *Client) {
		c.tracker = t
	}
}

// New creates a client. The context is only used to load AWS credentials.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	var reqOpts []option.RequestOption

	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		reqOpts = append(reqOpts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries != nil {
		reqOpts = append(reqOpts, option.WithMaxRetries(*cfg.MaxRetries))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if cfg.UseBedrock {
		model = BedrockModel(model)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	c := &Client{
		inner:     anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: maxTokens,
		system:    cfg.System,
		tracker:   NewTokenTracker(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends prompt as a single user message and returns the concatenated
// text blocks of the reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		c.logger.Warn("completion failed", "model", c.model, "err", err)
		return "", fmt.Errorf("anthropic: %w", err)
	}
	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), nil
}

// Model returns the model requests are sent to.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the token tracker.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// BedrockModel maps Anthropic model names to Bedrock cross-region inference profiles.
// Unknown names are returned unchanged.
func BedrockModel(model anthropic.Model) anthropic.Model {
	if strings.HasPrefix(string(model), "us.anthropic.") {
		return model
	}
	profiles := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if p, ok := profiles[model]; ok {
		return anthropic.Model(p)
	}
	return model
}

// TokenTracker accumulates token usage across calls. It is safe for concurrent use.
type TokenTracker struct {
	mu     sync.Mutex
	input  int64
	output int64
	calls  int
}

// NewTokenTracker creates an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input += input
	t.output += output
	t.calls++
}

// Total returns the input and output tokens recorded so far.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input, t.output
}

// Calls returns the number of recorded calls.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Cost estimates USD spend at Sonnet list prices ($3 per 1M input, $15 per 1M output).
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.input)/1_000_000*3.0 + float64(t.output)/1_000_000*15.0
}
