package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrExhausted is returned once every credential in the pool has been tried
// for a single call.
var ErrExhausted = errors.New("all generative credentials exhausted")

const defaultMaxTokens = 50

// Client is the prompt-completion backend used by classification and
// keyword resolution.
type Client interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

type Config struct {
	// APIKeys is the ordered credential pool. Blank entries are dropped.
	APIKeys []string
	Model   string
	// BaseURL points at an OpenAI-compatible endpoint (Gemini's
	// /v1beta/openai/ surface by default, set through config).
	BaseURL string
}

// rotatingClient spreads calls over the credential pool. The cursor advances
// exactly once per attempted call, wraps modulo pool size and persists
// across calls.
type rotatingClient struct {
	clients []openai.Client
	model   string
	cursor  atomic.Uint64
}

func New(cfg Config) Client {
	model := cfg.Model
	if model == "" {
		model = "gemma-3-27b-it"
	}

	var clients []openai.Client
	for _, key := range cfg.APIKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		opts := []option.RequestOption{
			option.WithAPIKey(key),
			// Rotation is the retry policy; the SDK must not add its own.
			option.WithMaxRetries(0),
			option.WithRequestTimeout(30 * time.Second),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		clients = append(clients, openai.NewClient(opts...))
	}

	return &rotatingClient{clients: clients, model: model}
}

func (c *rotatingClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if len(c.clients) == 0 {
		return "", fmt.Errorf("%w: no API keys configured", ErrExhausted)
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(0.1),
	}

	// The attempt budget equals the pool size, never more.
	var lastErr error
	for attempt := 0; attempt < len(c.clients); attempt++ {
		client := c.clients[c.next()]

		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) && (apiErr.StatusCode == 429 || apiErr.StatusCode == 403) {
				slog.WarnContext(ctx, "generative credential rejected, rotating",
					"status_code", apiErr.StatusCode,
					"attempt", attempt+1)
			} else {
				slog.WarnContext(ctx, "generative call failed, rotating",
					"error", err,
					"attempt", attempt+1)
			}
			lastErr = err
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = errors.New("no candidates returned")
			continue
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			lastErr = errors.New("empty completion returned")
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// next returns the cursor position for this attempt and advances it by one.
func (c *rotatingClient) next() int {
	n := c.cursor.Add(1) - 1
	return int(n % uint64(len(c.clients)))
}
