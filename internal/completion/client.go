package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultMaxRetries = 3
	maxToolRounds     = 3
)

// Failure replies produced by Chat in place of an error return.
const (
	failureUnavailable = "Completion unavailable: "
	failureCancelled   = "Completion cancelled: "
	failureExhausted   = "Completion failed after "
)

// IsFailure reports whether a Chat reply describes a completion failure
// rather than model output.
func IsFailure(reply string) bool {
	return strings.HasPrefix(reply, failureUnavailable) ||
		strings.HasPrefix(reply, failureCancelled) ||
		strings.HasPrefix(reply, failureExhausted)
}

// ChatOptions carries per-call settings for Chat.
type ChatOptions struct {
	SystemPrompt  string
	Model         string // provider name override, empty = default
	UseTools      bool
	ToolAllowlist []string
}

// ChatOption mutates ChatOptions.
type ChatOption func(*ChatOptions)

// WithSystemPrompt sets the system prompt for the call.
func WithSystemPrompt(prompt string) ChatOption {
	return func(o *ChatOptions) { o.SystemPrompt = prompt }
}

// WithModel overrides the provider used for the call.
func WithModel(name string) ChatOption {
	return func(o *ChatOptions) { o.Model = name }
}

// WithTools enables tool use for the call. Only explicitly tool-enabled
// callers set this; the agent loops never do.
func WithTools(allowlist ...string) ChatOption {
	return func(o *ChatOptions) {
		o.UseTools = true
		o.ToolAllowlist = allowlist
	}
}

// Client is the completion service boundary. Chat never returns an error:
// provider failures surface as an error-describing string after bounded
// retries, so loops built on top of it stay alive.
type Client struct {
	registry   *Registry
	maxRetries int
	retryDelay time.Duration
	search     *searchProvider
}

// ClientConfig holds dependencies for building a Client.
type ClientConfig struct {
	Registry      *Registry
	MaxRetries    int // 0 = default 3
	SearchResults int // max web search results per query
}

// NewClient creates a completion client.
func NewClient(cfg ClientConfig) *Client {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Client{
		registry:   cfg.Registry,
		maxRetries: retries,
		retryDelay: time.Second,
		search:     newSearchProvider(cfg.SearchResults),
	}
}

// Chat sends one message to the completion service and returns the reply text.
// Any failure is folded into the returned string; callers treat every reply
// as text and never see an error.
func (c *Client) Chat(ctx context.Context, message string, opts ...ChatOption) string {
	var o ChatOptions
	for _, opt := range opts {
		opt(&o)
	}

	chatModel, err := c.resolveModel(ctx, o.Model)
	if err != nil {
		slog.Error("completion: resolve model", "error", err, "provider", o.Model)
		return failureUnavailable + err.Error()
	}

	msgs := make([]*schema.Message, 0, 2)
	if o.SystemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(o.SystemPrompt))
	}
	msgs = append(msgs, schema.UserMessage(message))

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var resp *schema.Message
		if o.UseTools {
			resp, lastErr = c.generateWithTools(ctx, chatModel, msgs, o.ToolAllowlist)
		} else {
			resp, lastErr = chatModel.Generate(ctx, msgs)
		}
		if lastErr == nil {
			return resp.Content
		}

		slog.Warn("completion: generate failed", "attempt", attempt, "error", lastErr)

		select {
		case <-ctx.Done():
			return failureCancelled + ctx.Err().Error()
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}

	return fmt.Sprintf("%s%d attempts: %v", failureExhausted, c.maxRetries, lastErr)
}

// resolveModel returns the named provider, or the default when name is empty.
func (c *Client) resolveModel(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	if name != "" {
		return c.registry.Get(ctx, name)
	}
	return c.registry.Default(ctx)
}

// generateWithTools runs a bounded tool-call round trip: bind the search tool,
// execute any tool calls the model emits, feed results back, repeat.
func (c *Client) generateWithTools(ctx context.Context, chatModel model.ToolCallingChatModel, msgs []*schema.Message, allowlist []string) (*schema.Message, error) {
	if !toolAllowed(searchToolName, allowlist) {
		return chatModel.Generate(ctx, msgs)
	}

	searchTool, info, err := c.search.tool(ctx)
	if err != nil {
		slog.Warn("completion: search tool unavailable, generating without tools", "error", err)
		return chatModel.Generate(ctx, msgs)
	}

	toolModel, err := chatModel.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}

	history := append([]*schema.Message(nil), msgs...)
	for round := 0; round < maxToolRounds; round++ {
		resp, err := toolModel.Generate(ctx, history)
		if err != nil {
			return nil, err
		}
		if len(resp.ToolCalls) == 0 {
			return resp, nil
		}

		history = append(history, resp)
		for _, call := range resp.ToolCalls {
			out, err := searchTool.InvokableRun(ctx, call.Function.Arguments)
			if err != nil {
				out = "tool error: " + err.Error()
			}
			history = append(history, schema.ToolMessage(out, call.ID))
		}
	}

	return nil, fmt.Errorf("tool rounds exhausted after %d iterations", maxToolRounds)
}

func toolAllowed(name string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, allowed := range allowlist {
		if allowed == name {
			return true
		}
	}
	return false
}
