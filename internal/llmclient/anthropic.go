package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// AnthropicClient talks to the Anthropic Messages API directly through
// anthropic-sdk-go, wrapping every non-streaming call in an exponential
// backoff retry loop for transient failures (rate limits, 5xx, timeouts).
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewAnthropicClient builds a Client backed by the Anthropic API.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmclient: anthropic API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

func (c *AnthropicClient) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = 30 * time.Second
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
}

func (c *AnthropicClient) buildParams(req Request) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.defaultModel),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

// Complete runs one non-streaming turn with retry-on-transient-failure.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return Response{}, err
	}

	var msg *anthropic.Message
	op := func() error {
		var callErr error
		msg, callErr = c.client.Messages.New(ctx, params)
		if callErr != nil && !isRetryable(callErr) {
			return backoff.Permanent(callErr)
		}
		return callErr
	}
	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		return Response{}, fmt.Errorf("llmclient: anthropic completion failed: %w", err)
	}

	return anthropicResponseToResponse(msg), nil
}

// CompleteStreaming runs one turn, translating Anthropic SSE events into
// StreamEvents. Streaming calls are not retried, neither the initial
// connect nor after a mid-stream failure; a failure surfaces as a
// StreamError event.
func (c *AnthropicClient) CompleteStreaming(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)

		stream := c.client.Messages.NewStreaming(ctx, params)
		var usage types.TokenUsage
		var currentToolID, currentToolName string

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				ms := event.AsMessageStart()
				usage.Prompt = int(ms.Message.Usage.InputTokens)
				usage.CacheRead = int(ms.Message.Usage.CacheReadInputTokens)
				usage.CacheWrite = int(ms.Message.Usage.CacheCreationInputTokens)

			case "content_block_start":
				cbs := event.AsContentBlockStart()
				if cbs.ContentBlock.Type == "tool_use" {
					tu := cbs.ContentBlock.AsToolUse()
					currentToolID, currentToolName = tu.ID, tu.Name
					out <- StreamEvent{Kind: StreamToolUseStart, ToolUseID: currentToolID, ToolName: currentToolName}
				}

			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				switch delta.Type {
				case "text_delta":
					if delta.Text != "" {
						out <- StreamEvent{Kind: StreamTextDelta, TextDelta: delta.Text}
					}
				case "input_json_delta":
					if delta.PartialJSON != "" {
						out <- StreamEvent{Kind: StreamToolUseInputDelta, ToolUseID: currentToolID, InputDelta: delta.PartialJSON}
					}
				}

			case "message_delta":
				md := event.AsMessageDelta()
				usage.Completion = int(md.Usage.OutputTokens)
				usage.Total = usage.Prompt + usage.Completion
				if sr := md.Delta.StopReason; sr != "" {
					out <- StreamEvent{Kind: StreamDone, Final: &Response{
						Usage:      usage,
						StopReason: mapStopReason(string(sr)),
					}}
					return
				}

			case "message_stop":
				out <- StreamEvent{Kind: StreamDone, Final: &Response{Usage: usage, StopReason: StopEndTurn}}
				return

			case "error":
				out <- StreamEvent{Kind: StreamError, Err: errors.New("anthropic stream error")}
				return
			}
		}

		if err := stream.Err(); err != nil {
			logging.Component("llmclient").Error().Err(err).Msg("anthropic stream ended with error")
			out <- StreamEvent{Kind: StreamError, Err: err}
		}
	}()

	return out, nil
}

func anthropicResponseToResponse(msg *anthropic.Message) Response {
	message := types.Message{Role: types.RoleAssistant}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			message.Content = append(message.Content, types.NewTextBlock(block.AsText().Text))
		case "tool_use":
			tu := block.AsToolUse()
			input, _ := tu.Input.MarshalJSON()
			message.Content = append(message.Content, types.NewToolUseBlock(tu.ID, tu.Name, input))
		}
	}

	return Response{
		Message: message,
		Usage: types.TokenUsage{
			Prompt:     int(msg.Usage.InputTokens),
			Completion: int(msg.Usage.OutputTokens),
			Total:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
			CacheRead:  int(msg.Usage.CacheReadInputTokens),
			CacheWrite: int(msg.Usage.CacheCreationInputTokens),
		},
		StopReason: mapStopReason(string(msg.StopReason)),
	}
}

func mapStopReason(reason string) StopReason {
	switch reason {
	case "tool_use":
		return StopToolUse
	case "max_tokens":
		return StopMaxTokens
	case "end_turn", "stop_sequence":
		return StopEndTurn
	default:
		return StopEndTurn
	}
}

func convertMessages(messages []types.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch block.Kind {
			case types.BlockText:
				if block.Text != "" {
					content = append(content, anthropic.NewTextBlock(block.Text))
				}
			case types.BlockToolUse:
				var input map[string]any
				if len(block.ToolInput) > 0 {
					if err := json.Unmarshal(block.ToolInput, &input); err != nil {
						return nil, fmt.Errorf("llmclient: invalid tool_use input: %w", err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName))
			case types.BlockToolResult:
				content = append(content, anthropic.NewToolResultBlock(block.ToolResultForID, block.ToolResultText, block.IsError))
			}
		}

		if msg.Role == types.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(tools []ToolSchema) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("llmclient: invalid tool schema for %s: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("llmclient: missing tool definition for %s", t.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	msg := err.Error()
	for _, s := range []string{"timeout", "deadline exceeded", "connection reset", "connection refused", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
