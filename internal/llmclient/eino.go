package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// EinoClient adapts any eino ToolCallingChatModel to the Client contract.
// The Anthropic path goes straight to anthropic-sdk-go (AnthropicClient);
// this adapter covers the rest of the provider landscape (OpenAI,
// OpenAI-compatible endpoints, Ark) through eino's shared abstraction,
// exercising the tool-schema translation layer in toolschema.go.
type EinoClient struct {
	model model.ToolCallingChatModel
}

// NewEinoClient wraps an already-constructed eino ChatModel.
func NewEinoClient(m model.ToolCallingChatModel) *EinoClient {
	return &EinoClient{model: m}
}

// OpenAIConfig configures an eino-backed OpenAI (or OpenAI-compatible)
// client.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewOpenAIClient builds an EinoClient backed by eino-ext's OpenAI
// ChatModel, grounded on teacher's provider.NewOpenAIProvider.
func NewOpenAIClient(ctx context.Context, cfg OpenAIConfig) (*EinoClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmclient: openai API key is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	modelID := cfg.Model
	if modelID == "" {
		modelID = "gpt-4o"
	}

	mc := &openai.ChatModelConfig{
		APIKey:              cfg.APIKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if cfg.BaseURL != "" {
		mc.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("llmclient: failed to create openai model: %w", err)
	}
	return NewEinoClient(chatModel), nil
}

func (c *EinoClient) boundModel(req Request) (model.ToolCallingChatModel, error) {
	if len(req.Tools) == 0 {
		return c.model, nil
	}
	bound, err := c.model.WithTools(ToEinoToolInfo(req.Tools))
	if err != nil {
		return nil, fmt.Errorf("llmclient: failed to bind tools: %w", err)
	}
	return bound, nil
}

func toEinoMessages(req Request) []*schema.Message {
	messages := make([]*schema.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: req.System})
	}
	for _, msg := range req.Messages {
		role := schema.Assistant
		switch msg.Role {
		case types.RoleUser:
			role = schema.User
		case types.RoleSystem:
			role = schema.System
		case types.RoleTool:
			role = schema.Tool
		}

		var toolCalls []schema.ToolCall
		for _, b := range msg.ToolUses() {
			toolCalls = append(toolCalls, schema.ToolCall{
				ID: b.ToolUseID,
				Function: schema.FunctionCall{
					Name:      b.ToolName,
					Arguments: string(b.ToolInput),
				},
			})
		}

		messages = append(messages, &schema.Message{
			Role:      role,
			Content:   msg.Text(),
			ToolCalls: toolCalls,
		})
	}
	return messages
}

func fromEinoMessage(msg *schema.Message) types.Message {
	out := types.Message{Role: types.RoleAssistant}
	if msg.Content != "" {
		out.Content = append(out.Content, types.NewTextBlock(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		out.Content = append(out.Content, types.NewToolUseBlock(tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
	}
	return out
}

func einoStopReason(msg *schema.Message) StopReason {
	if len(msg.ToolCalls) > 0 {
		return StopToolUse
	}
	return StopEndTurn
}

// Complete runs one non-streaming turn through the wrapped ChatModel.
func (c *EinoClient) Complete(ctx context.Context, req Request) (Response, error) {
	chatModel, err := c.boundModel(req)
	if err != nil {
		return Response{}, err
	}

	opts := []model.Option{model.WithMaxTokens(req.MaxTokens)}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	msg, err := chatModel.Generate(ctx, toEinoMessages(req), opts...)
	if err != nil {
		return Response{}, fmt.Errorf("llmclient: eino completion failed: %w", err)
	}

	return Response{
		Message:    fromEinoMessage(msg),
		StopReason: einoStopReason(msg),
	}, nil
}

// CompleteStreaming runs one turn through the wrapped ChatModel's
// streaming path, forwarding each tool-call argument delta tagged with
// the most-recently-started tool id.
func (c *EinoClient) CompleteStreaming(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	chatModel, err := c.boundModel(req)
	if err != nil {
		return nil, err
	}

	opts := []model.Option{model.WithMaxTokens(req.MaxTokens)}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	reader, err := chatModel.Stream(ctx, toEinoMessages(req), opts...)
	if err != nil {
		return nil, fmt.Errorf("llmclient: eino streaming failed: %w", err)
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer reader.Close()

		var lastToolID string
		var sawToolCall bool

		for {
			chunk, err := reader.Recv()
			if err != nil {
				if err != io.EOF {
					out <- StreamEvent{Kind: StreamError, Err: err}
					return
				}
				break
			}

			if chunk.Content != "" {
				out <- StreamEvent{Kind: StreamTextDelta, TextDelta: chunk.Content}
			}
			for _, tc := range chunk.ToolCalls {
				sawToolCall = true
				if tc.ID != "" {
					lastToolID = tc.ID
					out <- StreamEvent{Kind: StreamToolUseStart, ToolUseID: tc.ID, ToolName: tc.Function.Name}
				}
				if tc.Function.Arguments != "" {
					out <- StreamEvent{Kind: StreamToolUseInputDelta, ToolUseID: lastToolID, InputDelta: tc.Function.Arguments}
				}
			}
		}

		stopReason := StopEndTurn
		if sawToolCall {
			stopReason = StopToolUse
		}
		out <- StreamEvent{Kind: StreamDone, Final: &Response{StopReason: stopReason}}
	}()

	return out, nil
}
