// Package types holds the wire-level data model shared across the engine:
// messages, content blocks, and token usage. Session-owned state lives in
// internal/session; this package only carries the conversation shape that
// crosses package boundaries (LLM client, tool executor, session store).
package types

import "encoding/json"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockKind discriminates the polymorphic ContentBlock union.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// ContentBlock is a tagged union of Text | ToolUse | ToolResult, matching
// the spec's content-block polymorphism. Serialization uses Kind as the
// discriminator so a single struct can round-trip through JSON without a
// subclass hierarchy.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// Text block
	Text string `json:"text,omitempty"`

	// ToolUse block
	ToolUseID   string          `json:"tool_use_id,omitempty"`
	ToolName    string          `json:"tool_name,omitempty"`
	ToolInput   json.RawMessage `json:"tool_input,omitempty"`

	// ToolResult block
	ToolResultForID string `json:"tool_result_for_id,omitempty"`
	ToolResultText  string `json:"tool_result_text,omitempty"`
	IsError         bool   `json:"is_error,omitempty"`
}

// NewTextBlock builds a Text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

// NewToolUseBlock builds a ToolUse content block.
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// NewToolResultBlock builds a ToolResult content block.
func NewToolResultBlock(toolUseID, text string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolResultForID: toolUseID, ToolResultText: text, IsError: isError}
}

// Reasoning carries optional extended-thinking content alongside a message.
type Reasoning struct {
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Message is an ordered, append-only (within a session) unit of
// conversation: a role plus a sequence of polymorphic content blocks.
type Message struct {
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	Reasoning *Reasoning     `json:"reasoning,omitempty"`
}

// Text concatenates all Text blocks in the message, in order.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns all ToolUse blocks in the message, in order.
func (m Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// NewUserMessage builds a single-text-block user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{NewTextBlock(text)}}
}

// NewAssistantMessage builds a single-text-block assistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{NewTextBlock(text)}}
}
