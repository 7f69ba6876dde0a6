// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the conversation data model shared by the
// completion client, the agent loop and the session store.
//
// The model mirrors the Anthropic Messages wire format:
//   - A Message is a role plus an ordered list of content blocks
//   - ContentBlock is a closed set: TextBlock, ToolUseBlock, ToolResultBlock
//   - A Completion is the normalized result of one model call, regardless
//     of whether it was received buffered or streamed
package model

import (
	"context"
	"encoding/json"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewUserText creates a user message with a single text block.
func NewUserText(text string) Message {
	return Message{
		Role:    RoleUser,
		Content: []ContentBlock{TextBlock{Text: text}},
	}
}

// NewToolResultMessage wraps a single tool result in a user message.
func NewToolResultMessage(result ToolResult) Message {
	return Message{
		Role:    RoleUser,
		Content: []ContentBlock{ToolResultBlock{ToolResult: result}},
	}
}

// History is the ordered conversation. It is append-only: the agent never
// rewrites or removes entries it did not add.
type History []Message

// Clone returns a copy that can be appended to without aliasing the
// receiver's backing array.
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	out := make(History, len(h))
	for i, msg := range h {
		blocks := make([]ContentBlock, len(msg.Content))
		copy(blocks, msg.Content)
		out[i] = Message{Role: msg.Role, Content: blocks}
	}
	return out
}

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	// ID is assigned by the provider and unique within one completion.
	ID string `json:"id"`

	// Name of the tool to invoke.
	Name string `json:"name"`

	// Input is the structured argument value. A streamed input that could
	// not be parsed is stored as JSON null.
	Input json.RawMessage `json:"input"`
}

// ToolResult answers a ToolCall from the preceding assistant message.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Completion is the normalized output of one model call.
type Completion struct {
	// Content blocks in the order the model produced them.
	Content []ContentBlock

	// StopReason is opaque and optional (e.g. "end_turn", "tool_use").
	StopReason *string
}

// Text concatenates all text blocks in order, without separators.
func (c *Completion) Text() string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range c.Content {
		if tb, ok := block.(TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool calls in the order the model returned them.
func (c *Completion) ToolCalls() []ToolCall {
	if c == nil {
		return nil
	}
	var calls []ToolCall
	for _, block := range c.Content {
		if tu, ok := block.(ToolUseBlock); ok {
			calls = append(calls, tu.ToolCall)
		}
	}
	return calls
}

// Request contains the input for one completion call.
type Request struct {
	// System is the system instruction.
	System string

	// Messages is the full ordered history, including the newest user message.
	Messages History

	// Tools currently offered to the model.
	Tools []ToolDefinition

	// MaxTokens overrides the client's default output limit when > 0.
	MaxTokens int

	// Stream selects the streamed transport. The returned Completion is the
	// same for both modes.
	Stream bool
}

// Completer issues a single completion call.
type Completer interface {
	Complete(ctx context.Context, req *Request) (*Completion, error)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
