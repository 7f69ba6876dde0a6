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

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Wire discriminators for content blocks.
const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// ErrUnknownBlock is returned when a content block carries a type this
// package does not model.
var ErrUnknownBlock = errors.New("unknown content block type")

// ContentBlock is one unit of model output or input.
//
// The set of implementations is closed: TextBlock, ToolUseBlock and
// ToolResultBlock. Consumers switch on the concrete type.
type ContentBlock interface {
	// BlockType returns the wire discriminator.
	BlockType() string

	contentBlock()
}

// TextBlock is plain text.
type TextBlock struct {
	Text string
}

// ToolUseBlock carries a tool call issued by the model.
type ToolUseBlock struct {
	ToolCall
}

// ToolResultBlock carries the outcome of a tool call back to the model.
type ToolResultBlock struct {
	ToolResult
}

func (TextBlock) BlockType() string       { return BlockTypeText }
func (ToolUseBlock) BlockType() string    { return BlockTypeToolUse }
func (ToolResultBlock) BlockType() string { return BlockTypeToolResult }

func (TextBlock) contentBlock()       {}
func (ToolUseBlock) contentBlock()    {}
func (ToolResultBlock) contentBlock() {}

var emptyObject = json.RawMessage(`{}`)

// MarshalJSON encodes the tagged wire form.
func (b TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{BlockTypeText, b.Text})
}

// MarshalJSON encodes the tagged wire form. The provider rejects a null
// input on replay, so a missing input is sent as an empty object.
func (b ToolUseBlock) MarshalJSON() ([]byte, error) {
	input := b.Input
	if len(bytes.TrimSpace(input)) == 0 || bytes.Equal(bytes.TrimSpace(input), []byte("null")) {
		input = emptyObject
	}
	return json.Marshal(struct {
		Type  string          `json:"type"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	}{BlockTypeToolUse, b.ID, b.Name, input})
}

// MarshalJSON encodes the tagged wire form.
func (b ToolResultBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		ToolUseID string `json:"tool_use_id"`
		Content   string `json:"content"`
		IsError   bool   `json:"is_error,omitempty"`
	}{BlockTypeToolResult, b.ToolUseID, b.Content, b.IsError})
}

// rawBlock is the union of every block field on the wire.
type rawBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// DecodeBlock decodes one tagged content block.
func DecodeBlock(data []byte) (ContentBlock, error) {
	var raw rawBlock
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode content block: %w", err)
	}

	switch raw.Type {
	case BlockTypeText:
		return TextBlock{Text: raw.Text}, nil
	case BlockTypeToolUse:
		input := raw.Input
		if len(input) == 0 {
			input = json.RawMessage("null")
		}
		return ToolUseBlock{ToolCall: ToolCall{ID: raw.ID, Name: raw.Name, Input: input}}, nil
	case BlockTypeToolResult:
		content, err := decodeResultContent(raw.Content)
		if err != nil {
			return nil, err
		}
		return ToolResultBlock{ToolResult: ToolResult{
			ToolUseID: raw.ToolUseID,
			Content:   content,
			IsError:   raw.IsError,
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, raw.Type)
	}
}

// decodeResultContent accepts both the string form and the list-of-text-blocks
// form of tool_result content.
func decodeResultContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []rawBlock
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("failed to decode tool_result content: %w", err)
	}
	var buf bytes.Buffer
	for _, p := range parts {
		if p.Type == BlockTypeText {
			buf.WriteString(p.Text)
		}
	}
	return buf.String(), nil
}

// DecodeBlocks decodes an ordered list of tagged content blocks.
func DecodeBlocks(items []json.RawMessage) ([]ContentBlock, error) {
	blocks := make([]ContentBlock, 0, len(items))
	for i, item := range items {
		block, err := DecodeBlock(item)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// UnmarshalJSON decodes a message whose content is either a string or a
// list of tagged blocks.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Content = nil

	trimmed := bytes.TrimSpace(raw.Content)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		m.Content = []ContentBlock{TextBlock{Text: text}}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("failed to decode message content: %w", err)
	}
	blocks, err := DecodeBlocks(items)
	if err != nil {
		return err
	}
	m.Content = blocks
	return nil
}
