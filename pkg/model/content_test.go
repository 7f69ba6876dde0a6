package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_UnmarshalBlocks(t *testing.T) {
	data := `{
		"role": "assistant",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_1", "name": "spending_by_category", "input": {"year": 2024}},
			{"type": "tool_result", "tool_use_id": "toolu_1", "content": "ok", "is_error": true}
		]
	}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(data), &msg))

	assert.Equal(t, RoleAssistant, msg.Role)
	require.Len(t, msg.Content, 3)
	assert.Equal(t, TextBlock{Text: "Let me check."}, msg.Content[0])

	tu, ok := msg.Content[1].(ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "toolu_1", tu.ID)
	assert.Equal(t, "spending_by_category", tu.Name)
	assert.JSONEq(t, `{"year": 2024}`, string(tu.Input))

	tr, ok := msg.Content[2].(ToolResultBlock)
	require.True(t, ok)
	assert.Equal(t, ToolResult{ToolUseID: "toolu_1", Content: "ok", IsError: true}, tr.ToolResult)
}

func TestMessage_UnmarshalStringContent(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hi"}`), &msg))
	assert.Equal(t, NewUserText("hi"), msg)
}

func TestDecodeBlock_Unknown(t *testing.T) {
	_, err := DecodeBlock([]byte(`{"type":"image"}`))
	require.ErrorIs(t, err, ErrUnknownBlock)
}

func TestDecodeBlock_ToolResultListContent(t *testing.T) {
	block, err := DecodeBlock([]byte(`{"type":"tool_result","tool_use_id":"t","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "ab", block.(ToolResultBlock).Content)
}

func TestToolUseBlock_MarshalNullInput(t *testing.T) {
	block := ToolUseBlock{ToolCall: ToolCall{ID: "t1", Name: "x", Input: json.RawMessage("null")}}
	data, err := json.Marshal(block)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tool_use","id":"t1","name":"x","input":{}}`, string(data))
}

func TestToolResultBlock_MarshalOmitsFalseError(t *testing.T) {
	data, err := json.Marshal(ToolResultBlock{ToolResult: ToolResult{ToolUseID: "t1", Content: "done"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tool_result","tool_use_id":"t1","content":"done"}`, string(data))
}

func TestMessage_RoundTrip(t *testing.T) {
	in := Message{
		Role: RoleAssistant,
		Content: []ContentBlock{
			TextBlock{Text: "a"},
			ToolUseBlock{ToolCall: ToolCall{ID: "t1", Name: "x", Input: json.RawMessage(`{"k":1}`)}},
		},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Message
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.Content, 2)
	assert.Equal(t, in.Content[0], out.Content[0])
	assert.JSONEq(t, `{"k":1}`, string(out.Content[1].(ToolUseBlock).Input))
}

func TestCompletion_TextAndToolCalls(t *testing.T) {
	c := &Completion{Content: []ContentBlock{
		TextBlock{Text: "one "},
		ToolUseBlock{ToolCall: ToolCall{ID: "a", Name: "first"}},
		TextBlock{Text: "two"},
		ToolUseBlock{ToolCall: ToolCall{ID: "b", Name: "second"}},
	}}

	assert.Equal(t, "one two", c.Text())
	calls := c.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Name)
	assert.Equal(t, "second", calls[1].Name)

	var nilCompletion *Completion
	assert.Empty(t, nilCompletion.Text())
	assert.Nil(t, nilCompletion.ToolCalls())
}

func TestHistory_CloneDoesNotAlias(t *testing.T) {
	h := make(History, 1, 4)
	h[0] = NewUserText("first")

	c := h.Clone()
	c = append(c, NewUserText("second"))
	_ = append(h, NewUserText("other"))

	assert.Len(t, h, 1)
	require.Len(t, c, 2)
	assert.Equal(t, NewUserText("second"), c[1])
}
