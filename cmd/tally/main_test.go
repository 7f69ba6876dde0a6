package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/tally/pkg/agent"
	"github.com/kadirpekel/tally/pkg/model"
	"github.com/kadirpekel/tally/pkg/tool"
)

type replyCompleter struct {
	replies []string
	seen    []int
}

func (r *replyCompleter) Complete(_ context.Context, req *model.Request) (*model.Completion, error) {
	r.seen = append(r.seen, len(req.Messages))
	reply := r.replies[0]
	if len(r.replies) > 1 {
		r.replies = r.replies[1:]
	}
	return &model.Completion{
		Content:    []model.ContentBlock{model.TextBlock{Text: reply}},
		StopReason: model.StringPtr("end_turn"),
	}, nil
}

func newChatSession(t *testing.T, c model.Completer, out *bytes.Buffer) *chatSession {
	t.Helper()
	tools, err := tool.NewRegistry()
	require.NoError(t, err)
	a, err := agent.New(c, tools, agent.Config{})
	require.NoError(t, err)
	return &chatSession{agent: a, out: out}
}

func TestChatSession_Interactive(t *testing.T) {
	var out bytes.Buffer
	c := &replyCompleter{replies: []string{"You spent 120.", "Groceries mostly.", "Fresh start."}}
	s := newChatSession(t, c, &out)

	in := strings.NewReader("how much?\n\nand on what?\n/reset\nhello\n/quit\nignored\n")
	require.NoError(t, s.interactive(context.Background(), in))

	assert.Contains(t, out.String(), "You spent 120.")
	assert.Contains(t, out.String(), "Groceries mostly.")
	assert.Contains(t, out.String(), "Conversation cleared.")
	assert.Equal(t, []int{1, 3, 1}, c.seen)
	assert.Len(t, s.history, 2)
}

func TestChatSession_EOF(t *testing.T) {
	var out bytes.Buffer
	s := newChatSession(t, &replyCompleter{replies: []string{"ok"}}, &out)
	require.NoError(t, s.interactive(context.Background(), strings.NewReader("")))
	assert.Empty(t, s.history)
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSchema(&buf, true))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	var schema map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &schema))
	assert.Equal(t, "tally configuration", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"llm", "agent", "server", "ledger", "session", "logger"} {
		assert.Contains(t, props, key)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}
