package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/tally/pkg/agent"
	"github.com/kadirpekel/tally/pkg/model"
	"github.com/kadirpekel/tally/pkg/observability"
	"github.com/kadirpekel/tally/pkg/session"
	"github.com/kadirpekel/tally/pkg/sse"
	"github.com/kadirpekel/tally/pkg/tool"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []*model.Completion
	err     error
	calls   int
}

func (s *scriptedCompleter) Complete(context.Context, *model.Request) (*model.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > len(s.replies) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, errors.New("script exhausted")
	}
	return s.replies[s.calls-1], nil
}

type chartExecutor struct{}

func (chartExecutor) Definitions() []model.ToolDefinition {
	return []model.ToolDefinition{{Name: "spending_by_category", InputSchema: json.RawMessage(`{"type":"object"}`)}}
}

func (chartExecutor) Run(context.Context, string, json.RawMessage) (*tool.Output, error) {
	return &tool.Output{
		Summary: "Groceries: 412.50 CHF",
		Artifacts: []json.RawMessage{json.RawMessage(`{
			"type": "pie",
			"title": "Spending by category",
			"data": {"labels": ["Groceries"], "datasets": [{"name": "CHF", "values": [412.5]}]}
		}`)},
	}, nil
}

func toolCall(name string) *model.Completion {
	return &model.Completion{Content: []model.ContentBlock{
		model.ToolUseBlock{ToolCall: model.ToolCall{ID: "toolu_1", Name: name, Input: json.RawMessage(`{}`)}},
	}}
}

func reply(text string) *model.Completion {
	return &model.Completion{Content: []model.ContentBlock{model.TextBlock{Text: text}}}
}

func newAgent(t *testing.T, c model.Completer, maxIterations int) *agent.Agent {
	t.Helper()
	a, err := agent.New(c, chartExecutor{}, agent.Config{MaxIterations: maxIterations})
	require.NoError(t, err)
	return a
}

func newTestServer(t *testing.T, runner Runner, opts ...Option) (*Server, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	srv, err := New(Config{SessionBackend: "memory"}, runner, store, opts...)
	require.NoError(t, err)
	return srv, store
}

type event struct {
	name string
	data string
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, []event) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var events []event
	for f, err := range sse.Frames(strings.NewReader(rec.Body.String())) {
		require.NoError(t, err)
		events = append(events, event{name: f.Event(), data: f.Data()})
	}
	return rec, events
}

func names(events []event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.name
	}
	return out
}

func TestChat_StreamsTurn(t *testing.T) {
	completer := &scriptedCompleter{replies: []*model.Completion{
		toolCall("spending_by_category"),
		reply("You spent 412.50 CHF on groceries."),
	}}
	srv, store := newTestServer(t, newAgent(t, completer, 10))

	rec, events := postChat(t, srv.Handler(), `{"message":"How much on groceries?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	assert.Equal(t, []string{
		EventToolUse, EventChartArtifact, EventToolUse,
		EventChunk, EventChunk, EventChunk, EventChunk, EventChunk, EventChunk,
		EventDone,
	}, names(events))

	assert.JSONEq(t, `{"tool":"spending_by_category","status":"running"}`, events[0].data)
	assert.JSONEq(t, `{"type":"pie","title":"Spending by category","data":{"labels":["Groceries"],"datasets":[{"name":"CHF","values":[412.5]}]}}`, events[1].data)
	assert.JSONEq(t, `{"tool":"spending_by_category","status":"completed"}`, events[2].data)
	assert.JSONEq(t, `{"text":"You "}`, events[3].data)
	assert.JSONEq(t, `{"text":"groceries. "}`, events[8].data)

	var done donePayload
	require.NoError(t, json.Unmarshal([]byte(events[9].data), &done))
	assert.Equal(t, StopReasonEndTurn, done.StopReason)
	require.NotEmpty(t, done.ConversationID)

	_, history, err := store.GetOrCreate(context.Background(), done.ConversationID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestChat_ContinuesConversation(t *testing.T) {
	completer := &scriptedCompleter{replies: []*model.Completion{reply("first"), reply("second")}}
	srv, store := newTestServer(t, newAgent(t, completer, 10))

	_, events := postChat(t, srv.Handler(), `{"message":"one"}`)
	var done donePayload
	require.NoError(t, json.Unmarshal([]byte(events[len(events)-1].data), &done))

	_, events = postChat(t, srv.Handler(), `{"message":"two","conversation_id":"`+done.ConversationID+`"}`)
	assert.Equal(t, []string{EventChunk, EventDone}, names(events))

	_, history, err := store.GetOrCreate(context.Background(), done.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, model.NewUserText("two"), history[2])
}

func TestChat_MaxIterations(t *testing.T) {
	completer := &scriptedCompleter{replies: []*model.Completion{toolCall("spending_by_category")}}
	srv, _ := newTestServer(t, newAgent(t, completer, 1))

	_, events := postChat(t, srv.Handler(), `{"message":"loop"}`)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.name)
	assert.Contains(t, last.data, `"stop_reason":"max_iterations"`)
}

func TestChat_AgentErrorSavesPartialHistory(t *testing.T) {
	completer := &scriptedCompleter{
		replies: []*model.Completion{toolCall("spending_by_category")},
		err:     errors.New("upstream unavailable"),
	}
	srv, store := newTestServer(t, newAgent(t, completer, 10))

	_, events := postChat(t, srv.Handler(), `{"message":"hi","conversation_id":"conv-1"}`)
	assert.Equal(t, []string{EventToolUse, EventChartArtifact, EventToolUse, EventError}, names(events))
	assert.Contains(t, events[3].data, "upstream unavailable")

	_, history, err := store.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Len(t, history, 3, "user, assistant tool use, tool result")
}

// peekingCompleter records what the client has received when the second
// completion is requested.
type peekingCompleter struct {
	rec    *httptest.ResponseRecorder
	calls  int
	peeked string
}

func (p *peekingCompleter) Complete(context.Context, *model.Request) (*model.Completion, error) {
	p.calls++
	if p.calls == 1 {
		return toolCall("spending_by_category"), nil
	}
	p.peeked = p.rec.Body.String()
	return reply("done"), nil
}

func TestChat_ToolEventsStreamBeforeTurnEnds(t *testing.T) {
	rec := httptest.NewRecorder()
	completer := &peekingCompleter{rec: rec}
	srv, _ := newTestServer(t, newAgent(t, completer, 10))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"groceries?"}`))
	srv.Handler().ServeHTTP(rec, req)

	var live []string
	for f, err := range sse.Frames(strings.NewReader(completer.peeked)) {
		require.NoError(t, err)
		live = append(live, f.Event())
	}
	assert.Equal(t, []string{EventToolUse, EventChartArtifact, EventToolUse}, live)
	assert.True(t, rec.Flushed)

	var all []string
	for f, err := range sse.Frames(strings.NewReader(rec.Body.String())) {
		require.NoError(t, err)
		all = append(all, f.Event())
	}
	assert.Equal(t, []string{EventToolUse, EventChartArtifact, EventToolUse, EventChunk, EventDone}, all)
}

type eventfulRunner struct{}

func (eventfulRunner) Run(_ context.Context, history model.History, input string, _ ...agent.RunOption) (*agent.Result, error) {
	return &agent.Result{
		Reply:   "ok",
		Events:  []agent.Event{agent.ToolRunning{Name: "monthly_trend"}, agent.ToolCompleted{Name: "monthly_trend"}},
		History: append(history.Clone(), model.NewUserText(input)),
	}, nil
}

func TestChat_EventsWrittenForRunnerWithoutObserver(t *testing.T) {
	srv, _ := newTestServer(t, eventfulRunner{})
	_, events := postChat(t, srv.Handler(), `{"message":"trend"}`)
	assert.Equal(t, []string{EventToolUse, EventToolUse, EventChunk, EventDone}, names(events))
	assert.JSONEq(t, `{"tool":"monthly_trend","status":"completed"}`, events[1].data)
}

func TestChat_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, newAgent(t, &scriptedCompleter{}, 10))

	for _, body := range []string{``, `{`, `{"message":"  "}`} {
		rec, _ := postChat(t, srv.Handler(), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestReset(t *testing.T) {
	srv, store := newTestServer(t, newAgent(t, &scriptedCompleter{}, 10))
	ctx := context.Background()

	id, _, err := store.GetOrCreate(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/reset", strings.NewReader(`{"conversation_id":"`+id+`"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, store.Len())

	req = httptest.NewRequest(http.MethodPost, "/api/chat/reset", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, newAgent(t, &scriptedCompleter{}, 10))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics disabled")
}

type staticRunner struct{ text string }

func (s staticRunner) Run(_ context.Context, history model.History, input string, _ ...agent.RunOption) (*agent.Result, error) {
	return &agent.Result{Reply: s.text, History: append(history.Clone(), model.NewUserText(input))}, nil
}

func TestSetRunner(t *testing.T) {
	srv, _ := newTestServer(t, staticRunner{text: "old"})
	srv.SetRunner(nil)
	_, events := postChat(t, srv.Handler(), `{"message":"x"}`)
	assert.JSONEq(t, `{"text":"old "}`, events[0].data)

	srv.SetRunner(staticRunner{text: "new"})
	_, events = postChat(t, srv.Handler(), `{"message":"x"}`)
	assert.JSONEq(t, `{"text":"new "}`, events[0].data)
}

func TestObservabilityRoutes(t *testing.T) {
	debug := true
	mgr := observability.NewManager(observability.Config{
		Tracing: observability.TracingConfig{Enabled: true, Exporter: "none", DebugExporter: &debug},
		Metrics: observability.MetricsConfig{Enabled: true},
	})
	require.NoError(t, mgr.Initialize(context.Background(), observability.WithoutGlobal()))
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	srv, _ := newTestServer(t, staticRunner{text: "ok"}, WithObservability(mgr))
	_, events := postChat(t, srv.Handler(), `{"message":"x"}`)
	require.NotEmpty(t, events)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `tally_http_requests_total`)
	assert.Contains(t, body, `route="/api/chat"`)
	assert.Contains(t, body, `event="created"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/spans", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	store := session.NewMemoryStore()
	srv, err := New(Config{CORSOrigins: []string{"http://app.test"}}, staticRunner{}, store)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://app.test")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, staticRunner{text: "ok"})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, session.NewMemoryStore())
	require.Error(t, err)
	_, err = New(Config{}, staticRunner{}, nil)
	require.Error(t, err)
}
