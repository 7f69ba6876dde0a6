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

// Package agent runs the bounded tool-use loop for one user turn.
//
// A turn appends the user's message to the history and then alternates
// between a completion call and the sequential execution of every tool
// call the model returned, feeding each result back as its own message.
// The turn ends when the model answers without tool calls or when the
// iteration cap is reached, in which case the result is marked
// incomplete.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/tally/pkg/model"
	"github.com/kadirpekel/tally/pkg/observability"
	"github.com/kadirpekel/tally/pkg/tool"
)

// DefaultMaxIterations bounds the completion calls of one turn.
const DefaultMaxIterations = 10

// Config configures an Agent.
type Config struct {
	// MaxIterations caps the completion calls per turn.
	// Default: 10
	MaxIterations int

	// SystemPrompt is sent with every completion call.
	SystemPrompt string

	// Stream selects the streamed completion transport.
	Stream bool

	// MaxTokens overrides the client's output limit when > 0.
	MaxTokens int

	// Observer receives every event of every turn as it is produced.
	Observer Observer
}

func (c *Config) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
}

func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens)
	}
	return nil
}

// Agent drives turns against one completion client and one tool executor.
// It holds no per-conversation state and is safe for concurrent use.
type Agent struct {
	client  model.Completer
	tools   tool.Executor
	cfg     Config
	tracer  *observability.Tracer
	metrics observability.Recorder
}

// Option configures optional Agent collaborators.
type Option func(*Agent)

// WithTracer records turn, completion and tool spans.
func WithTracer(t *observability.Tracer) Option {
	return func(a *Agent) {
		a.tracer = t
	}
}

// WithMetrics records turn, completion and tool metrics.
func WithMetrics(m observability.Recorder) Option {
	return func(a *Agent) {
		if m != nil {
			a.metrics = m
		}
	}
}

// New creates an Agent.
func New(client model.Completer, tools tool.Executor, cfg Config, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, fmt.Errorf("completion client is required")
	}
	if tools == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		client:  client,
		tools:   tools,
		cfg:     cfg,
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// MaxIterations returns the configured cap.
func (a *Agent) MaxIterations() int {
	return a.cfg.MaxIterations
}

// Result is the outcome of one turn.
type Result struct {
	// Reply is the concatenated text of every completion of the turn.
	Reply string

	// ToolsUsed names every successful tool call in order, repeats included.
	ToolsUsed []string

	// Events in the order they were produced.
	Events []Event

	// Incomplete is set when the cap was reached while the model still
	// requested tools.
	Incomplete bool

	// Iterations is the number of completion calls made.
	Iterations int

	// History is the input history plus everything this turn appended.
	History model.History

	// StopReason of the last completion, if the provider sent one.
	StopReason *string
}

// RunOption configures a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	observer       Observer
	conversationID string
}

// WithObserver receives this run's events in addition to Config.Observer.
func WithObserver(o Observer) RunOption {
	return func(rc *runConfig) {
		rc.observer = chain(rc.observer, o)
	}
}

// WithConversationID tags logs and spans of this run.
func WithConversationID(id string) RunOption {
	return func(rc *runConfig) {
		rc.conversationID = id
	}
}

// Run executes one turn. history is not modified; the extended history is
// returned in the Result.
//
// If a completion call fails, Run returns the Result as it stood, with
// every message appended so far, together with a *CompletionError.
// Nothing is rolled back.
func (a *Agent) Run(ctx context.Context, history model.History, userInput string, opts ...RunOption) (*Result, error) {
	rc := runConfig{observer: a.cfg.Observer}
	for _, opt := range opts {
		opt(&rc)
	}

	start := time.Now()
	ctx, span := a.tracer.StartTurn(ctx, rc.conversationID)
	defer span.End()

	log := slog.With("conversation_id", rc.conversationID)

	res := &Result{History: append(history.Clone(), model.NewUserText(userInput))}
	emit := func(ev Event) {
		res.Events = append(res.Events, ev)
		if rc.observer != nil {
			rc.observer(ev)
		}
	}

	var reply strings.Builder
	finish := func(err error) (*Result, error) {
		res.Reply = reply.String()
		a.tracer.RecordError(span, err)
		a.metrics.RecordTurn(ctx, time.Since(start), res.Iterations, res.Incomplete, observability.ErrorType(err))
		return res, err
	}

	for iteration := 0; iteration < a.cfg.MaxIterations; iteration++ {
		res.Iterations = iteration + 1
		log.Debug("LLM call", "iteration", iteration)

		completion, err := a.complete(ctx, res.History, iteration)
		if err != nil {
			log.Error("Completion failed", "iteration", iteration, "error", err)
			return finish(&CompletionError{Iteration: iteration, Err: err})
		}
		res.StopReason = completion.StopReason

		if len(completion.Content) > 0 {
			res.History = append(res.History, model.Message{
				Role:    model.RoleAssistant,
				Content: completion.Content,
			})
		}
		reply.WriteString(completion.Text())

		calls := completion.ToolCalls()
		if len(calls) == 0 {
			log.Info("Agent done (no more tool calls)", "iteration", iteration)
			break
		}

		for _, call := range calls {
			result := a.runTool(ctx, log, call, res, emit)
			res.History = append(res.History, model.NewToolResultMessage(result))
		}

		if iteration == a.cfg.MaxIterations-1 {
			res.Incomplete = true
			log.Warn("Iteration cap reached with pending tool use", "max_iterations", a.cfg.MaxIterations)
		}
	}

	return finish(nil)
}

func (a *Agent) complete(ctx context.Context, history model.History, iteration int) (*model.Completion, error) {
	var modelName string
	if named, ok := a.client.(interface{ Model() string }); ok {
		modelName = named.Model()
	}

	start := time.Now()
	ctx, span := a.tracer.StartLLMCall(ctx, modelName, iteration, a.cfg.Stream)
	defer span.End()

	completion, err := a.client.Complete(ctx, &model.Request{
		System:    a.cfg.SystemPrompt,
		Messages:  history,
		Tools:     a.tools.Definitions(),
		MaxTokens: a.cfg.MaxTokens,
		Stream:    a.cfg.Stream,
	})
	a.metrics.RecordLLMCall(ctx, modelName, a.cfg.Stream, time.Since(start), observability.ErrorType(err))
	if err != nil {
		a.tracer.RecordError(span, err)
		return nil, err
	}
	if completion == nil {
		completion = &model.Completion{}
	}
	a.tracer.AddFinishReason(span, completion.StopReason)
	return completion, nil
}

// runTool executes one call and returns the result to feed back. Tool
// failures never abort the turn.
func (a *Agent) runTool(ctx context.Context, log *slog.Logger, call model.ToolCall, res *Result, emit func(Event)) model.ToolResult {
	log.Info("Tool call", "tool", call.Name, "input", string(call.Input))
	emit(ToolRunning{Name: call.Name})

	start := time.Now()
	ctx, span := a.tracer.StartToolExecution(ctx, call.Name, call.ID)
	defer span.End()

	out, err := a.tools.Run(ctx, call.Name, call.Input)

	errorType := ""
	if err != nil {
		errorType = tool.KindOf(err).String()
	}
	a.metrics.RecordToolCall(ctx, call.Name, time.Since(start), errorType)

	if err != nil {
		log.Warn("Tool error", "tool", call.Name, "error", err)
		a.tracer.RecordError(span, err)
		emit(ToolCompleted{Name: call.Name})
		return model.ToolResult{
			ToolUseID: call.ID,
			Content:   fmt.Sprintf("Tool error: %v", err),
			IsError:   true,
		}
	}
	if out == nil {
		out = &tool.Output{}
	}

	log.Info("Tool ok", "tool", call.Name, "summary_len", len(out.Summary), "artifacts", len(out.Artifacts))
	for _, artifact := range out.Artifacts {
		emit(Artifact{Payload: artifact})
	}
	res.ToolsUsed = append(res.ToolsUsed, call.Name)
	emit(ToolCompleted{Name: call.Name})

	return model.ToolResult{ToolUseID: call.ID, Content: out.Summary}
}
