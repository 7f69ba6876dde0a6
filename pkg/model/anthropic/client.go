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

// Package anthropic implements model.Completer against the Anthropic
// Messages API, in both buffered and streamed transports.
//
// A streamed response is decoded with sse.Decoder, each frame payload is
// mapped to a model.StreamEvent by ParseEvent, and an Assembler folds the
// events into the same Completion a buffered call would return.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/tally/pkg/httpclient"
	"github.com/kadirpekel/tally/pkg/model"
	"github.com/kadirpekel/tally/pkg/sse"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 1024

	apiVersion   = "2023-06-01"
	messagesPath = "/v1/messages"

	maxErrorBody = 1 << 20
)

// Config configures the Anthropic client.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string

	// Timeout bounds a whole call, including reading a stream. Zero uses
	// the httpclient default.
	Timeout time.Duration

	// MaxRetries enables status-driven retries. Zero disables them.
	MaxRetries int

	TLS *httpclient.TLSConfig
}

// Client is an Anthropic completion client.
type Client struct {
	httpClient *httpclient.Client
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
}

// New creates a new Anthropic client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	opts := []httpclient.Option{
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(cfg.Timeout))
	}
	if cfg.TLS != nil {
		opts = append(opts, httpclient.WithTLSConfig(cfg.TLS))
	}

	return &Client{
		httpClient: httpclient.New(opts...),
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      modelName,
		maxTokens:  maxTokens,
	}, nil
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Complete performs one completion call. req.Stream selects the transport;
// the returned Completion is the same either way.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Completion, error) {
	if req.Stream {
		return c.stream(ctx, req)
	}
	return c.generate(ctx, req)
}

// generate performs a buffered call.
func (c *Client) generate(ctx context.Context, req *model.Request) (*model.Completion, error) {
	resp, err := c.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}

	blocks, err := model.DecodeBlocks(apiResp.Content)
	if err != nil {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}

	return &model.Completion{Content: blocks, StopReason: apiResp.StopReason}, nil
}

// stream performs a streamed call.
func (c *Client) stream(ctx context.Context, req *model.Request) (*model.Completion, error) {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	asm := NewAssembler()

	for frame, err := range sse.Frames(resp.Body) {
		if err != nil {
			return nil, &TransportError{Op: "read stream", Err: err}
		}

		payload := frame.Payload()
		if payload == nil {
			continue
		}

		ev, err := ParseEvent(payload)
		if err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				slog.Debug("Skipping unknown stream event", "error", err)
			} else {
				slog.Warn("Skipping malformed stream event", "error", err)
			}
			continue
		}

		if err := asm.Apply(ev); err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				pe.StatusCode = resp.StatusCode
				return nil, pe
			}
			// A second open tool block is logged by the assembler; the
			// stream continues with the first block kept.
			if errors.Is(err, ErrUnknownEvent) {
				slog.Debug("Skipping unhandled stream event", "error", err)
			}
			continue
		}
	}

	return asm.Completion(), nil
}

// send builds and issues the HTTP request. A non-2xx response is turned
// into a ProtocolError and its body closed.
func (c *Client) send(ctx context.Context, req *model.Request, stream bool) (*http.Response, error) {
	body, err := json.Marshal(c.buildRequest(req, stream))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq, stream)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		pe := &ProtocolError{StatusCode: resp.StatusCode, Body: string(raw)}

		var envelope struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			pe.ErrorType = envelope.Error.Type
			pe.Message = envelope.Error.Message
		}
		return nil, pe
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request, stream bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
}

func (c *Client) buildRequest(req *model.Request, stream bool) *apiRequest {
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	messages := make([]model.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if len(msg.Content) == 0 {
			continue
		}
		messages = append(messages, msg)
	}

	return &apiRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  messages,
		Tools:     req.Tools,
		Stream:    stream,
	}
}

// API types

type apiRequest struct {
	Model     string                 `json:"model"`
	MaxTokens int                    `json:"max_tokens"`
	System    string                 `json:"system,omitempty"`
	Messages  []model.Message        `json:"messages"`
	Tools     []model.ToolDefinition `json:"tools,omitempty"`
	Stream    bool                   `json:"stream"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []json.RawMessage `json:"content"`
	StopReason *string           `json:"stop_reason"`
}

// Ensure Client implements model.Completer
var _ model.Completer = (*Client)(nil)
