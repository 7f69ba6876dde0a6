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

// Package observability provides OpenTelemetry tracing and Prometheus metrics.
//
// # Architecture
//
//  1. Tracing: OpenTelemetry spans exported over OTLP gRPC or to stdout
//  2. Metrics: OpenTelemetry instruments read by a Prometheus registry
//  3. Debug: in-memory capture of recent turn, model and tool spans
//
// Every recorder in this package is nil-safe, so callers never need to
// check whether observability is enabled.
//
// # Configuration
//
//	observability:
//	  tracing:
//	    enabled: true
//	    exporter: otlp
//	    endpoint: localhost:4317
//	    sampling_rate: 1.0
//	  metrics:
//	    enabled: true
package observability

// Service attributes.
const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
)

// GenAI semantic convention attributes.
const (
	AttrGenAISystem               = "gen_ai.system"
	AttrGenAIOperationName        = "gen_ai.operation.name"
	AttrGenAIRequestModel         = "gen_ai.request.model"
	AttrGenAIRequestMaxTokens     = "gen_ai.request.max_tokens"
	AttrGenAIResponseFinishReason = "gen_ai.response.finish_reason"
	AttrGenAIToolName             = "gen_ai.tool.name"
	AttrGenAIToolCallID           = "gen_ai.tool.call.id"
)

// Tally attributes.
const (
	AttrConversationID = "tally.conversation_id"
	AttrIteration      = "tally.iteration"
	AttrIterations     = "tally.iterations"
	AttrIncomplete     = "tally.incomplete"
	AttrStreamed       = "tally.streamed"
	AttrToolCount      = "tally.tool_count"
	AttrToolErrorKind  = "tally.tool.error_kind"
)

// Error and HTTP attributes.
const (
	AttrErrorType        = "error.type"
	AttrErrorMessage     = "error.message"
	AttrHTTPMethod       = "http.method"
	AttrHTTPRoute        = "http.route"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"
)

// Operation names.
const (
	OpChat     = "chat"
	OpToolCall = "execute_tool"
)

// Span names.
const (
	SpanTurn          = "agent.turn"
	SpanLLMCall       = "agent.llm_call"
	SpanToolExecution = "agent.tool_execution"
	SpanHTTPRequest   = "http.request"
)

// Defaults.
const (
	DefaultServiceName     = "tally"
	DefaultSamplingRate    = 1.0
	DefaultOTLPEndpoint    = "localhost:4317"
	DefaultMetricsPath     = "/metrics"
	DefaultMetricNamespace = "tally"
	DefaultDebugSpans      = 500
)
