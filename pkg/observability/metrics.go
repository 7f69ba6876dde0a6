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

package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder defines the interface for recording metrics. An empty
// errorType means success.
type Recorder interface {
	RecordTurn(ctx context.Context, duration time.Duration, iterations int, incomplete bool, errorType string)
	RecordLLMCall(ctx context.Context, model string, streamed bool, duration time.Duration, errorType string)
	RecordToolCall(ctx context.Context, tool string, duration time.Duration, errorType string)
	RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration)
	RecordSessionEvent(ctx context.Context, backend, event string)
}

// Metrics records OpenTelemetry instruments into a private Prometheus
// registry. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	turnDuration   metric.Float64Histogram
	turnIterations metric.Int64Histogram
	turnsTotal     metric.Int64Counter
	llmDuration    metric.Float64Histogram
	llmCallsTotal  metric.Int64Counter
	toolDuration   metric.Float64Histogram
	toolCallsTotal metric.Int64Counter
	httpDuration   metric.Float64Histogram
	httpTotal      metric.Int64Counter
	sessionEvents  metric.Int64Counter
}

// NewMetrics creates the instruments. It returns nil when metrics are
// disabled.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(DefaultServiceName)

	m := &Metrics{registry: registry, provider: provider}

	if m.turnDuration, err = meter.Float64Histogram("turn_duration",
		metric.WithDescription("Duration of a user turn"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create turn duration histogram: %w", err)
	}
	if m.turnIterations, err = meter.Int64Histogram("turn_iterations",
		metric.WithDescription("Model calls per user turn"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 7, 10, 15, 20),
	); err != nil {
		return nil, fmt.Errorf("failed to create turn iterations histogram: %w", err)
	}
	if m.turnsTotal, err = meter.Int64Counter("turns",
		metric.WithDescription("Total user turns"),
	); err != nil {
		return nil, fmt.Errorf("failed to create turns counter: %w", err)
	}
	if m.llmDuration, err = meter.Float64Histogram("llm_call_duration",
		metric.WithDescription("Completion request duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}
	if m.llmCallsTotal, err = meter.Int64Counter("llm_calls",
		metric.WithDescription("Total completion requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm calls counter: %w", err)
	}
	if m.toolDuration, err = meter.Float64Histogram("tool_call_duration",
		metric.WithDescription("Tool execution duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}
	if m.toolCallsTotal, err = meter.Int64Counter("tool_calls",
		metric.WithDescription("Total tool executions"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram("http_request_duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}
	if m.httpTotal, err = meter.Int64Counter("http_requests",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}
	if m.sessionEvents, err = meter.Int64Counter("session_events",
		metric.WithDescription("Session store events"),
	); err != nil {
		return nil, fmt.Errorf("failed to create session events counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordTurn(ctx context.Context, duration time.Duration, iterations int, incomplete bool, errorType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("incomplete", incomplete),
		attribute.String("error_type", errorType),
	)
	m.turnDuration.Record(ctx, duration.Seconds(), attrs)
	m.turnIterations.Record(ctx, int64(iterations))
	m.turnsTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordLLMCall(ctx context.Context, model string, streamed bool, duration time.Duration, errorType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.Bool("streamed", streamed),
		attribute.String("error_type", errorType),
	)
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmCallsTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordToolCall(ctx context.Context, tool string, duration time.Duration, errorType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("error_type", errorType),
	)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCallsTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(statusCode)),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordSessionEvent(ctx context.Context, backend, event string) {
	if m == nil {
		return
	}
	m.sessionEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("event", event),
	))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return NoopMetrics{}.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
