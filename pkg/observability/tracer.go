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
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps the OpenTelemetry tracer with turn, model and tool helpers.
// A nil *Tracer is valid and produces no-op spans.
type Tracer struct {
	provider      *sdktrace.TracerProvider
	tracer        trace.Tracer
	debugExporter *DebugExporter
	stdout        io.Writer
	setGlobal     bool
}

// TracerOption configures the Tracer.
type TracerOption func(*Tracer)

// WithStdoutWriter redirects the stdout exporter.
func WithStdoutWriter(w io.Writer) TracerOption {
	return func(t *Tracer) {
		t.stdout = w
	}
}

// WithoutGlobal keeps the provider out of the otel globals.
func WithoutGlobal() TracerOption {
	return func(t *Tracer) {
		t.setGlobal = false
	}
}

// NewTracer creates a Tracer from configuration. It returns nil when
// tracing is disabled.
func NewTracer(ctx context.Context, cfg TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	t := &Tracer{stdout: os.Stdout, setGlobal: true}
	for _, opt := range opts {
		opt(t)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String(AttrGenAISystem, "anthropic"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}

	exporter, err := t.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	if cfg.IsDebugExporterEnabled() {
		t.debugExporter = NewDebugExporter()
		providerOpts = append(providerOpts, sdktrace.WithSyncer(t.debugExporter))
	}

	t.provider = sdktrace.NewTracerProvider(providerOpts...)
	t.tracer = t.provider.Tracer(cfg.ServiceName)

	if t.setGlobal {
		otel.SetTracerProvider(t.provider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return t, nil
}

func (t *Tracer) createExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTimeout(cfg.Timeout),
		}
		if cfg.IsInsecure() {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(t.stdout), stdouttrace.WithPrettyPrint())
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// Start begins a new span with the given name.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, noopSpan()
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// StartTurn begins a span for one user turn of a conversation.
func (t *Tracer) StartTurn(ctx context.Context, conversationID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanTurn,
		trace.WithAttributes(attribute.String(AttrConversationID, conversationID)),
	)
}

// StartLLMCall begins a span for one completion request.
func (t *Tracer) StartLLMCall(ctx context.Context, model string, iteration int, streamed bool) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrGenAIOperationName, OpChat),
		attribute.Int(AttrIteration, iteration),
		attribute.Bool(AttrStreamed, streamed),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrGenAIRequestModel, model))
	}
	return t.Start(ctx, SpanLLMCall, trace.WithAttributes(attrs...))
}

// StartToolExecution begins a span for one tool invocation.
func (t *Tracer) StartToolExecution(ctx context.Context, toolName, callID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanToolExecution,
		trace.WithAttributes(
			attribute.String(AttrGenAIOperationName, OpToolCall),
			attribute.String(AttrGenAIToolName, toolName),
			attribute.String(AttrGenAIToolCallID, callID),
		),
	)
}

// AddFinishReason adds the model's stop reason to a span.
func (t *Tracer) AddFinishReason(span trace.Span, reason *string) {
	if span == nil || reason == nil {
		return
	}
	span.SetAttributes(attribute.String(AttrGenAIResponseFinishReason, *reason))
}

// RecordError records an error on a span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String(AttrErrorType, ErrorType(err)),
		attribute.String(AttrErrorMessage, err.Error()),
	)
}

// DebugExporter returns the in-memory exporter, or nil.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// ErrorType is the label used for an error in spans and metrics.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}

func noopSpan() trace.Span {
	_, span := noop.NewTracerProvider().Tracer("noop").Start(context.Background(), "noop")
	return span
}
