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
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DebugExporter is a SpanExporter that keeps the most recent turn, model
// and tool spans in memory for inspection over HTTP.
//
// Safe for concurrent use.
type DebugExporter struct {
	mu      sync.RWMutex
	spans   []*DebugSpan
	maxSize int
}

// DebugSpan contains captured span information.
type DebugSpan struct {
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Name         string            `json:"name"`
	StartTime    int64             `json:"start_time_unix_nano"`
	EndTime      int64             `json:"end_time_unix_nano"`
	DurationMs   float64           `json:"duration_ms"`
	Attributes   map[string]string `json:"attributes"`
	Events       []SpanEvent       `json:"events,omitempty"`
	Status       string            `json:"status"`
	StatusMsg    string            `json:"status_message,omitempty"`
}

// SpanEvent represents an event recorded on a span.
type SpanEvent struct {
	Name       string            `json:"name"`
	TimeUnix   int64             `json:"time_unix_nano"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewDebugExporter creates a DebugExporter retaining DefaultDebugSpans spans.
func NewDebugExporter() *DebugExporter {
	return &DebugExporter{maxSize: DefaultDebugSpans}
}

// WithMaxSize sets the maximum number of spans to retain.
func (e *DebugExporter) WithMaxSize(size int) *DebugExporter {
	e.maxSize = size
	return e
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *DebugExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, span := range spans {
		if !shouldCapture(span.Name()) {
			continue
		}
		e.spans = append(e.spans, convertSpan(span))
	}

	if excess := len(e.spans) - e.maxSize; excess > 0 {
		e.spans = append([]*DebugSpan(nil), e.spans[excess:]...)
	}
	return nil
}

func shouldCapture(name string) bool {
	switch name {
	case SpanTurn, SpanLLMCall, SpanToolExecution:
		return true
	default:
		return false
	}
}

func convertSpan(span sdktrace.ReadOnlySpan) *DebugSpan {
	startTime := span.StartTime().UnixNano()
	endTime := span.EndTime().UnixNano()

	ds := &DebugSpan{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		Name:       span.Name(),
		StartTime:  startTime,
		EndTime:    endTime,
		DurationMs: float64(endTime-startTime) / 1e6,
		Attributes: make(map[string]string),
		Status:     span.Status().Code.String(),
		StatusMsg:  span.Status().Description,
	}

	if span.Parent().HasSpanID() {
		ds.ParentSpanID = span.Parent().SpanID().String()
	}

	for _, attr := range span.Attributes() {
		ds.Attributes[string(attr.Key)] = attr.Value.Emit()
	}

	for _, event := range span.Events() {
		se := SpanEvent{
			Name:       event.Name,
			TimeUnix:   event.Time.UnixNano(),
			Attributes: make(map[string]string),
		}
		for _, attr := range event.Attributes {
			se.Attributes[string(attr.Key)] = attr.Value.Emit()
		}
		ds.Events = append(ds.Events, se)
	}

	return ds
}

// Shutdown implements sdktrace.SpanExporter.
func (e *DebugExporter) Shutdown(ctx context.Context) error {
	e.Clear()
	return nil
}

// Recent returns up to limit of the most recently exported spans, oldest
// first. A non-positive limit returns everything retained.
func (e *DebugExporter) Recent(limit int) []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()

	start := 0
	if limit > 0 && len(e.spans) > limit {
		start = len(e.spans) - limit
	}
	return append([]*DebugSpan(nil), e.spans[start:]...)
}

// GetSpansByName returns all spans with the given name.
func (e *DebugExporter) GetSpansByName(name string) []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var result []*DebugSpan
	for _, span := range e.spans {
		if span.Name == name {
			result = append(result, span)
		}
	}
	return result
}

// GetSpansByConversation returns every span belonging to a trace whose
// turn span carries the conversation id.
func (e *DebugExporter) GetSpansByConversation(conversationID string) []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()

	traces := make(map[string]bool)
	for _, span := range e.spans {
		if span.Name == SpanTurn && span.Attributes[AttrConversationID] == conversationID {
			traces[span.TraceID] = true
		}
	}

	var result []*DebugSpan
	for _, span := range e.spans {
		if traces[span.TraceID] {
			result = append(result, span)
		}
	}
	return result
}

// Clear removes all captured spans.
func (e *DebugExporter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = nil
}

// Count returns the number of captured spans.
func (e *DebugExporter) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.spans)
}

// Handler serves captured spans as JSON. It accepts conversation_id and
// limit query parameters.
func (e *DebugExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var spans []*DebugSpan
		if id := r.URL.Query().Get("conversation_id"); id != "" {
			spans = e.GetSpansByConversation(id)
		} else {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			spans = e.Recent(limit)
		}
		if spans == nil {
			spans = []*DebugSpan{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spans": spans,
			"count": len(spans),
		})
	})
}

var _ sdktrace.SpanExporter = (*DebugExporter)(nil)
