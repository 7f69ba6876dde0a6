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

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSE event names sent on /api/chat.
const (
	EventToolUse       = "tool_use"
	EventChartArtifact = "chart_artifact"
	EventChunk         = "chunk"
	EventDone          = "done"
	EventError         = "error"
)

const (
	ToolStatusRunning   = "running"
	ToolStatusCompleted = "completed"

	StopReasonEndTurn       = "end_turn"
	StopReasonMaxIterations = "max_iterations"
)

type toolUsePayload struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
}

type chunkPayload struct {
	Text string `json:"text"`
}

type donePayload struct {
	ConversationID string `json:"conversation_id"`
	StopReason     string `json:"stop_reason"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// sseWriter writes named events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher}
}

func (s *sseWriter) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	return s.sendRaw(event, data)
}

func (s *sseWriter) sendRaw(event string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
