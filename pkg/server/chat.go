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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kadirpekel/tally/pkg/agent"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type resetRequest struct {
	ConversationID string `json:"conversation_id"`
}

// handleChat runs one turn and answers with an event stream: tool_use and
// chart_artifact events as the agent produces them, the reply as chunk
// events, then done. A failed turn ends with a single error event; events
// already sent stand.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	stream := newSSEWriter(w)

	conversationID, history, err := s.sessions.GetOrCreate(ctx, req.ConversationID)
	if err != nil {
		slog.Error("Failed to open conversation", "conversation_id", req.ConversationID, "error", err)
		_ = stream.send(EventError, errorPayload{Message: err.Error()})
		return
	}
	if len(history) == 0 {
		s.recordSession(r, "created")
	} else {
		s.recordSession(r, "resumed")
	}

	log := slog.With("conversation_id", conversationID)
	log.Info("Chat request", "message", req.Message, "history_len", len(history))

	live := &eventRelay{stream: stream}
	result, runErr := s.currentRunner().Run(ctx, history, req.Message,
		agent.WithConversationID(conversationID),
		agent.WithObserver(live.observe))

	// Messages appended before a failure stay in the conversation.
	if result != nil {
		if err := s.sessions.Save(ctx, conversationID, result.History); err != nil {
			log.Warn("Failed to save conversation", "error", err)
		} else {
			s.recordSession(r, "saved")
		}
	}

	if runErr != nil {
		log.Error("Agent error", "error", runErr)
		_ = stream.send(EventError, errorPayload{Message: runErr.Error()})
		return
	}

	log.Info("Chat complete",
		"tools", result.ToolsUsed,
		"events", len(result.Events),
		"iterations", result.Iterations,
		"incomplete", result.Incomplete)

	if err := live.flush(result.Events); err != nil {
		log.Debug("Client went away while streaming", "error", err)
		return
	}
	if err := writeReply(stream, conversationID, result); err != nil {
		log.Debug("Client went away while streaming", "error", err)
	}
}

// eventRelay writes agent events to the stream while the turn runs. A
// runner that never calls the observer gets its events written by flush.
type eventRelay struct {
	stream *sseWriter
	sent   int
	err    error
}

func (r *eventRelay) observe(ev agent.Event) {
	r.sent++
	if r.err != nil {
		return
	}
	r.err = writeEvent(r.stream, ev)
}

// flush writes the events the observer has not seen.
func (r *eventRelay) flush(events []agent.Event) error {
	if r.err != nil {
		return r.err
	}
	for ; r.sent < len(events); r.sent++ {
		if err := writeEvent(r.stream, events[r.sent]); err != nil {
			return err
		}
	}
	return nil
}

func writeEvent(stream *sseWriter, ev agent.Event) error {
	switch ev := ev.(type) {
	case agent.ToolRunning:
		return stream.send(EventToolUse, toolUsePayload{Tool: ev.Name, Status: ToolStatusRunning})
	case agent.ToolCompleted:
		return stream.send(EventToolUse, toolUsePayload{Tool: ev.Name, Status: ToolStatusCompleted})
	case agent.Artifact:
		return stream.sendRaw(EventChartArtifact, compactJSON(ev.Payload))
	default:
		return fmt.Errorf("unknown agent event %T", ev)
	}
}

func writeReply(stream *sseWriter, conversationID string, result *agent.Result) error {
	for _, word := range strings.Fields(result.Reply) {
		if err := stream.send(EventChunk, chunkPayload{Text: word + " "}); err != nil {
			return err
		}
	}

	reason := StopReasonEndTurn
	if result.Incomplete {
		reason = StopReasonMaxIterations
	}
	return stream.send(EventDone, donePayload{ConversationID: conversationID, StopReason: reason})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	if err := s.sessions.Delete(r.Context(), req.ConversationID); err != nil {
		slog.Error("Failed to reset conversation", "conversation_id", req.ConversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset conversation")
		return
	}
	s.recordSession(r, "reset")
	slog.Info("Conversation reset", "conversation_id", req.ConversationID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) recordSession(r *http.Request, event string) {
	s.obs.Recorder().RecordSessionEvent(r.Context(), s.cfg.SessionBackend, event)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// compactJSON strips insignificant whitespace so a payload fits on one
// data line.
func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return []byte("null")
	}
	return buf.Bytes()
}
