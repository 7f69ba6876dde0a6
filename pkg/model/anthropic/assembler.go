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

package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/tally/pkg/model"
)

var jsonNull = json.RawMessage("null")

// pendingTool is a tool_use block whose input is still arriving.
type pendingTool struct {
	id    string
	name  string
	input bytes.Buffer
}

// Assembler folds an ordered sequence of stream events into a Completion
// and a side list of notifications. It is single-use and not safe for
// concurrent use.
type Assembler struct {
	blocks        []model.ContentBlock
	current       *pendingTool
	notifications []model.Notification

	stopReason      *string
	deltaStopReason *string
	done            bool
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Apply folds one event. ErrToolAlreadyOpen and ErrUnknownEvent leave the
// assembler unchanged and are recoverable; a *ProtocolError (for an
// in-stream error event) is not.
func (a *Assembler) Apply(ev model.StreamEvent) error {
	switch e := ev.(type) {
	case model.BlockStart:
		if e.Kind != model.BlockKindToolUse {
			return nil
		}
		if a.current != nil {
			slog.Warn("Tool block started while another is open",
				"open_id", a.current.id, "new_id", e.ID, "new_name", e.Name)
			return ErrToolAlreadyOpen
		}
		a.current = &pendingTool{id: e.ID, name: e.Name}

	case model.TextDelta:
		a.appendText(e.Text)
		a.notifications = append(a.notifications, model.TextNotification{Text: e.Text})

	case model.InputFragment:
		if a.current == nil {
			slog.Debug("Dropping input fragment with no open tool block", "index", e.Index)
			return nil
		}
		a.current.input.WriteString(e.Partial)

	case model.BlockStop:
		if a.current == nil {
			return nil
		}
		call := model.ToolCall{
			ID:    a.current.id,
			Name:  a.current.name,
			Input: parseInput(a.current.input.Bytes()),
		}
		a.current = nil
		a.blocks = append(a.blocks, model.ToolUseBlock{ToolCall: call})
		a.notifications = append(a.notifications, model.ToolUseNotification{ToolCall: call})

	case model.MessageDelta:
		if e.StopReason != nil {
			a.deltaStopReason = e.StopReason
		}

	case model.MessageStop:
		a.stopReason = e.StopReason
		if a.stopReason == nil {
			a.stopReason = a.deltaStopReason
		}
		a.done = true
		a.notifications = append(a.notifications, model.DoneNotification{StopReason: a.stopReason})

	case model.StreamError:
		return &ProtocolError{
			Body:      string(e.Raw),
			ErrorType: e.ErrorType,
			Message:   e.Message,
		}

	case model.MessageStart, model.Ping:

	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return nil
}

func (a *Assembler) appendText(text string) {
	if n := len(a.blocks); n > 0 {
		if last, ok := a.blocks[n-1].(model.TextBlock); ok {
			last.Text += text
			a.blocks[n-1] = last
			return
		}
	}
	a.blocks = append(a.blocks, model.TextBlock{Text: text})
}

// parseInput parses an accumulated tool input. Empty or malformed input
// becomes JSON null.
func parseInput(buf []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(buf)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		if len(trimmed) > 0 {
			slog.Debug("Tool input is not valid JSON, storing null", "bytes", len(trimmed))
		}
		return jsonNull
	}
	return json.RawMessage(append([]byte(nil), trimmed...))
}

// Notifications returns every notification produced so far, in order.
func (a *Assembler) Notifications() []model.Notification {
	return a.notifications
}

// Done reports whether a message_stop has been applied.
func (a *Assembler) Done() bool {
	return a.done
}

// Completion returns the assembled result. A tool block still open is not
// included.
func (a *Assembler) Completion() *model.Completion {
	if a.current != nil {
		slog.Debug("Discarding unterminated tool block", "id", a.current.id, "name", a.current.name)
	}
	stop := a.stopReason
	if stop == nil {
		stop = a.deltaStopReason
	}
	blocks := make([]model.ContentBlock, len(a.blocks))
	copy(blocks, a.blocks)
	return &model.Completion{Content: blocks, StopReason: stop}
}
