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
	"encoding/json"
	"fmt"

	"github.com/kadirpekel/tally/pkg/model"
)

// Stream payload discriminators.
const (
	eventMessageStart      = "message_start"
	eventContentBlockStart = "content_block_start"
	eventContentBlockDelta = "content_block_delta"
	eventContentBlockStop  = "content_block_stop"
	eventMessageDelta      = "message_delta"
	eventMessageStop       = "message_stop"
	eventPing              = "ping"
	eventError             = "error"

	deltaText      = "text_delta"
	deltaInputJSON = "input_json_delta"
)

type streamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock *streamBlock    `json:"content_block,omitempty"`
	Delta        *streamDelta    `json:"delta,omitempty"`
	StopReason   *string         `json:"stop_reason,omitempty"`
	Error        *apiError       `json:"error,omitempty"`
	Message      json.RawMessage `json:"message,omitempty"`
}

type streamBlock struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type streamDelta struct {
	Type        string  `json:"type"`
	Text        string  `json:"text,omitempty"`
	PartialJSON string  `json:"partial_json,omitempty"`
	StopReason  *string `json:"stop_reason,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ParseEvent decodes one frame payload into a StreamEvent by its type
// discriminator. Payloads with an unmodeled type return ErrUnknownEvent.
func ParseEvent(payload []byte) (model.StreamEvent, error) {
	var ev streamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode stream event: %w", err)
	}

	switch ev.Type {
	case eventMessageStart:
		return model.MessageStart{}, nil

	case eventContentBlockStart:
		if ev.ContentBlock == nil {
			return nil, fmt.Errorf("%s without content_block", ev.Type)
		}
		return model.BlockStart{
			Index: ev.Index,
			Kind:  model.BlockKind(ev.ContentBlock.Type),
			ID:    ev.ContentBlock.ID,
			Name:  ev.ContentBlock.Name,
		}, nil

	case eventContentBlockDelta:
		if ev.Delta == nil {
			return nil, fmt.Errorf("%s without delta", ev.Type)
		}
		switch ev.Delta.Type {
		case deltaText:
			return model.TextDelta{Index: ev.Index, Text: ev.Delta.Text}, nil
		case deltaInputJSON:
			return model.InputFragment{Index: ev.Index, Partial: ev.Delta.PartialJSON}, nil
		default:
			return nil, fmt.Errorf("%w: delta type %q", ErrUnknownEvent, ev.Delta.Type)
		}

	case eventContentBlockStop:
		return model.BlockStop{Index: ev.Index}, nil

	case eventMessageDelta:
		var stop *string
		if ev.Delta != nil {
			stop = ev.Delta.StopReason
		}
		return model.MessageDelta{StopReason: stop}, nil

	case eventMessageStop:
		return model.MessageStop{StopReason: ev.StopReason}, nil

	case eventPing:
		return model.Ping{}, nil

	case eventError:
		se := model.StreamError{Raw: append([]byte(nil), payload...)}
		if ev.Error != nil {
			se.ErrorType = ev.Error.Type
			se.Message = ev.Error.Message
		}
		return se, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}
