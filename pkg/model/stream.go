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

package model

// BlockKind is the kind of a content block opened on a stream.
type BlockKind string

const (
	BlockKindText    BlockKind = "text"
	BlockKindToolUse BlockKind = "tool_use"
)

// StreamEvent is one decoded payload of a streamed completion.
//
// The set of implementations is closed. Events that carry no content
// (MessageStart, Ping) are still modeled so that every recognized
// discriminator has a variant and unrecognized ones can fail explicitly.
type StreamEvent interface {
	streamEvent()
}

// MessageStart opens the message. It carries nothing the assembler needs.
type MessageStart struct{}

// BlockStart opens a content block at Index.
type BlockStart struct {
	Index int
	Kind  BlockKind

	// ID and Name are set for tool_use blocks.
	ID   string
	Name string
}

// TextDelta appends text to the block at Index.
type TextDelta struct {
	Index int
	Text  string
}

// InputFragment appends a piece of a tool call's JSON input.
type InputFragment struct {
	Index   int
	Partial string
}

// BlockStop closes the block at Index.
type BlockStop struct {
	Index int
}

// MessageDelta carries message-level updates, such as the stop reason.
type MessageDelta struct {
	StopReason *string
}

// MessageStop terminates the message.
type MessageStop struct {
	StopReason *string
}

// Ping is a keep-alive.
type Ping struct{}

// StreamError is an error reported by the provider inside a successful
// HTTP response.
type StreamError struct {
	ErrorType string
	Message   string
	Raw       []byte
}

func (MessageStart) streamEvent()  {}
func (BlockStart) streamEvent()    {}
func (TextDelta) streamEvent()     {}
func (InputFragment) streamEvent() {}
func (BlockStop) streamEvent()     {}
func (MessageDelta) streamEvent()  {}
func (MessageStop) streamEvent()   {}
func (Ping) streamEvent()          {}
func (StreamError) streamEvent()   {}

// Notification is the side sequence produced while assembling a stream,
// suitable for incremental display.
type Notification interface {
	notification()
}

// TextNotification mirrors one text delta.
type TextNotification struct {
	Text string
}

// ToolUseNotification announces a finished tool call.
type ToolUseNotification struct {
	ToolCall ToolCall
}

// DoneNotification marks the end of the message.
type DoneNotification struct {
	StopReason *string
}

func (TextNotification) notification()    {}
func (ToolUseNotification) notification() {}
func (DoneNotification) notification()    {}
