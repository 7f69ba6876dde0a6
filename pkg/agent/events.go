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

package agent

import "encoding/json"

// Event is produced while a turn runs. The set of implementations is
// closed: ToolRunning, ToolCompleted and Artifact.
//
// For every tool call, ToolRunning comes first and ToolCompleted last,
// whether or not the call succeeded. Artifacts of a successful call sit
// between the two.
type Event interface {
	event()
}

// ToolRunning announces that a tool is about to be invoked.
type ToolRunning struct {
	Name string
}

// ToolCompleted announces that a tool invocation finished.
type ToolCompleted struct {
	Name string
}

// Artifact carries a tool's side output verbatim, such as a chart
// specification.
type Artifact struct {
	Payload json.RawMessage
}

func (ToolRunning) event()   {}
func (ToolCompleted) event() {}
func (Artifact) event()      {}

// Observer is called synchronously for each event.
type Observer func(Event)

func chain(first, second Observer) Observer {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(ev Event) {
		first(ev)
		second(ev)
	}
}
