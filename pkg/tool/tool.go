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

// Package tool defines the executor the agent loop calls tools through.
//
// A Tool receives the raw JSON input the model produced and returns an
// Output: a textual summary that goes back to the model, plus optional
// artifacts that are surfaced to the user verbatim and never inspected.
//
// # Creating Tools
//
// Typed tools are built with NewFunc, which derives the input schema from
// the argument struct and decodes the model's input into it:
//
//	type Args struct {
//	    Year int `json:"year,omitempty" jsonschema:"description=Four digit year"`
//	}
//
//	t, err := tool.NewFunc(tool.Config{Name: "by_year", Description: "..."},
//	    func(ctx context.Context, args Args) (*tool.Output, error) { ... })
//
// Tools are grouped in a Registry, which implements Executor.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kadirpekel/tally/pkg/model"
)

// Output is the result of one successful tool invocation.
type Output struct {
	// Summary is returned to the model as the tool result content.
	Summary string

	// Artifacts are side outputs (for example chart specifications), in
	// the order the tool produced them.
	Artifacts []json.RawMessage
}

// Tool is one capability the model can invoke by name.
type Tool interface {
	Name() string
	Description() string

	// Schema returns the JSON schema of the input object.
	Schema() json.RawMessage

	// Call executes the tool. input may be JSON null.
	Call(ctx context.Context, input json.RawMessage) (*Output, error)
}

// Executor runs tools on behalf of the agent loop.
type Executor interface {
	// Definitions returns the tools offered to the model, in a stable order.
	Definitions() []model.ToolDefinition

	// Run invokes the named tool. Failures are reported as *Error.
	Run(ctx context.Context, name string, input json.RawMessage) (*Output, error)
}

// ErrorKind classifies a tool failure.
type ErrorKind int

const (
	KindExecution ErrorKind = iota
	KindUnknownTool
	KindInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnknownTool:
		return "unknown_tool"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "execution"
	}
}

// Error is a failed tool invocation. It is local to one call: the agent
// turns it into an error-flagged tool result.
type Error struct {
	Kind ErrorKind
	Tool string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownTool:
		return fmt.Sprintf("unknown tool %q", e.Tool)
	case KindInvalidInput:
		return fmt.Sprintf("invalid input for %s: %v", e.Tool, e.Err)
	default:
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidInput marks err as caused by the model's input rather than by
// the tool itself.
func InvalidInput(err error) error {
	return &Error{Kind: KindInvalidInput, Err: err}
}

// KindOf returns the kind of a tool failure. Errors that are not *Error
// count as execution failures.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindExecution
}
