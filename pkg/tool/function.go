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

package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Config names and describes a function tool.
type Config struct {
	// Name is the unique identifier for this tool (required).
	Name string

	// Description is shown to the model to help it decide when to use
	// the tool (required).
	Description string
}

// Validator is implemented by argument structs that need checks beyond
// what schema tags express.
type Validator interface {
	Validate() error
}

// NewFunc creates a Tool from a typed function. The input schema is
// generated from Args (json and jsonschema struct tags); the model's input
// is decoded into Args before fn runs.
func NewFunc[Args any](cfg Config, fn func(context.Context, Args) (*Output, error)) (Tool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if cfg.Description == "" {
		return nil, fmt.Errorf("tool description is required")
	}

	schema, required, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", cfg.Name, err)
	}

	return &funcTool[Args]{
		config:   cfg,
		fn:       fn,
		schema:   schema,
		required: required,
	}, nil
}

type funcTool[Args any] struct {
	config   Config
	fn       func(context.Context, Args) (*Output, error)
	schema   json.RawMessage
	required []string
}

func (t *funcTool[Args]) Name() string            { return t.config.Name }
func (t *funcTool[Args]) Description() string     { return t.config.Description }
func (t *funcTool[Args]) Schema() json.RawMessage { return t.schema }

func (t *funcTool[Args]) Call(ctx context.Context, input json.RawMessage) (*Output, error) {
	args, err := t.decode(input)
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Tool: t.config.Name, Err: err}
	}

	if v, ok := any(&args).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &Error{Kind: KindInvalidInput, Tool: t.config.Name, Err: err}
		}
	}

	return t.fn(ctx, args)
}

// decode converts the raw input into Args. JSON null and an empty input
// decode as an empty object.
func (t *funcTool[Args]) decode(input json.RawMessage) (Args, error) {
	var args Args

	raw := map[string]any{}
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return args, fmt.Errorf("input must be a JSON object: %w", err)
		}
	}

	for _, key := range t.required {
		if v, ok := raw[key]; !ok || v == nil {
			return args, fmt.Errorf("missing required field %q", key)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &args,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return args, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return args, err
	}
	return args, nil
}
