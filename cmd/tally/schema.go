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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/tally/pkg/config"
)

// SchemaCmd prints the JSON Schema of the config file to stdout.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	return writeSchema(os.Stdout, c.Compact)
}

func configSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "tally configuration"
	schema.Description = "Configuration file for the tally budget assistant"
	schema.Examples = []any{
		map[string]any{
			"llm": map[string]any{
				"api_key": "${ANTHROPIC_API_KEY}",
				"model":   "claude-sonnet-4-20250514",
			},
			"ledger": map[string]any{
				"database_url": "data/budget.db",
			},
			"server": map[string]any{
				"address": "127.0.0.1:3000",
			},
		},
	}
	return schema
}

func writeSchema(w io.Writer, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(configSchema()); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
