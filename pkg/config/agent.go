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

package config

import (
	"fmt"

	"github.com/kadirpekel/tally/pkg/agent"
)

// AgentConfig configures tool orchestration.
type AgentConfig struct {
	// MaxIterations caps the completion calls of one turn.
	// Default: 10
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty" jsonschema:"title=Max Iterations,description=Completion calls allowed per turn,minimum=1,default=10"`

	// SystemPrompt replaces the prompt generated from the ledger.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty" jsonschema:"title=System Prompt,description=Overrides the generated ledger prompt"`
}

func (c *AgentConfig) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = agent.DefaultMaxIterations
	}
}

func (c *AgentConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	return nil
}
