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

// Package config loads tally's configuration.
//
// Configuration is read from a YAML (or JSON) file, with ${VAR} and
// ${VAR:-default} references expanded from the environment. Without a
// file, every section falls back to its defaults and the environment
// variables the service has always honored (ANTHROPIC_API_KEY,
// BIND_ADDRESS, DATABASE_URL).
//
// Example:
//
//	llm:
//	  api_key: ${ANTHROPIC_API_KEY}
//	  model: claude-sonnet-4-20250514
//	agent:
//	  max_iterations: 10
//	server:
//	  address: 127.0.0.1:3000
//	ledger:
//	  database_url: data/budget.db
//	session:
//	  backend: memory
package config

import (
	"fmt"

	"github.com/kadirpekel/tally/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	LLM           LLMConfig            `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Completion provider settings"`
	Agent         AgentConfig          `yaml:"agent,omitempty" json:"agent,omitempty" jsonschema:"title=Agent,description=Tool orchestration settings"`
	Server        ServerConfig         `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=HTTP chat server settings"`
	Ledger        LedgerConfig         `yaml:"ledger,omitempty" json:"ledger,omitempty" jsonschema:"title=Ledger,description=Transaction database queried by the tools"`
	Session       SessionConfig        `yaml:"session,omitempty" json:"session,omitempty" jsonschema:"title=Session,description=Conversation history storage"`
	Logger        LoggerConfig         `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger,description=Logging settings"`
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Tracing and metrics"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Agent.SetDefaults()
	c.Server.SetDefaults()
	c.Ledger.SetDefaults()
	c.Session.SetDefaults()
	if c.Session.IsSQL() && c.Session.DatabaseURL == "" {
		c.Session.DatabaseURL = c.Ledger.DatabaseURL
	}
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	validators := []struct {
		name     string
		validate func() error
	}{
		{"llm", c.LLM.Validate},
		{"agent", c.Agent.Validate},
		{"server", c.Server.Validate},
		{"ledger", c.Ledger.Validate},
		{"session", c.Session.Validate},
		{"logger", c.Logger.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, v := range validators {
		if err := v.validate(); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	return nil
}

// Default returns the zero-config configuration, with defaults applied.
// It is not validated.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
