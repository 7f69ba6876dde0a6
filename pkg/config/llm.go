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
	"os"
	"time"

	"github.com/kadirpekel/tally/pkg/model/anthropic"
)

// APIKeyEnv is read when no api_key is configured.
const APIKeyEnv = "ANTHROPIC_API_KEY"

// LLMConfig configures the Anthropic completion client.
type LLMConfig struct {
	// APIKey for authentication. Supports ${VAR} expansion.
	// Default: $ANTHROPIC_API_KEY
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// Model name.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier,default=claude-sonnet-4-20250514"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for API endpoint"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=1024"`

	// Stream selects the streamed transport for completion calls.
	// Default: true
	Stream *bool `yaml:"stream,omitempty" json:"stream,omitempty" jsonschema:"title=Stream,description=Use the streamed completion transport,default=true"`

	// Timeout bounds one completion call, stream included.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-call timeout (e.g. 2m),type=string"`

	// MaxRetries retries rate-limited and overloaded responses.
	// Default: 0 (no retries)
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retries for retryable HTTP statuses,minimum=0,default=0"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(APIKeyEnv)
	}
	if c.Model == "" {
		c.Model = anthropic.DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = anthropic.DefaultMaxTokens
	}
	if c.Stream == nil {
		stream := true
		c.Stream = &stream
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set %s)", APIKeyEnv)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", c.MaxTokens)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// IsStreamEnabled reports whether completions use the streamed transport.
func (c *LLMConfig) IsStreamEnabled() bool {
	return c.Stream == nil || *c.Stream
}

// ClientConfig converts to the client's configuration.
func (c *LLMConfig) ClientConfig() anthropic.Config {
	return anthropic.Config{
		APIKey:     c.APIKey,
		Model:      c.Model,
		MaxTokens:  c.MaxTokens,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
	}
}
