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
	"time"

	"github.com/kadirpekel/tally/pkg/session"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendSQL    = "sql"
)

// SessionConfig configures conversation history storage.
type SessionConfig struct {
	// Backend is "memory" or "sql".
	// Default: memory
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,description=History storage backend,enum=memory,enum=sql,default=memory"`

	// DatabaseURL for the sql backend.
	// Default: the ledger database
	DatabaseURL string `yaml:"database_url,omitempty" json:"database_url,omitempty" jsonschema:"title=Database URL,description=Database for the sql backend (defaults to the ledger database)"`

	// TTL evicts conversations idle for longer. A negative value keeps
	// them forever.
	// Default: 2h
	TTL time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty" jsonschema:"title=TTL,description=Idle conversation lifetime,type=string,default=2h"`
}

func (c *SessionConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = SessionBackendMemory
	}
	if c.TTL == 0 {
		c.TTL = session.DefaultTTL
	}
}

func (c *SessionConfig) Validate() error {
	switch c.Backend {
	case SessionBackendMemory:
	case SessionBackendSQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the sql backend")
		}
	default:
		return fmt.Errorf("invalid backend %q (valid: memory, sql)", c.Backend)
	}
	return nil
}

// IsSQL reports whether history is kept in a database.
func (c *SessionConfig) IsSQL() bool {
	return c.Backend == SessionBackendSQL
}
