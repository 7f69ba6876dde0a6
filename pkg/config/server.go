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
	"net"
	"os"
	"time"
)

const (
	// AddressEnv is read when no address is configured.
	AddressEnv = "BIND_ADDRESS"

	DefaultAddress         = "127.0.0.1:3000"
	DefaultShutdownTimeout = 10 * time.Second
)

// ServerConfig configures the HTTP chat server.
type ServerConfig struct {
	// Address is the host:port to listen on.
	// Default: $BIND_ADDRESS, then 127.0.0.1:3000
	Address string `yaml:"address,omitempty" json:"address,omitempty" jsonschema:"title=Address,description=Listen address (host:port),default=127.0.0.1:3000"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" jsonschema:"title=Shutdown Timeout,description=Graceful shutdown limit,type=string,default=10s"`

	// CORSOrigins lists allowed browser origins. Empty disables CORS headers.
	CORSOrigins []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty" jsonschema:"title=CORS Origins,description=Allowed browser origins (* for any)"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = envOr(AddressEnv, DefaultAddress)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func (c *ServerConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", c.Address, err)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative, got %s", c.ShutdownTimeout)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
