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

	"github.com/kadirpekel/tally/pkg/sqldb"
	"github.com/kadirpekel/tally/pkg/tool/ledgertool"
)

const (
	// DatabaseURLEnv is read when no database_url is configured.
	DatabaseURLEnv = "DATABASE_URL"

	DefaultDatabaseURL = "data/budget.db"
)

// LedgerConfig locates the transaction database.
type LedgerConfig struct {
	// DatabaseURL is a postgres://, mysql:// or sqlite:// URL. A bare path
	// is a SQLite file.
	// Default: $DATABASE_URL, then data/budget.db
	DatabaseURL string `yaml:"database_url,omitempty" json:"database_url,omitempty" jsonschema:"title=Database URL,description=Transaction database URL or SQLite path,default=data/budget.db"`

	// Currency labels amounts in summaries and charts.
	// Default: CHF
	Currency string `yaml:"currency,omitempty" json:"currency,omitempty" jsonschema:"title=Currency,description=Currency label for amounts,default=CHF"`
}

func (c *LedgerConfig) SetDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = envOr(DatabaseURLEnv, DefaultDatabaseURL)
	}
	if c.Currency == "" {
		c.Currency = ledgertool.DefaultCurrency
	}
}

func (c *LedgerConfig) Validate() error {
	if _, dsn := sqldb.ParseURL(c.DatabaseURL); dsn == "" {
		return fmt.Errorf("database_url is required")
	}
	return nil
}
