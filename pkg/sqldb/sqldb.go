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

// Package sqldb opens SQL databases for the supported dialects and
// adapts portable queries to each of them.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies a supported SQL database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

const pingTimeout = 10 * time.Second

// ParseDialect normalizes a dialect or driver name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", name)
	}
}

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite3"
	}
	return string(d)
}

// Rebind converts ? placeholders to the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ParseURL derives the dialect and driver DSN from a database URL.
// Anything without a recognized scheme is taken as a SQLite file path.
func ParseURL(url string) (Dialect, string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres, url
	case strings.HasPrefix(url, "mysql://"):
		return MySQL, strings.TrimPrefix(url, "mysql://")
	case strings.HasPrefix(url, "sqlite3://"):
		return SQLite, strings.TrimPrefix(url, "sqlite3://")
	case strings.HasPrefix(url, "sqlite://"):
		return SQLite, strings.TrimPrefix(url, "sqlite://")
	default:
		return SQLite, url
	}
}

// Open opens and pings a database.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: dsn is required", dialect)
	}

	var db *sql.DB
	if dialect == MySQL {
		cfg, err := mysqlConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
		}
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		db, err = sql.Open(dialect.DriverName(), dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
		}
	}

	// SQLite serializes writers; one connection also keeps an in-memory
	// database alive across calls.
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	return db, nil
}

// mysqlConfig parses a MySQL DSN. Affected-row counts report matched rows,
// like the other dialects, so an UPDATE that changes nothing still counts.
func mysqlConfig(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ClientFoundRows = true
	return cfg, nil
}
