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

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/tally/pkg/model"
	"github.com/kadirpekel/tally/pkg/sqldb"
)

const createConversationsSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    history_json TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`

const createConversationsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at)`

// SQLStore keeps conversations in a SQL database. Timestamps are stored as
// unix milliseconds so every dialect compares them the same way. Expired
// rows are deleted whenever a conversation is opened.
type SQLStore struct {
	db      *sql.DB
	dialect sqldb.Dialect
	opts    options
}

// NewSQLStore creates a store over db and initializes its schema.
func NewSQLStore(db *sql.DB, dialect sqldb.Dialect, opts ...Option) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if _, err := sqldb.ParseDialect(string(dialect)); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &SQLStore{db: db, dialect: dialect, opts: o}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{createConversationsSchemaSQL}
	// MySQL has no CREATE INDEX IF NOT EXISTS.
	if s.dialect != sqldb.MySQL {
		statements = append(statements, createConversationsIndexSQL)
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) GetOrCreate(ctx context.Context, id string) (string, model.History, error) {
	id = newID(id)
	now := s.opts.now()

	if err := s.deleteExpired(ctx, now); err != nil {
		return "", nil, err
	}

	var historyJSON string
	err := s.db.QueryRowContext(ctx,
		s.dialect.Rebind(`SELECT history_json FROM conversations WHERE id = ?`), id,
	).Scan(&historyJSON)

	switch {
	case err == nil:
		history, err := decodeHistory(historyJSON)
		if err != nil {
			return "", nil, fmt.Errorf("conversation %s: %w", id, err)
		}
		if _, err := s.db.ExecContext(ctx,
			s.dialect.Rebind(`UPDATE conversations SET updated_at = ? WHERE id = ?`),
			now.UnixMilli(), id,
		); err != nil {
			return "", nil, fmt.Errorf("failed to touch conversation: %w", err)
		}
		return id, history, nil

	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, s.insertQuery(), id, "[]", now.UnixMilli(), now.UnixMilli()); err != nil {
			return "", nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return id, model.History{}, nil

	default:
		return "", nil, fmt.Errorf("failed to load conversation: %w", err)
	}
}

func (s *SQLStore) Save(ctx context.Context, id string, history model.History) error {
	if history == nil {
		history = model.History{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		s.dialect.Rebind(`UPDATE conversations SET history_json = ?, updated_at = ? WHERE id = ?`),
		string(data), s.opts.now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	if n == 0 {
		// Some drivers count changed rather than matched rows.
		exists, err := s.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (s *SQLStore) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.dialect.Rebind(`SELECT 1 FROM conversations WHERE id = ?`), id,
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to look up conversation: %w", err)
	}
	return true, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		s.dialect.Rebind(`DELETE FROM conversations WHERE id = ?`), id,
	); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Close is a no-op; the database belongs to the caller.
func (s *SQLStore) Close() error {
	return nil
}

func (s *SQLStore) deleteExpired(ctx context.Context, now time.Time) error {
	if s.opts.ttl <= 0 {
		return nil
	}

	cutoff := now.Add(-s.opts.ttl).UnixMilli()
	result, err := s.db.ExecContext(ctx,
		s.dialect.Rebind(`DELETE FROM conversations WHERE updated_at <= ?`), cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to evict expired conversations: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		slog.Debug("Evicted expired conversations", "count", n)
	}
	return nil
}

// insertQuery ignores a row that a concurrent GetOrCreate inserted first.
func (s *SQLStore) insertQuery() string {
	switch s.dialect {
	case sqldb.Postgres:
		return `INSERT INTO conversations (id, history_json, created_at, updated_at)
VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`
	case sqldb.MySQL:
		return `INSERT IGNORE INTO conversations (id, history_json, created_at, updated_at)
VALUES (?, ?, ?, ?)`
	default:
		return `INSERT OR IGNORE INTO conversations (id, history_json, created_at, updated_at)
VALUES (?, ?, ?, ?)`
	}
}

func decodeHistory(data string) (model.History, error) {
	var history model.History
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if history == nil {
		history = model.History{}
	}
	return history, nil
}

var _ Store = (*SQLStore)(nil)
