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

package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Pool shares one *sql.DB per database URL, so components pointed at the
// same SQLite file use the same single connection.
type Pool struct {
	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewPool() *Pool {
	return &Pool{dbs: make(map[string]*sql.DB)}
}

// Get returns the database for url, opening it on first use.
func (p *Pool) Get(ctx context.Context, url string) (*sql.DB, Dialect, error) {
	dialect, dsn := ParseURL(url)

	p.mu.Lock()
	defer p.mu.Unlock()

	key := string(dialect) + "|" + dsn
	if db, ok := p.dbs[key]; ok {
		return db, dialect, nil
	}

	db, err := Open(ctx, dialect, dsn)
	if err != nil {
		return nil, "", err
	}
	p.dbs[key] = db
	return db, dialect, nil
}

// Len returns the number of open databases.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dbs)
}

// Close closes every database.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for key, db := range p.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", key, err))
		}
	}
	p.dbs = make(map[string]*sql.DB)
	return errors.Join(errs...)
}
