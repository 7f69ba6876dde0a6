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

// Package session keeps conversation histories between turns.
//
// A conversation is identified by an opaque id and holds the full
// message history the agent needs to continue it. Stores are atomic per
// call; two turns of the same conversation running at once both load the
// same history and the later Save wins.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/tally/pkg/model"
)

// DefaultTTL is how long an untouched conversation is kept.
const DefaultTTL = 2 * time.Hour

// ErrNotFound is returned when a conversation does not exist or expired.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversation histories.
type Store interface {
	// GetOrCreate loads the history of id, creating an empty conversation
	// when it does not exist. An empty id creates a conversation with a
	// new id. The returned history is owned by the caller.
	GetOrCreate(ctx context.Context, id string) (string, model.History, error)

	// Save replaces the history of an existing conversation.
	Save(ctx context.Context, id string, history model.History) error

	// Delete removes a conversation. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

func defaultOptions() options {
	return options{ttl: DefaultTTL, now: time.Now}
}

// WithTTL sets how long an untouched conversation is kept. Zero or less
// keeps conversations forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func (o options) expired(lastAccessed, now time.Time) bool {
	return o.ttl > 0 && now.Sub(lastAccessed) >= o.ttl
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
