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
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/tally/pkg/model"
)

type memoryEntry struct {
	history      model.History
	createdAt    time.Time
	lastAccessed time.Time
}

// MemoryStore keeps conversations in process memory. Expired entries are
// evicted whenever a conversation is opened.
type MemoryStore struct {
	opts options

	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:    o,
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (string, model.History, error) {
	id = newID(id)
	now := s.opts.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(now)

	if entry, ok := s.entries[id]; ok {
		entry.lastAccessed = now
		return id, entry.history.Clone(), nil
	}

	s.entries[id] = &memoryEntry{
		history:      model.History{},
		createdAt:    now,
		lastAccessed: now,
	}
	return id, model.History{}, nil
}

func (s *MemoryStore) Save(ctx context.Context, id string, history model.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	entry.history = history.Clone()
	entry.lastAccessed = s.opts.now()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Len returns the number of live conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	return nil
}

// evictExpired must be called with the write lock held.
func (s *MemoryStore) evictExpired(now time.Time) {
	for id, entry := range s.entries {
		if s.opts.expired(entry.lastAccessed, now) {
			delete(s.entries, id)
			slog.Debug("Evicted expired conversation", "conversation_id", id)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
