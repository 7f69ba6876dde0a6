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

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceDelay  = 100 * time.Millisecond
	rewatchPeriod  = 500 * time.Millisecond
	rewatchAttempt = 10
)

// FileProvider loads config from a local file and watches for changes.
type FileProvider struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewFileProvider creates a provider that reads from a local file.
func NewFileProvider(path string) (*FileProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	return &FileProvider{path: absPath}, nil
}

func (p *FileProvider) Type() Type {
	return TypeFile
}

// Path returns the absolute path of the config file.
func (p *FileProvider) Path() string {
	return p.path
}

func (p *FileProvider) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", p.path, err)
	}
	return data, nil
}

// Watch watches the directory holding the file, since editors often
// replace a file rather than write to it. Bursts of events are coalesced.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}
	if p.watcher != nil {
		return nil, fmt.Errorf("already watching %s", p.path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	configDir := filepath.Dir(p.path)
	if err := watcher.Add(configDir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", configDir, err)
	}
	p.watcher = watcher

	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, watcher, filepath.Base(p.path), ch)

	slog.Info("Watching config file", "path", p.path)
	return ch, nil
}

func (p *FileProvider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, configFile string, ch chan struct{}) {
	var wg sync.WaitGroup
	debounce := time.NewTimer(debounceDelay)
	debounce.Stop()

	defer func() {
		debounce.Stop()
		wg.Wait()
		close(ch)
	}()

	notify := func() {
		select {
		case ch <- struct{}{}:
		default:
			// a change is already pending
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-debounce.C:
			slog.Debug("Config file changed", "path", p.path)
			notify()

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				debounce.Reset(debounceDelay)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				slog.Warn("Config file was removed", "path", p.path)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if p.rewatch(ctx, watcher) {
						notify()
					}
				}()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// rewatch waits for the file to reappear and re-adds the directory watch.
func (p *FileProvider) rewatch(ctx context.Context, watcher *fsnotify.Watcher) bool {
	ticker := time.NewTicker(rewatchPeriod)
	defer ticker.Stop()

	for i := 0; i < rewatchAttempt; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if _, err := os.Stat(p.path); err != nil {
				continue
			}
			if err := watcher.Add(filepath.Dir(p.path)); err == nil {
				slog.Info("Re-established watch on config file", "path", p.path)
				return true
			}
		}
	}
	slog.Warn("Failed to re-establish watch on config file", "path", p.path)
	return false
}

// Close stops watching and releases resources.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		return err
	}
	return nil
}

var _ Provider = (*FileProvider)(nil)
