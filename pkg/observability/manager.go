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

package observability

import (
	"context"
	"errors"
	"sync"
)

// Manager owns the tracer and metrics for the lifetime of a process.
type Manager struct {
	config Config

	mu      sync.RWMutex
	tracer  *Tracer
	metrics *Metrics
}

func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// NoopManager returns a Manager with tracing and metrics disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// Initialize creates the tracer and metrics enabled by the configuration.
func (m *Manager) Initialize(ctx context.Context, opts ...TracerOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tracer, err := NewTracer(ctx, m.config.Tracing, opts...)
	if err != nil {
		return err
	}
	m.tracer = tracer

	metrics, err := NewMetrics(m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics

	return nil
}

// Tracer returns the tracer, or nil when tracing is disabled.
func (m *Manager) Tracer() *Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracer
}

// Metrics returns the metrics, or nil when metrics are disabled.
func (m *Manager) Metrics() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Recorder returns the metrics as a Recorder, never nil.
func (m *Manager) Recorder() Recorder {
	if metrics := m.Metrics(); metrics != nil {
		return metrics
	}
	return NoopMetrics{}
}

// MetricsPath returns where metrics are served, or "" when disabled.
func (m *Manager) MetricsPath() string {
	if m.Metrics() == nil {
		return ""
	}
	cfg := m.config.Metrics
	cfg.SetDefaults()
	return cfg.Endpoint
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return errors.Join(m.tracer.Shutdown(ctx), m.metrics.Shutdown(ctx))
}
