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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/tally/pkg/agent"
	"github.com/kadirpekel/tally/pkg/config"
	"github.com/kadirpekel/tally/pkg/model/anthropic"
	"github.com/kadirpekel/tally/pkg/observability"
	"github.com/kadirpekel/tally/pkg/session"
	"github.com/kadirpekel/tally/pkg/sqldb"
	"github.com/kadirpekel/tally/pkg/tool"
	"github.com/kadirpekel/tally/pkg/tool/ledgertool"
)

// app holds the long-lived components shared by every command.
type app struct {
	cfg      *config.Config
	obs      *observability.Manager
	dbs      *sqldb.Pool
	ledger   *ledgertool.Ledger
	tools    *tool.Registry
	sessions session.Store
	agent    *agent.Agent
}

func newApp(ctx context.Context, cfg *config.Config, withSessions bool) (_ *app, err error) {
	a := &app{cfg: cfg, dbs: sqldb.NewPool()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.obs = observability.NewManager(cfg.Observability)
	if err := a.obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	ledgerDB, dialect, err := a.dbs.Get(ctx, cfg.Ledger.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	a.ledger = ledgertool.New(ledgerDB, dialect, ledgertool.WithCurrency(cfg.Ledger.Currency))

	a.tools, err = a.ledger.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	if withSessions {
		a.sessions, err = a.newSessionStore(ctx, cfg.Session)
		if err != nil {
			return nil, err
		}
	}

	a.agent, err = a.buildAgent(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// buildAgent creates an agent for cfg over the already opened ledger.
func (a *app) buildAgent(ctx context.Context, cfg *config.Config) (*agent.Agent, error) {
	client, err := anthropic.New(cfg.LLM.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	prompt := cfg.Agent.SystemPrompt
	if prompt == "" {
		prompt, err = a.ledger.SystemPrompt(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build system prompt: %w", err)
		}
	}

	ag, err := agent.New(client, a.tools, agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		SystemPrompt:  prompt,
		Stream:        cfg.LLM.IsStreamEnabled(),
	},
		agent.WithTracer(a.obs.Tracer()),
		agent.WithMetrics(a.obs.Recorder()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	slog.Debug("Agent ready",
		"model", client.Model(),
		"tools", a.tools.Names(),
		"max_iterations", ag.MaxIterations(),
		"stream", cfg.LLM.IsStreamEnabled())
	return ag, nil
}

func (a *app) newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	if !cfg.IsSQL() {
		return session.NewMemoryStore(session.WithTTL(cfg.TTL)), nil
	}

	db, dialect, err := a.dbs.Get(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	store, err := session.NewSQLStore(db, dialect, session.WithTTL(cfg.TTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	return store, nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	errs = append(errs, a.dbs.Close())
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
