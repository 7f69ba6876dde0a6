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
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/tally/pkg/config"
	"github.com/kadirpekel/tally/pkg/server"
)

type ServeCmd struct {
	Address string `help:"Listen address (host:port); overrides config and BIND_ADDRESS." placeholder:"HOST:PORT"`
	Watch   bool   `help:"Reload the agent when the config file changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *server.Server
	var a *app

	reload := func(cfg *config.Config) {
		if srv == nil || a == nil {
			return
		}
		ag, err := a.buildAgent(ctx, cfg)
		if err != nil {
			slog.Error("Keeping previous agent, reloaded config is unusable", "error", err)
			return
		}
		srv.SetRunner(ag)
		slog.Info("Agent reloaded; server, ledger and session changes apply on restart")
	}

	cfg, loader, err := cli.loadConfig(ctx, config.WithOnChange(reload))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Address != "" {
		cfg.Server.Address = c.Address
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("--address: %w", err)
		}
	}

	a, err = newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			slog.Warn("Shutdown incomplete", "error", err)
		}
	}()

	srv, err = server.New(server.Config{
		Address:         cfg.Server.Address,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		SessionBackend:  cfg.Session.Backend,
	}, a.agent, a.sessions, server.WithObservability(a.obs))
	if err != nil {
		return err
	}

	printServeInfo(cfg, a)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if c.Watch {
		if loader == nil {
			slog.Warn("--watch needs --config; not watching")
		} else {
			g.Go(func() error {
				err := loader.Watch(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}

func printServeInfo(cfg *config.Config, a *app) {
	fmt.Printf("\ntally server ready\n")
	fmt.Printf("   Chat:     POST http://%s/api/chat\n", cfg.Server.Address)
	fmt.Printf("   Reset:    POST http://%s/api/chat/reset\n", cfg.Server.Address)
	fmt.Printf("   Health:   http://%s/health\n", cfg.Server.Address)
	if path := a.obs.MetricsPath(); path != "" {
		fmt.Printf("   Metrics:  http://%s%s\n", cfg.Server.Address, path)
	}
	if a.obs.Tracer().DebugExporter() != nil {
		fmt.Printf("   Spans:    http://%s/debug/spans\n", cfg.Server.Address)
	}
	if cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing:  %s (%s)\n", cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}
	fmt.Printf("   Model:    %s\n", cfg.LLM.Model)
	fmt.Printf("   Tools:    %d\n", len(a.tools.Names()))
	fmt.Printf("   Sessions: %s\n", cfg.Session.Backend)
	fmt.Println("\nPress Ctrl+C to stop")
}
