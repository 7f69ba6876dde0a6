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

// Command tally is a conversational assistant over a personal transaction
// ledger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/tally"
	"github.com/kadirpekel/tally/pkg/config"
)

type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP chat server."`
	Chat    ChatCmd    `cmd:"" help:"Chat with the assistant in the terminal."`
	Schema  SchemaCmd  `cmd:"" help:"Print the JSON Schema of the config file."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file (zero-config from environment when empty)." type:"path" env:"TALLY_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`

	cleanups []func()
}

func (cli *CLI) cleanup() {
	for i := len(cli.cleanups) - 1; i >= 0; i-- {
		cli.cleanups[i]()
	}
}

// loadConfig loads the configuration and applies its logger section unless
// flags or environment already chose.
func (cli *CLI) loadConfig(ctx context.Context, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	cfg, loader, err := config.LoadConfig(ctx, cli.Config, opts...)
	if err != nil {
		return nil, nil, err
	}
	if cli.Config == "" {
		slog.Debug("Using zero-config mode")
		return cfg, loader, nil
	}

	cleanup, err := applyLoggerConfig(cli, cfg.Logger)
	if err != nil {
		if loader != nil {
			_ = loader.Close()
		}
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cleanup != nil {
		cli.cleanups = append(cli.cleanups, cleanup)
	}
	slog.Info("Loaded configuration", "path", cli.Config)
	return cfg, loader, nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(tally.GetVersion().String())
	return nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("tally"),
		kong.Description("Ask questions about your spending."),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		cli.cleanups = append(cli.cleanups, cleanup)
	}

	err = ctx.Run(&cli)
	cli.cleanup()
	ctx.FatalIfErrorf(err)
}
