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
	"fmt"
	"io"
	"os"

	"github.com/kadirpekel/tally/pkg/config"
	"github.com/kadirpekel/tally/pkg/logger"
)

const (
	LogFileEnvVar   = "LOG_FILE"
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"
)

// initLogger initializes the logger.
// Priority: CLI flags > env vars > defaults
func initLogger(level, file, format string) (func(), error) {
	cfg := config.LoggerConfig{
		Level:  firstNonEmpty(level, os.Getenv(LogLevelEnvVar)),
		File:   firstNonEmpty(file, os.Getenv(LogFileEnvVar)),
		Format: firstNonEmpty(format, os.Getenv(LogFormatEnvVar)),
	}
	cfg.SetDefaults()
	return applyLogger(cfg)
}

// applyLoggerConfig re-initializes the logger from a config file's logger
// section for every field not fixed by flags or environment.
func applyLoggerConfig(cli *CLI, cfg config.LoggerConfig) (func(), error) {
	merged := config.LoggerConfig{
		Level:  firstNonEmpty(cli.LogLevel, os.Getenv(LogLevelEnvVar), cfg.Level),
		File:   firstNonEmpty(cli.LogFile, os.Getenv(LogFileEnvVar), cfg.File),
		Format: firstNonEmpty(cli.LogFormat, os.Getenv(LogFormatEnvVar), cfg.Format),
	}
	merged.SetDefaults()
	return applyLogger(merged)
}

func applyLogger(cfg config.LoggerConfig) (func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer = os.Stderr
	var cleanup func()
	if cfg.File != "" {
		file, closeFile, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(level, output, cfg.Format)
	return cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
