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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/kadirpekel/tally/pkg/agent"
	"github.com/kadirpekel/tally/pkg/model"
)

type ChatCmd struct {
	Message string `short:"m" help:"Ask one question and exit. Without it, stdin is read (interactively on a terminal)."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	s := &chatSession{agent: a.agent, out: os.Stdout}

	switch {
	case c.Message != "":
		return s.ask(ctx, c.Message)
	case !term.IsTerminal(int(os.Stdin.Fd())):
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			return fmt.Errorf("no message given on stdin")
		}
		return s.ask(ctx, msg)
	default:
		return s.interactive(ctx, os.Stdin)
	}
}

// chatSession keeps one conversation's history in memory.
type chatSession struct {
	agent   *agent.Agent
	out     io.Writer
	history model.History
}

func (s *chatSession) interactive(ctx context.Context, in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(s.out, "Ask about your spending. Commands:")
	fmt.Fprintln(s.out, "  /reset - start a new conversation")
	fmt.Fprintln(s.out, "  /quit  - exit")
	fmt.Fprintln(s.out)

	for {
		fmt.Fprint(s.out, "You: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			s.history = nil
			fmt.Fprintln(s.out, "Conversation cleared.")
			continue
		}

		if err := s.ask(ctx, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n\n", err)
		}
	}
}

// ask runs one turn, printing tool activity as it happens and the reply
// at the end. The history keeps whatever the turn appended, even on
// failure.
func (s *chatSession) ask(ctx context.Context, input string) error {
	res, err := s.agent.Run(ctx, s.history, input, agent.WithObserver(func(ev agent.Event) {
		if running, ok := ev.(agent.ToolRunning); ok {
			fmt.Fprintf(s.out, "  [%s]\n", running.Name)
		}
	}))
	if res != nil {
		s.history = res.History
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "\n%s\n", strings.TrimSpace(res.Reply))
	if res.Incomplete {
		fmt.Fprintf(s.out, "(stopped after %d steps)\n", res.Iterations)
	}
	fmt.Fprintln(s.out)
	return nil
}
