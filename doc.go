// Package tally is a conversational assistant over a personal transaction
// ledger.
//
// A question typed in the terminal or posted to the chat endpoint is
// answered by a language model that calls read-only ledger tools
// (spending by category, monthly trend, top merchants and so on) until it
// can reply. Tool activity, chart specifications and the reply are
// streamed back to the client as server-sent events.
//
// # Quick Start
//
//	export ANTHROPIC_API_KEY=...
//	export DATABASE_URL=data/budget.db
//	tally serve
//
// Ask a single question without the server:
//
//	tally chat -m "How much did I spend on groceries last month?"
//
// # Configuration
//
// Without a config file everything comes from the environment
// (ANTHROPIC_API_KEY, BIND_ADDRESS, DATABASE_URL, optionally from .env).
// A YAML or JSON file given with --config adds the rest; print its schema
// with:
//
//	tally schema
//
// # Layout
//
//   - pkg/model and pkg/model/anthropic: message types and the completion client
//   - pkg/sse: frame decoding for streamed completions
//   - pkg/tool and pkg/tool/ledgertool: the tool registry and ledger queries
//   - pkg/agent: the tool-calling loop
//   - pkg/session: conversation storage
//   - pkg/server: the HTTP chat endpoint
package tally
