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

// Package ledgertool provides read-only analysis tools over a table of
// bank transactions.
//
// The tools expect an existing table:
//
//	transactions(date TEXT 'YYYY-MM-DD', amount REAL, merchant_name TEXT,
//	             raw_description TEXT, category TEXT)
//
// Negative amounts are spending, positive amounts are income, and rows in
// the Transfers category are excluded from spending totals. Every tool
// returns a short textual summary for the model and chart specifications
// as artifacts.
package ledgertool

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/tally/pkg/sqldb"
	"github.com/kadirpekel/tally/pkg/tool"
)

const (
	DefaultCurrency = "CHF"

	transfersCategory = "Transfers"
)

// Ledger runs the analysis queries.
type Ledger struct {
	db       *sql.DB
	dialect  sqldb.Dialect
	currency string
}

type Option func(*Ledger)

// WithCurrency sets the currency label used in summaries and charts.
func WithCurrency(currency string) Option {
	return func(l *Ledger) {
		if currency != "" {
			l.currency = currency
		}
	}
}

// New creates a Ledger over db.
func New(db *sql.DB, dialect sqldb.Dialect, opts ...Option) *Ledger {
	l := &Ledger{db: db, dialect: dialect, currency: DefaultCurrency}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tools returns every ledger tool, in the order they are offered to the
// model.
func (l *Ledger) Tools() ([]tool.Tool, error) {
	builders := []func() (tool.Tool, error){
		func() (tool.Tool, error) {
			return tool.NewFunc(tool.Config{
				Name:        "spending_by_category",
				Description: "Summarise spending by category with optional year/month filters.",
			}, l.SpendingByCategory)
		},
		func() (tool.Tool, error) {
			return tool.NewFunc(tool.Config{
				Name:        "monthly_trend",
				Description: "Summarise monthly spending trend with optional category/year filters.",
			}, l.MonthlyTrend)
		},
		func() (tool.Tool, error) {
			return tool.NewFunc(tool.Config{
				Name:        "merchant_breakdown",
				Description: "Show top merchants within a category with optional top_n.",
			}, l.MerchantBreakdown)
		},
		func() (tool.Tool, error) {
			return tool.NewFunc(tool.Config{
				Name: "search_transactions",
				Description: "Search transactions by merchant name or description. Returns total spend, count, " +
					"average, date range, merchant name variants, and a monthly spending chart.",
			}, l.SearchTransactions)
		},
		func() (tool.Tool, error) {
			return tool.NewFunc(tool.Config{
				Name: "list_transactions",
				Description: "List individual transactions matching a search term. Returns date, amount, " +
					"merchant, and raw description for each transaction.",
			}, l.ListTransactions)
		},
		func() (tool.Tool, error) {
			return tool.NewFunc(tool.Config{
				Name:        "income_vs_spending",
				Description: "Compare monthly income vs spending with optional year filter.",
			}, l.IncomeVsSpending)
		},
	}

	tools := make([]tool.Tool, 0, len(builders))
	for _, build := range builders {
		t, err := build()
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// Registry returns a tool.Registry holding every ledger tool.
func (l *Ledger) Registry() (*tool.Registry, error) {
	tools, err := l.Tools()
	if err != nil {
		return nil, err
	}
	return tool.NewRegistry(tools...)
}

// Dialect-specific date expressions over the TEXT date column.

func (l *Ledger) yearExpr() string {
	switch l.dialect {
	case sqldb.Postgres:
		return "to_char(CAST(date AS DATE), 'YYYY')"
	case sqldb.MySQL:
		return "DATE_FORMAT(date, '%Y')"
	default:
		return "strftime('%Y', date)"
	}
}

func (l *Ledger) monthExpr() string {
	switch l.dialect {
	case sqldb.Postgres:
		return "to_char(CAST(date AS DATE), 'MM')"
	case sqldb.MySQL:
		return "DATE_FORMAT(date, '%m')"
	default:
		return "strftime('%m', date)"
	}
}

func (l *Ledger) periodExpr() string {
	switch l.dialect {
	case sqldb.Postgres:
		return "to_char(CAST(date AS DATE), 'YYYY-MM')"
	case sqldb.MySQL:
		return "DATE_FORMAT(date, '%Y-%m')"
	default:
		return "strftime('%Y-%m', date)"
	}
}

// containsExpr matches col case-insensitively against a ? parameter.
func (l *Ledger) containsExpr(col string) string {
	if l.dialect == sqldb.MySQL {
		return fmt.Sprintf("LOWER(%s) LIKE CONCAT('%%', LOWER(?), '%%')", col)
	}
	return fmt.Sprintf("LOWER(%s) LIKE '%%' || LOWER(?) || '%%'", col)
}

// filter accumulates WHERE conditions and their arguments.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) add(cond string, args ...any) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(f.conds, " AND ")
}

func (l *Ledger) period(f *filter, year, month int) {
	if year != 0 {
		f.add(l.yearExpr()+" = ?", fmt.Sprintf("%04d", year))
	}
	if month != 0 {
		f.add(l.monthExpr()+" = ?", fmt.Sprintf("%02d", month))
	}
}

func (l *Ledger) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return l.db.QueryContext(ctx, l.dialect.Rebind(query), args...)
}

func (l *Ledger) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return l.db.QueryRowContext(ctx, l.dialect.Rebind(query), args...)
}

func (l *Ledger) money(v float64) string {
	return fmt.Sprintf("%s %.2f", l.currency, v)
}

func validatePeriod(year, month int) error {
	if year != 0 && (year < 1900 || year > 9999) {
		return fmt.Errorf("year must be a four digit year, got %d", year)
	}
	if month != 0 && (month < 1 || month > 12) {
		return fmt.Errorf("month must be between 1 and 12, got %d", month)
	}
	return nil
}

func artifacts(charts ...Chart) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(charts))
	for _, c := range charts {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode chart %q: %w", c.Title, err)
		}
		out = append(out, data)
	}
	return out, nil
}
