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

package ledgertool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Category is one spending category the ledger classifies into.
type Category struct {
	Name        string
	Description string
}

// DefaultCategories is used when the database has no categories table.
var DefaultCategories = []Category{
	{"Cash", "ATM withdrawals"},
	{"Children", "Childcare, school, activities, toys, children's clothing"},
	{"Dining", "Restaurants, cafes, bars, takeaway, fast food"},
	{"Fees", "Bank fees, card fees, foreign exchange fees"},
	{"Groceries", "Supermarkets, food shops, bakeries, butchers"},
	{"Healthcare", "Doctors, dentists, pharmacy, hospital, optician"},
	{"Housing", "Rent, mortgage, utilities, electricity, water, heating"},
	{"Income", "Salary, refunds, reimbursements"},
	{"Insurance", "Health insurance, liability, household, car insurance"},
	{"Other", "Anything that doesn't fit above"},
	{"Shopping", "Clothing, electronics, furniture, household goods"},
	{"Subscriptions", "Streaming, software, newspapers, memberships, phone plan"},
	{"Transfers", "Transfers between own accounts, savings"},
	{"Transport", "Public transport, taxis, fuel, parking, car expenses"},
	{"Travel", "Hotels, flights, holiday expenses"},
	{"Uncategorised", "Transactions that could not be confidently classified"},
}

// CategoryCount is the number of transactions in one category.
type CategoryCount struct {
	Name  string
	Count int
}

// Overview describes the data the tools run over.
type Overview struct {
	MinDate    string
	MaxDate    string
	Total      int
	Categories []CategoryCount
}

// Overview loads the date range and per-category transaction counts.
func (l *Ledger) Overview(ctx context.Context) (*Overview, error) {
	var minDate, maxDate sql.NullString
	ov := &Overview{}
	if err := l.queryRow(ctx,
		`SELECT MIN(date), MAX(date), COUNT(*) FROM transactions`,
	).Scan(&minDate, &maxDate, &ov.Total); err != nil {
		return nil, fmt.Errorf("failed to load data summary: %w", err)
	}
	ov.MinDate, ov.MaxDate = minDate.String, maxDate.String

	rows, err := l.query(ctx,
		`SELECT category, COUNT(*) AS n FROM transactions GROUP BY category ORDER BY n DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("failed to load category counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name sql.NullString
		var c CategoryCount
		if err := rows.Scan(&name, &c.Count); err != nil {
			return nil, err
		}
		c.Name = name.String
		if !name.Valid || c.Name == "" {
			c.Name = "Unknown"
		}
		ov.Categories = append(ov.Categories, c)
	}
	return ov, rows.Err()
}

// Categories lists the categories table, falling back to
// DefaultCategories when it cannot be read.
func (l *Ledger) Categories(ctx context.Context) []Category {
	rows, err := l.query(ctx, `SELECT name, description FROM categories ORDER BY name`)
	if err != nil {
		slog.Debug("Using default categories", "error", err)
		return DefaultCategories
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		var desc sql.NullString
		if err := rows.Scan(&c.Name, &desc); err != nil {
			slog.Debug("Using default categories", "error", err)
			return DefaultCategories
		}
		c.Description = desc.String
		out = append(out, c)
	}
	if rows.Err() != nil || len(out) == 0 {
		return DefaultCategories
	}
	return out
}

// SystemPrompt builds the agent instruction from the current data.
func (l *Ledger) SystemPrompt(ctx context.Context) (string, error) {
	ov, err := l.Overview(ctx)
	if err != nil {
		return "", err
	}
	return BuildSystemPrompt(ov, l.Categories(ctx)), nil
}

// BuildSystemPrompt renders the agent instruction.
func BuildSystemPrompt(ov *Overview, categories []Category) string {
	dateRange := "unknown range"
	if ov.MinDate != "" && ov.MaxDate != "" {
		dateRange = ov.MinDate + " to " + ov.MaxDate
	}

	var b strings.Builder
	b.WriteString("You are a budget analysis assistant. Use the provided tools to answer questions about spending.\n\n")

	b.WriteString("DATA SUMMARY\n")
	fmt.Fprintf(&b, "- Date range: %s\n", dateRange)
	fmt.Fprintf(&b, "- Total transactions: %d\n", ov.Total)
	b.WriteString("- Categories and counts:\n")
	for _, c := range ov.Categories {
		fmt.Fprintf(&b, "- %s (%d tx)\n", c.Name, c.Count)
	}

	b.WriteString("\nCATEGORY SCHEMA\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}

	b.WriteString("\nTOOLS\n")
	b.WriteString("- spending_by_category: totals by category with optional year/month filters\n")
	b.WriteString("- monthly_trend: monthly spending totals with optional category/year filters\n")
	b.WriteString("- merchant_breakdown: top merchants within a category\n")
	b.WriteString("- search_transactions: totals and variants for a merchant or description search\n")
	b.WriteString("- list_transactions: individual transactions matching a search\n")
	b.WriteString("- income_vs_spending: monthly income vs spending, optional year filter\n")

	b.WriteString("\nGuidance: keep summaries concise, and use tools for quantitative questions.")
	return b.String()
}
