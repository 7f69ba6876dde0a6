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
	"errors"
	"fmt"
	"strings"

	"github.com/kadirpekel/tally/pkg/tool"
)

const (
	defaultTopN      = 15
	defaultListLimit = 50
	otherLabel       = "Other"
)

type SpendingByCategoryArgs struct {
	Year  int `json:"year,omitempty" jsonschema:"description=Four digit year"`
	Month int `json:"month,omitempty" jsonschema:"description=Month number 1-12"`
}

func (a SpendingByCategoryArgs) Validate() error { return validatePeriod(a.Year, a.Month) }

// SpendingByCategory totals spending per category.
func (l *Ledger) SpendingByCategory(ctx context.Context, args SpendingByCategoryArgs) (*tool.Output, error) {
	f := &filter{}
	f.add("amount < 0")
	f.add("category != ?", transfersCategory)
	l.period(f, args.Year, args.Month)

	rows, err := l.query(ctx, fmt.Sprintf(`
		SELECT category, -SUM(amount) AS spend, COUNT(*) AS count
		FROM transactions
		%s
		GROUP BY category
		ORDER BY spend DESC`, f.where()), f.args...)
	if err != nil {
		return nil, fmt.Errorf("spending query failed: %w", err)
	}
	defer rows.Close()

	var (
		labels []string
		values []float64
		parts  []string
	)
	for rows.Next() {
		var (
			category string
			spend    float64
			count    int64
		)
		if err := rows.Scan(&category, &spend, &count); err != nil {
			return nil, fmt.Errorf("failed to scan spending row: %w", err)
		}
		labels = append(labels, category)
		values = append(values, spend)
		parts = append(parts, fmt.Sprintf("%s %s (%d tx)", category, l.money(spend), count))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary := "No spending data found for the requested period."
	if len(parts) > 0 {
		summary = fmt.Sprintf("Spending by category: %s.", strings.Join(parts, ", "))
	}

	arts, err := artifacts(singleSeries(ChartHorizontalBar, "Spending by Category", l.currency, labels, values, 320))
	if err != nil {
		return nil, err
	}
	return &tool.Output{Summary: summary, Artifacts: arts}, nil
}

type MonthlyTrendArgs struct {
	Category string `json:"category,omitempty" jsonschema:"description=Restrict to one category"`
	Year     int    `json:"year,omitempty" jsonschema:"description=Four digit year"`
}

func (a MonthlyTrendArgs) Validate() error { return validatePeriod(a.Year, 0) }

// MonthlyTrend totals spending per calendar month.
func (l *Ledger) MonthlyTrend(ctx context.Context, args MonthlyTrendArgs) (*tool.Output, error) {
	f := &filter{}
	f.add("amount < 0")
	f.add("category != ?", transfersCategory)
	if args.Category != "" {
		f.add("category = ?", args.Category)
	}
	l.period(f, args.Year, 0)

	labels, values, err := l.spendByPeriod(ctx, f)
	if err != nil {
		return nil, err
	}

	summary := "No monthly trend data found for the requested period."
	if len(labels) > 0 {
		summary = fmt.Sprintf("Monthly spending recorded across %d months.", len(labels))
	}

	arts, err := artifacts(singleSeries(ChartBar, "Monthly Spending Trend", l.currency, labels, values, 320))
	if err != nil {
		return nil, err
	}
	return &tool.Output{Summary: summary, Artifacts: arts}, nil
}

func (l *Ledger) spendByPeriod(ctx context.Context, f *filter) ([]string, []float64, error) {
	rows, err := l.query(ctx, fmt.Sprintf(`
		SELECT %s AS month, -SUM(amount) AS spend
		FROM transactions
		%s
		GROUP BY month
		ORDER BY month ASC`, l.periodExpr(), f.where()), f.args...)
	if err != nil {
		return nil, nil, fmt.Errorf("trend query failed: %w", err)
	}
	defer rows.Close()

	var (
		labels []string
		values []float64
	)
	for rows.Next() {
		var (
			month string
			spend float64
		)
		if err := rows.Scan(&month, &spend); err != nil {
			return nil, nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		labels = append(labels, month)
		values = append(values, spend)
	}
	return labels, values, rows.Err()
}

type MerchantBreakdownArgs struct {
	Category string `json:"category" jsonschema:"required,description=Category to break down"`
	TopN     int    `json:"top_n,omitempty" jsonschema:"description=Number of merchants to list (default 15)"`
}

// MerchantBreakdown lists the top merchants of a category; the rest are
// folded into an Other bucket.
func (l *Ledger) MerchantBreakdown(ctx context.Context, args MerchantBreakdownArgs) (*tool.Output, error) {
	topN := args.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	rows, err := l.query(ctx, `
		SELECT merchant_name AS merchant, -SUM(amount) AS spend, COUNT(*) AS count, AVG(-amount) AS avg_spend
		FROM transactions
		WHERE amount < 0 AND category = ?
		GROUP BY merchant_name
		ORDER BY spend DESC`, args.Category)
	if err != nil {
		return nil, fmt.Errorf("merchant query failed: %w", err)
	}
	defer rows.Close()

	var (
		labels     []string
		values     []float64
		parts      []string
		otherSpend float64
		otherCount int64
		n          int
	)
	for rows.Next() {
		var (
			merchant   string
			spend, avg float64
			count      int64
		)
		if err := rows.Scan(&merchant, &spend, &count, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan merchant row: %w", err)
		}
		n++
		if n > topN {
			otherSpend += spend
			otherCount += count
			continue
		}
		labels = append(labels, merchant)
		values = append(values, spend)
		parts = append(parts, fmt.Sprintf("%s %s (%d tx, avg %s)", merchant, l.money(spend), count, l.money(avg)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if n == 0 {
		return &tool.Output{Summary: "No merchant data found for that category."}, nil
	}
	if otherCount > 0 {
		labels = append(labels, otherLabel)
		values = append(values, otherSpend)
	}

	summary := fmt.Sprintf("Top merchants for %s: %s.", args.Category, strings.Join(parts, ", "))
	arts, err := artifacts(
		singleSeries(ChartHorizontalBar, args.Category+" by Merchant", l.currency, labels, values, 340),
		singleSeries(ChartPie, args.Category+" Share", l.currency, labels, values, 300),
	)
	if err != nil {
		return nil, err
	}
	return &tool.Output{Summary: summary, Artifacts: arts}, nil
}

type SearchArgs struct {
	Search   string `json:"search" jsonschema:"required,description=Search term to match against merchant name or raw description"`
	Category string `json:"category,omitempty"`
	Year     int    `json:"year,omitempty"`
	Month    int    `json:"month,omitempty"`
}

func (a SearchArgs) Validate() error {
	if strings.TrimSpace(a.Search) == "" {
		return errors.New("search must not be empty")
	}
	return validatePeriod(a.Year, a.Month)
}

// searchFilter matches spending rows whose merchant or description
// contains the search term.
func (l *Ledger) searchFilter(search, category string, year, month int) *filter {
	f := &filter{}
	f.add("amount < 0")
	f.add(fmt.Sprintf("(%s OR %s)", l.containsExpr("merchant_name"), l.containsExpr("raw_description")), search, search)
	if category != "" {
		f.add("category = ?", category)
	}
	l.period(f, year, month)
	return f
}

// SearchTransactions summarizes spending matching a search term.
func (l *Ledger) SearchTransactions(ctx context.Context, args SearchArgs) (*tool.Output, error) {
	f := l.searchFilter(args.Search, args.Category, args.Year, args.Month)

	var (
		total, avg       sql.NullFloat64
		count            int64
		minDate, maxDate sql.NullString
	)
	err := l.queryRow(ctx, fmt.Sprintf(`
		SELECT -SUM(amount), COUNT(*), AVG(-amount), MIN(date), MAX(date)
		FROM transactions %s`, f.where()), f.args...).
		Scan(&total, &count, &avg, &minDate, &maxDate)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	if count == 0 {
		return &tool.Output{Summary: fmt.Sprintf("No transactions found matching %q.", args.Search)}, nil
	}

	merchants, err := l.distinctMerchants(ctx, f)
	if err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("Search %q: %d transactions, %s total, avg %s, range %s to %s. Merchant names: %s.",
		args.Search, count, l.money(total.Float64), l.money(avg.Float64),
		minDate.String, maxDate.String, strings.Join(merchants, ", "))

	labels, values, err := l.spendByPeriod(ctx, f)
	if err != nil {
		return nil, err
	}

	arts, err := artifacts(singleSeries(ChartBar, fmt.Sprintf("%q Spending by Month", args.Search), l.currency, labels, values, 320))
	if err != nil {
		return nil, err
	}
	return &tool.Output{Summary: summary, Artifacts: arts}, nil
}

func (l *Ledger) distinctMerchants(ctx context.Context, f *filter) ([]string, error) {
	rows, err := l.query(ctx, fmt.Sprintf(`
		SELECT DISTINCT merchant_name FROM transactions %s ORDER BY merchant_name`, f.where()), f.args...)
	if err != nil {
		return nil, fmt.Errorf("merchant query failed: %w", err)
	}
	defer rows.Close()

	var merchants []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		merchants = append(merchants, m)
	}
	return merchants, rows.Err()
}

type ListArgs struct {
	Search   string `json:"search" jsonschema:"required,description=Search term to match against merchant name or raw description"`
	Category string `json:"category,omitempty"`
	Year     int    `json:"year,omitempty"`
	Month    int    `json:"month,omitempty"`
	Limit    int    `json:"limit,omitempty" jsonschema:"description=Max rows to return (default 50)"`
}

func (a ListArgs) Validate() error {
	return SearchArgs{Search: a.Search, Year: a.Year, Month: a.Month}.Validate()
}

// ListTransactions lists matching transactions, newest first. It produces
// no artifacts.
func (l *Ledger) ListTransactions(ctx context.Context, args ListArgs) (*tool.Output, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	f := l.searchFilter(args.Search, args.Category, args.Year, args.Month)

	var total int64
	if err := l.queryRow(ctx, "SELECT COUNT(*) FROM transactions "+f.where(), f.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}
	if total == 0 {
		return &tool.Output{Summary: fmt.Sprintf("No transactions found matching %q.", args.Search)}, nil
	}

	rows, err := l.query(ctx, fmt.Sprintf(`
		SELECT date, amount, merchant_name, raw_description
		FROM transactions %s
		ORDER BY date DESC
		LIMIT ?`, f.where()), append(f.args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("list query failed: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var (
			date, merchant, raw string
			amount              float64
		)
		if err := rows.Scan(&date, &amount, &merchant, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		lines = append(lines, fmt.Sprintf("%s | %s | %s | %s", date, l.money(-amount), merchant, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	header := fmt.Sprintf("%d transactions matching %q:", total, args.Search)
	if int64(len(lines)) < total {
		header = fmt.Sprintf("Showing %d of %d transactions matching %q:", len(lines), total, args.Search)
	}
	return &tool.Output{Summary: header + "\n" + strings.Join(lines, "\n")}, nil
}

type IncomeVsSpendingArgs struct {
	Year int `json:"year,omitempty" jsonschema:"description=Four digit year"`
}

func (a IncomeVsSpendingArgs) Validate() error { return validatePeriod(a.Year, 0) }

// IncomeVsSpending compares income and spending per month.
func (l *Ledger) IncomeVsSpending(ctx context.Context, args IncomeVsSpendingArgs) (*tool.Output, error) {
	f := &filter{}
	l.period(f, args.Year, 0)

	// Placeholder order: the Transfers argument precedes the period filter.
	rows, err := l.query(ctx, fmt.Sprintf(`
		SELECT %s AS month,
			SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END) AS income,
			SUM(CASE WHEN amount < 0 AND category != ? THEN -amount ELSE 0 END) AS spending
		FROM transactions
		%s
		GROUP BY month
		ORDER BY month ASC`, l.periodExpr(), f.where()), append([]any{transfersCategory}, f.args...)...)
	if err != nil {
		return nil, fmt.Errorf("income query failed: %w", err)
	}
	defer rows.Close()

	var (
		labels           []string
		income, spending []float64
	)
	for rows.Next() {
		var (
			month   string
			in, out float64
		)
		if err := rows.Scan(&month, &in, &out); err != nil {
			return nil, fmt.Errorf("failed to scan income row: %w", err)
		}
		labels = append(labels, month)
		income = append(income, in)
		spending = append(spending, out)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary := "No income/spending data found for the requested period."
	if len(labels) > 0 {
		summary = "Monthly income vs spending summary generated."
	}

	chart := Chart{
		Type:   ChartBar,
		Title:  "Income vs Spending",
		Height: 320,
		Data: ChartData{
			Labels: nonNil(labels),
			Datasets: []Dataset{
				{Name: "Income", Values: nonNil(income)},
				{Name: "Spending", Values: nonNil(spending)},
			},
		},
	}
	arts, err := artifacts(chart)
	if err != nil {
		return nil, err
	}
	return &tool.Output{Summary: summary, Artifacts: arts}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
