package ledgertool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/tally/pkg/sqldb"
	"github.com/kadirpekel/tally/pkg/tool"
)

const createTransactions = `
CREATE TABLE transactions (
    id INTEGER PRIMARY KEY,
    date TEXT NOT NULL,
    amount REAL NOT NULL,
    merchant_name TEXT NOT NULL,
    raw_description TEXT NOT NULL,
    category TEXT NOT NULL
)`

var seed = []struct {
	date, merchant, raw, category string
	amount                        float64
}{
	{"2024-03-02", "Coop", "COOP-1234 ZURICH", "Groceries", -120.50},
	{"2024-03-15", "Migros", "MIGROS BASEL", "Groceries", -300.00},
	{"2024-03-20", "SBB", "SBB CFF FFS", "Transport", -45.00},
	{"2024-03-25", "Employer", "SALARY MARCH", "Income", 5000.00},
	{"2024-03-28", "Savings", "TRANSFER TO SAVINGS", "Transfers", -1000.00},
	{"2024-04-03", "Coop", "COOP PRONTO", "Groceries", -80.00},
	{"2023-12-10", "Coop", "COOP CITY", "Groceries", -60.00},
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := sqldb.Open(context.Background(), sqldb.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(createTransactions)
	require.NoError(t, err)
	for _, tx := range seed {
		_, err := db.Exec(`INSERT INTO transactions (date, amount, merchant_name, raw_description, category) VALUES (?, ?, ?, ?, ?)`,
			tx.date, tx.amount, tx.merchant, tx.raw, tx.category)
		require.NoError(t, err)
	}
	return New(db, sqldb.SQLite)
}

func decodeChart(t *testing.T, raw json.RawMessage) Chart {
	t.Helper()
	var c Chart
	require.NoError(t, json.Unmarshal(raw, &c))
	return c
}

func TestSpendingByCategory(t *testing.T) {
	l := newTestLedger(t)

	out, err := l.SpendingByCategory(context.Background(), SpendingByCategoryArgs{Year: 2024, Month: 3})
	require.NoError(t, err)

	assert.Equal(t, "Spending by category: Groceries CHF 420.50 (2 tx), Transport CHF 45.00 (1 tx).", out.Summary)
	require.Len(t, out.Artifacts, 1)

	chart := decodeChart(t, out.Artifacts[0])
	assert.Equal(t, ChartHorizontalBar, chart.Type)
	assert.Equal(t, []string{"Groceries", "Transport"}, chart.Data.Labels)
	require.Len(t, chart.Data.Datasets, 1)
	assert.Equal(t, []float64{420.5, 45}, chart.Data.Datasets[0].Values)
}

func TestSpendingByCategory_Empty(t *testing.T) {
	l := newTestLedger(t)

	out, err := l.SpendingByCategory(context.Background(), SpendingByCategoryArgs{Year: 2019})
	require.NoError(t, err)
	assert.Equal(t, "No spending data found for the requested period.", out.Summary)

	chart := decodeChart(t, out.Artifacts[0])
	assert.Empty(t, chart.Data.Labels)
	assert.JSONEq(t, `{"type":"bar_h","title":"Spending by Category","height":320,"data":{"labels":[],"datasets":[{"name":"CHF","values":[]}]}}`,
		string(out.Artifacts[0]))
}

func TestMonthlyTrend(t *testing.T) {
	l := newTestLedger(t)

	out, err := l.MonthlyTrend(context.Background(), MonthlyTrendArgs{Category: "Groceries"})
	require.NoError(t, err)
	assert.Equal(t, "Monthly spending recorded across 3 months.", out.Summary)

	chart := decodeChart(t, out.Artifacts[0])
	assert.Equal(t, []string{"2023-12", "2024-03", "2024-04"}, chart.Data.Labels)
	assert.Equal(t, []float64{60, 420.5, 80}, chart.Data.Datasets[0].Values)
}

func TestMerchantBreakdown(t *testing.T) {
	l := newTestLedger(t)

	out, err := l.MerchantBreakdown(context.Background(), MerchantBreakdownArgs{Category: "Groceries", TopN: 1})
	require.NoError(t, err)
	assert.Equal(t, "Top merchants for Groceries: Migros CHF 300.00 (1 tx, avg CHF 300.00).", out.Summary)

	require.Len(t, out.Artifacts, 2)
	bar := decodeChart(t, out.Artifacts[0])
	pie := decodeChart(t, out.Artifacts[1])
	assert.Equal(t, ChartHorizontalBar, bar.Type)
	assert.Equal(t, ChartPie, pie.Type)
	assert.Equal(t, []string{"Migros", "Other"}, bar.Data.Labels)
	assert.Equal(t, []float64{300, 260.5}, pie.Data.Datasets[0].Values)

	out, err = l.MerchantBreakdown(context.Background(), MerchantBreakdownArgs{Category: "Travel"})
	require.NoError(t, err)
	assert.Equal(t, "No merchant data found for that category.", out.Summary)
	assert.Empty(t, out.Artifacts)
}

func TestSearchTransactions(t *testing.T) {
	l := newTestLedger(t)

	out, err := l.SearchTransactions(context.Background(), SearchArgs{Search: "coop"})
	require.NoError(t, err)
	assert.Equal(t,
		`Search "coop": 3 transactions, CHF 260.50 total, avg CHF 86.83, range 2023-12-10 to 2024-04-03. Merchant names: Coop.`,
		out.Summary)

	chart := decodeChart(t, out.Artifacts[0])
	assert.Equal(t, []string{"2023-12", "2024-03", "2024-04"}, chart.Data.Labels)

	out, err = l.SearchTransactions(context.Background(), SearchArgs{Search: "zurich", Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "1 transactions, CHF 120.50 total")

	out, err = l.SearchTransactions(context.Background(), SearchArgs{Search: "ikea"})
	require.NoError(t, err)
	assert.Equal(t, `No transactions found matching "ikea".`, out.Summary)
	assert.Empty(t, out.Artifacts)
}

func TestListTransactions(t *testing.T) {
	l := newTestLedger(t)

	out, err := l.ListTransactions(context.Background(), ListArgs{Search: "COOP", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "Showing 2 of 3 transactions matching \"COOP\":\n"+
		"2024-04-03 | CHF 80.00 | Coop | COOP PRONTO\n"+
		"2024-03-02 | CHF 120.50 | Coop | COOP-1234 ZURICH", out.Summary)
	assert.Empty(t, out.Artifacts)

	out, err = l.ListTransactions(context.Background(), ListArgs{Search: "sbb"})
	require.NoError(t, err)
	assert.Equal(t, "1 transactions matching \"sbb\":\n2024-03-20 | CHF 45.00 | SBB | SBB CFF FFS", out.Summary)
}

func TestIncomeVsSpending(t *testing.T) {
	l := newTestLedger(t)

	out, err := l.IncomeVsSpending(context.Background(), IncomeVsSpendingArgs{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "Monthly income vs spending summary generated.", out.Summary)

	chart := decodeChart(t, out.Artifacts[0])
	assert.Equal(t, []string{"2024-03", "2024-04"}, chart.Data.Labels)
	require.Len(t, chart.Data.Datasets, 2)
	assert.Equal(t, Dataset{Name: "Income", Values: []float64{5000, 0}}, chart.Data.Datasets[0])
	assert.Equal(t, Dataset{Name: "Spending", Values: []float64{465.5, 80}}, chart.Data.Datasets[1])
}

func TestRegistry(t *testing.T) {
	l := newTestLedger(t)
	reg, err := l.Registry()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"spending_by_category",
		"monthly_trend",
		"merchant_breakdown",
		"search_transactions",
		"list_transactions",
		"income_vs_spending",
	}, reg.Names())

	for _, def := range reg.Definitions() {
		var schema map[string]any
		require.NoError(t, json.Unmarshal(def.InputSchema, &schema), def.Name)
		assert.Equal(t, "object", schema["type"], def.Name)
	}

	ctx := context.Background()
	out, err := reg.Run(ctx, "spending_by_category", json.RawMessage(`{"year":2024,"month":4}`))
	require.NoError(t, err)
	assert.Equal(t, "Spending by category: Groceries CHF 80.00 (1 tx).", out.Summary)

	_, err = reg.Run(ctx, "spending_by_category", json.RawMessage(`{"month":13}`))
	assert.Equal(t, tool.KindInvalidInput, tool.KindOf(err))

	_, err = reg.Run(ctx, "merchant_breakdown", json.RawMessage(`{}`))
	assert.Equal(t, tool.KindInvalidInput, tool.KindOf(err))

	_, err = reg.Run(ctx, "search_transactions", json.RawMessage(`{"search":"  "}`))
	assert.Equal(t, tool.KindInvalidInput, tool.KindOf(err))
}

func TestQueryFailureIsExecutionError(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.db.Close())

	reg, err := l.Registry()
	require.NoError(t, err)

	_, err = reg.Run(context.Background(), "monthly_trend", nil)
	require.Error(t, err)
	assert.Equal(t, tool.KindExecution, tool.KindOf(err))
}

func TestDialectExpressions(t *testing.T) {
	pg := New(nil, sqldb.Postgres)
	assert.Equal(t, "to_char(CAST(date AS DATE), 'YYYY-MM')", pg.periodExpr())
	assert.Equal(t, "LOWER(merchant_name) LIKE '%' || LOWER(?) || '%'", pg.containsExpr("merchant_name"))

	my := New(nil, sqldb.MySQL, WithCurrency("EUR"))
	assert.Equal(t, "DATE_FORMAT(date, '%Y')", my.yearExpr())
	assert.Equal(t, "LOWER(raw_description) LIKE CONCAT('%', LOWER(?), '%')", my.containsExpr("raw_description"))
	assert.Equal(t, "EUR 1.50", my.money(1.5))
}
