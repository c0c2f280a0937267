package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabayanhub/points-engine/ledger"
	"github.com/kabayanhub/points-engine/store/sqlite"
	"github.com/kabayanhub/points-engine/tracker"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestTracker(t *testing.T) (*tracker.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.CreateAccount(context.Background(), ledger.Account{
		ID:        "maria",
		Name:      "maria",
		Role:      ledger.RoleUser,
		CreatedAt: time.Now().UTC(),
	}, "test-hash"))

	return tracker.NewService(store), store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func budgetLine(kind tracker.BudgetKind, category, amount string, day time.Time) tracker.BudgetEntry {
	return tracker.BudgetEntry{
		AccountID:  "maria",
		Kind:       kind,
		Category:   category,
		Amount:     dec(amount),
		OccurredOn: day,
	}
}

// =============================================================================
// BUDGET TESTS
// =============================================================================

func TestBudget_MonthSummary_ExactDecimalNetting(t *testing.T) {
	// GIVEN: Income 50000.00 and expenses 1250.75 + 0.10 + 0.20 in August
	// WHEN: Summarizing the month
	// THEN: Net is exactly 48748.95 (no float drift)

	svc, _ := newTestTracker(t)
	ctx := context.Background()
	aug := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)

	for _, e := range []tracker.BudgetEntry{
		budgetLine(tracker.BudgetIncome, "salary", "50000.00", aug),
		budgetLine(tracker.BudgetExpense, "rent", "1250.75", aug),
		budgetLine(tracker.BudgetExpense, "fees", "0.10", aug),
		budgetLine(tracker.BudgetExpense, "fees", "0.20", aug),
	} {
		_, err := svc.AddBudgetEntry(ctx, e)
		require.NoError(t, err)
	}

	summary, err := svc.MonthSummary(ctx, "maria", 2026, time.August)

	require.NoError(t, err)
	assert.Equal(t, "2026-08", summary.Month)
	assert.True(t, summary.Income.Equal(dec("50000.00")), "income = %s", summary.Income)
	assert.True(t, summary.Expense.Equal(dec("1251.05")), "expense = %s", summary.Expense)
	assert.True(t, summary.Net.Equal(dec("48748.95")), "net = %s", summary.Net)
}

func TestBudget_MonthEntries_ExcludesOtherMonths(t *testing.T) {
	// GIVEN: One entry in July and one in August
	// WHEN: Listing August
	// THEN: Only the August entry appears

	svc, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := svc.AddBudgetEntry(ctx, budgetLine(tracker.BudgetExpense, "groceries", "80.00",
		time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = svc.AddBudgetEntry(ctx, budgetLine(tracker.BudgetExpense, "groceries", "90.00",
		time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	entries, err := svc.MonthEntries(ctx, "maria", 2026, time.August)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(dec("90.00")))
}

func TestBudget_Validation(t *testing.T) {
	svc, _ := newTestTracker(t)
	ctx := context.Background()
	day := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.AddBudgetEntry(ctx, budgetLine("loan", "misc", "10.00", day))
	assert.ErrorIs(t, err, tracker.ErrInvalidEntry, "unknown kind")

	_, err = svc.AddBudgetEntry(ctx, budgetLine(tracker.BudgetExpense, "misc", "-5.00", day))
	assert.ErrorIs(t, err, tracker.ErrInvalidEntry, "negative amount")

	_, err = svc.AddBudgetEntry(ctx, budgetLine(tracker.BudgetExpense, "", "5.00", day))
	assert.ErrorIs(t, err, tracker.ErrInvalidEntry, "missing category")
}

func TestBudget_Delete_ScopedToOwner(t *testing.T) {
	// GIVEN: Maria's entry
	// WHEN: Another account tries to delete it
	// THEN: ErrEntryNotFound; the entry survives

	svc, store := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, ledger.Account{
		ID: "jose", Name: "jose", Role: ledger.RoleUser, CreatedAt: time.Now().UTC(),
	}, "test-hash"))

	created, err := svc.AddBudgetEntry(ctx, budgetLine(tracker.BudgetExpense, "rent", "1000.00",
		time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	err = svc.DeleteBudgetEntry(ctx, "jose", created.ID)
	assert.ErrorIs(t, err, tracker.ErrEntryNotFound)

	entries, err := svc.MonthEntries(ctx, "maria", 2026, time.August)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, svc.DeleteBudgetEntry(ctx, "maria", created.ID))
	entries, err = svc.MonthEntries(ctx, "maria", 2026, time.August)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// CALORIE TESTS
// =============================================================================

func TestCalorie_DaySummary_TotalsByMeal(t *testing.T) {
	// GIVEN: Breakfast 450, lunch 700, two snacks 120 + 80 on the same day
	// WHEN: Summarizing the day
	// THEN: Total 1350 with per-meal buckets

	svc, _ := newTestTracker(t)
	ctx := context.Background()
	day := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)

	for _, e := range []tracker.CalorieEntry{
		{AccountID: "maria", Food: "pandesal", Calories: 450, Meal: tracker.MealBreakfast, OccurredOn: day},
		{AccountID: "maria", Food: "adobo", Calories: 700, Meal: tracker.MealLunch, OccurredOn: day},
		{AccountID: "maria", Food: "banana", Calories: 120, Meal: tracker.MealSnack, OccurredOn: day},
		{AccountID: "maria", Food: "coffee", Calories: 80, Meal: tracker.MealSnack, OccurredOn: day},
	} {
		_, err := svc.AddCalorieEntry(ctx, e)
		require.NoError(t, err)
	}

	summary, err := svc.Day(ctx, "maria", day)

	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", summary.Day)
	assert.Equal(t, int64(1350), summary.Total)
	assert.Equal(t, int64(450), summary.ByMeal[tracker.MealBreakfast])
	assert.Equal(t, int64(700), summary.ByMeal[tracker.MealLunch])
	assert.Equal(t, int64(200), summary.ByMeal[tracker.MealSnack])
	assert.Len(t, summary.Entries, 4)
}

func TestCalorie_EmptyMeal_DefaultsToSnack(t *testing.T) {
	svc, _ := newTestTracker(t)

	created, err := svc.AddCalorieEntry(context.Background(), tracker.CalorieEntry{
		AccountID:  "maria",
		Food:       "halo-halo",
		Calories:   300,
		OccurredOn: time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, tracker.MealSnack, created.Meal)
}

func TestCalorie_Validation(t *testing.T) {
	svc, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := svc.AddCalorieEntry(ctx, tracker.CalorieEntry{AccountID: "maria", Calories: 100})
	assert.ErrorIs(t, err, tracker.ErrInvalidEntry, "missing food")

	_, err = svc.AddCalorieEntry(ctx, tracker.CalorieEntry{AccountID: "maria", Food: "x", Calories: -1})
	assert.ErrorIs(t, err, tracker.ErrInvalidEntry, "negative calories")

	_, err = svc.AddCalorieEntry(ctx, tracker.CalorieEntry{AccountID: "maria", Food: "x", Calories: 1, Meal: "brunch"})
	assert.ErrorIs(t, err, tracker.ErrInvalidEntry, "unknown meal slot")
}
