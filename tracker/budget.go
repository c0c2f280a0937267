/*
Package tracker provides the budget and calorie trackers.

PURPOSE:
  Personal trackers each account keeps alongside its points: a budget of
  income/expense entries with exact decimal amounts, and a calorie log with
  per-day totals. Trackers never touch point balances; they share only the
  account identity with the ledger.

PRECISION:
  Budget amounts are money and use decimal.Decimal end to end; they are
  persisted as decimal strings, never as floats.

SEE ALSO:
  - calorie.go:         calorie entries and day summaries
  - store/sqlite/tracker.go: persistence
*/
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kabayanhub/points-engine/ledger"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEntryNotFound is returned when the entry doesn't exist or belongs
	// to another account.
	ErrEntryNotFound = errors.New("tracker entry not found")

	// ErrInvalidEntry is returned on validation failures.
	ErrInvalidEntry = errors.New("invalid tracker entry")
)

// =============================================================================
// BUDGET TYPES
// =============================================================================

type BudgetKind string

const (
	BudgetIncome  BudgetKind = "income"
	BudgetExpense BudgetKind = "expense"
)

// BudgetEntry is one income or expense line.
type BudgetEntry struct {
	ID         string
	AccountID  ledger.AccountID
	Kind       BudgetKind
	Category   string
	Amount     decimal.Decimal // always positive; Kind carries the sign
	Note       string
	OccurredOn time.Time // date granularity
	CreatedAt  time.Time
}

// BudgetSummary aggregates one calendar month.
type BudgetSummary struct {
	Month   string // "2026-08"
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is the persistence the trackers need. Implemented by store/sqlite.
type Store interface {
	AddBudgetEntry(ctx context.Context, e BudgetEntry) error
	ListBudgetEntries(ctx context.Context, id ledger.AccountID, from, to time.Time) ([]BudgetEntry, error)
	DeleteBudgetEntry(ctx context.Context, id ledger.AccountID, entryID string) error

	AddCalorieEntry(ctx context.Context, e CalorieEntry) error
	ListCalorieEntries(ctx context.Context, id ledger.AccountID, day time.Time) ([]CalorieEntry, error)
	DeleteCalorieEntry(ctx context.Context, id ledger.AccountID, entryID string) error
}

// =============================================================================
// SERVICE
// =============================================================================

// Service validates and aggregates tracker entries.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// AddBudgetEntry validates and persists one budget line.
func (s *Service) AddBudgetEntry(ctx context.Context, e BudgetEntry) (BudgetEntry, error) {
	if e.Kind != BudgetIncome && e.Kind != BudgetExpense {
		return BudgetEntry{}, fmt.Errorf("%w: kind must be income or expense", ErrInvalidEntry)
	}
	if !e.Amount.IsPositive() {
		return BudgetEntry{}, fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if e.Category == "" {
		return BudgetEntry{}, fmt.Errorf("%w: category is required", ErrInvalidEntry)
	}
	if e.OccurredOn.IsZero() {
		e.OccurredOn = s.now()
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.now()
	if err := s.store.AddBudgetEntry(ctx, e); err != nil {
		return BudgetEntry{}, err
	}
	return e, nil
}

// DeleteBudgetEntry removes one of the caller's entries.
func (s *Service) DeleteBudgetEntry(ctx context.Context, id ledger.AccountID, entryID string) error {
	return s.store.DeleteBudgetEntry(ctx, id, entryID)
}

// MonthEntries returns the account's entries for a calendar month.
func (s *Service) MonthEntries(ctx context.Context, id ledger.AccountID, year int, month time.Month) ([]BudgetEntry, error) {
	from, to := monthBounds(year, month)
	return s.store.ListBudgetEntries(ctx, id, from, to)
}

// MonthSummary nets income against expense for a calendar month with
// decimal exactness.
func (s *Service) MonthSummary(ctx context.Context, id ledger.AccountID, year int, month time.Month) (BudgetSummary, error) {
	entries, err := s.MonthEntries(ctx, id, year, month)
	if err != nil {
		return BudgetSummary{}, err
	}

	summary := BudgetSummary{
		Month:   fmt.Sprintf("%04d-%02d", year, month),
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}
	for _, e := range entries {
		switch e.Kind {
		case BudgetIncome:
			summary.Income = summary.Income.Add(e.Amount)
		case BudgetExpense:
			summary.Expense = summary.Expense.Add(e.Amount)
		}
	}
	summary.Net = summary.Income.Sub(summary.Expense)
	return summary, nil
}

func monthBounds(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0).Add(-time.Nanosecond)
}
