package sqlite

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kabayanhub/points-engine/ledger"
	"github.com/kabayanhub/points-engine/tracker"
)

// =============================================================================
// TRACKER STORE (tracker.Store interface)
// =============================================================================

var _ tracker.Store = (*Store)(nil)

const dayFormat = "2006-01-02"

func (s *Store) AddBudgetEntry(ctx context.Context, e tracker.BudgetEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_entries (id, account_id, kind, category, amount, note, occurred_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.Kind, e.Category, e.Amount.String(), e.Note,
		e.OccurredOn.UTC().Format(dayFormat), formatTime(e.CreatedAt))
	return mapStoreError(err)
}

func (s *Store) ListBudgetEntries(ctx context.Context, id ledger.AccountID, from, to time.Time) ([]tracker.BudgetEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, kind, category, amount, note, occurred_on, created_at
		FROM budget_entries
		WHERE account_id = ? AND occurred_on >= ? AND occurred_on <= ?
		ORDER BY occurred_on ASC, created_at ASC`,
		id, from.UTC().Format(dayFormat), to.UTC().Format(dayFormat))
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	var entries []tracker.BudgetEntry
	for rows.Next() {
		var (
			e          tracker.BudgetEntry
			amount     string
			occurredOn string
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Category,
			&amount, &e.Note, &occurredOn, &createdAt); err != nil {
			return nil, err
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		e.OccurredOn, _ = time.Parse(dayFormat, occurredOn)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteBudgetEntry(ctx context.Context, id ledger.AccountID, entryID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM budget_entries WHERE id = ? AND account_id = ?`, entryID, id)
	if err != nil {
		return mapStoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tracker.ErrEntryNotFound
	}
	return nil
}

func (s *Store) AddCalorieEntry(ctx context.Context, e tracker.CalorieEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calorie_entries (id, account_id, food, calories, meal, occurred_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.Food, e.Calories, e.Meal,
		e.OccurredOn.UTC().Format(dayFormat), formatTime(e.CreatedAt))
	return mapStoreError(err)
}

func (s *Store) ListCalorieEntries(ctx context.Context, id ledger.AccountID, day time.Time) ([]tracker.CalorieEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, food, calories, meal, occurred_on, created_at
		FROM calorie_entries
		WHERE account_id = ? AND occurred_on = ?
		ORDER BY created_at ASC`,
		id, day.UTC().Format(dayFormat))
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	var entries []tracker.CalorieEntry
	for rows.Next() {
		var (
			e          tracker.CalorieEntry
			occurredOn string
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Food, &e.Calories,
			&e.Meal, &occurredOn, &createdAt); err != nil {
			return nil, err
		}
		e.OccurredOn, _ = time.Parse(dayFormat, occurredOn)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteCalorieEntry(ctx context.Context, id ledger.AccountID, entryID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM calorie_entries WHERE id = ? AND account_id = ?`, entryID, id)
	if err != nil {
		return mapStoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tracker.ErrEntryNotFound
	}
	return nil
}
