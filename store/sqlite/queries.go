package sqlite

import (
	"context"
	"time"

	"github.com/kabayanhub/points-engine/ledger"
)

// =============================================================================
// READ-SIDE QUERIES - Served directly to the API, outside engine transactions
// =============================================================================

// ListItems returns catalog items, optionally only active ones, newest first.
func (s *Store) ListItems(ctx context.Context, activeOnly bool) ([]ledger.RewardItem, error) {
	query := `SELECT id, name, description, price, stock, active, created_at, updated_at
	          FROM reward_items`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	var items []ledger.RewardItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListEntries returns an account's ledger entries, newest first.
func (s *Store) ListEntries(ctx context.Context, id ledger.AccountID, limit int) ([]ledger.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, action_key, amount, reason, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, id, limit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	var entries []ledger.LedgerEntry
	for rows.Next() {
		var (
			e         ledger.LedgerEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.ActionKey, &e.Amount,
			&e.Reason, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListRedemptions returns redemptions, optionally filtered by status,
// newest first.
func (s *Store) ListRedemptions(ctx context.Context, status ledger.RedemptionStatus) ([]ledger.RedemptionRecord, error) {
	query := `SELECT id, account_id, item_id, item_name, price, status, created_at, redeemed_at
	          FROM redemptions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	var recs []ledger.RedemptionRecord
	for rows.Next() {
		rec, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Leaderboard aggregates points earned (positive entries only) per account
// since the given time, highest first.
func (s *Store) Leaderboard(ctx context.Context, since time.Time, limit int) ([]ledger.LeaderboardRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.account_id, a.name, SUM(e.amount) AS earned
		FROM ledger_entries e
		JOIN accounts a ON a.id = e.account_id
		WHERE e.amount > 0 AND e.created_at >= ?
		GROUP BY e.account_id, a.name
		ORDER BY earned DESC, a.name ASC
		LIMIT ?`, formatTime(since), limit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	var board []ledger.LeaderboardRow
	for rows.Next() {
		var row ledger.LeaderboardRow
		if err := rows.Scan(&row.AccountID, &row.Name, &row.Earned); err != nil {
			return nil, err
		}
		board = append(board, row)
	}
	return board, rows.Err()
}
