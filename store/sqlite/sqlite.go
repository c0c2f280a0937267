/*
Package sqlite provides the SQLite-backed implementation of every
persistence interface in the repository.

PURPOSE:
  Implements ledger.Store (atomic engine transactions), auth.Store
  (accounts and sessions), tracker.Store (budget and calorie entries), and
  the read-side queries the API serves (catalog, activity feed,
  redemption queue, leaderboard). In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INVARIANT ENFORCEMENT:
  The business invariants are backed by the schema, not just by engine
  code:
  - UNIQUE(account_id, action_key) on ledger_entries makes AwardOnce's
    existence check and insert indivisible even if a call site forgets
    the check. Violations map to ledger.ErrAlreadyClaimed.
  - CHECK(balance >= 0) on accounts backstops the engine's sufficiency
    check; a violation maps to ledger.ErrInsufficientBalance.
  - CHECK(stock IS NULL OR stock >= 0) plus a conditional UPDATE keeps
    stock from ever going negative.

CONCURRENCY:
  A sync.Mutex serializes write transactions, matching SQLite's
  single-writer model; SQLITE_BUSY surfaces as ledger.ErrContention,
  which callers may retry safely.

WAL MODE:
  The database is opened with WAL so readers don't block on the writer.

USAGE:
  st, err := sqlite.New("./kabayan.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()
  engine := ledger.NewEngine(st)

SEE ALSO:
  - ledger/store.go: the transactional contract implemented here
  - queries.go:      read-side queries for the API
  - auth.go:         account and session persistence
  - tracker.go:      budget and calorie persistence
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kabayanhub/points-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts: balance is mutated only inside engine transactions.
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TEXT NOT NULL
	);

	-- Reward catalog
	CREATE TABLE IF NOT EXISTS reward_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price INTEGER NOT NULL CHECK (price > 0),
		stock INTEGER CHECK (stock IS NULL OR stock >= 0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Ledger entries (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		action_key TEXT NOT NULL,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one entry per (account, action key), ever. This is the
	-- store-level constraint that makes AwardOnce race-free.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_account_action
		ON ledger_entries(account_id, action_key);

	CREATE INDEX IF NOT EXISTS idx_entries_account_created
		ON ledger_entries(account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_created
		ON ledger_entries(created_at);

	-- Cooldowns: last successful claim per (account, cooldown key)
	CREATE TABLE IF NOT EXISTS cooldowns (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		cooldown_key TEXT NOT NULL,
		last_claim_at TEXT NOT NULL,
		PRIMARY KEY (account_id, cooldown_key)
	);

	-- Redemptions
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		item_id TEXT NOT NULL REFERENCES reward_items(id),
		item_name TEXT NOT NULL,
		price INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		redeemed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_status
		ON redemptions(status, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_redemptions_account
		ON redemptions(account_id, created_at DESC);

	-- Sessions (bearer tokens)
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_account
		ON sessions(account_id);

	-- Budget tracker (amounts stored as exact decimal strings)
	CREATE TABLE IF NOT EXISTS budget_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		kind TEXT NOT NULL CHECK (kind IN ('income', 'expense')),
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		occurred_on TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_budget_account_date
		ON budget_entries(account_id, occurred_on);

	-- Calorie tracker
	CREATE TABLE IF NOT EXISTS calorie_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		food TEXT NOT NULL,
		calories INTEGER NOT NULL CHECK (calories >= 0),
		meal TEXT NOT NULL DEFAULT '',
		occurred_on TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calories_account_day
		ON calorie_entries(account_id, occurred_on);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

var _ ledger.Store = (*Store)(nil)

// WithTx executes fn within a database transaction, serialized against
// other write transactions.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapStoreError(err)
	}
	defer sqlTx.Rollback()

	if err := fn(&sqliteTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapStoreError(err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

var _ ledger.Tx = (*sqliteTx)(nil)

func (t *sqliteTx) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	return scanAccount(t.tx.QueryRowContext(ctx,
		`SELECT id, name, role, balance, created_at FROM accounts WHERE id = ?`, id))
}

func (t *sqliteTx) AddBalance(ctx context.Context, id ledger.AccountID, delta int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE id = ?`, delta, id)
	if err != nil {
		if isCheckConstraintError(err) {
			// balance >= 0 violated; the engine pre-checks, this is the backstop
			return ledger.ErrInsufficientBalance
		}
		return mapStoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (t *sqliteTx) GetItem(ctx context.Context, id ledger.ItemID) (ledger.RewardItem, error) {
	return scanItem(t.tx.QueryRowContext(ctx,
		`SELECT id, name, description, price, stock, active, created_at, updated_at
		 FROM reward_items WHERE id = ?`, id))
}

func (t *sqliteTx) PutItem(ctx context.Context, item ledger.RewardItem) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reward_items (id, name, description, price, stock, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price = excluded.price,
			stock = excluded.stock,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		item.ID, item.Name, item.Description, item.Price, nullInt64(item.Stock),
		item.Active, formatTime(item.CreatedAt), formatTime(item.UpdatedAt))
	return mapStoreError(err)
}

func (t *sqliteTx) DecrementStock(ctx context.Context, id ledger.ItemID) error {
	// Conditional update: only rows with tracked, positive stock change.
	res, err := t.tx.ExecContext(ctx,
		`UPDATE reward_items SET stock = stock - 1
		 WHERE id = ? AND stock IS NOT NULL AND stock > 0`, id)
	if err != nil {
		return mapStoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Nothing changed: untracked stock is a no-op, missing item or zero
	// stock is an error.
	var stock sql.NullInt64
	err = t.tx.QueryRowContext(ctx, `SELECT stock FROM reward_items WHERE id = ?`, id).Scan(&stock)
	if err == sql.ErrNoRows {
		return ledger.ErrItemNotFound
	}
	if err != nil {
		return mapStoreError(err)
	}
	if !stock.Valid {
		return nil
	}
	return ledger.ErrSoldOut
}

func (t *sqliteTx) EntryExists(ctx context.Context, id ledger.AccountID, key ledger.ActionKey) (bool, error) {
	var count int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE account_id = ? AND action_key = ?`,
		id, key).Scan(&count)
	return count > 0, mapStoreError(err)
}

func (t *sqliteTx) AppendEntry(ctx context.Context, entry ledger.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, action_key, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AccountID, entry.ActionKey, entry.Amount, entry.Reason,
		formatTime(entry.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrAlreadyClaimed
		}
		return mapStoreError(err)
	}
	return nil
}

func (t *sqliteTx) LastClaim(ctx context.Context, id ledger.AccountID, key ledger.CooldownKey) (time.Time, bool, error) {
	var raw string
	err := t.tx.QueryRowContext(ctx,
		`SELECT last_claim_at FROM cooldowns WHERE account_id = ? AND cooldown_key = ?`,
		id, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, mapStoreError(err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt cooldown timestamp: %w", err)
	}
	return at, true, nil
}

func (t *sqliteTx) RecordClaim(ctx context.Context, id ledger.AccountID, key ledger.CooldownKey, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cooldowns (account_id, cooldown_key, last_claim_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id, cooldown_key) DO UPDATE SET
			last_claim_at = excluded.last_claim_at`,
		id, key, formatTime(at))
	return mapStoreError(err)
}

func (t *sqliteTx) GetRedemption(ctx context.Context, id ledger.RedemptionID) (ledger.RedemptionRecord, error) {
	return scanRedemption(t.tx.QueryRowContext(ctx,
		`SELECT id, account_id, item_id, item_name, price, status, created_at, redeemed_at
		 FROM redemptions WHERE id = ?`, id))
}

func (t *sqliteTx) InsertRedemption(ctx context.Context, rec ledger.RedemptionRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO redemptions (id, account_id, item_id, item_name, price, status, created_at, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.ItemID, rec.ItemName, rec.Price, rec.Status,
		formatTime(rec.CreatedAt), nullTime(rec.RedeemedAt))
	return mapStoreError(err)
}

func (t *sqliteTx) UpdateRedemption(ctx context.Context, rec ledger.RedemptionRecord) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE redemptions SET status = ?, redeemed_at = ? WHERE id = ?`,
		rec.Status, nullTime(rec.RedeemedAt), rec.ID)
	if err != nil {
		return mapStoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrRedemptionNotFound
	}
	return nil
}

// =============================================================================
// ROW SCANNING / HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var (
		a         ledger.Account
		createdAt string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Balance, &createdAt)
	if err == sql.ErrNoRows {
		return a, ledger.ErrAccountNotFound
	}
	if err != nil {
		return a, mapStoreError(err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return a, nil
}

func scanItem(row rowScanner) (ledger.RewardItem, error) {
	var (
		item      ledger.RewardItem
		stock     sql.NullInt64
		createdAt string
		updatedAt string
	)
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price,
		&stock, &item.Active, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return item, ledger.ErrItemNotFound
	}
	if err != nil {
		return item, mapStoreError(err)
	}
	if stock.Valid {
		v := stock.Int64
		item.Stock = &v
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	item.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return item, nil
}

func scanRedemption(row rowScanner) (ledger.RedemptionRecord, error) {
	var (
		rec        ledger.RedemptionRecord
		createdAt  string
		redeemedAt sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.AccountID, &rec.ItemID, &rec.ItemName,
		&rec.Price, &rec.Status, &createdAt, &redeemedAt)
	if err == sql.ErrNoRows {
		return rec, ledger.ErrRedemptionNotFound
	}
	if err != nil {
		return rec, mapStoreError(err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if redeemedAt.Valid {
		at, _ := time.Parse(time.RFC3339Nano, redeemedAt.String)
		rec.RedeemedAt = &at
	}
	return rec, nil
}

// timeLayout keeps fixed-width nanoseconds: RFC3339Nano trims trailing
// zeros, which breaks lexicographic ORDER BY and range comparisons on the
// stored strings. RFC3339Nano still parses this layout.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// mapStoreError converts driver-level failures into the domain taxonomy.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if isBusyError(err) {
		return fmt.Errorf("%w: %v", ledger.ErrContention, err)
	}
	return err
}
