package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/kabayanhub/points-engine/auth"
	"github.com/kabayanhub/points-engine/ledger"
)

// =============================================================================
// AUTH STORE (auth.Store interface)
// =============================================================================

var _ auth.Store = (*Store)(nil)

// CreateAccount inserts a new account. The first account ever inserted
// becomes admin regardless of the requested role; the decision happens
// inside the INSERT itself so two racing first signups cannot both win the
// bootstrap. Returns auth.ErrNameTaken when the username is already in use.
func (s *Store) CreateAccount(ctx context.Context, account ledger.Account, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, password_hash, role, balance, created_at)
		VALUES (?, ?, ?,
			CASE WHEN (SELECT COUNT(*) FROM accounts) = 0 THEN 'admin' ELSE ? END,
			?, ?)`,
		account.ID, account.Name, passwordHash, account.Role, account.Balance,
		formatTime(account.CreatedAt))
	if isUniqueConstraintError(err) {
		return auth.ErrNameTaken
	}
	return mapStoreError(err)
}

// AccountByName returns the account and its password hash. Unknown names
// report auth.ErrInvalidCredentials so login can't probe for usernames.
func (s *Store) AccountByName(ctx context.Context, name string) (ledger.Account, string, error) {
	var (
		a         ledger.Account
		hash      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, balance, password_hash, created_at
		 FROM accounts WHERE name = ?`, name).
		Scan(&a.ID, &a.Name, &a.Role, &a.Balance, &hash, &createdAt)
	if err == sql.ErrNoRows {
		return ledger.Account{}, "", auth.ErrInvalidCredentials
	}
	if err != nil {
		return ledger.Account{}, "", mapStoreError(err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return a, hash, nil
}

// GetAccount returns an account with its well-known cooldown timestamps
// populated for display.
func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, name, role, balance, created_at FROM accounts WHERE id = ?`, id))
	if err != nil {
		return ledger.Account{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cooldown_key, last_claim_at FROM cooldowns
		 WHERE account_id = ? AND cooldown_key IN (?, ?)`,
		id, ledger.CooldownDailyCheckin, ledger.CooldownWeeklyQuiz)
	if err != nil {
		return ledger.Account{}, mapStoreError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return ledger.Account{}, err
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		switch ledger.CooldownKey(key) {
		case ledger.CooldownDailyCheckin:
			a.LastDailyCheckin = &at
		case ledger.CooldownWeeklyQuiz:
			a.LastWeeklyQuiz = &at
		}
	}
	return a, rows.Err()
}

// =============================================================================
// SESSIONS
// =============================================================================

func (s *Store) CreateSession(ctx context.Context, sess auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, account_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		sess.Token, sess.AccountID, formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt))
	return mapStoreError(err)
}

func (s *Store) SessionByToken(ctx context.Context, token string) (auth.Session, error) {
	var (
		sess      auth.Session
		createdAt string
		expiresAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, account_id, created_at, expires_at FROM sessions WHERE token = ?`,
		token).Scan(&sess.Token, &sess.AccountID, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return auth.Session{}, auth.ErrNoSession
	}
	if err != nil {
		return auth.Session{}, mapStoreError(err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return mapStoreError(err)
}

// DeleteExpiredSessions removes sessions whose expiry is before now.
// Timestamps are stored fixed-width, so the string comparison orders
// chronologically.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, mapStoreError(err)
	}
	return res.RowsAffected()
}

// PromoteAccount sets an account's role. Operational helper for bootstrap
// and tests; regular role changes go through an admin surface.
func (s *Store) PromoteAccount(ctx context.Context, id ledger.AccountID, role ledger.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET role = ? WHERE id = ?`, role, id)
	if err != nil {
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
