/*
Package auth is the identity boundary of the points engine.

PURPOSE:
  Supplies the verified account id that the ledger engine trusts. Handles
  signup (accounts start with balance 0 and role user), login/logout with
  opaque bearer tokens, and per-request resolution of token to account.

AUTHORIZATION NOTE:
  The role resolved here is for display and transport-level gating only.
  Every admin-only engine operation re-reads the actor's role inside its
  own transaction; a stale session can never authorize a mutation.

SEE ALSO:
  - middleware.go: HTTP middleware resolving the bearer token
  - context.go:    request-scoped identity
  - purger.go:     background sweep of expired sessions
*/
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kabayanhub/points-engine/ledger"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredentials is returned on unknown username or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNameTaken is returned when the signup username already exists.
	ErrNameTaken = errors.New("username already taken")

	// ErrNoSession is returned when a token is missing, unknown, or expired.
	ErrNoSession = errors.New("no valid session")

	// ErrInvalidInput is returned on signup validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// TYPES
// =============================================================================

// Session is a server-side bearer token with expiry.
type Session struct {
	Token     string
	AccountID ledger.AccountID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is the persistence the identity boundary needs. Implemented by
// store/sqlite.
type Store interface {
	// CreateAccount inserts a new account with its password hash.
	// Returns ErrNameTaken if the username exists. The very first account
	// inserted becomes admin regardless of the requested role, and the
	// decision must be atomic with the insert: concurrent first signups may
	// not both bootstrap as admin.
	CreateAccount(ctx context.Context, account ledger.Account, passwordHash string) error

	// AccountByName returns the account and its password hash, or
	// ErrInvalidCredentials if the name is unknown.
	AccountByName(ctx context.Context, name string) (ledger.Account, string, error)

	// GetAccount returns the account or ledger.ErrAccountNotFound.
	GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error)

	CreateSession(ctx context.Context, s Session) error
	SessionByToken(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error

	// DeleteExpiredSessions removes every session whose expiry is before
	// now and reports how many were removed. Used by SessionPurger.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// =============================================================================
// SERVICE
// =============================================================================

const (
	sessionTTL    = 30 * 24 * time.Hour
	tokenBytes    = 32
	minNameLen    = 3
	minPasswdLen  = 8
	bcryptWorkCfg = bcrypt.DefaultCost
)

// Service implements signup, login, and session resolution.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Signup creates an account with balance 0. The very first account becomes
// admin so a fresh deployment can be bootstrapped without manual SQL; the
// store assigns that role atomically with the insert.
func (s *Service) Signup(ctx context.Context, name, password string) (ledger.Account, Session, error) {
	name = strings.TrimSpace(name)
	if len(name) < minNameLen {
		return ledger.Account{}, Session{}, fmt.Errorf("%w: username must be at least %d characters", ErrInvalidInput, minNameLen)
	}
	if len(password) < minPasswdLen {
		return ledger.Account{}, Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswdLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptWorkCfg)
	if err != nil {
		return ledger.Account{}, Session{}, err
	}

	account := ledger.Account{
		ID:        ledger.AccountID(uuid.NewString()),
		Name:      name,
		Role:      ledger.RoleUser,
		Balance:   0,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateAccount(ctx, account, string(hash)); err != nil {
		return ledger.Account{}, Session{}, err
	}

	// Re-read to report the role the store actually assigned.
	account, err = s.store.GetAccount(ctx, account.ID)
	if err != nil {
		return ledger.Account{}, Session{}, err
	}

	sess, err := s.newSession(ctx, account.ID)
	if err != nil {
		return ledger.Account{}, Session{}, err
	}
	return account, sess, nil
}

// Login verifies the password and issues a new session token.
func (s *Service) Login(ctx context.Context, name, password string) (ledger.Account, Session, error) {
	account, hash, err := s.store.AccountByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return ledger.Account{}, Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ledger.Account{}, Session{}, ErrInvalidCredentials
	}

	sess, err := s.newSession(ctx, account.ID)
	if err != nil {
		return ledger.Account{}, Session{}, err
	}
	return account, sess, nil
}

// Logout invalidates the token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// Resolve maps a bearer token to the owning account.
func (s *Service) Resolve(ctx context.Context, token string) (ledger.Account, error) {
	if token == "" {
		return ledger.Account{}, ErrNoSession
	}
	sess, err := s.store.SessionByToken(ctx, token)
	if err != nil {
		return ledger.Account{}, err
	}
	if s.now().After(sess.ExpiresAt) {
		// Expired sessions are removed lazily on first use.
		_ = s.store.DeleteSession(ctx, token)
		return ledger.Account{}, ErrNoSession
	}
	return s.store.GetAccount(ctx, sess.AccountID)
}

func (s *Service) newSession(ctx context.Context, id ledger.AccountID) (Session, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, err
	}
	now := s.now()
	sess := Session{
		Token:     hex.EncodeToString(buf),
		AccountID: id,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}
