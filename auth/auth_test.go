package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabayanhub/points-engine/auth"
	"github.com/kabayanhub/points-engine/ledger"
	"github.com/kabayanhub/points-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestAuth(t *testing.T) *auth.Service {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return auth.NewService(store)
}

// =============================================================================
// SIGNUP
// =============================================================================

func TestSignup_FirstAccount_BecomesAdmin(t *testing.T) {
	// GIVEN: An empty deployment
	// WHEN: The first account signs up, then a second
	// THEN: The first is admin (bootstrap), the second a regular user

	svc := newTestAuth(t)
	ctx := context.Background()

	first, sess, err := svc.Signup(ctx, "maria", "mahal-kita-123")
	require.NoError(t, err)
	assert.Equal(t, ledger.RoleAdmin, first.Role)
	assert.Equal(t, int64(0), first.Balance)
	assert.NotEmpty(t, sess.Token)

	second, _, err := svc.Signup(ctx, "jose", "kumusta-ka-456")
	require.NoError(t, err)
	assert.Equal(t, ledger.RoleUser, second.Role)
}

func TestSignup_DuplicateName_Rejected(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "maria", "mahal-kita-123")
	require.NoError(t, err)

	_, _, err = svc.Signup(ctx, "maria", "another-pass-789")

	assert.ErrorIs(t, err, auth.ErrNameTaken)
}

func TestSignup_Validation(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "ab", "long-enough-pass")
	assert.ErrorIs(t, err, auth.ErrInvalidInput, "short username")

	_, _, err = svc.Signup(ctx, "maria", "short")
	assert.ErrorIs(t, err, auth.ErrInvalidInput, "short password")

	_, _, err = svc.Signup(ctx, "   ", "long-enough-pass")
	assert.ErrorIs(t, err, auth.ErrInvalidInput, "whitespace username")
}

// =============================================================================
// LOGIN / RESOLVE / LOGOUT
// =============================================================================

func TestLogin_CorrectPassword_IssuesSession(t *testing.T) {
	// GIVEN: A signed-up account
	// WHEN: Logging in with the right password
	// THEN: A fresh token resolves back to the account

	svc := newTestAuth(t)
	ctx := context.Background()

	created, _, err := svc.Signup(ctx, "maria", "mahal-kita-123")
	require.NoError(t, err)

	account, sess, err := svc.Login(ctx, "maria", "mahal-kita-123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, account.ID)

	resolved, err := svc.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
}

func TestLogin_WrongPassword_Rejected(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "maria", "mahal-kita-123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "maria", "wrong-password")

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_UnknownName_SameErrorAsWrongPassword(t *testing.T) {
	// Unknown usernames and wrong passwords are indistinguishable so login
	// can't be used to probe for accounts.
	svc := newTestAuth(t)

	_, _, err := svc.Login(context.Background(), "ghost", "whatever-pass")

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestResolve_UnknownToken_NoSession(t *testing.T) {
	svc := newTestAuth(t)

	_, err := svc.Resolve(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, auth.ErrNoSession)

	_, err = svc.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrNoSession)
}

func TestLogout_InvalidatesToken(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	_, sess, err := svc.Signup(ctx, "maria", "mahal-kita-123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.Token))

	_, err = svc.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrNoSession)
}

func TestSessions_AreIndependent(t *testing.T) {
	// GIVEN: Two sessions for the same account (signup + login)
	// WHEN: One is logged out
	// THEN: The other still resolves

	svc := newTestAuth(t)
	ctx := context.Background()

	_, s1, err := svc.Signup(ctx, "maria", "mahal-kita-123")
	require.NoError(t, err)
	_, s2, err := svc.Login(ctx, "maria", "mahal-kita-123")
	require.NoError(t, err)
	require.NotEqual(t, s1.Token, s2.Token)

	require.NoError(t, svc.Logout(ctx, s1.Token))

	_, err = svc.Resolve(ctx, s1.Token)
	assert.ErrorIs(t, err, auth.ErrNoSession)
	_, err = svc.Resolve(ctx, s2.Token)
	assert.NoError(t, err)
}
