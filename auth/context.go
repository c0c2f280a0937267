package auth

import (
	"context"

	"github.com/kabayanhub/points-engine/ledger"
)

type contextKey struct{}

// WithAccount attaches the authenticated account to the request context.
func WithAccount(ctx context.Context, account ledger.Account) context.Context {
	return context.WithValue(ctx, contextKey{}, account)
}

// FromContext returns the authenticated account, if any.
func FromContext(ctx context.Context) (ledger.Account, bool) {
	account, ok := ctx.Value(contextKey{}).(ledger.Account)
	return account, ok
}

// AccountID returns the authenticated account id, or "" if unauthenticated.
func AccountID(ctx context.Context) ledger.AccountID {
	account, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return account.ID
}
