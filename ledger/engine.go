/*
engine.go - The ledger engine operations

PURPOSE:
  Implements the four public operations of the points ledger plus the
  admin catalog operations, each as a single atomic transaction:

    AwardOnce         award points exactly once per (account, action key)
    AwardWithCooldown award points gated by elapsed time since last claim
    Redeem            exchange points for a catalog item against stock
    MarkRedeemed      admin-only fulfillment of a pending redemption

GUARANTEES:
  - Under concurrent AwardOnce calls with the same (account, key), exactly
    one succeeds; all others observe ErrAlreadyClaimed. The existence check
    and the write happen inside the same transaction, and the store's
    unique constraint backstops the check.
  - Two concurrent redemptions of the last unit of stock: at most one
    succeeds; the other observes ErrSoldOut or ErrInsufficientBalance
    consistently with the post-state. No oversell, no negative balance.
  - No partial effects are ever visible: balance change, ledger entry,
    stock decrement, and redemption record commit together or not at all.

COOLDOWN POLICY:
  Cooldowns are elapsed-duration, measured from the previous successful
  claim, for every cooldown type: "daily" means every 24 elapsed hours, not
  once per calendar day. A claim at exactly last+duration succeeds. This is
  a deliberate, uniform choice; see DESIGN.md.

ROLE GATE:
  Admin-only operations (MarkRedeemed, catalog CRUD) re-read the actor's
  role inside the same transaction as the mutation. A role cached at login
  time is display-only and never authorizes anything.

SEE ALSO:
  - store.go:  the persistence contract
  - errors.go: the error taxonomy
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine executes ledger operations against a Store.
type Engine struct {
	store Store
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Used by tests to pin
// cooldown boundaries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// AWARD ONCE - Permanent per-action idempotence
// =============================================================================

// AwardOnce atomically awards amount points for the action identified by
// key, at most once per (accountID, key) ever.
//
// Failure modes: ErrAccountNotFound, ErrAlreadyClaimed, ErrInvalidAmount.
func (e *Engine) AwardOnce(ctx context.Context, accountID AccountID, key ActionKey, amount int64) (LedgerEntry, error) {
	if amount <= 0 {
		return LedgerEntry{}, ErrInvalidAmount
	}

	var entry LedgerEntry
	err := e.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}

		exists, err := tx.EntryExists(ctx, accountID, key)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyClaimed
		}

		entry = LedgerEntry{
			ID:        EntryID(uuid.NewString()),
			AccountID: accountID,
			ActionKey: key,
			Amount:    amount,
			Reason:    fmt.Sprintf("award for %s", key),
			CreatedAt: e.now(),
		}
		if err := tx.AppendEntry(ctx, entry); err != nil {
			return err
		}
		return tx.AddBalance(ctx, accountID, amount)
	})
	if err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

// =============================================================================
// AWARD WITH COOLDOWN - Time-windowed idempotence
// =============================================================================

// AwardWithCooldown atomically awards amount points for the time-gated
// reward identified by key, provided at least cooldown has elapsed since
// the previous successful claim. The window is measured from the previous
// claim's timestamp, never from a calendar boundary.
//
// Failure modes: ErrAccountNotFound, ErrInvalidAmount, and CooldownError
// (unwraps to ErrCooldownActive) carrying the remaining wait.
func (e *Engine) AwardWithCooldown(ctx context.Context, accountID AccountID, key CooldownKey, amount int64, cooldown time.Duration) (LedgerEntry, error) {
	if amount <= 0 {
		return LedgerEntry{}, ErrInvalidAmount
	}

	var entry LedgerEntry
	err := e.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}

		now := e.now()
		last, claimed, err := tx.LastClaim(ctx, accountID, key)
		if err != nil {
			return err
		}
		if claimed {
			if elapsed := now.Sub(last); elapsed < cooldown {
				return &CooldownError{Key: key, Remaining: cooldown - elapsed}
			}
		}

		// The entry key embeds the claim time so repeated claims of the
		// same cooldown key never collide with the (account, key) unique
		// constraint reserved for permanently idempotent actions.
		entry = LedgerEntry{
			ID:        EntryID(uuid.NewString()),
			AccountID: accountID,
			ActionKey: ActionKey(fmt.Sprintf("%s:%d", key, now.UnixNano())),
			Amount:    amount,
			Reason:    fmt.Sprintf("award for %s", key),
			CreatedAt: now,
		}
		if err := tx.AppendEntry(ctx, entry); err != nil {
			return err
		}
		if err := tx.RecordClaim(ctx, accountID, key, now); err != nil {
			return err
		}
		return tx.AddBalance(ctx, accountID, amount)
	})
	if err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

// =============================================================================
// REDEEM - Exchange points for a catalog item
// =============================================================================

// Redeem atomically checks stock and balance, then applies all four
// effects as one unit: balance debit, stock decrement (if tracked),
// negative ledger entry, and a pending redemption record.
//
// Redemptions are not idempotent per item: an account may redeem the same
// item repeatedly while balance and stock allow.
//
// Failure modes: ErrAccountNotFound, ErrItemNotFound (also reported for
// deactivated items), ErrSoldOut, and InsufficientBalanceError (unwraps to
// ErrInsufficientBalance). Stock is checked before balance: an exhausted
// item reports ErrSoldOut even when the caller also lacks the points.
func (e *Engine) Redeem(ctx context.Context, accountID AccountID, itemID ItemID) (RedemptionRecord, error) {
	var rec RedemptionRecord
	err := e.store.WithTx(ctx, func(tx Tx) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}

		// Deactivated items disappear from the redeemable surface entirely,
		// even for callers that remember the id.
		if !item.Active {
			return ErrItemNotFound
		}
		if item.SoldOut() {
			return ErrSoldOut
		}
		if account.Balance < item.Price {
			return &InsufficientBalanceError{
				AccountID: accountID,
				Available: account.Balance,
				Required:  item.Price,
			}
		}

		now := e.now()
		rec = RedemptionRecord{
			ID:        RedemptionID(uuid.NewString()),
			AccountID: accountID,
			ItemID:    itemID,
			ItemName:  item.Name,
			Price:     item.Price,
			Status:    RedemptionPending,
			CreatedAt: now,
		}

		if err := tx.AddBalance(ctx, accountID, -item.Price); err != nil {
			return err
		}
		if err := tx.DecrementStock(ctx, itemID); err != nil {
			return err
		}
		entry := LedgerEntry{
			ID:        EntryID(uuid.NewString()),
			AccountID: accountID,
			ActionKey: MarketRedeemKey(itemID, rec.ID),
			Amount:    -item.Price,
			Reason:    fmt.Sprintf("redeemed %s", item.Name),
			CreatedAt: now,
		}
		if err := tx.AppendEntry(ctx, entry); err != nil {
			return err
		}
		return tx.InsertRedemption(ctx, rec)
	})
	if err != nil {
		return RedemptionRecord{}, err
	}
	return rec, nil
}

// =============================================================================
// MARK REDEEMED - Admin fulfillment
// =============================================================================

// MarkRedeemed transitions a pending redemption to redeemed. The actor's
// admin role is read fresh inside the transaction.
//
// Failure modes: ErrAccountNotFound, ErrForbidden, ErrRedemptionNotFound,
// ErrInvalidState.
func (e *Engine) MarkRedeemed(ctx context.Context, redemptionID RedemptionID, actorID AccountID) (RedemptionRecord, error) {
	var rec RedemptionRecord
	err := e.store.WithTx(ctx, func(tx Tx) error {
		if err := requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}

		var err error
		rec, err = tx.GetRedemption(ctx, redemptionID)
		if err != nil {
			return err
		}
		if rec.Status != RedemptionPending {
			return ErrInvalidState
		}

		now := e.now()
		rec.Status = RedemptionRedeemed
		rec.RedeemedAt = &now
		return tx.UpdateRedemption(ctx, rec)
	})
	if err != nil {
		return RedemptionRecord{}, err
	}
	return rec, nil
}

// =============================================================================
// CATALOG ADMIN - Create/update reward items behind the role gate
// =============================================================================

// CreateItem adds a catalog item. Admin only.
func (e *Engine) CreateItem(ctx context.Context, actorID AccountID, item RewardItem) (RewardItem, error) {
	if item.Price <= 0 {
		return RewardItem{}, ErrInvalidAmount
	}
	err := e.store.WithTx(ctx, func(tx Tx) error {
		if err := requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}
		now := e.now()
		if item.ID == "" {
			item.ID = ItemID(uuid.NewString())
		}
		item.CreatedAt = now
		item.UpdatedAt = now
		return tx.PutItem(ctx, item)
	})
	if err != nil {
		return RewardItem{}, err
	}
	return item, nil
}

// UpdateItem replaces an existing catalog item's mutable fields. Admin only.
func (e *Engine) UpdateItem(ctx context.Context, actorID AccountID, item RewardItem) (RewardItem, error) {
	if item.Price <= 0 {
		return RewardItem{}, ErrInvalidAmount
	}
	err := e.store.WithTx(ctx, func(tx Tx) error {
		if err := requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}
		existing, err := tx.GetItem(ctx, item.ID)
		if err != nil {
			return err
		}
		item.CreatedAt = existing.CreatedAt
		item.UpdatedAt = e.now()
		return tx.PutItem(ctx, item)
	})
	if err != nil {
		return RewardItem{}, err
	}
	return item, nil
}

// requireAdmin reads the actor fresh and rejects non-admins. Always called
// inside the same transaction as the mutation it guards.
func requireAdmin(ctx context.Context, tx Tx, actorID AccountID) error {
	actor, err := tx.GetAccount(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != RoleAdmin {
		return ErrForbidden
	}
	return nil
}
