/*
store.go - Persistence contract the engine runs against

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never touches the database directly; it opens one atomic unit of work per
  operation via Store.WithTx and performs all reads and writes through the
  Tx view. Different implementations back this with SQLite or memory.

ATOMICITY CONTRACT:
  Everything done through a Tx commits or rolls back as one unit. No caller
  may ever observe a balance change without its ledger entry, or a stock
  decrement without its redemption record. Under concurrent transactions on
  the same account or item the store must provide at least lost-update
  protection (the SQLite implementation serializes writers; the memory
  implementation holds a mutex for the duration of WithTx).

UNIQUE CONSTRAINTS:
  AppendEntry must enforce uniqueness of (AccountID, ActionKey) at the
  store level and return ErrAlreadyClaimed on violation. This is what makes
  "check then write" safe: the check and the write land in the same
  transaction, and the constraint backstops any future call site that
  forgets the check.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - ledger/store: in-memory store for tests and development

SEE ALSO:
  - engine.go: the only consumer of this interface
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Opens atomic units of work
// =============================================================================

// Store opens atomic transactions against the backing database.
type Store interface {
	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back and the error returned unchanged; otherwise
	// it is committed. Conflicts surface as ErrContention.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// =============================================================================
// TX - Reads and writes available inside one atomic unit
// =============================================================================

// Tx is the view of the store inside one transaction. All balance and stock
// mutation in the system goes through this interface; no other component
// may write those fields directly.
type Tx interface {
	// GetAccount returns the account or ErrAccountNotFound.
	GetAccount(ctx context.Context, id AccountID) (Account, error)

	// AddBalance applies a signed delta to the account's balance.
	// Implementations must reject a resulting negative balance with
	// InsufficientBalanceError even if the engine already checked.
	AddBalance(ctx context.Context, id AccountID, delta int64) error

	// GetItem returns the catalog item or ErrItemNotFound.
	GetItem(ctx context.Context, id ItemID) (RewardItem, error)

	// PutItem inserts or replaces a catalog item.
	PutItem(ctx context.Context, item RewardItem) error

	// DecrementStock decrements tracked stock by one. Returns ErrSoldOut if
	// the item tracks stock and none remains. No-op for unlimited items.
	DecrementStock(ctx context.Context, id ItemID) error

	// EntryExists reports whether a ledger entry exists for the pair.
	EntryExists(ctx context.Context, id AccountID, key ActionKey) (bool, error)

	// AppendEntry appends a ledger entry. Returns ErrAlreadyClaimed if an
	// entry with the same (AccountID, ActionKey) already exists.
	AppendEntry(ctx context.Context, entry LedgerEntry) error

	// LastClaim returns the timestamp of the last successful claim for the
	// cooldown key, with ok=false if the account has never claimed it.
	LastClaim(ctx context.Context, id AccountID, key CooldownKey) (at time.Time, ok bool, err error)

	// RecordClaim stores now as the last successful claim for the key.
	RecordClaim(ctx context.Context, id AccountID, key CooldownKey, at time.Time) error

	// GetRedemption returns the redemption or ErrRedemptionNotFound.
	GetRedemption(ctx context.Context, id RedemptionID) (RedemptionRecord, error)

	// InsertRedemption persists a new redemption record.
	InsertRedemption(ctx context.Context, rec RedemptionRecord) error

	// UpdateRedemption replaces an existing redemption record.
	UpdateRedemption(ctx context.Context, rec RedemptionRecord) error
}
