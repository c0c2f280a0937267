/*
Package ledger provides the Kabayan Points ledger engine.

PURPOSE:
  This package contains the core types and operations for managing Kabayan
  Points: awarding points for actions, enforcing per-action idempotence and
  time-based cooldowns, and redeeming catalog items against balance and
  stock. Every state transition is a single atomic unit against the Store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: a user with a role and a point balance
  - RewardItem: a redeemable catalog item with price and optional stock
  - LedgerEntry: an immutable record of one award or spend
  - RedemptionRecord: the fulfillment record produced by a redemption
  - ActionKey/CooldownKey: the idempotence and cooldown identifiers

DESIGN PRINCIPLES:
  1. Immutability: ledger entries are never modified, only appended
  2. Atomicity: every engine operation is all-or-nothing (see engine.go)
  3. Type Safety: strong typing for IDs prevents mixing account/item IDs
  4. Auditability: balance is explainable by replaying the entry log

USAGE:
  engine := ledger.NewEngine(store)
  entry, err := engine.AwardOnce(ctx, accountID, ledger.NewsReadKey("42"), 10)

SEE ALSO:
  - engine.go: The four public operations and the role gate
  - store.go:  Persistence contract the engine runs against
  - errors.go: Error taxonomy
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type ItemID string
type EntryID string
type RedemptionID string

// ActionKey identifies one distinct rewardable action instance. For
// idempotent actions it must be globally unique per instance (it embeds the
// content id), and at most one ledger entry per (AccountID, ActionKey) may
// ever exist.
type ActionKey string

// CooldownKey identifies a time-gated reward. Unlike ActionKey, a cooldown
// key is reused across claims; the gate is the elapsed time since the last
// successful claim.
type CooldownKey string

// =============================================================================
// ACCOUNT
// =============================================================================

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account holds identity, role, and the current point balance.
//
// INVARIANT: Balance >= 0 at all times. A redemption that would make it
// negative is rejected, never clamped.
//
// Lifecycle: created at signup with Balance = 0, mutated only by engine
// operations, never deleted by this subsystem.
type Account struct {
	ID      AccountID
	Name    string
	Role    Role
	Balance int64

	// Last successful claim timestamps for the two well-known cooldowns,
	// surfaced for display. Nil means never claimed.
	LastDailyCheckin *time.Time
	LastWeeklyQuiz   *time.Time

	CreatedAt time.Time
}

// =============================================================================
// REWARD CATALOG
// =============================================================================

// RewardItem is a redeemable catalog item.
//
// INVARIANT: Stock, if non-nil, never goes negative; it is decremented only
// on successful redemption.
type RewardItem struct {
	ID          ItemID
	Name        string
	Description string
	Price       int64  // Kabayan Points, positive
	Stock       *int64 // nil = unlimited
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SoldOut reports whether the item has tracked stock and none left.
func (i RewardItem) SoldOut() bool {
	return i.Stock != nil && *i.Stock <= 0
}

// =============================================================================
// LEDGER ENTRY - Immutable record of one award or spend
// =============================================================================

// LedgerEntry records one balance change. Positive Amount = award,
// negative = spend. Append-only: entries are never updated or deleted.
type LedgerEntry struct {
	ID        EntryID
	AccountID AccountID
	ActionKey ActionKey
	Amount    int64
	Reason    string
	CreatedAt time.Time
}

// =============================================================================
// REDEMPTION RECORD
// =============================================================================

type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionRedeemed RedemptionStatus = "redeemed"
)

// RedemptionRecord is created by Redeem with status pending and transitioned
// to redeemed only by an admin-authorized MarkRedeemed.
type RedemptionRecord struct {
	ID         RedemptionID
	AccountID  AccountID
	ItemID     ItemID
	ItemName   string
	Price      int64
	Status     RedemptionStatus
	CreatedAt  time.Time
	RedeemedAt *time.Time
}

// =============================================================================
// LEADERBOARD
// =============================================================================

// LeaderboardRow aggregates points earned (positive entries only) per
// account over a window. Produced by store queries, consumed by the API.
type LeaderboardRow struct {
	AccountID AccountID
	Name      string
	Earned    int64
}
