// Package store provides an in-memory ledger.Store implementation for
// tests and development.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/kabayanhub/points-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.Store. WithTx holds the store mutex for the
// whole transaction, so transactions are fully serialized: the strongest
// isolation, trivially satisfying the engine's atomicity contract.
type Memory struct {
	mu          sync.Mutex
	accounts    map[ledger.AccountID]ledger.Account
	items       map[ledger.ItemID]ledger.RewardItem
	entries     []ledger.LedgerEntry
	entryKeys   map[entryKey]bool
	cooldowns   map[cooldownKey]time.Time
	redemptions map[ledger.RedemptionID]ledger.RedemptionRecord
}

type entryKey struct {
	AccountID ledger.AccountID
	ActionKey ledger.ActionKey
}

type cooldownKey struct {
	AccountID ledger.AccountID
	Key       ledger.CooldownKey
}

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[ledger.AccountID]ledger.Account),
		items:       make(map[ledger.ItemID]ledger.RewardItem),
		entryKeys:   make(map[entryKey]bool),
		cooldowns:   make(map[cooldownKey]time.Time),
		redemptions: make(map[ledger.RedemptionID]ledger.RedemptionRecord),
	}
}

// SeedAccount installs an account directly, bypassing the engine. Test and
// bootstrap helper; balance mutation still only happens through WithTx.
func (m *Memory) SeedAccount(a ledger.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
}

// SeedItem installs a catalog item directly.
func (m *Memory) SeedItem(item ledger.RewardItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

// Account returns a copy of the stored account, for assertions.
func (m *Memory) Account(id ledger.AccountID) (ledger.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	return a, ok
}

// Item returns a copy of the stored item, for assertions.
func (m *Memory) Item(id ledger.ItemID) (ledger.RewardItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.items[id]
	return i, ok
}

// Entries returns all ledger entries for an account, oldest first.
func (m *Memory) Entries(id ledger.AccountID) []ledger.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == id {
			out = append(out, e)
		}
	}
	return out
}

// WithTx executes fn under the store mutex with snapshot/rollback: if fn
// returns an error, every write it made is undone.
func (m *Memory) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memoryTx{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		accounts:    make(map[ledger.AccountID]ledger.Account, len(m.accounts)),
		items:       make(map[ledger.ItemID]ledger.RewardItem, len(m.items)),
		entries:     append([]ledger.LedgerEntry(nil), m.entries...),
		entryKeys:   make(map[entryKey]bool, len(m.entryKeys)),
		cooldowns:   make(map[cooldownKey]time.Time, len(m.cooldowns)),
		redemptions: make(map[ledger.RedemptionID]ledger.RedemptionRecord, len(m.redemptions)),
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.items {
		s.items[k] = v
	}
	for k, v := range m.entryKeys {
		s.entryKeys[k] = v
	}
	for k, v := range m.cooldowns {
		s.cooldowns[k] = v
	}
	for k, v := range m.redemptions {
		s.redemptions[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.accounts = s.accounts
	m.items = s.items
	m.entries = s.entries
	m.entryKeys = s.entryKeys
	m.cooldowns = s.cooldowns
	m.redemptions = s.redemptions
}

type memorySnapshot struct {
	accounts    map[ledger.AccountID]ledger.Account
	items       map[ledger.ItemID]ledger.RewardItem
	entries     []ledger.LedgerEntry
	entryKeys   map[entryKey]bool
	cooldowns   map[cooldownKey]time.Time
	redemptions map[ledger.RedemptionID]ledger.RedemptionRecord
}

// =============================================================================
// TX VIEW
// =============================================================================

type memoryTx struct {
	store *Memory
}

var _ ledger.Tx = (*memoryTx)(nil)

func (t *memoryTx) GetAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	a, ok := t.store.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (t *memoryTx) AddBalance(_ context.Context, id ledger.AccountID, delta int64) error {
	a, ok := t.store.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if a.Balance+delta < 0 {
		return &ledger.InsufficientBalanceError{AccountID: id, Available: a.Balance, Required: -delta}
	}
	a.Balance += delta
	t.store.accounts[id] = a
	return nil
}

func (t *memoryTx) GetItem(_ context.Context, id ledger.ItemID) (ledger.RewardItem, error) {
	item, ok := t.store.items[id]
	if !ok {
		return ledger.RewardItem{}, ledger.ErrItemNotFound
	}
	return item, nil
}

func (t *memoryTx) PutItem(_ context.Context, item ledger.RewardItem) error {
	t.store.items[item.ID] = item
	return nil
}

func (t *memoryTx) DecrementStock(_ context.Context, id ledger.ItemID) error {
	item, ok := t.store.items[id]
	if !ok {
		return ledger.ErrItemNotFound
	}
	if item.Stock == nil {
		return nil
	}
	if *item.Stock <= 0 {
		return ledger.ErrSoldOut
	}
	stock := *item.Stock - 1
	item.Stock = &stock
	t.store.items[id] = item
	return nil
}

func (t *memoryTx) EntryExists(_ context.Context, id ledger.AccountID, key ledger.ActionKey) (bool, error) {
	return t.store.entryKeys[entryKey{AccountID: id, ActionKey: key}], nil
}

func (t *memoryTx) AppendEntry(_ context.Context, entry ledger.LedgerEntry) error {
	k := entryKey{AccountID: entry.AccountID, ActionKey: entry.ActionKey}
	if t.store.entryKeys[k] {
		return ledger.ErrAlreadyClaimed
	}
	t.store.entryKeys[k] = true
	t.store.entries = append(t.store.entries, entry)
	return nil
}

func (t *memoryTx) LastClaim(_ context.Context, id ledger.AccountID, key ledger.CooldownKey) (time.Time, bool, error) {
	at, ok := t.store.cooldowns[cooldownKey{AccountID: id, Key: key}]
	return at, ok, nil
}

func (t *memoryTx) RecordClaim(_ context.Context, id ledger.AccountID, key ledger.CooldownKey, at time.Time) error {
	t.store.cooldowns[cooldownKey{AccountID: id, Key: key}] = at
	return nil
}

func (t *memoryTx) GetRedemption(_ context.Context, id ledger.RedemptionID) (ledger.RedemptionRecord, error) {
	rec, ok := t.store.redemptions[id]
	if !ok {
		return ledger.RedemptionRecord{}, ledger.ErrRedemptionNotFound
	}
	return rec, nil
}

func (t *memoryTx) InsertRedemption(_ context.Context, rec ledger.RedemptionRecord) error {
	t.store.redemptions[rec.ID] = rec
	return nil
}

func (t *memoryTx) UpdateRedemption(_ context.Context, rec ledger.RedemptionRecord) error {
	if _, ok := t.store.redemptions[rec.ID]; !ok {
		return ledger.ErrRedemptionNotFound
	}
	t.store.redemptions[rec.ID] = rec
	return nil
}
