// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/neighborly/points-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	accounts     map[ledger.UserID]*ledger.Account
	transactions []ledger.Transaction
	idempotency  map[string]ledger.TransactionID
	nextID       ledger.TransactionID
	clock        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[ledger.UserID]*ledger.Account),
		idempotency: make(map[string]ledger.TransactionID),
		nextID:      1,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Tests use this to make account
// creation order and period windows deterministic.
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

func (m *Memory) Append(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

func (m *Memory) appendLocked(tx ledger.Transaction) (ledger.Transaction, error) {
	if tx.IdempotencyKey != "" {
		if _, exists := m.idempotency[tx.IdempotencyKey]; exists {
			return ledger.Transaction{}, ledger.ErrDuplicateOperation
		}
	}

	tx.ID = m.nextID
	m.nextID++
	tx.CreatedAt = m.clock()
	m.transactions = append(m.transactions, tx)

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = tx.ID
	}
	return tx, nil
}

func (m *Memory) TransactionByKey(_ context.Context, key string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.idempotency[key]
	if !ok {
		return nil, nil
	}
	for i := range m.transactions {
		if m.transactions[i].ID == id {
			tx := m.transactions[i]
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *Memory) Account(_ context.Context, user ledger.UserID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acct, ok := m.accounts[user]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

func (m *Memory) EnsureAccount(_ context.Context, user ledger.UserID) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureAccountLocked(user), nil
}

func (m *Memory) ensureAccountLocked(user ledger.UserID) *ledger.Account {
	acct, ok := m.accounts[user]
	if !ok {
		acct = &ledger.Account{UserID: user, CreatedAt: m.clock()}
		m.accounts[user] = acct
	}
	cp := *acct
	return &cp
}

func (m *Memory) AdjustBalance(_ context.Context, user ledger.UserID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[user]
	if !ok {
		return ledger.ErrUnknownAccount
	}
	acct.Balance += delta
	return nil
}

func (m *Memory) History(_ context.Context, user ledger.UserID, limit int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for i := len(m.transactions) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		tx := m.transactions[i]
		if tx.Credits(user) || tx.Debits(user) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) Transactions(_ context.Context) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Transaction, len(m.transactions))
	copy(result, m.transactions)
	return result, nil
}

func (m *Memory) Accounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Account, 0, len(m.accounts))
	for _, acct := range m.accounts {
		result = append(result, *acct)
	}
	return result, nil
}

func (m *Memory) CreditsSince(_ context.Context, since time.Time) (map[ledger.UserID]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	credits := make(map[ledger.UserID]int64)
	for _, tx := range m.transactions {
		if tx.To != nil && !tx.CreatedAt.Before(since) {
			credits[*tx.To] += tx.Amount
		}
	}
	return credits, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a view of the store, simulated with a
// snapshot + rollback on error. The store mutex is held for the duration,
// which is fine because per-account serialization lives in the Ledger and
// each unit is a handful of map operations.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts     map[ledger.UserID]*ledger.Account
	transactions []ledger.Transaction
	idempotency  map[string]ledger.TransactionID
	nextID       ledger.TransactionID
}

func (tm *TxMemory) snapshot() memorySnapshot {
	accounts := make(map[ledger.UserID]*ledger.Account, len(tm.accounts))
	for k, v := range tm.accounts {
		cp := *v
		accounts[k] = &cp
	}
	txs := make([]ledger.Transaction, len(tm.transactions))
	copy(txs, tm.transactions)
	idemp := make(map[string]ledger.TransactionID, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idemp[k] = v
	}
	return memorySnapshot{accounts: accounts, transactions: txs, idempotency: idemp, nextID: tm.nextID}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.accounts = s.accounts
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
	tm.nextID = s.nextID
}

// txMemoryView calls the parent's *Locked methods directly: the parent mutex
// is already held by WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	return tv.parent.appendLocked(tx)
}

func (tv *txMemoryView) TransactionByKey(_ context.Context, key string) (*ledger.Transaction, error) {
	id, ok := tv.parent.idempotency[key]
	if !ok {
		return nil, nil
	}
	for i := range tv.parent.transactions {
		if tv.parent.transactions[i].ID == id {
			tx := tv.parent.transactions[i]
			return &tx, nil
		}
	}
	return nil, nil
}

func (tv *txMemoryView) Account(_ context.Context, user ledger.UserID) (*ledger.Account, error) {
	acct, ok := tv.parent.accounts[user]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

func (tv *txMemoryView) EnsureAccount(_ context.Context, user ledger.UserID) (*ledger.Account, error) {
	return tv.parent.ensureAccountLocked(user), nil
}

func (tv *txMemoryView) AdjustBalance(_ context.Context, user ledger.UserID, delta int64) error {
	acct, ok := tv.parent.accounts[user]
	if !ok {
		return ledger.ErrUnknownAccount
	}
	acct.Balance += delta
	return nil
}

func (tv *txMemoryView) History(_ context.Context, user ledger.UserID, limit int) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for i := len(tv.parent.transactions) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		tx := tv.parent.transactions[i]
		if tx.Credits(user) || tx.Debits(user) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (tv *txMemoryView) Transactions(_ context.Context) ([]ledger.Transaction, error) {
	txs := make([]ledger.Transaction, len(tv.parent.transactions))
	copy(txs, tv.parent.transactions)
	return txs, nil
}

func (tv *txMemoryView) Accounts(_ context.Context) ([]ledger.Account, error) {
	result := make([]ledger.Account, 0, len(tv.parent.accounts))
	for _, acct := range tv.parent.accounts {
		result = append(result, *acct)
	}
	return result, nil
}

func (tv *txMemoryView) CreditsSince(_ context.Context, since time.Time) (map[ledger.UserID]int64, error) {
	credits := make(map[ledger.UserID]int64)
	for _, tx := range tv.parent.transactions {
		if tx.To != nil && !tx.CreatedAt.Before(since) {
			credits[*tx.To] += tx.Amount
		}
	}
	return credits, nil
}
