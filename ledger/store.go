/*
store.go - Persistence interfaces for accounts and the transaction log

PURPOSE:
  Defines the boundary between the ledger engine and the database. The Store
  keeps the transaction table append-only and the balances table consistent
  with it; the Ledger decides what to write and in which order.

APPEND-ONLY CONTRACT:
  - Append() is the ONLY write to the transaction log
  - There is no Update() or Delete() on transactions. Ever.
  - Corrections are made with compensating transactions, not edits.

ATOMICITY:
  TxStore.WithTx gives the Ledger an all-or-nothing unit covering the
  balance mutations and the transaction insert. Either everything in the
  unit is persisted or nothing is — a storage failure mid-apply never
  leaves balances and the log inconsistent.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store (WAL)
  - ledger/store: in-memory store for tests and dev

SEE ALSO:
  - ledger.go: The only caller of the write methods
  - leaderboard/: Reads Accounts and CreditsSince, never writes
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Accounts plus the append-only transaction log
// =============================================================================

// Store persists accounts and transactions.
// IMPORTANT: The transaction log is append-only. Balance rows are mutated
// only through AdjustBalance, and only by the Ledger inside WithTx.
type Store interface {
	// Append persists a transaction and assigns its ID and CreatedAt.
	// Returns ErrDuplicateOperation if the idempotency key already exists.
	Append(ctx context.Context, tx Transaction) (Transaction, error)

	// TransactionByKey returns the transaction recorded under an idempotency
	// key, or nil if the key is unknown.
	TransactionByKey(ctx context.Context, key string) (*Transaction, error)

	// Account returns the account for a user, or nil if none exists.
	Account(ctx context.Context, user UserID) (*Account, error)

	// EnsureAccount creates an account with balance 0 if none exists and
	// returns it. Existing accounts are returned unchanged.
	EnsureAccount(ctx context.Context, user UserID) (*Account, error)

	// AdjustBalance adds delta (which may be negative) to a user's balance.
	// The Ledger has already validated that the result is non-negative.
	AdjustBalance(ctx context.Context, user UserID, delta int64) error

	// History returns up to limit transactions touching the user,
	// most recent first.
	History(ctx context.Context, user UserID, limit int) ([]Transaction, error)

	// Transactions returns the full log in ID order. Used for audit replay.
	Transactions(ctx context.Context) ([]Transaction, error)

	// Accounts returns every account. Read-only, used by the leaderboard.
	Accounts(ctx context.Context) ([]Account, error)

	// CreditsSince sums credited amounts per user for transactions created
	// at or after the given time. Read-only, used by period leaderboards.
	CreditsSince(ctx context.Context, since time.Time) (map[UserID]int64, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic multi-write unit
// =============================================================================

// TxStore wraps Store with transaction support.
// The Ledger performs every apply inside WithTx.
type TxStore interface {
	Store

	// WithTx executes fn within a storage transaction.
	// If fn returns an error, all writes are rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
