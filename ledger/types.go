/*
Package ledger provides the core points ledger engine.

PURPOSE:
  This package contains the source of truth for every user's point balance
  in the community. All credits, debits, and transfers flow through a single
  operation (Ledger.Apply) that records an immutable Transaction and updates
  the materialized balance as one atomic unit.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: Per-user balance record, created implicitly on first credit
  - Transaction: An immutable ledger entry recording one balance change
  - UserID/TransactionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified or deleted
  2. Integer points: Amounts are int64 — the economy has no fractional points
  3. Direction by presence: From/To being nil encodes system-issued
     awards and penalties; both set encodes a user-to-user transfer
  4. Auditability: Balance can always be recomputed by replaying the log

USAGE:
  from := ledger.UserID("u1")
  to := ledger.UserID("u2")
  tx, err := l.Apply(ctx, &from, &to, 30, "gift", "")

SEE ALSO:
  - ledger.go: Apply and the serialization discipline
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

// UserID is an opaque identifier owned by the user-identity collaborator.
type UserID string

// TransactionID is store-assigned and monotonically increasing.
type TransactionID int64

// =============================================================================
// ACCOUNT - Materialized per-user balance
// =============================================================================

// Account holds the materialized balance for one user. It is created
// implicitly the first time a credit targets the user and mutated only by
// Ledger.Apply.
//
// INVARIANT: Balance >= 0 at all times.
// INVARIANT: Balance == sum(credits) - sum(debits) over the transaction log.
type Account struct {
	UserID    UserID
	Balance   int64
	CreatedAt time.Time
}

// =============================================================================
// TRANSACTION - Immutable audit record of one balance change
// =============================================================================

// Transaction is one immutable entry in the append-only log.
//
// Direction is encoded by which account fields are populated:
//   - From == nil: system-issued award (registration bonus, quest reward)
//   - To == nil:   system-issued debit (penalty, lottery entry)
//   - both set:    user-to-user transfer
//
// Amount is always strictly positive; there are no signed amounts.
type Transaction struct {
	ID             TransactionID
	From           *UserID
	To             *UserID
	Amount         int64
	Reason         string
	IdempotencyKey string // empty = no deduplication requested
	CreatedAt      time.Time
}

// IsTransfer reports whether both accounts participate.
func (t Transaction) IsTransfer() bool { return t.From != nil && t.To != nil }

// Credits reports whether the transaction credits the given user.
func (t Transaction) Credits(user UserID) bool { return t.To != nil && *t.To == user }

// Debits reports whether the transaction debits the given user.
func (t Transaction) Debits(user UserID) bool { return t.From != nil && *t.From == user }
