/*
ledger.go - The single entry point for balance changes

PURPOSE:
  Ledger.Apply is the unit of atomicity for the whole points economy.
  Every credit, debit, and transfer goes through it; nothing else is
  permitted to write balances or the transaction log.

CRITICAL INVARIANTS:
  1. balance == sum(credits) - sum(debits), replayable from the log
  2. balance never goes negative, under any interleaving
  3. at most one transaction per idempotency key
  4. the transaction insert and the balance mutations commit together

CONCURRENCY:
  Apply takes the per-account locks (sorted order for transfers) before the
  storage transaction, so the read-check-write on a balance is serialized per
  account. Applies on disjoint accounts never contend.

TIMEOUTS:
  A caller that times out waiting on Apply must not assume the operation did
  not happen. Rewards carry idempotency keys and can simply be retried; raw
  transfers must be re-checked against History first.

SEE ALSO:
  - store.go: Persistence boundary
  - reward/dispatcher.go: Award path on top of Apply
*/
package ledger

import (
	"context"
	"fmt"
)

// Ledger applies balance changes atomically and maintains the audit trail.
type Ledger struct {
	store TxStore
	locks *accountLocks
}

func New(store TxStore) *Ledger {
	return &Ledger{store: store, locks: newAccountLocks()}
}

// Apply records one balance change as a single atomic unit.
//
// Exactly one of three shapes is valid:
//   - from == nil, to != nil: system award (creates the account if needed)
//   - from != nil, to == nil: system debit / penalty
//   - both set:               user-to-user transfer (from != to)
//
// Errors: ErrInvalidAmount, ErrInvalidTransfer, ErrUnknownAccount,
// ErrInsufficientBalance (as *InsufficientBalanceError), and
// ErrDuplicateOperation when the idempotency key was already recorded —
// callers treat the latter as success-no-op and fetch the prior transaction
// with TransactionByKey.
func (l *Ledger) Apply(ctx context.Context, from, to *UserID, amount int64, reason, idempotencyKey string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("amount %d: %w", amount, ErrInvalidAmount)
	}
	if from == nil && to == nil {
		return Transaction{}, fmt.Errorf("no accounts involved: %w", ErrInvalidTransfer)
	}
	if from != nil && to != nil && *from == *to {
		return Transaction{}, fmt.Errorf("self transfer for %s: %w", *from, ErrInvalidTransfer)
	}

	release := l.locks.acquire(from, to)
	defer release()

	var applied Transaction
	err := l.store.WithTx(ctx, func(s Store) error {
		// Dedup before any validation: a retried keyed operation must come
		// back as a duplicate even when the first application changed the
		// balances enough that the checks below would now reject it.
		if idempotencyKey != "" {
			prior, err := s.TransactionByKey(ctx, idempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				return fmt.Errorf("key %s: %w", idempotencyKey, ErrDuplicateOperation)
			}
		}

		if from != nil {
			acct, err := s.Account(ctx, *from)
			if err != nil {
				return err
			}
			if acct == nil {
				return fmt.Errorf("debit source %s: %w", *from, ErrUnknownAccount)
			}
			if acct.Balance < amount {
				return &InsufficientBalanceError{UserID: *from, Available: acct.Balance, Requested: amount}
			}
		}
		if to != nil {
			if _, err := s.EnsureAccount(ctx, *to); err != nil {
				return err
			}
		}

		// Append before the balance mutations: the unique constraint on the
		// idempotency key is the backstop for keyed writes racing past the
		// lookup above, and it aborts the unit before any balance is touched.
		tx, err := s.Append(ctx, Transaction{
			From:           from,
			To:             to,
			Amount:         amount,
			Reason:         reason,
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			return err
		}

		if from != nil {
			if err := s.AdjustBalance(ctx, *from, -amount); err != nil {
				return err
			}
		}
		if to != nil {
			if err := s.AdjustBalance(ctx, *to, amount); err != nil {
				return err
			}
		}
		applied = tx
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return applied, nil
}

// Transfer moves points between two users. User-initiated; carries no
// idempotency key, so callers retrying after a timeout must check History
// before resubmitting.
func (l *Ledger) Transfer(ctx context.Context, from, to UserID, amount int64, reason string) (Transaction, error) {
	return l.Apply(ctx, &from, &to, amount, reason, "")
}

// Balance returns the materialized balance for a user.
// Returns ErrUnknownAccount if the user has never been credited.
func (l *Ledger) Balance(ctx context.Context, user UserID) (int64, error) {
	acct, err := l.store.Account(ctx, user)
	if err != nil {
		return 0, err
	}
	if acct == nil {
		return 0, fmt.Errorf("balance of %s: %w", user, ErrUnknownAccount)
	}
	return acct.Balance, nil
}

// History returns up to limit transactions touching the user, most recent
// first.
func (l *Ledger) History(ctx context.Context, user UserID, limit int) ([]Transaction, error) {
	return l.store.History(ctx, user, limit)
}

// TransactionByKey resolves the transaction recorded under an idempotency
// key. Used by callers that received ErrDuplicateOperation.
func (l *Ledger) TransactionByKey(ctx context.Context, key string) (*Transaction, error) {
	return l.store.TransactionByKey(ctx, key)
}

// RecomputeBalance replays the full transaction log for one user,
// independently of the materialized balance. Audit tool: the result must
// always equal Balance.
func (l *Ledger) RecomputeBalance(ctx context.Context, user UserID) (int64, error) {
	txs, err := l.store.Transactions(ctx)
	if err != nil {
		return 0, err
	}
	var balance int64
	for _, tx := range txs {
		if tx.Credits(user) {
			balance += tx.Amount
		}
		if tx.Debits(user) {
			balance -= tx.Amount
		}
	}
	return balance, nil
}
