/*
Package reward translates domain events into ledger operations.

PURPOSE:
  Collaborators (post creation, task completion, event check-in) report
  events; the Dispatcher resolves the point amount and builds a
  deterministic idempotency key so that re-delivery of the same trigger
  (an HTTP retry, a duplicated socket event) never double-pays.

IDEMPOTENCY KEY:
  sha256(user|action|reference), hex-encoded. Deterministic and
  collision-resistant: the same logical trigger always maps to the same
  key, distinct triggers practically never collide. When no reference is
  supplied, no key is set and duplicate calls are treated as independent
  legitimate awards (free-form admin bonuses).

NOOP SEMANTICS:
  A duplicate is NOT an error here. The ledger's ErrDuplicateOperation is
  converted into Result{Noop: true} carrying the previously recorded
  transaction, so callers can respond as if the award succeeded.

SEE ALSO:
  - catalog.go: action -> amount resolution
  - ledger/ledger.go: Apply contract
*/
package reward

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/neighborly/points-engine/ledger"
)

// ErrUnknownAction is returned when no amount is supplied and the catalog
// has no standing amount for the action.
var ErrUnknownAction = errors.New("unknown reward action")

// Result is the outcome of an award. Noop means the trigger was already
// credited; Transaction then holds the prior record.
type Result struct {
	Transaction ledger.Transaction
	Noop        bool
}

// Dispatcher maps named actions to signed ledger operations.
type Dispatcher struct {
	ledger  *ledger.Ledger
	catalog Catalog
}

func NewDispatcher(l *ledger.Ledger, catalog Catalog) *Dispatcher {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Dispatcher{ledger: l, catalog: catalog}
}

// Award credits a user for an action.
//
// amount == 0 resolves the standing amount from the catalog; amount < 0 is
// rejected with ledger.ErrInvalidAmount (penalties go through Penalize, not
// here). reference identifies the specific trigger (a post ID, a
// quest-completion cycle); when empty, no idempotency key is set.
func (d *Dispatcher) Award(ctx context.Context, user ledger.UserID, action string, amount int64, reference string) (Result, error) {
	if amount < 0 {
		return Result{}, fmt.Errorf("award %s: %w", action, ledger.ErrInvalidAmount)
	}
	if amount == 0 {
		standing, ok := d.catalog.Amount(action)
		if !ok {
			return Result{}, fmt.Errorf("action %q: %w", action, ErrUnknownAction)
		}
		amount = standing
	}

	key := ""
	if reference != "" {
		key = IdempotencyKey(user, action, reference)
	}

	tx, err := d.ledger.Apply(ctx, nil, &user, amount, action, key)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateOperation) {
			return d.noopResult(ctx, key)
		}
		return Result{}, err
	}
	return Result{Transaction: tx}, nil
}

// Penalize debits a user for an action (admin penalties, lottery entries,
// moderation fines). Fails with ErrInsufficientBalance when the user cannot
// cover the amount; the same reference scheme applies.
func (d *Dispatcher) Penalize(ctx context.Context, user ledger.UserID, action string, amount int64, reference string) (Result, error) {
	if amount <= 0 {
		return Result{}, fmt.Errorf("penalty %s: %w", action, ledger.ErrInvalidAmount)
	}

	key := ""
	if reference != "" {
		key = IdempotencyKey(user, action, reference)
	}

	tx, err := d.ledger.Apply(ctx, &user, nil, amount, action, key)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateOperation) {
			return d.noopResult(ctx, key)
		}
		return Result{}, err
	}
	return Result{Transaction: tx}, nil
}

func (d *Dispatcher) noopResult(ctx context.Context, key string) (Result, error) {
	prior, err := d.ledger.TransactionByKey(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if prior == nil {
		// Key was reported duplicate but is gone: storage inconsistency.
		return Result{}, fmt.Errorf("idempotency key %s recorded but unresolvable", key)
	}
	return Result{Transaction: *prior, Noop: true}, nil
}

// IdempotencyKey builds the deterministic deduplication token for a
// (user, action, reference) trigger.
func IdempotencyKey(user ledger.UserID, action, reference string) string {
	sum := sha256.Sum256([]byte(string(user) + "|" + action + "|" + reference))
	return hex.EncodeToString(sum[:])
}
