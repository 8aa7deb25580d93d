package reward_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/ledger/store"
	"github.com/neighborly/points-engine/reward"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestDispatcher(t *testing.T) (*reward.Dispatcher, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(store.NewTxMemory())
	return reward.NewDispatcher(l, nil), l
}

// =============================================================================
// AMOUNT RESOLUTION
// =============================================================================

func TestDispatcher_Award_CatalogAmount(t *testing.T) {
	// GIVEN: The default catalog (post_created = 5)
	// WHEN: An award with amount 0 is dispatched
	// THEN: The standing catalog amount is credited

	d, l := newTestDispatcher(t)
	ctx := context.Background()

	result, err := d.Award(ctx, "alice", reward.ActionPostCreated, 0, "post-42")
	require.NoError(t, err)
	assert.False(t, result.Noop)
	assert.Equal(t, int64(5), result.Transaction.Amount)

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestDispatcher_Award_ExplicitAmountOverridesCatalog(t *testing.T) {
	d, _ := newTestDispatcher(t)

	result, err := d.Award(context.Background(), "alice", reward.ActionPostCreated, 12, "post-42")
	require.NoError(t, err)
	assert.Equal(t, int64(12), result.Transaction.Amount)
}

func TestDispatcher_Award_UnknownAction(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Award(context.Background(), "alice", "made_up_action", 0, "ref")
	assert.ErrorIs(t, err, reward.ErrUnknownAction)
}

func TestDispatcher_Award_NegativeAmountRejected(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Award(context.Background(), "alice", reward.ActionPostCreated, -3, "ref")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestDispatcher_Award_SameReference_PaysOnce(t *testing.T) {
	// GIVEN: post-42 already rewarded
	// WHEN: The same trigger is re-delivered
	// THEN: Noop result carrying the original transaction, balance unchanged

	d, l := newTestDispatcher(t)
	ctx := context.Background()

	first, err := d.Award(ctx, "alice", reward.ActionPostCreated, 0, "post-42")
	require.NoError(t, err)
	require.False(t, first.Noop)

	second, err := d.Award(ctx, "alice", reward.ActionPostCreated, 0, "post-42")
	require.NoError(t, err)
	assert.True(t, second.Noop, "re-delivery must be a noop, not an error")
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestDispatcher_Award_DistinctReferences_PayEach(t *testing.T) {
	d, l := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Award(ctx, "alice", reward.ActionPostCreated, 0, "post-1")
	require.NoError(t, err)
	_, err = d.Award(ctx, "alice", reward.ActionPostCreated, 0, "post-2")
	require.NoError(t, err)

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestDispatcher_Award_EmptyReference_NoDeduplication(t *testing.T) {
	// Free-form admin bonuses carry no reference; each call is its own
	// legitimate award.

	d, l := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Award(ctx, "alice", "admin_bonus", 10, "")
	require.NoError(t, err)
	_, err = d.Award(ctx, "alice", "admin_bonus", 10, "")
	require.NoError(t, err)

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)
}

func TestDispatcher_Award_ConcurrentReDelivery_PaysOnce(t *testing.T) {
	// GIVEN: 20 concurrent deliveries of the same trigger
	// THEN: One credit lands; every call reports success

	d, l := newTestDispatcher(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Award(ctx, "alice", reward.ActionEventCheckin, 0, "event-7")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

// =============================================================================
// PENALTIES
// =============================================================================

func TestDispatcher_Penalize_DebitsBalance(t *testing.T) {
	d, l := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Award(ctx, "alice", reward.ActionRegistered, 0, "signup")
	require.NoError(t, err)

	result, err := d.Penalize(ctx, "alice", "spam_post", 20, "mod-case-9")
	require.NoError(t, err)
	assert.False(t, result.Noop)

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)
}

func TestDispatcher_Penalize_SameReference_DebitsOnce(t *testing.T) {
	d, l := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Award(ctx, "alice", reward.ActionRegistered, 0, "signup")
	require.NoError(t, err)

	_, err = d.Penalize(ctx, "alice", "spam_post", 20, "mod-case-9")
	require.NoError(t, err)
	result, err := d.Penalize(ctx, "alice", "spam_post", 20, "mod-case-9")
	require.NoError(t, err)
	assert.True(t, result.Noop)

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)
}

func TestDispatcher_Penalize_RetryAfterBalanceDepleted(t *testing.T) {
	// GIVEN: A keyed penalty that took alice's balance to 0
	// WHEN: The same penalty is re-delivered
	// THEN: Noop carrying the original debit, never insufficient balance —
	//       the retry path must not depend on the post-debit balance

	d, l := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Award(ctx, "alice", "admin_bonus", 10, "seed")
	require.NoError(t, err)

	first, err := d.Penalize(ctx, "alice", "lottery_entry", 10, "draw-1")
	require.NoError(t, err)
	require.False(t, first.Noop)

	second, err := d.Penalize(ctx, "alice", "lottery_entry", 10, "draw-1")
	require.NoError(t, err, "re-delivery must not surface insufficient balance")
	assert.True(t, second.Noop)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestDispatcher_Penalize_InsufficientBalance(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Penalize(context.Background(), "alice", "spam_post", 20, "mod-case-9")
	assert.Error(t, err)
}

// =============================================================================
// KEY DERIVATION
// =============================================================================

func TestIdempotencyKey_Deterministic(t *testing.T) {
	k1 := reward.IdempotencyKey("alice", "post_created", "post-42")
	k2 := reward.IdempotencyKey("alice", "post_created", "post-42")
	assert.Equal(t, k1, k2)

	k3 := reward.IdempotencyKey("bob", "post_created", "post-42")
	assert.NotEqual(t, k1, k3, "different users must get different keys")
}
