package leaderboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neighborly/points-engine/leaderboard"
	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func seedUser(t *testing.T, l *ledger.Ledger, user string, amount int64) {
	t.Helper()
	u := ledger.UserID(user)
	_, err := l.Apply(context.Background(), nil, &u, amount, "seed", "")
	require.NoError(t, err)
}

// =============================================================================
// PERIOD PARSING
// =============================================================================

func TestParsePeriod(t *testing.T) {
	period, err := leaderboard.ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, leaderboard.PeriodAll, period)

	period, err = leaderboard.ParsePeriod("week")
	require.NoError(t, err)
	assert.Equal(t, leaderboard.PeriodWeek, period)

	period, err = leaderboard.ParsePeriod("month")
	require.NoError(t, err)
	assert.Equal(t, leaderboard.PeriodMonth, period)

	_, err = leaderboard.ParsePeriod("fortnight")
	assert.Error(t, err)
}

// =============================================================================
// ALL-TIME RANKING
// =============================================================================

func TestView_Top_AllTime_OrdersByBalance(t *testing.T) {
	mem := store.NewTxMemory()
	l := ledger.New(mem)
	seedUser(t, l, "alice", 100)
	seedUser(t, l, "bob", 250)
	seedUser(t, l, "carol", 50)

	view := leaderboard.NewView(mem, 0)
	entries, err := view.Top(context.Background(), leaderboard.PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, ledger.UserID("bob"), entries[0].UserID)
	assert.Equal(t, int64(250), entries[0].Points)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, ledger.UserID("alice"), entries[1].UserID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, ledger.UserID("carol"), entries[2].UserID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestView_Top_TruncatesToLimit(t *testing.T) {
	mem := store.NewTxMemory()
	l := ledger.New(mem)
	seedUser(t, l, "alice", 100)
	seedUser(t, l, "bob", 250)
	seedUser(t, l, "carol", 50)

	view := leaderboard.NewView(mem, 0)
	entries, err := view.Top(context.Background(), leaderboard.PeriodAll, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.UserID("bob"), entries[0].UserID)
}

func TestView_Top_TieBreaksByAccountAge(t *testing.T) {
	// GIVEN: Two users with equal balance, alice's account is older
	// THEN: alice ranks first

	mem := store.NewTxMemory()
	l := ledger.New(mem)

	base := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	now := base
	mem.SetClock(func() time.Time { return now })

	seedUser(t, l, "alice", 100)
	now = base.Add(time.Hour)
	seedUser(t, l, "bob", 100)

	view := leaderboard.NewView(mem, 0)
	entries, err := view.Top(context.Background(), leaderboard.PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.UserID("alice"), entries[0].UserID)
	assert.Equal(t, ledger.UserID("bob"), entries[1].UserID)
}

// =============================================================================
// PERIOD RANKING
// =============================================================================

func TestView_Top_Week_CountsOnlyRecentCredits(t *testing.T) {
	// GIVEN: alice earned 100 a month ago and 10 today; bob earned 40 today
	// WHEN: Ranking by week
	// THEN: bob leads with 40; the all-time view still favors alice

	mem := store.NewTxMemory()
	l := ledger.New(mem)

	base := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	now := base.AddDate(0, -1, 0)
	mem.SetClock(func() time.Time { return now })
	seedUser(t, l, "alice", 100)

	now = base
	seedUser(t, l, "alice", 10)
	seedUser(t, l, "bob", 40)

	view := leaderboard.NewView(mem, 0)
	view.SetClock(func() time.Time { return base })
	ctx := context.Background()

	week, err := view.Top(ctx, leaderboard.PeriodWeek, 10)
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, ledger.UserID("bob"), week[0].UserID)
	assert.Equal(t, int64(40), week[0].Points)
	assert.Equal(t, ledger.UserID("alice"), week[1].UserID)
	assert.Equal(t, int64(10), week[1].Points)

	all, err := view.Top(ctx, leaderboard.PeriodAll, 10)
	require.NoError(t, err)
	assert.Equal(t, ledger.UserID("alice"), all[0].UserID)
	assert.Equal(t, int64(110), all[0].Points)
}

func TestView_Top_Week_IncludesZeroEarners(t *testing.T) {
	// Accounts with no credits in the window still appear, with 0 points.

	mem := store.NewTxMemory()
	l := ledger.New(mem)

	base := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	now := base.AddDate(0, 0, -20)
	mem.SetClock(func() time.Time { return now })
	seedUser(t, l, "dormant", 500)

	now = base
	seedUser(t, l, "active", 5)

	view := leaderboard.NewView(mem, 0)
	view.SetClock(func() time.Time { return base })

	week, err := view.Top(context.Background(), leaderboard.PeriodWeek, 10)
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, ledger.UserID("active"), week[0].UserID)
	assert.Equal(t, ledger.UserID("dormant"), week[1].UserID)
	assert.Equal(t, int64(0), week[1].Points)
}

func TestView_Top_Week_TransfersCountAsCredits(t *testing.T) {
	// A transfer credits the recipient inside the window.

	mem := store.NewTxMemory()
	l := ledger.New(mem)

	base := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	now := base.AddDate(0, 0, -20)
	mem.SetClock(func() time.Time { return now })
	seedUser(t, l, "alice", 100)

	now = base
	_, err := l.Transfer(context.Background(), "alice", "bob", 30, "")
	require.NoError(t, err)

	view := leaderboard.NewView(mem, 0)
	view.SetClock(func() time.Time { return base })

	week, err := view.Top(context.Background(), leaderboard.PeriodWeek, 10)
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, ledger.UserID("bob"), week[0].UserID)
	assert.Equal(t, int64(30), week[0].Points)
}

// =============================================================================
// CACHING
// =============================================================================

func TestView_Top_ServesCachedSnapshotWithinTTL(t *testing.T) {
	// GIVEN: A view with a 1 minute TTL and a populated cache
	// WHEN: Balances change and Top is called again within the TTL
	// THEN: The stale snapshot is served; after Refresh the new data shows

	mem := store.NewTxMemory()
	l := ledger.New(mem)
	seedUser(t, l, "alice", 100)

	view := leaderboard.NewView(mem, time.Minute)
	ctx := context.Background()

	first, err := view.Top(ctx, leaderboard.PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	seedUser(t, l, "bob", 500)

	cached, err := view.Top(ctx, leaderboard.PeriodAll, 10)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "within the TTL the cached ranking is served")

	require.NoError(t, view.Refresh(ctx))

	fresh, err := view.Top(ctx, leaderboard.PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, ledger.UserID("bob"), fresh[0].UserID)
}

func TestView_Top_TTLExpiryRecomputes(t *testing.T) {
	mem := store.NewTxMemory()
	l := ledger.New(mem)
	seedUser(t, l, "alice", 100)

	base := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	now := base
	view := leaderboard.NewView(mem, time.Minute)
	view.SetClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := view.Top(ctx, leaderboard.PeriodAll, 10)
	require.NoError(t, err)

	seedUser(t, l, "bob", 500)
	now = base.Add(2 * time.Minute)

	entries, err := view.Top(ctx, leaderboard.PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2, "expired snapshot must be recomputed")
}
