package quest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/ledger/store"
	"github.com/neighborly/points-engine/quest"
	"github.com/neighborly/points-engine/reward"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	engine  *quest.Engine
	catalog *quest.MemoryCatalog
	ledger  *ledger.Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := ledger.New(store.NewTxMemory())
	catalog := quest.NewMemoryCatalog()
	engine := quest.NewEngine(catalog, quest.NewMemoryProgressStore(), reward.NewDispatcher(l, nil))
	return &testEnv{engine: engine, catalog: catalog, ledger: l}
}

func (env *testEnv) putQuest(id string, target, rewardPoints int64, repeatable bool) {
	env.catalog.PutQuest(quest.Definition{
		ID:         quest.QuestID(id),
		Title:      id,
		Target:     target,
		Reward:     rewardPoints,
		Repeatable: repeatable,
		Active:     true,
	})
}

func (env *testEnv) balance(t *testing.T, user string) int64 {
	t.Helper()
	balance, err := env.ledger.Balance(context.Background(), ledger.UserID(user))
	if err != nil {
		return 0
	}
	return balance
}

// =============================================================================
// ACCEPT
// =============================================================================

func TestEngine_Accept_StartsCycleOne(t *testing.T) {
	env := newTestEnv(t)
	env.putQuest("daily-posts", 3, 15, false)

	p, err := env.engine.Accept(context.Background(), "alice", "daily-posts")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Cycle)
	assert.Equal(t, int64(0), p.Progress)
	assert.Equal(t, quest.StateInProgress, p.State())
}

func TestEngine_Accept_UnknownQuest(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Accept(context.Background(), "alice", "missing")
	assert.ErrorIs(t, err, quest.ErrUnknownQuest)
}

func TestEngine_Accept_InactiveQuest(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.PutQuest(quest.Definition{
		ID: "retired", Title: "retired", Target: 3, Active: false,
	})

	_, err := env.engine.Accept(context.Background(), "alice", "retired")
	assert.ErrorIs(t, err, quest.ErrQuestInactive)
}

func TestEngine_Accept_ExpiredQuest(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().UTC().Add(-time.Hour)
	env.catalog.PutQuest(quest.Definition{
		ID: "seasonal", Title: "seasonal", Target: 3, Active: true, ExpiresAt: &past,
	})

	_, err := env.engine.Accept(context.Background(), "alice", "seasonal")
	assert.ErrorIs(t, err, quest.ErrQuestInactive)
}

func TestEngine_Accept_WhileInProgress(t *testing.T) {
	env := newTestEnv(t)
	env.putQuest("daily-posts", 3, 15, false)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "daily-posts")
	require.NoError(t, err)

	_, err = env.engine.Accept(ctx, "alice", "daily-posts")
	assert.ErrorIs(t, err, quest.ErrAlreadyActive)
}

// =============================================================================
// PROGRESS
// =============================================================================

func TestEngine_ReportProgress_CapsAtTarget(t *testing.T) {
	// GIVEN: Target 5, current progress 3
	// WHEN: A delta of 10 is reported
	// THEN: Progress is capped at 5 and the quest is Completed; the excess
	//       does not leak into a later cycle

	env := newTestEnv(t)
	env.putQuest("checkins", 5, 20, true)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "checkins")
	require.NoError(t, err)
	_, err = env.engine.ReportProgress(ctx, "alice", "checkins", 3)
	require.NoError(t, err)

	p, err := env.engine.ReportProgress(ctx, "alice", "checkins", 10)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(5), p.Progress)
	assert.Equal(t, quest.StateCompleted, p.State())
	require.NotNil(t, p.CompletedAt)
}

func TestEngine_ReportProgress_WithoutAccept_IsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.putQuest("checkins", 5, 20, false)

	p, err := env.engine.ReportProgress(context.Background(), "alice", "checkins", 2)
	require.NoError(t, err)
	assert.Nil(t, p, "progress on a quest the user never accepted is ignored")
}

func TestEngine_ReportProgress_AfterCompleted_IsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.putQuest("checkins", 2, 20, false)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "checkins")
	require.NoError(t, err)
	_, err = env.engine.ReportProgress(ctx, "alice", "checkins", 2)
	require.NoError(t, err)

	p, err := env.engine.ReportProgress(ctx, "alice", "checkins", 1)
	require.NoError(t, err)
	assert.Nil(t, p, "completed quests stop accumulating")
}

func TestEngine_ReportProgress_NonPositiveDelta(t *testing.T) {
	env := newTestEnv(t)
	env.putQuest("checkins", 5, 20, false)

	_, err := env.engine.ReportProgress(context.Background(), "alice", "checkins", 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestEngine_ReportProgress_ExpiredMidCycle_IsNoop(t *testing.T) {
	// GIVEN: alice accepted a quest, then its definition expired
	// WHEN: More progress is reported
	// THEN: Ignored, same contract as never-accepted

	env := newTestEnv(t)
	env.putQuest("seasonal", 5, 20, false)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "seasonal")
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	env.catalog.PutQuest(quest.Definition{
		ID: "seasonal", Title: "seasonal", Target: 5, Reward: 20, Active: true, ExpiresAt: &past,
	})

	p, err := env.engine.ReportProgress(ctx, "alice", "seasonal", 1)
	require.NoError(t, err)
	assert.Nil(t, p)
}

// =============================================================================
// CLAIM
// =============================================================================

func TestEngine_Claim_PaysOnce(t *testing.T) {
	// GIVEN: A completed quest with a 20 point reward
	// WHEN: The reward is claimed, then claimed again
	// THEN: One payout, second claim fails with ErrNotCompleted

	env := newTestEnv(t)
	env.putQuest("checkins", 2, 20, false)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "checkins")
	require.NoError(t, err)
	_, err = env.engine.ReportProgress(ctx, "alice", "checkins", 2)
	require.NoError(t, err)

	p, err := env.engine.Claim(ctx, "alice", "checkins")
	require.NoError(t, err)
	assert.Equal(t, quest.StateRewarded, p.State())
	assert.Equal(t, int64(20), env.balance(t, "alice"))

	_, err = env.engine.Claim(ctx, "alice", "checkins")
	assert.ErrorIs(t, err, quest.ErrNotCompleted)
	assert.Equal(t, int64(20), env.balance(t, "alice"))
}

func TestEngine_Claim_BeforeCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.putQuest("checkins", 5, 20, false)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "checkins")
	require.NoError(t, err)
	_, err = env.engine.ReportProgress(ctx, "alice", "checkins", 3)
	require.NoError(t, err)

	_, err = env.engine.Claim(ctx, "alice", "checkins")
	assert.ErrorIs(t, err, quest.ErrNotCompleted)
	assert.Equal(t, int64(0), env.balance(t, "alice"))
}

// =============================================================================
// REPEATABLE QUESTS
// =============================================================================

func TestEngine_Repeatable_FullSecondCycle(t *testing.T) {
	// GIVEN: A repeatable quest completed, claimed once
	// WHEN: Re-accepted, completed and claimed again
	// THEN: Cycle 2 starts from 0 and pays a second reward

	env := newTestEnv(t)
	env.putQuest("weekly", 2, 10, true)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "weekly")
	require.NoError(t, err)
	_, err = env.engine.ReportProgress(ctx, "alice", "weekly", 2)
	require.NoError(t, err)
	_, err = env.engine.Claim(ctx, "alice", "weekly")
	require.NoError(t, err)

	p, err := env.engine.Accept(ctx, "alice", "weekly")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Cycle)
	assert.Equal(t, int64(0), p.Progress)

	_, err = env.engine.ReportProgress(ctx, "alice", "weekly", 2)
	require.NoError(t, err)
	_, err = env.engine.Claim(ctx, "alice", "weekly")
	require.NoError(t, err)

	assert.Equal(t, int64(20), env.balance(t, "alice"), "each cycle pays its own reward")
}

func TestEngine_NonRepeatable_CannotReaccept(t *testing.T) {
	env := newTestEnv(t)
	env.putQuest("once", 1, 10, false)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "once")
	require.NoError(t, err)
	_, err = env.engine.ReportProgress(ctx, "alice", "once", 1)
	require.NoError(t, err)
	_, err = env.engine.Claim(ctx, "alice", "once")
	require.NoError(t, err)

	_, err = env.engine.Accept(ctx, "alice", "once")
	assert.ErrorIs(t, err, quest.ErrAlreadyActive)
}

// =============================================================================
// LISTING
// =============================================================================

func TestEngine_ListQuests_JoinsProgress(t *testing.T) {
	env := newTestEnv(t)
	env.putQuest("a-quest", 3, 10, false)
	env.putQuest("b-quest", 5, 10, false)
	ctx := context.Background()

	_, err := env.engine.Accept(ctx, "alice", "b-quest")
	require.NoError(t, err)

	statuses, err := env.engine.ListQuests(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, quest.QuestID("a-quest"), statuses[0].Definition.ID)
	assert.Nil(t, statuses[0].Progress)
	assert.Equal(t, quest.StateNotStarted, statuses[0].Progress.State())

	assert.Equal(t, quest.QuestID("b-quest"), statuses[1].Definition.ID)
	require.NotNil(t, statuses[1].Progress)
	assert.Equal(t, quest.StateInProgress, statuses[1].Progress.State())
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

func TestEngine_Unlock_PaysOnce(t *testing.T) {
	// GIVEN: An achievement worth 30 points
	// WHEN: Unlocked twice
	// THEN: First call unlocks and pays, second is a no-op

	env := newTestEnv(t)
	env.catalog.PutAchievement(quest.Achievement{ID: "first-post", Title: "First Post", PointsReward: 30})
	ctx := context.Background()

	unlocked, err := env.engine.Unlock(ctx, "alice", "first-post")
	require.NoError(t, err)
	assert.True(t, unlocked)
	assert.Equal(t, int64(30), env.balance(t, "alice"))

	unlocked, err = env.engine.Unlock(ctx, "alice", "first-post")
	require.NoError(t, err)
	assert.False(t, unlocked, "repeat unlock is acknowledged, not repeated")
	assert.Equal(t, int64(30), env.balance(t, "alice"))
}

func TestEngine_Unlock_UnknownAchievement(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Unlock(context.Background(), "alice", "missing")
	assert.ErrorIs(t, err, quest.ErrUnknownAchievement)
}

func TestEngine_Unlock_ZeroRewardStillRecords(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.PutAchievement(quest.Achievement{ID: "badge", Title: "Badge"})
	ctx := context.Background()

	unlocked, err := env.engine.Unlock(ctx, "alice", "badge")
	require.NoError(t, err)
	assert.True(t, unlocked)

	unlocked, err = env.engine.Unlock(ctx, "alice", "badge")
	require.NoError(t, err)
	assert.False(t, unlocked)
}
