/*
engine.go - Quest progression and achievement unlocking

PURPOSE:
  Implements the per-(user, quest) state machine. All mutation of progress
  rows goes through the Engine under a per-pair lock, so an increment that
  reaches the target and the transition to Completed are one unit: two
  concurrent reporters can never both observe "not yet complete".

CLAIM ORDERING:
  Claim pays first, marks Rewarded second. If the dispatcher call fails the
  quest stays Completed and the claim can be retried; the idempotency
  reference (questID#cycle) guarantees the retry cannot double-pay. The same
  ordering protects Unlock: award before recording, so a crash in between
  is recovered by retrying the unlock (the award dedupes, the record lands).

PROGRESS REPORTING:
  Collaborators broadcast progress events without knowing who accepted
  what, so ReportProgress on a pair without active progress is a no-op,
  not an error. Excess delta past the target is discarded, never carried
  over into the next cycle.

SEE ALSO:
  - types.go: State machine and interfaces
  - reward/dispatcher.go: The payout path
*/
package quest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/reward"
)

// Engine advances quest progress and unlocks achievements.
type Engine struct {
	catalog Catalog
	store   ProgressStore
	awarder Awarder
	clock   func() time.Time

	mu    sync.Mutex
	locks map[pairKey]*sync.Mutex
}

type pairKey struct {
	User  ledger.UserID
	Quest string // QuestID or AchievementID
}

func NewEngine(catalog Catalog, store ProgressStore, awarder Awarder) *Engine {
	return &Engine{
		catalog: catalog,
		store:   store,
		awarder: awarder,
		clock:   func() time.Time { return time.Now().UTC() },
		locks:   make(map[pairKey]*sync.Mutex),
	}
}

// SetClock overrides the time source for tests.
func (e *Engine) SetClock(clock func() time.Time) { e.clock = clock }

// lockPair serializes operations on one (user, quest) pair. Different pairs
// are independent.
func (e *Engine) lockPair(user ledger.UserID, id string) func() {
	e.mu.Lock()
	k := pairKey{User: user, Quest: id}
	l, ok := e.locks[k]
	if !ok {
		l = &sync.Mutex{}
		e.locks[k] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// =============================================================================
// QUEST OPERATIONS
// =============================================================================

// Accept starts (or restarts, for repeatable quests) a quest for a user.
func (e *Engine) Accept(ctx context.Context, user ledger.UserID, questID QuestID) (*Progress, error) {
	def, err := e.definition(ctx, questID)
	if err != nil {
		return nil, err
	}
	now := e.clock()
	if !def.AcceptableAt(now) {
		return nil, fmt.Errorf("quest %s: %w", questID, ErrQuestInactive)
	}

	unlock := e.lockPair(user, string(questID))
	defer unlock()

	existing, err := e.store.Progress(ctx, user, questID)
	if err != nil {
		return nil, err
	}

	var p Progress
	switch existing.State() {
	case StateNotStarted:
		p = Progress{UserID: user, QuestID: questID, Cycle: 1, AcceptedAt: now}
	case StateRewarded:
		if !def.Repeatable {
			return nil, fmt.Errorf("quest %s already rewarded: %w", questID, ErrAlreadyActive)
		}
		// Fresh cycle: the only place progress resets to 0.
		p = Progress{UserID: user, QuestID: questID, Cycle: existing.Cycle + 1, AcceptedAt: now}
	default: // InProgress or unclaimed Completed
		return nil, fmt.Errorf("quest %s: %w", questID, ErrAlreadyActive)
	}

	if err := e.store.SaveProgress(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReportProgress advances the counter by delta, capped at the target.
// Returns (nil, nil) when the user has no active progress for the quest —
// broadcast callers are not expected to know who accepted what. Reaching
// the target transitions to Completed in the same save.
func (e *Engine) ReportProgress(ctx context.Context, user ledger.UserID, questID QuestID, delta int64) (*Progress, error) {
	if delta <= 0 {
		return nil, fmt.Errorf("progress delta %d: %w", delta, ledger.ErrInvalidAmount)
	}
	def, err := e.definition(ctx, questID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockPair(user, string(questID))
	defer unlock()

	p, err := e.store.Progress(ctx, user, questID)
	if err != nil {
		return nil, err
	}
	if p.State() != StateInProgress {
		return nil, nil
	}
	// A definition disabled or expired mid-cycle stops accumulating;
	// same no-op contract as "never accepted".
	if !def.AcceptableAt(e.clock()) {
		return nil, nil
	}

	p.Progress += delta
	if p.Progress >= def.Target {
		p.Progress = def.Target // excess delta is discarded
		p.Completed = true
		now := e.clock()
		p.CompletedAt = &now
	}

	if err := e.store.SaveProgress(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// Claim pays out a completed quest and advances it to Rewarded. Fails with
// ErrNotCompleted unless the state is exactly Completed; in particular a
// second claim after a successful one fails because the state has moved on.
func (e *Engine) Claim(ctx context.Context, user ledger.UserID, questID QuestID) (*Progress, error) {
	def, err := e.definition(ctx, questID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockPair(user, string(questID))
	defer unlock()

	p, err := e.store.Progress(ctx, user, questID)
	if err != nil {
		return nil, err
	}
	if p.State() != StateCompleted {
		return nil, fmt.Errorf("quest %s state %s: %w", questID, p.State(), ErrNotCompleted)
	}

	// Pay before persisting the transition: a dispatcher failure leaves the
	// quest Completed and retriable, and the cycle-scoped reference makes
	// the retry idempotent.
	if def.Reward > 0 {
		ref := claimReference(questID, p.Cycle)
		if _, err := e.awarder.Award(ctx, user, reward.ActionQuestCompleted, def.Reward, ref); err != nil {
			return nil, fmt.Errorf("quest %s reward: %w", questID, err)
		}
	}

	p.RewardClaimed = true
	if err := e.store.SaveProgress(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// claimReference scopes the payout key to one cycle so a repeatable quest
// pays once per cycle, not once ever.
func claimReference(questID QuestID, cycle int) string {
	return fmt.Sprintf("%s#%d", questID, cycle)
}

// ListQuests joins the catalog with the user's progress. Progress is nil
// for quests the user never accepted.
func (e *Engine) ListQuests(ctx context.Context, user ledger.UserID) ([]QuestStatus, error) {
	defs, err := e.catalog.Quests(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := e.store.ProgressByUser(ctx, user)
	if err != nil {
		return nil, err
	}

	byQuest := make(map[QuestID]*Progress, len(progress))
	for i := range progress {
		byQuest[progress[i].QuestID] = &progress[i]
	}

	statuses := make([]QuestStatus, 0, len(defs))
	for _, def := range defs {
		statuses = append(statuses, QuestStatus{Definition: def, Progress: byQuest[def.ID]})
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Definition.ID < statuses[j].Definition.ID
	})
	return statuses, nil
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

// Unlock records a one-shot achievement. Repeated calls are no-ops that
// never double-pay. The bool reports whether this call performed the
// unlock.
func (e *Engine) Unlock(ctx context.Context, user ledger.UserID, achievementID AchievementID) (bool, error) {
	def, err := e.catalog.Achievement(ctx, achievementID)
	if err != nil {
		return false, err
	}
	if def == nil {
		return false, fmt.Errorf("achievement %s: %w", achievementID, ErrUnknownAchievement)
	}

	unlock := e.lockPair(user, "ach:"+string(achievementID))
	defer unlock()

	already, err := e.store.Unlocked(ctx, user, achievementID)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	// Award first. If SaveUnlock fails afterwards, a retried unlock finds
	// no record, re-awards (deduped by the reference), and records it.
	if def.PointsReward > 0 {
		if _, err := e.awarder.Award(ctx, user, reward.ActionAchievement, def.PointsReward, string(achievementID)); err != nil {
			return false, fmt.Errorf("achievement %s reward: %w", achievementID, err)
		}
	}

	if err := e.store.SaveUnlock(ctx, Unlock{UserID: user, AchievementID: achievementID, UnlockedAt: e.clock()}); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) definition(ctx context.Context, questID QuestID) (*Definition, error) {
	def, err := e.catalog.Quest(ctx, questID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("quest %s: %w", questID, ErrUnknownQuest)
	}
	return def, nil
}
