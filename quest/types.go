/*
Package quest tracks progress toward multi-step goals that pay out exactly
once.

PURPOSE:
  Holds a progress counter per (user, quest) pair, advances it on reported
  events, and on reaching the target makes the quest claimable. Claiming
  triggers exactly one reward per cycle through the Reward Dispatcher.
  Achievements are the simpler one-shot variant: unlocked once, permanent.

STATE MACHINE per (user, quest):

  NotStarted -> InProgress -> Completed -> Rewarded
                    ^                         |
                    +------ (repeatable) -----+

  Repeatable quests start a fresh cycle on the next Accept after the reward
  is claimed; non-repeatable quests are terminally Rewarded.

KEY CONCEPTS IN THIS FILE (types.go):
  - Definition:  Admin-maintained quest catalog entry (read-only here)
  - Progress:    Mutable per-pair counter with the derived State
  - Achievement: One-shot unlock definition with optional points reward

SEE ALSO:
  - engine.go: Accept / ReportProgress / Claim / Unlock
  - errors.go: Error taxonomy
*/
package quest

import (
	"context"
	"time"

	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/reward"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type QuestID string
type AchievementID string

// =============================================================================
// STATE
// =============================================================================

type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed" // target reached, reward unclaimed
	StateRewarded   State = "rewarded"
)

// =============================================================================
// DEFINITIONS - Admin-maintained catalog, read-only at evaluation time
// =============================================================================

// Definition describes a quest. Category is the single canonical
// discriminant; there is no separate quest_type.
type Definition struct {
	ID         QuestID
	Title      string
	Target     int64 // positive
	Reward     int64 // non-negative; 0 = bragging rights only
	Category   string
	Repeatable bool
	Active     bool
	ExpiresAt  *time.Time // nil = never expires
}

// AcceptableAt reports whether the quest can be accepted at the given time.
func (d Definition) AcceptableAt(now time.Time) bool {
	if !d.Active {
		return false
	}
	return d.ExpiresAt == nil || now.Before(*d.ExpiresAt)
}

// Achievement describes a one-shot unlock. PointsReward of 0 means the
// unlock itself is the reward.
type Achievement struct {
	ID           AchievementID
	Title        string
	PointsReward int64
}

// =============================================================================
// PROGRESS - The only mutable quest state
// =============================================================================

// Progress is the counter for one (user, quest) pair. The progress value is
// monotonically non-decreasing within a cycle, capped at the target; it
// resets to 0 only when a repeatable quest is re-accepted after its reward
// was claimed, which starts the next Cycle.
type Progress struct {
	UserID        ledger.UserID
	QuestID       QuestID
	Cycle         int // 1-based
	Progress      int64
	Completed     bool
	CompletedAt   *time.Time
	RewardClaimed bool
	AcceptedAt    time.Time
}

// State derives the machine state from the stored flags.
func (p *Progress) State() State {
	switch {
	case p == nil:
		return StateNotStarted
	case p.RewardClaimed:
		return StateRewarded
	case p.Completed:
		return StateCompleted
	default:
		return StateInProgress
	}
}

// Unlock records a permanent achievement unlock. Created once, never
// mutated.
type Unlock struct {
	UserID        ledger.UserID
	AchievementID AchievementID
	UnlockedAt    time.Time
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Catalog is the read-only definition store maintained by an admin-facing
// collaborator.
type Catalog interface {
	Quest(ctx context.Context, id QuestID) (*Definition, error)
	Quests(ctx context.Context) ([]Definition, error)
	Achievement(ctx context.Context, id AchievementID) (*Achievement, error)
}

// ProgressStore persists quest progress and achievement unlocks. Progress
// rows are mutated only by the Engine.
type ProgressStore interface {
	Progress(ctx context.Context, user ledger.UserID, quest QuestID) (*Progress, error)
	SaveProgress(ctx context.Context, p Progress) error
	ProgressByUser(ctx context.Context, user ledger.UserID) ([]Progress, error)

	Unlocked(ctx context.Context, user ledger.UserID, achievement AchievementID) (bool, error)
	SaveUnlock(ctx context.Context, u Unlock) error
}

// Awarder is the slice of the Reward Dispatcher the engine needs.
// *reward.Dispatcher satisfies it.
type Awarder interface {
	Award(ctx context.Context, user ledger.UserID, action string, amount int64, reference string) (reward.Result, error)
}

// QuestStatus pairs a definition with the user's progress (nil when the
// user never accepted the quest).
type QuestStatus struct {
	Definition Definition
	Progress   *Progress
}
