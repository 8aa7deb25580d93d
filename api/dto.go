/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients, decoupled from the domain
  types. Domain types never grow json tags; conversion happens here.

CONVENTIONS:
  - Timestamps: RFC3339 strings
  - Amounts: integer points (no fractions in the economy)
  - Optional fields marked with omitempty

SEE ALSO:
  - handlers.go: Produces and consumes these structures
*/
package api

import (
	"time"

	"github.com/neighborly/points-engine/leaderboard"
	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/quest"
)

// =============================================================================
// REQUEST STRUCTURES
// =============================================================================

// TransferRequest moves points between two users.
type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// AwardRequest credits points to a user for an action. Amount may be zero
// to use the catalog amount for the action. Reference makes the award
// idempotent.
type AwardRequest struct {
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Amount    int64  `json:"amount,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// PenaltyRequest deducts points from a user.
type PenaltyRequest struct {
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// ProgressRequest reports quest progress increments.
type ProgressRequest struct {
	UserID string `json:"user_id"`
	Delta  int64  `json:"delta"`
}

// UserRequest carries just a user ID, for accept/claim/unlock/draw calls.
type UserRequest struct {
	UserID string `json:"user_id"`
}

// SaveQuestRequest upserts a quest definition (admin).
type SaveQuestRequest struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Target     int64  `json:"target"`
	Reward     int64  `json:"reward"`
	Category   string `json:"category,omitempty"`
	Repeatable bool   `json:"repeatable"`
	Active     bool   `json:"active"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

// SaveAchievementRequest upserts an achievement definition (admin).
type SaveAchievementRequest struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	PointsReward int64  `json:"points_reward"`
}

// =============================================================================
// RESPONSE STRUCTURES
// =============================================================================

// BalanceDTO is the balance summary for a user.
type BalanceDTO struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// ProgressDTO reports the state of one (user, quest) pair after an
// accept/progress/claim call.
type ProgressDTO struct {
	UserID        string `json:"user_id"`
	QuestID       string `json:"quest_id"`
	Cycle         int    `json:"cycle"`
	Progress      int64  `json:"progress"`
	State         string `json:"state"`
	RewardClaimed bool   `json:"reward_claimed"`
}

// TransactionDTO is one ledger entry.
type TransactionDTO struct {
	ID        int64   `json:"id"`
	From      *string `json:"from,omitempty"`
	To        *string `json:"to,omitempty"`
	Amount    int64   `json:"amount"`
	Reason    string  `json:"reason,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// OperationDTO is the result of an award, penalty or transfer.
// Duplicate==true signals the operation was already applied earlier and no
// new transaction was created.
type OperationDTO struct {
	Transaction TransactionDTO `json:"transaction"`
	Duplicate   bool           `json:"duplicate,omitempty"`
}

// QuestDTO joins a quest definition with the caller's progress, if any.
type QuestDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Target     int64  `json:"target"`
	Reward     int64  `json:"reward"`
	Category   string `json:"category,omitempty"`
	Repeatable bool   `json:"repeatable"`
	Active     bool   `json:"active"`
	ExpiresAt  string `json:"expires_at,omitempty"`

	State    string `json:"state"`
	Progress int64  `json:"progress"`
	Cycle    int    `json:"cycle,omitempty"`
}

// UnlockDTO reports the outcome of an achievement unlock attempt.
type UnlockDTO struct {
	UserID          string `json:"user_id"`
	AchievementID   string `json:"achievement_id"`
	Unlocked        bool   `json:"unlocked"`
	AlreadyUnlocked bool   `json:"already_unlocked,omitempty"`
}

// DrawDTO reports a lottery draw outcome.
type DrawDTO struct {
	DrawID string `json:"draw_id"`
	Prize  string `json:"prize"`
	Amount int64  `json:"amount"`
	Replay bool   `json:"replay,omitempty"`
}

// LeaderboardEntryDTO is one ranked row.
type LeaderboardEntryDTO struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}

// LeaderboardDTO is a ranked view for one period.
type LeaderboardDTO struct {
	Period  string                `json:"period"`
	Entries []LeaderboardEntryDTO `json:"entries"`
}

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:        int64(tx.ID),
		Amount:    tx.Amount,
		Reason:    tx.Reason,
		CreatedAt: tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.From != nil {
		s := string(*tx.From)
		dto.From = &s
	}
	if tx.To != nil {
		s := string(*tx.To)
		dto.To = &s
	}
	return dto
}

func toQuestDTO(status quest.QuestStatus) QuestDTO {
	def := status.Definition
	dto := QuestDTO{
		ID:         string(def.ID),
		Title:      def.Title,
		Target:     def.Target,
		Reward:     def.Reward,
		Category:   def.Category,
		Repeatable: def.Repeatable,
		Active:     def.Active,
		State:      string(status.Progress.State()),
	}
	if def.ExpiresAt != nil {
		dto.ExpiresAt = def.ExpiresAt.Format(time.RFC3339)
	}
	if p := status.Progress; p != nil {
		dto.Progress = p.Progress
		dto.Cycle = p.Cycle
	}
	return dto
}

func toProgressDTO(p *quest.Progress) ProgressDTO {
	return ProgressDTO{
		UserID:        string(p.UserID),
		QuestID:       string(p.QuestID),
		Cycle:         p.Cycle,
		Progress:      p.Progress,
		State:         string(p.State()),
		RewardClaimed: p.RewardClaimed,
	}
}

func toLeaderboardDTO(period leaderboard.Period, entries []leaderboard.Entry) LeaderboardDTO {
	dto := LeaderboardDTO{
		Period:  string(period),
		Entries: make([]LeaderboardEntryDTO, len(entries)),
	}
	for i, e := range entries {
		dto.Entries[i] = LeaderboardEntryDTO{
			Rank:   e.Rank,
			UserID: string(e.UserID),
			Points: e.Points,
		}
	}
	return dto
}
