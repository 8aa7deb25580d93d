/*
handlers.go - HTTP API handlers for the points engine

PURPOSE:
  Exposes the points ledger, reward dispatcher, quest engine, leaderboard
  and lottery via REST. Handles HTTP request/response, JSON serialization,
  and delegates to domain logic.

ENDPOINTS:
  Users:
    GET    /api/users/{id}/balance       Current balance
    GET    /api/users/{id}/transactions  Transaction history
    GET    /api/users/{id}/quests        Quest catalog joined with progress

  Points:
    POST   /api/points/transfer          User-to-user transfer
    POST   /api/points/award             Credit points for an action
    POST   /api/points/penalty           Deduct points

  Quests:
    GET    /api/quests                   List quest definitions
    POST   /api/quests/{id}/accept       Start a quest
    POST   /api/quests/{id}/progress     Report progress increments
    POST   /api/quests/{id}/claim        Claim a completed quest's reward

  Achievements:
    POST   /api/achievements/{id}/unlock One-shot unlock with payout

  Lottery:
    GET    /api/lottery                  Entry cost and expected return
    POST   /api/lottery/draw             Pay the entry cost, draw a prize

  Leaderboard:
    GET    /api/leaderboard              Ranked view (?period=all|week|month)

  Admin:
    POST   /api/admin/quests             Upsert quest definition
    POST   /api/admin/achievements       Upsert achievement definition

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, insufficient balance
  - 404: Unknown user/quest/achievement
  - 409: State conflicts (already active, not completed, inactive)
  - 500: Internal errors
  Duplicate triggers are NOT errors: the handler replies 200 with
  duplicate=true and the originally recorded transaction.

SECURITY NOTE:
  No authentication middleware. The engine expects to sit behind the
  community app's gateway, which owns identity.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neighborly/points-engine/leaderboard"
	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/lottery"
	"github.com/neighborly/points-engine/quest"
	"github.com/neighborly/points-engine/reward"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// AdminStore is the write side of the quest and achievement catalogs.
// The engine itself only reads definitions; upserts arrive through the
// admin endpoints. Satisfied by *sqlite.Store.
type AdminStore interface {
	SaveQuest(ctx context.Context, def quest.Definition) error
	SaveAchievement(ctx context.Context, a quest.Achievement) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *ledger.Ledger
	Rewards *reward.Dispatcher
	Quests  *quest.Engine
	Board   *leaderboard.View
	Lottery *lottery.Lottery
	Admin   AdminStore // nil disables the admin routes
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// GetBalance returns a user's current balance.
// GET /api/users/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user := ledger.UserID(chi.URLParam(r, "id"))

	balance, err := h.Ledger.Balance(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:  string(user),
		Balance: balance,
	})
}

// GetTransactions returns a user's transaction history, most recent first.
// GET /api/users/{id}/transactions?limit=50
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	user := ledger.UserID(chi.URLParam(r, "id"))

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	txs, err := h.Ledger.History(r.Context(), user, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUserQuests returns the quest catalog joined with the user's progress.
// GET /api/users/{id}/quests
func (h *Handler) GetUserQuests(w http.ResponseWriter, r *http.Request) {
	user := ledger.UserID(chi.URLParam(r, "id"))

	statuses, err := h.Quests.ListQuests(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]QuestDTO, len(statuses))
	for i, s := range statuses {
		dtos[i] = toQuestDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// POINTS HANDLERS
// =============================================================================

// Transfer moves points between two users.
// POST /api/points/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", nil)
		return
	}

	tx, err := h.Ledger.Transfer(r.Context(),
		ledger.UserID(req.From), ledger.UserID(req.To), req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	recordTransaction("transfer", "applied")
	writeJSON(w, http.StatusOK, OperationDTO{Transaction: toTransactionDTO(tx)})
}

// Award credits points to a user for an action. When the request carries a
// reference, retries are answered with the originally recorded transaction
// and duplicate=true.
// POST /api/points/award
func (h *Handler) Award(w http.ResponseWriter, r *http.Request) {
	var req AwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "user_id and action are required", nil)
		return
	}

	result, err := h.Rewards.Award(r.Context(),
		ledger.UserID(req.UserID), req.Action, req.Amount, req.Reference)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	recordTransaction("award", outcome(result.Noop))
	writeJSON(w, http.StatusOK, OperationDTO{
		Transaction: toTransactionDTO(result.Transaction),
		Duplicate:   result.Noop,
	})
}

// Penalty deducts points from a user.
// POST /api/points/penalty
func (h *Handler) Penalty(w http.ResponseWriter, r *http.Request) {
	var req PenaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "user_id and action are required", nil)
		return
	}

	result, err := h.Rewards.Penalize(r.Context(),
		ledger.UserID(req.UserID), req.Action, req.Amount, req.Reference)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	recordTransaction("penalty", outcome(result.Noop))
	writeJSON(w, http.StatusOK, OperationDTO{
		Transaction: toTransactionDTO(result.Transaction),
		Duplicate:   result.Noop,
	})
}

// =============================================================================
// QUEST HANDLERS
// =============================================================================

// ListQuests returns all quest definitions. An optional user_id query
// parameter joins in that user's progress.
// GET /api/quests?user_id=alice
func (h *Handler) ListQuests(w http.ResponseWriter, r *http.Request) {
	user := ledger.UserID(r.URL.Query().Get("user_id"))

	statuses, err := h.Quests.ListQuests(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]QuestDTO, len(statuses))
	for i, s := range statuses {
		dtos[i] = toQuestDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AcceptQuest starts a quest for a user.
// POST /api/quests/{id}/accept
func (h *Handler) AcceptQuest(w http.ResponseWriter, r *http.Request) {
	questID := quest.QuestID(chi.URLParam(r, "id"))

	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	p, err := h.Quests.Accept(r.Context(), ledger.UserID(req.UserID), questID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProgressDTO(p))
}

// ReportProgress applies a progress increment. Reports against quests the
// user is not actively pursuing are acknowledged and ignored.
// POST /api/quests/{id}/progress
func (h *Handler) ReportProgress(w http.ResponseWriter, r *http.Request) {
	questID := quest.QuestID(chi.URLParam(r, "id"))

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	p, err := h.Quests.ReportProgress(r.Context(), ledger.UserID(req.UserID), questID, req.Delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p == nil {
		// Not in progress; nothing recorded.
		writeJSON(w, http.StatusOK, ProgressDTO{
			UserID:  req.UserID,
			QuestID: string(questID),
			State:   string(quest.StateNotStarted),
		})
		return
	}

	writeJSON(w, http.StatusOK, toProgressDTO(p))
}

// ClaimQuest pays out a completed quest's reward.
// POST /api/quests/{id}/claim
func (h *Handler) ClaimQuest(w http.ResponseWriter, r *http.Request) {
	questID := quest.QuestID(chi.URLParam(r, "id"))

	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	p, err := h.Quests.Claim(r.Context(), ledger.UserID(req.UserID), questID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	recordQuestClaim()
	writeJSON(w, http.StatusOK, toProgressDTO(p))
}

// =============================================================================
// ACHIEVEMENT HANDLERS
// =============================================================================

// UnlockAchievement records a one-shot unlock and pays its reward.
// Unlocking an achievement the user already holds is not an error.
// POST /api/achievements/{id}/unlock
func (h *Handler) UnlockAchievement(w http.ResponseWriter, r *http.Request) {
	achievementID := quest.AchievementID(chi.URLParam(r, "id"))

	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	unlocked, err := h.Quests.Unlock(r.Context(), ledger.UserID(req.UserID), achievementID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UnlockDTO{
		UserID:          req.UserID,
		AchievementID:   string(achievementID),
		Unlocked:        true,
		AlreadyUnlocked: !unlocked,
	})
}

// =============================================================================
// LOTTERY HANDLERS
// =============================================================================

// GetLottery returns the entry cost and the expected return per draw.
// GET /api/lottery
func (h *Handler) GetLottery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cost":            h.Lottery.Cost(),
		"expected_return": h.Lottery.ExpectedReturn().StringFixed(4),
	})
}

// DrawLottery charges the entry cost and draws a prize.
// POST /api/lottery/draw
func (h *Handler) DrawLottery(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	result, err := h.Lottery.Draw(r.Context(), ledger.UserID(req.UserID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	recordLotteryDraw(result.Prize.Name)
	writeJSON(w, http.StatusOK, DrawDTO{
		DrawID: result.DrawID,
		Prize:  result.Prize.Name,
		Amount: result.Prize.Amount,
		Replay: result.Noop,
	})
}

// =============================================================================
// LEADERBOARD HANDLERS
// =============================================================================

// GetLeaderboard returns the ranked view for a period.
// GET /api/leaderboard?period=week&limit=10
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Board.Top(r.Context(), period, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build leaderboard", err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaderboardDTO(period, entries))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SaveQuest upserts a quest definition.
// POST /api/admin/quests
func (h *Handler) SaveQuest(w http.ResponseWriter, r *http.Request) {
	var req SaveQuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Target <= 0 {
		writeError(w, http.StatusBadRequest, "id and a positive target are required", nil)
		return
	}

	def := quest.Definition{
		ID:         quest.QuestID(req.ID),
		Title:      req.Title,
		Target:     req.Target,
		Reward:     req.Reward,
		Category:   req.Category,
		Repeatable: req.Repeatable,
		Active:     req.Active,
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at (use RFC3339)", err)
			return
		}
		def.ExpiresAt = &t
	}

	if err := h.Admin.SaveQuest(r.Context(), def); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save quest", err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// SaveAchievement upserts an achievement definition.
// POST /api/admin/achievements
func (h *Handler) SaveAchievement(w http.ResponseWriter, r *http.Request) {
	var req SaveAchievementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	a := quest.Achievement{
		ID:           quest.AchievementID(req.ID),
		Title:        req.Title,
		PointsReward: req.PointsReward,
	}
	if err := h.Admin.SaveAchievement(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save achievement", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidTransfer),
		errors.Is(err, reward.ErrUnknownAction):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status, code = http.StatusBadRequest, "insufficient_balance"
	case errors.Is(err, ledger.ErrUnknownAccount):
		status, code = http.StatusNotFound, "unknown_user"
	case errors.Is(err, quest.ErrUnknownQuest):
		status, code = http.StatusNotFound, "unknown_quest"
	case errors.Is(err, quest.ErrUnknownAchievement):
		status, code = http.StatusNotFound, "unknown_achievement"
	case errors.Is(err, quest.ErrAlreadyActive):
		status, code = http.StatusConflict, "already_active"
	case errors.Is(err, quest.ErrNotCompleted):
		status, code = http.StatusConflict, "not_completed"
	case errors.Is(err, quest.ErrQuestInactive):
		status, code = http.StatusConflict, "quest_inactive"
	case errors.Is(err, ledger.ErrDuplicateOperation):
		status, code = http.StatusConflict, "duplicate_operation"
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func outcome(noop bool) string {
	if noop {
		return "duplicate"
	}
	return "applied"
}
