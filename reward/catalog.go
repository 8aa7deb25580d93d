/*
catalog.go - Central action -> amount resolution

PURPOSE:
  The original handlers scattered reward amounts as literals across routes
  (register here, post there). The catalog centralizes them so the economy
  is auditable and testable in one place, away from request handling.
*/
package reward

// Catalog maps a named action to the points it pays.
type Catalog map[string]int64

// Well-known action names reported by collaborators.
const (
	ActionRegistered      = "registered"
	ActionPostCreated     = "post_created"
	ActionGroupJoined     = "group_joined"
	ActionActivityCreated = "activity_created"
	ActionDailyCheckin    = "daily_checkin"
	ActionEventCheckin    = "event_checkin"
	ActionTaskCompleted   = "task_completed"
	ActionQuestCompleted  = "quest_completed"
	ActionAchievement     = "achievement_unlocked"
	ActionLotteryPrize    = "lottery_prize"
)

// DefaultCatalog carries the community economy's standing amounts.
// Actions with caller-supplied amounts (task rewards, quest rewards,
// lottery prizes) are deliberately absent: their amount comes from the
// definition that triggered them.
func DefaultCatalog() Catalog {
	return Catalog{
		ActionRegistered:      50,
		ActionPostCreated:     5,
		ActionGroupJoined:     3,
		ActionActivityCreated: 8,
		ActionDailyCheckin:    5,
		ActionEventCheckin:    10,
	}
}

// Amount resolves an action's standing amount.
func (c Catalog) Amount(action string) (int64, bool) {
	amount, ok := c[action]
	return amount, ok
}
