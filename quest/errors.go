package quest

import "errors"

// Expected, recoverable outcomes. Transports map these to domain-appropriate
// messages ("quest already in progress", "nothing to claim").
var (
	// ErrQuestInactive is returned when accepting a quest whose definition
	// is disabled or past its expiry.
	ErrQuestInactive = errors.New("quest inactive")

	// ErrAlreadyActive is returned when accepting a quest that already has
	// an in-progress or unclaimed-completed record, or a terminally
	// rewarded non-repeatable one.
	ErrAlreadyActive = errors.New("quest already active")

	// ErrNotCompleted is returned when claiming a quest that is not in the
	// Completed state. A second claim after a successful one lands here
	// too: the state has already advanced to Rewarded.
	ErrNotCompleted = errors.New("quest not completed")

	// ErrUnknownQuest is returned for quest IDs absent from the catalog.
	ErrUnknownQuest = errors.New("unknown quest")

	// ErrUnknownAchievement is returned for achievement IDs absent from
	// the catalog.
	ErrUnknownAchievement = errors.New("unknown achievement")
)

// IsClientError returns true for expected business outcomes.
func IsClientError(err error) bool {
	return errors.Is(err, ErrQuestInactive) ||
		errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrNotCompleted) ||
		errors.Is(err, ErrUnknownQuest) ||
		errors.Is(err, ErrUnknownAchievement)
}
