package engine

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

// GoalStatusProvider reports whether a user met the daily adherence goal on a
// given day. It is the nutrition-tracking collaborator; the engine treats the
// answer as ground truth and never recomputes it.
type GoalStatusProvider interface {
	DailyGoalStatus(userID uint, dayKey string) (bool, error)
}

// CatchUp replays every un-evaluated day from the day after the last
// evaluation through yesterday in the user's time zone, oldest first, asking
// the provider for each day's outcome. Returns the number of days evaluated.
//
// A user who has never been evaluated starts at yesterday only; the engine
// does not invent history before the account's first active day.
func (e *Engine) CatchUp(userID uint, timezone string, provider GoalStatusProvider) (int, error) {
	yesterday, err := Yesterday(timezone)
	if err != nil {
		return 0, err
	}

	var st models.StreakState
	err = e.db.Where("user_id = ?", userID).First(&st).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("load streak state: %w", err)
	}

	day := yesterday
	if st.LastEvaluatedDate != "" {
		behind, err := DaysBetween(st.LastEvaluatedDate, yesterday)
		if err != nil {
			return 0, err
		}
		if behind <= 0 {
			return 0, nil // already caught up
		}
		day, err = NextDay(st.LastEvaluatedDate)
		if err != nil {
			return 0, err
		}
	}

	evaluated := 0
	for {
		past, err := DaysBetween(day, yesterday)
		if err != nil {
			return evaluated, err
		}
		if past < 0 {
			break
		}

		goalMet, err := provider.DailyGoalStatus(userID, day)
		if err != nil {
			return evaluated, fmt.Errorf("goal status for %s: %w", day, err)
		}
		if _, err := e.EvaluateDay(userID, day, goalMet); err != nil {
			return evaluated, err
		}
		evaluated++

		day, err = NextDay(day)
		if err != nil {
			return evaluated, err
		}
	}
	return evaluated, nil
}
