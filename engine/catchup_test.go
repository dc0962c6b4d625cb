package engine

import (
	"testing"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

type mapProvider map[string]bool

func (p mapProvider) DailyGoalStatus(userID uint, dayKey string) (bool, error) {
	return p[dayKey], nil
}

func TestCatchUpNewUserStartsAtYesterday(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	yesterday, _ := Yesterday("")
	n, err := eng.CatchUp(userID, "", mapProvider{yesterday: true})
	if err != nil {
		t.Fatalf("catch up: %v", err)
	}
	if n != 1 {
		t.Fatalf("evaluated %d days, want 1 (no invented history)", n)
	}

	var st models.StreakState
	db.Where("user_id = ?", userID).First(&st)
	if st.CurrentStreak != 1 || st.LastEvaluatedDate != yesterday {
		t.Fatalf("state = %d/%s, want 1/%s", st.CurrentStreak, st.LastEvaluatedDate, yesterday)
	}
}

func TestCatchUpReplaysMissedDays(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	days := daysEndingYesterday(t, 4)
	if _, err := eng.EvaluateDay(userID, days[0], true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	outcomes := mapProvider{days[1]: true, days[2]: false, days[3]: true}
	n, err := eng.CatchUp(userID, "", outcomes)
	if err != nil {
		t.Fatalf("catch up: %v", err)
	}
	if n != 3 {
		t.Fatalf("evaluated %d days, want 3", n)
	}

	var st models.StreakState
	db.Where("user_id = ?", userID).First(&st)
	if st.CurrentStreak != 1 {
		t.Fatalf("streak = %d, want 1 (miss on %s reset it)", st.CurrentStreak, days[2])
	}
	if st.LastEvaluatedDate != days[3] {
		t.Fatalf("last evaluated = %s, want %s", st.LastEvaluatedDate, days[3])
	}

	// Re-running is a no-op.
	n, err = eng.CatchUp(userID, "", outcomes)
	if err != nil {
		t.Fatalf("second catch up: %v", err)
	}
	if n != 0 {
		t.Fatalf("evaluated %d days on re-run, want 0", n)
	}
}

func TestCatchUpUsesFreezes(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if _, err := eng.GrantFreezes(userID, 1); err != nil {
		t.Fatalf("grant freeze: %v", err)
	}

	days := daysEndingYesterday(t, 3)
	if _, err := eng.EvaluateDay(userID, days[0], true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	// Both replayed days are silent; only one freeze is available.
	n, err := eng.CatchUp(userID, "", mapProvider{})
	if err != nil {
		t.Fatalf("catch up: %v", err)
	}
	if n != 2 {
		t.Fatalf("evaluated %d days, want 2", n)
	}

	var st models.StreakState
	db.Where("user_id = ?", userID).First(&st)
	if st.CurrentStreak != 0 {
		t.Fatalf("streak = %d, want 0 after the second uncovered miss", st.CurrentStreak)
	}

	var records []models.DayRecord
	db.Where("user_id = ?", userID).Order("date ASC").Find(&records)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[1].Status != models.DayStatusFrozen || records[2].Status != models.DayStatusMiss {
		t.Fatalf("statuses = %s, %s; want FROZEN then MISS", records[1].Status, records[2].Status)
	}
}
