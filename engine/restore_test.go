package engine

import (
	"errors"
	"testing"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

func TestManualRestoreFlipsMissToFrozen(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	var restored []Event
	eng.Subscribe(func(ev Event) {
		if ev.Name == EventStreakRestored {
			restored = append(restored, ev)
		}
	})

	days := daysEndingYesterday(t, 3)
	for _, d := range days[:2] {
		if _, err := eng.EvaluateDay(userID, d, true); err != nil {
			t.Fatalf("evaluate %s: %v", d, err)
		}
	}
	st, err := eng.EvaluateDay(userID, days[2], false)
	if err != nil {
		t.Fatalf("evaluate miss: %v", err)
	}
	if st.CurrentStreak != 0 {
		t.Fatalf("streak = %d before restore, want 0", st.CurrentStreak)
	}

	if _, err := eng.GrantFreezes(userID, 1); err != nil {
		t.Fatalf("grant freeze: %v", err)
	}

	st, err = eng.ManualFreezeActivation(userID, days[2])
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if st.CurrentStreak != 3 {
		t.Fatalf("streak = %d after restore, want 3", st.CurrentStreak)
	}
	if st.LongestStreak != 3 {
		t.Fatalf("longest = %d after restore, want 3", st.LongestStreak)
	}

	var record models.DayRecord
	if err := db.Where("user_id = ? AND date = ?", userID, days[2]).First(&record).Error; err != nil {
		t.Fatalf("day record: %v", err)
	}
	if record.Status != models.DayStatusFrozen {
		t.Fatalf("record status = %q, want FROZEN", record.Status)
	}
	if record.RestoredAt == nil {
		t.Fatal("RestoredAt not stamped")
	}

	left, _ := eng.FreezeBalance(userID)
	if left != 0 {
		t.Fatalf("freezes = %d after restore, want 0", left)
	}
	if len(restored) != 1 || restored[0].CurrentStreak != 3 {
		t.Fatalf("expected one streak_restored event with streak 3, got %+v", restored)
	}
}

func TestManualRestoreWithoutFreeze(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	days := daysEndingYesterday(t, 2)
	if _, err := eng.EvaluateDay(userID, days[0], true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := eng.EvaluateDay(userID, days[1], false); err != nil {
		t.Fatalf("evaluate miss: %v", err)
	}

	_, err := eng.ManualFreezeActivation(userID, days[1])
	if !errors.Is(err, ErrNoFreezeAvailable) {
		t.Fatalf("got %v, want ErrNoFreezeAvailable", err)
	}

	// Failure leaves the record and streak untouched.
	var record models.DayRecord
	db.Where("user_id = ? AND date = ?", userID, days[1]).First(&record)
	if record.Status != models.DayStatusMiss {
		t.Fatalf("record status = %q after failed restore, want MISS", record.Status)
	}
	var st models.StreakState
	db.Where("user_id = ?", userID).First(&st)
	if st.CurrentStreak != 0 {
		t.Fatalf("streak = %d after failed restore, want 0", st.CurrentStreak)
	}
}

func TestManualRestoreWindowIsYesterdayOnly(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	days := daysEndingYesterday(t, 3)
	if _, err := eng.EvaluateDay(userID, days[0], false); err != nil {
		t.Fatalf("evaluate miss: %v", err)
	}
	for _, d := range days[1:] {
		if _, err := eng.EvaluateDay(userID, d, true); err != nil {
			t.Fatalf("evaluate %s: %v", d, err)
		}
	}
	if _, err := eng.GrantFreezes(userID, 1); err != nil {
		t.Fatalf("grant freeze: %v", err)
	}

	// days[0] is two days back, outside the window.
	if _, err := eng.ManualFreezeActivation(userID, days[0]); !errors.Is(err, ErrRestoreWindowExpired) {
		t.Fatalf("got %v, want ErrRestoreWindowExpired", err)
	}

	// Yesterday was a HIT, nothing to restore.
	if _, err := eng.ManualFreezeActivation(userID, days[2]); !errors.Is(err, ErrRestoreWindowExpired) {
		t.Fatalf("restoring a HIT day: got %v, want ErrRestoreWindowExpired", err)
	}

	left, _ := eng.FreezeBalance(userID)
	if left != 1 {
		t.Fatalf("freezes = %d, failed restores must not consume tokens", left)
	}
}

func TestManualRestoreGrantsMilestone(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	days := daysEndingYesterday(t, 3)
	for _, d := range days[:2] {
		if _, err := eng.EvaluateDay(userID, d, true); err != nil {
			t.Fatalf("evaluate %s: %v", d, err)
		}
	}
	if _, err := eng.EvaluateDay(userID, days[2], false); err != nil {
		t.Fatalf("evaluate miss: %v", err)
	}
	if _, err := eng.GrantFreezes(userID, 1); err != nil {
		t.Fatalf("grant freeze: %v", err)
	}

	st, err := eng.ManualFreezeActivation(userID, days[2])
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if st.CurrentStreak != 3 {
		t.Fatalf("streak = %d, want 3", st.CurrentStreak)
	}

	balance, _ := eng.Balance(userID)
	if balance != 25 {
		t.Fatalf("balance = %d, want 25 from the recovered 3-day milestone", balance)
	}
}

func TestManualRestoreGrantsBridgedMilestones(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	var reached []Event
	eng.Subscribe(func(ev Event) {
		if ev.Name == EventMilestoneReached {
			reached = append(reached, ev)
		}
	})

	// Six hits, then yesterday's miss, then today already evaluated as a hit:
	// the restore recomputes the streak from 1 straight to 8, jumping over
	// the 7-day threshold without ever sitting exactly on it.
	days := daysEndingYesterday(t, 7)
	for _, d := range days[:6] {
		if _, err := eng.EvaluateDay(userID, d, true); err != nil {
			t.Fatalf("evaluate %s: %v", d, err)
		}
	}
	if _, err := eng.EvaluateDay(userID, days[6], false); err != nil {
		t.Fatalf("evaluate miss: %v", err)
	}
	today, _ := Today("")
	if _, err := eng.EvaluateDay(userID, today, true); err != nil {
		t.Fatalf("evaluate today: %v", err)
	}

	if _, err := eng.GrantFreezes(userID, 1); err != nil {
		t.Fatalf("grant freeze: %v", err)
	}
	st, err := eng.ManualFreezeActivation(userID, days[6])
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if st.CurrentStreak != 8 {
		t.Fatalf("streak = %d after restore, want 8", st.CurrentStreak)
	}

	// 25 from the 3-day milestone during the climb, 100 from the bridged
	// 7-day milestone.
	balance, _ := eng.Balance(userID)
	if balance != 125 {
		t.Fatalf("balance = %d, want 125 including the bridged 7-day reward", balance)
	}

	var awards []models.MilestoneAward
	db.Where("user_id = ?", userID).Order("threshold ASC").Find(&awards)
	if len(awards) != 2 || awards[0].Threshold != 3 || awards[1].Threshold != 7 {
		t.Fatalf("awards = %+v, want thresholds 3 and 7", awards)
	}
	if len(reached) != 2 || reached[1].Threshold != 7 {
		t.Fatalf("milestone events = %+v, want the bridged threshold 7", reached)
	}
}
