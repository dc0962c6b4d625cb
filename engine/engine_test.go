package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.StreakState{},
		&models.DayRecord{},
		&models.MilestoneAward{},
		&models.Wallet{},
		&models.CoinTransaction{},
		&models.FreezeInventory{},
		&models.CosmeticUnlock{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	eng, err := New(db, cfg, nil)
	if err != nil {
		t.Fatalf("engine init: %v", err)
	}
	return eng, db
}

func seedUser(t *testing.T, db *gorm.DB, timezone string) uint {
	t.Helper()
	user := models.User{
		Username:     fmt.Sprintf("tester%d", len(t.Name())),
		PasswordHash: "x",
		Provider:     "local",
		Timezone:     timezone,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

// daysEndingYesterday returns n consecutive day keys, the last of which is
// yesterday in UTC.
func daysEndingYesterday(t *testing.T, n int) []string {
	t.Helper()
	day, err := Yesterday("")
	if err != nil {
		t.Fatalf("yesterday: %v", err)
	}
	keys := make([]string, n)
	for i := n - 1; i >= 0; i-- {
		keys[i] = day
		day, err = PrevDay(day)
		if err != nil {
			t.Fatalf("prev day: %v", err)
		}
	}
	return keys
}

func TestEvaluateDayFirstHit(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	st, err := eng.EvaluateDay(userID, "2024-03-01", true)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if st.CurrentStreak != 1 || st.LongestStreak != 1 {
		t.Fatalf("got streak %d/%d, want 1/1", st.CurrentStreak, st.LongestStreak)
	}
	if st.LastEvaluatedDate != "2024-03-01" {
		t.Fatalf("last evaluated = %q", st.LastEvaluatedDate)
	}

	var record models.DayRecord
	if err := db.Where("user_id = ? AND date = ?", userID, "2024-03-01").First(&record).Error; err != nil {
		t.Fatalf("day record missing: %v", err)
	}
	if record.Status != models.DayStatusHit {
		t.Fatalf("record status = %q, want HIT", record.Status)
	}
}

func TestEvaluateDayConsecutiveHits(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	days := []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04"}
	var st *models.StreakState
	var err error
	for _, d := range days {
		st, err = eng.EvaluateDay(userID, d, true)
		if err != nil {
			t.Fatalf("evaluate %s: %v", d, err)
		}
	}
	if st.CurrentStreak != 4 || st.LongestStreak != 4 {
		t.Fatalf("got streak %d/%d, want 4/4", st.CurrentStreak, st.LongestStreak)
	}
}

func TestEvaluateDayMissResetsStreak(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	var broken []Event
	eng.Subscribe(func(ev Event) {
		if ev.Name == EventStreakBroken {
			broken = append(broken, ev)
		}
	})

	for _, d := range []string{"2024-03-01", "2024-03-02"} {
		if _, err := eng.EvaluateDay(userID, d, true); err != nil {
			t.Fatalf("evaluate %s: %v", d, err)
		}
	}
	st, err := eng.EvaluateDay(userID, "2024-03-03", false)
	if err != nil {
		t.Fatalf("evaluate miss: %v", err)
	}
	if st.CurrentStreak != 0 {
		t.Fatalf("streak = %d after miss, want 0", st.CurrentStreak)
	}
	if st.LongestStreak != 2 {
		t.Fatalf("longest = %d, want 2 preserved", st.LongestStreak)
	}
	if len(broken) != 1 || broken[0].PreviousStreak != 2 {
		t.Fatalf("expected one streak_broken event with previous=2, got %+v", broken)
	}

	var record models.DayRecord
	db.Where("user_id = ? AND date = ?", userID, "2024-03-03").First(&record)
	if record.Status != models.DayStatusMiss {
		t.Fatalf("record status = %q, want MISS", record.Status)
	}
}

func TestEvaluateDayFreezeCoversMiss(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if _, err := eng.GrantFreezes(userID, 1); err != nil {
		t.Fatalf("grant freeze: %v", err)
	}
	if _, err := eng.EvaluateDay(userID, "2024-03-01", true); err != nil {
		t.Fatalf("evaluate hit: %v", err)
	}

	st, err := eng.EvaluateDay(userID, "2024-03-02", false)
	if err != nil {
		t.Fatalf("evaluate miss: %v", err)
	}
	if st.CurrentStreak != 2 {
		t.Fatalf("streak = %d, want 2 (frozen day extends)", st.CurrentStreak)
	}

	var record models.DayRecord
	db.Where("user_id = ? AND date = ?", userID, "2024-03-02").First(&record)
	if record.Status != models.DayStatusFrozen {
		t.Fatalf("record status = %q, want FROZEN", record.Status)
	}

	left, err := eng.FreezeBalance(userID)
	if err != nil {
		t.Fatalf("freeze balance: %v", err)
	}
	if left != 0 {
		t.Fatalf("freezes left = %d, want 0", left)
	}
}

func TestEvaluateDayIdempotentReplay(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if _, err := eng.EvaluateDay(userID, "2024-03-01", true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	st, err := eng.EvaluateDay(userID, "2024-03-01", true)
	if err != nil {
		t.Fatalf("replay with same signal should be a no-op, got %v", err)
	}
	if st.CurrentStreak != 1 {
		t.Fatalf("streak changed on replay: %d", st.CurrentStreak)
	}

	var count int64
	db.Model(&models.DayRecord{}).Where("user_id = ?", userID).Count(&count)
	if count != 1 {
		t.Fatalf("day records = %d, want 1", count)
	}

	// A conflicting signal for a finalized day is rejected.
	if _, err := eng.EvaluateDay(userID, "2024-03-01", false); !errors.Is(err, ErrOutOfOrderEvaluation) {
		t.Fatalf("conflicting replay: got %v, want ErrOutOfOrderEvaluation", err)
	}
}

func TestEvaluateDayRejectsGaps(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if _, err := eng.EvaluateDay(userID, "2024-03-01", true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := eng.EvaluateDay(userID, "2024-03-03", true); !errors.Is(err, ErrOutOfOrderEvaluation) {
		t.Fatalf("skipping a day: got %v, want ErrOutOfOrderEvaluation", err)
	}
	if _, err := eng.EvaluateDay(userID, "2024-02-28", true); !errors.Is(err, ErrOutOfOrderEvaluation) {
		t.Fatalf("evaluating the past: got %v, want ErrOutOfOrderEvaluation", err)
	}
}

func TestEvaluateDayInvalidKey(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if _, err := eng.EvaluateDay(userID, "03/01/2024", true); err == nil {
		t.Fatal("expected error for malformed day key")
	}
}

func TestMilestoneGrantedOnce(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	var milestones []Event
	eng.Subscribe(func(ev Event) {
		if ev.Name == EventMilestoneReached {
			milestones = append(milestones, ev)
		}
	})

	day := "2024-03-01"
	for i := 0; i < 3; i++ {
		if _, err := eng.EvaluateDay(userID, day, true); err != nil {
			t.Fatalf("evaluate %s: %v", day, err)
		}
		day, _ = NextDay(day)
	}

	balance, err := eng.Balance(userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 25 {
		t.Fatalf("balance = %d after 3-day milestone, want 25", balance)
	}
	if len(milestones) != 1 || milestones[0].Threshold != 3 {
		t.Fatalf("expected one milestone event at threshold 3, got %+v", milestones)
	}

	// Break the streak, climb back to 3: the reward must not repeat.
	if _, err := eng.EvaluateDay(userID, day, false); err != nil {
		t.Fatalf("evaluate miss: %v", err)
	}
	day, _ = NextDay(day)
	for i := 0; i < 3; i++ {
		if _, err := eng.EvaluateDay(userID, day, true); err != nil {
			t.Fatalf("evaluate %s: %v", day, err)
		}
		day, _ = NextDay(day)
	}

	balance, _ = eng.Balance(userID)
	if balance != 25 {
		t.Fatalf("balance = %d after re-climb, want still 25", balance)
	}
	if len(milestones) != 1 {
		t.Fatalf("milestone event fired again: %+v", milestones)
	}

	var awards int64
	db.Model(&models.MilestoneAward{}).Where("user_id = ?", userID).Count(&awards)
	if awards != 1 {
		t.Fatalf("award rows = %d, want 1", awards)
	}
}

func TestFrozenDayCountsTowardMilestone(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	if _, err := eng.GrantFreezes(userID, 1); err != nil {
		t.Fatalf("grant freeze: %v", err)
	}

	signals := []bool{true, false, true} // day 2 is covered by the freeze
	day := "2024-03-01"
	var st *models.StreakState
	var err error
	for _, met := range signals {
		st, err = eng.EvaluateDay(userID, day, met)
		if err != nil {
			t.Fatalf("evaluate %s: %v", day, err)
		}
		day, _ = NextDay(day)
	}
	if st.CurrentStreak != 3 {
		t.Fatalf("streak = %d, want 3", st.CurrentStreak)
	}

	balance, _ := eng.Balance(userID)
	if balance != 25 {
		t.Fatalf("balance = %d, want 25 from the 3-day milestone", balance)
	}
}

func TestEvaluateDayRejectsFutureDays(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	today, _ := Today("")
	tomorrow, _ := NextDay(today)

	// A first evaluation cannot start in the future either.
	if _, err := eng.EvaluateDay(userID, tomorrow, true); !errors.Is(err, ErrOutOfOrderEvaluation) {
		t.Fatalf("future first day: got %v, want ErrOutOfOrderEvaluation", err)
	}

	if _, err := eng.EvaluateDay(userID, today, true); err != nil {
		t.Fatalf("evaluate today: %v", err)
	}
	if _, err := eng.EvaluateDay(userID, tomorrow, true); !errors.Is(err, ErrOutOfOrderEvaluation) {
		t.Fatalf("evaluating tomorrow: got %v, want ErrOutOfOrderEvaluation", err)
	}

	var count int64
	db.Model(&models.DayRecord{}).Where("user_id = ?", userID).Count(&count)
	if count != 1 {
		t.Fatalf("day records = %d, rejected future days must leave no trace", count)
	}
	var st models.StreakState
	db.Where("user_id = ?", userID).First(&st)
	if st.CurrentStreak != 1 {
		t.Fatalf("streak = %d, want 1", st.CurrentStreak)
	}
}

func TestListenerMayReenterEngine(t *testing.T) {
	eng, db := newTestEngine(t, Config{})
	userID := seedUser(t, db, "")

	// Listeners run after the per-user lock is released, so one that calls
	// back into the engine for the same user must not deadlock.
	eng.Subscribe(func(ev Event) {
		if ev.Name == EventMilestoneReached {
			if _, err := eng.GrantFreezes(ev.UserID, 1); err != nil {
				t.Errorf("listener grant: %v", err)
			}
		}
	})

	day := "2024-03-01"
	for i := 0; i < 3; i++ {
		if _, err := eng.EvaluateDay(userID, day, true); err != nil {
			t.Fatalf("evaluate %s: %v", day, err)
		}
		day, _ = NextDay(day)
	}

	left, err := eng.FreezeBalance(userID)
	if err != nil {
		t.Fatalf("freeze balance: %v", err)
	}
	if left != 1 {
		t.Fatalf("freezes = %d, want 1 granted by the listener", left)
	}
}

func TestGrantFreezesCap(t *testing.T) {
	eng, db := newTestEngine(t, Config{MaxFreezes: 2})
	userID := seedUser(t, db, "")

	if _, err := eng.GrantFreezes(userID, 2); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := eng.GrantFreezes(userID, 1); err == nil {
		t.Fatal("expected cap error when exceeding MaxFreezes")
	}
	left, _ := eng.FreezeBalance(userID)
	if left != 2 {
		t.Fatalf("freezes = %d, want 2", left)
	}
}
