// Package engine implements the streak continuity and reward economy core:
// daily goal evaluation, streak counters, freeze tokens, the coin ledger, and
// milestone rewards. It is a library with an explicit transactional boundary;
// every mutating operation runs as a single database transaction under a
// per-user lock, and HTTP handlers only call into it.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

// Config carries the engine's product parameters.
type Config struct {
	// Milestones overrides DefaultMilestones when non-empty.
	Milestones []Milestone
	// FreezePrice is the coin cost of one freeze token in the shop.
	FreezePrice int64
	// MaxFreezes caps the freeze inventory; 0 means uncapped.
	MaxFreezes int
	// HistoryLimit bounds the day records returned in snapshots.
	HistoryLimit int
	// Cosmetics is the purchasable catalog; empty falls back to DefaultCosmetics.
	Cosmetics []CosmeticItem
}

// Engine owns all per-user streak, freeze, ledger, and milestone state.
type Engine struct {
	db        *gorm.DB
	cfg       Config
	schedule  *Schedule
	cosmetics []CosmeticItem
	locks     *lockTable
	listeners []Listener
	log       *zap.SugaredLogger
}

// New constructs the engine. The milestone table is validated here so lookup
// calls never fail later.
func New(db *gorm.DB, cfg Config, log *zap.SugaredLogger) (*Engine, error) {
	milestones := cfg.Milestones
	if len(milestones) == 0 {
		milestones = DefaultMilestones
	}
	schedule, err := NewSchedule(milestones)
	if err != nil {
		return nil, err
	}

	cosmetics := cfg.Cosmetics
	if len(cosmetics) == 0 {
		cosmetics = DefaultCosmetics
	}
	if cfg.FreezePrice <= 0 {
		cfg.FreezePrice = DefaultFreezePrice
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 90
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Engine{
		db:        db,
		cfg:       cfg,
		schedule:  schedule,
		cosmetics: cosmetics,
		locks:     newLockTable(),
		log:       log,
	}, nil
}

// Schedule exposes the engine's milestone table for read-only lookups.
func (e *Engine) Schedule() *Schedule {
	return e.schedule
}

// EvaluateDay applies the outcome of one calendar day to the user's streak.
// dayKey must be exactly one day after the last evaluated date (or the very
// first evaluation); catch-up for several missed days replays one day at a
// time, oldest first. Re-invoking with the same day key and the same signal
// is a no-op and returns the unchanged state.
//
// A met goal extends the streak. A missed goal consumes one freeze token when
// available (the day counts as FROZEN and still extends the streak);
// otherwise the day is a MISS and the streak resets to zero. Crossing a
// milestone threshold for the first time credits its coin reward with reason
// "milestone:<name>". State, history, ledger, and inventory all commit as one
// unit.
func (e *Engine) EvaluateDay(userID uint, dayKey string, goalMet bool) (*models.StreakState, error) {
	if _, err := ParseDayKey(dayKey); err != nil {
		return nil, err
	}

	unlock := e.locks.acquire(userID)
	var once sync.Once
	release := func() { once.Do(unlock) }
	defer release()

	var out models.StreakState
	var events []Event

	err := e.db.Transaction(func(tx *gorm.DB) error {
		events = events[:0]

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		today, err := Today(user.Timezone)
		if err != nil {
			return err
		}
		// Day keys sort lexically; a day after today cannot be finalized yet.
		if dayKey > today {
			return fmt.Errorf("%w: %s is after today (%s)", ErrOutOfOrderEvaluation, dayKey, today)
		}

		st, err := e.stateForUpdate(tx, userID)
		if err != nil {
			return err
		}

		if st.LastEvaluatedDate != "" {
			if dayKey == st.LastEvaluatedDate {
				return e.replayCheck(tx, st, dayKey, goalMet, &out)
			}
			expected, err := NextDay(st.LastEvaluatedDate)
			if err != nil {
				return err
			}
			if dayKey != expected {
				return fmt.Errorf("%w: expected %s, got %s", ErrOutOfOrderEvaluation, expected, dayKey)
			}
		}

		previous := st.CurrentStreak
		status := models.DayStatusHit

		switch {
		case goalMet:
			st.CurrentStreak++
		default:
			frozen, err := e.tryFreezeTx(tx, userID)
			if err != nil {
				return err
			}
			if frozen {
				status = models.DayStatusFrozen
				st.CurrentStreak++
			} else {
				status = models.DayStatusMiss
				st.CurrentStreak = 0
				if previous > 0 {
					events = append(events, Event{
						Name:           EventStreakBroken,
						UserID:         userID,
						DayKey:         dayKey,
						PreviousStreak: previous,
						OccurredAt:     time.Now(),
					})
				}
			}
		}

		if st.CurrentStreak > st.LongestStreak {
			st.LongestStreak = st.CurrentStreak
		}

		record := models.DayRecord{UserID: userID, Date: dayKey, Status: status}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("append day record: %w", err)
		}

		if status != models.DayStatusMiss {
			ev, err := e.grantMilestoneTx(tx, userID, st.CurrentStreak, dayKey)
			if err != nil {
				return err
			}
			if ev != nil {
				events = append(events, *ev)
			}
		}

		st.LastEvaluatedDate = dayKey
		if err := tx.Save(st).Error; err != nil {
			return fmt.Errorf("save streak state: %w", err)
		}

		out = *st
		return nil
	})
	if err != nil {
		return nil, err
	}

	release()
	e.publish(events)
	return &out, nil
}

// ManualFreezeActivation restores yesterday's broken streak: a day already
// finalized as MISS is flipped to FROZEN at the cost of one freeze token, and
// the current streak is recomputed by replaying the contiguous run of
// qualifying days ending at the last evaluated date. The restore window is
// exactly yesterday in the user's own time zone; anything older fails with
// ErrRestoreWindowExpired. Failure leaves all state unchanged.
func (e *Engine) ManualFreezeActivation(userID uint, dayKey string) (*models.StreakState, error) {
	if _, err := ParseDayKey(dayKey); err != nil {
		return nil, err
	}

	unlock := e.locks.acquire(userID)
	var once sync.Once
	release := func() { once.Do(unlock) }
	defer release()

	var out models.StreakState
	var events []Event

	err := e.db.Transaction(func(tx *gorm.DB) error {
		events = events[:0]

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		yesterday, err := Yesterday(user.Timezone)
		if err != nil {
			return err
		}
		if dayKey != yesterday {
			return fmt.Errorf("%w: %s is only restorable on %s", ErrRestoreWindowExpired, dayKey, yesterday)
		}

		var record models.DayRecord
		err = forUpdate(tx).Where("user_id = ? AND date = ?", userID, dayKey).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no record for %s", ErrRestoreWindowExpired, dayKey)
		}
		if err != nil {
			return fmt.Errorf("load day record: %w", err)
		}
		if record.Status != models.DayStatusMiss {
			return fmt.Errorf("%w: %s already finalized as %s", ErrRestoreWindowExpired, dayKey, record.Status)
		}

		st, err := e.stateForUpdate(tx, userID)
		if err != nil {
			return err
		}

		if err := e.consumeFreezeTx(tx, userID); err != nil {
			if errors.Is(err, ErrInsufficientFreezes) {
				return fmt.Errorf("%w: %v", ErrNoFreezeAvailable, err)
			}
			return err
		}

		now := time.Now()
		record.Status = models.DayStatusFrozen
		record.RestoredAt = &now
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("flip day record: %w", err)
		}

		previous := st.CurrentStreak
		streak, err := e.replayStreakTx(tx, userID, st.LastEvaluatedDate)
		if err != nil {
			return err
		}
		st.CurrentStreak = streak
		if st.CurrentStreak > st.LongestStreak {
			st.LongestStreak = st.CurrentStreak
		}
		if err := tx.Save(st).Error; err != nil {
			return fmt.Errorf("save streak state: %w", err)
		}

		// The recompute can jump past several thresholds at once when days
		// after the miss were already evaluated; grant everything crossed.
		crossed, err := e.grantMilestonesCrossedTx(tx, userID, previous, st.CurrentStreak, dayKey)
		if err != nil {
			return err
		}
		events = append(events, crossed...)

		events = append(events, Event{
			Name:          EventStreakRestored,
			UserID:        userID,
			DayKey:        dayKey,
			CurrentStreak: st.CurrentStreak,
			OccurredAt:    now,
		})

		out = *st
		return nil
	})
	if err != nil {
		return nil, err
	}

	release()
	e.publish(events)
	return &out, nil
}

// replayCheck handles idempotent re-invocation of EvaluateDay for the day
// that was just evaluated. An identical signal is a no-op; a conflicting
// signal would rewrite finalized history and is rejected.
func (e *Engine) replayCheck(tx *gorm.DB, st *models.StreakState, dayKey string, goalMet bool, out *models.StreakState) error {
	var record models.DayRecord
	if err := tx.Where("user_id = ? AND date = ?", st.UserID, dayKey).First(&record).Error; err != nil {
		return fmt.Errorf("%w: state marks %s evaluated but no day record exists", ErrCorruptedState, dayKey)
	}
	sameSignal := goalMet == (record.Status == models.DayStatusHit)
	if !sameSignal {
		return fmt.Errorf("%w: %s already finalized as %s", ErrOutOfOrderEvaluation, dayKey, record.Status)
	}
	*out = *st
	return nil
}

// tryFreezeTx consumes one freeze token if any is available and reports
// whether the missed day is covered.
func (e *Engine) tryFreezeTx(tx *gorm.DB, userID uint) (bool, error) {
	err := e.consumeFreezeTx(tx, userID)
	if errors.Is(err, ErrInsufficientFreezes) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// grantMilestoneTx credits the milestone reward when streak sits exactly on a
// threshold that was never granted to this user before, and returns the
// celebration event to publish after commit.
func (e *Engine) grantMilestoneTx(tx *gorm.DB, userID uint, streak int, dayKey string) (*Event, error) {
	m, ok := e.schedule.MilestoneAt(streak)
	if !ok {
		return nil, nil
	}
	return e.grantThresholdTx(tx, userID, m, dayKey, streak)
}

// grantMilestonesCrossedTx grants every ungranted threshold in (prev, streak].
// Day-by-day evaluation only ever moves the streak by one, but a manual
// restore recomputes it in a single jump and can cross several thresholds.
func (e *Engine) grantMilestonesCrossedTx(tx *gorm.DB, userID uint, prev, streak int, dayKey string) ([]Event, error) {
	var events []Event
	for _, m := range e.schedule.Milestones() {
		if m.Threshold <= prev {
			continue
		}
		if m.Threshold > streak {
			break
		}
		ev, err := e.grantThresholdTx(tx, userID, m, dayKey, streak)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events, nil
}

func (e *Engine) grantThresholdTx(tx *gorm.DB, userID uint, m Milestone, dayKey string, streak int) (*Event, error) {
	var existing models.MilestoneAward
	err := tx.Where("user_id = ? AND threshold = ?", userID, m.Threshold).First(&existing).Error
	if err == nil {
		return nil, nil // one-time-ever reward, already granted
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check milestone award: %w", err)
	}

	award := models.MilestoneAward{
		UserID:     userID,
		Threshold:  m.Threshold,
		Name:       m.Name,
		CoinReward: m.CoinReward,
	}
	if err := tx.Create(&award).Error; err != nil {
		return nil, fmt.Errorf("record milestone award: %w", err)
	}
	if err := e.creditTx(tx, userID, m.CoinReward, "milestone:"+m.Name, ""); err != nil {
		return nil, err
	}

	e.log.Infow("milestone reached", "user_id", userID, "threshold", m.Threshold, "reward", m.CoinReward)
	return &Event{
		Name:          EventMilestoneReached,
		UserID:        userID,
		DayKey:        dayKey,
		Threshold:     m.Threshold,
		Reward:        m.CoinReward,
		CurrentStreak: streak,
		OccurredAt:    time.Now(),
	}, nil
}

// replayStreakTx recomputes the current streak as the length of the
// contiguous run of HIT/FROZEN days ending at lastEvaluated.
func (e *Engine) replayStreakTx(tx *gorm.DB, userID uint, lastEvaluated string) (int, error) {
	if lastEvaluated == "" {
		return 0, nil
	}
	var records []models.DayRecord
	if err := tx.Where("user_id = ? AND date <= ?", userID, lastEvaluated).
		Order("date DESC").Limit(1000).Find(&records).Error; err != nil {
		return 0, fmt.Errorf("load history: %w", err)
	}

	streak := 0
	expected := lastEvaluated
	for _, r := range records {
		if r.Date != expected || r.Status == models.DayStatusMiss {
			break
		}
		streak++
		prev, err := PrevDay(expected)
		if err != nil {
			return 0, err
		}
		expected = prev
	}
	return streak, nil
}

// stateForUpdate loads the user's streak state row with a write lock,
// creating it on first touch, and validates the monotonicity invariant.
func (e *Engine) stateForUpdate(tx *gorm.DB, userID uint) (*models.StreakState, error) {
	var st models.StreakState
	err := forUpdate(tx).Where("user_id = ?", userID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		st = models.StreakState{UserID: userID}
		if err := tx.Create(&st).Error; err != nil {
			return nil, fmt.Errorf("create streak state: %w", err)
		}
		return &st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock streak state: %w", err)
	}
	if st.LongestStreak < st.CurrentStreak || st.CurrentStreak < 0 {
		e.log.Errorw("streak invariant violated on load",
			"user_id", userID, "current", st.CurrentStreak, "longest", st.LongestStreak)
		return nil, fmt.Errorf("%w: current=%d longest=%d", ErrCorruptedState, st.CurrentStreak, st.LongestStreak)
	}
	return &st, nil
}

// forUpdate applies a SELECT ... FOR UPDATE row lock on dialects that support
// it. SQLite, used by the test suite, serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
