package engine

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/models"
)

// Snapshot is the read-only view of one user's engine state exposed to the
// presentation layer and the leaderboard.
type Snapshot struct {
	UserID            uint               `json:"user_id"`
	CurrentStreak     int                `json:"current_streak"`
	LongestStreak     int                `json:"longest_streak"`
	LastEvaluatedDate string             `json:"last_evaluated_date"`
	FreezesAvailable  int                `json:"freezes_available"`
	CoinBalance       int64              `json:"coin_balance"`
	History           []models.DayRecord `json:"history"`
	NextMilestone     *Milestone         `json:"next_milestone,omitempty"`
	DaysUntilNext     int                `json:"days_until_next"`
}

// Snapshot assembles a consistent view of the user's streak, freezes, wallet,
// and recent history. All reads happen inside one transaction so a concurrent
// evaluation can never be observed half-applied.
func (e *Engine) Snapshot(userID uint) (*Snapshot, error) {
	snap := &Snapshot{UserID: userID}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var st models.StreakState
		err := tx.Where("user_id = ?", userID).First(&st).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load streak state: %w", err)
		}
		if err == nil {
			if st.LongestStreak < st.CurrentStreak || st.CurrentStreak < 0 {
				e.log.Errorw("streak invariant violated on load",
					"user_id", userID, "current", st.CurrentStreak, "longest", st.LongestStreak)
				return fmt.Errorf("%w: current=%d longest=%d", ErrCorruptedState, st.CurrentStreak, st.LongestStreak)
			}
			snap.CurrentStreak = st.CurrentStreak
			snap.LongestStreak = st.LongestStreak
			snap.LastEvaluatedDate = st.LastEvaluatedDate
		}

		var inv models.FreezeInventory
		if err := tx.Where("user_id = ?", userID).First(&inv).Error; err == nil {
			snap.FreezesAvailable = inv.FreezesAvailable
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load freeze inventory: %w", err)
		}

		var w models.Wallet
		if err := tx.Where("user_id = ?", userID).First(&w).Error; err == nil {
			snap.CoinBalance = w.CoinBalance
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load wallet: %w", err)
		}

		if err := tx.Where("user_id = ?", userID).
			Order("date DESC").Limit(e.cfg.HistoryLimit).Find(&snap.History).Error; err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if next, ok := e.schedule.NextMilestone(snap.CurrentStreak); ok {
		snap.NextMilestone = &next
		snap.DaysUntilNext = next.Threshold - snap.CurrentStreak
	}
	return snap, nil
}

// History returns day records between from and to inclusive, oldest first.
// An empty bound is open-ended, subject to the configured history limit.
func (e *Engine) History(userID uint, from, to string) ([]models.DayRecord, error) {
	q := e.db.Where("user_id = ?", userID)
	if from != "" {
		if _, err := ParseDayKey(from); err != nil {
			return nil, err
		}
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		if _, err := ParseDayKey(to); err != nil {
			return nil, err
		}
		q = q.Where("date <= ?", to)
	}
	var records []models.DayRecord
	if err := q.Order("date DESC").Limit(e.cfg.HistoryLimit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	// oldest first for clients
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// PendingCelebrations lists milestone awards the client has not celebrated
// yet, oldest first.
func (e *Engine) PendingCelebrations(userID uint) ([]models.MilestoneAward, error) {
	var awards []models.MilestoneAward
	if err := e.db.Where("user_id = ? AND celebrated = ?", userID, false).
		Order("threshold ASC").Find(&awards).Error; err != nil {
		return nil, fmt.Errorf("list celebrations: %w", err)
	}
	return awards, nil
}

// AcknowledgeCelebration marks a milestone celebration as shown so the client
// plays each one exactly once.
func (e *Engine) AcknowledgeCelebration(userID uint, threshold int) error {
	res := e.db.Model(&models.MilestoneAward{}).
		Where("user_id = ? AND threshold = ? AND celebrated = ?", userID, threshold, false).
		Update("celebrated", true)
	if res.Error != nil {
		return fmt.Errorf("acknowledge celebration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no pending celebration for threshold %d", threshold)
	}
	return nil
}
