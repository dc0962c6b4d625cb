package models

import "time"

// Day record statuses. A day is FROZEN when the goal was missed but a freeze
// token covered the gap.
const (
	DayStatusHit    = "HIT"
	DayStatusMiss   = "MISS"
	DayStatusFrozen = "FROZEN"
)

// StreakState holds the authoritative streak counters for one user.
// LastEvaluatedDate is a day key (YYYY-MM-DD) in the user's local time zone;
// empty means no day has ever been evaluated.
type StreakState struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentStreak     int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak     int       `gorm:"not null;default:0" json:"longest_streak"`
	LastEvaluatedDate string    `gorm:"size:10" json:"last_evaluated_date"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DayRecord stores the finalized outcome of one calendar day for one user.
// Records for past days are immutable, with one controlled exception:
// a MISS may be flipped to FROZEN by manual restore, which stamps RestoredAt.
type DayRecord struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_day_records_user_date" json:"user_id"`
	Date       string     `gorm:"size:10;not null;uniqueIndex:idx_day_records_user_date" json:"date"`
	Status     string     `gorm:"size:8;not null" json:"status"`
	RestoredAt *time.Time `json:"restored_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MilestoneAward marks a streak milestone as granted to a user. The unique
// index on (user_id, threshold) makes each reward a one-time-ever grant.
// Celebrated flips to true once the client has shown the celebration.
type MilestoneAward struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_milestone_awards_user_threshold" json:"user_id"`
	Threshold  int       `gorm:"not null;uniqueIndex:idx_milestone_awards_user_threshold" json:"threshold"`
	Name       string    `gorm:"size:64;not null" json:"name"`
	CoinReward int64     `gorm:"not null" json:"coin_reward"`
	Celebrated bool      `gorm:"not null;default:false" json:"celebrated"`
	CreatedAt  time.Time `json:"created_at"`
}
