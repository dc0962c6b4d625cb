package jobs

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/engine"
	"github.com/joshshshshs/mymacroai-sub002/models"
	"github.com/joshshshshs/mymacroai-sub002/utils"
)

// missProvider reports every unsignaled day as a miss. Goal hits only
// arrive through the evaluate endpoint, so any day the rollover job has
// to fill in is by definition a day without a signal.
type missProvider struct{}

func (missProvider) DailyGoalStatus(userID uint, dayKey string) (bool, error) {
	return false, nil
}

// Scheduler runs the periodic day-rollover sweep.
type Scheduler struct {
	cron   *cron.Cron
	db     *gorm.DB
	engine *engine.Engine
	log    *zap.SugaredLogger
}

func NewScheduler(db *gorm.DB, eng *engine.Engine, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		db:     db,
		engine: eng,
		log:    log,
	}
}

// Start registers the rollover sweep with the given cron expression and
// launches the scheduler goroutine.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.Rollover); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infow("rollover scheduler started", "cron", spec)
	return nil
}

// Stop waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Rollover walks every tracked user and evaluates any days that have
// passed without a goal signal, so misses land even for silent clients.
// Running it hourly keeps users in all timezones close to their local
// midnight.
func (s *Scheduler) Rollover() {
	var states []models.StreakState
	if err := s.db.Find(&states).Error; err != nil {
		s.log.Errorw("rollover: loading streak states failed", "error", err)
		return
	}

	users := make(map[uint]string, len(states))
	var ids []uint
	for _, st := range states {
		ids = append(ids, st.UserID)
	}
	if len(ids) > 0 {
		var rows []models.User
		if err := s.db.Select("id, timezone").Where("id IN ?", ids).Find(&rows).Error; err != nil {
			s.log.Errorw("rollover: loading users failed", "error", err)
			return
		}
		for _, u := range rows {
			users[u.ID] = u.Timezone
		}
	}

	var swept, evaluated int
	for _, st := range states {
		n, err := s.engine.CatchUp(st.UserID, users[st.UserID], missProvider{})
		if err != nil {
			s.log.Warnw("rollover: catch-up failed", "user_id", st.UserID, "error", err)
			continue
		}
		if n > 0 {
			swept++
			evaluated += n
			s.refreshLeaderboards(st.UserID)
		}
	}
	if swept > 0 {
		s.log.Infow("rollover sweep finished", "users", swept, "days", evaluated)
	}
}

func (s *Scheduler) refreshLeaderboards(userID uint) {
	var st models.StreakState
	if err := s.db.Where("user_id = ?", userID).First(&st).Error; err == nil {
		utils.UpdateLeaderboardScore(utils.LeaderboardStreaks, userID, float64(st.CurrentStreak))
	}
	var w models.Wallet
	if err := s.db.Where("user_id = ?", userID).First(&w).Error; err == nil {
		utils.UpdateLeaderboardScore(utils.LeaderboardCoins, userID, float64(w.CoinBalance))
	}
}
