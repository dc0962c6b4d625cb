package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/engine"
	"github.com/joshshshshs/mymacroai-sub002/models"
	"github.com/joshshshshs/mymacroai-sub002/utils"
)

// StreakController exposes daily evaluation, streak status and restores.
type StreakController struct {
	DB     *gorm.DB
	Engine *engine.Engine
}

func NewStreakController(db *gorm.DB, eng *engine.Engine) *StreakController {
	return &StreakController{DB: db, Engine: eng}
}

func (sc *StreakController) userTimezone(userID uint) string {
	var user models.User
	if err := sc.DB.Select("timezone").First(&user, userID).Error; err != nil {
		return ""
	}
	return user.Timezone
}

type evaluateRequest struct {
	GoalMet *bool  `json:"goal_met" binding:"required"`
	Date    string `json:"date"`
}

// Evaluate records the daily goal outcome for the given day.
// When no date is supplied, today in the user's timezone is evaluated.
func (sc *StreakController) Evaluate(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	var req evaluateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	dayKey := req.Date
	if dayKey == "" {
		var err error
		dayKey, err = engine.Today(sc.userTimezone(userID))
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40004, "unknown timezone")
			return
		}
	} else if _, err := engine.ParseDayKey(dayKey); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "date must be formatted YYYY-MM-DD")
		return
	}

	state, err := sc.Engine.EvaluateDay(userID, dayKey, *req.GoalMet)
	if err != nil {
		streakError(ctx, err)
		return
	}
	utils.UpdateLeaderboardScore(utils.LeaderboardStreaks, userID, float64(state.CurrentStreak))
	utils.InvalidateByPrefix(fmt.Sprintf("user:%d:streak", userID))
	utils.Success(ctx, state)
}

// Status returns the full streak snapshot for the current user. Snapshots are
// cached briefly in Redis; every mutating endpoint invalidates the cache.
func (sc *StreakController) Status(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	cacheKey := fmt.Sprintf("user:%d:streak:snapshot", userID)
	if b, hit := utils.CacheGetBytes(cacheKey); hit {
		var cached engine.Snapshot
		if err := json.Unmarshal(b, &cached); err == nil {
			utils.Success(ctx, &cached)
			return
		}
	}

	snap, err := sc.Engine.Snapshot(userID)
	if err != nil {
		streakError(ctx, err)
		return
	}
	utils.CacheSetJSON(cacheKey, snap, 30*time.Second)
	utils.Success(ctx, snap)
}

// History returns per-day records between the from and to query parameters.
func (sc *StreakController) History(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	from := ctx.Query("from")
	to := ctx.Query("to")
	for _, key := range []string{from, to} {
		if key == "" {
			continue
		}
		if _, err := engine.ParseDayKey(key); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40005, "date must be formatted YYYY-MM-DD")
			return
		}
	}

	records, err := sc.Engine.History(userID, from, to)
	if err != nil {
		streakError(ctx, err)
		return
	}
	utils.Success(ctx, records)
}

type restoreRequest struct {
	Date string `json:"date"`
}

// Restore spends a freeze token to convert yesterday's miss into a frozen day.
func (sc *StreakController) Restore(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	var req restoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && ctx.Request.ContentLength > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	dayKey := req.Date
	if dayKey == "" {
		var err error
		dayKey, err = engine.Yesterday(sc.userTimezone(userID))
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40004, "unknown timezone")
			return
		}
	} else if _, err := engine.ParseDayKey(dayKey); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "date must be formatted YYYY-MM-DD")
		return
	}

	state, err := sc.Engine.ManualFreezeActivation(userID, dayKey)
	if err != nil {
		streakError(ctx, err)
		return
	}
	utils.UpdateLeaderboardScore(utils.LeaderboardStreaks, userID, float64(state.CurrentStreak))
	utils.InvalidateByPrefix(fmt.Sprintf("user:%d:streak", userID))
	utils.Success(ctx, state)
}

// Milestones lists the reward schedule.
func (sc *StreakController) Milestones(ctx *gin.Context) {
	utils.Success(ctx, sc.Engine.Schedule().Milestones())
}

// Celebrations lists milestone awards the client has not yet celebrated.
func (sc *StreakController) Celebrations(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	awards, err := sc.Engine.PendingCelebrations(userID)
	if err != nil {
		streakError(ctx, err)
		return
	}
	utils.Success(ctx, awards)
}

type celebrateRequest struct {
	Threshold int `json:"threshold" binding:"required"`
}

// AcknowledgeCelebration marks a milestone award as celebrated.
func (sc *StreakController) AcknowledgeCelebration(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	var req celebrateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	if err := sc.Engine.AcknowledgeCelebration(userID, req.Threshold); err != nil {
		utils.Error(ctx, http.StatusNotFound, 40402, "no pending celebration at that threshold")
		return
	}
	utils.Success(ctx, gin.H{"threshold": req.Threshold, "celebrated": true})
}

// streakError maps engine errors onto the HTTP response envelope.
func streakError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrOutOfOrderEvaluation):
		utils.Error(ctx, http.StatusConflict, 40930, err.Error())
	case errors.Is(err, engine.ErrRestoreWindowExpired):
		utils.Error(ctx, http.StatusBadRequest, 40031, err.Error())
	case errors.Is(err, engine.ErrNoFreezeAvailable):
		utils.Error(ctx, http.StatusBadRequest, 40032, err.Error())
	case errors.Is(err, engine.ErrInsufficientBalance):
		utils.Error(ctx, http.StatusBadRequest, 40033, err.Error())
	case errors.Is(err, engine.ErrInsufficientFreezes):
		utils.Error(ctx, http.StatusBadRequest, 40034, err.Error())
	case errors.Is(err, engine.ErrInvalidTimezone):
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
	case errors.Is(err, engine.ErrCosmeticUnknown):
		utils.Error(ctx, http.StatusNotFound, 40410, err.Error())
	case errors.Is(err, engine.ErrCosmeticOwned):
		utils.Error(ctx, http.StatusConflict, 40931, err.Error())
	case errors.Is(err, engine.ErrDuplicateReference):
		utils.Error(ctx, http.StatusConflict, 40932, err.Error())
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50030, "internal error")
	}
}
