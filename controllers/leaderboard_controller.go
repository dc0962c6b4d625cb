package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/config"
	"github.com/joshshshshs/mymacroai-sub002/models"
	"github.com/joshshshshs/mymacroai-sub002/utils"
)

// LeaderboardController serves streak and coin rankings. Rankings live in
// Redis sorted sets maintained on every engine update; if Redis is
// unavailable the rankings are computed straight from the database.
type LeaderboardController struct {
	DB *gorm.DB
}

func NewLeaderboardController(db *gorm.DB) *LeaderboardController {
	return &LeaderboardController{DB: db}
}

type leaderboardRow struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

// Streaks returns the top users by current streak length.
func (lc *LeaderboardController) Streaks(ctx *gin.Context) {
	size := int64(config.Get().LeaderboardSize)

	if rows, ok := lc.fromRedis(utils.LeaderboardStreaks, size); ok {
		utils.Success(ctx, rows)
		return
	}

	var states []models.StreakState
	if err := lc.DB.Order("current_streak DESC").Limit(int(size)).Find(&states).Error; err != nil {
		utils.Error(ctx, 500, 50030, "internal error")
		return
	}
	rows := make([]leaderboardRow, 0, len(states))
	for _, st := range states {
		rows = append(rows, leaderboardRow{UserID: st.UserID, Score: int64(st.CurrentStreak)})
	}
	lc.fillUsernames(rows)
	utils.Success(ctx, rows)
}

// Coins returns the top users by coin balance.
func (lc *LeaderboardController) Coins(ctx *gin.Context) {
	size := int64(config.Get().LeaderboardSize)

	if rows, ok := lc.fromRedis(utils.LeaderboardCoins, size); ok {
		utils.Success(ctx, rows)
		return
	}

	var wallets []models.Wallet
	if err := lc.DB.Order("coin_balance DESC").Limit(int(size)).Find(&wallets).Error; err != nil {
		utils.Error(ctx, 500, 50030, "internal error")
		return
	}
	rows := make([]leaderboardRow, 0, len(wallets))
	for _, w := range wallets {
		rows = append(rows, leaderboardRow{UserID: w.UserID, Score: w.CoinBalance})
	}
	lc.fillUsernames(rows)
	utils.Success(ctx, rows)
}

func (lc *LeaderboardController) fromRedis(board string, size int64) ([]leaderboardRow, bool) {
	zs, err := utils.TopLeaderboard(board, size)
	if err != nil || len(zs) == 0 {
		return nil, false
	}
	rows := make([]leaderboardRow, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		rows = append(rows, leaderboardRow{UserID: uint(id), Score: int64(z.Score)})
	}
	lc.fillUsernames(rows)
	return rows, true
}

func (lc *LeaderboardController) fillUsernames(rows []leaderboardRow) {
	if len(rows) == 0 {
		return
	}
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	var users []models.User
	if err := lc.DB.Select("id, username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	for i := range rows {
		rows[i].Username = names[rows[i].UserID]
	}
}
