package utils

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// LeaderboardStreaks ranks users by current streak length.
	LeaderboardStreaks = "lb:streaks"
	// LeaderboardCoins ranks users by coin balance.
	LeaderboardCoins = "lb:coins"
)

// UpdateLeaderboardScore writes a user's score into the given ranking ZSET.
// Failures are ignored; the leaderboard is rebuilt from the database on read misses.
func UpdateLeaderboardScore(board string, userID uint, score float64) {
	rdb := GetRedis()
	if rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rdb.ZAdd(ctx, board, redis.Z{Score: score, Member: strconv.FormatUint(uint64(userID), 10)})
}

// TopLeaderboard returns the highest-scored members of a ranking ZSET.
func TopLeaderboard(board string, n int64) ([]redis.Z, error) {
	rdb := GetRedis()
	if rdb == nil {
		return nil, redis.ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return rdb.ZRevRangeWithScores(ctx, board, 0, n-1).Result()
}
