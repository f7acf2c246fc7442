package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LeaderboardKey = "leaderboard:citizens"
	LeaderboardTTL = 10 * time.Minute
	// LeaderboardSize 缓存保留的前 N 名
	LeaderboardSize = 100
)

// LeaderboardEntry 排行榜上的一项
type LeaderboardEntry struct {
	UserID string
	Points int64
}

// LeaderboardRepository 市民积分排行榜缓存（有序集合）
type LeaderboardRepository struct {
	RDB *redis.Client
	ttl time.Duration
}

func NewLeaderboardRepository(rdb *redis.Client) *LeaderboardRepository {
	return &LeaderboardRepository{RDB: rdb, ttl: LeaderboardTTL}
}

// raiseScript 集合存在时才写入并裁剪到榜单容量，避免过期后留下没有 TTL 的残缺集合
var raiseScript = redis.NewScript(`
if redis.call("exists", KEYS[1]) == 0 then
  return 0
end
redis.call("zadd", KEYS[1], ARGV[1], ARGV[2])
redis.call("zremrangebyrank", KEYS[1], 0, -(tonumber(ARGV[3]) + 1))
return 1`)

// Raise 积分上升后写入，不在集合中的用户也会加入，超出容量的末位被裁掉；集合不存在时交给读侧回填
func (r *LeaderboardRepository) Raise(ctx context.Context, userID string, points int64) error {
	return raiseScript.Run(ctx, r.RDB, []string{LeaderboardKey}, points, userID, LeaderboardSize).Err()
}

// Top 命中缓存返回 ok=true；未命中由调用方回源
func (r *LeaderboardRepository) Top(ctx context.Context, limit int) ([]LeaderboardEntry, bool, error) {
	n, err := r.RDB.Exists(ctx, LeaderboardKey).Result()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}
	zs, err := r.RDB.ZRevRangeWithScores(ctx, LeaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, false, err
	}
	list := make([]LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		list = append(list, LeaderboardEntry{UserID: id, Points: int64(z.Score)})
	}
	return list, true, nil
}

// Warm 回源后整体重建，带过期时间让长期不访问的数据自动淘汰
func (r *LeaderboardRepository) Warm(ctx context.Context, entries []LeaderboardEntry) error {
	_, err := r.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, LeaderboardKey)
		if len(entries) == 0 {
			return nil
		}
		zs := make([]redis.Z, 0, len(entries))
		for _, e := range entries {
			zs = append(zs, redis.Z{Score: float64(e.Points), Member: e.UserID})
		}
		p.ZAdd(ctx, LeaderboardKey, zs...)
		p.Expire(ctx, LeaderboardKey, r.ttl)
		return nil
	})
	return err
}

// Invalidate 删除缓存，下次读取时重建
func (r *LeaderboardRepository) Invalidate(ctx context.Context) error {
	return r.RDB.Del(ctx, LeaderboardKey).Err()
}
