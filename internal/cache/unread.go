package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// unread counts are cheap to rebuild, so keep them short-lived
const unreadExpireAt = 10 * time.Minute

// UnreadStorage caches per-user unread notification counts. A nil
// *UnreadStorage is valid and behaves as a permanently empty cache.
type UnreadStorage struct {
	redis *redis.Client
}

func NewUnreadStorage(rds *redis.Client) *UnreadStorage {
	if rds == nil {
		return nil
	}
	return &UnreadStorage{redis: rds}
}

// Get returns the cached count and whether it was present
func (u *UnreadStorage) Get(ctx context.Context, uid uint) (int64, bool) {
	if u == nil {
		return 0, false
	}
	n, err := u.redis.Get(ctx, u.name(uid)).Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set stores a freshly computed count
func (u *UnreadStorage) Set(ctx context.Context, uid uint, count int64) error {
	if u == nil {
		return nil
	}
	return u.redis.Set(ctx, u.name(uid), count, unreadExpireAt).Err()
}

// Invalidate drops the cached count after any write affecting it
func (u *UnreadStorage) Invalidate(ctx context.Context, uids ...uint) error {
	if u == nil || len(uids) == 0 {
		return nil
	}
	keys := make([]string, len(uids))
	for i, uid := range uids {
		keys[i] = u.name(uid)
	}
	return u.redis.Del(ctx, keys...).Err()
}

// notify:unread:<uid>
func (u *UnreadStorage) name(uid uint) string {
	return fmt.Sprintf("notify:unread:%d", uid)
}
