package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestUnreadStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rds.Close()

	ctx := context.Background()
	s := NewUnreadStorage(rds)

	if _, ok := s.Get(ctx, 1); ok {
		t.Fatal("empty cache reported a hit")
	}
	if err := s.Set(ctx, 1, 5); err != nil {
		t.Fatal(err)
	}
	if n, ok := s.Get(ctx, 1); !ok || n != 5 {
		t.Fatalf("Get = %d, %v", n, ok)
	}
	if !mr.Exists("notify:unread:1") {
		t.Fatal("unexpected key layout")
	}
	if ttl := mr.TTL("notify:unread:1"); ttl != unreadExpireAt {
		t.Fatalf("ttl = %v", ttl)
	}

	_ = s.Set(ctx, 2, 1)
	if err := s.Invalidate(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(ctx, 2); ok {
		t.Fatal("invalidate left a value")
	}
}

func TestNilUnreadStorage(t *testing.T) {
	var s *UnreadStorage = NewUnreadStorage(nil)
	ctx := context.Background()
	if err := s.Set(ctx, 1, 3); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(ctx, 1); ok {
		t.Fatal("nil cache reported a hit")
	}
	if err := s.Invalidate(ctx, 1); err != nil {
		t.Fatal(err)
	}
}
