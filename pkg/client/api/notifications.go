package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type NotificationService struct{ c *Client }

// List fetches one page of notifications, newest first
func (s *NotificationService) List(ctx context.Context, page, limit int) (Page[Notification], error) {
	env, err := s.c.do(ctx, http.MethodGet, "/notification", pageQuery(page, limit), nil)
	if err != nil {
		return Page[Notification]{}, err
	}
	var items []Notification
	if err := decode(env.data.Get("notifications"), &items); err != nil {
		return Page[Notification]{}, err
	}
	return Page[Notification]{Items: items, HasMore: env.meta.Get("hasNextPage").Bool()}, nil
}

// Cursor marks the last notification a poll has seen. ID breaks ties
// between notifications created at the same instant; zero means none.
type Cursor struct {
	At time.Time
	ID uint
}

// SincePage is one page of notifications after a cursor, oldest first
type SincePage struct {
	Items   []Notification
	Next    Cursor
	HasMore bool
}

// Since returns the notifications after cur, oldest first, with the cursor
// of the last one
func (s *NotificationService) Since(ctx context.Context, cur Cursor, limit int) (SincePage, error) {
	q := pageQuery(0, limit)
	q.Set("since", cur.At.UTC().Format(time.RFC3339Nano))
	if cur.ID != 0 {
		q.Set("afterId", itoa(cur.ID))
	}
	env, err := s.c.do(ctx, http.MethodGet, "/notification", q, nil)
	if err != nil {
		return SincePage{Next: cur}, err
	}
	var items []Notification
	if err := decode(env.data.Get("notifications"), &items); err != nil {
		return SincePage{Next: cur}, err
	}
	next := cur
	if raw := env.data.Get("cursor").String(); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			next = Cursor{At: t, ID: uint(env.data.Get("cursorId").Uint())}
		}
	}
	return SincePage{Items: items, Next: next, HasMore: env.data.Get("hasMore").Bool()}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context) (int64, error) {
	env, err := s.c.do(ctx, http.MethodGet, "/notification/unread-count", nil, nil)
	if err != nil {
		return 0, err
	}
	return env.data.Get("count").Int(), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uint) error {
	_, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("/notification/%d/read", id), nil, nil)
	return err
}

func (s *NotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	env, err := s.c.do(ctx, http.MethodPut, "/notification/read-all", nil, nil)
	if err != nil {
		return 0, err
	}
	return env.data.Get("updated").Int(), nil
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
