// Package poller pulls new notifications on an interval and merges them at
// the front of the notification list.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
	"github.com/anonto42/nano-social/backend/pkg/client/feed"
	"github.com/anonto42/nano-social/backend/pkg/client/store"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultLimit    = 50
	// MaxPages bounds the pages drained in one cycle; the rest waits for
	// the next tick
	MaxPages = 20
)

var ErrPollInFlight = errors.New("poller: poll already in flight")

type SinceAPI interface {
	Since(ctx context.Context, cur api.Cursor, limit int) (api.SincePage, error)
}

type Config struct {
	Interval time.Duration
	// Since is the initial cursor; zero means Now()
	Since   time.Time
	Now     func() time.Time
	Limit   int
	Timeout time.Duration
	Logger  *zap.Logger
}

type Poller struct {
	api      SinceAPI
	pager    *feed.Pager[api.Notification]
	store    *store.Store
	interval time.Duration
	limit    int
	timeout  time.Duration
	log      *zap.Logger

	busy sync.Mutex

	mu     sync.RWMutex
	cursor api.Cursor
}

// New builds a poller. pager and s may be nil when only one of them is kept.
func New(a SinceAPI, pager *feed.Pager[api.Notification], s *store.Store, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Since.IsZero() {
		cfg.Since = cfg.Now()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = api.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Poller{
		api:      a,
		pager:    pager,
		store:    s,
		interval: cfg.Interval,
		limit:    cfg.Limit,
		timeout:  cfg.Timeout,
		log:      cfg.Logger,
		cursor:   api.Cursor{At: cfg.Since.UTC()},
	}
}

// Cursor is the creation time of the newest notification merged so far
func (p *Poller) Cursor() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor.At
}

// Poll runs one cycle and returns the notifications it merged, newest
// first. Pages are drained oldest first until a short page, so a burst
// larger than the limit is fetched across pages instead of skipped. A call
// made while another cycle is running fails with ErrPollInFlight.
func (p *Poller) Poll(ctx context.Context) ([]api.Notification, error) {
	if !p.busy.TryLock() {
		return nil, ErrPollInFlight
	}
	defer p.busy.Unlock()

	var merged []api.Notification
	for i := 0; i < MaxPages; i++ {
		cur := p.currentCursor()
		page, err := p.fetch(ctx, cur)
		if err != nil {
			return merged, err
		}
		if len(page.Items) == 0 {
			break
		}
		p.mu.Lock()
		p.cursor = api.Cursor{At: page.Next.At.UTC(), ID: page.Next.ID}
		p.mu.Unlock()

		newest := newestFirst(page.Items)
		if p.store != nil {
			p.store.UpsertNotifications(newest...)
		}
		if p.pager != nil {
			p.pager.Prepend(newest...)
		}
		merged = append(newest, merged...)

		if !page.HasMore || page.Next == cur {
			break
		}
	}
	return merged, nil
}

func (p *Poller) currentCursor() api.Cursor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

func (p *Poller) fetch(ctx context.Context, cur api.Cursor) (api.SincePage, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.api.Since(ctx, cur, p.limit)
}

func newestFirst(items []api.Notification) []api.Notification {
	out := make([]api.Notification, len(items))
	for i, n := range items {
		out[len(items)-1-i] = n
	}
	return out
}

// Run polls every interval until ctx is cancelled. Failed cycles are logged
// and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			items, err := p.Poll(ctx)
			switch {
			case errors.Is(err, ErrPollInFlight):
			case err != nil:
				p.log.Warn("notification poll failed", zap.Error(err))
			case len(items) > 0:
				p.log.Debug("new notifications", zap.Int("count", len(items)))
			}
		}
	}
}
