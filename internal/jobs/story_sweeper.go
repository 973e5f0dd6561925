package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/metrics"
	"go.uber.org/zap"
)

// StorySweeper periodically deletes expired stories and the views recorded
// on them. Reads already hide expired stories, so the sweep only reclaims
// storage.
type StorySweeper struct {
	stories  repositories.StoryRepository
	views    repositories.StoryViewRepository
	ttl      time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// NewStorySweeper builds a sweeper. views may be nil; ttl is the story
// lifetime and bounds how long a view row is kept.
func NewStorySweeper(stories repositories.StoryRepository, views repositories.StoryViewRepository, ttl, interval time.Duration, m *metrics.Metrics, log *zap.Logger) *StorySweeper {
	return &StorySweeper{
		stories:  stories,
		views:    views,
		ttl:      ttl,
		interval: interval,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done
func (s *StorySweeper) Run(ctx context.Context) error {
	s.log.Info("story sweeper started", zap.Duration("interval", s.interval))

	timer := time.NewTicker(s.interval)
	defer timer.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("sweep expired stories", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.log.Info("story sweeper stopped")
			return nil
		case <-timer.C:
		}
	}
}

// SweepOnce deletes every story with expires_at <= now, then the views older
// than one story lifetime, and returns the story count
func (s *StorySweeper) SweepOnce(ctx context.Context) (int64, error) {
	now := s.now()
	deleted, err := s.stories.DeleteExpiredStories(ctx, now)
	if err != nil {
		return 0, err
	}
	s.metrics.StoriesPurged(deleted)
	if deleted > 0 {
		s.log.Info("purged expired stories", zap.Int64("deleted", deleted))
	}

	if s.views == nil || s.ttl <= 0 {
		return deleted, nil
	}
	views, err := s.views.DeleteViewsBefore(now.Add(-s.ttl))
	if err != nil {
		return deleted, fmt.Errorf("purge story views: %w", err)
	}
	if views > 0 {
		s.log.Info("purged story views", zap.Int64("deleted", views))
	}
	return deleted, nil
}
