// Package stories keeps the client's view of ephemeral stories: creation
// with local checks, expiry filtering, view tracking and owner grouping.
package stories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
	"github.com/anonto42/nano-social/backend/pkg/client/store"
)

var (
	ErrInvalidMediaType    = errors.New("stories: media type must be image or video")
	ErrUnsupportedDuration = errors.New("stories: video exceeds maximum duration")
)

const DefaultMaxVideoSeconds = 30

// API is the subset of api.StoryService the manager calls
type API interface {
	Create(ctx context.Context, content api.StoryContent) (api.Story, error)
	ByUser(ctx context.Context, userID uint) ([]api.Story, error)
	Feed(ctx context.Context) ([]api.StoryGroup, error)
	View(ctx context.Context, storyID string) error
}

type Config struct {
	MaxVideoSeconds int
	Timeout         time.Duration
	Logger          *zap.Logger
}

// Group is one owner's active stories, oldest first
type Group struct {
	OwnerID     uint
	Stories     []api.Story
	HasUnviewed bool
}

type Manager struct {
	api      API
	store    *store.Store
	maxVideo int
	timeout  time.Duration
	log      *zap.Logger
}

func New(a API, s *store.Store, cfg Config) *Manager {
	if cfg.MaxVideoSeconds <= 0 {
		cfg.MaxVideoSeconds = DefaultMaxVideoSeconds
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = api.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{api: a, store: s, maxVideo: cfg.MaxVideoSeconds, timeout: cfg.Timeout, log: cfg.Logger}
}

// Validate runs the checks Create performs before any request
func (m *Manager) Validate(content api.StoryContent) error {
	switch content.Type {
	case api.MediaImage:
	case api.MediaVideo:
		if content.DurationSeconds > m.maxVideo {
			return fmt.Errorf("%w: %ds > %ds", ErrUnsupportedDuration, content.DurationSeconds, m.maxVideo)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMediaType, content.Type)
	}
	return nil
}

// Create posts a story. The store only sees it after the server accepted it.
func (m *Manager) Create(ctx context.Context, content api.StoryContent) (api.Story, error) {
	if err := m.Validate(content); err != nil {
		return api.Story{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	st, err := m.api.Create(ctx, content)
	if err != nil {
		return api.Story{}, fmt.Errorf("create story: %w", err)
	}
	m.store.UpsertStories(st)
	return st, nil
}

// LoadUser fetches one owner's active stories into the store
func (m *Manager) LoadUser(ctx context.Context, ownerID uint) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	list, err := m.api.ByUser(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load stories of %d: %w", ownerID, err)
	}
	m.store.UpsertStories(list...)
	return nil
}

// Load fetches the story tray of followed users into the store
func (m *Manager) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	groups, err := m.api.Feed(ctx)
	if err != nil {
		return fmt.Errorf("load story feed: %w", err)
	}
	for _, g := range groups {
		m.store.UpsertStories(g.Stories...)
	}
	return nil
}

// ListActive returns ownerID's stories with expires_at after now, oldest first
func (m *Manager) ListActive(ownerID uint, now time.Time) []api.Story {
	return m.store.Stories(func(s api.Story) bool {
		return s.UserID == ownerID && s.Active(now)
	})
}

// MarkViewed flags the story viewed locally and tells the server. A story
// already viewed, or not in the store, causes no request. A failed request is logged and the
// local flag stays set.
func (m *Manager) MarkViewed(ctx context.Context, storyID string, viewerID uint) error {
	if !m.store.MarkStoryViewed(storyID) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.api.View(ctx, storyID); err != nil {
		m.log.Warn("story view not recorded", zap.String("story_id", storyID), zap.Uint("viewer_id", viewerID), zap.Error(err))
		return fmt.Errorf("view story %s: %w", storyID, err)
	}
	return nil
}

// GroupByOwner groups stories per owner. Groups keep the order in which
// owners first appear; each group is sorted oldest first.
func GroupByOwner(list []api.Story) []Group {
	idx := make(map[uint]int)
	var groups []Group
	for _, s := range list {
		i, ok := idx[s.UserID]
		if !ok {
			i = len(groups)
			idx[s.UserID] = i
			groups = append(groups, Group{OwnerID: s.UserID})
		}
		groups[i].Stories = append(groups[i].Stories, s)
		if !s.HasViewed {
			groups[i].HasUnviewed = true
		}
	}
	for i := range groups {
		sort.SliceStable(groups[i].Stories, func(a, b int) bool {
			return groups[i].Stories[a].CreatedAt.Before(groups[i].Stories[b].CreatedAt)
		})
	}
	return groups
}

// Tray groups every active story in the store
func (m *Manager) Tray(now time.Time) []Group {
	return GroupByOwner(m.store.Stories(func(s api.Story) bool { return s.Active(now) }))
}

// PurgeExpired drops stories with expires_at <= now from the store
func (m *Manager) PurgeExpired(now time.Time) int {
	return m.store.RemoveExpiredStories(now)
}
