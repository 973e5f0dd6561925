package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStoryRepository is a process-local StoryRepository. Reads apply the
// same expiry filter as the MongoDB implementation.
type MemoryStoryRepository struct {
	mu      sync.RWMutex
	stories map[primitive.ObjectID]models.Story
}

func NewMemoryStoryRepository() *MemoryStoryRepository {
	return &MemoryStoryRepository{stories: make(map[primitive.ObjectID]models.Story)}
}

func (r *MemoryStoryRepository) CreateStory(_ context.Context, story *models.Story) error {
	story.ID = primitive.NewObjectID()
	r.mu.Lock()
	r.stories[story.ID] = *story
	r.mu.Unlock()
	return nil
}

func (r *MemoryStoryRepository) GetStoryByID(_ context.Context, id string) (*models.Story, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stories[objID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryStoryRepository) GetActiveStoriesByUser(ctx context.Context, userID uint, now time.Time) ([]models.Story, error) {
	return r.GetActiveStoriesByUsers(ctx, []uint{userID}, now)
}

func (r *MemoryStoryRepository) GetActiveStoriesByUsers(_ context.Context, userIDs []uint, now time.Time) ([]models.Story, error) {
	owners := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		owners[id] = true
	}

	r.mu.RLock()
	active := make([]models.Story, 0)
	for _, s := range r.stories {
		if owners[s.UserID] && s.IsActive(now) {
			active = append(active, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID.Hex() < active[j].ID.Hex()
	})
	return active, nil
}

func (r *MemoryStoryRepository) DeleteStory(_ context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stories[objID]; !ok {
		return ErrNotFound
	}
	delete(r.stories, objID)
	return nil
}

func (r *MemoryStoryRepository) DeleteExpiredStories(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.stories {
		if !s.IsActive(now) {
			delete(r.stories, id)
			n++
		}
	}
	return n, nil
}
