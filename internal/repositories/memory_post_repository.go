package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryPostRepository is a process-local PostRepository used when no
// MongoDB is configured (local development) and in tests.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[primitive.ObjectID]models.Post
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{posts: make(map[primitive.ObjectID]models.Post)}
}

func (r *MemoryPostRepository) CreatePost(_ context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}
	r.mu.Lock()
	r.posts[post.ID] = *post
	r.mu.Unlock()
	return nil
}

func (r *MemoryPostRepository) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	post, ok := r.posts[objID]
	if !ok {
		return nil, ErrNotFound
	}
	return &post, nil
}

func (r *MemoryPostRepository) GetPostsByAuthor(ctx context.Context, authorID uint, skip, limit int64) ([]models.Post, error) {
	return r.GetFeedPosts(ctx, []uint{authorID}, skip, limit)
}

func (r *MemoryPostRepository) GetFeedPosts(_ context.Context, authorIDs []uint, skip, limit int64) ([]models.Post, error) {
	authors := make(map[uint]bool, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = true
	}

	r.mu.RLock()
	matched := make([]models.Post, 0, len(r.posts))
	for _, p := range r.posts {
		if len(authors) == 0 || authors[p.AuthorID] {
			matched = append(matched, p)
		}
	}
	r.mu.RUnlock()

	// same order as the mongo index: created_at desc, then _id desc
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.Hex() > matched[j].ID.Hex()
	})
	return window(matched, skip, limit), nil
}

func (r *MemoryPostRepository) UpdatePost(_ context.Context, id string, post *models.Post) error {
	return r.mutate(id, func(p *models.Post) {
		p.Content = post.Content
		p.ImageURLs = post.ImageURLs
		p.VideoURLs = post.VideoURLs
		if post.UpdatedAt.IsZero() {
			post.UpdatedAt = time.Now().UTC()
		}
		p.UpdatedAt = post.UpdatedAt
	})
}

func (r *MemoryPostRepository) DeletePost(_ context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[objID]; !ok {
		return ErrNotFound
	}
	delete(r.posts, objID)
	return nil
}

func (r *MemoryPostRepository) SetLikesCount(_ context.Context, postID string, count int64) error {
	return r.mutate(postID, func(p *models.Post) { p.LikesCount = int(count) })
}

func (r *MemoryPostRepository) AdjustCommentsCount(_ context.Context, postID string, delta int) error {
	return r.mutate(postID, func(p *models.Post) {
		p.CommentsCount += delta
		if p.CommentsCount < 0 {
			p.CommentsCount = 0
		}
	})
}

func (r *MemoryPostRepository) mutate(id string, fn func(*models.Post)) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[objID]
	if !ok {
		return ErrNotFound
	}
	fn(&p)
	r.posts[objID] = p
	return nil
}

func window[T any](items []T, skip, limit int64) []T {
	if skip >= int64(len(items)) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}
