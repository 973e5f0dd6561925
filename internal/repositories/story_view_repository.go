package repositories

import (
	"errors"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// StoryViewRepository tracks story views in PostgreSQL. Views outlive
// nothing: they go with their story on delete and on expiry.
type StoryViewRepository interface {
	MarkViewed(storyID string, viewerID uint, at time.Time) (bool, error)
	GetViewedStoryIDs(viewerID uint, storyIDs []string) (map[string]bool, error)
	GetViewerIDs(storyID string) ([]uint, error)
	DeleteViewsByStoryID(storyID string) error
	DeleteViewsBefore(cutoff time.Time) (int64, error)
}

type postgresStoryViewRepository struct {
	db *gorm.DB
}

func NewPostgresStoryViewRepository(db *gorm.DB) StoryViewRepository {
	return &postgresStoryViewRepository{db: db}
}

// MarkViewed records a view at most once per viewer. It reports whether a new
// row was written; a repeated view is not an error.
func (r *postgresStoryViewRepository) MarkViewed(storyID string, viewerID uint, at time.Time) (bool, error) {
	view := &models.StoryView{StoryID: storyID, ViewerID: viewerID, ViewedAt: at}
	err := translate(r.db.Create(view).Error)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *postgresStoryViewRepository) GetViewedStoryIDs(viewerID uint, storyIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(storyIDs) == 0 {
		return result, nil
	}
	var viewed []string
	err := r.db.Model(&models.StoryView{}).Where("viewer_id = ? AND story_id IN ?", viewerID, storyIDs).Pluck("story_id", &viewed).Error
	if err != nil {
		return nil, err
	}
	for _, id := range viewed {
		result[id] = true
	}
	return result, nil
}

// GetViewerIDs lists who viewed a story, first viewer first
func (r *postgresStoryViewRepository) GetViewerIDs(storyID string) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.StoryView{}).Where("story_id = ?", storyID).Order("viewed_at ASC").Pluck("viewer_id", &ids).Error
	return ids, err
}

func (r *postgresStoryViewRepository) DeleteViewsByStoryID(storyID string) error {
	return r.db.Where("story_id = ?", storyID).Delete(&models.StoryView{}).Error
}

// DeleteViewsBefore drops views recorded before cutoff. A story can only be
// viewed while active, so with cutoff = now - story TTL every such view
// belongs to a story that has expired, however the story itself was removed.
func (r *postgresStoryViewRepository) DeleteViewsBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("viewed_at < ?", cutoff).Delete(&models.StoryView{})
	return res.RowsAffected, res.Error
}
