package repositories

import (
	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// SavedPostRepository stores the caller's bookmarks. Posts live in MongoDB,
// so post ids are ObjectID hex strings here.
type SavedPostRepository interface {
	ToggleSave(userID uint, postID string) (bool, error)
	GetSavedPostIDs(userID uint, postIDs []string) (map[string]bool, error)
	DeleteSavesByPostID(postID string) error
}

type PostgresSavedPostRepository struct {
	db *gorm.DB
}

func NewPostgresSavedPostRepository(db *gorm.DB) *PostgresSavedPostRepository {
	return &PostgresSavedPostRepository{db: db}
}

// ToggleSave removes the bookmark when present and adds it otherwise,
// reporting whether the post is saved afterwards
func (r *PostgresSavedPostRepository) ToggleSave(userID uint, postID string) (bool, error) {
	saved, _, err := toggleRow(r.db, &models.SavedPost{UserID: userID, PostID: postID},
		"user_id = ? AND post_id = ?", userID, postID)
	return saved, err
}

// GetSavedPostIDs reports which of postIDs the user has bookmarked
func (r *PostgresSavedPostRepository) GetSavedPostIDs(userID uint, postIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var ids []string
	if err := r.db.Model(&models.SavedPost{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// DeleteSavesByPostID drops every bookmark of a deleted post
func (r *PostgresSavedPostRepository) DeleteSavesByPostID(postID string) error {
	return r.db.Where("post_id = ?", postID).Delete(&models.SavedPost{}).Error
}
