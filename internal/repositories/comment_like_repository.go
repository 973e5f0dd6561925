package repositories

import (
	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// CommentLikeRepository stores comment likes, one per (comment, user)
type CommentLikeRepository interface {
	ToggleCommentLike(commentID, userID uint) (liked, created bool, err error)
	GetLikesCount(commentID uint) (int64, error)
	GetLikedCommentIDs(userID uint, commentIDs []uint) (map[uint]bool, error)
}

type postgresCommentLikeRepository struct {
	db *gorm.DB
}

func NewPostgresCommentLikeRepository(db *gorm.DB) CommentLikeRepository {
	return &postgresCommentLikeRepository{db: db}
}

func (r *postgresCommentLikeRepository) ToggleCommentLike(commentID, userID uint) (bool, bool, error) {
	return toggleRow(r.db, &models.CommentLike{CommentID: commentID, UserID: userID},
		"comment_id = ? AND user_id = ?", commentID, userID)
}

func (r *postgresCommentLikeRepository) GetLikesCount(commentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CommentLike{}).Where("comment_id = ?", commentID).Count(&count).Error
	return count, err
}

func (r *postgresCommentLikeRepository) GetLikedCommentIDs(userID uint, commentIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool)
	if len(commentIDs) == 0 {
		return result, nil
	}
	var liked []uint
	err := r.db.Model(&models.CommentLike{}).Where("user_id = ? AND comment_id IN ?", userID, commentIDs).Pluck("comment_id", &liked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}
