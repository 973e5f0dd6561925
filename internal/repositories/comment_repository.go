package repositories

import (
	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(comment *models.Comment) error
	GetCommentByID(id uint) (*models.Comment, error)
	GetCommentsByPostID(postID string) ([]models.Comment, error)
	UpdateComment(comment *models.Comment) error
	DeleteComment(id uint) (int64, error)
	DeleteCommentsByPostID(postID string) error
	AdjustRepliesCount(id uint, delta int) error
	SetLikesCount(id uint, count int64) error
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

// CreateComment creates a new comment in PostgreSQL
func (r *PostgresCommentRepository) CreateComment(comment *models.Comment) error {
	return r.db.Create(comment).Error
}

// GetCommentByID retrieves a comment by ID from PostgreSQL
func (r *PostgresCommentRepository) GetCommentByID(id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.First(&comment, id).Error; err != nil {
		return nil, translate(err)
	}
	return &comment, nil
}

// GetCommentsByPostID retrieves all comments and replies of a post, oldest first
func (r *PostgresCommentRepository) GetCommentsByPostID(postID string) ([]models.Comment, error) {
	var comments []models.Comment
	if err := r.db.Where("post_id = ?", postID).Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// UpdateComment updates an existing comment in PostgreSQL
func (r *PostgresCommentRepository) UpdateComment(comment *models.Comment) error {
	return r.db.Save(comment).Error
}

// DeleteComment deletes a comment together with its replies and returns
// how many rows went away.
func (r *PostgresCommentRepository) DeleteComment(id uint) (int64, error) {
	var removed int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("parent_comment_id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		res = tx.Delete(&models.Comment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		removed += res.RowsAffected
		return nil
	})
	return removed, err
}

// DeleteCommentsByPostID drops every comment of a deleted post
func (r *PostgresCommentRepository) DeleteCommentsByPostID(postID string) error {
	return r.db.Where("post_id = ?", postID).Delete(&models.Comment{}).Error
}

// AdjustRepliesCount moves a parent's replies counter, never below zero
func (r *PostgresCommentRepository) AdjustRepliesCount(id uint, delta int) error {
	return r.db.Model(&models.Comment{}).Where("id = ?", id).
		Update("replies_count", gorm.Expr("CASE WHEN replies_count + ? < 0 THEN 0 ELSE replies_count + ? END", delta, delta)).Error
}

// SetLikesCount overwrites the denormalized likes counter
func (r *PostgresCommentRepository) SetLikesCount(id uint, count int64) error {
	return r.db.Model(&models.Comment{}).Where("id = ?", id).Update("likes_count", count).Error
}
