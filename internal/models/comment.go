package models

import "time"

// Comment is a comment on a post. Replies point at a top-level comment of the
// same post through ParentCommentID; nesting stops at one level.
type Comment struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	PostID          string    `json:"post_id" gorm:"size:24;index"` // MongoDB ObjectID hex
	UserID          uint      `json:"user_id" gorm:"index"`
	ParentCommentID *uint     `json:"parent_comment_id,omitempty" gorm:"index"`
	Content         string    `json:"content"`
	LikesCount      int       `json:"likes_count" gorm:"default:0"`
	RepliesCount    int       `json:"replies_count" gorm:"default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c *Comment) IsReply() bool {
	return c.ParentCommentID != nil
}

// CreateCommentRequest defines the request body for creating a comment or reply
type CreateCommentRequest struct {
	Content         string `json:"content" validate:"required,min=1,max=500"`
	ParentCommentID *uint  `json:"parent_comment_id,omitempty"`
}

// UpdateCommentRequest defines the request body for updating an existing comment
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}
