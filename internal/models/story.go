package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StoryTypeImage = "image"
	StoryTypeVideo = "video"
)

// StoryContent is the single media item a story carries
type StoryContent struct {
	Type            string `json:"type" bson:"type"` // "image" or "video"
	Data            string `json:"data" bson:"data"` // media URL
	DurationSeconds int    `json:"duration_seconds,omitempty" bson:"duration_seconds,omitempty"`
}

// Story represents a user's story stored in MongoDB. ExpiresAt is always set
// by the server from CreatedAt.
type Story struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    uint               `json:"user_id" bson:"user_id"`
	Content   StoryContent       `json:"content" bson:"content"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time          `json:"expires_at" bson:"expires_at"`
}

// IsActive reports whether the story is still visible at now
func (s *Story) IsActive(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// StoryView tracks which viewers have seen a story (PostgreSQL)
type StoryView struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	StoryID  string    `json:"story_id" gorm:"size:24;index;uniqueIndex:idx_story_viewer"`
	ViewerID uint      `json:"viewer_id" gorm:"index;uniqueIndex:idx_story_viewer"`
	ViewedAt time.Time `json:"viewed_at" gorm:"index"`
}

// CreateStoryRequest defines the request body for creating a story
type CreateStoryRequest struct {
	Type            string `json:"type" validate:"required"`
	Data            string `json:"data" validate:"required,url"`
	DurationSeconds int    `json:"duration_seconds,omitempty" validate:"min=0"`
}
