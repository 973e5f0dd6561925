package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a social media post stored in MongoDB.
// LikesCount mirrors the size of the post's like set in PostgreSQL and is
// rewritten from that set after every like toggle.
type Post struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AuthorID      uint               `json:"author_id" bson:"author_id"`
	Content       string             `json:"content" bson:"content"`
	ImageURLs     []string           `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	VideoURLs     []string           `json:"video_urls,omitempty" bson:"video_urls,omitempty"`
	LikesCount    int                `json:"likes_count" bson:"likes_count"`
	CommentsCount int                `json:"comments_count" bson:"comments_count"`
	SharesCount   int                `json:"shares_count" bson:"shares_count"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content   string   `json:"content" validate:"required,min=1,max=2200"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	VideoURLs []string `json:"video_urls,omitempty" validate:"omitempty,max=4,dive,url"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Content   string   `json:"content,omitempty" validate:"omitempty,min=1,max=2200"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	VideoURLs []string `json:"video_urls,omitempty" validate:"omitempty,max=4,dive,url"`
}
