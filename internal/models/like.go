package models

import "time"

// Like is one user's like on a post. The unique pair index keeps a user in a
// post's like set at most once.
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"post_id" gorm:"size:24;index;uniqueIndex:idx_post_user_like"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_post_user_like"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeToggleResponse is the authoritative state returned after a like toggle
type LikeToggleResponse struct {
	Liked      bool   `json:"liked"`
	PostID     string `json:"postId"`
	UserID     uint   `json:"userId"`
	LikesCount int64  `json:"likesCount"`
}
