package api

import "time"

type User struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	DisplayName    string    `json:"display_name"`
	Bio            string    `json:"bio,omitempty"`
	AvatarURL      string    `json:"avatar_url"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	IsActive       bool      `json:"is_active"`
	IsFollowing    bool      `json:"is_following"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserCompact is the author/actor shape embedded in other payloads
type UserCompact struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type Post struct {
	ID            string      `json:"id"`
	AuthorID      uint        `json:"author_id"`
	Author        UserCompact `json:"author"`
	Content       string      `json:"content"`
	ImageURLs     []string    `json:"image_urls,omitempty"`
	VideoURLs     []string    `json:"video_urls,omitempty"`
	LikesCount    int64       `json:"likes_count"`
	CommentsCount int64       `json:"comments_count"`
	SharesCount   int64       `json:"shares_count"`
	IsLiked       bool        `json:"is_liked"`
	IsSaved       bool        `json:"is_saved"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (p Post) Key() string { return p.ID }

type Comment struct {
	ID              uint        `json:"id"`
	PostID          string      `json:"post_id"`
	UserID          uint        `json:"user_id"`
	Author          UserCompact `json:"author"`
	ParentCommentID *uint       `json:"parent_comment_id,omitempty"`
	Content         string      `json:"content"`
	LikesCount      int64       `json:"likes_count"`
	RepliesCount    int64       `json:"replies_count"`
	IsLiked         bool        `json:"is_liked"`
	CreatedAt       time.Time   `json:"created_at"`
}

const (
	MediaImage = "image"
	MediaVideo = "video"
)

type StoryContent struct {
	Type            string `json:"type"`
	Data            string `json:"data"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type Story struct {
	ID        string       `json:"id"`
	UserID    uint         `json:"user_id"`
	Content   StoryContent `json:"content"`
	HasViewed bool         `json:"has_viewed"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Active reports whether the story is visible at now
func (s Story) Active(now time.Time) bool { return now.Before(s.ExpiresAt) }

type StoryGroup struct {
	User        UserCompact `json:"user"`
	Stories     []Story     `json:"stories"`
	HasUnviewed bool        `json:"has_unviewed"`
}

type Notification struct {
	ID          uint        `json:"id"`
	Type        string      `json:"type"`
	SenderID    uint        `json:"sender_id"`
	Sender      UserCompact `json:"sender"`
	RecipientID uint        `json:"recipient_id"`
	PostID      string      `json:"post_id,omitempty"`
	Message     string      `json:"message"`
	IsRead      bool        `json:"is_read"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (n Notification) Key() string { return itoa(n.ID) }

// LikeState is the server's answer to a like toggle
type LikeState struct {
	Liked      bool   `json:"liked"`
	PostID     string `json:"postId"`
	UserID     uint   `json:"userId"`
	LikesCount int64  `json:"likesCount"`
}

type CommentLikeState struct {
	Liked      bool  `json:"liked"`
	CommentID  uint  `json:"commentId"`
	LikesCount int64 `json:"likesCount"`
}

type FollowState struct {
	Following      bool  `json:"following"`
	UserID         uint  `json:"userId"`
	FollowersCount int64 `json:"followersCount"`
}

// Page is one server page plus whether another may follow
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// Session is the result of a login or registration
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
