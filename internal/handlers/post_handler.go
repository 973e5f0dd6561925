package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository    repositories.PostRepository
	likeRepository    repositories.LikeRepository
	commentRepository repositories.CommentRepository
	followRepository  repositories.FollowRepository
	savedRepository   repositories.SavedPostRepository
	enricher          *postEnricher
	notifier          *Notifier
	log               *zap.Logger
	now               func() time.Time
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	likeRepo repositories.LikeRepository,
	commentRepo repositories.CommentRepository,
	followRepo repositories.FollowRepository,
	savedPostRepo repositories.SavedPostRepository,
	notifier *Notifier,
	log *zap.Logger,
) *PostHandler {
	return &PostHandler{
		postRepository:    postRepo,
		likeRepository:    likeRepo,
		commentRepository: commentRepo,
		followRepository:  followRepo,
		savedRepository:   savedPostRepo,
		enricher: &postEnricher{
			userRepository:      userRepo,
			likeRepository:      likeRepo,
			savedPostRepository: savedPostRepo,
		},
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/create", h.CreatePost)
	g.GET("/user/:userId", h.GetPostsByUser)
	g.GET("/:id", h.GetPost)
	g.PUT("/:id", h.UpdatePost)
	g.DELETE("/:id", h.DeletePost)
}

// CreatePost creates a new post and tells the author's followers about it
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	now := h.now().UTC()
	post := &models.Post{
		AuthorID:  currentUserID,
		Content:   strings.TrimSpace(req.Content),
		ImageURLs: req.ImageURLs,
		VideoURLs: req.VideoURLs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx := c.Request().Context()
	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	followers, err := h.followRepository.GetFollowerIDs(currentUserID)
	if err != nil {
		h.log.Warn("load followers for new post", zap.Uint("author", currentUserID), zap.Error(err))
	}
	for _, followerID := range followers {
		h.notifier.Notify(ctx, &models.Notification{
			Type:        models.NotificationNewPost,
			SenderID:    currentUserID,
			RecipientID: followerID,
			PostID:      post.ID.Hex(),
			Message:     actorName(c) + " shared a new post",
		})
	}

	return respond(c, http.StatusCreated, post)
}

// GetPost retrieves a post by ID, enriched for the caller
func (h *PostHandler) GetPost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.postRepository.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return lookupError(err, "Post")
	}

	enriched, err := h.enricher.enrich(ctx, currentUserID, []models.Post{*post})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, enriched[0])
}

// GetPostsByUser lists one author's posts, newest first
func (h *PostHandler) GetPostsByUser(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	authorID, err := parseUintParam(c, "userId", "user")
	if err != nil {
		return err
	}
	page, limit := pagination(c, defaultFeedLimit, maxFeedLimit)

	ctx := c.Request().Context()
	posts, err := h.postRepository.GetPostsByAuthor(ctx, authorID, int64((page-1)*limit), int64(limit+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	enriched, err := h.enricher.enrich(ctx, currentUserID, posts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respondPage(c, echo.Map{"posts": enriched, "hasMore": hasMore}, page, limit, hasMore)
}

// UpdatePost updates an existing post; only the author may edit
func (h *PostHandler) UpdatePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	existingPost, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return lookupError(err, "Post")
	}
	if existingPost.AuthorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this post")
	}

	if req.Content != "" {
		existingPost.Content = strings.TrimSpace(req.Content)
	}
	if req.ImageURLs != nil {
		existingPost.ImageURLs = req.ImageURLs
	}
	if req.VideoURLs != nil {
		existingPost.VideoURLs = req.VideoURLs
	}
	existingPost.UpdatedAt = h.now().UTC()

	if err := h.postRepository.UpdatePost(ctx, postID, existingPost); err != nil {
		return lookupError(err, "Post")
	}
	return respond(c, http.StatusOK, existingPost)
}

// DeletePost deletes a post along with its likes, comments and bookmarks
func (h *PostHandler) DeletePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")

	ctx := c.Request().Context()
	existingPost, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return lookupError(err, "Post")
	}
	if existingPost.AuthorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(ctx, postID); err != nil {
		return lookupError(err, "Post")
	}
	if err := h.likeRepository.DeleteLikesByPostID(postID); err != nil {
		h.log.Error("delete likes of removed post", zap.String("post_id", postID), zap.Error(err))
	}
	if err := h.commentRepository.DeleteCommentsByPostID(postID); err != nil {
		h.log.Error("delete comments of removed post", zap.String("post_id", postID), zap.Error(err))
	}
	if err := h.savedRepository.DeleteSavesByPostID(postID); err != nil {
		h.log.Error("delete bookmarks of removed post", zap.String("post_id", postID), zap.Error(err))
	}

	return respond(c, http.StatusOK, echo.Map{"deleted": true, "postId": postID})
}
