package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// LikeHandler handles HTTP requests related to post likes
type LikeHandler struct {
	likeRepository repositories.LikeRepository
	postRepository repositories.PostRepository
	notifier       *Notifier
	log            *zap.Logger
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository, postRepo repositories.PostRepository, notifier *Notifier, log *zap.Logger) *LikeHandler {
	return &LikeHandler{
		likeRepository: likeRepo,
		postRepository: postRepo,
		notifier:       notifier,
		log:            log,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.PUT("/toggle/:postId", h.ToggleLike)
	g.GET("/status/:postId", h.GetLikeStatus)
}

// ToggleLike likes the post when the caller has not liked it and unlikes it
// otherwise. likes_count is recomputed from the like set afterwards so the
// response is authoritative.
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("postId")

	ctx := c.Request().Context()
	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return lookupError(err, "Post")
	}

	liked, created, err := h.likeRepository.ToggleLike(postID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if created {
		h.notifier.Notify(ctx, &models.Notification{
			Type:        models.NotificationLike,
			SenderID:    currentUserID,
			RecipientID: post.AuthorID,
			PostID:      postID,
			Message:     actorName(c) + " liked your post",
		})
	}

	count, err := h.likeRepository.GetLikesCountByPostID(postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.postRepository.SetLikesCount(ctx, postID, count); err != nil {
		h.log.Error("sync likes_count", zap.String("post_id", postID), zap.Error(err))
	}

	return respond(c, http.StatusOK, models.LikeToggleResponse{
		Liked:      liked,
		PostID:     postID,
		UserID:     currentUserID,
		LikesCount: count,
	})
}

// GetLikeStatus reports whether the caller likes the post and its like count
func (h *LikeHandler) GetLikeStatus(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("postId")

	if _, err := h.postRepository.GetPostByID(c.Request().Context(), postID); err != nil {
		return lookupError(err, "Post")
	}

	liked, err := h.likeRepository.HasUserLikedPost(postID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	count, err := h.likeRepository.GetLikesCountByPostID(postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return respond(c, http.StatusOK, models.LikeToggleResponse{
		Liked:      liked,
		PostID:     postID,
		UserID:     currentUserID,
		LikesCount: count,
	})
}
