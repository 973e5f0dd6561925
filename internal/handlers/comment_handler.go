package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9]{3,30})`)

// CommentHandler handles HTTP requests related to comments and comment likes
type CommentHandler struct {
	commentRepository     repositories.CommentRepository
	commentLikeRepository repositories.CommentLikeRepository
	postRepository        repositories.PostRepository
	userRepository        repositories.UserRepository
	notifier              *Notifier
	log                   *zap.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(
	commentRepo repositories.CommentRepository,
	commentLikeRepo repositories.CommentLikeRepository,
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	notifier *Notifier,
	log *zap.Logger,
) *CommentHandler {
	return &CommentHandler{
		commentRepository:     commentRepo,
		commentLikeRepository: commentLikeRepo,
		postRepository:        postRepo,
		userRepository:        userRepo,
		notifier:              notifier,
		log:                   log,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/create/:postId", h.CreateComment)
	g.GET("/post/:postId", h.GetCommentsByPostID)
	g.PUT("/like/:id", h.ToggleCommentLike)
	g.PUT("/:id", h.UpdateComment)
	g.DELETE("/:id", h.DeleteComment)
}

// CommentView is a comment with its author and the caller's like flag
type CommentView struct {
	models.Comment
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
}

// CreateComment creates a comment on a post, or a reply to one of its
// top-level comments
func (h *CommentHandler) CreateComment(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("postId")

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return lookupError(err, "Post")
	}

	var parent *models.Comment
	if req.ParentCommentID != nil {
		parent, err = h.commentRepository.GetCommentByID(*req.ParentCommentID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return echo.NewHTTPError(http.StatusBadRequest, "Parent comment not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if parent.PostID != postID {
			return echo.NewHTTPError(http.StatusBadRequest, "Parent comment belongs to another post")
		}
		if parent.IsReply() {
			return echo.NewHTTPError(http.StatusBadRequest, "Cannot reply to a reply")
		}
	}

	comment := &models.Comment{
		PostID:          postID,
		UserID:          currentUserID,
		ParentCommentID: req.ParentCommentID,
		Content:         strings.TrimSpace(req.Content),
	}
	if err := h.commentRepository.CreateComment(comment); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.postRepository.AdjustCommentsCount(ctx, postID, 1); err != nil {
		h.log.Error("adjust comments_count", zap.String("post_id", postID), zap.Error(err))
	}
	if parent != nil {
		if err := h.commentRepository.AdjustRepliesCount(parent.ID, 1); err != nil {
			h.log.Error("adjust replies_count", zap.Uint("comment_id", parent.ID), zap.Error(err))
		}
	}

	actor := actorName(c)
	h.notifier.Notify(ctx, &models.Notification{
		Type:        models.NotificationComment,
		SenderID:    currentUserID,
		RecipientID: post.AuthorID,
		PostID:      postID,
		Message:     actor + " commented on your post",
	})
	if parent != nil && parent.UserID != post.AuthorID {
		h.notifier.Notify(ctx, &models.Notification{
			Type:        models.NotificationComment,
			SenderID:    currentUserID,
			RecipientID: parent.UserID,
			PostID:      postID,
			Message:     actor + " replied to your comment",
		})
	}
	h.notifyMentions(c, comment, actor)

	return respond(c, http.StatusCreated, comment)
}

func (h *CommentHandler) notifyMentions(c echo.Context, comment *models.Comment, actor string) {
	seen := make(map[string]struct{})
	for _, m := range mentionPattern.FindAllStringSubmatch(comment.Content, -1) {
		username := strings.ToLower(m[1])
		if _, ok := seen[username]; ok {
			continue
		}
		seen[username] = struct{}{}

		user, err := h.userRepository.GetUserByUsername(username)
		if err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				h.log.Warn("resolve mention", zap.String("username", username), zap.Error(err))
			}
			continue
		}
		h.notifier.Notify(c.Request().Context(), &models.Notification{
			Type:        models.NotificationMention,
			SenderID:    comment.UserID,
			RecipientID: user.ID,
			PostID:      comment.PostID,
			Message:     actor + " mentioned you in a comment",
		})
	}
}

// GetCommentsByPostID lists a post's comments, oldest first
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("postId")

	if _, err := h.postRepository.GetPostByID(c.Request().Context(), postID); err != nil {
		return lookupError(err, "Post")
	}

	comments, err := h.commentRepository.GetCommentsByPostID(postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	userIDs := make([]uint, 0, len(comments))
	commentIDs := make([]uint, 0, len(comments))
	for _, cm := range comments {
		userIDs = append(userIDs, cm.UserID)
		commentIDs = append(commentIDs, cm.ID)
	}
	authors, err := h.userRepository.GetUsersByIDs(uniqueUints(userIDs))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	liked, err := h.commentLikeRepository.GetLikedCommentIDs(currentUserID, commentIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	views := make([]CommentView, len(comments))
	for i, cm := range comments {
		author := authors[cm.UserID]
		views[i] = CommentView{Comment: cm, Author: author.ToCompact(), IsLiked: liked[cm.ID]}
	}
	return respond(c, http.StatusOK, views)
}

// UpdateComment edits a comment's content; only its author may edit
func (h *CommentHandler) UpdateComment(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	commentID, err := parseUintParam(c, "id", "comment")
	if err != nil {
		return err
	}

	var req models.UpdateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	comment, err := h.commentRepository.GetCommentByID(commentID)
	if err != nil {
		return lookupError(err, "Comment")
	}
	if comment.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this comment")
	}

	comment.Content = strings.TrimSpace(req.Content)
	if err := h.commentRepository.UpdateComment(comment); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, comment)
}

// DeleteComment deletes a comment together with its replies
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	commentID, err := parseUintParam(c, "id", "comment")
	if err != nil {
		return err
	}

	comment, err := h.commentRepository.GetCommentByID(commentID)
	if err != nil {
		return lookupError(err, "Comment")
	}
	if comment.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this comment")
	}

	removed, err := h.commentRepository.DeleteComment(commentID)
	if err != nil {
		return lookupError(err, "Comment")
	}

	ctx := c.Request().Context()
	if err := h.postRepository.AdjustCommentsCount(ctx, comment.PostID, -int(removed)); err != nil {
		h.log.Error("adjust comments_count", zap.String("post_id", comment.PostID), zap.Error(err))
	}
	if comment.IsReply() {
		if err := h.commentRepository.AdjustRepliesCount(*comment.ParentCommentID, -1); err != nil {
			h.log.Error("adjust replies_count", zap.Uint("comment_id", *comment.ParentCommentID), zap.Error(err))
		}
	}

	return respond(c, http.StatusOK, echo.Map{"deleted": removed, "commentId": commentID})
}

// ToggleCommentLike likes or unlikes a comment and returns the recomputed count
func (h *CommentHandler) ToggleCommentLike(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	commentID, err := parseUintParam(c, "id", "comment")
	if err != nil {
		return err
	}

	comment, err := h.commentRepository.GetCommentByID(commentID)
	if err != nil {
		return lookupError(err, "Comment")
	}

	liked, created, err := h.commentLikeRepository.ToggleCommentLike(commentID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if created {
		h.notifier.Notify(c.Request().Context(), &models.Notification{
			Type:        models.NotificationLike,
			SenderID:    currentUserID,
			RecipientID: comment.UserID,
			PostID:      comment.PostID,
			Message:     actorName(c) + " liked your comment",
		})
	}

	count, err := h.commentLikeRepository.GetLikesCount(commentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.commentRepository.SetLikesCount(commentID, count); err != nil {
		h.log.Error("sync comment likes_count", zap.Uint("comment_id", commentID), zap.Error(err))
	}

	return respond(c, http.StatusOK, echo.Map{
		"liked":      liked,
		"commentId":  commentID,
		"userId":     currentUserID,
		"likesCount": count,
	})
}
