package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// SavedPostHandler handles bookmark toggles
type SavedPostHandler struct {
	savedPostRepository repositories.SavedPostRepository
	postRepository      repositories.PostRepository
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(savedPostRepo repositories.SavedPostRepository, postRepo repositories.PostRepository) *SavedPostHandler {
	return &SavedPostHandler{
		savedPostRepository: savedPostRepo,
		postRepository:      postRepo,
	}
}

// RegisterSavedPostRoutes registers saved post routes on the post group
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group) {
	g.PUT("/save/:postId", h.ToggleSave)
}

// ToggleSave bookmarks the post, or removes the bookmark when present
func (h *SavedPostHandler) ToggleSave(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("postId")

	if _, err := h.postRepository.GetPostByID(c.Request().Context(), postID); err != nil {
		return lookupError(err, "Post")
	}

	saved, err := h.savedPostRepository.ToggleSave(currentUserID, postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, echo.Map{"saved": saved, "postId": postID})
}
