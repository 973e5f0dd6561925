package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// FollowHandler handles follow toggles
type FollowHandler struct {
	followRepository repositories.FollowRepository
	userRepository   repositories.UserRepository
	notifier         *Notifier
	log              *zap.Logger
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(followRepo repositories.FollowRepository, userRepo repositories.UserRepository, notifier *Notifier, log *zap.Logger) *FollowHandler {
	return &FollowHandler{
		followRepository: followRepo,
		userRepository:   userRepo,
		notifier:         notifier,
		log:              log,
	}
}

// RegisterFollowRoutes registers follow-related routes on the user group
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.PUT("/follow/:userId", h.ToggleFollow)
}

// ToggleFollow follows :userId when not following and unfollows otherwise.
// The response carries the authoritative state after the toggle.
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseUintParam(c, "userId", "user")
	if err != nil {
		return err
	}
	if currentUserID == targetID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot follow yourself")
	}

	target, err := h.userRepository.GetUserByID(targetID)
	if err != nil {
		return lookupError(err, "User")
	}
	if !target.IsActive {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}

	following, created, err := h.followRepository.ToggleFollow(currentUserID, targetID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if created {
		h.notifier.Notify(c.Request().Context(), &models.Notification{
			Type:        models.NotificationFollow,
			SenderID:    currentUserID,
			RecipientID: targetID,
			Message:     actorName(c) + " started following you",
		})
	}

	followers, err := h.recount(targetID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.recount(currentUserID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.log.Debug("follow toggled",
		zap.Uint("follower", currentUserID),
		zap.Uint("following", targetID),
		zap.Bool("state", following))
	return respond(c, http.StatusOK, models.FollowToggleResponse{
		Following:      following,
		UserID:         targetID,
		FollowersCount: followers,
	})
}

// recount rewrites the user's denormalized counters from the follows table
// and returns the follower count
func (h *FollowHandler) recount(userID uint) (int64, error) {
	followers, following, err := h.followRepository.Counts(userID)
	if err != nil {
		return 0, err
	}
	if err := h.userRepository.UpdateFollowCounts(userID, followers, following); err != nil {
		return 0, err
	}
	return followers, nil
}
