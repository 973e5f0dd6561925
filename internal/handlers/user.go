package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const searchLimit = 20

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, followRepo repositories.FollowRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo, followRepository: followRepo}
}

// RegisterUserRoutes registers profile, lookup and search routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.DELETE("/profile", h.DeactivateProfile)
	g.GET("/search/:username", h.SearchUsers)
	g.GET("/:id", h.GetUser)
	g.GET("/:id/followers", h.GetFollowers)
	g.GET("/:id/following", h.GetFollowing)
}

// userProfile is another user's profile as seen by the caller
type userProfile struct {
	*models.User
	IsFollowing bool `json:"is_following"`
}

// GetUser retrieves another user's profile along with the caller's follow state
func (h *UserHandler) GetUser(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	id, err := parseUintParam(c, "id", "user")
	if err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(id)
	if err != nil {
		return lookupError(err, "User profile")
	}
	if !user.IsActive {
		return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
	}

	following := false
	if id != currentUserID {
		if following, err = h.followRepository.IsFollowing(currentUserID, id); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return respond(c, http.StatusOK, userProfile{User: user, IsFollowing: following})
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(userID)
	if err != nil {
		return lookupError(err, "User profile")
	}
	return respond(c, http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile fields
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(userID)
	if err != nil {
		return lookupError(err, "User profile")
	}

	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}

	if err := h.userRepository.UpdateUser(user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, user)
}

// DeactivateProfile soft-deactivates the authenticated user's account
func (h *UserHandler) DeactivateProfile(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	if err := h.userRepository.DeactivateUser(userID); err != nil {
		return lookupError(err, "User profile")
	}
	return respond(c, http.StatusOK, echo.Map{"deactivated": true})
}

// SearchUsers does a case-insensitive substring search on usernames
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := strings.TrimSpace(c.Param("username"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query is required")
	}

	users, err := h.userRepository.SearchUsers(query, searchLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, compactUsers(users))
}

// GetFollowers lists the users following :id
func (h *UserHandler) GetFollowers(c echo.Context) error {
	id, err := parseUintParam(c, "id", "user")
	if err != nil {
		return err
	}
	users, err := h.followRepository.GetFollowers(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, compactUsers(users))
}

// GetFollowing lists the users :id follows
func (h *UserHandler) GetFollowing(c echo.Context) error {
	id, err := parseUintParam(c, "id", "user")
	if err != nil {
		return err
	}
	users, err := h.followRepository.GetFollowing(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, compactUsers(users))
}

func compactUsers(users []models.User) []models.UserCompact {
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCompact())
	}
	return out
}
