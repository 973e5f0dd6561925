package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/metrics"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StoryConfig bounds story lifetime and media
type StoryConfig struct {
	TTL             time.Duration
	MaxVideoSeconds int
}

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	storyRepository     repositories.StoryRepository
	storyViewRepository repositories.StoryViewRepository
	userRepository      repositories.UserRepository
	followRepository    repositories.FollowRepository
	cfg                 StoryConfig
	metrics             *metrics.Metrics
	log                 *zap.Logger
	now                 func() time.Time
}

// NewStoryHandler creates a new StoryHandler
func NewStoryHandler(
	storyRepo repositories.StoryRepository,
	storyViewRepo repositories.StoryViewRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	cfg StoryConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) *StoryHandler {
	return &StoryHandler{
		storyRepository:     storyRepo,
		storyViewRepository: storyViewRepo,
		userRepository:      userRepo,
		followRepository:    followRepo,
		cfg:                 cfg,
		metrics:             m,
		log:                 log,
		now:                 time.Now,
	}
}

// RegisterStoryRoutes registers story-related routes
func (h *StoryHandler) RegisterStoryRoutes(g *echo.Group) {
	g.POST("/create", h.CreateStory)
	g.GET("/feed", h.GetStoryFeed)
	g.GET("/user/:userId", h.GetUserStories)
	g.PUT("/view/:storyId", h.MarkViewed)
	g.DELETE("/expired", h.PurgeExpired)
	g.GET("/:id/viewers", h.GetViewers)
	g.DELETE("/:id", h.DeleteStory)
}

// StoryView is an active story as seen by the caller
type StoryView struct {
	models.Story
	HasViewed bool `json:"has_viewed"`
}

// StoryGroup is one owner's active stories, oldest first
type StoryGroup struct {
	User        models.UserCompact `json:"user"`
	Stories     []StoryView        `json:"stories"`
	HasUnviewed bool               `json:"has_unviewed"`
}

// CreateStory validates the media and stores a story expiring after the configured TTL
func (h *StoryHandler) CreateStory(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.CreateStoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if req.Type != models.StoryTypeImage && req.Type != models.StoryTypeVideo {
		return echo.NewHTTPError(http.StatusBadRequest, "InvalidMediaType: story type must be image or video")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Type == models.StoryTypeVideo && req.DurationSeconds > h.cfg.MaxVideoSeconds {
		return echo.NewHTTPError(http.StatusBadRequest, "UnsupportedDuration: video stories are limited in length")
	}

	content := models.StoryContent{Type: req.Type, Data: req.Data}
	if req.Type == models.StoryTypeVideo {
		content.DurationSeconds = req.DurationSeconds
	}

	now := h.now().UTC()
	story := &models.Story{
		UserID:    currentUserID,
		Content:   content,
		CreatedAt: now,
		ExpiresAt: now.Add(h.cfg.TTL),
	}
	if err := h.storyRepository.CreateStory(c.Request().Context(), story); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return respond(c, http.StatusCreated, story)
}

// GetUserStories returns one user's active stories, oldest first
func (h *StoryHandler) GetUserStories(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	ownerID, err := parseUintParam(c, "userId", "user")
	if err != nil {
		return err
	}

	stories, err := h.storyRepository.GetActiveStoriesByUser(c.Request().Context(), ownerID, h.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	views, err := h.withViewed(currentUserID, stories)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, views)
}

// GetStoryFeed returns active stories of the caller and everyone they follow,
// grouped by owner. The caller's own group comes first, then groups with
// unviewed stories, then the most recently updated.
func (h *StoryHandler) GetStoryFeed(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	following, err := h.followRepository.GetFollowingIDs(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	owners := uniqueUints(append(following, currentUserID))

	stories, err := h.storyRepository.GetActiveStoriesByUsers(c.Request().Context(), owners, h.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	views, err := h.withViewed(currentUserID, stories)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	byOwner := make(map[uint]*StoryGroup)
	order := make([]uint, 0)
	for _, v := range views {
		g, ok := byOwner[v.UserID]
		if !ok {
			g = &StoryGroup{}
			byOwner[v.UserID] = g
			order = append(order, v.UserID)
		}
		g.Stories = append(g.Stories, v)
		if !v.HasViewed {
			g.HasUnviewed = true
		}
	}

	users, err := h.userRepository.GetUsersByIDs(order)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	groups := make([]StoryGroup, 0, len(order))
	for _, id := range order {
		g := byOwner[id]
		u := users[id]
		g.User = u.ToCompact()
		g.User.ID = id
		groups = append(groups, *g)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if (a.User.ID == currentUserID) != (b.User.ID == currentUserID) {
			return a.User.ID == currentUserID
		}
		if a.HasUnviewed != b.HasUnviewed {
			return a.HasUnviewed
		}
		return latest(a).After(latest(b))
	})

	return respond(c, http.StatusOK, groups)
}

func latest(g StoryGroup) time.Time {
	return g.Stories[len(g.Stories)-1].CreatedAt
}

// MarkViewed records that the caller has seen a story. Repeating it is a no-op.
func (h *StoryHandler) MarkViewed(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	storyID := c.Param("storyId")

	now := h.now()
	story, err := h.storyRepository.GetStoryByID(c.Request().Context(), storyID)
	if err != nil {
		return lookupError(err, "Story")
	}
	if !story.IsActive(now) {
		return echo.NewHTTPError(http.StatusNotFound, "Story not found")
	}

	created, err := h.storyViewRepository.MarkViewed(storyID, currentUserID, now.UTC())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, echo.Map{"storyId": storyID, "viewed": true, "firstView": created})
}

// PurgeExpired deletes every story whose expiry has passed, along with the
// views older than one story lifetime
func (h *StoryHandler) PurgeExpired(c echo.Context) error {
	if _, err := requireUser(c); err != nil {
		return err
	}

	now := h.now()
	deleted, err := h.storyRepository.DeleteExpiredStories(c.Request().Context(), now)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.metrics.StoriesPurged(deleted)
	if deleted > 0 {
		h.log.Info("purged expired stories", zap.Int64("deleted", deleted))
	}
	views, err := h.storyViewRepository.DeleteViewsBefore(now.Add(-h.cfg.TTL))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, echo.Map{"deleted": deleted, "viewsDeleted": views})
}

// GetViewers lists who has seen one of the caller's active stories
func (h *StoryHandler) GetViewers(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	storyID := c.Param("id")

	story, err := h.storyRepository.GetStoryByID(c.Request().Context(), storyID)
	if err != nil {
		return lookupError(err, "Story")
	}
	if story.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Only the owner can see who viewed a story")
	}
	if !story.IsActive(h.now()) {
		return echo.NewHTTPError(http.StatusNotFound, "Story not found")
	}

	ids, err := h.storyViewRepository.GetViewerIDs(storyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	users, err := h.userRepository.GetUsersByIDs(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	viewers := make([]models.UserCompact, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			viewers = append(viewers, u.ToCompact())
		}
	}
	return respond(c, http.StatusOK, echo.Map{"storyId": storyID, "viewers": viewers, "count": len(viewers)})
}

// DeleteStory removes one of the caller's stories
func (h *StoryHandler) DeleteStory(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	storyID := c.Param("id")

	ctx := c.Request().Context()
	story, err := h.storyRepository.GetStoryByID(ctx, storyID)
	if err != nil {
		return lookupError(err, "Story")
	}
	if story.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this story")
	}
	if err := h.storyRepository.DeleteStory(ctx, storyID); err != nil {
		return lookupError(err, "Story")
	}
	if err := h.storyViewRepository.DeleteViewsByStoryID(storyID); err != nil {
		h.log.Error("delete views of removed story", zap.String("story_id", storyID), zap.Error(err))
	}
	return respond(c, http.StatusOK, echo.Map{"deleted": true, "storyId": storyID})
}

func (h *StoryHandler) withViewed(viewerID uint, stories []models.Story) ([]StoryView, error) {
	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.ID.Hex()
	}
	viewed, err := h.storyViewRepository.GetViewedStoryIDs(viewerID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]StoryView, len(stories))
	for i, s := range stories {
		out[i] = StoryView{Story: s, HasViewed: viewed[ids[i]]}
	}
	return out, nil
}
