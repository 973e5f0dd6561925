package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/nano-social/backend/internal/cache"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 50
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
	unread                 *cache.UnreadStorage
	log                    *zap.Logger
	now                    func() time.Time
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository, unread *cache.UnreadStorage, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		userRepository:         userRepo,
		unread:                 unread,
		log:                    log,
		now:                    time.Now,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("", h.GetNotifications)
	g.GET("/grouped", h.GetGroupedNotifications)
	g.GET("/unread-count", h.GetUnreadCount)
	g.PUT("/read-all", h.MarkAllAsRead)
	g.PUT("/:id/read", h.MarkAsRead)
}

// EnrichedNotification includes the sender's compact profile
type EnrichedNotification struct {
	models.Notification
	Sender models.UserCompact `json:"sender"`
}

func (h *NotificationHandler) enrichNotifications(notifications []models.Notification) ([]EnrichedNotification, error) {
	ids := make([]uint, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.SenderID)
	}
	senders, err := h.userRepository.GetUsersByIDs(uniqueUints(ids))
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedNotification, len(notifications))
	for i, n := range notifications {
		sender := senders[n.SenderID]
		enriched[i] = EnrichedNotification{Notification: n, Sender: sender.ToCompact()}
	}
	return enriched, nil
}

// GetNotifications returns the caller's notifications, newest first. With
// ?since=<RFC3339>[&afterId=<id>] it returns the notifications after that
// cursor oldest first, plus the cursor of the last one and hasMore.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, defaultNotificationLimit, maxNotificationLimit)

	if raw := c.QueryParam("since"); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid since cursor, expected RFC3339")
		}
		var afterID uint
		if raw := c.QueryParam("afterId"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid afterId")
			}
			afterID = uint(id)
		}
		notifications, err := h.notificationRepository.GetSince(currentUserID, since, afterID, limit)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		enriched, err := h.enrichNotifications(notifications)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		cursor, cursorID := since, afterID
		if n := len(notifications); n > 0 {
			cursor, cursorID = notifications[n-1].CreatedAt, notifications[n-1].ID
		}
		return respond(c, http.StatusOK, echo.Map{
			"notifications": enriched,
			"cursor":        cursor,
			"cursorId":      cursorID,
			"hasMore":       len(notifications) == limit,
		})
	}

	notifications, total, err := h.notificationRepository.GetByRecipientID(currentUserID, page, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	enriched, err := h.enrichNotifications(notifications)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return respondPage(c, echo.Map{"notifications": enriched}, page, limit, int64(page*limit) < total)
}

// GetGroupedNotifications returns notifications bucketed by day
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	today, yesterday, thisWeek, older, err := h.notificationRepository.GetGrouped(currentUserID, h.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	buckets := echo.Map{}
	for name, list := range map[string][]models.Notification{
		"today":     today,
		"yesterday": yesterday,
		"thisWeek":  thisWeek,
		"older":     older,
	} {
		enriched, err := h.enrichNotifications(list)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		buckets[name] = enriched
	}

	count, err := h.unreadCount(c, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, echo.Map{"notifications": buckets, "unreadCount": count})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	count, err := h.unreadCount(c, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, echo.Map{"count": count})
}

func (h *NotificationHandler) unreadCount(c echo.Context, userID uint) (int64, error) {
	ctx := c.Request().Context()
	if n, ok := h.unread.Get(ctx, userID); ok {
		return n, nil
	}
	n, err := h.notificationRepository.GetUnreadCount(userID)
	if err != nil {
		return 0, err
	}
	if err := h.unread.Set(ctx, userID, n); err != nil {
		h.log.Warn("cache unread count", zap.Uint("user_id", userID), zap.Error(err))
	}
	return n, nil
}

// MarkAsRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	notifID, err := parseUintParam(c, "id", "notification")
	if err != nil {
		return err
	}

	notif, err := h.notificationRepository.GetByID(notifID)
	if err != nil {
		return lookupError(err, "Notification")
	}
	if notif.RecipientID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to modify this notification")
	}

	if !notif.IsRead {
		if err := h.notificationRepository.MarkAsRead(notifID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.invalidate(c, currentUserID)
	}
	return respond(c, http.StatusOK, echo.Map{"id": notifID, "is_read": true})
}

// MarkAllAsRead marks all of the caller's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	updated, err := h.notificationRepository.MarkAllAsRead(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.invalidate(c, currentUserID)
	return respond(c, http.StatusOK, echo.Map{"updated": updated})
}

func (h *NotificationHandler) invalidate(c echo.Context, userID uint) {
	if err := h.unread.Invalidate(c.Request().Context(), userID); err != nil {
		h.log.Warn("invalidate unread count", zap.Uint("user_id", userID), zap.Error(err))
	}
}
