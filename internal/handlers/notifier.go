package handlers

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/cache"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/metrics"
	"go.uber.org/zap"
)

// Notifier creates notifications as a side effect of other users' actions.
// Failures are logged and never fail the originating request.
type Notifier struct {
	repository repositories.NotificationRepository
	unread     *cache.UnreadStorage
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func NewNotifier(repo repositories.NotificationRepository, unread *cache.UnreadStorage, m *metrics.Metrics, log *zap.Logger) *Notifier {
	return &Notifier{repository: repo, unread: unread, metrics: m, log: log}
}

// Notify stores n unless the sender is acting on their own content
func (n *Notifier) Notify(ctx context.Context, notif *models.Notification) {
	if n == nil || notif.SenderID == notif.RecipientID {
		return
	}
	if err := n.repository.CreateNotification(notif); err != nil {
		n.log.Error("create notification",
			zap.String("type", notif.Type),
			zap.Uint("recipient", notif.RecipientID),
			zap.Error(err))
		return
	}
	if err := n.unread.Invalidate(ctx, notif.RecipientID); err != nil {
		n.log.Warn("invalidate unread count", zap.Uint("recipient", notif.RecipientID), zap.Error(err))
	}
	n.metrics.NotificationCreated(notif.Type)
}
