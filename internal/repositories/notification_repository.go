package repositories

import (
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository stores per-recipient notifications in Postgres
type NotificationRepository interface {
	CreateNotification(notification *models.Notification) error
	GetByID(id uint) (*models.Notification, error)
	GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error)
	GetSince(recipientID uint, since time.Time, afterID uint, limit int) ([]models.Notification, error)
	GetGrouped(recipientID uint, now time.Time) ([]models.Notification, []models.Notification, []models.Notification, []models.Notification, error)
	GetUnreadCount(recipientID uint) (int64, error)
	MarkAsRead(notificationID uint) error
	MarkAllAsRead(recipientID uint) (int64, error)
}

const olderLimit = 50

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

func (r *postgresNotificationRepository) GetByID(id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.First(&n, id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// GetByRecipientID pages the recipient's notifications newest first and
// reports the total alongside
func (r *postgresNotificationRepository) GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	var (
		list  []models.Notification
		total int64
	)
	mine := func() *gorm.DB {
		return r.db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	}
	if err := mine().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := mine().
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&list).Error
	return list, total, err
}

// GetSince returns notifications after the (since, afterID) cursor, oldest
// first, so a caller paging with the last row's cursor never skips rows. A
// zero afterID means strictly after since.
func (r *postgresNotificationRepository) GetSince(recipientID uint, since time.Time, afterID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	q := r.db.Where("recipient_id = ?", recipientID)
	if afterID == 0 {
		q = q.Where("created_at > ?", since)
	} else {
		q = q.Where("created_at > ? OR (created_at = ? AND id > ?)", since, since, afterID)
	}
	err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&notifications).Error
	return notifications, err
}

// GetGrouped buckets the recipient's notifications by calendar day in now's
// location. Older entries are capped at olderLimit.
func (r *postgresNotificationRepository) GetGrouped(recipientID uint, now time.Time) (today, yesterday, thisWeek, older []models.Notification, err error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayBefore := midnight.AddDate(0, 0, -1)
	weekAgo := midnight.AddDate(0, 0, -7)

	between := func(dst *[]models.Notification, from, to time.Time, limit int) error {
		q := r.db.Where("recipient_id = ?", recipientID)
		if !from.IsZero() {
			q = q.Where("created_at >= ?", from)
		}
		if !to.IsZero() {
			q = q.Where("created_at < ?", to)
		}
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Order("created_at DESC, id DESC").Find(dst).Error
	}

	if err = between(&today, midnight, time.Time{}, 0); err != nil {
		return
	}
	if err = between(&yesterday, dayBefore, midnight, 0); err != nil {
		return
	}
	if err = between(&thisWeek, weekAgo, dayBefore, 0); err != nil {
		return
	}
	err = between(&older, time.Time{}, weekAgo, olderLimit)
	return
}

func (r *postgresNotificationRepository) GetUnreadCount(recipientID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).Where("recipient_id = ? AND is_read = ?", recipientID, false).Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAsRead(notificationID uint) error {
	return r.db.Model(&models.Notification{}).Where("id = ?", notificationID).Update("is_read", true).Error
}

func (r *postgresNotificationRepository) MarkAllAsRead(recipientID uint) (int64, error) {
	res := r.db.Model(&models.Notification{}).Where("recipient_id = ? AND is_read = ?", recipientID, false).Update("is_read", true)
	return res.RowsAffected, res.Error
}
