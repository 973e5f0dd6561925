package repositories

import (
	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// FollowRepository stores the directed follow graph
type FollowRepository interface {
	// ToggleFollow flips the edge and reports the resulting state together
	// with whether this call created it.
	ToggleFollow(followerID, followingID uint) (following, created bool, err error)
	IsFollowing(followerID, followingID uint) (bool, error)
	GetFollowers(userID uint) ([]models.User, error)
	GetFollowing(userID uint) ([]models.User, error)
	Counts(userID uint) (followers, following int64, err error)
	GetFollowingIDs(userID uint) ([]uint, error)
	GetFollowerIDs(userID uint) ([]uint, error)
}

type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) ToggleFollow(followerID, followingID uint) (bool, bool, error) {
	return toggleRow(r.db, &models.Follow{FollowerID: followerID, FollowingID: followingID},
		"follower_id = ? AND following_id = ?", followerID, followingID)
}

func (r *PostgresFollowRepository) IsFollowing(followerID, followingID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}

// GetFollowers lists the active users following userID, by username
func (r *PostgresFollowRepository) GetFollowers(userID uint) ([]models.User, error) {
	return r.activeUsers(r.db.Model(&models.Follow{}).Select("follower_id").Where("following_id = ?", userID))
}

// GetFollowing lists the active users userID follows, by username
func (r *PostgresFollowRepository) GetFollowing(userID uint) ([]models.User, error) {
	return r.activeUsers(r.db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", userID))
}

func (r *PostgresFollowRepository) activeUsers(ids *gorm.DB) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("id IN (?) AND is_active = ?", ids, true).Order("username ASC").Find(&users).Error
	return users, err
}

// Counts recomputes both sides of userID's follow counters from the edges
func (r *PostgresFollowRepository) Counts(userID uint) (int64, int64, error) {
	var followers, following int64
	if err := r.db.Model(&models.Follow{}).Where("following_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&following).Error; err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

func (r *PostgresFollowRepository) GetFollowingIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Pluck("following_id", &ids).Error
	return ids, err
}

func (r *PostgresFollowRepository) GetFollowerIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Follow{}).Where("following_id = ?", userID).Pluck("follower_id", &ids).Error
	return ids, err
}
