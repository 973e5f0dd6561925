package router

import (
	"fmt"

	"github.com/anonto42/nano-social/backend/internal/cache"
	"github.com/anonto42/nano-social/backend/internal/handlers"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/metrics"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps carries everything the routes are built from. Posts and Stories are
// the document stores, MongoDB in production and in-memory otherwise.
type Deps struct {
	Config   *config.Config
	Postgres *gorm.DB
	Posts    repositories.PostRepository
	Stories  repositories.StoryRepository
	Redis    *redis.Client
	Firebase handlers.TokenVerifier
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Checks   map[string]handlers.Pinger
}

// Migrate creates or updates the PostgreSQL tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Like{},
		&models.Comment{},
		&models.CommentLike{},
		&models.SavedPost{},
		&models.StoryView{},
		&models.Notification{},
	)
}

// SetupRoutes migrates the relational schema and configures all application routes
func SetupRoutes(e *echo.Echo, d Deps) error {
	if err := Migrate(d.Postgres); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	d.Log.Info("postgres auto-migrations completed")

	e.GET("/health", handlers.NewHealthHandler(d.Checks).HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(d.Postgres)
	followRepo := repositories.NewPostgresFollowRepository(d.Postgres)
	likeRepo := repositories.NewPostgresLikeRepository(d.Postgres)
	commentRepo := repositories.NewPostgresCommentRepository(d.Postgres)
	commentLikeRepo := repositories.NewPostgresCommentLikeRepository(d.Postgres)
	savedPostRepo := repositories.NewPostgresSavedPostRepository(d.Postgres)
	storyViewRepo := repositories.NewPostgresStoryViewRepository(d.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(d.Postgres)

	unread := cache.NewUnreadStorage(d.Redis)
	notifier := handlers.NewNotifier(notificationRepo, unread, d.Metrics, d.Log.Named("notify"))

	// --- Unprotected routes for authentication ---
	authHandler := handlers.NewAuthHandler(userRepo, d.Firebase, d.Config.JWTSecret, d.Config.JWTTTL, d.Log.Named("auth"))
	authHandler.RegisterAuthRoutes(e.Group("/api/v1/user"))

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(d.Config.JWTSecret))

	userGroup := api.Group("/user")
	handlers.NewFollowHandler(followRepo, userRepo, notifier, d.Log.Named("follow")).RegisterFollowRoutes(userGroup)
	handlers.NewUserHandler(userRepo, followRepo).RegisterUserRoutes(userGroup)

	postGroup := api.Group("/post")
	handlers.NewFeedHandler(d.Posts, userRepo, followRepo, likeRepo, savedPostRepo).RegisterFeedRoutes(postGroup)
	handlers.NewSavedPostHandler(savedPostRepo, d.Posts).RegisterSavedPostRoutes(postGroup)
	handlers.NewPostHandler(d.Posts, userRepo, likeRepo, commentRepo, followRepo, savedPostRepo, notifier, d.Log.Named("post")).
		RegisterPostRoutes(postGroup)

	handlers.NewLikeHandler(likeRepo, d.Posts, notifier, d.Log.Named("like")).RegisterLikeRoutes(api.Group("/like"))

	handlers.NewCommentHandler(commentRepo, commentLikeRepo, d.Posts, userRepo, notifier, d.Log.Named("comment")).
		RegisterCommentRoutes(api.Group("/comment"))

	storyCfg := handlers.StoryConfig{TTL: d.Config.Story.TTL, MaxVideoSeconds: d.Config.Story.MaxVideoSeconds}
	handlers.NewStoryHandler(d.Stories, storyViewRepo, userRepo, followRepo, storyCfg, d.Metrics, d.Log.Named("story")).
		RegisterStoryRoutes(api.Group("/story"))

	handlers.NewNotificationHandler(notificationRepo, userRepo, unread, d.Log.Named("notification")).
		RegisterNotificationRoutes(api.Group("/notification"))

	d.Log.Info("routes configured", zap.Int("count", len(e.Routes())))
	return nil
}
