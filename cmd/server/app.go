package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/nano-social/backend/internal/handlers"
	"github.com/anonto42/nano-social/backend/internal/jobs"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/router"
	"github.com/anonto42/nano-social/backend/internal/validators"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/firebase"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/anonto42/nano-social/backend/pkg/metrics"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type app struct {
	cfg     *config.Config
	db      *config.DB
	echo    *echo.Echo
	metrics *metrics.Metrics
	sweeper *jobs.StorySweeper
	log     *zap.Logger
}

// newApp loads configuration, connects the stores and builds the routes
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.Debug())
	logger.SetDefault(log)

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	var (
		posts   repositories.PostRepository
		stories repositories.StoryRepository
	)
	if db.MongoDB != nil {
		mongoPosts := repositories.NewMongoPostRepository(db.MongoDB)
		if err := mongoPosts.EnsureIndexes(ctx); err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("post indexes: %w", err)
		}
		if err := repositories.EnsureStoryIndexes(ctx, db.MongoDB); err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("story indexes: %w", err)
		}
		posts = mongoPosts
		stories = repositories.NewStoryRepository(db.MongoDB)
	} else {
		posts = repositories.NewMemoryPostRepository()
		stories = repositories.NewMemoryStoryRepository()
	}

	var verifier handlers.TokenVerifier
	fbAuth, err := firebase.NewAuthClient(ctx, cfg.FirebaseCredentialsPath, log.Named("firebase"))
	if err != nil {
		db.CloseDB()
		return nil, err
	}
	if fbAuth != nil {
		// keep the interface nil when firebase is off
		verifier = fbAuth
	}

	m := metrics.New()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, log, m)

	checks := map[string]handlers.Pinger{
		"postgres": handlers.PingFunc(func() error {
			sqlDB, err := db.Postgres.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		}),
	}
	if db.Mongo != nil {
		checks["mongo"] = handlers.PingFunc(func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Mongo.Ping(pingCtx, nil)
		})
	}
	if db.Redis != nil {
		checks["redis"] = handlers.PingFunc(func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Redis.Ping(pingCtx).Err()
		})
	}

	err = router.SetupRoutes(e, router.Deps{
		Config:   cfg,
		Postgres: db.Postgres,
		Posts:    posts,
		Stories:  stories,
		Redis:    db.Redis,
		Firebase: verifier,
		Metrics:  m,
		Log:      log,
		Checks:   checks,
	})
	if err != nil {
		db.CloseDB()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		db:      db,
		echo:    e,
		metrics: m,
		sweeper: jobs.NewStorySweeper(stories, repositories.NewPostgresStoryViewRepository(db.Postgres),
			cfg.Story.TTL, cfg.Story.SweepInterval, m, log.Named("sweeper")),
		log:     log,
	}, nil
}

// Serve runs the API server, the metrics server and the story sweeper until
// a termination signal arrives or one of them fails
func (a *app) Serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
	defer stop()

	eg, groupCtx := errgroup.WithContext(ctx)

	apiServer := &http.Server{Addr: ":" + a.cfg.Port, Handler: a.echo}
	metricsServer := &http.Server{Addr: ":" + a.cfg.MetricsPort, Handler: a.metrics.Handler()}

	a.log.Info("server starting",
		zap.String("port", a.cfg.Port),
		zap.String("metrics_port", a.cfg.MetricsPort),
		zap.String("env", a.cfg.Env),
	)

	for _, srv := range []*http.Server{apiServer, metricsServer} {
		srv := srv
		eg.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	eg.Go(func() error {
		return a.sweeper.Run(groupCtx)
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		a.log.Info("server stopping")

		timeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range []*http.Server{apiServer, metricsServer} {
			if err := srv.Shutdown(timeCtx); err != nil {
				a.log.Warn("shutdown", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("server stopped")
	return nil
}

func (a *app) Close() {
	a.db.CloseDB()
	_ = a.log.Sync()
}
