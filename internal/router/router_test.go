package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/nano-social/backend/internal/handlers"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/validators"
	"github.com/anonto42/nano-social/backend/pkg/client/api"
	"github.com/anonto42/nano-social/backend/pkg/client/engagement"
	"github.com/anonto42/nano-social/backend/pkg/client/feed"
	"github.com/anonto42/nano-social/backend/pkg/client/poller"
	"github.com/anonto42/nano-social/backend/pkg/client/store"
	"github.com/anonto42/nano-social/backend/pkg/client/stories"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/metrics"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rds.Close() })

	e := echo.New()
	e.Validator = validators.NewValidator()
	err = SetupRoutes(e, Deps{
		Config: &config.Config{
			JWTSecret: "router-test",
			JWTTTL:    time.Hour,
			Story:     config.Story{TTL: 24 * time.Hour, MaxVideoSeconds: 30},
		},
		Postgres: db,
		Posts:    repositories.NewMemoryPostRepository(),
		Stories:  repositories.NewMemoryStoryRepository(),
		Redis:    rds,
		Metrics:  metrics.New(),
		Log:      zap.NewNop(),
		Checks: map[string]handlers.Pinger{
			"postgres": handlers.PingFunc(sqlDB.Ping),
			"redis":    handlers.PingFunc(func() error { return rds.Ping(context.Background()).Err() }),
		},
	})
	if err != nil {
		t.Fatalf("setup routes: %v", err)
	}

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func signUp(t *testing.T, srv *httptest.Server, username string) (*api.Client, *store.Store) {
	t.Helper()
	c := api.New(api.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	sess, err := c.Users.Register(context.Background(), username, username+"@example.com", "password123", "")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	s := store.New()
	s.SetSession(sess.User)
	return c, s
}

func TestHealthRoute(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}
}

func TestClientAgainstServer(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	alice, aliceStore := signUp(t, srv, "alice")
	bob, bobStore := signUp(t, srv, "bob")
	start := time.Now().Add(-time.Minute)

	post, err := alice.Posts.Create(ctx, "first post", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	aliceUser, err := bob.Users.Get(ctx, aliceStore.CurrentUser())
	if err != nil {
		t.Fatal(err)
	}
	bobStore.UpsertUsers(aliceUser)

	posts := feed.New(feed.Config[api.Post]{
		Fetch: bob.Posts.Feed,
		Key:   api.Post.Key,
		Sink:  func(p []api.Post) { bobStore.UpsertPosts(p...) },
	})
	rec := engagement.New(bobStore, engagement.Config{
		Likes:        bob.Posts,
		Follows:      bob.Users,
		CommentLikes: bob.Comments,
		Feed:         posts,
	})

	res, err := rec.ToggleFollow(ctx, aliceUser.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != engagement.Confirmed || !res.Active || res.Count != 1 {
		t.Fatalf("follow = %+v", res)
	}
	if _, err := rec.ToggleFollow(ctx, bobStore.CurrentUser()); !errors.Is(err, engagement.ErrSelfFollowRejected) {
		t.Fatalf("self follow err = %v", err)
	}

	if err := posts.FetchPage(ctx); err != nil {
		t.Fatal(err)
	}
	if posts.Len() != 1 || posts.HasMore() {
		t.Fatalf("feed len = %d, hasMore = %v", posts.Len(), posts.HasMore())
	}

	res, err = rec.ToggleLike(ctx, post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != engagement.Confirmed || !res.Active || res.Count != 1 {
		t.Fatalf("like = %+v", res)
	}
	if st, _ := bobStore.PostLike(post.ID); !st.Liked || st.Count != 1 {
		t.Fatalf("stored like = %+v", st)
	}

	// a deleted post makes the toggle fail and the optimistic like roll back
	if err := alice.Posts.Delete(ctx, post.ID); err != nil {
		t.Fatal(err)
	}
	res, err = rec.ToggleLike(ctx, post.ID)
	if !api.IsNotFound(err) || res.State != engagement.RolledBack {
		t.Fatalf("like on deleted post = %+v, %v", res, err)
	}
	if st, _ := bobStore.PostLike(post.ID); !st.Liked || st.Count != 1 {
		t.Fatalf("like after rollback = %+v", st)
	}
	rec.Wait()
	if posts.Len() != 0 {
		t.Fatalf("feed after refresh = %d", posts.Len())
	}

	p := poller.New(alice.Notifications, nil, aliceStore, poller.Config{Since: start})
	got, err := p.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || aliceStore.UnreadCount() != 2 {
		t.Fatalf("polled %d, unread %d", len(got), aliceStore.UnreadCount())
	}
	if !p.Cursor().After(start) {
		t.Fatalf("cursor did not advance: %v", p.Cursor())
	}
	if more, err := p.Poll(ctx); err != nil || len(more) != 0 {
		t.Fatalf("second poll = %d, %v", len(more), err)
	}
}

func TestStoriesAgainstServer(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	alice, aliceStore := signUp(t, srv, "alice")
	bob, bobStore := signUp(t, srv, "bob")
	if _, err := bob.Users.ToggleFollow(ctx, aliceStore.CurrentUser()); err != nil {
		t.Fatal(err)
	}

	mine := stories.New(alice.Stories, aliceStore, stories.Config{})
	if _, err := mine.Create(ctx, api.StoryContent{Type: "video", Data: "https://cdn.example.com/v.mp4", DurationSeconds: 31}); !errors.Is(err, stories.ErrUnsupportedDuration) {
		t.Fatalf("long video err = %v", err)
	}
	story, err := mine.Create(ctx, api.StoryContent{Type: "image", Data: "https://cdn.example.com/a.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	theirs := stories.New(bob.Stories, bobStore, stories.Config{})
	if err := theirs.Load(ctx); err != nil {
		t.Fatal(err)
	}
	tray := theirs.Tray(time.Now())
	if len(tray) != 1 || tray[0].OwnerID != aliceStore.CurrentUser() || !tray[0].HasUnviewed {
		t.Fatalf("tray = %+v", tray)
	}

	if err := theirs.MarkViewed(ctx, story.ID, bobStore.CurrentUser()); err != nil {
		t.Fatal(err)
	}
	if err := theirs.Load(ctx); err != nil {
		t.Fatal(err)
	}
	tray = theirs.Tray(time.Now())
	if len(tray) != 1 || tray[0].HasUnviewed {
		t.Fatalf("tray after view = %+v", tray)
	}
}
