package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/nano-social/backend/internal/cache"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/validators"
	"github.com/anonto42/nano-social/backend/pkg/metrics"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// tick returns a clock func that moves forward a millisecond per call so
// rows created in a loop get distinct timestamps
func (c *clock) tick() func() time.Time {
	return func() time.Time {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.now = c.now.Add(time.Millisecond)
		return c.now
	}
}

type testEnv struct {
	t     *testing.T
	e     *echo.Echo
	mr    *miniredis.Miniredis
	clock *clock
	auth  *AuthHandler
	users repositories.UserRepository
	views repositories.StoryViewRepository
}

type account struct {
	ID    uint
	Token string
}

func newTestEnv(t *testing.T) *testEnv {
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
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Like{},
		&models.Comment{},
		&models.CommentLike{},
		&models.SavedPost{},
		&models.StoryView{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rds.Close() })

	log := zap.NewNop()
	m := metrics.New()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	userRepo := repositories.NewPostgresUserRepository(db)
	followRepo := repositories.NewPostgresFollowRepository(db)
	likeRepo := repositories.NewPostgresLikeRepository(db)
	commentRepo := repositories.NewPostgresCommentRepository(db)
	commentLikeRepo := repositories.NewPostgresCommentLikeRepository(db)
	savedRepo := repositories.NewPostgresSavedPostRepository(db)
	storyViewRepo := repositories.NewPostgresStoryViewRepository(db)
	notificationRepo := repositories.NewPostgresNotificationRepository(db)
	posts := repositories.NewMemoryPostRepository()
	stories := repositories.NewMemoryStoryRepository()

	unread := cache.NewUnreadStorage(rds)
	notifier := NewNotifier(notificationRepo, unread, m, log)

	e := echo.New()
	e.Validator = validators.NewValidator()

	authHandler := NewAuthHandler(userRepo, nil, testSecret, time.Hour, log)
	authHandler.RegisterAuthRoutes(e.Group("/api/v1/user"))

	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(testSecret))
	userGroup := api.Group("/user")
	NewFollowHandler(followRepo, userRepo, notifier, log).RegisterFollowRoutes(userGroup)
	NewUserHandler(userRepo, followRepo).RegisterUserRoutes(userGroup)

	postGroup := api.Group("/post")
	NewFeedHandler(posts, userRepo, followRepo, likeRepo, savedRepo).RegisterFeedRoutes(postGroup)
	NewSavedPostHandler(savedRepo, posts).RegisterSavedPostRoutes(postGroup)
	postHandler := NewPostHandler(posts, userRepo, likeRepo, commentRepo, followRepo, savedRepo, notifier, log)
	postHandler.now = clk.tick()
	postHandler.RegisterPostRoutes(postGroup)

	NewLikeHandler(likeRepo, posts, notifier, log).RegisterLikeRoutes(api.Group("/like"))
	NewCommentHandler(commentRepo, commentLikeRepo, posts, userRepo, notifier, log).RegisterCommentRoutes(api.Group("/comment"))

	storyHandler := NewStoryHandler(stories, storyViewRepo, userRepo, followRepo,
		StoryConfig{TTL: 24 * time.Hour, MaxVideoSeconds: 30}, m, log)
	storyHandler.now = clk.Now
	storyHandler.RegisterStoryRoutes(api.Group("/story"))

	notificationHandler := NewNotificationHandler(notificationRepo, userRepo, unread, log)
	notificationHandler.now = clk.Now
	notificationHandler.RegisterNotificationRoutes(api.Group("/notification"))

	return &testEnv{t: t, e: e, mr: mr, clock: clk, auth: authHandler, users: userRepo, views: storyViewRepo}
}

func (env *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	env.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// expect runs the request and fails unless the status matches
func (env *testEnv) expect(status int, method, path, token, body string) gjson.Result {
	env.t.Helper()
	rec := env.do(method, path, token, body)
	if rec.Code != status {
		env.t.Fatalf("%s %s = %d, want %d: %s", method, path, rec.Code, status, rec.Body.String())
	}
	return gjson.Parse(rec.Body.String())
}

func (env *testEnv) register(username string) account {
	env.t.Helper()
	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"password123"}`, username, username)
	res := env.expect(http.StatusCreated, http.MethodPost, "/api/v1/user/register", "", body)
	return account{ID: uint(res.Get("data.user.id").Uint()), Token: res.Get("data.token").String()}
}

func (env *testEnv) createPost(a account, content string) string {
	env.t.Helper()
	res := env.expect(http.StatusCreated, http.MethodPost, "/api/v1/post/create", a.Token, fmt.Sprintf(`{"content":%q}`, content))
	return res.Get("data.id").String()
}

func (env *testEnv) notifications(a account) gjson.Result {
	env.t.Helper()
	return env.expect(http.StatusOK, http.MethodGet, "/api/v1/notification", a.Token, "").Get("data.notifications")
}

type fakeVerifier struct {
	token *auth.Token
	err   error
}

func (f fakeVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return f.token, f.err
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	if alice.ID == 0 || alice.Token == "" {
		t.Fatalf("register returned %+v", alice)
	}

	env.expect(http.StatusConflict, http.MethodPost, "/api/v1/user/register", "",
		`{"username":"alice2","email":"ALICE@example.com","password":"password123"}`)
	env.expect(http.StatusBadRequest, http.MethodPost, "/api/v1/user/register", "",
		`{"username":"x","email":"not-an-email","password":"short"}`)

	res := env.expect(http.StatusOK, http.MethodPost, "/api/v1/user/login", "",
		`{"email":"alice@example.com","password":"password123"}`)
	if got := res.Get("data.user.username").String(); got != "alice" {
		t.Fatalf("login user = %q", got)
	}
	if res.Get("data.user.password").Exists() {
		t.Fatal("password hash leaked into the response")
	}
	env.expect(http.StatusUnauthorized, http.MethodPost, "/api/v1/user/login", "",
		`{"email":"alice@example.com","password":"wrong-password"}`)

	env.expect(http.StatusUnauthorized, http.MethodGet, "/api/v1/post/feed", "", "")
	env.expect(http.StatusUnauthorized, http.MethodGet, "/api/v1/post/feed", "garbage", "")
	env.expect(http.StatusOK, http.MethodGet, "/api/v1/user/profile", res.Get("data.token").String(), "")
}

func TestFirebaseLogin(t *testing.T) {
	env := newTestEnv(t)
	env.expect(http.StatusServiceUnavailable, http.MethodPost, "/api/v1/user/firebase-login", "", `{"idToken":"x"}`)

	env.auth.firebaseAuth = fakeVerifier{err: errors.New("expired")}
	env.expect(http.StatusUnauthorized, http.MethodPost, "/api/v1/user/firebase-login", "", `{"idToken":"x"}`)

	env.auth.firebaseAuth = fakeVerifier{token: &auth.Token{
		UID:    "uid-1",
		Claims: map[string]interface{}{"email": "Dana.Lee@example.com", "name": "Dana"},
	}}
	first := env.expect(http.StatusOK, http.MethodPost, "/api/v1/user/firebase-login", "", `{"idToken":"x"}`)
	if got := first.Get("data.user.username").String(); got != "danalee" {
		t.Fatalf("derived username = %q", got)
	}
	second := env.expect(http.StatusOK, http.MethodPost, "/api/v1/user/firebase-login", "", `{"idToken":"x"}`)
	if first.Get("data.user.id").Uint() != second.Get("data.user.id").Uint() {
		t.Fatal("second login created another account")
	}

	// an existing local account is linked by email
	local := env.register("erin")
	env.auth.firebaseAuth = fakeVerifier{token: &auth.Token{
		UID:    "uid-2",
		Claims: map[string]interface{}{"email": "erin@example.com"},
	}}
	linked := env.expect(http.StatusOK, http.MethodPost, "/api/v1/user/firebase-login", "", `{"idToken":"x"}`)
	if uint(linked.Get("data.user.id").Uint()) != local.ID {
		t.Fatalf("linked id = %d, want %d", linked.Get("data.user.id").Uint(), local.ID)
	}
}

func TestToggleLike(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	postID := env.createPost(alice, "hello")

	res := env.expect(http.StatusOK, http.MethodPut, "/api/v1/like/toggle/"+postID, bob.Token, "")
	if !res.Get("data.liked").Bool() || res.Get("data.likesCount").Int() != 1 {
		t.Fatalf("first toggle = %s", res.Get("data").Raw)
	}

	post := env.expect(http.StatusOK, http.MethodGet, "/api/v1/post/"+postID, bob.Token, "")
	if post.Get("data.likes_count").Int() != 1 || !post.Get("data.is_liked").Bool() {
		t.Fatalf("post after like = %s", post.Get("data").Raw)
	}

	notes := env.notifications(alice)
	if notes.Get("#").Int() != 1 || notes.Get("0.type").String() != models.NotificationLike {
		t.Fatalf("notifications = %s", notes.Raw)
	}
	if notes.Get("0.sender.username").String() != "bob" {
		t.Fatalf("sender = %s", notes.Get("0.sender").Raw)
	}

	res = env.expect(http.StatusOK, http.MethodPut, "/api/v1/like/toggle/"+postID, bob.Token, "")
	if res.Get("data.liked").Bool() || res.Get("data.likesCount").Int() != 0 {
		t.Fatalf("second toggle = %s", res.Get("data").Raw)
	}
	status := env.expect(http.StatusOK, http.MethodGet, "/api/v1/like/status/"+postID, bob.Token, "")
	if status.Get("data.liked").Bool() {
		t.Fatalf("status = %s", status.Get("data").Raw)
	}

	// liking your own post does not notify
	env.expect(http.StatusOK, http.MethodPut, "/api/v1/like/toggle/"+postID, alice.Token, "")
	if n := env.notifications(alice).Get("#").Int(); n != 1 {
		t.Fatalf("self like produced a notification, have %d", n)
	}

	env.expect(http.StatusNotFound, http.MethodPut, "/api/v1/like/toggle/65f000000000000000000000", bob.Token, "")
	env.expect(http.StatusNotFound, http.MethodPut, "/api/v1/like/toggle/not-an-id", bob.Token, "")
}

func TestToggleFollow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")

	rec := env.do(http.MethodPut, fmt.Sprintf("/api/v1/user/follow/%d", bob.ID), bob.Token, "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Cannot follow yourself") {
		t.Fatalf("self follow = %d %s", rec.Code, rec.Body.String())
	}

	path := fmt.Sprintf("/api/v1/user/follow/%d", alice.ID)
	res := env.expect(http.StatusOK, http.MethodPut, path, bob.Token, "")
	if !res.Get("data.following").Bool() || res.Get("data.followersCount").Int() != 1 {
		t.Fatalf("follow = %s", res.Get("data").Raw)
	}

	u, err := env.users.GetUserByID(bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.FollowingCount != 1 {
		t.Fatalf("bob following_count = %d", u.FollowingCount)
	}

	notes := env.notifications(alice)
	if notes.Get("#").Int() != 1 || notes.Get("0.type").String() != models.NotificationFollow {
		t.Fatalf("notifications = %s", notes.Raw)
	}

	res = env.expect(http.StatusOK, http.MethodPut, path, bob.Token, "")
	if res.Get("data.following").Bool() || res.Get("data.followersCount").Int() != 0 {
		t.Fatalf("unfollow = %s", res.Get("data").Raw)
	}

	env.expect(http.StatusNotFound, http.MethodPut, "/api/v1/user/follow/999", bob.Token, "")
	env.expect(http.StatusBadRequest, http.MethodPut, "/api/v1/user/follow/abc", bob.Token, "")
}

func TestStoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	env.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/v1/user/follow/%d", alice.ID), bob.Token, "")

	t0 := env.clock.Now()
	res := env.expect(http.StatusCreated, http.MethodPost, "/api/v1/story/create", alice.Token,
		`{"type":"image","data":"https://cdn.example.com/a.jpg"}`)
	storyID := res.Get("data.id").String()
	expires, err := time.Parse(time.RFC3339Nano, res.Get("data.expires_at").String())
	if err != nil {
		t.Fatal(err)
	}
	if !expires.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("expires_at = %v, want %v", expires, t0.Add(24*time.Hour))
	}

	env.expect(http.StatusCreated, http.MethodPost, "/api/v1/story/create", alice.Token,
		`{"type":"video","data":"https://cdn.example.com/b.mp4","duration_seconds":30}`)

	rec := env.do(http.MethodPost, "/api/v1/story/create", alice.Token, `{"type":"gif","data":"https://cdn.example.com/c.gif"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "InvalidMediaType") {
		t.Fatalf("gif story = %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodPost, "/api/v1/story/create", alice.Token,
		`{"type":"video","data":"https://cdn.example.com/d.mp4","duration_seconds":45}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "UnsupportedDuration") {
		t.Fatalf("long video = %d %s", rec.Code, rec.Body.String())
	}

	userPath := fmt.Sprintf("/api/v1/story/user/%d", alice.ID)
	env.clock.Set(t0.Add(23*time.Hour + 59*time.Minute))
	if n := env.expect(http.StatusOK, http.MethodGet, userPath, bob.Token, "").Get("data.#").Int(); n != 2 {
		t.Fatalf("active stories just before expiry = %d", n)
	}

	first := env.expect(http.StatusOK, http.MethodPut, "/api/v1/story/view/"+storyID, bob.Token, "")
	if !first.Get("data.firstView").Bool() {
		t.Fatalf("first view = %s", first.Get("data").Raw)
	}
	again := env.expect(http.StatusOK, http.MethodPut, "/api/v1/story/view/"+storyID, bob.Token, "")
	if again.Get("data.firstView").Bool() || !again.Get("data.viewed").Bool() {
		t.Fatalf("repeat view = %s", again.Get("data").Raw)
	}

	viewersPath := "/api/v1/story/" + storyID + "/viewers"
	viewers := env.expect(http.StatusOK, http.MethodGet, viewersPath, alice.Token, "").Get("data")
	if viewers.Get("count").Int() != 1 || uint(viewers.Get("viewers.0.id").Uint()) != bob.ID {
		t.Fatalf("viewers = %s", viewers.Raw)
	}
	env.expect(http.StatusForbidden, http.MethodGet, viewersPath, bob.Token, "")

	tray := env.expect(http.StatusOK, http.MethodGet, "/api/v1/story/feed", bob.Token, "").Get("data")
	if tray.Get("#").Int() != 1 {
		t.Fatalf("tray = %s", tray.Raw)
	}
	if uint(tray.Get("0.user.id").Uint()) != alice.ID || !tray.Get("0.has_unviewed").Bool() {
		t.Fatalf("alice group = %s", tray.Get("0").Raw)
	}
	if !tray.Get("0.stories.0.has_viewed").Bool() || tray.Get("0.stories.1.has_viewed").Bool() {
		t.Fatalf("viewed flags = %s", tray.Get("0.stories").Raw)
	}

	env.clock.Set(t0.Add(24*time.Hour + time.Minute))
	if n := env.expect(http.StatusOK, http.MethodGet, userPath, bob.Token, "").Get("data.#").Int(); n != 0 {
		t.Fatalf("active stories after expiry = %d", n)
	}
	env.expect(http.StatusNotFound, http.MethodPut, "/api/v1/story/view/"+storyID, bob.Token, "")

	env.expect(http.StatusNotFound, http.MethodGet, viewersPath, alice.Token, "")

	purged := env.expect(http.StatusOK, http.MethodDelete, "/api/v1/story/expired", bob.Token, "")
	if purged.Get("data.deleted").Int() != 2 {
		t.Fatalf("purge = %s", purged.Get("data").Raw)
	}
	env.expect(http.StatusNotFound, http.MethodDelete, "/api/v1/story/"+storyID, alice.Token, "")

	// the view is younger than one story lifetime on the first purge and
	// goes on a later one
	if purged.Get("data.viewsDeleted").Int() != 0 {
		t.Fatalf("views purged early = %s", purged.Get("data").Raw)
	}
	env.clock.Set(t0.Add(48 * time.Hour))
	later := env.expect(http.StatusOK, http.MethodDelete, "/api/v1/story/expired", bob.Token, "")
	if later.Get("data.viewsDeleted").Int() != 1 {
		t.Fatalf("later purge = %s", later.Get("data").Raw)
	}
	if ids, _ := env.views.GetViewerIDs(storyID); len(ids) != 0 {
		t.Fatalf("views of purged story = %v", ids)
	}
}

func TestDeleteStoryOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	res := env.expect(http.StatusCreated, http.MethodPost, "/api/v1/story/create", alice.Token,
		`{"type":"image","data":"https://cdn.example.com/a.jpg"}`)
	id := res.Get("data.id").String()

	env.expect(http.StatusOK, http.MethodPut, "/api/v1/story/view/"+id, bob.Token, "")

	env.expect(http.StatusForbidden, http.MethodDelete, "/api/v1/story/"+id, bob.Token, "")
	env.expect(http.StatusOK, http.MethodDelete, "/api/v1/story/"+id, alice.Token, "")
	env.expect(http.StatusNotFound, http.MethodDelete, "/api/v1/story/"+id, alice.Token, "")
	if ids, _ := env.views.GetViewerIDs(id); len(ids) != 0 {
		t.Fatalf("views of deleted story = %v", ids)
	}
}

func TestFeedPagination(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	carol := env.register("carol")
	env.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/v1/user/follow/%d", bob.ID), alice.Token, "")

	var bobPosts []string
	for i := 0; i < 3; i++ {
		bobPosts = append(bobPosts, env.createPost(bob, fmt.Sprintf("bob %d", i)))
	}
	own := env.createPost(alice, "mine")
	env.createPost(carol, "not followed")

	// followers hear about new posts
	if n := env.notifications(alice).Get(`#(type=="new_post")#`).Get("#").Int(); n != 3 {
		t.Fatalf("new_post notifications = %d", n)
	}

	env.expect(http.StatusOK, http.MethodPut, "/api/v1/like/toggle/"+bobPosts[2], alice.Token, "")

	page1 := env.expect(http.StatusOK, http.MethodGet, "/api/v1/post/feed?page=1&limit=2", alice.Token, "")
	posts := page1.Get("data.posts")
	if posts.Get("#").Int() != 2 || !page1.Get("data.hasMore").Bool() || !page1.Get("meta.hasNextPage").Bool() {
		t.Fatalf("page 1 = %s", page1.Raw)
	}
	if posts.Get("0.id").String() != own || posts.Get("1.id").String() != bobPosts[2] {
		t.Fatalf("page 1 order = %s", posts.Raw)
	}
	if !posts.Get("1.is_liked").Bool() || posts.Get("0.is_liked").Bool() {
		t.Fatalf("is_liked flags = %s", posts.Raw)
	}
	if posts.Get("1.author.username").String() != "bob" {
		t.Fatalf("author = %s", posts.Get("1.author").Raw)
	}

	page2 := env.expect(http.StatusOK, http.MethodGet, "/api/v1/post/feed?page=2&limit=2", alice.Token, "")
	posts = page2.Get("data.posts")
	if posts.Get("#").Int() != 2 || page2.Get("data.hasMore").Bool() || !page2.Get("meta.hasPreviousPage").Bool() {
		t.Fatalf("page 2 = %s", page2.Raw)
	}
	if posts.Get("0.id").String() != bobPosts[1] || posts.Get("1.id").String() != bobPosts[0] {
		t.Fatalf("page 2 order = %s", posts.Raw)
	}

	byUser := env.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/v1/post/user/%d", carol.ID), alice.Token, "")
	if byUser.Get("data.posts.#").Int() != 1 || byUser.Get("data.hasMore").Bool() {
		t.Fatalf("carol posts = %s", byUser.Raw)
	}
}

func TestSavePost(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	postID := env.createPost(alice, "keep this")

	env.expect(http.StatusOK, http.MethodPut, "/api/v1/post/save/"+postID, alice.Token, "")
	if !env.expect(http.StatusOK, http.MethodGet, "/api/v1/post/"+postID, alice.Token, "").Get("data.is_saved").Bool() {
		t.Fatal("post not saved")
	}
	env.expect(http.StatusOK, http.MethodPut, "/api/v1/post/save/"+postID, alice.Token, "")
	if env.expect(http.StatusOK, http.MethodGet, "/api/v1/post/"+postID, alice.Token, "").Get("data.is_saved").Bool() {
		t.Fatal("post still saved")
	}
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	carol := env.register("carol")
	postID := env.createPost(alice, "thoughts?")
	commentPath := "/api/v1/comment/create/" + postID

	top := env.expect(http.StatusCreated, http.MethodPost, commentPath, bob.Token, `{"content":"nice one @Carol"}`)
	topID := top.Get("data.id").Uint()

	aliceNotes := env.notifications(alice)
	if aliceNotes.Get("#").Int() != 1 || aliceNotes.Get("0.type").String() != models.NotificationComment {
		t.Fatalf("author notifications = %s", aliceNotes.Raw)
	}
	carolNotes := env.notifications(carol)
	if carolNotes.Get("#").Int() != 1 || carolNotes.Get("0.type").String() != models.NotificationMention {
		t.Fatalf("mention notifications = %s", carolNotes.Raw)
	}

	reply := env.expect(http.StatusCreated, http.MethodPost, commentPath, carol.Token,
		fmt.Sprintf(`{"content":"agreed","parent_comment_id":%d}`, topID))
	replyID := reply.Get("data.id").Uint()

	rec := env.do(http.MethodPost, commentPath, alice.Token, fmt.Sprintf(`{"content":"deeper","parent_comment_id":%d}`, replyID))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Cannot reply to a reply") {
		t.Fatalf("reply to reply = %d %s", rec.Code, rec.Body.String())
	}

	// bob hears about the reply to his comment
	if n := env.notifications(bob).Get("#").Int(); n != 1 {
		t.Fatalf("bob notifications = %d", n)
	}

	liked := env.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/v1/comment/like/%d", replyID), alice.Token, "")
	if !liked.Get("data.liked").Bool() || liked.Get("data.likesCount").Int() != 1 {
		t.Fatalf("comment like = %s", liked.Get("data").Raw)
	}

	list := env.expect(http.StatusOK, http.MethodGet, "/api/v1/comment/post/"+postID, alice.Token, "").Get("data")
	if list.Get("#").Int() != 2 || list.Get("0.replies_count").Int() != 1 || !list.Get("1.is_liked").Bool() {
		t.Fatalf("comments = %s", list.Raw)
	}
	if c := env.expect(http.StatusOK, http.MethodGet, "/api/v1/post/"+postID, alice.Token, "").Get("data.comments_count").Int(); c != 2 {
		t.Fatalf("comments_count = %d", c)
	}

	env.expect(http.StatusForbidden, http.MethodDelete, fmt.Sprintf("/api/v1/comment/%d", topID), carol.Token, "")
	deleted := env.expect(http.StatusOK, http.MethodDelete, fmt.Sprintf("/api/v1/comment/%d", topID), bob.Token, "")
	if deleted.Get("data.deleted").Int() != 2 {
		t.Fatalf("delete = %s", deleted.Get("data").Raw)
	}
	if c := env.expect(http.StatusOK, http.MethodGet, "/api/v1/post/"+postID, alice.Token, "").Get("data.comments_count").Int(); c != 0 {
		t.Fatalf("comments_count after delete = %d", c)
	}
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	carol := env.register("carol")

	before := time.Now().UTC().Add(-time.Minute)
	env.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/v1/user/follow/%d", alice.ID), bob.Token, "")
	env.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/v1/user/follow/%d", alice.ID), carol.Token, "")

	count := env.expect(http.StatusOK, http.MethodGet, "/api/v1/notification/unread-count", alice.Token, "")
	if count.Get("data.count").Int() != 2 {
		t.Fatalf("unread = %s", count.Raw)
	}
	if !env.mr.Exists(fmt.Sprintf("notify:unread:%d", alice.ID)) {
		t.Fatal("unread count was not cached")
	}

	since := env.expect(http.StatusOK, http.MethodGet,
		"/api/v1/notification?since="+url.QueryEscape(before.Format(time.RFC3339Nano)), alice.Token, "").Get("data")
	if since.Get("notifications.#").Int() != 2 {
		t.Fatalf("since = %s", since.Raw)
	}
	if since.Get("notifications.0.sender_id").Uint() != uint64(bob.ID) || since.Get("hasMore").Bool() {
		t.Fatalf("since not oldest first = %s", since.Raw)
	}
	cursor := since.Get("cursor").String()
	after := env.expect(http.StatusOK, http.MethodGet, "/api/v1/notification?since="+url.QueryEscape(cursor), alice.Token, "").Get("data")
	if after.Get("notifications.#").Int() != 0 {
		t.Fatalf("poll past cursor = %s", after.Raw)
	}

	// paging one at a time walks both notifications without skipping
	sincePage := func(at string, afterID uint64) gjson.Result {
		path := "/api/v1/notification?limit=1&since=" + url.QueryEscape(at)
		if afterID != 0 {
			path += fmt.Sprintf("&afterId=%d", afterID)
		}
		return env.expect(http.StatusOK, http.MethodGet, path, alice.Token, "").Get("data")
	}
	first := sincePage(before.Format(time.RFC3339Nano), 0)
	if first.Get("notifications.#").Int() != 1 || !first.Get("hasMore").Bool() {
		t.Fatalf("first page = %s", first.Raw)
	}
	second := sincePage(first.Get("cursor").String(), first.Get("cursorId").Uint())
	if second.Get("notifications.#").Int() != 1 || second.Get("notifications.0.id").Uint() == first.Get("notifications.0.id").Uint() {
		t.Fatalf("second page = %s", second.Raw)
	}
	if rest := sincePage(second.Get("cursor").String(), second.Get("cursorId").Uint()); rest.Get("notifications.#").Int() != 0 || rest.Get("hasMore").Bool() {
		t.Fatalf("third page = %s", rest.Raw)
	}
	env.expect(http.StatusBadRequest, http.MethodGet, "/api/v1/notification?since="+url.QueryEscape(cursor)+"&afterId=x", alice.Token, "")
	env.expect(http.StatusBadRequest, http.MethodGet, "/api/v1/notification?since=yesterday", alice.Token, "")

	id := env.notifications(alice).Get("0.id").Uint()
	readPath := fmt.Sprintf("/api/v1/notification/%d/read", id)
	env.expect(http.StatusForbidden, http.MethodPut, readPath, bob.Token, "")
	env.expect(http.StatusOK, http.MethodPut, readPath, alice.Token, "")
	if n := env.expect(http.StatusOK, http.MethodGet, "/api/v1/notification/unread-count", alice.Token, "").Get("data.count").Int(); n != 1 {
		t.Fatalf("unread after mark = %d", n)
	}

	grouped := env.expect(http.StatusOK, http.MethodGet, "/api/v1/notification/grouped", alice.Token, "").Get("data")
	if grouped.Get("unreadCount").Int() != 1 || !grouped.Get("notifications.today").Exists() {
		t.Fatalf("grouped = %s", grouped.Raw)
	}

	all := env.expect(http.StatusOK, http.MethodPut, "/api/v1/notification/read-all", alice.Token, "")
	if all.Get("data.updated").Int() != 1 {
		t.Fatalf("read-all = %s", all.Raw)
	}
	if n := env.expect(http.StatusOK, http.MethodGet, "/api/v1/notification/unread-count", alice.Token, "").Get("data.count").Int(); n != 0 {
		t.Fatalf("unread after read-all = %d", n)
	}
	env.expect(http.StatusNotFound, http.MethodPut, "/api/v1/notification/999/read", alice.Token, "")
}

func TestHealthCheck(t *testing.T) {
	e := echo.New()
	ok := PingFunc(func() error { return nil })
	down := PingFunc(func() error { return errors.New("connection refused") })

	for name, tc := range map[string]struct {
		checks map[string]Pinger
		status int
		state  string
	}{
		"healthy":  {map[string]Pinger{"postgres": ok, "redis": ok}, http.StatusOK, "healthy"},
		"degraded": {map[string]Pinger{"postgres": ok, "redis": down}, http.StatusServiceUnavailable, "degraded"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
			if err := NewHealthHandler(tc.checks).HealthCheck(c); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := gjson.Get(rec.Body.String(), "status").String(); got != tc.state {
				t.Fatalf("state = %q", got)
			}
		})
	}
}
