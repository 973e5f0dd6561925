package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
	"github.com/anonto42/nano-social/backend/pkg/client/engagement"
	"github.com/anonto42/nano-social/backend/pkg/client/feed"
	"github.com/anonto42/nano-social/backend/pkg/client/poller"
	"github.com/anonto42/nano-social/backend/pkg/client/store"
	"github.com/anonto42/nano-social/backend/pkg/client/stories"
	"github.com/anonto42/nano-social/backend/pkg/logger"
)

const defaultServer = "http://localhost:8080"

// env is the wiring shared by every command
type env struct {
	api     *api.Client
	store   *store.Store
	session *session
	path    string
	timeout time.Duration
	log     *zap.Logger
	out     io.Writer
}

func newEnv(c *cli.Context) (*env, error) {
	path := c.String("session")
	sess, err := loadSession(path)
	if err != nil {
		return nil, err
	}
	if s := c.String("server"); s != "" {
		sess.Server = s
	}
	if sess.Server == "" {
		sess.Server = defaultServer
	}

	log := zap.NewNop()
	if c.Bool("debug") {
		log = logger.New(true)
	}

	e := &env{
		api: api.New(api.Config{
			BaseURL: sess.Server,
			Timeout: c.Duration("timeout"),
			Token:   sess.Token,
			Logger:  log,
		}),
		store:   store.New(),
		session: sess,
		path:    path,
		timeout: c.Duration("timeout"),
		log:     log,
		out:     c.App.Writer,
	}
	return e, nil
}

// authed loads the current profile so the store knows who "me" is
func (e *env) authed(c *cli.Context) error {
	if e.session.Token == "" {
		return errors.New("not logged in, run socialctl login first")
	}
	me, err := e.api.Users.Profile(c.Context)
	if err != nil {
		return err
	}
	e.store.SetSession(me)
	return nil
}

func (e *env) postPager(limit int) *feed.Pager[api.Post] {
	return feed.New(feed.Config[api.Post]{
		Fetch: e.api.Posts.Feed,
		Key:   api.Post.Key,
		Limit: limit,
		Sink:  func(posts []api.Post) { e.store.UpsertPosts(posts...) },
	})
}

func (e *env) notificationPager(limit int) *feed.Pager[api.Notification] {
	return feed.New(feed.Config[api.Notification]{
		Fetch: e.api.Notifications.List,
		Key:   api.Notification.Key,
		Limit: limit,
		Sink:  func(items []api.Notification) { e.store.UpsertNotifications(items...) },
	})
}

var loginCommand = &cli.Command{
	Name:  "login",
	Usage: "log in and remember the token",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "email", Required: true},
		&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"SOCIALCTL_PASSWORD"}},
	},
	Action: func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		sess, err := e.api.Users.Login(c.Context, c.String("email"), c.String("password"))
		if err != nil {
			return err
		}
		e.session.Token = sess.Token
		e.session.UserID = sess.User.ID
		e.session.Username = sess.User.Username
		if err := saveSession(e.path, e.session); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "logged in as @%s\n", sess.User.Username)
		return nil
	},
}

var feedCommand = &cli.Command{
	Name:  "feed",
	Usage: "print the home feed",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "pages", Value: 1, Usage: "number of pages to load"},
		&cli.IntFlag{Name: "limit", Value: feed.DefaultLimit},
	},
	Action: func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		pager := e.postPager(c.Int("limit"))
		for i := 0; i < c.Int("pages") && pager.HasMore(); i++ {
			if err := pager.FetchPage(c.Context); err != nil {
				return err
			}
		}
		for _, p := range pager.Items() {
			liked := " "
			if p.IsLiked {
				liked = "♥"
			}
			fmt.Fprintf(e.out, "%s %s @%s: %s (%d likes, %d comments)\n",
				p.ID, liked, p.Author.Username, p.Content, p.LikesCount, p.CommentsCount)
		}
		if pager.HasMore() {
			fmt.Fprintln(e.out, "... more available")
		}
		return nil
	},
}

var likeCommand = &cli.Command{
	Name:      "like",
	Usage:     "toggle the like on a post",
	ArgsUsage: "<post-id>",
	Action: func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		postID := c.Args().First()
		if postID == "" {
			return errors.New("post id required")
		}
		if err := e.authed(c); err != nil {
			return err
		}
		post, err := e.api.Posts.Get(c.Context, postID)
		if err != nil {
			return err
		}
		e.store.UpsertPosts(post)

		r := engagement.New(e.store, engagement.Config{
			Likes:   e.api.Posts,
			Timeout: e.timeout,
			Logger:  e.log,
		})
		res, err := r.ToggleLike(c.Context, postID)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "liked=%t likes=%d\n", res.Active, res.Count)
		return nil
	},
}

var followCommand = &cli.Command{
	Name:      "follow",
	Usage:     "toggle following a user",
	ArgsUsage: "<user-id>",
	Action: func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		id, err := parseID(c.Args().First())
		if err != nil {
			return err
		}
		if err := e.authed(c); err != nil {
			return err
		}
		if id != e.store.CurrentUser() {
			target, err := e.api.Users.Get(c.Context, id)
			if err != nil {
				return err
			}
			e.store.UpsertUsers(target)
		}

		r := engagement.New(e.store, engagement.Config{
			Follows: e.api.Users,
			Timeout: e.timeout,
			Logger:  e.log,
		})
		res, err := r.ToggleFollow(c.Context, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "following=%t followers=%d\n", res.Active, res.Count)
		return nil
	},
}

var storiesCommand = &cli.Command{
	Name:  "stories",
	Usage: "print active stories of followed users, or of one user",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "user", Usage: "only this user's stories"},
	},
	Action: func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		m := stories.New(e.api.Stories, e.store, stories.Config{Timeout: e.timeout, Logger: e.log})
		now := time.Now()

		var groups []stories.Group
		if uid := c.Uint("user"); uid != 0 {
			if err := m.LoadUser(c.Context, uid); err != nil {
				return err
			}
			groups = stories.GroupByOwner(m.ListActive(uid, now))
		} else {
			if err := m.Load(c.Context); err != nil {
				return err
			}
			groups = m.Tray(now)
		}

		for _, g := range groups {
			marker := " "
			if g.HasUnviewed {
				marker = "*"
			}
			fmt.Fprintf(e.out, "%s user %d\n", marker, g.OwnerID)
			for _, s := range g.Stories {
				fmt.Fprintf(e.out, "    %s %s %s expires in %s\n",
					s.ID, s.Content.Type, s.Content.Data, s.ExpiresAt.Sub(now).Round(time.Minute))
			}
		}
		return nil
	},
}

var viewStoryCommand = &cli.Command{
	Name:      "view-story",
	Usage:     "mark a story as viewed",
	ArgsUsage: "<story-id>",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "owner", Required: true, Usage: "id of the story's owner"},
	},
	Action: func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		storyID := c.Args().First()
		if storyID == "" {
			return errors.New("story id required")
		}
		if err := e.authed(c); err != nil {
			return err
		}
		m := stories.New(e.api.Stories, e.store, stories.Config{Timeout: e.timeout, Logger: e.log})
		if err := m.LoadUser(c.Context, c.Uint("owner")); err != nil {
			return err
		}
		if _, ok := e.store.Story(storyID); !ok {
			return fmt.Errorf("story %s is not active", storyID)
		}
		if err := m.MarkViewed(c.Context, storyID, e.store.CurrentUser()); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "viewed")
		return nil
	},
}

var notificationsCommand = &cli.Command{
	Name:  "notifications",
	Usage: "print notifications, optionally polling for new ones",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 20},
		&cli.BoolFlag{Name: "watch", Usage: "keep polling until interrupted"},
		&cli.DurationFlag{Name: "interval", Value: poller.DefaultInterval},
	},
	Action: func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		pager := e.notificationPager(c.Int("limit"))
		started := time.Now()
		if err := pager.FetchPage(c.Context); err != nil {
			return err
		}
		for _, n := range pager.Items() {
			printNotification(e.out, n)
		}
		if !c.Bool("watch") {
			return nil
		}

		// the pager's sink already feeds the store
		p := poller.New(e.api.Notifications, pager, nil, poller.Config{
			Interval: c.Duration("interval"),
			Since:    started,
			Timeout:  e.timeout,
			Logger:   e.log,
		})
		unsubscribe := e.store.Subscribe(func(ev store.Event) {
			if ev.Kind != store.KindNotification {
				return
			}
			for _, n := range e.store.Notifications() {
				if ev.ID == api.Notification.Key(n) {
					printNotification(e.out, n)
					return
				}
			}
		})
		defer unsubscribe()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return p.Run(ctx)
	},
}

func printNotification(w io.Writer, n api.Notification) {
	read := "*"
	if n.IsRead {
		read = " "
	}
	fmt.Fprintf(w, "%s %s %s %s\n", read, n.CreatedAt.Local().Format(time.Kitchen), n.Type, n.Message)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}
