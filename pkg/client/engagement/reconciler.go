// Package engagement applies like and follow toggles optimistically and
// reconciles them with the server's answer.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
	"github.com/anonto42/nano-social/backend/pkg/client/store"
)

var (
	ErrAlreadyInFlight    = errors.New("engagement: toggle already in flight")
	ErrUnauthenticated    = errors.New("engagement: no current user")
	ErrSelfFollowRejected = errors.New("engagement: cannot follow yourself")
	ErrUnknownTarget      = errors.New("engagement: target not in store")
)

type State int

const (
	Idle State = iota
	Pending
	Confirmed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

type Action string

const (
	ActionLike        Action = "like"
	ActionFollow      Action = "follow"
	ActionCommentLike Action = "comment_like"
)

// Key identifies one in-flight mutation
type Key struct {
	Action Action
	Target string
}

// Result is the final state of one toggle. Active is the resulting
// liked/following flag and Count the counter it moved.
type Result struct {
	State  State
	Active bool
	Count  int64
}

type LikeAPI interface {
	ToggleLike(ctx context.Context, postID string) (api.LikeState, error)
}

type FollowAPI interface {
	ToggleFollow(ctx context.Context, userID uint) (api.FollowState, error)
}

type CommentLikeAPI interface {
	ToggleLike(ctx context.Context, commentID uint) (api.CommentLikeState, error)
}

// FeedRefresher reloads the visible feed from page one
type FeedRefresher interface {
	Reload(ctx context.Context) error
}

type Config struct {
	Likes        LikeAPI
	Follows      FollowAPI
	CommentLikes CommentLikeAPI
	Feed         FeedRefresher
	Timeout      time.Duration
	Logger       *zap.Logger
}

type Reconciler struct {
	store   *store.Store
	likes   LikeAPI
	follows FollowAPI
	clikes  CommentLikeAPI
	feed    FeedRefresher
	timeout time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	inFlight map[Key]struct{}

	refreshes conc.WaitGroup
}

func New(s *store.Store, cfg Config) *Reconciler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = api.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Reconciler{
		store:    s,
		likes:    cfg.Likes,
		follows:  cfg.Follows,
		clikes:   cfg.CommentLikes,
		feed:     cfg.Feed,
		timeout:  cfg.Timeout,
		log:      cfg.Logger,
		inFlight: make(map[Key]struct{}),
	}
}

// Pending reports whether a toggle for key is in flight
func (r *Reconciler) Pending(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[key]
	return ok
}

// Wait blocks until feed refreshes started by rollbacks have finished
func (r *Reconciler) Wait() {
	r.refreshes.Wait()
}

func (r *Reconciler) acquire(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[key]; ok {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

func (r *Reconciler) release(key Key) {
	r.mu.Lock()
	delete(r.inFlight, key)
	r.mu.Unlock()
}

// ToggleLike flips the like on a post. On failure the store is restored to
// the pre-toggle snapshot and the feed is reloaded in the background.
func (r *Reconciler) ToggleLike(ctx context.Context, postID string) (Result, error) {
	if r.store.CurrentUser() == 0 {
		return Result{State: Idle}, ErrUnauthenticated
	}
	key := Key{Action: ActionLike, Target: postID}
	if !r.acquire(key) {
		return Result{State: Pending}, ErrAlreadyInFlight
	}
	defer r.release(key)

	snapshot, ok := r.store.PostLike(postID)
	if !ok {
		return Result{State: Idle}, ErrUnknownTarget
	}
	guess := flip(snapshot)
	r.store.SetPostLike(postID, guess)

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	resp, err := r.likes.ToggleLike(reqCtx, postID)
	if err != nil {
		r.store.SetPostLike(postID, snapshot)
		r.log.Warn("like rolled back", zap.String("post_id", postID), zap.Error(err))
		r.refreshFeed()
		return Result{State: RolledBack, Active: snapshot.Liked, Count: snapshot.Count}, fmt.Errorf("toggle like %s: %w", postID, err)
	}

	final := store.LikeState{Liked: resp.Liked, Count: resp.LikesCount}
	if final != guess {
		r.store.SetPostLike(postID, final)
	}
	return Result{State: Confirmed, Active: final.Liked, Count: final.Count}, nil
}

// ToggleCommentLike is ToggleLike for comments, without the feed reload
func (r *Reconciler) ToggleCommentLike(ctx context.Context, commentID uint) (Result, error) {
	if r.store.CurrentUser() == 0 {
		return Result{State: Idle}, ErrUnauthenticated
	}
	key := Key{Action: ActionCommentLike, Target: fmt.Sprint(commentID)}
	if !r.acquire(key) {
		return Result{State: Pending}, ErrAlreadyInFlight
	}
	defer r.release(key)

	snapshot, ok := r.store.CommentLike(commentID)
	if !ok {
		return Result{State: Idle}, ErrUnknownTarget
	}
	guess := flip(snapshot)
	r.store.SetCommentLike(commentID, guess)

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	resp, err := r.clikes.ToggleLike(reqCtx, commentID)
	if err != nil {
		r.store.SetCommentLike(commentID, snapshot)
		r.log.Warn("comment like rolled back", zap.Uint("comment_id", commentID), zap.Error(err))
		return Result{State: RolledBack, Active: snapshot.Liked, Count: snapshot.Count}, fmt.Errorf("toggle comment like %d: %w", commentID, err)
	}

	final := store.LikeState{Liked: resp.Liked, Count: resp.LikesCount}
	if final != guess {
		r.store.SetCommentLike(commentID, final)
	}
	return Result{State: Confirmed, Active: final.Liked, Count: final.Count}, nil
}

// ToggleFollow flips the follow relation toward userID. Following yourself
// is rejected before anything touches the store or the network.
func (r *Reconciler) ToggleFollow(ctx context.Context, userID uint) (Result, error) {
	me := r.store.CurrentUser()
	if me == 0 {
		return Result{State: Idle}, ErrUnauthenticated
	}
	if userID == me {
		return Result{State: Idle}, ErrSelfFollowRejected
	}
	key := Key{Action: ActionFollow, Target: fmt.Sprint(userID)}
	if !r.acquire(key) {
		return Result{State: Pending}, ErrAlreadyInFlight
	}
	defer r.release(key)

	// the target's fields are restored from the snapshot; the current user's
	// following count is shared with other targets and is undone by delta
	snapshot := r.store.Follow(userID)
	guess := flipFollow(snapshot)
	delta := int64(1)
	if !guess.Following {
		delta = -1
	}
	r.store.SetFollow(userID, guess)
	r.store.AdjustFollowingCount(delta)

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	resp, err := r.follows.ToggleFollow(reqCtx, userID)
	if err != nil {
		r.store.SetFollow(userID, snapshot)
		r.store.AdjustFollowingCount(-delta)
		r.log.Warn("follow rolled back", zap.Uint("user_id", userID), zap.Error(err))
		return Result{State: RolledBack, Active: snapshot.Following, Count: snapshot.FollowersCount}, fmt.Errorf("toggle follow %d: %w", userID, err)
	}

	final := store.FollowState{Following: resp.Following, FollowersCount: resp.FollowersCount}
	if final.Following != guess.Following {
		// server disagreed, so our own following counter moved the wrong way
		r.store.AdjustFollowingCount(-delta)
	}
	if final != guess {
		r.store.SetFollow(userID, final)
	}
	return Result{State: Confirmed, Active: final.Following, Count: final.FollowersCount}, nil
}

// flipFollow is the optimistic state after toggling s
func flipFollow(s store.FollowState) store.FollowState {
	if s.Following {
		return store.FollowState{Following: false, FollowersCount: max0(s.FollowersCount - 1)}
	}
	return store.FollowState{Following: true, FollowersCount: s.FollowersCount + 1}
}

func (r *Reconciler) refreshFeed() {
	if r.feed == nil {
		return
	}
	r.refreshes.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.feed.Reload(ctx); err != nil {
			r.log.Warn("feed refresh after rollback failed", zap.Error(err))
		}
	})
}

func flip(s store.LikeState) store.LikeState {
	if s.Liked {
		return store.LikeState{Liked: false, Count: max0(s.Count - 1)}
	}
	return store.LikeState{Liked: true, Count: s.Count + 1}
}

func max0(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
