package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultFeedLimit = 10
	maxFeedLimit     = 50
)

// EnrichedPost is a post with author info and viewer-specific flags
type EnrichedPost struct {
	models.Post
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
	IsSaved bool               `json:"is_saved"`
}

// postEnricher attaches authors and the viewer's like/save flags to posts
type postEnricher struct {
	userRepository      repositories.UserRepository
	likeRepository      repositories.LikeRepository
	savedPostRepository repositories.SavedPostRepository
}

func (e *postEnricher) enrich(ctx context.Context, viewerID uint, posts []models.Post) ([]EnrichedPost, error) {
	authorIDs := make([]uint, 0, len(posts))
	postIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
		postIDs = append(postIDs, p.ID.Hex())
	}
	authorIDs = uniqueUints(authorIDs)

	var (
		authors map[uint]models.User
		liked   map[string]bool
		saved   map[string]bool
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(context.Context) (err error) {
		authors, err = e.userRepository.GetUsersByIDs(authorIDs)
		return err
	})
	p.Go(func(context.Context) (err error) {
		liked, err = e.likeRepository.GetLikedPostIDs(viewerID, postIDs)
		return err
	})
	p.Go(func(context.Context) (err error) {
		saved, err = e.savedPostRepository.GetSavedPostIDs(viewerID, postIDs)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	enriched := make([]EnrichedPost, len(posts))
	for i, post := range posts {
		pid := post.ID.Hex()
		author := authors[post.AuthorID]
		enriched[i] = EnrichedPost{
			Post:    post,
			Author:  author.ToCompact(),
			IsLiked: liked[pid],
			IsSaved: saved[pid],
		}
	}
	return enriched, nil
}

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	postRepository   repositories.PostRepository
	followRepository repositories.FollowRepository
	enricher         *postEnricher
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	likeRepo repositories.LikeRepository,
	savedPostRepo repositories.SavedPostRepository,
) *FeedHandler {
	return &FeedHandler{
		postRepository:   postRepo,
		followRepository: followRepo,
		enricher: &postEnricher{
			userRepository:      userRepo,
			likeRepository:      likeRepo,
			savedPostRepository: savedPostRepo,
		},
	}
}

// RegisterFeedRoutes registers feed-related routes on the post group
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// GetFeed returns the newest posts by the caller and the users they follow
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, defaultFeedLimit, maxFeedLimit)

	following, err := h.followRepository.GetFollowingIDs(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	authorIDs := uniqueUints(append(following, currentUserID))

	ctx := c.Request().Context()
	skip := int64((page - 1) * limit)
	// one extra row tells us whether another page exists
	posts, err := h.postRepository.GetFeedPosts(ctx, authorIDs, skip, int64(limit+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	enriched, err := h.enricher.enrich(ctx, currentUserID, posts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return respondPage(c, echo.Map{"posts": enriched, "hasMore": hasMore}, page, limit, hasMore)
}
