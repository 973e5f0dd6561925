package api

import (
	"context"
	"net/http"
	"net/url"
)

type PostService struct{ c *Client }

// Feed fetches one page of the caller's feed
func (s *PostService) Feed(ctx context.Context, page, limit int) (Page[Post], error) {
	env, err := s.c.do(ctx, http.MethodGet, "/post/feed", pageQuery(page, limit), nil)
	if err != nil {
		return Page[Post]{}, err
	}
	var posts []Post
	if err := decode(env.data.Get("posts"), &posts); err != nil {
		return Page[Post]{}, err
	}
	return Page[Post]{Items: posts, HasMore: env.data.Get("hasMore").Bool()}, nil
}

func (s *PostService) Get(ctx context.Context, id string) (Post, error) {
	env, err := s.c.do(ctx, http.MethodGet, "/post/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return Post{}, err
	}
	var p Post
	err = decode(env.data, &p)
	return p, err
}

func (s *PostService) Create(ctx context.Context, content string, imageURLs, videoURLs []string) (Post, error) {
	body := map[string]interface{}{"content": content}
	if len(imageURLs) > 0 {
		body["image_urls"] = imageURLs
	}
	if len(videoURLs) > 0 {
		body["video_urls"] = videoURLs
	}
	env, err := s.c.do(ctx, http.MethodPost, "/post/create", nil, body)
	if err != nil {
		return Post{}, err
	}
	var p Post
	err = decode(env.data, &p)
	return p, err
}

func (s *PostService) Update(ctx context.Context, id, content string) (Post, error) {
	env, err := s.c.do(ctx, http.MethodPut, "/post/"+url.PathEscape(id), nil, map[string]string{"content": content})
	if err != nil {
		return Post{}, err
	}
	var p Post
	err = decode(env.data, &p)
	return p, err
}

func (s *PostService) Delete(ctx context.Context, id string) error {
	_, err := s.c.do(ctx, http.MethodDelete, "/post/"+url.PathEscape(id), nil, nil)
	return err
}

// ToggleLike flips the caller's like and returns the authoritative state
func (s *PostService) ToggleLike(ctx context.Context, id string) (LikeState, error) {
	env, err := s.c.do(ctx, http.MethodPut, "/like/toggle/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return LikeState{}, err
	}
	var st LikeState
	err = decode(env.data, &st)
	return st, err
}

func (s *PostService) ToggleSave(ctx context.Context, id string) (bool, error) {
	env, err := s.c.do(ctx, http.MethodPut, "/post/save/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return false, err
	}
	return env.data.Get("saved").Bool(), nil
}
