package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type StoryService struct{ c *Client }

func (s *StoryService) Create(ctx context.Context, content StoryContent) (Story, error) {
	env, err := s.c.do(ctx, http.MethodPost, "/story/create", nil, content)
	if err != nil {
		return Story{}, err
	}
	var st Story
	err = decode(env.data, &st)
	return st, err
}

// ByUser lists a user's active stories, oldest first
func (s *StoryService) ByUser(ctx context.Context, userID uint) ([]Story, error) {
	env, err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/story/user/%d", userID), nil, nil)
	if err != nil {
		return nil, err
	}
	var stories []Story
	err = decode(env.data, &stories)
	return stories, err
}

// Feed lists active stories of followed users grouped by owner
func (s *StoryService) Feed(ctx context.Context) ([]StoryGroup, error) {
	env, err := s.c.do(ctx, http.MethodGet, "/story/feed", nil, nil)
	if err != nil {
		return nil, err
	}
	var groups []StoryGroup
	err = decode(env.data, &groups)
	return groups, err
}

func (s *StoryService) View(ctx context.Context, storyID string) error {
	_, err := s.c.do(ctx, http.MethodPut, "/story/view/"+url.PathEscape(storyID), nil, nil)
	return err
}

// PurgeExpired asks the server to delete expired stories now
func (s *StoryService) PurgeExpired(ctx context.Context) (int64, error) {
	env, err := s.c.do(ctx, http.MethodDelete, "/story/expired", nil, nil)
	if err != nil {
		return 0, err
	}
	return env.data.Get("deleted").Int(), nil
}

func (s *StoryService) Delete(ctx context.Context, storyID string) error {
	_, err := s.c.do(ctx, http.MethodDelete, "/story/"+url.PathEscape(storyID), nil, nil)
	return err
}
