package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type CommentService struct{ c *Client }

func (s *CommentService) List(ctx context.Context, postID string) ([]Comment, error) {
	env, err := s.c.do(ctx, http.MethodGet, "/comment/post/"+url.PathEscape(postID), nil, nil)
	if err != nil {
		return nil, err
	}
	var comments []Comment
	err = decode(env.data, &comments)
	return comments, err
}

// Create comments on a post, or replies to a top-level comment when parentID is set
func (s *CommentService) Create(ctx context.Context, postID, content string, parentID *uint) (Comment, error) {
	body := map[string]interface{}{"content": content}
	if parentID != nil {
		body["parent_comment_id"] = *parentID
	}
	env, err := s.c.do(ctx, http.MethodPost, "/comment/create/"+url.PathEscape(postID), nil, body)
	if err != nil {
		return Comment{}, err
	}
	var cm Comment
	err = decode(env.data, &cm)
	return cm, err
}

func (s *CommentService) Update(ctx context.Context, id uint, content string) (Comment, error) {
	env, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("/comment/%d", id), nil, map[string]string{"content": content})
	if err != nil {
		return Comment{}, err
	}
	var cm Comment
	err = decode(env.data, &cm)
	return cm, err
}

func (s *CommentService) Delete(ctx context.Context, id uint) error {
	_, err := s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/comment/%d", id), nil, nil)
	return err
}

func (s *CommentService) ToggleLike(ctx context.Context, id uint) (CommentLikeState, error) {
	env, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("/comment/like/%d", id), nil, nil)
	if err != nil {
		return CommentLikeState{}, err
	}
	var st CommentLikeState
	err = decode(env.data, &st)
	return st, err
}
