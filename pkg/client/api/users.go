package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type UserService struct{ c *Client }

// Register creates an account and stores the returned token on the client
func (s *UserService) Register(ctx context.Context, username, email, password, displayName string) (Session, error) {
	body := map[string]string{
		"username":     username,
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}
	return s.session(ctx, "/user/register", body)
}

// Login exchanges credentials for a token and stores it on the client
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	return s.session(ctx, "/user/login", map[string]string{"email": email, "password": password})
}

func (s *UserService) session(ctx context.Context, path string, body interface{}) (Session, error) {
	env, err := s.c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := decode(env.data, &sess); err != nil {
		return Session{}, err
	}
	s.c.SetToken(sess.Token)
	return sess, nil
}

func (s *UserService) Profile(ctx context.Context) (User, error) {
	env, err := s.c.do(ctx, http.MethodGet, "/user/profile", nil, nil)
	if err != nil {
		return User{}, err
	}
	var u User
	err = decode(env.data, &u)
	return u, err
}

// Get returns another user's profile including whether the caller follows them
func (s *UserService) Get(ctx context.Context, id uint) (User, error) {
	env, err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/user/%d", id), nil, nil)
	if err != nil {
		return User{}, err
	}
	var u User
	err = decode(env.data, &u)
	return u, err
}

func (s *UserService) Search(ctx context.Context, username string) ([]UserCompact, error) {
	env, err := s.c.do(ctx, http.MethodGet, "/user/search/"+url.PathEscape(username), nil, nil)
	if err != nil {
		return nil, err
	}
	var users []UserCompact
	err = decode(env.data, &users)
	return users, err
}

func (s *UserService) ToggleFollow(ctx context.Context, id uint) (FollowState, error) {
	env, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("/user/follow/%d", id), nil, nil)
	if err != nil {
		return FollowState{}, err
	}
	var st FollowState
	err = decode(env.data, &st)
	return st, err
}

func (s *UserService) Followers(ctx context.Context, id uint) ([]UserCompact, error) {
	return s.list(ctx, fmt.Sprintf("/user/%d/followers", id))
}

func (s *UserService) Following(ctx context.Context, id uint) ([]UserCompact, error) {
	return s.list(ctx, fmt.Sprintf("/user/%d/following", id))
}

func (s *UserService) list(ctx context.Context, path string) ([]UserCompact, error) {
	env, err := s.c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var users []UserCompact
	err = decode(env.data, &users)
	return users, err
}
