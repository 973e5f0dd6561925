// Package api is a typed client for the nano-social REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const DefaultTimeout = 15 * time.Second

type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080
	BaseURL    string
	Timeout    time.Duration
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client holds the transport and the current bearer token. The per-domain
// services share it.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger

	mu    sync.RWMutex
	token string

	Users         *UserService
	Posts         *PostService
	Comments      *CommentService
	Stories       *StoryService
	Notifications *NotificationService
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		log:     cfg.Logger,
		token:   cfg.Token,
	}
	c.Users = &UserService{c: c}
	c.Posts = &PostService{c: c}
	c.Comments = &CommentService{c: c}
	c.Stories = &StoryService{c: c}
	c.Notifications = &NotificationService{c: c}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// envelope is the parsed {"success","data","meta"} body
type envelope struct {
	data gjson.Result
	meta gjson.Result
}

// do sends one request bounded by the client timeout and returns the
// envelope of a 2xx response. Anything else becomes an *Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return envelope{}, &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, &Error{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		msg := gjson.GetBytes(raw, "message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return envelope{}, &Error{Status: resp.StatusCode, Message: msg}
	}
	if !gjson.ValidBytes(raw) {
		return envelope{}, &Error{Status: resp.StatusCode, Message: "malformed response body"}
	}

	parsed := gjson.ParseBytes(raw)
	return envelope{data: parsed.Get("data"), meta: parsed.Get("meta")}, nil
}

// decode unmarshals a gjson sub-document into out
func decode(r gjson.Result, out interface{}) error {
	if !r.Exists() {
		return fmt.Errorf("response is missing a field")
	}
	return json.Unmarshal([]byte(r.Raw), out)
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}
