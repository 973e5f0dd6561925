// Package store is the client's normalized in-memory cache of server
// entities. All mutation goes through methods; observers subscribe to events.
package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
)

type Kind int

const (
	KindUser Kind = iota + 1
	KindPost
	KindComment
	KindStory
	KindNotification
	KindFollow
	KindSession
)

// Event names the entity that changed
type Event struct {
	Kind Kind
	ID   string
}

// LikeState is a like flag with its counter
type LikeState struct {
	Liked bool
	Count int64
}

// FollowState is the follow flag toward one user and that user's follower
// count. The current user's following count is shared by every target and
// moves through AdjustFollowingCount instead.
type FollowState struct {
	Following      bool
	FollowersCount int64
}

type Store struct {
	mu            sync.RWMutex
	me            uint
	users         map[uint]api.User
	posts         map[string]api.Post
	comments      map[uint]api.Comment
	stories       map[string]api.Story
	notifications map[uint]api.Notification
	following     map[uint]bool

	subMu  sync.RWMutex
	subs   map[int]func(Event)
	nextID int
}

func New() *Store {
	return &Store{
		users:         make(map[uint]api.User),
		posts:         make(map[string]api.Post),
		comments:      make(map[uint]api.Comment),
		stories:       make(map[string]api.Story),
		notifications: make(map[uint]api.Notification),
		following:     make(map[uint]bool),
		subs:          make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every change and returns its cancel func.
// fn runs synchronously after the store lock is released.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.subMu.RLock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// SetSession records the logged in user; id 0 means logged out
func (s *Store) SetSession(user api.User) {
	s.mu.Lock()
	s.me = user.ID
	if user.ID != 0 {
		s.users[user.ID] = user
	}
	s.mu.Unlock()
	s.emit(Event{Kind: KindSession, ID: itoa(user.ID)})
}

func (s *Store) CurrentUser() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me
}

// --- users and follows ---

// UpsertUsers stores profiles as the server sent them; IsFollowing is taken
// as authoritative for the following set in both directions
func (s *Store) UpsertUsers(users ...api.User) {
	s.mu.Lock()
	events := make([]Event, 0, len(users))
	for _, u := range users {
		s.users[u.ID] = u
		if u.IsFollowing {
			s.following[u.ID] = true
		} else {
			delete(s.following, u.ID)
		}
		events = append(events, Event{Kind: KindUser, ID: itoa(u.ID)})
	}
	s.mu.Unlock()
	s.emit(events...)
}

func (s *Store) User(id uint) (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// SetFollowingIDs replaces the set of users the current user follows
func (s *Store) SetFollowingIDs(ids []uint) {
	s.mu.Lock()
	s.following = make(map[uint]bool, len(ids))
	for _, id := range ids {
		s.following[id] = true
	}
	s.mu.Unlock()
	s.emit(Event{Kind: KindFollow})
}

func (s *Store) IsFollowing(id uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.following[id]
}

func (s *Store) Follow(target uint) FollowState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FollowState{
		Following:      s.following[target],
		FollowersCount: s.users[target].FollowersCount,
	}
}

// SetFollow writes the follow flag and the target's follower count. The
// count is ignored when the target is not in the store.
func (s *Store) SetFollow(target uint, st FollowState) {
	s.mu.Lock()
	if st.Following {
		s.following[target] = true
	} else {
		delete(s.following, target)
	}
	if u, ok := s.users[target]; ok {
		u.FollowersCount = st.FollowersCount
		u.IsFollowing = st.Following
		s.users[target] = u
	}
	s.mu.Unlock()
	s.emit(Event{Kind: KindFollow, ID: itoa(target)})
}

// FollowingCount is the current user's following count
func (s *Store) FollowingCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[s.me].FollowingCount
}

// AdjustFollowingCount moves the current user's following count by delta.
// Toggles on different targets overlap, so they apply and undo relative
// changes rather than writing the counter back.
func (s *Store) AdjustFollowingCount(delta int64) {
	s.mu.Lock()
	u, ok := s.users[s.me]
	if ok && s.me != 0 {
		u.FollowingCount += delta
		s.users[s.me] = u
	}
	s.mu.Unlock()
	if ok {
		s.emit(Event{Kind: KindUser, ID: itoa(u.ID)})
	}
}

// --- posts ---

func (s *Store) UpsertPosts(posts ...api.Post) {
	s.mu.Lock()
	events := make([]Event, 0, len(posts))
	for _, p := range posts {
		s.posts[p.ID] = p
		events = append(events, Event{Kind: KindPost, ID: p.ID})
	}
	s.mu.Unlock()
	s.emit(events...)
}

func (s *Store) Post(id string) (api.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	return p, ok
}

func (s *Store) RemovePost(id string) {
	s.mu.Lock()
	_, ok := s.posts[id]
	delete(s.posts, id)
	s.mu.Unlock()
	if ok {
		s.emit(Event{Kind: KindPost, ID: id})
	}
}

func (s *Store) PostLike(id string) (LikeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	return LikeState{Liked: p.IsLiked, Count: p.LikesCount}, ok
}

// SetPostLike writes the like flag and count; a post no longer in the store
// is left alone
func (s *Store) SetPostLike(id string, st LikeState) {
	s.mu.Lock()
	p, ok := s.posts[id]
	if ok {
		p.IsLiked = st.Liked
		p.LikesCount = st.Count
		s.posts[id] = p
	}
	s.mu.Unlock()
	if ok {
		s.emit(Event{Kind: KindPost, ID: id})
	}
}

// --- comments ---

func (s *Store) UpsertComments(comments ...api.Comment) {
	s.mu.Lock()
	events := make([]Event, 0, len(comments))
	for _, c := range comments {
		s.comments[c.ID] = c
		events = append(events, Event{Kind: KindComment, ID: itoa(c.ID)})
	}
	s.mu.Unlock()
	s.emit(events...)
}

func (s *Store) Comment(id uint) (api.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	return c, ok
}

// Comments returns a post's cached comments, oldest first
func (s *Store) Comments(postID string) []api.Comment {
	s.mu.RLock()
	out := make([]api.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) CommentLike(id uint) (LikeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	return LikeState{Liked: c.IsLiked, Count: c.LikesCount}, ok
}

func (s *Store) SetCommentLike(id uint, st LikeState) {
	s.mu.Lock()
	c, ok := s.comments[id]
	if ok {
		c.IsLiked = st.Liked
		c.LikesCount = st.Count
		s.comments[id] = c
	}
	s.mu.Unlock()
	if ok {
		s.emit(Event{Kind: KindComment, ID: itoa(id)})
	}
}

// --- stories ---

// UpsertStories stores stories. A story already marked viewed stays viewed.
func (s *Store) UpsertStories(stories ...api.Story) {
	s.mu.Lock()
	events := make([]Event, 0, len(stories))
	for _, st := range stories {
		if prev, ok := s.stories[st.ID]; ok && prev.HasViewed {
			st.HasViewed = true
		}
		s.stories[st.ID] = st
		events = append(events, Event{Kind: KindStory, ID: st.ID})
	}
	s.mu.Unlock()
	s.emit(events...)
}

func (s *Store) Story(id string) (api.Story, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stories[id]
	return st, ok
}

// Stories returns every cached story matching keep, oldest first
func (s *Store) Stories(keep func(api.Story) bool) []api.Story {
	s.mu.RLock()
	out := make([]api.Story, 0)
	for _, st := range s.stories {
		if keep == nil || keep(st) {
			out = append(out, st)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkStoryViewed sets the viewed flag and reports whether it changed
func (s *Store) MarkStoryViewed(id string) bool {
	s.mu.Lock()
	st, ok := s.stories[id]
	changed := ok && !st.HasViewed
	if changed {
		st.HasViewed = true
		s.stories[id] = st
	}
	s.mu.Unlock()
	if changed {
		s.emit(Event{Kind: KindStory, ID: id})
	}
	return changed
}

// RemoveExpiredStories drops stories with expires_at <= now
func (s *Store) RemoveExpiredStories(now time.Time) int {
	s.mu.Lock()
	events := make([]Event, 0)
	for id, st := range s.stories {
		if !st.Active(now) {
			delete(s.stories, id)
			events = append(events, Event{Kind: KindStory, ID: id})
		}
	}
	s.mu.Unlock()
	s.emit(events...)
	return len(events)
}

// --- notifications ---

func (s *Store) UpsertNotifications(items ...api.Notification) {
	s.mu.Lock()
	events := make([]Event, 0, len(items))
	for _, n := range items {
		s.notifications[n.ID] = n
		events = append(events, Event{Kind: KindNotification, ID: itoa(n.ID)})
	}
	s.mu.Unlock()
	s.emit(events...)
}

// Notifications returns cached notifications, newest first
func (s *Store) Notifications() []api.Notification {
	s.mu.RLock()
	out := make([]api.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.notifications {
		if !item.IsRead {
			n++
		}
	}
	return n
}

func (s *Store) MarkNotificationRead(id uint) {
	s.mu.Lock()
	n, ok := s.notifications[id]
	if ok {
		n.IsRead = true
		s.notifications[id] = n
	}
	s.mu.Unlock()
	if ok {
		s.emit(Event{Kind: KindNotification, ID: itoa(id)})
	}
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
