package stories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
	"github.com/anonto42/nano-social/backend/pkg/client/store"
)

type fakeAPI struct {
	now       time.Time
	creates   int
	views     int
	createErr error
	viewErr   error
	byUser    []api.Story
	tray      []api.StoryGroup
}

func (f *fakeAPI) Create(ctx context.Context, content api.StoryContent) (api.Story, error) {
	f.creates++
	if f.createErr != nil {
		return api.Story{}, f.createErr
	}
	return api.Story{ID: "new", UserID: 1, Content: content, CreatedAt: f.now, ExpiresAt: f.now.Add(24 * time.Hour)}, nil
}

func (f *fakeAPI) ByUser(ctx context.Context, userID uint) ([]api.Story, error) {
	return f.byUser, nil
}

func (f *fakeAPI) Feed(ctx context.Context) ([]api.StoryGroup, error) {
	return f.tray, nil
}

func (f *fakeAPI) View(ctx context.Context, storyID string) error {
	f.views++
	return f.viewErr
}

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func TestStoryVisibleUntilExpiry(t *testing.T) {
	fake := &fakeAPI{now: t0}
	m := New(fake, store.New(), Config{})

	if _, err := m.Create(context.Background(), api.StoryContent{Type: api.MediaImage, Data: "https://cdn/x.jpg"}); err != nil {
		t.Fatal(err)
	}

	if got := m.ListActive(1, t0.Add(23*time.Hour+59*time.Minute)); len(got) != 1 {
		t.Fatalf("at +23h59m got %d stories, want 1", len(got))
	}
	// not purged yet, still hidden
	if got := m.ListActive(1, t0.Add(24*time.Hour+time.Minute)); len(got) != 0 {
		t.Fatalf("at +24h01m got %d stories, want 0", len(got))
	}
	if got := m.ListActive(1, t0.Add(24*time.Hour)); len(got) != 0 {
		t.Fatal("story visible at exactly expires_at")
	}

	if n := m.PurgeExpired(t0.Add(24*time.Hour + time.Minute)); n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
}

func TestCreateValidatesLocally(t *testing.T) {
	fake := &fakeAPI{now: t0}
	s := store.New()
	m := New(fake, s, Config{MaxVideoSeconds: 30})

	_, err := m.Create(context.Background(), api.StoryContent{Type: "gif", Data: "x"})
	if !errors.Is(err, ErrInvalidMediaType) {
		t.Fatalf("err = %v", err)
	}
	_, err = m.Create(context.Background(), api.StoryContent{Type: api.MediaVideo, Data: "x", DurationSeconds: 31})
	if !errors.Is(err, ErrUnsupportedDuration) {
		t.Fatalf("err = %v", err)
	}
	if fake.creates != 0 {
		t.Fatalf("invalid content reached the server %d times", fake.creates)
	}

	if _, err := m.Create(context.Background(), api.StoryContent{Type: api.MediaVideo, Data: "x", DurationSeconds: 30}); err != nil {
		t.Fatalf("30s video rejected: %v", err)
	}
}

func TestCreateFailureLeavesStoreEmpty(t *testing.T) {
	fake := &fakeAPI{now: t0, createErr: &api.Error{Status: 400, Message: "InvalidMediaType: image or video"}}
	s := store.New()
	m := New(fake, s, Config{})

	if _, err := m.Create(context.Background(), api.StoryContent{Type: api.MediaImage, Data: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if got := s.Stories(nil); len(got) != 0 {
		t.Fatalf("store has %d stories after failed create", len(got))
	}
}

func TestMarkViewedIsIdempotent(t *testing.T) {
	fake := &fakeAPI{byUser: []api.Story{{ID: "s1", UserID: 2, CreatedAt: t0, ExpiresAt: t0.Add(24 * time.Hour)}}}
	s := store.New()
	m := New(fake, s, Config{})
	if err := m.LoadUser(context.Background(), 2); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := m.MarkViewed(context.Background(), "s1", 1); err != nil {
			t.Fatal(err)
		}
	}
	if fake.views != 1 {
		t.Fatalf("view requests = %d, want 1", fake.views)
	}
	if st, _ := s.Story("s1"); !st.HasViewed {
		t.Fatal("story not marked viewed")
	}
}

func TestMarkViewedKeepsFlagOnFailure(t *testing.T) {
	fake := &fakeAPI{
		viewErr: errors.New("offline"),
		byUser:  []api.Story{{ID: "s1", UserID: 2, ExpiresAt: t0.Add(time.Hour)}},
	}
	s := store.New()
	m := New(fake, s, Config{})
	_ = m.LoadUser(context.Background(), 2)

	if err := m.MarkViewed(context.Background(), "s1", 1); err == nil {
		t.Fatal("expected error")
	}
	if st, _ := s.Story("s1"); !st.HasViewed {
		t.Fatal("view rolled back")
	}
}

func TestGroupByOwner(t *testing.T) {
	list := []api.Story{
		{ID: "b2", UserID: 2, CreatedAt: t0.Add(2 * time.Hour), HasViewed: true},
		{ID: "a1", UserID: 1, CreatedAt: t0, HasViewed: true},
		{ID: "b1", UserID: 2, CreatedAt: t0.Add(time.Hour)},
	}
	groups := GroupByOwner(list)
	if len(groups) != 2 {
		t.Fatalf("groups = %d", len(groups))
	}
	if groups[0].OwnerID != 2 || groups[0].Stories[0].ID != "b1" || groups[0].Stories[1].ID != "b2" {
		t.Fatalf("group 0 = %+v", groups[0])
	}
	if !groups[0].HasUnviewed {
		t.Fatal("group 0 should have unviewed")
	}
	if groups[1].HasUnviewed {
		t.Fatal("group 1 is fully viewed")
	}
}

func TestLoadAndTray(t *testing.T) {
	fake := &fakeAPI{tray: []api.StoryGroup{
		{User: api.UserCompact{ID: 3}, Stories: []api.Story{
			{ID: "c1", UserID: 3, CreatedAt: t0, ExpiresAt: t0.Add(24 * time.Hour)},
			{ID: "c0", UserID: 3, CreatedAt: t0.Add(-30 * time.Hour), ExpiresAt: t0.Add(-6 * time.Hour)},
		}},
	}}
	m := New(fake, store.New(), Config{})
	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	tray := m.Tray(t0.Add(time.Hour))
	if len(tray) != 1 || len(tray[0].Stories) != 1 || tray[0].Stories[0].ID != "c1" {
		t.Fatalf("tray = %+v", tray)
	}
}
