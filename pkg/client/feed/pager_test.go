package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
)

type item struct {
	ID  string
	Rev int
}

func key(i item) string { return i.ID }

// pages serves canned pages by number
func pages(m map[int][]item, calls *[]int) Fetcher[item] {
	return func(ctx context.Context, page, limit int) (api.Page[item], error) {
		*calls = append(*calls, page)
		items := m[page]
		return api.Page[item]{Items: items, HasMore: len(items) == limit}, nil
	}
}

func ids(prefix string, from, to, rev int) []item {
	var out []item
	for i := from; i <= to; i++ {
		out = append(out, item{ID: fmt.Sprintf("%s%d", prefix, i), Rev: rev})
	}
	return out
}

func TestFetchPageDedupesOverlap(t *testing.T) {
	// page 2 repeats the last two ids of page 1, as happens when new posts
	// shift the server's offsets between requests
	second := append(ids("p", 19, 20, 2), ids("p", 21, 23, 2)...)
	var calls []int
	p := New(Config[item]{Fetch: pages(map[int][]item{1: ids("p", 1, 20, 1), 2: second}, &calls), Key: key, Limit: 20})

	if err := p.FetchPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !p.HasMore() {
		t.Fatal("full first page should leave HasMore set")
	}
	if err := p.FetchPage(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := p.Items()
	if len(got) != 23 {
		t.Fatalf("len = %d, want 23", len(got))
	}
	if p.HasMore() {
		t.Fatal("short page should clear HasMore")
	}
	seen := map[string]bool{}
	for _, it := range got {
		if seen[it.ID] {
			t.Fatalf("duplicate id %s", it.ID)
		}
		seen[it.ID] = true
	}
	// replaced in place with the newest value
	if got[18].ID != "p19" || got[18].Rev != 2 || got[19].Rev != 2 {
		t.Fatalf("overlap not replaced in place: %+v %+v", got[18], got[19])
	}
	if got[22].ID != "p23" {
		t.Fatalf("last = %s", got[22].ID)
	}
}

func TestHasMoreIsSticky(t *testing.T) {
	var calls []int
	p := New(Config[item]{Fetch: pages(map[int][]item{1: ids("p", 1, 3, 1)}, &calls), Key: key, Limit: 5})
	for i := 0; i < 3; i++ {
		if err := p.FetchPage(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(calls) != 1 {
		t.Fatalf("fetched %d times after end, want 1", len(calls))
	}
}

func TestRefreshReplacesOnNextFetch(t *testing.T) {
	var calls []int
	data := map[int][]item{1: ids("p", 1, 2, 1), 2: ids("p", 3, 3, 1)}
	p := New(Config[item]{Fetch: pages(data, &calls), Key: key, Limit: 2})
	_ = p.FetchPage(context.Background())
	_ = p.FetchPage(context.Background())
	if p.Len() != 3 {
		t.Fatalf("len = %d", p.Len())
	}

	p.Refresh()
	if p.Len() != 3 {
		t.Fatal("refresh cleared items before the fetch")
	}
	if !p.HasMore() || p.NextPage() != 1 {
		t.Fatal("refresh did not rewind")
	}

	data[1] = []item{{ID: "new", Rev: 1}, {ID: "p1", Rev: 2}}
	if err := p.FetchPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := p.Items()
	if len(got) != 2 || got[0].ID != "new" || got[1].Rev != 2 {
		t.Fatalf("after refresh = %+v", got)
	}
}

func TestFailedFetchKeepsState(t *testing.T) {
	fail := false
	p := New(Config[item]{
		Key:   key,
		Limit: 2,
		Fetch: func(ctx context.Context, page, limit int) (api.Page[item], error) {
			if fail {
				return api.Page[item]{}, errors.New("offline")
			}
			return api.Page[item]{Items: ids("p", 1, 2, 1), HasMore: true}, nil
		},
	})
	_ = p.FetchPage(context.Background())
	p.Refresh()
	fail = true
	if err := p.FetchPage(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if p.Len() != 2 || p.NextPage() != 1 {
		t.Fatalf("failed fetch changed state: len=%d next=%d", p.Len(), p.NextPage())
	}
}

func TestFetchAfterConcurrentRefreshIsDropped(t *testing.T) {
	var p *Pager[item]
	p = New(Config[item]{
		Key:   key,
		Limit: 2,
		Fetch: func(ctx context.Context, page, limit int) (api.Page[item], error) {
			// a refresh lands while this request is out
			p.Refresh()
			return api.Page[item]{Items: ids("stale", 1, 2, 1), HasMore: true}, nil
		},
	})
	if err := p.FetchPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.Len() != 0 {
		t.Fatalf("stale page merged: %+v", p.Items())
	}
}

func TestPrependAndSink(t *testing.T) {
	var sunk [][]item
	var calls []int
	p := New(Config[item]{
		Fetch: pages(map[int][]item{1: ids("n", 1, 2, 1)}, &calls),
		Key:   key,
		Limit: 5,
		Sink:  func(batch []item) { sunk = append(sunk, batch) },
	})
	_ = p.FetchPage(context.Background())
	p.Prepend(item{ID: "n9", Rev: 1}, item{ID: "n1", Rev: 3}, item{ID: "n9", Rev: 1})

	got := p.Items()
	if len(got) != 3 || got[0].ID != "n9" || got[1].ID != "n1" || got[1].Rev != 3 {
		t.Fatalf("items = %+v", got)
	}
	if len(sunk) != 2 {
		t.Fatalf("sink called %d times, want 2", len(sunk))
	}

	if !p.Remove("n1") || p.Remove("n1") {
		t.Fatal("Remove result wrong")
	}
	got = p.Items()
	if len(got) != 2 || got[1].ID != "n2" {
		t.Fatalf("after remove = %+v", got)
	}
	p.Prepend(item{ID: "n2", Rev: 7})
	if got := p.Items(); got[1].Rev != 7 {
		t.Fatalf("index stale after remove: %+v", got)
	}
}
