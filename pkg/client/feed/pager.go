// Package feed merges paginated server lists into one ordered, deduplicated
// sequence.
package feed

import (
	"context"
	"sync"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
)

const DefaultLimit = 10

// Fetcher loads one 1-based page
type Fetcher[T any] func(ctx context.Context, page, limit int) (api.Page[T], error)

type Config[T any] struct {
	Fetch Fetcher[T]
	// Key returns the identity used for deduplication
	Key   func(T) string
	Limit int
	// Sink, when set, receives every fetched or prepended batch, typically
	// to upsert it into the client store.
	Sink func([]T)
}

type Pager[T any] struct {
	fetch Fetcher[T]
	key   func(T) string
	limit int
	sink  func([]T)

	fetchMu sync.Mutex

	mu      sync.RWMutex
	items   []T
	index   map[string]int
	next    int
	hasMore bool
	replace bool
	gen     uint64
}

func New[T any](cfg Config[T]) *Pager[T] {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Pager[T]{
		fetch:   cfg.Fetch,
		key:     cfg.Key,
		limit:   cfg.Limit,
		sink:    cfg.Sink,
		index:   make(map[string]int),
		next:    1,
		hasMore: true,
	}
}

// FetchPage loads the next page and merges it. Items whose key is already
// present are replaced in place, the rest are appended. It is a no-op once
// HasMore is false. A result that lands after a Refresh it did not see is
// dropped.
func (p *Pager[T]) FetchPage(ctx context.Context) error {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	p.mu.RLock()
	page, gen, more := p.next, p.gen, p.hasMore
	p.mu.RUnlock()
	if !more {
		return nil
	}

	res, err := p.fetch(ctx, page, p.limit)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return nil
	}
	if p.replace {
		p.items = nil
		p.index = make(map[string]int)
		p.replace = false
	}
	for _, item := range res.Items {
		p.put(item)
	}
	p.next = page + 1
	p.hasMore = res.HasMore && len(res.Items) >= p.limit
	p.mu.Unlock()

	if p.sink != nil && len(res.Items) > 0 {
		p.sink(res.Items)
	}
	return nil
}

// put must be called with mu held
func (p *Pager[T]) put(item T) {
	k := p.key(item)
	if i, ok := p.index[k]; ok {
		p.items[i] = item
		return
	}
	p.index[k] = len(p.items)
	p.items = append(p.items, item)
}

// Refresh rewinds to page one. The current items stay visible until the
// next successful FetchPage replaces them.
func (p *Pager[T]) Refresh() {
	p.mu.Lock()
	p.next = 1
	p.hasMore = true
	p.replace = true
	p.gen++
	p.mu.Unlock()
}

// Reload is Refresh followed by a fetch of the first page
func (p *Pager[T]) Reload(ctx context.Context) error {
	p.Refresh()
	return p.FetchPage(ctx)
}

// Prepend merges newer items at the front, newest first as given. Known
// keys are replaced in place.
func (p *Pager[T]) Prepend(items ...T) {
	if len(items) == 0 {
		return
	}
	p.mu.Lock()
	fresh := make([]T, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		k := p.key(item)
		if i, ok := p.index[k]; ok {
			p.items[i] = item
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		fresh = append(fresh, item)
	}
	if len(fresh) > 0 {
		p.items = append(fresh, p.items...)
		p.index = make(map[string]int, len(p.items))
		for i, item := range p.items {
			p.index[p.key(item)] = i
		}
	}
	p.mu.Unlock()

	if p.sink != nil {
		p.sink(items)
	}
}

// Remove drops the item with key k, reporting whether it was present
func (p *Pager[T]) Remove(k string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[k]
	if !ok {
		return false
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	delete(p.index, k)
	for j := i; j < len(p.items); j++ {
		p.index[p.key(p.items[j])] = j
	}
	return true
}

func (p *Pager[T]) Items() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

func (p *Pager[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

func (p *Pager[T]) HasMore() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasMore
}

// NextPage is the page the next FetchPage will request
func (p *Pager[T]) NextPage() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.next
}
