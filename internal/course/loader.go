package course

import (
	"context"
	"sync"
	"time"

	"go.elastic.co/apm"
)

var nowFunc = time.Now

// loadTimeout bounds a single course tree fetch
const loadTimeout = 30 * time.Second

// TreeLoader get-or-create cache of course trees. Concurrent callers for the
// same course share one in-flight load; failed loads are forgotten so the
// next caller retries.
type TreeLoader struct {
	repo Repository
	ttl  time.Duration

	mu      sync.Mutex
	entries map[int64]*treeEntry
}

type treeEntry struct {
	done     chan struct{}
	course   *Course
	err      error
	loadedAt time.Time
}

// NewTreeLoader ttl <= 0 keeps trees until Forget is called
func NewTreeLoader(repo Repository, ttl time.Duration) *TreeLoader {
	return &TreeLoader{
		repo:    repo,
		ttl:     ttl,
		entries: make(map[int64]*treeEntry),
	}
}

// Load return the cached tree of courseID, loading it on first use. The load
// itself is detached from ctx, a caller giving up does not fail the others.
func (tl *TreeLoader) Load(ctx context.Context, courseID int64) (*Course, error) {
	tl.mu.Lock()
	entry, ok := tl.entries[courseID]
	if ok && tl.expired(entry) {
		delete(tl.entries, courseID)
		ok = false
	}
	if !ok {
		entry = &treeEntry{done: make(chan struct{})}
		tl.entries[courseID] = entry
		apmSpan, _ := apm.StartSpan(ctx, "TreeLoader.Load", "service")
		go tl.load(apmSpan, courseID, entry)
	}
	tl.mu.Unlock()

	select {
	case <-entry.done:
		return entry.course, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (tl *TreeLoader) load(apmSpan *apm.Span, courseID int64, entry *treeEntry) {
	defer close(entry.done)
	defer apmSpan.End()

	ctx, cancel := context.WithTimeout(apm.ContextWithSpan(context.Background(), apmSpan), loadTimeout)
	defer cancel()
	entry.course, entry.err = tl.repo.GetCourse(ctx, courseID)

	tl.mu.Lock()
	defer tl.mu.Unlock()
	if entry.err != nil {
		if tl.entries[courseID] == entry {
			delete(tl.entries, courseID)
		}
		return
	}
	entry.loadedAt = nowFunc()
}

// Forget drop the cached tree so the next Load fetches it again
func (tl *TreeLoader) Forget(courseID int64) {
	tl.mu.Lock()
	delete(tl.entries, courseID)
	tl.mu.Unlock()
}

// expired must be called with mu held
func (tl *TreeLoader) expired(entry *treeEntry) bool {
	if tl.ttl <= 0 {
		return false
	}
	select {
	case <-entry.done:
	default:
		return false // still loading
	}
	return entry.err == nil && nowFunc().Sub(entry.loadedAt) > tl.ttl
}
