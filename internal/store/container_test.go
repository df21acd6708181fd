package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/LogicUI/zustand-in-depth/internal/core"
	"github.com/LogicUI/zustand-in-depth/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}

	comments []core.Comment
	err      error
}

func (f *stubFetcher) FetchComments(ctx context.Context) ([]core.Comment, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.comments, f.err
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testComments(n int) []core.Comment {
	cs := make([]core.Comment, 0, n)
	for i := 1; i <= n; i++ {
		cs = append(cs, core.Comment{
			PostID: 1, ID: i,
			Name: "simon", Email: "simon@example.com", Body: "hello",
		})
	}
	return cs
}

func newTestContainer(t *testing.T, f store.CommentsFetcher) *store.Container {
	t.Helper()
	if f == nil {
		f = &stubFetcher{}
	}
	c, err := store.NewContainer(&store.ContainerOptions{Fetcher: f})
	require.NoError(t, err)
	return c
}

// watchAction must be wired before the action is triggered.
func watchAction(c *store.Container, action string) <-chan core.State {
	ch := make(chan core.State, 8)
	c.Subscribe(func(a string, s core.State) {
		if a == action {
			ch <- s
		}
	})
	return ch
}

func waitState(t *testing.T, ch <-chan core.State) core.State {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for action")
		return core.State{}
	}
}

func TestNewContainerRequiresFetcher(t *testing.T) {
	t.Parallel()
	_, err := store.NewContainer(&store.ContainerOptions{})
	require.Error(t, err)
}

func TestCounterActionsArithmetic(t *testing.T) {
	t.Parallel()
	c := newTestContainer(t, nil)
	c.SetHydrated()

	c.Increment()
	c.Increment()
	c.Increment()
	c.Decrement()
	c.IncrementBy(10)
	c.IncrementBy(-2)
	require.Equal(t, int64(10), c.Snapshot().Count)

	c.ResetCounter()
	require.Equal(t, int64(0), c.Snapshot().Count)

	c.IncrementBy(5)
	require.Equal(t, int64(5), c.Snapshot().Count)
}

func TestSetHydratedIdempotent(t *testing.T) {
	t.Parallel()
	c := newTestContainer(t, nil)

	var mu sync.Mutex
	hydrations := 0
	c.Subscribe(func(a string, _ core.State) {
		if a == store.ActionSetHydrated {
			mu.Lock()
			hydrations++
			mu.Unlock()
		}
	})

	c.SetHydrated()
	c.SetHydrated()
	c.SetHydrated()

	require.True(t, c.IsHydrated())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, hydrations)
}

func TestClearCommentsIdempotent(t *testing.T) {
	t.Parallel()
	f := &stubFetcher{comments: testComments(3)}
	c := newTestContainer(t, f)
	c.SetHydrated()

	done := watchAction(c, store.ActionFetchSucceeded)
	c.FetchComments(context.Background())
	waitState(t, done)

	c.ClearComments()
	once := c.Snapshot()
	c.ClearComments()
	twice := c.Snapshot()

	require.Empty(t, once.Comments)
	require.Empty(t, once.Error)
	require.Equal(t, once, twice)
}

func TestFetchCommentsSuccess(t *testing.T) {
	t.Parallel()
	f := &stubFetcher{comments: testComments(10)}
	c := newTestContainer(t, f)
	c.SetHydrated()

	done := watchAction(c, store.ActionFetchSucceeded)
	c.FetchComments(context.Background())

	got := waitState(t, done)
	require.False(t, got.Loading)
	require.Empty(t, got.Error)
	require.Len(t, got.Comments, 10)
}

func TestFetchCommentsFailureKeepsComments(t *testing.T) {
	t.Parallel()
	f := &stubFetcher{comments: testComments(3)}
	c := newTestContainer(t, f)
	c.SetHydrated()

	done := watchAction(c, store.ActionFetchSucceeded)
	c.FetchComments(context.Background())
	waitState(t, done)

	f.mu.Lock()
	f.comments = nil
	f.err = errors.New("Network down")
	f.mu.Unlock()

	failed := watchAction(c, store.ActionFetchFailed)
	c.FetchComments(context.Background())

	got := waitState(t, failed)
	require.False(t, got.Loading)
	require.Equal(t, "Network down", got.Error)
	require.Len(t, got.Comments, 3)
}

func TestFetchClearsPreviousError(t *testing.T) {
	t.Parallel()
	f := &stubFetcher{err: errors.New("Network down")}
	c := newTestContainer(t, f)
	c.SetHydrated()

	failed := watchAction(c, store.ActionFetchFailed)
	c.FetchComments(context.Background())
	waitState(t, failed)
	require.Equal(t, "Network down", c.Snapshot().Error)

	f.mu.Lock()
	f.err = nil
	f.comments = testComments(2)
	f.mu.Unlock()

	started := watchAction(c, store.ActionFetchStarted)
	done := watchAction(c, store.ActionFetchSucceeded)
	c.FetchComments(context.Background())

	// error is cleared optimistically, before the fetch settles
	require.Empty(t, waitState(t, started).Error)
	require.Empty(t, waitState(t, done).Error)
}

func TestFetchSkippedWhileLoading(t *testing.T) {
	t.Parallel()
	f := &stubFetcher{
		comments: testComments(1),
		release:  make(chan struct{}),
	}
	c := newTestContainer(t, f)
	c.SetHydrated()

	done := watchAction(c, store.ActionFetchSucceeded)
	c.FetchComments(context.Background())
	c.FetchComments(context.Background())
	c.FetchComments(context.Background())

	close(f.release)
	waitState(t, done)

	require.Equal(t, 1, f.Calls())
}

func TestActionsQueueUntilRestoreCompletes(t *testing.T) {
	t.Parallel()
	c := newTestContainer(t, nil)

	var mu sync.Mutex
	actions := []string{}
	c.Subscribe(func(a string, _ core.State) {
		mu.Lock()
		actions = append(actions, a)
		mu.Unlock()
	})

	c.Increment()
	c.Increment()
	require.Equal(t, int64(0), c.Snapshot().Count, "queued actions must not touch pre-restore state")

	c.CompleteRestore(func(s *core.State) {
		s.Count = 40
	})

	require.Equal(t, int64(42), c.Snapshot().Count)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		store.ActionSetHydrated,
		store.ActionIncrement,
		store.ActionIncrement,
	}, actions)
}

func TestResetAllDiscardsInFlightFetch(t *testing.T) {
	t.Parallel()
	f := &stubFetcher{
		comments: testComments(5),
		release:  make(chan struct{}),
	}
	c := newTestContainer(t, f)
	c.SetHydrated()
	c.IncrementBy(9)

	c.FetchComments(context.Background())
	c.ResetAll()
	close(f.release)

	// give the stale completion a chance to land (it must be discarded)
	require.Eventually(t, func() bool {
		return f.Calls() == 1
	}, 3*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	got := c.Snapshot()
	require.Equal(t, int64(0), got.Count)
	require.Empty(t, got.Comments)
	require.False(t, got.Loading)
	require.Empty(t, got.Error)
	require.True(t, got.IsHydrated, "ResetAll must not reset hydration")
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	t.Parallel()
	c := newTestContainer(t, nil)
	c.SetHydrated()

	var mu sync.Mutex
	seen := 0
	cancel := c.Subscribe(func(string, core.State) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	c.Increment()
	cancel()
	c.Increment()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, seen)
}
