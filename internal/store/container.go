package store

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/LogicUI/zustand-in-depth/internal/core"
)

// Action names, as reported to subscribers and the debug observer.
const (
	ActionIncrement      = "counter/increment"
	ActionDecrement      = "counter/decrement"
	ActionIncrementBy    = "counter/increment-by"
	ActionResetCounter   = "counter/reset"
	ActionFetchStarted   = "comments/fetch-started"
	ActionFetchSucceeded = "comments/fetch-succeeded"
	ActionFetchFailed    = "comments/fetch-failed"
	ActionClearComments  = "comments/clear"
	ActionSetHydrated    = "hydration/complete"
	ActionResetAll       = "reset-all"
)

// CommentsFetcher is the remote comment source as the container sees it.
type CommentsFetcher interface {
	FetchComments(ctx context.Context) ([]core.Comment, error)
}

// Observer receives every applied action together with the state snapshot
// it produced. A pure observation point; the container never depends on it.
type Observer interface {
	ObserveAction(action string, state core.State)
}

// Subscriber is notified synchronously after each committed action.
type Subscriber func(action string, state core.State)

// Container holds the application state and its named actions. One
// instance per process; pass it by reference to whatever needs it. All
// actions apply atomically under the container mutex, and subscribers
// observe only fully applied transformations.
//
// Actions dispatched before the restore cycle completes are queued and
// drained, in order, right after the restored fields are merged in.
type Container struct {
	mu    sync.Mutex
	state core.State
	// fetchGen guards fetch completions: a completion whose generation
	// no longer matches is stale and must not touch the state.
	fetchGen uint64
	pending  []func()

	fetcher  CommentsFetcher
	observer Observer
	logger   *zap.Logger

	hydrated atomic.Bool

	subsMu sync.RWMutex
	subs   map[uint64]Subscriber
	nextID uint64
}

type ContainerOptions struct {
	Fetcher  CommentsFetcher `validate:"required"`
	Observer Observer
	Logger   *zap.Logger
}

func NewContainer(opts *ContainerOptions) (*Container, error) {
	if opts == nil {
		return nil, core.NewInternalError("container options required", nil, "store.NewContainer")
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		fetcher:  opts.Fetcher,
		observer: opts.Observer,
		logger:   logger,
		subs:     make(map[uint64]Subscriber),
	}, nil
}

// Snapshot returns a read-only copy of the current state.
func (c *Container) Snapshot() core.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// IsHydrated reports whether the restore cycle has completed.
func (c *Container) IsHydrated() bool {
	return c.hydrated.Load()
}

// Subscribe registers fn for synchronous post-commit notifications.
// The returned func removes the subscription.
func (c *Container) Subscribe(fn Subscriber) func() {
	c.subsMu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Container) Increment() {
	c.dispatch(ActionIncrement, c.Increment, func(s *core.State) {
		s.Count++
	})
}

func (c *Container) Decrement() {
	c.dispatch(ActionDecrement, c.Decrement, func(s *core.State) {
		s.Count--
	})
}

// IncrementBy adds n to the counter. Negative n decrements.
func (c *Container) IncrementBy(n int64) {
	c.dispatch(ActionIncrementBy, func() { c.IncrementBy(n) }, func(s *core.State) {
		s.Count += n
	})
}

func (c *Container) ResetCounter() {
	c.dispatch(ActionResetCounter, c.ResetCounter, func(s *core.State) {
		s.Count = 0
	})
}

// ClearComments drops the comment list and any fetch error.
func (c *Container) ClearComments() {
	c.dispatch(ActionClearComments, c.ClearComments, func(s *core.State) {
		s.Comments = nil
		s.Error = ""
	})
}

// ResetAll restores every field except IsHydrated to its default. An
// in-flight fetch result is discarded when it lands.
func (c *Container) ResetAll() {
	c.dispatch(ActionResetAll, c.ResetAll, func(s *core.State) {
		c.fetchGen++
		s.Count = 0
		s.Comments = nil
		s.Loading = false
		s.Error = ""
	})
}

// SetHydrated marks the restore cycle complete without merging anything.
// Idempotent. Normally invoked through the persistence adapter's
// CompleteRestore; exposed for setups that run without persistence.
func (c *Container) SetHydrated() {
	c.CompleteRestore(nil)
}

// CompleteRestore merges restored fields into the initial state, flips
// IsHydrated (at most once per process) and drains the queued actions.
func (c *Container) CompleteRestore(merge func(*core.State)) {
	c.mu.Lock()
	if c.state.IsHydrated {
		c.mu.Unlock()
		return
	}
	if merge != nil {
		merge(&c.state)
	}
	c.state.IsHydrated = true
	c.hydrated.Store(true)
	pending := c.pending
	c.pending = nil
	snap := c.state.Clone()
	c.mu.Unlock()

	c.notify(ActionSetHydrated, snap)
	for _, redo := range pending {
		redo()
	}
}

// FetchComments runs the fetch state machine: loading is raised and the
// error cleared optimistically, then the fetcher resolves asynchronously.
// A call while a fetch is already in flight is skipped, so there is at
// most one in-flight request.
func (c *Container) FetchComments(ctx context.Context) {
	c.mu.Lock()
	if !c.state.IsHydrated {
		c.pending = append(c.pending, func() { c.FetchComments(ctx) })
		c.mu.Unlock()
		return
	}
	if c.state.Loading {
		c.mu.Unlock()
		c.logger.Debug("fetch already in flight, skipping")
		return
	}
	c.fetchGen++
	gen := c.fetchGen
	c.state.Loading = true
	c.state.Error = ""
	snap := c.state.Clone()
	c.mu.Unlock()

	c.notify(ActionFetchStarted, snap)

	go func() {
		comments, err := c.fetcher.FetchComments(ctx)
		c.finishFetch(gen, comments, err)
	}()
}

func (c *Container) finishFetch(gen uint64, comments []core.Comment, err error) {
	c.mu.Lock()
	if gen != c.fetchGen {
		c.mu.Unlock()
		c.logger.Debug("stale fetch result discarded")
		return
	}
	c.state.Loading = false
	var action string
	if err != nil {
		c.state.Error = err.Error()
		action = ActionFetchFailed
	} else {
		c.state.Comments = core.CloneComments(comments)
		c.state.Error = ""
		action = ActionFetchSucceeded
	}
	snap := c.state.Clone()
	c.mu.Unlock()

	c.notify(action, snap)
}

func (c *Container) dispatch(action string, redo func(), apply func(*core.State)) {
	c.mu.Lock()
	if !c.state.IsHydrated {
		c.pending = append(c.pending, redo)
		c.mu.Unlock()
		return
	}
	apply(&c.state)
	snap := c.state.Clone()
	c.mu.Unlock()

	c.notify(action, snap)
}

func (c *Container) notify(action string, snap core.State) {
	if c.observer != nil {
		c.observer.ObserveAction(action, snap.Clone())
	}

	c.subsMu.RLock()
	subs := make([]Subscriber, 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.RUnlock()

	for _, fn := range subs {
		fn(action, snap.Clone())
	}
}
