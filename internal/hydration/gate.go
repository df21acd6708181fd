package hydration

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/LogicUI/zustand-in-depth/internal/core"
	"github.com/LogicUI/zustand-in-depth/internal/store"
)

// Scheduler defers fn to a later tick of the event loop. Injectable so
// tests can drive the tick by hand.
type Scheduler func(fn func())

// Gate guards rendering on restored state. Ready is false until the
// container reports hydration AND one scheduler tick has elapsed since
// Start. The tick is deliberate: the first paint must match what was
// rendered without knowledge of persisted fields, even when restore
// finished synchronously before the gate came up. Once true, Ready
// stays true for the rest of the session.
type Gate struct {
	container *store.Container
	scheduler Scheduler
	logger    *zap.Logger

	started   atomic.Bool
	confirmed atomic.Bool
	ready     atomic.Bool

	readyCh   chan struct{}
	closeOnce sync.Once
}

type GateOptions struct {
	Container *store.Container `validate:"required"`
	Scheduler Scheduler
	Logger    *zap.Logger
}

func NewGate(opts *GateOptions) (*Gate, error) {
	if opts == nil {
		return nil, core.NewInternalError("gate options required", nil, "hydration.NewGate")
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, err
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = func(fn func()) { go fn() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		container: opts.Container,
		scheduler: scheduler,
		logger:    logger,
		readyCh:   make(chan struct{}),
	}, nil
}

// Start arms the gate. Ready stays false until the deferred tick runs.
// Calling Start again is a no-op.
func (g *Gate) Start() {
	if !g.started.CompareAndSwap(false, true) {
		return
	}
	g.container.Subscribe(func(string, core.State) {
		g.evaluate()
	})
	g.scheduler(func() {
		g.confirmed.Store(true)
		g.evaluate()
	})
}

// Ready reports whether rendering code may show persisted state.
func (g *Gate) Ready() bool {
	return g.ready.Load()
}

// WaitReady blocks until the gate opens or ctx is done.
func (g *Gate) WaitReady(ctx context.Context) error {
	select {
	case <-g.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) evaluate() {
	if !g.confirmed.Load() {
		return
	}
	if !g.container.IsHydrated() {
		return
	}
	if g.ready.CompareAndSwap(false, true) {
		g.closeOnce.Do(func() { close(g.readyCh) })
		g.logger.Debug("hydration gate open")
	}
}

// Choose returns real once the gate is open, fallback before that.
func Choose[T any](g *Gate, real, fallback T) T {
	if g.Ready() {
		return real
	}
	return fallback
}
