package persist

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/LogicUI/zustand-in-depth/internal/core"
	"github.com/LogicUI/zustand-in-depth/internal/storage"
	"github.com/LogicUI/zustand-in-depth/internal/store"
)

// CurrentVersion is the schema version written to the durable slot.
// Bumping it requires registering a migration from the previous version.
const CurrentVersion = 2

const DefaultDebounce = 50 * time.Millisecond

// Snapshot is the durable projection of the container state. A strict
// subset: loading, error and hydration state never reach the slot.
type Snapshot struct {
	Count    int64          `json:"count"`
	Comments []core.Comment `json:"comments"`
}

type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

type writeEnvelope struct {
	Version int      `json:"version"`
	State   Snapshot `json:"state"`
}

// Adapter wraps a Container with durable persistence. Restore runs once
// at startup, before the container serves user actions; afterwards the
// adapter follows container updates and writes the projection out of
// band, so an action's visibility never waits on storage.
//
// Every persistence failure is absorbed here: logged, counted, and never
// surfaced through the container's error field.
type Adapter struct {
	slot      storage.SlotStore
	container *store.Container
	logger    *zap.Logger
	debounce  time.Duration

	writeFailures atomic.Int64

	kick        chan struct{}
	stop        chan struct{}
	wg          sync.WaitGroup
	unsubscribe func()
	closeOnce   sync.Once
}

type AdapterOptions struct {
	Slot      storage.SlotStore `validate:"required"`
	Container *store.Container  `validate:"required"`
	Logger    *zap.Logger
	// Debounce is how long the writer waits after an update before
	// persisting, coalescing bursts. Zero means DefaultDebounce.
	Debounce time.Duration
}

func NewAdapter(opts *AdapterOptions) (*Adapter, error) {
	if opts == nil {
		return nil, core.NewInternalError("adapter options required", nil, "persist.NewAdapter")
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Adapter{
		slot:      opts.Slot,
		container: opts.Container,
		logger:    logger,
		debounce:  debounce,
		kick:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}, nil
}

// Restore runs the startup restore cycle: read the slot, deserialize,
// migrate, merge into the container, signal hydration complete, then
// start following updates. Corrupt or unmigratable slots are discarded
// and the container proceeds with defaults; Restore never fails.
func (a *Adapter) Restore(ctx context.Context) {
	snap := a.loadSnapshot(ctx)

	// follow updates before hydration completes: actions queued during
	// restore replay inside CompleteRestore and must reach the writer
	a.unsubscribe = a.container.Subscribe(func(string, core.State) {
		select {
		case a.kick <- struct{}{}:
		default:
		}
	})
	a.wg.Add(1)
	go a.writeLoop()

	a.container.CompleteRestore(func(s *core.State) {
		if snap == nil {
			return
		}
		s.Count = snap.Count
		s.Comments = core.CloneComments(snap.Comments)
	})
}

func (a *Adapter) loadSnapshot(ctx context.Context) *Snapshot {
	raw, err := a.slot.Load(ctx)
	if err != nil {
		a.logger.Warn("cant read durable slot, using defaults", zap.Error(err))
		return nil
	}
	if raw == nil {
		return nil
	}

	env := envelope{}
	if err := json.Unmarshal(raw, &env); err != nil {
		appErr := core.NewDeserializationError("malformed durable slot", err, "persist.Adapter.loadSnapshot")
		a.logger.Warn("discarding durable slot", zap.Error(appErr))
		return nil
	}
	if env.Version > CurrentVersion {
		a.logger.Warn("durable slot written by a newer version, discarding",
			zap.Int("slot_version", env.Version),
			zap.Int("current_version", CurrentVersion),
		)
		return nil
	}

	state := env.State
	for v := env.Version; v < CurrentVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			appErr := core.NewMigrationError("no migration path", "persist.Adapter.loadSnapshot")
			a.logger.Warn("discarding durable slot",
				zap.Int("from_version", v),
				zap.Error(appErr),
			)
			return nil
		}
		next, err := step(state)
		if err != nil {
			a.logger.Warn("migration step failed, discarding durable slot",
				zap.Int("from_version", v),
				zap.Error(err),
			)
			return nil
		}
		state = next
	}

	snap := Snapshot{}
	if err := json.Unmarshal(state, &snap); err != nil {
		appErr := core.NewDeserializationError("malformed persisted state", err, "persist.Adapter.loadSnapshot")
		a.logger.Warn("discarding durable slot", zap.Error(appErr))
		return nil
	}
	return &snap
}

func (a *Adapter) writeLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		case <-a.kick:
			t := time.NewTimer(a.debounce)
			select {
			case <-t.C:
			case <-a.stop:
				t.Stop()
				// final state is flushed by Close
				return
			}
			// coalesce updates that arrived while waiting
			select {
			case <-a.kick:
			default:
			}
			a.persist(context.Background())
		}
	}
}

func (a *Adapter) persist(ctx context.Context) {
	if err := a.Flush(ctx); err != nil {
		a.logger.Warn("durable slot write failed", zap.Error(err))
	}
}

// Flush writes the current projection synchronously. Used by the writer
// loop, at shutdown, and by anything that cannot wait for the debounce.
func (a *Adapter) Flush(ctx context.Context) error {
	s := a.container.Snapshot()
	data, err := json.Marshal(writeEnvelope{
		Version: CurrentVersion,
		State: Snapshot{
			Count:    s.Count,
			Comments: core.CloneComments(s.Comments),
		},
	})
	if err != nil {
		a.writeFailures.Inc()
		return core.NewInternalError("encode persisted state", err, "persist.Adapter.Flush")
	}
	if err := a.slot.Save(ctx, data); err != nil {
		a.writeFailures.Inc()
		return core.NewStorageWriteError("save durable slot", err, "persist.Adapter.Flush")
	}
	return nil
}

// Clear removes the durable slot. Part of the user-facing reset control.
func (a *Adapter) Clear(ctx context.Context) error {
	if err := a.slot.Clear(ctx); err != nil {
		return core.NewStorageWriteError("clear durable slot", err, "persist.Adapter.Clear")
	}
	return nil
}

// WriteFailures reports how many slot writes have failed since startup.
func (a *Adapter) WriteFailures() int64 {
	return a.writeFailures.Load()
}

// Close stops the writer, flushes the final state and closes the slot.
func (a *Adapter) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		close(a.stop)
		a.wg.Wait()
		err = multierr.Append(err, a.Flush(ctx))
		err = multierr.Append(err, a.slot.Close())
	})
	return err
}
