package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LogicUI/zustand-in-depth/internal/core"
)

// stateView is the journaled shape of a state snapshot.
type stateView struct {
	Count    int64          `json:"count"`
	Comments []core.Comment `json:"comments"`
	Loading  bool           `json:"loading"`
	Error    string         `json:"error,omitempty"`
	Hydrated bool           `json:"hydrated"`
}

// Recorder writes every observed action to an append-only journal.
// It is a pure observer: append failures are logged and swallowed, the
// store never learns about them.
type Recorder struct {
	log    AppendOnlyLog
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(log AppendOnlyLog, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		log:    log,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Recorder) ObserveAction(action string, s core.State) {
	if r.log == nil {
		return
	}
	state, err := json.Marshal(stateView{
		Count:    s.Count,
		Comments: s.Comments,
		Loading:  s.Loading,
		Error:    s.Error,
		Hydrated: s.IsHydrated,
	})
	if err != nil {
		r.logger.Warn("journal: encode state", zap.Error(err))
		return
	}
	e := Entry{
		Version:   EntryVersion,
		ID:        uuid.NewString(),
		Action:    action,
		CreatedAt: r.now().UTC(),
		State:     state,
	}
	if err := r.log.Append(context.Background(), e); err != nil {
		r.logger.Warn("journal: append entry",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
