package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LogicUI/zustand-in-depth/internal/core"
	"github.com/LogicUI/zustand-in-depth/internal/store"
)

// stateStore is the slice of the container the handlers need.
type stateStore interface {
	Snapshot() core.State
	Increment()
	Decrement()
	IncrementBy(n int64)
	ResetCounter()
	FetchComments(ctx context.Context)
	ClearComments()
	ResetAll()
}

// persistence is the slice of the adapter the handlers need.
type persistence interface {
	Clear(ctx context.Context) error
	WriteFailures() int64
}

type renderGate interface {
	Ready() bool
}

type handler struct {
	store   stateStore
	persist persistence
	gate    renderGate
	logger  *zap.Logger
}

const handlerTimeout = 30 * time.Second

func NewHandler(s stateStore, p persistence, g renderGate, logger *zap.Logger) *handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &handler{store: s, persist: p, gate: g, logger: logger}
}

// getState serves the rendering boundary. Until the gate opens the
// fallback payload goes out instead of persisted fields.
func (h *handler) getState(c *gin.Context) {
	snap := h.store.Snapshot()
	if !h.gate.Ready() {
		c.JSON(http.StatusOK, NewFallbackStateResponse(snap.IsHydrated))
		return
	}
	c.JSON(http.StatusOK, NewStateResponse(snap))
}

func (h *handler) increment(c *gin.Context) {
	SetAction(c, store.ActionIncrement)
	h.store.Increment()
	c.JSON(http.StatusOK, gin.H{"count": h.store.Snapshot().Count})
}

func (h *handler) decrement(c *gin.Context) {
	SetAction(c, store.ActionDecrement)
	h.store.Decrement()
	c.JSON(http.StatusOK, gin.H{"count": h.store.Snapshot().Count})
}

func (h *handler) incrementBy(c *gin.Context) {
	SetAction(c, store.ActionIncrementBy)
	req := IncrementByRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, core.NewValidationError("n is required", err, "api.handler.incrementBy"))
		return
	}
	h.store.IncrementBy(*req.N)
	c.JSON(http.StatusOK, gin.H{"count": h.store.Snapshot().Count})
}

func (h *handler) resetCounter(c *gin.Context) {
	SetAction(c, store.ActionResetCounter)
	h.store.ResetCounter()
	c.JSON(http.StatusOK, gin.H{"count": h.store.Snapshot().Count})
}

// fetchComments only triggers the fetch; the result lands in the state
// and is visible through getState once the fetch settles.
func (h *handler) fetchComments(c *gin.Context) {
	SetAction(c, store.ActionFetchStarted)
	// the fetch outlives this request; the http client's own timeout
	// bounds it
	h.store.FetchComments(context.Background())
	h.logger.Info("comments fetch triggered",
		zap.String("reqid", GetRequestID(c)),
	)
	c.JSON(http.StatusAccepted, gin.H{"status": "fetch started"})
}

func (h *handler) clearComments(c *gin.Context) {
	SetAction(c, store.ActionClearComments)
	h.store.ClearComments()
	c.Status(http.StatusNoContent)
}

// resetEverything is the single user-facing control that resets the
// in-memory state and wipes the durable slot.
func (h *handler) resetEverything(c *gin.Context) {
	SetAction(c, store.ActionResetAll)
	h.store.ResetAll()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := h.persist.Clear(ctx); err != nil {
		// persistence failures stay out of the user-visible error path
		h.logger.Warn("clear durable slot failed",
			zap.String("reqid", GetRequestID(c)),
			zap.Error(err),
		)
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, &HealthResponse{
		Status:               "ok",
		PersistWriteFailures: h.persist.WriteFailures(),
	})
}

func (h *handler) errorResponse(c *gin.Context, err error) {
	if c != nil && err != nil {
		c.Error(err) //nolint:errcheck
	}
	if err == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
		return
	}

	if appErr, ok := core.AsAppError(err); ok {
		s := appErr.HTTPStatus()
		p := gin.H{
			"error": appErr.PublicMessage(),
			"code":  appErr.Code,
		}
		if appErr.SafeToShow {
			switch {
			case appErr.Err != nil:
				p["details"] = appErr.Err.Error()
			case appErr.Message != "":
				p["details"] = appErr.Message
			}
		}
		h.logger.Warn("handler error",
			zap.String("reqid", GetRequestID(c)),
			zap.String("action", GetAction(c)),
			zap.String("error", err.Error()),
		)
		c.AbortWithStatusJSON(s, p)
		return
	}

	h.logger.Error("handler unknown error",
		zap.String("reqid", GetRequestID(c)),
		zap.String("action", GetAction(c)),
		zap.String("error", err.Error()),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
	})
}
