package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrNoStore = errors.New("state store is required")
var ErrNoPersistence = errors.New("persistence is required")
var ErrNoGate = errors.New("hydration gate is required")

type Server struct {
	router *gin.Engine

	httpSrv *http.Server
}

type ServerOptions struct {
	Store       stateStore
	Persistence persistence
	Gate        renderGate
	Logger      *zap.Logger
	Addr        string
}

func NewServer(opts *ServerOptions) (*Server, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Persistence == nil {
		return nil, ErrNoPersistence
	}
	if opts.Gate == nil {
		return nil, ErrNoGate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(
		RecoveryMiddleware(opts.Logger),
		RequestIDMiddleware(),
		LoggingMiddleware(opts.Logger),
	)

	h := NewHandler(opts.Store, opts.Persistence, opts.Gate, opts.Logger)
	setupRouter(router, h)

	return &Server{
		router: router,
		httpSrv: &http.Server{
			Addr:    opts.Addr,
			Handler: router,
		}}, nil
}

func (s *Server) Run() error {
	return s.httpSrv.ListenAndServe()
}
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) Router() http.Handler {
	return s.router
}

func setupRouter(router *gin.Engine, h *handler) {
	group := router.Group("/")
	group.GET("/state", h.getState)

	group.POST("/counter/increment", h.increment)
	group.POST("/counter/decrement", h.decrement)
	group.POST("/counter/increment-by", h.incrementBy)
	group.POST("/counter/reset", h.resetCounter)

	group.POST("/comments/fetch", h.fetchComments)
	group.DELETE("/comments", h.clearComments)

	group.POST("/reset", h.resetEverything)

	group.GET("/healthz", h.healthz)
}
