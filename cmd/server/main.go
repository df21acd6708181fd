package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/LogicUI/zustand-in-depth/internal/api"
	"github.com/LogicUI/zustand-in-depth/internal/config"
	"github.com/LogicUI/zustand-in-depth/internal/fetch"
	"github.com/LogicUI/zustand-in-depth/internal/hydration"
	"github.com/LogicUI/zustand-in-depth/internal/journal"
	"github.com/LogicUI/zustand-in-depth/internal/persist"
	"github.com/LogicUI/zustand-in-depth/internal/storage"
	"github.com/LogicUI/zustand-in-depth/internal/store"
)

const (
	configAppName = "app"
	configExt     = "env"
	configDir     = "config"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout", "app_log.log"}
	cfg.ErrorOutputPaths = []string{"stderr", "app_log.log"}
	return cfg.Build()
}

func main() {
	zapLogger, err := newLogger()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "can init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	logger := zapLogger.Named("server")

	logger.Info("running server", zap.Int("pid", os.Getpid()))

	cfg, err := readConfig()
	if err != nil || cfg == nil {
		logger.Fatal("cant read config, check file", zap.Error(err), zap.String("name", configAppName))
	}
	gin.SetMode(cfg.GinMode)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal("cant create data dir", zap.Error(err), zap.String("dir", cfg.DataDir))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slot, err := newSlotStore(cfg)
	if err != nil {
		logger.Fatal("cant open durable slot", zap.Error(err), zap.String("mode", cfg.StorageMode))
	}

	var actionLog *journal.FileJournal
	var observer store.Observer
	if cfg.JournalEnabled {
		actionLog, err = journal.NewFileJournal(filepath.Join(cfg.DataDir, "actions.log"))
		if err != nil {
			logger.Fatal("cant open action journal", zap.Error(err))
		}
		observer = journal.NewRecorder(actionLog, logger.Named("journal"))
	}

	client, err := fetch.NewClient(&fetch.ClientOptions{
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		URL:        cfg.CommentsURL,
		UserAgent:  cfg.UserAgent,
		Logger:     logger.Named("fetch"),
	})
	if err != nil {
		logger.Fatal("cant create comments client", zap.Error(err))
	}

	container, err := store.NewContainer(&store.ContainerOptions{
		Fetcher:  client,
		Observer: observer,
		Logger:   logger.Named("store"),
	})
	if err != nil {
		logger.Fatal("cant create state container", zap.Error(err))
	}

	adapter, err := persist.NewAdapter(&persist.AdapterOptions{
		Slot:      slot,
		Container: container,
		Logger:    logger.Named("persist"),
		Debounce:  cfg.PersistDebounce,
	})
	if err != nil {
		logger.Fatal("cant create persistence adapter", zap.Error(err))
	}

	gate, err := hydration.NewGate(&hydration.GateOptions{
		Container: container,
		Logger:    logger.Named("hydration"),
	})
	if err != nil {
		logger.Fatal("cant create hydration gate", zap.Error(err))
	}

	// arm the gate before restore: the first render decision must not
	// know about persisted fields
	gate.Start()
	adapter.Restore(ctx)

	srv, err := api.NewServer(&api.ServerOptions{
		Store:       container,
		Persistence: adapter,
		Gate:        gate,
		Logger:      logger,

		Addr: cfg.ServerAddr,
	})
	if err != nil {
		logger.Fatal("cant create api server", zap.Error(err))
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.ServerAddr))
		if err := srv.Run(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				return
			}
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
	}

	offCtx, offCanc := context.WithTimeout(context.Background(), 30*time.Second)
	defer offCanc()
	if err := srv.Shutdown(offCtx); err != nil {
		logger.Error("cant shutdown server", zap.Error(err))
	}

	flushCtx, flushCanc := context.WithTimeout(context.Background(), cfg.FlushTimeout)
	defer flushCanc()
	if err := adapter.Close(flushCtx); err != nil {
		logger.Error("cant close persistence adapter", zap.Error(err))
	}
	if actionLog != nil {
		if err := actionLog.Close(); err != nil {
			logger.Error("cant close action journal", zap.Error(err))
		}
	}
	logger.Info("shutdown done")
}

func readConfig() (*config.AppConfig, error) {
	return config.LoadAppConfig(configAppName, configExt, configDir)
}

func newSlotStore(cfg *config.AppConfig) (storage.SlotStore, error) {
	switch strings.ToLower(cfg.StorageMode) {
	case "bbolt":
		return storage.NewBoltSlotStore(
			filepath.Join(cfg.DataDir, "state.db"),
			cfg.PersistKey,
		)
	case "file":
		return storage.NewFileSlotStore(
			filepath.Join(cfg.DataDir, "state.json"),
		)
	default:
		return nil, errors.New("unknown storage mode")
	}
}
