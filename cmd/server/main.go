package main

import (
	"community-intelligence-backend/config"
	"community-intelligence-backend/controller"
	"community-intelligence-backend/dao"
	"community-intelligence-backend/router"
	documentstorage "community-intelligence-backend/service/document-storage"
	importjob "community-intelligence-backend/service/import-job"
	"community-intelligence-backend/service/mq"
	"community-intelligence-backend/service/progress"
	"community-intelligence-backend/service/storage"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Cfg
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	gin.SetMode(cfg.Server.Mode)

	if err := run(cfg); err != nil {
		slog.Error("Server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := dao.Init(cfg.MySQL.DSN); err != nil {
		return err
	}

	store, err := storage.NewOSSStore(cfg.OSS)
	if err != nil {
		return err
	}

	progressStore, err := progress.NewRedisStore(cfg.Redis, cfg.Import.ProgressTTL)
	if err != nil {
		return err
	}
	defer progressStore.Close()

	processor := documentstorage.NewProcessor(store, progressStore, cfg.Import.DocumentPrefix).
		LimitExtractedBytes(cfg.Import.MaxExtractedBytes)
	jobs := importjob.NewService(store, progressStore, processor, cfg.Import.ArchivePrefix)
	jobs.SetRunLease(cfg.Import.RunLease)
	controller.Setup(jobs, storage.NewURLResolver(store, cfg.OSS.PresignExpiry))

	if err := mq.Init(cfg.MQ); err != nil {
		return err
	}
	if err := mq.Run(jobs.HandleImportMessage); err != nil {
		return err
	}
	defer mq.Shutdown()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router.Register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server started", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
