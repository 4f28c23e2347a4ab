package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ytcomments/internal/config"
	"ytcomments/internal/extraction"
	"ytcomments/internal/modeling"
	"ytcomments/internal/server"
	"ytcomments/internal/storage"
	"ytcomments/internal/youtube"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	flag.StringVar(&cfg.Host, "host", cfg.Host, "listen host")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "extraction artifact directory")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	files, err := storage.NewFileStore(log, cfg.DataDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *storage.ResultStore
	if cfg.DatabaseURL != "" {
		db, err = storage.NewResultStore(ctx, log, cfg.DatabaseURL)
		if err != nil {
			log.Warn("result store unavailable, running memory-only", "err", err)
			db = nil
		} else {
			defer db.Close()
		}
	}
	cache := storage.NewSnapshotCache(ctx, log, cfg.RedisAddr, config.JobSnapshotTTL)
	defer cache.Close()

	client := youtube.NewClient(log, cfg.YTDLPPath, cfg.CookiesFile, config.FetchesPerSecond)

	ext := extraction.NewService(log, client, client, files, extraction.Options{
		DefaultWorkers: cfg.DefaultWorkers,
		MaxWorkers:     cfg.MaxWorkers,
		QueueCapacity:  config.ExtractionQueueCapacity,
	})
	ext.Start()

	var persister modeling.ResultPersister
	if db != nil {
		persister = db
	}
	mod := modeling.NewService(log, files, persister, cache, modeling.Options{
		QueueCapacity: config.ModelingQueueCapacity,
	})
	mod.Start()

	app := server.NewApp(log, ext, mod, client, files, db, cache, cfg.DefaultWorkers, cfg.MaxWorkers)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           app.Router(config.RequestsPerSecond, config.BurstSize),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "data_dir", cfg.DataDir,
			"default_workers", cfg.DefaultWorkers, "max_workers", cfg.MaxWorkers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}

	// An active extraction honors the stop flag; queued jobs drain first.
	ext.RequestStop()
	ext.Shutdown()
	mod.Shutdown()
	log.Info("bye")
	return nil
}
