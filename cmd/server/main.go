// Command server wires the orchestrator together: config, logging,
// the sqlite store, the optional Redis event bus, crash recovery, the
// scheduler, and the HTTP API — then serves until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"taskorch/internal/api"
	"taskorch/internal/config"
	"taskorch/internal/events"
	"taskorch/internal/logging"
	"taskorch/internal/ports"
	"taskorch/internal/recovery"
	"taskorch/internal/runner"
	"taskorch/internal/scheduler"
	"taskorch/internal/store"
	"taskorch/internal/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Infow("starting taskorch",
		"port", cfg.Port,
		"max_concurrent_tasks", cfg.MaxConcurrentTasks,
		"db_path", cfg.DBPath,
	)

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var eventBus ports.EventPublisher = events.NewNoop()
	if cfg.RedisAddr != "" {
		rp, err := events.NewRedisPublisher(cfg.RedisAddr, log)
		if err != nil {
			log.Warnw("failed to connect to redis event bus, falling back to noop", "error", err)
		} else {
			eventBus = rp
			log.Infow("connected to redis event bus", "addr", cfg.RedisAddr)
		}
	}
	defer eventBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recovery runs once, before the scheduler's first tick (§4.4).
	if err := recovery.Run(ctx, st, log); err != nil {
		return fmt.Errorf("recovery: %w", err)
	}

	sched := scheduler.New(st, runner.NewSleepRunner(), eventBus, log, scheduler.Config{
		MaxConcurrent: cfg.MaxConcurrentTasks,
		PollInterval:  cfg.PollInterval,
	}, func(err error) {
		log.Errorw("store fatal error observed, cancelling context to begin shutdown", "error", err)
		cancel()
	})
	go sched.Run(ctx)

	v := validator.New(st)
	router := api.NewRouter(st, v, sched, eventBus, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	select {
	case <-sigCtx.Done():
		log.Info("received shutdown signal")
	case <-ctx.Done():
		log.Warn("shutting down due to store-fatal error")
	case err := <-serveErr:
		if err != nil {
			log.Errorw("http server failed", "error", err)
		}
	}

	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http server shutdown did not complete cleanly", "error", err)
	}

	if !sched.AwaitDrain(shutdownCtx) {
		log.Warn("shutdown timeout elapsed with runners still in flight, exiting")
	}

	log.Info("shutdown complete")
	return nil
}
