package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lpernett/godotenv"

	"github.com/joseph-ayodele/funeral-audit/internal/async"
	"github.com/joseph-ayodele/funeral-audit/internal/bootstrap"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/dispatch"
	"github.com/joseph-ayodele/funeral-audit/internal/export"
	"github.com/joseph-ayodele/funeral-audit/internal/notify"
	"github.com/joseph-ayodele/funeral-audit/internal/repository"
	"github.com/joseph-ayodele/funeral-audit/internal/server"
)

func main() {
	tokenFor := flag.String("token", "", "print a bearer token for this user id and exit")
	flag.Parse()

	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := bootstrap.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if *tokenFor != "" {
		if cfg.Auth.JWTSecret == "" {
			logger.Error("JWT_SECRET env var is required")
			os.Exit(2)
		}
		tok, err := server.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).Generate(*tokenFor)
		if err != nil {
			logger.Error("failed to sign token", "error", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("funeral-audit stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("funeral-audit stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close(logger)
	if err := repository.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	jobs := repository.NewJobRepository(db, logger)

	files, err := bootstrap.NewStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	queue, err := bootstrap.NewQueue(cfg.Queue, cfg.Worker.Count, logger)
	if err != nil {
		return err
	}
	defer queue.Close()

	hub := notify.NewHub(cfg.Notify.SubscriberBuffer, logger)
	notifier := notify.Fanout{hub}
	if cfg.Notify.AMQPEnabled {
		pub, err := notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifier = append(notifier, pub)
	}

	gen, err := bootstrap.NewGenerator(cfg.LLM, logger)
	if err != nil {
		return err
	}
	runner, err := bootstrap.NewPipeline(cfg.OCR, gen, logger)
	if err != nil {
		return err
	}

	pool := async.NewWorkerPool(queue, jobs, runner, files, notifier, logger,
		async.WithWorkers(cfg.Worker.Count),
		async.WithDequeueTimeout(cfg.Worker.DequeueTimeout),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
	)
	pool.Start(ctx)

	gin.SetMode(cfg.Server.GinMode)
	httpSrv := server.NewHTTPServer(server.HTTPConfig{
		Dispatcher:     dispatch.New(jobs, queue, files, notifier, logger),
		Exporter:       export.NewService(jobs, logger),
		Hub:            hub,
		Tokens:         server.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Health:         func(ctx context.Context) error { return repository.HealthCheck(ctx, db, 2*time.Second, logger) },
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, logger)
	// Requests derive from streamsCtx so open event streams end on shutdown.
	streamsCtx, endStreams := context.WithCancel(context.Background())
	defer endStreams()
	web := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpSrv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamsCtx },
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var health *server.HealthServer
	if cfg.Server.GRPCHealthAddr != "" {
		health, err = server.ListenHealth(cfg.Server.GRPCHealthAddr, logger)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("grpc health listening", "addr", health.Addr())
			if err := health.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	web.RegisterOnShutdown(endStreams)
	if err := web.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
		_ = web.Close()
	}
	if health != nil {
		health.Stop()
	}
	pool.Shutdown(shutdownCtx)
	return runErr
}
