package main

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/petcare-platform/internal/platform/auth"
	"github.com/example/petcare-platform/internal/platform/config"
	"github.com/example/petcare-platform/internal/platform/db"
	"github.com/example/petcare-platform/internal/platform/httpserver"
	"github.com/example/petcare-platform/internal/platform/logging"
	"github.com/example/petcare-platform/internal/platform/natsconn"
	"github.com/example/petcare-platform/internal/platform/run"
	"github.com/example/petcare-platform/services/notifier/internal/consumer"
	"github.com/example/petcare-platform/services/notifier/internal/handlers"
	"github.com/example/petcare-platform/services/notifier/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, closeStore := initStore(cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/notifications", handlers.List(st))
		r.Post("/v1/notifications/{notification_id}/read", handlers.MarkRead(st))
		r.Post("/v1/notifications/read-all", handlers.MarkAllRead(st))
	})

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTP.Addr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Router:      r,
	})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName})
		if err != nil {
			// The inbox API still serves what was stored before.
			log.Error("nats connect failed, consumer not running", zap.Error(err))
		} else {
			defer nc.Close()
			go func() {
				c := consumer.New(st, log, consumer.Options{})
				if err := c.Run(ctx, nc); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("consumer stopped", zap.Error(err))
				}
			}()
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return srv.Start()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

func initStore(cfg config.AppConfig, log *zap.Logger) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory notification store")
		return store.NewMemory(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connect failed, using in-memory notification store", zap.Error(err))
		return store.NewMemory(), nil
	}
	return store.NewPostgres(pool), pool.Close
}
