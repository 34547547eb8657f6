package main

import (
	"context"
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
	"github.com/example/petcare-platform/services/engagement/internal/backend"
	"github.com/example/petcare-platform/services/engagement/internal/engine"
	"github.com/example/petcare-platform/services/engagement/internal/handlers"
	"github.com/example/petcare-platform/services/engagement/internal/mention"
	"github.com/example/petcare-platform/services/engagement/internal/notify"
	"github.com/example/petcare-platform/services/engagement/internal/profile"
	"github.com/example/petcare-platform/services/engagement/internal/push"
	"github.com/example/petcare-platform/services/engagement/internal/ws"
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

	be, closeBackend := initBackend(cfg, log)
	if closeBackend != nil {
		defer closeBackend()
	}

	resolver := profile.NewResolver(be, initProfileCache(cfg, log), log)

	feed, publisher, sink, closeNATS := initTransport(cfg, log)
	if closeNATS != nil {
		defer closeNATS()
	}

	eng := engine.New(engine.Options{
		Backend:    be,
		Profiles:   resolver,
		Feed:       feed,
		Publisher:  publisher,
		Dispatcher: notify.NewDispatcher(sink, cfg.PostRoute, log),
		Mentions:   mention.NewResolver(be, log),
		Logger:     log,
	})
	manager := engine.NewManager(eng)
	defer manager.Close()

	hub := ws.NewHub(log)
	defer hub.CloseAll()

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Get("/v1/posts/{post_id}/stream", handlers.Stream(manager, hub, verifier, log))
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/posts/{post_id}/thread", handlers.GetThread(manager))
		r.Post("/v1/posts/{post_id}/comments", handlers.CreateComment(manager))
		r.Put("/v1/posts/{post_id}/comments/{comment_id}", handlers.UpdateComment(manager))
		r.Delete("/v1/posts/{post_id}/comments/{comment_id}", handlers.DeleteComment(manager))
		r.Post("/v1/posts/{post_id}/comments/{comment_id}/like", handlers.ToggleCommentLike(manager))
		r.Post("/v1/posts/{post_id}/like", handlers.LikePost(manager))
		r.Post("/v1/posts/{post_id}/thread/{root_id}/toggle", handlers.ToggleThread(manager))
	})

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTP.Addr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Router:      r,
	})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
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

// initBackend opens postgres when DATABASE_URL is configured, falling
// back to the in-memory store for local development.
func initBackend(cfg config.AppConfig, log *zap.Logger) (backend.Service, func()) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory backend")
		return backend.NewMemory(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connect failed, using in-memory backend", zap.Error(err))
		return backend.NewMemory(), nil
	}
	return backend.NewPostgres(pool), pool.Close
}

func initProfileCache(cfg config.AppConfig, log *zap.Logger) profile.Cache {
	if cfg.RedisURL == "" {
		return profile.NewMemoryCache()
	}
	cache, err := profile.NewRedisCache(cfg.RedisURL, 0)
	if err != nil {
		log.Error("redis connect failed, using in-memory profile cache", zap.Error(err))
		return profile.NewMemoryCache()
	}
	return cache
}

// initTransport connects NATS for the realtime feed and the
// notification sink. Without NATS both stay in-process, which is
// enough for a single instance.
func initTransport(cfg config.AppConfig, log *zap.Logger) (push.Feed, push.Publisher, notify.Sink, func()) {
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName})
	if err != nil {
		log.Error("nats connect failed, realtime and notifications stay in-process", zap.Error(err))
		feed := push.NewMemoryFeed()
		return feed, feed, notify.NewMemorySink(), nil
	}

	feed := push.NewNATSFeed(nc, log)
	sink, err := notify.NewNATSSink(nc, log)
	if err != nil {
		log.Error("notification stream setup failed, notifications stay in-process", zap.Error(err))
		return feed, feed, notify.NewMemorySink(), nc.Close
	}
	return feed, feed, sink, nc.Close
}
