package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/config"
	"github.com/ShipLog-Showcase/showcase-backend/internal/api/http/middleware"
	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	authhttp "github.com/ShipLog-Showcase/showcase-backend/internal/auth/http"
	"github.com/ShipLog-Showcase/showcase-backend/internal/bootstrap"
	cdomain "github.com/ShipLog-Showcase/showcase-backend/internal/comments/domain"
	commentshttp "github.com/ShipLog-Showcase/showcase-backend/internal/comments/http"
	crepo "github.com/ShipLog-Showcase/showcase-backend/internal/comments/repository"
	"github.com/ShipLog-Showcase/showcase-backend/internal/events"
	"github.com/ShipLog-Showcase/showcase-backend/internal/jobs"
	"github.com/ShipLog-Showcase/showcase-backend/internal/logging"
	projectshttp "github.com/ShipLog-Showcase/showcase-backend/internal/projects/http"
	prepo "github.com/ShipLog-Showcase/showcase-backend/internal/projects/repository"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/service"
	"github.com/ShipLog-Showcase/showcase-backend/internal/ranking"
	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
	"github.com/ShipLog-Showcase/showcase-backend/internal/storage/objectstore"
	"github.com/ShipLog-Showcase/showcase-backend/internal/users"
)

const serviceName = "showcase-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.App.LogLevel, serviceName)
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()

	provider := identityProvider(ctx, cfg)
	if stores.Redis != nil {
		provider = session.NewCachedProvider(provider, stores.Redis, cfg.Showcase.IdentityCacheTTL)
	}

	policy, err := cdomain.ParseDeletePolicy(cfg.Showcase.CommentDelete)
	if err != nil {
		log.Fatal().Err(err).Msg("comment delete policy")
	}

	userRepo := users.NewRepo(stores.DB.Pool)
	projectRepo := prepo.NewProjectRepository(stores.DB.Pool)
	commentRepo := crepo.NewCommentRepository(stores.SQL)

	var thumbs service.ThumbnailStore
	if store, err := objectstore.New(&cfg.ObjectStore); err == nil {
		if err := store.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Msg("thumbnail bucket unavailable, uploads disabled")
		} else {
			thumbs = store
		}
	} else if !errors.Is(err, objectstore.ErrDisabled) {
		log.Warn().Err(err).Msg("object store misconfigured, uploads disabled")
	}

	views := ranking.NewViews(projectRepo, ranking.Options{VoteTimeout: cfg.Showcase.VoteTimeout}, cfg.Showcase.ViewTTL)
	limiter := middleware.NewRateLimiter(cfg.Showcase.MutationsPerMinute, 0)
	resolver := auth.NewResolver(provider, userRepo, cfg.Firebase.DevHeaders)

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    serviceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DB:             stores.DB.Pool,
		Redis:          stores.Redis,
		Resolver:       resolver,
		Limiter:        limiter,
		Auth:           authhttp.New(resolver, userRepo, views),
		Projects: projectshttp.New(
			service.NewProjectService(projectRepo, thumbs),
			views,
			events.NewPublisher(stores.Redis),
			commentRepo,
			policy,
		),
		Comments: commentshttp.New(commentRepo, policy),
	})

	sched := jobs.NewScheduler(time.Minute)
	if err := sched.AddSweep(cfg.Showcase.SweepSchedule, "views", views.Sweep); err != nil {
		log.Fatal().Err(err).Msg("schedule view sweep")
	}
	if err := sched.AddSweep(cfg.Showcase.SweepSchedule, "rate limits", func() int {
		return limiter.Sweep(10 * time.Minute)
	}); err != nil {
		log.Fatal().Err(err).Msg("schedule rate limit sweep")
	}
	sched.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.App.Environment).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-sched.Stop().Done()
}

// identityProvider prefers Firebase and falls back to trusted dev headers
// when no credentials are configured.
func identityProvider(ctx context.Context, cfg *config.Config) session.Provider {
	if cfg.Firebase.CredentialsPath == "" {
		log.Warn().Msg("firebase not configured, using development identities")
		return session.DevProvider{}
	}
	client, err := session.InitializeFirebase(ctx, &cfg.Firebase)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize firebase")
	}
	return session.NewFirebaseProvider(client)
}
