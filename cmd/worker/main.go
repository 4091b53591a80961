package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/config"
	"github.com/ShipLog-Showcase/showcase-backend/internal/db"
	"github.com/ShipLog-Showcase/showcase-backend/internal/jobs"
	"github.com/ShipLog-Showcase/showcase-backend/internal/logging"
	prepo "github.com/ShipLog-Showcase/showcase-backend/internal/projects/repository"
)

const usage = "usage: worker recount | schedule"

func main() {
	if len(os.Args) < 2 {
		log.Fatal().Msg(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.App.LogLevel, "showcase-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()
	if err := pool.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	repo := prepo.NewProjectRepository(pool.Pool)

	switch os.Args[1] {
	case "recount":
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		_, err := jobs.RecountOnce(rctx, repo)
		cancel()
		if err != nil {
			pool.Close()
			log.Fatal().Err(err).Msg("recount failed")
		}
	case "schedule":
		sched := jobs.NewScheduler(time.Minute)
		if err := sched.AddRecount(cfg.Showcase.RecountSchedule, repo); err != nil {
			log.Fatal().Err(err).Msg("schedule recount")
		}
		sched.Start()
		<-ctx.Done()
		log.Info().Msg("stopping scheduler")
		<-sched.Stop().Done()
	default:
		log.Fatal().Str("command", os.Args[1]).Msg(usage)
	}
}
