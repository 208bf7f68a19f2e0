// Command server runs the recycling league REST backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecoloop/recycle-league/internal/api"
	"github.com/ecoloop/recycle-league/internal/cache"
	"github.com/ecoloop/recycle-league/internal/config"
	"github.com/ecoloop/recycle-league/internal/notify"
	"github.com/ecoloop/recycle-league/internal/repository"
	"github.com/ecoloop/recycle-league/internal/service/goals"
	"github.com/ecoloop/recycle-league/internal/service/league"
	"github.com/ecoloop/recycle-league/internal/service/points"
	"github.com/ecoloop/recycle-league/internal/service/scheduler"
	"github.com/ecoloop/recycle-league/internal/service/season"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	switch cfg.Database.Postgres.MigrationsMode {
	case "sql":
		if err := db.MigrateSQL(log); err != nil {
			log.Fatal().Err(err).Msg("Failed to run SQL migrations")
		}
	default:
		if err := db.AutoMigrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	redisCache, err := cache.NewRedis(&cfg.Database.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisCache.Close()

	userRepo := repository.NewUserRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	leagueRepo := repository.NewLeagueRepository(db)
	goalRepo := repository.NewGoalRepository(db)

	notifier := notify.NewClient(&cfg.Notify, log)

	pointsService := points.NewService(pointsRepo, userRepo, leagueRepo, log)
	leagueService := league.NewService(leagueRepo, userRepo, redisCache, &cfg.Leagues, log)
	seasonService := season.NewService(leagueRepo, redisCache, notifier, &cfg.Leagues, log)
	goalsService := goals.NewService(goalRepo, userRepo, pointsService, &cfg.Goals, log)

	if cfg.Leagues.SeedFile != "" {
		seeds, err := config.LoadLeagueSeeds(cfg.Leagues.SeedFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load league seed file")
		}
		if err := leagueService.SeedLeagues(context.Background(), seeds); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed leagues")
		}
	}

	sched := scheduler.NewService(&cfg.Scheduler, seasonService, goalsService, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer sched.Stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewHandler(pointsService, leagueService, seasonService, goalsService, userRepo, db, log)
	handler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
