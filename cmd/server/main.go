/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the points engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (PE_ prefix)
  2. Initialize SQLite store
  3. Wire ledger -> dispatcher -> quest engine -> leaderboard -> lottery
  4. Configure HTTP router and background scheduler
  5. Start server with graceful shutdown

ENVIRONMENT:
  PE_PORT               HTTP server port (default: 8080)
  PE_DB_PATH            SQLite database path (default: points.db)
                        Use ":memory:" for an in-memory database
  PE_LOG_LEVEL          logrus level (default: info)
  PE_LEADERBOARD_TTL    Cache TTL for ranked views (default: 30s)
  PE_LEADERBOARD_CRON   Refresh schedule (default: every 5 minutes)
  PE_AUDIT_CRON         Balance audit schedule (default: nightly, 04:00)
  PE_LOTTERY_COST       Entry cost in points (default: 10)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, close the database
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background jobs
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/neighborly/points-engine/api"
	"github.com/neighborly/points-engine/leaderboard"
	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/lottery"
	"github.com/neighborly/points-engine/quest"
	"github.com/neighborly/points-engine/reward"
	"github.com/neighborly/points-engine/store/sqlite"
)

// Config is loaded from the environment with the PE_ prefix.
type Config struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	DBPath          string        `envconfig:"DB_PATH" default:"points.db"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LeaderboardTTL  time.Duration `envconfig:"LEADERBOARD_TTL" default:"30s"`
	LeaderboardCron string        `envconfig:"LEADERBOARD_CRON" default:"*/5 * * * *"`
	AuditCron       string        `envconfig:"AUDIT_CRON" default:"0 4 * * *"`
	LotteryCost     int64         `envconfig:"LOTTERY_COST" default:"10"`
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var cfg Config
	if err := envconfig.Process("pe", &cfg); err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}
	log.SetLevel(level)

	// Storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Domain wiring
	lgr := ledger.New(store)
	dispatcher := reward.NewDispatcher(lgr, nil)
	engine := quest.NewEngine(store, store, dispatcher)
	board := leaderboard.NewView(store, cfg.LeaderboardTTL)
	lot, err := lottery.New(dispatcher, lottery.DefaultPrizes, cfg.LotteryCost)
	if err != nil {
		log.WithError(err).Fatal("invalid lottery configuration")
	}

	handler := &api.Handler{
		Ledger:  lgr,
		Rewards: dispatcher,
		Quests:  engine,
		Board:   board,
		Lottery: lot,
		Admin:   store,
	}
	router := api.NewRouter(handler)

	// Background jobs
	sched, err := api.NewScheduler(board, lgr, store, api.SchedulerConfig{
		LeaderboardSpec: cfg.LeaderboardCron,
		AuditSpec:       cfg.AuditCron,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("invalid scheduler configuration")
	}
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port": cfg.Port,
			"db":   cfg.DBPath,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}
	log.Info("server stopped")
}
