// Package main is the league manager process entry point (spec.md §4.9).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evenodd-league/agents/internal/auth"
	"github.com/evenodd-league/agents/internal/config"
	"github.com/evenodd-league/agents/internal/manager"
	"github.com/evenodd-league/agents/internal/repo"
	"github.com/evenodd-league/agents/internal/resilience"
	"github.com/evenodd-league/agents/internal/telemetry"
	"github.com/evenodd-league/agents/internal/telemetry/metrics"
	"github.com/evenodd-league/agents/internal/transport"
)

func main() {
	logger := telemetry.NewFromEnv("manager")

	leagueCfg := config.LeagueConfig{
		LeagueID:        config.GetEnv("LEAGUE_ID", "league-1"),
		GameType:        config.GetEnv("LEAGUE_GAME_TYPE", "even_odd"),
		MinPlayers:      config.GetEnvInt("LEAGUE_MIN_PLAYERS", 2),
		MaxPlayers:      config.GetEnvInt("LEAGUE_MAX_PLAYERS", 16),
		Scoring:         config.DefaultScoringWeights(),
		NumberRange:     config.DefaultNumberRange(),
		DrawOnBothWrong: config.GetEnvBool("LEAGUE_DRAW_ON_BOTH_WRONG", true),
	}
	timeouts := config.DefaultTimeouts()
	timeouts.RoundDeadline = config.GetEnvDuration("LEAGUE_ROUND_DEADLINE", timeouts.RoundDeadline)

	authCfg := config.LoadAuthConfig()
	authSvc, err := auth.NewService(authCfg.Secret, authCfg.TokenExpiry)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	dataDir := config.GetEnv("LEAGUE_DATA_DIR", "./data/manager")
	standingsRepo := repo.NewStandingsRepo(dataDir)
	roundsRepo := repo.NewRoundsRepo(dataDir)

	retryCfg := config.DefaultRetryConfig()
	cbCfg := config.DefaultCircuitBreakerConfig()
	client := transport.NewClient(timeouts.HTTP,
		resilience.RetryConfig{MaxAttempts: retryCfg.MaxAttempts, Base: retryCfg.Base},
		resilience.Config{FailureThreshold: cbCfg.FailureThreshold, OpenTimeout: cbCfg.OpenTimeout, HalfOpenProbes: cbCfg.HalfOpenProbes})
	m := metrics.New("manager")

	mgr := manager.New(leagueCfg, timeouts, authSvc, client, standingsRepo, roundsRepo, logger, m)

	if auditPath := config.GetEnv("LEAGUE_AUDIT_LOG_PATH", ""); auditPath != "" {
		fl, err := telemetry.NewFileLogger(auditPath, "manager")
		if err != nil {
			log.Fatalf("audit log: %v", err)
		}
		mgr.SetAudit(fl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sweepSchedule := config.GetEnv("LEAGUE_SWEEPER_SCHEDULE", "@every 15s"); sweepSchedule != "off" {
		if err := mgr.StartSweeper(ctx, sweepSchedule); err != nil {
			log.Fatalf("sweeper: %v", err)
		}
		defer mgr.StopSweeper()
	}

	srv := transport.NewServer(mgr.HandleMessage, logger, m, config.GetEnvInt("LEAGUE_RATE_LIMIT_RPS", 50), config.GetEnvInt("LEAGUE_RATE_LIMIT_BURST", 100))
	srv.WithAdmin(transport.AdminHandlers{
		Standings: func(leagueID string) (interface{}, error) {
			return mgr.StandingsView()
		},
		StartLeague: func(ctx context.Context, leagueID string) error {
			return mgr.StartLeague(ctx)
		},
	})

	port := config.GetEnv("LEAGUE_MANAGER_PORT", "8090")
	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"port": port}).Info("league manager starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	if config.GetEnvBool("LEAGUE_AUTO_START", false) {
		go func() {
			time.Sleep(config.GetEnvDuration("LEAGUE_AUTO_START_DELAY", 10*time.Second))
			if err := mgr.StartLeague(ctx); err != nil {
				logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("auto start failed")
			}
		}()
	}

	<-ctx.Done()
	stop()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	_ = os.Stdout.Sync()
}
