// Package main is the player process entry point (spec.md §4.10).
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/evenodd-league/agents/internal/auth"
	"github.com/evenodd-league/agents/internal/config"
	"github.com/evenodd-league/agents/internal/game"
	"github.com/evenodd-league/agents/internal/player"
	"github.com/evenodd-league/agents/internal/repo"
	"github.com/evenodd-league/agents/internal/resilience"
	"github.com/evenodd-league/agents/internal/telemetry"
	"github.com/evenodd-league/agents/internal/telemetry/metrics"
	"github.com/evenodd-league/agents/internal/transport"
)

func buildStrategy() player.Strategy {
	seed := time.Now().UnixNano()
	switch config.GetEnv("PLAYER_STRATEGY", "random") {
	case "always_even":
		return player.FixedStrategy{Choice: "even"}
	case "always_odd":
		return player.FixedStrategy{Choice: "odd"}
	case "frequency":
		return player.NewFrequencyStrategy(seed)
	default:
		return player.NewRandomStrategy(seed)
	}
}

func main() {
	logger := telemetry.NewFromEnv("player")

	timeouts := config.DefaultTimeouts()
	retryCfg := config.DefaultRetryConfig()
	cbCfg := config.DefaultCircuitBreakerConfig()
	client := transport.NewClient(timeouts.HTTP,
		resilience.RetryConfig{MaxAttempts: retryCfg.MaxAttempts, Base: retryCfg.Base},
		resilience.Config{FailureThreshold: cbCfg.FailureThreshold, OpenTimeout: cbCfg.OpenTimeout, HalfOpenProbes: cbCfg.HalfOpenProbes})

	authCfg := config.LoadAuthConfig()
	authSvc, err := auth.NewService(authCfg.Secret, authCfg.TokenExpiry)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	port := config.GetEnv("PLAYER_PORT", "8092")
	playerID := config.GetEnv("PLAYER_ID", "")
	cfg := player.Config{
		PlayerID:        playerID,
		LeagueID:        config.GetEnv("LEAGUE_ID", "league-1"),
		GameType:        config.GetEnv("LEAGUE_GAME_TYPE", "even_odd"),
		DisplayName:     config.GetEnv("PLAYER_DISPLAY_NAME", "player-"+playerID),
		ContactEndpoint: config.GetEnv("PLAYER_SELF_ENDPOINT", "http://localhost:"+port+"/mcp"),
		ManagerEndpoint: config.GetEnv("LEAGUE_MANAGER_ENDPOINT", "http://localhost:8090/mcp"),
		Scoring:         game.Scoring(config.DefaultScoringWeights()),
	}

	dataDir := config.GetEnv("LEAGUE_DATA_DIR", "./data/player-"+playerID)
	historyRepo := repo.NewHistoryRepo(dataDir)
	m := metrics.New("player")

	p := player.New(cfg, buildStrategy(), historyRepo, client, authSvc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Register(ctx); err != nil {
		log.Fatalf("registration failed: %v", err)
	}

	srv := transport.NewServer(p.HandleMessage, logger, m, config.GetEnvInt("LEAGUE_RATE_LIMIT_RPS", 50), config.GetEnvInt("LEAGUE_RATE_LIMIT_BURST", 100))

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"port": port, "player_id": playerID}).Info("player starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	p.Shutdown()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
